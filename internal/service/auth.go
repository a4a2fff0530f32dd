// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept primitives and return domain errors; they know nothing
// about HTTP. Handlers translate both directions. Repositories know SQL
// and nothing about the rules.
//
// This file: authentication — signup, login, the access/refresh token
// protocol, and logout.
//
// SESSION MODEL:
// One refresh-token slot per user. Logging in writes a fresh opaque token
// into the slot, which silently invalidates whatever session held the
// previous one. Logging out clears the slot. Refreshing exchanges a live
// refresh token for a new access token without rotating the refresh token
// itself — it stays valid until the next login or logout.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/auth"
	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
)

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// LoginResult bundles everything a successful login produces: the signed
// access token, the opaque refresh token, and the user's public identity.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
}

// Signup registers a new account.
//
// Nickname and password are both required; a taken nickname surfaces as
// ErrConflict. Signup does NOT log the user in — the client follows up
// with Login, same as the two-step flow in the UI.
func (s *AuthService) Signup(ctx context.Context, nickname, password string) (*model.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, apperror.ValidationFailed("nickname", "nickname is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Nickname:     nickname,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Let ErrConflict through untouched so the handler can say 409.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("nickname", nickname),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("nickname", user.Nickname),
	)

	return user, nil
}

// Login verifies the credentials and issues a session.
//
// UNIFORM FAILURE:
// An unknown nickname and a wrong password both return the same
// ErrUnauthorized. Distinguishing them would let an attacker enumerate
// which nicknames exist.
//
// SIDE EFFECT:
// Writing the new refresh token into the user's slot invalidates any
// refresh token from a previous login. One live session per user.
func (s *AuthService) Login(ctx context.Context, nickname, password string) (*LoginResult, error) {
	if nickname == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "nickname and password are required")
	}

	user, err := s.users.GetUserByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized()
	}

	accessToken, err := s.tokens.Generate(user.ID, user.Nickname)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating access token: %w", err)
	}

	// The refresh token is just an unguessable random string — all its
	// meaning lives in the users table.
	refreshToken := uuid.NewString()
	if err := s.users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return nil, fmt.Errorf("service/auth: storing refresh token: %w", err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("nickname", user.Nickname),
	)

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// Refresh exchanges a live refresh token for a new access token.
//
// The refresh token itself is not rotated: it remains valid until the next
// login or logout. If no user holds the presented token — it was revoked,
// superseded, or never issued — the caller gets ErrForbidden.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperror.ValidationFailed("refreshToken", "refresh token is required")
	}

	user, err := s.users.GetUserByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Forbidden("invalid refresh token")
		}
		return "", fmt.Errorf("service/auth: looking up refresh token: %w", err)
	}

	accessToken, err := s.tokens.Generate(user.ID, user.Nickname)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating access token: %w", err)
	}

	return accessToken, nil
}

// Logout revokes the session holding the given refresh token.
// Idempotent: logging out with an already-dead token still succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperror.ValidationFailed("refreshToken", "refresh token is required")
	}

	if err := s.users.ClearRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("service/auth: clearing refresh token: %w", err)
	}

	return nil
}
