package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/service"
)

// AuthHandler exposes the signup/login/refresh/logout endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup  → create an account
//   - HandleLogin   → verify credentials, issue access + refresh tokens
//   - HandleRefresh → swap a refresh token for a fresh access token
//   - HandleLogout  → revoke the refresh token
//
// The handler only speaks HTTP: decode the request, call the service,
// encode the response. All auth rules live in service.AuthService.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type credentialsRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	Token        string           `json:"token"`
	RefreshToken string           `json:"refreshToken"`
	User         model.PublicUser `json:"user"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// HandleSignup creates a new account.
//
// HTTP: POST /auth/signup
// Body: {"nickname": "alice", "password": "..."}
//
// Responses:
//   - 201 {"message": "signup successful"}
//   - 400 validation_error (missing fields)
//   - 409 conflict (nickname taken)
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	if _, err := h.auth.Signup(r.Context(), req.Nickname, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "signup successful"})
}

// HandleLogin verifies credentials and starts a session.
//
// HTTP: POST /auth/login
// Body: {"nickname": "alice", "password": "..."}
//
// Responses:
//   - 200 {"token": "...", "refreshToken": "...", "user": {"id": "...", "nickname": "..."}}
//   - 401 unauthorized — same body for unknown nickname and wrong password
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Nickname, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User.Public(),
	})
}

// HandleRefresh exchanges a refresh token for a new access token.
//
// HTTP: POST /auth/refresh
// Body: {"refreshToken": "..."}
//
// Responses:
//   - 200 {"token": "..."}
//   - 400 validation_error (missing token)
//   - 403 forbidden (token revoked, superseded, or never issued)
//
// This endpoint is NOT behind the auth middleware — it is what clients
// call precisely when their access token has expired.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	token, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// HandleLogout revokes the session holding the given refresh token.
//
// HTTP: POST /auth/logout
// Body: {"refreshToken": "..."}
//
// Responses:
//   - 200 {"message": "logout successful"} — also for already-dead tokens
//   - 400 validation_error (missing token)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "logout successful"})
}
