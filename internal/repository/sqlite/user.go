package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` verifies at compile time that *DB implements the
// interface. Without it, a missing method only surfaces at the call site.
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user.
//
// The nickname column carries a UNIQUE constraint; a duplicate nickname
// surfaces as apperror.ErrConflict so the handler can answer 409 instead
// of a generic 500.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, nickname, password_hash, refresh_token, created_at)
		 VALUES (?, ?, ?, NULL, ?)`,
		user.ID,
		user.Nickname,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		// The driver has no typed constraint error, so we match on the
		// stable "UNIQUE constraint failed" text SQLite produces.
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.nickname") {
			return apperror.Conflict("nickname", user.Nickname)
		}
		return fmt.Errorf("sqlite: creating user %q: %w", user.Nickname, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByNickname retrieves a user by their login nickname.
func (db *DB) GetUserByNickname(ctx context.Context, nickname string) (*model.User, error) {
	return db.getUser(ctx, `WHERE nickname = ?`, nickname)
}

// GetUserByRefreshToken finds the user whose session slot currently holds
// the given refresh token. An empty token never matches — the slot of a
// logged-out user is NULL, not "".
func (db *DB) GetUserByRefreshToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.NotFound("user", "<empty refresh token>")
	}
	return db.getUser(ctx, `WHERE refresh_token = ?`, token)
}

// getUser runs the shared SELECT with the given WHERE clause.
// The clause is always a constant string from this file, never user input.
func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u       model.User
		refresh sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, nickname, password_hash, refresh_token, created_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Nickname,
		&u.PasswordHash,
		&refresh,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	u.RefreshToken = refresh.String
	return &u, nil
}

// SetRefreshToken overwrites the user's refresh-token slot.
//
// This is what gives the app single-session semantics: whatever token the
// previous login stored is gone the moment a new login writes the slot.
func (db *DB) SetRefreshToken(ctx context.Context, userID, token string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = ? WHERE id = ?`,
		token, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting refresh token for user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}

	return nil
}

// ClearRefreshToken empties the slot of whichever user holds the token.
// Clearing a token nobody holds is a no-op, not an error — logout must
// be idempotent.
func (db *DB) ClearRefreshToken(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = NULL WHERE refresh_token = ?`,
		token,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing refresh token: %w", err)
	}
	return nil
}
