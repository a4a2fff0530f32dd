package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only during the test —
// fast, isolated, and destroyed when the connection closes.
//
// newTestDB is a test helper. The `t.Helper()` call tells Go's test
// framework to report errors at the CALLER's line number, which makes
// failure output much clearer.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, nickname string) *model.User {
	t.Helper()
	user := &model.User{Nickname: nickname, PasswordHash: "$2a$04$fakehashfortesting"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user %q: %v", nickname, err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Nickname: "alice", PasswordHash: "digest"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set user.CreatedAt")
	}
}

func TestCreateUser_DuplicateNickname(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	dup := &model.User{Nickname: "alice", PasswordHash: "other-digest"}
	err := db.CreateUser(context.Background(), dup)

	if err == nil {
		t.Fatal("CreateUser() should reject a duplicate nickname")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetUserByNickname(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	found, err := db.GetUserByNickname(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByNickname() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.PasswordHash != created.PasswordHash {
		t.Errorf("PasswordHash = %q, want %q", found.PasswordHash, created.PasswordHash)
	}
}

func TestGetUserByNickname_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByNickname(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByNickname() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// REFRESH TOKEN SLOT TESTS
// =========================================================================

func TestSetRefreshToken_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	if err := db.SetRefreshToken(context.Background(), user.ID, "token-1"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}

	found, err := db.GetUserByRefreshToken(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("GetUserByRefreshToken() error = %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("token resolved to user %q, want %q", found.ID, user.ID)
	}
}

// TestSetRefreshToken_OverwritesPreviousToken is the single-session
// invariant at the storage level: writing a new token makes the old one
// unresolvable.
func TestSetRefreshToken_OverwritesPreviousToken(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	if err := db.SetRefreshToken(ctx, user.ID, "first-login"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}
	if err := db.SetRefreshToken(ctx, user.ID, "second-login"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}

	if _, err := db.GetUserByRefreshToken(ctx, "first-login"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("old token should no longer resolve, got error = %v", err)
	}
	if _, err := db.GetUserByRefreshToken(ctx, "second-login"); err != nil {
		t.Errorf("new token should resolve, got error = %v", err)
	}
}

func TestSetRefreshToken_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.SetRefreshToken(context.Background(), "ghost", "token")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SetRefreshToken() error = %v, want ErrNotFound", err)
	}
}

func TestClearRefreshToken(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	if err := db.SetRefreshToken(ctx, user.ID, "token-1"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}
	if err := db.ClearRefreshToken(ctx, "token-1"); err != nil {
		t.Fatalf("ClearRefreshToken() error = %v", err)
	}

	if _, err := db.GetUserByRefreshToken(ctx, "token-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("cleared token should not resolve, got error = %v", err)
	}
}

func TestClearRefreshToken_UnknownTokenIsNoop(t *testing.T) {
	db := newTestDB(t)

	// Logout with a token nobody holds must succeed silently.
	if err := db.ClearRefreshToken(context.Background(), "never-issued"); err != nil {
		t.Errorf("ClearRefreshToken() on unknown token should be a no-op, got %v", err)
	}
}

// TestGetUserByRefreshToken_EmptyToken guards against a subtle hole:
// a logged-out user's slot is NULL, and NULL never equals "", but the
// code must not rely on that — an empty token is rejected outright.
func TestGetUserByRefreshToken_EmptyToken(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice") // never logged in, slot is NULL

	_, err := db.GetUserByRefreshToken(context.Background(), "")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("empty refresh token should never resolve, got error = %v", err)
	}
}
