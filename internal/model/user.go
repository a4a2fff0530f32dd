// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account.
//
// Users sign up with a nickname and password. The nickname is both the
// display name and the login key, so it carries a UNIQUE constraint in the DB.
//
// WHY json:"-" ON PasswordHash AND RefreshToken?
// These fields must NEVER leave the server. The "-" tag tells encoding/json
// to skip them entirely, so even if a handler accidentally serializes a full
// User, the secrets stay out of the response body.
//
// RefreshToken is a single slot: each user has at most one valid refresh
// token at a time. Logging in writes a new one (invalidating the previous
// session), logging out clears it. An empty string means "no active session".
type User struct {
	ID           string    `json:"id"        db:"id"`
	Nickname     string    `json:"nickname"  db:"nickname"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	RefreshToken string    `json:"-"         db:"refresh_token"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PublicUser is the shape of a user embedded in auth responses:
// just the identity fields, nothing sensitive.
type PublicUser struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// Public returns the response-safe view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Nickname: u.Nickname}
}
