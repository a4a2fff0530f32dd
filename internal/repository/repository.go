package repository

import (
	"context"

	"github.com/ckyeon/eisenhower-matrix/internal/model"
)

// NoteFilter selects which notes a list returns.
// All wins over Archived: when All is set, both archived and active notes
// come back in one ordered list.
type NoteFilter struct {
	All      bool
	Archived bool
}

// NoteReorder is one entry of a batch reorder: the note's new quadrant
// and position. The whole batch applies in a single transaction.
type NoteReorder struct {
	ID       string `json:"id"`
	Quadrant int    `json:"quadrant"`
	Position int    `json:"position"`
}

// NoteRepository persists notes. Every method that touches an existing
// note takes the owner's ID and scopes the query with it — a note that
// exists but belongs to someone else behaves exactly like a note that
// doesn't exist.
type NoteRepository interface {
	CreateNote(ctx context.Context, note *model.Note) error
	GetNoteByID(ctx context.Context, ownerID, id string) (*model.Note, error)
	ListNotes(ctx context.Context, ownerID string, filter NoteFilter) ([]model.Note, error)
	UpdateNote(ctx context.Context, note *model.Note) error
	DeleteNote(ctx context.Context, ownerID, id string) error

	// CountActiveNotes returns the number of non-archived notes the owner
	// has in the given quadrant. Archived notes never count.
	CountActiveNotes(ctx context.Context, ownerID string, quadrant int) (int, error)

	// ReorderNotes applies every update in one transaction. If any entry
	// matches no row owned by ownerID, nothing is applied.
	ReorderNotes(ctx context.Context, ownerID string, updates []NoteReorder) error
}

// UserRepository persists user accounts and their refresh-token slot.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*model.User, error)

	// SetRefreshToken overwrites the user's refresh-token slot,
	// invalidating whatever token was stored before.
	SetRefreshToken(ctx context.Context, userID, token string) error

	// GetUserByRefreshToken finds the user currently holding the token.
	GetUserByRefreshToken(ctx context.Context, token string) (*model.User, error)

	// ClearRefreshToken empties the slot of whichever user holds the
	// token. Clearing a token nobody holds is not an error.
	ClearRefreshToken(ctx context.Context, token string) error
}
