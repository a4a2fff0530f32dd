// Package model defines the data structures used throughout the application.
package model

import "time"

// Quadrant values. 0 is the unclassified inbox; 1–4 are the four
// Eisenhower priority quadrants (urgent/important combinations).
const (
	QuadrantUnclassified = 0 // inbox, uncapped
	QuadrantDoFirst      = 1 // urgent + important
	QuadrantSchedule     = 2 // not urgent + important
	QuadrantDelegate     = 3 // urgent + not important
	QuadrantDontDo       = 4 // not urgent + not important
)

// MaxNotesPerQuadrant is the capacity limit for quadrants 1–4.
// Only non-archived notes count toward it; the inbox (quadrant 0) is uncapped.
const MaxNotesPerQuadrant = 10

// Note is a short task note pinned to one quadrant of the matrix.
//
// Position orders notes within their quadrant. Values need not be
// contiguous or unique — only the relative order matters. New notes get
// max(position in quadrant)+1, so they append at the end.
//
// Archiving keeps the note (and its quadrant value) but removes it from
// the board and from capacity accounting.
//
// The JSON tags are snake_case to match the wire format the web client
// expects (same names as the DB columns).
type Note struct {
	ID          string     `json:"id"          db:"id"`
	UserID      string     `json:"user_id"     db:"user_id"`
	Title       string     `json:"title"       db:"title"`
	Description string     `json:"description" db:"description"`
	Content     string     `json:"content"     db:"content"`
	Quadrant    int        `json:"quadrant"    db:"quadrant"`
	Position    int        `json:"position"    db:"position"`
	DueDate     *time.Time `json:"due_date"    db:"due_date"`
	IsArchived  bool       `json:"is_archived" db:"is_archived"`
	CreatedAt   time.Time  `json:"created_at"  db:"created_at"`
}

// ValidQuadrant reports whether q is one of the five known quadrants.
func ValidQuadrant(q int) bool {
	return q >= QuadrantUnclassified && q <= QuadrantDontDo
}
