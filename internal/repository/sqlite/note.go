package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
)

// compile-time check that *DB implements repository.NoteRepository
var _ repository.NoteRepository = (*DB)(nil)

// noteColumns is the SELECT list shared by every note query in this file.
// Keeping it in one place means scanNote's Scan order can't drift from it.
const noteColumns = `id, user_id, title, description, content, quadrant, position, due_date, is_archived, created_at`

// noteOrder is the canonical board ordering: quadrants first, then the
// user-arranged position inside each quadrant, newest first on ties.
const noteOrder = `ORDER BY quadrant ASC, position ASC, created_at DESC`

// CreateNote inserts a new note for note.UserID.
//
// The repository assigns the server-owned fields: the ID (xid — 20 chars,
// URL-safe, sortable by creation time), CreatedAt, and the position. New
// notes append at the end of their quadrant: max(position)+1, or 1 when
// the quadrant is empty.
//
// The MAX(position) lookup and the INSERT are two statements, so two
// racing creates can pick the same position. That only makes their order
// ambiguous (created_at breaks the tie) — it can't corrupt anything.
func (db *DB) CreateNote(ctx context.Context, note *model.Note) error {
	note.ID = xid.New().String()
	note.CreatedAt = time.Now()

	// COALESCE turns the NULL MAX() of an empty quadrant into 0.
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM notes WHERE user_id = ? AND quadrant = ?`,
		note.UserID, note.Quadrant,
	).Scan(&note.Position)
	if err != nil {
		return fmt.Errorf("sqlite: assigning position in quadrant %d: %w", note.Quadrant, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, description, content, quadrant, position, due_date, is_archived, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID,
		note.UserID,
		note.Title,
		note.Description,
		note.Content,
		note.Quadrant,
		note.Position,
		note.DueDate,
		boolToInt(note.IsArchived),
		note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}

	return nil
}

// GetNoteByID retrieves a single note owned by ownerID.
//
// OWNERSHIP AS NOT-FOUND:
// The WHERE clause filters on both id and user_id, so asking for another
// user's note scans zero rows and returns the same NotFound as asking for
// a note that was never created. The caller can't probe whether an ID
// exists for someone else.
func (db *DB) GetNoteByID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`,
		id, ownerID,
	)

	note, err := scanNote(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqlite: getting note %s: %w", id, err)
	}

	return note, nil
}

// ListNotes returns the owner's notes in board order.
//
// filter.All returns everything; otherwise filter.Archived picks the
// archived or the active set.
func (db *DB) ListNotes(ctx context.Context, ownerID string, filter repository.NoteFilter) ([]model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ?`
	args := []any{ownerID}

	if !filter.All {
		query += ` AND is_archived = ?`
		args = append(args, boolToInt(filter.Archived))
	}

	query += ` ` + noteOrder

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes: %w", err)
	}
	defer rows.Close()

	notes := make([]model.Note, 0, 16)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning note row: %w", err)
		}
		notes = append(notes, *note)
	}

	// rows.Err() catches errors that happened DURING iteration
	// (e.g. the connection dropping mid-scan).
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notes: %w", err)
	}

	return notes, nil
}

// UpdateNote writes every mutable field of the note back to its row.
//
// The service layer owns partial-update semantics: it loads the note,
// applies the requested field changes, and hands the full entity here.
// The WHERE clause keeps the write owner-scoped; zero affected rows means
// the note vanished (or never belonged to the caller) → NotFound.
func (db *DB) UpdateNote(ctx context.Context, note *model.Note) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE notes
		 SET title = ?, description = ?, content = ?, quadrant = ?, position = ?, due_date = ?, is_archived = ?
		 WHERE id = ? AND user_id = ?`,
		note.Title,
		note.Description,
		note.Content,
		note.Quadrant,
		note.Position,
		note.DueDate,
		boolToInt(note.IsArchived),
		note.ID,
		note.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating note %s: %w", note.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", note.ID)
	}

	return nil
}

// DeleteNote permanently removes the owner's note.
// Same pattern as UpdateNote — zero affected rows means NotFound.
func (db *DB) DeleteNote(ctx context.Context, ownerID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND user_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting note %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", id)
	}

	return nil
}

// CountActiveNotes counts the owner's non-archived notes in a quadrant.
// This feeds the per-quadrant capacity check; archived notes are invisible
// to it no matter which quadrant value they still carry.
func (db *DB) CountActiveNotes(ctx context.Context, ownerID string, quadrant int) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE user_id = ? AND quadrant = ? AND is_archived = 0`,
		ownerID, quadrant,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting notes in quadrant %d: %w", quadrant, err)
	}
	return count, nil
}

// ReorderNotes applies a batch of quadrant/position changes in a single
// transaction — the drag-and-drop "settle" operation.
//
// ALL OR NOTHING:
// Each UPDATE is owner-scoped. If any entry matches no row (wrong owner,
// deleted note, typo'd ID), the whole transaction rolls back and no
// position changes — a half-applied reorder would leave the board in a
// state neither the client nor the server ever intended.
//
// No capacity check happens here: reordering moves existing notes around,
// and the client has already placed them; re-counting mid-drag would
// reject moves the board visually allowed.
func (db *DB) ReorderNotes(ctx context.Context, ownerID string, updates []repository.NoteReorder) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning reorder transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op, so the defer is safe.
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE notes SET position = ?, quadrant = ? WHERE id = ? AND user_id = ?`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: preparing reorder statement: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		result, err := stmt.ExecContext(ctx, u.Position, u.Quadrant, u.ID, ownerID)
		if err != nil {
			return fmt.Errorf("sqlite: reordering note %s: %w", u.ID, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			// Unknown or foreign note: abort the whole batch.
			return apperror.NotFound("note", u.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing reorder: %w", err)
	}

	return nil
}

// scanner is the common surface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanNote reads one row into a Note.
//
// due_date and is_archived need translation: the column is nullable
// DATETIME (→ *time.Time) and an INTEGER 0/1 (→ bool).
func scanNote(s scanner) (*model.Note, error) {
	var (
		note     model.Note
		due      sql.NullTime
		archived int
	)

	err := s.Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.Description,
		&note.Content,
		&note.Quadrant,
		&note.Position,
		&due,
		&archived,
		&note.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if due.Valid {
		t := due.Time
		note.DueDate = &t
	}
	note.IsArchived = archived != 0

	return &note, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
