// Package service — note lifecycle rules.
//
// This is where the board's invariants live:
//
//   - title is required
//   - quadrants 1-4 hold at most 10 active (non-archived) notes each;
//     the inbox (quadrant 0) is uncapped
//   - archived notes keep their quadrant value but stop counting
//   - position is assigned on insert, append-at-end
//   - updates are partial: only fields present in the request change
//
// CHECK-THEN-ACT:
// The capacity check and the following insert/update are two statements,
// not one transaction. Two requests from the same user racing each other
// could both pass the check at 9 notes and land 11. For a board driven by
// one person clicking one UI that window is acceptable; a stricter app
// would wrap both in a serializable transaction or keep a per-quadrant
// counter updated with the row.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
)

// NoteService handles business logic for notes. All operations are scoped
// to an owner — the userID comes from the validated access token, never
// from the request body.
type NoteService struct {
	repo   repository.NoteRepository
	logger *slog.Logger
}

// NewNoteService creates a NoteService.
func NewNoteService(repo repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{
		repo:   repo,
		logger: logger,
	}
}

// CreateNoteInput carries the caller-settable fields of a new note.
// Everything else (id, position, created_at, is_archived) is server-assigned.
type CreateNoteInput struct {
	Title       string
	Description string
	Content     string
	Quadrant    int
	DueDate     *time.Time
}

// NotePatch is a partial update. A nil field means "leave it alone" —
// the JSON decoder only fills pointers for keys present in the body, which
// is exactly the partial-update semantics we want.
type NotePatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Content     *string    `json:"content"`
	Quadrant    *int       `json:"quadrant"`
	Position    *int       `json:"position"`
	DueDate     *time.Time `json:"due_date"`
	IsArchived  *bool      `json:"is_archived"`
}

// isEmpty reports whether the patch carries no recognized fields.
func (p NotePatch) isEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Content == nil &&
		p.Quadrant == nil && p.Position == nil && p.DueDate == nil && p.IsArchived == nil
}

// List returns the owner's notes in board order
// (quadrant asc, position asc, created_at desc).
func (s *NoteService) List(ctx context.Context, ownerID string, filter repository.NoteFilter) ([]model.Note, error) {
	notes, err := s.repo.ListNotes(ctx, ownerID, filter)
	if err != nil {
		s.logger.Error("failed to list notes", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// Get returns one of the owner's notes.
func (s *NoteService) Get(ctx context.Context, ownerID, id string) (*model.Note, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}
	return s.repo.GetNoteByID(ctx, ownerID, id)
}

// Create validates and saves a new note.
//
// A note created straight into a priority quadrant counts against that
// quadrant's capacity immediately; notes landing in the inbox never do.
func (s *NoteService) Create(ctx context.Context, ownerID string, in CreateNoteInput) (*model.Note, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if !model.ValidQuadrant(in.Quadrant) {
		return nil, apperror.ValidationFailed("quadrant",
			fmt.Sprintf("quadrant must be between 0 and 4, got %d", in.Quadrant))
	}

	if in.Quadrant != model.QuadrantUnclassified {
		if err := s.checkCapacity(ctx, ownerID, in.Quadrant); err != nil {
			return nil, err
		}
	}

	note := &model.Note{
		UserID:      ownerID,
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Quadrant:    in.Quadrant,
		DueDate:     in.DueDate,
		IsArchived:  false,
	}

	if err := s.repo.CreateNote(ctx, note); err != nil {
		s.logger.Error("failed to create note",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.Info("note created",
		slog.String("id", note.ID),
		slog.Int("quadrant", note.Quadrant),
	)

	return note, nil
}

// Update applies a partial update and returns the full post-update note.
//
// CAPACITY RE-CHECK RULE:
// The check runs only when the patch moves the note to a DIFFERENT,
// non-zero quadrant. Consequences worth knowing:
//   - archiving (is_archived=true) frees a slot immediately
//   - unarchiving in place does NOT re-check — a quadrant can briefly
//     exceed 10 this way; unarchive-and-move in one request does check
//   - moving to the inbox is always allowed
//
// A patch with no recognized fields is a no-op that returns the note
// unchanged.
func (s *NoteService) Update(ctx context.Context, ownerID, id string, patch NotePatch) (*model.Note, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	// Fetch first: confirms existence+ownership and gives us the current
	// field values to overlay the patch onto.
	note, err := s.repo.GetNoteByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	// Nothing to change: skip the write entirely and return the note as-is.
	if patch.isEmpty() {
		return note, nil
	}

	if patch.Quadrant != nil {
		q := *patch.Quadrant
		if !model.ValidQuadrant(q) {
			return nil, apperror.ValidationFailed("quadrant",
				fmt.Sprintf("quadrant must be between 0 and 4, got %d", q))
		}
		if q != note.Quadrant && q != model.QuadrantUnclassified {
			if err := s.checkCapacity(ctx, ownerID, q); err != nil {
				return nil, err
			}
		}
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "title cannot be empty")
		}
		note.Title = title
	}
	if patch.Description != nil {
		note.Description = *patch.Description
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.Quadrant != nil {
		note.Quadrant = *patch.Quadrant
	}
	if patch.Position != nil {
		note.Position = *patch.Position
	}
	if patch.DueDate != nil {
		note.DueDate = patch.DueDate
	}
	if patch.IsArchived != nil {
		note.IsArchived = *patch.IsArchived
	}

	if err := s.repo.UpdateNote(ctx, note); err != nil {
		s.logger.Error("failed to update note",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating note: %w", err)
	}

	return note, nil
}

// Move changes only the quadrant — an Update restricted to one field.
// The same capacity rule applies on every cross-quadrant move.
func (s *NoteService) Move(ctx context.Context, ownerID, id string, quadrant int) (*model.Note, error) {
	return s.Update(ctx, ownerID, id, NotePatch{Quadrant: &quadrant})
}

// Reorder applies a batch of quadrant/position changes atomically.
//
// The batch carries the client's post-drag layout, so no capacity check
// runs here — the entries reposition notes the board already shows.
// Ownership still holds per row: one foreign or unknown ID aborts the
// whole batch.
func (s *NoteService) Reorder(ctx context.Context, ownerID string, updates []repository.NoteReorder) error {
	if len(updates) == 0 {
		return apperror.ValidationFailed("updates", "updates must be a non-empty array")
	}
	for _, u := range updates {
		if strings.TrimSpace(u.ID) == "" {
			return apperror.ValidationFailed("updates", "every update needs a note id")
		}
	}

	if err := s.repo.ReorderNotes(ctx, ownerID, updates); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to reorder notes",
			slog.Int("count", len(updates)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("reordering notes: %w", err)
	}

	s.logger.Info("notes reordered", slog.Int("count", len(updates)))
	return nil
}

// Delete permanently removes the owner's note.
func (s *NoteService) Delete(ctx context.Context, ownerID, id string) error {
	if id = strings.TrimSpace(id); id == "" {
		return apperror.ValidationFailed("id", "note ID is required")
	}

	if err := s.repo.DeleteNote(ctx, ownerID, id); err != nil {
		return err
	}

	s.logger.Info("note deleted", slog.String("id", id))
	return nil
}

// checkCapacity rejects the mutation when the quadrant is full.
func (s *NoteService) checkCapacity(ctx context.Context, ownerID string, quadrant int) error {
	count, err := s.repo.CountActiveNotes(ctx, ownerID, quadrant)
	if err != nil {
		return fmt.Errorf("counting notes in quadrant %d: %w", quadrant, err)
	}
	if count >= model.MaxNotesPerQuadrant {
		return apperror.CapacityExceeded(quadrant)
	}
	return nil
}
