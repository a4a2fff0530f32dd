package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================
//
// fakeNoteRepo is an in-memory implementation of repository.NoteRepository.
// A hand-written fake (not a mock framework) keeps tests dependency-free
// and easy to read — you can see exactly what the fake does. It mirrors
// the fixed store's contract: owner scoping, NotFound for foreign notes,
// append-at-end positions, all-or-nothing reorder.

type fakeNoteRepo struct {
	notes  map[string]*model.Note
	nextID int
	// set to a non-nil error to simulate a database failure
	createErr error
	countErr  error
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[string]*model.Note)}
}

func (f *fakeNoteRepo) CreateNote(_ context.Context, note *model.Note) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	note.ID = fmt.Sprintf("note-%d", f.nextID)
	note.CreatedAt = time.Now()

	maxPos := 0
	for _, n := range f.notes {
		if n.UserID == note.UserID && n.Quadrant == note.Quadrant && n.Position > maxPos {
			maxPos = n.Position
		}
	}
	note.Position = maxPos + 1

	stored := *note
	f.notes[note.ID] = &stored
	return nil
}

func (f *fakeNoteRepo) GetNoteByID(_ context.Context, ownerID, id string) (*model.Note, error) {
	n, ok := f.notes[id]
	if !ok || n.UserID != ownerID {
		return nil, apperror.NotFound("note", id)
	}
	result := *n
	return &result, nil
}

func (f *fakeNoteRepo) ListNotes(_ context.Context, ownerID string, filter repository.NoteFilter) ([]model.Note, error) {
	result := make([]model.Note, 0, len(f.notes))
	for _, n := range f.notes {
		if n.UserID != ownerID {
			continue
		}
		if !filter.All && n.IsArchived != filter.Archived {
			continue
		}
		result = append(result, *n)
	}
	return result, nil
}

func (f *fakeNoteRepo) UpdateNote(_ context.Context, note *model.Note) error {
	existing, ok := f.notes[note.ID]
	if !ok || existing.UserID != note.UserID {
		return apperror.NotFound("note", note.ID)
	}
	stored := *note
	f.notes[note.ID] = &stored
	return nil
}

func (f *fakeNoteRepo) DeleteNote(_ context.Context, ownerID, id string) error {
	n, ok := f.notes[id]
	if !ok || n.UserID != ownerID {
		return apperror.NotFound("note", id)
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeNoteRepo) CountActiveNotes(_ context.Context, ownerID string, quadrant int) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	count := 0
	for _, n := range f.notes {
		if n.UserID == ownerID && n.Quadrant == quadrant && !n.IsArchived {
			count++
		}
	}
	return count, nil
}

func (f *fakeNoteRepo) ReorderNotes(_ context.Context, ownerID string, updates []repository.NoteReorder) error {
	// Validate the whole batch first, then apply — all or nothing.
	for _, u := range updates {
		n, ok := f.notes[u.ID]
		if !ok || n.UserID != ownerID {
			return apperror.NotFound("note", u.ID)
		}
	}
	for _, u := range updates {
		f.notes[u.ID].Quadrant = u.Quadrant
		f.notes[u.ID].Position = u.Position
	}
	return nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func newTestNoteService(t *testing.T) (*NoteService, *fakeNoteRepo) {
	t.Helper()
	repo := newFakeNoteRepo()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewNoteService(repo, logger), repo
}

const owner = "user-alice"

func mustCreate(t *testing.T, svc *NoteService, ownerID string, in CreateNoteInput) *model.Note {
	t.Helper()
	note, err := svc.Create(context.Background(), ownerID, in)
	if err != nil {
		t.Fatalf("setup: Create(%q) error = %v", in.Title, err)
	}
	return note
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate_Success(t *testing.T) {
	svc, _ := newTestNoteService(t)

	note, err := svc.Create(context.Background(), owner, CreateNoteInput{
		Title:    "write report",
		Quadrant: model.QuadrantSchedule,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if note.ID == "" {
		t.Error("expected note to have an ID")
	}
	if note.Position != 1 {
		t.Errorf("Position = %d, want 1", note.Position)
	}
	if note.IsArchived {
		t.Error("new notes must not be archived")
	}
}

func TestCreate_EmptyTitle(t *testing.T) {
	svc, repo := newTestNoteService(t)

	_, err := svc.Create(context.Background(), owner, CreateNoteInput{Title: "   "})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	// Nothing may be persisted on a validation failure.
	if len(repo.notes) != 0 {
		t.Errorf("repo holds %d notes after failed create, want 0", len(repo.notes))
	}
}

func TestCreate_InvalidQuadrant(t *testing.T) {
	svc, _ := newTestNoteService(t)

	for _, q := range []int{-1, 5, 42} {
		_, err := svc.Create(context.Background(), owner, CreateNoteInput{Title: "x", Quadrant: q})
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("quadrant %d: error = %v, want ErrValidation", q, err)
		}
	}
}

// TestCreate_CapacityLimit: ten creates into quadrant 1 succeed, the
// eleventh fails and leaves exactly ten persisted.
func TestCreate_CapacityLimit(t *testing.T) {
	svc, repo := newTestNoteService(t)

	for i := 0; i < model.MaxNotesPerQuadrant; i++ {
		if _, err := svc.Create(context.Background(), owner, CreateNoteInput{
			Title:    fmt.Sprintf("task %d", i),
			Quadrant: model.QuadrantDoFirst,
		}); err != nil {
			t.Fatalf("create %d: unexpected error %v", i, err)
		}
	}

	_, err := svc.Create(context.Background(), owner, CreateNoteInput{
		Title:    "one too many",
		Quadrant: model.QuadrantDoFirst,
	})
	if !errors.Is(err, apperror.ErrCapacity) {
		t.Errorf("11th create: error = %v, want ErrCapacity", err)
	}
	if len(repo.notes) != model.MaxNotesPerQuadrant {
		t.Errorf("repo holds %d notes, want %d", len(repo.notes), model.MaxNotesPerQuadrant)
	}
}

func TestCreate_StorageFailuresAreWrapped(t *testing.T) {
	svc, repo := newTestNoteService(t)
	ctx := context.Background()

	repo.countErr = errors.New("disk on fire")
	_, err := svc.Create(ctx, owner, CreateNoteInput{Title: "x", Quadrant: 1})
	if err == nil || errors.As(err, new(*apperror.AppError)) {
		t.Errorf("count failure should surface as a plain internal error, got %v", err)
	}
	repo.countErr = nil

	repo.createErr = errors.New("disk still on fire")
	_, err = svc.Create(ctx, owner, CreateNoteInput{Title: "x"})
	if err == nil || errors.As(err, new(*apperror.AppError)) {
		t.Errorf("insert failure should surface as a plain internal error, got %v", err)
	}
}

func TestCreate_InboxIsUncapped(t *testing.T) {
	svc, _ := newTestNoteService(t)

	// 15 > MaxNotesPerQuadrant, all land in the inbox
	for i := 0; i < 15; i++ {
		if _, err := svc.Create(context.Background(), owner, CreateNoteInput{
			Title: fmt.Sprintf("inbox %d", i),
		}); err != nil {
			t.Fatalf("inbox create %d: unexpected error %v", i, err)
		}
	}
}

// TestCreate_ArchivedNotesDontCount: archive a quadrant-1 note, then fill
// the quadrant with ten fresh notes — all succeed because the archived
// note stopped counting.
func TestCreate_ArchivedNotesDontCount(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	first := mustCreate(t, svc, owner, CreateNoteInput{Title: "old", Quadrant: 1})
	if _, err := svc.Update(ctx, owner, first.ID, NotePatch{IsArchived: boolPtr(true)}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	for i := 0; i < model.MaxNotesPerQuadrant; i++ {
		if _, err := svc.Create(ctx, owner, CreateNoteInput{
			Title:    fmt.Sprintf("new %d", i),
			Quadrant: 1,
		}); err != nil {
			t.Fatalf("create %d after archive: unexpected error %v", i, err)
		}
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdate_PartialFields(t *testing.T) {
	svc, _ := newTestNoteService(t)
	note := mustCreate(t, svc, owner, CreateNoteInput{
		Title:       "original",
		Description: "keep me",
		Content:     "keep me too",
	})

	updated, err := svc.Update(context.Background(), owner, note.ID, NotePatch{
		Title: strPtr("renamed"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Title != "renamed" {
		t.Errorf("Title = %q, want %q", updated.Title, "renamed")
	}
	// Omitted fields must be untouched, not reset.
	if updated.Description != "keep me" || updated.Content != "keep me too" {
		t.Errorf("omitted fields changed: %+v", updated)
	}
}

func TestUpdate_EmptyPatchIsNoop(t *testing.T) {
	svc, _ := newTestNoteService(t)
	note := mustCreate(t, svc, owner, CreateNoteInput{Title: "unchanged"})

	got, err := svc.Update(context.Background(), owner, note.ID, NotePatch{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != "unchanged" || got.Quadrant != note.Quadrant {
		t.Errorf("no-op update changed the note: %+v", got)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestNoteService(t)

	_, err := svc.Update(context.Background(), owner, "nonexistent", NotePatch{Title: strPtr("x")})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestUpdate_CrossUserIsNotFound: another user's note must look
// nonexistent, never forbidden.
func TestUpdate_CrossUserIsNotFound(t *testing.T) {
	svc, _ := newTestNoteService(t)
	note := mustCreate(t, svc, owner, CreateNoteInput{Title: "mine"})

	_, err := svc.Update(context.Background(), "user-mallory", note.ID, NotePatch{Title: strPtr("stolen")})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound (not forbidden)", err)
	}
}

func TestUpdate_MoveChecksCapacity(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	// Fill quadrant 2.
	for i := 0; i < model.MaxNotesPerQuadrant; i++ {
		mustCreate(t, svc, owner, CreateNoteInput{Title: fmt.Sprintf("q2 %d", i), Quadrant: 2})
	}
	inboxNote := mustCreate(t, svc, owner, CreateNoteInput{Title: "from inbox"})

	_, err := svc.Move(ctx, owner, inboxNote.ID, 2)
	if !errors.Is(err, apperror.ErrCapacity) {
		t.Errorf("move into full quadrant: error = %v, want ErrCapacity", err)
	}

	// Moving to the inbox is always allowed.
	q2note := mustCreate(t, svc, owner, CreateNoteInput{Title: "escape"}) // inbox
	if _, err := svc.Move(ctx, owner, q2note.ID, 0); err != nil {
		t.Errorf("move to inbox: unexpected error %v", err)
	}
}

// TestUpdate_SameQuadrantSkipsCapacityCheck: rewriting fields of a note
// already sitting in a full quadrant must not trip the capacity check —
// the note isn't entering the quadrant, it's already there.
func TestUpdate_SameQuadrantSkipsCapacityCheck(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	var last *model.Note
	for i := 0; i < model.MaxNotesPerQuadrant; i++ {
		last = mustCreate(t, svc, owner, CreateNoteInput{Title: fmt.Sprintf("q3 %d", i), Quadrant: 3})
	}

	q := 3
	_, err := svc.Update(ctx, owner, last.ID, NotePatch{Title: strPtr("edited"), Quadrant: &q})
	if err != nil {
		t.Errorf("same-quadrant update in a full quadrant: unexpected error %v", err)
	}
}

// TestUpdate_UnarchiveInPlaceSkipsCapacityCheck pins down a deliberate
// quirk: unarchiving without changing the quadrant does NOT re-check
// capacity, so a full quadrant can temporarily hold an 11th active note.
func TestUpdate_UnarchiveInPlaceSkipsCapacityCheck(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	parked := mustCreate(t, svc, owner, CreateNoteInput{Title: "parked", Quadrant: 4})
	if _, err := svc.Update(ctx, owner, parked.ID, NotePatch{IsArchived: boolPtr(true)}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	for i := 0; i < model.MaxNotesPerQuadrant; i++ {
		mustCreate(t, svc, owner, CreateNoteInput{Title: fmt.Sprintf("q4 %d", i), Quadrant: 4})
	}

	// Quadrant 4 now has 10 active notes; unarchiving in place still works.
	got, err := svc.Update(ctx, owner, parked.ID, NotePatch{IsArchived: boolPtr(false)})
	if err != nil {
		t.Errorf("unarchive in place: unexpected error %v", err)
	}
	if got != nil && got.IsArchived {
		t.Error("note still archived after unarchive")
	}
}

func TestUpdate_ArchiveViaPatch(t *testing.T) {
	svc, _ := newTestNoteService(t)

	note := mustCreate(t, svc, owner, CreateNoteInput{Title: "to archive", Quadrant: 1})
	got, err := svc.Update(context.Background(), owner, note.ID, NotePatch{IsArchived: boolPtr(true)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !got.IsArchived {
		t.Error("IsArchived = false after archiving patch")
	}
	// Quadrant value survives archiving.
	if got.Quadrant != 1 {
		t.Errorf("Quadrant = %d after archiving, want 1", got.Quadrant)
	}
}

func TestUpdate_EmptyTitleRejected(t *testing.T) {
	svc, _ := newTestNoteService(t)
	note := mustCreate(t, svc, owner, CreateNoteInput{Title: "has title"})

	_, err := svc.Update(context.Background(), owner, note.ID, NotePatch{Title: strPtr("  ")})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// REORDER TESTS
// =========================================================================

func TestReorder_EmptyBatchRejected(t *testing.T) {
	svc, _ := newTestNoteService(t)

	err := svc.Reorder(context.Background(), owner, nil)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestReorder_AppliesPositions(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, owner, CreateNoteInput{Title: "a", Quadrant: 1})
	b := mustCreate(t, svc, owner, CreateNoteInput{Title: "b", Quadrant: 1})

	err := svc.Reorder(ctx, owner, []repository.NoteReorder{
		{ID: a.ID, Quadrant: 1, Position: 2},
		{ID: b.ID, Quadrant: 1, Position: 1},
	})
	if err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}

	gotA, _ := svc.Get(ctx, owner, a.ID)
	if gotA.Position != 2 {
		t.Errorf("a.Position = %d, want 2", gotA.Position)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete_Success(t *testing.T) {
	svc, _ := newTestNoteService(t)
	note := mustCreate(t, svc, owner, CreateNoteInput{Title: "bye"})

	if err := svc.Delete(context.Background(), owner, note.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(context.Background(), owner, note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete: error = %v, want ErrNotFound", err)
	}
}

func TestDelete_CrossUserIsNotFound(t *testing.T) {
	svc, _ := newTestNoteService(t)
	note := mustCreate(t, svc, owner, CreateNoteInput{Title: "mine"})

	if err := svc.Delete(context.Background(), "user-mallory", note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("cross-user delete: error = %v, want ErrNotFound", err)
	}
}

// TestCapacityInvariant_MixedOperations runs a sequence of creates, moves
// and archives and asserts the invariant after each step: no priority
// quadrant ever holds more than 10 active notes.
func TestCapacityInvariant_MixedOperations(t *testing.T) {
	svc, repo := newTestNoteService(t)
	ctx := context.Background()

	assertInvariant := func(step string) {
		t.Helper()
		for q := 1; q <= 4; q++ {
			count, _ := repo.CountActiveNotes(ctx, owner, q)
			if count > model.MaxNotesPerQuadrant {
				t.Fatalf("%s: quadrant %d holds %d active notes", step, q, count)
			}
		}
	}

	var ids []string
	for i := 0; i < 25; i++ {
		n := mustCreate(t, svc, owner, CreateNoteInput{Title: fmt.Sprintf("n%d", i)})
		ids = append(ids, n.ID)
	}
	assertInvariant("after creates")

	// Push everything toward quadrant 1; failures past 10 are expected.
	moved := 0
	for _, id := range ids {
		if _, err := svc.Move(ctx, owner, id, 1); err == nil {
			moved++
		} else if !errors.Is(err, apperror.ErrCapacity) {
			t.Fatalf("move: unexpected error %v", err)
		}
		assertInvariant("during moves")
	}
	if moved != model.MaxNotesPerQuadrant {
		t.Errorf("moved %d notes into quadrant 1, want %d", moved, model.MaxNotesPerQuadrant)
	}

	// Archive one, another move fits.
	if _, err := svc.Update(ctx, owner, ids[0], NotePatch{IsArchived: boolPtr(true)}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := svc.Move(ctx, owner, ids[len(ids)-1], 1); err != nil {
		t.Errorf("move after archive should fit: %v", err)
	}
	assertInvariant("after archive+move")
}
