package client

// BOARD STATE CONTAINER:
// Board holds an in-memory cache of the owner's notes and applies every
// mutation optimistically — the cache changes first, the network request
// follows. The moving parts are kept deliberately separate:
//
//   Snapshot  — an immutable view of the note list. Reducers never modify
//               a snapshot; they return a new one.
//   reducers  — pure functions (Snapshot, action) → (Snapshot, Effect).
//               No I/O, fully deterministic, tested without a network.
//   Effect    — a description of the HTTP request that matches the local
//               change. The Board executes it after swapping snapshots.
//
// On success the server's response is reconciled into the cache
// (server-assigned fields win). On failure the pre-mutation snapshot is
// restored wholesale and the error surfaces to the caller.

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
	"github.com/ckyeon/eisenhower-matrix/internal/service"
)

// =========================================================================
// SNAPSHOT
// =========================================================================

// Snapshot is an immutable view of the board. The zero value is an empty
// board.
type Snapshot struct {
	notes []model.Note
}

// NewSnapshot builds a snapshot from a note list. The slice is copied.
func NewSnapshot(notes []model.Note) Snapshot {
	cp := make([]model.Note, len(notes))
	copy(cp, notes)
	return Snapshot{notes: cp}
}

// Notes returns a copy of all cached notes.
func (s Snapshot) Notes() []model.Note {
	cp := make([]model.Note, len(s.notes))
	copy(cp, s.notes)
	return cp
}

// Get returns the cached note with the given ID.
func (s Snapshot) Get(id string) (model.Note, bool) {
	for _, n := range s.notes {
		if n.ID == id {
			return n, true
		}
	}
	return model.Note{}, false
}

// ActiveCount returns the number of non-archived notes in a quadrant.
func (s Snapshot) ActiveCount(quadrant int) int {
	count := 0
	for _, n := range s.notes {
		if n.Quadrant == quadrant && !n.IsArchived {
			count++
		}
	}
	return count
}

// Quadrant returns the active notes of one quadrant, in cached order.
func (s Snapshot) Quadrant(quadrant int) []model.Note {
	var out []model.Note
	for _, n := range s.notes {
		if n.Quadrant == quadrant && !n.IsArchived {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the total number of cached notes, archived included.
func (s Snapshot) Len() int {
	return len(s.notes)
}

// withNote returns a new snapshot with one note replaced (matched by ID)
// or appended if absent.
func (s Snapshot) withNote(note model.Note) Snapshot {
	next := s.Notes()
	for i := range next {
		if next[i].ID == note.ID {
			next[i] = note
			return Snapshot{notes: next}
		}
	}
	return Snapshot{notes: append(next, note)}
}

// withoutNote returns a new snapshot with one note removed.
func (s Snapshot) withoutNote(id string) Snapshot {
	next := make([]model.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if n.ID != id {
			next = append(next, n)
		}
	}
	return Snapshot{notes: next}
}

// merge returns a new snapshot with the given notes added, skipping any
// ID already present. Used by the second (archived) load so a note that
// flipped state between the two requests isn't duplicated.
func (s Snapshot) merge(notes []model.Note) Snapshot {
	seen := make(map[string]bool, len(s.notes))
	for _, n := range s.notes {
		seen[n.ID] = true
	}
	next := s.Notes()
	for _, n := range notes {
		if !seen[n.ID] {
			next = append(next, n)
		}
	}
	return Snapshot{notes: next}
}

// =========================================================================
// EFFECTS
// =========================================================================

// EffectKind says which API call matches a local change.
type EffectKind int

const (
	EffectNone EffectKind = iota // local-only change, nothing to send
	EffectCreate
	EffectUpdate
	EffectDelete
	EffectReorder
)

// Effect describes the network request a reducer's local change requires.
// Reducers return effects instead of performing I/O so the transition
// logic stays pure and testable.
type Effect struct {
	Kind    EffectKind
	NoteID  string
	Create  CreateNoteInput
	Patch   service.NotePatch
	Updates []repository.NoteReorder
}

// =========================================================================
// REDUCERS
// =========================================================================
//
// Each reducer validates against the current snapshot, produces the next
// snapshot, and describes the matching effect. They never touch the
// network.

// reduceCreate adds a note with a placeholder ID. The reconcile step
// replaces it with the server's note once the create succeeds.
func reduceCreate(s Snapshot, in CreateNoteInput) (Snapshot, Effect, string) {
	placeholder := model.Note{
		ID:          "pending-" + xid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Quadrant:    in.Quadrant,
		DueDate:     in.DueDate,
	}
	return s.withNote(placeholder), Effect{Kind: EffectCreate, Create: in}, placeholder.ID
}

// reduceUpdate overlays a patch onto the cached note.
func reduceUpdate(s Snapshot, id string, patch service.NotePatch) (Snapshot, Effect, error) {
	note, ok := s.Get(id)
	if !ok {
		return s, Effect{}, fmt.Errorf("board: no cached note %q", id)
	}

	if patch.Title != nil {
		note.Title = *patch.Title
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

	return s.withNote(note), Effect{Kind: EffectUpdate, NoteID: id, Patch: patch}, nil
}

// reduceDelete removes the note from the cache.
func reduceDelete(s Snapshot, id string) (Snapshot, Effect, error) {
	if _, ok := s.Get(id); !ok {
		return s, Effect{}, fmt.Errorf("board: no cached note %q", id)
	}
	return s.withoutNote(id), Effect{Kind: EffectDelete, NoteID: id}, nil
}

// reduceReorder applies a batch of position/quadrant changes locally.
func reduceReorder(s Snapshot, updates []repository.NoteReorder) (Snapshot, Effect, error) {
	next := s
	for _, u := range updates {
		note, ok := s.Get(u.ID)
		if !ok {
			return s, Effect{}, fmt.Errorf("board: no cached note %q", u.ID)
		}
		note.Quadrant = u.Quadrant
		note.Position = u.Position
		next = next.withNote(note)
	}
	return next, Effect{Kind: EffectReorder, Updates: updates}, nil
}

// =========================================================================
// BOARD
// =========================================================================

// Board is the stateful shell around the pure snapshot/reducer core: it
// holds the current snapshot, runs effects against the API client, and
// rolls back on failure. Safe for concurrent use, but the optimistic
// model assumes no two mutations target the same note at once.
type Board struct {
	api *Client

	mu      sync.Mutex
	current Snapshot
	drag    *dragState
}

// NewBoard creates an empty board backed by the given API client.
func NewBoard(api *Client) *Board {
	return &Board{api: api}
}

// Snapshot returns the current board state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Load populates the cache with two sequenced requests: active notes
// first — so the board can render immediately — then archived notes
// merged in without duplicating IDs.
//
// A failed first load leaves the board empty rather than half-populated.
// A failed second load keeps the active notes: an incomplete archive list
// is better than an empty board.
func (b *Board) Load(ctx context.Context) error {
	active, err := b.api.ListNotes(ctx, NoteFilter{})
	if err != nil {
		b.setSnapshot(Snapshot{})
		return err
	}
	b.setSnapshot(NewSnapshot(active))

	archived, err := b.api.ListNotes(ctx, NoteFilter{Archived: true})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.current = b.current.merge(archived)
	b.mu.Unlock()
	return nil
}

func (b *Board) setSnapshot(s Snapshot) {
	b.mu.Lock()
	b.current = s
	b.mu.Unlock()
}

// Create adds a note optimistically and reconciles it with the server's
// response. On failure the placeholder disappears again.
func (b *Board) Create(ctx context.Context, in CreateNoteInput) (*model.Note, error) {
	b.mu.Lock()
	before := b.current
	next, _, placeholderID := reduceCreate(b.current, in)
	b.current = next
	b.mu.Unlock()

	created, err := b.api.CreateNote(ctx, in)
	if err != nil {
		b.setSnapshot(before)
		return nil, err
	}

	// Swap the placeholder for the authoritative note.
	b.mu.Lock()
	b.current = b.current.withoutNote(placeholderID).withNote(*created)
	b.mu.Unlock()
	return created, nil
}

// Update patches a note optimistically.
func (b *Board) Update(ctx context.Context, id string, patch service.NotePatch) (*model.Note, error) {
	b.mu.Lock()
	before := b.current
	next, _, err := reduceUpdate(b.current, id, patch)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.current = next
	b.mu.Unlock()

	updated, err := b.api.UpdateNote(ctx, id, patch)
	if err != nil {
		b.setSnapshot(before)
		return nil, err
	}

	b.mu.Lock()
	b.current = b.current.withNote(*updated)
	b.mu.Unlock()
	return updated, nil
}

// Archive and Unarchive are Update with the is_archived flag.
func (b *Board) Archive(ctx context.Context, id string) (*model.Note, error) {
	archived := true
	return b.Update(ctx, id, service.NotePatch{IsArchived: &archived})
}

func (b *Board) Unarchive(ctx context.Context, id string) (*model.Note, error) {
	archived := false
	return b.Update(ctx, id, service.NotePatch{IsArchived: &archived})
}

// Move changes a note's quadrant.
func (b *Board) Move(ctx context.Context, id string, quadrant int) (*model.Note, error) {
	return b.Update(ctx, id, service.NotePatch{Quadrant: &quadrant})
}

// Delete removes a note optimistically.
func (b *Board) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	before := b.current
	next, _, err := reduceDelete(b.current, id)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.current = next
	b.mu.Unlock()

	if err := b.api.DeleteNote(ctx, id); err != nil {
		b.setSnapshot(before)
		return err
	}
	return nil
}

// Reorder applies a batch of moves optimistically; the server call is
// atomic, so rollback restores every note in the batch.
func (b *Board) Reorder(ctx context.Context, updates []repository.NoteReorder) error {
	b.mu.Lock()
	before := b.current
	next, _, err := reduceReorder(b.current, updates)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.current = next
	b.mu.Unlock()

	if err := b.api.Reorder(ctx, updates); err != nil {
		b.setSnapshot(before)
		return err
	}
	return nil
}

// =========================================================================
// DRAG AND DROP
// =========================================================================

// dragState tracks one in-flight drag. The snapshot taken at BeginDrag is
// the rollback point for CancelDrag and for a rejected Drop.
type dragState struct {
	noteID   string
	origin   int // quadrant the drag started from
	snapshot Snapshot
}

// ErrDragCapacity is wrapped into Drop's error when the local pre-check
// finds the destination quadrant full.
var ErrDragCapacity = fmt.Errorf("board: destination quadrant is full")

// BeginDrag starts dragging a note. Only one drag can be active.
func (b *Board) BeginDrag(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.drag != nil {
		return fmt.Errorf("board: drag already in progress")
	}
	note, ok := b.current.Get(id)
	if !ok {
		return fmt.Errorf("board: no cached note %q", id)
	}

	b.drag = &dragState{
		noteID:   id,
		origin:   note.Quadrant,
		snapshot: b.current,
	}
	return nil
}

// HoverQuadrant previews the dragged note in a quadrant: the cache updates
// in real time so the UI renders the note in its would-be column. No
// request is sent — hovering is free.
func (b *Board) HoverQuadrant(quadrant int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.drag == nil {
		return fmt.Errorf("board: no drag in progress")
	}
	if !model.ValidQuadrant(quadrant) {
		return fmt.Errorf("board: invalid quadrant %d", quadrant)
	}

	note, _ := b.current.Get(b.drag.noteID)
	note.Quadrant = quadrant
	b.current = b.current.withNote(note)
	return nil
}

// Drop finalizes the drag. A request goes out only if the note's final
// quadrant differs from where the drag started; dropping back home is a
// pure UI gesture.
//
// LOCAL PRE-CHECK:
// Before issuing the move, the destination (if a priority quadrant) must
// have fewer than 10 active notes, not counting the dragged note itself.
// This mirrors the server-side check so the common case fails fast and
// offline — the server still has the final word.
func (b *Board) Drop(ctx context.Context) (*model.Note, error) {
	b.mu.Lock()
	if b.drag == nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("board: no drag in progress")
	}
	drag := b.drag
	b.drag = nil

	note, _ := b.current.Get(drag.noteID)
	dest := note.Quadrant

	if dest == drag.origin {
		b.mu.Unlock()
		return &note, nil
	}

	if dest != model.QuadrantUnclassified {
		// The dragged note is already previewed in dest, so exclude it
		// from the count.
		count := b.current.ActiveCount(dest)
		if !note.IsArchived {
			count--
		}
		if count >= model.MaxNotesPerQuadrant {
			b.current = drag.snapshot
			b.mu.Unlock()
			return nil, fmt.Errorf("%w: quadrant %d", ErrDragCapacity, dest)
		}
	}

	// Roll the preview back before the optimistic update so a failed
	// request restores the pre-drag state, not the preview.
	b.current = drag.snapshot
	b.mu.Unlock()

	return b.Move(ctx, drag.noteID, dest)
}

// CancelDrag abandons the drag and restores the pre-drag snapshot.
func (b *Board) CancelDrag() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.drag == nil {
		return
	}
	b.current = b.drag.snapshot
	b.drag = nil
}
