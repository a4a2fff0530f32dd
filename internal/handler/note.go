package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ckyeon/eisenhower-matrix/internal/apperror"
	"github.com/ckyeon/eisenhower-matrix/internal/auth"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
	"github.com/ckyeon/eisenhower-matrix/internal/service"
)

// NoteHandler exposes the note CRUD and reorder endpoints. Every route is
// behind auth.RequireAuth, so the user ID always comes from the verified
// token claims — never from the request body or URL.
type NoteHandler struct {
	notes  *service.NoteService
	logger *slog.Logger
}

func NewNoteHandler(notes *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, logger: logger}
}

type createNoteRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Quadrant    int        `json:"quadrant"`
	DueDate     *time.Time `json:"due_date"`
}

type reorderRequest struct {
	Updates []repository.NoteReorder `json:"updates"`
}

// userID pulls the authenticated user's ID out of the request context.
// The middleware guarantees claims are present on every route this handler
// serves; the ok-check is for the impossible case of a misconfigured router.
func userID(r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return "", false
	}
	return claims.UserID, true
}

// HandleList returns the caller's notes.
//
// HTTP: GET /notes
// Query:
//   - (none)          → active notes only
//   - ?archived=true  → archived notes only
//   - ?all=true       → everything
//
// Notes come back sorted by quadrant, then position, then newest first —
// ready to render without client-side sorting.
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userID(r)
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	filter := repository.NoteFilter{
		All:      r.URL.Query().Get("all") == "true",
		Archived: r.URL.Query().Get("archived") == "true",
	}

	notes, err := h.notes.List(r.Context(), ownerID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	// Encode an empty list as [], not null.
	writeJSON(w, http.StatusOK, notes)
}

// HandleGet returns a single note by ID.
//
// HTTP: GET /notes/{id}
//
// A note belonging to someone else returns 404, not 403 — the API never
// confirms that a foreign note exists.
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userID(r)
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	note, err := h.notes.Get(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleCreate creates a note.
//
// HTTP: POST /notes
// Body: {"title": "...", "description": "...", "content": "...", "quadrant": 1, "due_date": "..."}
//
// Responses:
//   - 201 with the created note (server-assigned id, position, created_at)
//   - 400 validation_error (missing title, bad quadrant)
//   - 400 capacity_exceeded (priority quadrant already holds 10 active notes)
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userID(r)
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	note, err := h.notes.Create(r.Context(), ownerID, service.CreateNoteInput{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Quadrant:    req.Quadrant,
		DueDate:     req.DueDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// HandleUpdate applies a partial update to a note.
//
// HTTP: PUT /notes/{id}
// Body: any subset of {"title", "description", "content", "quadrant",
// "position", "due_date", "is_archived"}
//
// Only the fields present in the body change; omitted fields keep their
// stored values. Archiving is just {"is_archived": true}. A body with no
// recognised fields is a no-op that returns the unchanged note.
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userID(r)
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var patch service.NotePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	note, err := h.notes.Update(r.Context(), ownerID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleDelete permanently deletes a note.
//
// HTTP: DELETE /notes/{id}
//
// Responses:
//   - 200 {"message": "note deleted"}
//   - 404 not_found (no such note, or not yours)
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userID(r)
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	if err := h.notes.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "note deleted"})
}

// HandleReorder applies a batch of position/quadrant moves atomically.
//
// HTTP: PUT /notes/reorder/batch
// Body: {"updates": [{"id": "...", "quadrant": 1, "position": 2}, ...]}
//
// ALL OR NOTHING:
// The whole batch runs in one transaction. If any entry names a note that
// doesn't exist (or isn't yours), no positions change at all — a partial
// reorder would leave the board visibly scrambled.
func (h *NoteHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userID(r)
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	if err := h.notes.Reorder(r.Context(), ownerID, req.Updates); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "notes reordered"})
}
