// Package client is a Go client for the eisenhower-matrix API.
//
// It owns the session tokens and handles the expiry dance transparently:
// when a request bounces with 401, the client silently exchanges its
// refresh token for a new access token and retries the request once. The
// caller never sees the 401. If the refresh itself fails — revoked token,
// logged out elsewhere — the session is cleared and the original error
// surfaces so the caller can send the user back to login.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ckyeon/eisenhower-matrix/internal/model"
	"github.com/ckyeon/eisenhower-matrix/internal/repository"
	"github.com/ckyeon/eisenhower-matrix/internal/service"
)

// ErrSessionExpired is returned when a request fails with 401 and the
// refresh token can no longer buy a new access token. The caller must
// log in again.
var ErrSessionExpired = errors.New("client: session expired")

// APIError is a non-2xx response decoded from the server's standard error
// body.
type APIError struct {
	StatusCode int
	Type       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// IsCapacityError reports whether err is the server rejecting a note
// because the target quadrant is full. Callers use it to tell "pick
// another quadrant" apart from real failures.
func IsCapacityError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == "capacity_exceeded"
}

// Session holds the tokens and user identity from a login.
type Session struct {
	AccessToken  string           `json:"token"`
	RefreshToken string           `json:"refreshToken"`
	User         model.PublicUser `json:"user"`
}

// Client talks to one eisenhower-matrix server on behalf of one user.
// Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session Session
}

// New creates a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetSession installs tokens obtained elsewhere (e.g. restored from disk).
func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Session returns a copy of the current session. Empty after logout or
// expiry.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccessToken
}

func (c *Client) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{}
}

// =========================================================================
// AUTH
// =========================================================================

// Signup registers a new account. It does not log in; call Login next.
func (c *Client) Signup(ctx context.Context, nickname, password string) error {
	body := map[string]string{"nickname": nickname, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/signup", body, nil)
}

// Login authenticates and stores the session on the client.
func (c *Client) Login(ctx context.Context, nickname, password string) (Session, error) {
	body := map[string]string{"nickname": nickname, "password": password}

	var s Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &s); err != nil {
		return Session{}, err
	}

	c.SetSession(s)
	return s, nil
}

// Logout revokes the refresh token server-side and forgets the session.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.session.RefreshToken
	c.mu.Unlock()

	if refresh == "" {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": refresh}, nil)
	c.clearSession()
	return err
}

// refreshAccessToken swaps the stored refresh token for a new access
// token. On failure the whole session is dropped — a dead refresh token
// has no further use.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.session.RefreshToken
	c.mu.Unlock()

	if refresh == "" {
		return ErrSessionExpired
	}

	var res struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refresh}, &res)
	if err != nil {
		c.clearSession()
		return ErrSessionExpired
	}

	c.mu.Lock()
	c.session.AccessToken = res.Token
	c.mu.Unlock()
	return nil
}

// =========================================================================
// NOTES
// =========================================================================

// NoteFilter selects which notes ListNotes returns.
type NoteFilter struct {
	Archived bool // only archived notes
	All      bool // everything, overrides Archived
}

// ListNotes returns notes in board order.
func (c *Client) ListNotes(ctx context.Context, filter NoteFilter) ([]model.Note, error) {
	q := url.Values{}
	if filter.All {
		q.Set("all", "true")
	} else if filter.Archived {
		q.Set("archived", "true")
	}

	path := "/notes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var notes []model.Note
	if err := c.doAuthed(ctx, http.MethodGet, path, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// CreateNoteInput mirrors the create endpoint's body.
type CreateNoteInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	Quadrant    int        `json:"quadrant"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// CreateNote creates a note and returns it with the server-assigned
// id, position, and created_at.
func (c *Client) CreateNote(ctx context.Context, in CreateNoteInput) (*model.Note, error) {
	var note model.Note
	if err := c.doAuthed(ctx, http.MethodPost, "/notes", in, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// GetNote fetches a single note by ID.
func (c *Client) GetNote(ctx context.Context, id string) (*model.Note, error) {
	var note model.Note
	if err := c.doAuthed(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote applies a partial update and returns the updated note.
// Nil fields in the patch are left unchanged server-side.
func (c *Client) UpdateNote(ctx context.Context, id string, patch service.NotePatch) (*model.Note, error) {
	var note model.Note
	if err := c.doAuthed(ctx, http.MethodPut, "/notes/"+url.PathEscape(id), patch, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote permanently deletes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.doAuthed(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
}

// Reorder applies a batch of position/quadrant moves atomically.
func (c *Client) Reorder(ctx context.Context, updates []repository.NoteReorder) error {
	body := map[string]interface{}{"updates": updates}
	return c.doAuthed(ctx, http.MethodPut, "/notes/reorder/batch", body, nil)
}

// =========================================================================
// TRANSPORT
// =========================================================================

// doAuthed runs an authenticated request, silently refreshing the access
// token and retrying once on 401.
func (c *Client) doAuthed(ctx context.Context, method, path string, body, out interface{}) error {
	err := c.do(ctx, method, path, body, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	// Access token expired mid-session: refresh and replay the request.
	// Only once — a second 401 means the problem isn't expiry.
	if refreshErr := c.refreshAccessToken(ctx); refreshErr != nil {
		return refreshErr
	}
	return c.do(ctx, method, path, body, out)
}

// do runs one HTTP round trip: encode body, attach bearer token, decode
// the response into out (or into an *APIError on non-2xx).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf io.Reader
	if body != nil {
		b := new(bytes.Buffer)
		if err := json.NewEncoder(b).Encode(body); err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		buf = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.accessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if decodeErr := json.NewDecoder(res.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Type = "unknown"
			apiErr.Message = "status " + strconv.Itoa(res.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("client: decoding response: %w", err)
		}
	}
	return nil
}
