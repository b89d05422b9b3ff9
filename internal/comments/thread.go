// Package comments manages the paginated comment thread attached to one
// article: page loads, confirm-first creation, and owner-gated edits and
// deletes, reconciled against the current session identity.
package comments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/travelo/travelo-cli/internal/backend"
	"github.com/travelo/travelo-cli/internal/notify"
	"github.com/travelo/travelo-cli/pkg/models"
)

// DefaultPageSize matches the backend's default comment page
const DefaultPageSize = 5

// Doer executes backend requests; satisfied by the gateway
type Doer interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
}

// Identity exposes the acting user; satisfied by the session manager
type Identity interface {
	CurrentUser() *models.User
}

// Thread owns the comment state for one article. Comments are kept
// newest-first: pages append at the tail in server order, a freshly posted
// comment is prepended regardless of pagination state. One Thread per
// article; threads are never shared between controllers.
type Thread struct {
	articleID int64
	pageSize  int
	requests  Doer
	identity  Identity
	notifier  notify.Notifier

	// onCountChange reports confirmed +1/-1 changes so the owning article
	// aggregate can adjust its comment count
	onCountChange func(delta int)

	mu        sync.Mutex
	items     []models.Comment
	total     int
	nextPage  int
	exhausted bool
	loading   bool
	posting   bool
	pending   map[int64]bool

	// transient view state, not part of the thread's durable data
	activeMenuID int64
}

// Option configures a Thread
type Option func(*Thread)

// WithPageSize overrides the page size
func WithPageSize(n int) Option {
	return func(t *Thread) {
		if n > 0 {
			t.pageSize = n
		}
	}
}

// WithCountObserver registers a callback for confirmed count changes
func WithCountObserver(fn func(delta int)) Option {
	return func(t *Thread) { t.onCountChange = fn }
}

// NewThread creates the controller for one article's comments
func NewThread(articleID int64, requests Doer, identity Identity, notifier notify.Notifier, opts ...Option) *Thread {
	t := &Thread{
		articleID: articleID,
		pageSize:  DefaultPageSize,
		requests:  requests,
		identity:  identity,
		notifier:  notifier,
		nextPage:  1,
		pending:   make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Comments returns a copy of the current thread, newest first
func (t *Thread) Comments() []models.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Comment, len(t.items))
	copy(out, t.items)
	return out
}

// Total returns the last server-reported count adjusted by local
// confirmed changes
func (t *Thread) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Exhausted reports whether every comment has been fetched
func (t *Thread) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exhausted
}

// LoadNextPage fetches the next page of comments. It is a no-op when the
// thread is exhausted or a load is already in flight; page loads for one
// thread are never concurrent.
func (t *Thread) LoadNextPage(ctx context.Context) error {
	t.mu.Lock()
	if t.exhausted || t.loading {
		t.mu.Unlock()
		return nil
	}
	t.loading = true
	page := t.nextPage
	t.mu.Unlock()

	path := fmt.Sprintf("/articles/%d/comments?page=%d&limit=%d", t.articleID, page, t.pageSize)
	var resp models.CommentPage
	err := t.requests.Do(ctx, http.MethodGet, path, nil, &resp)

	t.mu.Lock()
	t.loading = false
	if err != nil {
		t.mu.Unlock()
		msg := messageOf(err, "Could not load comments.")
		t.notifier.Error(msg)
		return backend.NewError(kindOf(err), msg)
	}

	// Append in server order, skipping anything already present: a comment
	// posted while earlier pages were displayed shows up again when the
	// page boundary reaches it.
	seen := make(map[int64]bool, len(t.items))
	for _, c := range t.items {
		seen[c.ID] = true
	}
	for _, c := range resp.Comments {
		if !seen[c.ID] {
			t.items = append(t.items, c)
		}
	}
	t.total = resp.Total
	t.nextPage = page + 1
	// The head can hold more items than page arithmetic accounts for, so
	// "has more" is reconciled against the server count, not page index.
	t.exhausted = len(t.items) >= t.total
	t.mu.Unlock()

	log.Debug().Int64("article_id", t.articleID).Int("page", page).
		Int("loaded", len(resp.Comments)).Int("total", resp.Total).Msg("comment page loaded")
	return nil
}

// Post creates a comment. Creation is confirm-first: nothing is shown
// until the server returns the stored comment, which is then prepended.
// Requires a signed-in session.
func (t *Thread) Post(ctx context.Context, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, t.fail(backend.KindValidation, "Please enter a comment.")
	}
	if t.identity.CurrentUser() == nil {
		return nil, t.fail(backend.KindUnauthenticated, "Please log in to comment.")
	}

	t.mu.Lock()
	if t.posting {
		t.mu.Unlock()
		return nil, t.fail(backend.KindRejected, "A comment is already being posted.")
	}
	t.posting = true
	t.mu.Unlock()

	path := fmt.Sprintf("/articles/%d/comments", t.articleID)
	var created models.Comment
	err := t.requests.Do(ctx, http.MethodPost, path, map[string]string{"content": content}, &created)

	t.mu.Lock()
	t.posting = false
	if err != nil {
		t.mu.Unlock()
		msg := failureMessage(err, "Could not post the comment.")
		t.notifier.Error(msg)
		return nil, backend.NewError(kindOf(err), msg)
	}
	t.items = append([]models.Comment{created}, t.items...)
	t.total++
	t.exhausted = len(t.items) >= t.total
	t.mu.Unlock()

	if t.onCountChange != nil {
		t.onCountChange(+1)
	}
	t.notifier.Success("Comment posted!")
	return &created, nil
}

// Edit replaces a comment's content. The ownership pre-check is client-side
// UX only; the server stays authoritative and its forbidden answer maps to
// a message distinct from "please log in".
func (t *Thread) Edit(ctx context.Context, commentID int64, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, t.fail(backend.KindValidation, "Please enter a comment.")
	}
	if err := t.beginMutation(commentID, "edit"); err != nil {
		return nil, err
	}
	defer t.endMutation(commentID)

	path := fmt.Sprintf("/articles/%d/comments/%d", t.articleID, commentID)
	var updated models.Comment
	err := t.requests.Do(ctx, http.MethodPut, path, map[string]string{"content": content}, &updated)
	if err != nil {
		msg := failureMessage(err, "Could not update the comment.")
		t.notifier.Error(msg)
		return nil, backend.NewError(kindOf(err), msg)
	}

	t.mu.Lock()
	for i := range t.items {
		if t.items[i].ID == updated.ID {
			t.items[i] = updated
			break
		}
	}
	t.mu.Unlock()

	t.notifier.Success("Comment updated!")
	return &updated, nil
}

// Delete removes a comment. Same ownership gate as Edit; no soft delete,
// no undo.
func (t *Thread) Delete(ctx context.Context, commentID int64) error {
	if err := t.beginMutation(commentID, "delete"); err != nil {
		return err
	}
	defer t.endMutation(commentID)

	path := fmt.Sprintf("/articles/%d/comments/%d", t.articleID, commentID)
	if err := t.requests.Do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		msg := failureMessage(err, "Could not delete the comment.")
		t.notifier.Error(msg)
		return backend.NewError(kindOf(err), msg)
	}

	t.mu.Lock()
	for i := range t.items {
		if t.items[i].ID == commentID {
			t.items = append(t.items[:i], t.items[i+1:]...)
			break
		}
	}
	t.total--
	t.mu.Unlock()

	if t.onCountChange != nil {
		t.onCountChange(-1)
	}
	t.notifier.Success("Comment deleted!")
	return nil
}

// beginMutation runs the local gates shared by Edit and Delete: the user
// must be signed in, must own the comment, and no other mutation of the
// same comment may be in flight. Every rejection happens before any
// network call. Starting a mutation closes the action menu.
func (t *Thread) beginMutation(commentID int64, verb string) error {
	user := t.identity.CurrentUser()
	if user == nil {
		return t.fail(backend.KindUnauthenticated, "Please log in.")
	}

	t.mu.Lock()
	t.activeMenuID = 0
	var target *models.Comment
	for i := range t.items {
		if t.items[i].ID == commentID {
			target = &t.items[i]
			break
		}
	}
	if target == nil {
		t.mu.Unlock()
		return t.fail(backend.KindNotFound, "Comment not found.")
	}
	if target.Author.ID != user.ID {
		t.mu.Unlock()
		return t.fail(backend.KindForbidden, fmt.Sprintf("You are not allowed to %s this comment.", verb))
	}
	if t.pending[commentID] {
		t.mu.Unlock()
		return t.fail(backend.KindRejected, "Another change to this comment is still in progress.")
	}
	t.pending[commentID] = true
	t.mu.Unlock()
	return nil
}

func (t *Thread) endMutation(commentID int64) {
	t.mu.Lock()
	delete(t.pending, commentID)
	t.mu.Unlock()
}

// fail notifies a local rejection once and returns it as a typed error
func (t *Thread) fail(kind backend.Kind, msg string) error {
	t.notifier.Error(msg)
	return backend.NewError(kind, msg)
}

// ToggleMenu opens a comment's action menu, or closes it when it is the
// one already open
func (t *Thread) ToggleMenu(commentID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activeMenuID == commentID {
		t.activeMenuID = 0
	} else {
		t.activeMenuID = commentID
	}
}

// ActiveMenu returns the id of the open action menu, 0 when none
func (t *Thread) ActiveMenu() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeMenuID
}

// CloseMenu closes any open action menu
func (t *Thread) CloseMenu() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeMenuID = 0
}

// failureMessage maps a backend failure to the user-facing message,
// keeping the login prompt distinct from the permission denial
func failureMessage(err error, fallback string) string {
	var be *backend.Error
	if errors.As(err, &be) {
		switch be.Kind {
		case backend.KindUnauthenticated:
			return "Please log in again."
		case backend.KindForbidden:
			if be.Message != "" {
				return be.Message
			}
			return "You do not have permission to do that."
		}
		if be.Message != "" {
			return be.Message
		}
	}
	return fallback
}

func messageOf(err error, fallback string) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func kindOf(err error) backend.Kind {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return backend.KindNetwork
}
