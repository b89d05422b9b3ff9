package comments

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelo/travelo-cli/internal/backend"
	"github.com/travelo/travelo-cli/internal/notify"
	"github.com/travelo/travelo-cli/pkg/models"
)

// threadBackend fakes the comment endpoints behind the Doer interface and
// counts every call, so tests can assert that local rejections never reach
// the network.
type threadBackend struct {
	mu       sync.Mutex
	comments []models.Comment // newest first, as the server orders them
	nextID   int64
	calls    int
	failWith *backend.Error // when set, every call fails with this
	barrier  chan struct{}  // when set, calls block until it closes
}

func newThreadBackend(seed ...models.Comment) *threadBackend {
	return &threadBackend{comments: seed, nextID: 1000}
}

func (b *threadBackend) Do(ctx context.Context, method, path string, body, out interface{}) error {
	b.mu.Lock()
	b.calls++
	barrier := b.barrier
	b.mu.Unlock()
	if barrier != nil {
		<-barrier
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}

	switch {
	case method == http.MethodGet:
		page, limit := pageParams(path)
		start := (page - 1) * limit
		end := start + limit
		if start > len(b.comments) {
			start = len(b.comments)
		}
		if end > len(b.comments) {
			end = len(b.comments)
		}
		*out.(*models.CommentPage) = models.CommentPage{
			Comments: append([]models.Comment(nil), b.comments[start:end]...),
			Total:    len(b.comments),
		}
	case method == http.MethodPost:
		b.nextID++
		created := models.Comment{
			ID:      b.nextID,
			Content: body.(map[string]string)["content"],
			Author:  models.CommentAuthor{ID: 12, Username: "huong"},
		}
		b.comments = append([]models.Comment{created}, b.comments...)
		*out.(*models.Comment) = created
	case method == http.MethodPut:
		id := trailingID(path)
		for i := range b.comments {
			if b.comments[i].ID == id {
				b.comments[i].Content = body.(map[string]string)["content"]
				*out.(*models.Comment) = b.comments[i]
				return nil
			}
		}
		return backend.NewError(backend.KindNotFound, "")
	case method == http.MethodDelete:
		id := trailingID(path)
		for i := range b.comments {
			if b.comments[i].ID == id {
				b.comments = append(b.comments[:i], b.comments[i+1:]...)
				return nil
			}
		}
		return backend.NewError(backend.KindNotFound, "")
	}
	return nil
}

func (b *threadBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func pageParams(path string) (page, limit int) {
	page, limit = 1, DefaultPageSize
	if i := strings.Index(path, "?"); i >= 0 {
		for _, kv := range strings.Split(path[i+1:], "&") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			n, _ := strconv.Atoi(parts[1])
			switch parts[0] {
			case "page":
				page = n
			case "limit":
				limit = n
			}
		}
	}
	return page, limit
}

func trailingID(path string) int64 {
	parts := strings.Split(path, "/")
	id, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	return id
}

type fakeIdentity struct {
	user *models.User
}

func (f *fakeIdentity) CurrentUser() *models.User { return f.user }

func seedComments(n int) []models.Comment {
	out := make([]models.Comment, n)
	for i := range out {
		// Newest first: ids descend
		out[i] = models.Comment{
			ID:      int64(n - i),
			Content: fmt.Sprintf("comment %d", n-i),
			Author:  models.CommentAuthor{ID: 12, Username: "huong"},
		}
	}
	return out
}

func loggedIn() *fakeIdentity {
	return &fakeIdentity{user: &models.User{ID: 12, Username: "huong", Role: models.RoleUser}}
}

func TestPaginationSevenCommentsLimitFive(t *testing.T) {
	fake := newThreadBackend(seedComments(7)...)
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})

	require.NoError(t, thread.LoadNextPage(context.Background()))
	assert.Len(t, thread.Comments(), 5)
	assert.Equal(t, 7, thread.Total())
	assert.False(t, thread.Exhausted())

	require.NoError(t, thread.LoadNextPage(context.Background()))
	items := thread.Comments()
	assert.Len(t, items, 7)
	assert.True(t, thread.Exhausted())

	// Server order preserved, no duplication across the page boundary
	var ids []int64
	for _, c := range items {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{7, 6, 5, 4, 3, 2, 1}, ids)

	// A further load is a no-op
	calls := fake.callCount()
	require.NoError(t, thread.LoadNextPage(context.Background()))
	assert.Equal(t, calls, fake.callCount())
}

func TestLoadNextPageSerialized(t *testing.T) {
	fake := newThreadBackend(seedComments(7)...)
	fake.barrier = make(chan struct{})
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})

	done := make(chan error, 1)
	go func() { done <- thread.LoadNextPage(context.Background()) }()

	// Wait for the first load to reach the backend
	for fake.callCount() == 0 {
	}
	// A second load while one is in flight is a no-op
	require.NoError(t, thread.LoadNextPage(context.Background()))
	assert.Equal(t, 1, fake.callCount())

	close(fake.barrier)
	require.NoError(t, <-done)
	assert.Len(t, thread.Comments(), 5)
}

func TestPostRequiresLogin(t *testing.T) {
	fake := newThreadBackend(seedComments(2)...)
	recorder := notify.NewRecorder()
	thread := NewThread(1, fake, &fakeIdentity{}, recorder)

	_, err := thread.Post(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindUnauthenticated))
	assert.Equal(t, 0, fake.callCount(), "anonymous post must not reach the network")
	assert.Empty(t, thread.Comments())

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Level)
}

func TestPostEmptyContentRejectedLocally(t *testing.T) {
	fake := newThreadBackend()
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})

	_, err := thread.Post(context.Background(), "   \n")
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindValidation))
	assert.Equal(t, 0, fake.callCount())
}

func TestPostPrependsConfirmedComment(t *testing.T) {
	fake := newThreadBackend(seedComments(7)...)
	var countDelta int
	thread := NewThread(1, fake, loggedIn(), notify.Discard{},
		WithCountObserver(func(delta int) { countDelta += delta }))

	require.NoError(t, thread.LoadNextPage(context.Background()))

	created, err := thread.Post(context.Background(), "fresh take")
	require.NoError(t, err)

	items := thread.Comments()
	require.NotEmpty(t, items)
	assert.Equal(t, created.ID, items[0].ID, "confirmed comment is prepended")
	assert.Equal(t, 8, thread.Total())
	assert.Equal(t, +1, countDelta)
}

func TestPostedCommentNotDuplicatedByLaterPage(t *testing.T) {
	fake := newThreadBackend(seedComments(7)...)
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})

	require.NoError(t, thread.LoadNextPage(context.Background()))
	_, err := thread.Post(context.Background(), "mid-pagination")
	require.NoError(t, err)

	// The head now holds 6 items although only one page was fetched; the
	// exhaustion check reconciles against the server count, so more pages
	// remain, and the prepended comment must not reappear.
	assert.False(t, thread.Exhausted())
	require.NoError(t, thread.LoadNextPage(context.Background()))

	seen := map[int64]int{}
	for _, c := range thread.Comments() {
		seen[c.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "comment %d appears %d times", id, n)
	}
	assert.Len(t, thread.Comments(), 8)
	assert.True(t, thread.Exhausted())
}

func TestEditRejectedForOtherUsersComment(t *testing.T) {
	other := models.Comment{ID: 99, Content: "not yours", Author: models.CommentAuthor{ID: 55, Username: "minh"}}
	fake := newThreadBackend(other)
	recorder := notify.NewRecorder()
	thread := NewThread(1, fake, loggedIn(), recorder)
	require.NoError(t, thread.LoadNextPage(context.Background()))

	before := thread.Comments()
	calls := fake.callCount()

	_, err := thread.Edit(context.Background(), 99, "hijack")
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindForbidden),
		"ownership rejection must be Forbidden, not Unauthenticated")
	assert.Equal(t, calls, fake.callCount(), "rejected without a network call")

	if diff := cmp.Diff(before, thread.Comments()); diff != "" {
		t.Errorf("thread changed by rejected edit (-want +got):\n%s", diff)
	}
}

func TestEditAnonymousDistinctFromForbidden(t *testing.T) {
	other := models.Comment{ID: 99, Content: "x", Author: models.CommentAuthor{ID: 55, Username: "minh"}}
	fake := newThreadBackend(other)
	thread := NewThread(1, fake, &fakeIdentity{}, notify.Discard{})
	require.NoError(t, thread.LoadNextPage(context.Background()))

	_, err := thread.Edit(context.Background(), 99, "y")
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindUnauthenticated))
	assert.False(t, backend.IsKind(err, backend.KindForbidden))
}

func TestEditOwnCommentReplacesExactlyThatItem(t *testing.T) {
	fake := newThreadBackend(seedComments(3)...)
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})
	require.NoError(t, thread.LoadNextPage(context.Background()))

	updated, err := thread.Edit(context.Background(), 2, "revised")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.ID)

	for _, c := range thread.Comments() {
		if c.ID == 2 {
			assert.Equal(t, "revised", c.Content)
		} else {
			assert.NotEqual(t, "revised", c.Content)
		}
	}
	assert.Equal(t, 3, thread.Total(), "edit does not change the count")
}

func TestDeleteOwnComment(t *testing.T) {
	fake := newThreadBackend(seedComments(3)...)
	var countDelta int
	thread := NewThread(1, fake, loggedIn(), notify.Discard{},
		WithCountObserver(func(delta int) { countDelta += delta }))
	require.NoError(t, thread.LoadNextPage(context.Background()))

	require.NoError(t, thread.Delete(context.Background(), 2))

	items := thread.Comments()
	assert.Len(t, items, 2)
	for _, c := range items {
		assert.NotEqual(t, int64(2), c.ID)
	}
	assert.Equal(t, 2, thread.Total())
	assert.Equal(t, -1, countDelta)
}

func TestDeleteRejectedForOtherUsersComment(t *testing.T) {
	other := models.Comment{ID: 99, Content: "x", Author: models.CommentAuthor{ID: 55, Username: "minh"}}
	fake := newThreadBackend(other)
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})
	require.NoError(t, thread.LoadNextPage(context.Background()))

	calls := fake.callCount()
	err := thread.Delete(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindForbidden))
	assert.Equal(t, calls, fake.callCount())
	assert.Len(t, thread.Comments(), 1)
}

func TestSecondMutationOnSameCommentRejected(t *testing.T) {
	fake := newThreadBackend(seedComments(3)...)
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})
	require.NoError(t, thread.LoadNextPage(context.Background()))

	fake.mu.Lock()
	fake.barrier = make(chan struct{})
	fake.mu.Unlock()

	baseline := fake.callCount()
	done := make(chan error, 1)
	go func() {
		_, err := thread.Edit(context.Background(), 2, "first")
		done <- err
	}()
	for fake.callCount() == baseline {
	}

	// A second operation on the same comment while one is in flight must
	// be rejected client-side, never sent.
	calls := fake.callCount()
	err := thread.Delete(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindRejected))
	assert.Equal(t, calls, fake.callCount())

	close(fake.barrier)
	require.NoError(t, <-done)

	// The gate is per comment and released on completion
	require.NoError(t, thread.Delete(context.Background(), 1))
}

func TestMenuStateTransientAndClearedByMutation(t *testing.T) {
	fake := newThreadBackend(seedComments(3)...)
	thread := NewThread(1, fake, loggedIn(), notify.Discard{})
	require.NoError(t, thread.LoadNextPage(context.Background()))

	thread.ToggleMenu(2)
	assert.Equal(t, int64(2), thread.ActiveMenu())

	// Toggling the open menu closes it
	thread.ToggleMenu(2)
	assert.Equal(t, int64(0), thread.ActiveMenu())

	thread.ToggleMenu(3)
	assert.Equal(t, int64(3), thread.ActiveMenu())
	thread.CloseMenu()
	assert.Equal(t, int64(0), thread.ActiveMenu())

	// Starting a mutation closes the open menu
	thread.ToggleMenu(2)
	_, err := thread.Edit(context.Background(), 2, "changed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), thread.ActiveMenu())
}

func TestLoadFailureLeavesThreadUsable(t *testing.T) {
	fake := newThreadBackend(seedComments(3)...)
	fake.failWith = backend.NewError(backend.KindNetwork, "")
	recorder := notify.NewRecorder()
	thread := NewThread(1, fake, loggedIn(), recorder)

	err := thread.LoadNextPage(context.Background())
	require.Error(t, err)
	assert.Empty(t, thread.Comments())
	require.Len(t, recorder.Events(), 1)

	// The in-flight flag is released; a later load works
	fake.mu.Lock()
	fake.failWith = nil
	fake.mu.Unlock()
	require.NoError(t, thread.LoadNextPage(context.Background()))
	assert.Len(t, thread.Comments(), 3)
}
