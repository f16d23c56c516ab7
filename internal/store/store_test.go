package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/util/compression"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.Disabled))
}

type fakeBackend struct {
	mu sync.Mutex

	posts      []model.Post
	categories []model.Category
	featured   []model.Post

	listCalls int
	tokens    []string
	listErr   error
	writeErr  error
	nextID    int

	// block, when set, holds mutations until it is closed.
	block chan struct{}
}

func (b *fakeBackend) wait(ctx context.Context) error {
	b.mu.Lock()
	block := b.block
	b.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBackend) ListPosts(ctx context.Context, token string) ([]model.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	b.tokens = append(b.tokens, token)
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]model.Post(nil), b.posts...), nil
}

func (b *fakeBackend) ListCategories(ctx context.Context) ([]model.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.categories, nil
}

func (b *fakeBackend) ListFeaturedPosts(ctx context.Context, limit int) ([]model.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.featured, nil
}

func (b *fakeBackend) CreatePost(ctx context.Context, token string, in model.PostInput) (*model.Post, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return nil, b.writeErr
	}
	b.nextID++
	p := model.Post{ID: model.PostID(fmt.Sprintf("p%d", b.nextID)), Title: in.Title, AuthorID: in.AuthorID}
	b.posts = append([]model.Post{p}, b.posts...)
	return &p, nil
}

func (b *fakeBackend) UpdatePost(ctx context.Context, token string, id model.PostID, in model.PostInput) (*model.Post, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return nil, b.writeErr
	}
	return &model.Post{ID: id, Title: in.Title, Excerpt: in.Excerpt, Slug: "server-slug", ReadTime: "2 min read"}, nil
}

func (b *fakeBackend) DeletePost(ctx context.Context, token string, id model.PostID) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeErr
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

type staticSession string

func (s staticSession) Token(ctx context.Context) (string, bool) {
	return string(s), s != ""
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func seedPosts(n int) []model.Post {
	posts := make([]model.Post, n)
	for i := range posts {
		posts[i] = model.Post{ID: model.PostID(fmt.Sprintf("seed%d", i)), Title: fmt.Sprintf("Seed %d", i), Slug: fmt.Sprintf("seed-%d", i)}
	}
	return posts
}

func newStore(t *testing.T, b *fakeBackend, token string, opts ...Option) (*Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(c.now)}, opts...)
	return New(b, staticSession(token), opts...), c
}

func TestFetchPostsTTL(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(3)}
	s, c := newStore(t, b, "")

	require.NoError(t, s.FetchPosts(context.Background()))
	assert.Equal(t, 1, b.calls())
	assert.Len(t, s.State().Posts, 3)

	for _, step := range []time.Duration{time.Second, time.Minute, 3*time.Minute + 58*time.Second} {
		c.advance(step)
		require.NoError(t, s.FetchPosts(context.Background()))
	}
	assert.Equal(t, 1, b.calls(), "calls within five minutes must be served from cache")

	c.advance(time.Second)
	require.NoError(t, s.FetchPosts(context.Background()))
	assert.Equal(t, 2, b.calls(), "call at the TTL boundary must refetch")
}

func TestInvalidateCacheForcesFetch(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(1)}
	s, _ := newStore(t, b, "")

	require.NoError(t, s.FetchPosts(context.Background()))
	s.InvalidateCache()
	assert.Nil(t, s.State().LastFetched)

	require.NoError(t, s.FetchPosts(context.Background()))
	assert.Equal(t, 2, b.calls())
	assert.NotNil(t, s.State().LastFetched)
}

func TestFetchPostsFailureKeepsCache(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(2)}
	s, _ := newStore(t, b, "")
	require.NoError(t, s.FetchPosts(context.Background()))
	before := s.State()

	s.InvalidateCache()
	b.listErr = errors.New("backend unavailable")
	err := s.FetchPosts(context.Background())
	require.EqualError(t, err, "backend unavailable")

	after := s.State()
	assert.Equal(t, before.Posts, after.Posts)
	assert.False(t, after.IsLoading)
	assert.Nil(t, after.LastFetched)
}

func TestFetchPostsPassesSessionToken(t *testing.T) {
	b := &fakeBackend{}
	s, _ := newStore(t, b, "tok")
	require.NoError(t, s.FetchPosts(context.Background()))

	anon, _ := newStore(t, b, "")
	require.NoError(t, anon.FetchPosts(context.Background()))

	assert.Equal(t, []string{"tok", ""}, b.tokens)
	assert.NotNil(t, s.State().Posts, "an empty listing is an empty list, not nil")
}

func TestFetchCategoriesAndFeatured(t *testing.T) {
	b := &fakeBackend{
		categories: []model.Category{{ID: "cat-growth", Name: "Growth"}},
		featured:   seedPosts(5),
	}
	s, _ := newStore(t, b, "")

	require.NoError(t, s.FetchCategories(context.Background()))
	require.NoError(t, s.FetchFeaturedPosts(context.Background()))

	st := s.State()
	assert.Equal(t, b.categories, st.Categories)
	assert.Len(t, st.FeaturedPosts, 3)

	b.listErr = errors.New("down")
	assert.Error(t, s.FetchCategories(context.Background()))
	assert.Error(t, s.FetchFeaturedPosts(context.Background()))
	assert.Equal(t, st.Categories, s.State().Categories)
	assert.Equal(t, st.FeaturedPosts, s.State().FeaturedPosts)
}

func TestMutationsRequireSession(t *testing.T) {
	b := &fakeBackend{}
	s, _ := newStore(t, b, "")

	_, err := s.CreatePost(context.Background(), model.PostInput{Title: "A"})
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = s.UpdatePost(context.Background(), "p1", model.PostInput{Title: "A"})
	assert.ErrorIs(t, err, ErrNoSession)
	err = s.DeletePost(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, "No valid session found. Please log in again.", err.Error())

	st := s.State()
	assert.False(t, st.IsCreating || st.IsUpdating || st.IsDeleting)
}

func TestCreatePostFailureLeavesListUnchanged(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(3)}
	s, _ := newStore(t, b, "tok")
	require.NoError(t, s.FetchPosts(context.Background()))
	before := s.State().Posts

	b.writeErr = errors.New("Missing required fields")
	_, err := s.CreatePost(context.Background(), model.PostInput{Title: "A"})
	require.EqualError(t, err, "Missing required fields")

	assert.Equal(t, before, s.State().Posts)
	assert.False(t, s.State().IsCreating)
}

func TestCreatePostStampsAuthor(t *testing.T) {
	b := &fakeBackend{}
	s, _ := newStore(t, b, "tok")
	s.SetCurrentUser(&model.User{ID: "u1", Name: "Ada"})

	post, err := s.CreatePost(context.Background(), model.PostInput{Title: "A", AuthorID: "someone-else"})
	require.NoError(t, err)
	assert.EqualValues(t, "u1", post.AuthorID)
}

func TestUpdatePostSubstitution(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(4)}
	s, _ := newStore(t, b, "tok")
	require.NoError(t, s.FetchPosts(context.Background()))
	before := s.State().Posts

	updated, err := s.UpdatePost(context.Background(), "seed2", model.PostInput{Title: "New title", Excerpt: "new"})
	require.NoError(t, err)

	after := s.State().Posts
	require.Len(t, after, len(before))
	for i := range before {
		if i == 2 {
			assert.Equal(t, *updated, after[i])
			assert.Equal(t, "New title", after[i].Title)
			assert.Equal(t, "server-slug", after[i].Slug, "server-returned fields are kept")
			continue
		}
		assert.Equal(t, before[i], after[i])
	}
}

func TestUpdatePostFailure(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(2)}
	s, _ := newStore(t, b, "tok")
	require.NoError(t, s.FetchPosts(context.Background()))
	before := s.State().Posts

	b.writeErr = errors.New("Forbidden - you can only modify your own posts")
	_, err := s.UpdatePost(context.Background(), "seed0", model.PostInput{Title: "x"})
	require.Error(t, err)
	assert.Equal(t, before, s.State().Posts)
	assert.False(t, s.State().IsUpdating)
}

func TestDeletePostRemoval(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(4)}
	s, _ := newStore(t, b, "tok")
	require.NoError(t, s.FetchPosts(context.Background()))
	before := s.State().Posts

	require.NoError(t, s.DeletePost(context.Background(), "seed1"))

	after := s.State().Posts
	require.Len(t, after, len(before)-1)
	assert.Equal(t, []model.Post{before[0], before[2], before[3]}, after)

	b.writeErr = errors.New("Post not found")
	assert.Error(t, s.DeletePost(context.Background(), "seed0"))
	assert.Len(t, s.State().Posts, 3)
}

func TestConcreteScenario(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(2)}
	s, c := newStore(t, b, "tok")

	st := s.State()
	require.Empty(t, st.Posts)
	require.Nil(t, st.LastFetched)

	require.NoError(t, s.FetchPosts(context.Background()))
	t0 := c.now()
	assert.Equal(t, 1, b.calls())
	assert.Equal(t, t0, *s.State().LastFetched)
	previous := s.State().Posts

	c.advance(60 * time.Second)
	require.NoError(t, s.FetchPosts(context.Background()))
	assert.Equal(t, 1, b.calls())
	assert.Equal(t, previous, s.State().Posts)

	c.advance(time.Second)
	created, err := s.CreatePost(context.Background(), model.PostInput{Title: "A"})
	require.NoError(t, err)
	assert.EqualValues(t, "p1", created.ID)
	assert.Equal(t, append([]model.Post{*created}, previous...), s.State().Posts)

	require.NoError(t, s.DeletePost(context.Background(), "p1"))
	assert.Equal(t, previous, s.State().Posts)
}

func TestBusyFlagsTrackOverlappingOperations(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	s, _ := newStore(t, b, "tok")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CreatePost(context.Background(), model.PostInput{Title: "A"})
		}()
	}

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.pending.creating == 2
	}, time.Second, time.Millisecond)

	st := s.State()
	assert.True(t, st.IsCreating)
	assert.False(t, st.IsUpdating, "flags are independent per operation kind")
	assert.False(t, st.IsDeleting)
	assert.False(t, st.IsLoading)

	close(b.block)
	wg.Wait()
	assert.False(t, s.State().IsCreating)
	assert.Len(t, s.State().Posts, 2)
}

func TestSubscribe(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(1)}
	s, _ := newStore(t, b, "")

	var mu sync.Mutex
	var states []State
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st)
	})

	require.NoError(t, s.FetchPosts(context.Background()))

	mu.Lock()
	require.Len(t, states, 2)
	assert.True(t, states[0].IsLoading)
	assert.False(t, states[1].IsLoading)
	assert.Len(t, states[1].Posts, 1)
	mu.Unlock()

	unsubscribe()
	s.SetCurrentUser(&model.User{ID: "u"})
	mu.Lock()
	assert.Len(t, states, 2)
	mu.Unlock()
}

func TestStateIsACopy(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(2)}
	s, _ := newStore(t, b, "")
	require.NoError(t, s.FetchPosts(context.Background()))
	s.SetCurrentUser(&model.User{ID: "u1", Name: "Ada"})

	st := s.State()
	st.Posts[0].Title = "mutated"
	st.CurrentUser.Name = "mutated"

	again := s.State()
	assert.Equal(t, "Seed 0", again.Posts[0].Title)
	assert.Equal(t, "Ada", again.CurrentUser.Name)
}

func TestPostLookups(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(3)}
	s, _ := newStore(t, b, "")
	require.NoError(t, s.FetchPosts(context.Background()))

	p, ok := s.Post("seed1")
	require.True(t, ok)
	assert.Equal(t, "Seed 1", p.Title)

	p, ok = s.PostBySlug("seed-2")
	require.True(t, ok)
	assert.EqualValues(t, "seed2", p.ID)

	_, ok = s.Post("missing")
	assert.False(t, ok)
	_, ok = s.PostBySlug("missing")
	assert.False(t, ok)
}

func TestSnapshotPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "posts.snapshot")
	snapshots := NewFileSnapshotStore(path, compression.ZstdCompressor{})

	b := &fakeBackend{
		posts:      seedPosts(2),
		categories: []model.Category{{ID: "cat-tactics", Name: "Tactics"}},
	}
	s, c := newStore(t, b, "tok", WithSnapshots(snapshots))
	require.NoError(t, s.FetchPosts(context.Background()))
	require.NoError(t, s.FetchCategories(context.Background()))
	s.SetCurrentUser(&model.User{ID: "u1"})

	restored := New(b, staticSession("tok"), WithClock(c.now), WithSnapshots(snapshots))
	st := restored.State()
	assert.Len(t, st.Posts, 2)
	assert.Equal(t, b.categories, st.Categories)
	require.NotNil(t, st.LastFetched)
	assert.True(t, st.LastFetched.Equal(c.now()))
	assert.Nil(t, st.CurrentUser, "identity is never persisted")
	assert.False(t, st.IsLoading)

	// The restored fetch time still honors the TTL.
	c.advance(time.Minute)
	require.NoError(t, restored.FetchPosts(context.Background()))
	assert.Equal(t, 1, b.calls())

	restored.InvalidateCache()
	again, err := snapshots.Load()
	require.NoError(t, err)
	assert.Nil(t, again.LastFetched)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.snapshot")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0o600))

	s := New(&fakeBackend{}, nil, WithSnapshots(NewFileSnapshotStore(path, nil)))
	st := s.State()
	assert.Empty(t, st.Posts)
	assert.Nil(t, st.LastFetched)
}

// gatedSnapshots records every save. Once armed, the next save blocks until released.
type gatedSnapshots struct {
	mu      sync.Mutex
	saves   []PersistedSnapshot
	gate    chan struct{}
	entered chan struct{}
}

func (g *gatedSnapshots) Load() (*PersistedSnapshot, error) { return nil, nil }

func (g *gatedSnapshots) Save(snap *PersistedSnapshot) error {
	g.mu.Lock()
	gate, entered := g.gate, g.entered
	g.gate, g.entered = nil, nil
	g.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves = append(g.saves, *snap)
	return nil
}

func (g *gatedSnapshots) arm() (release, entered chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate, g.entered = make(chan struct{}), make(chan struct{})
	return g.gate, g.entered
}

func (g *gatedSnapshots) last() PersistedSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves[len(g.saves)-1]
}

func TestOverlappingSavesPersistLatestState(t *testing.T) {
	b := &fakeBackend{posts: seedPosts(2)}
	snaps := &gatedSnapshots{}
	s, _ := newStore(t, b, "tok", WithSnapshots(snaps))
	require.NoError(t, s.FetchPosts(context.Background()))

	release, entered := snaps.arm()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.InvalidateCache()
	}()
	<-entered

	// The delete lands while the invalidation's save is still in flight.
	go func() {
		defer wg.Done()
		assert.NoError(t, s.DeletePost(context.Background(), "seed0"))
	}()
	require.Eventually(t, func() bool { return len(s.State().Posts) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	close(release)
	wg.Wait()

	last := snaps.last()
	assert.Len(t, last.Posts, 1)
	assert.Equal(t, model.PostID("seed1"), last.Posts[0].ID)
	assert.Nil(t, last.LastFetched)
}
