// Package store is the client-side post cache: posts, categories and featured
// posts with a fetch TTL, merge-on-ack mutations and a persisted snapshot.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/rs/zerolog"
)

var storeLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storeLogger = l
}

const (
	DefaultTTL           = 5 * time.Minute
	DefaultFeaturedLimit = 3
)

var ErrNoSession = errors.New(config.ErrNoValidSession)

// Backend is the remote side of the store.
type Backend interface {
	// ListPosts returns every post visible to token, newest first. An empty
	// token lists published posts only.
	ListPosts(ctx context.Context, token string) ([]model.Post, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListFeaturedPosts(ctx context.Context, limit int) ([]model.Post, error)

	CreatePost(ctx context.Context, token string, in model.PostInput) (*model.Post, error)
	UpdatePost(ctx context.Context, token string, id model.PostID, in model.PostInput) (*model.Post, error)
	DeletePost(ctx context.Context, token string, id model.PostID) error
}

// SessionSource yields the access token of the signed-in user, if any.
type SessionSource interface {
	Token(ctx context.Context) (string, bool)
}

// PersistedSnapshot is the part of the state that survives a restart.
type PersistedSnapshot struct {
	Posts         []model.Post     `json:"posts"`
	Categories    []model.Category `json:"categories"`
	FeaturedPosts []model.Post     `json:"featuredPosts"`
	// LastFetched is nil until posts are fetched, and after InvalidateCache.
	LastFetched *time.Time `json:"lastFetched"`
}

// TransientState is never persisted and always starts idle.
type TransientState struct {
	IsLoading   bool
	IsCreating  bool
	IsUpdating  bool
	IsDeleting  bool
	CurrentUser *model.User
}

type State struct {
	PersistedSnapshot
	TransientState
}

// pending counts outstanding operations per kind; a flag is true while its count is positive.
type pending struct {
	loading, creating, updating, deleting int
}

type Store struct {
	backend   Backend
	session   SessionSource
	snapshots SnapshotStore

	ttl           time.Duration
	featuredLimit int
	now           func() time.Time

	mu          sync.RWMutex
	data        PersistedSnapshot
	currentUser *model.User
	pending     pending

	// saveMu orders snapshot writes so the last save is the latest state.
	saveMu sync.Mutex

	lmu       sync.Mutex
	listeners map[int]func(State)
	nextID    int
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithFeaturedLimit(n int) Option {
	return func(s *Store) { s.featuredLimit = n }
}

// WithSnapshots persists the snapshot after every change and restores it in New.
func WithSnapshots(ss SnapshotStore) Option {
	return func(s *Store) { s.snapshots = ss }
}

func New(backend Backend, session SessionSource, opts ...Option) *Store {
	s := &Store{
		backend:       backend,
		session:       session,
		ttl:           DefaultTTL,
		featuredLimit: DefaultFeaturedLimit,
		now:           time.Now,
		listeners:     make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.snapshots != nil {
		snap, err := s.snapshots.Load()
		switch {
		case err != nil:
			storeLogger.Warn().Err(err).Msg("Could not restore post cache, starting empty")
		case snap != nil:
			s.data = *snap
		}
	}
	return s
}

func (s *Store) token(ctx context.Context) (string, bool) {
	if s.session == nil {
		return "", false
	}
	return s.session.Token(ctx)
}

// FetchPosts refreshes the post list unless it was fetched within the TTL.
// On failure the cached list is left as it was.
func (s *Store) FetchPosts(ctx context.Context) error {
	s.mu.Lock()
	if s.data.LastFetched != nil && s.now().Sub(*s.data.LastFetched) < s.ttl {
		s.mu.Unlock()
		return nil
	}
	s.pending.loading++
	s.mu.Unlock()
	s.notify()

	token, _ := s.token(ctx)
	posts, err := s.backend.ListPosts(ctx, token)

	s.mu.Lock()
	s.pending.loading--
	if err == nil {
		fetched := s.now()
		s.data.Posts = nonNilPosts(posts)
		s.data.LastFetched = &fetched
	}
	s.mu.Unlock()

	if err != nil {
		storeLogger.Error().Err(err).Msg("Error fetching posts")
		s.notify()
		return err
	}
	s.changed()
	return nil
}

func (s *Store) FetchCategories(ctx context.Context) error {
	categories, err := s.backend.ListCategories(ctx)
	if err != nil {
		storeLogger.Error().Err(err).Msg("Error fetching categories")
		return err
	}

	s.mu.Lock()
	if categories == nil {
		categories = []model.Category{}
	}
	s.data.Categories = categories
	s.mu.Unlock()

	s.changed()
	return nil
}

func (s *Store) FetchFeaturedPosts(ctx context.Context) error {
	posts, err := s.backend.ListFeaturedPosts(ctx, s.featuredLimit)
	if err != nil {
		storeLogger.Error().Err(err).Msg("Error fetching featured posts")
		return err
	}
	if len(posts) > s.featuredLimit {
		posts = posts[:s.featuredLimit]
	}

	s.mu.Lock()
	s.data.FeaturedPosts = nonNilPosts(posts)
	s.mu.Unlock()

	s.changed()
	return nil
}

// CreatePost stamps the author from the current user and prepends the created post once the backend acknowledges it.
func (s *Store) CreatePost(ctx context.Context, in model.PostInput) (*model.Post, error) {
	token, ok := s.token(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	if s.currentUser != nil {
		in.AuthorID = s.currentUser.ID
	}
	s.pending.creating++
	s.mu.Unlock()
	s.notify()

	post, err := s.backend.CreatePost(ctx, token, in)

	s.mu.Lock()
	s.pending.creating--
	if err == nil {
		s.data.Posts = append([]model.Post{*post}, s.data.Posts...)
	}
	s.mu.Unlock()

	if err != nil {
		storeLogger.Error().Err(err).Str("title", in.Title).Msg("Error creating post")
		s.notify()
		return nil, err
	}
	s.changed()
	return post, nil
}

// UpdatePost replaces the cached post with id by the backend's version, keeping its position.
func (s *Store) UpdatePost(ctx context.Context, id model.PostID, in model.PostInput) (*model.Post, error) {
	token, ok := s.token(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	s.pending.updating++
	s.mu.Unlock()
	s.notify()

	post, err := s.backend.UpdatePost(ctx, token, id, in)

	s.mu.Lock()
	s.pending.updating--
	if err == nil {
		posts := slices.Clone(s.data.Posts)
		for i := range posts {
			if posts[i].ID == id {
				posts[i] = *post
			}
		}
		s.data.Posts = posts
	}
	s.mu.Unlock()

	if err != nil {
		storeLogger.Error().Err(err).Str("post_id", string(id)).Msg("Error updating post")
		s.notify()
		return nil, err
	}
	s.changed()
	return post, nil
}

func (s *Store) DeletePost(ctx context.Context, id model.PostID) error {
	token, ok := s.token(ctx)
	if !ok {
		return ErrNoSession
	}

	s.mu.Lock()
	s.pending.deleting++
	s.mu.Unlock()
	s.notify()

	err := s.backend.DeletePost(ctx, token, id)

	s.mu.Lock()
	s.pending.deleting--
	if err == nil {
		s.data.Posts = slices.DeleteFunc(slices.Clone(s.data.Posts), func(p model.Post) bool {
			return p.ID == id
		})
	}
	s.mu.Unlock()

	if err != nil {
		storeLogger.Error().Err(err).Str("post_id", string(id)).Msg("Error deleting post")
		s.notify()
		return err
	}
	s.changed()
	return nil
}

func (s *Store) SetCurrentUser(user *model.User) {
	s.mu.Lock()
	s.currentUser = user
	s.mu.Unlock()
	s.notify()
}

// InvalidateCache makes the next FetchPosts hit the backend.
func (s *Store) InvalidateCache() {
	s.mu.Lock()
	s.data.LastFetched = nil
	s.mu.Unlock()
	s.changed()
}

// State returns a copy of the whole state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	st := State{
		PersistedSnapshot: s.snapshotLocked(),
		TransientState: TransientState{
			IsLoading:  s.pending.loading > 0,
			IsCreating: s.pending.creating > 0,
			IsUpdating: s.pending.updating > 0,
			IsDeleting: s.pending.deleting > 0,
		},
	}
	if s.currentUser != nil {
		u := *s.currentUser
		st.CurrentUser = &u
	}
	return st
}

func (s *Store) snapshotLocked() PersistedSnapshot {
	snap := PersistedSnapshot{
		Posts:         slices.Clone(s.data.Posts),
		Categories:    slices.Clone(s.data.Categories),
		FeaturedPosts: slices.Clone(s.data.FeaturedPosts),
	}
	if s.data.LastFetched != nil {
		t := *s.data.LastFetched
		snap.LastFetched = &t
	}
	return snap
}

// Post looks up a cached post by id.
func (s *Store) Post(id model.PostID) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.data.Posts, func(p model.Post) bool { return p.ID == id })
	if i < 0 {
		return model.Post{}, false
	}
	return s.data.Posts[i], true
}

func (s *Store) PostBySlug(slug string) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.data.Posts, func(p model.Post) bool { return p.Slug == slug })
	if i < 0 {
		return model.Post{}, false
	}
	return s.data.Posts[i], true
}

// Subscribe calls fn with the new state after every change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

// changed persists the snapshot and notifies listeners.
func (s *Store) changed() {
	if s.snapshots != nil {
		s.saveMu.Lock()
		s.mu.RLock()
		snap := s.snapshotLocked()
		s.mu.RUnlock()
		err := s.snapshots.Save(&snap)
		s.saveMu.Unlock()
		if err != nil {
			storeLogger.Warn().Err(err).Msg("Could not persist post cache")
		}
	}
	s.notify()
}

func (s *Store) notify() {
	s.lmu.Lock()
	if len(s.listeners) == 0 {
		s.lmu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	st := s.State()
	for _, fn := range fns {
		fn(st)
	}
}

func nonNilPosts(posts []model.Post) []model.Post {
	if posts == nil {
		return []model.Post{}
	}
	return posts
}
