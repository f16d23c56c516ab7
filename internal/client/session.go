package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/debemdeboas/war-room/internal/model"
)

const currentUserTimeout = 10 * time.Second

type AuthEvent string

const (
	SignedIn       AuthEvent = "SIGNED_IN"
	SignedOut      AuthEvent = "SIGNED_OUT"
	TokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

type sessionFile struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Session is the console's signed-in state, kept in a file readable only by its owner.
type Session struct { // implements store.SessionSource
	client *Client
	path   string
	now    func() time.Time

	mu    sync.RWMutex
	state sessionFile

	lmu       sync.Mutex
	listeners map[int]func(AuthEvent, *model.User)
	nextID    int
}

func NewSession(c *Client, path string) (*Session, error) {
	s := &Session{
		client:    c,
		path:      path,
		now:       time.Now,
		listeners: make(map[int]func(AuthEvent, *model.User)),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading session: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		clientLogger.Warn().Err(err).Str("path", path).Msg("Discarding unreadable session file")
		s.state = sessionFile{}
	}
	return s, nil
}

// Token returns the stored access token while it is unexpired.
func (s *Session) Token(ctx context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Token == "" {
		return "", false
	}
	if !s.state.ExpiresAt.IsZero() && !s.now().Before(s.state.ExpiresAt) {
		return "", false
	}
	return s.state.Token, true
}

// User returns the cached user without a network call.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

func (s *Session) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	resp, err := s.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.store(sessionFile{Token: resp.Token, ExpiresAt: resp.ExpiresAt, User: resp.User}); err != nil {
		return nil, err
	}
	s.emit(SignedIn, resp.User)
	return resp.User, nil
}

func (s *Session) SignUp(ctx context.Context, email, password, name string) (*model.User, error) {
	resp, err := s.client.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	if err := s.store(sessionFile{Token: resp.Token, ExpiresAt: resp.ExpiresAt, User: resp.User}); err != nil {
		return nil, err
	}
	s.emit(SignedIn, resp.User)
	return resp.User, nil
}

// SignOut revokes the session on the server and always forgets it locally.
func (s *Session) SignOut(ctx context.Context) error {
	token, ok := s.Token(ctx)
	var remoteErr error
	if ok {
		if err := s.client.SignOut(ctx, token); err != nil && !IsStatus(err, http.StatusUnauthorized) {
			remoteErr = err
		}
	}
	if err := s.clear(); err != nil {
		return err
	}
	s.emit(SignedOut, nil)
	return remoteErr
}

// CurrentUser asks the server who the session belongs to. It returns nil and
// no error when signed out; a rejected token signs the session out.
func (s *Session) CurrentUser(ctx context.Context) (*model.User, error) {
	token, ok := s.Token(ctx)
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, currentUserTimeout)
	defer cancel()

	user, err := s.client.Me(ctx, token)
	if IsStatus(err, http.StatusUnauthorized) {
		if err := s.clear(); err != nil {
			return nil, err
		}
		s.emit(SignedOut, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state.User = user
	state := s.state
	s.mu.Unlock()
	if err := s.write(state); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Session) Refresh(ctx context.Context) error {
	token, ok := s.Token(ctx)
	if !ok {
		return errors.New("not signed in")
	}
	resp, err := s.client.Refresh(ctx, token)
	if err != nil {
		return err
	}
	if err := s.store(sessionFile{Token: resp.Token, ExpiresAt: resp.ExpiresAt, User: resp.User}); err != nil {
		return err
	}
	s.emit(TokenRefreshed, resp.User)
	return nil
}

// OnAuthStateChange calls fn on every sign-in, sign-out and refresh. The returned func unsubscribes.
func (s *Session) OnAuthStateChange(fn func(AuthEvent, *model.User)) func() {
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

func (s *Session) emit(ev AuthEvent, user *model.User) {
	s.lmu.Lock()
	fns := make([]func(AuthEvent, *model.User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(ev, user)
	}
}

func (s *Session) store(state sessionFile) error {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return s.write(state)
}

func (s *Session) clear() error {
	s.mu.Lock()
	s.state = sessionFile{}
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing session: %w", err)
	}
	return nil
}

func (s *Session) write(state sessionFile) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("error creating session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("error writing session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing session: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
