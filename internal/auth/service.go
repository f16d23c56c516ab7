package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/retry"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Session is what a successful sign-in hands back to the caller.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type Service struct {
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
	profiles   repository.ProfileRepository
	tokens     *TokenIssuer

	allowed      []string
	maxAdmins    int
	ttl          time.Duration
	provisioning retry.Policy

	now func() time.Time
}

func NewService(cfg config.AuthConfig, identities repository.IdentityRepository, sessions repository.SessionRepository,
	profiles repository.ProfileRepository, tokens *TokenIssuer) *Service {
	allowed := make([]string, 0, len(cfg.AllowedEmails))
	for _, e := range cfg.AllowedEmails {
		allowed = append(allowed, strings.ToLower(strings.TrimSpace(e)))
	}

	return &Service{
		identities: identities,
		sessions:   sessions,
		profiles:   profiles,
		tokens:     tokens,

		allowed:   allowed,
		maxAdmins: cfg.MaxAdmins,
		ttl:       cfg.TokenTTL,
		provisioning: retry.Policy{
			Attempts: cfg.Provisioning.Attempts,
			Delay:    cfg.Provisioning.Delay,
		},

		now: time.Now,
	}
}

func (s *Service) isAllowedEmail(email string) bool {
	return slices.Contains(s.allowed, strings.ToLower(email))
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.profiles.GetProfile(ctx, identity.ID)
	if errors.Is(err, repository.ErrNotFound) {
		authLogger.Warn().Str("user_id", string(identity.ID)).Msg("Sign-in before profile was provisioned")
		return nil, ErrProfileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	return s.startSession(ctx, user)
}

// SignUp registers an admin. The profile is normally created by the provisioner;
// if it does not appear within the provisioning policy it is created directly.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.isAllowedEmail(email) {
		return nil, ErrEmailNotAllowed
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	count, err := s.profiles.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if count >= s.maxAdmins {
		return nil, ErrMaxAdmins
	}

	if _, err := s.profiles.GetProfileByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.identities.GetIdentityByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &repository.Identity{
		ID:           model.UserID(uuid.New().String()),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
	}
	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}

	user, err := retry.PollOrCreate(ctx, s.provisioning,
		func(ctx context.Context) (*model.User, bool, error) {
			u, err := s.profiles.GetProfile(ctx, identity.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, false, nil
			}
			return u, err == nil, err
		},
		func(ctx context.Context) (*model.User, error) {
			authLogger.Info().Str("user_id", string(identity.ID)).Msg("Profile not provisioned in time, creating it directly")
			u := profileFor(identity)
			if err := s.profiles.CreateProfile(ctx, u); err != nil {
				return nil, err
			}
			return s.profiles.GetProfile(ctx, identity.ID)
		})
	if err != nil {
		return nil, err
	}

	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user *model.User) (*Session, error) {
	session := &repository.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	return s.sessions.RevokeSession(ctx, sessionID)
}

// Refresh revokes the current session and starts a new one for the same user.
func (s *Service) Refresh(ctx context.Context, user *model.User, sessionID string) (*Session, error) {
	if err := s.sessions.RevokeSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

// CurrentUser reloads the profile so role changes take effect immediately.
func (s *Service) CurrentUser(ctx context.Context, id model.UserID) (*model.User, error) {
	u, err := s.profiles.GetProfile(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	return u, err
}

func (s *Service) AllowedEmails() []string {
	return slices.Clone(s.allowed)
}

func profileFor(id *repository.Identity) *model.User {
	return &model.User{
		ID:    id.ID,
		Email: id.Email,
		Name:  id.Name,
		Role:  model.RoleAdmin,
	}
}
