package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/rs/zerolog"
)

// LocalProvider authenticates bearer tokens issued by Service.
type LocalProvider struct { // implements Provider
	tokens     *TokenIssuer
	sessions   repository.SessionRepository
	profiles   repository.ProfileRepository
	cookieName string
}

func NewLocalProvider(tokens *TokenIssuer, sessions repository.SessionRepository, profiles repository.ProfileRepository, cookieName string) *LocalProvider {
	return &LocalProvider{
		tokens:     tokens,
		sessions:   sessions,
		profiles:   profiles,
		cookieName: cookieName,
	}
}

// TokenFromRequest reads the bearer token from the Authorization header first and the session cookie second.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get(config.HAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(h)
	}

	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

func (p *LocalProvider) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, p.cookieName)
			if token == "" {
				next.ServeHTTP(w, r.WithContext(contextWithError(r.Context(), ErrNoCredentials)))
				return
			}

			user, sessionID, err := p.Authenticate(r.Context(), token)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Rejected access token")
				next.ServeHTTP(w, r.WithContext(contextWithError(r.Context(), ErrUnauthorized)))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user, sessionID)))
		})
	}
}

func (p *LocalProvider) UserFromRequest(r *http.Request) (*model.User, error) {
	return UserFromContext(r.Context())
}

// Authenticate verifies the token, its session and the profile it names.
func (p *LocalProvider) Authenticate(ctx context.Context, token string) (*model.User, string, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return nil, "", err
	}

	session, err := p.sessions.GetSession(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrUnauthorized
	}
	if err != nil {
		return nil, "", err
	}
	if session.Revoked || !session.ExpiresAt.After(time.Now()) || string(session.UserID) != claims.Subject {
		return nil, "", ErrUnauthorized
	}

	user, err := p.profiles.GetProfile(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", ErrUnauthorized
	}
	if err != nil {
		return nil, "", err
	}

	return user, session.ID, nil
}
