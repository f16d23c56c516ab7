package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/rs/zerolog"
)

// ClerkProvider trusts sessions issued by Clerk and maps them to local profiles.
type ClerkProvider struct { // implements Provider
	profiles repository.ProfileRepository

	cookieExtractor clerkhttp.AuthorizationOption
}

func NewClerkProvider(clerkKey string, profiles repository.ProfileRepository) *ClerkProvider {
	clerk.SetKey(clerkKey)

	return &ClerkProvider{
		profiles: profiles,
		cookieExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			return TokenFromRequest(r, "__session")
		}),
	}
}

func (c *ClerkProvider) Middleware() func(http.Handler) http.Handler {
	verify := clerkhttp.WithHeaderAuthorization(c.cookieExtractor)

	resolve := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := clerk.SessionClaimsFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r.WithContext(contextWithError(r.Context(), ErrNoCredentials)))
				return
			}

			user, err := c.profiles.GetProfile(r.Context(), model.UserID(claims.Subject))
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Str("subject", claims.Subject).Msg("No profile for Clerk session")
				next.ServeHTTP(w, r.WithContext(contextWithError(r.Context(), ErrUnauthorized)))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user, claims.SessionID)))
		})
	}

	return func(next http.Handler) http.Handler {
		return verify(resolve(next))
	}
}

func (c *ClerkProvider) UserFromRequest(r *http.Request) (*model.User, error) {
	return UserFromContext(r.Context())
}

type clerkEvent struct {
	Data struct {
		clerk.User
	} `json:"data"`

	Type string `json:"type"`
}

// profileFromClerk builds a profile from a Clerk user. The role comes from public metadata and defaults to editor.
func profileFromClerk(usr *clerk.User) (*model.User, error) {
	email := ""
	for _, e := range usr.EmailAddresses {
		if e == nil {
			continue
		}
		if email == "" || (usr.PrimaryEmailAddressID != nil && e.ID == *usr.PrimaryEmailAddressID) {
			email = e.EmailAddress
		}
	}
	if email == "" {
		return nil, errors.New("no email address on user")
	}

	var names []string
	if usr.FirstName != nil && *usr.FirstName != "" {
		names = append(names, *usr.FirstName)
	}
	if usr.LastName != nil && *usr.LastName != "" {
		names = append(names, *usr.LastName)
	}

	role := model.RoleEditor
	var meta struct {
		Role string `json:"role"`
	}
	if len(usr.PublicMetadata) > 0 && json.Unmarshal(usr.PublicMetadata, &meta) == nil && meta.Role == string(model.RoleAdmin) {
		role = model.RoleAdmin
	}

	return &model.User{
		ID:    model.UserID(usr.ID),
		Email: strings.ToLower(email),
		Name:  strings.Join(names, " "),
		Role:  role,
	}, nil
}

// HandleWebhookUser provisions and removes profiles from Clerk user events.
func (c *ClerkProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	var payload clerkEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		l.Error().Err(err).Msg("Error decoding event payload")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	switch payload.Type {
	case "user.created":
		profile, err := profileFromClerk(&payload.Data.User)
		if err != nil {
			l.Warn().Err(err).Str("user_id", payload.Data.ID).Msg("Cannot provision profile")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := c.profiles.CreateProfile(r.Context(), profile); err != nil {
			l.Error().Err(err).Msg("Error inserting profile")
			http.Error(w, "Error saving user", http.StatusInternalServerError)
			return
		}

		l.Info().Str("user_id", string(profile.ID)).Msg("Profile provisioned")
		w.WriteHeader(http.StatusCreated)

	case "user.updated":
		w.WriteHeader(http.StatusNoContent)

	case "user.deleted":
		err := c.profiles.DeleteProfile(r.Context(), model.UserID(payload.Data.ID))
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			l.Error().Err(err).Msg("Error deleting profile")
			http.Error(w, "Error deleting user", http.StatusInternalServerError)
			return
		}

		l.Info().Str("user_id", payload.Data.ID).Msg("Profile deleted")
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
	}
}
