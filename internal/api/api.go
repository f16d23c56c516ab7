// Package api implements the JSON gateway in front of the post, category and auth services.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/debemdeboas/war-room/internal/auth"
	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/storage"
	"github.com/rs/zerolog"
)

var errNotOwner = errors.New(config.ErrNotOwner)

type Deps struct {
	Posts      repository.PostRepository
	Categories repository.CategoryRepository
	Storage    storage.ObjectStorage
	Provider   auth.Provider

	// Auth is nil when sign-in is handled by a hosted provider.
	Auth       *auth.Service
	CookieName string

	FeaturedLimit  int
	MaxUploadBytes int64
}

type Handler struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	storage    storage.ObjectStorage
	provider   auth.Provider
	auth       *auth.Service
	cookieName string

	featuredLimit  int
	maxUploadBytes int64

	now func() time.Time
}

func New(d Deps) *Handler {
	h := &Handler{
		posts:      d.Posts,
		categories: d.Categories,
		storage:    d.Storage,
		provider:   d.Provider,
		auth:       d.Auth,
		cookieName: d.CookieName,

		featuredLimit:  d.FeaturedLimit,
		maxUploadBytes: d.MaxUploadBytes,

		now: time.Now,
	}
	if h.featuredLimit <= 0 {
		h.featuredLimit = 3
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = 10 << 20
	}
	if h.cookieName == "" {
		h.cookieName = "session"
	}
	return h
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to a status code and the message shown to the caller.
func statusFor(err error) (int, string) {
	switch {
	case model.IsValidation(err), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrNoCredentials),
		errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, errNotOwner),
		errors.Is(err, auth.ErrEmailNotAllowed),
		errors.Is(err, auth.ErrMaxAdmins):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrProfileMissing):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, config.ErrPostNotFound
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	ev := zerolog.Ctx(r.Context()).Debug()
	if status >= http.StatusInternalServerError {
		ev = zerolog.Ctx(r.Context()).Error()
		if msg == "" {
			msg = config.ErrInternalServerError
		}
	}
	ev.Err(err).Int("status", status).Msg("Request failed")
	respondError(w, status, msg)
}

func (h *Handler) requireUser(r *http.Request) (*model.User, error) {
	return h.provider.UserFromRequest(r)
}

func (h *Handler) requireAdmin(r *http.Request) (*model.User, error) {
	user, err := h.provider.UserFromRequest(r)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, auth.ErrForbidden
	}
	return user, nil
}

func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
