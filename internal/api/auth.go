package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/debemdeboas/war-room/internal/auth"
	"github.com/debemdeboas/war-room/internal/config"
	"github.com/rs/zerolog"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, config.ErrInvalidBody)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	session, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("user_id", string(session.User.ID)).Msg("User signed in")
	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusOK, session)
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, config.ErrInvalidBody)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "Email, password and name are required")
		return
	}

	session, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("user_id", string(session.User.ID)).Msg("User signed up")
	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusCreated, session)
}

// SignOut always clears the cookie. Only a resolved session is revoked.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)

	if sessionID, ok := auth.SessionIDFromContext(r.Context()); ok {
		if err := h.auth.SignOut(r.Context(), sessionID); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sessionID, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		h.fail(w, r, auth.ErrUnauthorized)
		return
	}

	session, err := h.auth.Refresh(r.Context(), user, sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusOK, session)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
