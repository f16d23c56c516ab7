// Package auth authenticates API callers and manages local sign-in sessions.
package auth

import (
	"net/http"

	"github.com/debemdeboas/war-room/internal/model"
)

type Provider interface {
	// Middleware resolves the caller into the request context. It never rejects a request.
	Middleware() func(http.Handler) http.Handler

	// UserFromRequest returns the caller resolved by Middleware, or why there is none.
	UserFromRequest(r *http.Request) (*model.User, error)
}
