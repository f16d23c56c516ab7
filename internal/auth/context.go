package auth

import (
	"context"

	"github.com/debemdeboas/war-room/internal/model"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

// ContextKeyAuth is the key for the resolved caller in request context
const ContextKeyAuth ContextKey = "auth"

type authResult struct {
	user      *model.User
	sessionID string
	err       error
}

// ContextWithUser returns a new context carrying an authenticated user
func ContextWithUser(ctx context.Context, user *model.User, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeyAuth, authResult{user: user, sessionID: sessionID})
}

// contextWithError records why the caller could not be authenticated
func contextWithError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, ContextKeyAuth, authResult{err: err})
}

// UserFromContext extracts the authenticated user from context
func UserFromContext(ctx context.Context) (*model.User, error) {
	res, ok := ctx.Value(ContextKeyAuth).(authResult)
	if !ok {
		return nil, ErrNoCredentials
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.user, nil
}

// SessionIDFromContext returns the session backing the current request, if any
func SessionIDFromContext(ctx context.Context) (string, bool) {
	res, ok := ctx.Value(ContextKeyAuth).(authResult)
	if !ok || res.sessionID == "" {
		return "", false
	}
	return res.sessionID, true
}
