package api

import (
	"net/http"

	"github.com/debemdeboas/war-room/internal/routes"
	"github.com/go-chi/chi/v5"
)

// Limits are optional per-group rate limiting middlewares.
type Limits struct {
	SignIn func(http.Handler) http.Handler
	Public func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

// Register mounts every gateway route on r. The auth provider's middleware
// must already be installed on r.
func (h *Handler) Register(r chi.Router, limits Limits) {
	if limits.SignIn == nil {
		limits.SignIn = passthrough
	}
	if limits.Public == nil {
		limits.Public = passthrough
	}

	r.Group(func(r chi.Router) {
		r.Use(limits.Public)
		r.Get(routes.APIPosts, h.ListPublished)
		r.Get(routes.APIFeaturedPosts, h.ListFeatured)
		r.Get(routes.APIPostBySlug, h.GetBySlug)
		r.Get(routes.APICategories, h.ListCategories)
		r.Get(routes.APISyntaxCSS, h.SyntaxCSS)
	})

	r.Get(routes.APIAdminPosts, h.AdminList)
	r.Post(routes.APIAdminPosts, h.CreatePost)
	r.Get(routes.APIAdminPost, h.AdminGet)
	r.Put(routes.APIAdminPost, h.UpdatePost)
	r.Delete(routes.APIAdminPost, h.DeletePost)
	r.Post(routes.APIAdminImages, h.UploadImage)

	r.Get(routes.AuthMe, h.Me)
	if h.auth == nil {
		return
	}
	r.With(limits.SignIn).Post(routes.AuthSignIn, h.SignIn)
	r.With(limits.SignIn).Post(routes.AuthSignUp, h.SignUp)
	r.Post(routes.AuthSignOut, h.SignOut)
	r.Post(routes.AuthRefresh, h.Refresh)
}
