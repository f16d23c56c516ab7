// Package routes defines HTTP route constants for the application.
package routes

import "net/url"

// Public API
const (
	APIPosts         = "/api/posts"
	APIFeaturedPosts = "/api/posts/featured"
	APIPostBySlug    = "/api/posts/by-slug/{slug}"
	APICategories    = "/api/categories"
	APISyntaxCSS     = "/api/syntax/{theme}.css"
)

// Admin API
const (
	APIAdminPosts  = "/api/admin/posts"
	APIAdminPost   = "/api/admin/posts/{id}"
	APIAdminImages = "/api/admin/images"
)

// Auth
const (
	AuthSignIn  = "/api/auth/signin"
	AuthSignUp  = "/api/auth/signup"
	AuthSignOut = "/api/auth/signout"
	AuthMe      = "/api/auth/me"
	AuthRefresh = "/api/auth/refresh"
)

// Events and operations
const (
	Events       = "/api/events"
	WebhookUser  = "/webhook/user"
	Health       = "/health"
	Metrics      = "/metrics"
	UploadsFiles = "/uploads/*"
)

// AdminPost is the concrete path of APIAdminPost.
func AdminPost(id string) string {
	return APIAdminPosts + "/" + url.PathEscape(id)
}

// PostBySlug is the concrete path of APIPostBySlug.
func PostBySlug(slug string) string {
	return "/api/posts/by-slug/" + url.PathEscape(slug)
}
