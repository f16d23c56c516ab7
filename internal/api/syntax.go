package api

import (
	"net/http"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/render"
	"github.com/debemdeboas/war-room/internal/util"
	"github.com/go-chi/chi/v5"
)

// SyntaxCSS serves the stylesheet for the code highlighting theme in post content.
func (h *Handler) SyntaxCSS(w http.ResponseWriter, r *http.Request) {
	theme := chi.URLParam(r, "theme")
	if theme == "" {
		theme = render.DefaultHighlightTheme
	}

	css := []byte(render.SyntaxCSS(theme))
	etag := util.ContentHash(css)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set(config.HCType, "text/css")
	w.Header().Set(config.HETag, etag)
	w.Header().Set(config.HCacheControl, "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(css)
}
