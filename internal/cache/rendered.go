package cache

import "html/template"

// RenderedPost is a markdown body turned into HTML. Meta carries whatever the
// markdown engine extracted alongside it, such as an mmark title block.
type RenderedPost struct {
	HTML []byte
	Meta any
}

type renderKey struct {
	hash  string
	theme string
}

var (
	rendered    = NewCache[renderKey, RenderedPost]()
	stylesheets = NewCache[string, template.CSS]()
)

func Rendered(contentHash, theme string) (RenderedPost, bool) {
	return rendered.Get(renderKey{contentHash, theme})
}

func StoreRendered(contentHash, theme string, html []byte, meta any) {
	rendered.Set(renderKey{contentHash, theme}, RenderedPost{HTML: html, Meta: meta})
}

func ClearRendered() {
	rendered.Clear()
}

func RenderedCount() int {
	return rendered.Len()
}

// Stylesheet returns the syntax highlighting CSS generated for a chroma style.
func Stylesheet(theme string) (template.CSS, bool) {
	return stylesheets.Get(theme)
}

func StoreStylesheet(theme string, css template.CSS) {
	stylesheets.Set(theme, css)
}
