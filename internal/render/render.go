// Package render turns markdown into post HTML with highlighted code blocks.
package render

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/debemdeboas/war-room/internal/cache"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"
	"github.com/rs/zerolog"
)

var renderLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

const (
	EngineClassic = "classic"
	EngineMmark   = "mmark"

	DefaultHighlightTheme = "github"
)

const classicExtensions = parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough |
	parser.SpaceHeadings | parser.HeadingIDs | parser.AutoHeadingIDs | parser.BackslashLineBreak |
	parser.SuperSubscript | parser.DefinitionLists | parser.MathJax | parser.Footnotes |
	parser.OrderedListStart | parser.Attributes | parser.Mmark | parser.NonBlockingSpace

var calloutMarker = regexp.MustCompile(`//\s*<<(\d+)>>`)

var (
	engineMu       sync.RWMutex
	markdownEngine = EngineClassic

	// renderMu serializes cache misses so one body is rendered once.
	renderMu sync.Mutex
)

// SetEngine selects the markdown dialect. Switching drops every cached render.
func SetEngine(name string) error {
	if name != EngineClassic && name != EngineMmark {
		return fmt.Errorf("unknown markdown engine %q", name)
	}

	engineMu.Lock()
	defer engineMu.Unlock()
	if markdownEngine != name {
		markdownEngine = name
		cache.ClearRendered()
	}
	return nil
}

func engine() string {
	engineMu.RLock()
	defer engineMu.RUnlock()
	return markdownEngine
}

func formatter() *chromahtml.Formatter {
	return chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.TabWidth(4),
		chromahtml.WithLineNumbers(true),
		chromahtml.WrapLongLines(true),
	)
}

// SyntaxCSS returns the stylesheet for highlighted code blocks in the given chroma style.
func SyntaxCSS(theme string) template.CSS {
	if css, ok := cache.Stylesheet(theme); ok {
		return css
	}

	style := styles.Get(theme)
	var buf strings.Builder
	buf.WriteString(textColourRule(style))
	if err := formatter().WriteCSS(&buf, style); err != nil {
		renderLogger.Error().Err(err).Str("theme", theme).Msg("Error generating syntax CSS")
	}

	css := template.CSS(buf.String())
	cache.StoreStylesheet(theme, css)
	return css
}

// textColourRule gives light styles without a text colour a dark default.
func textColourRule(style *chroma.Style) string {
	bg := style.Get(chroma.Background)
	if bg.Colour.IsSet() {
		return ""
	}
	c := bg.Background
	luminance := (0.299*float64(c.Red()) + 0.587*float64(c.Green()) + 0.114*float64(c.Blue())) / 255
	if luminance <= 0.5 {
		return ""
	}
	return ".chroma { color: #181818; }\n"
}

func highlight(code, language, theme string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}

	tokens, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter().Format(&buf, styles.Get(theme), tokens); err != nil {
		return code
	}
	return calloutMarker.ReplaceAllString(html.UnescapeString(buf.String()), `<span class="callout">$1</span>`)
}

// codeBlock renders fenced code through chroma. It reports false for every other node.
func codeBlock(w io.Writer, node ast.Node, entering bool, theme string) bool {
	code, ok := node.(*ast.CodeBlock)
	if !ok || !entering {
		return false
	}
	fmt.Fprintf(w, `<div class="highlight">%s</div>`, highlight(string(code.Literal), string(code.Info), theme))
	return true
}

// Render converts md with the active engine. The second value is the mmark title block, if any.
func Render(md []byte, theme string) ([]byte, any) {
	if engine() == EngineMmark {
		return renderMmark(md, theme)
	}
	return renderClassic(md, theme), nil
}

func renderCached(md []byte, contentHash, theme string) ([]byte, any) {
	if contentHash == "" {
		renderLogger.Warn().Msg("Content hash is empty, skipping cache check")
		return Render(md, theme)
	}

	if hit, ok := cache.Rendered(contentHash, theme); ok {
		return hit.HTML, hit.Meta
	}

	renderMu.Lock()
	defer renderMu.Unlock()
	if hit, ok := cache.Rendered(contentHash, theme); ok {
		return hit.HTML, hit.Meta
	}

	out, meta := Render(md, theme)
	cache.StoreRendered(contentHash, theme, out, meta)
	renderLogger.Debug().Str("hash", contentHash).Str("theme", theme).Int("cached", cache.RenderedCount()).Msg("Rendered markdown")
	return out, meta
}

func renderClassic(md []byte, theme string) []byte {
	opts := md_html.RendererOptions{
		Flags:    md_html.CommonFlags | md_html.HrefTargetBlank | md_html.FootnoteReturnLinks,
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if codeBlock(w, node, entering, theme) {
				return ast.GoToNext, true
			}
			if callout, ok := node.(*ast.Callout); ok && entering {
				fmt.Fprintf(w, `<span class="callout">%s</span>`, callout.ID)
				return ast.GoToNext, true
			}
			return ast.GoToNext, false
		},
	}

	doc := parser.NewWithExtensions(classicExtensions).Parse(md)
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func renderMmark(md []byte, theme string) ([]byte, *mast.TitleData) {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)
	var title *mast.TitleData
	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, data, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				title = t.TitleData
			}
			return node, data, consumed
		},
		ReadIncludeFn: mparser.NewInitial("").ReadInclude,
		Flags:         parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)
	mparser.AddIndex(doc)

	if title == nil {
		title = &mast.TitleData{Title: "Untitled", Language: "en"}
	}
	mmarkOpts := mhtml.RendererOptions{Language: lang.New(title.Language)}

	opts := md_html.RendererOptions{
		Flags:    md_html.CommonFlags | md_html.FootnoteNoHRTag | md_html.FootnoteReturnLinks,
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if codeBlock(w, node, entering, theme) {
				return ast.GoToNext, true
			}
			return mmarkOpts.RenderHook(w, node, entering)
		},
	}
	return markdown.Render(doc, md_html.NewRenderer(opts)), title
}

// RenderPost renders a markdown document to the HTML stored as post content.
// Front matter is stripped by the caller.
func RenderPost(md []byte, contentHash string) string {
	out, _ := renderCached(md, contentHash, DefaultHighlightTheme)
	return string(out)
}
