// Package renderer turns named page templates plus a context mapping into
// HTML. Pages are html/template sets (layout + page + partials) exposed as
// templ components so handlers render them like any other templ.Component.
//
// Templates are embedded in the binary. In development they can be loaded
// from a directory instead and reloaded when the files change.
package renderer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/version"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

//go:embed static
var embeddedStatic embed.FS

const (
	layoutFile = "layout.html"
	// Files that define shared blocks rather than pages.
	partialPrefix = "plant_form"
)

// Page names.
const (
	PagePlantsList = "plants_list"
	PageAbout      = "about"
	PageCreate     = "create"
	PageDetail     = "detail"
	PageEdit       = "edit"
	PageError      = "error"
)

// Context is the mapping of named values a page is rendered with.
type Context map[string]any

// Options configures a Renderer.
type Options struct {
	// Dir loads templates from disk instead of the embedded copy.
	Dir string
	// LiveReload injects the websocket reload script into every page.
	LiveReload bool
	Logger     logging.Logger
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	mu         sync.RWMutex
	fsys       fs.FS
	pages      map[string]*template.Template
	liveReload bool
	logger     logging.Logger
}

// New parses every page and fails if any template is malformed.
func New(opts Options) (*Renderer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var fsys fs.FS
	if opts.Dir != "" {
		info, err := os.Stat(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("templates dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("templates dir %s is not a directory", opts.Dir)
		}
		fsys = os.DirFS(opts.Dir)
	} else {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	r := &Renderer{
		fsys:       fsys,
		liveReload: opts.LiveReload,
		logger:     logger.WithComponent("renderer"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses all templates. On failure the previous set stays active.
func (r *Renderer) Reload() error {
	pages, err := parsePages(r.fsys)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.pages = pages
	r.mu.Unlock()

	r.logger.Debug(context.Background(), "templates loaded", "pages", len(pages))
	return nil
}

// Names lists the available pages in sorted order.
func (r *Renderer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pages))
	for name := range r.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Page returns a component rendering the named page with data. Unknown
// pages fail at render time.
func (r *Renderer) Page(name string, data Context) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		r.mu.RLock()
		tmpl, ok := r.pages[name]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("unknown page %q", name)
		}

		values := make(map[string]any, len(data)+2)
		for k, v := range data {
			values[k] = v
		}
		values["LiveReload"] = r.liveReload
		values["Version"] = version.GetShortVersion()

		return tmpl.ExecuteTemplate(w, "layout", values)
	})
}

// RenderString renders a page into a string. Mostly useful in tests.
func (r *Renderer) RenderString(ctx context.Context, name string, data Context) (string, error) {
	var buf bytes.Buffer
	if err := r.Page(name, data).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// StaticFS exposes the embedded stylesheet directory.
func StaticFS() fs.FS {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"label": fieldLabel,
	}
}

// fieldLabel turns a form field name such as "date_planted" into a heading
// such as "Date Planted". A cases.Caser is stateful, so each call gets its own.
func fieldLabel(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	entries, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}

	var partials, pageFiles []string
	hasLayout := false
	for _, file := range entries {
		switch {
		case file == layoutFile:
			hasLayout = true
		case strings.HasPrefix(file, partialPrefix):
			partials = append(partials, file)
		default:
			pageFiles = append(pageFiles, file)
		}
	}
	if !hasLayout {
		return nil, fmt.Errorf("missing %s", layoutFile)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, file := range pageFiles {
		name := strings.TrimSuffix(path.Base(file), ".html")
		files := append([]string{layoutFile}, partials...)
		files = append(files, file)

		tmpl, err := template.New(name).Funcs(Funcs()).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}
