// Package web renders the HTML pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/voyagen/reelvault/internal/models"
	"github.com/voyagen/reelvault/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// PosterFunc builds an absolute image URL for a poster path and size.
type PosterFunc func(path, size string) string

// Renderer executes the page templates.
type Renderer struct {
	pages      map[string]*template.Template
	providers  Providers
	posterBase string
}

// NewRenderer parses the embedded templates. poster turns poster paths into
// URLs and poster("/", size) must yield that size's base URL plus "/";
// providers supplies the iframe sources for play pages.
func NewRenderer(poster PosterFunc, providers Providers) (*Renderer, error) {
	funcs := template.FuncMap{
		"poster":  poster,
		"playURL": PlayURL,
		"join":    strings.Join,
	}
	r := &Renderer{
		pages:      make(map[string]*template.Template),
		providers:  providers,
		posterBase: strings.TrimSuffix(poster("/", "w500"), "/"),
	}
	for _, page := range []string{"home", "play", "live", "error"} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", page, err)
		}
		r.pages[page] = t
	}
	return r, nil
}

// PlayURL returns the site path of a title's play page.
func PlayURL(t models.Title) string {
	id := strconv.FormatInt(t.ID, 10)
	if t.Kind() == models.MediaTypeTV {
		return "/play/tv/" + id
	}
	return "/play/" + id
}

type homeData struct {
	PageTitle  string
	PosterBase string
	Sections   []service.Section
}

type playData struct {
	PageTitle string
	Title     *models.Title
	Embeds    []Embed
}

type liveData struct {
	PageTitle string
	Channels  []models.ChannelEntry
	Error     string
}

type errorData struct {
	PageTitle string
	Message   string
}

// Home renders the landing page.
func (r *Renderer) Home(w io.Writer, sections []service.Section) error {
	return r.execute(w, "home", homeData{PageTitle: "ReelVault", PosterBase: r.posterBase, Sections: sections})
}

// Play renders a title's detail page with its embedded player.
func (r *Renderer) Play(w io.Writer, t *models.Title) error {
	return r.execute(w, "play", playData{
		PageTitle: t.DisplayTitle() + " - Watch Now",
		Title:     t,
		Embeds:    r.providers.Embeds(t.Kind(), t.ID),
	})
}

// Live renders the live TV page. errMsg is shown instead of the list when
// the playlist could not be retrieved.
func (r *Renderer) Live(w io.Writer, channels []models.ChannelEntry, errMsg string) error {
	if channels == nil {
		channels = []models.ChannelEntry{}
	}
	return r.execute(w, "live", liveData{PageTitle: "Live TV", Channels: channels, Error: errMsg})
}

// Error renders a plain message page.
func (r *Renderer) Error(w io.Writer, msg string) error {
	return r.execute(w, "error", errorData{PageTitle: "ReelVault", Message: msg})
}

// execute renders into a buffer first so a template error never leaves a
// half-written page.
func (r *Renderer) execute(w io.Writer, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
