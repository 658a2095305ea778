package web

import (
	"strconv"
	"strings"
)

// Providers is an ordered list of iframe URL templates. {type} expands to
// "movie" or "tv" and {id} to the metadata id.
type Providers []string

// Embed is one playable iframe source.
type Embed struct {
	Label string
	URL   string
}

// Embeds expands every template for the given title.
func (p Providers) Embeds(kind string, id int64) []Embed {
	out := make([]Embed, 0, len(p))
	r := strings.NewReplacer("{type}", kind, "{id}", strconv.FormatInt(id, 10))
	for i, tmpl := range p {
		out = append(out, Embed{Label: "Server " + strconv.Itoa(i+1), URL: r.Replace(tmpl)})
	}
	return out
}
