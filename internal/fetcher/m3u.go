package fetcher

import (
	"strings"

	"github.com/voyagen/reelvault/internal/models"
)

const (
	extinfPrefix = "#EXTINF"
	urlPrefix    = "http"
)

// ParseM3U converts raw M3U text into channel entries in source order.
// An entry is emitted only when an #EXTINF line is directly followed (blank
// lines aside) by a line starting with "http". Malformed records are dropped,
// never reported; empty or non-playlist input yields an empty slice.
func ParseM3U(raw string) []models.ChannelEntry {
	entries, _ := ParseM3UStats(raw)
	return entries
}

// ParseM3UStats is ParseM3U that also reports how many #EXTINF records were
// dropped for lack of a usable URL line.
func ParseM3UStats(raw string) (entries []models.ChannelEntry, skipped int) {
	entries = []models.ChannelEntry{}

	var name string
	pending := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))

		switch {
		case strings.HasPrefix(line, extinfPrefix):
			// A second EXTINF before any URL: the first record is incomplete.
			if pending {
				skipped++
			}
			name = nameFromEXTINF(line)
			pending = true
		case line == "" || !pending:
			continue
		case strings.HasPrefix(line, urlPrefix):
			entries = append(entries, models.ChannelEntry{Name: name, URL: line})
			name, pending = "", false
		default:
			// Never pair a name with a non-http line; drop the record instead.
			skipped++
			name, pending = "", false
		}
	}
	if pending {
		skipped++
	}
	return entries, skipped
}

// nameFromEXTINF returns the text after the last comma, trimmed, or "" when
// the line has no comma.
func nameFromEXTINF(extinf string) string {
	i := strings.LastIndex(extinf, ",")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(extinf[i+1:])
}
