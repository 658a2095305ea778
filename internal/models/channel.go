package models

// ChannelEntry is one playable stream parsed from an M3U playlist.
// Name may be empty when the EXTINF line carries no title; both fields are
// always serialised.
type ChannelEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Channel is a ChannelEntry persisted under a playlist source.
type Channel struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Position int    `json:"position"`
	SourceID int64  `json:"source_id,omitempty"`
}
