package models

// Media types as used by the metadata API paths and embed URLs.
const (
	MediaTypeAll   = "all"
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// Trending windows.
const (
	WindowDay  = "day"
	WindowWeek = "week"
)
