package models

// Genre is a metadata genre tag.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Title is a movie or TV show as listed by trending, search and discover
// endpoints. Movies fill Title/ReleaseDate, shows fill Name/FirstAirDate.
type Title struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type,omitempty"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	BackdropPath string  `json:"backdrop_path,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	VoteAverage  float64 `json:"vote_average"`
	Genres       []Genre `json:"genres,omitempty"`
}

// DisplayTitle returns Title for movies and Name for shows.
func (t Title) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}

// Year returns the four-digit release (or first air) year, or "".
func (t Title) Year() string {
	d := t.ReleaseDate
	if d == "" {
		d = t.FirstAirDate
	}
	if len(d) < 4 {
		return ""
	}
	return d[:4]
}

// Kind returns the media type, inferring it from the populated fields when
// the API omitted media_type.
func (t Title) Kind() string {
	switch t.MediaType {
	case MediaTypeMovie, MediaTypeTV:
		return t.MediaType
	}
	if t.Title == "" && t.Name != "" {
		return MediaTypeTV
	}
	return MediaTypeMovie
}

// GenreNames returns the genre names in API order.
func (t Title) GenreNames() []string {
	names := make([]string, 0, len(t.Genres))
	for _, g := range t.Genres {
		names = append(names, g.Name)
	}
	return names
}
