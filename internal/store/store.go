package store

import (
	"context"
	"errors"

	"github.com/voyagen/reelvault/internal/models"
)

// ErrNotFound is returned when a source or channel does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName is returned when renaming a source to a name another
// source already has.
var ErrDuplicateName = errors.New("source name already exists")

// Store defines persistence for playlist sources and their channel snapshots.
type Store interface {
	// CreateOrGetSource creates a source by name if not exists, returns id.
	CreateOrGetSource(ctx context.Context, name, url, userAgent string) (int64, error)
	// ListSources returns all sources ordered by id.
	ListSources(ctx context.Context) ([]models.Source, error)
	// GetSourceByID returns a single source or ErrNotFound.
	GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error)
	// UpdateSource applies the non-nil fields of update.
	UpdateSource(ctx context.Context, sourceID int64, update SourceUpdate) error
	// DeleteSource deletes a source; its channels cascade.
	DeleteSource(ctx context.Context, sourceID int64) error
	// UpdateSourceLastUpdated stamps last_updated with the current time.
	UpdateSourceLastUpdated(ctx context.Context, sourceID int64) error

	// UpsertChannel inserts or updates a channel keyed by (source, name, url); returns its id.
	UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error)
	// RemoveStaleChannels deletes channels of the source whose id is not in keepIDs.
	RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error)
	// ListChannels returns channels matching filter plus the total before limit/offset.
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error)
}

// ChannelFilter holds optional filters for listing channels.
type ChannelFilter struct {
	SourceID *int64
	Search   string // case-insensitive substring match on channel name
	Limit    int    // default 50, max 500
	Offset   int
}

// Normalize clamps Limit and Offset to their allowed ranges.
func (f *ChannelFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// SourceUpdate holds mutable fields for PATCH /api/sources/{id}.
// nil = unchanged.
type SourceUpdate struct {
	Name      *string
	URL       *string
	UserAgent *string
	Enabled   *bool
}
