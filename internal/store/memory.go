package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/voyagen/reelvault/internal/models"
)

// Memory is an in-process Store used when no DATABASE_URL is configured.
// Contents are lost on restart.
type Memory struct {
	mu         sync.RWMutex
	nextSource int64
	nextChan   int64
	sources    map[int64]*models.Source
	channels   map[int64]*models.Channel
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		sources:  make(map[int64]*models.Source),
		channels: make(map[int64]*models.Channel),
	}
}

func (m *Memory) CreateOrGetSource(_ context.Context, name, url, userAgent string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.Name == name {
			s.URL = url
			s.UserAgent = userAgent
			return s.ID, nil
		}
	}
	m.nextSource++
	now := time.Now().UTC()
	m.sources[m.nextSource] = &models.Source{
		ID: m.nextSource, Name: name, URL: url, UserAgent: userAgent, Enabled: true, CreatedAt: &now,
	}
	return m.nextSource, nil
}

func (m *Memory) ListSources(_ context.Context) ([]models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b models.Source) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) GetSourceByID(_ context.Context, sourceID int64) (*models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[sourceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) UpdateSource(_ context.Context, sourceID int64, u SourceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[sourceID]
	if !ok {
		return ErrNotFound
	}
	if u.Name != nil {
		for id, other := range m.sources {
			if id != sourceID && other.Name == *u.Name {
				return ErrDuplicateName
			}
		}
		s.Name = *u.Name
	}
	if u.URL != nil {
		s.URL = *u.URL
	}
	if u.UserAgent != nil {
		s.UserAgent = *u.UserAgent
	}
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	return nil
}

func (m *Memory) DeleteSource(_ context.Context, sourceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[sourceID]; !ok {
		return ErrNotFound
	}
	delete(m.sources, sourceID)
	for id, ch := range m.channels {
		if ch.SourceID == sourceID {
			delete(m.channels, id)
		}
	}
	return nil
}

func (m *Memory) UpdateSourceLastUpdated(_ context.Context, sourceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[sourceID]; ok {
		now := time.Now().UTC()
		s.LastUpdated = &now
	}
	return nil
}

func (m *Memory) UpsertChannel(_ context.Context, ch *models.Channel) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.channels {
		if existing.SourceID == ch.SourceID && existing.Name == ch.Name && existing.URL == ch.URL {
			existing.Position = ch.Position
			return existing.ID, nil
		}
	}
	m.nextChan++
	cp := *ch
	cp.ID = m.nextChan
	m.channels[cp.ID] = &cp
	return cp.ID, nil
}

func (m *Memory) RemoveStaleChannels(_ context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, ch := range m.channels {
		if ch.SourceID == sourceID && !slices.Contains(keepIDs, id) {
			delete(m.channels, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListChannels(_ context.Context, f ChannelFilter) ([]models.Channel, int, error) {
	f.Normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var matched []models.Channel
	for _, ch := range m.channels {
		if f.SourceID != nil && ch.SourceID != *f.SourceID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ch.Name), search) {
			continue
		}
		matched = append(matched, *ch)
	}
	slices.SortFunc(matched, func(a, b models.Channel) int {
		if c := cmp.Compare(a.SourceID, b.SourceID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := len(matched)
	if f.Offset >= total {
		return []models.Channel{}, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return matched[f.Offset:end], total, nil
}
