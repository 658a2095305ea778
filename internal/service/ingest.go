package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyagen/reelvault/internal/cache"
	"github.com/voyagen/reelvault/internal/fetcher"
	"github.com/voyagen/reelvault/internal/log"
	"github.com/voyagen/reelvault/internal/models"
	"github.com/voyagen/reelvault/internal/store"
)

// refreshLockTTL bounds how long a crashed refresh can block the next one.
const refreshLockTTL = 10 * time.Minute

// ErrSourceDisabled is returned when refreshing a disabled source.
var ErrSourceDisabled = errors.New("source is disabled")

// Ingest fetches the source's playlist, parses it and replaces the stored
// channel snapshot: entries are upserted in playlist order and channels no
// longer listed are removed. Nothing is written when retrieval fails.
func Ingest(ctx context.Context, s store.Store, src *models.Source, opts fetcher.Options) (channelCount int, err error) {
	if src.URL == "" {
		return 0, fmt.Errorf("source %d has no url", src.ID)
	}
	if src.UserAgent != "" {
		opts.UserAgent = src.UserAgent
	}

	entries, err := fetcher.FetchChannels(ctx, src.URL, opts)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	keepIDs := make([]int64, 0, len(entries))
	for i, e := range entries {
		// Stop between upserts so shutdown is not held up by large playlists.
		if err := ctx.Err(); err != nil {
			return channelCount, fmt.Errorf("ingest cancelled: %w", err)
		}
		id, err := s.UpsertChannel(ctx, &models.Channel{
			SourceID: src.ID,
			Name:     e.Name,
			URL:      e.URL,
			Position: i,
		})
		if err != nil {
			return channelCount, fmt.Errorf("UpsertChannel: %w", err)
		}
		keepIDs = append(keepIDs, id)
		channelCount++
	}

	if _, err := s.RemoveStaleChannels(ctx, src.ID, keepIDs); err != nil {
		return channelCount, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	if err := s.UpdateSourceLastUpdated(ctx, src.ID); err != nil {
		return channelCount, fmt.Errorf("UpdateSourceLastUpdated: %w", err)
	}
	return channelCount, nil
}

// RefreshSource looks up sourceID and ingests it. With rds set, a
// distributed lock keeps two refreshes of the same source from
// interleaving; a held lock yields cache.ErrLocked.
func RefreshSource(ctx context.Context, s store.Store, rds *cache.Redis, sourceID int64, opts fetcher.Options) (int, error) {
	src, err := s.GetSourceByID(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if !src.Enabled {
		return 0, ErrSourceDisabled
	}

	if rds != nil {
		unlock, err := cache.TryLock(ctx, rds, cache.RefreshLockKey(sourceID), refreshLockTTL)
		if err != nil {
			return 0, err
		}
		defer unlock()
	}

	logger := log.WithComponent("ingest")
	start := time.Now()
	n, err := Ingest(ctx, s, src, opts)
	if err != nil {
		return n, err
	}
	logger.Info().
		Int64("source_id", sourceID).
		Str("source", src.Name).
		Int("channels", n).
		Dur("took", time.Since(start)).
		Msg("source refreshed")
	return n, nil
}

// RunRefreshWorker drains refresh jobs from Redis until ctx is cancelled.
func RunRefreshWorker(ctx context.Context, rds *cache.Redis, s store.Store, opts fetcher.Options) {
	logger := log.WithComponent("refresh-worker")
	logger.Info().Msg("refresh worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("refresh worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, rds, cache.RefreshQueue, 5*time.Second)
		if err != nil {
			logger.Warn().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		logger.Debug().Int64("source_id", job.SourceID).Str("source", job.SourceName).Msg("processing refresh job")
		_, err = RefreshSource(ctx, s, rds, job.SourceID, opts)
		switch {
		case err == nil:
		case errors.Is(err, cache.ErrLocked):
			logger.Info().Int64("source_id", job.SourceID).Msg("refresh already running; job dropped")
		default:
			logger.Error().Err(err).Int64("source_id", job.SourceID).Str("source", job.SourceName).Msg("refresh job failed")
		}
	}
}
