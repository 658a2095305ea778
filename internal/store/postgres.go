package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyagen/reelvault/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

const sourceColumns = `id, name, url, COALESCE(user_agent, ''), enabled, last_updated, created_at`

func scanSource(row pgx.Row) (*models.Source, error) {
	var s models.Source
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.UserAgent, &s.Enabled, &s.LastUpdated, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateOrGetSource creates a source by name if not exists, returns id.
func (p *Postgres) CreateOrGetSource(ctx context.Context, name, url, userAgent string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO sources (name, url, user_agent, enabled)
		 VALUES ($1, $2, NULLIF($3,''), true)
		 ON CONFLICT (name) DO UPDATE SET url = EXCLUDED.url, user_agent = EXCLUDED.user_agent
		 RETURNING id`,
		name, url, userAgent,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("CreateOrGetSource: %w", err)
	}
	return id, nil
}

// ListSources returns all sources.
func (p *Postgres) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListSources: %w", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSources scan: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetSourceByID returns one source.
func (p *Postgres) GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error) {
	s, err := scanSource(p.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSourceByID: %w", err)
	}
	return s, nil
}

// UpdateSource builds an UPDATE from the non-nil fields.
func (p *Postgres) UpdateSource(ctx context.Context, sourceID int64, u SourceUpdate) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.URL != nil {
		add("url", *u.URL)
	}
	if u.UserAgent != nil {
		add("user_agent", *u.UserAgent)
	}
	if u.Enabled != nil {
		add("enabled", *u.Enabled)
	}
	if len(sets) == 0 {
		// Nothing to change; still report a missing source.
		_, err := p.GetSourceByID(ctx, sourceID)
		return err
	}
	args = append(args, sourceID)
	tag, err := p.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE sources SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("UpdateSource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLSTATE unique_violation.
const codeUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// DeleteSource removes a source and, via ON DELETE CASCADE, its channels.
func (p *Postgres) DeleteSource(ctx context.Context, sourceID int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("DeleteSource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSourceLastUpdated sets last_updated for the source.
func (p *Postgres) UpdateSourceLastUpdated(ctx context.Context, sourceID int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE sources SET last_updated = NOW() WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("UpdateSourceLastUpdated: %w", err)
	}
	return nil
}

// UpsertChannel inserts or updates a channel; returns channel id.
func (p *Postgres) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO channels (source_id, name, url, position)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source_id, name, url) DO UPDATE SET position = EXCLUDED.position
		 RETURNING id`,
		ch.SourceID, ch.Name, ch.URL, ch.Position,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("UpsertChannel: %w", err)
	}
	return id, nil
}

// RemoveStaleChannels deletes channels of sourceID not listed in keepIDs.
func (p *Postgres) RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	if keepIDs == nil {
		keepIDs = []int64{}
	}
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM channels WHERE source_id = $1 AND NOT (id = ANY($2))`,
		sourceID, keepIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListChannels returns a page of channels in playlist order.
func (p *Postgres) ListChannels(ctx context.Context, f ChannelFilter) ([]models.Channel, int, error) {
	f.Normalize()

	var where []string
	var args []any
	if f.SourceID != nil {
		args = append(args, *f.SourceID)
		where = append(where, fmt.Sprintf("source_id = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListChannels count: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, source_id, name, url, position FROM channels%s
		 ORDER BY source_id, position, id LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()

	var out []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.SourceID, &ch.Name, &ch.URL, &ch.Position); err != nil {
			return nil, 0, fmt.Errorf("ListChannels scan: %w", err)
		}
		out = append(out, ch)
	}
	return out, total, rows.Err()
}
