package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ContentCurator/internal/cache"
	"ContentCurator/internal/retry"
)

const cacheTable = "cache_entries"

// SQLCache is the durable cache.Store backed by SQLite or Postgres.
type SQLCache struct {
	db         *sql.DB
	dialect    Dialect
	builder    sq.StatementBuilderType
	defaultTTL time.Duration
	busy       retry.Policy
	now        func() int64
	logger     *slog.Logger
}

var _ cache.Store = (*SQLCache)(nil)

// NewSQLCache wires a sql.DB and ensures the cache table exists.
func NewSQLCache(ctx context.Context, db *sql.DB, dialect Dialect, defaultTTL time.Duration, log *slog.Logger) (*SQLCache, error) {
	c := &SQLCache{
		db:         db,
		dialect:    dialect,
		builder:    sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
		defaultTTL: defaultTTL,
		busy:       retry.Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second},
		now:        unixNow,
		logger:     log,
	}
	if err := c.migrate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SQLCache) migrate(ctx context.Context) error {
	payloadType := "BLOB"
	if c.dialect == DialectPostgres {
		payloadType = "BYTEA"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			cache_key   TEXT PRIMARY KEY,
			scope       TEXT NOT NULL,
			payload     %s NOT NULL,
			created_at  BIGINT NOT NULL,
			ttl_seconds BIGINT NOT NULL
		)`, cacheTable, payloadType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s (scope)`, cacheTable, cacheTable),
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate cache: %w", err)
		}
	}
	return nil
}

// Get returns the payload for key. Read failures are logged and reported
// as misses.
func (c *SQLCache) Get(ctx context.Context, key cache.Key) ([]byte, bool) {
	query, args, err := c.builder.
		Select("payload", "created_at", "ttl_seconds").
		From(cacheTable).
		Where(sq.Eq{"cache_key": key.String()}).
		ToSql()
	if err != nil {
		c.debug("build cache select", "error", err)
		return nil, false
	}

	var (
		payload   []byte
		createdAt int64
		ttl       int64
	)
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&payload, &createdAt, &ttl)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.debug("cache read failed", "key", key.String(), "error", err)
		}
		return nil, false
	}

	entry := cache.Entry{Key: key, Payload: payload, CreatedAt: time.Unix(createdAt, 0), TTLSeconds: ttl}
	if entry.Expired(time.Unix(c.now(), 0)) {
		return nil, false
	}
	return payload, true
}

// Put upserts the entry and purges rows that have already expired.
func (c *SQLCache) Put(ctx context.Context, key cache.Key, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	purge, purgeArgs, err := c.builder.
		Delete(cacheTable).
		Where(sq.Lt{"created_at + ttl_seconds": now}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache purge: %w", err)
	}

	upsert, upsertArgs, err := c.builder.
		Insert(cacheTable).
		Columns("cache_key", "scope", "payload", "created_at", "ttl_seconds").
		Values(key.String(), string(key.Scope), payload, now, cache.TTLSeconds(ttl)).
		Suffix(`ON CONFLICT (cache_key) DO UPDATE SET
			scope = excluded.scope,
			payload = excluded.payload,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache upsert: %w", err)
	}

	return c.exec(ctx, func(ctx context.Context) error {
		if _, err := c.db.ExecContext(ctx, purge, purgeArgs...); err != nil {
			return fmt.Errorf("purge expired: %w", err)
		}
		if _, err := c.db.ExecContext(ctx, upsert, upsertArgs...); err != nil {
			return fmt.Errorf("upsert cache entry: %w", err)
		}
		return nil
	})
}

// Invalidate removes a single entry.
func (c *SQLCache) Invalidate(ctx context.Context, key cache.Key) error {
	query, args, err := c.builder.
		Delete(cacheTable).
		Where(sq.Eq{"cache_key": key.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache delete: %w", err)
	}
	return c.exec(ctx, func(ctx context.Context) error {
		if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("invalidate cache entry: %w", err)
		}
		return nil
	})
}

// Clear removes every entry in scope, or every entry when scope is empty.
func (c *SQLCache) Clear(ctx context.Context, scope cache.Scope) error {
	stmt := c.builder.Delete(cacheTable)
	if scope != "" {
		stmt = stmt.Where(sq.Eq{"scope": string(scope)})
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return fmt.Errorf("build cache clear: %w", err)
	}
	return c.exec(ctx, func(ctx context.Context) error {
		if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		return nil
	})
}

// Stats returns the number of live and expired rows per scope.
func (c *SQLCache) Stats(ctx context.Context) (map[cache.Scope][2]int, error) {
	query, args, err := c.builder.
		Select("scope", "created_at + ttl_seconds").
		From(cacheTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cache stats: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cache stats: %w", err)
	}
	defer rows.Close()

	now := c.now()
	result := map[cache.Scope][2]int{}
	for rows.Next() {
		var (
			scope     string
			expiresAt int64
		)
		if err := rows.Scan(&scope, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan cache stats: %w", err)
		}
		counts := result[cache.Scope(scope)]
		if now > expiresAt {
			counts[1]++
		} else {
			counts[0]++
		}
		result[cache.Scope(scope)] = counts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

func (c *SQLCache) exec(ctx context.Context, fn func(context.Context) error) error {
	if c.dialect != DialectSQLite {
		return fn(ctx)
	}
	return retry.Do(ctx, c.busy, isBusy, fn)
}

func (c *SQLCache) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
