package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/SilentStoat/StoatBot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const profileColumns = `
	scope_id, user_id, display_name, dst_observed, utc_offset_m,
	resolved_zone, locale, color, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		p         domain.Profile
		dst       sql.NullInt64
		offset    sql.NullInt64
		zone      sql.NullString
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&p.ScopeID, &p.UserID, &p.DisplayName, &dst, &offset,
		&zone, &p.Locale, &p.Color, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	p.DSTObserved = fromNullBool(dst)
	p.UTCOffsetMinutes = fromNullInt(offset)
	p.ResolvedZone = fromNullString(zone)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

// Get returns a profile by key or ErrNotFound.
func (r *SQLiteRepo) Get(ctx context.Context, key domain.ProfileKey) (*domain.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE scope_id = ? AND user_id = ?`,
		key.ScopeID, key.UserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Upsert reads the current row, applies the patch and writes it back inside
// one transaction. A missing row is created.
func (r *SQLiteRepo) Upsert(ctx context.Context, key domain.ProfileKey, patch domain.ProfilePatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	p, err := scanProfile(tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE scope_id = ? AND user_id = ?`,
		key.ScopeID, key.UserID,
	))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		p = &domain.Profile{ScopeID: key.ScopeID, UserID: key.UserID, CreatedAt: now}
	case err != nil:
		return err
	}
	patch.Apply(p)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope_id, user_id) DO UPDATE SET
			display_name  = excluded.display_name,
			dst_observed  = excluded.dst_observed,
			utc_offset_m  = excluded.utc_offset_m,
			resolved_zone = excluded.resolved_zone,
			locale        = excluded.locale,
			color         = excluded.color,
			updated_at    = excluded.updated_at`,
		p.ScopeID, p.UserID, p.DisplayName, nullBool(p.DSTObserved), nullInt(p.UTCOffsetMinutes),
		nullString(p.ResolvedZone), p.Locale, p.Color, p.CreatedAt.Unix(), now.Unix(),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListScope returns every profile in the scope ordered by user id.
func (r *SQLiteRepo) ListScope(ctx context.Context, scopeID int64) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE scope_id = ? ORDER BY user_id ASC`,
		scopeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// SetDigest enables (or reschedules) the scope's daily roster post.
func (r *SQLiteRepo) SetDigest(ctx context.Context, scopeID int64, atMinutes int, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO digests (scope_id, at_m, enabled, next_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(scope_id) DO UPDATE SET
			at_m    = excluded.at_m,
			enabled = 1,
			next_at = excluded.next_at`,
		scopeID, atMinutes, next.UTC().Unix(),
	)
	return err
}

// DisableDigest turns the scope's roster post off.
func (r *SQLiteRepo) DisableDigest(ctx context.Context, scopeID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE digests
		SET enabled = 0, next_at = NULL
		WHERE scope_id = ?`,
		scopeID,
	)
	return err
}

// ListDueDigests returns up to `limit` enabled digests whose next_at is <= now,
// ordered by next_at ascending.
func (r *SQLiteRepo) ListDueDigests(ctx context.Context, now time.Time, limit int) ([]domain.Digest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scope_id, at_m, next_at, last_sent_at
		FROM digests
		WHERE enabled = 1
		  AND next_at IS NOT NULL
		  AND next_at <= ?
		ORDER BY next_at ASC
		LIMIT ?`,
		now.UTC().Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Digest
	for rows.Next() {
		var (
			d      domain.Digest
			nextAt int64
			lastNS sql.NullInt64
		)
		if err := rows.Scan(&d.ScopeID, &d.AtMinutes, &nextAt, &lastNS); err != nil {
			return nil, err
		}
		d.NextAt = time.Unix(nextAt, 0).UTC()
		d.LastSentAt = fromNullInt64(lastNS)
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// MarkDigestSent records a delivery and the following slot.
func (r *SQLiteRepo) MarkDigestSent(ctx context.Context, scopeID int64, next, sent time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE digests
		SET next_at = ?, last_sent_at = ?
		WHERE scope_id = ?`,
		next.UTC().Unix(), toNullInt64(&sent), scopeID,
	)
	return err
}
