// Package store provides the PostgreSQL record-store adapter used for
// attribution lookups. It implements domain.RecordStore against the
// collaboration platform's schema: oc_filecache (file index), oc_activity
// (activity log), oc_users, oc_preferences and oc_accounts (profiles).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attrsync/attrsync/internal/domain"
)

// Logger defines the logging interface for the store adapter.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// emailPreferenceKeys are the preference keys consulted for a contact
// address, in preference order.
var emailPreferenceKeys = []string{"email", "mail"}

// Config holds the PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresStore implements domain.RecordStore on a pgx connection pool.
// Every query is best-effort from the caller's point of view: the resolver
// downgrades any error returned here to "no result".
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger Logger
}

// New connects to the record store and verifies connectivity so a
// misconfigured store surfaces at startup rather than mid-cycle.
func New(ctx context.Context, cfg Config, log Logger) (*PostgresStore, error) {
	if cfg.Host == "" || cfg.Database == "" || cfg.User == "" {
		return nil, fmt.Errorf("record store credentials missing: host=%q db=%q user=%q",
			cfg.Host, cfg.Database, cfg.User)
	}

	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create record store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to record store at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	log.Debug(ctx, "record store connected", map[string]interface{}{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.Database,
	})
	return &PostgresStore{pool: pool, logger: log}, nil
}

// FileIDByPath looks up the stable file identifier for a store path key.
func (s *PostgresStore) FileIDByPath(ctx context.Context, pathKey string) (int64, bool, error) {
	const query = `SELECT fileid FROM oc_filecache WHERE path = $1 LIMIT 1`

	var id int64
	err := s.pool.QueryRow(ctx, query, pathKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("file index lookup: %w", err)
	}
	return id, true, nil
}

// RecentActivityByFileID returns up to limit activity rows for the file
// identifier, most recent first. Ties within the same timestamp are broken
// by descending activity id so insertion order stays deterministic.
func (s *PostgresStore) RecentActivityByFileID(ctx context.Context, fileID int64, limit int) ([]domain.ActivityEntry, error) {
	const query = `
		SELECT COALESCE("user", affecteduser) AS username, timestamp, activity_id
		FROM oc_activity
		WHERE object_id = $1 AND app = 'files'
		ORDER BY timestamp DESC, activity_id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, fileID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity lookup by file id: %w", err)
	}
	defer rows.Close()

	return scanActivity(rows)
}

// searchActivityQuery matches the path exactly, as a substring of the file
// column, or as a substring of the structured parameters blob.
const searchActivityQuery = `
	SELECT COALESCE("user", affecteduser) AS username, timestamp, activity_id
	FROM oc_activity
	WHERE app = 'files'
	  AND (file = $1 OR file LIKE '%' || $1 || '%' OR subjectparams::text LIKE '%' || $1 || '%')
	ORDER BY timestamp DESC, activity_id DESC
	LIMIT $2`

// SearchActivityByPath text-searches the activity log.
func (s *PostgresStore) SearchActivityByPath(ctx context.Context, path string, limit int) ([]domain.ActivityEntry, error) {
	rows, err := s.pool.Query(ctx, searchActivityQuery, path, limit)
	if err != nil {
		return nil, fmt.Errorf("activity text search: %w", err)
	}
	defer rows.Close()

	return scanActivity(rows)
}

// DisplayName returns the user-profile table's display name for the account.
func (s *PostgresStore) DisplayName(ctx context.Context, username string) (string, bool, error) {
	const query = `SELECT displayname FROM oc_users WHERE uid = $1`

	var display *string
	err := s.pool.QueryRow(ctx, query, username).Scan(&display)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("display name lookup: %w", err)
	}
	if display == nil || *display == "" {
		return "", false, nil
	}
	return *display, true, nil
}

// EmailPreference returns the first present value among the ordered
// email-like preference keys.
func (s *PostgresStore) EmailPreference(ctx context.Context, username string) (string, bool, error) {
	const query = `
		SELECT configvalue
		FROM oc_preferences
		WHERE userid = $1 AND appid = 'settings' AND configkey = ANY($2)
		ORDER BY array_position($2, configkey)
		LIMIT 1`

	var value string
	err := s.pool.QueryRow(ctx, query, username, emailPreferenceKeys).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("email preference lookup: %w", err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// ProfileBlob returns the raw JSON profile document for the account.
func (s *PostgresStore) ProfileBlob(ctx context.Context, username string) ([]byte, bool, error) {
	const query = `SELECT data FROM oc_accounts WHERE uid = $1`

	var blob []byte
	err := s.pool.QueryRow(ctx, query, username).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profile blob lookup: %w", err)
	}
	if len(blob) == 0 {
		return nil, false, nil
	}
	return blob, true, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanActivity(rows pgx.Rows) ([]domain.ActivityEntry, error) {
	var entries []domain.ActivityEntry
	for rows.Next() {
		var (
			user      *string
			timestamp int64
			sequence  int64
		)
		if err := rows.Scan(&user, &timestamp, &sequence); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		entry := domain.ActivityEntry{Timestamp: timestamp, Sequence: sequence}
		if user != nil {
			entry.User = *user
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return entries, nil
}
