package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
)

const (
	DefaultTable     = "controls_snapshots"
	DefaultRetention = 10
)

const snapshotColumns = "snapshot_id, applications, payload, created_at, saved_at"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config configures the PostgreSQL connection.
type Config struct {
	DSN             string
	Table           string
	Retention       int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// FallbackStore keeps the most recent usable snapshots in one table. Load
// returns the newest; rows beyond the retention count are pruned on Save.
type FallbackStore struct {
	db        *sql.DB
	table     string
	retention int
	now       func() time.Time
}

// Open connects, checks the connection and creates the table when missing.
func Open(ctx context.Context, cfg Config) (*FallbackStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewFallbackStoreWithDB(db, cfg.Table, cfg.Retention)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewFallbackStoreWithDB wraps an open pool. An empty table name and a
// non-positive retention select the defaults.
func NewFallbackStoreWithDB(db *sql.DB, table string, retention int) (*FallbackStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &FallbackStore{db: db, table: table, retention: retention, now: time.Now}, nil
}

// EnsureSchema creates the snapshot table and its index.
func (s *FallbackStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id           BIGSERIAL PRIMARY KEY,
			snapshot_id  TEXT NOT NULL,
			applications INTEGER NOT NULL,
			payload      JSONB NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			saved_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %[1]s_saved_at_idx ON %[1]s (saved_at DESC);
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return nil
}

// Save appends the snapshot and prunes old rows in one transaction.
func (s *FallbackStore) Save(ctx context.Context, snapshot *entity.CacheSnapshot) error {
	model, err := ToDBModel(snapshot, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := fmt.Sprintf(`
		INSERT INTO %s (snapshot_id, applications, payload, created_at, saved_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.table)
	if _, err := tx.ExecContext(ctx, insert,
		model.SnapshotID,
		model.Applications,
		string(model.Payload),
		model.CreatedAt,
		model.SavedAt,
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	prune := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE id NOT IN (SELECT id FROM %[1]s ORDER BY saved_at DESC, id DESC LIMIT $1)
	`, s.table)
	if _, err := tx.ExecContext(ctx, prune, s.retention); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load returns the newest stored snapshot or port.ErrNotFound.
func (s *FallbackStore) Load(ctx context.Context) (*entity.CacheSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY saved_at DESC, id DESC
		LIMIT 1
	`, snapshotColumns, s.table)

	model, err := ScanSnapshotRow(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snapshot, err := ToEntity(model)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", model.SnapshotID, err)
	}
	return snapshot, nil
}

// Count returns the number of retained snapshots.
func (s *FallbackStore) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// Close closes the connection pool.
func (s *FallbackStore) Close() error {
	return s.db.Close()
}
