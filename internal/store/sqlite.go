package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"TradeSignalMonitor/internal/model"

	"github.com/phuslu/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in an embedded SQLite database.
type SQLiteStore struct {
	jsonStore
}

type sqliteBlobs struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writers serialized; ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS indicator_snapshots (
		kind       TEXT    NOT NULL,
		timeframe  TEXT    NOT NULL,
		payload    BLOB    NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (kind, timeframe)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite snapshot store opened")
	return &SQLiteStore{jsonStore{&sqliteBlobs{db: db}}}, nil
}

func (s *sqliteBlobs) get(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM indicator_snapshots WHERE kind = ? AND timeframe = ?`,
		string(kind), string(tf),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", kind, tf, err)
	}
	return payload, nil
}

func (s *sqliteBlobs) put(ctx context.Context, kind model.IndicatorKind, tf model.Timeframe, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO indicator_snapshots (kind, timeframe, payload, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT(kind, timeframe) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(kind), string(tf), payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", kind, tf, err)
	}
	return nil
}

func (s *sqliteBlobs) Close() error {
	log.Info().Msg("closing sqlite snapshot store")
	return s.db.Close()
}
