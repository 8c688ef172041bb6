// Package store persists rate snapshots and saved portfolios in SQLite.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS rate_snapshots (
	source     TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	checksum   BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS portfolios (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	data       TEXT NOT NULL,
	checksum   BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Portfolio is a named, saved simulation input.
type Portfolio struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Config    core.PortfolioConfig `json:"config"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// SaveRateRecord replaces the latest record of a source.
func (s *SQLiteStore) SaveRateRecord(ctx context.Context, rec core.RateRecord) error {
	data, checksum, err := encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode rate record: %w", err)
	}

	query := `INSERT OR REPLACE INTO rate_snapshots (source, data, checksum, fetched_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, rec.Source, data, checksum, rec.FetchedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to write rate record: %w", err)
	}
	return nil
}

// LoadRateRecords returns every stored record. A corrupted row fails the load.
func (s *SQLiteStore) LoadRateRecords(ctx context.Context) ([]core.RateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data, checksum FROM rate_snapshots ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate records: %w", err)
	}
	defer rows.Close()

	var out []core.RateRecord
	for rows.Next() {
		var data string
		var checksum []byte
		if err := rows.Scan(&data, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan rate record: %w", err)
		}
		var rec core.RateRecord
		if err := decode(data, checksum, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SavePortfolio inserts or replaces a portfolio. An empty ID gets a new UUID.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, p Portfolio) (Portfolio, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, err := uuid.Parse(p.ID); err != nil {
		return Portfolio{}, fmt.Errorf("%w: portfolio id %q is not a UUID", apperrors.ErrInvalidConfig, p.ID)
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.ID
	}
	p.UpdatedAt = s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Portfolio{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	data, checksum, err := encode(p)
	if err != nil {
		return Portfolio{}, fmt.Errorf("failed to encode portfolio: %w", err)
	}

	query := `INSERT OR REPLACE INTO portfolios (id, name, data, checksum, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, p.ID, p.Name, data, checksum, p.UpdatedAt.UnixNano()); err != nil {
		return Portfolio{}, fmt.Errorf("failed to write portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Portfolio{}, fmt.Errorf("failed to commit portfolio: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetPortfolio(ctx context.Context, id string) (Portfolio, error) {
	var data string
	var checksum []byte
	err := s.db.QueryRowContext(ctx, `SELECT data, checksum FROM portfolios WHERE id = ?`, id).Scan(&data, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, fmt.Errorf("portfolio %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return Portfolio{}, fmt.Errorf("failed to read portfolio: %w", err)
	}

	var p Portfolio
	if err := decode(data, checksum, &p); err != nil {
		return Portfolio{}, err
	}
	return p, nil
}

// ListPortfolios returns saved portfolios, most recently updated first.
func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data, checksum FROM portfolios ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var out []Portfolio
	for rows.Next() {
		var data string
		var checksum []byte
		if err := rows.Scan(&data, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		var p Portfolio
		if err := decode(data, checksum, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeletePortfolio(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("portfolio %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encode(v interface{}) (string, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	checksum := sha256.Sum256(data)
	return string(data), checksum[:], nil
}

func decode(data string, checksum []byte, v interface{}) error {
	computed := sha256.Sum256([]byte(data))
	if !bytes.Equal(checksum, computed[:]) {
		return apperrors.ErrChecksumMismatch
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to unmarshal row: %w", err)
	}
	return nil
}
