package vault

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"github.com/Moinster/SantaCam/internal/still"
)

// ErrNotFound is returned by Get for an unknown still id.
var ErrNotFound = errors.New("still record not found")

// Record describes one still seen during the session.
type Record struct {
	ID         string       `json:"id"`
	Source     still.Source `json:"source"`
	MIME       string       `json:"mime"`
	Bytes      int64        `json:"bytes"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Digest     string       `json:"digest"`
	CapturedAt time.Time    `json:"capturedAt"`
}

// Store is the in-memory still index. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates an empty in-memory vault.
func Open(ctx context.Context) (*Store, error) {
	dsn := fmt.Sprintf("file:vault-%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// the in-memory database lives as long as its single connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS stills(
	  seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	  id          TEXT    NOT NULL UNIQUE,
	  source      TEXT    NOT NULL CHECK (source IN ('snapshot','upload')),
	  mime        TEXT    NOT NULL,
	  bytes       INTEGER NOT NULL,
	  width       INTEGER NOT NULL,
	  height      INTEGER NOT NULL,
	  digest      TEXT    NOT NULL,
	  captured_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stills_digest ON stills(digest);
	`)
	if err != nil {
		return fmt.Errorf("failed to create vault tables: %w", err)
	}
	return nil
}

// Close drops the database; the index is gone afterwards.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Digest returns the BLAKE2b-256 hex digest of r.
func Digest(r io.Reader) (string, int64, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, fmt.Errorf("init blake2b: %w", err)
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("hash still: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Add hashes ref and indexes it.
func (s *Store) Add(ctx context.Context, ref *still.Ref) (Record, error) {
	if ref == nil {
		return Record{}, fmt.Errorf("nil still")
	}
	rc, err := ref.Open()
	if err != nil {
		return Record{}, err
	}
	defer rc.Close()

	digest, n, err := Digest(rc)
	if err != nil {
		return Record{}, err
	}

	captured := ref.CreatedAt
	if captured.IsZero() {
		captured = time.Now()
	}
	rec := Record{
		ID:         ref.ID,
		Source:     ref.Source,
		MIME:       ref.MIME,
		Bytes:      n,
		Width:      ref.Width,
		Height:     ref.Height,
		Digest:     digest,
		CapturedAt: captured.UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO stills(id, source, mime, bytes, width, height, digest, captured_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Source), rec.MIME, rec.Bytes, rec.Width, rec.Height, rec.Digest, rec.CapturedAt.UnixNano())
	if err != nil {
		return Record{}, fmt.Errorf("insert still: %w", err)
	}
	return rec, nil
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, source, mime, bytes, width, height, digest, captured_at
FROM stills WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source, mime, bytes, width, height, digest, captured_at
FROM stills ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stills: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stills: %w", err)
	}
	return out, nil
}

// Count returns the number of indexed stills.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stills`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stills: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec      Record
		source   string
		captured int64
	)
	if err := row.Scan(&rec.ID, &source, &rec.MIME, &rec.Bytes, &rec.Width, &rec.Height, &rec.Digest, &captured); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan still: %w", err)
	}
	rec.Source = still.Source(source)
	rec.CapturedAt = time.Unix(0, captured).UTC()
	return rec, nil
}
