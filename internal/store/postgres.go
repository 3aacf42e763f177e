package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-radar/internal/radar"
)

// FrameStore is the frame history contract shared by the memory and
// PostgreSQL stores.
type FrameStore interface {
	SaveFrame(ctx context.Context, frame radar.Frame) error
	GetLatest(ctx context.Context) (radar.Frame, error)
	GetRange(ctx context.Context, from, to time.Time) (radar.Batch, error)
	Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS radar_frames (
	observed_at TIMESTAMPTZ PRIMARY KEY,
	image_url   TEXT NOT NULL,
	north       DOUBLE PRECISION NOT NULL,
	south       DOUBLE PRECISION NOT NULL,
	east        DOUBLE PRECISION NOT NULL,
	west        DOUBLE PRECISION NOT NULL,
	metadata    JSONB
)`

// PostgresStore keeps frame history in a radar_frames table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	maxAge time.Duration
}

// NewPostgresStore connects, pings and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, maxAge time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &PostgresStore{pool: pool, maxAge: maxAge}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the radar_frames table if needed.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// SaveFrame upserts frame by timestamp and prunes rows older than maxAge.
func (s *PostgresStore) SaveFrame(ctx context.Context, frame radar.Frame) error {
	var meta any
	if frame.Metadata != nil {
		b, err := json.Marshal(frame.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = b
	}

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO radar_frames (observed_at, image_url, north, south, east, west, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (observed_at) DO UPDATE SET
			image_url = $2, north = $3, south = $4, east = $5, west = $6, metadata = $7`,
		frame.Timestamp.UTC(), frame.ImageURL,
		frame.Bounds.North, frame.Bounds.South, frame.Bounds.East, frame.Bounds.West, meta,
	)
	if s.maxAge > 0 {
		batch.Queue(`DELETE FROM radar_frames WHERE observed_at < $1`, time.Now().UTC().Add(-s.maxAge))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save frame: %w", err)
		}
	}
	return nil
}

// GetLatest returns the newest stored frame.
func (s *PostgresStore) GetLatest(ctx context.Context) (radar.Frame, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT observed_at, image_url, north, south, east, west, metadata
		 FROM radar_frames ORDER BY observed_at DESC LIMIT 1`)
	f, err := scanFrame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return radar.Frame{}, ErrNotFound
	}
	if err != nil {
		return radar.Frame{}, fmt.Errorf("latest frame: %w", err)
	}
	return f, nil
}

// GetRange returns frames with from <= timestamp <= to, oldest first.
func (s *PostgresStore) GetRange(ctx context.Context, from, to time.Time) (radar.Batch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT observed_at, image_url, north, south, east, west, metadata
		 FROM radar_frames WHERE observed_at BETWEEN $1 AND $2 ORDER BY observed_at`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("frame range: %w", err)
	}
	defer rows.Close()

	var out radar.Batch
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("frame range: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func scanFrame(row pgx.Row) (radar.Frame, error) {
	var (
		f    radar.Frame
		meta []byte
	)
	if err := row.Scan(&f.Timestamp, &f.ImageURL,
		&f.Bounds.North, &f.Bounds.South, &f.Bounds.East, &f.Bounds.West, &meta); err != nil {
		return radar.Frame{}, err
	}
	f.Timestamp = f.Timestamp.UTC()
	if len(meta) > 0 {
		var m radar.Metadata
		if err := json.Unmarshal(meta, &m); err != nil {
			return radar.Frame{}, fmt.Errorf("decode metadata: %w", err)
		}
		f.Metadata = &m
	}
	return f, nil
}
