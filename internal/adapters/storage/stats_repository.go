package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/pierrec/lz4/v4"

	"github.com/xvierd/notetime/internal/domain"
)

// statsRepository stores the aggregate document as one JSON row per keyed
// stat plus an lz4-compressed timeline blob.
type statsRepository struct {
	db *sql.DB
}

func newStatsRepository(db *sql.DB) *statsRepository {
	return &statsRepository{db: db}
}

// Load reads the stored document.
func (r *statsRepository) Load(ctx context.Context) (*domain.TrackerData, error) {
	meta, err := r.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	version, ok := meta["version"]
	if !ok {
		return nil, domain.ErrDataNotFound
	}

	data := domain.NewTrackerData()
	data.Version = version
	if v, ok := meta["last_updated"]; ok {
		data.LastUpdated, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_updated: %w", domain.ErrCorruptData)
		}
	}

	if err := loadKeyed(ctx, r.db, "SELECT path, data FROM file_stats", data.Files); err != nil {
		return nil, err
	}
	if err := loadKeyed(ctx, r.db, "SELECT path, data FROM folder_stats", data.Folders); err != nil {
		return nil, err
	}
	if err := loadKeyed(ctx, r.db, "SELECT name, data FROM tag_stats", data.Tags); err != nil {
		return nil, err
	}
	if err := loadKeyed(ctx, r.db, "SELECT date, data FROM daily_summaries", data.Summary); err != nil {
		return nil, err
	}

	timeline, err := r.loadTimeline(ctx)
	if err != nil {
		return nil, err
	}
	if timeline != nil {
		data.Timeline = timeline
	}

	data.Normalize()
	return data, nil
}

// Save replaces the stored document in a single transaction.
func (r *statsRepository) Save(ctx context.Context, data *domain.TrackerData) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"meta", "file_stats", "folder_stats", "tag_stats", "daily_summaries", "timeline"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	version := data.Version
	if version == "" {
		version = domain.DataVersion
	}
	metaQuery := "INSERT INTO meta (key, value) VALUES (?, ?)"
	if _, err := tx.ExecContext(ctx, metaQuery, "version", version); err != nil {
		return fmt.Errorf("failed to save version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, metaQuery, "last_updated", strconv.FormatInt(data.LastUpdated, 10)); err != nil {
		return fmt.Errorf("failed to save last_updated: %w", err)
	}

	if err := saveKeyed(ctx, tx, "INSERT INTO file_stats (path, data) VALUES (?, ?)", data.Files); err != nil {
		return err
	}
	if err := saveKeyed(ctx, tx, "INSERT INTO folder_stats (path, data) VALUES (?, ?)", data.Folders); err != nil {
		return err
	}
	if err := saveKeyed(ctx, tx, "INSERT INTO tag_stats (name, data) VALUES (?, ?)", data.Tags); err != nil {
		return err
	}
	if err := saveKeyed(ctx, tx, "INSERT INTO daily_summaries (date, data) VALUES (?, ?)", data.Summary); err != nil {
		return err
	}

	if data.Timeline != nil {
		raw, err := json.Marshal(data.Timeline)
		if err != nil {
			return fmt.Errorf("failed to encode timeline: %w", err)
		}
		blob, compressed, err := compressBlock(raw)
		if err != nil {
			return fmt.Errorf("failed to compress timeline: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO timeline (id, raw_size, compressed, data) VALUES (1, ?, ?, ?)",
			len(raw), compressed, blob)
		if err != nil {
			return fmt.Errorf("failed to save timeline: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracker data: %w", err)
	}
	return nil
}

func (r *statsRepository) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (r *statsRepository) loadTimeline(ctx context.Context) (*domain.Timeline, error) {
	var (
		rawSize    int
		compressed bool
		blob       []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT raw_size, compressed, data FROM timeline WHERE id = 1").
		Scan(&rawSize, &compressed, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}

	raw := blob
	if compressed {
		raw, err = uncompressBlock(blob, rawSize)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress timeline: %v: %w", err, domain.ErrCorruptData)
		}
	}

	timeline := domain.NewTimeline(domain.DefaultTimelineLimit)
	if err := json.Unmarshal(raw, timeline); err != nil {
		return nil, fmt.Errorf("failed to decode timeline: %v: %w", err, domain.ErrCorruptData)
	}
	return timeline, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveKeyed[V any](ctx context.Context, tx execer, query string, items map[string]V) error {
	for key, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, query, key, string(b)); err != nil {
			return fmt.Errorf("failed to save %q: %w", key, err)
		}
	}
	return nil
}

func loadKeyed[V any](ctx context.Context, db *sql.DB, query string, into map[string]*V) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("failed to scan stats: %w", err)
		}
		item := new(V)
		if err := json.Unmarshal([]byte(raw), item); err != nil {
			return fmt.Errorf("failed to decode %q: %v: %w", key, err, domain.ErrCorruptData)
		}
		into[key] = item
	}
	return rows.Err()
}

// compressBlock lz4-compresses src. Incompressible input is stored raw.
func compressBlock(src []byte) ([]byte, bool, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, false, err
	}
	if n == 0 || n >= len(src) {
		return src, false, nil
	}
	return dst[:n], true, nil
}

func uncompressBlock(src []byte, rawSize int) ([]byte, error) {
	dst := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	if n != rawSize {
		return nil, fmt.Errorf("decompressed %d bytes, want %d", n, rawSize)
	}
	return dst, nil
}
