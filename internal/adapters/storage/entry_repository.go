package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xvierd/notetime/internal/domain"
)

// entryRepository keeps the append-only time entry log.
type entryRepository struct {
	db *sql.DB
}

func newEntryRepository(db *sql.DB) *entryRepository {
	return &entryRepository{db: db}
}

// Append stores one entry. Recording the same ID twice returns
// domain.ErrDuplicateEntry.
func (r *entryRepository) Append(ctx context.Context, entry domain.TimeEntry) error {
	query := `
		INSERT INTO time_entries (
			id, start_time, end_time, duration_ms, file_path, file_name,
			folder_path, tags, category, is_active
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.StartTime,
		entry.EndTime,
		entry.Duration,
		entry.FilePath,
		entry.FileName,
		entry.FolderPath,
		string(tags),
		entry.Category,
		entry.IsActive,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("entry %s: %w", entry.ID, domain.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

// List returns all entries ordered by start time.
func (r *entryRepository) List(ctx context.Context) ([]domain.TimeEntry, error) {
	query := `
		SELECT
			id, start_time, end_time, duration_ms, file_path, file_name,
			folder_path, tags, category, is_active
		FROM time_entries
		ORDER BY start_time ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.TimeEntry
	for rows.Next() {
		var (
			e    domain.TimeEntry
			tags string
		)
		err := rows.Scan(
			&e.ID,
			&e.StartTime,
			&e.EndTime,
			&e.Duration,
			&e.FilePath,
			&e.FileName,
			&e.FolderPath,
			&tags,
			&e.Category,
			&e.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags of %s: %v: %w", e.ID, err, domain.ErrCorruptData)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
