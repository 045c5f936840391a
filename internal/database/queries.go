package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pixel-catalog/internal/catalog"
)

// Rows returns every indexed video, newest first. It implements
// catalog.MediaIndex.
func (d *Database) Rows(ctx context.Context) ([]catalog.IndexRow, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_rows", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `
		SELECT id, display_name, path, size_bytes, duration_ms
		FROM videos
		ORDER BY date_added DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.IndexRow
	for rows.Next() {
		var r catalog.IndexRow
		if err = rows.Scan(&r.ID, &r.DisplayName, &r.Path, &r.SizeBytes, &r.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	err = rows.Err()
	return out, err
}

// GetVideoByPath retrieves a single video by path.
func (d *Database) GetVideoByPath(ctx context.Context, path string) (*Video, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var v Video
	var modTime, dateAdded int64
	err := d.db.QueryRowContext(ctx, `
		SELECT id, display_name, path, size_bytes, duration_ms, mod_time, date_added
		FROM videos WHERE path = ?
	`, path).Scan(&v.ID, &v.DisplayName, &v.Path, &v.SizeBytes, &v.DurationMs, &modTime, &dateAdded)
	if err != nil {
		return nil, err
	}
	v.ModTime = time.Unix(modTime, 0)
	v.DateAdded = time.Unix(dateAdded, 0)
	return &v, nil
}

// Count returns the number of indexed videos.
func (d *Database) Count(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&n)
	return n, err
}

// CalculateStats computes totals over the index. LastIndexed and
// IndexDuration are carried over from the cached stats.
func (d *Database) CalculateStats(ctx context.Context) (IndexStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := d.GetStats()
	var total sql.NullInt64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(size_bytes) FROM videos").Scan(&stats.TotalVideos, &total)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return IndexStats{}, err
	}
	stats.TotalBytes = total.Int64
	return stats, nil
}
