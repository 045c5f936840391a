package catalog

import (
	"context"
	"fmt"
	"time"

	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/mediatypes"
	"pixel-catalog/internal/metrics"
)

// Scanner turns media index rows into catalog entries. It reads index
// metadata only and never decodes a file.
type Scanner struct {
	index   MediaIndex
	exists  ExistsFunc
	uriBase string
}

// NewScanner creates a scanner over index. exists is consulted once per row;
// rows whose file is gone are dropped.
func NewScanner(index MediaIndex, exists ExistsFunc) *Scanner {
	return &Scanner{
		index:   index,
		exists:  exists,
		uriBase: DefaultURIBase,
	}
}

// WithURIBase sets the base used to build player references and returns s.
func (s *Scanner) WithURIBase(base string) *Scanner {
	if base != "" {
		s.uriBase = base
	}
	return s
}

// Scan runs one pass over the index and returns entries in index order.
// An empty result is valid. The only error is a failure to read the index.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, error) {
	start := time.Now()

	rows, err := s.index.Rows(ctx)
	if err != nil {
		metrics.CatalogScansTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read media index: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			metrics.CatalogScansTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if !s.exists(row.Path) {
			logging.Debug("Catalog: dropping %s (id=%d), file not found", row.Path, row.ID)
			dropped++
			continue
		}
		entries = append(entries, s.entryFor(row))
	}

	metrics.CatalogScansTotal.WithLabelValues("success").Inc()
	metrics.CatalogScanDuration.Observe(time.Since(start).Seconds())
	metrics.CatalogEntries.Set(float64(len(entries)))
	metrics.CatalogRowsDropped.Add(float64(dropped))

	logging.Info("Catalog scan: %d entries, %d missing, took %v", len(entries), dropped, time.Since(start))
	return entries, nil
}

func (s *Scanner) entryFor(row IndexRow) Entry {
	return Entry{
		ID:         row.ID,
		Title:      row.DisplayName,
		Path:       row.Path,
		URI:        JoinURI(s.uriBase, row.ID),
		DurationMs: row.DurationMs,
		Duration:   FormatDuration(row.DurationMs),
		SizeBytes:  row.SizeBytes,
		Size:       FormatSize(row.SizeBytes),
		Container:  mediatypes.ContainerTag(row.Path),
		Codec:      PlaceholderCodec,
		Resolution: PlaceholderResolution,
	}
}
