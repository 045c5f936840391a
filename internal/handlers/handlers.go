package handlers

import (
	"context"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/database"
	"pixel-catalog/internal/indexer"
	"pixel-catalog/internal/pipeline"
	"pixel-catalog/internal/player"
)

// Catalog is the row list the API reads and drives.
type Catalog interface {
	Rows() []pipeline.RowState
	Row(id int64) (pipeline.RowState, bool)
	Entries() []catalog.Entry
	Visible(id int64) error
	Hidden(id int64) error
	Load(ctx context.Context) <-chan error
	Subscribe() (<-chan pipeline.RowUpdate, func())
}

// Thumbnails serves encoded previews.
type Thumbnails interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Len() int
}

// Indexer is the part of the directory indexer the API needs.
type Indexer interface {
	Trigger()
	IsReady() bool
	GetHealthStatus() indexer.HealthStatus
}

// StatsSource reports cached index statistics.
type StatsSource interface {
	GetStats() database.IndexStats
}

// Handlers serves the catalog HTTP API.
type Handlers struct {
	catalog    Catalog
	thumbnails Thumbnails
	indexer    Indexer
	stats      StatsSource
	player     player.Launcher
}

// New creates the handler set.
func New(cat Catalog, thumbs Thumbnails, idx Indexer, stats StatsSource, launcher player.Launcher) *Handlers {
	return &Handlers{
		catalog:    cat,
		thumbnails: thumbs,
		indexer:    idx,
		stats:      stats,
		player:     launcher,
	}
}
