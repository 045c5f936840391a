package enricher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pixel-catalog/internal/decoder"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/metrics"
)

const (
	// NotAvailable marks facts for a file that could not be opened or read.
	NotAvailable = "N/A"
	// UnknownCodec marks a readable file that reported no codec.
	UnknownCodec = "UNK"
	// Pending is shown while enrichment has not completed.
	Pending = "..."
)

// Facts are the technical facts derived for one file.
type Facts struct {
	Codec      string `json:"codec"`
	Resolution string `json:"resolution"`
}

// Unavailable is returned when the decode session could not be opened or read.
var Unavailable = Facts{Codec: NotAvailable, Resolution: NotAvailable}

// PendingFacts is the placeholder for rows whose enrichment has not finished.
var PendingFacts = Facts{Codec: Pending, Resolution: Pending}

// ClassifyResolution maps pixel width to a resolution tier. Height only
// matters for presence: without both dimensions the tier is "SD".
// Widths below 1200 are reported literally, so 100 becomes "100p".
func ClassifyResolution(width, height int, hasWidth, hasHeight bool) string {
	if !hasWidth || !hasHeight {
		return "SD"
	}

	switch {
	case width >= 3800:
		return "4K"
	case width >= 2500:
		return "2K"
	case width >= 1900:
		return "1080p"
	case width >= 1200:
		return "720p"
	default:
		return fmt.Sprintf("%dp", width)
	}
}

// Enricher derives Facts for files through a decoder. It keeps no state
// between calls, so it is safe for concurrent use.
type Enricher struct {
	dec decoder.Decoder
}

// New creates an Enricher over dec.
func New(dec decoder.Decoder) *Enricher {
	return &Enricher{dec: dec}
}

// Enrich opens a session on path and reads codec and dimensions. It never
// fails: any open or read error, including a panic inside the decoder
// binding, yields Unavailable. The session is closed on every path.
func (e *Enricher) Enrich(ctx context.Context, path string) (facts Facts) {
	start := time.Now()
	outcome := "unavailable"
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Enrich: decoder panic on %s: %v", path, r)
			facts = Unavailable
			outcome = "unavailable"
		}
		metrics.EnrichmentsTotal.WithLabelValues(outcome).Inc()
		metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	}()

	sess, err := e.dec.Open(ctx, path)
	if err != nil {
		logging.Warn("Enrich: cannot open %s: %v", path, err)
		return Unavailable
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logging.Debug("Enrich: close %s: %v", path, err)
		}
	}()

	codec, ok := sess.Codec()
	if !ok || codec == "" {
		codec = UnknownCodec
	}

	width, hasWidth := sess.Width()
	height, hasHeight := sess.Height()

	facts = Facts{
		Codec:      strings.ToUpper(codec),
		Resolution: ClassifyResolution(width, height, hasWidth, hasHeight),
	}

	if facts.Codec == UnknownCodec || !hasWidth || !hasHeight {
		outcome = "partial"
	} else {
		outcome = "ok"
	}

	logging.Debug("Enrich: %s -> codec=%s resolution=%s", path, facts.Codec, facts.Resolution)
	return facts
}
