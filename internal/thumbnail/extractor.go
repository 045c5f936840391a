package thumbnail

import (
	"context"
	"image"
	"time"

	"pixel-catalog/internal/decoder"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/metrics"
)

// FrameOffset is where previews are taken from; the very first frame is
// often black.
const FrameOffset = time.Second

// Extractor pulls a single preview frame from a video file. It holds no
// reference to anything it returns and keeps no state between calls.
type Extractor struct {
	dec decoder.Decoder
}

// NewExtractor creates an Extractor over dec.
func NewExtractor(dec decoder.Decoder) *Extractor {
	return &Extractor{dec: dec}
}

// Extract returns the keyframe closest to FrameOffset, or nil when the file
// cannot be opened or decoded. It never panics; the session is closed on
// every path.
func (x *Extractor) Extract(ctx context.Context, path string) (img image.Image) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Extract: decoder panic on %s: %v", path, r)
			img = nil
		}
		outcome := "ok"
		if img == nil {
			outcome = "absent"
		}
		metrics.ThumbnailExtractionsTotal.WithLabelValues(outcome).Inc()
		metrics.ThumbnailExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	sess, err := x.dec.Open(ctx, path)
	if err != nil {
		logging.Debug("Extract: cannot open %s: %v", path, err)
		return nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logging.Debug("Extract: close %s: %v", path, err)
		}
	}()

	frame, err := sess.FrameAt(ctx, FrameOffset, decoder.SeekClosest)
	if err != nil {
		logging.Debug("Extract: no frame for %s: %v", path, err)
		return nil
	}
	return frame
}
