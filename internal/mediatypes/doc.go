// Package mediatypes holds the extension tables shared by the indexer, the
// catalog scanner and the thumbnail pipeline.
//
// It has no dependencies beyond the standard library so that every other
// package can import it without cycles.
//
// # Container tags
//
// ContainerTag derives the display tag for a catalog entry from its path:
//
//	mediatypes.ContainerTag("/sdcard/Movies/trip.mkv") // "MKV"
//
// # Thumbnail dispatch
//
// NeedsFrameExtraction decides, before any decode is attempted, whether a
// path should be routed to the frame extractor:
//
//	if mediatypes.NeedsFrameExtraction(path) {
//	    img := extractor.Extract(ctx, path)
//	}
//
// Only .mkv, .mp4 and .webm files qualify. Other videos are still indexed
// (VideoExtensions) but never decoded for previews.
package mediatypes
