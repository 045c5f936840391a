// Package main is the pixel-catalog server.
//
// Start-up order:
//
//  1. GOMEMLIMIT from MEMORY_LIMIT (see internal/memory)
//  2. Configuration from the environment (see internal/startup)
//  3. SQLite media index
//  4. ffprobe/ffmpeg decoder, thumbnail cache, decode pipeline gated by
//     the memory monitor
//  5. Directory indexer; each finished run reloads the catalog
//  6. HTTP API on PORT and Prometheus metrics on METRICS_PORT
//
// SIGINT or SIGTERM stops the servers, the indexer and the pipeline, in
// that order.
package main
