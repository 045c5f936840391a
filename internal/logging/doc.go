// Package logging provides leveled, printf-style logging for pixel-catalog.
//
// Messages are written through a zap sugared logger. Levels:
//   - DEBUG: per-row enrichment and thumbnail detail, dropped index rows
//   - INFO: startup, index runs, catalog loads
//   - WARN: absorbed decode failures and recoverable storage problems
//   - ERROR: failures that lose work (index writes, HTTP encoding)
//   - FATAL: startup errors that terminate the process
//
// The level comes from DEBUG (any truthy value forces debug) or LOG_LEVEL.
// Output is console-encoded on a terminal and JSON otherwise; LOG_FORMAT
// ("json" or "console") overrides the detection.
package logging
