// Package memory keeps the process inside its container memory limit.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
// when GOMEMLIMIT itself is not set. Call it first thing in main.
//
// [Monitor] samples heap usage and implements the pipeline's decode gate:
// while usage sits above the pause mark, [Monitor.Wait] blocks new facts and
// thumbnail decodes until usage drops below the resume mark. Only the Go
// heap is sampled; memory held by ffprobe children or libvips is not seen.
package memory
