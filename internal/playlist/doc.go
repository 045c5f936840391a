// Package playlist groups catalog entries into folder playlists and renders
// them as WPL (Windows Media Player) documents.
//
// A folder playlist holds every catalog entry that shares a parent
// directory, in catalog order. Its ID is derived from the folder path, so it
// stays the same across rescans as long as the folder exists.
package playlist
