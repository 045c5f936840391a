package mediatypes

import (
	"path/filepath"
	"strings"
)

// VideoContentType is the generic content type handed to an external player.
const VideoContentType = "video/*"

// VideoExtensions maps file extensions to whether they are indexed as videos.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// FrameExtractionExtensions are the containers whose thumbnails come from a
// decoded frame rather than from the platform's own preview.
var FrameExtractionExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".webm": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// Ext returns the lowercase extension of path, including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsVideoFile reports whether the extension (lowercase, with dot) is an indexed video format.
func IsVideoFile(ext string) bool {
	return VideoExtensions[ext]
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mkv").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ContainerTag returns the uppercased extension of path without the dot,
// e.g. "MKV" for "/videos/clip.mkv". Paths without an extension yield "".
func ContainerTag(path string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
}

// NeedsFrameExtraction is the thumbnail dispatch gate: only absolute paths
// ending in a frame-extraction container (case-insensitive) qualify.
func NeedsFrameExtraction(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	return FrameExtractionExtensions[Ext(path)]
}
