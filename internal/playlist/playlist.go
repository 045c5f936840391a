package playlist

import (
	"encoding/hex"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"pixel-catalog/internal/catalog"
)

// Playlist is the set of catalog entries found in one folder.
type Playlist struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Path   string          `json:"path"`
	Count  int             `json:"videoCount"`
	Videos []catalog.Entry `json:"videos"`
}

// IDFor returns the playlist ID for a folder path.
func IDFor(folder string) string {
	sum := blake2b.Sum256([]byte(filepath.Clean(folder)))
	return hex.EncodeToString(sum[:6])
}

// FromEntries groups entries by parent folder. Playlists are ordered by the
// first appearance of their folder in entries, and videos keep entries'
// order, so a newest-first catalog yields newest-first playlists.
func FromEntries(entries []catalog.Entry) []Playlist {
	var out []Playlist
	index := make(map[string]int)

	for _, e := range entries {
		folder := filepath.Dir(e.Path)
		i, ok := index[folder]
		if !ok {
			i = len(out)
			index[folder] = i
			out = append(out, Playlist{
				ID:    IDFor(folder),
				Title: filepath.Base(folder),
				Path:  folder,
			})
		}
		out[i].Videos = append(out[i].Videos, e)
		out[i].Count++
	}
	return out
}

// Find returns the playlist with the given ID.
func Find(playlists []Playlist, id string) (Playlist, bool) {
	for _, p := range playlists {
		if p.ID == id {
			return p, true
		}
	}
	return Playlist{}, false
}
