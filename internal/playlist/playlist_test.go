package playlist

import (
	"encoding/xml"
	"strings"
	"testing"

	"pixel-catalog/internal/catalog"
)

func entries() []catalog.Entry {
	return []catalog.Entry{
		{ID: 5, Title: "beach.mp4", Path: "/media/holiday/beach.mp4"},
		{ID: 4, Title: "talk.mkv", Path: "/media/conf/talk.mkv"},
		{ID: 3, Title: "sunset.webm", Path: "/media/holiday/sunset.webm"},
		{ID: 2, Title: "intro.mp4", Path: "/media/intro.mp4"},
	}
}

func TestFromEntries(t *testing.T) {
	got := FromEntries(entries())

	if len(got) != 3 {
		t.Fatalf("FromEntries() returned %d playlists, want 3", len(got))
	}

	wantTitles := []string{"holiday", "conf", "media"}
	for i, want := range wantTitles {
		if got[i].Title != want {
			t.Errorf("playlist %d title = %q, want %q", i, got[i].Title, want)
		}
	}

	holiday := got[0]
	if holiday.Count != 2 || len(holiday.Videos) != 2 {
		t.Fatalf("holiday playlist has %d videos (count %d), want 2", len(holiday.Videos), holiday.Count)
	}
	if holiday.Videos[0].ID != 5 || holiday.Videos[1].ID != 3 {
		t.Errorf("holiday playlist order = [%d %d], want [5 3]", holiday.Videos[0].ID, holiday.Videos[1].ID)
	}
	if holiday.Path != "/media/holiday" {
		t.Errorf("holiday path = %q, want /media/holiday", holiday.Path)
	}
}

func TestFromEntriesEmpty(t *testing.T) {
	if got := FromEntries(nil); len(got) != 0 {
		t.Errorf("FromEntries(nil) = %v, want empty", got)
	}
}

func TestIDFor(t *testing.T) {
	a := IDFor("/media/holiday")
	if a != IDFor("/media/holiday/") {
		t.Error("IDFor should ignore a trailing slash")
	}
	if a == IDFor("/media/conf") {
		t.Error("different folders should have different IDs")
	}
	if len(a) != 12 {
		t.Errorf("IDFor() length = %d, want 12", len(a))
	}
}

func TestFind(t *testing.T) {
	lists := FromEntries(entries())

	p, ok := Find(lists, IDFor("/media/conf"))
	if !ok {
		t.Fatal("Find() did not locate the conf playlist")
	}
	if p.Title != "conf" {
		t.Errorf("Find() title = %q, want conf", p.Title)
	}

	if _, ok := Find(lists, "missing"); ok {
		t.Error("Find() should report false for an unknown ID")
	}
}

func TestEncodeWPL(t *testing.T) {
	p := FromEntries(entries())[0]

	data, err := EncodeWPL(p)
	if err != nil {
		t.Fatalf("EncodeWPL() error = %v", err)
	}
	if !strings.HasPrefix(string(data), `<?wpl version="1.0"?>`) {
		t.Errorf("document should start with the wpl processing instruction, got %q", string(data[:30]))
	}

	var doc WPL
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid XML: %v", err)
	}
	if doc.Head.Title != "holiday" {
		t.Errorf("title = %q, want holiday", doc.Head.Title)
	}
	if len(doc.Body.Seq.Media) != 2 {
		t.Fatalf("got %d media elements, want 2", len(doc.Body.Seq.Media))
	}
	if doc.Body.Seq.Media[0].Src != "/media/holiday/beach.mp4" {
		t.Errorf("first src = %q", doc.Body.Seq.Media[0].Src)
	}

	var count string
	for _, m := range doc.Head.Meta {
		if m.Name == "ItemCount" {
			count = m.Content
		}
	}
	if count != "2" {
		t.Errorf("ItemCount meta = %q, want 2", count)
	}
}

func TestEncodeWPLEscapesPaths(t *testing.T) {
	p := Playlist{Title: "A & B", Videos: []catalog.Entry{{Path: "/media/a&b/<clip>.mp4"}}}

	data, err := EncodeWPL(p)
	if err != nil {
		t.Fatalf("EncodeWPL() error = %v", err)
	}

	var doc WPL
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid XML: %v", err)
	}
	if doc.Body.Seq.Media[0].Src != "/media/a&b/<clip>.mp4" {
		t.Errorf("src round trip = %q", doc.Body.Seq.Media[0].Src)
	}
	if doc.Head.Title != "A & B" {
		t.Errorf("title round trip = %q", doc.Head.Title)
	}
}
