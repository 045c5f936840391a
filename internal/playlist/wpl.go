package playlist

import (
	"encoding/xml"
	"strconv"
)

// WPL structure based on Windows Media Player playlist format
type WPL struct {
	XMLName xml.Name `xml:"smil"`
	Head    WPLHead  `xml:"head"`
	Body    WPLBody  `xml:"body"`
}

type WPLHead struct {
	Meta  []WPLMeta `xml:"meta"`
	Title string    `xml:"title"`
}

type WPLMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type WPLBody struct {
	Seq WPLSeq `xml:"seq"`
}

type WPLSeq struct {
	Media []WPLMedia `xml:"media"`
}

type WPLMedia struct {
	Src string `xml:"src,attr"`
}

const wplHeader = `<?wpl version="1.0"?>` + "\n"

// Generator is written to the Generator meta element of every document.
const Generator = "pixel-catalog"

// EncodeWPL renders p as a WPL document with absolute media paths.
func EncodeWPL(p Playlist) ([]byte, error) {
	doc := WPL{
		Head: WPLHead{
			Meta: []WPLMeta{
				{Name: "Generator", Content: Generator},
				{Name: "ItemCount", Content: strconv.Itoa(len(p.Videos))},
			},
			Title: p.Title,
		},
	}
	for _, v := range p.Videos {
		doc.Body.Seq.Media = append(doc.Body.Seq.Media, WPLMedia{Src: v.Path})
	}

	body, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(wplHeader), body...), nil
}
