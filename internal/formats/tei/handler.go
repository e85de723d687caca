package tei

import (
	"github.com/forTEXT/catma-go/core/catma"
	"github.com/forTEXT/catma-go/internal/formats"
	"github.com/forTEXT/catma-go/internal/formats/base"
)

// FormatID is the registry key of the TEI handler and encoder.
const FormatID = "tei"

func init() {
	formats.Register(&Handler{})
	formats.RegisterEncoder(&Encoder{})
}

// Handler reads existing CATMA TEI collections back into the
// annotation model.
type Handler struct{}

// ID implements formats.Handler.
func (h *Handler) ID() string { return FormatID }

// Detect implements formats.Handler.
func (h *Handler) Detect(filename string, data []byte) *formats.DetectResult {
	return base.DetectFile(filename, data, base.DetectConfig{
		Extensions:     []string{".xml", ".tei"},
		ContentMarkers: []string{"<TEI"},
		FormatName:     FormatID,
	})
}

// Decode implements formats.Handler. Title and author overrides apply
// after reading.
func (h *Handler) Decode(data []byte, opts formats.DecodeOptions) (*catma.Collection, error) {
	col, err := Read(data)
	if err != nil {
		return nil, err
	}
	if opts.Title != "" {
		col.Title = opts.Title
	}
	if opts.Author != "" {
		col.Author = opts.Author
	}
	return col, nil
}

// Encoder renders collections as CATMA TEI documents.
type Encoder struct{}

// ID implements formats.Encoder.
func (e *Encoder) ID() string { return FormatID }

// Encode implements formats.Encoder.
func (e *Encoder) Encode(col *catma.Collection) ([]byte, error) {
	return Write(col)
}

// Merge combines two collections belonging to the same document. The
// merged collection keeps the document id and text length of the first
// collection; tagsets are deduplicated by UUID, annotations
// concatenated. Empty title or author fall back to the first
// collection's values.
func Merge(a, b *catma.Collection, title, author string) *catma.Collection {
	if title == "" {
		title = a.Title
	}
	if author == "" {
		author = a.Author
	}

	merged := &catma.Collection{
		Title:      title,
		Author:     author,
		Publisher:  author,
		DocumentID: a.DocumentID,
		TextLength: a.TextLength,
	}
	for _, ts := range a.Tagsets {
		merged.AddTagset(ts)
	}
	for _, ts := range b.Tagsets {
		merged.AddTagset(ts)
	}
	merged.AddAnnotations(a.Annotations...)
	merged.AddAnnotations(b.Annotations...)
	return merged
}
