// Package tei reads and writes annotation collections in the CATMA TEI
// import/export format, see
// http://catma.de/documentation/technical-specs/tei-export-format/
package tei

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/forTEXT/catma-go/core/catma"
)

// Version is the CATMA TEI import/export format version this package
// produces and accepts.
const Version = 5

// teiNamespace is the TEI namespace URI.
const teiNamespace = "http://www.tei-c.org/ns/1.0"

// techDescID is the xml:id of the technical description feature
// structure carrying the format version.
const techDescID = "CATMA_TECH_DESC"

type teiDocument struct {
	XMLName xml.Name  `xml:"TEI"`
	Lang    string    `xml:"xml:lang,attr"`
	Xmlns   string    `xml:"xmlns,attr"`
	Header  teiHeader `xml:"teiHeader"`
	Text    teiText   `xml:"text"`
}

type teiHeader struct {
	FileDesc     fileDesc     `xml:"fileDesc"`
	EncodingDesc encodingDesc `xml:"encodingDesc"`
}

type fileDesc struct {
	TitleStmt       titleStmt       `xml:"titleStmt"`
	PublicationStmt publicationStmt `xml:"publicationStmt"`
	SourceDesc      sourceDesc      `xml:"sourceDesc"`
}

type titleStmt struct {
	Title  string `xml:"title"`
	Author string `xml:"author"`
}

type publicationStmt struct {
	Publisher string `xml:"publisher"`
}

type sourceDesc struct {
	P  string   `xml:"p"`
	Ab sourceAb `xml:"ab"`
}

type sourceAb struct {
	FS techFS `xml:"fs"`
}

type techFS struct {
	ID string `xml:"xml:id,attr"`
	F  techF  `xml:"f"`
}

type techF struct {
	Name   string `xml:"name,attr"`
	String string `xml:"string"`
}

type encodingDesc struct {
	Tagsets []fsdDecl `xml:"fsdDecl"`
}

type fsdDecl struct {
	ID   string   `xml:"xml:id,attr"`
	N    string   `xml:"n,attr"`
	Tags []fsDecl `xml:"fsDecl"`
}

type fsDecl struct {
	ID        string  `xml:"xml:id,attr"`
	N         string  `xml:"n,attr"`
	Type      string  `xml:"type,attr"`
	BaseTypes string  `xml:"baseTypes,attr,omitempty"`
	Descr     string  `xml:"fsDescr"`
	Props     []fDecl `xml:"fDecl"`
}

type fDecl struct {
	ID     string `xml:"xml:id,attr"`
	Name   string `xml:"name,attr"`
	VRange vRange `xml:"vRange"`
}

type vRange struct {
	VColl vColl `xml:"vColl"`
}

type vColl struct {
	Values []string `xml:"string"`
}

type teiText struct {
	Body        teiBody  `xml:"body"`
	Annotations []annoFS `xml:"fs"`
}

type teiBody struct {
	Ab teiAb `xml:"ab"`
}

type teiAb struct {
	Type     string `xml:"type,attr"`
	Children []any
}

type teiSeg struct {
	XMLName xml.Name `xml:"seg"`
	Ana     string   `xml:"ana,attr"`
	Ptr     teiPtr   `xml:"ptr"`
}

type teiPtr struct {
	XMLName xml.Name `xml:"ptr"`
	Target  string   `xml:"target,attr"`
	Type    string   `xml:"type,attr"`
}

type annoFS struct {
	ID    string  `xml:"xml:id,attr"`
	Type  string  `xml:"type,attr"`
	Props []annoF `xml:"f"`
}

type annoF struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"string"`
}

// segment is one range of the non-overlapping partition of the text
// together with the annotations covering it.
type segment struct {
	Range       catma.Range
	Annotations []*catma.Annotation
}

// partition builds the non-overlapping range partition of the text.
// Starting from the full text range, every annotation range splits the
// partition into disjoint parts that each carry the full set of
// annotations covering them.
func partition(textLength int, annotations []*catma.Annotation) []segment {
	merged := map[catma.Range][]*catma.Annotation{
		{Start: 0, End: textLength}: nil,
	}

	for _, anno := range annotations {
		for _, target := range anno.Ranges {
			keys := make([]catma.Range, 0, len(merged))
			for k := range merged {
				keys = append(keys, k)
			}

			for _, affected := range target.OverlappingRanges(keys) {
				if target.Contains(affected) {
					merged[affected] = append(merged[affected], anno)
					continue
				}

				existing := merged[affected]
				overlap, ok := affected.Overlap(target)
				if !ok {
					continue
				}
				for _, disjoint := range affected.Disjoint(target) {
					merged[disjoint] = append([]*catma.Annotation(nil), existing...)
				}
				covering := make([]*catma.Annotation, 0, len(existing)+1)
				covering = append(covering, existing...)
				merged[overlap] = append(covering, anno)
				delete(merged, affected)
			}
		}
	}

	segments := make([]segment, 0, len(merged))
	for r, annos := range merged {
		segments = append(segments, segment{Range: r, Annotations: annos})
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Range.Compare(segments[j].Range) < 0
	})
	return segments
}

// ptrTarget formats the pointer target for one range of the document,
// e.g. catma://CATMA_0854DF2F-9527-428E-B753-84C0710AFDA5#char=42,48
func ptrTarget(col *catma.Collection, r catma.Range) string {
	return fmt.Sprintf("catma://%s#char=%d,%d",
		catma.FormatUUID(col.DocumentID), r.Start, r.End)
}

// Write renders the collection as a CATMA TEI document.
func Write(col *catma.Collection) ([]byte, error) {
	doc := teiDocument{
		Lang:  "en",
		Xmlns: teiNamespace,
	}
	doc.Header.FileDesc = fileDesc{
		TitleStmt:       titleStmt{Title: col.Title, Author: col.Author},
		PublicationStmt: publicationStmt{Publisher: col.Publisher},
		SourceDesc: sourceDesc{
			P: col.Title,
			Ab: sourceAb{FS: techFS{
				ID: techDescID,
				F:  techF{Name: "version", String: strconv.Itoa(Version)},
			}},
		},
	}

	for _, ts := range col.Tagsets {
		doc.Header.EncodingDesc.Tagsets = append(doc.Header.EncodingDesc.Tagsets, writeTagset(ts))
	}

	doc.Text.Body.Ab.Type = "catma"
	for _, seg := range partition(col.TextLength, col.Annotations) {
		ptr := teiPtr{Target: ptrTarget(col, seg.Range), Type: "inclusion"}
		if len(seg.Annotations) == 0 {
			doc.Text.Body.Ab.Children = append(doc.Text.Body.Ab.Children, ptr)
			continue
		}
		refs := make([]string, len(seg.Annotations))
		for i, anno := range seg.Annotations {
			refs[i] = "#" + catma.FormatUUID(anno.UUID)
		}
		doc.Text.Body.Ab.Children = append(doc.Text.Body.Ab.Children, teiSeg{
			Ana: strings.Join(refs, " "),
			Ptr: ptr,
		})
	}

	for _, anno := range col.Annotations {
		doc.Text.Annotations = append(doc.Text.Annotations, writeAnnotation(col, anno))
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding TEI: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func writeTagset(ts *catma.Tagset) fsdDecl {
	decl := fsdDecl{
		ID: catma.FormatUUID(ts.UUID),
		N:  ts.Name + " " + ts.Version,
	}
	for _, tag := range ts.OrderedTags() {
		tagID := catma.FormatUUID(tag.UUID)
		fsd := fsDecl{
			ID:    tagID,
			N:     tag.Version,
			Type:  tagID,
			Descr: tag.Name,
		}
		if tag.Parent != nil {
			fsd.BaseTypes = catma.FormatUUID(tag.Parent.UUID)
		}
		for _, name := range tag.PropertyNames() {
			prop := tag.Properties[name]
			fsd.Props = append(fsd.Props, fDecl{
				ID:     catma.FormatUUID(prop.UUID),
				Name:   prop.Name,
				VRange: vRange{VColl: vColl{Values: prop.Values}},
			})
		}
		decl.Tags = append(decl.Tags, fsd)
	}
	return decl
}

func writeAnnotation(col *catma.Collection, anno *catma.Annotation) annoFS {
	fs := annoFS{
		ID:   catma.FormatUUID(anno.UUID),
		Type: catma.FormatUUID(anno.Tag.UUID),
	}

	// system properties are taken from the collection and the tag when
	// the annotation does not carry its own values
	if _, ok := anno.Properties[catma.PropMarkupAuthor]; !ok {
		fs.Props = append(fs.Props, annoF{
			Name:   catma.PropMarkupAuthor,
			Values: []string{col.Author},
		})
	}
	if _, ok := anno.Properties[catma.PropDisplayColor]; !ok {
		fs.Props = append(fs.Props, annoF{
			Name:   catma.PropDisplayColor,
			Values: []string{strconv.Itoa(anno.Tag.Color)},
		})
	}

	for _, name := range anno.PropertyNames() {
		fs.Props = append(fs.Props, annoF{Name: name, Values: anno.Properties[name]})
	}
	return fs
}
