// Package hotcoref is the HotCorefDe format handler. It reads the
// dialect's extra columns: numerus (column 8), genus (column 9), and
// the coreference column (last), resolving bracket-coded coreference
// markers into character-ranged annotations.
package hotcoref

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/forTEXT/catma-go/core/catma"
	lines "github.com/forTEXT/catma-go/core/conll"
	cerrors "github.com/forTEXT/catma-go/core/errors"
	"github.com/forTEXT/catma-go/internal/formats"
	"github.com/forTEXT/catma-go/internal/formats/base"
	conllfmt "github.com/forTEXT/catma-go/internal/formats/conll"
)

// FormatID is the registry key of this handler.
const FormatID = "hotcoref"

// TagsetName is the name of the generated coreference tagset.
const TagsetName = "HotCorefDe"

const (
	colNumerus = 7
	colGenus   = 8
	minColumns = 9
)

func init() {
	formats.Register(&Handler{})
}

// Tags bundles the tag definitions of the coreference tagset. Per-chain
// tags CorefN are created on demand as children of CorefBase.
type Tags struct {
	CorefBase *catma.Tag
	Genus     *catma.Tag
	Numerus   *catma.Tag

	tagset *catma.Tagset
	author string
}

// NewTags creates the coreference tagset with its fixed tag
// definitions.
func NewTags(author string) *Tags {
	t := &Tags{
		CorefBase: catma.NewTag("Coreference", author),
		Genus:     catma.NewTag("Genus", author),
		Numerus:   catma.NewTag("Numerus", author),
		author:    author,
	}
	t.tagset = catma.NewTagset(TagsetName, t.CorefBase, t.Genus, t.Numerus)
	return t
}

// Tagset returns the tagset holding all tags created so far.
func (t *Tags) Tagset() *catma.Tagset {
	return t.tagset
}

// Coref returns the tag for the given chain id, creating it under
// CorefBase on first use.
func (t *Tags) Coref(chain int) *catma.Tag {
	name := "Coref" + strconv.Itoa(chain)
	if existing := t.tagset.TagByPath("/Coreference/" + name); existing != nil {
		return existing
	}
	tag := catma.NewChildTag(name, t.author, t.CorefBase)
	t.tagset.AddTag(tag)
	return tag
}

// openSpan is a pending coreference span awaiting its close marker.
type openSpan struct {
	start int // character offset
	line  int
}

// tokenHandler turns token rows into numerus, genus, and coreference
// annotations. Open coreference markers are tracked in LIFO stacks per
// chain id at character offset level. Unlike sentence-local span
// extraction, coreference chains may close in a later sentence, so the
// stacks survive sentence boundaries and are checked at end of input.
type tokenHandler struct {
	tags  *Tags
	index *base.TextIndex
	skip  bool

	open        map[int][]openSpan
	openAtStart map[int][]openSpan // snapshot at sentence start, for rollback
	sentence    int
	mark        int  // annotation count at sentence start
	skipping    bool // true while discarding the rest of a bad sentence

	annotations []*catma.Annotation
	skipped     []error
}

func newTokenHandler(tags *Tags, index *base.TextIndex, skipBad bool) *tokenHandler {
	return &tokenHandler{
		tags:     tags,
		index:    index,
		skip:     skipBad,
		open:     make(map[int][]openSpan),
		sentence: -1,
	}
}

// copyOpen deep-copies the open-span registry so a rollback cannot
// alias stacks mutated afterwards.
func copyOpen(open map[int][]openSpan) map[int][]openSpan {
	copied := make(map[int][]openSpan, len(open))
	for chain, stack := range open {
		copied[chain] = append([]openSpan(nil), stack...)
	}
	return copied
}

func (h *tokenHandler) Token(row lines.Row) error {
	if row.Sentence != h.sentence {
		h.sentence = row.Sentence
		h.mark = len(h.annotations)
		h.openAtStart = copyOpen(h.open)
		h.skipping = false
	}
	if h.skipping {
		// keep the text index advancing so later offsets stay correct
		if len(row.Columns) > 3 {
			h.index.TokenRange(row.Columns[3])
		}
		return nil
	}

	if len(row.Columns) < minColumns {
		return h.fail(cerrors.NewMalformedRow(row.Sentence, row.Line, minColumns, len(row.Columns)))
	}

	documentID := row.Columns[0]
	partNo := row.Columns[1]
	wordNo := row.Columns[2]
	word := row.Columns[3]
	pos := row.Columns[4]
	parseBit := row.Columns[5]
	numerus := row.Columns[colNumerus]
	genus := row.Columns[colGenus]
	corefColumn := row.Columns[len(row.Columns)-1]

	tokenRange := h.index.TokenRange(word)

	genusAnno := catma.NewAnnotation(h.tags.Genus)
	genusAnno.AddRange(tokenRange)
	genusAnno.AddProperty(base.PropPartNo, partNo, false)
	genusAnno.AddProperty(base.PropDocumentID, documentID, false)
	genusAnno.AddProperty(base.PropWordNo, wordNo, false)
	genusAnno.AddProperty(base.PropPOS, pos, false)
	genusAnno.AddProperty(base.PropParseBit, parseBit, false)
	genusAnno.AddProperty("genus", genus, false)
	h.annotations = append(h.annotations, genusAnno)

	numerusAnno := catma.NewAnnotation(h.tags.Numerus)
	numerusAnno.AddRange(tokenRange)
	numerusAnno.AddProperty(base.PropPartNo, partNo, false)
	numerusAnno.AddProperty(base.PropDocumentID, documentID, false)
	numerusAnno.AddProperty(base.PropWordNo, wordNo, false)
	numerusAnno.AddProperty(base.PropPOS, pos, false)
	numerusAnno.AddProperty(base.PropParseBit, parseBit, false)
	numerusAnno.AddProperty("numerus", numerus, false)
	h.annotations = append(h.annotations, numerusAnno)

	markers, err := lines.ParseMarkerColumn(corefColumn)
	if err != nil {
		return h.fail(cerrors.NewMalformedMarker(row.Sentence, row.Line, len(row.Columns)-1, corefColumn, err))
	}

	for _, m := range markers {
		switch {
		case m.IsComplete():
			h.addCoref(m.Chain, catma.Range{Start: tokenRange.Start, End: tokenRange.End})
		case m.Open:
			h.open[m.Chain] = append(h.open[m.Chain], openSpan{start: tokenRange.Start, line: row.Line})
		case m.Close:
			stack := h.open[m.Chain]
			if len(stack) == 0 {
				return h.fail(cerrors.NewUnmatchedSpanMarker(m.Chain, row.Sentence, row.Line, "close without open"))
			}
			pending := stack[len(stack)-1]
			h.open[m.Chain] = stack[:len(stack)-1]
			h.addCoref(m.Chain, catma.Range{Start: pending.start, End: tokenRange.End})
		}
	}

	return nil
}

// EndOfLines reports chains still open when the input ends. There is
// no sentence left to roll back at this point, so skip mode records
// the errors without dropping annotations.
func (h *tokenHandler) EndOfLines() error {
	for chain, stack := range h.open {
		if len(stack) == 0 {
			continue
		}
		err := cerrors.NewUnmatchedSpanMarker(chain, -1, stack[len(stack)-1].line, "open without close")
		if !h.skip {
			return err
		}
		h.skipped = append(h.skipped, err)
	}
	return nil
}

func (h *tokenHandler) addCoref(chain int, r catma.Range) {
	anno := catma.NewAnnotation(h.tags.Coref(chain))
	anno.AddRange(r)
	anno.AddProperty("index", strconv.Itoa(chain), false)
	h.annotations = append(h.annotations, anno)
}

// fail aborts the decode or, under skip mode, rolls the current
// sentence back: its annotations are dropped and the open-span
// registry is restored to the sentence-start snapshot.
func (h *tokenHandler) fail(err error) error {
	if !h.skip {
		return err
	}
	h.annotations = h.annotations[:h.mark]
	h.open = copyOpen(h.openAtStart)
	h.skipped = append(h.skipped, err)
	h.skipping = true
	return nil
}

// Handler is the embedded HotCorefDe format handler.
type Handler struct{}

// ID implements formats.Handler.
func (h *Handler) ID() string { return FormatID }

// Detect implements formats.Handler. HotCorefDe rows carry the extra
// numerus and genus columns plus a coreference column whose values are
// bracket markers or the absent placeholder.
func (h *Handler) Detect(filename string, data []byte) *formats.DetectResult {
	return base.DetectFile(filename, data, base.DetectConfig{
		Extensions: []string{".hotcoref"},
		FormatName: FormatID,
		Validator:  looksLikeHotCoref,
	})
}

func looksLikeHotCoref(filename string, data []byte) (bool, string) {
	for _, line := range strings.Split(string(data), "\n") {
		line = lines.RemoveBOM(line)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < minColumns {
			return false, ""
		}
		last := strings.TrimSpace(cols[len(cols)-1])
		if last == lines.AbsentValue || last == "" {
			return true, "token rows with coreference column detected"
		}
		if _, err := lines.ParseMarkerColumn(last); err == nil {
			return true, "coreference span markers detected"
		}
		return false, ""
	}
	return false, ""
}

// Decode implements formats.Handler.
func (h *Handler) Decode(data []byte, opts formats.DecodeOptions) (*catma.Collection, error) {
	author := opts.Author
	if author == "" {
		author = "HotCorefDe"
	}

	tags := NewTags(author)
	index := base.NewTextIndex(opts.SourceText)
	handler := newTokenHandler(tags, index, opts.SkipBadSentences)

	// the NLP annotations ride along on the same pass
	nlpTags := conllfmt.NewTags(author)
	nlpIndex := base.NewTextIndex(opts.SourceText)
	nlpHandler := conllfmt.NewTokenHandler(nlpTags, nlpIndex, opts.SkipBadSentences)

	parser := &lines.LineParser{Separator: "\t"}
	if err := parser.Parse(strings.NewReader(string(data)), nlpHandler, handler); err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = "HotCorefDe Annotations"
	}

	col := catma.NewCollection(title, author, utf8.RuneCountInString(index.Text()))
	col.AddTagset(nlpTags.Tagset())
	col.AddTagset(tags.Tagset())
	col.AddAnnotations(nlpHandler.Annotations()...)
	col.AddAnnotations(handler.annotations...)
	skipped := append(nlpHandler.Skipped(), handler.skipped...)
	if n := base.LogSkipped(opts.Filename, skipped); n > 0 {
		col.SetAttribute(formats.AttrSkippedSentences, strconv.Itoa(n))
	}
	return col, nil
}
