// Package conll is the default CoNLL-2012 format handler. It reads the
// first seven columns of each token row into sentence, token, POS, and
// lemma annotations with character ranges against the source text.
package conll

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/forTEXT/catma-go/core/catma"
	lines "github.com/forTEXT/catma-go/core/conll"
	cerrors "github.com/forTEXT/catma-go/core/errors"
	"github.com/forTEXT/catma-go/internal/formats"
	"github.com/forTEXT/catma-go/internal/formats/base"
)

// FormatID is the registry key of this handler.
const FormatID = "conll"

// TagsetName is the name of the generated NLP tagset.
const TagsetName = "CoNLL12 NLP"

const minColumns = 7

func init() {
	formats.Register(&Handler{})
}

// Tags bundles the tag definitions of the NLP tagset. Per-POS tags are
// created on demand as children of POSBase.
type Tags struct {
	Sentence *catma.Tag
	Token    *catma.Tag
	Lemma    *catma.Tag
	POSBase  *catma.Tag

	tagset *catma.Tagset
	author string
}

// NewTags creates the NLP tagset with its fixed tag definitions.
func NewTags(author string) *Tags {
	t := &Tags{
		Sentence: catma.NewTag("Sentence", author),
		Token:    catma.NewTag("Token", author),
		Lemma:    catma.NewTag("Lemma", author),
		POSBase:  catma.NewTag("POS", author),
		author:   author,
	}
	t.tagset = catma.NewTagset(TagsetName, t.Sentence, t.Token, t.Lemma, t.POSBase)
	return t
}

// Tagset returns the tagset holding all tags created so far.
func (t *Tags) Tagset() *catma.Tagset {
	return t.tagset
}

// POS returns the tag for the given part-of-speech value, creating it
// under POSBase on first use.
func (t *Tags) POS(pos string) *catma.Tag {
	if existing := t.tagset.TagByPath("/POS/" + pos); existing != nil {
		return existing
	}
	tag := catma.NewChildTag(pos, t.author, t.POSBase)
	t.tagset.AddTag(tag)
	return tag
}

// TokenHandler turns token rows into annotations. It is exported so
// dialect handlers can run it alongside their own handler on a single
// line pass.
type TokenHandler struct {
	tags  *Tags
	index *base.TextIndex
	skip  bool

	sentence      int
	sentenceAnno  *catma.Annotation
	sentenceStart int
	lastEnd       int

	mark     int  // annotation count at sentence start, for rollback
	skipping bool // true while discarding the rest of a bad sentence

	annotations []*catma.Annotation
	skipped     []error
}

// NewTokenHandler creates a token handler writing annotations against
// the given text index.
func NewTokenHandler(tags *Tags, index *base.TextIndex, skipBad bool) *TokenHandler {
	return &TokenHandler{tags: tags, index: index, skip: skipBad, sentence: -1}
}

// Annotations returns the annotations generated so far.
func (h *TokenHandler) Annotations() []*catma.Annotation {
	return h.annotations
}

// Skipped returns the errors of sentences dropped under skip mode.
func (h *TokenHandler) Skipped() []error {
	return h.skipped
}

func (h *TokenHandler) Token(row lines.Row) error {
	if row.Sentence != h.sentence {
		h.closeSentence()
		h.sentence = row.Sentence
		h.sentenceAnno = nil
		h.mark = len(h.annotations)
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
	lemma := row.Columns[6]

	tokenRange := h.index.TokenRange(word)

	if h.sentenceAnno == nil {
		h.sentenceAnno = catma.NewAnnotation(h.tags.Sentence)
		h.sentenceAnno.AddProperty(base.PropPartNo, partNo, false)
		h.sentenceAnno.AddProperty(base.PropDocumentID, documentID, false)
		h.sentenceAnno.AddProperty(base.PropSentenceNo, strconv.Itoa(h.sentence), false)
		h.annotations = append(h.annotations, h.sentenceAnno)
		h.sentenceStart = tokenRange.Start
	}

	tokenAnno := catma.NewAnnotation(h.tags.Token)
	tokenAnno.AddRange(tokenRange)
	tokenAnno.AddProperty(base.PropPartNo, partNo, false)
	tokenAnno.AddProperty(base.PropDocumentID, documentID, false)
	tokenAnno.AddProperty(base.PropWordNo, wordNo, false)
	tokenAnno.AddProperty(base.PropPOS, pos, false)
	tokenAnno.AddProperty(base.PropParseBit, parseBit, false)
	h.annotations = append(h.annotations, tokenAnno)

	posAnno := catma.NewAnnotation(h.tags.POS(pos))
	posAnno.AddRange(tokenRange)
	posAnno.AddProperty(base.PropPartNo, partNo, false)
	posAnno.AddProperty(base.PropDocumentID, documentID, false)
	posAnno.AddProperty(base.PropWordNo, wordNo, false)
	h.annotations = append(h.annotations, posAnno)

	if strings.TrimSpace(lemma) != lines.AbsentValue {
		lemmaAnno := catma.NewAnnotation(h.tags.Lemma)
		lemmaAnno.AddRange(tokenRange)
		lemmaAnno.AddProperty(base.PropPartNo, partNo, false)
		lemmaAnno.AddProperty(base.PropDocumentID, documentID, false)
		lemmaAnno.AddProperty(base.PropWordNo, wordNo, false)
		lemmaAnno.AddProperty(base.PropLemma, lemma, true)
		h.annotations = append(h.annotations, lemmaAnno)
	}

	h.lastEnd = tokenRange.End
	return nil
}

func (h *TokenHandler) EndOfLines() error {
	h.closeSentence()
	return nil
}

// closeSentence finalizes the pending sentence annotation. The range
// ends at the last token of the closed sentence, not at the token that
// triggered the close.
func (h *TokenHandler) closeSentence() {
	if h.sentence != -1 && h.sentenceAnno != nil {
		h.sentenceAnno.AddRange(catma.Range{Start: h.sentenceStart, End: h.lastEnd})
	}
}

// fail aborts the decode or, under skip mode, rolls the current
// sentence's annotations back and records the error.
func (h *TokenHandler) fail(err error) error {
	if !h.skip {
		return err
	}
	h.annotations = h.annotations[:h.mark]
	h.sentenceAnno = nil
	h.skipped = append(h.skipped, err)
	h.skipping = true
	return nil
}

// Handler is the embedded CoNLL-2012 format handler.
type Handler struct{}

// ID implements formats.Handler.
func (h *Handler) ID() string { return FormatID }

// Detect implements formats.Handler. CoNLL files are tab separated
// with at least seven columns per token row. Wide rows carrying a
// coreference column are left to the dialect handler.
func (h *Handler) Detect(filename string, data []byte) *formats.DetectResult {
	if hasCorefColumn(data) {
		return &formats.DetectResult{Detected: false, Reason: "coreference column present"}
	}
	return base.DetectFile(filename, data, base.DetectConfig{
		Extensions:     []string{".conll", ".conll12"},
		ContentMarkers: []string{"#begin document"},
		FormatName:     FormatID,
		Validator:      looksLikeTokenRows,
	})
}

// hasCorefColumn reports whether the first token row ends in a
// coreference marker column.
func hasCorefColumn(data []byte) bool {
	cols, ok := firstTokenRow(data)
	if !ok || len(cols) < 9 {
		return false
	}
	last := strings.TrimSpace(cols[len(cols)-1])
	if last == lines.AbsentValue {
		return true
	}
	_, err := lines.ParseMarkerColumn(last)
	return err == nil
}

// looksLikeTokenRows accepts content whose first token row is tab
// separated with enough columns.
func looksLikeTokenRows(filename string, data []byte) (bool, string) {
	cols, ok := firstTokenRow(data)
	if ok && len(cols) >= minColumns {
		return true, "tab separated token rows detected"
	}
	return false, ""
}

// firstTokenRow returns the columns of the first non-comment line.
func firstTokenRow(data []byte) ([]string, bool) {
	for _, line := range strings.Split(string(data), "\n") {
		line = lines.RemoveBOM(line)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return strings.Split(line, "\t"), true
	}
	return nil, false
}

// Decode implements formats.Handler.
func (h *Handler) Decode(data []byte, opts formats.DecodeOptions) (*catma.Collection, error) {
	author := opts.Author
	if author == "" {
		author = "Unknown"
	}

	tags := NewTags(author)
	index := base.NewTextIndex(opts.SourceText)
	handler := NewTokenHandler(tags, index, opts.SkipBadSentences)

	parser := &lines.LineParser{Separator: "\t"}
	if err := parser.Parse(strings.NewReader(string(data)), handler); err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = "CoNLL-2012 Annotations"
	}

	col := catma.NewCollection(title, author, utf8.RuneCountInString(index.Text()))
	col.AddTagset(tags.Tagset())
	col.AddAnnotations(handler.annotations...)
	if n := base.LogSkipped(opts.Filename, handler.Skipped()); n > 0 {
		col.SetAttribute(formats.AttrSkippedSentences, strconv.Itoa(n))
	}
	return col, nil
}
