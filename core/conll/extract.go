package conll

import (
	"io"

	cerrors "github.com/forTEXT/catma-go/core/errors"
)

// OffsetBase selects the index space of extracted span offsets.
type OffsetBase int

const (
	// OffsetSentenceLocal numbers tokens from zero within each sentence.
	OffsetSentenceLocal OffsetBase = iota

	// OffsetDocumentGlobal numbers tokens from zero across the document.
	OffsetDocumentGlobal
)

// Span is one resolved span annotation over token indices. End is
// inclusive, so a single-token span has Start == End.
type Span struct {
	Start    int `json:"start"`
	End      int `json:"end"`
	Chain    int `json:"chain"`
	Sentence int `json:"sentence"`
}

// SpanSet is the normalized result of span extraction for one document.
// Spans appear in resolution order, deduplicated by (start, end, chain).
type SpanSet struct {
	Spans []Span

	// Skipped holds the per-sentence errors of sentences dropped under
	// Options.SkipBadSentences.
	Skipped []error

	seen map[Span]bool
}

// add appends the span unless an equal one was already resolved.
func (s *SpanSet) add(sp Span) {
	if s.seen == nil {
		s.seen = make(map[Span]bool)
	}
	key := sp
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.Spans = append(s.Spans, sp)
}

// Options configures span extraction.
type Options struct {
	// Column is the annotation column index. Negative values count from
	// the end of the row; the default -1 is the conventional place of
	// the coreference column.
	Column int

	// OffsetBase selects sentence-local or document-global token
	// indices.
	OffsetBase OffsetBase

	// Separator is the column separator, see LineParser.
	Separator string

	// SkipBadSentences drops a sentence on its first parse error and
	// records the error in SpanSet.Skipped instead of aborting the
	// document.
	SkipBadSentences bool
}

// DefaultOptions returns extraction options for the conventional layout:
// coreference in the last column, sentence-local offsets, whitespace
// separated columns.
func DefaultOptions() Options {
	return Options{Column: -1}
}

// ExtractSpans scans the CoNLL lines of r and resolves all bracket-coded
// span markers of the configured column into a SpanSet. The caller owns
// the reader. Extraction has no side effects and shares no state between
// calls.
func ExtractSpans(r io.Reader, opts Options) (*SpanSet, error) {
	ex := &spanExtractor{opts: opts, set: &SpanSet{}}
	parser := &LineParser{Separator: opts.Separator}
	if err := parser.Parse(r, ex); err != nil {
		return nil, err
	}
	return ex.set, nil
}

// spanExtractor is the TokenHandler resolving span markers. It keeps an
// open-span registry per sentence: chain id to stack of pending start
// offsets. A stack, not a single value, because the same chain may nest
// or recur within one sentence.
type spanExtractor struct {
	opts Options
	set  *SpanSet

	open       map[int][]int // chain id -> stack of open start offsets
	openLines  map[int][]int // chain id -> stack of open line numbers
	sentence   int           // current sentence index, -1 before the first token
	localIdx   int           // sentence-local token index
	globalIdx  int           // document-global token index
	lastLine   int           // line number of the last token row seen
	mark       int           // span count at sentence start, for SkipBadSentences
	skipping   bool          // true while discarding the rest of a bad sentence
	hasContent bool
}

func (ex *spanExtractor) Token(row Row) error {
	if !ex.hasContent {
		ex.hasContent = true
		ex.sentence = -1
	}

	if row.Sentence != ex.sentence {
		if err := ex.closeSentence(); err != nil {
			return err
		}
		ex.sentence = row.Sentence
		ex.localIdx = 0
		ex.open = make(map[int][]int)
		ex.openLines = make(map[int][]int)
		ex.mark = len(ex.set.Spans)
		ex.skipping = false
	}

	ex.lastLine = row.Line
	idx := ex.localIdx
	if ex.opts.OffsetBase == OffsetDocumentGlobal {
		idx = ex.globalIdx
	}
	ex.localIdx++
	ex.globalIdx++

	if ex.skipping {
		return nil
	}

	column, ok := row.Column(ex.opts.Column)
	if !ok {
		want := ex.opts.Column + 1
		if ex.opts.Column < 0 {
			want = -ex.opts.Column
		}
		return ex.fail(cerrors.NewMalformedRow(row.Sentence, row.Line, want, len(row.Columns)))
	}

	markers, err := ParseMarkerColumn(column)
	if err != nil {
		colIdx := ex.opts.Column
		if colIdx < 0 {
			colIdx += len(row.Columns)
		}
		return ex.fail(cerrors.NewMalformedMarker(row.Sentence, row.Line, colIdx, column, err))
	}

	for _, m := range markers {
		switch {
		case m.IsComplete():
			ex.set.add(Span{Start: idx, End: idx, Chain: m.Chain, Sentence: row.Sentence})
		case m.Open:
			ex.open[m.Chain] = append(ex.open[m.Chain], idx)
			ex.openLines[m.Chain] = append(ex.openLines[m.Chain], row.Line)
		case m.Close:
			stack := ex.open[m.Chain]
			if len(stack) == 0 {
				return ex.fail(cerrors.NewUnmatchedSpanMarker(m.Chain, row.Sentence, row.Line, "close without open"))
			}
			start := stack[len(stack)-1]
			ex.open[m.Chain] = stack[:len(stack)-1]
			lines := ex.openLines[m.Chain]
			ex.openLines[m.Chain] = lines[:len(lines)-1]
			ex.set.add(Span{Start: start, End: idx, Chain: m.Chain, Sentence: row.Sentence})
		}
	}
	return nil
}

func (ex *spanExtractor) EndOfLines() error {
	if !ex.hasContent {
		return nil
	}
	return ex.closeSentence()
}

// closeSentence checks the open-span registry at a sentence boundary.
// Any chain with a non-empty stack is an unmatched open marker.
func (ex *spanExtractor) closeSentence() error {
	if ex.open == nil || ex.skipping {
		return nil
	}
	for chain, stack := range ex.open {
		if len(stack) == 0 {
			continue
		}
		line := ex.openLines[chain][len(stack)-1]
		err := cerrors.NewUnmatchedSpanMarker(chain, ex.sentence, line, "open without close")
		return ex.fail(err)
	}
	return nil
}

// fail either aborts extraction or, under SkipBadSentences, rolls the
// current sentence back and records the error.
func (ex *spanExtractor) fail(err error) error {
	if !ex.opts.SkipBadSentences {
		return err
	}
	ex.set.Spans = ex.set.Spans[:ex.mark]
	ex.set.Skipped = append(ex.set.Skipped, err)
	ex.skipping = true
	return nil
}
