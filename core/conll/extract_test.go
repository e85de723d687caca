package conll

import (
	"errors"
	"strings"
	"testing"

	cerrors "github.com/forTEXT/catma-go/core/errors"
)

// sentence builds a CoNLL sentence block with one marker column per token.
func sentence(markers ...string) string {
	var b strings.Builder
	for i, m := range markers {
		b.WriteString("tok")
		b.WriteByte(byte('0' + i%10))
		b.WriteByte(' ')
		b.WriteString(m)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

func TestExtractSpansBasic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Span
	}{
		{
			name:  "plain pair",
			input: sentence("(1", "-", "1)"),
			want:  []Span{{Start: 0, End: 2, Chain: 1}},
		},
		{
			name:  "self closing",
			input: sentence("-", "(5)", "-"),
			want:  []Span{{Start: 1, End: 1, Chain: 5}},
		},
		{
			name:  "same chain nested",
			input: sentence("(1", "(1", "1)", "1)"),
			want: []Span{
				{Start: 1, End: 2, Chain: 1},
				{Start: 0, End: 3, Chain: 1},
			},
		},
		{
			name:  "distinct chains interleaved",
			input: sentence("(1", "(2", "1)", "2)"),
			want: []Span{
				{Start: 0, End: 2, Chain: 1},
				{Start: 1, End: 3, Chain: 2},
			},
		},
		{
			name:  "multiple markers one token",
			input: sentence("(1|(2)", "1)"),
			want: []Span{
				{Start: 0, End: 0, Chain: 2},
				{Start: 0, End: 1, Chain: 1},
			},
		},
		{
			name:  "open and close on same token",
			input: sentence("(1", "1)|(1", "1)"),
			want: []Span{
				{Start: 0, End: 1, Chain: 1},
				{Start: 1, End: 2, Chain: 1},
			},
		},
		{
			name:  "no markers at all",
			input: sentence("-", "-", "-"),
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ExtractSpans(strings.NewReader(tt.input), DefaultOptions())
			if err != nil {
				t.Fatalf("ExtractSpans failed: %v", err)
			}
			assertSpans(t, set.Spans, tt.want)
		})
	}
}

func TestExtractSpansEmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n\n", "# comment only\n"} {
		set, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
		if err != nil {
			t.Fatalf("ExtractSpans(%q) failed: %v", input, err)
		}
		if len(set.Spans) != 0 || len(set.Skipped) != 0 {
			t.Errorf("ExtractSpans(%q) = %v, want empty set", input, set.Spans)
		}
	}
}

func TestExtractSpansDeduplicates(t *testing.T) {
	// two identical markers on the same tokens resolve to one span
	input := sentence("(3|(3", "3)|3)")
	set, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractSpans failed: %v", err)
	}
	assertSpans(t, set.Spans, []Span{{Start: 0, End: 1, Chain: 3}})
}

func TestExtractSpansOffsetBases(t *testing.T) {
	input := sentence("(1", "1)") + sentence("-", "(2)")

	local, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractSpans failed: %v", err)
	}
	wantLocal := []Span{
		{Start: 0, End: 1, Chain: 1, Sentence: 0},
		{Start: 1, End: 1, Chain: 2, Sentence: 1},
	}
	assertSpans(t, local.Spans, wantLocal)

	opts := DefaultOptions()
	opts.OffsetBase = OffsetDocumentGlobal
	global, err := ExtractSpans(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ExtractSpans failed: %v", err)
	}
	wantGlobal := []Span{
		{Start: 0, End: 1, Chain: 1, Sentence: 0},
		{Start: 3, End: 3, Chain: 2, Sentence: 1},
	}
	assertSpans(t, global.Spans, wantGlobal)
}

func TestExtractSpansColumnSelection(t *testing.T) {
	input := "tok0 (7 x\ntok1 7) y\n\n"
	opts := DefaultOptions()
	opts.Column = 1
	set, err := ExtractSpans(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ExtractSpans failed: %v", err)
	}
	assertSpans(t, set.Spans, []Span{{Start: 0, End: 1, Chain: 7}})
}

func TestExtractSpansUnmatchedOpen(t *testing.T) {
	input := sentence("(1", "-", "-")
	_, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
	if err == nil {
		t.Fatal("unmatched open marker was not reported")
	}
	var unmatched *cerrors.UnmatchedSpanMarkerError
	if !errors.As(err, &unmatched) {
		t.Fatalf("error type = %T, want *UnmatchedSpanMarkerError", err)
	}
	if unmatched.Chain != 1 || unmatched.Sentence != 0 {
		t.Errorf("error context = chain %d sentence %d, want chain 1 sentence 0", unmatched.Chain, unmatched.Sentence)
	}
	if unmatched.Line != 1 {
		t.Errorf("error line = %d, want 1", unmatched.Line)
	}
}

func TestExtractSpansUnmatchedClose(t *testing.T) {
	input := sentence("-", "1)")
	_, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
	if err == nil {
		t.Fatal("unmatched close marker was not reported")
	}
	var unmatched *cerrors.UnmatchedSpanMarkerError
	if !errors.As(err, &unmatched) {
		t.Fatalf("error type = %T, want *UnmatchedSpanMarkerError", err)
	}
	if unmatched.Line != 2 {
		t.Errorf("error line = %d, want 2", unmatched.Line)
	}
}

func TestExtractSpansUnmatchedAtSentenceBoundary(t *testing.T) {
	// spans must not leak across the blank line into the next sentence
	input := sentence("(1") + sentence("1)")
	_, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
	if !errors.Is(err, cerrors.ErrUnmatchedSpanMarker) {
		t.Fatalf("error = %v, want ErrUnmatchedSpanMarker", err)
	}
}

func TestExtractSpansMalformedMarker(t *testing.T) {
	input := sentence("(1", "(x)")
	_, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
	if err == nil {
		t.Fatal("malformed marker was not reported")
	}
	var malformed *cerrors.MalformedMarkerError
	if !errors.As(err, &malformed) {
		t.Fatalf("error type = %T, want *MalformedMarkerError", err)
	}
	if malformed.Value != "(x)" {
		t.Errorf("error value = %q, want %q", malformed.Value, "(x)")
	}
	if malformed.Line != 2 {
		t.Errorf("error line = %d, want 2", malformed.Line)
	}
}

func TestExtractSpansMalformedMarkerSentinel(t *testing.T) {
	// the grammar cause attached to the error must not hide the sentinel
	for _, marker := range []string{"(a)", "7"} {
		input := sentence(marker)
		_, err := ExtractSpans(strings.NewReader(input), DefaultOptions())
		if err == nil {
			t.Fatalf("marker %q was not reported", marker)
		}
		if !errors.Is(err, cerrors.ErrMalformedMarker) {
			t.Errorf("marker %q: errors.Is(err, ErrMalformedMarker) = false, err = %v", marker, err)
		}
	}
}

func TestExtractSpansMissingColumn(t *testing.T) {
	input := "tok0 a (1\ntok1 a 1)\ntok2\n\n"
	opts := DefaultOptions()
	opts.Column = 2
	_, err := ExtractSpans(strings.NewReader(input), opts)
	if !errors.Is(err, cerrors.ErrMalformedRow) {
		t.Fatalf("error = %v, want ErrMalformedRow", err)
	}
}

func TestExtractSpansSkipBadSentences(t *testing.T) {
	input := sentence("(1", "1)") +
		sentence("(2", "-") + // unmatched open, sentence dropped
		sentence("(3)")

	opts := DefaultOptions()
	opts.SkipBadSentences = true
	set, err := ExtractSpans(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ExtractSpans failed: %v", err)
	}
	want := []Span{
		{Start: 0, End: 1, Chain: 1, Sentence: 0},
		{Start: 0, End: 0, Chain: 3, Sentence: 2},
	}
	assertSpans(t, set.Spans, want)
	if len(set.Skipped) != 1 {
		t.Fatalf("got %d skipped errors, want 1", len(set.Skipped))
	}
	if !errors.Is(set.Skipped[0], cerrors.ErrUnmatchedSpanMarker) {
		t.Errorf("skipped error = %v, want ErrUnmatchedSpanMarker", set.Skipped[0])
	}
}

func TestExtractSpansSkipRollsBackPartialSentence(t *testing.T) {
	// the first span of the bad sentence resolves before the error hits;
	// the skip policy must roll it back
	input := sentence("(1)", "bad(") + sentence("(2)")

	opts := DefaultOptions()
	opts.SkipBadSentences = true
	set, err := ExtractSpans(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ExtractSpans failed: %v", err)
	}
	assertSpans(t, set.Spans, []Span{{Start: 0, End: 0, Chain: 2, Sentence: 1}})
	if len(set.Skipped) != 1 {
		t.Errorf("got %d skipped errors, want 1", len(set.Skipped))
	}
}

func TestExtractRenderRoundTrip(t *testing.T) {
	columns := [][]string{
		{"(1", "(1", "1)", "1)"},
		{"(2|(3)", "-", "2)"},
		{"(4)", "(5", "5)|(5", "5)"},
	}

	var b strings.Builder
	for _, cols := range columns {
		b.WriteString(sentence(cols...))
	}

	set, err := ExtractSpans(strings.NewReader(b.String()), DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractSpans failed: %v", err)
	}

	bySentence := make(map[int][]Span)
	for _, sp := range set.Spans {
		bySentence[sp.Sentence] = append(bySentence[sp.Sentence], sp)
	}

	for i, cols := range columns {
		rendered := RenderMarkers(bySentence[i], len(cols))
		var rb strings.Builder
		rb.WriteString(sentence(rendered...))

		again, err := ExtractSpans(strings.NewReader(rb.String()), DefaultOptions())
		if err != nil {
			t.Fatalf("sentence %d: re-extraction failed: %v\nrendered: %v", i, err, rendered)
		}
		assertSpans(t, again.Spans, withSentence(bySentence[i], 0))
	}
}

// withSentence returns a copy of spans with the sentence index rewritten.
func withSentence(spans []Span, sentence int) []Span {
	out := make([]Span, len(spans))
	for i, sp := range spans {
		sp.Sentence = sentence
		out[i] = sp
	}
	return out
}

func assertSpans(t *testing.T, got, want []Span) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d spans %v, want %d spans %v", len(got), got, len(want), want)
	}
	seen := make(map[Span]bool, len(got))
	for _, sp := range got {
		seen[sp] = true
	}
	for _, sp := range want {
		if !seen[sp] {
			t.Errorf("missing span %+v in %v", sp, got)
		}
	}
}
