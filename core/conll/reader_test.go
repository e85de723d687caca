package conll

import (
	"strings"
	"testing"
)

// collectHandler records every row it sees.
type collectHandler struct {
	rows  []Row
	ended bool
}

func (c *collectHandler) Token(row Row) error {
	c.rows = append(c.rows, row)
	return nil
}

func (c *collectHandler) EndOfLines() error {
	c.ended = true
	return nil
}

func TestLineParserSentenceBlocks(t *testing.T) {
	input := "" +
		"tok1 a\n" +
		"tok2 b\n" +
		"\n" +
		"tok3 c\n" +
		"\n" +
		"\n" +
		"tok4 d\n"

	h := &collectHandler{}
	p := &LineParser{}
	if err := p.Parse(strings.NewReader(input), h); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !h.ended {
		t.Error("EndOfLines was not called")
	}
	if len(h.rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(h.rows))
	}

	wantSentences := []int{0, 0, 1, 2}
	for i, row := range h.rows {
		if row.Sentence != wantSentences[i] {
			t.Errorf("row %d: sentence = %d, want %d", i, row.Sentence, wantSentences[i])
		}
	}
	if h.rows[3].Line != 7 {
		t.Errorf("last row line = %d, want 7", h.rows[3].Line)
	}
}

func TestLineParserComments(t *testing.T) {
	// a comment between rows must not split the sentence block
	input := "" +
		"#begin document (test)\n" +
		"tok1 a\n" +
		"# mid-sentence comment\n" +
		"tok2 b\n" +
		"\n" +
		"#end document\n" +
		"tok3 c\n"

	h := &collectHandler{}
	p := &LineParser{}
	if err := p.Parse(strings.NewReader(input), h); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(h.rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(h.rows))
	}
	if h.rows[0].Sentence != 0 || h.rows[1].Sentence != 0 {
		t.Errorf("comment split the first block: %d, %d", h.rows[0].Sentence, h.rows[1].Sentence)
	}
	if h.rows[2].Sentence != 1 {
		t.Errorf("third row sentence = %d, want 1", h.rows[2].Sentence)
	}
}

func TestLineParserBOM(t *testing.T) {
	input := "\ufefftok1 a\ntok\ufeff2 b\n"

	h := &collectHandler{}
	p := &LineParser{}
	if err := p.Parse(strings.NewReader(input), h); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(h.rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(h.rows))
	}
	if got := h.rows[0].Columns[0]; got != "tok1" {
		t.Errorf("leading BOM survived: %q", got)
	}
	if got := h.rows[1].Columns[0]; got != "tok2" {
		t.Errorf("mid-token BOM survived: %q", got)
	}
}

func TestLineParserSeparator(t *testing.T) {
	// tab separation keeps empty columns, whitespace splitting drops them
	input := "a\t\tb\n"

	tab := &collectHandler{}
	if err := (&LineParser{Separator: "\t"}).Parse(strings.NewReader(input), tab); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := len(tab.rows[0].Columns); got != 3 {
		t.Errorf("tab separated: %d columns, want 3", got)
	}

	ws := &collectHandler{}
	if err := (&LineParser{}).Parse(strings.NewReader(input), ws); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := len(ws.rows[0].Columns); got != 2 {
		t.Errorf("whitespace separated: %d columns, want 2", got)
	}
}

func TestLineParserEmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n\n\n", "# only comments\n"} {
		h := &collectHandler{}
		if err := (&LineParser{}).Parse(strings.NewReader(input), h); err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		if len(h.rows) != 0 {
			t.Errorf("Parse(%q) produced %d rows, want 0", input, len(h.rows))
		}
		if !h.ended {
			t.Errorf("Parse(%q) did not call EndOfLines", input)
		}
	}
}

func TestRowColumn(t *testing.T) {
	row := Row{Columns: []string{"a", "b", "c"}}

	tests := []struct {
		idx  int
		want string
		ok   bool
	}{
		{0, "a", true},
		{2, "c", true},
		{-1, "c", true},
		{-3, "a", true},
		{3, "", false},
		{-4, "", false},
	}
	for _, tt := range tests {
		got, ok := row.Column(tt.idx)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Column(%d) = (%q, %v), want (%q, %v)", tt.idx, got, ok, tt.want, tt.ok)
		}
	}
}
