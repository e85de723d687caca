package conll

import (
	"bufio"
	"io"
	"strings"

	cerrors "github.com/forTEXT/catma-go/core/errors"
)

// maxLineSize bounds a single input line. CoNLL rows are short; anything
// beyond this is a broken file, not a token row.
const maxLineSize = 1 << 20

// Row is one token line of a CoNLL file.
type Row struct {
	// Line is the one-based line number in the input.
	Line int

	// Sentence is the zero-based sentence block index.
	Sentence int

	// Columns are the split column values of the row.
	Columns []string
}

// Column returns the column at the given index. Negative indices count
// from the end, -1 being the last column.
func (r Row) Column(i int) (string, bool) {
	if i < 0 {
		i = len(r.Columns) + i
	}
	if i < 0 || i >= len(r.Columns) {
		return "", false
	}
	return r.Columns[i], true
}

// TokenHandler consumes token rows produced by a LineParser. Token is
// called once per row, EndOfLines once after the last row.
type TokenHandler interface {
	Token(row Row) error
	EndOfLines() error
}

// LineParser parses a file in the CoNLL-2012 line convention. The zero
// value splits columns on arbitrary whitespace runs.
type LineParser struct {
	// Separator is the column separator. Empty means any whitespace run
	// (strings.Fields); "\t" is the tab-separated HotCorefDe output.
	Separator string

	// Comment is the comment line prefix, "#" if empty.
	Comment string
}

// Parse reads lines from r and feeds each token row to all handlers in
// order. The reader's lifecycle is owned by the caller. Parsing stops at
// the first handler error.
func (p *LineParser) Parse(r io.Reader, handlers ...TokenHandler) error {
	comment := p.Comment
	if comment == "" {
		comment = "#"
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	inBlock := false
	sentence := -1
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := RemoveBOM(scanner.Text())
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			// blank line ends the current sentence block
			inBlock = false
			continue
		}
		if strings.HasPrefix(trimmed, comment) {
			// comment lines never open or close a block
			continue
		}

		if !inBlock {
			sentence++
			inBlock = true
		}

		row := Row{
			Line:     lineNo,
			Sentence: sentence,
			Columns:  p.split(line),
		}
		for _, h := range handlers {
			if err := h.Token(row); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return cerrors.NewIO("read", "", err)
	}

	for _, h := range handlers {
		if err := h.EndOfLines(); err != nil {
			return err
		}
	}
	return nil
}

func (p *LineParser) split(line string) []string {
	if p.Separator == "" {
		return strings.Fields(line)
	}
	return strings.Split(strings.TrimRight(line, "\r\n"), p.Separator)
}

// RemoveBOM removes all occurrences of the UTF-8 byte order mark from the
// given text. Some annotation tools emit the BOM mid-stream when files
// are concatenated.
func RemoveBOM(text string) string {
	return strings.ReplaceAll(text, "\ufeff", "")
}
