package conll

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// AbsentValue is the conventional placeholder for an empty annotation
// column.
const AbsentValue = "-"

// Marker is one bracket-coded span marker from a coreference column.
// Exactly one of the four shapes is valid: "(N" (open), "N)" (close),
// "(N)" (open and close on a single token).
type Marker struct {
	// Open is true for "(N" and "(N)".
	Open bool

	// Chain is the numeric chain id grouping spans of one entity.
	Chain int

	// Close is true for "N)" and "(N)".
	Close bool
}

// IsComplete returns true for a self-closing single-token marker "(N)".
func (m Marker) IsComplete() bool {
	return m.Open && m.Close
}

func (m Marker) String() string {
	var b strings.Builder
	if m.Open {
		b.WriteByte('(')
	}
	b.WriteString(strconv.Itoa(m.Chain))
	if m.Close {
		b.WriteByte(')')
	}
	return b.String()
}

// markerGrammar is the participle grammar for a single span marker.
// Examples: "(28", "28)", "(28)"
//
type markerGrammar struct {
	Open  bool `parser:"@Open?"`
	Chain int  `parser:"@Int"`
	Close bool `parser:"@Close?"`
}

// markerLexer defines the lexer for span markers.
var markerLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Open", Pattern: `\(`},
	{Name: "Close", Pattern: `\)`},
})

// markerParser is the participle parser for span markers.
var markerParser = participle.MustBuild[markerGrammar](
	participle.Lexer(markerLexer),
)

// ParseMarker parses one bracket-coded span marker. A bare chain id
// without any bracket is rejected: it marks nothing.
func ParseMarker(s string) (Marker, error) {
	parsed, err := markerParser.ParseString("", s)
	if err != nil {
		return Marker{}, err
	}
	if !parsed.Open && !parsed.Close {
		return Marker{}, participle.Errorf(lexer.Position{}, "marker %q has neither opening nor closing bracket", s)
	}
	return Marker{Open: parsed.Open, Chain: parsed.Chain, Close: parsed.Close}, nil
}

// ParseMarkerColumn parses a whole coreference column. Multiple markers
// are joined by "|"; the absent value and the empty string yield no
// markers.
func ParseMarkerColumn(column string) ([]Marker, error) {
	column = strings.TrimSpace(column)
	if column == "" || column == AbsentValue || column == "_" {
		return nil, nil
	}

	parts := strings.Split(column, "|")
	markers := make([]Marker, 0, len(parts))
	for _, part := range parts {
		m, err := ParseMarker(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, nil
}
