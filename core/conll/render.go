package conll

import (
	"sort"
	"strings"
)

// RenderMarkers re-serializes sentence-local spans back into per-token
// marker columns, the inverse of span extraction for a single sentence.
// The result has one column value per token; tokens without markers get
// the absent value. Nested spans of the same chain render in LIFO order
// so that extracting the rendered columns yields the input spans again.
func RenderMarkers(spans []Span, tokenCount int) []string {
	type bound struct {
		chain int
		other int // the opposite end, for nesting order
	}

	opens := make([][]bound, tokenCount)
	closes := make([][]bound, tokenCount)
	points := make([][]int, tokenCount)

	for _, sp := range spans {
		if sp.Start < 0 || sp.End >= tokenCount {
			continue
		}
		if sp.Start == sp.End {
			points[sp.Start] = append(points[sp.Start], sp.Chain)
			continue
		}
		opens[sp.Start] = append(opens[sp.Start], bound{chain: sp.Chain, other: sp.End})
		closes[sp.End] = append(closes[sp.End], bound{chain: sp.Chain, other: sp.Start})
	}

	columns := make([]string, tokenCount)
	for i := 0; i < tokenCount; i++ {
		// outermost span opens first: descending end offset
		sort.SliceStable(opens[i], func(a, b int) bool {
			return opens[i][a].other > opens[i][b].other
		})
		// innermost span closes first: descending start offset
		sort.SliceStable(closes[i], func(a, b int) bool {
			return closes[i][a].other > closes[i][b].other
		})

		// closes render before opens: a close on this token always ends a
		// span opened earlier, never one opening here
		var parts []string
		for _, c := range closes[i] {
			parts = append(parts, Marker{Close: true, Chain: c.chain}.String())
		}
		for _, chain := range points[i] {
			parts = append(parts, Marker{Open: true, Chain: chain, Close: true}.String())
		}
		for _, o := range opens[i] {
			parts = append(parts, Marker{Open: true, Chain: o.chain}.String())
		}

		if len(parts) == 0 {
			columns[i] = AbsentValue
		} else {
			columns[i] = strings.Join(parts, "|")
		}
	}
	return columns
}
