package catma

import (
	"fmt"
	"sort"
)

// Range represents a segment of text by its start and end character offsets.
// Start is inclusive, End is exclusive. A Range with Start == End is a point.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IsPoint returns true if this range represents a single position.
func (r Range) IsPoint() bool {
	return r.Start == r.End
}

// Len returns the length of the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains returns true if the other range lies within this range.
func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// ContainsPoint returns true if the given point lies within the range,
// edges included.
func (r Range) ContainsPoint(point int) bool {
	return point >= r.Start && point <= r.End
}

// containsPointExclusive returns true if the given point lies strictly
// within the range, edges excluded.
func (r Range) containsPointExclusive(point int) bool {
	return point > r.Start && point < r.End
}

// isBefore returns true if the range ends before the given point.
func (r Range) isBefore(point int) bool {
	return r.End < point
}

// Overlap returns the overlapping range of this range and the other range.
// Ranges that merely touch at an edge do not overlap.
func (r Range) Overlap(other Range) (Range, bool) {
	if other.Start == r.End || r.Start == other.End {
		return Range{}, false
	}

	if r.ContainsPoint(other.Start) {
		if r.ContainsPoint(other.End) {
			return Range{Start: other.Start, End: other.End}, true
		}
		if r.isBefore(other.End) {
			return Range{Start: other.Start, End: r.End}, true
		}
	} else if !r.isBefore(other.Start) {
		if r.ContainsPoint(other.End) {
			return Range{Start: r.Start, End: other.End}, true
		}
		if r.isBefore(other.End) {
			return Range{Start: r.Start, End: r.End}, true
		}
	}

	return Range{}, false
}

// Overlaps returns true if this range and the other range overlap.
func (r Range) Overlaps(other Range) bool {
	_, ok := r.Overlap(other)
	return ok
}

// OverlappingRanges returns the subset of the given ranges that overlap
// this range, in input order.
func (r Range) OverlappingRanges(ranges []Range) []Range {
	var result []Range
	for _, other := range ranges {
		if r.Overlaps(other) {
			result = append(result, other)
		}
	}
	return result
}

// Disjoint returns the zero, one or two parts of this range that are not
// covered by the other range.
func (r Range) Disjoint(other Range) []Range {
	var result []Range
	if r.containsPointExclusive(other.Start) {
		result = append(result, Range{Start: r.Start, End: other.Start})
		if r.containsPointExclusive(other.End) {
			result = append(result, Range{Start: other.End, End: r.End})
		}
	} else if !r.isBefore(other.End) {
		result = append(result, Range{Start: other.End, End: r.End})
	}
	return result
}

// Compare orders ranges by start offset, then by end offset.
func (r Range) Compare(other Range) int {
	switch {
	case r.Start < other.Start:
		return -1
	case r.Start > other.Start:
		return 1
	case r.End < other.End:
		return -1
	case r.End > other.End:
		return 1
	}
	return 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// SortRanges sorts the given ranges in place by start/end offsets.
func SortRanges(ranges []Range) {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Compare(ranges[j]) < 0
	})
}

// MergeRanges combines all contiguous ranges of the given sorted slice
// into single ranges.
func MergeRanges(sorted []Range) []Range {
	if len(sorted) == 0 {
		return nil
	}

	var result []Range
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if cur.End == r.Start {
			cur = Range{Start: cur.Start, End: r.End}
		} else {
			result = append(result, cur)
			cur = r
		}
	}
	result = append(result, cur)

	return result
}
