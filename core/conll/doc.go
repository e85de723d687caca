// Package conll provides parsing for column-oriented annotation files in
// the CoNLL-2012 convention: one token per line, columns separated by
// whitespace or tabs, blank lines separating sentences, comment lines
// starting with "#".
//
// # Line parsing
//
// LineParser partitions the input into sentence blocks and feeds token
// rows to one or more TokenHandler implementations. Handlers receive the
// split columns together with the one-based line number and the zero-based
// sentence index.
//
// # Span markers
//
// Coreference-style columns carry bracket-coded span markers: "(N" opens
// a span for chain N, "N)" closes the innermost open span of chain N, and
// "(N)" marks a single-token span. Multiple markers on one token are
// joined by "|", an absent value is "-". ParseMarkerColumn parses one such
// column.
//
// # Span extraction
//
// ExtractSpans resolves the markers of a whole document into a normalized
// SpanSet of (start, end, chain) triples over token indices. Matching is
// LIFO per chain: the innermost-opened span closes first. Offsets are
// sentence-local or document-global depending on Options.OffsetBase.
// Extraction is a pure function of its input: it either completes
// deterministically or fails with a structured parse error carrying
// sentence and line context.
package conll
