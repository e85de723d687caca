// Package base provides shared functionality for format handlers:
// character offset resolution against the source text and common
// detection logic.
package base

import (
	"strings"
	"unicode/utf8"

	"github.com/forTEXT/catma-go/core/catma"
	cerrors "github.com/forTEXT/catma-go/core/errors"
	"github.com/forTEXT/catma-go/internal/formats"
	"github.com/forTEXT/catma-go/internal/logging"
)

// Common annotation property names shared by the token handlers.
const (
	PropPartNo     = "partno"
	PropDocumentID = "documentid"
	PropWordNo     = "wordno"
	PropPOS        = "pos"
	PropParseBit   = "parsebit"
	PropSentenceNo = "sentenceno"
	PropLemma      = "lemma"
)

// TextIndex resolves token words to character ranges. With a source
// text it scans forward for each word; without one it reconstructs the
// text word by word with single-space joins. All offsets are rune
// offsets, matching the character ranges of the annotation model.
type TextIndex struct {
	source  string
	rebuilt []string
	bytePos int
	runePos int
}

// NewTextIndex creates an index over the given source text. An empty
// source switches to reconstruction mode.
func NewTextIndex(source string) *TextIndex {
	return &TextIndex{source: source}
}

// TokenRange returns the character range of the next occurrence of
// word. In reconstruction mode the word is appended to the rebuilt
// text instead. A word missing from the source yields a range at the
// current position.
func (ti *TextIndex) TokenRange(word string) catma.Range {
	wordLen := utf8.RuneCountInString(word)

	if ti.source != "" {
		rel := strings.Index(ti.source[ti.bytePos:], word)
		if rel < 0 {
			logging.Warn("word not found in source text, falling back to current position",
				"word", word, "position", ti.runePos)
			return catma.Range{Start: ti.runePos, End: ti.runePos + wordLen}
		}
		start := ti.runePos + utf8.RuneCountInString(ti.source[ti.bytePos:ti.bytePos+rel])
		end := start + wordLen
		ti.bytePos += rel + len(word)
		ti.runePos = end
		return catma.Range{Start: start, End: end}
	}

	if len(ti.rebuilt) > 0 {
		ti.runePos++ // space separator
	}
	start := ti.runePos
	ti.rebuilt = append(ti.rebuilt, word)
	end := start + wordLen
	ti.runePos = end
	return catma.Range{Start: start, End: end}
}

// Pos returns the current character position.
func (ti *TextIndex) Pos() int {
	return ti.runePos
}

// Text returns the source text, or the reconstructed text in
// reconstruction mode.
func (ti *TextIndex) Text() string {
	if ti.source != "" {
		return ti.source
	}
	return strings.Join(ti.rebuilt, " ")
}

// SentenceOf returns the sentence index carried by a parse error, or
// -1 when the error has no sentence context.
func SentenceOf(err error) int {
	var marker *cerrors.MalformedMarkerError
	if cerrors.As(err, &marker) {
		return marker.Sentence
	}
	var unmatched *cerrors.UnmatchedSpanMarkerError
	if cerrors.As(err, &unmatched) {
		return unmatched.Sentence
	}
	var row *cerrors.MalformedRowError
	if cerrors.As(err, &row) {
		return row.Sentence
	}
	return -1
}

// LogSkipped warns about every sentence dropped under the skip policy
// and returns the number of distinct sentences affected.
func LogSkipped(input string, errs []error) int {
	sentences := make(map[int]bool)
	for _, err := range errs {
		sentence := SentenceOf(err)
		logging.SentenceSkipped(input, sentence, err)
		sentences[sentence] = true
	}
	return len(sentences)
}

// DetectConfig drives extension and content based format detection.
type DetectConfig struct {
	// Extensions are accepted file extensions including the dot.
	Extensions []string

	// ContentMarkers must all appear in the content for a positive
	// content match.
	ContentMarkers []string

	// FormatName is reported in the result.
	FormatName string

	// Validator optionally runs extra content checks.
	Validator func(filename string, data []byte) (bool, string)
}

// DetectFile performs extension plus content marker detection.
func DetectFile(filename string, data []byte, config DetectConfig) *formats.DetectResult {
	ext := strings.ToLower(extensionOf(filename))
	extensionMatch := false
	for _, validExt := range config.Extensions {
		if ext == strings.ToLower(validExt) {
			extensionMatch = true
			break
		}
	}

	if len(config.ContentMarkers) > 0 && len(data) > 0 {
		content := string(data)
		allFound := true
		for _, marker := range config.ContentMarkers {
			if !strings.Contains(content, marker) {
				allFound = false
				break
			}
		}
		if allFound {
			return &formats.DetectResult{
				Detected: true,
				Format:   config.FormatName,
				Reason:   config.FormatName + " markers detected",
			}
		}
	}

	if config.Validator != nil && len(data) > 0 {
		if ok, reason := config.Validator(filename, data); ok {
			return &formats.DetectResult{
				Detected: true,
				Format:   config.FormatName,
				Reason:   reason,
			}
		}
	}

	if extensionMatch {
		return &formats.DetectResult{
			Detected: true,
			Format:   config.FormatName,
			Reason:   config.FormatName + " file extension detected",
		}
	}

	return &formats.DetectResult{
		Detected: false,
		Reason:   "not a " + config.FormatName + " file",
	}
}

func extensionOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}
