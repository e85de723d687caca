// Package formats holds the format handler registry. Each input
// format registers an embedded handler keyed by its format id; the CLI
// and the API resolve handlers through the registry and never link
// against a concrete format directly.
package formats

import (
	"sort"
	"sync"

	"github.com/forTEXT/catma-go/core/catma"
	cerrors "github.com/forTEXT/catma-go/core/errors"
)

// DetectResult reports whether a handler recognizes an input.
type DetectResult struct {
	Detected bool   `json:"detected"`
	Format   string `json:"format,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// AttrSkippedSentences is the collection attribute counting sentences
// dropped under DecodeOptions.SkipBadSentences.
const AttrSkippedSentences = "skipped_sentences"

// DecodeOptions configures how an input is decoded into a collection.
type DecodeOptions struct {
	// Filename names the input in log output.
	Filename string

	// Author is recorded as annotation author on generated tags.
	Author string

	// Title overrides the collection title.
	Title string

	// SourceText is the annotated source document. When empty, the
	// text is reconstructed from the token stream.
	SourceText string

	// SkipBadSentences drops sentences with unresolvable span markers
	// instead of aborting the conversion.
	SkipBadSentences bool
}

// Handler is an embedded format handler: detection plus decoding into
// the annotation model.
type Handler interface {
	// ID is the registry key, e.g. "hotcoref".
	ID() string

	// Detect checks whether the named content belongs to this format.
	Detect(filename string, data []byte) *DetectResult

	// Decode parses the input into an annotation collection.
	Decode(data []byte, opts DecodeOptions) (*catma.Collection, error)
}

// Encoder renders a collection into an output format.
type Encoder interface {
	ID() string
	Encode(col *catma.Collection) ([]byte, error)
}

var (
	mu       sync.RWMutex
	handlers = make(map[string]Handler)
	encoders = make(map[string]Encoder)
)

// Register adds a handler to the registry, replacing any handler with
// the same id.
func Register(h Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers[h.ID()] = h
}

// RegisterEncoder adds an encoder to the registry.
func RegisterEncoder(e Encoder) {
	mu.Lock()
	defer mu.Unlock()
	encoders[e.ID()] = e
}

// Get returns the handler for the given format id.
func Get(id string) (Handler, error) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := handlers[id]
	if !ok {
		return nil, cerrors.NewUnsupported("format", id)
	}
	return h, nil
}

// GetEncoder returns the encoder for the given format id.
func GetEncoder(id string) (Encoder, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := encoders[id]
	if !ok {
		return nil, cerrors.NewUnsupported("output format", id)
	}
	return e, nil
}

// List returns the registered handler ids in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListEncoders returns the registered encoder ids in sorted order.
func ListEncoders() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(encoders))
	for id := range encoders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DetectFormat runs detection across all registered handlers and
// returns the first match, in sorted handler order for determinism.
func DetectFormat(filename string, data []byte) *DetectResult {
	for _, id := range List() {
		h, err := Get(id)
		if err != nil {
			continue
		}
		if result := h.Detect(filename, data); result != nil && result.Detected {
			return result
		}
	}
	return &DetectResult{Detected: false, Reason: "no handler recognized the input"}
}

// clearRegistry resets the registry, for tests.
func clearRegistry() {
	mu.Lock()
	defer mu.Unlock()
	handlers = make(map[string]Handler)
	encoders = make(map[string]Encoder)
}
