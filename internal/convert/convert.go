// Package convert orchestrates the conversion pipeline: detect or
// resolve the input format, decode the input into a collection, and
// encode the collection with the requested encoder. Encoded results
// can be cached content-addressed by input fingerprint and options.
package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/forTEXT/catma-go/core/cas"
	"github.com/forTEXT/catma-go/core/catma"
	lines "github.com/forTEXT/catma-go/core/conll"
	cerrors "github.com/forTEXT/catma-go/core/errors"
	"github.com/forTEXT/catma-go/internal/fileutil"
	"github.com/forTEXT/catma-go/internal/formats"
	"github.com/forTEXT/catma-go/internal/logging"
	"github.com/forTEXT/catma-go/internal/validation"

	_ "github.com/forTEXT/catma-go/internal/formats/conll"
	_ "github.com/forTEXT/catma-go/internal/formats/hotcoref"
	_ "github.com/forTEXT/catma-go/internal/formats/tei"
)

// DefaultEncoder is the encoder used when Options.Encoder is empty.
const DefaultEncoder = "tei"

// Attribute names recording the input fingerprint on the collection.
const (
	AttrSourceSHA256 = "source_sha256"
	AttrSourceBlake3 = "source_blake3"
)

// Options configures a single conversion.
type Options struct {
	// Format is the input format id. Empty means auto detection.
	Format string
	// Encoder is the output encoder id. Empty means DefaultEncoder.
	Encoder string

	Author     string
	Title      string
	SourceText string

	SkipBadSentences bool
}

// Result is the outcome of a conversion.
type Result struct {
	// Format is the input format that was used.
	Format string
	// Encoder is the encoder that produced Data.
	Encoder string
	// Collection is the decoded collection. It is nil when Data was
	// served from the cache.
	Collection *catma.Collection
	// Data is the encoded output.
	Data []byte
	// Fingerprint identifies the input content.
	Fingerprint cas.Fingerprint
	// Cached reports whether Data came from the cache.
	Cached bool
	// Skipped is the number of sentences dropped under
	// Options.SkipBadSentences.
	Skipped  int
	Duration time.Duration
}

// Converter runs conversions. The zero value is usable; set Cache to
// reuse encoded results for repeated inputs.
type Converter struct {
	Cache *cas.Cache
}

// Convert decodes data in the given or detected format and encodes it
// with the requested encoder. filename is only used for format
// detection and logging.
func (c *Converter) Convert(filename string, data []byte, opts Options) (*Result, error) {
	start := time.Now()

	if err := validation.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}

	formatID, err := resolveFormat(filename, data, opts.Format)
	if err != nil {
		return nil, err
	}
	encoderID := opts.Encoder
	if encoderID == "" {
		encoderID = DefaultEncoder
	}
	encoder, err := formats.GetEncoder(encoderID)
	if err != nil {
		return nil, err
	}

	fp := cas.ComputeFingerprint(data)
	key := cacheKey(data, formatID, encoderID, opts)

	if c.Cache != nil {
		if cached, err := c.Cache.Get(key); err == nil {
			logging.Conversion(formatID, encoderID, filename, 0, time.Since(start), "cached", true)
			return &Result{
				Format:      formatID,
				Encoder:     encoderID,
				Data:        cached,
				Fingerprint: fp,
				Cached:      true,
				Duration:    time.Since(start),
			}, nil
		}
	}

	handler, err := formats.Get(formatID)
	if err != nil {
		return nil, err
	}
	col, err := handler.Decode(data, formats.DecodeOptions{
		Filename:         filename,
		Author:           opts.Author,
		Title:            opts.Title,
		SourceText:       opts.SourceText,
		SkipBadSentences: opts.SkipBadSentences,
	})
	if err != nil {
		return nil, err
	}
	skipped := 0
	if v, ok := col.Attribute(formats.AttrSkippedSentences); ok {
		skipped, _ = strconv.Atoi(v)
	}
	col.SetAttribute(AttrSourceSHA256, fp.SHA256)
	col.SetAttribute(AttrSourceBlake3, fp.BLAKE3)

	encoded, err := encoder.Encode(col)
	if err != nil {
		return nil, err
	}

	if c.Cache != nil {
		if err := c.Cache.Put(key, encoded); err != nil {
			logging.Warn("cache write failed", "error", err)
		}
	}

	duration := time.Since(start)
	logging.Conversion(formatID, encoderID, filename, len(col.Annotations), duration, "skipped", skipped)

	return &Result{
		Format:      formatID,
		Encoder:     encoderID,
		Collection:  col,
		Data:        encoded,
		Fingerprint: fp,
		Skipped:     skipped,
		Duration:    duration,
	}, nil
}

// ConvertFile reads path, transparently decompressing .gz and .xz
// inputs, and converts its content. A non-empty opts.SourceText is
// treated as a path to the annotated source text.
func (c *Converter) ConvertFile(path string, opts Options) (*Result, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := fileutil.ReadInput(path)
	if err != nil {
		return nil, err
	}

	if opts.SourceText != "" {
		text, err := fileutil.ReadInput(opts.SourceText)
		if err != nil {
			return nil, err
		}
		opts.SourceText = lines.RemoveBOM(string(text))
	}
	if opts.Title == "" {
		opts.Title = fileutil.BaseName(path)
	}

	return c.Convert(path, data, opts)
}

// resolveFormat returns the explicit format id or falls back to
// content detection.
func resolveFormat(filename string, data []byte, explicit string) (string, error) {
	if explicit != "" {
		if _, err := formats.Get(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}
	result := formats.DetectFormat(filename, data)
	if result == nil || !result.Detected {
		reason := "content matches no registered format"
		if result != nil && result.Reason != "" {
			reason = result.Reason
		}
		return "", cerrors.NewUnsupported("format detection", reason+": "+filename)
	}
	return result.Format, nil
}

// cacheKey derives the cache address from the input content and every
// option that influences the encoded output.
func cacheKey(data []byte, formatID, encoderID string, opts Options) string {
	meta, _ := json.Marshal(struct {
		Format  string `json:"format"`
		Encoder string `json:"encoder"`
		Author  string `json:"author"`
		Title   string `json:"title"`
		Source  string `json:"source"`
		Skip    bool   `json:"skip"`
	}{formatID, encoderID, opts.Author, opts.Title, opts.SourceText, opts.SkipBadSentences})

	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write(meta)
	return hex.EncodeToString(h.Sum(nil))
}

// Detect reports the detection result for the given input.
func Detect(filename string, data []byte) *formats.DetectResult {
	return formats.DetectFormat(filename, data)
}

// Formats lists the registered input format ids.
func Formats() []string {
	return formats.List()
}

// Encoders lists the registered encoder ids.
func Encoders() []string {
	return formats.ListEncoders()
}
