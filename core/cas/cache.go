package cas

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrNotCached is returned when no entry with the given hash exists.
var ErrNotCached = errors.New("entry not cached")

// ErrInvalidHash is returned when a hash string is not a lowercase
// SHA-256 hex string.
var ErrInvalidHash = errors.New("invalid hash format")

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Cache is a content-addressed cache of conversion results keyed by
// the SHA-256 hash of the source input. Identical inputs convert to
// identical outputs, so a hit skips the conversion entirely.
type Cache struct {
	root string
}

// NewCache opens a cache rooted at the given directory, creating the
// layout if needed.
func NewCache(root string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(root, "sha256"), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{root: root}, nil
}

// Put stores a conversion result under the hash of its source input
// and returns that hash. Storing under an existing hash is a no-op.
func (c *Cache) Put(sourceHash string, result []byte) error {
	if !sha256Pattern.MatchString(sourceHash) {
		return ErrInvalidHash
	}

	path := c.pathFor(sourceHash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache prefix: %w", err)
	}

	// temp file plus rename keeps concurrent readers off partial writes
	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(result); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("placing cache entry: %w", err)
	}
	return nil
}

// Get retrieves the cached result for the given source hash. Returns
// ErrNotCached when the entry does not exist.
func (c *Cache) Get(sourceHash string) ([]byte, error) {
	if !sha256Pattern.MatchString(sourceHash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(c.pathFor(sourceHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	return data, nil
}

// Has reports whether an entry for the given source hash exists.
func (c *Cache) Has(sourceHash string) bool {
	if !sha256Pattern.MatchString(sourceHash) {
		return false
	}
	_, err := os.Stat(c.pathFor(sourceHash))
	return err == nil
}

func (c *Cache) pathFor(hash string) string {
	return filepath.Join(c.root, "sha256", hash[:2], hash)
}
