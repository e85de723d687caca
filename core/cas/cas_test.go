package cas

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestComputeFingerprint(t *testing.T) {
	data := []byte("Der Hund lief schnell.")
	fp := ComputeFingerprint(data)

	if fp.SHA256 != Hash(data) {
		t.Errorf("SHA256 = %q, want %q", fp.SHA256, Hash(data))
	}
	if fp.BLAKE3 != Blake3Hash(data) {
		t.Errorf("BLAKE3 = %q, want %q", fp.BLAKE3, Blake3Hash(data))
	}
	if fp.Length != int64(len(data)) {
		t.Errorf("Length = %d, want %d", fp.Length, len(data))
	}
	if len(fp.SHA256) != 64 || len(fp.BLAKE3) != 64 {
		t.Errorf("hash lengths = %d, %d, want 64 each", len(fp.SHA256), len(fp.BLAKE3))
	}
}

func TestHashKnownValue(t *testing.T) {
	// sha256 of the empty string
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Hash(nil); got != want {
		t.Errorf("Hash(nil) = %q, want %q", got, want)
	}
}

func TestFingerprintReader(t *testing.T) {
	data := "some longer annotation source text\nwith multiple lines\n"
	fp, err := FingerprintReader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("FingerprintReader failed: %v", err)
	}
	want := ComputeFingerprint([]byte(data))
	if !fp.Equal(want) {
		t.Errorf("stream fingerprint %+v != buffer fingerprint %+v", fp, want)
	}
}

func TestFingerprintEqual(t *testing.T) {
	a := ComputeFingerprint([]byte("a"))
	b := ComputeFingerprint([]byte("b"))
	if a.Equal(b) {
		t.Error("distinct contents compare equal")
	}
	if !a.Equal(a) {
		t.Error("fingerprint does not equal itself")
	}

	// missing secondary hash on one side still matches
	partial := Fingerprint{SHA256: a.SHA256, Length: a.Length}
	if !a.Equal(partial) {
		t.Error("fingerprint without BLAKE3 should match on primary hash")
	}
}

func TestFingerprintString(t *testing.T) {
	fp := ComputeFingerprint([]byte("x"))
	if !strings.HasPrefix(fp.String(), "sha256:") {
		t.Errorf("String() = %q, want sha256: prefix", fp.String())
	}
}

func TestCachePutGet(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	source := []byte("source document")
	result := []byte("<TEI/>")
	hash := Hash(source)

	if cache.Has(hash) {
		t.Error("empty cache reports a hit")
	}
	if _, err := cache.Get(hash); !errors.Is(err, ErrNotCached) {
		t.Errorf("Get on empty cache = %v, want ErrNotCached", err)
	}

	if err := cache.Put(hash, result); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !cache.Has(hash) {
		t.Error("cache misses a stored entry")
	}

	got, err := cache.Get(hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, result) {
		t.Errorf("Get = %q, want %q", got, result)
	}

	// storing again under the same hash is a no-op
	if err := cache.Put(hash, []byte("other")); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	got, _ = cache.Get(hash)
	if !bytes.Equal(got, result) {
		t.Error("second Put overwrote the existing entry")
	}
}

func TestCacheInvalidHash(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	for _, hash := range []string{"", "zz", strings.Repeat("A", 64), strings.Repeat("g", 64)} {
		if err := cache.Put(hash, []byte("x")); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("Put(%q) = %v, want ErrInvalidHash", hash, err)
		}
		if _, err := cache.Get(hash); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("Get(%q) = %v, want ErrInvalidHash", hash, err)
		}
		if cache.Has(hash) {
			t.Errorf("Has(%q) = true", hash)
		}
	}
}
