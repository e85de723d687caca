// Package cas provides content hashing for source texts and emitted
// collections, plus a small content-addressed cache for conversion
// results. SHA-256 is the primary hash, BLAKE3 the secondary.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies a byte sequence by its content.
type Fingerprint struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
	Length int64  `json:"length"`
}

// ComputeFingerprint hashes data with both digests.
func ComputeFingerprint(data []byte) Fingerprint {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return Fingerprint{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
		Length: int64(len(data)),
	}
}

// FingerprintReader hashes a stream with both digests without buffering
// the whole content.
func FingerprintReader(r io.Reader) (Fingerprint, error) {
	sh := sha256.New()
	bh := blake3.New()
	n, err := io.Copy(io.MultiWriter(sh, bh), r)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hashing stream: %w", err)
	}
	return Fingerprint{
		SHA256: hex.EncodeToString(sh.Sum(nil)),
		BLAKE3: hex.EncodeToString(bh.Sum(nil)),
		Length: n,
	}, nil
}

// Hash computes the SHA-256 hash of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3 hash of data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String returns the primary hash in algo:hex form.
func (f Fingerprint) String() string {
	return "sha256:" + f.SHA256
}

// Equal reports whether two fingerprints identify the same content.
// The secondary hash is compared only when both sides carry one.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.SHA256 != other.SHA256 || f.Length != other.Length {
		return false
	}
	if f.BLAKE3 != "" && other.BLAKE3 != "" && f.BLAKE3 != other.BLAKE3 {
		return false
	}
	return true
}
