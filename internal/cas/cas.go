// Package cas computes BLAKE3 content digests of patches and run settings.
package cas

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"lukechampine.com/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// Sum returns the BLAKE3 digest of data.
func Sum(data []byte) []byte {
	h := blake3.Sum256(data)
	return h[:]
}

// SumHex returns the hex encoded BLAKE3 digest of data.
func SumHex(data []byte) string {
	return hex.EncodeToString(Sum(data))
}

// NewHasher returns a streaming BLAKE3 hasher with Size byte output.
func NewHasher() *blake3.Hasher {
	return blake3.New(Size, nil)
}

// PatchDigest identifies the diff of one file. The path takes part so that
// identical diffs of different files stay apart.
func PatchDigest(path, diff string) string {
	h := NewHasher()
	io.WriteString(h, "patch\n")
	io.WriteString(h, path)
	h.Write([]byte{0})
	io.WriteString(h, diff)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalJSON encodes v as JSON with object keys in sorted order at every
// level.
func CanonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// Struct fields keep their declaration order, generic maps do not.
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// ObjectDigest returns blake3(kind + "\n" + canonicalJSON(v)) in hex.
func ObjectDigest(kind string, v any) (string, error) {
	payload, err := CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", kind, err)
	}
	return SumHex(append([]byte(kind+"\n"), payload...)), nil
}
