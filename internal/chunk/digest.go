package chunk

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// DefaultAlgorithm is the digest used unless the operator selects another
// one. MD5 is kept as the default for compatibility with manifests written
// by earlier incarnations of the chunk-repair procedure.
const DefaultAlgorithm = "md5"

// Algorithm is one entry of the digest registry. The manifest records its
// Tag so that both sides of a repair detect a digest mismatch instead of
// comparing incompatible hex strings.
type Algorithm struct {
	Tag string
	New func() hash.Hash
}

// HexLength returns the length of the hex-encoded digest string.
func (a Algorithm) HexLength() int {
	return hex.EncodedLen(a.New().Size())
}

var algorithms = []Algorithm{
	{Tag: "md5", New: md5.New},
	{Tag: "sha256", New: sha256.New},
	{Tag: "blake3", New: func() hash.Hash { return blake3.New() }},
}

// AlgorithmByTag resolves a manifest/CLI algorithm tag.
func AlgorithmByTag(tag string) (Algorithm, error) {
	for _, algo := range algorithms {
		if algo.Tag == tag {
			return algo, nil
		}
	}
	return Algorithm{}, fmt.Errorf("unknown digest algorithm %q (supported: %s)", tag, AlgorithmTags())
}

// AlgorithmTags lists all supported tags for usage messages.
func AlgorithmTags() string {
	tags := ""
	for i, algo := range algorithms {
		if i > 0 {
			tags += ", "
		}
		tags += algo.Tag
	}
	return tags
}

// Digest hashes exactly length bytes starting at the given byte offset and
// returns the lowercase hex digest. The window is streamed through the
// hash, peak memory does not depend on the chunk size. A source that
// cannot deliver the full window is reported as an error because a short
// chunk read invalidates the whole comparison.
func Digest(source io.ReaderAt, byteOffset int64, length int64, algo Algorithm) (string, error) {
	hasher := algo.New()
	written, err := io.Copy(hasher, io.NewSectionReader(source, byteOffset, length))
	if err != nil {
		return "", fmt.Errorf("reading %d bytes at offset %d failed: %w", length, byteOffset, err)
	}
	if written != length {
		return "", fmt.Errorf("short read at offset %d: got %d of %d bytes", byteOffset, written, length)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
