//Package manifest holds the persisted chunk-digest record of one file
//state and its line-oriented wire format. A manifest is written wholesale
//by the damaged side, carried to the reference side, and never patched.
package manifest

import (
	"fmt"
	"io"

	"github.com/n2code/chunkmend/internal/chunk"
)

// Entry is the digest of one chunk. Offset counts in chunk-size units from
// the start of the file and doubles as the entry's index.
type Entry struct {
	Digest string
	Offset int64
}

// Manifest is the full-file digest record of one file state.
type Manifest struct {
	ChunkMiB   int64
	TotalBytes int64
	Algorithm  string
	Entries    []Entry
}

// Layout returns the chunk partitioning the manifest was computed with.
func (m *Manifest) Layout() (chunk.Layout, error) {
	return chunk.NewLayout(m.ChunkMiB, m.TotalBytes)
}

// Compute digests every chunk of the given source in index order and
// assembles the manifest. The source is read strictly forward, one chunk
// window at a time.
func Compute(source io.ReaderAt, chunkMiB int64, totalBytes int64, algo chunk.Algorithm) (*Manifest, error) {
	layout, err := chunk.NewLayout(chunkMiB, totalBytes)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		ChunkMiB:   chunkMiB,
		TotalBytes: totalBytes,
		Algorithm:  algo.Tag,
		Entries:    make([]Entry, 0, layout.Count()),
	}
	for i := int64(0); i < layout.Count(); i++ {
		digest, err := chunk.Digest(source, layout.ByteOffset(i), layout.Length(i), algo)
		if err != nil {
			return nil, fmt.Errorf("digesting chunk %d failed: %w", i, err)
		}
		m.Entries = append(m.Entries, Entry{Digest: digest, Offset: i})
	}
	return m, nil
}
