package output

import (
	"fmt"

	"github.com/disiqueira/gotree/v3"
)

// ChunkMapTree visualizes a manifest as one node per chunk below the file
// it describes.
type ChunkMapTree struct {
	tree gotree.Tree
}

func NewChunkMapTree(rootLabel string) ChunkMapTree {
	return ChunkMapTree{tree: gotree.New(rootLabel)}
}

// AddChunk appends the node for one chunk. An optional annotation (e.g. a
// diff verdict) is attached after the digest.
func (t ChunkMapTree) AddChunk(offset int64, firstByte int64, length int64, digest string, annotation string) {
	label := fmt.Sprintf("chunk %d @ byte %d (%s) %s", offset, firstByte, Filesize(length), digest)
	if annotation != "" {
		label += " " + annotation
	}
	t.tree.Add(label)
}

func (t ChunkMapTree) Render() string {
	return t.tree.Print()
}
