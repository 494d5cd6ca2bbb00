package chunk

import "fmt"

// MiB is the unit chunk sizes are expressed in throughout the tool, the
// manifest header, and the repair command.
const MiB int64 = 1 << 20

// Layout describes how a file of known total size is partitioned into
// fixed-size chunks. All chunks have length ChunkBytes except possibly the
// last one, which covers the remainder. A file whose size is an exact
// multiple of the chunk size has no short trailing chunk.
type Layout struct {
	ChunkBytes int64
	TotalBytes int64
}

// NewLayout builds a layout from a chunk size given in MiB units.
// The chunk size must be strictly positive, the total size non-negative.
func NewLayout(chunkMiB int64, totalBytes int64) (Layout, error) {
	if chunkMiB <= 0 {
		return Layout{}, fmt.Errorf("chunk size must be positive, got %d MiB", chunkMiB)
	}
	if totalBytes < 0 {
		return Layout{}, fmt.Errorf("total size must not be negative, got %d bytes", totalBytes)
	}
	return Layout{ChunkBytes: chunkMiB * MiB, TotalBytes: totalBytes}, nil
}

// Count returns the number of chunks, i.e. ceil(total/chunkBytes).
// It is zero exactly when the total size is zero.
func (l Layout) Count() int64 {
	return (l.TotalBytes + l.ChunkBytes - 1) / l.ChunkBytes
}

// ByteOffset returns the byte position at which chunk i starts.
func (l Layout) ByteOffset(i int64) int64 {
	return i * l.ChunkBytes
}

// Length returns the byte length of chunk i, shorter than ChunkBytes only
// for a trailing partial chunk.
func (l Layout) Length(i int64) int64 {
	remaining := l.TotalBytes - l.ByteOffset(i)
	if remaining < l.ChunkBytes {
		return remaining
	}
	return l.ChunkBytes
}
