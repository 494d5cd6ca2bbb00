package repair

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/n2code/chunkmend/internal/chunk"
)

const artifactPrefix = "BLOCK_"
const compressedSuffix = ".zst"

// ArtifactName returns the filename carrying the chunk at the given
// offset, e.g. BLOCK_3. The injector looks artifacts up by this name.
func ArtifactName(offset int64) string {
	return artifactPrefix + strconv.FormatInt(offset, 10)
}

// Extractor copies mismatched chunks out of the reference file into
// standalone artifact files, one per chunk offset.
type Extractor struct {
	//Dir receives the artifact files.
	Dir string
	//Compress wraps each artifact in a zstd stream (suffix .zst) to make
	//the transfer back to the damaged site cheaper.
	Compress bool
}

// Extract copies the chunk at the given offset from the source into its
// artifact file and returns the artifact's path. A pre-existing artifact
// of the same name is overwritten, so re-running an extraction is safe.
func (e Extractor) Extract(source io.ReaderAt, layout chunk.Layout, offset int64) (path string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("extracting chunk %d failed: %w", offset, err)
		}
	}()

	name := ArtifactName(offset)
	if e.Compress {
		name += compressedSuffix
	}
	path = filepath.Join(e.Dir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	var sink io.Writer = file
	var compressor *zstd.Encoder
	if e.Compress {
		compressor, err = zstd.NewWriter(file)
		if err != nil {
			return "", err
		}
		sink = compressor
	}

	window := io.NewSectionReader(source, layout.ByteOffset(offset), layout.Length(offset))
	copied, err := io.Copy(sink, window)
	if err != nil {
		return "", err
	}
	if copied != layout.Length(offset) {
		return "", fmt.Errorf("short read: got %d of %d bytes", copied, layout.Length(offset))
	}
	if compressor != nil {
		if err := compressor.Close(); err != nil {
			return "", err
		}
	}
	return path, nil
}
