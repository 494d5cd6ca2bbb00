package repair

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ErrArtifactMissing marks a requested chunk offset whose artifact file
// does not exist, as opposed to an unreadable one.
var ErrArtifactMissing = errors.New("chunk artifact not found")

// Injector writes chunk artifacts back into a damaged target file.
type Injector struct {
	//Dir is searched for artifact files, plain first, then compressed.
	Dir string
}

// Apply overwrites the chunk at the given offset of the target with the
// bytes of its artifact, leaving every byte outside the chunk window
// untouched. It returns the number of bytes written. Artifacts larger
// than the chunk window are rejected before anything is written beyond
// it. Re-applying the same artifact is idempotent.
func (inj Injector) Apply(target *os.File, chunkBytes int64, offset int64) (written int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("injecting chunk %d failed: %w", offset, err)
		}
	}()

	source, err := inj.openArtifact(offset)
	if err != nil {
		return 0, err
	}
	defer source.Close()

	window := io.NewOffsetWriter(target, offset*chunkBytes)
	written, err = io.Copy(window, io.LimitReader(source, chunkBytes))
	if err != nil {
		return written, err
	}
	//an artifact may legitimately be shorter than the chunk size (trailing
	//chunk) but never longer than the window it replaces
	var probe [1]byte
	if n, _ := source.Read(probe[:]); n > 0 {
		return written, fmt.Errorf("artifact exceeds the %d byte chunk window", chunkBytes)
	}
	return written, nil
}

// openArtifact locates the artifact for the given offset. A plain
// artifact takes precedence over a compressed one of the same offset.
func (inj Injector) openArtifact(offset int64) (io.ReadCloser, error) {
	plainPath := filepath.Join(inj.Dir, ArtifactName(offset))
	file, err := os.Open(plainPath)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	compressedPath := plainPath + compressedSuffix
	file, err = os.Open(compressedPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: neither %s nor %s exists in %s", ErrArtifactMissing, ArtifactName(offset), ArtifactName(offset)+compressedSuffix, inj.Dir)
	}
	if err != nil {
		return nil, err
	}
	decompressor, err := zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &decompressedArtifact{ReadCloser: decompressor.IOReadCloser(), file: file}, nil
}

type decompressedArtifact struct {
	io.ReadCloser
	file *os.File
}

func (d *decompressedArtifact) Close() error {
	d.ReadCloser.Close()
	return d.file.Close()
}

// Truncate shrinks the target file to exactly the given size, removing
// trailing garbage beyond the reference file's true length. Growing a
// file is not a repair action and is rejected.
func Truncate(target *os.File, size int64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("truncation to %d bytes failed: %w", size, err)
		}
	}()

	if size < 0 {
		return errors.New("negative size")
	}
	info, err := target.Stat()
	if err != nil {
		return
	}
	if size > info.Size() {
		return fmt.Errorf("file is only %d bytes, truncation never extends", info.Size())
	}
	return target.Truncate(size)
}
