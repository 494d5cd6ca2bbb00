package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed marks every deviation from the manifest wire format. All
// parse errors wrap it so callers can classify them as validation errors.
var ErrMalformed = errors.New("not a valid chunk manifest")

const workInProgressFileSuffix = ".wip"

const (
	chunkSizeField = "CHUNK_MiB"
	totalSizeField = "TOTAL"
	algorithmField = "SUM"
)

// Write emits the manifest in its wire format: a three-line header
// followed by one "<hex digest> <offset>" line per chunk in index order.
func (m *Manifest) Write(w io.Writer) error {
	buffered := bufio.NewWriter(w)
	fmt.Fprintf(buffered, "%s %d\n", chunkSizeField, m.ChunkMiB)
	fmt.Fprintf(buffered, "%s %d\n", totalSizeField, m.TotalBytes)
	fmt.Fprintf(buffered, "%s %s\n", algorithmField, m.Algorithm)
	for _, entry := range m.Entries {
		fmt.Fprintf(buffered, "%s %d\n", entry.Digest, entry.Offset)
	}
	return buffered.Flush()
}

// Save overwrites the manifest file at the given path wholesale. The
// content is staged in a temporary working file and moved into place so
// that a crash never leaves a half-written manifest behind.
func (m *Manifest) Save(path string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("saving manifest failed: %w", err)
		}
	}()

	tempPath := path + workInProgressFileSuffix
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	if err = m.Write(file); err != nil {
		file.Close()
		return
	}
	if err = file.Close(); err != nil {
		return
	}
	if err = os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replacing manifest (%s) with working copy (%s) failed: %w", path, tempPath, err)
	}
	return nil
}

// Parse reads a manifest and validates it completely before returning:
// all three header fields, digest syntax and length consistency, offsets
// forming the sequence 0..n-1, and the entry count implied by the header.
// A trailing newline is optional.
func Parse(r io.Reader) (*Manifest, error) {
	scanner := bufio.NewScanner(r)
	nextLine := func(description string) (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("%w: %s missing", ErrMalformed, description)
		}
		return scanner.Text(), nil
	}
	headerValue := func(field string) (int64, error) {
		line, err := nextLine(field + " header line")
		if err != nil {
			return 0, err
		}
		value, found := strings.CutPrefix(line, field+" ")
		if !found {
			return 0, fmt.Errorf("%w: expected %q header, got %q", ErrMalformed, field, line)
		}
		number, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad %s value %q", ErrMalformed, field, value)
		}
		return number, nil
	}

	m := &Manifest{}
	var err error
	if m.ChunkMiB, err = headerValue(chunkSizeField); err != nil {
		return nil, err
	}
	if m.ChunkMiB <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrMalformed, m.ChunkMiB)
	}
	if m.TotalBytes, err = headerValue(totalSizeField); err != nil {
		return nil, err
	}
	if m.TotalBytes < 0 {
		return nil, fmt.Errorf("%w: total size must not be negative, got %d", ErrMalformed, m.TotalBytes)
	}
	algorithmLine, err := nextLine(algorithmField + " header line")
	if err != nil {
		return nil, err
	}
	m.Algorithm, _ = strings.CutPrefix(algorithmLine, algorithmField+" ")
	if m.Algorithm == algorithmLine || m.Algorithm == "" || strings.ContainsAny(m.Algorithm, " \t") {
		return nil, fmt.Errorf("%w: expected %q header, got %q", ErrMalformed, algorithmField, algorithmLine)
	}

	layout, err := m.Layout()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	expectedEntries := layout.Count()

	digestLength := 0
	for scanner.Scan() {
		line := scanner.Text()
		digest, offsetText, found := strings.Cut(line, " ")
		if !found {
			return nil, fmt.Errorf("%w: bad entry line %q", ErrMalformed, line)
		}
		if !isHexDigest(digest) {
			return nil, fmt.Errorf("%w: bad digest %q", ErrMalformed, digest)
		}
		if digestLength == 0 {
			digestLength = len(digest)
		} else if len(digest) != digestLength {
			return nil, fmt.Errorf("%w: digest length varies (%d vs %d hex characters)", ErrMalformed, len(digest), digestLength)
		}
		offset, err := strconv.ParseInt(offsetText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad offset %q", ErrMalformed, offsetText)
		}
		if offset != int64(len(m.Entries)) {
			return nil, fmt.Errorf("%w: offset %d out of order, expected %d", ErrMalformed, offset, len(m.Entries))
		}
		m.Entries = append(m.Entries, Entry{Digest: digest, Offset: offset})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if int64(len(m.Entries)) != expectedEntries {
		return nil, fmt.Errorf("%w: %d entries but header sizes demand %d", ErrMalformed, len(m.Entries), expectedEntries)
	}
	return m, nil
}

// Load reads and validates the manifest file at the given path.
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest failed: %w", err)
	}
	defer file.Close()
	m, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("manifest %s unusable: %w", path, err)
	}
	return m, nil
}

func isHexDigest(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
