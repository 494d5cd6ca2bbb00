package repair

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/n2code/chunkmend/internal/chunk"
)

const testChunkBytes = 1024

func testLayout(total int64) chunk.Layout {
	return chunk.Layout{ChunkBytes: testChunkBytes, TotalBytes: total}
}

func patchFixture(t *testing.T) (dir string, reference []byte, damaged []byte, damagedPath string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "chunkmend-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	//three full chunks plus a short trailing one
	reference = bytes.Repeat([]byte("R"), 3*testChunkBytes+100)
	damaged = append([]byte(nil), reference...)
	for i := 0; i < testChunkBytes; i++ {
		damaged[testChunkBytes+i] = 'X' //corrupt chunk 1 completely
	}
	damagedPath = filepath.Join(dir, "damaged.bin")
	if err := os.WriteFile(damagedPath, damaged, 0644); err != nil {
		t.Fatal(err)
	}
	return
}

func TestExtractAndInjectRestoresOnlyTheChunkWindow(t *testing.T) {
	dir, reference, damaged, damagedPath := patchFixture(t)

	extractor := Extractor{Dir: dir}
	artifactPath, err := extractor.Extract(bytes.NewReader(reference), testLayout(int64(len(reference))), 1)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(artifactPath) != "BLOCK_1" {
		t.Fatalf("artifact named %s", filepath.Base(artifactPath))
	}
	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(artifact, reference[testChunkBytes:2*testChunkBytes]) {
		t.Fatal("artifact does not carry the chunk's bytes")
	}

	target, err := os.OpenFile(damagedPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	written, err := Injector{Dir: dir}.Apply(target, testChunkBytes, 1)
	if err != nil {
		t.Fatal(err)
	}
	if written != testChunkBytes {
		t.Fatalf("wrote %d bytes instead of %d", written, testChunkBytes)
	}
	if err := target.Close(); err != nil {
		t.Fatal(err)
	}

	repaired, err := os.ReadFile(damagedPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(repaired, reference) {
		t.Fatal("repaired file does not match the reference")
	}
	//bytes outside the injected window must be the damaged file's originals
	if !bytes.Equal(repaired[:testChunkBytes], damaged[:testChunkBytes]) || !bytes.Equal(repaired[2*testChunkBytes:], damaged[2*testChunkBytes:]) {
		t.Fatal("injection touched bytes outside the chunk window")
	}
}

func TestInjectionIsIdempotent(t *testing.T) {
	dir, reference, _, damagedPath := patchFixture(t)

	if _, err := (Extractor{Dir: dir}).Extract(bytes.NewReader(reference), testLayout(int64(len(reference))), 1); err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 2; run++ {
		target, err := os.OpenFile(damagedPath, os.O_RDWR, 0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := (Injector{Dir: dir}).Apply(target, testChunkBytes, 1); err != nil {
			t.Fatalf("run %d: %s", run, err)
		}
		target.Close()
	}
	repaired, _ := os.ReadFile(damagedPath)
	if !bytes.Equal(repaired, reference) {
		t.Fatal("re-running the injection changed the result")
	}
}

func TestCompressedArtifactRoundTrip(t *testing.T) {
	dir, reference, _, damagedPath := patchFixture(t)

	artifactPath, err := (Extractor{Dir: dir, Compress: true}).Extract(bytes.NewReader(reference), testLayout(int64(len(reference))), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(artifactPath, "BLOCK_1.zst") {
		t.Fatalf("compressed artifact named %s", artifactPath)
	}

	target, err := os.OpenFile(damagedPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()
	written, err := Injector{Dir: dir}.Apply(target, testChunkBytes, 1)
	if err != nil {
		t.Fatal(err)
	}
	if written != testChunkBytes {
		t.Fatalf("decompressed injection wrote %d bytes", written)
	}
	restored := make([]byte, testChunkBytes)
	if _, err := target.ReadAt(restored, testChunkBytes); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, reference[testChunkBytes:2*testChunkBytes]) {
		t.Fatal("compressed round trip corrupted the chunk")
	}
}

func TestShortTrailingChunkArtifact(t *testing.T) {
	dir, reference, _, damagedPath := patchFixture(t)
	layout := testLayout(int64(len(reference)))

	artifactPath, err := (Extractor{Dir: dir}).Extract(bytes.NewReader(reference), layout, 3)
	if err != nil {
		t.Fatal(err)
	}
	artifact, _ := os.ReadFile(artifactPath)
	if len(artifact) != 100 {
		t.Fatalf("trailing artifact has %d bytes, expected the 100 byte remainder", len(artifact))
	}

	target, err := os.OpenFile(damagedPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()
	written, err := Injector{Dir: dir}.Apply(target, testChunkBytes, 3)
	if err != nil {
		t.Fatal(err)
	}
	if written != 100 {
		t.Fatalf("short trailing injection wrote %d bytes", written)
	}
}

func TestMissingArtifactIsReportedDistinctly(t *testing.T) {
	dir, _, _, damagedPath := patchFixture(t)
	target, err := os.OpenFile(damagedPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()

	_, err = Injector{Dir: dir}.Apply(target, testChunkBytes, 7)
	if err == nil {
		t.Fatal("missing artifact accepted")
	}
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("missing artifact not classified: %s", err)
	}
	if !strings.Contains(err.Error(), "BLOCK_7") {
		t.Fatalf("error does not name the artifact: %s", err)
	}
}

func TestOversizedArtifactIsRejected(t *testing.T) {
	dir, _, _, damagedPath := patchFixture(t)
	if err := os.WriteFile(filepath.Join(dir, ArtifactName(0)), bytes.Repeat([]byte("Z"), testChunkBytes+1), 0644); err != nil {
		t.Fatal(err)
	}
	target, err := os.OpenFile(damagedPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()

	if _, err := (Injector{Dir: dir}).Apply(target, testChunkBytes, 0); err == nil {
		t.Fatal("artifact larger than the chunk window accepted")
	}
}

func TestTruncateOnlyShrinks(t *testing.T) {
	_, _, damaged, damagedPath := patchFixture(t)
	target, err := os.OpenFile(damagedPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()

	if err := Truncate(target, int64(len(damaged))+1); err == nil {
		t.Fatal("truncation extended the file")
	}
	if err := Truncate(target, -1); err == nil {
		t.Fatal("negative truncation size accepted")
	}
	if err := Truncate(target, int64(len(damaged))-100); err != nil {
		t.Fatal(err)
	}
	info, err := target.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(len(damaged))-100 {
		t.Fatalf("file is %d bytes after truncation", info.Size())
	}
}
