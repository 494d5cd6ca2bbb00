package chunkmend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/n2code/chunkmend/internal/chunk"
	"github.com/n2code/chunkmend/internal/manifest"
	"github.com/n2code/chunkmend/internal/output"
	"github.com/n2code/chunkmend/internal/repair"
)

func (c *chunkmend) WriteManifest(targetPath string) error {
	file, err := os.Open(targetPath)
	if err != nil {
		return newCommandError("manifest generation impossible", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return newCommandError("manifest generation impossible", err)
	}

	fmt.Fprintf(c.verboseOut, "Digesting %s in %d MiB chunks (%s)...\n", output.Filesize(info.Size()), c.chunkMiB, c.algorithm.Tag)
	m, err := manifest.Compute(file, c.chunkMiB, info.Size(), c.algorithm)
	if err != nil {
		return newCommandError("manifest generation failed", err)
	}

	manifestPath := c.manifestPathFor(targetPath)
	if err := m.Save(manifestPath); err != nil {
		return newCommandError("manifest generation failed", err)
	}
	m.Write(c.out) //the recording side gets to see exactly what was persisted
	fmt.Fprintf(c.extraOut, "Recorded %d %s of %s in %s\n", len(m.Entries), output.Plural(len(m.Entries), "chunk", "chunks"), filepath.Base(targetPath), manifestPath)
	return nil
}

func (c *chunkmend) Diff(referencePath string) (DiffReport, error) {
	report := DiffReport{TruncateTo: repair.NoTruncation}

	m, err := c.loadManifest(referencePath)
	if err != nil {
		return report, err
	}
	if m.ChunkMiB != c.chunkMiB {
		return report, newValidationError(fmt.Sprintf("manifest was recorded with %d MiB chunks, not %d: re-run with -c %d", m.ChunkMiB, c.chunkMiB, m.ChunkMiB), nil)
	}
	if c.algorithmForced && c.algorithm.Tag != m.Algorithm {
		return report, newValidationError(fmt.Sprintf("manifest records %s digests, requested %s", m.Algorithm, c.algorithm.Tag), nil)
	}
	algo, err := chunk.AlgorithmByTag(m.Algorithm)
	if err != nil {
		return report, newValidationError("manifest unusable", err)
	}

	file, err := os.Open(referencePath)
	if err != nil {
		return report, newCommandError("reference file inaccessible", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return report, newCommandError("reference file inaccessible", err)
	}

	fmt.Fprintf(c.verboseOut, "Digesting %s in %d MiB chunks (%s)...\n", output.Filesize(info.Size()), m.ChunkMiB, algo.Tag)
	current, err := manifest.Compute(file, m.ChunkMiB, info.Size(), algo)
	if err != nil {
		return report, newCommandError("diff failed", err)
	}

	outcome := repair.Compare(m.Entries, current.Entries, m.TotalBytes, info.Size())
	c.printVerdicts(outcome)
	report.Mismatched = outcome.Mismatched
	report.TruncateTo = outcome.TruncateTo
	report.WholeFileMismatch = outcome.WholeFileMismatch
	report.ExtraChunks = outcome.ExtraChunks

	if outcome.WholeFileMismatch {
		fmt.Fprintf(c.out, "Not a single one of %d %s matches: re-transfer the whole file, an incremental repair would ship everything anyway.\n",
			outcome.Compared, output.Plural(int(outcome.Compared), "chunk", "chunks"))
		return report, nil
	}

	layout, _ := current.Layout()
	extractor := repair.Extractor{Dir: c.artifactDir, Compress: c.compress}
	for _, offset := range outcome.Mismatched {
		artifactPath, err := extractor.Extract(file, layout, offset)
		if err != nil {
			return report, newCommandError("patch extraction failed", err)
		}
		fmt.Fprintf(c.extraOut, "Extracted chunk %d to %s\n", offset, artifactPath)
	}

	if outcome.TruncateTo != repair.NoTruncation {
		fmt.Fprintf(c.extraOut, "Damaged file carries trailing garbage, it must shrink to %s\n", output.Filesize(outcome.TruncateTo))
	}
	if outcome.ExtraChunks > 0 {
		fmt.Fprintf(c.errOut, "NOTE: the reference file has %d %s beyond the recorded length which cannot be verified or repaired\n",
			outcome.ExtraChunks, output.Plural(int(outcome.ExtraChunks), "trailing chunk", "trailing chunks"))
	}

	if len(outcome.Mismatched) == 0 && outcome.TruncateTo == repair.NoTruncation {
		fmt.Fprint(c.out, "All recorded chunks match, no repair necessary.\n")
		return report, nil
	}

	report.RepairCommand = repairCommand(filepath.Base(referencePath), c.chunkMiB, outcome)
	fmt.Fprintf(c.extraOut, "%d mismatched %s: %s\n", len(outcome.Mismatched), output.Plural(len(outcome.Mismatched), "chunk", "chunks"), output.JoinOffsets(outcome.Mismatched))
	fmt.Fprintf(c.out, "Run at the damaged site:\n  %s\n", report.RepairCommand)
	return report, nil
}

func (c *chunkmend) Inject(targetPath string, offsets []int64, truncateTo int64) (err error) {
	if len(offsets) == 0 && truncateTo == repair.NoTruncation {
		return newValidationError("nothing to inject and nothing to truncate", nil)
	}
	for _, offset := range offsets {
		if offset < 0 {
			return newValidationError(fmt.Sprintf("chunk offset must not be negative, got %d", offset), nil)
		}
	}

	target, err := os.OpenFile(targetPath, os.O_RDWR, 0)
	if err != nil {
		return newCommandError("target file not writable", err)
	}
	defer func() {
		if closeErr := target.Close(); err == nil && closeErr != nil {
			err = newCommandError("finalizing target file failed", closeErr)
		}
	}()

	injector := repair.Injector{Dir: c.artifactDir}
	chunkBytes := c.chunkMiB * chunk.MiB
	for _, offset := range offsets {
		written, err := injector.Apply(target, chunkBytes, offset)
		if err != nil {
			return newCommandError("repair incomplete", err)
		}
		fmt.Fprintf(c.extraOut, "Injected chunk %d (%s at byte %d)\n", offset, output.Filesize(written), offset*chunkBytes)
	}

	//truncation strictly last so it only ever removes garbage beyond the
	//freshly injected chunks
	if truncateTo != repair.NoTruncation {
		if err := repair.Truncate(target, truncateTo); err != nil {
			return newCommandError("repair incomplete", err)
		}
		fmt.Fprintf(c.extraOut, "Truncated %s to %s\n", filepath.Base(targetPath), output.Filesize(truncateTo))
	}
	return nil
}

func (c *chunkmend) PrintManifest(targetPath string, asTree bool) error {
	m, err := c.loadManifest(targetPath)
	if err != nil {
		return err
	}
	if !asTree {
		return m.Write(c.out)
	}
	layout, err := m.Layout()
	if err != nil {
		return newValidationError("manifest unusable", err)
	}
	tree := output.NewChunkMapTree(fmt.Sprintf("%s [%s, %d MiB chunks, %s digests]",
		filepath.Base(targetPath), output.Filesize(m.TotalBytes), m.ChunkMiB, m.Algorithm))
	for _, entry := range m.Entries {
		tree.AddChunk(entry.Offset, layout.ByteOffset(entry.Offset), layout.Length(entry.Offset), entry.Digest, "")
	}
	fmt.Fprint(c.out, tree.Render())
	return nil
}

// loadManifest reads the manifest for a target and classifies failures:
// format deviations are validation errors, everything else is I/O.
func (c *chunkmend) loadManifest(targetPath string) (*manifest.Manifest, error) {
	m, err := manifest.Load(c.manifestPathFor(targetPath))
	if err != nil {
		if errors.Is(err, manifest.ErrMalformed) {
			return nil, newValidationError("manifest rejected", err)
		}
		return nil, newCommandError("manifest inaccessible", err)
	}
	return m, nil
}

// printVerdicts lists every compared chunk's verdict in verbose mode.
func (c *chunkmend) printVerdicts(outcome repair.Outcome) {
	next := 0
	for i := int64(0); i < outcome.Compared; i++ {
		verdict := "ok"
		if next < len(outcome.Mismatched) && outcome.Mismatched[next] == i {
			verdict = "MISMATCH"
			if c.allowAnsi {
				verdict = output.TerminalFormatAsError(verdict)
			}
			next++
		} else if c.allowAnsi {
			verdict = output.TerminalFormatAsGood(verdict)
		}
		fmt.Fprintf(c.verboseOut, "chunk %d: %s\n", i, verdict)
	}
}

// repairCommand assembles the inject invocation the reference side hands
// back to the damaged site.
func repairCommand(targetName string, chunkMiB int64, outcome repair.Outcome) string {
	var cmd strings.Builder
	fmt.Fprintf(&cmd, "chunkmend inject -c %d", chunkMiB)
	if outcome.TruncateTo != repair.NoTruncation {
		fmt.Fprintf(&cmd, " -t %d", outcome.TruncateTo)
	}
	if len(outcome.Mismatched) > 0 {
		fmt.Fprintf(&cmd, " -i %s", output.JoinOffsets(outcome.Mismatched))
	}
	fmt.Fprintf(&cmd, " %s", targetName)
	return cmd.String()
}
