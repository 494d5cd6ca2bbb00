//Package chunkmend repairs a large file that was damaged during an
//unreliable transfer without re-transferring it wholesale. Three passes
//run on two sites: the damaged site records a chunk digest manifest, the
//reference site diffs the manifest against the intact original and
//extracts the mismatched chunks, and the damaged site injects those
//chunks back in place (optionally truncating trailing garbage).
package chunkmend

import (
	"fmt"
	"io"
	"os"

	"github.com/n2code/chunkmend/internal/chunk"
	"github.com/n2code/chunkmend/internal/repair"
)

type VerbosityLevel int

const (
	DefaultVerbosity VerbosityLevel = iota
	VerboseMode
	QuietMode
)

// DefaultChunkMiB is the chunk size used unless overridden. Both sides of
// a repair must use the same value, it is a protocol parameter.
const DefaultChunkMiB = 100

const manifestFileSuffix = ".chunksum"

// CreateConfig holds a set of common configuration switches that concern all calls to the chunkmend API.
// The zero value is a sensible default.
type CreateConfig struct {
	Verbosity VerbosityLevel
	//ChunkMiB is the chunk size in MiB units, DefaultChunkMiB if zero.
	ChunkMiB int64
	//Algorithm selects the digest by tag, the historical default if empty.
	Algorithm string
	//ManifestPath overrides the default manifest location (<target>.chunksum).
	ManifestPath string
	//ArtifactDir is where chunk artifacts are written and looked up, the
	//working directory if empty.
	ArtifactDir string
	//Compress makes the diff pass write zstd-compressed chunk artifacts.
	Compress bool
	//AllowAnsi permits terminal escape sequences in the output.
	AllowAnsi bool
}

// DiffReport is the outcome of a diff pass as presented to callers.
type DiffReport struct {
	//Mismatched lists the chunk offsets that need injection, in order.
	Mismatched []int64
	//TruncateTo is the byte size the damaged file must shrink to, or
	//repair.NoTruncation.
	TruncateTo int64
	//WholeFileMismatch signals that no chunk matched at all and a full
	//re-transfer is the sensible repair.
	WholeFileMismatch bool
	//ExtraChunks counts trailing reference chunks the manifest knows
	//nothing about (the original grew past the recorded length).
	ExtraChunks int64
	//RepairCommand is the ready-to-run inject invocation for the damaged
	//site, empty if there is nothing to inject or truncate.
	RepairCommand string
}

// Clean reports whether the damaged file needs no repair at all.
func (r DiffReport) Clean() bool {
	return len(r.Mismatched) == 0 && r.TruncateTo == repair.NoTruncation && !r.WholeFileMismatch && r.ExtraChunks == 0
}

type Chunkmend interface {

	// WriteManifest digests the given file chunk by chunk and overwrites
	// the manifest file wholesale. The manifest content is also printed
	// for the operator. This is the damaged-side recording pass.
	WriteManifest(targetPath string) error

	// Diff compares the manifest against the given reference file,
	// extracts an artifact per mismatched chunk, and prints the repair
	// command for the damaged site. The manifest's chunk size must match
	// the configured one, a mismatch names the corrective value.
	// On a whole-file mismatch no artifacts are written.
	Diff(referencePath string) (DiffReport, error)

	// Inject overwrites the chunks at the given offsets of the target
	// with the bytes of their artifacts, touching no other byte. A
	// missing artifact is an error naming the offset. If truncateTo is
	// not repair.NoTruncation the target shrinks to that size after all
	// injections. Re-running an interrupted injection is safe.
	Inject(targetPath string, offsets []int64, truncateTo int64) error

	// PrintManifest loads and prints the manifest recorded for the given
	// target, either verbatim or rendered as a chunk-map tree.
	PrintManifest(targetPath string, asTree bool) error
}

type chunkmend struct {
	chunkMiB         int64
	algorithm        chunk.Algorithm
	algorithmForced  bool //operator picked the algorithm explicitly
	manifestOverride string
	artifactDir      string
	compress         bool
	allowAnsi        bool
	out              io.Writer //essential output (i.e. requested information)
	extraOut         io.Writer //more output for convenience (repeats context)
	verboseOut       io.Writer //most output, talkative
	errOut           io.Writer //error output
}

// New creates a chunkmend instance for one of the three repair passes.
func New(config CreateConfig) (Chunkmend, error) {
	instance := &chunkmend{
		chunkMiB:         config.ChunkMiB,
		manifestOverride: config.ManifestPath,
		artifactDir:      config.ArtifactDir,
		compress:         config.Compress,
		allowAnsi:        config.AllowAnsi,
		out:              os.Stdout,
		extraOut:         io.Discard,
		verboseOut:       io.Discard,
		errOut:           os.Stderr,
	}
	switch config.Verbosity {
	case VerboseMode:
		instance.verboseOut = os.Stdout
		fallthrough
	case DefaultVerbosity:
		instance.extraOut = os.Stdout
	}

	if instance.chunkMiB == 0 {
		instance.chunkMiB = DefaultChunkMiB
	}
	if instance.chunkMiB < 0 {
		return nil, newValidationError(fmt.Sprintf("chunk size must be positive, got %d MiB", instance.chunkMiB), nil)
	}
	tag := config.Algorithm
	if tag == "" {
		tag = chunk.DefaultAlgorithm
	} else {
		instance.algorithmForced = true
	}
	algo, err := chunk.AlgorithmByTag(tag)
	if err != nil {
		return nil, newValidationError("digest selection impossible", err)
	}
	instance.algorithm = algo

	if instance.artifactDir == "" {
		instance.artifactDir = "."
	}
	return instance, nil
}

// manifestPathFor yields the manifest location for a target file unless
// the operator overrode it.
func (c *chunkmend) manifestPathFor(targetPath string) string {
	if c.manifestOverride != "" {
		return c.manifestOverride
	}
	return targetPath + manifestFileSuffix
}
