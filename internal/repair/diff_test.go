package repair

import (
	"reflect"
	"testing"

	"github.com/n2code/chunkmend/internal/manifest"
)

func digestSequence(digests ...string) (entries []manifest.Entry) {
	for i, digest := range digests {
		entries = append(entries, manifest.Entry{Digest: digest, Offset: int64(i)})
	}
	return
}

func TestCompareIdenticalSequencesIsClean(t *testing.T) {
	recorded := digestSequence("aa", "bb", "cc")
	outcome := Compare(recorded, recorded, 300, 300)
	if !outcome.Clean() {
		t.Fatalf("identical states diffed as dirty: %+v", outcome)
	}
	if outcome.WholeFileMismatch {
		t.Fatal("clean comparison flagged as whole-file mismatch")
	}
	if outcome.Compared != 3 {
		t.Fatalf("compared %d chunk pairs instead of 3", outcome.Compared)
	}
}

func TestCompareReportsSingleCorruptedChunk(t *testing.T) {
	recorded := digestSequence("aa", "XX", "cc")
	current := digestSequence("aa", "bb", "cc")
	outcome := Compare(recorded, current, 300, 300)
	if !reflect.DeepEqual(outcome.Mismatched, []int64{1}) {
		t.Fatalf("expected mismatch at offset 1, got %v", outcome.Mismatched)
	}
	if outcome.TruncateTo != NoTruncation {
		t.Fatal("truncation directive without size difference")
	}
	if outcome.WholeFileMismatch {
		t.Fatal("single mismatch flagged as whole-file mismatch")
	}
}

func TestCompareDemandsTruncationForShorterReference(t *testing.T) {
	recorded := digestSequence("aa", "bb", "cc")
	current := digestSequence("aa", "bb")
	outcome := Compare(recorded, current, 300, 200)
	if outcome.TruncateTo != 200 {
		t.Fatalf("expected truncation to 200 bytes, got %d", outcome.TruncateTo)
	}
	if outcome.Compared != 2 {
		t.Fatalf("comparison must stop at the shorter sequence, compared %d", outcome.Compared)
	}
	if len(outcome.Mismatched) != 0 {
		t.Fatalf("no digests differ, yet mismatches reported: %v", outcome.Mismatched)
	}
}

func TestCompareFlagsWholeFileMismatch(t *testing.T) {
	recorded := digestSequence("aa", "bb", "cc")
	current := digestSequence("dd", "ee", "ff")
	outcome := Compare(recorded, current, 300, 300)
	if !outcome.WholeFileMismatch {
		t.Fatal("all chunks differ but whole-file mismatch not flagged")
	}
	if len(outcome.Mismatched) != 3 {
		t.Fatalf("mismatch list incomplete: %v", outcome.Mismatched)
	}
}

func TestCompareCountsUnverifiableTrailingChunks(t *testing.T) {
	recorded := digestSequence("aa", "bb")
	current := digestSequence("aa", "bb", "cc", "dd")
	outcome := Compare(recorded, current, 200, 400)
	if outcome.ExtraChunks != 2 {
		t.Fatalf("expected 2 unverifiable trailing chunks, got %d", outcome.ExtraChunks)
	}
	if outcome.TruncateTo != NoTruncation {
		t.Fatal("grown reference must not demand truncation")
	}
	if outcome.Clean() {
		t.Fatal("trailing growth must not count as clean")
	}
}

func TestCompareOfEmptySequences(t *testing.T) {
	outcome := Compare(nil, nil, 0, 0)
	if !outcome.Clean() {
		t.Fatal("two empty states must be clean")
	}
	if outcome.WholeFileMismatch {
		t.Fatal("empty comparison range is not a whole-file mismatch")
	}
}
