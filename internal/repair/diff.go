//Package repair computes which chunks of a damaged file must be replaced
//and moves the replacement bytes in and out of chunk artifacts.
package repair

import (
	"github.com/n2code/chunkmend/internal/manifest"
)

// NoTruncation is the TruncateTo value of an outcome that requires none.
const NoTruncation int64 = -1

// Outcome is the immutable result of comparing two chunk digest sequences.
// It is pure data so the comparison can be tested without touching disk.
type Outcome struct {
	//Mismatched lists the chunk offsets whose digests differ, in order.
	Mismatched []int64
	//TruncateTo is the byte size the damaged file must shrink to because
	//the reference file is shorter than the recorded total, NoTruncation
	//otherwise.
	TruncateTo int64
	//Compared is the number of positionally compared chunk pairs.
	Compared int64
	//WholeFileMismatch is set when not a single compared chunk matched.
	//Shipping every chunk is pointless then, a re-transfer is cheaper.
	WholeFileMismatch bool
	//ExtraChunks counts trailing reference chunks beyond the recorded
	//sequence. They cannot be verified against anything and are reported
	//but never extracted: the damaged side never held those bytes and
	//injection does not extend files.
	ExtraChunks int64
}

// Clean reports whether the damaged file already matches the reference.
func (o Outcome) Clean() bool {
	return len(o.Mismatched) == 0 && o.TruncateTo == NoTruncation && o.ExtraChunks == 0
}

// Compare walks two digest sequences position by position and folds the
// differences into an Outcome. recorded stems from the damaged file's
// manifest, current from re-digesting the reference file with the same
// layout. The iteration bound is the shorter sequence.
func Compare(recorded []manifest.Entry, current []manifest.Entry, recordedTotal int64, currentTotal int64) Outcome {
	outcome := Outcome{TruncateTo: NoTruncation}

	bound := int64(len(recorded))
	if int64(len(current)) < bound {
		bound = int64(len(current))
	}
	outcome.Compared = bound

	for i := int64(0); i < bound; i++ {
		if recorded[i].Digest != current[i].Digest {
			outcome.Mismatched = append(outcome.Mismatched, i)
		}
	}
	outcome.WholeFileMismatch = bound > 0 && int64(len(outcome.Mismatched)) == bound

	if currentTotal < recordedTotal {
		outcome.TruncateTo = currentTotal
	}
	if extra := int64(len(current)) - bound; extra > 0 {
		outcome.ExtraChunks = extra
	}

	return outcome
}
