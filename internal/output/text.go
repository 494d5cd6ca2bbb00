package output

import (
	"fmt"
	"strconv"
	"strings"
)

func Plural(count int, singular string, plural string) string {
	if count != 1 {
		return plural
	}
	return singular
}

func Filesize(i int64) string {
	switch {
	case i >= 1024*1024:
		return fmt.Sprintf("%.1f MiB (%d bytes)", float64(i)/float64(1024*1024), i)
	case i > 1024:
		return fmt.Sprintf("%.0f KiB (%d bytes)", float64(i)/float64(1024), i)
	default:
		return fmt.Sprintf("%d bytes", i)
	}
}

// JoinOffsets renders chunk offsets the way the repair command and all
// operator messages expect them: comma-joined decimals.
func JoinOffsets(offsets []int64) string {
	var joined strings.Builder
	for i, offset := range offsets {
		if i > 0 {
			joined.WriteRune(',')
		}
		joined.WriteString(strconv.FormatInt(offset, 10))
	}
	return joined.String()
}
