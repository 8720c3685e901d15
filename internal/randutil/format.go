package randutil

import (
	"fmt"
	"time"
)

// Timestamp renders t as local hh:mm:ss.mmm.
func Timestamp(t time.Time) string {
	t = t.Local()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
}

// PadEnd right-pads s with spaces to width.
func PadEnd(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return fmt.Sprintf("%-*s", width, s)
}
