// Package audit records every operator action as one JSON line in a
// size-rotated file.
package audit
