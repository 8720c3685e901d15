// Package pairing simulates the remote sensor board handshake.
//
// A pairing attempt walks a fixed list of timed steps on its own goroutine.
// Starting a new attempt cancels the previous one; a cancelled attempt stops
// without logging again and leaves state and affordances to its successor.
package pairing
