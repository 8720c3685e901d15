// Package clock abstracts wall-clock time so timer-driven state machines can
// be stepped deterministically in tests.
package clock
