package console

import (
	"errors"

	"github.com/Moinster/SantaCam/internal/camera"
	"github.com/Moinster/SantaCam/internal/pairing"
)

var (
	// ErrNotImage is returned when an upload is not an image.
	ErrNotImage = errors.New("upload is not an image")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("upload too large")
	// ErrEmptyUpload is returned for a zero-byte upload.
	ErrEmptyUpload = errors.New("upload is empty")
	// ErrNoStill is returned when no still is shown.
	ErrNoStill = errors.New("no still frame")
)

// Result codes shared by the audit trail and the API envelope.
const (
	CodeSuccess     = "SUCCESS"
	CodeBadRequest  = "BAD_REQUEST"
	CodeNotFound    = "NOT_FOUND"
	CodeBusy        = "BUSY"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL"
)

var codeTable = []struct {
	err  error
	code string
}{
	{camera.ErrStartInFlight, CodeBusy},
	{camera.ErrSuperseded, CodeBusy},
	{pairing.ErrToggleLocked, CodeBusy},
	{pairing.ErrAlreadyPaired, CodeBusy},
	{camera.ErrUnsupported, CodeUnavailable},
	{camera.ErrDenied, CodeUnavailable},
	{camera.ErrNotReady, CodeUnavailable},
	{camera.ErrNoSession, CodeUnavailable},
	{camera.ErrNoFrames, CodeUnavailable},
	{pairing.ErrClosed, CodeUnavailable},
	{pairing.ErrCapabilityDisabled, CodeBadRequest},
	{ErrNotImage, CodeBadRequest},
	{ErrTooLarge, CodeBadRequest},
	{ErrEmptyUpload, CodeBadRequest},
	{ErrNoStill, CodeNotFound},
}

// Code maps an operation error to its result code.
func Code(err error) string {
	if err == nil {
		return CodeSuccess
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
