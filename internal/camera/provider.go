package camera

import (
	"context"
	"image"
)

// FacingEnvironment requests the rear camera.
const FacingEnvironment = "environment"

// Constraints are the ideal capture settings passed to a provider. Providers
// treat every field as a preference, not a requirement.
type Constraints struct {
	FacingMode string `json:"facingMode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Audio      bool   `json:"audio"`
}

// DefaultConstraints asks for a 1280x720 rear camera without audio.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: FacingEnvironment, Width: 1280, Height: 720}
}

// Track is a single capture track owned by a stream.
type Track interface {
	Kind() string
	Stop()
}

// Stream is an acquired capture capability.
type Stream interface {
	// Tracks lists the tracks the session must stop on release.
	Tracks() []Track
	// Play starts frame delivery. Failures are not fatal.
	Play(ctx context.Context) error
	// FrameSize is zero until frames flow.
	FrameSize() (width, height int)
	// Ready is signalled when stream metadata becomes available.
	Ready() <-chan struct{}
	// Frame returns the most recent frame.
	Frame() (image.Image, error)
}

// Provider acquires capture streams.
type Provider interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}
