package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/still"
)

// Status is the camera session state.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRequesting  Status = "requesting"
	StatusLive        Status = "live"
	StatusWarming     Status = "warming"
	StatusBlocked     Status = "blocked"
	StatusUnavailable Status = "unavailable"
)

// Badge returns the status text and style kind of the camera badge.
func (s Status) Badge() (string, logsink.Kind) {
	switch s {
	case StatusRequesting:
		return "REQUESTING…", logsink.KindNone
	case StatusLive:
		return "LIVE", logsink.KindOK
	case StatusWarming:
		return "WARMING", logsink.KindNone
	case StatusBlocked:
		return "BLOCKED", logsink.KindNone
	case StatusUnavailable:
		return "NO API", logsink.KindNone
	default:
		return "IDLE", logsink.KindNone
	}
}

// Defaults for Options fields left zero.
const (
	DefaultReadyTimeout  = 1500 * time.Millisecond
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultJPEGQuality   = 92
)

// StillHolder receives encoded snapshots.
type StillHolder interface {
	Set(ref *still.Ref)
	Clear()
}

// Options configure a Controller.
type Options struct {
	Clock         clock.Clock
	ReadyTimeout  time.Duration
	FrameInterval time.Duration
	JPEGQuality   int
	Constraints   Constraints
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = DefaultFrameInterval
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.Constraints == (Constraints{}) {
		o.Constraints = DefaultConstraints()
	}
	return o
}

// Affordances reports which camera controls the UI may enable.
type Affordances struct {
	Stop     bool `json:"stop"`
	Snapshot bool `json:"snapshot"`
}

// Controller owns at most one capture session.
type Controller struct {
	mu     sync.Mutex
	status Status
	stream Stream
	gen    uint64 // bumped when a pending start is abandoned

	provider Provider
	sink     logsink.Appender
	holder   StillHolder
	opts     Options
}

// NewController creates an idle controller. A nil provider means live
// capture is unsupported on this host.
func NewController(provider Provider, sink logsink.Appender, holder StillHolder, opts Options) *Controller {
	return &Controller{
		status:   StatusIdle,
		provider: provider,
		sink:     sink,
		holder:   holder,
		opts:     opts.withDefaults(),
	}
}

// Status returns the current session state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Supported reports whether an acquisition provider exists.
func (c *Controller) Supported() bool {
	return c.provider != nil
}

// HasSession reports whether a capture stream is held.
func (c *Controller) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// OverlayVisible reports whether the "use still photo" hint is shown.
func (c *Controller) OverlayVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusUnavailable, StatusBlocked, StatusWarming:
		return true
	case StatusIdle:
		return c.provider == nil
	default:
		return false
	}
}

// Affordances reports the enable flags of stop and snapshot.
func (c *Controller) Affordances() Affordances {
	c.mu.Lock()
	defer c.mu.Unlock()
	return affordancesFor(c.status)
}

func affordancesFor(s Status) Affordances {
	switch s {
	case StatusLive:
		return Affordances{Stop: true, Snapshot: true}
	case StatusWarming:
		return Affordances{Stop: true}
	default:
		return Affordances{}
	}
}

// Start acquires a stream and waits for frames. It returns the resulting
// status; the error is nil only when the session went live. The session
// outlives ctx: cancelling it does not abort acquisition or the readiness
// wait, which is bounded by the ready timeout.
func (c *Controller) Start(ctx context.Context) (Status, error) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	if c.status == StatusRequesting {
		c.mu.Unlock()
		return StatusRequesting, ErrStartInFlight
	}
	if c.holder != nil {
		c.holder.Clear()
	}
	if c.provider == nil {
		c.status = StatusUnavailable
		c.mu.Unlock()
		c.sink.Append(logsink.LevelWarn, "Browser does not support getUserMedia; use still photo capture.", logsink.KindWarn)
		return StatusUnavailable, ErrUnsupported
	}
	if c.stream != nil {
		c.releaseLocked()
	}
	c.status = StatusRequesting
	gen := c.gen
	c.mu.Unlock()

	stream, err := c.provider.Acquire(ctx, c.opts.Constraints)
	if err != nil {
		acqErr := NewAcquireError(err)
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return c.Status(), ErrSuperseded
		}
		c.status = StatusBlocked
		c.mu.Unlock()
		c.sink.Append(logsink.LevelWarn, fmt.Sprintf("Live camera blocked (%s). Use still photo capture instead.", acqErr.Name), logsink.KindWarn)
		return StatusBlocked, acqErr
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		stopTracks(stream)
		return c.Status(), ErrSuperseded
	}
	c.stream = stream
	c.mu.Unlock()

	_ = stream.Play(ctx)

	ready := c.waitReady(ctx, stream)

	c.mu.Lock()
	if c.gen != gen || c.stream != stream {
		c.mu.Unlock()
		return c.Status(), ErrSuperseded
	}
	if !ready {
		c.status = StatusWarming
		c.mu.Unlock()
		c.sink.Append(logsink.LevelWarn, "Camera stream opened but frames not ready yet. Try again in a moment.", logsink.KindWarn)
		return StatusWarming, ErrNotReady
	}
	c.status = StatusLive
	c.mu.Unlock()
	c.sink.Append(logsink.LevelOK, "Camera pipeline online. Frame acquisition running.", logsink.KindOK)
	return StatusLive, nil
}

// waitReady polls frame dimensions once per frame interval until they are
// non-zero or the readiness timeout elapses.
func (c *Controller) waitReady(ctx context.Context, stream Stream) bool {
	if hasFrames(stream) {
		return true
	}

	clk := c.opts.Clock
	started := clk.Now()
	ticker := clk.NewTicker(c.opts.FrameInterval)
	defer ticker.Stop()
	deadline := clk.After(c.opts.ReadyTimeout)
	ready := stream.Ready()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ready:
			if hasFrames(stream) {
				return true
			}
			ready = nil
		case <-ticker.C():
			if hasFrames(stream) {
				return true
			}
			if clk.Now().Sub(started) >= c.opts.ReadyTimeout {
				return false
			}
		case <-deadline:
			return hasFrames(stream)
		}
	}
}

func hasFrames(stream Stream) bool {
	w, h := stream.FrameSize()
	return w > 0 && h > 0
}

// Stop releases the session and returns to idle. It is a no-op when the stop
// control would be disabled.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.stream == nil && c.status != StatusRequesting {
		c.mu.Unlock()
		return ErrNoSession
	}
	c.releaseLocked()
	c.gen++
	c.status = StatusIdle
	c.mu.Unlock()

	c.sink.Append(logsink.LevelInfo, "Camera pipeline stopped. Standing by.", logsink.KindMuted)
	return nil
}

// releaseLocked stops every owned track and unbinds the stream.
func (c *Controller) releaseLocked() {
	if c.stream == nil {
		return
	}
	stopTracks(c.stream)
	c.stream = nil
}

func stopTracks(stream Stream) {
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}

// Snapshot encodes the current frame and hands it to the still holder.
func (c *Controller) Snapshot() (*still.Ref, error) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()

	ref, err := c.capture(stream)
	if err != nil {
		c.sink.Append(logsink.LevelWarn, "Snapshot requested but no active frames.", logsink.KindWarn)
		return nil, err
	}

	if c.holder != nil {
		c.holder.Set(ref)
	}
	c.sink.Append(logsink.LevelOK, "Frame captured. Evidence buffer sealed.", logsink.KindOK)
	return ref, nil
}

func (c *Controller) capture(stream Stream) (*still.Ref, error) {
	if stream == nil {
		return nil, ErrNoFrames
	}
	w, h := stream.FrameSize()
	if w <= 0 || h <= 0 {
		return nil, ErrNoFrames
	}
	frame, err := stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrames, err)
	}
	if frame == nil {
		return nil, ErrNoFrames
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: c.opts.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return still.NewEncoded(still.SourceSnapshot, "image/jpeg", buf.Bytes(), w, h), nil
}

// Close releases any held session without logging.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.gen++
	if c.status != StatusUnavailable {
		c.status = StatusIdle
	}
}
