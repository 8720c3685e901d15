package synthetic

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/Moinster/SantaCam/internal/camera"
	"github.com/Moinster/SantaCam/internal/clock"
)

// Provider modes.
const (
	ModeSynthetic = "synthetic"
	ModeDenied    = "denied"
	ModeStalled   = "stalled"
)

// ErrPlayRejected is returned by Play on a stalled stream.
var ErrPlayRejected = errors.New("play() request was interrupted")

// Options configure a Provider.
type Options struct {
	Mode       string
	DenialName string
	Warmup     time.Duration
	Width      int
	Height     int
	Clock      clock.Clock
}

// Provider opens synthetic streams.
type Provider struct {
	opts Options

	mu       sync.Mutex
	acquired int
}

// New creates a provider. Unknown modes behave like ModeSynthetic.
func New(opts Options) *Provider {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.DenialName == "" {
		opts.DenialName = camera.NameNotAllowed
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	return &Provider{opts: opts}
}

// Acquired returns how many streams have been opened.
func (p *Provider) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Acquire opens a stream honoring the ideal frame size when one is given.
func (p *Provider) Acquire(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.opts.Mode == ModeDenied {
		return nil, camera.NamedError(p.opts.DenialName, "camera permission denied by host policy")
	}

	w, h := p.opts.Width, p.opts.Height
	if c.Width > 0 && c.Height > 0 {
		w, h = c.Width, c.Height
	}

	s := &stream{
		width:   w,
		height:  h,
		stalled: p.opts.Mode == ModeStalled,
		ready:   make(chan struct{}),
		stop:    make(chan struct{}),
		clock:   p.opts.Clock,
	}
	s.track = &track{s: s}

	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()

	if !s.stalled {
		s.warmUp(p.opts.Warmup)
	}
	return s, nil
}

type stream struct {
	width, height int
	stalled       bool
	clock         clock.Clock
	track         *track

	mu      sync.Mutex
	live    bool
	stopped bool
	frames  int
	ready   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func (s *stream) warmUp(d time.Duration) {
	if d <= 0 {
		s.markLive()
		return
	}
	after := s.clock.After(d)
	go func() {
		select {
		case <-after:
			s.markLive()
		case <-s.stop:
		}
	}()
}

func (s *stream) markLive() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.live = true
	s.mu.Unlock()
	close(s.ready)
}

func (s *stream) Tracks() []camera.Track {
	return []camera.Track{s.track}
}

func (s *stream) Play(ctx context.Context) error {
	if s.stalled {
		return ErrPlayRejected
	}
	return ctx.Err()
}

func (s *stream) FrameSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live || s.stopped {
		return 0, 0
	}
	return s.width, s.height
}

func (s *stream) Ready() <-chan struct{} {
	return s.ready
}

func (s *stream) Frame() (image.Image, error) {
	s.mu.Lock()
	if !s.live || s.stopped {
		s.mu.Unlock()
		return nil, camera.ErrNoFrames
	}
	s.frames++
	n := s.frames
	s.mu.Unlock()
	return Pattern(s.width, s.height, n), nil
}

func (s *stream) halt() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.stop)
	})
}

type track struct {
	s *stream
}

func (t *track) Kind() string { return "video" }

func (t *track) Stop() { t.s.halt() }

// Stopped reports whether every track of st has been stopped. It is false for
// streams not opened by this package.
func Stopped(st camera.Stream) bool {
	s, ok := st.(*stream)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

var bars = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// Pattern renders colour bars with a sweep line whose column advances with
// frame.
func Pattern(width, height, frame int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return img
	}
	sweep := (frame * 8) % width
	for x := 0; x < width; x++ {
		c := bars[x*len(bars)/width]
		if x == sweep {
			c = color.RGBA{255, 255, 255, 255}
		}
		for y := 0; y < height; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
