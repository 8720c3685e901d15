package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/randutil"
)

// State is the remote link state.
type State string

const (
	StateOffline    State = "offline"
	StateConnecting State = "connecting"
	StateOnline     State = "online"
)

// Badge returns the status text shown for the state.
func (s State) Badge() string {
	switch s {
	case StateConnecting:
		return "REMOTE: CONNECTING…"
	case StateOnline:
		return "REMOTE: ONLINE"
	default:
		return "REMOTE: OFFLINE"
	}
}

var (
	// ErrCapabilityDisabled is returned when Connect runs without the board selected.
	ErrCapabilityDisabled = errors.New("remote capability not selected")
	// ErrAlreadyPaired is returned by Connect while online.
	ErrAlreadyPaired = errors.New("remote already paired")
	// ErrToggleLocked is returned when the capability toggle changes mid-attempt.
	ErrToggleLocked = errors.New("capability toggle locked while pairing")
	// ErrCancelled marks an attempt superseded by a newer Connect or by Close.
	ErrCancelled = errors.New("pairing attempt cancelled")
	// ErrAttemptFailed wraps any other error raised during the sequence.
	ErrAttemptFailed = errors.New("pairing attempt failed")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("pairing controller closed")
)

// Attempt is a handle on one pairing run.
type Attempt struct {
	done chan struct{}
	err  error
}

// Done is closed when the attempt reaches a terminal path.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Err reports the outcome once Done is closed: nil when online, ErrCancelled
// when superseded, or an error wrapping ErrAttemptFailed.
func (a *Attempt) Err() error {
	<-a.done
	return a.err
}

// Affordances reports which pairing controls the UI may enable.
type Affordances struct {
	Connect          bool `json:"connect"`
	CapabilityToggle bool `json:"capabilityToggle"`
}

// Controller owns the remote pairing state machine.
type Controller struct {
	mu         sync.Mutex
	state      State
	capability bool
	locked     bool // connect and toggle disabled
	cancel     context.CancelFunc
	current    *Attempt

	sink    logsink.Appender
	sleeper Sleeper
	src     randutil.Source
	delays  []time.Duration

	ctx        context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewController creates an offline pairing controller.
func NewController(sink logsink.Appender, sleeper Sleeper, src randutil.Source, delays []time.Duration) *Controller {
	if sleeper == nil {
		sleeper = ClockSleeper{}
	}
	if src == nil {
		src = randutil.NewSource(0)
	}
	if len(delays) == 0 {
		delays = DefaultStepDelays
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		state:      StateOffline,
		sink:       sink,
		sleeper:    sleeper,
		src:        src,
		delays:     delays,
		ctx:        ctx,
		rootCancel: cancel,
	}
}

// State returns the current link state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Capability reports whether the board toggle is selected.
func (c *Controller) Capability() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capability
}

// Affordances reports the enable flags of the connect control and toggle.
func (c *Controller) Affordances() Affordances {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Affordances{Connect: !c.locked, CapabilityToggle: !c.locked}
}

// SetCapability records the board toggle. Changing it while an attempt holds
// the toggle disabled is rejected.
func (c *Controller) SetCapability(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked && enabled != c.capability {
		return ErrToggleLocked
	}
	c.capability = enabled
	return nil
}

// Connect starts a pairing attempt, cancelling any attempt in flight.
func (c *Controller) Connect() (*Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}

	if !c.capability {
		c.sink.Append(logsink.LevelWarn, "REMOTE   Select Arduino Sensor Board 2.1.5.0 before connecting.", logsink.KindWarn)
		return nil, ErrCapabilityDisabled
	}

	if c.state == StateOnline {
		c.sink.Append(logsink.LevelInfo, "REMOTE   Already paired. Motion capture is armed.", logsink.KindMuted)
		return nil, ErrAlreadyPaired
	}

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	attempt := &Attempt{done: make(chan struct{})}
	c.current = attempt

	c.state = StateConnecting
	c.locked = true
	c.sink.Append(logsink.LevelInfo, "REMOTE   Initiating pairing session…", logsink.KindMuted)

	steps := BuildSteps(c.src, c.delays)

	c.wg.Add(1)
	go c.run(ctx, attempt, steps)

	return attempt, nil
}

// run executes the steps of one attempt in order.
func (c *Controller) run(ctx context.Context, attempt *Attempt, steps []Step) {
	defer c.wg.Done()
	defer close(attempt.done)

	for _, step := range steps {
		if err := c.sleeper.Sleep(ctx, step.Delay); err != nil {
			if ctx.Err() != nil {
				attempt.err = ErrCancelled
				return
			}
			c.fail(attempt, err)
			return
		}

		if !c.logStep(attempt, step) {
			attempt.err = ErrCancelled
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCurrentLocked(attempt) {
		attempt.err = ErrCancelled
		return
	}
	c.state = StateOnline
	c.sink.Append(logsink.LevelInfo, "REMOTE   Capture mode: SANTA_DETECT=ON  IR_ASSIST=AUTO  ALERT_SILENT=TRUE", logsink.KindMuted)
	c.finishLocked()
}

// logStep appends a step line unless the attempt has been superseded.
func (c *Controller) logStep(attempt *Attempt, step Step) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(attempt) {
		return false
	}
	c.sink.Append(step.Level, step.Message, step.Kind)
	return true
}

func (c *Controller) fail(attempt *Attempt, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(attempt) {
		attempt.err = ErrCancelled
		return
	}
	attempt.err = fmt.Errorf("%w: %v", ErrAttemptFailed, err)
	c.state = StateOffline
	c.sink.Append(logsink.LevelWarn, "REMOTE   Pairing failed. Returning to local simulation.", logsink.KindWarn)
	c.finishLocked()
}

func (c *Controller) isCurrentLocked(attempt *Attempt) bool {
	return c.current == attempt && c.ctx.Err() == nil
}

// finishLocked re-enables the controls after a non-cancelled terminal path.
func (c *Controller) finishLocked() {
	c.locked = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.current = nil
}

// Close cancels any attempt in flight and waits for it to stop.
func (c *Controller) Close() {
	c.rootCancel()
	c.wg.Wait()
}
