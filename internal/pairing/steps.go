package pairing

import (
	"context"
	"fmt"
	"time"

	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/randutil"
)

// DefaultStepDelays are the waits before each handshake line is logged.
var DefaultStepDelays = []time.Duration{
	450 * time.Millisecond, // transport scan
	620 * time.Millisecond, // device discovered
	520 * time.Millisecond, // GATT / MTU
	680 * time.Millisecond, // secure handshake
	540 * time.Millisecond, // sensor stream
	680 * time.Millisecond, // paired
	520 * time.Millisecond, // motion capture armed
}

// Step is one timed line of the simulated handshake.
type Step struct {
	Delay   time.Duration
	Level   logsink.Level
	Kind    logsink.Kind
	Message string
}

// BuildSteps fabricates the seven handshake lines. Random fields are drawn
// once, when the attempt starts.
func BuildSteps(src randutil.Source, delays []time.Duration) []Step {
	if len(delays) != len(DefaultStepDelays) {
		delays = DefaultStepDelays
	}

	rssi := randutil.Floor(src, -74, -48)
	mtu := randutil.Floor(src, 90, 185)
	sessionKey := randutil.Hex(src, 0xffff, 4)
	rate := randutil.Choice(src, []int{10, 12, 15})
	jitter := randutil.Clamp(randutil.Range(src, 0.6, 3.2), 0, 9)

	return []Step{
		{delays[0], logsink.LevelInfo, logsink.KindMuted, "REMOTE   Transport=BLE  ScanWindow=120ms  Passive=FALSE"},
		{delays[1], logsink.LevelInfo, logsink.KindNone, fmt.Sprintf("REMOTE   Device discovered: ARD-SB-2.1  RSSI=%ddBm", rssi)},
		{delays[2], logsink.LevelInfo, logsink.KindNone, fmt.Sprintf("REMOTE   GATT services: 0x180A,0x181A,0xFEA0  MTU=%d", mtu)},
		{delays[3], logsink.LevelOK, logsink.KindOK, fmt.Sprintf("REMOTE   Secure handshake: OK  SessionKey=%s", sessionKey)},
		{delays[4], logsink.LevelInfo, logsink.KindNone, fmt.Sprintf("REMOTE   Sensor stream: LUX,USONIC  Rate=%dHz  Jitter=%.1fms", rate, jitter)},
		{delays[5], logsink.LevelOK, logsink.KindOK, "REMOTE   Board paired successfully. Telemetry link ACTIVE."},
		{delays[6], logsink.LevelWarn, logsink.KindWarn, "REMOTE   Motion capture ARMED — awaiting movement for evidence frame"},
	}
}

// Sleeper suspends a pairing attempt between steps. Sleep must return
// ctx.Err() promptly once ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on a clock.Clock.
type ClockSleeper struct {
	Clock clock.Clock
}

// Sleep waits for d or until ctx is cancelled.
func (s ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.Clock
	if c == nil {
		c = clock.New()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}
