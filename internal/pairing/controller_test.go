package pairing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/randutil"
)

// instantSleeper records every requested delay and returns immediately.
type instantSleeper struct {
	delays chan time.Duration
}

func newInstantSleeper() *instantSleeper {
	return &instantSleeper{delays: make(chan time.Duration, 64)}
}

func (s *instantSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.delays <- d
	return nil
}

// gatedSleeper blocks each Sleep until the test releases it.
type gatedSleeper struct {
	calls   chan time.Duration
	release chan struct{}
}

func newGatedSleeper() *gatedSleeper {
	return &gatedSleeper{
		calls:   make(chan time.Duration, 64),
		release: make(chan struct{}),
	}
}

func (s *gatedSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.calls <- d
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.release:
		return nil
	}
}

func (s *gatedSleeper) next(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-s.calls:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a step delay")
		return 0
	}
}

// failingSleeper fails on the nth call.
type failingSleeper struct {
	failAt int
	calls  int
}

func (s *failingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.calls++
	if s.calls == s.failAt {
		return errors.New("radio glitch")
	}
	return nil
}

func newTestController(sleeper Sleeper) (*Controller, *logsink.Sink) {
	sink := logsink.New(logsink.DefaultCapacity)
	c := NewController(sink, sleeper, randutil.NewSource(1), nil)
	return c, sink
}

func waitDone(t *testing.T, a *Attempt) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("attempt did not finish")
	}
}

func messages(sink *logsink.Sink) []string {
	var out []string
	for _, e := range sink.Events() {
		out = append(out, e.Message)
	}
	return out
}

func countPrefix(msgs []string, prefix string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func TestConnectRequiresCapability(t *testing.T) {
	c, sink := newTestController(newInstantSleeper())
	defer c.Close()

	attempt, err := c.Connect()
	if !errors.Is(err, ErrCapabilityDisabled) || attempt != nil {
		t.Fatalf("Connect() = %v, %v; want ErrCapabilityDisabled", attempt, err)
	}
	if c.State() != StateOffline {
		t.Errorf("Expected offline, got %s", c.State())
	}

	events := sink.Events()
	if len(events) != 1 || events[0].Level != logsink.LevelWarn {
		t.Fatalf("Expected one WARN line, got %+v", events)
	}
	if !strings.Contains(events[0].Message, "Select Arduino Sensor Board 2.1.5.0") {
		t.Errorf("Unexpected message %q", events[0].Message)
	}
}

func TestConnectReachesOnline(t *testing.T) {
	sleeper := newInstantSleeper()
	c, sink := newTestController(sleeper)
	defer c.Close()

	if err := c.SetCapability(true); err != nil {
		t.Fatalf("SetCapability() failed: %v", err)
	}

	attempt, err := c.Connect()
	if err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	waitDone(t, attempt)
	if err := attempt.Err(); err != nil {
		t.Fatalf("attempt error = %v", err)
	}
	if c.State() != StateOnline {
		t.Fatalf("Expected online, got %s", c.State())
	}

	close(sleeper.delays)
	var got []time.Duration
	for d := range sleeper.delays {
		got = append(got, d)
	}
	if len(got) != len(DefaultStepDelays) {
		t.Fatalf("Expected %d delays, got %v", len(DefaultStepDelays), got)
	}
	for i := range got {
		if got[i] != DefaultStepDelays[i] {
			t.Errorf("step %d delay = %v, want %v", i+1, got[i], DefaultStepDelays[i])
		}
	}

	events := sink.Events()
	// initiating + 7 steps + capture mode summary
	if len(events) != 9 {
		t.Fatalf("Expected 9 log lines, got %d: %v", len(events), messages(sink))
	}
	wantPrefixes := []string{
		"REMOTE   Initiating pairing session",
		"REMOTE   Transport=BLE",
		"REMOTE   Device discovered: ARD-SB-2.1  RSSI=",
		"REMOTE   GATT services: 0x180A,0x181A,0xFEA0  MTU=",
		"REMOTE   Secure handshake: OK  SessionKey=",
		"REMOTE   Sensor stream: LUX,USONIC  Rate=",
		"REMOTE   Board paired successfully.",
		"REMOTE   Motion capture ARMED",
		"REMOTE   Capture mode: SANTA_DETECT=ON",
	}
	wantLevels := []logsink.Level{
		logsink.LevelInfo, logsink.LevelInfo, logsink.LevelInfo, logsink.LevelInfo, logsink.LevelOK,
		logsink.LevelInfo, logsink.LevelOK, logsink.LevelWarn, logsink.LevelInfo,
	}
	for i, e := range events {
		if !strings.HasPrefix(e.Message, wantPrefixes[i]) {
			t.Errorf("line %d = %q, want prefix %q", i, e.Message, wantPrefixes[i])
		}
		if e.Level != wantLevels[i] {
			t.Errorf("line %d level = %s, want %s", i, e.Level, wantLevels[i])
		}
	}

	aff := c.Affordances()
	if !aff.Connect || !aff.CapabilityToggle {
		t.Errorf("Expected affordances re-enabled, got %+v", aff)
	}
}

func TestConnectWhileOnlineIsIdempotent(t *testing.T) {
	c, sink := newTestController(newInstantSleeper())
	defer c.Close()
	_ = c.SetCapability(true)

	attempt, _ := c.Connect()
	waitDone(t, attempt)
	before := sink.Len()

	again, err := c.Connect()
	if !errors.Is(err, ErrAlreadyPaired) || again != nil {
		t.Fatalf("Connect() while online = %v, %v", again, err)
	}
	if c.State() != StateOnline {
		t.Errorf("State changed to %s", c.State())
	}
	if sink.Len() != before+1 {
		t.Fatalf("Expected exactly one new line, got %d", sink.Len()-before)
	}
	latest, _ := sink.Latest()
	if latest.Level != logsink.LevelInfo || !strings.Contains(latest.Message, "Already paired") {
		t.Errorf("Unexpected line %+v", latest)
	}
}

func TestConnectingLocksAffordances(t *testing.T) {
	sleeper := newGatedSleeper()
	c, _ := newTestController(sleeper)
	defer c.Close()
	_ = c.SetCapability(true)

	if _, err := c.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	sleeper.next(t)

	if c.State() != StateConnecting {
		t.Errorf("Expected connecting, got %s", c.State())
	}
	if c.State().Badge() != "REMOTE: CONNECTING…" {
		t.Errorf("Unexpected badge %q", c.State().Badge())
	}
	aff := c.Affordances()
	if aff.Connect || aff.CapabilityToggle {
		t.Errorf("Expected affordances disabled, got %+v", aff)
	}
	if err := c.SetCapability(false); !errors.Is(err, ErrToggleLocked) {
		t.Errorf("SetCapability(false) = %v, want ErrToggleLocked", err)
	}
}

func TestSecondConnectCancelsFirst(t *testing.T) {
	sleeper := newGatedSleeper()
	c, sink := newTestController(sleeper)
	defer c.Close()
	_ = c.SetCapability(true)

	first, err := c.Connect()
	if err != nil {
		t.Fatalf("first Connect() failed: %v", err)
	}

	// Let the first attempt log two steps
	for i := 0; i < 2; i++ {
		sleeper.next(t)
		sleeper.release <- struct{}{}
	}
	sleeper.next(t) // first attempt now waits on step 3

	second, err := c.Connect()
	if err != nil {
		t.Fatalf("second Connect() failed: %v", err)
	}
	waitDone(t, first)
	if !errors.Is(first.Err(), ErrCancelled) {
		t.Fatalf("first attempt error = %v, want ErrCancelled", first.Err())
	}
	if c.State() != StateConnecting {
		t.Errorf("Cancellation must not revert state, got %s", c.State())
	}

	for i := 0; i < len(DefaultStepDelays); i++ {
		sleeper.next(t)
		sleeper.release <- struct{}{}
	}
	waitDone(t, second)
	if err := second.Err(); err != nil {
		t.Fatalf("second attempt error = %v", err)
	}
	if c.State() != StateOnline {
		t.Fatalf("Expected online, got %s", c.State())
	}

	msgs := messages(sink)
	if n := countPrefix(msgs, "REMOTE   Initiating pairing session"); n != 2 {
		t.Errorf("Expected 2 initiating lines, got %d", n)
	}
	// 2 steps from the first attempt, 7 from the second
	if n := countPrefix(msgs, "REMOTE   Transport=BLE"); n != 2 {
		t.Errorf("Expected transport line from both attempts, got %d", n)
	}
	if n := countPrefix(msgs, "REMOTE   GATT services"); n != 1 {
		t.Errorf("Expected only the second attempt to reach GATT, got %d", n)
	}
	if n := countPrefix(msgs, "REMOTE   Motion capture ARMED"); n != 1 {
		t.Errorf("Expected exactly one completed sequence, got %d", n)
	}
	if n := countPrefix(msgs, "REMOTE   Pairing failed"); n != 0 {
		t.Errorf("Cancellation must be silent, got %d failure lines", n)
	}
	if len(msgs) != 1+2+1+7+1 {
		t.Errorf("Unexpected line count %d: %v", len(msgs), msgs)
	}
}

func TestAttemptFailure(t *testing.T) {
	c, sink := newTestController(&failingSleeper{failAt: 4})
	defer c.Close()
	_ = c.SetCapability(true)

	attempt, err := c.Connect()
	if err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	waitDone(t, attempt)

	if !errors.Is(attempt.Err(), ErrAttemptFailed) {
		t.Fatalf("attempt error = %v, want ErrAttemptFailed", attempt.Err())
	}
	if c.State() != StateOffline {
		t.Errorf("Expected offline after failure, got %s", c.State())
	}
	latest, _ := sink.Latest()
	if latest.Level != logsink.LevelWarn || !strings.Contains(latest.Message, "Pairing failed") {
		t.Errorf("Unexpected last line %+v", latest)
	}
	// initiating + 3 steps + failure
	if sink.Len() != 5 {
		t.Errorf("Expected 5 lines, got %d: %v", sink.Len(), messages(sink))
	}
	aff := c.Affordances()
	if !aff.Connect || !aff.CapabilityToggle {
		t.Errorf("Expected affordances re-enabled after failure, got %+v", aff)
	}
}

func TestCloseCancelsSilently(t *testing.T) {
	sleeper := newGatedSleeper()
	c, sink := newTestController(sleeper)
	_ = c.SetCapability(true)

	attempt, _ := c.Connect()
	sleeper.next(t)
	c.Close()

	if !errors.Is(attempt.Err(), ErrCancelled) {
		t.Errorf("attempt error = %v, want ErrCancelled", attempt.Err())
	}
	if sink.Len() != 1 {
		t.Errorf("Expected only the initiating line, got %v", messages(sink))
	}
}

func TestConnectAfterClose(t *testing.T) {
	c, sink := newTestController(newInstantSleeper())
	_ = c.SetCapability(true)
	c.Close()

	attempt, err := c.Connect()
	if !errors.Is(err, ErrClosed) || attempt != nil {
		t.Fatalf("Connect() = %v, %v; want ErrClosed", attempt, err)
	}
	if c.State() != StateOffline {
		t.Errorf("Expected offline, got %s", c.State())
	}
	if a := c.Affordances(); !a.Connect || !a.CapabilityToggle {
		t.Errorf("Expected unlocked affordances, got %+v", a)
	}
	if sink.Len() != 0 {
		t.Errorf("Expected no log lines, got %v", messages(sink))
	}
}

func TestClockSleeper(t *testing.T) {
	mc := clock.NewManual(time.Unix(0, 0))
	s := ClockSleeper{Clock: mc}

	done := make(chan error, 1)
	go func() { done <- s.Sleep(context.Background(), 450*time.Millisecond) }()

	if !mc.BlockUntil(1, time.Second) {
		t.Fatal("sleeper never armed a timer")
	}
	mc.Advance(450 * time.Millisecond)
	if err := <-done; err != nil {
		t.Errorf("Sleep() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() on cancelled ctx = %v", err)
	}
}

func TestBuildSteps(t *testing.T) {
	steps := BuildSteps(randutil.NewSource(3), nil)
	if len(steps) != 7 {
		t.Fatalf("Expected 7 steps, got %d", len(steps))
	}
	for i, s := range steps {
		if s.Delay != DefaultStepDelays[i] {
			t.Errorf("step %d delay %v", i+1, s.Delay)
		}
	}
	if steps[3].Kind != logsink.KindOK || steps[6].Kind != logsink.KindWarn {
		t.Errorf("Unexpected step kinds: %+v", steps)
	}
}

func TestBadge(t *testing.T) {
	if StateOffline.Badge() != "REMOTE: OFFLINE" || StateOnline.Badge() != "REMOTE: ONLINE" {
		t.Error("Unexpected badge text")
	}
}
