package synthetic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Moinster/SantaCam/internal/camera"
	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/logsink"
)

func TestAcquireWithoutWarmup(t *testing.T) {
	p := New(Options{Mode: ModeSynthetic, Width: 64, Height: 48})
	st, err := p.Acquire(context.Background(), camera.Constraints{})
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if w, h := st.FrameSize(); w != 64 || h != 48 {
		t.Errorf("FrameSize() = %dx%d", w, h)
	}
	select {
	case <-st.Ready():
	default:
		t.Error("Expected Ready closed")
	}
	if p.Acquired() != 1 {
		t.Errorf("Acquired() = %d", p.Acquired())
	}
}

func TestAcquireHonorsConstraints(t *testing.T) {
	p := New(Options{})
	st, err := p.Acquire(context.Background(), camera.Constraints{Width: 32, Height: 16})
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if w, h := st.FrameSize(); w != 32 || h != 16 {
		t.Errorf("FrameSize() = %dx%d", w, h)
	}
}

func TestWarmupOnManualClock(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	p := New(Options{Warmup: 200 * time.Millisecond, Width: 8, Height: 8, Clock: clk})
	st, err := p.Acquire(context.Background(), camera.Constraints{})
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if w, _ := st.FrameSize(); w != 0 {
		t.Error("Expected zero frame size during warmup")
	}
	if _, err := st.Frame(); !errors.Is(err, camera.ErrNoFrames) {
		t.Errorf("Frame() during warmup = %v", err)
	}

	clk.Advance(200 * time.Millisecond)
	select {
	case <-st.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready not signalled after warmup")
	}
	if w, h := st.FrameSize(); w != 8 || h != 8 {
		t.Errorf("FrameSize() = %dx%d", w, h)
	}
	img, err := st.Frame()
	if err != nil || img.Bounds().Dx() != 8 {
		t.Errorf("Frame() = %v, %v", img, err)
	}
}

func TestDeniedMode(t *testing.T) {
	p := New(Options{Mode: ModeDenied, DenialName: camera.NameNotReadable})
	_, err := p.Acquire(context.Background(), camera.Constraints{})
	if got := camera.Classify(err); got != camera.NameNotReadable {
		t.Errorf("Classify() = %q", got)
	}
}

func TestCancelledAcquire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Acquire(ctx, camera.Constraints{})
	if camera.Classify(err) != camera.NameAbort {
		t.Errorf("Classify() = %q", camera.Classify(err))
	}
}

func TestStalledMode(t *testing.T) {
	p := New(Options{Mode: ModeStalled})
	st, err := p.Acquire(context.Background(), camera.Constraints{})
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if err := st.Play(context.Background()); !errors.Is(err, ErrPlayRejected) {
		t.Errorf("Play() = %v", err)
	}
	if w, h := st.FrameSize(); w != 0 || h != 0 {
		t.Errorf("FrameSize() = %dx%d", w, h)
	}
}

func TestTrackStop(t *testing.T) {
	st, _ := New(Options{Width: 4, Height: 4}).Acquire(context.Background(), camera.Constraints{})
	tracks := st.Tracks()
	if len(tracks) != 1 || tracks[0].Kind() != "video" {
		t.Fatalf("Tracks() = %v", tracks)
	}
	tracks[0].Stop()
	tracks[0].Stop()

	if !Stopped(st) {
		t.Error("Expected stream stopped")
	}
	if w, _ := st.FrameSize(); w != 0 {
		t.Error("Expected zero frame size after stop")
	}
}

func TestPatternSweepMoves(t *testing.T) {
	a := Pattern(64, 4, 1)
	b := Pattern(64, 4, 2)
	if a.RGBAAt(8, 0) == b.RGBAAt(8, 0) {
		t.Error("Expected the sweep column to move between frames")
	}
}

func TestControllerWithSyntheticProvider(t *testing.T) {
	sink := logsink.New(logsink.DefaultCapacity)
	p := New(Options{})
	c := camera.NewController(p, sink, nil, camera.Options{
		ReadyTimeout:  50 * time.Millisecond,
		FrameInterval: time.Millisecond,
		Constraints:   camera.Constraints{FacingMode: camera.FacingEnvironment, Width: 16, Height: 9},
	})

	if status, err := c.Start(context.Background()); err != nil || status != camera.StatusLive {
		t.Fatalf("Start() = %s, %v", status, err)
	}
	ref, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if ref.Width != 16 || ref.Height != 9 {
		t.Errorf("Snapshot size = %dx%d", ref.Width, ref.Height)
	}
}
