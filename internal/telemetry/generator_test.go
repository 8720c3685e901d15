package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/pairing"
	"github.com/Moinster/SantaCam/internal/randutil"
)

// scripted replays a fixed sequence of draws, cycling when exhausted.
type scripted struct {
	vals []float64
	i    int
}

func (s *scripted) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

type staticRemote pairing.State

func (r staticRemote) State() pairing.State { return pairing.State(r) }

// readingsDraws are the noise draws consumed before the motion decision.
var readingsDraws = []float64{0.5, 0.5, 0.5, 0.5, 0.5}

func script(tail ...float64) *scripted {
	return &scripted{vals: append(append([]float64(nil), readingsDraws...), tail...)}
}

func TestBaseReadingsArePure(t *testing.T) {
	r := BaseReadings(0)
	if r.Lux != 18 || r.Range != 240 || r.Temp != 21.5 || r.SNR != 28 {
		t.Errorf("BaseReadings(0) = %+v", r)
	}
	if BaseReadings(42) != BaseReadings(42) {
		t.Error("BaseReadings is not deterministic")
	}
	if BaseMotionProb(0) != 0.08 || BaseBurstProb(0) != 0.018 {
		t.Errorf("base probabilities at 0 = %v, %v", BaseMotionProb(0), BaseBurstProb(0))
	}
}

func TestSampledReadingsStayClamped(t *testing.T) {
	src := randutil.NewSource(7)
	for seq := int64(1); seq < 5000; seq++ {
		r := sampleReadings(src, seq)
		if r.Lux < 0 || r.Lux > 120 || r.Range < 40 || r.Range > 600 ||
			r.Temp < 18 || r.Temp > 26 || r.SNR < 12 || r.SNR > 42 {
			t.Fatalf("seq %d readings out of bounds: %+v", seq, r)
		}
		if p := sampleBurstProb(src, seq); p < MinBurstProb || p > MaxBurstProb {
			t.Fatalf("seq %d burst probability %v out of bounds", seq, p)
		}
	}
}

func TestTopicLines(t *testing.T) {
	tests := []struct {
		name string
		pick float64
		want string
		kind logsink.Kind
	}{
		{"sensors", 0.0, "SENSORS  LUX=", logsink.KindMuted},
		{"vision", 0.2, "VISION   Frame=000001  EdgeMap=0.32  ColorDrift=0.02", logsink.KindNone},
		{"track", 0.4, "TRACK   ROI_LOCK=TRUE  Stabilizer=ON  Shutter=1/60", logsink.KindNone},
		{"link", 0.6, "LINK     Endpoint=SC-REMOTE  Uplink=READY  Packets=09001", logsink.KindMuted},
		{"forensics", 0.8, "FORENSICS Hash=0000  ChainOfCustody=SEALED  Buffer=A", logsink.KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := logsink.New(logsink.DefaultCapacity)
			// motion draw 0.99 never fires; topic-specific draws are all zero
			src := script(0.99, tt.pick, 0, 0, 0, 0)
			g := NewGenerator(sink, src, nil, nil, 0)

			if got := g.Tick(); got != OutcomeTopic {
				t.Fatalf("Tick() = %s, want topic", got)
			}
			events := sink.Events()
			if len(events) != 1 {
				t.Fatalf("Expected one line, got %d", len(events))
			}
			if !strings.HasPrefix(events[0].Message, tt.want) {
				t.Errorf("Message = %q, want prefix %q", events[0].Message, tt.want)
			}
			if events[0].Level != logsink.LevelInfo || events[0].Kind != tt.kind {
				t.Errorf("Level/kind = %s/%q", events[0].Level, events[0].Kind)
			}
		})
	}
}

func TestMotionLine(t *testing.T) {
	sink := logsink.New(logsink.DefaultCapacity)
	// motion draw 0 fires; confidence and sector draws are zero
	g := NewGenerator(sink, script(0, 0, 0), nil, nil, 0)

	if got := g.Tick(); got != OutcomeMotion {
		t.Fatalf("Tick() = %s, want motion", got)
	}
	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("Expected one line, got %d", len(events))
	}
	want := "MOTION  Trigger edge detected. Confidence=45.0%  Sector=N"
	if events[0].Message != want || events[0].Level != logsink.LevelWarn {
		t.Errorf("Got %s %q", events[0].Level, events[0].Message)
	}
}

func TestMotionAnomalyFollowUp(t *testing.T) {
	sink := logsink.New(logsink.DefaultCapacity)
	g := NewGenerator(sink, script(0, 0.99, 0), nil, nil, 0)

	g.Tick()

	events := sink.Events()
	if len(events) != 2 {
		t.Fatalf("Expected two lines, got %d", len(events))
	}
	if events[1].Level != logsink.LevelOK || events[1].Message != "AUTO     Candidate anomaly flagged. Continuing observation." {
		t.Errorf("Unexpected follow-up %+v", events[1])
	}
}

func TestBurstLines(t *testing.T) {
	sink := logsink.New(logsink.DefaultCapacity)
	g := NewGenerator(sink, &scripted{vals: []float64{0}}, staticRemote(pairing.StateOnline), nil, 0)

	if got := g.Tick(); got != OutcomeBurst {
		t.Fatalf("Tick() = %s, want burst", got)
	}

	events := sink.Events()
	if len(events) != 5 {
		t.Fatalf("Expected five lines, got %d", len(events))
	}
	wantLevels := []logsink.Level{logsink.LevelWarn, logsink.LevelInfo, logsink.LevelOK, logsink.LevelInfo, logsink.LevelOK}
	wantPrefixes := []string{"REMOTE  Motion trigger", "REMOTE  Link health", "CAPTURE Evidence frame", "FORENSICS ChainOfCustody", "UPLOAD  Remote endpoint"}
	for i, e := range events {
		if e.Level != wantLevels[i] || !strings.HasPrefix(e.Message, wantPrefixes[i]) {
			t.Errorf("line %d = %s %q", i, e.Level, e.Message)
		}
	}
	if events[0].Message != "REMOTE  Motion trigger received. Event=SC-10000  Sector=N  ΔLUX=2.5  ΔRANGE=18mm" {
		t.Errorf("Trigger line = %q", events[0].Message)
	}
	if events[3].Message != "FORENSICS ChainOfCustody=SEALED  EvidenceID=SC-10000  Hash=000000" {
		t.Errorf("Forensics line = %q", events[3].Message)
	}
	if !strings.HasSuffix(events[4].Message, "Retention=72h") {
		t.Errorf("Upload line = %q", events[4].Message)
	}
}

func TestOfflineNeverBursts(t *testing.T) {
	sink := logsink.New(16)
	g := NewGenerator(sink, randutil.NewSource(11), staticRemote(pairing.StateOffline), nil, 0)

	for i := 0; i < 20000; i++ {
		if g.Tick() == OutcomeBurst {
			t.Fatalf("Offline tick %d produced a burst", i)
		}
	}
}

func TestOnlineBurstFrequency(t *testing.T) {
	sink := logsink.New(16)
	g := NewGenerator(sink, randutil.NewSource(99), staticRemote(pairing.StateOnline), nil, 0)

	const ticks = 20000
	bursts := 0
	for i := 0; i < ticks; i++ {
		if g.Tick() == OutcomeBurst {
			bursts++
		}
	}

	freq := float64(bursts) / ticks
	if freq < MinBurstProb || freq > MaxBurstProb {
		t.Errorf("Burst frequency %.4f outside [%.3f, %.3f]", freq, MinBurstProb, MaxBurstProb)
	}
	if g.Seq() != ticks {
		t.Errorf("Seq() = %d, want %d", g.Seq(), ticks)
	}
}

func TestRunLogsStartupAndTicks(t *testing.T) {
	sink := logsink.New(logsink.DefaultCapacity)
	g := NewGenerator(sink, randutil.NewSource(3), nil, nil, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for g.Seq() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("generator did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	if err := g.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Errorf("second Run() = %v, want ErrRunning", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}

	first := sink.Events()[0]
	if first.Message != "Telemetry stream online. Recording session start." || first.Kind != logsink.KindMuted {
		t.Errorf("First line = %+v", first)
	}
}
