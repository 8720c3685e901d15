package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/pairing"
	"github.com/Moinster/SantaCam/internal/randutil"
)

// DefaultTick is the generator period.
const DefaultTick = 520 * time.Millisecond

// ErrRunning is returned by Run when the loop is already active.
var ErrRunning = errors.New("telemetry generator already running")

// Outcome names what a tick emitted.
type Outcome string

const (
	OutcomeBurst  Outcome = "burst"
	OutcomeMotion Outcome = "motion"
	OutcomeTopic  Outcome = "topic"
)

// RemoteState exposes the pairing state the generator modulates on.
type RemoteState interface {
	State() pairing.State
}

// Generator emits one batch of log lines per tick.
type Generator struct {
	sink   logsink.Appender
	src    randutil.Source
	remote RemoteState
	clock  clock.Clock
	tick   time.Duration

	mu      sync.Mutex
	seq     int64
	last    Readings
	running bool
}

// NewGenerator creates a stopped generator. A nil remote is treated as
// always offline.
func NewGenerator(sink logsink.Appender, src randutil.Source, remote RemoteState, clk clock.Clock, tick time.Duration) *Generator {
	if src == nil {
		src = randutil.NewSource(0)
	}
	if clk == nil {
		clk = clock.New()
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Generator{sink: sink, src: src, remote: remote, clock: clk, tick: tick}
}

// Seq returns the number of ticks run so far.
func (g *Generator) Seq() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// LastReadings returns the readings drawn on the most recent tick.
func (g *Generator) LastReadings() Readings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Run logs the startup line and ticks until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return ErrRunning
	}
	g.running = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
	}()

	g.sink.Append(logsink.LevelInfo, "Telemetry stream online. Recording session start.", logsink.KindMuted)

	ticker := g.clock.NewTicker(g.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			g.Tick()
		}
	}
}

func (g *Generator) online() bool {
	return g.remote != nil && g.remote.State() == pairing.StateOnline
}

// Tick advances the sequence and emits one burst, motion event or topic line.
func (g *Generator) Tick() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	seq := g.seq
	src := g.src

	readings := sampleReadings(src, seq)
	g.last = readings

	motion := src.Float64() < sampleMotionProb(src, seq)

	if g.online() {
		if src.Float64() < sampleBurstProb(src, seq) {
			g.emitBurst()
			return OutcomeBurst
		}
	}

	if motion {
		g.emitMotion()
		return OutcomeMotion
	}

	g.emitTopic(seq, readings)
	return OutcomeTopic
}

func (g *Generator) emitBurst() {
	src := g.src
	eventID := fmt.Sprintf("SC-%d", randutil.Floor(src, 10000, 99999))
	rssi := randutil.Floor(src, -71, -50)
	snr := randutil.Clamp(randutil.Range(src, 18, 36), 10, 40)
	luxDelta := randutil.Clamp(randutil.Range(src, 2.5, 14.0), 0.2, 40)
	rangeDelta := randutil.Clamp(randutil.Range(src, 18, 120), 4, 220)
	confidence := randutil.Clamp(0.78+randutil.Range(src, -0.06, 0.2), 0.45, 0.99)
	sector := randutil.Choice(src, []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"})

	g.sink.Append(logsink.LevelWarn,
		fmt.Sprintf("REMOTE  Motion trigger received. Event=%s  Sector=%s  ΔLUX=%.1f  ΔRANGE=%.0fmm", eventID, sector, luxDelta, rangeDelta),
		logsink.KindWarn)

	jitter := randutil.Clamp(randutil.Range(src, 0.6, 4.6), 0, 9)
	g.sink.Append(logsink.LevelInfo,
		fmt.Sprintf("REMOTE  Link health: RSSI=%ddBm  SNR=%.1fdB  Jitter=%.1fms", rssi, snr, jitter),
		logsink.KindMuted)

	g.sink.Append(logsink.LevelOK,
		fmt.Sprintf("CAPTURE Evidence frame latched. Confidence=%.1f%%  Mode=NIGHT_ASSIST", confidence*100),
		logsink.KindOK)

	g.sink.Append(logsink.LevelInfo,
		fmt.Sprintf("FORENSICS ChainOfCustody=SEALED  EvidenceID=%s  Hash=%s", eventID, randutil.Hex(src, 0xffffff, 6)),
		logsink.KindMuted)

	g.sink.Append(logsink.LevelOK,
		fmt.Sprintf("UPLOAD  Remote endpoint acknowledged. Archive=SECURE_VAULT  Retention=%s", randutil.Choice(src, []string{"72h", "7d", "30d"})),
		logsink.KindOK)
}

// anomalyThreshold is the motion confidence above which a follow-up line is logged.
const anomalyThreshold = 0.86

func (g *Generator) emitMotion() {
	src := g.src
	confidence := randutil.Clamp(0.55+randutil.Range(src, -0.1, 0.35), 0.25, 0.98)
	sector := randutil.Choice(src, []string{"N", "NE", "E", "SE", "S"})

	g.sink.Append(logsink.LevelWarn,
		fmt.Sprintf("MOTION  Trigger edge detected. Confidence=%.1f%%  Sector=%s", confidence*100, sector),
		logsink.KindWarn)
	if confidence > anomalyThreshold {
		g.sink.Append(logsink.LevelOK, "AUTO     Candidate anomaly flagged. Continuing observation.", logsink.KindOK)
	}
}

type topic func(g *Generator, seq int64, r Readings) (logsink.Kind, string)

var topics = []topic{
	func(g *Generator, seq int64, r Readings) (logsink.Kind, string) {
		return logsink.KindMuted, fmt.Sprintf("SENSORS  LUX=%.1f  RANGE=%.0fmm  TEMP=%.1fC  SNR=%.1fdB", r.Lux, r.Range, r.Temp, r.SNR)
	},
	func(g *Generator, seq int64, r Readings) (logsink.Kind, string) {
		edge := randutil.Range(g.src, 0.32, 0.79)
		drift := randutil.Range(g.src, 0.02, 0.09)
		return logsink.KindNone, fmt.Sprintf("VISION   Frame=%06d  EdgeMap=%.2f  ColorDrift=%.2f", seq, edge, drift)
	},
	func(g *Generator, seq int64, r Readings) (logsink.Kind, string) {
		roi := randutil.Choice(g.src, []string{"TRUE", "TRUE", "TRUE", "FALSE"})
		stab := randutil.Choice(g.src, []string{"ON", "ON", "ON", "CAL"})
		shutter := randutil.Choice(g.src, []string{"1/60", "1/50", "1/80"})
		return logsink.KindNone, fmt.Sprintf("TRACK   ROI_LOCK=%s  Stabilizer=%s  Shutter=%s", roi, stab, shutter)
	},
	func(g *Generator, seq int64, r Readings) (logsink.Kind, string) {
		uplink := randutil.Choice(g.src, []string{"READY", "READY", "SYNC"})
		return logsink.KindMuted, fmt.Sprintf("LINK     Endpoint=SC-REMOTE  Uplink=%s  Packets=%05d", uplink, 9000+seq)
	},
	func(g *Generator, seq int64, r Readings) (logsink.Kind, string) {
		hash := randutil.Hex(g.src, 0xffff, 4)
		buffer := randutil.Choice(g.src, []string{"A", "B", "C"})
		return logsink.KindNone, fmt.Sprintf("FORENSICS Hash=%s  ChainOfCustody=SEALED  Buffer=%s", hash, buffer)
	},
}

func (g *Generator) emitTopic(seq int64, r Readings) {
	t := randutil.Choice(g.src, topics)
	kind, msg := t(g, seq, r)
	g.sink.Append(logsink.LevelInfo, msg, kind)
}
