package console

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Moinster/SantaCam/internal/audit"
	"github.com/Moinster/SantaCam/internal/camera"
	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/pairing"
	"github.com/Moinster/SantaCam/internal/randutil"
	"github.com/Moinster/SantaCam/internal/still"
	"github.com/Moinster/SantaCam/internal/telemetry"
	"github.com/Moinster/SantaCam/internal/vault"
)

// Options configure a Console. Zero values select the defaults of each
// component.
type Options struct {
	// Provider acquires camera streams; nil means live capture is unsupported.
	Provider       camera.Provider
	Camera         camera.Options
	Clock          clock.Clock
	Source         randutil.Source
	Sleeper        pairing.Sleeper
	StepDelays     []time.Duration
	SinkCapacity   int
	TelemetryTick  time.Duration
	Heartbeat      time.Duration
	Audit          *audit.Logger
	Vault          *vault.Store
	SpoolDir       string
	MaxUploadBytes int64
}

// Affordances are the enable flags of every operator control.
type Affordances struct {
	Stop             bool `json:"stop"`
	Snapshot         bool `json:"snapshot"`
	ClearStill       bool `json:"clearStill"`
	Connect          bool `json:"connect"`
	CapabilityToggle bool `json:"capabilityToggle"`
}

// View is the derived UI state.
type View struct {
	CameraStatus      camera.Status `json:"cameraStatus"`
	CameraBadge       string        `json:"cameraBadge"`
	CameraBadgeKind   logsink.Kind  `json:"cameraBadgeKind,omitempty"`
	OverlayVisible    bool          `json:"overlayVisible"`
	RemoteState       pairing.State `json:"remoteState"`
	RemoteBadge       string        `json:"remoteBadge"`
	CapabilityEnabled bool          `json:"capabilityEnabled"`
	StillVisible      bool          `json:"stillVisible"`
	Still             *still.Ref    `json:"still,omitempty"`
	PageHidden        bool          `json:"pageHidden"`
	TelemetrySeq      int64         `json:"telemetrySeq"`
	Affordances       Affordances   `json:"affordances"`
}

// Console is the process-wide owner of the sensor console.
type Console struct {
	sink      *logsink.Sink
	holder    *still.Holder
	camera    *camera.Controller
	pairing   *pairing.Controller
	generator *telemetry.Generator
	hub       *telemetry.Hub
	vault     *vault.Store
	audit     *audit.Logger

	spoolDir       string
	maxUploadBytes int64

	mu         sync.Mutex
	pageHidden bool
	closeOnce  sync.Once
}

// DefaultMaxUploadBytes bounds ingested stills.
const DefaultMaxUploadBytes = 16 << 20

// New wires the components together.
func New(opts Options) *Console {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	src := opts.Source
	if src == nil {
		src = randutil.NewSource(0)
	}
	capacity := opts.SinkCapacity
	if capacity <= 0 {
		capacity = logsink.DefaultCapacity
	}
	auditLog := opts.Audit
	if auditLog == nil {
		auditLog = audit.Discard()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = pairing.ClockSleeper{Clock: clk}
	}
	camOpts := opts.Camera
	if camOpts.Clock == nil {
		camOpts.Clock = clk
	}

	sink := logsink.New(capacity)
	holder := still.NewHolder()
	remote := pairing.NewController(sink, sleeper, src, opts.StepDelays)

	c := &Console{
		sink:           sink,
		holder:         holder,
		camera:         camera.NewController(opts.Provider, sink, holder, camOpts),
		pairing:        remote,
		generator:      telemetry.NewGenerator(sink, src, remote, clk, opts.TelemetryTick),
		hub:            telemetry.NewHub(sink, clk, opts.Heartbeat),
		vault:          opts.Vault,
		audit:          auditLog,
		spoolDir:       opts.SpoolDir,
		maxUploadBytes: maxUpload,
	}

	if c.vault != nil {
		holder.Observe(c.indexStill)
	}
	return c
}

func (c *Console) indexStill(ref *still.Ref) {
	if _, err := c.vault.Add(context.Background(), ref); err != nil {
		log.Printf("Failed to index still %s: %v", ref.ID, err)
	}
}

// Sink returns the console log.
func (c *Console) Sink() *logsink.Sink { return c.sink }

// Hub returns the SSE relay.
func (c *Console) Hub() *telemetry.Hub { return c.hub }

// Vault returns the still index, or nil.
func (c *Console) Vault() *vault.Store { return c.vault }

// Still returns the shown still, or nil.
func (c *Console) Still() *still.Ref { return c.holder.Current() }

// audited runs op and records it in the audit trail.
func (c *Console) audited(ctx context.Context, action string, params map[string]interface{}, op func() error) error {
	start := time.Now()
	err := op()
	c.audit.LogAction(ctx, action, params, err, time.Since(start))
	return err
}

// StartCamera starts a live camera session.
func (c *Console) StartCamera(ctx context.Context) (camera.Status, error) {
	var status camera.Status
	err := c.audited(ctx, "camera.start", nil, func() error {
		var err error
		status, err = c.camera.Start(ctx)
		return err
	})
	return status, err
}

// StopCamera ends the live camera session.
func (c *Console) StopCamera(ctx context.Context) error {
	return c.audited(ctx, "camera.stop", nil, c.camera.Stop)
}

// Snapshot captures the current frame as the still.
func (c *Console) Snapshot(ctx context.Context) (*still.Ref, error) {
	var ref *still.Ref
	err := c.audited(ctx, "camera.snapshot", nil, func() error {
		var err error
		ref, err = c.camera.Snapshot()
		return err
	})
	return ref, err
}

// ClearStill hides the still panel.
func (c *Console) ClearStill(ctx context.Context) {
	_ = c.audited(ctx, "still.clear", nil, func() error {
		c.holder.Clear()
		return nil
	})
}

// ConnectRemote starts a pairing attempt.
func (c *Console) ConnectRemote(ctx context.Context) (*pairing.Attempt, error) {
	var attempt *pairing.Attempt
	err := c.audited(ctx, "remote.connect", nil, func() error {
		var err error
		attempt, err = c.pairing.Connect()
		return err
	})
	return attempt, err
}

// SetRemoteCapability records the sensor board toggle.
func (c *Console) SetRemoteCapability(ctx context.Context, enabled bool) error {
	params := map[string]interface{}{"enabled": enabled}
	return c.audited(ctx, "remote.capability", params, func() error {
		return c.pairing.SetCapability(enabled)
	})
}

// SetPageHidden consumes a page-visibility signal. Hiding the page stops a
// held camera session; telemetry keeps running.
func (c *Console) SetPageHidden(ctx context.Context, hidden bool) error {
	params := map[string]interface{}{"hidden": hidden}
	return c.audited(ctx, "page.visibility", params, func() error {
		c.mu.Lock()
		c.pageHidden = hidden
		c.mu.Unlock()

		if hidden && c.camera.HasSession() {
			if err := c.camera.Stop(); err != nil && !errors.Is(err, camera.ErrNoSession) {
				return err
			}
		}
		return nil
	})
}

// View derives the UI state from every component.
func (c *Console) View() View {
	status := c.camera.Status()
	badge, kind := status.Badge()
	cam := c.camera.Affordances()
	remote := c.pairing.Affordances()
	stillView := c.holder.View()
	state := c.pairing.State()

	c.mu.Lock()
	hidden := c.pageHidden
	c.mu.Unlock()

	return View{
		CameraStatus:      status,
		CameraBadge:       badge,
		CameraBadgeKind:   kind,
		OverlayVisible:    c.camera.OverlayVisible(),
		RemoteState:       state,
		RemoteBadge:       state.Badge(),
		CapabilityEnabled: c.pairing.Capability(),
		StillVisible:      stillView.Visible,
		Still:             c.holder.Current(),
		PageHidden:        hidden,
		TelemetrySeq:      c.generator.Seq(),
		Affordances: Affordances{
			Stop:             cam.Stop,
			Snapshot:         cam.Snapshot,
			ClearStill:       stillView.ClearEnabled,
			Connect:          remote.Connect,
			CapabilityToggle: remote.CapabilityToggle,
		},
	}
}

// Run starts the SSE relay and drives telemetry until ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	c.hub.Start()
	return c.generator.Run(ctx)
}

// Close cancels pairing, releases the camera and still, and stops the relay.
// It also closes the vault and audit trail handed to New.
func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.pairing.Close()
		c.camera.Close()
		c.hub.Stop()
		c.holder.Clear()
		if c.vault != nil {
			if cerr := c.vault.Close(); cerr != nil {
				err = cerr
			}
		}
		if cerr := c.audit.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
