package console

import (
	"context"
	"fmt"

	"github.com/Moinster/SantaCam/internal/audit"
	"github.com/Moinster/SantaCam/internal/camera"
	"github.com/Moinster/SantaCam/internal/camera/synthetic"
	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/config"
	"github.com/Moinster/SantaCam/internal/randutil"
	"github.com/Moinster/SantaCam/internal/vault"
)

// ProviderFor builds the capture provider selected by the camera mode. The
// absent mode yields nil: live capture is unsupported.
func ProviderFor(cfg config.CameraConfig, clk clock.Clock) camera.Provider {
	if cfg.Mode == "absent" {
		return nil
	}
	return synthetic.New(synthetic.Options{
		Mode:       cfg.Mode,
		DenialName: cfg.DenialName,
		Warmup:     config.Millis(cfg.WarmupMs),
		Width:      cfg.Width,
		Height:     cfg.Height,
		Clock:      clk,
	})
}

// NewFromConfig builds a console with its vault and audit trail from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Console, error) {
	clk := clock.New()

	store, err := vault.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open still vault: %w", err)
	}

	auditLog := audit.Discard()
	if cfg.Audit.Dir != "" {
		auditLog, err = audit.NewLogger(cfg.Audit.Dir, cfg.Audit.MaxSizeMB, Code)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open audit trail: %w", err)
		}
	}

	return New(Options{
		Provider: ProviderFor(cfg.Camera, clk),
		Camera: camera.Options{
			Clock:         clk,
			ReadyTimeout:  config.Millis(cfg.Camera.ReadyTimeout),
			FrameInterval: config.Millis(cfg.Camera.FrameInterval),
			JPEGQuality:   cfg.Camera.JPEGQuality,
			Constraints: camera.Constraints{
				FacingMode: camera.FacingEnvironment,
				Width:      cfg.Camera.Width,
				Height:     cfg.Camera.Height,
			},
		},
		Clock:          clk,
		Source:         randutil.NewSource(cfg.Telemetry.Seed),
		StepDelays:     cfg.Pairing.StepDelays(),
		SinkCapacity:   cfg.Log.Capacity,
		TelemetryTick:  config.Millis(cfg.Telemetry.TickMs),
		Heartbeat:      config.Millis(cfg.Telemetry.HeartbeatMs),
		Audit:          auditLog,
		Vault:          store,
		MaxUploadBytes: cfg.Network.MaxUploadBytes,
	}), nil
}
