package config

import (
	"fmt"
	"slices"
	"time"
)

// CameraModes lists the accepted camera.mode values
var CameraModes = []string{"synthetic", "absent", "denied", "stalled"}

// PairingStepCount is the fixed length of the pairing handshake
const PairingStepCount = 7

// Validate checks the configuration for values the console cannot run with
func Validate(cfg *Config) error {
	if cfg.Network.Addr == "" {
		return fmt.Errorf("network.addr must not be empty")
	}

	if cfg.Network.MaxUploadBytes <= 0 {
		return fmt.Errorf("network.maxUploadBytes %d must be positive", cfg.Network.MaxUploadBytes)
	}

	if cfg.Log.Capacity <= 0 || cfg.Log.Capacity > 10000 {
		return fmt.Errorf("log capacity %d is outside reasonable range [1, 10000]", cfg.Log.Capacity)
	}

	if cfg.Telemetry.TickMs < 10 || cfg.Telemetry.TickMs > 60000 {
		return fmt.Errorf("telemetry tick %dms is outside reasonable range [10, 60000]", cfg.Telemetry.TickMs)
	}

	if cfg.Telemetry.HeartbeatMs <= 0 {
		return fmt.Errorf("telemetry heartbeat %dms must be positive", cfg.Telemetry.HeartbeatMs)
	}

	if !slices.Contains(CameraModes, cfg.Camera.Mode) {
		return fmt.Errorf("invalid camera mode %s, must be one of: %v", cfg.Camera.Mode, CameraModes)
	}

	if cfg.Camera.ReadyTimeout <= 0 {
		return fmt.Errorf("camera readyTimeoutMs %d must be positive", cfg.Camera.ReadyTimeout)
	}

	if cfg.Camera.FrameInterval <= 0 || cfg.Camera.FrameInterval > cfg.Camera.ReadyTimeout {
		return fmt.Errorf("camera frameIntervalMs %d must be in [1, readyTimeoutMs]", cfg.Camera.FrameInterval)
	}

	if cfg.Camera.JPEGQuality < 1 || cfg.Camera.JPEGQuality > 100 {
		return fmt.Errorf("camera jpegQuality %d is outside range [1, 100]", cfg.Camera.JPEGQuality)
	}

	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return fmt.Errorf("camera dimensions %dx%d must be positive", cfg.Camera.Width, cfg.Camera.Height)
	}

	if len(cfg.Pairing.StepDelaysMs) != PairingStepCount {
		return fmt.Errorf("pairing needs exactly %d step delays, got %d", PairingStepCount, len(cfg.Pairing.StepDelaysMs))
	}
	for i, ms := range cfg.Pairing.StepDelaysMs {
		if ms < 0 {
			return fmt.Errorf("pairing step %d delay %dms must not be negative", i+1, ms)
		}
	}

	return nil
}

// Millis converts a millisecond setting to a time.Duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// StepDelays returns the pairing step delays as durations
func (c PairingConfig) StepDelays() []time.Duration {
	out := make([]time.Duration, len(c.StepDelaysMs))
	for i, ms := range c.StepDelaysMs {
		out[i] = Millis(ms)
	}
	return out
}
