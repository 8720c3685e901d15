package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config represents the complete configuration for the sensor console
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Log       LogSinkConfig   `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Camera    CameraConfig    `yaml:"camera"`
	Pairing   PairingConfig   `yaml:"pairing"`
	Logging   LoggingConfig   `yaml:"logging"`
	Audit     AuditConfig     `yaml:"audit"`
}

// NetworkConfig holds HTTP server settings
type NetworkConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMs  int    `yaml:"readTimeoutMs"`
	WriteTimeoutMs int    `yaml:"writeTimeoutMs"` // 0 keeps SSE streams open
	IdleTimeoutMs  int    `yaml:"idleTimeoutMs"`
	StaticDir      string `yaml:"staticDir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

// LogSinkConfig holds the console log sink settings
type LogSinkConfig struct {
	Capacity int `yaml:"capacity"`
}

// TelemetryConfig holds the synthetic telemetry settings
type TelemetryConfig struct {
	TickMs      int   `yaml:"tickMs"`
	Seed        int64 `yaml:"seed"` // 0 seeds from the wall clock
	HeartbeatMs int   `yaml:"heartbeatMs"`
}

// CameraConfig holds camera session settings
type CameraConfig struct {
	Mode          string `yaml:"mode"` // synthetic | absent | denied | stalled
	DenialName    string `yaml:"denialName"`
	ReadyTimeout  int    `yaml:"readyTimeoutMs"`
	FrameInterval int    `yaml:"frameIntervalMs"`
	WarmupMs      int    `yaml:"warmupMs"`
	JPEGQuality   int    `yaml:"jpegQuality"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
}

// PairingConfig holds the remote pairing step delays
type PairingConfig struct {
	StepDelaysMs []int `yaml:"stepDelaysMs"`
}

// LoggingConfig holds process log settings
type LoggingConfig struct {
	File       string `yaml:"file"` // empty logs to stdout only
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AuditConfig holds the operator audit trail settings
type AuditConfig struct {
	Dir       string `yaml:"dir"`
	MaxSizeMB int    `yaml:"maxSizeMb"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := Default()

	// A missing default file is fine; defaults stand
	if err := loadFromFile(cfg, "config/default.yaml"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config/default.yaml: %w", err)
	}

	if path := os.Getenv("SANTACAM_CONFIG"); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the baseline configuration
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			Addr:           ":8080",
			ReadTimeoutMs:  10000,
			WriteTimeoutMs: 0,
			IdleTimeoutMs:  120000,
			MaxUploadBytes: 16 << 20,
		},
		Log: LogSinkConfig{
			Capacity: 220,
		},
		Telemetry: TelemetryConfig{
			TickMs:      520,
			HeartbeatMs: 15000,
		},
		Camera: CameraConfig{
			Mode:          "synthetic",
			DenialName:    "NotAllowedError",
			ReadyTimeout:  1500,
			FrameInterval: 16,
			WarmupMs:      200,
			JPEGQuality:   92,
			Width:         1280,
			Height:        720,
		},
		Pairing: PairingConfig{
			StepDelaysMs: []int{450, 620, 520, 680, 540, 680, 520},
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Audit: AuditConfig{
			Dir:       "logs",
			MaxSizeMB: 10,
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies SANTACAM_* environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("SANTACAM_ADDR"); addr != "" {
		cfg.Network.Addr = addr
	}

	if dir := os.Getenv("SANTACAM_STATIC_DIR"); dir != "" {
		cfg.Network.StaticDir = dir
	}

	if mode := os.Getenv("SANTACAM_CAMERA_MODE"); mode != "" {
		cfg.Camera.Mode = mode
	}

	if val := os.Getenv("SANTACAM_TELEMETRY_TICK_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			cfg.Telemetry.TickMs = ms
		}
	}

	if val := os.Getenv("SANTACAM_SEED"); val != "" {
		if seed, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Telemetry.Seed = seed
		}
	}

	if file := os.Getenv("SANTACAM_LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}

	if dir := os.Getenv("SANTACAM_AUDIT_DIR"); dir != "" {
		cfg.Audit.Dir = dir
	}
}
