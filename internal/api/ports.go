package api

import (
	"context"
	"io"
	"net/http"

	"github.com/Moinster/SantaCam/internal/camera"
	"github.com/Moinster/SantaCam/internal/console"
	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/pairing"
	"github.com/Moinster/SantaCam/internal/still"
	"github.com/Moinster/SantaCam/internal/telemetry"
	"github.com/Moinster/SantaCam/internal/vault"
)

// ConsolePort defines the operator operations the API drives.
type ConsolePort interface {
	StartCamera(ctx context.Context) (camera.Status, error)
	StopCamera(ctx context.Context) error
	Snapshot(ctx context.Context) (*still.Ref, error)
	ClearStill(ctx context.Context)
	IngestStillFromFile(ctx context.Context, name, mimeType string, r io.Reader) (*still.Ref, error)
	ConnectRemote(ctx context.Context) (*pairing.Attempt, error)
	SetRemoteCapability(ctx context.Context, enabled bool) error
	SetPageHidden(ctx context.Context, hidden bool) error
	Still() *still.Ref
	View() console.View
}

// LogPort defines read access to the console log.
type LogPort interface {
	Events() []logsink.Event
	EventsAfter(lastID int64) []logsink.Event
}

// VaultPort defines read access to the still index.
type VaultPort interface {
	List(ctx context.Context, limit int) ([]vault.Record, error)
}

// TelemetryPort defines the minimal interface the API needs from the telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Compile-time assertions for port conformance
var _ ConsolePort = (*console.Console)(nil)
var _ LogPort = (*logsink.Sink)(nil)
var _ VaultPort = (*vault.Store)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
