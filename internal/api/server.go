package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer   *http.Server
	console      ConsolePort
	logs         LogPort
	stills       VaultPort
	telemetryHub TelemetryPort
	staticDir    string
	startTime    time.Time
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// NewServer creates a new API server. stills and telemetryHub may be nil.
func NewServer(console ConsolePort, logs LogPort, stills VaultPort, telemetryHub TelemetryPort, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	return &Server{
		console:      console,
		logs:         logs,
		stills:       stills,
		telemetryHub: telemetryHub,
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

// SetStaticDir serves the UI assets in dir at the root path.
func (s *Server) SetStaticDir(dir string) {
	s.staticDir = dir
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}

// GetServer returns the underlying HTTP server for testing.
func (s *Server) GetServer() *http.Server {
	return s.httpServer
}
