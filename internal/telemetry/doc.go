// Package telemetry fabricates the console's sensor chatter and streams the
// log to SSE clients.
package telemetry
