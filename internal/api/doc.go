// Package api implements the HTTP gateway of the sensor console.
//
// The gateway exposes the operator operations as HTTP/JSON commands under
// /api/v1, the console log as an SSE stream, and optionally serves the UI
// assets from a static directory.
package api
