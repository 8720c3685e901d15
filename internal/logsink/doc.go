// Package logsink implements the bounded console log shared by the camera
// controller, the pairing controller and the telemetry generator.
//
// The sink keeps the newest Capacity events in append order and hands each
// appended event to every subscriber, which is how the rendered view tracks
// the latest entry.
package logsink
