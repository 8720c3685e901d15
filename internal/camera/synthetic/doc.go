// Package synthetic provides a capture provider that renders a test pattern,
// for hosts without a physical camera.
package synthetic
