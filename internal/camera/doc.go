// Package camera manages the live preview session: acquiring a capture
// stream, waiting for frames, and encoding snapshots into the still holder.
package camera
