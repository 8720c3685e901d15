package still

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source records where a still came from.
type Source string

const (
	SourceSnapshot Source = "snapshot"
	SourceUpload   Source = "upload"
)

// Ref is a displayable image resource. Snapshot refs own their encoded bytes;
// upload refs are temporary files removed on Release.
type Ref struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	MIME      string    `json:"mime"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`

	data []byte
	path string

	once       sync.Once
	releaseErr error
}

// NewEncoded wraps an in-memory encoded image.
func NewEncoded(source Source, mime string, data []byte, width, height int) *Ref {
	return &Ref{
		ID:        uuid.NewString(),
		Source:    source,
		MIME:      mime,
		Width:     width,
		Height:    height,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
		data:      data,
	}
}

// NewTemporary wraps a spooled file that is deleted when the ref is released.
func NewTemporary(source Source, mime, path string, size int64, width, height int) *Ref {
	return &Ref{
		ID:        uuid.NewString(),
		Source:    source,
		MIME:      mime,
		Width:     width,
		Height:    height,
		Size:      size,
		CreatedAt: time.Now(),
		path:      path,
	}
}

// Temporary reports whether the ref is backed by a temporary file.
func (r *Ref) Temporary() bool {
	return r.path != ""
}

// Open returns a reader over the image bytes.
func (r *Ref) Open() (io.ReadCloser, error) {
	if r.path == "" {
		return io.NopCloser(bytes.NewReader(r.data)), nil
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open still %s: %w", r.ID, err)
	}
	return f, nil
}

// Release frees the temporary resource behind the ref. It is safe to call
// more than once.
func (r *Ref) Release() error {
	r.once.Do(func() {
		if r.path == "" {
			return
		}
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			r.releaseErr = fmt.Errorf("failed to remove still %s: %w", r.ID, err)
		}
	})
	return r.releaseErr
}

// View is the display state of the still panel.
type View struct {
	Visible      bool `json:"visible"`
	ClearEnabled bool `json:"clearEnabled"`
}

// Observer is told about every ref placed on the holder. It must not call
// Set or Clear.
type Observer func(ref *Ref)

// Holder keeps at most one live still. Set and Clear are serialized so a
// ref is never released while observers of its Set are still running.
type Holder struct {
	swapMu    sync.Mutex
	mu        sync.RWMutex
	current   *Ref
	observers []Observer
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Observe registers fn to run after each Set.
func (h *Holder) Observe(fn Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

// Set replaces the current still, releasing the previous one.
func (h *Holder) Set(ref *Ref) {
	if ref == nil {
		h.Clear()
		return
	}

	h.swapMu.Lock()
	defer h.swapMu.Unlock()

	h.mu.Lock()
	prev := h.current
	h.current = ref
	observers := append([]Observer(nil), h.observers...)
	h.mu.Unlock()

	for _, fn := range observers {
		fn(ref)
	}
	if prev != nil && prev != ref {
		_ = prev.Release()
	}
}

// Clear removes the current still and hides the panel.
func (h *Holder) Clear() {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()

	h.mu.Lock()
	prev := h.current
	h.current = nil
	h.mu.Unlock()

	if prev != nil {
		_ = prev.Release()
	}
}

// Current returns the live still, or nil.
func (h *Holder) Current() *Ref {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// View reports whether the panel is shown and the clear control enabled.
func (h *Holder) View() View {
	h.mu.RLock()
	defer h.mu.RUnlock()
	shown := h.current != nil
	return View{Visible: shown, ClearEnabled: shown}
}
