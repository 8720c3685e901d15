package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Moinster/SantaCam/internal/clock"
	"github.com/Moinster/SantaCam/internal/logsink"
)

// DefaultHeartbeat is the idle keepalive period.
const DefaultHeartbeat = 15 * time.Second

// clientBuffer is the number of events queued per client before drops.
const clientBuffer = 256

// Event is one SSE frame.
type Event struct {
	ID   int64       `json:"id,omitempty"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// logData is the payload of a "log" event.
type logData struct {
	ID      int64         `json:"id"`
	TS      time.Time     `json:"ts"`
	Level   logsink.Level `json:"level"`
	Message string        `json:"message"`
	Kind    logsink.Kind  `json:"kind,omitempty"`
	Line    string        `json:"line"`
}

func logEvent(e logsink.Event) Event {
	return Event{
		ID:   e.ID,
		Type: "log",
		Data: logData{ID: e.ID, TS: e.Time, Level: e.Level, Message: e.Message, Kind: e.Kind, Line: e.Line()},
	}
}

// Client is an SSE connection.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Context context.Context
	Cancel  context.CancelFunc
	LastID  int64
	Events  chan Event
	mu      sync.Mutex // protects Writer
}

// Hub relays the log sink to SSE clients, with Last-Event-ID resume against
// the sink's retained lines.
//
// Lock order: h.mu before Client.mu.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	sink      *logsink.Sink
	clock     clock.Clock
	heartbeat time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	cancelSub func()
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewHub creates a hub over sink. Call Start to begin relaying.
func NewHub(sink *logsink.Sink, clk clock.Clock, heartbeat time.Duration) *Hub {
	if clk == nil {
		clk = clock.New()
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Hub{
		clients:   make(map[string]*Client),
		sink:      sink,
		clock:     clk,
		heartbeat: heartbeat,
		done:      make(chan struct{}),
	}
}

// Start subscribes to the sink and starts the heartbeat.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		events, cancel := h.sink.Subscribe(clientBuffer)
		h.cancelSub = cancel

		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			for e := range events {
				h.Publish(logEvent(e))
			}
		}()
		go h.runHeartbeat()
	})
}

func (h *Hub) runHeartbeat() {
	defer h.wg.Done()
	ticker := h.clock.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C():
			h.Publish(Event{
				Type: "heartbeat",
				Data: map[string]string{"ts": h.clock.Now().UTC().Format(time.RFC3339)},
			})
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribe streams events to w until ctx ends or the hub stops. A
// Last-Event-ID header (or lastEventId query parameter) replays retained
// lines after that id; otherwise the full retained log is replayed.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	select {
	case <-h.done:
		return fmt.Errorf("telemetry hub stopped")
	default:
	}

	clientCtx, cancel := context.WithCancel(ctx)
	client := &Client{
		ID:      uuid.NewString(),
		Writer:  w,
		Context: clientCtx,
		Cancel:  cancel,
		LastID:  parseLastEventID(r),
		Events:  make(chan Event, clientBuffer),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	defer h.unregisterClient(client.ID)

	if err := h.sendEventToClient(client, h.readyEvent(client)); err != nil {
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	for _, e := range h.sink.EventsAfter(client.LastID) {
		if err := h.sendEventToClient(client, logEvent(e)); err != nil {
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	h.handleClient(client)
	return nil
}

func parseLastEventID(r *http.Request) int64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func (h *Hub) readyEvent(client *Client) Event {
	latest := int64(0)
	if e, ok := h.sink.Latest(); ok {
		latest = e.ID
	}
	return Event{
		Type: "ready",
		Data: map[string]interface{}{
			"clientId": client.ID,
			"capacity": h.sink.Capacity(),
			"latestId": latest,
		},
	}
}

// Publish queues event for every client. Clients with a full queue drop it.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.Context.Done():
		case c.Events <- event:
		default:
		}
	}
}

func (h *Hub) handleClient(client *Client) {
	for {
		select {
		case <-client.Context.Done():
			return
		case <-h.done:
			return
		case event := <-client.Events:
			if event.Type == "log" && event.ID <= client.LastID {
				continue
			}
			if err := h.sendEventToClient(client, event); err != nil {
				return
			}
		}
	}
}

// sendEventToClient writes one SSE frame and flushes it.
func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if event.Type == "log" && event.ID > client.LastID {
		client.LastID = event.ID
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *Hub) unregisterClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		c.Cancel()
		delete(h.clients, id)
	}
}

// Stop disconnects every client and waits for the relay goroutines, giving
// up after five seconds.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		if h.cancelSub != nil {
			h.cancelSub()
		}

		h.mu.Lock()
		for _, c := range h.clients {
			c.Cancel()
		}
		h.mu.Unlock()

		finished := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
		}
	})
}
