// Package streamhub implements the Stream Hub (spec §4.7): one SSE channel
// per sessionId, fed by the Session Runtime and drained by HTTP handlers.
// Generalized from the teacher's plain-JSON response model — tanrar-rpg-backend
// has no streaming layer at all — by adopting the pack's SSE vocabulary
// (teradata-labs-loom's r3labs/sse client shows the wire format this engine
// must produce on the other end) over stdlib http.Flusher, since every SSE
// dependency in the example pack is a client, not a producer.
package streamhub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"llmrpg/internal/logging"
)

// EventType is the closed vocabulary of §4.7.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventActionReceived    EventType = "action_received"
	EventProcessing        EventType = "processing"
	EventResponseChunk     EventType = "response_chunk"
	EventStream            EventType = "stream"
	EventStateUpdate       EventType = "state_update"
	EventActionOptions     EventType = "action_options"
	EventNewMission        EventType = "new_mission"
	EventMissionCompleted  EventType = "mission_completed"
	EventMissionAbandoned  EventType = "mission_abandoned"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Event is one frame of the wire protocol: `data: <json of Event>\n\n`.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

const subscriberBuffer = 64
const defaultHeartbeatInterval = 30 * time.Second

type subscriber struct {
	ch     chan Event
	closed bool
}

type sessionChannel struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

// Hub registers at most one logical channel per sessionId and fans published
// events out to every live subscriber for that session.
type Hub struct {
	mu                sync.Mutex
	sessions          map[string]*sessionChannel
	heartbeatInterval time.Duration
}

// New builds an empty Hub that sends heartbeat frames at the default
// interval; use NewWithHeartbeat to override it from config.
func New() *Hub {
	return NewWithHeartbeat(defaultHeartbeatInterval)
}

// NewWithHeartbeat builds an empty Hub using interval for its SSE keepalive
// heartbeat frames (spec §4.7), sourced from config.StreamHeartbeatInterval.
func NewWithHeartbeat(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &Hub{sessions: make(map[string]*sessionChannel), heartbeatInterval: interval}
}

func (h *Hub) sessionFor(sessionID string) *sessionChannel {
	h.mu.Lock()
	defer h.mu.Unlock()
	sc, ok := h.sessions[sessionID]
	if !ok {
		sc = &sessionChannel{subs: make(map[int]*subscriber)}
		h.sessions[sessionID] = sc
	}
	return sc
}

// Subscribe registers a new subscriber for sessionID and returns its event
// channel plus an unsubscribe func. Sends the connected event immediately.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	sc := h.sessionFor(sessionID)

	sc.mu.Lock()
	id := sc.next
	sc.next++
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	sc.subs[id] = sub
	sc.mu.Unlock()

	sub.ch <- Event{Type: EventConnected, Data: map[string]any{
		"sessionId": sessionID,
		"ts":        time.Now().UTC().Format(time.RFC3339),
	}}

	unsubscribe := func() {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		if s, ok := sc.subs[id]; ok {
			delete(sc.subs, id)
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
		}
	}
	return sub.ch, unsubscribe
}

// Publish delivers ev to every current subscriber of sessionID, without
// blocking the Runtime: a full subscriber buffer drops the event and emits a
// follow-up error event to that subscriber only (spec §5).
func (h *Hub) Publish(sessionID string, ev Event) {
	sc := h.sessionFor(sessionID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for id, sub := range sc.subs {
		if sub.closed {
			continue
		}
		// The last buffer slot is kept for the overflow error event, so a
		// subscriber whose buffer is otherwise full still receives it.
		if len(sub.ch) < cap(sub.ch)-1 {
			select {
			case sub.ch <- ev:
				continue
			default:
			}
		}
		logging.Warn("stream subscriber buffer full, dropping event",
			zap.String("sessionId", sessionID), zap.String("eventType", string(ev.Type)))
		select {
		case sub.ch <- Event{Type: EventError, Data: map[string]any{"error": "subscriber buffer overflow, event dropped"}}:
		default:
		}
		_ = id
	}
}

// HasSubscribers reports whether sessionID currently has at least one live
// subscriber.
func (h *Hub) HasSubscribers(sessionID string) bool {
	sc := h.sessionFor(sessionID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.subs) > 0
}

// ServeHTTP writes SSE frames for sessionID to w until the request context
// is done, a write fails, or its subscription channel is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, sessionID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch, unsubscribe := h.Subscribe(sessionID)
	defer unsubscribe()

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ":heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
