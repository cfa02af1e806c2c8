// Package notify fans user-facing notifications (toasts and game card refreshes)
// out to every connected listener.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Kind distinguishes toasts from card refresh signals.
type Kind string

const (
	KindToast Kind = "toast"
	KindCard  Kind = "card"
)

// Notification is one message delivered to listeners.
type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Level   Level     `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
	GameID  string    `json:"gameId,omitempty"`
	Time    time.Time `json:"time"`
}

type subCh = chan Notification

// Hub broadcasts notifications to subscribers. The zero value is not usable; use NewHub.
type Hub struct {
	mu   sync.Mutex
	subs map[subCh]struct{}
	now  func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[subCh]struct{}),
		now:  time.Now,
	}
}

// Subscribe registers a listener and returns its channel and an unsubscribe func.
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(subCh, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, unsub
}

// Subscribers reports the number of connected listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Notify shows a toast to every listener.
func (h *Hub) Notify(level Level, message string) {
	h.publish(Notification{Kind: KindToast, Level: level, Message: message})
}

// RefreshCard asks every listener to redraw the card of gameID.
func (h *Hub) RefreshCard(gameID string) {
	h.publish(Notification{Kind: KindCard, GameID: gameID})
}

// publish notifies all listeners (non-blocking).
func (h *Hub) publish(n Notification) {
	n.ID = uuid.NewString()
	n.Time = h.now().UTC()

	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default: // if client is slow, skip instead of blocking
		}
	}
	h.mu.Unlock()
}
