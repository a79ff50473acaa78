// Package relay is an in-memory realtime server speaking the client
// protocol. It backs local development and end-to-end tests.
package relay

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/wire"
)

const (
	sendBuffer      = 256
	offlineLimit    = 500
	defaultPongWait = 60 * time.Second
)

type messageMeta struct {
	sender   string
	receiver string
}

// Hub routes frames between connected users.
type Hub struct {
	logger   *zap.Logger
	validate *validator.Validate
	pongWait time.Duration
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	sessions map[string]map[*peer]struct{}
	offline  map[string][]wire.NewMessage
	messages map[string]messageMeta
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:   logger,
		validate: validator.New(),
		pongWait: defaultPongWait,
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]map[*peer]struct{}),
		offline:  make(map[string][]wire.NewMessage),
		messages: make(map[string]messageMeta),
	}
}

// Online returns the ids of connected users.
func (h *Hub) Online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onlineLocked("")
}

func (h *Hub) onlineLocked(except string) []string {
	out := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}

// Pending returns how many messages wait for userID to connect.
func (h *Hub) Pending(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.offline[userID])
}

// register adds p and reports whether it is the user's first session.
func (h *Hub) register(p *peer) (first bool, queued []wire.NewMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[p.user]
	if !ok {
		set = make(map[*peer]struct{})
		h.sessions[p.user] = set
	}
	set[p] = struct{}{}
	queued = h.offline[p.user]
	delete(h.offline, p.user)
	return !ok, queued
}

// unregister removes p and reports whether it was the user's last session.
func (h *Hub) unregister(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[p.user]
	if !ok {
		return false
	}
	if _, ok := set[p]; !ok {
		return false
	}
	delete(set, p)
	if len(set) == 0 {
		delete(h.sessions, p.user)
		return true
	}
	return false
}

// deliver sends f to every session of userID except skip. It reports
// whether any session received it.
func (h *Hub) deliver(userID string, f wire.Frame, skip *peer) bool {
	h.mu.Lock()
	targets := make([]*peer, 0, len(h.sessions[userID]))
	for p := range h.sessions[userID] {
		if p != skip {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()
	sent := false
	for _, p := range targets {
		if p.push(f) {
			sent = true
		}
	}
	return sent
}

func (h *Hub) broadcast(f wire.Frame, except string) {
	h.mu.Lock()
	var targets []*peer
	for id, set := range h.sessions {
		if id == except {
			continue
		}
		for p := range set {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()
	for _, p := range targets {
		p.push(f)
	}
}

func (h *Hub) queueOffline(userID string, m wire.NewMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := append(h.offline[userID], m)
	if len(q) > offlineLimit {
		q = q[len(q)-offlineLimit:]
	}
	h.offline[userID] = q
}

func (h *Hub) recordMessage(id string, meta messageMeta) {
	h.mu.Lock()
	h.messages[id] = meta
	h.mu.Unlock()
}

func (h *Hub) lookup(id string) (messageMeta, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.messages[id]
	return m, ok
}

func (h *Hub) forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	meta, ok := h.messages[id]
	if !ok {
		return
	}
	delete(h.messages, id)
	q := h.offline[meta.receiver]
	for i, m := range q {
		if m.ID == id {
			h.offline[meta.receiver] = append(q[:i], q[i+1:]...)
			break
		}
	}
}
