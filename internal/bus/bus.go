// Package bus publishes session events (wake detected, command heard,
// reply spoken) to an external hub over a websocket, so other shards
// can follow what the assistant is doing.
package bus

import (
	"encoding/json"
	"sync"
	"time"

	log "log/slog"

	ws "github.com/gorilla/websocket"
)

type Event struct {
	From    string    `json:"from"`
	Kind    string    `json:"kind"`
	Content string    `json:"content,omitempty"`
	At      time.Time `json:"at"`
}

const (
	KindWake    = "wake"
	KindCommand = "command"
	KindReply   = "reply"
	KindError   = "error"
)

type Bus struct {
	mu   sync.Mutex
	conn *ws.Conn
	url  string
	from string
}

func Dial(url, from string) (*Bus, error) {
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	log.Info("connected to bus", "url", url)
	return &Bus{conn: conn, url: url, from: from}, nil
}

// Publish sends one event. A closed connection is redialed once; if
// that fails too the event is dropped with a warning, since the voice
// loop must not stall on a flaky hub.
func (b *Bus) Publish(kind, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	payload, err := json.Marshal(Event{
		From:    b.from,
		Kind:    kind,
		Content: content,
		At:      time.Now(),
	})
	if err != nil {
		log.Warn("failed to encode bus event", "err", err)
		return
	}

	if err := b.conn.WriteMessage(ws.TextMessage, payload); err == nil {
		return
	}

	if !b.redial() {
		log.Warn("bus unreachable, dropping event", "kind", kind)
		return
	}
	if err := b.conn.WriteMessage(ws.TextMessage, payload); err != nil {
		log.Warn("bus write failed after redial", "err", err)
	}
}

func (b *Bus) redial() bool {
	b.conn.Close()
	conn, _, err := ws.DefaultDialer.Dial(b.url, nil)
	if err != nil {
		return false
	}
	b.conn = conn
	log.Info("reconnected to bus", "url", b.url)
	return true
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn.Close()
}
