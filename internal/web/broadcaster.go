package web

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	statusClientBuffer = 64
	statusHistory      = 32
)

// StatusEvent is one operator-facing status line on /status/stream.
type StatusEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// StatusBroadcaster fans status lines out to every /status/stream client.
// Unlike the event channels it has any number of clients, and a new client
// first receives the most recent lines.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	recent  []string
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel primed with recent history and a cleanup
// function the caller must run when the client goes away.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, statusClientBuffer)

	b.mu.Lock()
	for _, msg := range b.recent {
		ch <- msg
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of connected clients.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends {"t":"...","l":level,"msg":msg} to all clients. A client
// whose buffer is full misses the line.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	data, err := json.Marshal(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, payload)
	if len(b.recent) > statusHistory {
		b.recent = b.recent[len(b.recent)-statusHistory:]
	}
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastWriter returns an io.Writer that forwards log lines to status
// clients. It is meant for debug.SetOutput: each JSON log event becomes one
// status line carrying the event's level and message.
func BroadcastWriter(b *StatusBroadcaster) io.Writer {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

// logLine is the subset of a log event shown to status clients.
type logLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var l logLine
		if json.Unmarshal([]byte(line), &l) != nil || l.Message == "" {
			w.b.BroadcastMsg(line)
			continue
		}
		msg := l.Message
		if l.Error != "" {
			msg += ": " + l.Error
		}
		if l.Level == "" {
			l.Level = "info"
		}
		w.b.Broadcast(l.Level, msg)
	}
	return len(p), nil
}
