package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/events"
	"github.com/cjeanneret/iriscam/internal/hw/camera"
	"github.com/cjeanneret/iriscam/internal/lens"
)

const (
	heartbeatInterval = 30 * time.Second
	wsWriteWait       = 10 * time.Second
)

// LensLister answers lens listings. *registry.Registry satisfies it.
type LensLister interface {
	ListAvailableLenses(includeFront bool) []lens.Record
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	Lenses       LensLister
	Camera       camera.Camera
	IncludeFront bool

	channels   *channelSet
	shootingMu sync.Mutex
	shooting   bool
	staticFS   fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If cam is nil, POST /shoot and /session/* return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, lenses LensLister, cam camera.Camera, includeFront bool, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		Lenses:       lenses,
		Camera:       cam,
		IncludeFront: includeFront,
		channels:     newChannelSet(),
		staticFS:     staticFS,
	}
}

// SetStreamHandler exposes h under GET /events/{name}, where name is the last
// path element of channel.
func (h *Handlers) SetStreamHandler(channel string, sh events.StreamHandler) error {
	if sh == nil {
		return fmt.Errorf("web: nil handler for %s", channel)
	}
	h.channels.set(channel, sh)
	return nil
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleLenses handles GET /lenses?include_front=bool.
func (h *Handlers) HandleLenses(w http.ResponseWriter, r *http.Request) {
	include := h.IncludeFront
	if v := r.URL.Query().Get("include_front"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "include_front must be a boolean")
			return
		}
		include = b
	}
	writeJSON(w, http.StatusOK, h.Lenses.ListAvailableLenses(include))
}

// HandleShoot handles POST /shoot. The shot runs in a goroutine; its outcome
// is reported on the state channels and the status stream.
func (h *Handlers) HandleShoot(w http.ResponseWriter, r *http.Request) {
	if h.Camera == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "camera not configured")
		return
	}

	h.shootingMu.Lock()
	if h.shooting {
		h.shootingMu.Unlock()
		writeJSONError(w, http.StatusConflict, "shot already in progress")
		return
	}
	h.shooting = true
	h.shootingMu.Unlock()

	go func() {
		defer func() {
			h.shootingMu.Lock()
			h.shooting = false
			h.shootingMu.Unlock()
		}()

		if err := h.Camera.Shoot(); err != nil {
			h.Broadcaster.Broadcast("error", "Shot failed: "+err.Error())
			debug.Errorf(err, "web: shot failed")
			return
		}
		h.Broadcaster.Broadcast("info", "Shot complete")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleSession handles POST /session/{action} with action start, stop or
// dispose.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	if h.Camera == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "camera not configured")
		return
	}

	action := chi.URLParam(r, "action")
	var op func() error
	switch action {
	case "start":
		op = h.Camera.Start
	case "stop":
		op = h.Camera.Stop
	case "dispose":
		op = h.Camera.Dispose
	default:
		writeJSONError(w, http.StatusBadRequest, "action must be start, stop or dispose")
		return
	}

	if err := op(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Broadcaster.Broadcast("info", "Session "+action)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "action": action})
}

// HandleEvents handles GET /events/{channel} as a Server-Sent Events stream.
// Only one client per channel is served; a new client ends the older stream.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channel")
	ch, ok := h.channels.get(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown channel")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sink, release, err := ch.subscribe()
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case p := <-sink.out:
			writeEvent(w, name, p)
			flusher.Flush()

		case <-sink.done:
			// Replaced: flush what was delivered before the takeover.
			for _, p := range sink.drain() {
				writeEvent(w, name, p)
			}
			w.Write([]byte(": replaced\n\n"))
			flusher.Flush()
			return

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, p events.Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		debug.Errorf(err, "web: encode %s payload", name)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// HandleEventsWS handles GET /events/{channel}/ws. Each payload is sent as
// one JSON text message. Replacement closes the connection with a normal
// closure.
func (h *Handlers) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channel")
	ch, ok := h.channels.get(name)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown channel")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Errorf(err, "web: websocket upgrade failed")
		return
	}
	defer conn.Close()

	sink, release, err := ch.subscribe()
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(wsWriteWait))
		return
	}
	defer release()

	// The read side only detects the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					debug.Errorf(err, "web: websocket read")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	send := func(p events.Payload) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(p) == nil
	}

	for {
		select {
		case p := <-sink.out:
			if !send(p) {
				return
			}

		case <-sink.done:
			for _, p := range sink.drain() {
				if !send(p) {
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"),
				time.Now().Add(wsWriteWait))
			return

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}

		case <-gone:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  status,
	})
}
