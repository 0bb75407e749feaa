package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cjeanneret/iriscam/internal/events"
)

// scrape returns the text exposition of the default registry.
func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	return rr.Body.String()
}

type sinkRecorder struct {
	delivered []events.Payload
	closed    int
	openErr   error
}

func (s *sinkRecorder) Deliver(p events.Payload) { s.delivered = append(s.delivered, p) }
func (s *sinkRecorder) Open() error             { return s.openErr }
func (s *sinkRecorder) Close() error            { s.closed++; return nil }

func TestInstrument_CountsDeliveries(t *testing.T) {
	inner := &sinkRecorder{}
	h := events.NewStateHandler()

	if err := h.Listen(nil, Instrument("test_count", inner)); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	h.Emit(events.LifecycleRunning, nil)

	if len(inner.delivered) != 2 {
		t.Fatalf("inner got %d payloads, want 2 (replay + emit)", len(inner.delivered))
	}
	body := scrape(t)
	for _, want := range []string{
		`iriscam_events_deliveries_total{channel="test_count",state="disposed"} 1`,
		`iriscam_events_deliveries_total{channel="test_count",state="running"} 1`,
		`iriscam_events_subscribers{channel="test_count"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestInstrument_GaugeFollowsReplacement(t *testing.T) {
	first, second := &sinkRecorder{}, &sinkRecorder{}
	h := events.NewFocusExposureHandler()

	_ = h.Listen(nil, Instrument("test_gauge", first))
	_ = h.Listen(nil, Instrument("test_gauge", second))

	if first.closed != 1 {
		t.Errorf("replaced sink closed %d times, want 1", first.closed)
	}
	if !strings.Contains(scrape(t), `iriscam_events_subscribers{channel="test_gauge"} 1`) {
		t.Error("gauge should stay at 1 after replacement")
	}

	_ = h.Cancel(nil)
	if !strings.Contains(scrape(t), `iriscam_events_subscribers{channel="test_gauge"} 0`) {
		t.Error("gauge should drop to 0 after cancel")
	}
}

func TestInstrument_OpenFailurePropagates(t *testing.T) {
	refused := errors.New("not connected")
	h := events.NewStateHandler()

	err := h.Listen(nil, Instrument("test_refused", &sinkRecorder{openErr: refused}))
	if !errors.Is(err, refused) {
		t.Fatalf("Listen err = %v, want %v", err, refused)
	}
	if h.Active() {
		t.Error("refused sink must not be installed")
	}
	if strings.Contains(scrape(t), `iriscam_events_subscribers{channel="test_refused"}`) {
		t.Error("refused sink must not be counted")
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/probe/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/probe/42", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}

	body := scrape(t)
	if !strings.Contains(body, `iriscam_http_requests_total{method="GET",path="/probe/{id}",status="418"} 1`) {
		t.Errorf("expected request counter labelled with the route pattern")
	}
}

func TestStatusRecorder_Flush(t *testing.T) {
	rr := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}

	var w http.ResponseWriter = sr
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("statusRecorder should implement http.Flusher")
	}
	f.Flush()
	if !rr.Flushed {
		t.Error("Flush was not forwarded")
	}
}
