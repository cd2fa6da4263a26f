package monitoring

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetricsIsolatedRegistry(t *testing.T) {
	// Two collectors in one process must not collide on registration.
	a := NewMetrics()
	defer a.Close()
	b := NewMetrics()
	defer b.Close()

	a.RecordExecution("server-logic", StatusSuccess, time.Millisecond)
	b.RecordExecution("server-logic", StatusFailure, time.Millisecond)

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != 200 {
		t.Fatalf("metrics handler status = %d", w.Code)
	}
}

func TestMetricsClose(t *testing.T) {
	m := NewMetrics()

	// Overlapping shutdown paths may close twice.
	m.Close()
	m.Close()

	// Recording after close still works; only the updater stops.
	m.RecordMarkerRender(StatusSuccess)
}
