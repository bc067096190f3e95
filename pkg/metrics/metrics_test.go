package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	if d := timer.Duration(); d < 20*time.Millisecond {
		t.Errorf("Timer.Duration() = %v, want >= 20ms", d)
	}
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_route_seconds", Help: "test"},
		[]string{"route"},
	)

	NewTimer().ObserveDurationVec(vec, "recall_detail")

	if n := testutil.CollectAndCount(vec); n != 1 {
		t.Errorf("expected 1 series, got %d", n)
	}
}

func TestCountersExposed(t *testing.T) {
	Resolutions.WithLabelValues("hit").Inc()
	Generations.WithLabelValues("ok").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, name := range []string{"recallwatch_resolutions_total", "recallwatch_generations_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
