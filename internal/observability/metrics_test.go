package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ApiInflightInc()
	m.ObserveAnswer(nil, nil, time.Millisecond)
	m.IncSelection("exploit", "easy")
	m.ObserveCalibration("updated", 10)
	m.AddMasteryRetries(2)
	m.IncIntegrityError()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("expected 503 from nil metrics handler, got %d", rec.Code)
	}
}

func TestAnswerOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	yes, no := true, false
	m.ObserveAnswer(&yes, nil, time.Millisecond)
	m.ObserveAnswer(&no, nil, time.Millisecond)
	m.ObserveAnswer(&no, nil, time.Millisecond)
	m.ObserveAnswer(nil, nil, time.Millisecond)
	m.ObserveAnswer(&yes, errors.New("boom"), time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`mq_answers_processed_total{outcome="correct"} 1`,
		`mq_answers_processed_total{outcome="incorrect"} 2`,
		`mq_answers_processed_total{outcome="skipped"} 1`,
		`mq_answers_processed_total{outcome="error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IncSelection("explore", "hard")
	m.ObserveAPI("POST", "/api/courses/:course_id/answers", StatusLabel(200), 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"mq_selection_decisions_total", "mq_api_requests_total"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in scrape output", want)
		}
	}
}
