package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestResponseTimeTracker_CircularBuffer(t *testing.T) {
	tracker := NewResponseTimeTracker(3)

	for _, v := range []int{10, 20, 30, 40, 50} {
		tracker.Record(time.Duration(v) * time.Millisecond)
	}

	if tracker.count != 3 {
		t.Fatalf("expected 3 samples (max size), got %d", tracker.count)
	}
	// 10 and 20 were overwritten in place.
	expected := []time.Duration{40 * time.Millisecond, 50 * time.Millisecond, 30 * time.Millisecond}
	for i, v := range expected {
		if tracker.ring[i] != v {
			t.Errorf("sample %d: expected %v, got %v", i, v, tracker.ring[i])
		}
	}
}

func TestResponseTimeTracker_Percentiles(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if p := NewResponseTimeTracker(10).Percentiles(); p != nil {
			t.Errorf("expected nil percentiles, got %+v", p)
		}
	})

	t.Run("single sample", func(t *testing.T) {
		tracker := NewResponseTimeTracker(10)
		tracker.Record(4500 * time.Microsecond)

		p := tracker.Percentiles()
		if p.P50 != 4.5 || p.P95 != 4.5 || p.P99 != 4.5 {
			t.Errorf("expected every percentile 4.5, got %+v", p)
		}
	})

	t.Run("one to hundred", func(t *testing.T) {
		tracker := NewResponseTimeTracker(100)
		for i := 100; i >= 1; i-- {
			tracker.Record(time.Duration(i) * time.Millisecond)
		}

		p := tracker.Percentiles()
		if p.P50 != 50.5 {
			t.Errorf("expected P50 50.5, got %v", p.P50)
		}
		if p.P95 != 95.05 {
			t.Errorf("expected P95 95.05, got %v", p.P95)
		}
		if p.P99 != 99.01 {
			t.Errorf("expected P99 99.01, got %v", p.P99)
		}
	})
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	testCases := []struct {
		p        float64
		expected float64
	}{
		{0, 10},
		{25, 20},
		{50, 30},
		{60, 34},
		{100, 50},
	}

	for _, tc := range testCases {
		if got := percentile(sorted, tc.p); got != tc.expected {
			t.Errorf("p%v: expected %v, got %v", tc.p, tc.expected, got)
		}
	}

	if got := percentile(nil, 50); got != 0 {
		t.Errorf("expected 0 for empty slice, got %v", got)
	}
}

func TestRecordActionResponseTime(t *testing.T) {
	RecordActionResponseTime(1500 * time.Microsecond)

	if ActionResponseTimePercentiles() == nil {
		t.Fatal("expected percentiles after recording")
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := newResponseWriter(rr)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	rw.Write([]byte("ok"))

	if rw.statusCode != http.StatusCreated || rr.Code != http.StatusCreated {
		t.Errorf("expected 201 kept, got %d/%d", rw.statusCode, rr.Code)
	}
	if rw.Unwrap() != rr {
		t.Error("expected Unwrap to return the underlying writer")
	}
}

func TestRoutePattern(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Get("/api/games/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = routePattern(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/games/2024-03-02T10-04-05-120Z", nil))
	if seen != "/api/games/{id}" {
		t.Errorf("expected route pattern, got %q", seen)
	}

	bare := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routePattern(bare); got != "unmatched" {
		t.Errorf("expected unmatched, got %q", got)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/match/reset", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"path":"/api/match/reset"`) {
		t.Errorf("unexpected log line %s", out)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func BenchmarkResponseTimeTracker_Percentiles(b *testing.B) {
	tracker := NewResponseTimeTracker(10000)
	for i := 0; i < 10000; i++ {
		tracker.Record(time.Duration(i%100) * time.Millisecond)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tracker.Percentiles()
	}
}
