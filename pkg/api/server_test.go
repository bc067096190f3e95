package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/models"
)

type fakeResolver struct {
	res   models.ResolvedSummary
	err   error
	gotID string
}

func (f *fakeResolver) Resolve(_ context.Context, id string) (models.ResolvedSummary, error) {
	f.gotID = id
	return f.res, f.err
}

func resolvedSummary(src models.Source, stale bool) models.ResolvedSummary {
	res := models.ResolvedSummary{
		Record: models.RecallRecord{
			RecallNumber:        "F-0543-2025",
			ReportDate:          "2025-03-12",
			RecallingFirm:       "Acme Foods",
			Classification:      "Class II",
			ProductDescription:  "Peanut butter",
			ReasonForRecall:     "Salmonella",
			DistributionPattern: "Nationwide",
			RecallStatus:        "Ongoing",
		},
		Summary: models.Summary{
			Text:     "**Overview:** recall",
			Sections: []models.Section{{Name: models.SectionOverview, Body: "recall"}},
		},
		Source:    src,
		UpdatedAt: time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC),
	}
	if stale {
		res.Stale = true
		res.StaleReason = models.StaleUpstreamUnavailable
	}
	return res
}

func setupServer(t *testing.T, r *fakeResolver) *Server {
	t.Helper()
	return New(&config.Config{Listen: ":0", CORSOrigin: "https://recalls.example.com"}, r)
}

func TestRecallDetail(t *testing.T) {
	tests := []struct {
		name      string
		res       models.ResolvedSummary
		wantCache string
	}{
		{"hit", resolvedSummary(models.SourceCache, false), "hit"},
		{"miss", resolvedSummary(models.SourceGenerated, false), "miss"},
		{"stale", resolvedSummary(models.SourceCache, true), "stale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeResolver{res: tt.res}
			srv := setupServer(t, r)

			req := httptest.NewRequest(http.MethodGet, "/recall_detail/F-0543-2025", nil)
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if r.gotID != "F-0543-2025" {
				t.Errorf("expected identifier from path, got %q", r.gotID)
			}
			if got := w.Header().Get("X-Recall-Cache"); got != tt.wantCache {
				t.Errorf("expected X-Recall-Cache %s, got %s", tt.wantCache, got)
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "https://recalls.example.com" {
				t.Error("expected CORS origin header")
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("expected a generated request ID")
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			for _, key := range []string{"recall_number", "report_date", "recalling_firm", "classification",
				"product_description", "reason_for_recall", "distribution_pattern", "summary"} {
				if _, ok := body[key]; !ok {
					t.Errorf("missing %s in response", key)
				}
			}
			if body["summary"] != "**Overview:** recall" {
				t.Errorf("unexpected summary: %v", body["summary"])
			}
			if body["stale"] != tt.res.Stale {
				t.Errorf("expected stale=%v, got %v", tt.res.Stale, body["stale"])
			}
		})
	}
}

func TestRecallDetailErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid", models.ErrInvalidIdentifier, http.StatusNotFound},
		{"not found", fmt.Errorf("%w: F-0543-2025", models.ErrRecallNotFound), http.StatusNotFound},
		{"unavailable", fmt.Errorf("%w: timeout", models.ErrRecallUnavailable), http.StatusServiceUnavailable},
		{"storage", fmt.Errorf("%w: disk", models.ErrStorageUnavailable), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupServer(t, &fakeResolver{err: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/recall_detail/F-0543-2025", nil)
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var body struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
					Code    int    `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Type != "recallwatch_error" || body.Error.Code != tt.wantStatus {
				t.Errorf("unexpected error body: %s", w.Body.String())
			}
			if tt.wantStatus == http.StatusServiceUnavailable && w.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After on 503")
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	srv := setupServer(t, &fakeResolver{})

	req := httptest.NewRequest(http.MethodOptions, "/recall_detail/F-0543-2025", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "GET") {
		t.Error("expected GET in allowed methods")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := setupServer(t, &fakeResolver{})

	req := httptest.NewRequest(http.MethodPost, "/recall_detail/F-0543-2025", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := setupServer(t, &fakeResolver{res: resolvedSummary(models.SourceCache, false)})

	req := httptest.NewRequest(http.MethodGet, "/recall_detail/F-0543-2025", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request ID to be echoed, got %q", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := setupServer(t, &fakeResolver{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "recallwatch_api_requests_total") {
		t.Error("expected api request counter in metrics output")
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	srv := New(&config.Config{Listen: "127.0.0.1:0"}, &fakeResolver{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
