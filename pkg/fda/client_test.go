package fda

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/models"
)

const recallJSON = `{
  "meta": {"results": {"skip": 0, "limit": 1, "total": 1}},
  "results": [{
    "recall_number": "F-0543-2025",
    "report_date": "20250312",
    "recall_initiation_date": "20250220",
    "recalling_firm": "Acme Foods ",
    "product_description": "Peanut butter, 16 oz jars",
    "reason_for_recall": "Potential Salmonella contamination",
    "classification": "Class II",
    "distribution_pattern": "Nationwide",
    "status": "Ongoing",
    "state": "GA",
    "country": "United States"
  }]
}`

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.UpstreamConfig{
		BaseURL: srv.URL + "/food/enforcement.json",
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
		Retries: retries,
	}, nil)
}

func TestFetchRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/food/enforcement.json", r.URL.Path)
		assert.Equal(t, `recall_number:"F-0543-2025"`, r.URL.Query().Get("search"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(recallJSON))
	}, 0)

	rec, err := c.FetchRecord(context.Background(), "F-0543-2025")
	require.NoError(t, err)

	assert.Equal(t, "F-0543-2025", rec.RecallNumber)
	assert.Equal(t, "2025-03-12", rec.ReportDate)
	assert.Equal(t, "2025-02-20", rec.RecallInitiationDate)
	assert.Equal(t, "Acme Foods", rec.RecallingFirm)
	assert.Equal(t, "Ongoing", rec.RecallStatus)
	assert.Equal(t, models.StatusFields{
		ReportDate:          "2025-03-12",
		Classification:      "Class II",
		DistributionPattern: "Nationwide",
	}, rec.Status())
}

func TestFetchRecordInvalidIdentifierMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, 0)

	for _, id := range []string{"", "not-a-recall", "F-0543-2025\"OR\""} {
		_, err := c.FetchRecord(context.Background(), id)
		assert.ErrorIs(t, err, models.ErrInvalidIdentifier)
	}
	assert.Zero(t, calls.Load())
}

func TestFetchRecordNotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"No matches found!"}}`))
	}, 3)

	_, err := c.FetchRecord(context.Background(), "F-0543-2025")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.Equal(t, int32(1), calls.Load(), "not found is terminal and must not be retried")
}

func TestFetchRecordEmptyResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}, 0)

	_, err := c.FetchRecord(context.Background(), "F-0543-2025")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFetchRecordRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(recallJSON))
	}, 2)

	rec, err := c.FetchRecord(context.Background(), "F-0543-2025")
	require.NoError(t, err)
	assert.Equal(t, "Class II", rec.Classification)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchRecordUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, 1)

	_, err := c.FetchRecord(context.Background(), "F-0543-2025")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.False(t, errors.Is(err, models.ErrNotFound))
}

func TestFetchRecordMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [`))
	}, 0)

	_, err := c.FetchRecord(context.Background(), "F-0543-2025")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestFetchRecordTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 5)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchRecord(ctx, "F-0543-2025")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), time.Second, "retries must respect the caller deadline")
}

func TestFetchRecent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		assert.True(t, strings.HasPrefix(search, "report_date:[20250101 TO 20250410]"), search)
		assert.Equal(t, "300", r.URL.Query().Get("limit"))
		w.Write([]byte(recallJSON))
	}, 0)

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	recs, err := c.FetchRecent(context.Background(), since, until, 300)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "F-0543-2025", recs[0].RecallNumber)
}

func TestFetchRecentEmptyWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"No matches found!"}}`))
	}, 0)

	recs, err := c.FetchRecent(context.Background(), time.Now().AddDate(0, 0, -7), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2025-03-12", normalizeDate("20250312"))
	assert.Equal(t, "2025-03-12", normalizeDate("2025-03-12"))
	assert.Equal(t, "", normalizeDate(""))
	assert.Equal(t, "2025XX12", normalizeDate("2025XX12"))
}
