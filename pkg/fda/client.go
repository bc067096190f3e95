// Package fda queries the openFDA enforcement endpoint for recall records.
package fda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/log"
	"github.com/pario-ai/recallwatch/pkg/metrics"
	"github.com/pario-ai/recallwatch/pkg/models"
)

const baseBackoff = 250 * time.Millisecond

// Client reads recall records from openFDA. It is read-only.
type Client struct {
	baseURL    string
	apiKey     string
	retries    int
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg config.UpstreamConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		retries:    cfg.Retries,
		httpClient: httpClient,
		logger:     log.WithComponent("fda"),
	}
}

// FetchRecord returns the current record for a recall number.
// It fails with models.ErrInvalidIdentifier before any request is made,
// models.ErrNotFound if openFDA has no such recall, and
// models.ErrUpstreamUnavailable on transport or server failure.
func (c *Client) FetchRecord(ctx context.Context, recallNumber string) (models.RecallRecord, error) {
	if err := models.ValidateIdentifier(recallNumber); err != nil {
		return models.RecallRecord{}, err
	}

	q := url.Values{}
	q.Set("search", fmt.Sprintf(`recall_number:"%s"`, recallNumber))
	q.Set("limit", "1")

	results, err := c.query(ctx, q)
	if err != nil {
		return models.RecallRecord{}, err
	}
	for _, r := range results {
		if r.RecallNumber == recallNumber {
			return r.record(), nil
		}
	}
	return models.RecallRecord{}, fmt.Errorf("%w: %s", models.ErrNotFound, recallNumber)
}

// FetchRecent lists records reported within [since, until], newest first.
func (c *Client) FetchRecent(ctx context.Context, since, until time.Time, limit int) ([]models.RecallRecord, error) {
	q := url.Values{}
	q.Set("search", fmt.Sprintf("report_date:[%s TO %s]", since.Format("20060102"), until.Format("20060102")))
	q.Set("sort", "report_date:desc")
	q.Set("limit", strconv.Itoa(limit))

	results, err := c.query(ctx, q)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]models.RecallRecord, 0, len(results))
	for _, r := range results {
		records = append(records, r.record())
	}
	return records, nil
}

// query runs one search with retries on transient failures.
func (c *Client) query(ctx context.Context, q url.Values) ([]enforcementResult, error) {
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	target := c.baseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v (last error: %v)", models.ErrUpstreamUnavailable, ctx.Err(), lastErr)
			case <-time.After(delay):
			}
		}

		results, err := c.do(ctx, target)
		if err == nil {
			metrics.UpstreamRequests.WithLabelValues("ok").Inc()
			return results, nil
		}
		if errors.Is(err, models.ErrNotFound) {
			metrics.UpstreamRequests.WithLabelValues("not_found").Inc()
			return nil, err
		}
		lastErr = err
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("openFDA request failed")

		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, lastErr)
}

func (c *Client) do(ctx context.Context, target string) ([]enforcementResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error.Code != "" && e.Error.Code != "NOT_FOUND" {
			return nil, fmt.Errorf("openFDA %d: %s", resp.StatusCode, e.Error.Message)
		}
		return nil, models.ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("openFDA returned %s", resp.Status)
	}

	var out enforcementResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Results) == 0 {
		return nil, models.ErrNotFound
	}
	return out.Results, nil
}
