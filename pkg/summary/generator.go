// Package summary generates consumer summaries of recall records through
// OpenAI-compatible or Anthropic chat endpoints.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pario-ai/recallwatch/pkg/config"
	"github.com/pario-ai/recallwatch/pkg/log"
	"github.com/pario-ai/recallwatch/pkg/metrics"
	"github.com/pario-ai/recallwatch/pkg/models"
	"github.com/pario-ai/recallwatch/pkg/router"
)

const anthropicVersion = "2023-06-01"

// Generator produces summaries, trying providers in route order.
type Generator struct {
	router      *router.Router
	system      string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      zerolog.Logger
}

// New creates a Generator. A nil httpClient gets one with cfg.Timeout.
func New(cfg config.GeneratorConfig, httpClient *http.Client) *Generator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &Generator{
		router:      router.New(cfg),
		system:      system,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  httpClient,
		logger:      log.WithComponent("summary"),
	}
}

// statusError is a non-2xx reply from a provider.
type statusError struct {
	provider string
	code     int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider %s returned %d: %s", e.provider, e.code, e.body)
}

// Generate writes a summary for rec. All failures wrap
// models.ErrGenerationFailed.
func (g *Generator) Generate(ctx context.Context, rec models.RecallRecord) (models.Generation, error) {
	routes, err := g.router.Resolve("")
	if err != nil {
		return models.Generation{}, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	prompt, err := BuildPrompt(rec)
	if err != nil {
		return models.Generation{}, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	timer := metrics.NewTimer()
	logger := g.logger.With().Str("recall_number", rec.RecallNumber).Logger()

	var lastErr error
	for _, route := range routes {
		text, err := g.complete(ctx, route, prompt)
		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				err = fmt.Errorf("provider %s returned an empty summary", route.Provider.Name)
			}
		}
		if err == nil {
			timer.ObserveDuration(metrics.GenerationDuration)
			metrics.Generations.WithLabelValues("ok").Inc()
			logger.Debug().Str("provider", route.Provider.Name).Str("model", route.Model).
				Dur("latency", timer.Duration()).Msg("summary generated")
			return models.Generation{
				Summary:  models.Summary{Text: text, Sections: ParseSections(text)},
				Provider: route.Provider.Name,
				Model:    route.Model,
			}, nil
		}

		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		logger.Warn().Err(err).Str("provider", route.Provider.Name).Msg("provider failed, trying next")
	}

	metrics.Generations.WithLabelValues("error").Inc()
	return models.Generation{}, fmt.Errorf("%w: %v", models.ErrGenerationFailed, lastErr)
}

// isRetryable returns true if the error warrants trying the next route.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

func (g *Generator) complete(ctx context.Context, route router.Route, prompt string) (string, error) {
	if route.Provider.Type == "anthropic" {
		return g.completeAnthropic(ctx, route, prompt)
	}
	return g.completeOpenAI(ctx, route, prompt)
}

func (g *Generator) completeOpenAI(ctx context.Context, route router.Route, prompt string) (string, error) {
	req := models.ChatCompletionRequest{
		Model: route.Model,
		Messages: []models.ChatMessage{
			{Role: "system", Content: g.system},
			{Role: "user", Content: prompt},
		},
		Temperature: &g.temperature,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = &g.maxTokens
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	headers := map[string]string{}
	if route.Provider.APIKey != "" {
		headers["Authorization"] = "Bearer " + route.Provider.APIKey
	}
	respBody, err := g.post(ctx, route.Provider, "/v1/chat/completions", headers, body)
	if err != nil {
		return "", err
	}

	var resp models.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("provider %s returned no choices", route.Provider.Name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *Generator) completeAnthropic(ctx context.Context, route router.Route, prompt string) (string, error) {
	maxTokens := g.maxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	req := models.AnthropicRequest{
		Model:       route.Model,
		System:      g.system,
		Messages:    []models.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: &g.temperature,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         route.Provider.APIKey,
		"anthropic-version": anthropicVersion,
	}
	respBody, err := g.post(ctx, route.Provider, "/v1/messages", headers, body)
	if err != nil {
		return "", err
	}

	var resp models.AnthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String(), nil
}

// post sends a JSON request to one provider and returns the body of a 2xx
// reply.
func (g *Generator) post(ctx context.Context, p config.ProviderConfig, path string, headers map[string]string, body []byte) ([]byte, error) {
	target, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(target.String(), "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &statusError{provider: p.Name, code: resp.StatusCode, body: msg}
	}
	return respBody, nil
}
