package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pario-ai/recallwatch/pkg/models"
)

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var handlers = map[string]toolHandler{
	"recall_detail":  handleDetail,
	"recall_cache":   handleCache,
	"recall_history": handleHistory,
}

var tools = []Tool{
	{
		Name:        "recall_detail",
		Description: "Return the current consumer summary for one food recall, regenerating it if the recall's classification, report date or distribution changed.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"recall_number"},
			"properties": map[string]any{
				"recall_number": map[string]any{
					"type":        "string",
					"description": "Recall number, e.g. F-0543-2025",
				},
			},
		},
	},
	{
		Name:        "recall_cache",
		Description: "Show summary cache statistics and the most recently written entries.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Entries to list (optional, default 20)",
				},
			},
		},
	},
	{
		Name:        "recall_history",
		Description: "Search summary regeneration history, or show counts by day and trigger.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"recall_number": map[string]any{
					"type":        "string",
					"description": "Filter by recall number (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
				"stats": map[string]any{
					"type":        "boolean",
					"description": "Return daily counts instead of events (optional)",
				},
			},
		},
	},
}

func (s *Server) call(ctx context.Context, params ToolCallParams) ToolCallResult {
	h, ok := handlers[params.Name]
	if !ok {
		return errorResult("unknown tool: " + params.Name)
	}
	return h(ctx, s, params.Arguments)
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

type detailArgs struct {
	RecallNumber string `json:"recall_number"`
}

func handleDetail(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args detailArgs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	if args.RecallNumber == "" {
		return errorResult("recall_number is required")
	}

	res, err := s.resolver.Resolve(ctx, args.RecallNumber)
	switch {
	case errors.Is(err, models.ErrInvalidIdentifier), errors.Is(err, models.ErrRecallNotFound):
		return errorResult("Recall not found: " + args.RecallNumber)
	case err != nil:
		return errorResult("Error resolving recall: " + err.Error())
	}
	return textResult(formatResolved(res))
}

type cacheArgs struct {
	Limit int `json:"limit"`
}

func handleCache(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	args := cacheArgs{Limit: 20}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}

	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	entries, err := s.cache.List(ctx, args.Limit)
	if err != nil {
		return errorResult("Error listing cache: " + err.Error())
	}
	return textResult(formatCacheStats(stats) + "\n" + formatEntries(entries))
}

type historyArgs struct {
	RecallNumber string `json:"recall_number"`
	Since        string `json:"since"`
	Stats        bool   `json:"stats"`
}

func handleHistory(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("Regeneration history is not enabled.")
	}
	var args historyArgs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}

	if args.Stats {
		stats, err := s.history.Stats(ctx)
		if err != nil {
			return errorResult("Error fetching history stats: " + err.Error())
		}
		return textResult(formatHistoryStats(stats))
	}

	opts := models.HistoryQueryOpts{RecallNumber: args.RecallNumber, Limit: 50}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}
	events, err := s.history.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching history: " + err.Error())
	}
	return textResult(formatEvents(events))
}
