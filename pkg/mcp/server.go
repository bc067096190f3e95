// Package mcp exposes recall lookups over the Model Context Protocol on
// stdio, one JSON-RPC message per line.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pario-ai/recallwatch/pkg/log"
	"github.com/pario-ai/recallwatch/pkg/models"
)

// Resolver reconciles one recall.
type Resolver interface {
	Resolve(ctx context.Context, recallNumber string) (models.ResolvedSummary, error)
}

// Cache is the read side of the summary cache.
type Cache interface {
	List(ctx context.Context, limit int) ([]models.CachedSummary, error)
	Stats() (models.CacheStats, error)
}

// History is the read side of the regeneration log.
type History interface {
	Query(ctx context.Context, opts models.HistoryQueryOpts) ([]models.HistoryEvent, error)
	Stats(ctx context.Context) ([]models.HistoryStat, error)
}

// Server answers MCP requests. Cache and History may be nil.
type Server struct {
	resolver Resolver
	cache    Cache
	history  History
	version  string
	logger   zerolog.Logger
}

// New creates a Server.
func New(resolver Resolver, cache Cache, history History, version string) *Server {
	return &Server{
		resolver: resolver,
		cache:    cache,
		history:  history,
		version:  version,
		logger:   log.WithComponent("mcp"),
	}
}

// Run reads requests from r line by line and writes responses to w until r
// is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, rpcError(nil, CodeParseError, "parse error"))
			continue
		}
		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "recallwatch", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "tools/list":
		return result(req.ID, ToolsListResult{Tools: tools})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return rpcError(req.ID, CodeInvalidParams, "invalid params")
		}
		return result(req.ID, s.call(ctx, params))
	}
	if len(req.ID) == 0 {
		return nil
	}
	return rpcError(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal response")
		return
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Error().Err(err).Msg("write response")
	}
}
