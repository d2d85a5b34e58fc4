// Package mcp serves the necromancer's abilities as Model Context Protocol
// tools, so an assistant can perform rituals, read the graveyard and haunt
// the room on the user's behalf.
//
// Tools are registered on an [mcpsdk.Server] from the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk) and exposed over the streamable
// HTTP transport by [Server.Handler].
//
// Typical usage:
//
//	s := mcp.New(engine, altar, graves)
//	mux.Handle("/mcp", s.Handler())
package mcp

import (
	"context"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/necromancer/internal/altar"
	"github.com/MrWong99/necromancer/internal/graveyard"
	"github.com/MrWong99/necromancer/internal/horror"
	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/internal/ritual"
	"github.com/MrWong99/necromancer/pkg/audio/graph"
)

// Audio is the part of the horror engine the tools drive.
// [*horror.Engine] implements it.
type Audio interface {
	Play(kind horror.Kind) *graph.Voice
	PlayFeedMe()
	Speak(text string)
}

// Summoner performs rituals end to end. [*altar.Altar] implements it.
type Summoner interface {
	Summon(ctx context.Context, req ritual.Request) (altar.Outcome, error)
}

// Server holds the MCP tool server. Create one with [New].
type Server struct {
	sdk      *mcpsdk.Server
	audio    Audio
	summoner Summoner
	graves   graveyard.Store
	metrics  *observe.Metrics
	version  string
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithVersion sets the implementation version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New builds the tool server and registers every tool.
func New(audio Audio, summoner Summoner, graves graveyard.Store, opts ...Option) *Server {
	s := &Server{
		audio:    audio,
		summoner: summoner,
		graves:   graves,
		version:  "dev",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.sdk = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "necromancer", Version: s.version}, nil)
	s.registerTools()
	return s
}

// SDK returns the underlying MCP server, for connecting other transports.
func (s *Server) SDK() *mcpsdk.Server { return s.sdk }

// Handler serves the tools over the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.sdk }, nil)
}

// addTool registers h under t with a hard timeout. Each call is traced and
// counted in [observe.Metrics.ToolCalls] and its latency recorded.
func addTool[In, Out any](s *Server, t *mcpsdk.Tool, timeout time.Duration, h mcpsdk.ToolHandlerFor[In, Out]) {
	mcpsdk.AddTool(s.sdk, t, func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ctx, span := observe.StartSpan(ctx, "mcp.tool."+t.Name)
		defer span.End()

		start := time.Now()
		res, out, err := h(ctx, req, in)
		s.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())

		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observe.Logger(ctx).Warn("mcp tool failed", "tool", t.Name, "err", err)
		}
		s.metrics.RecordToolCall(ctx, t.Name, status)
		return res, out, err
	})
}
