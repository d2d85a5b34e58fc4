// Package server exposes the necromancer over a JSON HTTP API: rituals,
// the graveyard, the séance, direct control of the horror engine and the
// sanity meter.
//
// Every route runs under [observe.Middleware], so each request gets a span,
// a correlation ID and a duration sample.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrWong99/necromancer/internal/altar"
	"github.com/MrWong99/necromancer/internal/graveyard"
	"github.com/MrWong99/necromancer/internal/health"
	"github.com/MrWong99/necromancer/internal/horror"
	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/internal/ritual"
	"github.com/MrWong99/necromancer/internal/seance"
	"github.com/MrWong99/necromancer/pkg/audio/graph"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// shutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const shutdownTimeout = 10 * time.Second

// Audio is the part of the horror engine the API drives.
// [*horror.Engine] implements it.
type Audio interface {
	Play(kind horror.Kind) *graph.Voice
	PlayFeedMe()
	SetMuted(muted bool)
	Muted() bool
	Speak(text string)
	PauseSpeech()
	ResumeSpeech()
	StopSpeech()
}

// Summoner performs rituals end to end. [*altar.Altar] implements it.
type Summoner interface {
	Summon(ctx context.Context, req ritual.Request) (altar.Outcome, error)
}

// Medium answers questions about the code. [*seance.Medium] implements it.
type Medium interface {
	Ask(ctx context.Context, message string) (string, error)
	Reset(code string)
	History() []seance.Message
}

// Sanity is the meter shown to the user. [*sanity.Meter] implements it.
type Sanity interface {
	Level() int
	Restore()
}

// Haunter reacts to user presence. [*sanity.Haunter] implements it.
type Haunter interface {
	OnEnter()
	OnKeystroke()
}

// Server is the HTTP API. Create one with [New].
type Server struct {
	audio    Audio
	summoner Summoner
	graves   graveyard.Store

	medium  Medium
	sanity  Sanity
	haunter Haunter
	metrics *observe.Metrics
	health  *health.Handler
	scrape  http.Handler
	mcp     http.Handler

	certFile string
	keyFile  string
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMedium enables the séance routes.
func WithMedium(m Medium) Option {
	return func(s *Server) { s.medium = m }
}

// WithSanity enables the sanity routes.
func WithSanity(m Sanity) Option {
	return func(s *Server) { s.sanity = m }
}

// WithHaunter enables the presence routes.
func WithHaunter(h Haunter) Option {
	return func(s *Server) { s.haunter = h }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.scrape = h }
}

// WithMCP mounts h at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithTLS serves HTTPS with the given PEM files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// New returns a Server that plays effects on audio, summons rituals
// through summoner and shows the graveyard kept in graves.
func New(audio Audio, summoner Summoner, graves graveyard.Store, opts ...Option) *Server {
	s := &Server{
		audio:    audio,
		summoner: summoner,
		graves:   graves,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the root handler with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/rituals", s.handleRitual)
	mux.HandleFunc("POST /v1/rituals/bundle", s.handleBundle)
	mux.HandleFunc("GET /v1/examples", s.handleExamples)

	mux.HandleFunc("GET /v1/graveyard", s.handleListGraves)
	mux.HandleFunc("DELETE /v1/graveyard", s.handleClearGraves)

	mux.HandleFunc("POST /v1/audio/effects/{kind}", s.handleEffect)
	mux.HandleFunc("GET /v1/audio/mute", s.handleGetMute)
	mux.HandleFunc("POST /v1/audio/mute", s.handleSetMute)
	mux.HandleFunc("POST /v1/speech", s.handleSpeak)
	mux.HandleFunc("POST /v1/speech/{action}", s.handleSpeechControl)

	if s.medium != nil {
		mux.HandleFunc("GET /v1/seance", s.handleSeanceHistory)
		mux.HandleFunc("POST /v1/seance", s.handleAsk)
		mux.HandleFunc("DELETE /v1/seance", s.handleResetSeance)
	}
	if s.sanity != nil {
		mux.HandleFunc("GET /v1/sanity", s.handleGetSanity)
		mux.HandleFunc("POST /v1/sanity/restore", s.handleRestoreSanity)
	}
	if s.haunter != nil {
		mux.HandleFunc("POST /v1/presence/enter", s.handleEnter)
		mux.HandleFunc("POST /v1/presence/keystroke", s.handleKeystroke)
	}

	if s.health != nil {
		s.health.Register(mux)
	}
	if s.scrape != nil {
		mux.Handle("GET /metrics", s.scrape)
	}
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	return observe.Middleware(s.metrics)(mux)
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests for up to ten seconds. It returns nil after a clean
// shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", s.certFile != "")
		if s.certFile != "" {
			errCh <- srv.ServeTLS(ln, s.certFile, s.keyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	<-errCh
	return nil
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
