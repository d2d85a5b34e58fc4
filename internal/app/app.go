// Package app wires all necromancer subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the API and drives the background loops, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithGraveyard,
// WithDevice, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gopxl/beep"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/necromancer/internal/altar"
	"github.com/MrWong99/necromancer/internal/config"
	"github.com/MrWong99/necromancer/internal/graveyard"
	"github.com/MrWong99/necromancer/internal/health"
	"github.com/MrWong99/necromancer/internal/horror"
	"github.com/MrWong99/necromancer/internal/mcp"
	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/internal/ritual"
	"github.com/MrWong99/necromancer/internal/sanity"
	"github.com/MrWong99/necromancer/internal/seance"
	"github.com/MrWong99/necromancer/internal/server"
	"github.com/MrWong99/necromancer/pkg/audio/device"
	"github.com/MrWong99/necromancer/pkg/provider/llm"
	"github.com/MrWong99/necromancer/pkg/provider/speech"
	"github.com/MrWong99/necromancer/pkg/provider/speech/voiced"
	"github.com/MrWong99/necromancer/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM llm.Provider

	// LLMName labels the LLM in metrics. Empty means the configured name.
	LLMName string

	TTS tts.Provider

	// Speech, when nil and TTS is set, is built as a voiced synthesizer
	// playing through the horror engine.
	Speech speech.Synthesizer
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Injected or built in New.
	graves     graveyard.Store
	dev        device.Device
	metrics    *observe.Metrics
	scrape     http.Handler
	level      *slog.LevelVar
	configPath string
	listener   net.Listener
	version    string

	engine    *horror.Engine
	performer *ritual.Performer
	medium    *seance.Medium
	meter     *sanity.Meter
	haunter   *sanity.Haunter
	altar     *altar.Altar
	mcp       *mcp.Server
	server    *server.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGraveyard injects a history store instead of opening one from config.
// The App does not close an injected store.
func WithGraveyard(s graveyard.Store) Option {
	return func(a *App) { a.graves = s }
}

// WithDevice injects the audio output instead of creating one from config.
func WithDevice(d device.Device) Option {
	return func(a *App) { a.dev = d }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler replaces the Prometheus scrape handler mounted at
// /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// WithLogLevel lets hot reloads change the level of the process logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConfigPath enables hot reload of the file at path while Run is active.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithListener serves the API on ln instead of listening on
// cfg.Server.ListenAddr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.scrape == nil {
		a.scrape = promhttp.Handler()
	}

	// ── 1. Graveyard ─────────────────────────────────────────────────────
	if err := a.initGraveyard(ctx); err != nil {
		return nil, fmt.Errorf("app: init graveyard: %w", err)
	}

	// ── 2. Horror engine + speech ────────────────────────────────────────
	if err := a.initEngine(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init engine: %w", err)
	}

	// ── 3. Ritual, séance and sanity ─────────────────────────────────────
	a.initSpirits()

	// ── 4. MCP tools ─────────────────────────────────────────────────────
	if cfg.MCP.Enabled {
		a.mcp = mcp.New(a.engine, a.altar, a.graves,
			mcp.WithMetrics(a.metrics),
			mcp.WithVersion(a.version),
		)
	}

	// ── 5. HTTP API ──────────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initGraveyard opens the configured history store unless one was injected.
func (a *App) initGraveyard(ctx context.Context) error {
	if a.graves != nil {
		return nil
	}
	g := a.cfg.Graveyard
	store, err := graveyard.Open(ctx, graveyard.Config{
		Backend: g.Backend,
		Path:    g.Path,
		DSN:     g.DSN,
		Key:     g.Key,
	})
	if err != nil {
		return err
	}
	a.graves = store
	a.closers = append(a.closers, store.Close)
	slog.Info("graveyard opened", "backend", g.Backend)
	return nil
}

// initEngine builds and starts the horror engine and attaches speech.
func (a *App) initEngine(ctx context.Context) error {
	au := a.cfg.Audio
	if a.dev == nil {
		dev, err := device.New(au.Backend, au.Buffer())
		if err != nil {
			return err
		}
		a.dev = dev
	}

	opts := []horror.Option{
		horror.WithDevice(a.dev),
		horror.WithMetrics(a.metrics),
	}
	if au.SampleRate > 0 {
		opts = append(opts, horror.WithSampleRate(beep.SampleRate(au.SampleRate)))
	}
	if au.PreferredVoice != "" {
		opts = append(opts, horror.WithPreferredVoice(au.PreferredVoice))
	}
	a.engine = horror.New(opts...)
	if err := a.engine.Initialize(); err != nil {
		return err
	}
	a.closers = append(a.closers, a.engine.Close)

	synth := a.providers.Speech
	if synth == nil && a.providers.TTS != nil {
		v, err := voiced.New(ctx, a.providers.TTS, a.engine, voiced.WithReadyHistogram(a.metrics.TTSDuration))
		if err != nil {
			slog.Warn("voiced speech unavailable, the demon stays silent", "err", err)
		} else {
			synth = v
		}
	}
	if synth != nil {
		a.engine.SetSynthesizer(synth)
	}
	return nil
}

// initSpirits builds the ritual performer, the séance medium, the sanity
// loops and the altar that ties them to the engine.
func (a *App) initSpirits() {
	name := a.providers.LLMName
	if name == "" {
		name = a.cfg.Providers.LLM.Name
	}
	a.performer = ritual.New(a.providers.LLM,
		ritual.WithSettings(a.cfg.Ritual.Settings()),
		ritual.WithMetrics(a.metrics),
		ritual.WithProviderName(name),
	)
	a.medium = seance.New(a.providers.LLM, seance.NoCode)

	sc := a.cfg.Sanity
	mopts := []sanity.MeterOption{
		sanity.WithMeterMetrics(a.metrics),
		sanity.WithDecayInterval(sc.DecayInterval),
	}
	if sc.Floor > 0 {
		mopts = append(mopts, sanity.WithFloor(sc.Floor))
	}
	a.meter = sanity.NewMeter(mopts...)
	a.haunter = sanity.NewHaunter(a.engine, a.meter)

	a.altar = altar.New(a.engine, a.performer, a.graves,
		altar.WithSanity(a.meter),
		altar.WithSpeakLimit(a.cfg.Ritual.SpeakLimit()),
	)
}

// initServer assembles the HTTP API with readiness checks.
func (a *App) initServer() {
	checks := health.New(
		health.Checker{Name: "graveyard", Check: func(ctx context.Context) error {
			_, err := a.graves.LoadAll(ctx)
			return err
		}},
		health.Func("audio", a.engine.Initialized, health.ErrUnavailable),
	)

	opts := []server.Option{
		server.WithMedium(a.medium),
		server.WithSanity(a.meter),
		server.WithMetrics(a.metrics),
		server.WithHealth(checks),
		server.WithMetricsHandler(a.scrape),
	}
	if a.cfg.Sanity.IsEnabled() {
		opts = append(opts, server.WithHaunter(a.haunter))
	}
	if a.mcp != nil {
		opts = append(opts, server.WithMCP(a.mcp.Handler()))
	}
	if tls := a.cfg.Server.TLS; tls != nil {
		opts = append(opts, server.WithTLS(tls.CertFile, tls.KeyFile))
	}
	a.server = server.New(a.engine, a.altar, a.graves, opts...)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the API and drives the sanity loops until ctx is cancelled or
// one of them fails. A clean stop returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Sanity.IsEnabled() {
		g.Go(func() error { return a.meter.Run(ctx) })
		g.Go(func() error { return a.haunter.Run(ctx) })
	}

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyReload)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			g.Go(func() error {
				<-ctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	g.Go(func() error {
		if a.listener != nil {
			return a.server.Serve(ctx, a.listener)
		}
		return a.server.ListenAndServe(ctx, a.cfg.Server.ListenAddr)
	})

	slog.Info("the necromancer awakens",
		"addr", a.addr(),
		"mcp", a.mcp != nil,
		"sanity", a.cfg.Sanity.IsEnabled(),
	)
	return g.Wait()
}

func (a *App) addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.cfg.Server.ListenAddr
}

// applyReload applies the hot-reloadable part of a changed config file.
func (a *App) applyReload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.RitualChanged {
		a.performer.SetSettings(d.NewRitual.Settings())
		a.altar.SetSpeakLimit(d.NewRitual.SpeakLimit())
		slog.Info("ritual settings reloaded")
	}
	if d.SanityChanged {
		if d.NewSanity.IsEnabled() != old.Sanity.IsEnabled() {
			slog.Warn("sanity.enabled changes take effect after a restart")
		}
		a.meter.Configure(d.NewSanity.Floor, d.NewSanity.DecayInterval)
		slog.Info("sanity settings reloaded", "floor", d.NewSanity.Floor, "decay_interval", d.NewSanity.DecayInterval)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.engine.StopSpeech()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers collected so far after a failed New.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}

// Engine returns the horror engine.
func (a *App) Engine() *horror.Engine { return a.engine }

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// ─── Helpers ─────────────────────────────────────────────────────────────────

// SlogLevel converts a config log level to a slog level. Unknown levels map
// to info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
