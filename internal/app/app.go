// Package app wires the memory service's subsystems into a running
// application: configuration, observability, the embedding provider, the
// PostgreSQL-backed storage layer, the core recall/remember service, the
// learned-retrieval layer, and the client-facing safeguard stack.
//
// App owns the full lifecycle: New creates and connects all subsystems,
// Shutdown tears them down in order. For testing, inject test doubles via
// functional options (WithStores, WithEmbedder, ...); any subsystem not
// injected is built from config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/agentmemory/memsvc/internal/config"
	"github.com/agentmemory/memsvc/internal/observe"
	"github.com/agentmemory/memsvc/pkg/client"
	"github.com/agentmemory/memsvc/pkg/dedup"
	"github.com/agentmemory/memsvc/pkg/embedding"
	"github.com/agentmemory/memsvc/pkg/embedding/ollama"
	"github.com/agentmemory/memsvc/pkg/embedding/openai"
	"github.com/agentmemory/memsvc/pkg/extractor"
	"github.com/agentmemory/memsvc/pkg/learned"
	"github.com/agentmemory/memsvc/pkg/memory/postgres"
	"github.com/agentmemory/memsvc/pkg/safeguard"
	"github.com/agentmemory/memsvc/pkg/service"
)

// defaultEmbeddingDimensions is used to size the vector column when the
// config doesn't pin one and the embedding provider's own default can't be
// known ahead of construction.
const defaultEmbeddingDimensions = 1536

// App owns every subsystem's lifetime and exposes the assembled [client.Client].
type App struct {
	cfg *config.Config
	log *slog.Logger

	registry *config.Registry
	embedder embedding.Provider

	store    *postgres.Store
	stores   service.Stores
	metrics  *observe.Metrics
	guardsMx *safeguard.Metrics

	dedupEngine *dedup.Engine
	extract     *extractor.Extractor
	svc         *service.Service
	guards      *safeguard.Stack
	client      *client.Client

	obsShutdown func(context.Context) error

	// closers are run in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for [New]. Used to inject test doubles.
type Option func(*App)

// WithStores injects the storage-layer dependencies instead of connecting to
// PostgreSQL from config.
func WithStores(stores service.Stores) Option {
	return func(a *App) { a.stores = stores }
}

// WithEmbedder injects an embedding provider instead of constructing one
// from the config's registry.
func WithEmbedder(p embedding.Provider) Option {
	return func(a *App) { a.embedder = p }
}

// WithRegistry overrides the default embedding-provider registry, e.g. to
// register an additional provider name before calling [New].
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics injects an [observe.Metrics] instead of one built from the
// global OTel meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// New wires an App together from cfg. Stores, embedder, and metrics may be
// injected via options; anything left unset is built from cfg.
//
// New performs all initialisation synchronously: embedding provider
// construction, PostgreSQL connection + migration, dedup/extractor/service
// assembly, learned-retrieval layer, and the safeguard stack.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	// ── 1. Observability ──────────────────────────────────────────────────
	if err := a.initObserve(ctx); err != nil {
		return nil, fmt.Errorf("app: init observe: %w", err)
	}

	// ── 2. Embedding provider ─────────────────────────────────────────────
	if err := a.initEmbedder(); err != nil {
		return nil, fmt.Errorf("app: init embedder: %w", err)
	}

	// ── 3. Storage layer ──────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 4. Dedup engine + entity extractor ───────────────────────────────
	if err := a.initDedup(); err != nil {
		return nil, fmt.Errorf("app: init dedup: %w", err)
	}
	a.extract = extractor.New()

	// ── 5. Core service ───────────────────────────────────────────────────
	a.svc = service.New(a.stores, a.embedder, a.dedupEngine, a.extract, a.serviceConfig())

	// ── 6. Learned-retrieval layer ────────────────────────────────────────
	learnedLayer, err := a.initLearned()
	if err != nil {
		return nil, fmt.Errorf("app: init learned: %w", err)
	}

	// ── 7. Safeguard stack ────────────────────────────────────────────────
	if err := a.initSafeguards(); err != nil {
		return nil, fmt.Errorf("app: init safeguards: %w", err)
	}

	// ── 8. Client ─────────────────────────────────────────────────────────
	a.client = client.New(a.svc, learnedLayer, a.guards, a.log)

	return a, nil
}

// ─── Init helpers ───────────────────────────────────────────────────────────

// initObserve sets up the OTel providers and builds a [observe.Metrics]
// unless one was injected.
func (a *App) initObserve(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: a.cfg.Server.InstanceID,
	})
	if err != nil {
		return err
	}
	a.obsShutdown = shutdown
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = metrics

	guardMetrics, err := safeguard.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.guardsMx = guardMetrics

	return nil
}

// initEmbedder resolves the embedding provider from the registry unless one
// was injected.
func (a *App) initEmbedder() error {
	if a.embedder != nil {
		return nil
	}
	if a.registry == nil {
		a.registry = defaultRegistry()
	}
	if a.cfg.Embedding.Provider == "" {
		return nil // no embedder configured; recall degrades to keyword+graph
	}

	p, err := a.registry.CreateEmbeddings(a.cfg.Embedding)
	if err != nil {
		return err
	}
	a.embedder = p
	return nil
}

// initStores connects to PostgreSQL and populates a.stores, unless stores
// were injected via [WithStores].
func (a *App) initStores(ctx context.Context) error {
	if a.stores.Vector != nil && a.stores.FullText != nil && a.stores.Graph != nil && a.stores.Sessions != nil {
		return nil // fully injected
	}

	if a.cfg.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required when stores are not injected")
	}

	dims := a.cfg.Embedding.Dimensions
	if dims == 0 {
		if a.embedder != nil {
			dims = a.embedder.Dimensions()
		}
		if dims == 0 {
			dims = defaultEmbeddingDimensions
		}
	}

	store, err := postgres.NewStore(ctx, a.cfg.Storage.PostgresDSN, dims)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error { store.Close(); return nil })

	a.stores = service.Stores{
		Vector:   store.Vector(),
		FullText: store.FullText(),
		Graph:    store.Graph(),
		Sessions: store.Sessions(),
	}
	return nil
}

// initDedup builds the dedup engine against the vector store.
func (a *App) initDedup() error {
	var checker dedup.Checker
	if a.stores.Vector != nil {
		checker = a.stores.Vector
	}
	engine, err := dedup.New(checker, dedup.Config{
		Threshold:    a.cfg.Dedup.Threshold,
		RecentWindow: a.cfg.Dedup.RecentWindow,
	})
	if err != nil {
		return err
	}
	a.dedupEngine = engine
	return nil
}

// serviceConfig translates the loaded config into a [service.Config].
func (a *App) serviceConfig() service.Config {
	return service.Config{
		VectorWeight:          a.cfg.Search.VectorWeight,
		TextWeight:            a.cfg.Search.TextWeight,
		CandidateMultiplier:   a.cfg.Search.CandidateMultiplier,
		GraphExpansionBuffer:  a.cfg.Graph.Buffer,
		OneHopScore:           a.cfg.Graph.OneHopScore,
		TwoHopScore:           a.cfg.Graph.TwoHopScore,
		GraphExpansionEnabled: a.cfg.Graph.ExpansionEnabled,
		EmbeddingProviderName: a.cfg.Embedding.Provider,
		InstanceID:            a.cfg.Server.InstanceID,
		Metrics:               a.metrics,
		Logger:                a.log,
	}
}

// initLearned builds the learned-retrieval layer against the store's
// persistence component. Returns nil when no storage layer is available
// (e.g. stores were injected without a *postgres.Store, as in unit tests).
func (a *App) initLearned() (*client.Learned, error) {
	if a.store == nil {
		return nil, nil
	}
	backing := a.store.Learned()

	queryCache, err := learned.NewQueryCache(backing, a.cfg.Learned.QueryCacheMinSuccesses)
	if err != nil {
		return nil, err
	}

	return &client.Learned{
		QueryCache: queryCache,
		Expander:   learned.NewExpander(backing),
		Feedback:   learned.NewFeedbackTracker(backing, a.cfg.Learned.FeedbackReinforce, a.cfg.Learned.FeedbackPenalize),
	}, nil
}

// initSafeguards builds the client-side safeguard stack.
func (a *App) initSafeguards() error {
	stack, err := safeguard.NewStack(safeguard.Config{
		MinQueryLength:      a.cfg.Safeguards.SmartTriggerMinQueryLength,
		SkipEmojiOnly:       a.cfg.Safeguards.SmartTriggerSkipEmojiOnly,
		MaxConsecutiveEmpty: a.cfg.Safeguards.CircuitBreakerMaxEmpty,
		BreakerCooldown:     a.cfg.Safeguards.CircuitBreakerCooldown,
		MaxTokensPerSnippet: a.cfg.Safeguards.MaxTokensPerSnippet,
		PerRecallCap:        a.cfg.Safeguards.PerRecallCap,
		PerTurnCap:          a.cfg.Safeguards.PerTurnCap,
		PerSessionCap:       a.cfg.Safeguards.PerSessionCap,
		DedupCooldown:       a.cfg.Safeguards.SessionDedupCooldown,
		MaxSessions:         a.cfg.Safeguards.SessionDedupMaxSessions,
	}, a.guardsMx)
	if err != nil {
		return err
	}
	a.guards = stack
	return nil
}

// defaultRegistry returns a [config.Registry] with the "openai" and "ollama"
// embedding factories registered.
func defaultRegistry() *config.Registry {
	r := config.NewRegistry()
	r.RegisterEmbeddings("openai", func(cfg config.EmbeddingConfig) (embedding.Provider, error) {
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(cfg.Timeout))
		}
		return openai.New(cfg.APIKey, cfg.ModelName, opts...)
	})
	r.RegisterEmbeddings("ollama", func(cfg config.EmbeddingConfig) (embedding.Provider, error) {
		var opts []ollama.Option
		if cfg.Timeout > 0 {
			opts = append(opts, ollama.WithTimeout(cfg.Timeout))
		}
		if cfg.Dimensions > 0 {
			opts = append(opts, ollama.WithDimensions(cfg.Dimensions))
		}
		return ollama.New(cfg.BaseURL, cfg.ModelName, opts...)
	})
	return r
}

// ─── Accessors ──────────────────────────────────────────────────────────────

// Client returns the assembled learned-retrieval client.
func (a *App) Client() *client.Client { return a.client }

// Service returns the core recall/remember service.
func (a *App) Service() *service.Service { return a.svc }

// Metrics returns the application's OpenTelemetry metrics handle.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Stores returns the storage-layer dependencies the App was wired with.
func (a *App) Stores() service.Stores { return a.stores }

// ─── Shutdown ───────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order: it is
// idempotent and safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "error", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
