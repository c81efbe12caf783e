package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ersonp/newsground/internal/application/handlers"
	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/domain/services"
	"github.com/ersonp/newsground/internal/infrastructure/config"
	embedder "github.com/ersonp/newsground/internal/infrastructure/embedder/openai"
	"github.com/ersonp/newsground/internal/infrastructure/logging"
	"github.com/ersonp/newsground/internal/infrastructure/queue/memory"
	redisqueue "github.com/ersonp/newsground/internal/infrastructure/queue/redis"
	"github.com/ersonp/newsground/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/newsground/internal/infrastructure/vectordb/qdrant"
	"github.com/ersonp/newsground/internal/infrastructure/websearch"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config   *config.Config
	BasePath string
	Logger   *slog.Logger

	Entity      *handlers.EntityHandler
	Affiliation *handlers.AffiliationHandler
	Import      *handlers.ImportHandler
	Resolve     *handlers.ResolveHandler
	Ground      *handlers.GroundHandler
	Lookup      *handlers.LookupHandler
	// Index is nil unless the semantic index was requested.
	Index *handlers.IndexHandler
}

// depsOptions selects the optional parts of the dependency graph.
type depsOptions struct {
	// semantic connects the embedder and Qdrant even when the resolver
	// does not search them.
	semantic bool
	// queue opens the configured mention queue.
	queue bool

	escalate           bool
	escalateCandidates bool
	force              bool
	workers            int
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, opts depsOptions, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if globalVerbose {
		cfg.Log.Level = "debug"
	}

	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closer.Close()

	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: cfg.SQLitePath(cwd)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}
	if !repo.HasFullText() {
		logger.Warn("sqlite build lacks FTS5, full-text alias search falls back to LIKE")
	}

	entityService := services.NewEntityService(repo, logger)
	searchers := []ports.CandidateSearcher{sqlite.NewAliasSearcher(repo)}

	var semantic *services.SemanticIndex
	if opts.semantic || cfg.Resolver.Semantic {
		vectors, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer vectors.Close()

		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		semantic = services.NewSemanticIndex(emb, vectors, vectors, embedder.VectorSize, logger)
		entityService.WithAliasIndexer(semantic)
		if cfg.Resolver.Semantic {
			searchers = append(searchers, semantic)
		}
	}

	resolver := services.NewResolver(repo, resolverConfig(cfg.Resolver), logger, searchers...)
	providers := websearch.NewProviders(cfg.Providers, nil, logger)
	lookup := services.NewLookupService(repo, providers, cascadeConfig(cfg), logger)

	workers := opts.workers
	if workers < 1 {
		workers = cfg.Workers.Count
	}

	var queue ports.MentionQueue = memory.NewQueue()
	if opts.queue {
		q, closeQueue, err := openQueue(ctx, cfg.Workers, logger)
		if err != nil {
			return err
		}
		defer closeQueue.Close()
		queue = q
	}

	grounding := services.NewGroundingService(resolver, lookup, services.GroundingOptions{
		Escalate:           opts.escalate,
		EscalateCandidates: opts.escalateCandidates,
		Force:              opts.force || cfg.Lookup.Force,
	}, logger)

	deps := &Deps{
		Config:      cfg,
		BasePath:    cwd,
		Logger:      logger,
		Entity:      handlers.NewEntityHandler(entityService),
		Affiliation: handlers.NewAffiliationHandler(entityService),
		Import:      handlers.NewImportHandler(services.NewImportService(entityService)),
		Resolve:     handlers.NewResolveHandler(resolver),
		Ground:      handlers.NewGroundHandler(grounding, queue, workers),
		Lookup:      handlers.NewLookupHandler(lookup, entityService),
	}
	if semantic != nil {
		deps.Index = handlers.NewIndexHandler(semantic, repo)
	}

	return fn(deps)
}

// openQueue returns the mention queue named in the worker settings.
func openQueue(ctx context.Context, cfg config.WorkersConfig, logger *slog.Logger) (ports.MentionQueue, io.Closer, error) {
	switch cfg.Queue {
	case "", "memory":
		return memory.NewQueue(), closerFunc(func() error { return nil }), nil
	case "redis":
		client, err := redisqueue.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Debug("using redis mention queue", "key", cfg.RedisKey)
		return redisqueue.NewQueue(client, cfg.RedisKey), closerFunc(client.Close), nil
	default:
		return nil, nil, fmt.Errorf("unknown queue %q (valid: memory, redis)", cfg.Queue)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// resolverConfig maps resolver settings onto the service thresholds.
// Unset values keep their defaults.
func resolverConfig(c config.ResolverConfig) services.ResolverConfig {
	rc := services.DefaultResolverConfig()
	setFloat(&rc.SymbolThreshold, c.SymbolThreshold)
	setFloat(&rc.AliasThreshold, c.AliasThreshold)
	setFloat(&rc.PersonThreshold, c.PersonThreshold)
	setFloat(&rc.MinRelevance, c.MinRelevance)
	setFloat(&rc.AmbiguityMargin, c.AmbiguityMargin)
	setFloat(&rc.FullTextMaxConfidence, c.FullTextMaxConfidence)
	if c.CandidateLimit > 0 {
		rc.CandidateLimit = c.CandidateLimit
	}
	return rc
}

// cascadeConfig maps lookup settings onto the cascade.
// Unset values keep their defaults.
func cascadeConfig(cfg *config.Config) services.CascadeConfig {
	cc := services.DefaultCascadeConfig()
	if len(cfg.Lookup.Order) > 0 {
		cc.Default = cfg.Lookup.Order
	}
	if len(cfg.Lookup.ByKind) > 0 {
		cc.ByKind = make(map[entities.MentionKind][]string, len(cfg.Lookup.ByKind))
		for kind, order := range cfg.Lookup.ByKind {
			cc.ByKind[entities.ParseMentionKind(kind)] = order
		}
	}
	if cfg.Lookup.Timeout > 0 {
		cc.Timeout = cfg.Lookup.Timeout
	}

	b := cfg.Lookup.Backoff
	setDuration(&cc.Backoff.Base, b.Base)
	setDuration(&cc.Backoff.Max, b.Max)
	setFloat(&cc.Backoff.Multiplier, b.Multiplier)
	if b.MaxAttempts > 0 {
		cc.Backoff.MaxAttempts = b.MaxAttempts
	}

	if quotas := cfg.DailyQuotas(); len(quotas) > 0 {
		cc.DailyQuota = quotas
	}
	return cc
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
