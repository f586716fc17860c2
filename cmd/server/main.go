// Command server runs the sensei gateway: AI provider chat, workflow
// generation and the n8n bridge behind one HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sensei-dev/sensei/pkg/auth"
	"github.com/sensei-dev/sensei/pkg/auth/apikey"
	"github.com/sensei-dev/sensei/pkg/auth/jwt"
	"github.com/sensei-dev/sensei/pkg/config"
	"github.com/sensei-dev/sensei/pkg/debug"
	"github.com/sensei-dev/sensei/pkg/gateway"
	"github.com/sensei-dev/sensei/pkg/observability"
	"github.com/sensei-dev/sensei/pkg/provider"
	"github.com/sensei-dev/sensei/pkg/ratelimit"
	"github.com/sensei-dev/sensei/pkg/recorder"
	"github.com/sensei-dev/sensei/pkg/recorder/memory"
	"github.com/sensei-dev/sensei/pkg/recorder/postgres"
	"github.com/sensei-dev/sensei/pkg/transport"
	transporthttp "github.com/sensei-dev/sensei/pkg/transport/http"
	transportmcp "github.com/sensei-dev/sensei/pkg/transport/mcp"
	"github.com/sensei-dev/sensei/pkg/workflow"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	issueToken := flag.String("issue-token", "", "print an HS256 token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 30*time.Minute, "lifetime of tokens printed by -issue-token")
	tokenRole := flag.String("token-role", "", "role claim of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if err := printToken(cfg, *issueToken, *tokenRole, *tokenTTL); err != nil {
			slog.Error("issuing token", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func printToken(cfg *config.Config, subject, role string, ttl time.Duration) error {
	if cfg.Auth.JWT.Secret == "" {
		return fmt.Errorf("auth.jwt.secret is not configured")
	}
	token, err := jwt.Sign([]byte(cfg.Auth.JWT.Secret), subject, role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config) error {
	logger := debug.Init(debug.Options{
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingOptions{
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: "sensei",
		Version:     version,
		SampleRatio: cfg.Observability.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("flushing traces", "error", err)
		}
	}()

	registry, err := provider.NewRegistry(endpoints(cfg),
		provider.WithTimeouts(cfg.Providers.ChatTimeout, cfg.Providers.ProbeTimeout))
	if err != nil {
		return fmt.Errorf("creating provider registry: %w", err)
	}

	limiter := ratelimit.New(map[ratelimit.ResourceClass]ratelimit.Limit{
		ratelimit.General: {MaxRequests: cfg.RateLimit.General.MaxRequests, Window: cfg.RateLimit.General.Window},
		ratelimit.AI:      {MaxRequests: cfg.RateLimit.AI.MaxRequests, Window: cfg.RateLimit.AI.Window},
	})

	bridge := workflow.NewBridge(cfg.N8N.RESTURL(), cfg.N8N.APIKey,
		workflow.WithLimiter(limiter),
		workflow.WithTimeouts(cfg.N8N.Timeout, cfg.Providers.ProbeTimeout),
	)

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	dispatcher := recorder.NewDispatcher(store, recorder.WithQueueSize(cfg.Storage.QueueSize))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			slog.Warn("interaction recorder did not drain", "error", err)
		}
	}()

	gw := gateway.New(registry,
		gateway.WithLimiter(limiter),
		gateway.WithRecorder(dispatcher),
		gateway.WithBridge(bridge),
		gateway.WithProbeTimeout(cfg.Providers.ProbeTimeout),
	)

	chain, err := authChain(cfg)
	if err != nil {
		return err
	}

	adapterCfg := transporthttp.DefaultConfig()
	adapterCfg.Version = version
	adapter := transporthttp.NewAdapter(gw, bridge, store, adapterCfg)

	mux := http.NewServeMux()
	mux.Handle("/", adapter.Handler())
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}
	if cfg.MCP.Enabled {
		mux.Handle(cfg.MCP.Path, transportmcp.New(gw, bridge, version).Handler())
	}

	bypass := append([]string{}, auth.DefaultBypassEndpoints...)
	bypass = append(bypass, cfg.Observability.Metrics.Path)

	srv := transporthttp.NewServer(mux,
		[]transport.Middleware{
			observability.TracingMiddleware,
			observability.MetricsMiddleware,
			transport.CORS(cfg.Server.CORSOrigins),
			auth.Middleware(chain, bypass),
		},
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	slog.Info("sensei starting",
		"version", version,
		"config", cfg.Source,
		"port", cfg.Server.Port,
		"n8n", cfg.N8N.RESTURL(),
		"providers", registry.Configured(),
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"mcp", cfg.MCP.Enabled,
		"tracing", cfg.Observability.Tracing.Endpoint != "",
	)
	return srv.Run(ctx)
}

// endpoints converts the provider section into registry endpoints.
func endpoints(cfg *config.Config) map[provider.Identity]provider.Endpoint {
	out := make(map[provider.Identity]provider.Endpoint)
	for _, np := range cfg.Providers.Named() {
		id := provider.Identity(np.Name)
		dialect, err := provider.DefaultDialect(id)
		if err != nil {
			continue
		}
		out[id] = provider.Endpoint{
			BaseURL: np.Config.URL(),
			Model:   np.Config.Model,
			APIKey:  np.Config.APIKey,
			Dialect: dialect,
		}
	}
	return out
}

func newStore(ctx context.Context, cfg *config.Config) (recorder.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		slog.Info("interaction history enabled", "type", "postgres")
		return s, nil
	default:
		slog.Info("interaction history enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

func authChain(cfg *config.Config) (*auth.Chain, error) {
	switch cfg.Auth.Type {
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, apikey.Key{Key: k.Key, Subject: k.Subject})
		}
		return auth.NewChain(false, apikey.New(keys)), nil
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Secret:       []byte(cfg.Auth.JWT.Secret),
			Issuer:       cfg.Auth.JWT.Issuer,
			Audience:     cfg.Auth.JWT.Audience,
			SubjectClaim: cfg.Auth.JWT.SubjectClaim,
		})
		if err != nil {
			return nil, err
		}
		return auth.NewChain(false, a), nil
	default:
		slog.Warn("authentication disabled, all callers share the anonymous subject")
		return auth.NewChain(true), nil
	}
}
