// Package main is the entry point for the authorization core service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/identura/authcore/internal/access"
	"github.com/identura/authcore/internal/audit"
	"github.com/identura/authcore/internal/authz"
	"github.com/identura/authcore/internal/cache"
	"github.com/identura/authcore/internal/config"
	"github.com/identura/authcore/internal/directory"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const shutdownTimeout = 15 * time.Second

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags.configPath, logger)

	run(cfg, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("AUTHCORE_CONFIG_PATH", "configs/authcore.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("AUTHCORE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("AUTHCORE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("authcore version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// loadConfig loads and validates the configuration.
func loadConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting authcore",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}
	return cfg
}

// run wires the application and blocks until shutdown.
func run(cfg *config.Config, configPath string, logger observability.Logger) {
	tracer, err := observability.NewTracer(cfg.Tracing)
	if err != nil {
		logger.Fatal("failed to initialize tracing", observability.Error(err))
	}

	store := directory.NewMemoryStore()
	if cfg.Seed != "" {
		seed, err := directory.LoadSeed(cfg.Seed)
		if err != nil {
			logger.Fatal("failed to load directory seed", observability.Error(err))
		}
		if err := seed.Apply(store); err != nil {
			logger.Fatal("failed to apply directory seed", observability.Error(err))
		}
		logger.Info("directory seed applied",
			observability.String("path", cfg.Seed),
			observability.Int("tenants", len(seed.Tenants)),
			observability.Int("accounts", len(seed.Accounts)),
		)
	}

	tenantCache, err := cache.New(&cfg.Cache, logger)
	if err != nil {
		logger.Fatal("failed to initialize cache", observability.Error(err))
	}

	grants := access.NewGrantStore(store, store, store,
		access.WithGrantLogger(logger),
		access.WithGrantEmitter(audit.NewLogEmitter(logger)),
	)
	projector := access.NewProjector(store, store, store, store,
		access.WithProjectorLogger(logger),
		access.WithProjectorTracer(tracer),
	)
	resolver := authz.NewResolver(store, store, projector, tenantCache, cfg.Platform,
		authz.WithResolverLogger(logger),
		authz.WithResolverTracer(tracer),
	)
	enforcer := authz.NewEnforcer(cfg.Platform.FullSuperControl, cfg.Platform.PluginNamespace,
		authz.WithEnforcerLogger(logger),
		authz.WithRoleNames(authz.DirectoryRoleNames(store)),
	)
	authorizer := authz.NewHTTPAuthorizer(resolver, enforcer, server.TenantFromPath,
		authz.WithHTTPAuthorizerLogger(logger),
	)

	srv := server.New(cfg.Server, grants, projector,
		server.WithServerLogger(logger),
		server.WithAuthorizer(authorizer),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := config.NewWatcher(configPath, func(*config.Config) {
		// Runtime components bind their configuration at startup; a
		// changed file is surfaced for the operator to restart.
		logger.Info("configuration file changed, restart to apply",
			observability.String("path", configPath),
		)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("config watcher unavailable", observability.Error(err))
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", observability.Error(err))
		}
		defer func() { _ = watcher.Stop() }()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", observability.Error(err))
	}
	if err := tenantCache.Close(); err != nil {
		logger.Warn("cache close failed", observability.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", observability.Error(err))
	}

	logger.Info("authcore stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
