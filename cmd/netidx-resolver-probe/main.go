// Command netidx-resolver-probe drives a ResolverRead/ResolverWrite pair
// against a backend and exposes their health over HTTP. The wire transport
// that would actually reach a resolver server cluster is the one
// collaborator this module depends on but does not implement (see package
// backend); this binary stands in for it with an in-memory loopback
// connection so the resolver/router/path core can be exercised end to end
// without a running cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andrew-lee-architect/netidx/backend"
	"github.com/andrew-lee-architect/netidx/internal/config"
	netidxhttp "github.com/andrew-lee-architect/netidx/internal/http"
	"github.com/andrew-lee-architect/netidx/internal/metrics"
	"github.com/andrew-lee-architect/netidx/path"
	"github.com/andrew-lee-architect/netidx/resolver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "resolve":
		runResolve(os.Args[2:])
	case "publish":
		runPublish(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: netidx-resolver-probe <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve              Run the health/metrics server and a heartbeat loop")
	fmt.Println("  resolve <path>...  Resolve one or more paths against the demo backend")
	fmt.Println("  publish <path>...  Publish one or more paths on the demo backend")
	fmt.Println("  list <path>        List the immediate children of a path")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string, rest []string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		default:
			rest = append(rest, args[i])
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger, []string) {
	configPath, logLevelOverride, rest := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger, rest
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runServe() {
	cfg, logger, _ := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting netidx-resolver-probe",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newDemoStore()

	read, err := resolver.NewResolverRead(backend.Config{Addrs: cfg.Resolver.Addrs}, cfg.Resolver.AuthMode(),
		store.readConstructor(), logger.Named("resolver.read"))
	if err != nil {
		logger.Fatal("failed to open read connection", zap.Error(err))
	}

	write, err := resolver.NewResolverWrite(backend.Config{Addrs: cfg.Resolver.Addrs}, cfg.Resolver.AuthMode(),
		cfg.Resolver.WriterAddr, store.writeConstructor(), logger.Named("resolver.write"))
	if err != nil {
		logger.Fatal("failed to open write connection", zap.Error(err))
	}

	var heartbeatOK atomic.Bool
	heartbeatOK.Store(true)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Resolver.HeartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, cfg.Resolver.SendTimeout)
				err := write.Heartbeat(hbCtx)
				hbCancel()
				heartbeatOK.Store(err == nil)
				if err != nil {
					logger.Warn("heartbeat failed", zap.Error(err))
				}
			}
		}
	}()

	httpServer := netidxhttp.NewServer(cfg.Service.HTTPListen, path.New("/"), read,
		heartbeatOK.Load, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("resolver probe started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	wg.Wait()

	logger.Info("netidx-resolver-probe stopped")
}

func runResolve(args []string) {
	cfg, logger, rest := loadConfig(args)
	defer logger.Sync()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "usage: netidx-resolver-probe resolve <path>...")
		os.Exit(1)
	}

	store := newDemoStore()
	read, err := resolver.NewResolverRead(backend.Config{Addrs: cfg.Resolver.Addrs}, cfg.Resolver.AuthMode(),
		store.readConstructor(), logger)
	if err != nil {
		logger.Fatal("failed to open read connection", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Resolver.SendTimeout)
	defer cancel()

	paths := make([]path.Path, len(rest))
	for i, r := range rest {
		paths[i] = path.New(r)
	}

	results, err := read.Resolve(ctx, paths)
	if err != nil {
		logger.Fatal("resolve failed", zap.Error(err))
	}
	for _, res := range results {
		fmt.Printf("%s -> %v\n", res.Path, res.Publishers)
	}
}

func runPublish(args []string) {
	cfg, logger, rest := loadConfig(args)
	defer logger.Sync()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "usage: netidx-resolver-probe publish <path>...")
		os.Exit(1)
	}

	store := newDemoStore()
	write, err := resolver.NewResolverWrite(backend.Config{Addrs: cfg.Resolver.Addrs}, cfg.Resolver.AuthMode(),
		cfg.Resolver.WriterAddr, store.writeConstructor(), logger)
	if err != nil {
		logger.Fatal("failed to open write connection", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Resolver.SendTimeout)
	defer cancel()

	paths := make([]path.Path, len(rest))
	for i, r := range rest {
		paths[i] = path.New(r)
	}

	if err := write.Publish(ctx, paths); err != nil {
		logger.Fatal("publish failed", zap.Error(err))
	}
	fmt.Printf("published %v as %s\n", rest, cfg.Resolver.WriterAddr)
}

func runList(args []string) {
	cfg, logger, rest := loadConfig(args)
	defer logger.Sync()
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: netidx-resolver-probe list <path>")
		os.Exit(1)
	}

	store := newDemoStore()
	read, err := resolver.NewResolverRead(backend.Config{Addrs: cfg.Resolver.Addrs}, cfg.Resolver.AuthMode(),
		store.readConstructor(), logger)
	if err != nil {
		logger.Fatal("failed to open read connection", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Resolver.SendTimeout)
	defer cancel()

	children, err := read.List(ctx, path.New(rest[0]))
	if err != nil {
		logger.Fatal("list failed", zap.Error(err))
	}
	for _, c := range children {
		fmt.Println(c)
	}
}
