package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaisigil/gate/internal/config"
	"github.com/kaisigil/gate/pkg/httpapi"
	"github.com/kaisigil/gate/pkg/registry"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: args[0] is the program name, args[1:]
// are subcommands. With no subcommand it starts the server.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 || args[1] == "server" || args[1] == "serve" {
		return runServer(stdout, stderr)
	}
	switch args[1] {
	case "health":
		return runHealthCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "sigild — the krystal merge-gate service")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sigild [server]   Run the gate HTTP server (default)")
	fmt.Fprintln(w, "  sigild health     Check server health over HTTP")
	fmt.Fprintln(w, "  sigild help       Show this help")
}

func runServer(stdout, stderr io.Writer) int {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if cfg.OverlayError != nil {
		logger.Warn("gate: KAI_CONFIG_FILE overlay failed, continuing with env-only config", "error", cfg.OverlayError)
	}

	ctx := context.Background()
	backend, err := registry.NewBackendFromEnv(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "gate: persistence backend init failed: %v\n", err)
		return 1
	}

	opts := []registry.Option{registry.WithLogger(logger), registry.WithKeep(cfg.RegistryKeep)}
	if backend != nil {
		opts = append(opts, registry.WithBackend(backend))
	}
	store := registry.New(cfg.BaseOrigin, opts...)

	svc := httpapi.NewService(store, cfg.MaxConcurrentInhales, cfg.MaxInlineStateURLs, cfg.MaxInlineURLs)
	limiter := httpapi.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	mux := http.NewServeMux()
	svc.Routes(mux, "/sigils")
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	handler := httpapi.RequestID(limiter.Middleware(mux))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gate: listening", "addr", srv.Addr, "baseOrigin", cfg.BaseOrigin)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gate: server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("gate: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("gate: graceful shutdown failed", "error", err)
		return 1
	}
	return 0
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func runHealthCmd(stdout, stderr io.Writer) int {
	resp, err := http.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(stderr, "health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(stdout, "OK")
	return 0
}
