package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/folio/internal/analysis"
	"github.com/kalambet/folio/internal/api"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/content"
	"github.com/kalambet/folio/internal/engine"
	"github.com/kalambet/folio/internal/github"
	"github.com/kalambet/folio/internal/notion"
	"github.com/kalambet/folio/internal/ollama"
	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/recorder"
	"github.com/kalambet/folio/internal/session"
	"github.com/kalambet/folio/internal/storage"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	sessionSweepEvery  = time.Minute

	// finalSaveTimeout covers one analysis call plus one store write.
	finalSaveTimeout = 45 * time.Second
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the HTTP API and the MCP stdio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running folio server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show folio status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "folio.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func newNotion(cfg config.Config) (*notion.Client, error) {
	return notion.New(cfg.Notion.APIKey,
		notion.WithBaseURL(cfg.Notion.BaseURL),
		notion.WithVersion(cfg.Notion.Version),
	)
}

// newGenerator returns the configured language model, or nil when none is
// configured. A local Ollama model is pulled if missing.
func newGenerator(ctx context.Context, cfg config.Config, w io.Writer) (engine.Generator, error) {
	gen, err := engine.New(engine.Config{
		Provider:         cfg.LLM.Provider,
		Model:            cfg.LLM.Model,
		GeminiAPIKey:     cfg.LLM.GeminiAPIKey,
		OpenRouterAPIKey: cfg.LLM.OpenRouterAPIKey,
		AnthropicAPIKey:  cfg.LLM.AnthropicAPIKey,
		OllamaBaseURL:    cfg.Ollama.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	if gen == nil {
		slog.Warn("no language model configured, conversations get keyword analysis", "provider", cfg.LLM.Provider)
		return nil, nil
	}
	if local, ok := gen.(*engine.OllamaGenerator); ok {
		if err := engine.EnsureReady(ctx, local, local.Model(), w); err != nil {
			return nil, err
		}
	}
	return gen, nil
}

func newRecorder(ctx context.Context, cfg config.Config, nc *notion.Client, subject string, w io.Writer) (*recorder.Recorder, error) {
	gen, err := newGenerator(ctx, cfg, w)
	if err != nil {
		return nil, fmt.Errorf("initializing language model: %w", err)
	}
	an := analysis.New(gen, analysis.WithSubject(subject))
	return recorder.New(nc, nc, cfg.Notion.ConversationsDB, an)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "folio version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("folio is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("folio is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := persona.Load(cfg.Persona.File)
	if err != nil {
		return err
	}

	nc, err := newNotion(cfg)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	portfolio, err := content.New(nc, cfg.Notion.PortfolioDB, content.WithCache(store, cfg.CacheTTL()))
	if err != nil {
		return err
	}
	rec, err := newRecorder(ctx, cfg, nc, p.Name, os.Stderr)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Portfolio: portfolio,
		Recorder:  rec,
		Sessions:  session.NewRegistry(),
		Persona:   p,
		Token:     cfg.API.Token,
	}
	if repos, err := github.New(cfg.GitHub.Owner, cfg.GitHub.Token); err == nil {
		deps.Repos = repos
	} else {
		slog.Warn("repository search disabled", "error", err)
	}

	if ttl := cfg.CacheTTL(); ttl > 0 {
		go content.NewRefresher(portfolio, ttl).Run(ctx)
	}
	go sweepSessions(ctx, deps.Sessions, rec)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	mcpSrv, endAgentSession := api.NewMCPServer(deps, version)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		// The client went away while we keep serving HTTP.
		if ctx.Err() == nil {
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
			defer cancel()
			endAgentSession(saveCtx)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "folio listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	if n := endOpenSessions(ctx, endAgentSession, deps.Sessions, rec); n > 0 {
		slog.Info("ended open sessions", "count", n)
	}
	return err
}

// endOpenSessions runs the best-effort save for every conversation still
// open at shutdown. The saves get their own deadline, detached from ctx and
// from the HTTP drain.
func endOpenSessions(ctx context.Context, endAgent func(context.Context), reg *session.Registry, saver session.Saver) int {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
	defer cancel()
	endAgent(ctx)
	return reg.EndIdle(ctx, 0, saver)
}

// sweepSessions ends sessions left idle by clients that never called end.
func sweepSessions(ctx context.Context, reg *session.Registry, saver session.Saver) {
	t := time.NewTicker(sessionSweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := reg.EndIdle(ctx, sessionIdleTimeout, saver); n > 0 {
				slog.Info("ended idle sessions", "count", n, "open", reg.Len())
			}
		}
	}
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("folio is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop folio (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to folio (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Record store", "%s", configured(cfg.Notion.APIKey != "" && cfg.Notion.PortfolioDB != ""))
	printStatus("Conversations", "%s", configured(cfg.Notion.APIKey != "" && cfg.Notion.ConversationsDB != ""))
	printStatus("Repositories", "%s", configured(cfg.GitHub.Token != "" && cfg.GitHub.Owner != ""))
	printStatus("LLM", "%s (%s)", cfg.LLM.Provider, cfg.LLM.Model)

	if strings.EqualFold(cfg.LLM.Provider, engine.ProviderOllama) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
	}

	if strings.EqualFold(cfg.LLM.Provider, engine.ProviderOpenRouter) && cfg.LLM.OpenRouterAPIKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		g := engine.NewOpenRouter(cfg.LLM.OpenRouterAPIKey, cfg.LLM.Model, "")
		switch ok, err := g.HasModel(ctx); {
		case err != nil:
			printStatus("OpenRouter", "unreachable (%v)", err)
		case ok:
			printStatus("OpenRouter", "model %s available", g.Model())
		default:
			printStatus("OpenRouter", "model %s not offered to this key", g.Model())
		}
	}

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		if entries, err := store.ListCacheEntries(context.Background()); err == nil {
			printStatus("Cached lists", "%d", len(entries))
		}
		store.Close()
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
