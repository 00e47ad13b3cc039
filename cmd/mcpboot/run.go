package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vivekhaldar/mcpboot/internal/cachestore"
	"github.com/vivekhaldar/mcpboot/internal/compile"
	"github.com/vivekhaldar/mcpboot/internal/executor"
	"github.com/vivekhaldar/mcpboot/internal/fetcher"
	"github.com/vivekhaldar/mcpboot/internal/llm"
	"github.com/vivekhaldar/mcpboot/internal/mcpserver"
	"github.com/vivekhaldar/mcpboot/internal/plan"
	"github.com/vivekhaldar/mcpboot/internal/sandbox"
	"github.com/vivekhaldar/mcpboot/internal/whitelist"
)

// run implements the full boot sequence: fetch, plan, compile (or restore
// from cache), then serve until an interrupt or a parent-context
// cancellation. stdout carries exactly one line — the server's URL — when
// stdout isn't a terminal, so a calling script can capture it; stderr
// always carries the structured log.
func run(ctx context.Context, cfg *Config, stdout, stderr io.Writer) error {
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := newLogger(stderr, cfg.LogFile, logLevel)
	slog.SetDefault(logger)

	promptURLs := fetcher.ExtractURLs(cfg.Prompt)
	f := fetcher.New()
	documents := f.FetchAll(ctx, promptURLs)
	wl := whitelist.Build(promptURLs, documents)

	cache := cachestore.New(cfg.CacheDir, !cfg.NoCache)
	promptFp := cachestore.Fingerprint(cfg.Prompt)
	contentFp := cachestore.ContentFingerprint(documents)

	var gp *plan.GenerationPlan
	var compiledTools *compile.CompiledTools

	if entry, ok := cache.Get(promptFp, contentFp); ok {
		slog.Info("cache hit, skipping plan and compile", "promptFingerprint", promptFp, "contentFingerprint", contentFp)
		gp = entry.Plan
		compiledTools = entry.ToCompiledTools()
		wl = whitelist.FromDomains(entry.WhitelistDomains)
	} else {
		client, err := newLLMClient(cfg)
		if err != nil {
			return err
		}

		slog.Info("generating plan", "provider", cfg.Provider, "tools-whitelist-domains", wl.Domains())
		gp, err = plan.New(client).Plan(ctx, cfg.Prompt, documents, wl)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}

		if cfg.DryRun {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(gp)
		}

		slog.Info("compiling tools", "count", len(gp.Tools))
		compiledTools, err = compile.New(client).CompileAll(ctx, cfg.Prompt, gp, documents, wl.Domains())
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}

		entry := cachestore.NewEntry(promptFp, contentFp, gp, compiledTools, time.Now())
		if err := cache.Set(entry); err != nil {
			slog.Warn("failed to persist cache entry", "error", err)
		}
	}

	if cfg.DryRun {
		// Cache hit with --dry-run: print the restored plan and stop.
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(gp)
	}

	gatedFetch := whitelist.CreateGatedFetch(wl, whitelist.DefaultUnderlyingFetch)
	sb := sandbox.New(gatedFetch)
	exec := executor.New(compiledTools, sb)
	server := mcpserver.NewServer(exec, mcpserver.NewCompiledToolsMetadata(compiledTools))
	handler := mcpserver.NewHandler(server)

	ln, err := mcpserver.Listen(fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return fmt.Errorf("parse listen address: %w", err)
	}
	url := fmt.Sprintf("http://localhost:%s%s", port, mcpserver.MCPPath)
	slog.Info("serving", "url", url, "tools", server.ToolCount())
	if sf, ok := stdout.(*os.File); !ok || !isTerminal(sf) {
		fmt.Fprintln(stdout, url)
	}

	return serve(ctx, ln, handler)
}

// serve runs the HTTP server until ctx is cancelled (SIGINT/SIGTERM),
// then shuts it down gracefully. Both goroutines are coordinated through
// an errgroup so a listen failure or a signal-triggered shutdown both
// unwind cleanly through the same Wait.
func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLLMClient(cfg *Config) (llm.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	case "openai":
		return llm.NewOpenAIClient(cfg.APIKey, cfg.Model), nil
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid --provider %q: must be anthropic or openai", cfg.Provider)}
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
