package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberlane/chatvault/internal/api"
	"github.com/emberlane/chatvault/internal/config"
	"github.com/emberlane/chatvault/internal/ingest"
	"github.com/emberlane/chatvault/internal/model"
	"github.com/emberlane/chatvault/internal/query"
	"github.com/emberlane/chatvault/internal/store"
)

var version = "dev"

// Exit codes per spec.md §6: 0 success, 1 user error (bad args, unknown
// provider), 2 data error (parser/import failure), 3 storage error.
const (
	exitOK         = 0
	exitUserError  = 1
	exitDataError  = 2
	exitStoreError = 3
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(exitUserError)
	}

	cmd := args[0]
	rest := args[1:]

	if cmd == "version" || cmd == "--version" {
		fmt.Printf("chatvault %s\n", version)
		os.Exit(exitOK)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "init":
		os.Exit(runInit(ctx, cfg, rest))
	case "import":
		os.Exit(runImport(ctx, cfg, rest))
	case "search":
		os.Exit(runSearch(ctx, cfg, rest))
	case "serve":
		os.Exit(runServe(ctx, cfg))
	default:
		slog.Error("unknown command", "command", cmd)
		usage()
		os.Exit(exitUserError)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: chatvault <command> [arguments]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  init [--rebuild-fts]      create or open the database, optionally rebuild the search index")
	fmt.Fprintln(os.Stderr, "  import <provider> <path>  ingest a provider export into the archive")
	fmt.Fprintln(os.Stderr, "  search <query>            run a search against the archive")
	fmt.Fprintln(os.Stderr, "  serve                     start the HTTP API")
	fmt.Fprintln(os.Stderr, "  version                   print the build version")
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, int) {
	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		return nil, exitStoreError
	}
	return s, exitOK
}

// runInit opens (creating if absent) the database at the configured path.
// --rebuild-fts forces the operator-only corrupt-index recovery described
// in spec.md §9.
func runInit(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	rebuild := fs.Bool("rebuild-fts", false, "rebuild the full-text search index")
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}

	s, code := openStore(ctx, cfg)
	if s == nil {
		return code
	}
	defer s.Close()

	if *rebuild {
		if err := s.RebuildFTS(ctx); err != nil {
			slog.Error("failed to rebuild fts index", "error", err)
			return exitStoreError
		}
		slog.Info("fts index rebuilt")
	}

	slog.Info("database ready", "path", cfg.DBPath)
	return exitOK
}

func runImport(ctx context.Context, cfg config.Config, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: chatvault import <provider> <path>")
		return exitUserError
	}
	provider := model.ProviderTag(args[0])
	sourcePath := args[1]

	known := false
	for _, p := range model.AllProviders {
		if p == provider {
			known = true
			break
		}
	}
	if !known {
		fmt.Fprintf(os.Stderr, "unknown provider %q\n", args[0])
		return exitUserError
	}

	s, code := openStore(ctx, cfg)
	if s == nil {
		return code
	}
	defer s.Close()

	logger := slog.Default()
	pipeline := ingest.New(s, logger, cfg.MaxIngestWorkers)

	if _, err := pipeline.SweepAbandoned(ctx, cfg.StaleImportGrace); err != nil {
		slog.Warn("failed to sweep abandoned imports", "error", err)
	}

	result, err := pipeline.Run(ctx, provider, sourcePath)
	if err != nil {
		slog.Error("import failed", "error", err)
		return exitStoreError
	}
	if result.Failed {
		slog.Error("import failed", "reason", result.ErrorText)
		return exitDataError
	}

	slog.Info("import complete",
		"conversations_inserted", result.ConversationsInserted,
		"conversations_updated", result.ConversationsUpdated,
		"messages_inserted", result.MessagesInserted,
		"warnings", result.WarningsCount,
	)
	return exitOK
}

func runSearch(ctx context.Context, cfg config.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: chatvault search <query>")
		return exitUserError
	}
	raw := args[0]

	s, code := openStore(ctx, cfg)
	if s == nil {
		return code
	}
	defer s.Close()

	facade := query.New(s)
	resp, err := facade.Search(ctx, raw, query.SearchFilters{}, 0, 20)
	if err != nil {
		slog.Error("search failed", "error", err)
		return exitStoreError
	}
	if resp.BadQuery {
		fmt.Fprintln(os.Stderr, "query could not be parsed by the search engine")
		return exitUserError
	}

	for _, r := range resp.Results {
		fmt.Printf("[%s] %s — %s\n", r.Provider, r.Title, r.Snippet)
	}
	fmt.Printf("%d results (estimate)\n", resp.TotalEstimate)
	return exitOK
}

func runServe(ctx context.Context, cfg config.Config) int {
	s, code := openStore(ctx, cfg)
	if s == nil {
		return code
	}
	defer s.Close()

	logger := slog.Default()
	pipeline := ingest.New(s, logger, cfg.MaxIngestWorkers)

	if _, err := pipeline.SweepAbandoned(ctx, cfg.StaleImportGrace); err != nil {
		slog.Warn("failed to sweep abandoned imports", "error", err)
	}

	facade := query.New(s)
	srv := api.NewServer(cfg.HTTPAddr, facade, pipeline)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("api server error", "error", err)
			return exitStoreError
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}
	return exitOK
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
