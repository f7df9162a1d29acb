// ChatStore maintenance CLI
// Inspects a conversation store, runs searches and archival sweeps
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nainya/chatstore/internal/config"
	"github.com/nainya/chatstore/internal/logger"
	"github.com/nainya/chatstore/pkg/chat"
	"github.com/nainya/chatstore/pkg/folder"
	"github.com/nainya/chatstore/pkg/lifecycle"
	"github.com/nainya/chatstore/pkg/recent"
	"github.com/nainya/chatstore/pkg/search"
	"github.com/nainya/chatstore/pkg/storage"
)

var (
	dataDir   = flag.String("dir", "", "Data directory for the file-backed store")
	dbPath    = flag.String("db", "", "SQLite database path (overrides -dir)")
	query     = flag.String("q", "", "Search message content")
	role      = flag.String("role", "", "Restrict search to a role (user or assistant)")
	system    = flag.String("system", "", "Restrict search to a system type")
	starred   = flag.Bool("starred", false, "Restrict search to starred conversations")
	doSweep   = flag.Bool("sweep", false, "Run an archival sweep and exit")
	showStats = flag.Bool("stats", false, "Print store statistics and exit")
	showLog   = flag.Bool("recent", false, "Print recent search queries and exit")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	lg := logger.GetGlobalLogger()
	defer lg.LogShutdown()

	store, closeStore, err := openStore(cfg, lg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	zl := *lg.GetZerolog()
	repo, err := chat.NewRepository(store, chat.WithLogger(zl))
	if err != nil {
		log.Fatalf("Failed to open conversations: %v", err)
	}
	folders, err := folder.NewRegistry(store, repo, folder.WithLogger(zl))
	if err != nil {
		log.Fatalf("Failed to open folders: %v", err)
	}

	switch {
	case *showStats:
		printStats(repo, folders)
	case *doSweep:
		runSweep(cfg, repo, lg)
	case *query != "":
		runSearch(cfg, store, repo, folders, lg)
	case *showLog:
		printRecent(store)
	default:
		flag.Usage()
	}
}

// openStore picks the backend: SQLite when a database path is set, the
// file-backed store otherwise. Both are wrapped with metrics.
func openStore(cfg *config.Config, lg *logger.Logger) (storage.Store, func(), error) {
	if cfg.DatabasePath != "" {
		sqlite, err := storage.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		lg.LogStoreOpen("sqlite", cfg.DatabasePath)
		return storage.NewInstrumentedStore(sqlite, nil), func() {
			if err := sqlite.Close(); err != nil {
				lg.Error("close store").Err(err).Send()
			}
		}, nil
	}

	fs, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	lg.LogStoreOpen("file", cfg.DataDir)
	return storage.NewInstrumentedStore(fs, nil), func() {}, nil
}

func printStats(repo *chat.Repository, folders *folder.Registry) {
	archived, starredCount := 0, 0
	for _, conv := range repo.List() {
		if conv.Archived {
			archived++
		}
		if conv.Starred {
			starredCount++
		}
	}

	fmt.Printf("Conversations: %d\n", repo.Len())
	fmt.Printf("  archived:    %d\n", archived)
	fmt.Printf("  starred:     %d\n", starredCount)
	fmt.Printf("Folders:       %d\n", len(folders.List()))
	fmt.Printf("Uncategorized: %d\n", len(folders.Uncategorized()))
}

func runSweep(cfg *config.Config, repo *chat.Repository, lg *logger.Logger) {
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	policy := lifecycle.NewPolicy(repo,
		lifecycle.WithRetention(retention),
		lifecycle.WithLogger(*lg.GetZerolog()),
	)

	count, err := policy.RunArchivalSweep(time.Now())
	if err != nil {
		log.Fatalf("Failed to run archival sweep: %v", err)
	}
	lg.LogSweep(count, retention)
	fmt.Printf("Archived %d conversations\n", count)
}

func runSearch(cfg *config.Config, store storage.Store, repo *chat.Repository, folders *folder.Registry, lg *logger.Logger) {
	engine := search.NewEngine(repo,
		search.WithFolderView(folders),
		search.WithLogger(*lg.GetZerolog()),
		search.WithHighlightLimit(cfg.HighlightLimit),
	)

	filters := search.Filters{
		Query:      *query,
		Role:       chat.Role(*role),
		SystemType: *system,
		Starred:    *starred,
	}

	start := time.Now()
	results, err := engine.Search(context.Background(), filters)
	lg.LogSearch(*query, len(results), time.Since(start), err)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	queryLog, err := recent.NewLog(store, recent.WithLogger(*lg.GetZerolog()))
	if err != nil {
		log.Fatalf("Failed to open query log: %v", err)
	}
	if err := queryLog.Record(*query); err != nil {
		log.Fatalf("Failed to record query: %v", err)
	}

	for _, r := range results {
		fmt.Printf("%s  [%s] %s\n", r.Timestamp.Format(time.RFC3339), r.Role, r.ConversationTitle)
		fmt.Printf("    %s\n", r.HighlightedContent)
	}
	fmt.Printf("%d results\n", len(results))
}

func printRecent(store storage.Store) {
	queryLog, err := recent.NewLog(store)
	if err != nil {
		log.Fatalf("Failed to open query log: %v", err)
	}
	for i, q := range queryLog.List() {
		fmt.Printf("%2d. %s\n", i+1, q)
	}
}
