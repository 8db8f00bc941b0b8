package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/DeusData/codegraph/internal/config"
	"github.com/DeusData/codegraph/internal/pipeline"
	"github.com/DeusData/codegraph/internal/store"
	"github.com/DeusData/codegraph/internal/watcher"
)

var version = "dev"

type stringList []string

func (l *stringList) String() string { return fmt.Sprint([]string(*l)) }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var (
		root    = flag.String("root", ".", "project root to index")
		dbPath  = flag.String("db", "", "database path (default: per-project cache file)")
		workers = flag.Int("workers", 0, "parse workers (0 = NumCPU)")
		asOf    = flag.String("asof", "", "print node/edge counts as of an RFC3339 instant instead of indexing")
		watch   = flag.Bool("watch", false, "keep running and reconcile on file changes")
		verbose = flag.Bool("v", false, "debug logging")
		showVer = flag.Bool("version", false, "print version")
	)
	var crates stringList
	flag.Var(&crates, "crate", "crate directory relative to root (repeatable; default: scan)")
	flag.Parse()

	if *showVer {
		fmt.Println("codegraph", version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	absRoot, err := filepath.Abs(*root)
	if err != nil {
		log.Fatalf("root err=%v", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		log.Fatalf("config err=%v", err)
	}
	if *dbPath == "" {
		*dbPath = cfg.DBPath
	}
	if *workers == 0 {
		*workers = cfg.Workers
	}
	if len(crates) == 0 {
		crates = cfg.Crates
	}
	if !*watch {
		*watch = cfg.Watch
	}

	var s *store.Store
	if *dbPath != "" {
		s, err = store.OpenPath(*dbPath)
	} else {
		s, err = store.Open(pipeline.GroupNameFromPath(absRoot))
	}
	if err != nil {
		log.Fatalf("store open err=%v", err)
	}
	defer s.Close()

	if *asOf != "" {
		if err := printAsOf(s, *asOf); err != nil {
			log.Fatalf("asof err=%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix := pipeline.New(s, absRoot)
	ix.GroupDirs = crates
	ix.Workers = *workers
	ix.IgnoreDirs = cfg.IgnoreDirs

	if err := ix.Run(ctx); err != nil {
		if !*watch {
			log.Fatalf("index err=%v", err)
		}
		slog.Error("index.initial_failed", "err", err)
	}

	if *watch {
		w := watcher.New(absRoot, crates, cfg.IgnoreDirs, ix.Run)
		w.Run(ctx)
	}
}

// printAsOf renders the stored graph size per group at a past instant.
func printAsOf(s *store.Store, asOf string) error {
	t, err := time.Parse(time.RFC3339, asOf)
	if err != nil {
		return fmt.Errorf("parse asof: %w", err)
	}
	at := store.FormatInstant(t)

	groups, err := s.ListGroups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		nodes, err := s.CountNodesAsOf(g.Name, at)
		if err != nil {
			return err
		}
		edges, err := s.CountEdgesAsOf(g.Name, at)
		if err != nil {
			return err
		}
		fmt.Printf("%s@%s\tnodes=%d\tedges=%d\n", g.Name, g.Version, nodes, edges)
	}
	return nil
}
