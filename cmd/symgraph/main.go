// Command symgraph is the scriptable surface over the symbol graph
// indexer and hybrid search core. Output is JSON on stdout; exit codes
// are 0 for success, 1 for runtime failure, 2 for bad arguments.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/basinlabs/symgraph/internal/config"
	"github.com/basinlabs/symgraph/internal/embedclient"
	"github.com/basinlabs/symgraph/internal/logging"
	"github.com/basinlabs/symgraph/internal/storagepath"
	"github.com/basinlabs/symgraph/internal/symbolgraph"
)

func main() {
	app := &cli.App{
		Name:  "symgraph",
		Usage: "index a repository into a hybrid code-search engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file"},
		},
		Commands: []*cli.Command{
			indexCommand(),
			searchCommand(),
			statsCommand(),
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintln(os.Stderr, "symgraph:", err)
			if exitErr, ok := err.(cli.ExitCoder); ok {
				os.Exit(exitErr.ExitCode())
			}
			os.Exit(1)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "symgraph:", err)
		os.Exit(1)
	}
}

// indexReport is the index command's JSON output shape.
type indexReport struct {
	Status              string        `json:"status"`
	FilesIndexed        int           `json:"files_indexed"`
	SymbolsExtracted    int           `json:"symbols_extracted"`
	EmbeddingsGenerated int           `json:"embeddings_generated"`
	DurationMS          int64         `json:"duration_ms"`
	Storage             storageReport `json:"storage"`
	CacheHitRate        float64       `json:"cache_hit_rate"`
	Warnings            []string      `json:"warnings"`
}

type storageReport struct {
	SQLitePath   string  `json:"sqlite_path"`
	SQLiteSizeMB float64 `json:"sqlite_size_mb"`
	LanceDBPath  string  `json:"lancedb_path"`
	LanceDBSize  float64 `json:"lancedb_size_mb"`
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "index a repository (full sweep, or --files for a scoped list)",
		ArgsUsage: "[repository_path]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "files", Usage: "index only these repo-relative files"},
			&cli.StringSliceFlag{Name: "include", Usage: "override include globs"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "override exclude globs"},
			&cli.BoolFlag{Name: "force-clean", Usage: "drop existing indexes before the sweep"},
			&cli.IntFlag{Name: "max-workers", Usage: "parse worker pool size"},
		},
		Action: func(c *cli.Context) error {
			root, err := repositoryPath(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if include := c.StringSlice("include"); len(include) > 0 {
				cfg.Paths.Include = include
			}
			if exclude := c.StringSlice("exclude"); len(exclude) > 0 {
				cfg.Paths.Exclude = exclude
			}
			if workers := c.Int("max-workers"); workers > 0 {
				cfg.Performance.MaxWorkers = workers
			}

			if c.Bool("force-clean") {
				if err := cleanStorage(root, cfg); err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}

			ix, cleanup, err := openIndexer(root, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			var stats symbolgraph.SweepStats
			if files := c.StringSlice("files"); len(files) > 0 {
				stats, err = ix.IndexFiles(ctx, files)
			} else {
				stats, err = ix.IndexRepository(ctx)
			}
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			storage := ix.StoragePaths()
			report := indexReport{
				Status:              "ok",
				FilesIndexed:        stats.Indexed,
				SymbolsExtracted:    stats.TotalSymbols,
				EmbeddingsGenerated: stats.FilesWithEmbeddings,
				DurationMS:          time.Since(start).Milliseconds(),
				Storage: storageReport{
					SQLitePath:   storagepath.SQLitePath(storage, "symgraph.db"),
					SQLiteSizeMB: dirSizeMB(filepath.Join(storage.BaseDir, "sqlite")),
					LanceDBPath:  storagepath.VectorDBPath(storage),
					LanceDBSize:  dirSizeMB(storagepath.VectorDBPath(storage)),
				},
				CacheHitRate: ix.CacheHitRate(),
				Warnings:     []string{},
			}
			if len(stats.Errors) > 0 {
				report.Status = "ok_with_errors"
				for _, fe := range stats.Errors {
					report.Warnings = append(report.Warnings, fmt.Sprintf("%s: [%s] %s", fe.Path, fe.Kind, fe.Message))
				}
			}
			return printJSON(report)
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search an indexed repository",
		ArgsUsage: "repository_path query",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "method", Value: symbolgraph.MethodHybrid, Usage: "keyword | semantic | hybrid"},
			&cli.IntFlag{Name: "limit", Value: 10},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("usage: symgraph search <repository_path> <query>", 2)
			}
			root := c.Args().Get(0)
			query := c.Args().Get(1)
			limit := c.Int("limit")
			if limit <= 0 {
				return cli.Exit("limit must be positive", 2)
			}

			method := c.String("method")
			switch method {
			case symbolgraph.MethodKeyword, symbolgraph.MethodSemantic, symbolgraph.MethodHybrid:
			default:
				return cli.Exit(fmt.Sprintf("unknown method %q", method), 2)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ix, cleanup, err := openIndexer(root, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer cleanup()

			ctx := context.Background()
			var hits []symbolgraph.Hit
			switch method {
			case symbolgraph.MethodKeyword:
				hits, err = ix.SearchKeyword(ctx, query, limit)
			case symbolgraph.MethodSemantic:
				hits, err = ix.SearchSemantic(ctx, query, limit)
			case symbolgraph.MethodHybrid:
				hits, err = ix.SearchHybrid(ctx, query, limit)
			}
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if hits == nil {
				hits = []symbolgraph.Hit{}
			}
			return printJSON(hits)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "report aggregate index statistics",
		ArgsUsage: "[repository_path]",
		Action: func(c *cli.Context) error {
			root, err := repositoryPath(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ix, cleanup, err := openIndexer(root, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer cleanup()

			stats, err := ix.Stats()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return printJSON(stats)
		},
	}
}

func repositoryPath(c *cli.Context) (string, error) {
	root := c.Args().First()
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", cli.Exit("cannot resolve working directory", 1)
		}
		root = cwd
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", cli.Exit(fmt.Sprintf("repository path %q is not a directory", root), 2)
	}
	return root, nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	return cfg, nil
}

// openIndexer wires the full stack: storage resolution, structured
// logging into the resolved logs/ subtree, the embedding client, and
// the indexer itself.
func openIndexer(root string, cfg *config.Config) (*symbolgraph.Indexer, func(), error) {
	storageCfg, err := storagepath.Resolve(root, cfg.Storage.PreferProjectStorage)
	if err != nil {
		return nil, nil, err
	}
	if err := storagepath.Ensure(storageCfg); err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig(storagepath.LogsPath(storageCfg, "symgraph.log"))
	logCfg.Level = cfg.LogLevel
	logCfg.WriteToStderr = false
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, err
	}

	embedCfg := embedclient.DefaultConfig(cfg.Embeddings.ServiceURL, cfg.Embeddings.Model)
	embedCfg.MinBatch = cfg.Embeddings.MinBatch
	embedCfg.MaxBatch = cfg.Embeddings.MaxBatch
	embedCfg.InitialBatch = cfg.Embeddings.InitialBatch
	embedCfg.FlushInterval = time.Duration(cfg.Embeddings.FlushIntervalMS) * time.Millisecond
	embedCfg.MaxConcurrent = cfg.Embeddings.MaxConcurrent
	embedCfg.RetryAttempts = cfg.Embeddings.RetryAttempts
	embedCfg.RetryDelays = cfg.EmbedRetryDelays()
	embedCfg.TargetLatency = time.Duration(cfg.Embeddings.TargetLatencyMS) * time.Millisecond
	if cfg.Embeddings.GlobalTimeoutMS > 0 {
		embedCfg.GlobalTimeout = time.Duration(cfg.Embeddings.GlobalTimeoutMS) * time.Millisecond
	}
	embedder := embedclient.New(embedCfg)

	ix, err := symbolgraph.New(root, cfg, symbolgraph.Options{
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		embedder.Close()
		logCleanup()
		return nil, nil, err
	}

	cleanup := func() {
		_ = ix.Close()
		logCleanup()
	}
	return ix, cleanup, nil
}

// cleanStorage removes the sqlite and vector subtrees so the next sweep
// starts from nothing.
func cleanStorage(root string, cfg *config.Config) error {
	storageCfg, err := storagepath.Resolve(root, cfg.Storage.PreferProjectStorage)
	if err != nil {
		return err
	}
	for _, dir := range []string{
		filepath.Join(storageCfg.BaseDir, "sqlite"),
		storagepath.VectorDBPath(storageCfg),
	} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

func dirSizeMB(dir string) float64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return float64(total) / (1024 * 1024)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
