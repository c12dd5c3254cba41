package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jward/pascope"
	"github.com/jward/pascope/internal/config"
	"github.com/jward/pascope/internal/project"
	"github.com/jward/pascope/internal/watch"
)

var (
	flagMetricsAddr string
	flagDebounce    time.Duration
)

// watchExcludeDirs are directory base names the watcher never descends into.
var watchExcludeDirs = []string{"__history", "__recovery", "node_modules"}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a source tree and keep the index current as files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default: watch.metrics_addr from config)")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 0, "quiet period before reindexing (default: watch.debounce from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(repoRoot, cfg)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	reg := prometheus.NewRegistry()
	engine, err := pascope.New(dbPath,
		pascope.WithConfig(cfg),
		pascope.WithLogger(logger),
		pascope.WithRegisterer(reg),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := indexAll(ctx, engine, cfg, targetDir); err != nil {
		// Keep watching; the next change retries the failed files.
		logger.Warn().Err(err).Msg("initial index incomplete")
	}

	addr := flagMetricsAddr
	if addr == "" {
		addr = cfg.Watch.MetricsAddr
	}
	if addr != "" {
		srv := metricsServer(addr, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", addr).Msg("serving metrics")
	}

	debounce := cfg.Watch.Debounce
	if flagDebounce > 0 {
		debounce = flagDebounce
	}
	w, err := watch.New(debounce, watchExcludeDirs, func(b watch.Batch) {
		applyBatch(ctx, engine, cfg, targetDir, b)
	}, watch.WithLogger(logger), watch.WithMetrics(engine.Metrics()))
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Watch([]string{targetDir}); err != nil {
		return fmt.Errorf("watching %s: %w", targetDir, err)
	}
	logger.Info().Str("path", targetDir).Dur("debounce", debounce).Msg("watching")

	<-ctx.Done()
	logger.Info().Msg("stopping")
	return nil
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// applyBatch brings the index in line with one batch of file changes. A
// changed or removed project descriptor triggers extra root discovery when
// enabled.
func applyBatch(ctx context.Context, engine *pascope.Engine, cfg *config.Config, targetDir string, b watch.Batch) {
	if len(b.Removed) > 0 {
		if err := engine.RemoveFiles(b.Removed); err != nil {
			logger.Warn().Err(err).Msg("removing files")
		}
	}
	if len(b.Changed) > 0 {
		if err := engine.IndexFiles(ctx, b.Changed); err != nil {
			logger.Warn().Err(err).Msg("reindexing files")
		}
	}
	logger.Debug().Int("changed", len(b.Changed)).Int("removed", len(b.Removed)).Msg("applied changes")

	if !cfg.Projects.Discover || !touchesDescriptor(b) {
		return
	}
	aug, err := engine.AugmentRoots(ctx, targetDir)
	if err != nil {
		logger.Warn().Err(err).Msg("updating project roots")
		return
	}
	logger.Info().Strs("roots", aug.Roots).Msg("project roots updated")
}

func touchesDescriptor(b watch.Batch) bool {
	for _, paths := range [][]string{b.Changed, b.Removed} {
		for _, p := range paths {
			if project.IsProjectFile(p) {
				return true
			}
		}
	}
	return false
}
