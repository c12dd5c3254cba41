package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jward/pascope"
	"github.com/jward/pascope/internal/config"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// stdout receives command results; tests replace it.
var stdout io.Writer = os.Stdout

// logger writes human-readable progress to stderr.
var logger = zerolog.Nop()

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pascope",
	Short:         "Scope-aware type navigation for Delphi and Free Pascal",
	Long:          "Pascope indexes Pascal type definitions and unit names into a SQLite database and resolves identifiers against each file's uses clauses.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		setupLogger(cmd.ErrOrStderr())
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .pascope/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .pascope.toml at repo root)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(rootsCmd)
	rootCmd.AddCommand(watchCmd)
}

func setupLogger(w io.Writer) {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a Pascal source tree",
	Long: "Extracts type definitions and unit names from every Pascal source file under path and writes them to the SQLite database. " +
		"Configured source_dirs and the directories referenced by project descriptors are indexed read-only.",
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	// Determine the target directory.
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	// Resolve repo root, config and DB path.
	repoRoot := findRepoRoot(targetDir)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(repoRoot, cfg)

	// Ensure the database directory exists.
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dbDir, err)
	}

	// Handle --force: delete the DB file entirely.
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		logger.Info().Str("db", dbPath).Msg("cleared database")
	}

	engine, err := pascope.New(dbPath, pascope.WithConfig(cfg), pascope.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx := cmd.Context()
	if err := indexAll(ctx, engine, cfg, targetDir); err != nil {
		return err
	}

	summary, err := engine.Query().Summary()
	if err != nil {
		return err
	}
	logger.Info().
		Str("path", targetDir).
		Dur("took", time.Since(start).Round(time.Millisecond)).
		Int("files", summary.Files).
		Int("types", summary.Types).
		Int("units", summary.Units).
		Msg("indexed")
	logger.Info().Str("db", dbPath).Msg("database")
	return nil
}

// indexAll indexes targetDir, the configured source roots, and, when
// enabled, the extra roots referenced by project descriptors.
func indexAll(ctx context.Context, engine *pascope.Engine, cfg *config.Config, targetDir string) error {
	if err := engine.IndexDirectory(ctx, targetDir); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	if roots := cfg.SourceRoots(); len(roots) > 0 {
		if err := engine.IndexExtraRoots(ctx, roots); err != nil {
			return fmt.Errorf("indexing source dirs: %w", err)
		}
	}
	if cfg.Projects.Discover {
		aug, err := engine.AugmentRoots(ctx, targetDir)
		if err != nil {
			return fmt.Errorf("indexing project roots: %w", err)
		}
		if len(aug.Roots) > 0 {
			logger.Info().Strs("roots", aug.Roots).Int("projects", len(aug.Projects)).Msg("indexed extra roots")
		}
	}
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory or a
// config file. Returns that directory, or startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding a marker.
			return startDir
		}
		dir = parent
	}
}

// loadConfig reads the --config file, or the config at repoRoot.
func loadConfig(repoRoot string) (*config.Config, error) {
	if flagConfig == "" {
		return config.LoadDir(repoRoot)
	}
	path, err := filepath.Abs(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %q: %w", flagConfig, err)
	}
	return config.Load(path)
}

// resolveDBPath returns the database path from the --db flag or the config.
func resolveDBPath(repoRoot string, cfg *config.Config) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return cfg.DBPath()
}
