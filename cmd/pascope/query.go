package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/pascope"
	"github.com/jward/pascope/internal/pascal"
)

var (
	flagLimit      int
	flagOffset     int
	flagSort       string
	flagOrder      string
	flagPrefix     string
	flagIdentifier string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the type index",
	Long:  "Run queries against an indexed source tree. Offsets are 0-based byte offsets into the file.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	queryCmd.PersistentFlags().StringVar(&flagSort, "sort", "", "sort field: name|file")
	queryCmd.PersistentFlags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")

	queryCmd.AddCommand(typesCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(resolveCmd)
	queryCmd.AddCommand(unitCmd)
	queryCmd.AddCommand(scopeCmd)
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(unitsCmd)
	queryCmd.AddCommand(summaryCmd)
}

// --- Helpers ---

// openEngine opens the Engine over the database selected by --db or the
// config at the repo root. The database must already exist.
func openEngine() (*pascope.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(repoRoot, cfg)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'pascope index' first)", dbPath)
	}
	return pascope.New(dbPath, pascope.WithConfig(cfg), pascope.WithLogger(logger))
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() pascope.Pagination {
	return pascope.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// buildSort creates a Sort from CLI flags.
func buildSort() pascope.Sort {
	var field pascope.SortField
	switch flagSort {
	case "file":
		field = pascope.SortByFile
	default:
		field = pascope.SortByName
	}

	var order pascope.SortOrder
	switch flagOrder {
	case "desc":
		order = pascope.Desc
	default:
		order = pascope.Asc
	}

	return pascope.Sort{Field: field, Order: order}
}

// --- Name-Based Commands ---

var typesCmd = &cobra.Command{
	Use:   "types <name>",
	Short: "Find every definition of a type name, ignoring case",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypes,
}

func runTypes(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("types", err)
	}
	defer e.Close()

	stubs, err := e.Query().FindTypes(args[0])
	if err != nil {
		return outputError("types", err)
	}

	count := len(stubs)
	return outputResult(CLIResult{
		Command:    "types",
		Results:    typesToCLI(stubs),
		TotalCount: &count,
	})
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search type names with a glob pattern",
	Long:  "Matches type names against pattern, where '*' matches any run of characters. Case is ignored.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&flagPrefix, "prefix", "", "restrict to files under this directory")
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("search", err)
	}
	defer e.Close()

	result, err := e.Query().SearchTypes(args[0], flagPrefix, buildSort(), buildPagination())
	if err != nil {
		return outputError("search", err)
	}

	return outputResult(CLIResult{
		Command:    "search",
		Results:    typesToCLI(result.Items),
		TotalCount: &result.TotalCount,
	})
}

var unitCmd = &cobra.Command{
	Use:   "unit <name>",
	Short: "Find the file that defines a unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnit,
}

func runUnit(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("unit", err)
	}
	defer e.Close()

	path, ok, err := e.Query().UnitFile(args[0])
	if err != nil {
		return outputError("unit", err)
	}
	if !ok {
		return outputResult(CLIResult{Command: "unit", Results: nil})
	}

	one := 1
	return outputResult(CLIResult{
		Command:    "unit",
		Results:    CLIUnit{Name: pascal.Normalize(args[0]), File: path},
		TotalCount: &one,
	})
}

// --- Position-Based Commands ---

var resolveCmd = &cobra.Command{
	Use:   "resolve <file> <offset>",
	Short: "Resolve the identifier at an offset against the file's uses clauses",
	Long: "Lists the definitions of the identifier at offset, split into those visible through the file's uses clauses and those that are not. " +
		"With --identifier the name is taken from the flag instead of the file.",
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&flagIdentifier, "identifier", "", "identifier to resolve instead of the one at offset")
}

func runResolve(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("resolve", err)
	}
	defer e.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("resolve", err)
	}
	offset, err := parseIntArg(args[1], "offset")
	if err != nil {
		return outputError("resolve", err)
	}

	var res *pascope.Resolution
	if flagIdentifier != "" {
		res, err = e.Query().Resolve(flagIdentifier, file, offset)
	} else {
		res, err = e.Query().ResolveAt(file, offset)
	}
	if err != nil {
		return outputError("resolve", err)
	}

	count := len(res.InScope) + len(res.OutOfScope)
	return outputResult(CLIResult{
		Command:    "resolve",
		Results:    resolutionToCLI(res),
		TotalCount: &count,
	})
}

var scopeCmd = &cobra.Command{
	Use:   "scope <file>",
	Short: "List the units visible from a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runScope,
}

func runScope(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("scope", err)
	}
	defer e.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("scope", err)
	}
	scope, err := e.Query().Scope(file)
	if err != nil {
		return outputError("scope", err)
	}

	count := scope.Len()
	return outputResult(CLIResult{
		Command:    "scope",
		Results:    CLIScope{File: file, Units: nonNil(scope.Units())},
		TotalCount: &count,
	})
}

// --- Listing Commands ---

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("files", err)
	}
	defer e.Close()

	files, err := e.Query().Files()
	if err != nil {
		return outputError("files", err)
	}

	cliFiles := make([]CLIFile, len(files))
	for i, f := range files {
		cliFiles[i] = CLIFile{ID: f.ID, Path: f.Path, Unit: f.UnitKey, ReadOnly: f.ReadOnly}
	}
	count := len(cliFiles)
	return outputResult(CLIResult{
		Command:    "files",
		Results:    cliFiles,
		TotalCount: &count,
	})
}

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List the unit index",
	Args:  cobra.NoArgs,
	RunE:  runUnits,
}

func runUnits(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("units", err)
	}
	defer e.Close()

	units, err := e.Query().Units()
	if err != nil {
		return outputError("units", err)
	}

	cliUnits := make([]CLIUnit, len(units))
	for i, u := range units {
		cliUnits[i] = CLIUnit{Name: u.NameKey, File: u.Path}
	}
	count := len(cliUnits)
	return outputResult(CLIResult{
		Command:    "units",
		Results:    cliUnits,
		TotalCount: &count,
	})
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show index counts and the kind breakdown",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError("summary", err)
	}
	defer e.Close()

	summary, err := e.Query().Summary()
	if err != nil {
		return outputError("summary", err)
	}
	return outputResult(CLIResult{
		Command: "summary",
		Results: summaryToCLI(summary),
	})
}
