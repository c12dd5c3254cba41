package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/pascope/internal/project"
)

var flagProjectRoot string

var rootsCmd = &cobra.Command{
	Use:   "roots [descriptor...]",
	Short: "List the extra source roots project descriptors reference",
	Long: "Parses the 'Name in 'path'' entries of the given .dpr files, or of every .dpr under the repo root when none are given, " +
		"and lists the directories they reference outside the project root.",
	RunE: runRoots,
}

func init() {
	rootsCmd.Flags().StringVar(&flagProjectRoot, "project-root", "", "project root (default: repo root)")
}

func runRoots(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return outputError("roots", err)
	}
	repoRoot := findRepoRoot(cwd)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return outputError("roots", err)
	}

	projectRoot := repoRoot
	if flagProjectRoot != "" {
		if projectRoot, err = resolveFilePath(flagProjectRoot); err != nil {
			return outputError("roots", err)
		}
	}

	scanner := project.NewScanner(project.WithLogger(logger), project.WithExcludes(cfg.Exclude...))
	var aug *project.Augmentation
	if len(args) == 0 {
		aug, err = scanner.Scan(cmd.Context(), repoRoot, projectRoot)
	} else {
		descriptors := make([]string, len(args))
		for i, arg := range args {
			if descriptors[i], err = resolveFilePath(arg); err != nil {
				return outputError("roots", err)
			}
		}
		aug, err = scanner.ScanFiles(cmd.Context(), descriptors, projectRoot)
	}
	if err != nil {
		return outputError("roots", err)
	}

	count := len(aug.Roots)
	return outputResult(CLIResult{
		Command:    "roots",
		Results:    augmentationToCLI(aug),
		TotalCount: &count,
	})
}
