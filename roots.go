package pascope

import (
	"context"
	"fmt"
	"os"

	"github.com/jward/pascope/internal/project"
)

// DiscoverRoots scans root for project descriptors and returns the extra
// source roots they reference outside projectRoot. It only reads files and
// may run concurrently with indexing and queries.
func (e *Engine) DiscoverRoots(ctx context.Context, root, projectRoot string) (*Augmentation, error) {
	aug, err := e.scanner().Scan(ctx, root, projectRoot)
	if err != nil {
		return nil, fmt.Errorf("pascope: discover roots: %w", err)
	}
	return aug, nil
}

// RootsFromProjects is DiscoverRoots for an explicit descriptor list.
func (e *Engine) RootsFromProjects(ctx context.Context, projects []string, projectRoot string) (*Augmentation, error) {
	aug, err := e.scanner().ScanFiles(ctx, projects, projectRoot)
	if err != nil {
		return nil, fmt.Errorf("pascope: roots: %w", err)
	}
	return aug, nil
}

func (e *Engine) scanner() *project.Scanner {
	return project.NewScanner(
		project.WithLogger(e.logger),
		project.WithExcludes(e.excludePatterns...),
	)
}

// IndexExtraRoots indexes each directory in roots as read-only. Missing
// directories are logged and skipped.
func (e *Engine) IndexExtraRoots(ctx context.Context, roots []string) error {
	var errs []error
	for _, dir := range roots {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			e.logger.Warn().Str("path", dir).Msg("skipping missing extra root")
			continue
		}
		if err := e.IndexExtraRoot(ctx, dir); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("extra roots had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// AugmentRoots discovers extra roots from the descriptors under root and
// indexes them.
func (e *Engine) AugmentRoots(ctx context.Context, root string) (*Augmentation, error) {
	root = canonical(root)
	aug, err := e.DiscoverRoots(ctx, root, root)
	if err != nil {
		return nil, err
	}
	if err := e.IndexExtraRoots(ctx, aug.Roots); err != nil {
		return aug, err
	}
	return aug, nil
}
