package project

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// descriptorPattern matches project descriptors at any depth regardless of
// extension case.
const descriptorPattern = "**/*.[dD][pP][rR]"

// Augmentation is the result of scanning a tree for project descriptors.
type Augmentation struct {
	Projects   []string `json:"projects"`
	References []string `json:"references"`
	Roots      []string `json:"roots"`
}

// Scanner discovers project descriptors and the extra roots they imply.
type Scanner struct {
	logger   zerolog.Logger
	excludes []string
}

// Option configures a Scanner.
type Option func(*Scanner)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithExcludes skips descriptors whose root-relative path matches any of
// the doublestar patterns.
func WithExcludes(patterns ...string) Option {
	return func(s *Scanner) {
		s.excludes = append(s.excludes, patterns...)
	}
}

func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns the absolute paths of project descriptors under root,
// sorted.
func (s *Scanner) Discover(ctx context.Context, root string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := doublestar.Glob(os.DirFS(root), descriptorPattern)
	if err != nil {
		return nil, fmt.Errorf("project: glob %s: %w", root, err)
	}

	var found []string
loop:
	for _, name := range names {
		for _, exclude := range s.excludes {
			if ok, _ := doublestar.Match(exclude, name); ok {
				s.logger.Debug().Str("path", name).Str("exclude", exclude).Msg("skipping excluded project")
				continue loop
			}
		}
		found = append(found, path.Join(toSlash(root), name))
	}
	sort.Strings(found)
	return found, nil
}

// Scan discovers descriptors under root, parses each and computes the extra
// roots relative to projectRoot. Unreadable descriptors are logged and
// contribute nothing.
func (s *Scanner) Scan(ctx context.Context, root, projectRoot string) (*Augmentation, error) {
	projects, err := s.Discover(ctx, root)
	if err != nil {
		return nil, err
	}
	return s.ScanFiles(ctx, projects, projectRoot)
}

// ScanFiles is Scan over an explicit list of descriptors.
func (s *Scanner) ScanFiles(ctx context.Context, projects []string, projectRoot string) (*Augmentation, error) {
	aug := &Augmentation{Projects: projects}
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, err := ParseFile(p)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable project")
			continue
		}
		s.logger.Debug().Str("path", p).Int("references", len(refs)).Msg("parsed project")
		aug.References = append(aug.References, refs...)
	}
	aug.Roots = ExtraRoots(aug.References, projectRoot)
	return aug, nil
}
