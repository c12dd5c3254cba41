// Package project reads Pascal project descriptors (.dpr) and derives the
// extra source roots their "Name in 'path'" entries point at.
package project

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dghubble/trie"
)

// Ext is the project descriptor extension.
const Ext = ".dpr"

var referenceRe = regexp.MustCompile(`(?i)\b([A-Za-z_][\w.]*)\s+in\s*'([^']*)'`)

// IsProjectFile reports whether path names a project descriptor.
func IsProjectFile(p string) bool {
	return strings.EqualFold(filepath.Ext(p), Ext)
}

// ParseReferences returns the paths of every "Name in 'path'" entry in
// content, in order of appearance and without deduplication. Backslashes are
// treated as separators, relative paths are resolved against baseDir and the
// result is cleaned.
func ParseReferences(content []byte, baseDir string) []string {
	base := toSlash(baseDir)
	var refs []string
	for _, m := range referenceRe.FindAllSubmatch(content, -1) {
		p := toSlash(string(m[2]))
		if p == "" {
			continue
		}
		if !isAbs(p) {
			p = path.Join(base, p)
		}
		refs = append(refs, path.Clean(p))
	}
	return refs
}

// ParseFile reads the descriptor at p and resolves its references against
// the descriptor's directory.
func ParseFile(p string) ([]string, error) {
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", p, err)
	}
	return ParseReferences(content, filepath.Dir(p)), nil
}

// ExtraRoots returns the distinct parent directories of refs in first-seen
// order, minus any directory already covered by projectRoot: one that is a
// path-segment prefix of projectRoot or lies under it. An empty or relative
// projectRoot disables the exclusion.
func ExtraRoots(refs []string, projectRoot string) []string {
	dirs := trie.NewPathTrie()
	var ordered []string
	for _, ref := range refs {
		dir := path.Dir(toSlash(ref))
		if dirs.Put(dir, dir) {
			ordered = append(ordered, dir)
		}
	}

	root := path.Clean(toSlash(projectRoot))
	if projectRoot == "" || !isAbs(root) {
		return ordered
	}

	covered := make(map[string]bool)
	dirs.WalkPath(root, func(key string, value interface{}) error {
		covered[value.(string)] = true
		return nil
	})
	// The segmenter never yields a bare "/" for a deeper key.
	if strings.HasPrefix(root, "/") {
		covered["/"] = true
	}

	under := trie.NewPathTrie()
	under.Put(root, true)
	var roots []string
	for _, dir := range ordered {
		if covered[dir] || root == "/" {
			continue
		}
		inside := false
		under.WalkPath(dir, func(string, interface{}) error {
			inside = true
			return nil
		})
		if !inside {
			roots = append(roots, dir)
		}
	}
	return roots
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// isAbs accepts both "/abs" and drive-letter forms such as "C:/abs".
func isAbs(p string) bool {
	if path.IsAbs(p) {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && p[2] == '/' &&
		(p[0] >= 'a' && p[0] <= 'z' || p[0] >= 'A' && p[0] <= 'Z')
}
