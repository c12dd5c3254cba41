// Package uses computes the set of units a Pascal source file can see from
// its uses clauses.
package uses

import (
	"strings"

	"github.com/jward/pascope/internal/pascal"
)

// Parse returns the unit names listed in every uses clause of src, in
// declaration order, normalized to index keys. Dotted names are joined;
// "in '<path>'" suffixes are dropped.
func Parse(src []byte) []string {
	toks := pascal.Tokenize(src)
	var names []string
	for i := 0; i < len(toks); i++ {
		if !toks[i].Is("uses") {
			continue
		}
		var clause []string
		clause, i = parseClause(toks, i+1)
		names = append(names, clause...)
	}
	return names
}

// parseClause reads a comma-separated unit list starting at toks[i] and
// returns the names and the index of the terminating semicolon.
func parseClause(toks []pascal.Token, i int) ([]string, int) {
	var names []string
	for i < len(toks) {
		tok := toks[i]
		switch {
		case tok.IsSymbol(";"):
			return names, i
		case tok.IsSymbol(","):
			i++
		case tok.Kind == pascal.Ident:
			var parts []string
			parts, i = qualifiedName(toks, i)
			names = append(names, pascal.Normalize(strings.Join(parts, ".")))
			if i < len(toks) && toks[i].Is("in") {
				i = skipEntry(toks, i+1)
			}
		default:
			// Anything unexpected ends the clause; a later uses keyword starts
			// a new one.
			return names, i
		}
	}
	return names, i
}

func qualifiedName(toks []pascal.Token, i int) ([]string, int) {
	parts := []string{toks[i].Text}
	i++
	for i+1 < len(toks) && toks[i].IsSymbol(".") && toks[i+1].Kind == pascal.Ident {
		parts = append(parts, toks[i+1].Text)
		i += 2
	}
	return parts, i
}

// skipEntry advances past the path expression of an "in" suffix.
func skipEntry(toks []pascal.Token, i int) int {
	for i < len(toks) && !toks[i].IsSymbol(",") && !toks[i].IsSymbol(";") {
		i++
	}
	return i
}
