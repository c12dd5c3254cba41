// Package unit derives the unit index key of a Pascal source file from its
// "unit Name;" header, falling back to the file name.
package unit

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jward/pascope/internal/pascal"
)

// HeaderPrefix bounds how much of a file is read when looking for a header.
const HeaderPrefix = 4096

var headerRe = regexp.MustCompile(`(?i)^unit\s+([A-Za-z_&][\w.&]*)\s*;`)

// stopWords cannot precede a unit header; seeing one first means there is
// no header.
var stopWords = map[string]bool{
	"interface":      true,
	"implementation": true,
	"program":        true,
	"library":        true,
}

var sourceExts = map[string]bool{
	".pas": true,
	".pp":  true,
	".p":   true,
	".lpr": true,
	".dpr": true,
	".dpk": true,
	".inc": true,
}

// IsSourceFile reports whether path has a Pascal source extension.
func IsSourceFile(path string) bool {
	return sourceExts[strings.ToLower(filepath.Ext(path))]
}

// NameFor returns the index key for the file at path with content src: the
// declared unit name when a header is found in the first HeaderPrefix
// bytes, otherwise the file stem. Both are normalized. The result is never
// empty for a file with a non-empty base name.
func NameFor(path string, src []byte) string {
	if name, ok := Header(src); ok {
		return pascal.Normalize(name)
	}
	return pascal.Normalize(Stem(path))
}

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// utf8BOM is written at the start of files by the Delphi IDE by default.
var utf8BOM = []byte("\xEF\xBB\xBF")

// Header scans the bounded prefix of src for a "unit Name;" header,
// returning the name with its original case. A leading UTF-8 byte order
// mark is ignored.
func Header(src []byte) (string, bool) {
	src = bytes.TrimPrefix(src, utf8BOM)
	if len(src) > HeaderPrefix {
		src = src[:HeaderPrefix]
	}
	inBrace, inParen := false, false
	for _, raw := range strings.Split(string(src), "\n") {
		line := raw
		// Close a block comment left open by a previous line.
		if inBrace {
			idx := strings.Index(line, "}")
			if idx < 0 {
				continue
			}
			line = line[idx+1:]
			inBrace = false
		}
		if inParen {
			idx := strings.Index(line, "*)")
			if idx < 0 {
				continue
			}
			line = line[idx+2:]
			inParen = false
		}

		line, inBrace, inParen = stripLeadingComments(line)
		if line == "" {
			continue
		}
		if m := headerRe.FindStringSubmatch(line); m != nil {
			return strings.ReplaceAll(m[1], "&", ""), true
		}
		if stopWords[strings.ToLower(leadingWord(line))] {
			return "", false
		}
	}
	return "", false
}

// stripLeadingComments removes whitespace and complete comments from the
// start of line. It returns what remains and whether a block comment was
// left open at the end of the line.
func stripLeadingComments(line string) (rest string, inBrace, inParen bool) {
	for {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "//"):
			return "", false, false
		case strings.HasPrefix(line, "{"):
			idx := strings.Index(line, "}")
			if idx < 0 {
				return "", true, false
			}
			line = line[idx+1:]
		case strings.HasPrefix(line, "(*"):
			idx := strings.Index(line[2:], "*)")
			if idx < 0 {
				return "", false, true
			}
			line = line[idx+4:]
		default:
			return line, false, false
		}
	}
}

func leadingWord(line string) string {
	end := strings.IndexFunc(line, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		return line
	}
	return line[:end]
}
