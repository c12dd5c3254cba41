// Package stub defines the compact, persistable record of one Pascal type
// definition, its binary codec and the extractor that derives stubs from
// source text.
package stub

import (
	"strings"

	"github.com/jward/pascope/internal/pascal"
)

// Kind classifies a type definition. The set is closed; ordinals are part
// of the persisted format and must not be reordered.
type Kind uint8

const (
	KindClass Kind = iota
	KindRecord
	KindInterface
	KindProcedural
	KindUnknown
)

var kindNames = [...]string{
	KindClass:      "class",
	KindRecord:     "record",
	KindInterface:  "interface",
	KindProcedural: "procedural",
	KindUnknown:    "unknown",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k <= KindUnknown
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), true
		}
	}
	return KindUnknown, false
}

// TypeStub is the essential facts of one type definition. Values are
// immutable once produced; a re-extraction yields new values.
type TypeStub struct {
	// Name is the declared identifier with original case, nil when absent.
	// Nameless stubs are never indexed.
	Name           *string
	Kind           Kind
	TypeParameters []string

	// File and Offset locate the definition's name token. They are supplied
	// by the index and are not part of the encoded form.
	File   string
	Offset int
}

// New returns a stub with the given name.
func New(name string, kind Kind, params ...string) TypeStub {
	return TypeStub{Name: &name, Kind: kind, TypeParameters: params}
}

// HasName reports whether the stub carries a name and may be indexed.
func (s TypeStub) HasName() bool {
	return s.Name != nil && *s.Name != ""
}

// DisplayName returns the declared name or "" when absent.
func (s TypeStub) DisplayName() string {
	if s.Name == nil {
		return ""
	}
	return *s.Name
}

// Key returns the index key for the stub's name.
func (s TypeStub) Key() string {
	return pascal.Normalize(s.DisplayName())
}

// Covers reports whether offset falls inside the stub's name token.
func (s TypeStub) Covers(offset int) bool {
	return s.HasName() && offset >= s.Offset && offset < s.Offset+len(*s.Name)
}
