package main

import "github.com/jward/pascope"

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIType is a JSON-friendly type definition.
type CLIType struct {
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	TypeParameters []string `json:"type_parameters,omitempty"`
	File           string   `json:"file"`
	Offset         int      `json:"offset"`
}

// CLIResolution partitions the candidates of an identifier.
type CLIResolution struct {
	Identifier string    `json:"identifier"`
	InScope    []CLIType `json:"in_scope"`
	OutOfScope []CLIType `json:"out_of_scope"`
}

// CLIUnit maps a unit key to its defining file.
type CLIUnit struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Unit     string `json:"unit"`
	ReadOnly bool   `json:"read_only"`
}

// CLIScope lists the units visible from a file.
type CLIScope struct {
	File  string   `json:"file"`
	Units []string `json:"units"`
}

// CLIKindCount is one row of the summary kind breakdown.
type CLIKindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// CLISummary is a JSON-friendly index summary.
type CLISummary struct {
	Files         int            `json:"files"`
	ReadOnlyFiles int            `json:"read_only_files"`
	Types         int            `json:"types"`
	Units         int            `json:"units"`
	Kinds         []CLIKindCount `json:"kinds"`
	Stale         bool           `json:"stale"`
}

// CLIAugmentation reports project descriptors and the extra roots they imply.
type CLIAugmentation struct {
	Projects   []string `json:"projects"`
	References []string `json:"references"`
	Roots      []string `json:"roots"`
}

func typeToCLI(s pascope.TypeStub) CLIType {
	return CLIType{
		Name:           s.DisplayName(),
		Kind:           s.Kind.String(),
		TypeParameters: s.TypeParameters,
		File:           s.File,
		Offset:         s.Offset,
	}
}

func typesToCLI(stubs []pascope.TypeStub) []CLIType {
	out := make([]CLIType, len(stubs))
	for i, s := range stubs {
		out[i] = typeToCLI(s)
	}
	return out
}

func resolutionToCLI(r *pascope.Resolution) CLIResolution {
	return CLIResolution{
		Identifier: r.Identifier,
		InScope:    typesToCLI(r.InScope),
		OutOfScope: typesToCLI(r.OutOfScope),
	}
}

func summaryToCLI(s *pascope.Summary) CLISummary {
	out := CLISummary{
		Files:         s.Files,
		ReadOnlyFiles: s.ReadOnlyFiles,
		Types:         s.Types,
		Units:         s.Units,
		Kinds:         make([]CLIKindCount, len(s.Kinds)),
		Stale:         s.Stale,
	}
	for i, k := range s.Kinds {
		out.Kinds[i] = CLIKindCount{Kind: k.Kind, Count: k.Count}
	}
	return out
}

func augmentationToCLI(a *pascope.Augmentation) CLIAugmentation {
	return CLIAugmentation{
		Projects:   nonNil(a.Projects),
		References: nonNil(a.References),
		Roots:      nonNil(a.Roots),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
