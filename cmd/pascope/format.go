package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatTypesText formats CLIType results as aligned columns.
func formatTypesText(w io.Writer, types []CLIType) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tFILE\tOFFSET")
	for _, t := range types {
		name := t.Name
		if len(t.TypeParameters) > 0 {
			name += "<" + strings.Join(t.TypeParameters, ", ") + ">"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", name, t.Kind, t.File, t.Offset)
	}
	tw.Flush()
}

// formatResolutionText prints the in-scope definitions, then the rest.
func formatResolutionText(w io.Writer, r CLIResolution) {
	fmt.Fprintf(w, "In scope (%d):\n", len(r.InScope))
	for _, t := range r.InScope {
		fmt.Fprintf(w, "  %s:%d\t%s\n", t.File, t.Offset, t.Kind)
	}
	fmt.Fprintf(w, "Out of scope (%d):\n", len(r.OutOfScope))
	for _, t := range r.OutOfScope {
		fmt.Fprintf(w, "  %s:%d\t%s\n", t.File, t.Offset, t.Kind)
	}
}

// formatUnitsText formats CLIUnit results as aligned columns.
func formatUnitsText(w io.Writer, units []CLIUnit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tFILE")
	for _, u := range units {
		fmt.Fprintf(tw, "%s\t%s\n", u.Name, u.File)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tUNIT\tREAD-ONLY")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\n", f.ID, f.Path, f.Unit, f.ReadOnly)
	}
	tw.Flush()
}

// formatScopeText lists the visible units one per line.
func formatScopeText(w io.Writer, s CLIScope) {
	for _, u := range s.Units {
		fmt.Fprintln(w, u)
	}
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Index Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files: %d (%d read-only)\n", s.Files, s.ReadOnlyFiles)
	fmt.Fprintf(w, "Types: %d\n", s.Types)
	fmt.Fprintf(w, "Units: %d\n", s.Units)
	if s.Stale {
		fmt.Fprintln(w, "Stale: yes (next index pass rebuilds)")
	}

	if len(s.Kinds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Kinds:")
		for _, k := range s.Kinds {
			fmt.Fprintf(w, "  %s: %d\n", k.Kind, k.Count)
		}
	}
}

// formatAugmentationText prints the extra roots, one per line.
func formatAugmentationText(w io.Writer, a CLIAugmentation) {
	for _, r := range a.Roots {
		fmt.Fprintln(w, r)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to stdout.
func outputResultText(result CLIResult) error {
	w := stdout

	switch v := result.Results.(type) {
	case []CLIType:
		formatTypesText(w, v)
	case CLIResolution:
		formatResolutionText(w, v)
	case CLIUnit:
		formatUnitsText(w, []CLIUnit{v})
	case []CLIUnit:
		formatUnitsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLIScope:
		formatScopeText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case CLIAugmentation:
		formatAugmentationText(w, v)
	case nil:
		// No output for nil results (e.g., unit with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the number of items shown for a result.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIType:
		return len(r)
	case []CLIUnit:
		return len(r)
	case []CLIFile:
		return len(r)
	case CLIResolution:
		return len(r.InScope) + len(r.OutOfScope)
	case CLIScope:
		return len(r.Units)
	case CLIAugmentation:
		return len(r.Roots)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
