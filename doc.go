// Package pascope provides code intelligence over Delphi and Free Pascal
// source trees: it indexes type definitions by name, maps unit names to
// files, and resolves identifier references while respecting the
// visibility that each file's uses clauses grant.
//
// # Pipeline
//
// For each source file, pascope extracts a compact stub per type
// definition (class, record, interface, procedural type) and the file's unit
// key, and writes both to SQLite. Files are re-extracted only when their
// content hash changes.
//
// # Usage
//
//	e, err := pascope.New("pascope.db", pascope.WithScopeNames("System", "Vcl"))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	stubs, err := q.FindTypes("TForm1")
//	res, err := q.Resolve("TThing", "path/to/project/Main.pas", 1234)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides:
//
//   - [QueryBuilder.FindTypes]: every definition with a name, compared
//     case-insensitively.
//   - [QueryBuilder.Resolve]: definitions of an identifier split into those
//     visible from a file and those that are not.
//   - [QueryBuilder.UnitFile]: the file defining a unit.
//   - [QueryBuilder.Scope]: the units a file can see.
//   - [QueryBuilder.SearchTypes]: glob search over names, paginated.
//   - [QueryBuilder.Summary]: row counts and a per-kind breakdown.
//
// # Extra Roots
//
// Project descriptors (.dpr) list units with "Name in 'path'" entries.
// [Engine.DiscoverRoots] collects the directories of such entries that lie
// outside the project and [Engine.IndexExtraRoots] indexes them read-only.
//
// # Stub Format
//
// Stored stubs carry a format version. Opening a database written with a
// different version clears it; a stub that fails to decode is recomputed
// from source for the current query and the next [Engine.IndexFiles] call
// rebuilds the whole index.
package pascope
