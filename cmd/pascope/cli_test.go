package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pascope"
	"github.com/jward/pascope/internal/config"
	"github.com/jward/pascope/internal/watch"
)

const fixtureMain = "unit Main;\n\ninterface\n\nuses\n  UnitB;\n\ntype\n  TMainForm = class\n    Thing: TThing;\n  end;\n\nimplementation\n\nend.\n"

// createFixture lays out a repo with a .git dir, three units and a project
// descriptor that references a library outside the repo.
func createFixture(t *testing.T) (repo, lib string) {
	t.Helper()
	base := t.TempDir()
	repo = filepath.Join(base, "repo")
	lib = filepath.Join(base, "lib")

	files := map[string]string{
		filepath.Join(repo, "Main.pas"):  fixtureMain,
		filepath.Join(repo, "UnitB.pas"): "unit UnitB;\ninterface\ntype\n  TThing = class\n  end;\nimplementation\nend.\n",
		filepath.Join(repo, "UnitC.pas"): "unit UnitC;\ninterface\ntype\n  TThing = record\n  end;\nimplementation\nend.\n",
		filepath.Join(repo, "App.dpr"):   "program App;\nuses\n  Main in 'Main.pas',\n  Shared in '..\\lib\\Shared.pas';\nbegin\nend.\n",
		filepath.Join(lib, "Shared.pas"): "unit Shared;\ninterface\ntype\n  TShared = class\n  end;\nimplementation\nend.\n",
	}
	for path, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))
	return repo, lib
}

// execute runs the root command in dir with fresh flag values and returns
// what it wrote to stdout.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(dir)

	flagDB, flagFormat, flagConfig, flagVerbose = "", "json", "", false
	flagForce = false
	flagLimit, flagOffset, flagSort, flagOrder = 50, 0, "", "asc"
	flagPrefix, flagIdentifier, flagProjectRoot = "", "", ""
	errorHandled = false

	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	rootCmd.SetArgs(args)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.Execute()
	return buf.String(), err
}

func executeJSON(t *testing.T, dir string, args ...string) map[string]any {
	t.Helper()
	out, _ := execute(t, dir, args...)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result), "invalid JSON output: %s", out)
	return result
}

func indexFixture(t *testing.T) (repo, lib string) {
	t.Helper()
	repo, lib = createFixture(t)
	_, err := execute(t, repo, "index", repo)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(repo, ".pascope", "index.db"))
	return repo, lib
}

func TestCLI_QueryTypes(t *testing.T) {
	repo, _ := indexFixture(t)

	result := executeJSON(t, repo, "query", "types", "tthing")
	assert.Equal(t, "types", result["command"])
	assert.Empty(t, result["error"])
	assert.Equal(t, 2.0, result["total_count"])

	types, ok := result["results"].([]any)
	require.True(t, ok)
	require.Len(t, types, 2)
	first := types[0].(map[string]any)
	assert.Equal(t, "TThing", first["name"])
	assert.Equal(t, "class", first["kind"])
	assert.Equal(t, filepath.Join(repo, "UnitB.pas"), first["file"])
}

func TestCLI_QueryResolve(t *testing.T) {
	repo, _ := indexFixture(t)
	offset := strings.Index(fixtureMain, "TThing")

	result := executeJSON(t, repo, "query", "resolve", filepath.Join(repo, "Main.pas"), strconv.Itoa(offset))
	require.Empty(t, result["error"])
	res := result["results"].(map[string]any)
	assert.Equal(t, "TThing", res["identifier"])

	in := res["in_scope"].([]any)
	out := res["out_of_scope"].([]any)
	require.Len(t, in, 1)
	require.Len(t, out, 1)
	assert.Equal(t, filepath.Join(repo, "UnitB.pas"), in[0].(map[string]any)["file"])
	assert.Equal(t, filepath.Join(repo, "UnitC.pas"), out[0].(map[string]any)["file"])
}

func TestCLI_QueryResolve_Identifier(t *testing.T) {
	repo, _ := indexFixture(t)

	result := executeJSON(t, repo, "query", "resolve", "--identifier", "TShared", filepath.Join(repo, "Main.pas"), "0")
	require.Empty(t, result["error"])
	res := result["results"].(map[string]any)
	assert.Len(t, res["in_scope"], 0)
	assert.Len(t, res["out_of_scope"], 1, "library indexed read-only but not used by Main")
}

func TestCLI_QueryUnit(t *testing.T) {
	repo, _ := indexFixture(t)

	result := executeJSON(t, repo, "query", "unit", "UNITB")
	unit := result["results"].(map[string]any)
	assert.Equal(t, "unitb", unit["name"])
	assert.Equal(t, filepath.Join(repo, "UnitB.pas"), unit["file"])

	result = executeJSON(t, repo, "query", "unit", "Nowhere")
	assert.Nil(t, result["results"])
	assert.Empty(t, result["error"])
}

func TestCLI_QueryScope(t *testing.T) {
	repo, _ := indexFixture(t)

	result := executeJSON(t, repo, "query", "scope", filepath.Join(repo, "Main.pas"))
	scope := result["results"].(map[string]any)
	assert.Equal(t, []any{"unitb", "main"}, scope["units"])
}

func TestCLI_QueryFilesMarksExtraRoots(t *testing.T) {
	repo, lib := indexFixture(t)

	result := executeJSON(t, repo, "query", "files")
	files := result["results"].([]any)
	readOnly := map[string]bool{}
	for _, f := range files {
		m := f.(map[string]any)
		readOnly[m["path"].(string)] = m["read_only"].(bool)
	}
	assert.Equal(t, map[string]bool{
		filepath.Join(repo, "App.dpr"):   false,
		filepath.Join(repo, "Main.pas"):  false,
		filepath.Join(repo, "UnitB.pas"): false,
		filepath.Join(repo, "UnitC.pas"): false,
		filepath.Join(lib, "Shared.pas"): true,
	}, readOnly)
}

func TestCLI_QuerySearchText(t *testing.T) {
	repo, _ := indexFixture(t)

	out, err := execute(t, repo, "--format", "text", "query", "search", "t*", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "TMainForm")
	assert.Contains(t, out, "Showing 2 of 4 results")
}

func TestCLI_QuerySummary(t *testing.T) {
	repo, _ := indexFixture(t)

	result := executeJSON(t, repo, "query", "summary")
	s := result["results"].(map[string]any)
	assert.Equal(t, 5.0, s["files"])
	assert.Equal(t, 1.0, s["read_only_files"])
	assert.Equal(t, 4.0, s["types"])
	assert.Equal(t, false, s["stale"])
}

func TestCLI_QueryWithoutDatabase(t *testing.T) {
	repo, _ := createFixture(t)

	out, err := execute(t, repo, "query", "types", "TThing")
	require.Error(t, err)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "types", result["command"])
	assert.Contains(t, result["error"], "database not found")
}

func TestCLI_InvalidFormat(t *testing.T) {
	repo, _ := createFixture(t)

	_, err := execute(t, repo, "--format", "yaml", "query", "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCLI_Roots(t *testing.T) {
	repo, lib := createFixture(t)

	result := executeJSON(t, repo, "roots")
	aug := result["results"].(map[string]any)
	assert.Equal(t, []any{filepath.Join(repo, "App.dpr")}, aug["projects"])
	assert.Equal(t, []any{lib}, aug["roots"])

	result = executeJSON(t, repo, "roots", "--project-root", filepath.Dir(repo), filepath.Join(repo, "App.dpr"))
	aug = result["results"].(map[string]any)
	assert.Equal(t, []any{}, aug["roots"])
}

func TestCLI_IndexConfig(t *testing.T) {
	repo, _ := createFixture(t)
	cfg := "db = \"out/custom.db\"\nexclude = [\"UnitC.pas\"]\n\n[projects]\ndiscover = false\n"
	require.NoError(t, os.WriteFile(filepath.Join(repo, config.FileName), []byte(cfg), 0o644))

	_, err := execute(t, repo, "index")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(repo, "out", "custom.db"))

	result := executeJSON(t, repo, "query", "types", "TThing")
	assert.Equal(t, 1.0, result["total_count"], "UnitC.pas is excluded")
	result = executeJSON(t, repo, "query", "types", "TShared")
	assert.Equal(t, 0.0, result["total_count"], "project discovery disabled")
}

func TestApplyBatch(t *testing.T) {
	repo, _ := createFixture(t)
	cfg := config.Default(repo)
	e, err := pascope.New(filepath.Join(t.TempDir(), "watch.db"), pascope.WithConfig(cfg))
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()
	require.NoError(t, e.IndexDirectory(ctx, repo))

	added := filepath.Join(repo, "UnitD.pas")
	require.NoError(t, os.WriteFile(added, []byte("unit UnitD;\ntype\n  TThing = interface\n  end;\nend.\n"), 0o644))
	removed := filepath.Join(repo, "UnitC.pas")
	require.NoError(t, os.Remove(removed))

	applyBatch(ctx, e, cfg, repo, watch.Batch{Changed: []string{added}, Removed: []string{removed}})

	stubs, err := e.Query().FindTypes("TThing")
	require.NoError(t, err)
	var files []string
	for _, s := range stubs {
		files = append(files, filepath.Base(s.File))
	}
	assert.Equal(t, []string{"UnitB.pas", "UnitD.pas"}, files)

	// Touching the descriptor pulls in the library.
	applyBatch(ctx, e, cfg, repo, watch.Batch{Changed: []string{filepath.Join(repo, "App.dpr")}})
	stubs, err = e.Query().FindTypes("TShared")
	require.NoError(t, err)
	assert.Len(t, stubs, 1)
}

func TestTouchesDescriptor(t *testing.T) {
	assert.True(t, touchesDescriptor(watch.Batch{Changed: []string{"/a/App.DPR"}}))
	assert.True(t, touchesDescriptor(watch.Batch{Removed: []string{"/a/App.dpr"}}))
	assert.False(t, touchesDescriptor(watch.Batch{Changed: []string{"/a/Unit1.pas"}}))
}
