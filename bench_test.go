package pascope

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jward/pascope/internal/stub"
)

// benchPascalSource is a realistic unit with classes, records, interfaces,
// generics and procedural types for exercising the full extraction pipeline.
const benchPascalSource = `unit Bench;

{$mode delphi}

interface

uses
  SysUtils, Classes, Generics.Collections;

type
  ILogger = interface
    ['{0B3C8F61-2D4A-4E1B-8F3C-7A2E1D0C5B49}']
    procedure Log(const Msg: string);
    procedure LogFmt(const Fmt: string; const Args: array of const);
  end;

  TConfig = record
    Name: string;
    Debug: Boolean;
    MaxRetry: Integer;
    Tags: TArray<string>;
    function Validate: Boolean;
  end;

  TStdoutLogger = class(TInterfacedObject, ILogger)
  private
    FPrefix: string;
  public
    constructor Create(const APrefix: string);
    procedure Log(const Msg: string);
    procedure LogFmt(const Fmt: string; const Args: array of const);
  end;

  TRepository<T: class> = class
  private
    FItems: TObjectList<T>;
  public
    type
      TEnumerator = record
        Index: Integer;
      end;
    function Find(const Key: string): T;
    procedure Add(Item: T);
  end;

  TCache<TKey, TValue> = class(TDictionary<TKey, TValue>)
  end;

  THandler = procedure(Sender: TObject; const Event: string) of object;
  TPredicate<T> = reference to function(const Item: T): Boolean;
  TLevel = (lvDebug, lvInfo, lvWarn, lvError);
  TLevels = set of TLevel;

  TApp = class
  private
    FConfig: TConfig;
    FLogger: ILogger;
    FOnEvent: THandler;
  public
    constructor Create(const Cfg: TConfig; Log: ILogger);
    procedure Run;
    property OnEvent: THandler read FOnEvent write FOnEvent;
  end;

implementation

function TConfig.Validate: Boolean;
begin
  Result := (Name <> '') and (MaxRetry >= 0);
end;

constructor TStdoutLogger.Create(const APrefix: string);
begin
  inherited Create;
  FPrefix := APrefix;
end;

procedure TStdoutLogger.Log(const Msg: string);
begin
  WriteLn(FPrefix + Msg);
end;

procedure TStdoutLogger.LogFmt(const Fmt: string; const Args: array of const);
begin
  Log(Format(Fmt, Args));
end;

function TRepository<T>.Find(const Key: string): T;
begin
  Result := nil;
end;

procedure TRepository<T>.Add(Item: T);
begin
  FItems.Add(Item);
end;

constructor TApp.Create(const Cfg: TConfig; Log: ILogger);
begin
  FConfig := Cfg;
  FLogger := Log;
end;

procedure TApp.Run;
begin
  if not FConfig.Validate then
    raise Exception.Create('invalid config');
  FLogger.Log('running');
end;

end.
`

// writeBenchUnits writes n copies of benchPascalSource, each under its own
// unit name, and returns their paths.
func writeBenchUnits(b *testing.B, dir string, n int) []string {
	b.Helper()
	paths := make([]string, 0, n)
	for i := range n {
		name := fmt.Sprintf("Bench%03d", i)
		src := strings.Replace(benchPascalSource, "unit Bench;", "unit "+name+";", 1)
		path := filepath.Join(dir, name+".pas")
		if err := os.WriteFile(path, []byte(src), 0644); err != nil {
			b.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func setupBenchEngine(b *testing.B, n int, opts ...Option) (*Engine, []string) {
	b.Helper()
	dir := b.TempDir()
	e, err := New(filepath.Join(dir, "bench.db"), opts...)
	if err != nil {
		b.Fatal(err)
	}
	paths := writeBenchUnits(b, dir, n)
	if err := e.IndexFiles(context.Background(), paths); err != nil {
		e.Close()
		b.Fatal(err)
	}
	return e, paths
}

// BenchmarkExtract measures stub extraction on one realistic unit.
func BenchmarkExtract(b *testing.B) {
	src := []byte(benchPascalSource)
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if len(stub.Extract(src)) == 0 {
			b.Fatal("no stubs extracted")
		}
	}
}

// BenchmarkIndexFiles measures a cold index of 50 units in parallel and
// serial mode.
func BenchmarkIndexFiles(b *testing.B) {
	for _, parallel := range []bool{true, false} {
		b.Run(fmt.Sprintf("parallel=%v", parallel), func(b *testing.B) {
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				dir := b.TempDir()
				e, err := New(filepath.Join(dir, "bench.db"), WithParallel(parallel))
				if err != nil {
					b.Fatal(err)
				}
				paths := writeBenchUnits(b, dir, 50)
				b.StartTimer()

				if err := e.IndexFiles(ctx, paths); err != nil {
					e.Close()
					b.Fatal(err)
				}

				b.StopTimer()
				e.Close()
				b.StartTimer()
			}
		})
	}
}

// BenchmarkIndexFiles_Unchanged measures a re-index pass where every file
// is skipped by its content hash.
func BenchmarkIndexFiles_Unchanged(b *testing.B) {
	e, paths := setupBenchEngine(b, 50)
	defer e.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.IndexFiles(ctx, paths); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFindTypes measures a lookup with one candidate per indexed unit.
func BenchmarkFindTypes(b *testing.B) {
	e, _ := setupBenchEngine(b, 50)
	defer e.Close()
	q := e.Query()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stubs, err := q.FindTypes("tapp")
		if err != nil {
			b.Fatal(err)
		}
		if len(stubs) != 50 {
			b.Fatalf("got %d stubs", len(stubs))
		}
	}
}

// BenchmarkResolve measures partitioning 50 candidates with a warm scope
// cache.
func BenchmarkResolve(b *testing.B) {
	e, paths := setupBenchEngine(b, 50)
	defer e.Close()
	q := e.Query()
	offset := strings.Index(benchPascalSource, "FConfig: TConfig") + len("FConfig: ")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := q.Resolve("TConfig", paths[0], offset)
		if err != nil {
			b.Fatal(err)
		}
		if len(res.InScope) != 1 {
			b.Fatalf("got %d in-scope candidates", len(res.InScope))
		}
	}
}
