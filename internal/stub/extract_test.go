package stub

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// summary flattens a stub for comparison.
type summary struct {
	Name   string
	Kind   Kind
	Params []string
}

func summarize(stubs []TypeStub) []summary {
	out := make([]summary, len(stubs))
	for i, s := range stubs {
		out[i] = summary{Name: s.DisplayName(), Kind: s.Kind, Params: s.TypeParameters}
	}
	return out
}

func TestExtract_Kinds(t *testing.T) {
	t.Parallel()
	src := `unit Shapes;

interface

type
  TShape = class(TObject)
  private
    FName: string;
  public
    function Area: Double; virtual; abstract;
    class function Create: TShape;
    property Name: string read FName;
  end;

  TPoint = record
    X, Y: Integer;
  end;

  TPacked = packed record
    A: Byte;
  end;

  IDrawable = interface
    ['{6B1F9C1E-0000-0000-0000-000000000000}']
    procedure Draw;
  end;

  TNotify = procedure(Sender: TObject) of object;
  TCallback = function(X: Integer): Boolean;
  TRef = reference to procedure;

  TAlias = type string;
  TColor = (clRed, clGreen = 2, clBlue);
  TRange = 1..10;

implementation

end.
`
	got := summarize(Extract([]byte(src)))
	want := []summary{
		{"TShape", KindClass, nil},
		{"TPoint", KindRecord, nil},
		{"TPacked", KindRecord, nil},
		{"IDrawable", KindInterface, nil},
		{"TNotify", KindProcedural, nil},
		{"TCallback", KindProcedural, nil},
		{"TRef", KindProcedural, nil},
		{"TAlias", KindUnknown, nil},
		{"TColor", KindUnknown, nil},
		{"TRange", KindUnknown, nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_GenericParameters(t *testing.T) {
	t.Parallel()
	src := `type
  TList<T> = class
  end;
  TDictionary<TKey, TValue> = class
  end;
  TConstrained<T: class, constructor; U: IComparable<U>> = record
  end;
  TPlain = class
  end;
`
	stubs := Extract([]byte(src))
	require.Len(t, stubs, 4)
	assert.Equal(t, []string{"T"}, stubs[0].TypeParameters)
	assert.Equal(t, []string{"TKey", "TValue"}, stubs[1].TypeParameters)
	assert.Equal(t, []string{"T", "U"}, stubs[2].TypeParameters)
	assert.Empty(t, stubs[3].TypeParameters)
}

func TestExtract_Offsets(t *testing.T) {
	t.Parallel()
	src := "type\n  TFoo = class\n  end;\n"
	stubs := Extract([]byte(src))
	require.Len(t, stubs, 1)
	assert.Equal(t, strings.Index(src, "TFoo"), stubs[0].Offset)
	assert.True(t, stubs[0].Covers(stubs[0].Offset+3))
	assert.False(t, stubs[0].Covers(stubs[0].Offset+4))
}

func TestExtract_SkipsForwardDeclarations(t *testing.T) {
	t.Parallel()
	src := `type
  TNode = class;
  INode = interface;
  TNode = class
    Next: TNode;
  end;
`
	got := summarize(Extract([]byte(src)))
	assert.Equal(t, []summary{{"TNode", KindClass, nil}}, got)
}

func TestExtract_BodilessClasses(t *testing.T) {
	t.Parallel()
	src := `type
  EParseError = class(Exception);
  TShapeClass = class of TShape;
  TSealed = class sealed(TBase)
  end;
  TStrHelper = record helper for string
    function Len: Integer;
  end;
  TAfter = class
  end;
`
	got := summarize(Extract([]byte(src)))
	want := []summary{
		{"EParseError", KindClass, nil},
		{"TShapeClass", KindClass, nil},
		{"TSealed", KindClass, nil},
		{"TStrHelper", KindRecord, nil},
		{"TAfter", KindClass, nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_InlineRecordBodies(t *testing.T) {
	t.Parallel()
	src := `type
  TArr = array[0..1] of record
    A: Integer;
    B: Integer;
  end;
  PPair = ^packed record
    Key, Value: Pointer;
  end;
  TVariants = array of record
    case Tag: Byte of
      0: (I: Integer);
      1: (D: Double);
  end deprecated;
  TLegacy = array[0..3] of object
    X: Integer;
  end;
  TNotify = procedure of object;
  TAfter = class
  end;
`
	got := summarize(Extract([]byte(src)))
	want := []summary{
		{"TArr", KindUnknown, nil},
		{"PPair", KindUnknown, nil},
		{"TVariants", KindUnknown, nil},
		{"TLegacy", KindUnknown, nil},
		{"TNotify", KindProcedural, nil},
		{"TAfter", KindClass, nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_NestedTypesStayInsideBody(t *testing.T) {
	t.Parallel()
	src := `type
  TOuter = class
  strict private
    type
      TInner = class
        Value: Integer;
      end;
      TInnerRec = record
        Data: record
          A, B: Byte;
        end;
      end;
  public
    Count: Integer;
  end;
  TNext = record
  end;
`
	got := summarize(Extract([]byte(src)))
	assert.Equal(t, []summary{{"TOuter", KindClass, nil}, {"TNext", KindRecord, nil}}, got)
}

func TestExtract_IgnoresEqualsOutsideTypeSections(t *testing.T) {
	t.Parallel()
	src := `unit Consts;
interface
const
  MaxSize = 100;
var
  Flag: Boolean = False;
implementation
procedure Run;
type
  TLocal = record
  end;
begin
  if MaxSize = 100 then
    Flag := True;
end;
end.
`
	got := summarize(Extract([]byte(src)))
	assert.Equal(t, []summary{{"TLocal", KindRecord, nil}}, got)
}

func TestExtract_CommentsAndCase(t *testing.T) {
	t.Parallel()
	src := `TYPE
  { TFake = class }
  // TAlsoFake = record
  TReal = CLASS
  end;
`
	got := summarize(Extract([]byte(src)))
	assert.Equal(t, []summary{{"TReal", KindClass, nil}}, got)
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()
	src := []byte("type\n  TA = class end;\n  TB<X> = record end;\n  TC = Integer;\n")
	first := Extract(src)
	second := Extract(src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-extraction drifted (-first +second):\n%s", diff)
	}
	require.Len(t, first, 3)
}

func TestExtract_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Extract(nil))
	assert.Empty(t, Extract([]byte("program Hello; begin end.")))
}
