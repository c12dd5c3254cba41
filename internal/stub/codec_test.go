package stub

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		stub TypeStub
	}{
		{"class", New("TFoo", KindClass)},
		{"generic record", New("TPair", KindRecord, "TKey", "TValue")},
		{"interface", New("IUnknown", KindInterface)},
		{"procedural", New("TNotifyEvent", KindProcedural)},
		{"unknown", New("TAlias", KindUnknown)},
		{"absent name", TypeStub{Kind: KindUnknown}},
		{"unicode name", New("TÄpfel", KindClass, "Ü")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(Encode(tt.stub))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.stub, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodec_LocationNotEncoded(t *testing.T) {
	t.Parallel()
	s := New("TFoo", KindClass)
	s.File = "/src/foo.pas"
	s.Offset = 42
	got, err := Decode(Encode(s))
	require.NoError(t, err)
	assert.Empty(t, got.File)
	assert.Zero(t, got.Offset)
	assert.Equal(t, "TFoo", got.DisplayName())
}

func TestCodec_Deterministic(t *testing.T) {
	t.Parallel()
	s := New("TList", KindClass, "T")
	assert.Equal(t, Encode(s), Encode(s))
}

func TestCodec_EmptyNameDistinctFromAbsent(t *testing.T) {
	t.Parallel()
	empty := ""
	got, err := Decode(Encode(TypeStub{Name: &empty}))
	require.NoError(t, err)
	require.NotNil(t, got.Name)
	assert.False(t, got.HasName())

	got, err = Decode(Encode(TypeStub{}))
	require.NoError(t, err)
	assert.Nil(t, got.Name)
}

func TestCodec_UnsupportedVersion(t *testing.T) {
	t.Parallel()
	data := Encode(New("TFoo", KindClass))
	bumped := protowire.AppendVarint(nil, FormatVersion+1)
	bumped = append(bumped, data[1:]...)

	_, err := Decode(bumped)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestCodec_Malformed(t *testing.T) {
	t.Parallel()
	data := Encode(New("TDictionary", KindClass, "TKey", "TValue"))
	for i := 0; i < len(data); i++ {
		_, err := Decode(data[:i])
		assert.ErrorIs(t, err, ErrMalformed, "truncated at %d", i)
	}

	_, err := Decode(append(data, 0))
	assert.ErrorIs(t, err, ErrMalformed)

	bad := protowire.AppendVarint(nil, FormatVersion)
	bad = protowire.AppendVarint(bad, protowire.EncodeZigZag(-1))
	bad = protowire.AppendVarint(bad, 99)
	bad = protowire.AppendVarint(bad, 0)
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestKind_StringAndParse(t *testing.T) {
	t.Parallel()
	for k := KindClass; k <= KindUnknown; k++ {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseKind("struct")
	assert.False(t, ok)
	assert.Equal(t, "invalid", Kind(42).String())
}
