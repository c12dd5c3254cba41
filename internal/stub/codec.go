package stub

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// FormatVersion identifies the encoded layout. Bump it whenever Encode
// changes; readers reject every other version and the index is rebuilt.
const FormatVersion = 1

// absentName is the zigzag length written for a stub without a name.
const absentName = -1

var (
	// ErrUnsupportedVersion is returned by Decode for data written with a
	// format version this build does not understand. Callers treat the
	// whole index as stale.
	ErrUnsupportedVersion = errors.New("stub: unsupported format version")
	// ErrMalformed is returned for truncated or inconsistent data.
	ErrMalformed = errors.New("stub: malformed data")
)

// Encode serializes the name, kind and type parameters of s. The layout is:
//
//	version      varint
//	name length  zigzag varint, -1 when absent
//	name         bytes
//	kind         varint
//	param count  varint
//	params       length-prefixed strings
func Encode(s TypeStub) []byte {
	b := protowire.AppendVarint(nil, FormatVersion)
	if s.Name == nil {
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(absentName))
	} else {
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(len(*s.Name))))
		b = append(b, *s.Name...)
	}
	b = protowire.AppendVarint(b, uint64(s.Kind))
	b = protowire.AppendVarint(b, uint64(len(s.TypeParameters)))
	for _, p := range s.TypeParameters {
		b = protowire.AppendString(b, p)
	}
	return b
}

// Decode parses data produced by Encode. File and Offset are left zero.
func Decode(data []byte) (TypeStub, error) {
	var s TypeStub

	version, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return s, fmt.Errorf("%w: version: %v", ErrMalformed, protowire.ParseError(n))
	}
	if version != FormatVersion {
		return s, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	data = data[n:]

	rawLen, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return s, fmt.Errorf("%w: name length: %v", ErrMalformed, protowire.ParseError(n))
	}
	data = data[n:]
	switch nameLen := protowire.DecodeZigZag(rawLen); {
	case nameLen == absentName:
	case nameLen < 0 || nameLen > int64(len(data)):
		return s, fmt.Errorf("%w: name length %d", ErrMalformed, nameLen)
	default:
		name := string(data[:nameLen])
		s.Name = &name
		data = data[nameLen:]
	}

	kind, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return s, fmt.Errorf("%w: kind: %v", ErrMalformed, protowire.ParseError(n))
	}
	if kind > uint64(KindUnknown) {
		return s, fmt.Errorf("%w: kind ordinal %d", ErrMalformed, kind)
	}
	s.Kind = Kind(kind)
	data = data[n:]

	count, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return s, fmt.Errorf("%w: parameter count: %v", ErrMalformed, protowire.ParseError(n))
	}
	data = data[n:]
	if count > uint64(len(data)) {
		// Every parameter needs at least its length byte.
		return s, fmt.Errorf("%w: parameter count %d", ErrMalformed, count)
	}
	if count > 0 {
		s.TypeParameters = make([]string, 0, count)
	}
	for i := uint64(0); i < count; i++ {
		p, n := protowire.ConsumeString(data)
		if n < 0 {
			return s, fmt.Errorf("%w: parameter %d: %v", ErrMalformed, i, protowire.ParseError(n))
		}
		s.TypeParameters = append(s.TypeParameters, p)
		data = data[n:]
	}
	if len(data) != 0 {
		return s, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data))
	}
	return s, nil
}
