// Package tuplecodec implements the order-preserving tuple encoding
// consumed by the query engine (spec.md §6): Pack/Unpack of heterogeneous
// tuples such that byte-lexicographic order on the encoding matches the
// Tuple total order (null < bool < int64 < double < string < bytes).
package tuplecodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/brindledata/recordquery"
)

// type tags, ordered to match recordquery.ElementKind's total order.
const (
	tagNull byte = iota
	tagFalse
	tagTrue
	tagInt64
	tagDouble
	tagString
	tagBytes
)

// Pack encodes a tuple into its canonical order-preserving byte form.
func Pack(t recordquery.Tuple) []byte {
	var out []byte
	for _, el := range t {
		out = append(out, packElement(el)...)
	}
	return out
}

func packElement(el recordquery.TupleElement) []byte {
	switch el.Kind {
	case recordquery.KindNull:
		return []byte{tagNull}
	case recordquery.KindBool:
		if el.Bool {
			return []byte{tagTrue}
		}
		return []byte{tagFalse}
	case recordquery.KindInt64:
		buf := make([]byte, 9)
		buf[0] = tagInt64
		// Flip the sign bit so two's-complement order matches integer
		// order when compared as unsigned big-endian bytes.
		binary.BigEndian.PutUint64(buf[1:], uint64(el.Int64)^(1<<63))
		return buf
	case recordquery.KindDouble:
		buf := make([]byte, 9)
		buf[0] = tagDouble
		binary.BigEndian.PutUint64(buf[1:], orderedDoubleBits(el.Double))
		return buf
	case recordquery.KindString:
		return append([]byte{tagString}, escapeAndTerminate([]byte(el.Str))...)
	case recordquery.KindBytes:
		return append([]byte{tagBytes}, escapeAndTerminate(el.Bytes)...)
	default:
		return []byte{tagNull}
	}
}

// orderedDoubleBits maps a float64's IEEE-754 bit pattern to an order
// that matches numeric double order when compared as unsigned integers:
// for non-negative doubles, flip the sign bit; for negative doubles, flip
// every bit (reversing their now-descending unsigned order).
func orderedDoubleBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func unorderedDoubleBits(ordered uint64) float64 {
	if ordered&(1<<63) != 0 {
		return math.Float64frombits(ordered &^ (1 << 63))
	}
	return math.Float64frombits(^ordered)
}

// escapeAndTerminate implements the classic 0x00 -> 0x00 0xFF escape with
// a 0x00 0x00 terminator, so that concatenated packed tuples still compare
// correctly and a string containing 0x00 bytes doesn't corrupt ordering
// relative to its neighbors.
func escapeAndTerminate(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+2)
	for _, b := range raw {
		if b == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, 0x00, 0x00)
	return out
}

// Unpack decodes a packed tuple. The subspace prefix has already been
// stripped by the caller (e.g. via Subspace.Strip).
func Unpack(data []byte) (recordquery.Tuple, error) {
	var out recordquery.Tuple
	for len(data) > 0 {
		el, rest, err := unpackElement(data)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
		data = rest
	}
	return out, nil
}

func unpackElement(data []byte) (recordquery.TupleElement, []byte, error) {
	if len(data) == 0 {
		return recordquery.TupleElement{}, nil, fmt.Errorf("tuplecodec: truncated tuple")
	}
	tag := data[0]
	data = data[1:]
	switch tag {
	case tagNull:
		return recordquery.Null, data, nil
	case tagFalse:
		return recordquery.Bool(false), data, nil
	case tagTrue:
		return recordquery.Bool(true), data, nil
	case tagInt64:
		if len(data) < 8 {
			return recordquery.TupleElement{}, nil, fmt.Errorf("tuplecodec: truncated int64")
		}
		raw := binary.BigEndian.Uint64(data[:8]) ^ (1 << 63)
		return recordquery.Int64(int64(raw)), data[8:], nil
	case tagDouble:
		if len(data) < 8 {
			return recordquery.TupleElement{}, nil, fmt.Errorf("tuplecodec: truncated double")
		}
		f := unorderedDoubleBits(binary.BigEndian.Uint64(data[:8]))
		return recordquery.Double(f), data[8:], nil
	case tagString:
		raw, rest, err := unescapeUntilTerminator(data)
		if err != nil {
			return recordquery.TupleElement{}, nil, err
		}
		return recordquery.Str(string(raw)), rest, nil
	case tagBytes:
		raw, rest, err := unescapeUntilTerminator(data)
		if err != nil {
			return recordquery.TupleElement{}, nil, err
		}
		return recordquery.Bytes(raw), rest, nil
	default:
		return recordquery.TupleElement{}, nil, fmt.Errorf("tuplecodec: unknown tag 0x%02x", tag)
	}
}

func unescapeUntilTerminator(data []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(data); i++ {
		if data[i] == 0x00 {
			if i+1 >= len(data) {
				return nil, nil, fmt.Errorf("tuplecodec: truncated escape sequence")
			}
			switch data[i+1] {
			case 0xFF:
				out = append(out, 0x00)
				i++
				continue
			case 0x00:
				return out, data[i+2:], nil
			default:
				return nil, nil, fmt.Errorf("tuplecodec: invalid escape byte 0x%02x", data[i+1])
			}
		}
		out = append(out, data[i])
	}
	return nil, nil, fmt.Errorf("tuplecodec: missing terminator")
}

// Subspace namespaces a portion of the keyspace under a fixed byte prefix.
type Subspace struct {
	Prefix []byte
}

// NewSubspace returns a Subspace rooted at prefix.
func NewSubspace(prefix []byte) Subspace {
	return Subspace{Prefix: prefix}
}

// Pack packs t under the subspace's prefix.
func (s Subspace) Pack(t recordquery.Tuple) []byte {
	return append(append([]byte{}, s.Prefix...), Pack(t)...)
}

// Range returns the [begin, end) byte range covering every key in the
// subspace.
func (s Subspace) Range() (begin, end []byte) {
	begin = append([]byte{}, s.Prefix...)
	end = append([]byte{}, s.Prefix...)
	end = append(end, 0xFF)
	return begin, end
}

// Strip removes the subspace prefix from a key, returning false if key
// does not belong to this subspace.
func (s Subspace) Strip(key []byte) ([]byte, bool) {
	if len(key) < len(s.Prefix) {
		return nil, false
	}
	for i, b := range s.Prefix {
		if key[i] != b {
			return nil, false
		}
	}
	return key[len(s.Prefix):], true
}

// Sub returns a child subspace nesting name under s.
func (s Subspace) Sub(name string) Subspace {
	child := append([]byte{}, s.Prefix...)
	child = append(child, Pack(recordquery.Tuple{recordquery.Str(name)})...)
	return Subspace{Prefix: child}
}

// EqualityEnd appends the 0xFF sentinel byte to a packed equality prefix
// so a range scan includes every suffix following that prefix (spec.md
// §4.F: "If begin == end, append 0xFF to end").
func EqualityEnd(packed []byte) []byte {
	return append(append([]byte{}, packed...), 0xFF)
}
