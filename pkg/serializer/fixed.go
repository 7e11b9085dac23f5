package serializer

import "encoding/binary"

// Int64 serializes an int64 as 8 little-endian bytes, the same byte order
// the btree node header itself uses for its count and child-pointer fields.
type Int64 struct{}

func (Int64) Size() int { return 8 }

func (Int64) Serialize(v int64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}

func (Int64) Deserialize(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

// CompareInt64 is the natural ordering comparator for int64 keys.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Uint64 serializes a uint64 as 8 little-endian bytes.
type Uint64 struct{}

func (Uint64) Size() int { return 8 }

func (Uint64) Serialize(v uint64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, v)
}

func (Uint64) Deserialize(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// CompareUint64 is the natural ordering comparator for uint64 keys.
func CompareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Int32 serializes an int32 as 4 little-endian bytes.
type Int32 struct{}

func (Int32) Size() int { return 4 }

func (Int32) Serialize(v int32, buf []byte) {
	binary.LittleEndian.PutUint32(buf, uint32(v))
}

func (Int32) Deserialize(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf))
}

// CompareInt32 is the natural ordering comparator for int32 keys.
func CompareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FixedBytes serializes a []byte of exactly N bytes, zero-padding shorter
// values and truncating (rather than erroring) longer ones — callers that
// care about exactness should validate length themselves before inserting.
type FixedBytes struct {
	N int
}

func (f FixedBytes) Size() int { return f.N }

func (f FixedBytes) Serialize(v []byte, buf []byte) {
	n := copy(buf[:f.N], v)
	for i := n; i < f.N; i++ {
		buf[i] = 0
	}
}

func (f FixedBytes) Deserialize(buf []byte) []byte {
	out := make([]byte, f.N)
	copy(out, buf[:f.N])
	return out
}

// CompareFixedBytes orders two fixed-width byte strings lexicographically.
func CompareFixedBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// FixedString serializes a string as exactly N bytes, the same trade-off as
// FixedBytes (zero-padded, silently truncated).
type FixedString struct {
	N int
}

func (f FixedString) Size() int { return f.N }

func (f FixedString) Serialize(v string, buf []byte) {
	n := copy(buf[:f.N], v)
	for i := n; i < f.N; i++ {
		buf[i] = 0
	}
}

func (f FixedString) Deserialize(buf []byte) string {
	raw := buf[:f.N]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return string(raw[:end])
}

// CompareFixedString orders two fixed-width strings lexicographically.
func CompareFixedString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
