// Package serializer provides the fixed-width encode/decode contract a
// btree.Tree needs for its key and value types, plus a small library of
// ready-made serializers for common fixed-size Go types.
package serializer

// Serializer encodes and decodes values of type T to and from a fixed-width
// byte representation. Size must be constant for the lifetime of a given
// Serializer value: it determines the on-page layout of every node that
// uses it (see btree's element_size derivation).
type Serializer[T any] interface {
	// Size is the number of bytes Serialize writes and Deserialize reads.
	// For a key serializer this must be >= 1; for a value serializer it may
	// be 0 (a set-like index with no payload).
	Size() int

	// Serialize writes the fixed-width encoding of v into buf[:Size()].
	// buf is guaranteed to have at least Size() bytes available.
	Serialize(v T, buf []byte)

	// Deserialize reads a value back out of buf[:Size()].
	Deserialize(buf []byte) T
}

// Comparator imposes the total order a key type needs: negative when a<b,
// zero when equal, positive when a>b.
type Comparator[K any] func(a, b K) int
