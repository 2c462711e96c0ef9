package base

const (
	// MaxKeySize is the maximum length of a key, in bytes. Keys are held
	// inline in tree nodes and in every WAL record, so this is kept small.
	MaxKeySize = 128

	// MaxValueSize is the maximum length of a value, in bytes.
	MaxValueSize = 1024

	// DefaultMaxDegree is the default branching factor of the tree. A node
	// holding this many keys overflows and splits.
	DefaultMaxDegree = 4

	// MinMaxDegree is the smallest branching factor for which the
	// borrow/merge arithmetic is sound (minKeys must come out >= 2).
	MinMaxDegree = 3
)
