package btree

import (
	"bytes"
	"sort"
)

// node is a B+Tree node with decoded key data. Leaf and internal nodes
// share one struct distinguished by the leaf tag: values and the sibling
// links are leaf-only, children is internal-only.
type node struct {
	leaf   bool
	parent *node // nil for the root
	keys   [][]byte

	// Leaf fields
	values [][]byte
	prev   *node // left sibling in the leaf chain
	next   *node // right sibling in the leaf chain

	// Internal fields; len(children) == len(keys)+1
	children []*node
}

// search returns the index of key within n.keys and whether it is present.
// When absent, the index is the sorted insertion position.
func (n *node) search(key []byte) (int, bool) {
	idx := sort.Search(len(n.keys), func(i int) bool {
		return bytes.Compare(n.keys[i], key) >= 0
	})
	if idx < len(n.keys) && bytes.Equal(n.keys[idx], key) {
		return idx, true
	}
	return idx, false
}

// childIndexFor returns the descent position for key: the first separator
// strictly greater than key, so equal keys route right.
func (n *node) childIndexFor(key []byte) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return bytes.Compare(key, n.keys[i]) < 0
	})
}

// indexOfChild returns the position of child among n.children.
func (n *node) indexOfChild(child *node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// insertAt places a key/value pair at position idx in a leaf.
func (n *node) insertAt(idx int, key, value []byte) {
	n.keys = append(n.keys, nil)
	copy(n.keys[idx+1:], n.keys[idx:])
	n.keys[idx] = key

	n.values = append(n.values, nil)
	copy(n.values[idx+1:], n.values[idx:])
	n.values[idx] = value
}

// removeAt erases the key/value pair at position idx from a leaf.
func (n *node) removeAt(idx int) {
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.values = append(n.values[:idx], n.values[idx+1:]...)
}

// removeKeyAt erases the separator at position idx from an internal node.
func (n *node) removeKeyAt(idx int) {
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
}

// removeChildAt erases the child pointer at position idx from an internal
// node. The child itself is not touched.
func (n *node) removeChildAt(idx int) {
	n.children = append(n.children[:idx], n.children[idx+1:]...)
}
