// Package scheduler provides priority scheduling for reasoning nodes,
// backed by a mergeable Fibonacci heap.
package scheduler

import (
	"errors"
	"math"
)

// ErrKeyIncrease indicates DecreaseKey was called with a larger key.
// Raising a key is not supported directly; extract and reinsert instead.
var ErrKeyIncrease = errors.New("new key is greater than current key")

// Item is an opaque handle to an element in a Heap.
// It stays valid until the element is extracted.
type Item[T any] struct {
	value T
	key   float64
	// seq breaks ties between equal keys in insertion order.
	seq uint64

	parent *Item[T]
	child  *Item[T]
	left   *Item[T]
	right  *Item[T]
	degree int
	marked bool
}

// Value returns the element stored in the item.
func (it *Item[T]) Value() T { return it.value }

// Key returns the item's current priority key.
func (it *Item[T]) Key() float64 { return it.key }

// Heap is a min-ordered Fibonacci heap: O(1) amortized Insert and
// DecreaseKey, O(log n) amortized ExtractMin. Lower keys are extracted first;
// equal keys come out in insertion order. Not safe for concurrent use.
type Heap[T any] struct {
	min  *Item[T]
	size int
	seq  uint64
}

// NewHeap creates an empty heap.
func NewHeap[T any]() *Heap[T] {
	return &Heap[T]{}
}

// IsEmpty returns true if the heap has no elements.
func (h *Heap[T]) IsEmpty() bool { return h.size == 0 }

// Size returns the number of elements in the heap.
func (h *Heap[T]) Size() int { return h.size }

// less orders items by key, then insertion sequence.
func less[T any](a, b *Item[T]) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.seq < b.seq
}

// Insert adds a value with the given key and returns its handle. O(1) amortized.
func (h *Heap[T]) Insert(key float64, value T) *Item[T] {
	it := &Item[T]{value: value, key: key, seq: h.seq}
	h.seq++
	it.left = it
	it.right = it
	h.addToRootList(it)
	h.size++
	return it
}

// Min returns the minimum item without removing it, or nil if empty.
func (h *Heap[T]) Min() *Item[T] { return h.min }

// ExtractMin removes and returns the minimum-key item.
// Returns nil if the heap is empty. O(log n) amortized.
func (h *Heap[T]) ExtractMin() *Item[T] {
	min := h.min
	if min == nil {
		return nil
	}

	// Promote children to the root list.
	if min.child != nil {
		child := min.child
		for {
			next := child.right
			child.parent = nil
			child.left = child
			child.right = child
			h.addToRootList(child)
			if next == min.child {
				break
			}
			child = next
		}
		min.child = nil
	}

	h.removeFromRootList(min)
	h.size--

	if min == min.right {
		h.min = nil
	} else {
		h.min = min.right
		h.consolidate()
	}

	min.left = nil
	min.right = nil
	min.degree = 0
	return min
}

// DecreaseKey lowers an item's key and restructures via cascading cuts.
// O(1) amortized. Returns ErrKeyIncrease if the new key is larger.
func (h *Heap[T]) DecreaseKey(it *Item[T], newKey float64) error {
	if newKey > it.key {
		return ErrKeyIncrease
	}
	it.key = newKey

	parent := it.parent
	if parent != nil && less(it, parent) {
		h.cut(it, parent)
		h.cascadingCut(parent)
	}
	if less(it, h.min) {
		h.min = it
	}
	return nil
}

// Merge moves all elements of other into h, leaving other empty. O(1).
// Insertion order within each heap is preserved, but items carried over from
// other keep their original sequence numbers, so extraction order between
// equal keys from the two heaps is unspecified. The counter advances to the
// larger of the two, so inserts after the merge always tie-break last.
func (h *Heap[T]) Merge(other *Heap[T]) {
	if other == nil || other.min == nil {
		return
	}
	if h.min == nil {
		h.min = other.min
	} else {
		// Splice the two circular root lists together.
		hRight := h.min.right
		oLeft := other.min.left
		h.min.right = other.min
		other.min.left = h.min
		oLeft.right = hRight
		hRight.left = oLeft
		if less(other.min, h.min) {
			h.min = other.min
		}
	}
	h.size += other.size
	if other.seq > h.seq {
		h.seq = other.seq
	}
	other.min = nil
	other.size = 0
}

// addToRootList splices an item into the circular root list.
func (h *Heap[T]) addToRootList(it *Item[T]) {
	if h.min == nil {
		it.left = it
		it.right = it
		h.min = it
		return
	}
	it.right = h.min.right
	it.left = h.min
	h.min.right.left = it
	h.min.right = it
	if less(it, h.min) {
		h.min = it
	}
}

// removeFromRootList unlinks an item from the circular root list.
func (h *Heap[T]) removeFromRootList(it *Item[T]) {
	it.left.right = it.right
	it.right.left = it.left
}

// consolidate links root trees of equal degree pairwise until all root
// degrees are distinct, then rebuilds the min pointer.
func (h *Heap[T]) consolidate() {
	// Max degree is bounded by log_phi(n).
	maxDegree := int(math.Log2(float64(h.size))/math.Log2(math.Phi)) + 2
	slots := make([]*Item[T], maxDegree+1)

	// Snapshot the root list; linking mutates it as we go.
	var roots []*Item[T]
	if h.min != nil {
		node := h.min
		for {
			roots = append(roots, node)
			node = node.right
			if node == h.min {
				break
			}
		}
	}

	for _, node := range roots {
		x := node
		for slots[x.degree] != nil {
			y := slots[x.degree]
			if less(y, x) {
				x, y = y, x
			}
			slots[x.degree] = nil
			h.link(y, x)
		}
		slots[x.degree] = x
	}

	h.min = nil
	for _, root := range slots {
		if root == nil {
			continue
		}
		root.left = root
		root.right = root
		h.addToRootList(root)
	}
}

// link makes y a child of x. Both must be roots with equal degree,
// and x must not order after y.
func (h *Heap[T]) link(y, x *Item[T]) {
	h.removeFromRootList(y)
	y.parent = x
	y.marked = false

	if x.child == nil {
		y.left = y
		y.right = y
		x.child = y
	} else {
		y.right = x.child.right
		y.left = x.child
		x.child.right.left = y
		x.child.right = y
	}
	x.degree++
}

// cut detaches it from its parent and returns it to the root list.
func (h *Heap[T]) cut(it, parent *Item[T]) {
	if it.right == it {
		parent.child = nil
	} else {
		it.left.right = it.right
		it.right.left = it.left
		if parent.child == it {
			parent.child = it.right
		}
	}
	parent.degree--

	it.parent = nil
	it.marked = false
	it.left = it
	it.right = it
	h.addToRootList(it)
}

// cascadingCut walks up the tree cutting marked ancestors.
func (h *Heap[T]) cascadingCut(it *Item[T]) {
	parent := it.parent
	if parent == nil {
		return
	}
	if !it.marked {
		it.marked = true
		return
	}
	h.cut(it, parent)
	h.cascadingCut(parent)
}
