package orderbook

import "github.com/tidwall/btree"

// sideIndex keeps the fillable orders of one side sorted by priority,
// worst first. The best order is the maximum.
type sideIndex struct {
	tree *btree.BTreeG[*Order]
}

func newSideIndex() *sideIndex {
	return &sideIndex{
		tree: btree.NewBTreeGOptions(func(a, b *Order) bool {
			return a.PriorityRank(b) < 0
		}, btree.Options{NoLocks: true}),
	}
}

func (s *sideIndex) insert(o *Order) {
	s.tree.Set(o)
}

func (s *sideIndex) remove(o *Order) {
	s.tree.Delete(o)
}

func (s *sideIndex) best() (*Order, bool) {
	return s.tree.Max()
}

func (s *sideIndex) len() int {
	return s.tree.Len()
}

// ascending walks worst -> best.
func (s *sideIndex) ascending(fn func(*Order) bool) {
	s.tree.Scan(fn)
}
