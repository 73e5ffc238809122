package acdat

import "sort"

// noEmit marks a node whose own emits set is empty: no pattern
// terminates exactly at that node.
const noEmit = -1 << 31

// trieNode is the temporary trie built while patterns are added to a
// Builder. It is discarded once the double array and failure/output
// tables have been derived from it.
type trieNode struct {
	depth       int
	isRoot      bool
	success     map[uint16]*trieNode
	emits       []int // pattern indices terminating here, insertion order, own entries first
	largestEmit int   // max of emits as captured before failure-link merging; noEmit when emits is empty
	failure     *trieNode
	index       int // assigned DAT slot once this node is installed
}

func newTrieNode(depth int, isRoot bool) *trieNode {
	return &trieNode{
		depth:       depth,
		isRoot:      isRoot,
		success:     make(map[uint16]*trieNode),
		largestEmit: noEmit,
	}
}

// addState returns the child reached by code unit c, creating it if
// this is the first pattern to pass through here.
func (n *trieNode) addState(c uint16) *trieNode {
	if child, ok := n.success[c]; ok {
		return child
	}
	child := newTrieNode(n.depth+1, false)
	n.success[c] = child
	return child
}

// addEmit records that the pattern with the given index terminates at
// this node. An index already recorded here is ignored; re-adding the
// same key arrives with a new index and is recorded alongside the old.
func (n *trieNode) addEmit(patternIndex int) {
	for _, e := range n.emits {
		if e == patternIndex {
			return
		}
	}
	n.emits = append(n.emits, patternIndex)
	if patternIndex > n.largestEmit {
		n.largestEmit = patternIndex
	}
}

// mergeEmits appends a failure node's emits after this node's own,
// preserving the deeper-state-first ordering Parse relies on. It never
// touches largestEmit: that value is fixed once phase one of the
// build has encoded this node's DAT leaf, before any failure links
// exist.
func (n *trieNode) mergeEmits(inherited []int) {
	for _, e := range inherited {
		dup := false
		for _, cur := range n.emits {
			if cur == e {
				dup = true
				break
			}
		}
		if !dup {
			n.emits = append(n.emits, e)
		}
	}
}

// isAcceptable reports whether this node itself represents the end of
// a pattern. Depth zero is excluded here: the root only contributes a
// terminal slot through the special-cased check its caller performs
// directly, since an empty-string pattern can never reach this node
// (Builder.Add rejects empty keys).
func (n *trieNode) isAcceptable() bool {
	return n.depth > 0 && len(n.emits) > 0
}

// nextState follows a real transition on c, or falls back to the root
// itself when ignoreRoot is false and n is the root — the self-loop
// that guarantees failure-link construction always terminates.
func (n *trieNode) nextState(c uint16, ignoreRoot bool) *trieNode {
	if child, ok := n.success[c]; ok {
		return child
	}
	if n.isRoot && !ignoreRoot {
		return n
	}
	return nil
}

// sortedChildCodes returns this node's child code units in ascending
// order. The double array construction relies on siblings being
// installed in a fixed, deterministic order.
func (n *trieNode) sortedChildCodes() []uint16 {
	codes := make([]uint16, 0, len(n.success))
	for c := range n.success {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
