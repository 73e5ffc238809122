package acdat

import "math"

// paddingSlots is the trailing headroom appended to the base/check
// arrays after construction so that goto's bounds check can be
// skipped for any code unit reachable from a state near the end of
// the array.
const paddingSlots = 65535

// initialDATCapacity seeds the base/check/used arrays before the
// first free-slot search runs. A generously sized initial block keeps
// early inserts from repeatedly growing the array while the trie is
// still shallow.
const initialDATCapacity = 65536 * 32

// maxDATCapacity bounds how large the double array is allowed to
// grow. Past this, Build reports ErrCapacityExhausted rather than
// risk integer overflow in slot arithmetic.
var maxDATCapacity = int(0.95 * float64(math.MaxInt32))

// Entry pairs a pattern with the value Parse and ValueOf should
// report when that pattern matches. Value may be nil.
type Entry struct {
	Key   string
	Value any
}

// Builder accumulates patterns and their values, then compiles them
// into an immutable Automaton. A Builder is single-shot: once Build
// has been called, further Add/AddAll calls fail with
// ErrInvalidState.
type Builder struct {
	ignoreCase bool
	built      bool
	root       *trieNode
	keyLengths []int
	values     []any
}

// NewBuilder returns an empty Builder. When ignoreCase is true, every
// added key is folded to invariant upper case before insertion, and
// Automaton lookups fold their input the same way.
func NewBuilder(ignoreCase bool) *Builder {
	return &Builder{
		ignoreCase: ignoreCase,
		root:       newTrieNode(0, true),
	}
}

// Add inserts key with its associated value under the next pattern
// index (the number of patterns added before it). It fails with ErrInvalidArgument for an empty key (the
// automaton never distinguishes an absent key from an empty one) and
// with ErrInvalidState once Build has run.
func (b *Builder) Add(key string, value any) error {
	if b.built {
		return ErrInvalidState
	}
	if key == "" {
		return ErrInvalidArgument
	}
	units := encodeUnits(key)
	if b.ignoreCase {
		units = foldUnits(units)
	}
	patternIndex := len(b.keyLengths)
	node := b.root
	for _, u := range units {
		node = node.addState(u)
	}
	node.addEmit(patternIndex)
	b.keyLengths = append(b.keyLengths, len(units))
	b.values = append(b.values, value)
	return nil
}

// AddAll inserts every entry in order, reserving storage up front
// since the slice already reports its length.
func (b *Builder) AddAll(entries []Entry) error {
	if b.built {
		return ErrInvalidState
	}
	if entries == nil {
		return ErrInvalidArgument
	}
	newCap := len(b.keyLengths) + len(entries)
	if cap(b.keyLengths) < newCap {
		grownLengths := make([]int, len(b.keyLengths), newCap)
		copy(grownLengths, b.keyLengths)
		b.keyLengths = grownLengths

		grownValues := make([]any, len(b.values), newCap)
		copy(grownValues, b.values)
		b.values = grownValues
	}
	for _, e := range entries {
		if err := b.Add(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// Build compiles every added pattern into a double array trie
// automaton with failure links and output tables. It may only be
// called once per Builder.
func (b *Builder) Build() (*Automaton, error) {
	if b.built {
		return nil, ErrInvalidState
	}
	b.built = true

	enc := newDatEncoder(len(b.keyLengths))
	if err := enc.run(b.root); err != nil {
		return nil, err
	}

	fail, output := computeFailureAndOutput(b.root, enc.size)
	enc.compact()

	return &Automaton{
		base:       enc.base,
		check:      enc.check,
		fail:       fail,
		output:     output,
		keyLengths: b.keyLengths,
		values:     b.values,
		hasValues:  true,
		ignoreCase: b.ignoreCase,
	}, nil
}

// edgeSibling is one entry of a node's install block: either a real
// child reached via code unit edge-1, or (when node is nil) the
// synthetic terminator representing the parent's own acceptance,
// installed at edge 0.
type edgeSibling struct {
	edge int
	node *trieNode
	emit int // valid only when node == nil
}

func fetchRoot(root *trieNode) []edgeSibling {
	var siblings []edgeSibling
	if len(root.emits) > 0 {
		siblings = append(siblings, edgeSibling{edge: 0, emit: root.largestEmit})
	}
	for _, c := range root.sortedChildCodes() {
		siblings = append(siblings, edgeSibling{edge: int(c) + 1, node: root.success[c]})
	}
	return siblings
}

func fetchChildren(n *trieNode) []edgeSibling {
	var siblings []edgeSibling
	if n.isAcceptable() {
		siblings = append(siblings, edgeSibling{edge: 0, emit: n.largestEmit})
	}
	for _, c := range n.sortedChildCodes() {
		siblings = append(siblings, edgeSibling{edge: int(c) + 1, node: n.success[c]})
	}
	return siblings
}

// datEncoder holds the working state of the double array construction:
// the base/check arrays under construction, the used bitmap guarding
// free-slot reuse, and the rolling position the next free-slot search
// resumes from.
type datEncoder struct {
	base         []int32
	check        []int32
	used         []bool
	nextCheckPos int
	size         int // one past the highest slot any block has touched
	progress     int // leaves installed so far, feeds the growth heuristic
	totalKeys    int
}

func newDatEncoder(totalKeys int) *datEncoder {
	return &datEncoder{totalKeys: totalKeys}
}

func (e *datEncoder) resizeTo(n int) {
	if n <= len(e.base) {
		return
	}
	grownBase := make([]int32, n)
	copy(grownBase, e.base)
	e.base = grownBase

	grownCheck := make([]int32, n)
	copy(grownCheck, e.check)
	e.check = grownCheck

	grownUsed := make([]bool, n)
	copy(grownUsed, e.used)
	e.used = grownUsed
}

// growFor ensures index neededIndex is addressable, growing by
// max(1.05, K/(progress+1)) times the current capacity until it fits,
// capped at maxDATCapacity.
func (e *datEncoder) growFor(neededIndex int) error {
	if neededIndex < len(e.base) {
		return nil
	}
	if neededIndex >= maxDATCapacity {
		return ErrCapacityExhausted
	}
	newCap := len(e.base)
	if newCap == 0 {
		newCap = initialDATCapacity
	}
	for newCap <= neededIndex {
		factor := float64(e.totalKeys) / float64(e.progress+1)
		if factor < 1.05 {
			factor = 1.05
		}
		newCap = int(float64(newCap)*factor) + 1
		if newCap > maxDATCapacity {
			newCap = maxDATCapacity
		}
	}
	e.resizeTo(newCap)
	return nil
}

// run performs phase one of construction: laying out the double array
// from the temporary trie. Phases two (deriving failure links and
// output tables) and three (shrinking the array to its final
// footprint) are driven by Builder.Build.
func (e *datEncoder) run(root *trieNode) error {
	e.resizeTo(initialDATCapacity)
	e.base[0] = 1
	root.index = 0

	rootSiblings := fetchRoot(root)
	if len(rootSiblings) == 0 {
		for i := range e.check {
			e.check[i] = -1
		}
		e.size = 0
		return nil
	}

	type queueItem struct {
		slot     int
		siblings []edgeSibling
	}
	queue := []queueItem{{slot: 0, siblings: rootSiblings}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		begin, err := e.install(item.siblings)
		if err != nil {
			return err
		}
		e.base[item.slot] = int32(begin)

		for _, s := range item.siblings {
			slot := begin + s.edge
			if s.node == nil {
				e.base[slot] = int32(-(s.emit + 1))
				e.progress++
				continue
			}
			s.node.index = slot
			childSiblings := fetchChildren(s.node)
			if len(childSiblings) == 0 {
				e.base[slot] = int32(-(s.node.largestEmit + 1))
				e.progress++
				continue
			}
			queue = append(queue, queueItem{slot: slot, siblings: childSiblings})
		}
	}
	return nil
}

// install runs the free-block search for one sibling list and returns
// the accepted begin offset, with check[begin+edge] staked out for
// every sibling in the list.
func (e *datEncoder) install(siblings []edgeSibling) (int, error) {
	oldNextCheckPos := e.nextCheckPos
	firstEdge := siblings[0].edge
	lastEdge := siblings[len(siblings)-1].edge

	pos := firstEdge + 1
	if oldNextCheckPos > pos {
		pos = oldNextCheckPos
	}
	pos--

	nonzeroNum := 0
	var begin int
	for {
		pos++
		if err := e.growFor(pos); err != nil {
			return 0, err
		}
		if e.check[pos] != 0 {
			nonzeroNum++
			continue
		}

		begin = pos - firstEdge
		if err := e.growFor(begin + lastEdge); err != nil {
			return 0, err
		}
		if e.used[begin] {
			continue
		}

		conflict := false
		for i := 1; i < len(siblings); i++ {
			if e.check[begin+siblings[i].edge] != 0 {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		break
	}

	span := pos - oldNextCheckPos + 1
	if span > 0 && float64(nonzeroNum)/float64(span) >= 0.95 {
		e.nextCheckPos = pos
	}

	e.used[begin] = true
	for _, s := range siblings {
		e.check[begin+s.edge] = int32(begin)
	}
	if top := begin + lastEdge + 1; top > e.size {
		e.size = top
	}
	return begin, nil
}

// compact shrinks base/check to exactly size+paddingSlots, discarding
// the working headroom the free-slot search reserved.
func (e *datEncoder) compact() {
	final := e.size + paddingSlots
	if final >= len(e.base) {
		e.resizeTo(final)
		return
	}
	e.base = append([]int32(nil), e.base[:final]...)
	e.check = append([]int32(nil), e.check[:final]...)
}

// computeFailureAndOutput runs the BFS that assigns every reachable
// trie node its failure link and materializes its output table entry.
// It must run after phase one so every node already has its DAT index
// and its own (pre-merge) emits settled.
func computeFailureAndOutput(root *trieNode, size int) ([]int32, [][]int32) {
	fail := make([]int32, size+1)
	output := make([][]int32, size+1)

	materialize := func(n *trieNode) {
		if len(n.emits) == 0 {
			return
		}
		out := make([]int32, len(n.emits))
		for i, e := range n.emits {
			out[i] = int32(e)
		}
		output[n.index] = out
	}

	root.failure = root
	var queue []*trieNode
	for _, c := range root.sortedChildCodes() {
		child := root.success[c]
		child.failure = root
		fail[child.index] = 0
		materialize(child)
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, c := range s.sortedChildCodes() {
			t := s.success[c]
			trace := s.failure
			for trace.nextState(c, false) == nil {
				trace = trace.failure
			}
			t.failure = trace.nextState(c, false)
			fail[t.index] = int32(t.failure.index)
			t.mergeEmits(t.failure.emits)
			materialize(t)
			queue = append(queue, t)
		}
	}
	return fail, output
}
