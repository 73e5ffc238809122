package acdat

// Automaton is an immutable, compiled Aho-Corasick double array trie.
// It is safe for concurrent use by multiple goroutines: Parse,
// Matches, FindFirst and ValueOf only read the tables a Builder
// produced.
type Automaton struct {
	base       []int32
	check      []int32
	fail       []int32
	output     [][]int32
	keyLengths []int
	values     []any
	hasValues  bool
	ignoreCase bool
}

// Count returns the number of patterns compiled into the automaton.
func (a *Automaton) Count() int {
	return len(a.keyLengths)
}

// ValueAt returns the value associated with the pattern at index,
// or nil if the automaton carries no values. Callers must ensure
// 0 <= index < Count(); out-of-range indices are not checked.
func (a *Automaton) ValueAt(index int) any {
	if !a.hasValues {
		return nil
	}
	return a.values[index]
}

// ValueOf performs an exact-match lookup: it returns the value
// associated with key and true if key was added to the builder that
// produced this automaton, or (nil, false) otherwise. It does not
// report substrings or supersets of key, only an exact match of the
// whole (optionally case-folded) key against a complete pattern.
func (a *Automaton) ValueOf(key string) (any, bool) {
	units := a.encode(key)

	// s tracks base-of-current-state directly, not the state's own
	// DAT index, mirroring the double array's classic exact-match
	// walk: each step folds the usual "look up base[index]" into the
	// loop variable itself instead of re-deriving it every iteration.
	s := a.base[0]
	for _, u := range units {
		p := s + int32(u) + 1
		if p < 0 || int(p) >= len(a.check) || a.check[p] != s {
			return nil, false
		}
		s = a.base[p]
	}

	p := s
	if p < 0 || int(p) >= len(a.check) || a.check[p] != s {
		return nil, false
	}
	n := a.base[p]
	if n >= 0 {
		return nil, false
	}
	idx := int(-n - 1)
	return a.ValueAt(idx), true
}

// Matches reports whether any pattern occurs anywhere in text.
func (a *Automaton) Matches(text string) bool {
	found := false
	a.scan(a.encode(text), func(Hit) bool {
		found = true
		return false
	})
	return found
}

// FindFirst returns the earliest-ending occurrence in text, or false
// if no pattern occurs.
func (a *Automaton) FindFirst(text string) (Hit, bool) {
	var first Hit
	found := false
	a.scan(a.encode(text), func(h Hit) bool {
		first = h
		found = true
		return false
	})
	return first, found
}

// Parse scans text in one left-to-right pass and returns every
// occurrence of every pattern, including overlapping ones, ordered by
// end position and, within the same end position, from the innermost
// (deepest-state) match to the ones inherited through failure links.
func (a *Automaton) Parse(text string) []Hit {
	var hits []Hit
	a.scan(a.encode(text), func(h Hit) bool {
		hits = append(hits, h)
		return true
	})
	return hits
}

// ParseFunc scans text like Parse but streams hits to visit instead of
// collecting them, stopping early if visit returns false.
func (a *Automaton) ParseFunc(text string, visit func(Hit) bool) error {
	if visit == nil {
		return ErrInvalidArgument
	}
	a.scan(a.encode(text), visit)
	return nil
}

// ParseRange scans a contiguous sub-range of a caller-owned code unit
// buffer, reporting Begin/End positions relative to the start of that
// sub-range.
func (a *Automaton) ParseRange(buffer []uint16, start, length int, visit func(Hit) bool) error {
	if buffer == nil || visit == nil {
		return ErrInvalidArgument
	}
	if start < 0 || length < 0 || start+length < start || start+length > len(buffer) {
		return ErrInvalidArgument
	}
	units := buffer[start : start+length]
	if a.ignoreCase {
		units = foldUnits(units)
	}
	a.scan(units, visit)
	return nil
}

func (a *Automaton) encode(text string) []uint16 {
	units := encodeUnits(text)
	if a.ignoreCase {
		units = foldUnits(units)
	}
	return units
}

func (a *Automaton) valueFor(patternIndex int32) any {
	if !a.hasValues {
		return nil
	}
	return a.values[patternIndex]
}

// scan drives the goto/fail state machine over units, invoking visit
// for each hit in left-to-right, innermost-first order. It stops as
// soon as visit returns false.
func (a *Automaton) scan(units []uint16, visit func(Hit) bool) {
	s := int32(0)
	for i, u := range units {
		s = a.step(s, u)
		for _, k := range a.output[s] {
			kl := int(a.keyLengths[k])
			hit := Hit{
				Begin:        i + 1 - kl,
				End:          i + 1,
				PatternIndex: int(k),
				Value:        a.valueFor(k),
			}
			if !visit(hit) {
				return
			}
		}
	}
}

// step transitions from state s on code unit c, following failure
// links until a valid transition is found. State zero always accepts
// any code unit by self-looping, which is what guarantees the loop
// terminates.
func (a *Automaton) step(s int32, c uint16) int32 {
	for {
		b := a.base[s]
		if b >= 0 {
			p := b + int32(c) + 1
			if int(p) < len(a.check) && a.check[p] == b {
				return p
			}
		}
		if s == 0 {
			return 0
		}
		s = a.fail[s]
	}
}
