package acdat

import "fmt"

// Hit describes one occurrence of a pattern in a scanned text: the
// half-open range of code units it spans, the index of the pattern in
// insertion order, and the value associated with that pattern (nil
// when the automaton was built or loaded without values).
type Hit struct {
	Begin        int
	End          int
	PatternIndex int
	Value        any
}

func (h Hit) String() string {
	return fmt.Sprintf("[%d:%d]=%v", h.Begin, h.End, h.Value)
}
