package acdat

import "testing"

func buildSample(t *testing.T, ignoreCase bool) *Automaton {
	t.Helper()
	b := NewBuilder(ignoreCase)
	entries := []Entry{
		{Key: "he", Value: 1},
		{Key: "she", Value: 2},
		{Key: "his", Value: 3},
		{Key: "hers", Value: 4},
	}
	if err := b.AddAll(entries); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return a
}

func TestClassicOverlap(t *testing.T) {
	a := buildSample(t, false)
	hits := a.Parse("ushers")
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits in %q, got %d: %v", "ushers", len(hits), hits)
	}
	want := map[string]bool{"she": false, "he": false, "hers": false}
	for _, h := range hits {
		key := "ushers"[h.Begin:h.End]
		if _, ok := want[key]; !ok {
			t.Fatalf("unexpected hit %q", key)
		}
		want[key] = true
	}
	for k, seen := range want {
		if !seen {
			t.Fatalf("expected pattern %q to be reported", k)
		}
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	b := NewBuilder(false)
	if err := b.Add("", 1); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBuildIsSingleShot(t *testing.T) {
	b := NewBuilder(false)
	if err := b.Add("a", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := b.Add("b", nil); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState after Build, got %v", err)
	}
	if _, err := b.Build(); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState on second Build, got %v", err)
	}
}

func TestNoMatchReturnsEmpty(t *testing.T) {
	a := buildSample(t, false)
	if hits := a.Parse("zzz quux"); len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
	if a.Matches("zzz quux") {
		t.Fatalf("Matches reported true for non-matching text")
	}
}

func TestIgnoreCase(t *testing.T) {
	a := buildSample(t, true)
	hits := a.Parse("USHERS")
	if len(hits) != 3 {
		t.Fatalf("expected 3 case-insensitive hits, got %d: %v", len(hits), hits)
	}
}

func TestValueOfExactMatchOnly(t *testing.T) {
	a := buildSample(t, false)
	v, ok := a.ValueOf("hers")
	if !ok || v != 4 {
		t.Fatalf("ValueOf(hers) = %v, %v; want 4, true", v, ok)
	}
	if _, ok := a.ValueOf("her"); ok {
		t.Fatalf("ValueOf(her) should not match a non-pattern prefix")
	}
	if _, ok := a.ValueOf("hershey"); ok {
		t.Fatalf("ValueOf(hershey) should not match a superstring")
	}
}

func TestFindFirstStopsEarly(t *testing.T) {
	a := buildSample(t, false)
	hit, ok := a.FindFirst("ushers")
	if !ok {
		t.Fatalf("expected a match")
	}
	if hit.End != 4 {
		t.Fatalf("expected the earliest-ending match, got %+v", hit)
	}
}

func TestValueAtReturnsAddedValue(t *testing.T) {
	b := NewBuilder(false)
	_ = b.Add("x", 42)
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := a.ValueAt(0); got != 42 {
		t.Fatalf("ValueAt(0) = %v, want 42", got)
	}
}

func TestParseRangeRejectsOutOfBounds(t *testing.T) {
	a := buildSample(t, false)
	buf := []uint16{'h', 'e'}
	err := a.ParseRange(buf, 1, 5, func(Hit) bool { return true })
	if err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParseFuncRejectsNilVisitor(t *testing.T) {
	a := buildSample(t, false)
	if err := a.ParseFunc("he", nil); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestEmptyAutomaton(t *testing.T) {
	b := NewBuilder(false)
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build on empty builder: %v", err)
	}
	if a.Count() != 0 {
		t.Fatalf("expected Count() == 0, got %d", a.Count())
	}
	if hits := a.Parse("anything"); len(hits) != 0 {
		t.Fatalf("expected no hits from an empty automaton, got %v", hits)
	}
}

func TestHitString(t *testing.T) {
	cases := []struct {
		hit  Hit
		want string
	}{
		{Hit{Begin: 1, End: 3, PatternIndex: 0, Value: "he"}, "[1:3]=he"},
		{Hit{Begin: 1, End: 5, PatternIndex: 3, Value: 4}, "[1:5]=4"},
		{Hit{Begin: 0, End: 0, PatternIndex: 0, Value: nil}, "[0:0]=<nil>"},
	}
	for _, c := range cases {
		if got := c.hit.String(); got != c.want {
			t.Fatalf("Hit%+v.String() = %q, want %q", c.hit, got, c.want)
		}
	}
}

func TestClassicOverlapHitTable(t *testing.T) {
	a := buildSample(t, false)
	hits := a.Parse("uhers")
	type want struct {
		value      any
		begin, end int
	}
	wants := []want{
		{1, 1, 3},
		{4, 1, 5},
	}
	if len(hits) != len(wants) {
		t.Fatalf("expected %d hits in %q, got %d: %v", len(wants), "uhers", len(hits), hits)
	}
	for i, w := range wants {
		h := hits[i]
		if h.Begin != w.begin || h.End != w.end || h.Value != w.value {
			t.Fatalf("hit %d = %+v, want {value:%v begin:%d end:%d}", i, h, w.value, w.begin, w.end)
		}
	}
}

func TestCancellationStopsAfterExactlyOneInvocation(t *testing.T) {
	b := NewBuilder(false)
	entries := []Entry{
		{Key: "foo", Value: 1},
		{Key: "bar", Value: 2},
	}
	if err := b.AddAll(entries); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var calls int
	err = a.ParseFunc("sfwtfoowercwbarqwrcq", func(Hit) bool {
		calls++
		return false
	})
	if err != nil {
		t.Fatalf("ParseFunc: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 visitor invocation, got %d", calls)
	}
}

func TestDuplicateKeyReportsEveryInsertion(t *testing.T) {
	b := NewBuilder(false)
	if err := b.Add("dup", "first"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add("dup", "second"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	hits := a.Parse("dup")
	if len(hits) != 2 {
		t.Fatalf("expected both insertions to be reported as distinct pattern indices, got %v", hits)
	}
}
