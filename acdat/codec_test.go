package acdat

import (
	"bytes"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	b := NewBuilder(false)
	entries := []Entry{
		{Key: "he", Value: int64(1)},
		{Key: "she", Value: int64(2)},
		{Key: "his", Value: int64(3)},
		{Key: "hers", Value: int64(4)},
	}
	if err := b.AddAll(entries); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	original, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if err := Save(&buf, original, true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(&buf, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantHits := original.Parse("ushers")
	gotHits := loaded.Parse("ushers")
	if len(wantHits) != len(gotHits) {
		t.Fatalf("hit count mismatch: want %d, got %d", len(wantHits), len(gotHits))
	}
	for i := range wantHits {
		if wantHits[i] != gotHits[i] {
			t.Fatalf("hit %d mismatch: want %+v, got %+v", i, wantHits[i], gotHits[i])
		}
	}
	if loaded.Count() != original.Count() {
		t.Fatalf("Count mismatch: want %d, got %d", original.Count(), loaded.Count())
	}
}

func TestSaveWithoutValuesRestoresThroughCallback(t *testing.T) {
	b := NewBuilder(false)
	_ = b.Add("alpha", "unused")
	_ = b.Add("beta", "unused")
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if err := Save(&buf, a, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restoreCalls := 0
	loaded, err := Load(&buf, func(index int) any {
		restoreCalls++
		return index * 10
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if restoreCalls != 2 {
		t.Fatalf("expected restore to be called twice, got %d", restoreCalls)
	}
	if v := loaded.ValueAt(1); v != 10 {
		t.Fatalf("ValueAt(1) = %v, want 10", v)
	}
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	b := NewBuilder(false)
	_ = b.Add("x", 1)
	a, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	if err := Save(&buf, a, true); err != nil {
		t.Fatalf("Save: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]
	if _, err := Load(bytes.NewReader(truncated), nil); err != ErrCorruptInput {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
}

func TestWriteValueRejectsUnsupportedType(t *testing.T) {
	var buf bytes.Buffer
	type unsupported struct{ X int }
	if err := writeValue(&buf, unsupported{X: 1}); err != ErrNotSupported {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func TestTypedValueRoundTrips(t *testing.T) {
	cases := []any{
		true,
		Char('Q'),
		int8(-5),
		uint8(250),
		int16(-1000),
		uint16(60000),
		int32(-70000),
		uint32(4000000000),
		int64(-1 << 40),
		uint64(1 << 40),
		float32(3.5),
		float64(2.71828),
		Decimal("12345.6789"),
		"hello, acdat",
	}
	for _, v := range cases {
		var buf bytes.Buffer
		if err := writeValue(&buf, v); err != nil {
			t.Fatalf("writeValue(%v): %v", v, err)
		}
		c := &cursor{data: buf.Bytes()}
		got, err := c.readValue()
		if err != nil {
			t.Fatalf("readValue(%v): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: wrote %#v, read %#v", v, got)
		}
	}
}
