package randutil

import (
	"testing"
	"time"
)

// fixed replays a scripted sequence of draws.
type fixed struct {
	vals []float64
	i    int
}

func (f *fixed) Float64() float64 {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v
}

func TestClamp(t *testing.T) {
	tests := []struct {
		num, min, max, want float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{0.004, 0.004, 0.06, 0.004},
	}
	for _, tt := range tests {
		if got := Clamp(tt.num, tt.min, tt.max); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.num, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestRange(t *testing.T) {
	src := &fixed{vals: []float64{0, 0.5, 0.999}}
	if got := Range(src, -3, 3); got != -3 {
		t.Errorf("Range at 0 = %v, want -3", got)
	}
	if got := Range(src, -3, 3); got != 0 {
		t.Errorf("Range at 0.5 = %v, want 0", got)
	}
	if got := Range(src, -3, 3); got >= 3 {
		t.Errorf("Range must stay below max, got %v", got)
	}
}

func TestFloor(t *testing.T) {
	src := &fixed{vals: []float64{0.5}}
	if got := Floor(src, -74, -48); got != -61 {
		t.Errorf("Floor = %d, want -61", got)
	}
}

func TestChoice(t *testing.T) {
	items := []string{"A", "B", "C"}
	src := &fixed{vals: []float64{0, 0.34, 0.99}}
	for _, want := range items {
		if got := Choice(src, items); got != want {
			t.Errorf("Choice = %s, want %s", got, want)
		}
	}
}

func TestHex(t *testing.T) {
	src := &fixed{vals: []float64{0}}
	if got := Hex(src, 0xffff, 4); got != "0000" {
		t.Errorf("Hex = %s, want 0000", got)
	}
	src = &fixed{vals: []float64{0.9999999}}
	if got := Hex(src, 0xffffff, 6); len(got) != 6 {
		t.Errorf("Hex width = %d, want 6 (%s)", len(got), got)
	}
}

func TestNewSourceIsDeterministic(t *testing.T) {
	a, b := NewSource(7), NewSource(7)
	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("same seed produced different sequences")
		}
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2025, 12, 24, 7, 4, 9, 45*int(time.Millisecond), time.Local)
	if got := Timestamp(ts); got != "07:04:09.045" {
		t.Errorf("Timestamp = %s, want 07:04:09.045", got)
	}
}

func TestPadEnd(t *testing.T) {
	if got := PadEnd("OK", 5); got != "OK   " {
		t.Errorf("PadEnd = %q", got)
	}
	if got := PadEnd("WARNING", 5); got != "WARNING" {
		t.Errorf("PadEnd should not truncate, got %q", got)
	}
}
