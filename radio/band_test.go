package radio

import "testing"

func TestRangeClip(t *testing.T) {
	tests := []struct {
		r    Range
		in   float64
		want float64
	}{
		{Range{Min: 0, Max: 76, Step: 1}, 10.4, 10},
		{Range{Min: 0, Max: 76, Step: 1}, -3, 0},
		{Range{Min: 0, Max: 76, Step: 1}, 100, 76},
		{Range{Min: 0, Max: 89.75, Step: 0.25}, 20.6, 20.5},
		{Range{Min: 0, Max: 10, Step: 3}, 10, 9},
		{Range{Min: 1, Max: 2}, 1.5, 1.5},
	}
	for _, tt := range tests {
		if got := tt.r.Clip(tt.in); got != tt.want {
			t.Errorf("%+v.Clip(%v) = %v, want %v", tt.r, tt.in, got, tt.want)
		}
	}
}

func TestBand(t *testing.T) {
	b := Band{Center: 100e6, Width: 2e6}
	if r := b.Range(); r.Min != 99e6 || r.Max != 101e6 {
		t.Fatalf("got range %v", r)
	}
	if !rtlFreqs.Contains(100e6) || rtlFreqs.Contains(2e9) {
		t.Fatal("rtl frequency range")
	}
}
