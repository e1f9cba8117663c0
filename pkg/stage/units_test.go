package stage

import (
	"math"
	"testing"
)

func TestMmToCounts(t *testing.T) {
	tests := []struct {
		mm     float64
		counts int
	}{
		{0, 0},
		{1, 34304},
		{10, 343040},
		{-5, -171520},
		{0.5, 17152},
	}

	for _, tt := range tests {
		if got := MmToCounts(tt.mm); got != tt.counts {
			t.Errorf("MmToCounts(%v) = %d, want %d", tt.mm, got, tt.counts)
		}
	}
}

func TestUnits_RoundTripIntegralMm(t *testing.T) {
	// Integral millimeter inputs must survive the round trip exactly.
	for mm := -150; mm <= 150; mm++ {
		counts := MmToCounts(float64(mm))
		back := CountsToMm(counts)
		if back != float64(mm) {
			t.Errorf("round-trip failed: %d mm -> %d counts -> %v mm", mm, counts, back)
		}
	}
}

func TestUnits_RoundTripFractional(t *testing.T) {
	// Fractional positions round-trip within one count.
	for _, mm := range []float64{0.001, 12.345, 149.999, -0.05} {
		back := CountsToMm(MmToCounts(mm))
		if math.Abs(back-mm) > 1.0/CountsPerMm {
			t.Errorf("round-trip error too large: %v -> %v", mm, back)
		}
	}
}
