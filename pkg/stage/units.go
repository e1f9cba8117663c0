package stage

import "math"

// CountsPerMm is the encoder resolution of the LTS long-travel stage
// family: 34304 counts per millimeter. Fixed per device family.
const CountsPerMm = 34304

// MmToCounts converts millimeters to device encoder counts.
func MmToCounts(mm float64) int {
	return int(math.Round(mm * CountsPerMm))
}

// CountsToMm converts device encoder counts to millimeters.
func CountsToMm(counts int) float64 {
	return float64(counts) / CountsPerMm
}
