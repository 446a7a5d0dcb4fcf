package tickmath

import "errors"

var ErrRangeOutOfBounds = errors.New("tick range exceeds grid bounds")

// RoundToSpacing rounds a tick down to the nearest multiple of spacing,
// flooring toward negative infinity. Truncating toward zero instead would
// silently shift ranges upward for negative ticks.
func RoundToSpacing(tick, spacing int64) int64 {
	rem := tick % spacing
	if rem < 0 {
		rem += spacing
	}
	return tick - rem
}

// IsRangeValid reports whether a range width is usable on a grid with the
// given spacing: a positive multiple of spacing, at least two spacings wide.
func IsRangeValid(width, spacing int64) bool {
	if spacing <= 0 || width <= 0 {
		return false
	}
	return width%spacing == 0 && width >= 2*spacing
}

// ComputeDesiredRange centers a range of the given width on the current
// tick, rounded down to the spacing grid. The half-width uses integer
// division, so an odd width yields a span one tick narrower than asked.
func ComputeDesiredRange(currentTick, spacing, width int64) (int64, int64, error) {
	center := RoundToSpacing(currentTick, spacing)
	lower := center - width/2
	upper := center + width/2
	if lower < MinTick || upper > MaxTick {
		return 0, 0, ErrRangeOutOfBounds
	}
	return lower, upper, nil
}
