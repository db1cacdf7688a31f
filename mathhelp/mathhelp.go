package mathhelp

import (
	"math"

	"golang.org/x/exp/constraints"
)

func BetweenInc[T constraints.Ordered](f, p, q T) bool {
	if p <= q {
		return p <= f && f <= q
	}
	return q <= f && f <= p
}

func Pow2(n uint) uint {
	return 1 << n
}

// Sorted2 returns a and b in ascending order.
func Sorted2[T constraints.Ordered](a, b T) (lo, hi T) {
	if b < a {
		return b, a
	}
	return a, b
}

func FloorInt(f float64) int {
	return int(math.Floor(f))
}

func Rad2Deg(r float64) float64 {
	return r * 180 / math.Pi
}

func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}
