package tab

import "math"

// Finite returns x when it is a finite number and 0 otherwise.
func Finite(x float64) float64 {
	return FiniteOr(x, 0)
}

// FiniteOr returns x when it is a finite number and fallback otherwise.
func FiniteOr(x, fallback float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fallback
	}
	return x
}
