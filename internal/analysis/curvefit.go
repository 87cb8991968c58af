// Package analysis derives trading signals from buffered market data. The
// momentum analyzer fits polynomials to recent quote windows and emits slope
// estimates with projected trend curves.
package analysis

import (
	"errors"
	"fmt"
	"math"
)

var errSingularFit = errors.New("curve fit system is singular")

// Fit solves an ordinary least-squares polynomial fit of the given order via
// the normal equations (XᵀX)c = Xᵀy. It returns the coefficients in ascending
// power order and the residual sum of squares. len(xs) must be strictly
// greater than order, otherwise the system is under-determined.
func Fit(xs, ys []float64, order int) (coeffs []float64, rss float64, err error) {
	if len(xs) != len(ys) {
		return nil, 0, fmt.Errorf("curve fit: mismatched series lengths %d and %d", len(xs), len(ys))
	}
	if order < 0 {
		return nil, 0, fmt.Errorf("curve fit: negative order %d", order)
	}
	if len(xs) <= order {
		return nil, 0, fmt.Errorf("curve fit: %d points for order %d", len(xs), order)
	}

	n := order + 1

	// Build XᵀX from power sums and Xᵀy directly; the design matrix itself is
	// never materialized.
	powerSums := make([]float64, 2*n-1)
	for _, x := range xs {
		p := 1.0
		for k := range powerSums {
			powerSums[k] += p
			p *= x
		}
	}
	ata := make([][]float64, n)
	for i := range ata {
		ata[i] = make([]float64, n)
		for j := range ata[i] {
			ata[i][j] = powerSums[i+j]
		}
	}
	aty := make([]float64, n)
	for i, x := range xs {
		p := 1.0
		for k := 0; k < n; k++ {
			aty[k] += p * ys[i]
			p *= x
		}
	}

	coeffs, err = solve(ata, aty)
	if err != nil {
		return nil, 0, err
	}

	for i, x := range xs {
		r := Eval(coeffs, x) - ys[i]
		rss += r * r
	}
	return coeffs, rss, nil
}

// solve performs Gaussian elimination with partial pivoting on a in place.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errSingularFit
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// Derive returns the coefficients of the first derivative.
func Derive(coeffs []float64) []float64 {
	if len(coeffs) <= 1 {
		return []float64{0}
	}
	out := make([]float64, len(coeffs)-1)
	for i := 1; i < len(coeffs); i++ {
		out[i-1] = coeffs[i] * float64(i)
	}
	return out
}

// Eval evaluates the polynomial at x.
func Eval(coeffs []float64, x float64) float64 {
	var v float64
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}
