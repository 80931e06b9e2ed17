package core

import "math"

// linspace returns n evenly spaced samples over [start, stop] inclusive.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// interp evaluates piecewise-linear interpolation of (xp, fp) at each x.
// xp must be increasing; values outside the range clamp to the end points.
func interp(x, xp, fp []float64) []float64 {
	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = interp1(xi, xp, fp)
	}
	return out
}

func interp1(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if xp[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	t := (x - xp[lo]) / (xp[hi] - xp[lo])
	return fp[lo] + t*(fp[hi]-fp[lo])
}

// polyval evaluates a polynomial with coefficients ordered highest degree
// first, Horner style.
func polyval(coef []float64, x float64) float64 {
	var y float64
	for _, c := range coef {
		y = y*x + c
	}
	return y
}

// polyfitSlope returns the slope of the least-squares line through (x, y).
func polyfitSlope(x, y []float64) float64 {
	n := float64(len(x))
	var sx, sy, sxx, sxy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

// trapz integrates y over x with the trapezoidal rule.
func trapz(y, x []float64) float64 {
	var s float64
	for i := 1; i < len(x); i++ {
		s += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return s
}

// cumtrapz returns the running trapezoidal integral of y over x, starting
// at zero.
func cumtrapz(y, x []float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		out[i] = out[i-1] + (x[i]-x[i-1])*(y[i]+y[i-1])/2
	}
	return out
}

// meanFloat64 returns the arithmetic mean of xs; NaN for an empty slice.
func meanFloat64(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func minFloat64(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		if x < m {
			m = x
		}
	}
	return m
}

func maxFloat64(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func sumFloat64(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
