package core

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDBConversionsRoundTrip(t *testing.T) {
	for _, x := range []float64{1e-6, 0.001, 1, 3.3, 1000} {
		if got := DB2Lin(Lin2DB(x)); !almostEqual(got, x, 1e-12*x) {
			t.Fatalf("DB2Lin(Lin2DB(%v)) = %v", x, got)
		}
	}
	if got := Lin2DB(100); !almostEqual(got, 20, 1e-12) {
		t.Fatalf("Lin2DB(100) = %v, want 20", got)
	}
	if got := W2DBm(0.001); !almostEqual(got, 0, 1e-12) {
		t.Fatalf("W2DBm(1 mW) = %v, want 0", got)
	}
	if got := DBm2W(30); !almostEqual(got, 1, 1e-12) {
		t.Fatalf("DBm2W(30) = %v, want 1 W", got)
	}
}

func TestPSD2PowerW(t *testing.T) {
	// 3.125e-4 mW/GHz over 32 GHz is 10 uW.
	if got := PSD2PowerW(3.125e-4, 32e9); !almostEqual(got, 1e-5, 1e-18) {
		t.Fatalf("PSD2PowerW = %v, want 1e-5", got)
	}
}

func TestSNRSumDegradesSNR(t *testing.T) {
	base := 20.0
	out := SNRSum(base, 32e9, 40)
	if out >= base {
		t.Fatalf("SNRSum(%v, ...) = %v, expected degradation", base, out)
	}
	// A very clean contribution leaves the SNR almost untouched.
	if out2 := SNRSum(base, 32e9, 80); out2 < base-0.01 {
		t.Fatalf("SNRSum with 80 dB penalty = %v, want about %v", out2, base)
	}
	// Two equal contributions halve the linear SNR: -3.01 dB, after the
	// bandwidth scaling back to the signal band.
	equal := SNRSum(20, RefBandwidthHz, 20)
	if !almostEqual(equal, 20-10*math.Log10(2), 1e-9) {
		t.Fatalf("SNRSum of equal contributions = %v", equal)
	}
}

func TestAutomaticNch(t *testing.T) {
	if got := AutomaticNch(191.3e12, 196.1e12, 50e9); got != 96 {
		t.Fatalf("AutomaticNch = %d, want 96", got)
	}
	if got := AutomaticNch(191.3e12, 191.3e12, 50e9); got != 0 {
		t.Fatalf("AutomaticNch on empty band = %d, want 0", got)
	}
}

func TestAutomaticSpacing(t *testing.T) {
	cases := []struct {
		baud, want float64
	}{
		{32e9, 37.5e9},
		{64e9, 75e9},
		{12.5e9, 12.5e9},
		{10e9, 12.5e9},
	}
	for _, c := range cases {
		if got := AutomaticSpacing(c.baud); got != c.want {
			t.Fatalf("AutomaticSpacing(%v) = %v, want %v", c.baud, got, c.want)
		}
	}
}

func TestLinspace(t *testing.T) {
	xs := linspace(0, 10, 5)
	want := []float64{0, 2.5, 5, 7.5, 10}
	for i := range want {
		if !almostEqual(xs[i], want[i], 1e-12) {
			t.Fatalf("linspace[%d] = %v, want %v", i, xs[i], want[i])
		}
	}
	if one := linspace(3, 9, 1); one[0] != 3 {
		t.Fatalf("single-point linspace = %v", one)
	}
}

func TestInterp1ClampsAndInterpolates(t *testing.T) {
	xp := []float64{0, 1, 2}
	fp := []float64{0, 10, 40}
	if got := interp1(-1, xp, fp); got != 0 {
		t.Fatalf("interp1 below range = %v, want 0", got)
	}
	if got := interp1(3, xp, fp); got != 40 {
		t.Fatalf("interp1 above range = %v, want 40", got)
	}
	if got := interp1(1.5, xp, fp); !almostEqual(got, 25, 1e-12) {
		t.Fatalf("interp1(1.5) = %v, want 25", got)
	}
}

func TestPolyval(t *testing.T) {
	// 2x^2 - 3x + 1 at x=2 is 3.
	if got := polyval([]float64{2, -3, 1}, 2); !almostEqual(got, 3, 1e-12) {
		t.Fatalf("polyval = %v, want 3", got)
	}
}

func TestPolyfitSlope(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7}
	if got := polyfitSlope(x, y); !almostEqual(got, 2, 1e-12) {
		t.Fatalf("polyfitSlope = %v, want 2", got)
	}
}

func TestTrapzAndCumtrapz(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 2, 3}
	if got := trapz(y, x); !almostEqual(got, 4.5, 1e-12) {
		t.Fatalf("trapz = %v, want 4.5", got)
	}
	cum := cumtrapz(y, x)
	want := []float64{0, 0.5, 2, 4.5}
	for i := range want {
		if !almostEqual(cum[i], want[i], 1e-12) {
			t.Fatalf("cumtrapz[%d] = %v, want %v", i, cum[i], want[i])
		}
	}
}

func TestMeanOfEmptyIsNaN(t *testing.T) {
	if !math.IsNaN(meanFloat64(nil)) {
		t.Fatal("meanFloat64(nil) should be NaN")
	}
}
