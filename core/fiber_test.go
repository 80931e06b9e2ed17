package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

func ssmfParams(lengthKm float64) FiberParams {
	return FiberParams{
		LengthM:        lengthKm * 1e3,
		LossCoefDBPerM: 0.2e-3,
		ConInDB:        0.5,
		ConOutDB:       0.5,
		Dispersion:     1.67e-05,
		Gamma:          0.00127,
		PMDCoef:        1.265e-15,
	}
}

func mustFiber(t *testing.T, lengthKm float64) *Fiber {
	t.Helper()
	f, err := NewFiber("fiber", "fiber", Location{}, "SSMF", ssmfParams(lengthKm))
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	return f
}

func TestFiberLoss(t *testing.T) {
	f := mustFiber(t, 80)
	// 80 km at 0.2 dB/km plus two 0.5 dB connectors.
	if got := f.Loss(); !almostEqual(got, 17, 1e-9) {
		t.Fatalf("Loss = %v, want 17", got)
	}
}

func TestFiberLossIncludesLumpedLosses(t *testing.T) {
	params := ssmfParams(80)
	params.LumpedLosses = []model.LumpedLoss{{PositionM: 30e3, LossDB: 1.5}}
	f, err := NewFiber("fiber", "fiber", Location{}, "SSMF", params)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	if got := f.Loss(); !almostEqual(got, 18.5, 1e-9) {
		t.Fatalf("Loss = %v, want 18.5", got)
	}
}

func TestFiberRejectsLumpedLossOutsideSpan(t *testing.T) {
	for _, pos := range []float64{0, -1e3, 80e3, 90e3} {
		params := ssmfParams(80)
		params.LumpedLosses = []model.LumpedLoss{{PositionM: pos, LossDB: 1}}
		if _, err := NewFiber("fiber", "fiber", Location{}, "SSMF", params); err == nil {
			t.Fatalf("expected error for lumped loss at %v m", pos)
		}
	}
}

func TestFiberRejectsNonPositiveLength(t *testing.T) {
	if _, err := NewFiber("fiber", "fiber", Location{}, "SSMF", ssmfParams(0)); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestFiberAlpha(t *testing.T) {
	f := mustFiber(t, 80)
	alpha := f.Alpha([]float64{193.5e12})[0]
	// 0.2 dB/km is about 4.61e-5 Np/m.
	if !almostEqual(alpha, 4.605e-5, 1e-7) {
		t.Fatalf("Alpha = %v", alpha)
	}
	// Attenuation over the span must match the dB figure.
	att := math.Exp(-alpha * 80e3)
	if !almostEqual(Lin2DB(att), -16, 1e-9) {
		t.Fatalf("linear attenuation = %v dB, want -16", Lin2DB(att))
	}
}

func TestFiberChromaticDispersionAtReference(t *testing.T) {
	f := mustFiber(t, 80)
	// At the reference frequency the accumulated dispersion is D*L.
	cd := f.ChromaticDispersion([]float64{193.5e12})[0]
	if !almostEqual(cd, 1.67e-05*80e3, 1e-9*math.Abs(cd)) {
		t.Fatalf("ChromaticDispersion = %v, want %v", cd, 1.67e-05*80e3)
	}
}

func TestFiberBeta2Sign(t *testing.T) {
	f := mustFiber(t, 80)
	// Anomalous dispersion (D > 0) means negative beta2.
	if f.beta2 >= 0 {
		t.Fatalf("beta2 = %v, want negative", f.beta2)
	}
}

func TestFiberPMD(t *testing.T) {
	f := mustFiber(t, 80)
	want := 1.265e-15 * math.Sqrt(80e3)
	if got := f.PMD(); !almostEqual(got, want, want*1e-12) {
		t.Fatalf("PMD = %v, want %v", got, want)
	}
}

func TestFiberCrMatrixAsymmetry(t *testing.T) {
	params := ssmfParams(80)
	params.Raman = &model.RamanEfficiency{
		FrequencyOffsetHz: []float64{0, 5e12, 10e12},
		Cr:                []float64{0, 1e-4, 5e-5},
	}
	f, err := NewFiber("fiber", "fiber", Location{}, "SSMF", params)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	freq := []float64{190e12, 195e12}
	cr := f.Cr(freq)
	// The lower frequency gains from the higher one.
	if cr[0][1] <= 0 {
		t.Fatalf("cr[0][1] = %v, want positive", cr[0][1])
	}
	// The higher frequency loses power, scaled by the photon-energy ratio.
	want := -cr[0][1] * freq[1] / freq[0]
	if !almostEqual(cr[1][0], want, math.Abs(want)*1e-12) {
		t.Fatalf("cr[1][0] = %v, want %v", cr[1][0], want)
	}
}

func TestFiberPropagateAppliesLossAndDispersion(t *testing.T) {
	f := mustFiber(t, 80)
	si := mustSpectrum(t, 8)
	sim := DefaultSimParams()

	if err := f.Propagate(si, sim); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	// Mean channel power drops by the span loss.
	if got := si.PowerDBm(); !almostEqual(got, -17, 0.01) {
		t.Fatalf("output power = %v dBm, want -17", got)
	}
	if pref := si.Pref(); !almostEqual(pref.PSpanI, -17, 1e-9) {
		t.Fatalf("PSpanI = %v, want -17", pref.PSpanI)
	}
	cdPsNm := si.ChromaticDispersion()[0] * 1e3
	if !almostEqual(cdPsNm, 1336, 10) {
		t.Fatalf("accumulated dispersion = %v ps/nm, want about 1336", cdPsNm)
	}
	if si.PMD()[0] <= 0 {
		t.Fatal("PMD not accumulated")
	}
	for i, nli := range si.NLI() {
		if nli <= 0 {
			t.Fatalf("channel %d has no nonlinear interference", i)
		}
	}
}

func TestFiberPropagateLumpedLossReducesOutput(t *testing.T) {
	sim := DefaultSimParams()
	plain := mustFiber(t, 80)
	siPlain := mustSpectrum(t, 4)
	if err := plain.Propagate(siPlain, sim); err != nil {
		t.Fatalf("Propagate plain: %v", err)
	}

	params := ssmfParams(80)
	params.LumpedLosses = []model.LumpedLoss{{PositionM: 40e3, LossDB: 2}}
	lossy, err := NewFiber("fiber", "fiber", Location{}, "SSMF", params)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	siLossy := mustSpectrum(t, 4)
	if err := lossy.Propagate(siLossy, sim); err != nil {
		t.Fatalf("Propagate lossy: %v", err)
	}
	diff := siPlain.PowerDBm() - siLossy.PowerDBm()
	if !almostEqual(diff, 2, 0.01) {
		t.Fatalf("lumped loss changed output by %v dB, want 2", diff)
	}
}

func TestNewRamanFiberRequiresPumpsAndProfile(t *testing.T) {
	params := ssmfParams(80)
	params.Raman = &model.RamanEfficiency{
		FrequencyOffsetHz: []float64{0, 12.75e12},
		Cr:                []float64{0, 1e-4},
	}
	pumps := []model.RamanPump{{PowerW: 0.2, FrequencyHz: 205e12, PropagationDirection: model.PumpCounterpro}}

	if _, err := NewRamanFiber("rf", "rf", Location{}, "SSMF_raman", params, nil, 0); err == nil {
		t.Fatal("expected error without pumps")
	}
	noProfile := ssmfParams(80)
	if _, err := NewRamanFiber("rf", "rf", Location{}, "SSMF", noProfile, pumps, 0); err == nil {
		t.Fatal("expected error without raman efficiency profile")
	}
	rf, err := NewRamanFiber("rf", "rf", Location{}, "SSMF_raman", params, pumps, 0)
	if err != nil {
		t.Fatalf("NewRamanFiber: %v", err)
	}
	if rf.TemperatureK != 283 {
		t.Fatalf("default temperature = %v, want 283", rf.TemperatureK)
	}
}

func TestRamanFiberPropagateAmplifies(t *testing.T) {
	params := ssmfParams(80)
	params.Raman = &model.RamanEfficiency{
		FrequencyOffsetHz: []float64{0, 5e12, 10e12, 12.75e12},
		Cr:                []float64{0, 1e-4, 1.2e-4, 1e-5},
	}
	pumps := []model.RamanPump{
		{PowerW: 0.25, FrequencyHz: 205e12, PropagationDirection: model.PumpCounterpro},
	}
	rf, err := NewRamanFiber("rf", "rf", Location{}, "SSMF_raman", params, pumps, 283)
	if err != nil {
		t.Fatalf("NewRamanFiber: %v", err)
	}
	si := mustSpectrum(t, 8)
	sim := DefaultSimParams()
	sim.Raman.Enabled = true

	if err := rf.Propagate(si, sim); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	// The pump must leave the channels above the passive-loss floor.
	if out := si.PowerDBm(); out <= -17 {
		t.Fatalf("output power = %v dBm, no raman gain observed", out)
	}
	for i, ase := range si.ASE() {
		if ase <= 0 {
			t.Fatalf("channel %d has no spontaneous raman noise", i)
		}
	}
	// The reference power update follows the measured loss.
	pref := si.Pref()
	if !almostEqual(pref.PSpanI, si.PowerDBm(), 0.01) {
		t.Fatalf("PSpanI = %v, output = %v", pref.PSpanI, si.PowerDBm())
	}
}
