package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// variableGainAmp mirrors a std medium gain preamp: the coil figures are
// chosen so the flat noise figure runs from about 6 dB at full gain to
// about 10 dB at minimum gain.
func variableGainAmp() *model.AmplifierType {
	return &model.AmplifierType{
		Variety:       "std_medium_gain",
		TypeDef:       model.AmpVariableGain,
		GainFlatmaxDB: 26,
		GainMinDB:     15,
		PMaxDBm:       21,
		NFModelVG:     &model.NFModelVG{NF1: 5.88, NF2: 7.55, DeltaP: 5},
		FMinHz:        191.35e12,
		FMaxHz:        196.1e12,
	}
}

func fixedGainAmp() *model.AmplifierType {
	return &model.AmplifierType{
		Variety:       "std_fixed_gain",
		TypeDef:       model.AmpFixedGain,
		GainFlatmaxDB: 21,
		GainMinDB:     20,
		PMaxDBm:       21,
		NFModelFG:     &model.NFModelFG{NF0: 5.5},
		FMinHz:        191.35e12,
		FMaxHz:        196.1e12,
	}
}

func attenuatedSpectrum(t *testing.T, nch int, lossDB float64) *SpectralInformation {
	t.Helper()
	si := mustSpectrum(t, nch)
	si.ApplyUniformGain(DB2Lin(-lossDB))
	pref := si.Pref()
	pref.PSpanI -= lossDB
	si.SetPref(pref)
	return si
}

func TestEdfaVariableGainNF(t *testing.T) {
	amp := variableGainAmp()
	si := attenuatedSpectrum(t, 8, 26)
	e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 26})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	// At flat maximum gain the noise figure sits near its minimum.
	if nf := e.NFAverage(); !almostEqual(nf, 6, 0.2) {
		t.Fatalf("NF at 26 dB gain = %v, want about 6", nf)
	}

	si = attenuatedSpectrum(t, 8, 15)
	e2 := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 15})
	if err := e2.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	nfHigh := e2.NFAverage()
	if nfHigh <= 6.5 {
		t.Fatalf("NF at minimum gain = %v, expected well above the flat-max figure", nfHigh)
	}
}

func TestEdfaOutputPowerRisesWithGain(t *testing.T) {
	amp := variableGainAmp()
	prev := math.Inf(-1)
	for _, gain := range []float64{16, 18, 20, 22, 24} {
		si := attenuatedSpectrum(t, 8, 24)
		e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: gain})
		if err := e.Propagate(si, DefaultSimParams()); err != nil {
			t.Fatalf("Propagate at gain %v: %v", gain, err)
		}
		out := si.PowerDBm()
		if out <= prev {
			t.Fatalf("output %v dBm at gain %v, not above %v dBm at the previous step", out, gain, prev)
		}
		prev = out
		// The noise figure never drops below the figure at flat maximum
		// gain.
		if nf := e.NFAverage(); nf < 5.9 {
			t.Fatalf("NF = %v at gain %v, below the rated minimum", nf, gain)
		}
	}
}

func TestEdfaGainBelowMinimumIsPadded(t *testing.T) {
	amp := variableGainAmp()
	si := attenuatedSpectrum(t, 8, 10)
	e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 10})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if !almostEqual(e.AttInDB, 5, 1e-9) {
		t.Fatalf("AttInDB = %v, want 5 dB of padding", e.AttInDB)
	}
}

func TestEdfaFixedGainNF(t *testing.T) {
	amp := fixedGainAmp()
	si := attenuatedSpectrum(t, 8, 21)
	e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 21})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if nf := e.NFAverage(); !almostEqual(nf, 5.5, 1e-9) {
		t.Fatalf("fixed gain NF = %v, want 5.5", nf)
	}
}

func TestEdfaAppliesGainAndASE(t *testing.T) {
	amp := variableGainAmp()
	si := attenuatedSpectrum(t, 8, 20)
	e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 20})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if got := si.PowerDBm(); !almostEqual(got, 0, 0.05) {
		t.Fatalf("output power = %v dBm, want 0", got)
	}
	for i, ase := range si.ASE() {
		if ase <= 0 {
			t.Fatalf("channel %d has no ASE", i)
		}
	}
	if pref := si.Pref(); !almostEqual(pref.PSpanI, 0, 1e-9) {
		t.Fatalf("PSpanI = %v, want 0", pref.PSpanI)
	}
}

func TestEdfaDeltaPPinsOutputPower(t *testing.T) {
	amp := variableGainAmp()
	si := attenuatedSpectrum(t, 8, 22)
	deltaP := -2.0
	e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 10, DeltaPDB: &deltaP})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	// Target channel power is the launch reference plus delta p.
	if !almostEqual(e.TargetPchOutDB, -2, 1e-9) {
		t.Fatalf("TargetPchOutDB = %v, want -2", e.TargetPchOutDB)
	}
	if !almostEqual(e.EffectiveGainDB, 20, 1e-9) {
		t.Fatalf("EffectiveGainDB = %v, want 20", e.EffectiveGainDB)
	}
}

func TestEdfaSaturationClampsGain(t *testing.T) {
	amp := variableGainAmp()
	// 96 channels at 0 dBm reference would need 0 + 19.8 dB total at the
	// output; a 26 dB gain from -4 dBm input would exceed p_max = 21 dBm.
	si := attenuatedSpectrum(t, 96, 4)
	e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 26})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	maxGain := amp.PMaxDBm - (-4 + Lin2DB(96))
	if e.EffectiveGainDB > maxGain+1e-9 {
		t.Fatalf("EffectiveGainDB = %v above saturation limit %v", e.EffectiveGainDB, maxGain)
	}
	// Total output power stays within the rating.
	total := W2DBm(si.TotalSignalPower())
	if total > amp.PMaxDBm+0.1 {
		t.Fatalf("total output %v dBm above p_max %v", total, amp.PMaxDBm)
	}
}

func TestEdfaDualStageNF(t *testing.T) {
	preamp := variableGainAmp()
	booster := fixedGainAmp()
	dual := &model.AmplifierType{
		Variety:       "dual",
		TypeDef:       model.AmpDualStage,
		GainFlatmaxDB: preamp.GainFlatmaxDB + booster.GainFlatmaxDB,
		GainMinDB:     25,
		PMaxDBm:       21,
		Preamp:        preamp,
		Booster:       booster,
		FMinHz:        191.35e12,
		FMaxHz:        196.1e12,
	}
	si := attenuatedSpectrum(t, 8, 40)
	e := NewEdfa("edfa", "edfa", Location{}, dual, EdfaOperational{GainTargetDB: 40})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	nf := e.NFAverage()
	g1 := preamp.GainFlatmaxDB
	probe := &Edfa{Type: preamp, EffectiveGainDB: g1}
	nf1 := probe.NFAverage()
	want := Lin2DB(DB2Lin(nf1) + DB2Lin(booster.NFModelFG.NF0-g1))
	if !almostEqual(nf, want, 1e-9) {
		t.Fatalf("dual stage NF = %v, want %v", nf, want)
	}
	// A second stage behind a high-gain first stage barely moves the NF.
	if math.Abs(nf-nf1) > 0.1 {
		t.Fatalf("dual stage NF %v too far from first stage %v", nf, nf1)
	}
	if e.AttInDB != 0 {
		t.Fatalf("dual stage padding = %v, want 0", e.AttInDB)
	}
}

func TestEdfaTiltNeedsDGT(t *testing.T) {
	amp := variableGainAmp()
	amp.DGT = []float64{1.8, 1.2, 0.6, 0}
	amp.GainRipple = []float64{0.1, -0.1, 0.05, -0.05}
	si := attenuatedSpectrum(t, 8, 20)
	e := NewEdfa("edfa", "edfa", Location{}, amp, EdfaOperational{GainTargetDB: 20, TiltTargetDB: -1})
	if err := e.Propagate(si, DefaultSimParams()); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	// The mean gain still meets the target after the tilt correction.
	if got := si.PowerDBm(); !almostEqual(got, 0, 0.1) {
		t.Fatalf("output power = %v dBm, want about 0", got)
	}
}
