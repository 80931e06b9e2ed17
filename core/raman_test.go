package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

func TestAttenuationProfile(t *testing.T) {
	si := mustSpectrum(t, 4)
	f := mustFiber(t, 80)
	sim := DefaultSimParams()

	profile := CalculateAttenuationProfile(si, f, sim)
	if got := profile.Z[len(profile.Z)-1]; got != 80e3 {
		t.Fatalf("grid ends at %v m, want 80e3", got)
	}
	alpha := f.Alpha(si.Frequency())
	for i := 0; i < si.NumberOfChannels(); i++ {
		want := math.Exp(-alpha[i] * 80e3)
		last := len(profile.Z) - 1
		if got := profile.ChannelLoss(i, last); !almostEqual(got, want, want*1e-9) {
			t.Fatalf("channel %d end-of-span transmission = %v, want %v", i, got, want)
		}
		if got := profile.ChannelLoss(i, 0); !almostEqual(got, 1, 1e-12) {
			t.Fatalf("channel %d launch transmission = %v, want 1", i, got)
		}
	}
}

func TestAttenuationProfileIncludesLumpedLosses(t *testing.T) {
	si := mustSpectrum(t, 2)
	params := ssmfParams(80)
	params.LumpedLosses = append(params.LumpedLosses, model.LumpedLoss{PositionM: 40e3, LossDB: 2})
	f, err := NewFiber("fiber", "fiber", Location{}, "SSMF", params)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}

	profile := CalculateAttenuationProfile(si, f, DefaultSimParams())
	alpha := f.Alpha(si.Frequency())
	last := len(profile.Z) - 1
	want := math.Exp(-alpha[0]*80e3) * DB2Lin(-2)
	if got := profile.ChannelLoss(0, last); !almostEqual(got, want, want*1e-9) {
		t.Fatalf("end-of-span transmission = %v, want %v with the lumped 2 dB", got, want)
	}

	// Before the loss position only the distributed attenuation applies.
	for k, zk := range profile.Z {
		if zk >= 40e3 {
			break
		}
		want := math.Exp(-alpha[0] * zk)
		if got := profile.ChannelLoss(0, k); !almostEqual(got, want, want*1e-9) {
			t.Fatalf("transmission at %v m = %v, want %v", zk, got, want)
		}
	}
}

func TestStimulatedRamanWithoutPumpsMatchesAttenuation(t *testing.T) {
	si := mustSpectrum(t, 4)
	params := ssmfParams(80)
	f, err := NewFiber("fiber", "fiber", Location{}, "SSMF", params)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	sim := DefaultSimParams()
	sim.Raman.Enabled = true

	srs, err := CalculateStimulatedRamanScattering(si, f, nil, sim)
	if err != nil {
		t.Fatalf("CalculateStimulatedRamanScattering: %v", err)
	}
	// Without a Raman efficiency curve the coupled solve degenerates to
	// plain attenuation.
	plain := CalculateAttenuationProfile(si, f, sim)
	last := len(srs.Z) - 1
	for i := 0; i < si.NumberOfChannels(); i++ {
		if got, want := srs.ChannelLoss(i, last), plain.ChannelLoss(i, last); !almostEqual(got, want, want*1e-6) {
			t.Fatalf("channel %d transmission = %v, want %v", i, got, want)
		}
	}
}

func TestSpontaneousRamanWithoutEfficiencyCurve(t *testing.T) {
	si := mustSpectrum(t, 4)
	f := mustFiber(t, 80)
	sim := DefaultSimParams()
	sim.Raman.Enabled = true

	srs, err := CalculateStimulatedRamanScattering(si, f, nil, sim)
	if err != nil {
		t.Fatalf("CalculateStimulatedRamanScattering: %v", err)
	}
	ase := CalculateSpontaneousRamanScattering(si, srs, f, 283)
	for i, a := range ase {
		if a != 0 {
			t.Fatalf("channel %d gets spontaneous Raman noise %v from a fiber with no efficiency curve", i, a)
		}
	}
}
