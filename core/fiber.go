package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// FiberParams are the resolved physical parameters of one fiber span, all
// in SI units: length in m, attenuation in dB/m, dispersion in s/m^2,
// gamma in 1/(W*m), PMD coefficient in s/sqrt(m).
type FiberParams struct {
	LengthM        float64
	LossCoefDBPerM float64
	// Optional frequency dependence of the attenuation; when nil the
	// scalar coefficient applies across the band.
	LossCoefCurve   *model.LossCoefCurve
	ConInDB         float64
	ConOutDB        float64
	AttInDB         float64
	Dispersion      float64
	DispersionSlope float64
	RefFrequencyHz  float64
	Gamma           float64
	PMDCoef         float64
	Raman           *model.RamanEfficiency
	// Concentrated losses along the span, strictly inside (0, length).
	LumpedLosses []model.LumpedLoss
}

// Fiber is a passive span accumulating loss, chromatic dispersion, PMD
// and nonlinear interference.
type Fiber struct {
	nodeInfo
	TypeVariety string
	Params      FiberParams

	beta2 float64 // s^2/m
	beta3 float64 // s^3/m

	// Filled during propagation, for reporting.
	PchOutDB float64
	pchInDB  float64
}

// NewFiber builds a fiber span; the parameters must already be resolved
// against the equipment library.
func NewFiber(uid, name string, loc Location, variety string, params FiberParams) (*Fiber, error) {
	if params.LengthM <= 0 {
		return nil, &TopologyError{Reason: fmt.Sprintf("fiber %s has non-positive length", uid)}
	}
	if params.RefFrequencyHz == 0 {
		params.RefFrequencyHz = 193.5e12
	}
	for _, ll := range params.LumpedLosses {
		if ll.PositionM <= 0 || ll.PositionM >= params.LengthM {
			return nil, &TopologyError{
				Reason: fmt.Sprintf("fiber %s has a lumped loss at %g m, outside the span interior", uid, ll.PositionM),
			}
		}
	}
	f := &Fiber{
		nodeInfo:    nodeInfo{uid: uid, name: name, location: loc},
		TypeVariety: variety,
		Params:      params,
	}
	refLambda := LightSpeed / params.RefFrequencyHz
	f.beta2 = -(refLambda * refLambda) * params.Dispersion / (2 * math.Pi * LightSpeed)
	if params.DispersionSlope != 0 {
		f.beta3 = (params.DispersionSlope - (4*math.Pi*LightSpeed/math.Pow(refLambda, 3))*f.beta2) /
			math.Pow(2*math.Pi*LightSpeed/(refLambda*refLambda), 2)
	}
	return f, nil
}

func (f *Fiber) Passive() bool { return true }

// lossCoef returns the attenuation coefficient in dB/m at each frequency.
func (f *Fiber) lossCoef(frequency []float64) []float64 {
	out := make([]float64, len(frequency))
	if f.Params.LossCoefCurve != nil {
		for i, freq := range frequency {
			out[i] = interp1(freq, f.Params.LossCoefCurve.FrequencyHz, f.Params.LossCoefCurve.LossCoefDBPM)
		}
		return out
	}
	for i := range out {
		out[i] = f.Params.LossCoefDBPerM
	}
	return out
}

func (f *Fiber) lossCoefRef() float64 {
	return f.lossCoef([]float64{f.Params.RefFrequencyHz})[0]
}

// Loss returns the total span loss in dB including connectors, input
// padding and lumped losses.
func (f *Fiber) Loss() float64 {
	loss := f.lossCoefRef()*f.Params.LengthM + f.Params.ConInDB + f.Params.ConOutDB + f.Params.AttInDB
	for _, ll := range f.Params.LumpedLosses {
		loss += ll.LossDB
	}
	return loss
}

// lumpedLinear returns, for each position, the accumulated linear
// transmission of the lumped losses located at or before it.
func (f *Fiber) lumpedLinear(z []float64) []float64 {
	out := make([]float64, len(z))
	for k, zk := range z {
		factor := 1.0
		for _, ll := range f.Params.LumpedLosses {
			if ll.PositionM <= zk {
				factor *= DB2Lin(-ll.LossDB)
			}
		}
		out[k] = factor
	}
	return out
}

// Alpha returns the power attenuation coefficient in Neper/m at each
// frequency, such that the linear attenuation over the span is
// exp(-alpha * length).
func (f *Fiber) Alpha(frequency []float64) []float64 {
	out := f.lossCoef(frequency)
	for i := range out {
		out[i] /= 10 * math.Log10(math.E)
	}
	return out
}

func (f *Fiber) alpha0(frequency float64) float64 {
	return f.Alpha([]float64{frequency})[0]
}

// Cr returns the Raman efficiency matrix in 1/(W*m): entry [i][j] is the
// power transfer coefficient onto frequency i from frequency j, negative
// when energy flows away, scaled by the photon-energy ratio.
func (f *Fiber) Cr(frequency []float64) [][]float64 {
	n := len(frequency)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	if f.Params.Raman == nil {
		return out
	}
	offsets := f.Params.Raman.FrequencyOffsetHz
	crs := f.Params.Raman.Cr
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			df := frequency[j] - frequency[i]
			cr := interp1(math.Abs(df), offsets, crs)
			if df >= 0 {
				out[i][j] = cr
			} else {
				// Losing a photon to a lower frequency costs its full
				// energy.
				out[i][j] = -cr * frequency[i] / frequency[j]
			}
		}
	}
	return out
}

// ChromaticDispersion returns the dispersion accumulated over the span at
// each frequency, in s/m.
func (f *Fiber) ChromaticDispersion(frequency []float64) []float64 {
	refF := f.Params.RefFrequencyHz
	out := make([]float64, len(frequency))
	for i, freq := range frequency {
		beta := f.beta2 + 2*math.Pi*f.beta3*(freq-refF)
		out[i] = -beta * 2 * math.Pi * refF * refF / LightSpeed * f.Params.LengthM
	}
	return out
}

// PMD returns the differential group delay accumulated over the span in s.
func (f *Fiber) PMD() float64 {
	return f.Params.PMDCoef * math.Sqrt(f.Params.LengthM)
}

func (f *Fiber) applyInputLoss(si *SpectralInformation) {
	si.ApplyUniformGain(DB2Lin(-(f.Params.ConInDB + f.Params.AttInDB)))
}

func (f *Fiber) accumulateDispersion(si *SpectralInformation) {
	cdAdd := f.ChromaticDispersion(si.Frequency())
	cd := si.ChromaticDispersion()
	for i := range cd {
		cd[i] += cdAdd[i]
	}
	pmdSpan := f.PMD()
	pmd := si.PMD()
	for i := range pmd {
		pmd[i] = math.Sqrt(pmd[i]*pmd[i] + pmdSpan*pmdSpan)
	}
}

func (f *Fiber) applySpanLoss(si *SpectralInformation, srs *RamanProfile) {
	last := len(srs.Z) - 1
	for i := 0; i < si.NumberOfChannels(); i++ {
		si.ApplyGain(i, srs.ChannelLoss(i, last))
	}
	si.ApplyUniformGain(DB2Lin(-f.Params.ConOutDB))
}

func (f *Fiber) Propagate(si *SpectralInformation, sim SimParams) error {
	f.pchInDB = round2(si.PowerDBm())
	f.applyInputLoss(si)

	var srs *RamanProfile
	if sim.Raman.Enabled {
		var err error
		srs, err = CalculateStimulatedRamanScattering(si, f, nil, sim)
		if err != nil {
			return fmt.Errorf("Fiber.Propagate: %s: %w", f.uid, err)
		}
	} else {
		srs = CalculateAttenuationProfile(si, f, sim)
	}

	nliAdd, err := ComputeNLI(si, srs, f, sim)
	if err != nil {
		return fmt.Errorf("Fiber.Propagate: %s: %w", f.uid, err)
	}
	nli := si.NLI()
	for i := range nli {
		nli[i] += nliAdd[i]
	}

	f.accumulateDispersion(si)
	f.applySpanLoss(si, srs)

	f.PchOutDB = round2(si.PowerDBm())
	pref := si.Pref()
	pref.PSpanI -= f.Loss()
	si.SetPref(pref)
	return nil
}

func (f *Fiber) Clone() Element {
	dup := *f
	return &dup
}

// RamanFiber is a fiber span with counter- or co-propagating pump lasers
// providing distributed Raman amplification.
type RamanFiber struct {
	Fiber
	Pumps        []model.RamanPump
	TemperatureK float64
}

// NewRamanFiber builds a Raman-amplified span. Missing pumps are a
// topology error: a RamanFiber without pumps is a plain fiber mistyped.
func NewRamanFiber(uid, name string, loc Location, variety string, params FiberParams, pumps []model.RamanPump, temperatureK float64) (*RamanFiber, error) {
	if len(pumps) == 0 {
		return nil, &TopologyError{
			Reason: fmt.Sprintf("raman fiber %s defined without raman pumps", uid),
		}
	}
	if params.Raman == nil {
		return nil, &TopologyError{
			Reason: fmt.Sprintf("raman fiber %s uses a variety without a raman efficiency profile", uid),
		}
	}
	base, err := NewFiber(uid, name, loc, variety, params)
	if err != nil {
		return nil, err
	}
	if temperatureK == 0 {
		temperatureK = 283
	}
	return &RamanFiber{Fiber: *base, Pumps: pumps, TemperatureK: temperatureK}, nil
}

func (f *RamanFiber) Propagate(si *SpectralInformation, sim SimParams) error {
	f.pchInDB = round2(si.PowerDBm())
	f.applyInputLoss(si)

	srs, err := CalculateStimulatedRamanScattering(si, &f.Fiber, f.Pumps, sim)
	if err != nil {
		return fmt.Errorf("RamanFiber.Propagate: %s: %w", f.uid, err)
	}
	spontaneous := CalculateSpontaneousRamanScattering(si, srs, &f.Fiber, f.TemperatureK)

	nliAdd, err := ComputeNLI(si, srs, &f.Fiber, sim)
	if err != nil {
		return fmt.Errorf("RamanFiber.Propagate: %s: %w", f.uid, err)
	}
	nli, ase := si.NLI(), si.ASE()
	for i := range nli {
		nli[i] += nliAdd[i]
		ase[i] += spontaneous[i]
	}

	f.accumulateDispersion(si)
	f.applySpanLoss(si, srs)

	// The span may net-amplify, so the reference power follows the loss
	// actually measured on the mean channel.
	f.PchOutDB = round2(si.PowerDBm())
	pref := si.Pref()
	pref.PSpanI -= f.pchInDB - f.PchOutDB
	si.SetPref(pref)
	return nil
}

func (f *RamanFiber) Clone() Element {
	dup := *f
	dup.Pumps = append([]model.RamanPump(nil), f.Pumps...)
	return &dup
}
