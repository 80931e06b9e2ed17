package core

import "math"

// RoadmParams configure the equalization behavior of a ROADM node.
// Exactly one of TargetPchOutDB and TargetPSDOutMWPerGHz is set; the
// per-degree maps override it on specific egress degrees.
type RoadmParams struct {
	TargetPchOutDB       *float64
	TargetPSDOutMWPerGHz *float64
	PerDegreePchOutDB    map[string]float64
	PerDegreePSDOut      map[string]float64
	AddDropOSNRdB        float64
	PMD                  float64 // s
	RestrictionPreamp    []string
	RestrictionBooster   []string
}

// Roadm equalizes the spectrum it switches: every channel leaves at the
// configured target, lowered if needed so that no channel is amplified.
type Roadm struct {
	nodeInfo
	Params RoadmParams

	// Filled during propagation, for reporting.
	RefPchOutDBm    float64
	EffectiveLossDB float64
}

// NewRoadm builds a ROADM node.
func NewRoadm(uid, name string, loc Location, params RoadmParams) *Roadm {
	return &Roadm{nodeInfo: nodeInfo{uid: uid, name: name, location: loc}, Params: params}
}

func (r *Roadm) Passive() bool { return true }

// targetPchOutDBm returns the reference per-channel egress power target in
// dBm on the given degree, and the per-channel targets for the spectrum.
func (r *Roadm) targetPchOutDBm(degree string, si *SpectralInformation) (float64, []float64) {
	n := si.NumberOfChannels()
	targets := make([]float64, n)
	if psd, ok := r.Params.PerDegreePSDOut[degree]; ok {
		return r.psdTargets(psd, si, targets)
	}
	if pch, ok := r.Params.PerDegreePchOutDB[degree]; ok {
		for i := range targets {
			targets[i] = pch
		}
		return pch, targets
	}
	if r.Params.TargetPSDOutMWPerGHz != nil {
		return r.psdTargets(*r.Params.TargetPSDOutMWPerGHz, si, targets)
	}
	pch := 0.0
	if r.Params.TargetPchOutDB != nil {
		pch = *r.Params.TargetPchOutDB
	}
	for i := range targets {
		targets[i] = pch
	}
	return pch, targets
}

func (r *Roadm) psdTargets(psd float64, si *SpectralInformation, targets []float64) (float64, []float64) {
	for i, baud := range si.BaudRate() {
		targets[i] = W2DBm(PSD2PowerW(psd, baud))
	}
	return W2DBm(PSD2PowerW(psd, RefBaudRateHz)), targets
}

// PropagateOnDegree equalizes the spectrum towards the egress degree
// identified by the uid of the next element on the path.
func (r *Roadm) PropagateOnDegree(si *SpectralInformation, degree string) error {
	pref := si.Pref()
	refTarget, targets := r.targetPchOutDBm(degree, si)

	// Per-channel attenuation down to target; a channel already below its
	// target would need gain, so every channel is lowered by the worst
	// deficit instead. A ROADM never amplifies.
	n := si.NumberOfChannels()
	attDB := make([]float64, n)
	var worstDeficit float64
	signal, nli, ase := si.Signal(), si.NLI(), si.ASE()
	for i := 0; i < n; i++ {
		pinDBm := W2DBm(signal[i] + nli[i] + ase[i])
		attDB[i] = pinDBm - targets[i]
		if deficit := -attDB[i]; deficit > worstDeficit {
			worstDeficit = deficit
		}
	}
	for i := 0; i < n; i++ {
		si.ApplyGain(i, DB2Lin(-(attDB[i] + worstDeficit)))
	}

	pmd := si.PMD()
	for i := range pmd {
		pmd[i] = math.Sqrt(pmd[i]*pmd[i] + r.Params.PMD*r.Params.PMD)
	}

	r.RefPchOutDBm = math.Min(pref.PSpanI, refTarget)
	r.EffectiveLossDB = pref.PSpanI - r.RefPchOutDBm
	pref.PSpanI = r.RefPchOutDBm
	si.SetPref(pref)
	return nil
}

// Propagate equalizes against the node-wide target when the egress degree
// is unknown.
func (r *Roadm) Propagate(si *SpectralInformation, _ SimParams) error {
	return r.PropagateOnDegree(si, "")
}

func (r *Roadm) Clone() Element {
	dup := *r
	return &dup
}
