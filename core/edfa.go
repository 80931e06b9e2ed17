package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// EdfaOperational are the provisioned settings of one amplifier instance.
type EdfaOperational struct {
	GainTargetDB float64
	// DeltaP, when set, pins the output channel power to the launch
	// reference plus this offset; the gain target follows.
	DeltaPDB     *float64
	TiltTargetDB float64
	OutVOADB     float64
}

// Edfa amplifies the spectrum and adds ASE noise according to the noise
// figure model of its variety.
type Edfa struct {
	nodeInfo
	Type        *model.AmplifierType
	Operational EdfaOperational

	// Set by interpolParams on every propagation.
	interpolDGT        []float64
	interpolGainRipple []float64
	interpolNFRipple   []float64
	nf                 []float64
	gprofile           []float64
	EffectiveGainDB    float64
	PinDB              float64
	PoutDB             float64
	PchOutDB           float64
	TargetPchOutDB     float64
	EffectivePchOutDB  float64
	AttInDB            float64
	nch                int
}

// NewEdfa builds an amplifier instance of the given resolved variety.
func NewEdfa(uid, name string, loc Location, ampType *model.AmplifierType, op EdfaOperational) *Edfa {
	return &Edfa{
		nodeInfo:        nodeInfo{uid: uid, name: name, location: loc},
		Type:            ampType,
		Operational:     op,
		EffectiveGainDB: op.GainTargetDB,
	}
}

func (e *Edfa) Passive() bool { return false }

// interpolParams projects the calibration curves of the variety onto the
// channel grid and settles the effective gain, including the saturation
// clamp against the amplifier output power rating.
func (e *Edfa) interpolParams(si *SpectralInformation) {
	freq := si.Frequency()
	e.interpolDGT = interpolCurve(freq, e.Type, e.Type.DGT)
	e.interpolGainRipple = interpolCurve(freq, e.Type, e.Type.GainRipple)
	e.interpolNFRipple = interpolCurve(freq, e.Type, e.Type.NFRipple)
	e.nch = si.NumberOfChannels()
	e.PinDB = W2DBm(si.TotalPower())

	pref := si.Pref()
	e.EffectiveGainDB = e.Operational.GainTargetDB
	if e.Operational.DeltaPDB != nil {
		e.TargetPchOutDB = round2(*e.Operational.DeltaPDB + pref.PSpan0)
		e.EffectiveGainDB = e.TargetPchOutDB - pref.PSpanI
	}
	// Saturation: the total output power may not exceed the rating.
	e.EffectiveGainDB = math.Min(e.EffectiveGainDB, e.Type.PMaxDBm-(pref.PSpanI+pref.NeqCh))
	e.EffectivePchOutDB = round2(pref.PSpanI + e.EffectiveGainDB)

	e.nf = e.calcNF(si)
	e.gprofile = e.gainProfile(si)

	var pout float64
	noise := e.noiseProfile(si)
	signal, nli, ase := si.Signal(), si.NLI(), si.ASE()
	for i := range signal {
		pout += (signal[i] + nli[i] + ase[i] + noise[i]) * DB2Lin(e.gprofile[i])
	}
	e.PoutDB = W2DBm(pout)
}

// interpolCurve resamples a calibration array defined on the uniform
// variety grid onto the channel frequencies.
func interpolCurve(freq []float64, t *model.AmplifierType, curve []float64) []float64 {
	if len(curve) == 0 {
		return make([]float64, len(freq))
	}
	grid := linspace(t.FMinHz, t.FMaxHz, len(curve))
	return interp(freq, grid, curve)
}

// nfStage returns the average noise figure of a single amplification
// stage at the given gain target, plus the input padding applied when the
// target sits below the minimum gain.
func (e *Edfa) nfStage(t *model.AmplifierType, gainTargetDB float64) (float64, float64) {
	pad := math.Max(t.GainMinDB-gainTargetDB, 0)
	gainTargetDB += pad
	dg := math.Max(t.GainFlatmaxDB-gainTargetDB, 0)
	var nfAvg float64
	switch t.TypeDef {
	case model.AmpVariableGain:
		g1a := gainTargetDB - t.NFModelVG.DeltaP - dg
		nfAvg = Lin2DB(DB2Lin(t.NFModelVG.NF1) + DB2Lin(t.NFModelVG.NF2)/DB2Lin(g1a))
	case model.AmpFixedGain:
		nfAvg = t.NFModelFG.NF0
	case model.AmpOpenROADM:
		pinCh := e.PinDB - Lin2DB(float64(e.nch))
		// Incremental OSNR model: OSNR = f(Pin).
		nfAvg = pinCh - polyval(t.NFModelOpenROADM.NFCoef, pinCh) + 58
	case model.AmpAdvancedModel:
		nfAvg = polyval(t.NFFitCoeff, -dg)
	}
	return nfAvg + pad, pad
}

// calcNF returns the per-channel noise figure in dB at the current
// operating point.
func (e *Edfa) calcNF(si *SpectralInformation) []float64 {
	var nfAvg, pad float64
	if e.Type.TypeDef == model.AmpDualStage {
		g1 := e.Type.Preamp.GainFlatmaxDB
		g2 := e.EffectiveGainDB - g1
		nf1, _ := e.nfStage(e.Type.Preamp, g1)
		nf2, _ := e.nfStage(e.Type.Booster, g2)
		nfAvg = Lin2DB(DB2Lin(nf1) + DB2Lin(nf2-g1))
		// The first stage runs at its flat maximum, so no padding applies.
		pad = 0
	} else {
		nfAvg, pad = e.nfStage(e.Type, e.EffectiveGainDB)
	}
	e.AttInDB = pad
	out := make([]float64, si.NumberOfChannels())
	for i := range out {
		out[i] = e.interpolNFRipple[i] + nfAvg
	}
	return out
}

// NFAverage returns the flat noise figure at the current effective gain,
// without the ripple.
func (e *Edfa) NFAverage() float64 {
	if e.Type.TypeDef == model.AmpDualStage {
		g1 := e.Type.Preamp.GainFlatmaxDB
		nf1, _ := e.nfStage(e.Type.Preamp, g1)
		nf2, _ := e.nfStage(e.Type.Booster, e.EffectiveGainDB-g1)
		return Lin2DB(DB2Lin(nf1) + DB2Lin(nf2-g1))
	}
	nf, _ := e.nfStage(e.Type, e.EffectiveGainDB)
	return nf
}

// noiseProfile returns the ASE power in W added in each channel
// bandwidth, referred to the amplifier input.
func (e *Edfa) noiseProfile(si *SpectralInformation) []float64 {
	out := make([]float64, si.NumberOfChannels())
	baud, freq := si.BaudRate(), si.Frequency()
	for i := range out {
		out[i] = PlanckConst * baud[i] * freq[i] * DB2Lin(e.nf[i])
	}
	return out
}

// gainProfile distributes the effective gain over the channels using the
// dynamic gain tilt technique: scale the DGT curve until the average gain
// matches the target, refining the scaling with a three-point secant
// step. A near flat ripple collapses to the first estimate.
func (e *Edfa) gainProfile(si *SpectralInformation) []float64 {
	const errTolerance = 1.0e-11

	n := len(e.interpolDGT)
	if n == 1 {
		return []float64{e.EffectiveGainDB}
	}
	pin := make([]float64, n)
	signal, nli, ase := si.Signal(), si.NLI(), si.ASE()
	for i := range pin {
		pin[i] = signal[i] + nli[i] + ase[i]
	}

	channelIdx := make([]float64, n)
	for i := range channelIdx {
		channelIdx[i] = float64(i)
	}
	dgtSlope := polyfitSlope(channelIdx, e.interpolDGT)
	targSlope := e.Operational.TiltTargetDB / float64(n-1)

	var dgts1 float64
	if math.Abs(dgtSlope) > 0.001 {
		dgts1 = targSlope / dgtSlope
	}

	addProfile := func(scale float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = e.interpolGainRipple[i] + e.Type.GainFlatmaxDB + e.interpolDGT[i]*scale
		}
		return out
	}
	avgGainDB := func(profile []float64, offset float64) float64 {
		var pout float64
		for i := range profile {
			pout += pin[i] * DB2Lin(profile[i]+offset)
		}
		return W2DBm(pout) - e.PinDB
	}

	g1st := addProfile(dgts1)
	var meanLin float64
	for _, g := range g1st {
		meanLin += DB2Lin(g)
	}
	voa := Lin2DB(meanLin/float64(n)) - e.EffectiveGainDB

	applied := func(scale, voa float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = g1st[i] - voa + e.interpolDGT[i]*(scale-dgts1)
		}
		return out
	}

	poutDB := avgGainDB(g1st, -voa)
	dgts2 := e.EffectiveGainDB - poutDB

	xcent := dgts2
	gavgCent := avgGainDB(applied(dgts1+xcent, voa), 0)

	deltax := maxFloat64(g1st) - minFloat64(g1st)
	if math.Abs(deltax) <= 0.05 {
		return applied(dgts1, voa)
	}

	xlow := dgts2 - deltax
	gavgLow := avgGainDB(applied(dgts1+xlow, voa), 0)
	xhigh := dgts2 + deltax
	gavgHigh := avgGainDB(applied(dgts1+xhigh, voa), 0)

	slope1 := (gavgLow - gavgCent) / (xlow - xcent)
	slope2 := (gavgCent - gavgHigh) / (xcent - xhigh)

	var dgts3 float64
	switch {
	case math.Abs(e.EffectiveGainDB-gavgCent) <= errTolerance:
		dgts3 = xcent
	case e.EffectiveGainDB < gavgCent:
		dgts3 = xcent - (gavgCent-e.EffectiveGainDB)/slope1
	default:
		dgts3 = xcent + (e.EffectiveGainDB-gavgCent)/slope2
	}
	return applied(dgts1+dgts3, voa)
}

func (e *Edfa) Propagate(si *SpectralInformation, _ SimParams) error {
	e.interpolParams(si)

	noise := e.noiseProfile(si)
	ase := si.ASE()
	for i := range ase {
		ase[i] += noise[i]
	}

	att := DB2Lin(-e.Operational.OutVOADB)
	for i := 0; i < si.NumberOfChannels(); i++ {
		si.ApplyGain(i, DB2Lin(e.gprofile[i])*att)
	}

	e.PchOutDB = round2(si.PowerDBm())
	pref := si.Pref()
	pref.PSpanI += e.EffectiveGainDB - e.Operational.OutVOADB
	si.SetPref(pref)
	return nil
}

func (e *Edfa) Clone() Element {
	dup := *e
	if e.Operational.DeltaPDB != nil {
		v := *e.Operational.DeltaPDB
		dup.Operational.DeltaPDB = &v
	}
	return &dup
}

// String summarizes the operating point after propagation.
func (e *Edfa) String() string {
	return fmt.Sprintf("Edfa %s (%s) gain %.2f dB nf %.2f dB pin %.2f dBm pout %.2f dBm",
		e.uid, e.Type.Variety, e.EffectiveGainDB, meanFloat64(e.nf), e.PinDB, e.PoutDB)
}
