package core

import (
	"fmt"
	"sort"
)

// Pref tracks the reference powers the propagation models equalize
// against: the launch power at the first span, the power entering the
// current span, both in dBm, and the equivalent channel count in dB.
type Pref struct {
	PSpan0 float64
	PSpanI float64
	NeqCh  float64
}

// Power groups the three per-carrier power fields in W.
type Power struct {
	Signal float64
	NLI    float64
	ASE    float64
}

// Total returns signal plus accumulated noise.
func (p Power) Total() float64 { return p.Signal + p.NLI + p.ASE }

// Channel is a read-out of one carrier, used when exchanging carrier
// subsets between spectra.
type Channel struct {
	ChannelNumber       int
	FrequencyHz         float64
	SlotWidthHz         float64
	BaudRateHz          float64
	RollOff             float64
	Power               Power
	ChromaticDispersion float64
	PMD                 float64
}

// SpectralInformation carries the per-channel state of a WDM comb as it
// propagates. Channels are kept sorted by center frequency; all slices
// share the same length.
type SpectralInformation struct {
	frequency           []float64 // Hz
	slotWidth           []float64 // Hz
	baudRate            []float64 // Hz
	rollOff             []float64
	signal              []float64 // W
	nli                 []float64 // W
	ase                 []float64 // W
	chromaticDispersion []float64 // s/m
	pmd                 []float64 // s
	pref                Pref
}

// SpectrumSpec is the input to NewSpectralInformation. Frequency and
// BaudRate are mandatory; every other slice may be nil (defaulted), hold
// a single value (broadcast to all channels) or have one entry per
// channel.
type SpectrumSpec struct {
	FrequencyHz         []float64
	SlotWidthHz         []float64
	BaudRateHz          []float64
	RollOff             []float64
	SignalW             []float64
	NLIW                []float64
	ASEW                []float64
	ChromaticDispersion []float64
	PMD                 []float64
}

// NewSpectralInformation builds a spectrum from per-channel arrays,
// sorting by frequency and validating slot occupancy. A nil slot width
// is derived from the baud rate on the standard slot grid.
func NewSpectralInformation(spec SpectrumSpec) (*SpectralInformation, error) {
	n := len(spec.FrequencyHz)
	if n == 0 {
		return nil, &SpectrumError{Reason: "spectrum without channels"}
	}
	baud, err := broadcast(spec.BaudRateHz, n, "baud rate", nil)
	if err != nil {
		return nil, err
	}
	slot, err := broadcast(spec.SlotWidthHz, n, "slot width", func(i int) float64 {
		return AutomaticSpacing(baud[i])
	})
	if err != nil {
		return nil, err
	}
	zero := func(int) float64 { return 0 }
	roll, err := broadcast(spec.RollOff, n, "roll off", zero)
	if err != nil {
		return nil, err
	}
	signal, err := broadcast(spec.SignalW, n, "signal power", zero)
	if err != nil {
		return nil, err
	}
	nli, err := broadcast(spec.NLIW, n, "nli power", zero)
	if err != nil {
		return nil, err
	}
	ase, err := broadcast(spec.ASEW, n, "ase power", zero)
	if err != nil {
		return nil, err
	}
	cd, err := broadcast(spec.ChromaticDispersion, n, "chromatic dispersion", zero)
	if err != nil {
		return nil, err
	}
	pmd, err := broadcast(spec.PMD, n, "pmd", zero)
	if err != nil {
		return nil, err
	}

	si := &SpectralInformation{
		frequency:           append([]float64(nil), spec.FrequencyHz...),
		slotWidth:           slot,
		baudRate:            baud,
		rollOff:             roll,
		signal:              signal,
		nli:                 nli,
		ase:                 ase,
		chromaticDispersion: cd,
		pmd:                 pmd,
	}
	si.sortByFrequency()
	if err := si.validate(); err != nil {
		return nil, err
	}
	pch := W2DBm(meanFloat64(si.signal))
	si.pref = Pref{PSpan0: pch, PSpanI: pch, NeqCh: Lin2DB(float64(n))}
	return si, nil
}

// broadcast expands values to length n: nil uses def per channel, a
// single element is repeated, a full-length slice is copied.
func broadcast(values []float64, n int, name string, def func(int) float64) ([]float64, error) {
	out := make([]float64, n)
	switch len(values) {
	case 0:
		if def == nil {
			return nil, &SpectrumError{Reason: name + " is mandatory"}
		}
		for i := range out {
			out[i] = def(i)
		}
	case 1:
		for i := range out {
			out[i] = values[0]
		}
	case n:
		copy(out, values)
	default:
		return nil, &SpectrumError{
			Reason: fmt.Sprintf("dimension mismatch field %s: %d values for %d channels", name, len(values), n),
		}
	}
	return out, nil
}

// CreateInputSpectralInformation builds the flat comb launched at a
// transceiver: channels of equal power and baud rate, evenly spaced over
// (fMin, fMax]. It fails with a SpectrumError when not a single channel
// fits.
func CreateInputSpectralInformation(fMinHz, fMaxHz, rollOff, baudRateHz, powerW, spacingHz float64) (*SpectralInformation, error) {
	nch := AutomaticNch(fMinHz, fMaxHz, spacingHz)
	if nch == 0 {
		return nil, &SpectrumError{
			Reason: fmt.Sprintf("no channel of spacing %.1f GHz fits between %.4f and %.4f THz",
				spacingHz*1e-9, fMinHz*1e-12, fMaxHz*1e-12),
		}
	}
	freq := make([]float64, nch)
	for i := range freq {
		freq[i] = fMinHz + spacingHz*float64(i+1)
	}
	return NewSpectralInformation(SpectrumSpec{
		FrequencyHz: freq,
		SlotWidthHz: []float64{spacingHz},
		BaudRateHz:  []float64{baudRateHz},
		RollOff:     []float64{rollOff},
		SignalW:     []float64{powerW},
	})
}

func (si *SpectralInformation) sortByFrequency() {
	idx := make([]int, len(si.frequency))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return si.frequency[idx[a]] < si.frequency[idx[b]] })
	reorder := func(xs []float64) []float64 {
		out := make([]float64, len(xs))
		for i, j := range idx {
			out[i] = xs[j]
		}
		return out
	}
	si.frequency = reorder(si.frequency)
	si.slotWidth = reorder(si.slotWidth)
	si.baudRate = reorder(si.baudRate)
	si.rollOff = reorder(si.rollOff)
	si.signal = reorder(si.signal)
	si.nli = reorder(si.nli)
	si.ase = reorder(si.ase)
	si.chromaticDispersion = reorder(si.chromaticDispersion)
	si.pmd = reorder(si.pmd)
}

func (si *SpectralInformation) validate() error {
	for i := range si.frequency {
		if si.baudRate[i] > si.slotWidth[i] {
			return &SpectrumError{
				Reason: fmt.Sprintf("baud rate %.2f GHz wider than slot width %.2f GHz on channel %d",
					si.baudRate[i]*1e-9, si.slotWidth[i]*1e-9, i+1),
			}
		}
	}
	for i := 1; i < len(si.frequency); i++ {
		hiEdge := si.frequency[i-1] + si.slotWidth[i-1]/2
		loEdge := si.frequency[i] - si.slotWidth[i]/2
		if hiEdge > loEdge {
			return &SpectrumError{
				Reason: fmt.Sprintf("channels %d and %d overlap at %.4f THz", i, i+1, si.frequency[i]*1e-12),
			}
		}
	}
	return nil
}

// NumberOfChannels returns the carrier count.
func (si *SpectralInformation) NumberOfChannels() int { return len(si.frequency) }

// Accessors return the live backing arrays, sorted by frequency. Callers
// that need to keep a snapshot must copy.
func (si *SpectralInformation) Frequency() []float64 { return si.frequency }
func (si *SpectralInformation) SlotWidth() []float64 { return si.slotWidth }
func (si *SpectralInformation) BaudRate() []float64  { return si.baudRate }
func (si *SpectralInformation) RollOff() []float64   { return si.rollOff }
func (si *SpectralInformation) Signal() []float64    { return si.signal }
func (si *SpectralInformation) NLI() []float64       { return si.nli }
func (si *SpectralInformation) ASE() []float64       { return si.ase }
func (si *SpectralInformation) ChromaticDispersion() []float64 {
	return si.chromaticDispersion
}
func (si *SpectralInformation) PMD() []float64 { return si.pmd }

// Pref returns the current reference-power record.
func (si *SpectralInformation) Pref() Pref { return si.pref }

// SetPref replaces the reference-power record.
func (si *SpectralInformation) SetPref(p Pref) { si.pref = p }

// TotalSignalPower returns the summed signal power in W.
func (si *SpectralInformation) TotalSignalPower() float64 { return sumFloat64(si.signal) }

// TotalPower returns the summed signal plus noise power in W.
func (si *SpectralInformation) TotalPower() float64 {
	return sumFloat64(si.signal) + sumFloat64(si.nli) + sumFloat64(si.ase)
}

// ApplyGain scales every power field of channel i by the linear gain g.
func (si *SpectralInformation) ApplyGain(i int, g float64) {
	si.signal[i] *= g
	si.nli[i] *= g
	si.ase[i] *= g
}

// ApplyUniformGain scales every power field of every channel by g.
func (si *SpectralInformation) ApplyUniformGain(g float64) {
	for i := range si.signal {
		si.ApplyGain(i, g)
	}
}

// OSNR returns the in-band signal to ASE ratio per channel in dB.
func (si *SpectralInformation) OSNR() []float64 {
	out := make([]float64, len(si.signal))
	for i := range out {
		out[i] = Lin2DB(si.signal[i] / si.ase[i])
	}
	return out
}

// SNRnli returns the signal to nonlinear-interference ratio per channel
// in dB.
func (si *SpectralInformation) SNRnli() []float64 {
	out := make([]float64, len(si.signal))
	for i := range out {
		out[i] = Lin2DB(si.signal[i] / si.nli[i])
	}
	return out
}

// GSNR returns the generalized SNR over ASE plus NLI per channel in dB.
func (si *SpectralInformation) GSNR() []float64 {
	out := make([]float64, len(si.signal))
	for i := range out {
		out[i] = Lin2DB(si.signal[i] / (si.ase[i] + si.nli[i]))
	}
	return out
}

// Carriers returns a value snapshot of every channel, numbered from 1 in
// frequency order.
func (si *SpectralInformation) Carriers() []Channel {
	out := make([]Channel, len(si.frequency))
	for i := range out {
		out[i] = Channel{
			ChannelNumber: i + 1,
			FrequencyHz:   si.frequency[i],
			SlotWidthHz:   si.slotWidth[i],
			BaudRateHz:    si.baudRate[i],
			RollOff:       si.rollOff[i],
			Power: Power{
				Signal: si.signal[i],
				NLI:    si.nli[i],
				ASE:    si.ase[i],
			},
			ChromaticDispersion: si.chromaticDispersion[i],
			PMD:                 si.pmd[i],
		}
	}
	return out
}

// ReplaceCarriers writes the power, dispersion and PMD fields of the
// given carriers back into the spectrum, matched by channel number.
// Carriers absent from the subset keep their state.
func (si *SpectralInformation) ReplaceCarriers(carriers []Channel) error {
	for _, c := range carriers {
		i := c.ChannelNumber - 1
		if i < 0 || i >= len(si.frequency) {
			return &SpectrumError{Reason: fmt.Sprintf("unknown channel number %d", c.ChannelNumber)}
		}
		si.signal[i] = c.Power.Signal
		si.nli[i] = c.Power.NLI
		si.ase[i] = c.Power.ASE
		si.chromaticDispersion[i] = c.ChromaticDispersion
		si.pmd[i] = c.PMD
	}
	return nil
}

// Union merges two disjoint spectra into a new one, re-sorting and
// re-validating slot occupancy.
func (si *SpectralInformation) Union(other *SpectralInformation) (*SpectralInformation, error) {
	merged := &SpectralInformation{
		frequency:           append(append([]float64(nil), si.frequency...), other.frequency...),
		slotWidth:           append(append([]float64(nil), si.slotWidth...), other.slotWidth...),
		baudRate:            append(append([]float64(nil), si.baudRate...), other.baudRate...),
		rollOff:             append(append([]float64(nil), si.rollOff...), other.rollOff...),
		signal:              append(append([]float64(nil), si.signal...), other.signal...),
		nli:                 append(append([]float64(nil), si.nli...), other.nli...),
		ase:                 append(append([]float64(nil), si.ase...), other.ase...),
		chromaticDispersion: append(append([]float64(nil), si.chromaticDispersion...), other.chromaticDispersion...),
		pmd:                 append(append([]float64(nil), si.pmd...), other.pmd...),
		pref:                si.pref,
	}
	merged.sortByFrequency()
	if err := merged.validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Copy returns a deep copy sharing no state with the receiver.
func (si *SpectralInformation) Copy() *SpectralInformation {
	dup := *si
	dup.frequency = append([]float64(nil), si.frequency...)
	dup.slotWidth = append([]float64(nil), si.slotWidth...)
	dup.baudRate = append([]float64(nil), si.baudRate...)
	dup.rollOff = append([]float64(nil), si.rollOff...)
	dup.signal = append([]float64(nil), si.signal...)
	dup.nli = append([]float64(nil), si.nli...)
	dup.ase = append([]float64(nil), si.ase...)
	dup.chromaticDispersion = append([]float64(nil), si.chromaticDispersion...)
	dup.pmd = append([]float64(nil), si.pmd...)
	return &dup
}

// PowerDBm returns the mean per-channel signal power in dBm.
func (si *SpectralInformation) PowerDBm() float64 {
	return W2DBm(meanFloat64(si.signal))
}
