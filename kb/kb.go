// Package kb holds the equipment knowledge base: amplifier, fiber and
// transceiver varieties plus the system-wide defaults, loaded once and
// shared read-only between concurrent path computations.
package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/optical-path-simulator/core"
	"github.com/signalsfoundry/optical-path-simulator/model"
)

// Library is the in-memory equipment store. All lookups are safe for
// concurrent use once loading is finished.
type Library struct {
	mu           sync.RWMutex
	amplifiers   map[string]*model.AmplifierType
	fibers       map[string]*model.FiberType
	transceivers map[string]*model.TransceiverType

	si     model.SpectralDefaults
	spans  model.SpanDefaults
	roadms model.RoadmDefaults
}

// New returns an empty library.
func New() *Library {
	return &Library{
		amplifiers:   make(map[string]*model.AmplifierType),
		fibers:       make(map[string]*model.FiberType),
		transceivers: make(map[string]*model.TransceiverType),
	}
}

// AddAmplifier registers an amplifier variety. Varieties are unique.
func (l *Library) AddAmplifier(a *model.AmplifierType) error {
	if a.Variety == "" {
		return fmt.Errorf("AddAmplifier: amplifier without type_variety")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.amplifiers[a.Variety]; ok {
		return fmt.Errorf("AddAmplifier: duplicate amplifier variety %q", a.Variety)
	}
	l.amplifiers[a.Variety] = a
	return nil
}

// AddFiber registers a fiber variety.
func (l *Library) AddFiber(f *model.FiberType) error {
	if f.Variety == "" {
		return fmt.Errorf("AddFiber: fiber without type_variety")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.fibers[f.Variety]; ok {
		return fmt.Errorf("AddFiber: duplicate fiber variety %q", f.Variety)
	}
	l.fibers[f.Variety] = f
	return nil
}

// AddTransceiver registers a transceiver variety.
func (l *Library) AddTransceiver(t *model.TransceiverType) error {
	if t.Variety == "" {
		return fmt.Errorf("AddTransceiver: transceiver without type_variety")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.transceivers[t.Variety]; ok {
		return fmt.Errorf("AddTransceiver: duplicate transceiver variety %q", t.Variety)
	}
	l.transceivers[t.Variety] = t
	return nil
}

// AmplifierType returns the amplifier variety, if registered.
func (l *Library) AmplifierType(variety string) (*model.AmplifierType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.amplifiers[variety]
	return a, ok
}

// FiberType returns the fiber variety, if registered.
func (l *Library) FiberType(variety string) (*model.FiberType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.fibers[variety]
	return f, ok
}

// TransceiverType returns the transceiver variety, if registered.
func (l *Library) TransceiverType(variety string) (*model.TransceiverType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.transceivers[variety]
	return t, ok
}

// Amplifiers returns every registered amplifier variety.
func (l *Library) Amplifiers() []*model.AmplifierType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*model.AmplifierType, 0, len(l.amplifiers))
	for _, a := range l.amplifiers {
		out = append(out, a)
	}
	return out
}

// SetDefaults stores the spectral, span and roadm defaults.
func (l *Library) SetDefaults(si model.SpectralDefaults, spans model.SpanDefaults, roadms model.RoadmDefaults) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.si = si
	l.spans = spans
	l.roadms = roadms
}

// SpectralDefaults returns the system-wide spectral defaults.
func (l *Library) SpectralDefaults() model.SpectralDefaults {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.si
}

// SpanDefaults returns the span design defaults.
func (l *Library) SpanDefaults() model.SpanDefaults {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.spans
}

// RoadmDefaults returns the roadm defaults.
func (l *Library) RoadmDefaults() model.RoadmDefaults {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roadms
}

// TransceiverMode returns the transceiver variety and the mode matching
// the given format. An empty format returns a nil mode, leaving the
// choice to the feasibility search.
func (l *Library) TransceiverMode(variety, format string) (*model.TransceiverType, *model.TransceiverMode, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	trx, ok := l.transceivers[variety]
	if !ok {
		return nil, nil, fmt.Errorf("TransceiverMode: unknown transceiver %q", variety)
	}
	if format == "" {
		return trx, nil, nil
	}
	for i := range trx.Modes {
		m := &trx.Modes[i]
		if m.Format != format {
			continue
		}
		if m.BaudRateHz > m.MinSpacingHz {
			return nil, nil, fmt.Errorf(
				"TransceiverMode: transceiver %q mode %q has baud rate %.2f GHz above min_spacing %.2f GHz",
				variety, format, m.BaudRateHz*1e-9, m.MinSpacingHz*1e-9)
		}
		return trx, m, nil
	}
	return nil, nil, fmt.Errorf("TransceiverMode: transceiver %q has no mode %q", variety, format)
}

// TransceiverModes returns the modes of a transceiver variety.
func (l *Library) TransceiverModes(variety string) ([]model.TransceiverMode, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	trx, ok := l.transceivers[variety]
	if !ok {
		return nil, fmt.Errorf("TransceiverModes: unknown transceiver %q", variety)
	}
	return trx.Modes, nil
}

// ApplySysMargins raises the required OSNR of every transceiver mode by
// the system margin, worsening feasibility uniformly.
func (l *Library) ApplySysMargins(marginsDB float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, trx := range l.transceivers {
		for i := range trx.Modes {
			trx.Modes[i].OSNRdB += marginsDB
		}
	}
}

// ResolveDualStages links every dual-stage variety to its preamp and
// booster sub-amplifiers and checks gain consistency.
func (l *Library) ResolveDualStages() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, amp := range l.amplifiers {
		if amp.TypeDef != model.AmpDualStage {
			continue
		}
		if amp.DualStage == nil {
			return fmt.Errorf("ResolveDualStages: amplifier %q lacks a dual_stage model", amp.Variety)
		}
		preamp, ok := l.amplifiers[amp.DualStage.PreampVariety]
		if !ok {
			return fmt.Errorf("ResolveDualStages: amplifier %q references unknown preamp %q",
				amp.Variety, amp.DualStage.PreampVariety)
		}
		booster, ok := l.amplifiers[amp.DualStage.BoosterVariety]
		if !ok {
			return fmt.Errorf("ResolveDualStages: amplifier %q references unknown booster %q",
				amp.Variety, amp.DualStage.BoosterVariety)
		}
		if amp.GainMinDB < preamp.GainMinDB {
			return fmt.Errorf("ResolveDualStages: amplifier %q gain_min %.2f dB below preamp %q gain_min %.2f dB",
				amp.Variety, amp.GainMinDB, preamp.Variety, preamp.GainMinDB)
		}
		amp.Preamp = preamp
		amp.Booster = booster
	}
	return nil
}

// DeriveNFModelVG derives the two-coil noise figure model of a variable
// gain amplifier from its measured flat noise figures at maximum and
// minimum gain.
func DeriveNFModelVG(variety string, gainMinDB, gainMaxDB, nfMinDB, nfMaxDB float64) (model.NFModelVG, error) {
	if nfMinDB < -10 {
		return model.NFModelVG{}, fmt.Errorf("DeriveNFModelVG: invalid nf_min %.2f for amplifier %q", nfMinDB, variety)
	}
	if nfMaxDB < -10 {
		return model.NFModelVG{}, fmt.Errorf("DeriveNFModelVG: invalid nf_max %.2f for amplifier %q", nfMaxDB, variety)
	}

	// Split the amplifier into two coils with an internal VOA: solve
	// nf_{min,max} = nf1 + nf2 / g1a_{max,min} for the coil figures.
	deltaP := 5.0
	g1aMin := gainMinDB - (gainMaxDB - gainMinDB) - deltaP
	g1aMax := gainMaxDB - deltaP
	nf2 := core.Lin2DB((core.DB2Lin(nfMinDB) - core.DB2Lin(nfMaxDB)) /
		(1/core.DB2Lin(g1aMax) - 1/core.DB2Lin(g1aMin)))
	nf1 := core.Lin2DB(core.DB2Lin(nfMinDB) - core.DB2Lin(nf2)/core.DB2Lin(g1aMax))

	if nf1 < 4 {
		return model.NFModelVG{}, fmt.Errorf("DeriveNFModelVG: first coil nf %.2f too low for amplifier %q", nf1, variety)
	}
	if !(nf1+0.3 < nf2 && nf2 < nf1+2) {
		if nf2 < nf1+0.3 {
			nf2 = nf1 + 0.3
		}
		if nf2 > nf1+2 {
			nf2 = nf1 + 2
		}
		g1aMax = core.Lin2DB(core.DB2Lin(nf2) / (core.DB2Lin(nfMinDB) - core.DB2Lin(nf1)))
		deltaP = gainMaxDB - g1aMax
		g1aMin = gainMinDB - (gainMaxDB - gainMinDB) - deltaP
		if !(1 < deltaP && deltaP < 11) {
			return model.NFModelVG{}, fmt.Errorf(
				"DeriveNFModelVG: computed delta_p %.2f out of range for amplifier %q (nf1 %.2f, nf2 %.2f)",
				deltaP, variety, nf1, nf2)
		}
	}

	calcNFMin := core.Lin2DB(core.DB2Lin(nf1) + core.DB2Lin(nf2)/core.DB2Lin(g1aMax))
	if diff := calcNFMin - nfMinDB; diff > 0.01 || diff < -0.01 {
		return model.NFModelVG{}, fmt.Errorf(
			"DeriveNFModelVG: nf_min mismatch for amplifier %q: %.2f vs computed %.2f", variety, nfMinDB, calcNFMin)
	}
	calcNFMax := core.Lin2DB(core.DB2Lin(nf1) + core.DB2Lin(nf2)/core.DB2Lin(g1aMin))
	if diff := calcNFMax - nfMaxDB; diff > 0.01 || diff < -0.01 {
		return model.NFModelVG{}, fmt.Errorf(
			"DeriveNFModelVG: nf_max mismatch for amplifier %q: %.2f vs computed %.2f", variety, nfMaxDB, calcNFMax)
	}
	return model.NFModelVG{NF1: nf1, NF2: nf2, DeltaP: deltaP}, nil
}
