package kb

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// equipmentFile mirrors the equipment configuration document. Span, Roadm
// and SI are single-entry lists for compatibility with hand-edited
// configurations carrying one default block each.
type equipmentFile struct {
	Edfa        []edfaEntry              `json:"Edfa"`
	Fiber       []fiberEntry             `json:"Fiber"`
	Span        []model.SpanDefaults     `json:"Span"`
	Roadm       []model.RoadmDefaults    `json:"Roadm"`
	SI          []model.SpectralDefaults `json:"SI"`
	Transceiver []model.TransceiverType  `json:"Transceiver"`
}

type edfaEntry struct {
	TypeVariety      string    `json:"type_variety"`
	TypeDef          string    `json:"type_def"`
	GainFlatmax      float64   `json:"gain_flatmax"`
	GainMin          float64   `json:"gain_min"`
	PMax             float64   `json:"p_max"`
	NFMin            *float64  `json:"nf_min"`
	NFMax            *float64  `json:"nf_max"`
	NF0              *float64  `json:"nf0"`
	NFCoef           []float64 `json:"nf_coef"`
	NFFitCoeff       []float64 `json:"nf_fit_coeff"`
	PreampVariety    string    `json:"preamp_variety"`
	BoosterVariety   string    `json:"booster_variety"`
	FMin             float64   `json:"f_min"`
	FMax             float64   `json:"f_max"`
	NFRipple         []float64 `json:"nf_ripple"`
	DGT              []float64 `json:"dgt"`
	GainRipple       []float64 `json:"gain_ripple"`
	OutVOAAuto       bool      `json:"out_voa_auto"`
	AllowedForDesign bool      `json:"allowed_for_design"`
}

type fiberEntry struct {
	TypeVariety     string                 `json:"type_variety"`
	Dispersion      float64                `json:"dispersion"`
	DispersionSlope float64                `json:"dispersion_slope"`
	Gamma           float64                `json:"gamma"`
	PMDCoef         float64                `json:"pmd_coef"`
	LossCoef        json.RawMessage        `json:"loss_coef"`
	RamanEfficiency *model.RamanEfficiency `json:"raman_efficiency"`
}

// LoadEquipment fills the library from an equipment configuration
// document and resolves every cross-reference.
func LoadEquipment(l *Library, r io.Reader) error {
	var file equipmentFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("LoadEquipment: decode document: %w", err)
	}

	for _, entry := range file.Edfa {
		amp, err := buildAmplifier(entry)
		if err != nil {
			return fmt.Errorf("LoadEquipment: %w", err)
		}
		if err := l.AddAmplifier(amp); err != nil {
			return fmt.Errorf("LoadEquipment: %w", err)
		}
	}
	for _, entry := range file.Fiber {
		fib, err := buildFiberType(entry)
		if err != nil {
			return fmt.Errorf("LoadEquipment: %w", err)
		}
		if err := l.AddFiber(fib); err != nil {
			return fmt.Errorf("LoadEquipment: %w", err)
		}
	}
	for i := range file.Transceiver {
		trx := file.Transceiver[i]
		if err := l.AddTransceiver(&trx); err != nil {
			return fmt.Errorf("LoadEquipment: %w", err)
		}
	}

	var si model.SpectralDefaults
	if len(file.SI) > 0 {
		si = file.SI[0]
	}
	var spans model.SpanDefaults
	if len(file.Span) > 0 {
		spans = file.Span[0]
	}
	var roadms model.RoadmDefaults
	if len(file.Roadm) > 0 {
		roadms = file.Roadm[0]
	}
	l.SetDefaults(si, spans, roadms)
	l.ApplySysMargins(si.SysMarginsDB)

	if err := l.ResolveDualStages(); err != nil {
		return fmt.Errorf("LoadEquipment: %w", err)
	}
	return nil
}

func buildAmplifier(entry edfaEntry) (*model.AmplifierType, error) {
	typeDef := model.AmplifierTypeDef(entry.TypeDef)
	if entry.TypeDef == "" {
		typeDef = model.AmpVariableGain
	}
	amp := &model.AmplifierType{
		Variety:          entry.TypeVariety,
		TypeDef:          typeDef,
		GainFlatmaxDB:    entry.GainFlatmax,
		GainMinDB:        entry.GainMin,
		PMaxDBm:          entry.PMax,
		FMinHz:           entry.FMin,
		FMaxHz:           entry.FMax,
		NFRipple:         entry.NFRipple,
		DGT:              entry.DGT,
		GainRipple:       entry.GainRipple,
		OutVOAAuto:       entry.OutVOAAuto,
		AllowedForDesign: entry.AllowedForDesign,
	}
	if amp.FMinHz == 0 {
		amp.FMinHz = 191.35e12
	}
	if amp.FMaxHz == 0 {
		amp.FMaxHz = 196.1e12
	}
	switch typeDef {
	case model.AmpFixedGain:
		if entry.NF0 == nil {
			return nil, fmt.Errorf("amplifier %q of type fixed_gain without nf0", entry.TypeVariety)
		}
		amp.NFModelFG = &model.NFModelFG{NF0: *entry.NF0}
	case model.AmpVariableGain:
		if entry.NFMin == nil || entry.NFMax == nil {
			return nil, fmt.Errorf("amplifier %q of type variable_gain without nf_min/nf_max", entry.TypeVariety)
		}
		vg, err := DeriveNFModelVG(entry.TypeVariety, entry.GainMin, entry.GainFlatmax, *entry.NFMin, *entry.NFMax)
		if err != nil {
			return nil, err
		}
		amp.NFModelVG = &vg
	case model.AmpOpenROADM:
		if len(entry.NFCoef) == 0 {
			return nil, fmt.Errorf("amplifier %q of type openroadm without nf_coef", entry.TypeVariety)
		}
		amp.NFModelOpenROADM = &model.NFModelOpenROADM{NFCoef: entry.NFCoef}
	case model.AmpAdvancedModel:
		if len(entry.NFFitCoeff) == 0 {
			return nil, fmt.Errorf("amplifier %q of type advanced_model without nf_fit_coeff", entry.TypeVariety)
		}
		amp.NFFitCoeff = entry.NFFitCoeff
	case model.AmpDualStage:
		if entry.PreampVariety == "" || entry.BoosterVariety == "" {
			return nil, fmt.Errorf("amplifier %q of type dual_stage without preamp/booster varieties", entry.TypeVariety)
		}
		amp.DualStage = &model.DualStageModel{
			PreampVariety:  entry.PreampVariety,
			BoosterVariety: entry.BoosterVariety,
		}
	default:
		return nil, fmt.Errorf("amplifier %q has unknown type_def %q", entry.TypeVariety, entry.TypeDef)
	}
	return amp, nil
}

// buildFiberType converts a fiber entry; the attenuation coefficient is
// given in dB/km, either scalar or as a frequency curve, and stored in
// dB/m.
func buildFiberType(entry fiberEntry) (*model.FiberType, error) {
	fib := &model.FiberType{
		Variety:         entry.TypeVariety,
		Dispersion:      entry.Dispersion,
		DispersionSlope: entry.DispersionSlope,
		Gamma:           entry.Gamma,
		PMDCoef:         entry.PMDCoef,
		Raman:           entry.RamanEfficiency,
	}
	if len(entry.LossCoef) > 0 {
		var scalar float64
		if err := json.Unmarshal(entry.LossCoef, &scalar); err == nil {
			fib.LossCoef = model.LossCoefCurve{
				FrequencyHz:  []float64{193.5e12},
				LossCoefDBPM: []float64{scalar * 1e-3},
			}
		} else {
			var curve struct {
				Frequency []float64 `json:"frequency"`
				LossCoef  []float64 `json:"loss_coef"`
			}
			if err := json.Unmarshal(entry.LossCoef, &curve); err != nil {
				return nil, fmt.Errorf("fiber %q has malformed loss_coef: %w", entry.TypeVariety, err)
			}
			perM := make([]float64, len(curve.LossCoef))
			for i, v := range curve.LossCoef {
				perM[i] = v * 1e-3
			}
			fib.LossCoef = model.LossCoefCurve{FrequencyHz: curve.Frequency, LossCoefDBPM: perM}
		}
	}
	return fib, nil
}
