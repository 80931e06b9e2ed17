package model

// AmplifierTypeDef selects the noise-figure model used for an amplifier
// variety.
type AmplifierTypeDef string

const (
	AmpVariableGain  AmplifierTypeDef = "variable_gain"
	AmpFixedGain     AmplifierTypeDef = "fixed_gain"
	AmpOpenROADM     AmplifierTypeDef = "openroadm"
	AmpAdvancedModel AmplifierTypeDef = "advanced_model"
	AmpDualStage     AmplifierTypeDef = "dual_stage"
)

// NFModelVG holds the two-coil noise-figure model of a variable-gain EDFA.
// NF1 and NF2 are the coil noise figures in dB, DeltaP the maximum power
// difference between the two coils in dB.
type NFModelVG struct {
	NF1    float64 `json:"nf1"`
	NF2    float64 `json:"nf2"`
	DeltaP float64 `json:"delta_p"`
}

// NFModelFG is the trivial fixed-gain noise-figure model.
type NFModelFG struct {
	NF0 float64 `json:"nf0"`
}

// NFModelOpenROADM derives the noise figure from a polynomial fit of the
// per-channel input power, following the OpenROADM MSA incremental model.
// Coefficients are ordered highest degree first.
type NFModelOpenROADM struct {
	NFCoef []float64 `json:"nf_coef"`
}

// DualStageModel names the two sub-amplifier varieties composing a
// dual-stage amplifier.
type DualStageModel struct {
	PreampVariety  string `json:"preamp_variety"`
	BoosterVariety string `json:"booster_variety"`
}

// AmplifierType is the parameter bundle for one amplifier variety, resolved
// once at equipment-load time and shared read-only afterwards.
type AmplifierType struct {
	Variety string           `json:"type_variety"`
	TypeDef AmplifierTypeDef `json:"type_def"`

	// Gain and power ratings in dB / dBm.
	GainFlatmaxDB float64 `json:"gain_flatmax"`
	GainMinDB     float64 `json:"gain_min"`
	PMaxDBm       float64 `json:"p_max"`

	// Exactly one of the NF models below is set, matching TypeDef.
	NFModelVG        *NFModelVG        `json:"nf_model_vg,omitempty"`
	NFModelFG        *NFModelFG        `json:"nf_model_fg,omitempty"`
	NFModelOpenROADM *NFModelOpenROADM `json:"nf_model_openroadm,omitempty"`
	DualStage        *DualStageModel   `json:"dual_stage_model,omitempty"`

	// Polynomial fit for the advanced model, highest degree first.
	NFFitCoeff []float64 `json:"nf_fit_coeff,omitempty"`

	// Calibration curves sampled on a uniform grid over [FMinHz, FMaxHz].
	FMinHz     float64   `json:"f_min"`
	FMaxHz     float64   `json:"f_max"`
	NFRipple   []float64 `json:"nf_ripple"`
	DGT        []float64 `json:"dgt"`
	GainRipple []float64 `json:"gain_ripple"`

	OutVOAAuto       bool `json:"out_voa_auto"`
	AllowedForDesign bool `json:"allowed_for_design"`

	// Resolved sub-amplifiers for dual-stage varieties; nil otherwise.
	Preamp  *AmplifierType `json:"-"`
	Booster *AmplifierType `json:"-"`
}
