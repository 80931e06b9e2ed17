package model

// LossCoefCurve is a frequency-dependent attenuation coefficient in dB/m,
// sampled at the given frequencies. A single-point curve behaves as a
// scalar coefficient.
type LossCoefCurve struct {
	FrequencyHz  []float64 `json:"frequency"`
	LossCoefDBPM []float64 `json:"loss_coef"`
}

// RamanEfficiency is the normalized Raman gain coefficient Cr in 1/(W*m)
// versus pump-signal frequency offset in Hz.
type RamanEfficiency struct {
	FrequencyOffsetHz []float64 `json:"frequency_offset"`
	Cr                []float64 `json:"cr"`
}

// FiberType is the parameter bundle for one fiber variety. All quantities
// are SI: dispersion in s/m^2, gamma in 1/(W*m), PMD coefficient in
// s/sqrt(m).
type FiberType struct {
	Variety         string           `json:"type_variety"`
	Dispersion      float64          `json:"dispersion"`
	DispersionSlope float64          `json:"dispersion_slope"`
	Gamma           float64          `json:"gamma"`
	PMDCoef         float64          `json:"pmd_coef"`
	LossCoef        LossCoefCurve    `json:"loss_coef"`
	Raman           *RamanEfficiency `json:"raman_efficiency,omitempty"`
}

// LumpedLoss is a concentrated loss (splice, connector panel) at a fixed
// position along a span.
type LumpedLoss struct {
	PositionM float64 `json:"position"`
	LossDB    float64 `json:"loss"`
}

// RamanPump describes one pump laser attached to a Raman-amplified fiber.
type RamanPump struct {
	PowerW               float64 `json:"power"`
	FrequencyHz          float64 `json:"frequency"`
	PropagationDirection string  `json:"propagation_direction"`
}

const (
	PumpCoprop     = "coprop"
	PumpCounterpro = "counterprop"
)
