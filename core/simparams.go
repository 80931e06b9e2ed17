package core

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// NLI estimation methods.
const (
	NLIMethodGNAnalytic             = "gn_model_analytic"
	NLIMethodGGNSpectrallySeparated = "ggn_spectrally_separated"
)

// RamanParams tune the stimulated Raman scattering solver.
type RamanParams struct {
	Enabled bool `yaml:"flag_raman"`
	// Longitudinal step of the z grid in m.
	SpaceResolution float64 `yaml:"space_resolution"`
	// Relative convergence tolerance of the iterative solve.
	Tolerance float64 `yaml:"tolerance"`
}

// NLIParams tune the nonlinear-interference solver.
type NLIParams struct {
	Method              string  `yaml:"nli_method_name"`
	WDMGridSizeHz       float64 `yaml:"wdm_grid_size"`
	DispersionTolerance float64 `yaml:"dispersion_tolerance"`
	PhaseShiftTolerance float64 `yaml:"phase_shift_tolerance"`
	// Channel numbers the full model is evaluated on; interpolated in
	// between. Empty means every channel.
	ComputedChannels []int `yaml:"computed_channels"`
}

// SimParams carries every tunable of the physical models. It is passed
// explicitly to the elements that need it; a zero value is not usable,
// start from DefaultSimParams.
type SimParams struct {
	Raman RamanParams `yaml:"raman_params"`
	NLI   NLIParams   `yaml:"nli_params"`
}

// DefaultSimParams returns the settings used when no simulation file is
// given: closed-form attenuation and the analytic GN model.
func DefaultSimParams() SimParams {
	return SimParams{
		Raman: RamanParams{
			Enabled:         false,
			SpaceResolution: 10e3,
			Tolerance:       1e-8,
		},
		NLI: NLIParams{
			Method:              NLIMethodGNAnalytic,
			WDMGridSizeHz:       50e9,
			DispersionTolerance: 1,
			PhaseShiftTolerance: 0.1,
		},
	}
}

// LoadSimParams reads a YAML simulation-settings document, overlaying it
// on the defaults.
func LoadSimParams(r io.Reader) (SimParams, error) {
	params := DefaultSimParams()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		return SimParams{}, fmt.Errorf("LoadSimParams: decode settings: %w", err)
	}
	if err := params.Validate(); err != nil {
		return SimParams{}, err
	}
	return params, nil
}

// Validate checks the settings for values the solvers cannot work with.
func (p SimParams) Validate() error {
	if p.Raman.SpaceResolution <= 0 {
		return &ConfigurationError{Reason: "raman space resolution must be positive"}
	}
	if p.Raman.Tolerance <= 0 {
		return &ConfigurationError{Reason: "raman tolerance must be positive"}
	}
	switch p.NLI.Method {
	case NLIMethodGNAnalytic, NLIMethodGGNSpectrallySeparated:
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown nli method %q", p.NLI.Method)}
	}
	return nil
}
