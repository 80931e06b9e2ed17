package core

// ConfigurationError reports invalid or inconsistent equipment and
// simulation settings.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Reason }

// TopologyError reports an inconsistency in the network description, such
// as a dangling connection or a Raman fiber without pumps.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string { return "topology error: " + e.Reason }

// SpectrumError reports an invalid spectral definition, such as
// overlapping carriers or mismatched array dimensions.
type SpectrumError struct {
	Reason string
}

func (e *SpectrumError) Error() string { return "spectrum error: " + e.Reason }
