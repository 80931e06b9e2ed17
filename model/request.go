package model

// BlockingReason classifies why a path request could not be served.
type BlockingReason string

const (
	// No route could be resolved between source and destination.
	BlockNoPath BlockingReason = "NO_PATH"
	// A route exists but violates an include-node constraint.
	BlockNoPathWithConstraint BlockingReason = "NO_PATH_WITH_CONSTRAINT"
	// The transceiver has no baud rate compatible with the requested spacing.
	BlockNoFeasibleBaudrate BlockingReason = "NO_FEASIBLE_BAUDRATE_WITH_SPACING"
	// Every candidate mode fell short of its required OSNR.
	BlockNoFeasibleMode BlockingReason = "NO_FEASIBLE_MODE"
	// Propagation produced no usable channels to estimate SNR from.
	BlockNoComputedSNR BlockingReason = "NO_COMPUTED_SNR"
	// The explicitly requested mode fell short of its required OSNR.
	BlockModeNotFeasible BlockingReason = "MODE_NOT_FEASIBLE"
	// No spectrum could be assigned along the route.
	BlockNoSpectrum BlockingReason = "NO_SPECTRUM"
)

// PathRequest is one point-to-point transmission demand. Baud rate and
// OSNR are pointers: nil means the mode is left open and must be chosen
// by the feasibility search.
type PathRequest struct {
	RequestID   string
	Source      string
	Destination string

	// Explicit route as element UIDs, source to destination inclusive.
	NodesList []string
	// Per-node constraint looseness, parallel to NodesList ("STRICT" or
	// "LOOSE").
	LooseList []string

	TrxType string
	TrxMode string

	SpacingHz float64
	PowerW    float64
	NbChannel int
	FMinHz    float64
	FMaxHz    float64

	// Mode parameters, resolved from the transceiver library either up
	// front (forced mode) or by the feasibility search.
	Format       string
	BaudRateHz   *float64
	OSNRdB       *float64
	BitRateBps   float64
	RollOff      float64
	TxOSNRdB     float64
	MinSpacingHz float64
	Cost         float64

	PathBandwidthBps float64

	BlockingReason BlockingReason
}

// Blocked reports whether the request carries a blocking reason.
func (r *PathRequest) Blocked() bool { return r.BlockingReason != "" }

// ApplyMode copies a transceiver mode's parameters onto the request.
func (r *PathRequest) ApplyMode(m *TransceiverMode) {
	baud, osnr := m.BaudRateHz, m.OSNRdB
	r.Format = m.Format
	r.BaudRateHz = &baud
	r.OSNRdB = &osnr
	r.BitRateBps = m.BitRateBps
	r.RollOff = m.RollOff
	r.TxOSNRdB = m.TxOSNRdB
	r.MinSpacingHz = m.MinSpacingHz
	r.Cost = m.Cost
}
