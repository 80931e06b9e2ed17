package model

// TransceiverMode is one operational mode of a transceiver variety.
type TransceiverMode struct {
	Format       string  `json:"format"`
	BaudRateHz   float64 `json:"baud_rate"`
	OSNRdB       float64 `json:"OSNR"`
	BitRateBps   float64 `json:"bit_rate"`
	RollOff      float64 `json:"roll_off"`
	TxOSNRdB     float64 `json:"tx_osnr"`
	MinSpacingHz float64 `json:"min_spacing"`
	Cost         float64 `json:"cost"`
}

// TransceiverType is a transceiver variety with its supported modes and
// tunable frequency range.
type TransceiverType struct {
	Variety string            `json:"type_variety"`
	FMinHz  float64           `json:"frequency_min"`
	FMaxHz  float64           `json:"frequency_max"`
	Modes   []TransceiverMode `json:"mode"`
}
