package model

// SpectralDefaults are the system-wide spectral information defaults used
// when a path request leaves the corresponding field unset.
type SpectralDefaults struct {
	FMinHz       float64 `json:"f_min"`
	FMaxHz       float64 `json:"f_max"`
	BaudRateHz   float64 `json:"baud_rate"`
	SpacingHz    float64 `json:"spacing"`
	PowerDBm     float64 `json:"power_dbm"`
	RollOff      float64 `json:"roll_off"`
	TxOSNRdB     float64 `json:"tx_osnr"`
	SysMarginsDB float64 `json:"sys_margins"`
}

// SpanDefaults control automatic network design around fiber spans.
type SpanDefaults struct {
	PowerMode                  bool      `json:"power_mode"`
	DeltaPowerRangeDB          []float64 `json:"delta_power_range_db"`
	MaxFiberLineicLossForRaman float64   `json:"max_fiber_lineic_loss_for_raman"`
	TargetExtendedGainDB       float64   `json:"target_extended_gain"`
	MaxLengthKm                float64   `json:"max_length"`
	MaxLossDB                  float64   `json:"max_loss"`
	PaddingDB                  float64   `json:"padding"`
	EOLDB                      float64   `json:"EOL"`
	ConInDB                    float64   `json:"con_in"`
	ConOutDB                   float64   `json:"con_out"`
}

// RoadmDefaults are applied to ROADM nodes that do not carry their own
// equalization settings.
type RoadmDefaults struct {
	TargetPchOutDB     float64  `json:"target_pch_out_db"`
	AddDropOSNRdB      float64  `json:"add_drop_osnr"`
	PMD                float64  `json:"pmd"`
	RestrictionPreamp  []string `json:"preamp_variety_list"`
	RestrictionBooster []string `json:"booster_variety_list"`
}
