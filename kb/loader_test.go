package kb

import (
	"math"
	"strings"
	"testing"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

const equipmentDoc = `{
  "Edfa": [
    {"type_variety": "std_medium_gain", "type_def": "variable_gain",
     "gain_flatmax": 26, "gain_min": 15, "p_max": 21,
     "nf_min": 6, "nf_max": 10, "allowed_for_design": true},
    {"type_variety": "std_fixed_gain", "type_def": "fixed_gain",
     "gain_flatmax": 21, "gain_min": 20, "p_max": 21, "nf0": 5.5},
    {"type_variety": "medium_over_fixed", "type_def": "dual_stage",
     "gain_min": 25, "p_max": 21,
     "preamp_variety": "std_medium_gain", "booster_variety": "std_fixed_gain"}
  ],
  "Fiber": [
    {"type_variety": "SSMF", "dispersion": 1.67e-5, "dispersion_slope": 67,
     "gamma": 0.00127, "pmd_coef": 1.265e-15, "loss_coef": 0.2},
    {"type_variety": "NZDF", "dispersion": 0.5e-5, "gamma": 0.00146,
     "pmd_coef": 1.265e-15,
     "loss_coef": {"frequency": [191.3e12, 196.1e12], "loss_coef": [0.21, 0.2]}}
  ],
  "Span": [{"con_in": 0, "con_out": 0, "EOL": 0.5}],
  "Roadm": [{"target_pch_out_db": -20, "add_drop_osnr": 38, "pmd": 8e-12}],
  "SI": [{"f_min": 191.3e12, "f_max": 196.1e12, "baud_rate": 32e9,
          "spacing": 50e9, "power_dbm": 0, "roll_off": 0.15,
          "tx_osnr": 40, "sys_margins": 0}],
  "Transceiver": [
    {"type_variety": "Voyager", "frequency_min": 191.35e12, "frequency_max": 196.1e12,
     "mode": [{"format": "mode 1", "baud_rate": 32e9, "OSNR": 11, "bit_rate": 100e9,
               "roll_off": 0.15, "tx_osnr": 45, "min_spacing": 37.5e9}]}
  ]
}`

func TestLoadEquipment(t *testing.T) {
	l := New()
	if err := LoadEquipment(l, strings.NewReader(equipmentDoc)); err != nil {
		t.Fatalf("LoadEquipment: %v", err)
	}

	amp, ok := l.AmplifierType("std_medium_gain")
	if !ok {
		t.Fatalf("std_medium_gain not loaded")
	}
	if amp.NFModelVG == nil {
		t.Fatalf("variable gain amplifier without a derived NF model")
	}
	if !amp.AllowedForDesign {
		t.Fatalf("allowed_for_design not honored")
	}
	// The frequency range defaults to the C band when unset.
	if amp.FMinHz != 191.35e12 || amp.FMaxHz != 196.1e12 {
		t.Fatalf("amplifier band = [%v, %v]", amp.FMinHz, amp.FMaxHz)
	}

	fixed, _ := l.AmplifierType("std_fixed_gain")
	if fixed.NFModelFG == nil || fixed.NFModelFG.NF0 != 5.5 {
		t.Fatalf("fixed gain model = %+v", fixed.NFModelFG)
	}

	dual, _ := l.AmplifierType("medium_over_fixed")
	if dual.Preamp != amp || dual.Booster != fixed {
		t.Fatalf("dual stage not resolved against its sub amplifiers")
	}

	ssmf, ok := l.FiberType("SSMF")
	if !ok {
		t.Fatalf("SSMF not loaded")
	}
	// 0.2 dB/km is stored as dB/m.
	if len(ssmf.LossCoef.LossCoefDBPM) != 1 || math.Abs(ssmf.LossCoef.LossCoefDBPM[0]-0.2e-3) > 1e-12 {
		t.Fatalf("SSMF loss coef = %v", ssmf.LossCoef.LossCoefDBPM)
	}

	nzdf, _ := l.FiberType("NZDF")
	if len(nzdf.LossCoef.LossCoefDBPM) != 2 || math.Abs(nzdf.LossCoef.LossCoefDBPM[0]-0.21e-3) > 1e-12 {
		t.Fatalf("NZDF loss curve = %v", nzdf.LossCoef.LossCoefDBPM)
	}
	if len(nzdf.LossCoef.FrequencyHz) != 2 {
		t.Fatalf("NZDF loss curve frequencies = %v", nzdf.LossCoef.FrequencyHz)
	}

	if si := l.SpectralDefaults(); si.SpacingHz != 50e9 || si.TxOSNRdB != 40 {
		t.Fatalf("spectral defaults = %+v", si)
	}
	if spans := l.SpanDefaults(); spans.EOLDB != 0.5 {
		t.Fatalf("span defaults = %+v", spans)
	}
	if roadms := l.RoadmDefaults(); roadms.TargetPchOutDB != -20 || roadms.AddDropOSNRdB != 38 {
		t.Fatalf("roadm defaults = %+v", roadms)
	}

	_, mode, err := l.TransceiverMode("Voyager", "mode 1")
	if err != nil {
		t.Fatalf("TransceiverMode: %v", err)
	}
	if mode.BitRateBps != 100e9 || mode.OSNRdB != 11 {
		t.Fatalf("mode = %+v", mode)
	}
}

func TestLoadEquipmentSysMargins(t *testing.T) {
	doc := strings.Replace(equipmentDoc, `"sys_margins": 0`, `"sys_margins": 2`, 1)
	l := New()
	if err := LoadEquipment(l, strings.NewReader(doc)); err != nil {
		t.Fatalf("LoadEquipment: %v", err)
	}
	_, mode, err := l.TransceiverMode("Voyager", "mode 1")
	if err != nil {
		t.Fatalf("TransceiverMode: %v", err)
	}
	if mode.OSNRdB != 13 {
		t.Fatalf("OSNR with margins = %v, want 13", mode.OSNRdB)
	}
}

func TestLoadEquipmentRejectsIncompleteModels(t *testing.T) {
	cases := map[string]string{
		"variable gain without figures": `{"Edfa": [{"type_variety": "a", "type_def": "variable_gain", "gain_flatmax": 26, "gain_min": 15}]}`,
		"fixed gain without nf0":        `{"Edfa": [{"type_variety": "a", "type_def": "fixed_gain", "gain_flatmax": 21}]}`,
		"openroadm without nf_coef":     `{"Edfa": [{"type_variety": "a", "type_def": "openroadm"}]}`,
		"dual stage without parts":      `{"Edfa": [{"type_variety": "a", "type_def": "dual_stage"}]}`,
		"unknown type_def":              `{"Edfa": [{"type_variety": "a", "type_def": "quantum"}]}`,
		"malformed loss_coef":           `{"Fiber": [{"type_variety": "f", "loss_coef": [1, 2]}]}`,
	}
	for name, doc := range cases {
		if err := LoadEquipment(New(), strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: accepted", name)
		}
	}
}

func TestLoadEquipmentDefaultTypeDef(t *testing.T) {
	doc := `{"Edfa": [{"type_variety": "a", "gain_flatmax": 26, "gain_min": 15, "nf_min": 6, "nf_max": 10}]}`
	l := New()
	if err := LoadEquipment(l, strings.NewReader(doc)); err != nil {
		t.Fatalf("LoadEquipment: %v", err)
	}
	amp, _ := l.AmplifierType("a")
	if amp.TypeDef != model.AmpVariableGain {
		t.Fatalf("default type_def = %q, want variable_gain", amp.TypeDef)
	}
}
