package core

import "math"

// Physical constants used across the propagation models.
const (
	// Planck constant in J*s.
	PlanckConst = 6.62607015e-34
	// Boltzmann constant in J/K.
	BoltzmannConst = 1.380649e-23
	// Speed of light in vacuum in m/s.
	LightSpeed = 299792458.0

	// Frequency slots are allocated on multiples of this grid.
	BaseSlotGridHz = 12.5e9
	// Reference baud rate used to convert PSD equalization targets to
	// per-channel powers.
	RefBaudRateHz = 32e9 * 1.15
)

// Lin2DB converts a linear power ratio to dB.
func Lin2DB(x float64) float64 { return 10 * math.Log10(x) }

// DB2Lin converts dB to a linear power ratio.
func DB2Lin(x float64) float64 { return math.Pow(10, x/10) }

// W2DBm converts Watts to dBm.
func W2DBm(p float64) float64 { return Lin2DB(p) + 30 }

// DBm2W converts dBm to Watts.
func DBm2W(p float64) float64 { return DB2Lin(p - 30) }

// PSD2PowerW converts a power spectral density target in mW/GHz into the
// per-channel power in W carried by a signal of the given baud rate.
func PSD2PowerW(psdMWPerGHz, baudRateHz float64) float64 {
	return psdMWPerGHz * 1e-3 * baudRateHz * 1e-9
}

// RefBandwidthHz is the 0.1nm reference bandwidth OSNR figures are quoted
// in.
const RefBandwidthHz = 12.5e9

// SNRSum folds an impairment quoted as an SNR over the 0.1nm reference
// bandwidth into an existing in-band SNR for a signal of the given baud
// rate. Both SNRs and the result are in dB.
func SNRSum(snrDB, baudRateHz, addedSNRdB float64) float64 {
	added := DB2Lin(addedSNRdB) * RefBandwidthHz / baudRateHz
	return Lin2DB(1 / (1/DB2Lin(snrDB) + 1/added))
}

// AutomaticNch returns how many channels of the given spacing fit between
// fMin and fMax.
func AutomaticNch(fMinHz, fMaxHz, spacingHz float64) int {
	n := math.Floor((fMaxHz - fMinHz) / spacingHz)
	if n < 0 {
		return 0
	}
	return int(n)
}

// AutomaticSpacing returns the smallest multiple of the base slot grid
// that accommodates the given baud rate.
func AutomaticSpacing(baudRateHz float64) float64 {
	return math.Ceil(baudRateHz/BaseSlotGridHz) * BaseSlotGridHz
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
