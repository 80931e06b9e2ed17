package core

// Transceiver terminates a path: it measures the received spectrum and
// keeps per-channel quality estimates. Propagation never modifies the
// spectrum here.
type Transceiver struct {
	nodeInfo

	// Per-channel readouts, frequency sorted, filled by Propagate.
	BaudRate            []float64 // Hz
	ChromaticDispersion []float64 // ps/nm
	PMD                 []float64 // ps
	OSNRASE             []float64 // dB, in band
	OSNRASE01nm         []float64 // dB over 0.1nm
	OSNRNLI             []float64
	SNR                 []float64
	SNR01nm             []float64

	// Penalty-free copies UpdateSNR starts from, so penalties never
	// compound across repeated calls.
	rawOSNRASE     []float64
	rawOSNRASE01nm []float64
	rawSNR         []float64
	rawSNR01nm     []float64
}

// NewTransceiver builds a terminal node.
func NewTransceiver(uid, name string, loc Location) *Transceiver {
	return &Transceiver{nodeInfo: nodeInfo{uid: uid, name: name, location: loc}}
}

func (t *Transceiver) Passive() bool { return true }

func (t *Transceiver) Propagate(si *SpectralInformation, _ SimParams) error {
	t.calcSNR(si)
	return nil
}

func (t *Transceiver) calcSNR(si *SpectralInformation) {
	n := si.NumberOfChannels()
	t.BaudRate = append([]float64(nil), si.BaudRate()...)
	t.ChromaticDispersion = make([]float64, n)
	t.PMD = make([]float64, n)
	t.OSNRASE = si.OSNR()
	t.OSNRNLI = si.SNRnli()
	t.SNR = si.GSNR()
	t.OSNRASE01nm = make([]float64, n)
	t.SNR01nm = make([]float64, n)
	for i := 0; i < n; i++ {
		t.ChromaticDispersion[i] = si.ChromaticDispersion()[i] * 1e3 // s/m to ps/nm
		t.PMD[i] = si.PMD()[i] * 1e12
		ratio01nm := Lin2DB(RefBandwidthHz / t.BaudRate[i])
		t.OSNRASE01nm[i] = t.OSNRASE[i] - ratio01nm
		t.SNR01nm[i] = t.SNR[i] - ratio01nm
	}
	t.rawOSNRASE = append([]float64(nil), t.OSNRASE...)
	t.rawOSNRASE01nm = append([]float64(nil), t.OSNRASE01nm...)
	t.rawSNR = append([]float64(nil), t.SNR...)
	t.rawSNR01nm = append([]float64(nil), t.SNR01nm...)
}

// UpdateSNR folds transmission penalties, each quoted as an OSNR over
// 0.1nm in dB, into the received quality estimates. It always restarts
// from the penalty-free values, so calling it twice applies the latest
// penalties exactly once.
func (t *Transceiver) UpdateSNR(penaltiesDB ...float64) {
	if len(t.rawSNR) == 0 {
		return
	}
	var combined float64
	for _, p := range penaltiesDB {
		combined += DB2Lin(-p)
	}
	added := -Lin2DB(combined)
	for i := range t.rawSNR {
		t.OSNRASE[i] = SNRSum(t.rawOSNRASE[i], t.BaudRate[i], added)
		t.SNR[i] = SNRSum(t.rawSNR[i], t.BaudRate[i], added)
		t.OSNRASE01nm[i] = SNRSum(t.rawOSNRASE01nm[i], RefBandwidthHz, added)
		t.SNR01nm[i] = SNRSum(t.rawSNR01nm[i], RefBandwidthHz, added)
	}
}

func (t *Transceiver) Clone() Element {
	dup := &Transceiver{nodeInfo: t.nodeInfo}
	return dup
}
