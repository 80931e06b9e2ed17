package core

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// propagateSpectrum threads the spectrum through the path in order,
// handing each roadm the uid of the next element as its egress degree.
func propagateSpectrum(path []Element, si *SpectralInformation, sim SimParams) error {
	for i, el := range path {
		if roadm, ok := el.(*Roadm); ok && i+1 < len(path) {
			if err := roadm.PropagateOnDegree(si, path[i+1].UID()); err != nil {
				return err
			}
			continue
		}
		if err := el.Propagate(si, sim); err != nil {
			return err
		}
	}
	return nil
}

// Propagate launches the request's comb through the path and returns the
// spectrum at the receiver. The path must end in a transceiver, which is
// left carrying the per-channel quality estimates, transmission penalties
// folded in. The request must carry resolved mode parameters.
func Propagate(path []Element, req *model.PathRequest, lib EquipmentSource, sim SimParams) (*SpectralInformation, error) {
	if len(path) == 0 {
		return nil, &TopologyError{Reason: "empty propagation path"}
	}
	rx, ok := path[len(path)-1].(*Transceiver)
	if !ok {
		return nil, &TopologyError{Reason: fmt.Sprintf("path ends in %q, not a transceiver", path[len(path)-1].UID())}
	}
	if req.BaudRateHz == nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("request %s has no resolved baud rate", req.RequestID)}
	}
	si, err := CreateInputSpectralInformation(
		req.FMinHz, req.FMaxHz, req.RollOff, *req.BaudRateHz, req.PowerW, req.SpacingHz)
	if err != nil {
		return nil, err
	}
	if err := propagateSpectrum(path, si, sim); err != nil {
		return nil, err
	}
	rx.UpdateSNR(req.TxOSNRdB, lib.RoadmDefaults().AddDropOSNRdB)
	return si, nil
}

// PropagateAndOptimizeMode searches the best feasible mode for a request
// that leaves the choice open: baud rates compatible with the requested
// spacing are tried from the highest down, one propagation each, and
// within a baud rate the modes from the highest bit rate down. The first
// mode whose required OSNR is cleared by the worst channel wins.
//
// When nothing fits, the blocking reason is recorded on the request; for
// an unfeasible path the last explored mode is still returned so the
// caller can report what was attempted.
func PropagateAndOptimizeMode(path []Element, req *model.PathRequest, lib EquipmentSource, sim SimParams) (*model.TransceiverMode, error) {
	modes, err := lib.TransceiverModes(req.TrxType)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	baudRates := baudRatesWithin(modes, req.SpacingHz)
	if len(baudRates) == 0 {
		req.BlockingReason = model.BlockNoFeasibleBaudrate
		return nil, nil
	}
	rx, ok := path[len(path)-1].(*Transceiver)
	if !ok {
		return nil, &TopologyError{Reason: fmt.Sprintf("path ends in %q, not a transceiver", path[len(path)-1].UID())}
	}
	rollOff := lib.SpectralDefaults().RollOff
	addDropOSNR := lib.RoadmDefaults().AddDropOSNRdB

	var lastExplored *model.TransceiverMode
	for _, baud := range baudRates {
		si, err := CreateInputSpectralInformation(
			req.FMinHz, req.FMaxHz, rollOff, baud, req.PowerW, req.SpacingHz)
		if err != nil {
			var spectrumErr *SpectrumError
			if errors.As(err, &spectrumErr) {
				req.BlockingReason = model.BlockNoComputedSNR
				return nil, nil
			}
			return nil, err
		}
		if err := propagateSpectrum(path, si, sim); err != nil {
			return nil, err
		}
		for _, m := range modesAtBaudRate(modes, baud) {
			rx.UpdateSNR(m.TxOSNRdB, addDropOSNR)
			if len(rx.SNR01nm) == 0 {
				req.BlockingReason = model.BlockNoComputedSNR
				return nil, nil
			}
			if round2(minFloat64(rx.SNR01nm)) > m.OSNRdB {
				return m, nil
			}
			lastExplored = m
		}
	}
	req.BlockingReason = model.BlockNoFeasibleMode
	return lastExplored, nil
}

// baudRatesWithin returns the distinct baud rates whose minimum spacing
// fits the requested one, highest first.
func baudRatesWithin(modes []model.TransceiverMode, spacingHz float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, m := range modes {
		if m.MinSpacingHz <= spacingHz && !seen[m.BaudRateHz] {
			seen[m.BaudRateHz] = true
			out = append(out, m.BaudRateHz)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// modesAtBaudRate returns the modes running at the given baud rate,
// highest bit rate first.
func modesAtBaudRate(modes []model.TransceiverMode, baud float64) []*model.TransceiverMode {
	var out []*model.TransceiverMode
	for i := range modes {
		if modes[i].BaudRateHz == baud {
			out = append(out, &modes[i])
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].BitRateBps > out[b].BitRateBps })
	return out
}

// MeanSNR01nm returns the mean received SNR over 0.1nm of the terminal
// transceiver, rounded the way feasibility is judged.
func MeanSNR01nm(rx *Transceiver) float64 {
	if len(rx.SNR01nm) == 0 {
		return math.NaN()
	}
	return round2(meanFloat64(rx.SNR01nm))
}
