package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// serviceFile mirrors the on-disk path request document.
type serviceFile struct {
	PathRequest []serviceRequestEntry `json:"path-request"`
}

type serviceRequestEntry struct {
	RequestID       string `json:"request-id"`
	Source          string `json:"source"`
	Destination     string `json:"destination"`
	PathConstraints struct {
		TeBandwidth struct {
			TrxType       string   `json:"trx_type"`
			TrxMode       string   `json:"trx_mode"`
			SpacingHz     float64  `json:"spacing"`
			OutputPowerW  *float64 `json:"output-power"`
			MaxNbChannels *int     `json:"max-nb-of-channel"`
			PathBandwidth float64  `json:"path_bandwidth"`
		} `json:"te-bandwidth"`
	} `json:"path-constraints"`
	ExplicitRouteObjects struct {
		RouteObjectIncludeExclude []struct {
			ExplicitRouteUsage string `json:"explicit-route-usage"`
			Index              int    `json:"index"`
			NumUnnumHop        struct {
				NodeID  string `json:"node-id"`
				HopType string `json:"hop-type"`
			} `json:"num-unnum-hop"`
		} `json:"route-object-include-exclude"`
	} `json:"explicit-route-objects"`
}

// LoadRequests reads a path request document and resolves each request
// against the equipment library: forced modes are expanded into their
// transmission parameters up front, open modes keep nil baud rate and
// OSNR for the feasibility search to fill in.
func LoadRequests(r io.Reader, lib EquipmentSource) ([]model.PathRequest, error) {
	var file serviceFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("decode path requests: %v", err)}
	}

	si := lib.SpectralDefaults()
	out := make([]model.PathRequest, 0, len(file.PathRequest))
	for _, entry := range file.PathRequest {
		bw := entry.PathConstraints.TeBandwidth
		req := model.PathRequest{
			RequestID:        entry.RequestID,
			Source:           entry.Source,
			Destination:      entry.Destination,
			TrxType:          bw.TrxType,
			TrxMode:          bw.TrxMode,
			SpacingHz:        bw.SpacingHz,
			PathBandwidthBps: bw.PathBandwidth,
		}
		if req.SpacingHz == 0 {
			req.SpacingHz = si.SpacingHz
		}
		if bw.OutputPowerW != nil {
			req.PowerW = *bw.OutputPowerW
		} else {
			req.PowerW = DBm2W(si.PowerDBm)
		}

		trx, mode, err := lib.TransceiverMode(bw.TrxType, bw.TrxMode)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("request %s: %v", entry.RequestID, err)}
		}
		req.FMinHz, req.FMaxHz = si.FMinHz, si.FMaxHz
		if trx.FMinHz != 0 {
			req.FMinHz = trx.FMinHz
		}
		if trx.FMaxHz != 0 {
			req.FMaxHz = trx.FMaxHz
		}
		if mode != nil {
			if mode.MinSpacingHz > req.SpacingHz {
				return nil, &ConfigurationError{
					Reason: fmt.Sprintf("request %s: spacing %.0f Hz below the %.0f Hz minimum of mode %q",
						entry.RequestID, req.SpacingHz, mode.MinSpacingHz, mode.Format),
				}
			}
			req.ApplyMode(mode)
		} else {
			// An open mode still launches at the system default tx OSNR.
			req.TxOSNRdB = si.TxOSNRdB
			req.RollOff = si.RollOff
		}

		if bw.MaxNbChannels != nil {
			req.NbChannel = *bw.MaxNbChannels
		} else {
			req.NbChannel = AutomaticNch(req.FMinHz, req.FMaxHz, req.SpacingHz)
		}

		for _, hop := range entry.ExplicitRouteObjects.RouteObjectIncludeExclude {
			if hop.ExplicitRouteUsage != "" && hop.ExplicitRouteUsage != "route-include-ero" {
				continue
			}
			req.NodesList = append(req.NodesList, hop.NumUnnumHop.NodeID)
			loose := strings.ToUpper(hop.NumUnnumHop.HopType)
			if loose == "" {
				loose = "STRICT"
			}
			req.LooseList = append(req.LooseList, loose)
		}

		out = append(out, req)
	}
	return out, nil
}
