package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// EquipmentSource is what the topology layer needs from an equipment
// library. *kb.Library satisfies it.
type EquipmentSource interface {
	AmplifierType(variety string) (*model.AmplifierType, bool)
	FiberType(variety string) (*model.FiberType, bool)
	TransceiverMode(variety, format string) (*model.TransceiverType, *model.TransceiverMode, error)
	TransceiverModes(variety string) ([]model.TransceiverMode, error)
	Amplifiers() []*model.AmplifierType
	SpectralDefaults() model.SpectralDefaults
	SpanDefaults() model.SpanDefaults
	RoadmDefaults() model.RoadmDefaults
}

// Topology is the directed element graph of the line system.
type Topology struct {
	elements map[string]Element
	succ     map[string][]string
	pred     map[string][]string
}

// NewTopology returns an empty graph.
func NewTopology() *Topology {
	return &Topology{
		elements: make(map[string]Element),
		succ:     make(map[string][]string),
		pred:     make(map[string][]string),
	}
}

// AddElement registers an element; uids are unique.
func (t *Topology) AddElement(el Element) error {
	if _, ok := t.elements[el.UID()]; ok {
		return &TopologyError{Reason: fmt.Sprintf("duplicate element uid %q", el.UID())}
	}
	t.elements[el.UID()] = el
	return nil
}

// Connect adds a directed edge between two registered elements.
func (t *Topology) Connect(fromUID, toUID string) error {
	if _, ok := t.elements[fromUID]; !ok {
		return &TopologyError{Reason: fmt.Sprintf("connection from unknown element %q", fromUID)}
	}
	if _, ok := t.elements[toUID]; !ok {
		return &TopologyError{Reason: fmt.Sprintf("connection to unknown element %q", toUID)}
	}
	t.succ[fromUID] = append(t.succ[fromUID], toUID)
	t.pred[toUID] = append(t.pred[toUID], fromUID)
	return nil
}

func (t *Topology) disconnect(fromUID, toUID string) {
	t.succ[fromUID] = removeUID(t.succ[fromUID], toUID)
	t.pred[toUID] = removeUID(t.pred[toUID], fromUID)
}

func removeUID(uids []string, uid string) []string {
	out := uids[:0]
	for _, u := range uids {
		if u != uid {
			out = append(out, u)
		}
	}
	return out
}

// Element returns the element with the given uid.
func (t *Topology) Element(uid string) (Element, bool) {
	el, ok := t.elements[uid]
	return el, ok
}

// Elements returns every element, in no particular order.
func (t *Topology) Elements() []Element {
	out := make([]Element, 0, len(t.elements))
	for _, el := range t.elements {
		out = append(out, el)
	}
	return out
}

// Successors returns the uids downstream of the given element.
func (t *Topology) Successors(uid string) []string { return t.succ[uid] }

// Predecessors returns the uids upstream of the given element.
func (t *Topology) Predecessors(uid string) []string { return t.pred[uid] }

// shortestPath returns the minimum-hop element chain from src to dst,
// both included, or nil when dst is unreachable.
func (t *Topology) shortestPath(src, dst string) []string {
	if src == dst {
		return []string{src}
	}
	prev := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		uid := queue[0]
		queue = queue[1:]
		for _, next := range t.succ[uid] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = uid
			if next == dst {
				var path []string
				for at := dst; at != ""; at = prev[at] {
					path = append([]string{at}, path...)
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// ResolveRoute expands a request into the full ordered element chain from
// source to destination, honoring the include-node constraints in order.
// Unreachable strict constraints block the route; loose ones are dropped.
func (t *Topology) ResolveRoute(req *model.PathRequest) ([]Element, model.BlockingReason) {
	if _, ok := t.elements[req.Source]; !ok {
		return nil, model.BlockNoPath
	}
	if _, ok := t.elements[req.Destination]; !ok {
		return nil, model.BlockNoPath
	}

	waypoints := []string{req.Source}
	strict := []string{req.Source}
	for i, uid := range req.NodesList {
		if uid == req.Source || uid == req.Destination {
			continue
		}
		loose := i < len(req.LooseList) && req.LooseList[i] == "LOOSE"
		if _, ok := t.elements[uid]; !ok {
			if loose {
				continue
			}
			return nil, model.BlockNoPathWithConstraint
		}
		waypoints = append(waypoints, uid)
		if !loose {
			strict = append(strict, uid)
		}
	}
	waypoints = append(waypoints, req.Destination)
	strict = append(strict, req.Destination)

	path, ok := t.chainThrough(waypoints)
	if !ok && len(strict) < len(waypoints) {
		// Loose constraints are dropped before giving up.
		path, ok = t.chainThrough(strict)
	}
	if !ok {
		if len(strict) > 2 {
			// Constraints made the route unfeasible; report them as the
			// cause when a direct route exists.
			if _, direct := t.chainThrough([]string{req.Source, req.Destination}); direct {
				return nil, model.BlockNoPathWithConstraint
			}
		}
		return nil, model.BlockNoPath
	}

	out := make([]Element, len(path))
	for i, uid := range path {
		out[i] = t.elements[uid]
	}
	return out, ""
}

func (t *Topology) chainThrough(waypoints []string) ([]string, bool) {
	full := []string{waypoints[0]}
	for i := 1; i < len(waypoints); i++ {
		leg := t.shortestPath(waypoints[i-1], waypoints[i])
		if leg == nil {
			return nil, false
		}
		full = append(full, leg[1:]...)
	}
	return full, true
}

// ClonePath deep-copies a path so propagation state never leaks between
// concurrent computations.
func ClonePath(path []Element) []Element {
	out := make([]Element, len(path))
	for i, el := range path {
		out[i] = el.Clone()
	}
	return out
}

// topologyFile mirrors the network description document.
type topologyFile struct {
	Elements    []elementEntry    `json:"elements"`
	Connections []connectionEntry `json:"connections"`
}

type connectionEntry struct {
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
}

type elementEntry struct {
	UID         string          `json:"uid"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	TypeVariety string          `json:"type_variety"`
	Params      json.RawMessage `json:"params"`
	Operational json.RawMessage `json:"operational"`
	Metadata    struct {
		Location Location `json:"location"`
	} `json:"metadata"`
}

type fiberParamsEntry struct {
	Length       float64           `json:"length"`
	LengthUnits  string            `json:"length_units"`
	LossCoef     *float64          `json:"loss_coef"`
	ConIn        *float64          `json:"con_in"`
	ConOut       *float64          `json:"con_out"`
	AttIn        float64           `json:"att_in"`
	LumpedLosses []lumpedLossEntry `json:"lumped_losses"`
}

// lumpedLossEntry positions are in km, matching the span length unit.
type lumpedLossEntry struct {
	Position float64 `json:"position"`
	Loss     float64 `json:"loss"`
}

type roadmParamsEntry struct {
	TargetPchOutDB       *float64           `json:"target_pch_out_db"`
	TargetPSDOutMWPerGHz *float64           `json:"target_psd_out_mWperGHz"`
	PerDegreePchOutDB    map[string]float64 `json:"per_degree_pch_out_db"`
	PerDegreePSDOut      map[string]float64 `json:"per_degree_psd_out_mWperGHz"`
	Restrictions         struct {
		PreampVarietyList  []string `json:"preamp_variety_list"`
		BoosterVarietyList []string `json:"booster_variety_list"`
	} `json:"restrictions"`
}

type fusedParamsEntry struct {
	Loss float64 `json:"loss"`
}

type edfaOperationalEntry struct {
	GainTarget float64  `json:"gain_target"`
	DeltaP     *float64 `json:"delta_p"`
	TiltTarget float64  `json:"tilt_target"`
	OutVOA     float64  `json:"out_voa"`
}

type ramanOperationalEntry struct {
	TemperatureK float64           `json:"temperature"`
	RamanPumps   []model.RamanPump `json:"raman_pumps"`
}

// LoadTopology builds the element graph from a network description
// document, resolving type varieties against the equipment library.
func LoadTopology(r io.Reader, lib EquipmentSource) (*Topology, error) {
	var file topologyFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("LoadTopology: decode document: %w", err)
	}

	topo := NewTopology()
	for _, entry := range file.Elements {
		el, err := buildElement(entry, lib)
		if err != nil {
			return nil, fmt.Errorf("LoadTopology: %w", err)
		}
		if err := topo.AddElement(el); err != nil {
			return nil, fmt.Errorf("LoadTopology: %w", err)
		}
	}
	for _, cx := range file.Connections {
		if err := topo.Connect(cx.FromNode, cx.ToNode); err != nil {
			return nil, fmt.Errorf("LoadTopology: %w", err)
		}
	}
	return topo, nil
}

func buildElement(entry elementEntry, lib EquipmentSource) (Element, error) {
	name := entry.Name
	if name == "" {
		name = entry.UID
	}
	loc := entry.Metadata.Location

	switch entry.Type {
	case "Transceiver":
		return NewTransceiver(entry.UID, name, loc), nil

	case "Fused":
		params := fusedParamsEntry{Loss: 1}
		if err := decodeParams(entry.Params, &params); err != nil {
			return nil, fmt.Errorf("fused %q: %w", entry.UID, err)
		}
		return NewFused(entry.UID, name, loc, params.Loss), nil

	case "Roadm":
		var params roadmParamsEntry
		if err := decodeParams(entry.Params, &params); err != nil {
			return nil, fmt.Errorf("roadm %q: %w", entry.UID, err)
		}
		defaults := lib.RoadmDefaults()
		rp := RoadmParams{
			TargetPchOutDB:       params.TargetPchOutDB,
			TargetPSDOutMWPerGHz: params.TargetPSDOutMWPerGHz,
			PerDegreePchOutDB:    params.PerDegreePchOutDB,
			PerDegreePSDOut:      params.PerDegreePSDOut,
			AddDropOSNRdB:        defaults.AddDropOSNRdB,
			PMD:                  defaults.PMD,
			RestrictionPreamp:    params.Restrictions.PreampVarietyList,
			RestrictionBooster:   params.Restrictions.BoosterVarietyList,
		}
		if len(rp.RestrictionPreamp) == 0 {
			rp.RestrictionPreamp = defaults.RestrictionPreamp
		}
		if len(rp.RestrictionBooster) == 0 {
			rp.RestrictionBooster = defaults.RestrictionBooster
		}
		if rp.TargetPchOutDB == nil && rp.TargetPSDOutMWPerGHz == nil {
			target := defaults.TargetPchOutDB
			rp.TargetPchOutDB = &target
		}
		return NewRoadm(entry.UID, name, loc, rp), nil

	case "Fiber", "RamanFiber":
		params, err := resolveFiberParams(entry, lib)
		if err != nil {
			return nil, err
		}
		if entry.Type == "Fiber" {
			return NewFiber(entry.UID, name, loc, entry.TypeVariety, params)
		}
		var op ramanOperationalEntry
		if err := decodeParams(entry.Operational, &op); err != nil {
			return nil, fmt.Errorf("raman fiber %q: %w", entry.UID, err)
		}
		return NewRamanFiber(entry.UID, name, loc, entry.TypeVariety, params, op.RamanPumps, op.TemperatureK)

	case "Edfa":
		ampType, ok := lib.AmplifierType(entry.TypeVariety)
		if !ok {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("edfa %q references unknown amplifier variety %q", entry.UID, entry.TypeVariety),
			}
		}
		var op edfaOperationalEntry
		if err := decodeParams(entry.Operational, &op); err != nil {
			return nil, fmt.Errorf("edfa %q: %w", entry.UID, err)
		}
		return NewEdfa(entry.UID, name, loc, ampType, EdfaOperational{
			GainTargetDB: op.GainTarget,
			DeltaPDB:     op.DeltaP,
			TiltTargetDB: op.TiltTarget,
			OutVOADB:     op.OutVOA,
		}), nil

	default:
		return nil, &TopologyError{Reason: fmt.Sprintf("element %q has unknown type %q", entry.UID, entry.Type)}
	}
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// resolveFiberParams merges the per-span settings with the variety
// parameters and the span defaults. Lengths are given in km or m,
// attenuation in dB/km.
func resolveFiberParams(entry elementEntry, lib EquipmentSource) (FiberParams, error) {
	var p fiberParamsEntry
	if err := decodeParams(entry.Params, &p); err != nil {
		return FiberParams{}, fmt.Errorf("fiber %q: %w", entry.UID, err)
	}
	variety, ok := lib.FiberType(entry.TypeVariety)
	if !ok {
		return FiberParams{}, &ConfigurationError{
			Reason: fmt.Sprintf("fiber %q references unknown fiber variety %q", entry.UID, entry.TypeVariety),
		}
	}
	spans := lib.SpanDefaults()

	length := p.Length
	if p.LengthUnits != "m" {
		length *= 1e3
	}
	out := FiberParams{
		LengthM:         length,
		AttInDB:         p.AttIn,
		Dispersion:      variety.Dispersion,
		DispersionSlope: variety.DispersionSlope,
		Gamma:           variety.Gamma,
		PMDCoef:         variety.PMDCoef,
		Raman:           variety.Raman,
	}
	if p.LossCoef != nil {
		out.LossCoefDBPerM = *p.LossCoef * 1e-3
	} else if len(variety.LossCoef.LossCoefDBPM) == 1 {
		out.LossCoefDBPerM = variety.LossCoef.LossCoefDBPM[0]
	} else if len(variety.LossCoef.LossCoefDBPM) > 1 {
		curve := variety.LossCoef
		out.LossCoefCurve = &curve
	}
	if p.ConIn != nil {
		out.ConInDB = *p.ConIn
	} else {
		out.ConInDB = spans.ConInDB
	}
	if p.ConOut != nil {
		out.ConOutDB = *p.ConOut
	} else {
		// The output connector carries the end-of-life margin.
		out.ConOutDB = spans.ConOutDB + spans.EOLDB
	}
	for _, ll := range p.LumpedLosses {
		out.LumpedLosses = append(out.LumpedLosses, model.LumpedLoss{
			PositionM: ll.Position * 1e3,
			LossDB:    ll.Loss,
		})
	}
	return out, nil
}
