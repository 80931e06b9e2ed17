package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

// Span design constants: fibers longer than the upper bound are split
// into spans close to the target length.
const (
	splitBoundLowM  = 75e3
	splitBoundHighM = 150e3
	splitTargetM    = 100e3
)

// Gain shortfall accepted before an amplifier variety is rejected during
// selection.
const targetExtendedGainDB = 2.1

// edfaNF estimates the flat noise figure a variety would have at the
// given gain target, using a nominal operating point for the input-power
// dependent models.
func edfaNF(gainTargetDB float64, t *model.AmplifierType) float64 {
	probe := &Edfa{
		Type:            t,
		EffectiveGainDB: gainTargetDB,
		PinDB:           0,
		nch:             88,
	}
	return probe.NFAverage()
}

// selectEdfa picks the amplifier variety for a span of the given loss:
// the best noise figure among varieties whose flat gain covers the loss,
// or the highest-gain variety when none does.
func selectEdfa(spanLossDB float64, lib EquipmentSource) (*model.AmplifierType, error) {
	var candidates []*model.AmplifierType
	for _, amp := range lib.Amplifiers() {
		if amp.AllowedForDesign {
			candidates = append(candidates, amp)
		}
	}
	if len(candidates) == 0 {
		candidates = lib.Amplifiers()
	}
	if len(candidates) == 0 {
		return nil, &ConfigurationError{Reason: "no amplifier variety available for design"}
	}

	var best *model.AmplifierType
	bestNF := math.Inf(1)
	for _, amp := range candidates {
		if amp.GainFlatmaxDB-spanLossDB <= -targetExtendedGainDB {
			continue
		}
		if nf := edfaNF(spanLossDB, amp); nf < bestNF {
			best, bestNF = amp, nf
		}
	}
	if best == nil {
		// No variety reaches the span loss; fall back to the strongest.
		for _, amp := range candidates {
			if best == nil || amp.GainFlatmaxDB > best.GainFlatmaxDB {
				best = amp
			}
		}
	}
	return best, nil
}

func elementLoss(el Element) float64 {
	switch n := el.(type) {
	case *Fiber:
		return n.Loss()
	case *RamanFiber:
		return n.Loss()
	case *Fused:
		return n.LossDB
	default:
		return 0
	}
}

// SpanLoss returns the loss of the span ending at the given element,
// walking back through fused spans and their fibers.
func (t *Topology) SpanLoss(uid string) float64 {
	el := t.elements[uid]
	loss := elementLoss(el)
	for _, prev := range t.fusedChain(uid) {
		loss += elementLoss(prev)
	}
	return loss
}

// fusedChain collects the upstream fibers and splices that form a single
// amplification span with the given element.
func (t *Topology) fusedChain(uid string) []Element {
	var out []Element
	node := t.elements[uid]
	for {
		preds := t.pred[uid]
		if len(preds) != 1 {
			return out
		}
		prev := t.elements[preds[0]]
		_, prevFused := prev.(*Fused)
		_, nodeFused := node.(*Fused)
		if !prevFused && !nodeFused {
			return out
		}
		out = append(out, prev)
		node = prev
		uid = preds[0]
	}
}

// addEgressAmplifier makes sure every span leaving the element ends in an
// amplifier compensating the span loss. Existing amplifiers with no gain
// target get one; missing amplifiers are inserted, picked by noise
// figure.
func (t *Topology) addEgressAmplifier(uid string, lib EquipmentSource) error {
	if _, isEdfa := t.elements[uid].(*Edfa); isEdfa {
		return nil
	}
	idx := 0
	for _, nextUID := range append([]string(nil), t.succ[uid]...) {
		next := t.elements[nextUID]
		switch next.(type) {
		case *Transceiver, *Fused:
			continue
		}
		if amp, ok := next.(*Edfa); ok {
			if amp.Operational.GainTargetDB == 0 {
				loss := t.SpanLoss(uid)
				amp.Operational.GainTargetDB = loss
				amp.EffectiveGainDB = loss
			}
			continue
		}
		loss := t.SpanLoss(uid)
		variety, err := selectEdfa(loss, lib)
		if err != nil {
			return err
		}
		amp := NewEdfa(
			fmt.Sprintf("Edfa%d_%s", idx, uid),
			fmt.Sprintf("Edfa%d_%s", idx, uid),
			t.elements[uid].Location(),
			variety,
			EdfaOperational{GainTargetDB: loss},
		)
		idx++
		if err := t.AddElement(amp); err != nil {
			return err
		}
		t.disconnect(uid, nextUID)
		if err := t.Connect(uid, amp.UID()); err != nil {
			return err
		}
		if err := t.Connect(amp.UID(), nextUID); err != nil {
			return err
		}
	}
	return nil
}

// calculateNewLength splits an overlong fiber into equal spans as close
// to the target as the bounds allow.
func calculateNewLength(lengthM float64) (float64, int) {
	if lengthM < splitBoundHighM {
		return lengthM, 1
	}
	nSpans := int(lengthM / splitTargetM)

	length1 := lengthM / float64(nSpans+1)
	delta1 := splitTargetM - length1
	length2 := lengthM / float64(nSpans)
	delta2 := length2 - splitTargetM

	inBounds := func(l float64) bool { return l >= splitBoundLowM && l < splitBoundHighM }
	switch {
	case inBounds(length1) && !inBounds(length2):
		return length1, nSpans + 1
	case inBounds(length2) && !inBounds(length1):
		return length2, nSpans
	case delta1 < delta2:
		return length1, nSpans + 1
	default:
		return length2, nSpans
	}
}

// splitFiber replaces an overlong fiber with a chain of shorter spans,
// amplified between each other.
func (t *Topology) splitFiber(fiber *Fiber, lib EquipmentSource) error {
	newLength, nSpans := calculateNewLength(fiber.Params.LengthM)
	// Spans with lumped losses keep their surveyed layout.
	if nSpans == 1 || len(fiber.Params.LumpedLosses) > 0 {
		return t.addEgressAmplifier(fiber.UID(), lib)
	}
	preds := t.pred[fiber.UID()]
	succs := t.succ[fiber.UID()]
	if len(preds) != 1 || len(succs) != 1 {
		return &TopologyError{Reason: fmt.Sprintf("fiber %q must have exactly one neighbor on each side to be split", fiber.UID())}
	}
	prevUID, nextUID := preds[0], succs[0]
	t.disconnect(prevUID, fiber.UID())
	t.disconnect(fiber.UID(), nextUID)
	delete(t.elements, fiber.UID())

	for span := 0; span < nSpans; span++ {
		params := fiber.Params
		params.LengthM = newLength
		sub, err := NewFiber(
			fmt.Sprintf("%s_(%d/%d)", fiber.UID(), span+1, nSpans),
			fmt.Sprintf("%s_(%d/%d)", fiber.Name(), span+1, nSpans),
			fiber.Location(), fiber.TypeVariety, params,
		)
		if err != nil {
			return err
		}
		if err := t.AddElement(sub); err != nil {
			return err
		}
		if err := t.Connect(prevUID, sub.UID()); err != nil {
			return err
		}
		if span > 0 {
			if err := t.addEgressAmplifier(prevUID, lib); err != nil {
				return err
			}
		}
		prevUID = sub.UID()
	}
	if err := t.Connect(prevUID, nextUID); err != nil {
		return err
	}
	return t.addEgressAmplifier(prevUID, lib)
}

// BuildNetwork completes a partially designed topology: overlong fibers
// are split, and every fiber and roadm egress gets an amplifier sized to
// its span loss.
func (t *Topology) BuildNetwork(lib EquipmentSource) error {
	var fibers []*Fiber
	for _, el := range t.elements {
		if f, ok := el.(*Fiber); ok {
			fibers = append(fibers, f)
		}
	}
	for _, f := range fibers {
		if err := t.splitFiber(f, lib); err != nil {
			return err
		}
	}
	for _, el := range t.Elements() {
		if _, ok := el.(*Roadm); ok {
			if err := t.addEgressAmplifier(el.UID(), lib); err != nil {
				return err
			}
		}
	}
	return nil
}
