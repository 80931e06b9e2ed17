package core

import (
	"context"
	"testing"

	"github.com/signalsfoundry/optical-path-simulator/model"
)

func TestPlannerProcess(t *testing.T) {
	topo := testNetwork(t)
	planner := &Planner{
		Topology:  topo,
		Equipment: testEquipment(),
		Sim:       DefaultSimParams(),
		Workers:   2,
	}

	forced := forcedRequest(t, "mode 1")
	open := openRequest(50e9)
	open.RequestID = "1"
	narrow := openRequest(30e9)
	narrow.RequestID = "2"
	lost := openRequest(50e9)
	lost.RequestID = "3"
	lost.Destination = "trx Z"

	results := planner.Process(context.Background(), []model.PathRequest{*forced, *open, *narrow, *lost})
	if len(results) != 4 {
		t.Fatalf("results = %d", len(results))
	}
	for i, want := range []string{"0", "1", "2", "3"} {
		if results[i].Request.RequestID != want {
			t.Fatalf("result %d is request %q, want %q", i, results[i].Request.RequestID, want)
		}
	}

	if r := results[0]; r.Err != nil || r.Request.Blocked() || !r.Computed {
		t.Fatalf("forced request: err=%v blocked=%q computed=%v", r.Err, r.Request.BlockingReason, r.Computed)
	}
	if results[0].MinGSNRdB <= 0 || results[0].MeanGSNRdB < results[0].MinGSNRdB {
		t.Fatalf("forced request GSNR min=%v mean=%v", results[0].MinGSNRdB, results[0].MeanGSNRdB)
	}

	if r := results[1]; r.Request.Blocked() || r.Mode == nil || r.Mode.Format != "mode 2" {
		t.Fatalf("open request: blocked=%q mode=%+v", r.Request.BlockingReason, r.Mode)
	}
	// The chosen mode is copied back onto the request for reporting.
	if results[1].Request.BaudRateHz == nil || *results[1].Request.BaudRateHz != 32e9 {
		t.Fatalf("open request baud rate not resolved")
	}

	if r := results[2]; r.Request.BlockingReason != model.BlockNoFeasibleBaudrate {
		t.Fatalf("narrow request reason = %q", r.Request.BlockingReason)
	}
	if r := results[3]; r.Request.BlockingReason != model.BlockNoPath {
		t.Fatalf("lost request reason = %q", r.Request.BlockingReason)
	}
}

func TestPlannerForcedModeNotFeasible(t *testing.T) {
	topo := testNetwork(t)
	planner := &Planner{
		Topology:  topo,
		Equipment: testEquipment(),
		Sim:       DefaultSimParams(),
	}
	req := forcedRequest(t, "mode 1")
	osnr := 50.0
	req.OSNRdB = &osnr

	results := planner.Process(context.Background(), []model.PathRequest{*req})
	r := results[0]
	if r.Request.BlockingReason != model.BlockModeNotFeasible {
		t.Fatalf("reason = %q, want %q", r.Request.BlockingReason, model.BlockModeNotFeasible)
	}
	// The quality estimate is still reported for the blocked request.
	if !r.Computed || r.MeanGSNRdB >= 50 {
		t.Fatalf("computed=%v mean GSNR=%v", r.Computed, r.MeanGSNRdB)
	}
}

func TestPlannerIsolatesRepeatedRuns(t *testing.T) {
	topo := testNetwork(t)
	planner := &Planner{
		Topology:  topo,
		Equipment: testEquipment(),
		Sim:       DefaultSimParams(),
	}

	first := planner.Process(context.Background(), []model.PathRequest{*forcedRequest(t, "mode 1")})
	second := planner.Process(context.Background(), []model.PathRequest{*forcedRequest(t, "mode 1")})
	if !almostEqual(first[0].MinGSNRdB, second[0].MinGSNRdB, 1e-12) {
		t.Fatalf("repeated runs diverge: %v vs %v", first[0].MinGSNRdB, second[0].MinGSNRdB)
	}

	// The shared topology elements never accumulate propagation state.
	el, _ := topo.Element("trx B")
	if rx := el.(*Transceiver); len(rx.SNR01nm) != 0 {
		t.Fatalf("terminal in the shared topology carries receiver state")
	}
}
