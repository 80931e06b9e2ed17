package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/optical-path-simulator/internal/logging"
	"github.com/signalsfoundry/optical-path-simulator/internal/observability"
	"github.com/signalsfoundry/optical-path-simulator/model"
)

const tracerName = "optical-path-simulator/core"

// Planner runs path requests against a designed topology. Each request
// propagates over its own clone of the route elements, so a planner is
// safe to share across workers.
type Planner struct {
	Topology  *Topology
	Equipment EquipmentSource
	Sim       SimParams

	Log     logging.Logger
	Metrics *observability.PlannerCollector
	// Number of concurrent workers; zero or one means serial.
	Workers int
}

// PlanResult is the outcome of one path request. Blocked requests carry
// their reason on the request; Path and Mode are filled as far as the
// computation went so reports can show what was attempted.
type PlanResult struct {
	Request *model.PathRequest
	Path    []Element
	Mode    *model.TransceiverMode

	// Received GSNR in 0.1 nm over the channel comb, valid when Computed.
	MinGSNRdB  float64
	MeanGSNRdB float64
	Computed   bool

	Err error
}

// Process runs every request and returns the results in request order.
func (p *Planner) Process(ctx context.Context, requests []model.PathRequest) []PlanResult {
	log := p.Log
	if log == nil {
		log = logging.Noop()
	}
	results := make([]PlanResult, len(requests))
	pending := int64(len(requests))
	p.Metrics.SetPendingRequests(len(requests))

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(requests) {
		workers = len(requests)
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = p.planOne(ctx, &requests[i], log)
				p.Metrics.SetPendingRequests(int(atomic.AddInt64(&pending, -1)))
			}
		}()
	}
	for i := range requests {
		indices <- i
	}
	close(indices)
	wg.Wait()
	return results
}

func (p *Planner) planOne(ctx context.Context, req *model.PathRequest, log logging.Logger) PlanResult {
	ctx = logging.ContextWithRequestID(ctx, req.RequestID)
	log = log.With(logging.String("request_id", req.RequestID))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "plan_request")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("request.source", req.Source),
		attribute.String("request.destination", req.Destination),
	)

	result := PlanResult{Request: req}

	route, blocking := p.Topology.ResolveRoute(req)
	if blocking != "" {
		req.BlockingReason = blocking
		p.Metrics.RecordOutcome(string(blocking))
		span.SetStatus(codes.Error, string(blocking))
		log.Info(ctx, "request blocked on routing",
			logging.String("source", req.Source),
			logging.String("destination", req.Destination),
			logging.String("reason", string(blocking)))
		return result
	}
	path := ClonePath(route)
	result.Path = path

	start := time.Now()
	if req.BaudRateHz != nil {
		result = p.planForcedMode(ctx, req, path, result, log)
	} else {
		result = p.planOpenMode(ctx, req, path, result, log)
	}
	p.Metrics.ObservePropagation(time.Since(start))
	p.Metrics.RecordOutcome(string(req.BlockingReason))
	if req.Blocked() {
		span.SetStatus(codes.Error, string(req.BlockingReason))
	}
	return result
}

// planForcedMode propagates a request whose transmission mode was pinned
// in the service file and verifies it clears its required OSNR.
func (p *Planner) planForcedMode(ctx context.Context, req *model.PathRequest, path []Element, result PlanResult, log logging.Logger) PlanResult {
	_, err := Propagate(path, req, p.Equipment, p.Sim)
	if err != nil {
		var spectrumErr *SpectrumError
		if errors.As(err, &spectrumErr) {
			req.BlockingReason = model.BlockNoComputedSNR
			log.Info(ctx, "request blocked, no computable channels", logging.String("error", err.Error()))
			return result
		}
		result.Err = err
		log.Error(ctx, "propagation failed", logging.String("error", err.Error()))
		return result
	}
	rx := path[len(path)-1].(*Transceiver)
	result.Computed = true
	result.MinGSNRdB = round2(minFloat64(rx.SNR01nm))
	result.MeanGSNRdB = MeanSNR01nm(rx)
	if req.OSNRdB != nil && result.MeanGSNRdB < *req.OSNRdB {
		req.BlockingReason = model.BlockModeNotFeasible
		log.Info(ctx, "requested mode not feasible",
			logging.String("mode", req.Format),
			logging.Float64("gsnr_db", result.MeanGSNRdB),
			logging.Float64("required_osnr_db", *req.OSNRdB))
		return result
	}
	log.Info(ctx, "request served",
		logging.String("mode", req.Format),
		logging.Float64("gsnr_db", result.MeanGSNRdB))
	return result
}

// planOpenMode searches the best feasible mode for the request.
func (p *Planner) planOpenMode(ctx context.Context, req *model.PathRequest, path []Element, result PlanResult, log logging.Logger) PlanResult {
	mode, err := PropagateAndOptimizeMode(path, req, p.Equipment, p.Sim)
	if err != nil {
		result.Err = err
		log.Error(ctx, "mode search failed", logging.String("error", err.Error()))
		return result
	}
	if mode != nil {
		// Recorded even when unfeasible, so reports name the closest try.
		req.ApplyMode(mode)
		result.Mode = mode
	}
	if rx, ok := path[len(path)-1].(*Transceiver); ok && len(rx.SNR01nm) > 0 {
		result.Computed = true
		result.MinGSNRdB = round2(minFloat64(rx.SNR01nm))
		result.MeanGSNRdB = MeanSNR01nm(rx)
	}
	if req.Blocked() {
		log.Info(ctx, "request blocked in mode search",
			logging.String("reason", string(req.BlockingReason)))
		return result
	}
	log.Info(ctx, "request served",
		logging.String("mode", mode.Format),
		logging.Float64("gsnr_db", result.MinGSNRdB))
	return result
}
