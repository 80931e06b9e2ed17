package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PlannerCollector bundles Prometheus metrics for the path planner and
// provides a ready-to-serve /metrics handler.
type PlannerCollector struct {
	gatherer prometheus.Gatherer

	RequestOutcomes     *prometheus.CounterVec
	PropagationDuration prometheus.Histogram
	RequestsPending     prometheus.Gauge

	TopologyTransceivers prometheus.Gauge
	TopologyRoadms       prometheus.Gauge
	TopologyFibers       prometheus.Gauge
	TopologyAmplifiers   prometheus.Gauge
}

// NewPlannerCollector registers planner Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewPlannerCollector(reg prometheus.Registerer) (*PlannerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_requests_total",
		Help: "Total number of processed path requests, labeled by outcome (served or blocking reason).",
	}, []string{"outcome"})
	outcomes, err := registerCounterVec(reg, outcomes, "planner_requests_total")
	if err != nil {
		return nil, err
	}

	propagation := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_propagation_duration_seconds",
		Help:    "End-to-end spectrum propagation time per request, including the mode search when one runs.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	propagation, err = registerHistogram(reg, propagation, "planner_propagation_duration_seconds")
	if err != nil {
		return nil, err
	}

	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_requests_pending",
		Help: "Number of path requests waiting to be processed.",
	}), "planner_requests_pending")
	if err != nil {
		return nil, err
	}

	transceivers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_topology_transceivers",
		Help: "Current number of transceiver elements in the loaded topology.",
	}), "planner_topology_transceivers")
	if err != nil {
		return nil, err
	}
	roadms, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_topology_roadms",
		Help: "Current number of roadm elements in the loaded topology.",
	}), "planner_topology_roadms")
	if err != nil {
		return nil, err
	}
	fibers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_topology_fibers",
		Help: "Current number of fiber spans in the loaded topology.",
	}), "planner_topology_fibers")
	if err != nil {
		return nil, err
	}
	amplifiers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_topology_amplifiers",
		Help: "Current number of amplifier elements in the loaded topology.",
	}), "planner_topology_amplifiers")
	if err != nil {
		return nil, err
	}

	return &PlannerCollector{
		gatherer:             gatherer,
		RequestOutcomes:      outcomes,
		PropagationDuration:  propagation,
		RequestsPending:      pending,
		TopologyTransceivers: transceivers,
		TopologyRoadms:       roadms,
		TopologyFibers:       fibers,
		TopologyAmplifiers:   amplifiers,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PlannerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordOutcome counts one finished request. An empty blocking reason is
// reported as served.
func (c *PlannerCollector) RecordOutcome(blockingReason string) {
	if c == nil || c.RequestOutcomes == nil {
		return
	}
	if blockingReason == "" {
		blockingReason = "served"
	}
	c.RequestOutcomes.WithLabelValues(blockingReason).Inc()
}

// ObservePropagation records one propagation duration measurement.
func (c *PlannerCollector) ObservePropagation(d time.Duration) {
	if c == nil || c.PropagationDuration == nil {
		return
	}
	c.PropagationDuration.Observe(d.Seconds())
}

// SetPendingRequests updates the queue depth gauge.
func (c *PlannerCollector) SetPendingRequests(count int) {
	if c == nil || c.RequestsPending == nil {
		return
	}
	c.RequestsPending.Set(float64(count))
}

// SetTopologyCounts drives the per-kind element gauges after a topology is
// loaded or rebuilt by autodesign.
func (c *PlannerCollector) SetTopologyCounts(transceivers, roadms, fibers, amplifiers int) {
	if c == nil {
		return
	}
	if c.TopologyTransceivers != nil {
		c.TopologyTransceivers.Set(float64(transceivers))
	}
	if c.TopologyRoadms != nil {
		c.TopologyRoadms.Set(float64(roadms))
	}
	if c.TopologyFibers != nil {
		c.TopologyFibers.Set(float64(fibers))
	}
	if c.TopologyAmplifiers != nil {
		c.TopologyAmplifiers.Set(float64(amplifiers))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
