package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/optical-path-simulator/core"
	"github.com/signalsfoundry/optical-path-simulator/internal/logging"
	"github.com/signalsfoundry/optical-path-simulator/internal/observability"
	"github.com/signalsfoundry/optical-path-simulator/kb"
)

func main() {
	equipmentPath := flag.String("equipment", "examples/equipment.json", "equipment library JSON")
	topologyPath := flag.String("topology", "examples/topology.json", "network topology JSON")
	requestsPath := flag.String("requests", "examples/requests.json", "path requests JSON")
	simParamsPath := flag.String("sim-params", "", "optional simulation parameters YAML")
	outputPath := flag.String("output", "", "write the result table to this file (stdout when empty)")
	outputFormat := flag.String("format", "csv", "result table format: csv or json")
	workers := flag.Int("workers", 1, "number of concurrent planning workers")
	noAutodesign := flag.Bool("no-autodesign", false, "skip automatic amplifier placement and fiber splitting")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	flag.Parse()

	ctx := context.Background()
	log := logging.NewFromEnv()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fatal(ctx, log, "init tracing", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	metrics, err := observability.NewPlannerCollector(prometheus.DefaultRegisterer)
	if err != nil {
		fatal(ctx, log, "register metrics", err)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "serving metrics", logging.String("addr", *metricsAddr))
	}

	library := kb.New()
	withFile(ctx, log, *equipmentPath, func(f *os.File) error {
		return kb.LoadEquipment(library, f)
	})

	var topology *core.Topology
	withFile(ctx, log, *topologyPath, func(f *os.File) error {
		var err error
		topology, err = core.LoadTopology(f, library)
		return err
	})
	if !*noAutodesign {
		if err := topology.BuildNetwork(library); err != nil {
			fatal(ctx, log, "network autodesign", err)
		}
	}
	recordTopologyCounts(metrics, topology)

	sim := core.DefaultSimParams()
	if *simParamsPath != "" {
		withFile(ctx, log, *simParamsPath, func(f *os.File) error {
			var err error
			sim, err = core.LoadSimParams(f)
			return err
		})
	}

	var results []core.PlanResult
	withFile(ctx, log, *requestsPath, func(f *os.File) error {
		reqs, err := core.LoadRequests(f, library)
		if err != nil {
			return err
		}
		planner := &core.Planner{
			Topology:  topology,
			Equipment: library,
			Sim:       sim,
			Log:       log,
			Metrics:   metrics,
			Workers:   *workers,
		}
		log.Info(ctx, "planning requests",
			logging.Int("requests", len(reqs)),
			logging.Int("workers", *workers))
		results = planner.Process(ctx, reqs)
		return nil
	})

	out := os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			fatal(ctx, log, "create output file", err)
		}
		defer f.Close()
		out = f
	}
	switch *outputFormat {
	case "csv":
		err = writeReport(out, results)
	case "json":
		err = writeJSONReport(out, results)
	default:
		err = fmt.Errorf("unknown format %q", *outputFormat)
	}
	if err != nil {
		fatal(ctx, log, "write report", err)
	}
}

// writeReport renders one CSV row per request, with "-" placeholders for
// values a blocked request never produced.
func writeReport(f *os.File, results []core.PlanResult) error {
	w := csv.NewWriter(f)
	header := []string{
		"request-id", "source", "destination", "trx type", "mode",
		"spacing (GHz)", "nb of channels", "bit rate (Gb/s)",
		"GSNR min (dB)", "GSNR mean (dB)", "blocking reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, res := range results {
		req := res.Request
		row := []string{
			req.RequestID, req.Source, req.Destination, req.TrxType,
			orDash(req.Format),
			strconv.FormatFloat(req.SpacingHz/1e9, 'g', -1, 64),
			strconv.Itoa(req.NbChannel),
			"-", "-", "-",
			string(req.BlockingReason),
		}
		if req.BaudRateHz != nil && req.BitRateBps > 0 {
			row[7] = strconv.FormatFloat(req.BitRateBps/1e9, 'g', -1, 64)
		}
		if res.Computed {
			row[8] = strconv.FormatFloat(res.MinGSNRdB, 'f', 2, 64)
			row[9] = strconv.FormatFloat(res.MeanGSNRdB, 'f', 2, 64)
		}
		if res.Err != nil {
			row[10] = res.Err.Error()
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

type reportRow struct {
	RequestID      string   `json:"request-id"`
	Source         string   `json:"source"`
	Destination    string   `json:"destination"`
	TrxType        string   `json:"trx-type"`
	Mode           string   `json:"mode,omitempty"`
	SpacingGHz     float64  `json:"spacing-ghz"`
	NbChannels     int      `json:"nb-of-channels"`
	BitRateGbps    *float64 `json:"bit-rate-gbps,omitempty"`
	MinGSNRdB      *float64 `json:"gsnr-min-db,omitempty"`
	MeanGSNRdB     *float64 `json:"gsnr-mean-db,omitempty"`
	BlockingReason string   `json:"blocking-reason,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func writeJSONReport(f *os.File, results []core.PlanResult) error {
	rows := make([]reportRow, 0, len(results))
	for _, res := range results {
		req := res.Request
		row := reportRow{
			RequestID:      req.RequestID,
			Source:         req.Source,
			Destination:    req.Destination,
			TrxType:        req.TrxType,
			Mode:           req.Format,
			SpacingGHz:     req.SpacingHz / 1e9,
			NbChannels:     req.NbChannel,
			BlockingReason: string(req.BlockingReason),
		}
		if req.BaudRateHz != nil && req.BitRateBps > 0 {
			rate := req.BitRateBps / 1e9
			row.BitRateGbps = &rate
		}
		if res.Computed {
			minSNR, meanSNR := res.MinGSNRdB, res.MeanGSNRdB
			row.MinGSNRdB = &minSNR
			row.MeanGSNRdB = &meanSNR
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		rows = append(rows, row)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func recordTopologyCounts(metrics *observability.PlannerCollector, topology *core.Topology) {
	var transceivers, roadms, fibers, amplifiers int
	for _, el := range topology.Elements() {
		switch el.(type) {
		case *core.Transceiver:
			transceivers++
		case *core.Roadm:
			roadms++
		case *core.Fiber, *core.RamanFiber:
			fibers++
		case *core.Edfa:
			amplifiers++
		}
	}
	metrics.SetTopologyCounts(transceivers, roadms, fibers, amplifiers)
}

func withFile(ctx context.Context, log logging.Logger, path string, fn func(*os.File) error) {
	f, err := os.Open(path)
	if err != nil {
		fatal(ctx, log, "open "+path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		fatal(ctx, log, "load "+path, err)
	}
}

func fatal(ctx context.Context, log logging.Logger, what string, err error) {
	log.Error(ctx, what+" failed", logging.String("error", err.Error()))
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
