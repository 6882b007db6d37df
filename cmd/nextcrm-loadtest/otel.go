package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	otelexport "github.com/MrEthical07/nextcrm/metrics/export/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// otelReport publishes every worker's metrics through one MeterProvider and
// prints the collected totals after the run.
type otelReport struct {
	reader    *sdkmetric.ManualReader
	provider  *sdkmetric.MeterProvider
	exporters []*otelexport.Exporter
}

func newOTelReport(workers []worker) (*otelReport, error) {
	reader := sdkmetric.NewManualReader()
	r := &otelReport{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	meter := r.provider.Meter("nextcrm-loadtest")
	for _, w := range workers {
		exp, err := otelexport.NewExporter(meter, w.client, otelexport.WithClientLabel(w.username))
		if err != nil {
			_ = r.Close(context.Background())
			return nil, fmt.Errorf("otel exporter for %s: %w", w.username, err)
		}
		r.exporters = append(r.exporters, exp)
	}
	return r, nil
}

// Print collects once and writes one line per instrument, summed across
// clients. Zero totals are skipped.
func (r *otelReport) Print(ctx context.Context, out io.Writer) error {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("otel collect: %w", err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					totals[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}

	names := make([]string, 0, len(totals))
	for name, v := range totals {
		if v != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fmt.Fprintln(out, "---- otel ----")
	for _, name := range names {
		fmt.Fprintf(out, "%s=%d\n", name, totals[name])
	}
	return nil
}

func (r *otelReport) Close(ctx context.Context) error {
	var errs []error
	for _, exp := range r.exporters {
		errs = append(errs, exp.Close())
	}
	errs = append(errs, r.provider.Shutdown(ctx))
	return errors.Join(errs...)
}
