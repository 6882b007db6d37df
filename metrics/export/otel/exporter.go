package otel

import (
	"context"
	"errors"
	"fmt"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/MrEthical07/nextcrm/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// ClientAttribute is the attribute key set by [WithClientLabel].
const ClientAttribute = "nextcrm.client"

type metricsSource interface {
	MetricsSnapshot() nextcrm.MetricsSnapshot
	EventsDropped() uint64
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClientLabel tags every observation with the nextcrm.client attribute,
// so several Clients can share one Meter.
func WithClientLabel(name string) Option {
	return func(e *Exporter) {
		if name != "" {
			e.attrs = attribute.NewSet(attribute.String(ClientAttribute, name))
		}
	}
}

type observedCounter struct {
	id         nextcrm.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      nextcrm.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type observedGauge struct {
	def        internaldefs.GaugeDef
	instrument metric.Int64ObservableGauge
}

// Exporter publishes Client metrics as OTel observable instruments. One
// callback reads a snapshot per collection cycle. Session gauges are
// registered only when the source reports them.
type Exporter struct {
	source        metricsSource
	gauges        internaldefs.GaugeSource
	attrs         attribute.Set
	registration  metric.Registration
	counters      []observedCounter
	histograms    []observedHistogram
	sessionGauges []observedGauge
	eventsDropped metric.Int64ObservableCounter
}

func NewExporter(meter metric.Meter, client *nextcrm.Client, opts ...Option) (*Exporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, client, opts...)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource, opts ...Option) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	for _, opt := range opts {
		opt(e)
	}
	if gs, ok := source.(internaldefs.GaugeSource); ok {
		e.gauges = gs
	}

	observables, err := e.register(meter)
	if err != nil {
		return nil, err
	}
	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) register(meter metric.Meter) ([]metric.Observable, error) {
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Cumulative bucket count."), metric.WithUnit("{call}"))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription(def.Help+" Sample count."), metric.WithUnit("{call}"))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		e.histograms = append(e.histograms, h)
	}

	if e.gauges != nil {
		for _, def := range internaldefs.GaugeDefs {
			ins, err := meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
			if err != nil {
				return nil, fmt.Errorf("create session gauge %s: %w", def.Name, err)
			}
			e.sessionGauges = append(e.sessionGauges, observedGauge{def: def, instrument: ins})
			observables = append(observables, ins)
		}
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.EventsDroppedName,
		metric.WithDescription("Events dropped because the dispatcher buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create events dropped counter: %w", err)
	}
	e.eventsDropped = dropped
	return append(observables, dropped), nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	opt := metric.WithAttributeSet(e.attrs)
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]), opt)
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]), opt)
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]), opt)
	}
	if len(e.sessionGauges) > 0 {
		g := e.gauges.SessionGauges()
		for _, sg := range e.sessionGauges {
			observer.ObserveInt64(sg.instrument, sg.def.Value(g), opt)
		}
	}
	observer.ObserveInt64(e.eventsDropped, int64(e.source.EventsDropped()), opt)
	return nil
}

// Close unregisters the callback. The instruments stay with the meter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
