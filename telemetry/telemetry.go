package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the pipeline.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with the decode and build paths.
type Collector interface {
	IncParsetDecoded(topic string)
	IncSkippedLines(file string, count int)
	IncBuildWarning(code string)
	SetDocumentPointings(file string, count int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncParsetDecoded(string)          {}
func (noopCollector) IncSkippedLines(string, int)      {}
func (noopCollector) IncBuildWarning(string)           {}
func (noopCollector) SetDocumentPointings(string, int) {}

// PrometheusCollector exposes telemetry counters via Prometheus.
type PrometheusCollector struct {
	decoded   *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	warnings  *prometheus.CounterVec
	pointings *prometheus.GaugeVec
}

var (
	decodedCounter     *prometheus.CounterVec
	decodedCounterLock sync.Mutex
	skippedCounter     *prometheus.CounterVec
	skippedCounterLock sync.Mutex
	warningCounter     *prometheus.CounterVec
	warningCounterLock sync.Mutex
	pointingsGauge     *prometheus.GaugeVec
	pointingsGaugeLock sync.Mutex
)

func registerCounterVec(reg prometheus.Registerer, lock *sync.Mutex, cached **prometheus.CounterVec, opts prometheus.CounterOpts, labels []string) error {
	lock.Lock()
	defer lock.Unlock()
	if *cached != nil {
		return nil
	}
	counter := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(counter); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return err
		}
		*cached = existing
		return nil
	}
	*cached = counter
	return nil
}

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	if err := registerCounterVec(reg, &decodedCounterLock, &decodedCounter, prometheus.CounterOpts{
		Name: "nfparset_parsets_decoded_total",
		Help: "Number of parset files decoded per scientific program.",
	}, []string{"topic"}); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &skippedCounterLock, &skippedCounter, prometheus.CounterOpts{
		Name: "nfparset_skipped_lines_total",
		Help: "Number of blank or malformed lines skipped per parset file.",
	}, []string{"file"}); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &warningCounterLock, &warningCounter, prometheus.CounterOpts{
		Name: "nfparset_build_warnings_total",
		Help: "Number of non-fatal anomalies encountered while building documents.",
	}, []string{"code"}); err != nil {
		return nil, err
	}

	pointingsGaugeLock.Lock()
	if pointingsGauge == nil {
		gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nfparset_document_pointings",
			Help: "Number of pointings in the last document built per parset file.",
		}, []string{"file"})
		if err := reg.Register(gauge); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(*prometheus.GaugeVec); ok {
					pointingsGauge = existing
				} else {
					pointingsGaugeLock.Unlock()
					return nil, err
				}
			} else {
				pointingsGaugeLock.Unlock()
				return nil, err
			}
		} else {
			pointingsGauge = gauge
		}
	}
	pointingsGaugeLock.Unlock()

	return &PrometheusCollector{
		decoded:   decodedCounter,
		skipped:   skippedCounter,
		warnings:  warningCounter,
		pointings: pointingsGauge,
	}, nil
}

// IncParsetDecoded increments the decode counter for a scientific program.
func (p *PrometheusCollector) IncParsetDecoded(topic string) {
	if p == nil || p.decoded == nil {
		return
	}
	p.decoded.WithLabelValues(topic).Inc()
}

// IncSkippedLines records skipped input lines for a parset file.
func (p *PrometheusCollector) IncSkippedLines(file string, count int) {
	if p == nil || p.skipped == nil || count == 0 {
		return
	}
	p.skipped.WithLabelValues(file).Add(float64(count))
}

// IncBuildWarning increments the warning counter for an anomaly code.
func (p *PrometheusCollector) IncBuildWarning(code string) {
	if p == nil || p.warnings == nil {
		return
	}
	p.warnings.WithLabelValues(code).Inc()
}

// SetDocumentPointings updates the gauge tracking pointings per document.
func (p *PrometheusCollector) SetDocumentPointings(file string, count int) {
	if p == nil || p.pointings == nil {
		return
	}
	p.pointings.WithLabelValues(file).Set(float64(count))
}
