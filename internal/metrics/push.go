package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushRecorder collects metrics in a private registry and pushes them to a
// Prometheus Pushgateway on Flush.
type PushRecorder struct {
	gatewayURL string
	jobName    string
	grouping   map[string]string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // lakestage_step_total
	stepDuration *prometheus.SummaryVec // lakestage_step_duration_seconds
	rowCounter   *prometheus.CounterVec // lakestage_rows_total
}

// NewPushRecorder creates a recorder pushing to gatewayURL under jobName.
// grouping adds Pushgateway grouping labels, typically database and table.
func NewPushRecorder(gatewayURL, jobName string, grouping map[string]string) (*PushRecorder, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("metrics: gateway URL is required")
	}
	if jobName == "" {
		jobName = "lakestage"
	}

	reg := prometheus.NewRegistry()
	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakestage_step_total",
			Help: "Pipeline step executions by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "lakestage_step_duration_seconds",
			Help:       "Pipeline step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakestage_rows_total",
			Help: "Rows observed at each pipeline stage.",
		},
		[]string{"stage"},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter": stepCounter,
		"step summary": stepDuration,
		"row counter":  rowCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}

	return &PushRecorder{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		grouping:     grouping,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		rowCounter:   rowCounter,
	}, nil
}

// Step implements Recorder.
func (p *PushRecorder) Step(step string, err error, d time.Duration) {
	s := status(err)
	p.stepCounter.WithLabelValues(step, s).Inc()
	p.stepDuration.WithLabelValues(step, s).Observe(d.Seconds())
}

// Rows implements Recorder.
func (p *PushRecorder) Rows(stage string, n int) {
	p.rowCounter.WithLabelValues(stage).Add(float64(n))
}

// Flush pushes the registry, replacing earlier pushes for the same grouping.
func (p *PushRecorder) Flush(ctx context.Context) error {
	pusher := push.New(p.gatewayURL, p.jobName).Gatherer(p.reg)
	for k, v := range p.grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", p.gatewayURL, err)
	}
	return nil
}
