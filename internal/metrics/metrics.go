// Package metrics records per-run step outcomes, durations and row counts.
package metrics

import (
	"context"
	"time"
)

// Step status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder receives run metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// Step records one pipeline step with its duration; err decides the status label.
	Step(step string, err error, d time.Duration)
	// Rows records a row count observed at stage.
	Rows(stage string, n int)
	// Flush delivers collected metrics.
	Flush(ctx context.Context) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Step(string, error, time.Duration) {}
func (NopRecorder) Rows(string, int)                  {}
func (NopRecorder) Flush(context.Context) error       { return nil }

// Time runs fn as a step and records it.
func Time(r Recorder, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.Step(step, err, time.Since(start))
	return err
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
