// Package sink writes accepted leads to their destinations.
package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrAllSinksFailed is returned by Multi when no sink accepted the batch.
var ErrAllSinksFailed = eris.New("sink: all sinks failed")

// Sink receives batches of leads.
type Sink interface {
	Name() string
	Write(ctx context.Context, leads []model.Lead) error
}

// Outcome is the result of one sink for one batch.
type Outcome struct {
	Sink     string        `json:"sink"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// MultiResult reports every sink's outcome for the last batch.
type MultiResult struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Succeeded returns the names of sinks that accepted the batch.
func (r MultiResult) Succeeded() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o.Sink)
		}
	}
	return out
}

// Failed returns the outcomes that carry an error.
func (r MultiResult) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Multi fans one batch out to several sinks concurrently. One sink failing
// does not stop the others.
type Multi struct {
	sinks []Sink

	mu   sync.Mutex
	last MultiResult
}

// NewMulti combines sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Sinks returns the wrapped sinks.
func (m *Multi) Sinks() []Sink { return m.sinks }

// Write implements Sink. It fails only when every sink failed.
func (m *Multi) Write(ctx context.Context, leads []model.Lead) error {
	res, err := m.WriteAll(ctx, leads)
	m.mu.Lock()
	m.last = res
	m.mu.Unlock()
	return err
}

// Last returns the outcome of the most recent Write.
func (m *Multi) Last() MultiResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// WriteAll writes leads to every sink and reports each outcome.
func (m *Multi) WriteAll(ctx context.Context, leads []model.Lead) (MultiResult, error) {
	res := MultiResult{Outcomes: make([]Outcome, len(m.sinks))}
	if len(m.sinks) == 0 {
		return res, eris.Wrap(ErrAllSinksFailed, "sink: no sinks configured")
	}

	var g errgroup.Group
	for i, s := range m.sinks {
		g.Go(func() error {
			start := time.Now()
			err := s.Write(ctx, leads)
			o := Outcome{Sink: s.Name(), Err: err, Duration: time.Since(start)}
			if err != nil {
				o.Error = err.Error()
				zap.L().Warn("sink: write failed",
					zap.String("sink", s.Name()),
					zap.Int("leads", len(leads)),
					zap.Error(err),
				)
			} else {
				zap.L().Info("sink: write complete",
					zap.String("sink", s.Name()),
					zap.Int("leads", len(leads)),
					zap.Duration("duration", o.Duration),
				)
			}
			res.Outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()

	failed := res.Failed()
	if len(failed) < len(res.Outcomes) {
		return res, nil
	}
	errs := make([]error, len(failed))
	for i, o := range failed {
		errs[i] = eris.Wrap(o.Err, o.Sink)
	}
	return res, eris.Wrap(errors.Join(append([]error{ErrAllSinksFailed}, errs...)...), "sink: write")
}
