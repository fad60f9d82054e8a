// Package enrich runs a prompt variant over every row of a table and stores
// the model's answer in a new column.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mcao2/contact-enrich/internal/llm"
	"github.com/mcao2/contact-enrich/internal/prompt"
	"github.com/mcao2/contact-enrich/internal/table"
)

// ErrorMarker prefixes the derived field of a row whose generation call failed.
const ErrorMarker = "Error: "

// ErrEmptyTable is returned when there are no data rows to enrich.
var ErrEmptyTable = errors.New("input has no data rows")

// MissingColumnsError is returned before any generation call when the table
// lacks columns the variant needs.
type MissingColumnsError struct {
	Variant string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	quoted := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf("variant %s: the uploaded file must contain column(s) %s", e.Variant, strings.Join(quoted, ", "))
}

// State is where a run is in its lifecycle.
type State int32

const (
	StateReady State = iota
	StateProcessing
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateProcessing:
		return "Processing"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Outcome is the result of one row's generation call.
type Outcome struct {
	Row  int
	Text string
	Err  error
}

// Field renders the outcome as the derived column value.
func (o Outcome) Field() string {
	if o.Err != nil {
		return ErrorMarker + o.Err.Error()
	}
	return o.Text
}

// Progress is reported after each row.
type Progress struct {
	Current int
	Total   int
	Failed  int
	Outcome Outcome
}

// Report summarizes a finished run.
type Report struct {
	RunID     string
	Table     *table.Table
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Enricher applies one variant to a table. It is single use per Run call
// and never processes rows concurrently.
type Enricher struct {
	gen        llm.Generator
	variant    prompt.Variant
	event      prompt.EventContext
	delay      time.Duration
	logger     *zap.Logger
	onProgress func(Progress)
	runID      string
	state      atomic.Int32
}

// Option configures an Enricher
type Option func(*Enricher)

// WithEventContext sets the run-level topics and flags.
func WithEventContext(ec prompt.EventContext) Option {
	return func(e *Enricher) {
		e.event = ec
	}
}

// WithDelay waits at least d between consecutive generation calls.
func WithDelay(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.delay = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after every row.
func WithProgress(fn func(Progress)) Option {
	return func(e *Enricher) {
		e.onProgress = fn
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(e *Enricher) {
		if id != "" {
			e.runID = id
		}
	}
}

// New creates an Enricher for variant v backed by gen.
func New(gen llm.Generator, v prompt.Variant, opts ...Option) *Enricher {
	e := &Enricher{
		gen:     gen,
		variant: v,
		logger:  zap.NewNop(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state. Safe to call from any goroutine.
func (e *Enricher) State() State {
	return State(e.state.Load())
}

// RunID identifies this run in logs and reports.
func (e *Enricher) RunID() string { return e.runID }

// Check validates t against the variant without making any calls.
func (e *Enricher) Check(t *table.Table) error {
	if t == nil || len(t.Header) == 0 {
		return table.ErrEmptyInput
	}
	if t.Len() == 0 {
		return ErrEmptyTable
	}
	if missing := e.variant.MissingColumns(t.Header); len(missing) > 0 {
		return &MissingColumnsError{Variant: e.variant.Name, Columns: missing}
	}
	return nil
}

// Run enriches every row of t in order and returns a new table with the
// derived column. t itself is not modified. Per-row failures end up in the
// derived field; only precondition failures are returned as errors.
func (e *Enricher) Run(ctx context.Context, t *table.Table) (*Report, error) {
	if err := e.Check(t); err != nil {
		return nil, err
	}
	if !e.state.CompareAndSwap(int32(StateReady), int32(StateProcessing)) {
		return nil, fmt.Errorf("enricher already %s", e.State())
	}
	defer e.state.Store(int32(StateComplete))

	log := e.logger.With(
		zap.String("run_id", e.runID),
		zap.String("variant", e.variant.Name),
	)
	total := t.Len()
	log.Info("enrichment started", zap.Int("rows", total))

	var pacer *rate.Limiter
	if e.delay > 0 {
		pacer = rate.NewLimiter(rate.Every(e.delay), 1)
	}

	start := time.Now()
	report := &Report{
		RunID:    e.runID,
		Outcomes: make([]Outcome, total),
	}

	for i := 0; i < total; i++ {
		out := e.enrichRow(ctx, pacer, t.Record(i))
		out.Row = i
		report.Outcomes[i] = out

		if out.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}

		log.Debug("row processed", zap.Int("row", i+1), zap.Bool("ok", out.Err == nil))

		if e.onProgress != nil {
			e.onProgress(Progress{Current: i + 1, Total: total, Failed: report.Failed, Outcome: out})
		}
	}

	fields := make([]string, total)
	for i, out := range report.Outcomes {
		fields[i] = out.Field()
	}
	report.Table = t.Clone()
	if err := report.Table.SetColumn(e.variant.OutputColumn, fields); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)

	log.Info("enrichment complete",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (e *Enricher) enrichRow(ctx context.Context, pacer *rate.Limiter, rec table.Record) Outcome {
	if pacer != nil {
		if err := pacer.Wait(ctx); err != nil {
			return Outcome{Err: err}
		}
	}

	text, err := e.generate(ctx, e.variant.Request(rec, e.event))
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Text: strings.TrimSpace(text)}
}

// generate isolates the call so a panicking client still yields a row error.
func (e *Enricher) generate(ctx context.Context, req llm.Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
	}()
	return e.gen.Generate(ctx, req)
}
