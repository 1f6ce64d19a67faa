// Package stream sequences the question-to-chart stages of one request and
// narrates each of them as an ordered event stream.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"golang.org/x/sync/errgroup"
)

// DefaultPace is the pause before the completion message.
const DefaultPace = time.Second

// Sink receives events in generation order.
type Sink interface {
	Emit(ctx context.Context, ev core.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev core.Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev core.Event) error {
	return f(ctx, ev)
}

// Classifier decides the chart intent of a question.
type Classifier interface {
	Classify(ctx context.Context, message string) core.ChartIntent
}

// Schemas loads the schemas of the configured datasets.
type Schemas interface {
	GetAll(ctx context.Context, ids []core.DatasetID) ([]core.DatasetSchema, error)
}

// Planner turns a question into a query plan.
type Planner interface {
	Plan(ctx context.Context, question string, schemas []core.DatasetSchema) (core.QueryPlan, error)
	Repair(ctx context.Context, question string, schemas []core.DatasetSchema, failedSQL string, execErr error) (core.QueryPlan, error)
}

// Executor runs planned SQL.
type Executor interface {
	Execute(ctx context.Context, sql string, dataset core.DatasetID) (core.RowSet, error)
}

// ChartBuilder produces the chart for a result set.
type ChartBuilder interface {
	Build(ctx context.Context, rows core.RowSet, intent core.ChartIntent, question string) (core.ChartArtifact, bool)
}

// Deps are the stage implementations.
type Deps struct {
	Classifier Classifier
	Schemas    Schemas
	Planner    Planner
	Executor   Executor
	Charts     ChartBuilder
}

// Config controls pipeline behaviour.
type Config struct {
	Datasets       []core.DatasetID
	Pace           time.Duration
	ParallelIntent bool
	RepairAttempts int
}

// Pipeline runs requests. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	pick   func(n int) int
}

// New creates a Pipeline.
func New(cfg Config, deps Deps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Pace < 0 {
		cfg.Pace = 0
	}
	return &Pipeline{cfg: cfg, deps: deps, logger: logger, pick: rand.IntN}
}

// errSink marks failures delivering events; nothing more can be sent.
type errSink struct{ err error }

func (e *errSink) Error() string { return "emit event: " + e.err.Error() }
func (e *errSink) Unwrap() error { return e.err }

// Run processes one question. Every stream ends with either the completion
// message or exactly one error event. The returned error is the failure that
// ended the stream, if any.
func (p *Pipeline) Run(ctx context.Context, question string, sink Sink) (err error) {
	logger := LoggerFrom(ctx, p.logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", slog.Any("panic", r))
			err = fmt.Errorf("internal error: %v", r)
			if emitErr := sink.Emit(ctx, core.ErrorEvent(ErrorMessage(err))); emitErr != nil {
				err = &errSink{err: emitErr}
			}
		}
	}()

	err = p.run(ctx, logger, question, sink)
	if err == nil {
		logger.Info("request complete", slog.Duration("elapsed", time.Since(start)))
		return nil
	}

	var se *errSink
	if errors.As(err, &se) {
		logger.Warn("stream closed early", slog.String("error", err.Error()))
		return err
	}
	logger.Error("request failed", slog.String("error", err.Error()))
	if emitErr := sink.Emit(ctx, core.ErrorEvent(ErrorMessage(err))); emitErr != nil {
		return &errSink{err: emitErr}
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, question string, sink Sink) error {
	emit := func(ev core.Event) error {
		if err := sink.Emit(ctx, ev); err != nil {
			return &errSink{err: err}
		}
		return nil
	}
	say := func(msg string) error { return emit(core.MessageEvent(msg)) }

	if err := say(WorkingMessages[p.pick(len(WorkingMessages))]); err != nil {
		return err
	}
	if err := say(MsgCheckingVisualization); err != nil {
		return err
	}

	var (
		intent  core.ChartIntent
		schemas []core.DatasetSchema
		plan    core.QueryPlan
	)
	if p.cfg.ParallelIntent {
		g, gctx := errgroup.WithContext(ctx)
		intentCh := make(chan core.ChartIntent, 1)
		g.Go(func() error {
			intentCh <- p.classify(gctx, logger, question)
			return nil
		})
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("planning panicked", slog.Any("panic", r))
					err = fmt.Errorf("internal error: %v", r)
				}
			}()
			schemas, plan, err = p.plan(gctx, question)
			return err
		})

		// classify recovers, so a value always arrives.
		intent = <-intentCh
		if err := say(IntentMessage(intent)); err != nil {
			_ = g.Wait()
			return err
		}
		if err := say(MsgAnalyzingSchemas); err != nil {
			_ = g.Wait()
			return err
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		intent = p.classify(ctx, logger, question)
		if err := say(IntentMessage(intent)); err != nil {
			return err
		}
		if err := say(MsgAnalyzingSchemas); err != nil {
			return err
		}
		var err error
		schemas, plan, err = p.plan(ctx, question)
		if err != nil {
			return err
		}
	}
	logger.Debug("plan ready",
		slog.Bool("answerable", plan.Answerable),
		slog.String("dataset", plan.Dataset.String()),
		slog.String("library", intent.Library))

	if err := say(plan.Rationale); err != nil {
		return err
	}

	var rows core.RowSet
	if plan.Executable() {
		var err error
		rows, err = p.execute(ctx, question, schemas, plan, say)
		if err != nil {
			return err
		}
	}

	if err := say(MsgBuildingChart); err != nil {
		return err
	}
	if artifact, ok := p.deps.Charts.Build(ctx, rows, intent, question); ok {
		if artifact.Kind == core.ArtifactError {
			return errors.New(artifact.Message)
		}
		if err := emit(core.ChartEvent(artifact)); err != nil {
			return err
		}
	}

	if err := p.pause(ctx); err != nil {
		return err
	}
	return say(MsgComplete)
}

// classify never fails: a panicking classifier yields the neutral intent.
func (p *Pipeline) classify(ctx context.Context, logger *slog.Logger, question string) (intent core.ChartIntent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("intent classification panicked", slog.Any("panic", r))
			intent = core.NoChart()
		}
	}()
	return p.deps.Classifier.Classify(ctx, question)
}

func (p *Pipeline) plan(ctx context.Context, question string) ([]core.DatasetSchema, core.QueryPlan, error) {
	schemas, err := p.deps.Schemas.GetAll(ctx, p.cfg.Datasets)
	if err != nil {
		return nil, core.QueryPlan{}, err
	}
	plan, err := p.deps.Planner.Plan(ctx, question, schemas)
	if err != nil {
		return nil, core.QueryPlan{}, err
	}
	return schemas, plan, nil
}

// execute runs the plan, asking the planner for corrected SQL up to
// RepairAttempts times when execution fails.
func (p *Pipeline) execute(ctx context.Context, question string, schemas []core.DatasetSchema, plan core.QueryPlan, say func(string) error) (core.RowSet, error) {
	for attempt := 0; ; attempt++ {
		if err := say(MsgRunningQuery); err != nil {
			return core.RowSet{}, err
		}
		rows, err := p.deps.Executor.Execute(ctx, plan.SQL, plan.Dataset)
		if err == nil {
			return rows, nil
		}
		if attempt >= p.cfg.RepairAttempts || ctx.Err() != nil {
			return core.RowSet{}, err
		}

		LoggerFrom(ctx, p.logger).Warn("query failed, requesting repair",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
		if sayErr := say(MsgRepairingQuery); sayErr != nil {
			return core.RowSet{}, sayErr
		}
		repaired, repairErr := p.deps.Planner.Repair(ctx, question, schemas, plan.SQL, err)
		if repairErr != nil {
			return core.RowSet{}, repairErr
		}
		if !repaired.Executable() {
			return core.RowSet{}, err
		}
		plan = repaired
	}
}

func (p *Pipeline) pause(ctx context.Context) error {
	if p.cfg.Pace <= 0 {
		return nil
	}
	t := time.NewTimer(p.cfg.Pace)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type loggerKey struct{}

// WithLogger returns a context carrying a request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the request-scoped logger or fallback.
func LoggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}
