package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-cooke/infrastructure/distribution"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/ports"
)

// Calculator runs a complete decision maker calculation from settings:
// scoring, synthesis, storing the decision maker in the project and the
// default robustness analysis.
type Calculator struct {
	distributions *distribution.Registry
	logger        *slog.Logger
	metrics       ports.MetricsCollector
	progress      func(kind string, done, total int)
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithCalculatorLogger sets the logger.
func WithCalculatorLogger(l *slog.Logger) CalculatorOption {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDistributions sets the registry that resolves settings.Distribution.
func WithDistributions(r *distribution.Registry) CalculatorOption {
	return func(c *Calculator) { c.distributions = r }
}

// WithMetrics records calculation latency and decision maker scores.
func WithMetrics(m ports.MetricsCollector) CalculatorOption {
	return func(c *Calculator) { c.metrics = m }
}

// WithProgress receives robustness progress; kind is "items" or "experts".
// It may be called from two goroutines at once.
func WithProgress(f func(kind string, done, total int)) CalculatorOption {
	return func(c *Calculator) { c.progress = f }
}

// NewCalculator returns a Calculator with the piecewise linear family.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		distributions: distribution.NewRegistry(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate runs the calculation described by s on p.
//
// p itself is not modified. The returned project is a copy carrying the
// decision maker as expert s.ID, overwriting an earlier decision maker
// with that id, and the scores and weights of the actual experts.
// Robustness leaving out single items and single experts is computed when
// s.Robustness is set, the weights are performance based and there is more
// than one seed item or expert to leave out.
func (c *Calculator) Calculate(ctx context.Context, p *domain.Project, s domain.CalculationSettings) (*domain.Result, *domain.Project, error) {
	if err := validateSettings(s); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID, "dm", s.ID)

	calc, err := engine.Prepare(p, s)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range calc.Warnings {
		logger.Warn(w)
	}
	factory, err := c.distributions.Get(s.Distribution)
	if err != nil {
		return nil, nil, err
	}
	eng := engine.New(factory, engine.WithLogger(logger))

	dm, err := eng.DecisionMaker(calc.Data, calc.Params)
	if err != nil {
		return nil, nil, err
	}
	alpha := dm.Alpha
	table, err := eng.Scores(calc.Data, calc.Params.WithAlpha(&alpha))
	if err != nil {
		return nil, nil, err
	}
	weights, err := engine.ExpertWeights(calc.Data, table, s.Weight, dm.Alpha)
	if err != nil {
		return nil, nil, err
	}

	out := p.Clone()
	if err := out.ApplyScores(table, weights); err != nil {
		return nil, nil, err
	}
	if err := out.PutDecisionMaker(s.ID, s.DisplayName(), dm); err != nil {
		return nil, nil, err
	}

	result := &domain.Result{
		RunID:           runID,
		Settings:        s,
		Scores:          table,
		DecisionMaker:   dm,
		Weights:         weights,
		ExcludedExperts: calc.ExcludedExperts,
		Warnings:        append(append([]string(nil), calc.Warnings...), dm.Warnings...),
	}

	if s.Robustness && s.Weight.PerformanceBased() {
		if err := c.robustness(ctx, eng, calc, result); err != nil {
			return nil, nil, err
		}
	}

	elapsed := time.Since(start)
	if c.metrics != nil {
		labels := map[string]string{"weight": string(s.Weight)}
		c.metrics.RecordLatency("calculate", elapsed, labels)
		c.metrics.RecordHistogram("decision_maker_calibration", dm.Scores.Calibration, labels)
		c.metrics.RecordHistogram("decision_maker_information", dm.Scores.InfoReal, labels)
	}
	logger.Info("calculation complete",
		"weight", s.Weight,
		"alpha", dm.Alpha,
		"optimised", dm.Optimised,
		"comb_score", dm.Scores.CombScore,
		"duration", elapsed)
	return result, out, nil
}

// robustness leaves out single seed items and single experts, running both
// analyses concurrently on the shared dataset.
func (c *Calculator) robustness(ctx context.Context, eng *engine.Engine, calc *engine.Calculation, result *domain.Result) error {
	g, gctx := errgroup.WithContext(ctx)
	if len(calc.Data.SeedItemIDs()) > 1 {
		g.Go(func() error {
			t, err := eng.ItemRobustness(gctx, calc.Data, calc.Params, 0, 1, c.progressFor(engine.KindItems))
			if err != nil {
				return fmt.Errorf("item robustness: %w", err)
			}
			result.ItemRobustness = t
			return nil
		})
	}
	if calc.Data.NumExperts() > 1 {
		g.Go(func() error {
			t, err := eng.ExpertRobustness(gctx, calc.Data, calc.Params, 0, 1, c.progressFor(engine.KindExperts))
			if err != nil {
				return fmt.Errorf("expert robustness: %w", err)
			}
			result.ExpertRobustness = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if c.metrics != nil {
		for _, t := range []*domain.RobustnessTable{result.ItemRobustness, result.ExpertRobustness} {
			if t != nil {
				c.metrics.RecordCounter("robustness_combinations_total", float64(t.Len()), map[string]string{"kind": t.Kind})
			}
		}
	}
	return nil
}

func (c *Calculator) progressFor(kind string) ports.ProgressFunc {
	if c.progress == nil {
		return nil
	}
	return func(done, total int) { c.progress(kind, done, total) }
}
