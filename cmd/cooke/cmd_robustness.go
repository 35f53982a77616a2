package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahrav/go-cooke/infrastructure/middleware"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/logging"
)

const tracerName = "github.com/ahrav/go-cooke/cmd/cooke"

type robustnessFlags struct {
	selection
	settingsFlags
	items           bool
	experts         bool
	minExclude      int
	maxExclude      int
	maxCombinations int64
	output          string
}

func newRobustnessCmd(a *app) *cobra.Command {
	var flags robustnessFlags
	cmd := &cobra.Command{
		Use:   "robustness",
		Short: "Leave out combinations of items or experts",
		Long: "robustness recalculates the decision maker for every combination of\n" +
			"--min-exclude to --max-exclude left out seed items or experts and reports\n" +
			"its calibration and information scores.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRobustness(cmd, a, &flags)
		},
	}
	flags.selection.register(cmd)
	flags.settingsFlags.register(cmd.Flags(), false)

	f := cmd.Flags()
	f.BoolVar(&flags.items, "items", false, "Leave out seed items")
	f.BoolVar(&flags.experts, "experts", false, "Leave out experts")
	f.IntVar(&flags.minExclude, "min-exclude", 0, "Smallest number left out")
	f.IntVar(&flags.maxExclude, "max-exclude", 1, "Largest number left out")
	f.Int64Var(&flags.maxCombinations, "max-combinations", 0, "Refuse to evaluate more combinations than this (0: no limit)")
	f.StringVarP(&flags.output, "output", "o", "", "Write the result as JSON to this file")
	cmd.MarkFlagsOneRequired("items", "experts")
	cmd.MarkFlagsMutuallyExclusive("items", "experts")
	cmd.MarkFlagsMutuallyExclusive("alpha", "optimise")
	return cmd
}

func runRobustness(cmd *cobra.Command, a *app, flags *robustnessFlags) (err error) {
	if flags.minExclude < 0 || flags.maxExclude < flags.minExclude {
		return fmt.Errorf("--min-exclude %d and --max-exclude %d: %w", flags.minExclude, flags.maxExclude, domain.ErrExclusionBounds)
	}
	s, err := flags.settingsFlags.settings(cmd)
	if err != nil {
		return err
	}
	p, err := flags.selection.load()
	if err != nil {
		return err
	}

	logger := logging.New("robustness")
	calc, err := engine.Prepare(p, s)
	if err != nil {
		return err
	}
	for _, w := range calc.Warnings {
		logger.Warn(w)
	}
	factory, err := a.distributions.Get(s.Distribution)
	if err != nil {
		return err
	}
	eng := engine.New(factory, engine.WithLogger(logger))

	kind, n := engine.KindExperts, calc.Data.NumExperts()
	if flags.items {
		kind, n = engine.KindItems, len(calc.Data.SeedItemIDs())
	}
	planned := int64(engine.CountCombinations(n, flags.minExclude, flags.maxExclude))
	if flags.maxCombinations > 0 && planned > flags.maxCombinations {
		a.metrics.RecordCounter("budget_exceeded_total", 1, map[string]string{"unit": "cli"})
		return &middleware.BudgetExceededError{Unit: "robustness", Limit: flags.maxCombinations, Planned: planned}
	}

	ctx, span := otel.Tracer(tracerName).Start(cmd.Context(), "robustness."+kind)
	span.SetAttributes(
		attribute.String("robustness.kind", kind),
		attribute.Int("robustness.min_exclude", flags.minExclude),
		attribute.Int("robustness.max_exclude", flags.maxExclude),
		attribute.Int64("robustness.combinations", planned),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	progress := newProgressReporter(cmd.ErrOrStderr())
	report := func(done, total int) { progress.report(kind, done, total) }

	start := time.Now()
	var table *domain.RobustnessTable
	if flags.items {
		table, err = eng.ItemRobustness(ctx, calc.Data, calc.Params, flags.minExclude, flags.maxExclude, report)
	} else {
		table, err = eng.ExpertRobustness(ctx, calc.Data, calc.Params, flags.minExclude, flags.maxExclude, report)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("robustness cancelled: %w", err)
		}
		return fmt.Errorf("robustness: %w", err)
	}

	labels := map[string]string{"unit": "cli", "kind": kind}
	a.metrics.RecordLatency("robustness", time.Since(start), labels)
	a.metrics.RecordCounter("robustness_combinations_total", float64(table.Len()), labels)

	result := &domain.Result{Settings: s, Warnings: calc.Warnings}
	if flags.items {
		result.ItemRobustness = table
	} else {
		result.ExpertRobustness = table
	}
	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if flags.output != "" {
		return writeResult(flags.output, result)
	}
	return nil
}
