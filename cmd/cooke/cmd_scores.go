package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/logging"
)

type scoresFlags struct {
	selection
	overshoot float64
	calPower  float64
}

func newScoresCmd(a *app) *cobra.Command {
	var flags scoresFlags
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show calibration and information scores of the experts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScores(cmd, a, &flags)
		},
	}
	flags.selection.register(cmd)
	d := domain.DefaultCalculationSettings()
	cmd.Flags().Float64Var(&flags.overshoot, "overshoot", d.Overshoot, "Intrinsic range overshoot")
	cmd.Flags().Float64Var(&flags.calPower, "calpower", d.CalPower, "Calibration power")
	return cmd
}

func runScores(cmd *cobra.Command, a *app, flags *scoresFlags) error {
	p, err := flags.selection.load()
	if err != nil {
		return err
	}
	s := domain.DefaultCalculationSettings()
	s.Overshoot = flags.overshoot
	s.CalPower = flags.calPower

	logger := logging.New("scores")
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
	table, err := engine.New(factory, engine.WithLogger(logger)).Scores(calc.Data, calc.Params.WithAlpha(domain.Float64(0)))
	if err != nil {
		return err
	}
	return printScores(cmd.OutOrStdout(), table, nil)
}
