package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-cooke/internal/application"
	"github.com/ahrav/go-cooke/internal/logging"
)

type calculateFlags struct {
	selection
	settingsFlags
	output string
}

func newCalculateCmd(a *app) *cobra.Command {
	var flags calculateFlags
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate a decision maker and its robustness",
		Long: "calculate scores the experts, combines them into a decision maker with the\n" +
			"chosen weights and, for global and item weights, leaves out single items\n" +
			"and experts to show how robust the decision maker is.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalculate(cmd, a, &flags)
		},
	}
	flags.selection.register(cmd)
	flags.settingsFlags.register(cmd.Flags(), true)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the result as JSON to this file")
	cmd.MarkFlagsMutuallyExclusive("alpha", "optimise")
	return cmd
}

func runCalculate(cmd *cobra.Command, a *app, flags *calculateFlags) error {
	s, err := flags.settingsFlags.settings(cmd)
	if err != nil {
		return err
	}
	p, err := flags.selection.load()
	if err != nil {
		return err
	}

	progress := newProgressReporter(cmd.ErrOrStderr())
	calc := application.NewCalculator(
		application.WithCalculatorLogger(logging.New("calculator")),
		application.WithDistributions(a.distributions),
		application.WithMetrics(a.metrics),
		application.WithProgress(progress.report),
	)
	result, _, err := calc.Calculate(cmd.Context(), p, s)
	if err != nil {
		return fmt.Errorf("calculate: %w", err)
	}

	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if flags.output != "" {
		return writeResult(flags.output, result)
	}
	return nil
}
