package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-cooke/infrastructure/middleware"
	"github.com/ahrav/go-cooke/infrastructure/units"
	"github.com/ahrav/go-cooke/internal/application"
	"github.com/ahrav/go-cooke/internal/logging"
)

type runFlags struct {
	selection
	plan   string
	output string
}

func newRunCmd(a *app) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a YAML calculation plan",
		Long: "run executes the units of a plan (score, decision_maker, item_robustness,\n" +
			"expert_robustness) in the order of its graph. Units with a budget stop\n" +
			"before evaluating more robustness combinations than allowed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, a, &flags)
		},
	}
	flags.selection.register(cmd)
	f := cmd.Flags()
	f.StringVar(&flags.plan, "plan", "", "Plan file (required)")
	f.StringVarP(&flags.output, "output", "o", "", "Write the result as JSON to this file")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func runPlan(cmd *cobra.Command, a *app, flags *runFlags) error {
	p, err := flags.selection.load()
	if err != nil {
		return err
	}

	progress := newProgressReporter(cmd.ErrOrStderr())
	registry := application.NewDefaultUnitRegistry(units.Deps{
		Distributions: a.distributions,
		Logger:        logging.New("units"),
		Progress:      progress.report,
	})
	a.logger.Debug("unit registry ready", "types", registry.GetSupportedTypes())
	loader, err := application.NewPlanLoader(registry, application.WithUnitWrapper(middleware.NewUnitWrapper(a.metrics)))
	if err != nil {
		return err
	}
	plan, err := loader.LoadFromFile(cmd.Context(), flags.plan)
	if err != nil {
		return err
	}
	if nodes, err := plan.Nodes(); err == nil {
		a.logger.Debug("plan loaded", "plan", plan.Name, "id", plan.ID, "nodes", nodes)
	}

	state, err := plan.Run(cmd.Context(), p, nil)
	if err != nil {
		return err
	}
	result := application.ResultFromState(state)
	if result.DecisionMaker == nil && result.Scores == nil {
		return fmt.Errorf("plan %s produced no scores", plan.Name)
	}

	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if flags.output != "" {
		return writeResult(flags.output, result)
	}
	return nil
}
