package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Plan is a compiled calculation plan. It is immutable and may be run
// concurrently.
type Plan struct {
	// ID is derived from the plan configuration.
	ID       string
	Name     string
	graph    *Graph
	settings *domain.CalculationSettings
}

// Settings returns the settings declared by the plan, or the defaults.
func (p *Plan) Settings() domain.CalculationSettings {
	if p.settings == nil {
		return domain.DefaultCalculationSettings()
	}
	s := *p.settings
	if p.settings.Alpha != nil {
		a := *p.settings.Alpha
		s.Alpha = &a
	}
	return s
}

// Nodes returns the IDs of the top level nodes in execution order.
func (p *Plan) Nodes() ([]string, error) {
	order, err := p.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(order))
	for i, n := range order {
		ids[i] = n.ID()
	}
	return ids, nil
}

// Run executes the plan on a copy of project with settings s, or the plan
// settings when s is nil. The returned state holds everything the units
// produced.
func (p *Plan) Run(ctx context.Context, project *domain.Project, s *domain.CalculationSettings) (domain.State, error) {
	settings := p.Settings()
	if s != nil {
		settings = *s
	}
	state := domain.With(domain.NewState(), domain.KeyProject, project)
	state = domain.With(state, domain.KeySettings, settings)
	state = state.WithExecutionContext(domain.ExecutionContext{
		PlanID: p.ID,
		RunID:  uuid.NewString(),
	})

	out, err := p.graph.Execute(ctx, state)
	if err != nil {
		return domain.State{}, fmt.Errorf("plan %s: %w", p.Name, err)
	}
	return out, nil
}

// ResultFromState collects the calculation outputs of a plan run.
func ResultFromState(state domain.State) *domain.Result {
	r := &domain.Result{}
	if ec, ok := state.GetExecutionContext(); ok {
		r.RunID = ec.RunID
	}
	r.Settings = optional(state, domain.KeySettings)
	r.Scores = optional(state, domain.KeyScores)
	r.DecisionMaker = optional(state, domain.KeyDecisionMaker)
	r.ItemRobustness = optional(state, domain.KeyItemRobustness)
	r.ExpertRobustness = optional(state, domain.KeyExpertRobustness)
	r.Warnings = optional(state, domain.KeyWarnings)
	return r
}

// optional reads an output that only some plans produce. A plan without the
// producing unit leaves the key unset and the result field at its zero value.
func optional[T any](state domain.State, key domain.Key[T]) T {
	v, _ := domain.Get(state, key)
	return v
}
