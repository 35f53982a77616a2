package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-cooke/infrastructure/projectio"
	"github.com/ahrav/go-cooke/internal/application"
	"github.com/ahrav/go-cooke/internal/domain"
)

// progressInterval throttles robustness progress lines.
const progressInterval = 500 * time.Millisecond

// settingsFlags are the calculation settings accepted on the command line.
// Unset flags keep the values of domain.DefaultCalculationSettings.
type settingsFlags struct {
	id         string
	name       string
	weight     string
	alpha      float64
	optimise   bool
	overshoot  float64
	calPower   float64
	robustness bool
}

func (sf *settingsFlags) register(f *pflag.FlagSet, withRobustness bool) {
	d := domain.DefaultCalculationSettings()
	f.StringVar(&sf.id, "dm-id", d.ID, "ID of the decision maker")
	f.StringVar(&sf.name, "dm-name", d.Name, "Name of the decision maker")
	f.StringVar(&sf.weight, "weight", string(d.Weight), "Weight type: global, item, equal or user")
	f.Float64Var(&sf.alpha, "alpha", 0, "Fixed significance level; disables optimisation")
	f.BoolVar(&sf.optimise, "optimise", d.Optimisation, "Search the significance level with the best combined score")
	f.Float64Var(&sf.overshoot, "overshoot", d.Overshoot, "Intrinsic range overshoot")
	f.Float64Var(&sf.calPower, "calpower", d.CalPower, "Calibration power")
	if withRobustness {
		f.BoolVar(&sf.robustness, "robustness", d.Robustness, "Leave out single items and experts after the calculation")
	}
}

func (sf *settingsFlags) settings(cmd *cobra.Command) (domain.CalculationSettings, error) {
	s := domain.DefaultCalculationSettings()
	w, err := domain.ParseWeightType(sf.weight)
	if err != nil {
		return s, err
	}
	s.ID = sf.id
	s.Name = sf.name
	s.Weight = w
	s.Overshoot = sf.overshoot
	s.CalPower = sf.calPower
	s.Robustness = sf.robustness
	s.Optimisation = sf.optimise
	if cmd.Flags().Changed("alpha") {
		s.Alpha = domain.Float64(sf.alpha)
		s.Optimisation = false
	}
	return s, nil
}

// selection is the project file and the experts and items left out of a
// calculation.
type selection struct {
	project        string
	excludeExperts []string
	excludeItems   []string
}

func (sel *selection) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&sel.project, "project", "p", "", "Project file, .json or .dtt (required)")
	f.StringSliceVar(&sel.excludeExperts, "exclude-expert", nil, "Leave out an expert (repeatable)")
	f.StringSliceVar(&sel.excludeItems, "exclude-item", nil, "Leave out an item (repeatable)")
	_ = cmd.MarkFlagRequired("project")
}

// load reads the project and marks the excluded experts and items. Ids
// are matched case-insensitively; unknown ids fail with suggestions.
func (sel *selection) load() (*domain.Project, error) {
	p, err := projectio.LoadFile(sel.project)
	if err != nil {
		return nil, err
	}
	experts, err := application.ResolveIDs("expert", sel.excludeExperts, p.ExpertIDs(domain.RoleActual))
	if err != nil {
		return nil, err
	}
	for _, id := range experts {
		if err := p.SetExpertExcluded(id, true); err != nil {
			return nil, err
		}
	}
	items, err := application.ResolveIDs("item", sel.excludeItems, p.ItemIDs())
	if err != nil {
		return nil, err
	}
	for _, id := range items {
		if err := p.SetItemExcluded(id, true); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// progressReporter prints robustness progress per kind, at most once per
// progressInterval plus the final line. It is safe for concurrent use.
type progressReporter struct {
	w io.Writer

	mu    sync.Mutex
	gates map[string]*rate.Sometimes
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w, gates: map[string]*rate.Sometimes{}}
}

func (r *progressReporter) report(kind string, done, total int) {
	r.mu.Lock()
	gate, ok := r.gates[kind]
	if !ok {
		gate = &rate.Sometimes{First: 1, Interval: progressInterval}
		r.gates[kind] = gate
	}
	r.mu.Unlock()

	line := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		fmt.Fprintf(r.w, "robustness %s: %d/%d\n", kind, done, total)
	}
	if done == total {
		line()
		return
	}
	gate.Do(line)
}
