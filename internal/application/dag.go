package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// ErrMergeConflict is returned when two members of a layer set the same
// state key.
var ErrMergeConflict = errors.New("layer members wrote the same state key")

// Pipeline runs executables in order. Each executable receives the state
// returned by its predecessor.
type Pipeline struct {
	id          string
	executables []ports.Executable
	idSet       map[string]struct{}
	mu          sync.RWMutex
}

// NewPipeline returns an empty pipeline.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:    id,
		idSet: make(map[string]struct{}),
	}
}

// Execute runs the executables in sequence. It stops at the first error
// or when ctx is cancelled between executables.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	executables := slices.Clone(p.executables)
	p.mu.RUnlock()

	current := state
	for _, exec := range executables {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		next, err := exec.Execute(ctx, current)
		if err != nil {
			return current, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
		}
		current = next
	}
	return current, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends an executable. IDs must be unique within the pipeline.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := exec.ID()
	if _, exists := p.idSet[id]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", id)
	}
	p.executables = append(p.executables, exec)
	p.idSet[id] = struct{}{}
	return nil
}

// Executables returns a copy of the sequence.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.executables)
}

// Layer runs independent executables concurrently on the same input state
// and merges their outputs in the order the executables were added.
type Layer struct {
	id               string
	executables      []ports.Executable
	idSet            map[string]struct{}
	mergeStrategy    ports.MergeStrategy
	concurrencyLimit int
	mu               sync.RWMutex
}

// NewLayer returns an empty layer that runs up to runtime.NumCPU()
// executables at once.
func NewLayer(id string) *Layer {
	return &Layer{
		id:               id,
		idSet:            make(map[string]struct{}),
		concurrencyLimit: runtime.NumCPU(),
	}
}

// Execute runs every executable on state. The first failure cancels the
// others; the layer then returns its input state and the joined errors.
func (l *Layer) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	l.mu.RLock()
	executables := slices.Clone(l.executables)
	limit := l.concurrencyLimit
	strategy := l.mergeStrategy
	l.mu.RUnlock()

	if len(executables) == 0 {
		return state, nil
	}
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	if strategy == nil {
		strategy = KeyUnionMerge{}
	}

	states := make([]domain.State, len(executables))
	errs := make([]error, len(executables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, exec := range executables {
		g.Go(func() error {
			next, err := exec.Execute(gctx, state)
			if err != nil {
				errs[i] = fmt.Errorf("executable %s: %w", exec.ID(), err)
				return errs[i]
			}
			states[i] = next
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		joined := errors.Join(errs...)
		return state, fmt.Errorf("layer %s failed: %w", l.id, joined)
	}

	merged, err := strategy.Merge(state, states)
	if err != nil {
		return state, fmt.Errorf("layer %s: merge failed: %w", l.id, err)
	}
	return merged, nil
}

// ID returns the layer identifier.
func (l *Layer) ID() string { return l.id }

// Add includes an executable. IDs must be unique within the layer.
func (l *Layer) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to layer")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := exec.ID()
	if _, exists := l.idSet[id]; exists {
		return fmt.Errorf("executable with ID %s already exists in layer", id)
	}
	l.executables = append(l.executables, exec)
	l.idSet[id] = struct{}{}
	return nil
}

// Executables returns a copy of the layer members in the order added.
func (l *Layer) Executables() []ports.Executable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.executables)
}

// SetMergeStrategy replaces KeyUnionMerge.
func (l *Layer) SetMergeStrategy(strategy ports.MergeStrategy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mergeStrategy = strategy
}

// SetConcurrencyLimit bounds the executables running at once. Values below
// one restore the default.
func (l *Layer) SetConcurrencyLimit(limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.concurrencyLimit = limit
}

// KeyUnionMerge combines layer outputs key by key. A key set by one member
// is taken as is; warnings are concatenated and combination counters
// summed. Two members setting any other key is ErrMergeConflict.
type KeyUnionMerge struct{}

// Merge implements ports.MergeStrategy.
func (KeyUnionMerge) Merge(base domain.State, states []domain.State) (domain.State, error) {
	baseWarnings, _ := domain.Get(base, domain.KeyWarnings)
	baseCombos, _ := domain.Get(base, domain.KeyCombinations)

	updates := make(map[string]any)
	owner := make(map[string]int)
	var (
		warnings []string
		combos   int64
	)
	for i, s := range states {
		for _, key := range s.ChangedKeys(base) {
			switch key {
			case domain.KeyWarnings.Name():
				w, _ := domain.Get(s, domain.KeyWarnings)
				if len(w) >= len(baseWarnings) {
					warnings = append(warnings, w[len(baseWarnings):]...)
				}
			case domain.KeyCombinations.Name():
				n, _ := domain.Get(s, domain.KeyCombinations)
				combos += n - baseCombos
			default:
				if j, taken := owner[key]; taken {
					return base, fmt.Errorf("%w: %q set by members %d and %d", ErrMergeConflict, key, j, i)
				}
				v, _ := s.GetRaw(key)
				owner[key] = i
				updates[key] = v
			}
		}
	}

	merged := base.WithMultiple(updates)
	if combos != 0 {
		merged = merged.AddCombinations(combos)
	}
	return merged.AppendWarnings(warnings...), nil
}

// Graph is a directed acyclic graph of executables. An edge from a source
// to a target makes the target run after the source.
type Graph struct {
	nodes    map[string]ports.Executable
	order    []string
	edges    map[string][]string
	edgeSet  map[string]struct{}
	inDegree map[string]int
	mu       sync.RWMutex
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]ports.Executable),
		edges:    make(map[string][]string),
		edgeSet:  make(map[string]struct{}),
		inDegree: make(map[string]int),
	}
}

// AddNode registers exec under its ID.
func (g *Graph) AddNode(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to graph")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := exec.ID()
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("node with ID %s already exists in graph", id)
	}
	g.nodes[id] = exec
	g.order = append(g.order, id)
	g.edges[id] = nil
	g.inDegree[id] = 0
	return nil
}

// AddEdge makes targetID run after sourceID. An edge that would close a
// cycle is rolled back and reported.
func (g *Graph) AddEdge(sourceID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[sourceID]; !exists {
		return fmt.Errorf("source node %s does not exist", sourceID)
	}
	if _, exists := g.nodes[targetID]; !exists {
		return fmt.Errorf("target node %s does not exist", targetID)
	}

	edgeKey := sourceID + "->" + targetID
	if _, exists := g.edgeSet[edgeKey]; exists {
		return fmt.Errorf("edge from %s to %s already exists", sourceID, targetID)
	}

	g.edges[sourceID] = append(g.edges[sourceID], targetID)
	g.edgeSet[edgeKey] = struct{}{}
	g.inDegree[targetID]++

	if g.hasCycleUnsafe() {
		g.edges[sourceID] = g.edges[sourceID][:len(g.edges[sourceID])-1]
		delete(g.edgeSet, edgeKey)
		g.inDegree[targetID]--
		return fmt.Errorf("adding edge from %s to %s would create a cycle", sourceID, targetID)
	}
	return nil
}

// TopologicalSort returns the nodes so that every source precedes its
// targets. Among nodes that are ready at the same time, the one added
// first comes first, so the order is stable across runs.
func (g *Graph) TopologicalSort() ([]ports.Executable, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	position := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
	}
	inDegree := make(map[string]int, len(g.inDegree))
	var ready []string
	for _, id := range g.order {
		inDegree[id] = g.inDegree[id]
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]ports.Executable, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		result = append(result, g.nodes[id])

		for _, next := range g.edges[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		slices.SortStableFunc(ready, func(a, b string) int { return position[a] - position[b] })
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("graph contains a cycle")
	}
	return result, nil
}

// HasCycle reports whether the graph contains a cycle.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleUnsafe()
}

// hasCycleUnsafe runs a three-colour depth-first search. The caller holds mu.
func (g *Graph) hasCycleUnsafe() bool {
	const (
		white = iota
		grey
		black
	)
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = grey
		for _, next := range g.edges[id] {
			if colors[next] == grey {
				return true
			}
			if colors[next] == white && visit(next) {
				return true
			}
		}
		colors[id] = black
		return false
	}

	for _, id := range g.order {
		if colors[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// GetNode returns the executable registered under id.
func (g *Graph) GetNode(id string) (ports.Executable, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	exec, exists := g.nodes[id]
	return exec, exists
}

// Execute runs the nodes one after another in topological order, threading
// the state through them.
func (g *Graph) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return state, err
	}
	current := state
	for _, node := range order {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		next, err := node.Execute(ctx, current)
		if err != nil {
			return state, fmt.Errorf("node %s: %w", node.ID(), err)
		}
		current = next
	}
	return current, nil
}
