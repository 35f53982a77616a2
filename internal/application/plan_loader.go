package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-cooke/internal/ports"
)

// UnitWrapper decorates a unit built from cfg, for instance with metrics
// or a combination budget.
type UnitWrapper func(unit ports.Unit, cfg UnitConfig) (ports.Unit, error)

// LoaderOption configures a PlanLoader.
type LoaderOption func(*PlanLoader)

// WithUnitWrapper adds a decorator applied to every unit of loaded plans.
// Wrappers apply in the order given, so the last one is outermost.
func WithUnitWrapper(w UnitWrapper) LoaderOption {
	return func(pl *PlanLoader) { pl.wrappers = append(pl.wrappers, w) }
}

// PlanLoader parses, validates and compiles YAML calculation plans.
// Compiled plans are cached by the SHA256 of their normalised
// configuration and must not be mutated.
type PlanLoader struct {
	validator    *validator.Validate
	unitRegistry ports.UnitRegistry
	wrappers     []UnitWrapper
	cache        map[string]*Plan
	cacheMu      sync.RWMutex
	sf           singleflight.Group
}

// NewPlanLoader returns a loader that creates units through unitRegistry.
func NewPlanLoader(unitRegistry ports.UnitRegistry, opts ...LoaderOption) (*PlanLoader, error) {
	v := validator.New()
	if err := RegisterPlanValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	pl := &PlanLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		cache:        make(map[string]*Plan),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl, nil
}

// load compiles data once per distinct configuration, even when several
// goroutines ask for it at the same time.
func (pl *PlanLoader) load(ctx context.Context, data []byte) (*Plan, error) {
	config, err := pl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	hash, err := pl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		if plan, ok := pl.getCachedPlan(hash); ok {
			return plan, nil
		}
		if err := pl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		plan, err := pl.buildPlan(ctx, config, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to build plan: %w", err)
		}
		pl.cachePlan(hash, plan)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Plan), nil
}

// LoadFromFile loads and compiles the plan at path.
func (pl *PlanLoader) LoadFromFile(ctx context.Context, path string) (*Plan, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return pl.load(ctx, data)
}

// LoadFromReader loads and compiles a plan read from r.
func (pl *PlanLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return pl.load(ctx, data)
}

// parseYAML decodes a plan, rejecting unknown fields.
func (pl *PlanLoader) parseYAML(data []byte) (*PlanConfig, error) {
	var config PlanConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

func (pl *PlanLoader) validateConfig(config *PlanConfig) error {
	if err := pl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := pl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics checks what struct tags cannot: ids unique across
// units, pipelines and layers, every reference resolvable, each unit
// placed at most once and unit parameters sane.
func (pl *PlanLoader) validateSemantics(config *PlanConfig) error {
	allNodeIDs := make(map[string]string)
	unitIDs := make(map[string]struct{})

	for _, unit := range config.Units {
		if nodeType, exists := allNodeIDs[unit.ID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", unit.ID, nodeType)
		}
		allNodeIDs[unit.ID] = "unit"
		unitIDs[unit.ID] = struct{}{}

		if err := ValidateUnitParameters(unit.Type, unit.Parameters); err != nil {
			return fmt.Errorf("unit %s parameter validation failed: %w", unit.ID, err)
		}
	}

	placed := make(map[string]string)
	place := func(container, unitID string) error {
		if _, exists := unitIDs[unitID]; !exists {
			return fmt.Errorf("%s references non-existent unit: %s", container, unitID)
		}
		if other, taken := placed[unitID]; taken {
			return fmt.Errorf("unit %s is used by both %s and %s", unitID, other, container)
		}
		placed[unitID] = container
		return nil
	}

	for _, pipeline := range config.Graph.Pipelines {
		if nodeType, exists := allNodeIDs[pipeline.ID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", pipeline.ID, nodeType)
		}
		allNodeIDs[pipeline.ID] = "pipeline"
		for _, unitID := range pipeline.Units {
			if err := place("pipeline "+pipeline.ID, unitID); err != nil {
				return err
			}
		}
	}

	for _, layer := range config.Graph.Layers {
		if nodeType, exists := allNodeIDs[layer.ID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", layer.ID, nodeType)
		}
		allNodeIDs[layer.ID] = "layer"
		for _, unitID := range layer.Units {
			if err := place("layer "+layer.ID, unitID); err != nil {
				return err
			}
		}
	}

	for _, edge := range config.Graph.Edges {
		for _, end := range []string{edge.From, edge.To} {
			if _, exists := allNodeIDs[end]; !exists {
				return fmt.Errorf("edge references non-existent node: %s", end)
			}
			if container, inside := placed[end]; inside {
				return fmt.Errorf("edge references unit %s inside %s; connect the %s instead", end, container, container)
			}
		}
	}
	return nil
}

// buildPlan creates the units and arranges them into a graph.
func (pl *PlanLoader) buildPlan(_ context.Context, config *PlanConfig, hash string) (*Plan, error) {
	graph := NewGraph()

	units := make(map[string]ports.Executable, len(config.Units))
	for _, unitConfig := range config.Units {
		unit, err := pl.createUnit(unitConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create unit %s: %w", unitConfig.ID, err)
		}
		adapter := NewUnitAdapter(unit, unitConfig.ID)
		if s := unitConfig.Timeout.ExecutionTimeout; s > 0 {
			adapter.WithTimeout(time.Duration(s) * time.Second)
		}
		units[unitConfig.ID] = adapter
	}

	placed := make(map[string]struct{})
	for _, pipelineConfig := range config.Graph.Pipelines {
		pipeline := NewPipeline(pipelineConfig.ID)
		for _, unitID := range pipelineConfig.Units {
			if err := pipeline.Add(units[unitID]); err != nil {
				return nil, fmt.Errorf("failed to add unit to pipeline: %w", err)
			}
			placed[unitID] = struct{}{}
		}
		if err := graph.AddNode(pipeline); err != nil {
			return nil, fmt.Errorf("failed to add pipeline to graph: %w", err)
		}
	}

	for _, layerConfig := range config.Graph.Layers {
		layer := NewLayer(layerConfig.ID)
		if layerConfig.MaxConcurrency > 0 {
			layer.SetConcurrencyLimit(layerConfig.MaxConcurrency)
		}
		for _, unitID := range layerConfig.Units {
			if err := layer.Add(units[unitID]); err != nil {
				return nil, fmt.Errorf("failed to add unit to layer: %w", err)
			}
			placed[unitID] = struct{}{}
		}
		if err := graph.AddNode(layer); err != nil {
			return nil, fmt.Errorf("failed to add layer to graph: %w", err)
		}
	}

	// Standalone units keep their declaration order.
	for _, unitConfig := range config.Units {
		if _, isPlaced := placed[unitConfig.ID]; isPlaced {
			continue
		}
		if err := graph.AddNode(units[unitConfig.ID]); err != nil {
			return nil, fmt.Errorf("failed to add unit to graph: %w", err)
		}
	}

	for _, edge := range config.Graph.Edges {
		if err := graph.AddEdge(edge.From, edge.To); err != nil {
			return nil, fmt.Errorf("failed to add edge: %w", err)
		}
	}

	plan := &Plan{
		ID:       hash[:12],
		Name:     config.Metadata.Name,
		graph:    graph,
		settings: config.Settings,
	}
	return plan, nil
}

// createUnit builds one unit through the registry and applies the
// configured wrappers.
func (pl *PlanLoader) createUnit(config UnitConfig) (ports.Unit, error) {
	var params map[string]any
	if err := config.Parameters.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}

	unit, err := pl.unitRegistry.CreateUnit(config.Type, config.ID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}
	for _, wrap := range pl.wrappers {
		if unit, err = wrap(unit, config); err != nil {
			return nil, fmt.Errorf("failed to wrap unit: %w", err)
		}
	}
	return unit, nil
}

// calculateConfigHash hashes the re-encoded configuration, so formatting
// and key order of the source do not matter.
func (pl *PlanLoader) calculateConfigHash(config *PlanConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (pl *PlanLoader) getCachedPlan(hash string) (*Plan, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()
	plan, ok := pl.cache[hash]
	return plan, ok
}

func (pl *PlanLoader) cachePlan(hash string, plan *Plan) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()
	pl.cache[hash] = plan
}

// ClearCache forgets every compiled plan.
func (pl *PlanLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()
	pl.cache = make(map[string]*Plan)
}
