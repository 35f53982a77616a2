// Package domain contains the pure, dependency-free data model of the
// expert judgment engine: the project registry, calculation settings,
// results and the typed State that flows through calculation plans.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the string form of the key.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys used by calculation plans.
var (
	// KeyProject stores the project the plan calculates on.
	KeyProject = Key[*Project]{"project"}
	// KeySettings stores the calculation settings.
	KeySettings = Key[CalculationSettings]{"settings"}
	// KeyScores stores the score table of the actual experts.
	KeyScores = Key[*ScoreTable]{"scores"}
	// KeyDecisionMaker stores the synthesized decision maker.
	KeyDecisionMaker = Key[*DecisionMaker]{"decision_maker"}
	// KeyItemRobustness stores the item robustness table.
	KeyItemRobustness = Key[*RobustnessTable]{"robustness.items"}
	// KeyExpertRobustness stores the expert robustness table.
	KeyExpertRobustness = Key[*RobustnessTable]{"robustness.experts"}
	// KeyWarnings stores non-fatal messages produced along the way.
	KeyWarnings = Key[[]string]{"warnings"}

	// KeyPlanID stores the identifier of the plan being executed.
	KeyPlanID = Key[string]{"execution.plan_id"}
	// KeyRunID stores a unique identifier of this execution.
	KeyRunID = Key[string]{"execution.run_id"}
	// KeyCombinations tracks the robustness combinations evaluated so far.
	KeyCombinations = Key[int64]{"execution.combinations"}
)

// Cloner is implemented by values whose unexported fields must survive the
// deep copies State makes on every read and write.
type Cloner interface {
	CloneState() any
}

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}
	if c, ok := value.(Cloner); ok {
		if v := reflect.ValueOf(value); v.Kind() == reflect.Ptr && v.IsNil() {
			return value
		}
		return c.CloneState()
	}
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			copyInto(newSlice.Index(i), v.Index(i))
		}
		return newSlice.Interface()
	case reflect.Array:
		newArr := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			copyInto(newArr.Index(i), v.Index(i))
		}
		return newArr.Interface()
	case reflect.Map:
		if v.IsNil() {
			return value
		}
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			elem := reflect.New(v.Type().Elem()).Elem()
			copyInto(elem, v.MapIndex(key))
			newMap.SetMapIndex(key, elem)
		}
		return newMap.Interface()
	case reflect.Ptr:
		if v.IsNil() {
			return value
		}
		newPtr := reflect.New(v.Elem().Type())
		copyInto(newPtr.Elem(), v.Elem())
		return newPtr.Interface()
	case reflect.Struct:
		// Unexported fields are left at their zero value; types that need
		// them preserved implement Cloner.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				copyInto(newStruct.Field(i), v.Field(i))
			}
		}
		return newStruct.Interface()
	default:
		return value
	}
}

// copyInto deep copies src into dst, keeping nil interface and pointer
// values typed correctly.
func copyInto(dst, src reflect.Value) {
	if (src.Kind() == reflect.Interface || src.Kind() == reflect.Ptr) && src.IsNil() {
		return
	}
	dst.Set(reflect.ValueOf(deepCopyValue(src.Interface())).Convert(dst.Type()))
}

// State represents an immutable collection of calculation data that flows
// through a plan. It uses copy-on-write semantics so parallel units can
// share one input state without coordination.
type State struct {
	data map[string]any
}

// NewState creates a new empty State.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// The returned value is a deep copy.
//
// Example:
//
//	dm, ok := Get(state, KeyDecisionMaker)
//	if !ok {
//	    // not calculated yet
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}
	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a method version of Get that uses a string key.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With creates a new State with the specified key-value pair added or
// updated, leaving the original unchanged.
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any)
	}
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added or
// updated in a single clone.
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any)
	}
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Has reports whether a key is present.
func (s State) Has(keyName string) bool {
	_, ok := s.data[keyName]
	return ok
}

// ChangedKeys returns, in sorted order, the keys of s that were added or
// set after s was derived from base. Values carried over unchanged keep
// their identity, so no deep comparison is needed.
func (s State) ChangedKeys(base State) []string {
	var keys []string
	for k, v := range s.data {
		bv, ok := base.data[k]
		if !ok || !sameValue(v, bv) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.Keys())
}

// ExecutionContext identifies one plan execution for logging and tracing.
type ExecutionContext struct {
	PlanID string
	RunID  string
}

// WithExecutionContext returns a State carrying the execution metadata and
// a zeroed combination counter.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyPlanID.name:       ctx.PlanID,
		KeyRunID.name:        ctx.RunID,
		KeyCombinations.name: int64(0),
	})
}

// GetExecutionContext extracts the execution metadata from the State.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	planID, ok1 := Get(s, KeyPlanID)
	runID, ok2 := Get(s, KeyRunID)
	if !ok1 || !ok2 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{PlanID: planID, RunID: runID}, true
}

// AddCombinations returns a State with the combination counter increased by n.
func (s State) AddCombinations(n int64) State {
	current, _ := Get(s, KeyCombinations)
	return With(s, KeyCombinations, current+n)
}

// AppendWarnings returns a State with msgs appended to KeyWarnings.
func (s State) AppendWarnings(msgs ...string) State {
	if len(msgs) == 0 {
		return s
	}
	current, _ := Get(s, KeyWarnings)
	return With(s, KeyWarnings, append(current, msgs...))
}
