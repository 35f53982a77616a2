package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-cooke/internal/application"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// mockUnit implements ports.Unit for testing middleware functionality.
type mockUnit struct {
	name        string
	executeFunc func(ctx context.Context, state domain.State) (domain.State, error)
	validateErr error
}

func (m *mockUnit) Name() string { return m.name }

func (m *mockUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, state)
	}
	return state, nil
}

func (m *mockUnit) Validate() error { return m.validateErr }

// plannerUnit announces planned combinations and evaluates evaluated.
type plannerUnit struct {
	mockUnit
	planned    int64
	evaluated  int64
	planErr    error
	executions int
	mu         sync.Mutex
}

func newPlannerUnit(planned, evaluated int64) *plannerUnit {
	u := &plannerUnit{mockUnit: mockUnit{name: "items"}, planned: planned, evaluated: evaluated}
	u.executeFunc = func(_ context.Context, s domain.State) (domain.State, error) {
		u.mu.Lock()
		u.executions++
		u.mu.Unlock()
		return s.AddCombinations(u.evaluated), nil
	}
	return u
}

func (u *plannerUnit) PlannedCombinations(domain.State) (int64, error) {
	return u.planned, u.planErr
}

func (u *plannerUnit) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.executions
}

// mockBudgetObserver records the hook calls.
type mockBudgetObserver struct {
	mu   sync.Mutex
	pre  []int64
	post []int64
	errs []error
}

type observerKey struct{}

func (m *mockBudgetObserver) PreCheck(ctx context.Context, used, planned int64, _ Budget) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pre = append(m.pre, used+planned)
	return context.WithValue(ctx, observerKey{}, "pre")
}

func (m *mockBudgetObserver) PostCheck(ctx context.Context, used int64, _ Budget, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Value(observerKey{}) != "pre" {
		panic("PostCheck did not receive the PreCheck context")
	}
	m.post = append(m.post, used)
	m.errs = append(m.errs, err)
}

func stateWithCombinations(n int64) domain.State {
	return domain.NewState().
		WithExecutionContext(domain.ExecutionContext{PlanID: "p", RunID: "r"}).
		AddCombinations(n)
}

func TestNewBudgetManager_PanicsWithNilUnit(t *testing.T) {
	assert.Panics(t, func() { NewBudgetManager(Budget{}, nil, nil) })
}

func TestBudgetManager_Validate(t *testing.T) {
	errInner := errors.New("inner")
	tests := []struct {
		name    string
		budget  Budget
		next    *mockUnit
		wantErr string
	}{
		{name: "valid", budget: Budget{MaxCombinations: 10}, next: &mockUnit{name: "u"}},
		{name: "unlimited", budget: Budget{}, next: &mockUnit{name: "u"}},
		{name: "negative", budget: Budget{MaxCombinations: -1}, next: &mockUnit{name: "u"}, wantErr: "cannot be negative"},
		{name: "inner invalid", budget: Budget{MaxCombinations: 1}, next: &mockUnit{name: "u", validateErr: errInner}, wantErr: "inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm := NewBudgetManager(tt.budget, tt.next, nil)
			assert.Equal(t, "u", bm.Name())
			err := bm.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestBudgetManager_Execute covers the pre-run plan check and the post-run
// counter check.
func TestBudgetManager_Execute(t *testing.T) {
	tests := []struct {
		name          string
		budget        Budget
		used          int64
		planned       int64
		evaluated     int64
		wantErr       bool
		wantExecuted  bool
		wantFinal     int64
		wantObserverN int
	}{
		{name: "within limit", budget: Budget{MaxCombinations: 10}, used: 2, planned: 7, evaluated: 7, wantExecuted: true, wantFinal: 9, wantObserverN: 1},
		{name: "exactly at limit", budget: Budget{MaxCombinations: 9}, used: 2, planned: 7, evaluated: 7, wantExecuted: true, wantFinal: 9, wantObserverN: 1},
		{name: "plan exceeds limit", budget: Budget{MaxCombinations: 8}, used: 2, planned: 7, evaluated: 7, wantErr: true, wantFinal: 2},
		{name: "unit evaluates more than planned", budget: Budget{MaxCombinations: 10}, planned: 1, evaluated: 11, wantErr: true, wantExecuted: true, wantFinal: 11, wantObserverN: 1},
		{name: "unlimited", budget: Budget{}, used: 100, planned: 1000, evaluated: 1000, wantExecuted: true, wantFinal: 1100, wantObserverN: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := newPlannerUnit(tt.planned, tt.evaluated)
			observer := &mockBudgetObserver{}
			bm := NewBudgetManager(tt.budget, unit, observer)

			out, err := bm.Execute(context.Background(), stateWithCombinations(tt.used))
			if tt.wantErr {
				require.ErrorIs(t, err, ports.ErrBudgetExceeded)
				var budgetErr *BudgetExceededError
				require.ErrorAs(t, err, &budgetErr)
				assert.Equal(t, tt.budget.MaxCombinations, budgetErr.Limit)
				assert.Equal(t, "items", budgetErr.Unit)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantExecuted, unit.count() == 1)
			final, _ := domain.Get(out, domain.KeyCombinations)
			assert.Equal(t, tt.wantFinal, final)
			assert.Len(t, observer.post, tt.wantObserverN)
		})
	}
}

func TestBudgetManager_Execute_NonPlanner(t *testing.T) {
	next := &mockUnit{name: "score"}
	bm := NewBudgetManager(Budget{MaxCombinations: 1}, next, nil)
	_, err := bm.Execute(context.Background(), stateWithCombinations(1))
	require.NoError(t, err)
}

func TestBudgetManager_Execute_PropagatesErrors(t *testing.T) {
	errPlan := errors.New("no seeds")
	unit := newPlannerUnit(1, 1)
	unit.planErr = errPlan
	_, err := NewBudgetManager(Budget{MaxCombinations: 5}, unit, nil).Execute(context.Background(), stateWithCombinations(0))
	require.ErrorIs(t, err, errPlan)
	assert.Zero(t, unit.count())

	errRun := errors.New("run failed")
	observer := &mockBudgetObserver{}
	failing := &mockUnit{name: "dm", executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
		return s, errRun
	}}
	_, err = NewBudgetManager(Budget{MaxCombinations: 5}, failing, observer).Execute(context.Background(), stateWithCombinations(0))
	require.ErrorIs(t, err, errRun)
	require.Len(t, observer.errs, 1)
	assert.ErrorIs(t, observer.errs[0], errRun)
}

func TestBudgetManager_ConcurrentExecution(t *testing.T) {
	unit := newPlannerUnit(3, 3)
	observer := &mockBudgetObserver{}
	bm := NewBudgetManager(Budget{MaxCombinations: 5}, unit, observer)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = bm.Execute(context.Background(), stateWithCombinations(int64(i%4)))
		}()
	}
	wg.Wait()

	// Starting counters 0..2 fit, 3 does not.
	assert.Equal(t, 15, unit.count())
	assert.Len(t, observer.pre, 15)
}

func TestBudgetFromConfig(t *testing.T) {
	got := BudgetFromConfig(application.BudgetConfig{MaxCombinations: 42})
	assert.Equal(t, Budget{MaxCombinations: 42}, got)
}
