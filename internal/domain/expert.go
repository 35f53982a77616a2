package domain

import "math"

// Role distinguishes human experts from synthesized decision makers.
type Role int

const (
	// RoleActual is a real expert whose assessments were elicited.
	RoleActual Role = iota
	// RoleDecisionMaker is a pseudo-expert derived from other experts.
	// Its assessments are derived data and must be recomputed, not edited.
	RoleDecisionMaker
)

// String returns "actual" or "dm".
func (r Role) String() string {
	if r == RoleDecisionMaker {
		return "dm"
	}
	return "actual"
}

// ExpertScores holds the per-expert scalars produced by a calculation.
// Unset scores are NaN.
type ExpertScores struct {
	Calibration float64
	InfoReal    float64
	InfoTotal   float64
	CombScore   float64
	NSeeds      float64
	Weight      float64
}

// UnsetScores returns an ExpertScores with every field NaN.
func UnsetScores() ExpertScores {
	nan := math.NaN()
	return ExpertScores{
		Calibration: nan,
		InfoReal:    nan,
		InfoTotal:   nan,
		CombScore:   nan,
		NSeeds:      nan,
		Weight:      nan,
	}
}

// Expert is the registry view of one expert.
type Expert struct {
	ID         string
	Name       string
	Role       Role
	UserWeight float64
	Excluded   bool
	Scores     ExpertScores
}

// NewExpert returns an actual expert with no user weight and unset scores.
func NewExpert(id, name string) Expert {
	return Expert{
		ID:         id,
		Name:       name,
		Role:       RoleActual,
		UserWeight: math.NaN(),
		Scores:     UnsetScores(),
	}
}

// IsDecisionMaker reports whether the expert was synthesized.
func (e Expert) IsDecisionMaker() bool { return e.Role == RoleDecisionMaker }
