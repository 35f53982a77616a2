package testutils

import (
	"math"

	"github.com/ahrav/go-cooke/internal/domain"
)

// StudyStatistics summarizes the shape of a project.
type StudyStatistics struct {
	Experts     int
	SeedItems   int
	TargetItems int
	LogItems    int
	// AnsweredShare is the fraction of expert and item pairs with at least
	// one value.
	AnsweredShare float64
}

// ComputeStudyStatistics counts the actual experts and the items of p.
func ComputeStudyStatistics(p *domain.Project) StudyStatistics {
	experts := p.ExpertIDs(domain.RoleActual)
	stats := StudyStatistics{Experts: len(experts)}
	for _, it := range p.Items() {
		if it.IsSeed() {
			stats.SeedItems++
		} else {
			stats.TargetItems++
		}
		if it.Scale.IsLog() {
			stats.LogItems++
		}
	}

	pairs, answered := 0, 0
	for _, e := range experts {
		for _, it := range p.ItemIDs() {
			pairs++
			a, err := p.Assessment(e, it)
			if err == nil && a.Answered() {
				answered++
			}
		}
	}
	if pairs > 0 {
		stats.AnsweredShare = float64(answered) / float64(pairs)
	} else {
		stats.AnsweredShare = math.NaN()
	}
	return stats
}
