// Package testutils provides utilities for testing, including generators of
// synthetic expert judgment studies. These components are intended for
// internal use within the project's test suites and tools and are not part
// of the public API.
package testutils

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-cooke/internal/domain"
)

// ExpertProfile describes how a synthetic expert answers.
//
// The expert's median misses the realization by Bias plus a normal error
// with standard deviation ErrorSD, both in units of the item's spread. The
// stated quantiles use a spread of ErrorSD * Confidence: 1 gives a
// calibrated expert, below 1 an overconfident one.
type ExpertProfile struct {
	ID         string  `json:"id" validate:"required"`
	ErrorSD    float64 `json:"error_sd" validate:"gt=0"`
	Confidence float64 `json:"confidence" validate:"gt=0"`
	Bias       float64 `json:"bias"`
}

// StudyConfig configures GenerateStudy.
type StudyConfig struct {
	Experts     []ExpertProfile `json:"experts" validate:"required,min=1,unique=ID,dive"`
	SeedItems   int             `json:"seed_items" validate:"min=1"`
	TargetItems int             `json:"target_items" validate:"min=0"`
	Quantiles   []float64       `json:"quantiles" validate:"required,min=2,dive,gt=0,lt=1"`
	// LogShare is the fraction of items on a log scale.
	LogShare float64 `json:"log_share" validate:"gte=0,lte=1"`
	// MissingRate is the chance that an expert leaves an item unanswered.
	MissingRate float64 `json:"missing_rate" validate:"gte=0,lt=1"`
}

// Expert profiles used by DefaultStudyConfig.
var (
	CalibratedExpert     = ExpertProfile{ID: "calibrated", ErrorSD: 1, Confidence: 1}
	OverconfidentExpert  = ExpertProfile{ID: "overconf", ErrorSD: 1, Confidence: 0.3}
	UnderconfidentExpert = ExpertProfile{ID: "underconf", ErrorSD: 1, Confidence: 3}
	BiasedExpert         = ExpertProfile{ID: "biased", ErrorSD: 0.5, Confidence: 1, Bias: 2}
)

// DefaultStudyConfig returns four experts with different profiles, ten seed
// and five target items and the 5%, 50% and 95% quantiles.
func DefaultStudyConfig() StudyConfig {
	return StudyConfig{
		Experts:     []ExpertProfile{CalibratedExpert, OverconfidentExpert, UnderconfidentExpert, BiasedExpert},
		SeedItems:   10,
		TargetItems: 5,
		Quantiles:   []float64{0.05, 0.5, 0.95},
		LogShare:    0.2,
	}
}

// GenerateStudy creates a synthetic study. The seed parameter controls
// randomization; a fixed value gives the same project on every call.
func GenerateStudy(cfg StudyConfig, seed int64) (*domain.Project, error) {
	if err := NewTestValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid study config: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))
	p, err := domain.NewProject(cfg.Quantiles...)
	if err != nil {
		return nil, err
	}
	z := make([]float64, len(cfg.Quantiles))
	for k, q := range cfg.Quantiles {
		z[k] = distuv.UnitNormal.Quantile(q)
	}

	type truth struct {
		center, spread float64
		log            bool
	}
	var truths []truth
	for i := range cfg.SeedItems + cfg.TargetItems {
		isSeed := i < cfg.SeedItems
		it := domain.NewItem(itemID(i, isSeed, cfg.SeedItems))
		it.Question = fmt.Sprintf("Synthetic question %d", i+1)

		// Centers span three orders of magnitude.
		center := math.Pow(10, 3*rng.Float64())
		tr := truth{center: center, spread: 0.25 * center}
		if rng.Float64() < cfg.LogShare {
			it.Scale = domain.ScaleLog
			tr = truth{center: math.Log(center), spread: 0.5, log: true}
		}
		if isSeed {
			it.Realization = center
		}
		if err := p.AddItem(it); err != nil {
			return nil, err
		}
		truths = append(truths, tr)
	}

	for _, profile := range cfg.Experts {
		values := make([][]float64, len(truths))
		for i, tr := range truths {
			row := make([]float64, len(z))
			if rng.Float64() < cfg.MissingRate {
				for k := range row {
					row[k] = math.NaN()
				}
				values[i] = row
				continue
			}
			median := tr.center + tr.spread*(profile.Bias+profile.ErrorSD*rng.NormFloat64())
			stated := tr.spread * profile.ErrorSD * profile.Confidence
			for k := range row {
				row[k] = median + stated*z[k]
				if tr.log {
					row[k] = math.Exp(row[k])
				}
			}
			values[i] = row
		}
		e := domain.NewExpert(profile.ID, profile.ID)
		e.UserWeight = 1
		if err := p.AddExpert(e, values, false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func itemID(i int, seed bool, seeds int) string {
	if seed {
		return fmt.Sprintf("seed%02d", i+1)
	}
	return fmt.Sprintf("target%02d", i-seeds+1)
}
