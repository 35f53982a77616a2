package application

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-cooke/internal/domain"
)

// minSuggestionSimilarity is the normalised Levenshtein similarity a known
// id needs to be offered as a suggestion.
const minSuggestionSimilarity = 0.5

// UnknownIDError reports an expert or item id that is not in the project,
// with the closest known id when one is similar enough.
type UnknownIDError struct {
	// Kind is "expert" or "item".
	Kind       string
	ID         string
	Suggestion string
}

func (e *UnknownIDError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
	}
	return fmt.Sprintf("unknown %s %q, did you mean %q?", e.Kind, e.ID, e.Suggestion)
}

// Unwrap returns domain.ErrUnknownExpert or domain.ErrUnknownItem.
func (e *UnknownIDError) Unwrap() error {
	if e.Kind == "item" {
		return domain.ErrUnknownItem
	}
	return domain.ErrUnknownExpert
}

// ResolveIDs maps user supplied ids onto known ids. An exact match wins;
// otherwise a unique case-insensitive match is accepted. Every id that
// cannot be resolved contributes an *UnknownIDError to the joined error.
func ResolveIDs(kind string, ids, known []string) ([]string, error) {
	fold := cases.Fold()
	exact := make(map[string]struct{}, len(known))
	folded := make(map[string][]string, len(known))
	for _, k := range known {
		exact[k] = struct{}{}
		f := fold.String(k)
		folded[f] = append(folded[f], k)
	}

	resolved := make([]string, 0, len(ids))
	var errs []error
	for _, id := range ids {
		if _, ok := exact[id]; ok {
			resolved = append(resolved, id)
			continue
		}
		if matches := folded[fold.String(id)]; len(matches) == 1 {
			resolved = append(resolved, matches[0])
			continue
		}
		errs = append(errs, &UnknownIDError{Kind: kind, ID: id, Suggestion: Suggest(id, known)})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return resolved, nil
}

// Suggest returns the known id most similar to id, ignoring case, or ""
// when none is similar enough. Ties go to the id listed first.
func Suggest(id string, known []string) string {
	fold := cases.Fold()
	id = fold.String(id)
	best, bestScore := "", 0.0
	for _, k := range known {
		if s := similarity(id, fold.String(k)); s > bestScore {
			best, bestScore = k, s
		}
	}
	if bestScore < minSuggestionSimilarity {
		return ""
	}
	return best
}

// similarity is 1 - distance/max(len), counted in runes.
func similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
