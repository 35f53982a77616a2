package engine

import (
	"fmt"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Combinations lists every subset of {0..n-1} with between minExclude and
// maxExclude members, by ascending size and lexicographically within a
// size. maxExclude must be smaller than n so at least one entry is left.
func Combinations(n, minExclude, maxExclude int) ([][]int, error) {
	if maxExclude >= n {
		return nil, fmt.Errorf("%w: max %d, entries %d", domain.ErrExclusionBounds, maxExclude, n)
	}
	if minExclude < 0 || minExclude > maxExclude {
		return nil, fmt.Errorf("%w: min %d, max %d", domain.ErrExclusionBounds, minExclude, maxExclude)
	}
	var out [][]int
	for k := minExclude; k <= maxExclude; k++ {
		if k == 0 {
			out = append(out, []int{})
			continue
		}
		out = append(out, combin.Combinations(n, k)...)
	}
	return out, nil
}

// CountCombinations returns len(Combinations(n, minExclude, maxExclude))
// without enumerating, or 0 for invalid bounds.
func CountCombinations(n, minExclude, maxExclude int) int {
	if maxExclude >= n || minExclude < 0 || minExclude > maxExclude {
		return 0
	}
	total := 0
	for k := minExclude; k <= maxExclude; k++ {
		total += combin.Binomial(n, k)
	}
	return total
}
