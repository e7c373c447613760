package calculator

import (
	"math"

	"base-distance/internal/models"
)

// ResolveNearest picks, for every subbase column, the base row with the
// smallest distance. The scan uses strict less-than, so on a tie the lowest
// base index wins.
func ResolveNearest(m Matrix, baseList, subbaseList []models.Point) ([]models.Assignment, error) {
	if m.Empty() {
		return nil, ErrEmptyMatrix
	}
	if err := checkShape(m, baseList, subbaseList); err != nil {
		return nil, err
	}

	results := make([]models.Assignment, len(subbaseList))
	for j, sub := range subbaseList {
		nearestIdx := -1
		minDist := math.Inf(1)

		for i := range baseList {
			if d := m[i][j]; d < minDist {
				minDist = d
				nearestIdx = i
			}
		}
		// every cell NaN: fall back to the first base so the row is still reported
		if nearestIdx < 0 {
			nearestIdx = 0
			minDist = m[0][j]
		}

		results[j] = models.Assignment{
			Subbase:      sub,
			ClosestBase:  baseList[nearestIdx],
			SubbaseIndex: j,
			BaseIndex:    nearestIdx,
			Distance:     minDist,
		}
	}
	return results, nil
}

// WithinRadius lists every base/subbase pair no further apart than radiusMiles,
// ordered by subbase index and then base index.
func WithinRadius(m Matrix, baseList, subbaseList []models.Point, radiusMiles float64) ([]models.Assignment, error) {
	if m.Empty() {
		return nil, ErrEmptyMatrix
	}
	if err := checkShape(m, baseList, subbaseList); err != nil {
		return nil, err
	}

	var results []models.Assignment
	for j, sub := range subbaseList {
		for i, base := range baseList {
			if d := m[i][j]; d <= radiusMiles {
				results = append(results, models.Assignment{
					Subbase:      sub,
					ClosestBase:  base,
					SubbaseIndex: j,
					BaseIndex:    i,
					Distance:     d,
				})
			}
		}
	}
	return results, nil
}

// BaseGroup collects the subbases whose closest base is Base.
type BaseGroup struct {
	Base      models.Point        `json:"base"`
	BaseIndex int                 `json:"base_index"`
	Subbases  []models.Assignment `json:"subbases"`
}

// GroupByBase buckets assignments by closest base, in first-seen base order.
func GroupByBase(assignments []models.Assignment) []BaseGroup {
	var groups []BaseGroup
	pos := make(map[int]int)
	for _, a := range assignments {
		gi, ok := pos[a.BaseIndex]
		if !ok {
			gi = len(groups)
			pos[a.BaseIndex] = gi
			groups = append(groups, BaseGroup{Base: a.ClosestBase, BaseIndex: a.BaseIndex})
		}
		groups[gi].Subbases = append(groups[gi].Subbases, a)
	}
	return groups
}

func checkShape(m Matrix, baseList, subbaseList []models.Point) error {
	if m.Rows() != len(baseList) {
		return ErrDimensionMismatch
	}
	for _, row := range m {
		if len(row) != len(subbaseList) {
			return ErrDimensionMismatch
		}
	}
	return nil
}
