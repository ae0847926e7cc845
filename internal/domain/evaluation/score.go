package evaluation

import (
	"fmt"
	"sort"
	"strings"
)

// ScoreInput is one work item's contribution to a weighted score.
type ScoreInput struct {
	Weight    int
	RawScore  *int
	Completed bool
}

// ComputeScore sums weight/100 * raw/maxRate * 100 over inputs and floors the result.
// It returns nil when there is nothing to score or any input is unscored or unsubmitted.
// Raw scores above maxRate are not clamped.
func ComputeScore(inputs []ScoreInput, maxRate int) (*int, error) {
	if maxRate < 1 {
		return nil, fmt.Errorf("%w: max rate must be at least 1, got %d", ErrValidation, maxRate)
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	var numerator int64
	for _, in := range inputs {
		if in.RawScore == nil || !in.Completed {
			return nil, nil
		}
		numerator += int64(in.Weight) * int64(*in.RawScore)
	}
	score := int(floorDiv(numerator, int64(maxRate)))
	return &score, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ResolveGrade returns the first band in table order containing score, bounds inclusive.
func ResolveGrade(score int, bands []GradeBand) *string {
	for _, band := range bands {
		if score >= band.MinScore && score <= band.MaxScore {
			grade := band.Grade
			return &grade
		}
	}
	return nil
}

// Resolve computes the score and, when one exists, its grade.
func Resolve(inputs []ScoreInput, maxRate int, bands []GradeBand) (ScoreResult, error) {
	score, err := ComputeScore(inputs, maxRate)
	if err != nil || score == nil {
		return ScoreResult{}, err
	}
	return ScoreResult{Score: score, Grade: ResolveGrade(*score, bands)}, nil
}

func ValidateBands(bands []GradeBand) error {
	for i, band := range bands {
		if strings.TrimSpace(band.Grade) == "" {
			return fmt.Errorf("%w: band %d has no grade", ErrValidation, i)
		}
		if band.MinScore < 0 || band.MaxScore > maxGradeScore {
			return fmt.Errorf("%w: band %q must lie within 0..%d", ErrValidation, band.Grade, maxGradeScore)
		}
		if band.MinScore > band.MaxScore {
			return fmt.Errorf("%w: band %q has min score %d above max score %d", ErrValidation, band.Grade, band.MinScore, band.MaxScore)
		}
	}

	sorted := make([]GradeBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinScore <= sorted[i-1].MaxScore {
			return fmt.Errorf("%w: bands %q and %q overlap", ErrValidation, sorted[i-1].Grade, sorted[i].Grade)
		}
	}
	return nil
}

func ValidatePeriod(period Period) error {
	if period.MaxSelfEvaluationRate < 1 {
		return fmt.Errorf("%w: period %s max self evaluation rate must be at least 1", ErrValidation, period.ID)
	}
	return ValidateBands(period.GradeBands)
}
