package evaluation

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func submittedInputs(weightsAndScores ...int) []ScoreInput {
	var inputs []ScoreInput
	for i := 0; i+1 < len(weightsAndScores); i += 2 {
		inputs = append(inputs, ScoreInput{Weight: weightsAndScores[i], RawScore: intPtr(weightsAndScores[i+1]), Completed: true})
	}
	return inputs
}

func TestComputeScoreFloorsWeightedSum(t *testing.T) {
	score, err := ComputeScore(submittedInputs(30, 100, 40, 110, 30, 90), 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score == nil || *score != 84 {
		t.Fatalf("expected score 84, got %v", score)
	}
	grade := ResolveGrade(*score, []GradeBand{{Grade: "S", MinScore: 85, MaxScore: 100}, {Grade: "A", MinScore: 80, MaxScore: 84}})
	if grade == nil || *grade != "A" {
		t.Fatalf("expected grade A, got %v", grade)
	}
}

func TestComputeScoreExtremes(t *testing.T) {
	score, err := ComputeScore(submittedInputs(30, 120, 40, 120, 30, 120), 120)
	if err != nil || score == nil || *score != 100 {
		t.Fatalf("expected 100 at max rate, got %v (err %v)", score, err)
	}
	score, err = ComputeScore(submittedInputs(30, 60, 40, 60, 30, 60), 120)
	if err != nil || score == nil || *score != 50 {
		t.Fatalf("expected 50 at half max rate, got %v (err %v)", score, err)
	}
}

func TestComputeScoreDoesNotClampAboveMaxRate(t *testing.T) {
	score, err := ComputeScore(submittedInputs(100, 100), 100)
	if err != nil || score == nil || *score != 100 {
		t.Fatalf("expected 100 at boundary, got %v (err %v)", score, err)
	}
	score, err = ComputeScore(submittedInputs(100, 101), 100)
	if err != nil || score == nil || *score != 101 {
		t.Fatalf("expected unclamped 101, got %v (err %v)", score, err)
	}
}

func TestComputeScoreReturnsNilForIncompleteData(t *testing.T) {
	cases := map[string][]ScoreInput{
		"empty":         nil,
		"missing score": {{Weight: 50, RawScore: intPtr(80), Completed: true}, {Weight: 50, Completed: true}},
		"not submitted": {{Weight: 50, RawScore: intPtr(80), Completed: true}, {Weight: 50, RawScore: intPtr(80)}},
	}
	for name, inputs := range cases {
		score, err := ComputeScore(inputs, 100)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if score != nil {
			t.Fatalf("%s: expected nil score, got %d", name, *score)
		}
	}
}

func TestComputeScoreRejectsInvalidMaxRate(t *testing.T) {
	if _, err := ComputeScore(submittedInputs(100, 50), 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveGradeBoundaries(t *testing.T) {
	bands := []GradeBand{
		{Grade: "A", MinScore: 90, MaxScore: 100},
		{Grade: "B", MinScore: 80, MaxScore: 89},
	}
	tests := []struct {
		score int
		want  string
	}{
		{100, "A"},
		{90, "A"},
		{89, "B"},
		{80, "B"},
		{79, ""},
	}
	for _, tt := range tests {
		got := ResolveGrade(tt.score, bands)
		if tt.want == "" {
			if got != nil {
				t.Fatalf("score %d: expected no grade, got %s", tt.score, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Fatalf("score %d: expected %s, got %v", tt.score, tt.want, got)
		}
	}
	if ResolveGrade(95, nil) != nil {
		t.Fatal("expected nil grade without bands")
	}
}

func TestResolveGradePicksFirstOverlappingBand(t *testing.T) {
	bands := []GradeBand{
		{Grade: "B", MinScore: 70, MaxScore: 85},
		{Grade: "A", MinScore: 80, MaxScore: 100},
	}
	got := ResolveGrade(82, bands)
	if got == nil || *got != "B" {
		t.Fatalf("expected first matching band B, got %v", got)
	}
}

func TestValidateBands(t *testing.T) {
	valid := []GradeBand{{Grade: "A", MinScore: 90, MaxScore: 100}, {Grade: "B", MinScore: 0, MaxScore: 89}}
	if err := ValidateBands(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateBands(nil); err != nil {
		t.Fatalf("empty band table should be valid: %v", err)
	}

	invalid := map[string][]GradeBand{
		"inverted": {{Grade: "A", MinScore: 90, MaxScore: 80}},
		"overlap":  {{Grade: "A", MinScore: 80, MaxScore: 100}, {Grade: "B", MinScore: 70, MaxScore: 80}},
		"range":    {{Grade: "A", MinScore: 90, MaxScore: 120}},
		"no grade": {{Grade: " ", MinScore: 0, MaxScore: 10}},
		"negative": {{Grade: "F", MinScore: -1, MaxScore: 10}},
	}
	for name, bands := range invalid {
		if err := ValidateBands(bands); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
