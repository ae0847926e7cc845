package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
)

// SeedData is a fixture of reference data for a MemoryStore, typically read
// from the file named by SEED_FILE.
type SeedData struct {
	Periods     []Period           `json:"periods"`
	Members     []SeedMember       `json:"members"`
	Assignments []Assignment       `json:"assignments"`
	Bindings    []EvaluatorBinding `json:"bindings"`
}

type SeedMember struct {
	PeriodID   string `json:"periodId"`
	EmployeeID string `json:"employeeId"`
}

// LoadSeed decodes and validates a fixture.
func LoadSeed(r io.Reader) (SeedData, error) {
	var data SeedData
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return SeedData{}, fmt.Errorf("%w: seed: %v", ErrValidation, err)
	}
	periods := map[string]bool{}
	for _, p := range data.Periods {
		if err := ValidatePeriod(p); err != nil {
			return SeedData{}, fmt.Errorf("seed period %s: %w", p.ID, err)
		}
		periods[p.ID] = true
	}
	for _, m := range data.Members {
		if !periods[m.PeriodID] {
			return SeedData{}, fmt.Errorf("%w: seed member %s references unknown period %s", ErrValidation, m.EmployeeID, m.PeriodID)
		}
	}
	items := map[string]bool{}
	for _, a := range data.Assignments {
		if !periods[a.PeriodID] {
			return SeedData{}, fmt.Errorf("%w: seed assignment %s references unknown period %s", ErrValidation, a.ID, a.PeriodID)
		}
		key := memberKey(a.PeriodID, a.EmployeeID) + "/" + a.WorkItemID
		if items[key] {
			return SeedData{}, fmt.Errorf("%w: seed assigns %s to %s twice in period %s", ErrValidation, a.WorkItemID, a.EmployeeID, a.PeriodID)
		}
		items[key] = true
	}
	primaries := map[string]string{}
	for _, b := range data.Bindings {
		if !periods[b.PeriodID] {
			return SeedData{}, fmt.Errorf("%w: seed binding for %s references unknown period %s", ErrValidation, b.EmployeeID, b.PeriodID)
		}
		if b.Tier != TierPrimary && b.Tier != TierSecondary {
			return SeedData{}, fmt.Errorf("%w: seed binding for %s has unknown tier %q", ErrValidation, b.EmployeeID, b.Tier)
		}
		if b.Tier != TierPrimary {
			continue
		}
		key := memberKey(b.PeriodID, b.EmployeeID)
		if prev, ok := primaries[key]; ok && prev != b.EvaluatorID {
			return SeedData{}, fmt.Errorf("%w: seed binds primary evaluators %s and %s to %s", ErrValidation, prev, b.EvaluatorID, b.EmployeeID)
		}
		primaries[key] = b.EvaluatorID
	}
	return data, nil
}

// Seed loads the fixture into the store.
func (s *MemoryStore) Seed(data SeedData) {
	for _, p := range data.Periods {
		s.AddPeriod(p)
	}
	for _, m := range data.Members {
		s.AddMember(m.PeriodID, m.EmployeeID)
	}
	for _, a := range data.Assignments {
		s.AddAssignment(a)
	}
	for _, b := range data.Bindings {
		s.AddBinding(b)
	}
}
