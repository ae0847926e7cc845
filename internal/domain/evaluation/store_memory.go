package evaluation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local StoreAPI. Marker writes are serialized by a mutex and
// checked against the record version like the Postgres store.
type MemoryStore struct {
	mu          sync.RWMutex
	periods     map[string]Period
	members     map[string][]string
	assignments map[string][]Assignment
	bindings    map[string][]EvaluatorBinding
	records     map[string]EvaluationRecord
	order       []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		periods:     map[string]Period{},
		members:     map[string][]string{},
		assignments: map[string][]Assignment{},
		bindings:    map[string][]EvaluatorBinding{},
		records:     map[string]EvaluationRecord{},
	}
}

func memberKey(periodID, employeeID string) string {
	return periodID + "/" + employeeID
}

func (s *MemoryStore) AddPeriod(period Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	period.GradeBands = append([]GradeBand(nil), period.GradeBands...)
	s.periods[period.ID] = period
}

func (s *MemoryStore) AddMember(periodID, employeeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.members[periodID] {
		if id == employeeID {
			return
		}
	}
	s.members[periodID] = append(s.members[periodID], employeeID)
}

func (s *MemoryStore) AddAssignment(a Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	key := memberKey(a.PeriodID, a.EmployeeID)
	// A work item is assigned at most once per employee and period.
	for i, existing := range s.assignments[key] {
		if existing.WorkItemID == a.WorkItemID {
			s.assignments[key][i] = a
			return
		}
	}
	s.assignments[key] = append(s.assignments[key], a)
}

func (s *MemoryStore) AddBinding(b EvaluatorBinding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(b.PeriodID, b.EmployeeID)
	s.bindings[key] = append(s.bindings[key], b)
}

func (s *MemoryStore) GetPeriod(ctx context.Context, periodID string) (Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	period, ok := s.periods[periodID]
	if !ok {
		return Period{}, ErrNotFound
	}
	period.GradeBands = append([]GradeBand(nil), period.GradeBands...)
	return period, nil
}

func (s *MemoryStore) ReplaceGradeBands(ctx context.Context, periodID string, bands []GradeBand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	period, ok := s.periods[periodID]
	if !ok {
		return ErrNotFound
	}
	period.GradeBands = append([]GradeBand(nil), bands...)
	s.periods[periodID] = period
	return nil
}

func (s *MemoryStore) IsPeriodMember(ctx context.Context, periodID, employeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.members[periodID] {
		if id == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListPeriodMembers(ctx context.Context, periodID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.members[periodID]...), nil
}

func (s *MemoryStore) ListAssignments(ctx context.Context, periodID, employeeID string) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Assignment(nil), s.assignments[memberKey(periodID, employeeID)]...), nil
}

func (s *MemoryStore) ListBindings(ctx context.Context, periodID, employeeID string) ([]EvaluatorBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EvaluatorBinding(nil), s.bindings[memberKey(periodID, employeeID)]...), nil
}

func (s *MemoryStore) ListRecords(ctx context.Context, filter RecordFilter) ([]EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []EvaluationRecord
	for _, id := range s.order {
		rec := s.records[id]
		if !rec.IsActive {
			continue
		}
		if filter.PeriodID != "" && rec.PeriodID != filter.PeriodID {
			continue
		}
		if filter.EmployeeID != "" && rec.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.EvaluatorID != "" && rec.EvaluatorID != filter.EvaluatorID {
			continue
		}
		if filter.Stage != "" && rec.Stage != filter.Stage {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, recordID string) (EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok || !rec.IsActive {
		return EvaluationRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) findActive(key RecordKey) (EvaluationRecord, bool) {
	for _, id := range s.order {
		rec := s.records[id]
		if rec.IsActive && rec.Key() == key {
			return rec, true
		}
	}
	return EvaluationRecord{}, false
}

func (s *MemoryStore) UpsertRecord(ctx context.Context, in RecordInput, now time.Time) (EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.findActive(in.Key()); ok {
		if anySubmitted(rec) {
			return EvaluationRecord{}, ErrAlreadySubmitted
		}
		rec.RawScore = in.RawScore
		rec.Content = in.Content
		rec.Version++
		rec.UpdatedAt = now
		s.records[rec.ID] = rec
		return rec, nil
	}

	rec := EvaluationRecord{
		ID:          uuid.NewString(),
		PeriodID:    in.PeriodID,
		EmployeeID:  in.EmployeeID,
		EvaluatorID: in.EvaluatorID,
		WorkItemID:  in.WorkItemID,
		Stage:       in.Stage,
		RawScore:    in.RawScore,
		Content:     in.Content,
		IsActive:    true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec, nil
}

func (s *MemoryStore) SaveMarkers(ctx context.Context, rec EvaluationRecord, now time.Time) (EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.ID]
	if !ok || !current.IsActive {
		return EvaluationRecord{}, ErrNotFound
	}
	if current.Version != rec.Version {
		return EvaluationRecord{}, ErrConflict
	}
	current.SubmittedToEvaluator = rec.SubmittedToEvaluator
	current.SubmittedToEvaluatorAt = rec.SubmittedToEvaluatorAt
	current.SubmittedToManager = rec.SubmittedToManager
	current.SubmittedToManagerAt = rec.SubmittedToManagerAt
	current.IsCompleted = rec.IsCompleted
	current.CompletedAt = rec.CompletedAt
	current.Version++
	current.UpdatedAt = now
	s.records[current.ID] = current
	return current, nil
}

func (s *MemoryStore) DeactivateRecord(ctx context.Context, recordID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok || !rec.IsActive {
		return ErrNotFound
	}
	rec.IsActive = false
	rec.Version++
	rec.UpdatedAt = now
	s.records[recordID] = rec
	return nil
}
