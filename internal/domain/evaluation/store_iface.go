package evaluation

import (
	"context"
	"time"
)

// StoreAPI is the record store the engine reads and mutates. Every list and count honors
// the active flag; inactive records behave as if they did not exist.
type StoreAPI interface {
	GetPeriod(ctx context.Context, periodID string) (Period, error)
	ReplaceGradeBands(ctx context.Context, periodID string, bands []GradeBand) error
	IsPeriodMember(ctx context.Context, periodID, employeeID string) (bool, error)
	ListPeriodMembers(ctx context.Context, periodID string) ([]string, error)
	ListAssignments(ctx context.Context, periodID, employeeID string) ([]Assignment, error)
	ListBindings(ctx context.Context, periodID, employeeID string) ([]EvaluatorBinding, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]EvaluationRecord, error)
	GetRecord(ctx context.Context, recordID string) (EvaluationRecord, error)
	// UpsertRecord creates or updates the record with the input's natural key. It returns
	// ErrAlreadySubmitted when the existing record carries a submission marker.
	UpsertRecord(ctx context.Context, in RecordInput, now time.Time) (EvaluationRecord, error)
	// SaveMarkers persists rec's submission markers if rec.Version still matches, returning
	// ErrConflict otherwise and ErrNotFound if the record is gone or inactive.
	SaveMarkers(ctx context.Context, rec EvaluationRecord, now time.Time) (EvaluationRecord, error)
	DeactivateRecord(ctx context.Context, recordID string, now time.Time) error
}
