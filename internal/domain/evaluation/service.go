package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// SubmissionRecorder receives bulk submit outcomes, typically a metrics collector.
type SubmissionRecorder interface {
	RecordBulkSubmit(submitted, failed int)
}

type Service struct {
	store       StoreAPI
	concurrency int
	recorder    SubmissionRecorder
	now         func() time.Time
}

func NewService(store StoreAPI, concurrency int, recorder SubmissionRecorder) *Service {
	if concurrency < 1 {
		concurrency = DefaultBulkSubmitConcurrency
	}
	return &Service{
		store:       store,
		concurrency: concurrency,
		recorder:    recorder,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the employee's assignments and evaluator bindings for the period.
// An employee without assignments yields empty lists, not an error.
func (s *Service) Resolve(ctx context.Context, employeeID, periodID string) (Resolution, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return Resolution{}, fmt.Errorf("period %s: %w", periodID, err)
	}
	member, err := s.store.IsPeriodMember(ctx, periodID, employeeID)
	if err != nil {
		return Resolution{}, err
	}
	if !member {
		return Resolution{}, fmt.Errorf("employee %s in period %s: %w", employeeID, periodID, ErrNotFound)
	}

	assignments, err := s.store.ListAssignments(ctx, periodID, employeeID)
	if err != nil {
		return Resolution{}, err
	}
	bindings, err := s.store.ListBindings(ctx, periodID, employeeID)
	if err != nil {
		return Resolution{}, err
	}
	if assignments == nil {
		assignments = []Assignment{}
	}
	if bindings == nil {
		bindings = []EvaluatorBinding{}
	}
	return Resolution{Period: period, Assignments: assignments, Bindings: bindings}, nil
}

// AuthorizeView lets the employee and any evaluator bound to them read their
// evaluation. Everyone else gets ErrForbidden.
func (s *Service) AuthorizeView(ctx context.Context, viewerID, employeeID, periodID string) (Resolution, error) {
	res, err := s.Resolve(ctx, employeeID, periodID)
	if err != nil {
		return Resolution{}, err
	}
	if viewerID == employeeID {
		return res, nil
	}
	for _, b := range res.Bindings {
		if b.EvaluatorID == viewerID {
			return res, nil
		}
	}
	return Resolution{}, fmt.Errorf("%w: %s may not view employee %s", ErrForbidden, viewerID, employeeID)
}

func (s *Service) Dashboard(ctx context.Context, employeeID, periodID string) (Dashboard, error) {
	res, err := s.Resolve(ctx, employeeID, periodID)
	if err != nil {
		return Dashboard{}, err
	}
	return s.dashboardFor(ctx, res, employeeID)
}

func (s *Service) dashboardFor(ctx context.Context, res Resolution, employeeID string) (Dashboard, error) {
	records, err := s.store.ListRecords(ctx, RecordFilter{PeriodID: res.Period.ID, EmployeeID: employeeID})
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(res, employeeID, records)
}

func (s *Service) PeriodDashboards(ctx context.Context, periodID string) ([]Dashboard, error) {
	if _, err := s.store.GetPeriod(ctx, periodID); err != nil {
		return nil, fmt.Errorf("period %s: %w", periodID, err)
	}
	members, err := s.store.ListPeriodMembers(ctx, periodID)
	if err != nil {
		return nil, err
	}
	dashboards := make([]Dashboard, 0, len(members))
	for _, employeeID := range members {
		dashboard, err := s.Dashboard(ctx, employeeID, periodID)
		if err != nil {
			return nil, err
		}
		dashboards = append(dashboards, dashboard)
	}
	return dashboards, nil
}

func (s *Service) SetGradeBands(ctx context.Context, periodID string, bands []GradeBand) error {
	if err := ValidateBands(bands); err != nil {
		return err
	}
	return s.store.ReplaceGradeBands(ctx, periodID, bands)
}

// authorize checks that evaluatorID may write stage records for the work item.
func authorize(res Resolution, employeeID, evaluatorID, workItemID string, stage Stage) error {
	if stage == StageSelf {
		if evaluatorID != employeeID {
			return fmt.Errorf("%w: self evaluation must be written by the employee", ErrForbidden)
		}
		return nil
	}
	tier := TierPrimary
	if stage == StageSecondaryDownward {
		tier = TierSecondary
	}
	// Only the evaluator the dashboard reports as primary may write primary records.
	if primary, ok := primaryEvaluator(res.Bindings); tier == TierPrimary && ok && primary != evaluatorID {
		return fmt.Errorf("%w: %s is the primary evaluator for %s", ErrForbidden, primary, employeeID)
	}
	for _, b := range res.Bindings {
		if b.Tier != tier || b.EvaluatorID != evaluatorID {
			continue
		}
		if !b.ItemScoped() || *b.WorkItemID == workItemID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a %s evaluator for work item %s", ErrForbidden, evaluatorID, strings.ToLower(string(tier)), workItemID)
}

// UpsertRecord saves score and content for one work item, keeping the record id stable.
func (s *Service) UpsertRecord(ctx context.Context, in RecordInput) (EvaluationRecord, error) {
	if !in.Stage.Valid() {
		return EvaluationRecord{}, fmt.Errorf("%w: unknown stage %q", ErrValidation, in.Stage)
	}
	if in.EvaluatorID == "" || in.WorkItemID == "" {
		return EvaluationRecord{}, fmt.Errorf("%w: evaluator and work item are required", ErrValidation)
	}

	res, err := s.Resolve(ctx, in.EmployeeID, in.PeriodID)
	if err != nil {
		return EvaluationRecord{}, err
	}
	assigned := false
	for _, a := range res.Assignments {
		if a.WorkItemID == in.WorkItemID {
			assigned = true
			break
		}
	}
	if !assigned {
		return EvaluationRecord{}, fmt.Errorf("work item %s for employee %s: %w", in.WorkItemID, in.EmployeeID, ErrNotFound)
	}
	if err := authorize(res, in.EmployeeID, in.EvaluatorID, in.WorkItemID, in.Stage); err != nil {
		return EvaluationRecord{}, err
	}
	if in.RawScore != nil && (*in.RawScore < 0 || *in.RawScore > res.Period.MaxSelfEvaluationRate) {
		return EvaluationRecord{}, fmt.Errorf("%w: raw score %d outside 0..%d", ErrValidation, *in.RawScore, res.Period.MaxSelfEvaluationRate)
	}

	return s.store.UpsertRecord(ctx, in, s.now())
}

func normalizeTarget(stage Stage, target SelfTarget) (SelfTarget, error) {
	if stage != StageSelf {
		return "", nil
	}
	switch target {
	case "":
		return SelfTargetEvaluator, nil
	case SelfTargetEvaluator, SelfTargetManager:
		return target, nil
	}
	return "", fmt.Errorf("%w: unknown self submit target %q", ErrValidation, target)
}

func (s *Service) ownedRecord(ctx context.Context, recordID, evaluatorID string) (EvaluationRecord, error) {
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("record %s: %w", recordID, err)
	}
	if rec.EvaluatorID != evaluatorID {
		return EvaluationRecord{}, fmt.Errorf("%w: record %s belongs to another evaluator", ErrForbidden, recordID)
	}
	return rec, nil
}

// SubmitRecord is the single-record form of BulkSubmit. Unlike the batch it reports
// every problem as an error.
func (s *Service) SubmitRecord(ctx context.Context, recordID, evaluatorID string, target SelfTarget) (EvaluationRecord, error) {
	rec, err := s.ownedRecord(ctx, recordID, evaluatorID)
	if err != nil {
		return EvaluationRecord{}, err
	}
	target, err = normalizeTarget(rec.Stage, target)
	if err != nil {
		return EvaluationRecord{}, err
	}
	if rec.Submitted(target) {
		return EvaluationRecord{}, ErrAlreadySubmitted
	}
	period, err := s.store.GetPeriod(ctx, rec.PeriodID)
	if err != nil {
		return EvaluationRecord{}, err
	}
	if missingRequiredField(rec, period.RequireContent) {
		return EvaluationRecord{}, fmt.Errorf("%w: record %s is missing a required field", ErrValidation, recordID)
	}
	now := s.now()
	return s.store.SaveMarkers(ctx, applyMarker(rec, Marker{Stage: rec.Stage, Target: target, Set: true, At: now}), now)
}

// CancelSubmission withdraws a submission so the evaluator can edit the record again.
func (s *Service) CancelSubmission(ctx context.Context, recordID, evaluatorID string, target SelfTarget) (EvaluationRecord, error) {
	rec, err := s.ownedRecord(ctx, recordID, evaluatorID)
	if err != nil {
		return EvaluationRecord{}, err
	}
	target, err = normalizeTarget(rec.Stage, target)
	if err != nil {
		return EvaluationRecord{}, err
	}
	if !rec.Submitted(target) {
		return EvaluationRecord{}, fmt.Errorf("%w: record %s is not submitted", ErrValidation, recordID)
	}
	now := s.now()
	return s.store.SaveMarkers(ctx, applyMarker(rec, Marker{Stage: rec.Stage, Target: target, Set: false, At: now}), now)
}

func (s *Service) DeactivateRecord(ctx context.Context, recordID string) error {
	if err := s.store.DeactivateRecord(ctx, recordID, s.now()); err != nil {
		return fmt.Errorf("record %s: %w", recordID, err)
	}
	return nil
}

// BulkSubmit transitions every pending record of the evaluator, employee, period and stage
// independently. Per-record failures are returned in the result and never abort the batch.
func (s *Service) BulkSubmit(ctx context.Context, req BulkSubmitRequest) (BulkSubmitResult, error) {
	if !req.Stage.Valid() {
		return BulkSubmitResult{}, fmt.Errorf("%w: unknown stage %q", ErrValidation, req.Stage)
	}
	if req.EvaluatorID == "" || req.EmployeeID == "" {
		return BulkSubmitResult{}, fmt.Errorf("%w: evaluator and employee are required", ErrValidation)
	}
	if req.Stage == StageSelf && req.EvaluatorID != req.EmployeeID {
		return BulkSubmitResult{}, fmt.Errorf("%w: self evaluation must be submitted by the employee", ErrForbidden)
	}
	target, err := normalizeTarget(req.Stage, req.SelfTarget)
	if err != nil {
		return BulkSubmitResult{}, err
	}
	period, err := s.store.GetPeriod(ctx, req.PeriodID)
	if err != nil {
		return BulkSubmitResult{}, fmt.Errorf("period %s: %w", req.PeriodID, err)
	}

	records, err := s.store.ListRecords(ctx, RecordFilter{
		PeriodID:    req.PeriodID,
		EmployeeID:  req.EmployeeID,
		EvaluatorID: req.EvaluatorID,
		Stage:       req.Stage,
	})
	if err != nil {
		return BulkSubmitResult{}, err
	}
	var candidates []EvaluationRecord
	for _, rec := range records {
		if !rec.Submitted(target) {
			candidates = append(candidates, rec)
		}
	}

	reasons := make([]string, len(candidates))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, rec := range candidates {
		g.Go(func() error {
			reasons[i] = s.submitCandidate(ctx, rec, target, period.RequireContent)
			return nil
		})
	}
	_ = g.Wait()

	result := BulkSubmitResult{Failures: []SubmitFailure{}}
	for i, reason := range reasons {
		if reason == "" {
			result.SubmittedCount++
			continue
		}
		result.FailedCount++
		result.Failures = append(result.Failures, SubmitFailure{RecordID: candidates[i].ID, Reason: reason})
		slog.Debug("bulk submit record skipped", "recordId", candidates[i].ID, "reason", reason)
	}

	slog.Info("bulk submit finished",
		"periodId", req.PeriodID,
		"employeeId", req.EmployeeID,
		"evaluatorId", req.EvaluatorID,
		"stage", req.Stage,
		"submitted", result.SubmittedCount,
		"failed", result.FailedCount,
	)
	if s.recorder != nil {
		s.recorder.RecordBulkSubmit(result.SubmittedCount, result.FailedCount)
	}
	return result, nil
}

// submitCandidate returns the failure reason, or "" when the record was submitted.
func (s *Service) submitCandidate(ctx context.Context, rec EvaluationRecord, target SelfTarget, requireContent bool) string {
	if missingRequiredField(rec, requireContent) {
		return FailureMissingRequiredField
	}
	now := s.now()
	_, err := s.store.SaveMarkers(ctx, applyMarker(rec, Marker{Stage: rec.Stage, Target: target, Set: true, At: now}), now)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return FailureConflict
	case errors.Is(err, ErrNotFound):
		return FailureNotFound
	default:
		slog.Warn("bulk submit record failed", "recordId", rec.ID, "err", err)
		return FailureStoreError
	}
}
