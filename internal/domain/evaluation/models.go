package evaluation

import "time"

type GradeBand struct {
	Grade    string `json:"grade"`
	MinScore int    `json:"minScore"`
	MaxScore int    `json:"maxScore"`
}

type Period struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	MaxSelfEvaluationRate int         `json:"maxSelfEvaluationRate"`
	RequireContent        bool        `json:"requireContent"`
	GradeBands            []GradeBand `json:"gradeBands"`
}

type Assignment struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employeeId"`
	PeriodID   string `json:"periodId"`
	WorkItemID string `json:"workItemId"`
	Weight     int    `json:"weight"`
}

type EvaluatorBinding struct {
	PeriodID    string  `json:"periodId"`
	EmployeeID  string  `json:"employeeId"`
	EvaluatorID string  `json:"evaluatorId"`
	Tier        Tier    `json:"tier"`
	WorkItemID  *string `json:"workItemId,omitempty"`
}

// ItemScoped reports whether the binding covers a single work item only.
func (b EvaluatorBinding) ItemScoped() bool {
	return b.WorkItemID != nil
}

// RecordKey is the natural key of an evaluation record.
type RecordKey struct {
	PeriodID    string
	EmployeeID  string
	EvaluatorID string
	WorkItemID  string
	Stage       Stage
}

type EvaluationRecord struct {
	ID                     string     `json:"id"`
	PeriodID               string     `json:"periodId"`
	EmployeeID             string     `json:"employeeId"`
	EvaluatorID            string     `json:"evaluatorId"`
	WorkItemID             string     `json:"workItemId"`
	Stage                  Stage      `json:"stage"`
	RawScore               *int       `json:"rawScore"`
	Content                *string    `json:"content"`
	SubmittedToEvaluator   bool       `json:"submittedToEvaluator"`
	SubmittedToEvaluatorAt *time.Time `json:"submittedToEvaluatorAt,omitempty"`
	SubmittedToManager     bool       `json:"submittedToManager"`
	SubmittedToManagerAt   *time.Time `json:"submittedToManagerAt,omitempty"`
	IsCompleted            bool       `json:"isCompleted"`
	CompletedAt            *time.Time `json:"completedAt,omitempty"`
	IsActive               bool       `json:"isActive"`
	Version                int        `json:"version"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

func (r EvaluationRecord) Key() RecordKey {
	return RecordKey{
		PeriodID:    r.PeriodID,
		EmployeeID:  r.EmployeeID,
		EvaluatorID: r.EvaluatorID,
		WorkItemID:  r.WorkItemID,
		Stage:       r.Stage,
	}
}

// Submitted reports whether the record carries the marker that target names.
// Downward stages ignore target.
func (r EvaluationRecord) Submitted(target SelfTarget) bool {
	if r.Stage == StageSelf {
		if target == SelfTargetManager {
			return r.SubmittedToManager
		}
		return r.SubmittedToEvaluator
	}
	return r.IsCompleted
}

// RecordInput is an evaluator's save of score and content for one work item.
type RecordInput struct {
	PeriodID    string
	EmployeeID  string
	EvaluatorID string
	WorkItemID  string
	Stage       Stage
	RawScore    *int
	Content     *string
}

func (in RecordInput) Key() RecordKey {
	return RecordKey{
		PeriodID:    in.PeriodID,
		EmployeeID:  in.EmployeeID,
		EvaluatorID: in.EvaluatorID,
		WorkItemID:  in.WorkItemID,
		Stage:       in.Stage,
	}
}

// RecordFilter selects active records. Empty fields match everything.
type RecordFilter struct {
	PeriodID    string
	EmployeeID  string
	EvaluatorID string
	Stage       Stage
}

// Marker is a submission state change applied to one record.
type Marker struct {
	Stage  Stage
	Target SelfTarget
	Set    bool
	At     time.Time
}

type Resolution struct {
	Period      Period             `json:"period"`
	Assignments []Assignment       `json:"assignments"`
	Bindings    []EvaluatorBinding `json:"bindings"`
}

type ScoreResult struct {
	Score *int    `json:"score"`
	Grade *string `json:"grade"`
}

type EvaluatorProgress struct {
	EvaluatorID    string      `json:"evaluatorId"`
	Status         StageStatus `json:"status"`
	AssignedCount  int         `json:"assignedCount"`
	CompletedCount int         `json:"completedCount"`
	IsSubmitted    bool        `json:"isSubmitted"`
}

type StageSummary struct {
	Status             StageStatus `json:"status"`
	TotalAssignedCount int         `json:"totalAssignedCount"`
	// CompletedCount is summed over every evaluator of the stage, so on the
	// secondary stage it can exceed TotalAssignedCount, which stays per employee.
	// Per-evaluator ratios are in SecondarySummary.Evaluators.
	CompletedCount     int         `json:"completedCount"`
	IsSubmitted        bool        `json:"isSubmitted"`
	TotalScore         *int        `json:"totalScore"`
	Grade              *string     `json:"grade"`
}

type SelfSummary struct {
	StageSummary
	SubmittedToEvaluatorCount int  `json:"submittedToEvaluatorCount"`
	IsSubmittedToEvaluator    bool `json:"isSubmittedToEvaluator"`
	IsSubmittedToManager      bool `json:"isSubmittedToManager"`
}

type PrimarySummary struct {
	StageSummary
	EvaluatorID string `json:"evaluatorId,omitempty"`
}

type SecondarySummary struct {
	StageSummary
	Evaluators []EvaluatorProgress `json:"evaluators"`
}

type Dashboard struct {
	EmployeeID string           `json:"employeeId"`
	PeriodID   string           `json:"periodId"`
	Self       SelfSummary      `json:"self"`
	Primary    PrimarySummary   `json:"primary"`
	Secondary  SecondarySummary `json:"secondary"`
}

type BulkSubmitRequest struct {
	EvaluatorID string
	EmployeeID  string
	PeriodID    string
	Stage       Stage
	SelfTarget  SelfTarget
}

type SubmitFailure struct {
	RecordID string `json:"recordId"`
	Reason   string `json:"reason"`
}

type BulkSubmitResult struct {
	SubmittedCount int             `json:"submittedCount"`
	FailedCount    int             `json:"failedCount"`
	Failures       []SubmitFailure `json:"failures"`
}
