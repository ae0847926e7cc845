package evaluation

type Stage string

const (
	StageSelf              Stage = "SELF"
	StagePrimaryDownward   Stage = "PRIMARY_DOWNWARD"
	StageSecondaryDownward Stage = "SECONDARY_DOWNWARD"
)

func (s Stage) Valid() bool {
	switch s {
	case StageSelf, StagePrimaryDownward, StageSecondaryDownward:
		return true
	}
	return false
}

// Downward reports whether the stage is scored by a superior.
func (s Stage) Downward() bool {
	return s == StagePrimaryDownward || s == StageSecondaryDownward
}

type Tier string

const (
	TierPrimary   Tier = "PRIMARY"
	TierSecondary Tier = "SECONDARY"
)

type StageStatus string

const (
	StatusNone       StageStatus = "NONE"
	StatusInProgress StageStatus = "IN_PROGRESS"
	StatusComplete   StageStatus = "COMPLETE"
)

// SelfTarget selects which self-evaluation marker a submit operates on.
type SelfTarget string

const (
	SelfTargetEvaluator SelfTarget = "evaluator"
	SelfTargetManager   SelfTarget = "manager"
)

const (
	FailureMissingRequiredField = "MissingRequiredField"
	FailureConflict             = "Conflict"
	FailureNotFound             = "NotFound"
	FailureStoreError           = "StoreError"
)

const (
	DefaultBulkSubmitConcurrency = 4
	maxGradeScore                = 100
)
