package evaluation

// DeriveStatus maps assignment and record counts to a stage status.
func DeriveStatus(totalAssigned, existing, completed int) (StageStatus, bool) {
	submitted := totalAssigned > 0 && completed == totalAssigned
	switch {
	case totalAssigned == 0:
		return StatusNone, false
	case completed == 0:
		if existing > 0 {
			return StatusInProgress, false
		}
		return StatusNone, false
	case completed == totalAssigned:
		return StatusComplete, submitted
	default:
		return StatusInProgress, false
	}
}

// assignmentIndex maps work item ids to weights for one employee and period.
type assignmentIndex map[string]int

func indexAssignments(assignments []Assignment) assignmentIndex {
	idx := make(assignmentIndex, len(assignments))
	for _, a := range assignments {
		idx[a.WorkItemID] = a.Weight
	}
	return idx
}

// recordsFor keeps the active records of one stage and evaluator that belong to an assigned work item.
func (idx assignmentIndex) recordsFor(records []EvaluationRecord, stage Stage, evaluatorID string) []EvaluationRecord {
	var out []EvaluationRecord
	for _, rec := range records {
		if !rec.IsActive || rec.Stage != stage || rec.EvaluatorID != evaluatorID {
			continue
		}
		if _, ok := idx[rec.WorkItemID]; !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (idx assignmentIndex) scoreInputs(records []EvaluationRecord, target SelfTarget) []ScoreInput {
	inputs := make([]ScoreInput, 0, len(records))
	for _, rec := range records {
		inputs = append(inputs, ScoreInput{
			Weight:    idx[rec.WorkItemID],
			RawScore:  rec.RawScore,
			Completed: rec.Submitted(target),
		})
	}
	return inputs
}

func countSubmitted(records []EvaluationRecord, target SelfTarget) int {
	n := 0
	for _, rec := range records {
		if rec.Submitted(target) {
			n++
		}
	}
	return n
}

// BuildEvaluatorProgress derives one evaluator's progress from their already filtered records.
func BuildEvaluatorProgress(evaluatorID string, totalAssigned int, records []EvaluationRecord, target SelfTarget) EvaluatorProgress {
	completed := countSubmitted(records, target)
	status, submitted := DeriveStatus(totalAssigned, len(records), completed)
	return EvaluatorProgress{
		EvaluatorID:    evaluatorID,
		Status:         status,
		AssignedCount:  totalAssigned,
		CompletedCount: completed,
		IsSubmitted:    submitted,
	}
}

func scoreWhenSubmitted(submitted bool, inputs []ScoreInput, maxRate int, bands []GradeBand) (ScoreResult, error) {
	if !submitted {
		return ScoreResult{}, nil
	}
	return Resolve(inputs, maxRate, bands)
}

// SummarizeSelf reports both self-evaluation markers. Status, counts and score follow the manager marker.
func SummarizeSelf(period Period, employeeID string, assignments []Assignment, records []EvaluationRecord) (SelfSummary, error) {
	idx := indexAssignments(assignments)
	total := len(assignments)
	own := idx.recordsFor(records, StageSelf, employeeID)

	toEvaluator := countSubmitted(own, SelfTargetEvaluator)
	manager := BuildEvaluatorProgress("", total, own, SelfTargetManager)
	_, evaluatorSubmitted := DeriveStatus(total, len(own), toEvaluator)

	result, err := scoreWhenSubmitted(manager.IsSubmitted, idx.scoreInputs(own, SelfTargetManager), period.MaxSelfEvaluationRate, period.GradeBands)
	if err != nil {
		return SelfSummary{}, err
	}
	return SelfSummary{
		StageSummary: StageSummary{
			Status:             manager.Status,
			TotalAssignedCount: total,
			CompletedCount:     manager.CompletedCount,
			IsSubmitted:        manager.IsSubmitted,
			TotalScore:         result.Score,
			Grade:              result.Grade,
		},
		SubmittedToEvaluatorCount: toEvaluator,
		IsSubmittedToEvaluator:    evaluatorSubmitted,
		IsSubmittedToManager:      manager.IsSubmitted,
	}, nil
}

func primaryEvaluator(bindings []EvaluatorBinding) (string, bool) {
	for _, b := range bindings {
		if b.Tier == TierPrimary {
			return b.EvaluatorID, true
		}
	}
	return "", false
}

func secondaryEvaluators(bindings []EvaluatorBinding) []string {
	seen := map[string]bool{}
	var ids []string
	for _, b := range bindings {
		if b.Tier != TierSecondary || seen[b.EvaluatorID] {
			continue
		}
		seen[b.EvaluatorID] = true
		ids = append(ids, b.EvaluatorID)
	}
	return ids
}

func SummarizePrimary(period Period, assignments []Assignment, bindings []EvaluatorBinding, records []EvaluationRecord) (PrimarySummary, error) {
	total := len(assignments)
	evaluatorID, ok := primaryEvaluator(bindings)
	if !ok {
		return PrimarySummary{StageSummary: StageSummary{Status: StatusNone, TotalAssignedCount: total}}, nil
	}

	idx := indexAssignments(assignments)
	own := idx.recordsFor(records, StagePrimaryDownward, evaluatorID)
	progress := BuildEvaluatorProgress(evaluatorID, total, own, "")

	result, err := scoreWhenSubmitted(progress.IsSubmitted, idx.scoreInputs(own, ""), period.MaxSelfEvaluationRate, period.GradeBands)
	if err != nil {
		return PrimarySummary{}, err
	}
	return PrimarySummary{
		StageSummary: StageSummary{
			Status:             progress.Status,
			TotalAssignedCount: total,
			CompletedCount:     progress.CompletedCount,
			IsSubmitted:        progress.IsSubmitted,
			TotalScore:         result.Score,
			Grade:              result.Grade,
		},
		EvaluatorID: evaluatorID,
	}, nil
}

// AggregateSecondary rolls evaluator progress up. It is never vacuously submitted.
func AggregateSecondary(evaluators []EvaluatorProgress) (StageStatus, bool) {
	if len(evaluators) == 0 {
		return StatusNone, false
	}
	allSubmitted := true
	anyStarted := false
	for _, ev := range evaluators {
		if !ev.IsSubmitted {
			allSubmitted = false
		}
		if ev.Status != StatusNone {
			anyStarted = true
		}
	}
	switch {
	case allSubmitted:
		return StatusComplete, true
	case anyStarted:
		return StatusInProgress, false
	default:
		return StatusNone, false
	}
}

// SummarizeSecondary scores the mean of every secondary evaluator's weighted score once all have submitted.
func SummarizeSecondary(period Period, assignments []Assignment, bindings []EvaluatorBinding, records []EvaluationRecord) (SecondarySummary, error) {
	idx := indexAssignments(assignments)
	total := len(assignments)

	ids := secondaryEvaluators(bindings)
	evaluators := make([]EvaluatorProgress, 0, len(ids))
	var inputs []ScoreInput
	completed := 0
	for _, id := range ids {
		own := idx.recordsFor(records, StageSecondaryDownward, id)
		// Item-scoped evaluators are measured against the employee's full assignment count,
		// so they reach COMPLETE only when their subset covers every assignment.
		// TODO: use the binding's own item count once scoped denominators are agreed with HR.
		progress := BuildEvaluatorProgress(id, total, own, "")
		evaluators = append(evaluators, progress)
		completed += progress.CompletedCount
		inputs = append(inputs, idx.scoreInputs(own, "")...)
	}

	status, submitted := AggregateSecondary(evaluators)
	summary := SecondarySummary{
		StageSummary: StageSummary{
			Status:             status,
			TotalAssignedCount: total,
			CompletedCount:     completed,
			IsSubmitted:        submitted,
		},
		Evaluators: evaluators,
	}
	if !submitted {
		return summary, nil
	}
	result, err := Resolve(inputs, period.MaxSelfEvaluationRate*len(evaluators), period.GradeBands)
	if err != nil {
		return SecondarySummary{}, err
	}
	summary.TotalScore = result.Score
	summary.Grade = result.Grade
	return summary, nil
}

// BuildDashboard summarizes every stage for one employee. SELF records carry the employee as evaluator.
func BuildDashboard(res Resolution, employeeID string, records []EvaluationRecord) (Dashboard, error) {
	self, err := SummarizeSelf(res.Period, employeeID, res.Assignments, records)
	if err != nil {
		return Dashboard{}, err
	}
	primary, err := SummarizePrimary(res.Period, res.Assignments, res.Bindings, records)
	if err != nil {
		return Dashboard{}, err
	}
	secondary, err := SummarizeSecondary(res.Period, res.Assignments, res.Bindings, records)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		EmployeeID: employeeID,
		PeriodID:   res.Period.ID,
		Self:       self,
		Primary:    primary,
		Secondary:  secondary,
	}, nil
}
