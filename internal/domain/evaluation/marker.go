package evaluation

// applyMarker returns rec with the marker applied. Submitting a self-evaluation to the
// manager also submits it to the evaluator; withdrawing it from the evaluator also
// withdraws it from the manager.
func applyMarker(rec EvaluationRecord, m Marker) EvaluationRecord {
	at := m.At
	if rec.Stage.Downward() {
		rec.IsCompleted = m.Set
		rec.CompletedAt = nil
		if m.Set {
			rec.CompletedAt = &at
		}
		return rec
	}

	switch {
	case m.Set && m.Target == SelfTargetManager:
		if !rec.SubmittedToEvaluator {
			rec.SubmittedToEvaluator = true
			rec.SubmittedToEvaluatorAt = &at
		}
		rec.SubmittedToManager = true
		rec.SubmittedToManagerAt = &at
	case m.Set:
		rec.SubmittedToEvaluator = true
		rec.SubmittedToEvaluatorAt = &at
	case m.Target == SelfTargetManager:
		rec.SubmittedToManager = false
		rec.SubmittedToManagerAt = nil
	default:
		rec.SubmittedToEvaluator = false
		rec.SubmittedToEvaluatorAt = nil
		rec.SubmittedToManager = false
		rec.SubmittedToManagerAt = nil
	}
	return rec
}

// anySubmitted reports whether the record carries any submission marker.
func anySubmitted(rec EvaluationRecord) bool {
	return rec.IsCompleted || rec.SubmittedToEvaluator || rec.SubmittedToManager
}

// missingRequiredField reports whether the record cannot be submitted yet.
func missingRequiredField(rec EvaluationRecord, requireContent bool) bool {
	if rec.RawScore == nil {
		return true
	}
	if requireContent && rec.Stage.Downward() {
		return rec.Content == nil || *rec.Content == ""
	}
	return false
}
