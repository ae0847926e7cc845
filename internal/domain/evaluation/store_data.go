package evaluation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const recordColumns = `
    id::text, period_id::text, employee_id, evaluator_id, work_item_id, stage,
    raw_score, content,
    submitted_to_evaluator, submitted_to_evaluator_at,
    submitted_to_manager, submitted_to_manager_at,
    is_completed, completed_at,
    is_active, version, created_at, updated_at`

func scanRecord(row pgx.Row) (EvaluationRecord, error) {
	var rec EvaluationRecord
	var stage string
	err := row.Scan(
		&rec.ID, &rec.PeriodID, &rec.EmployeeID, &rec.EvaluatorID, &rec.WorkItemID, &stage,
		&rec.RawScore, &rec.Content,
		&rec.SubmittedToEvaluator, &rec.SubmittedToEvaluatorAt,
		&rec.SubmittedToManager, &rec.SubmittedToManagerAt,
		&rec.IsCompleted, &rec.CompletedAt,
		&rec.IsActive, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	rec.Stage = Stage(stage)
	return rec, err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) GetPeriod(ctx context.Context, periodID string) (Period, error) {
	var period Period
	if err := s.DB.QueryRow(ctx, `
    SELECT id::text, name, max_self_evaluation_rate, require_content
    FROM evaluation_periods
    WHERE id::text = $1
  `, periodID).Scan(&period.ID, &period.Name, &period.MaxSelfEvaluationRate, &period.RequireContent); err != nil {
		return Period{}, notFound(err)
	}

	rows, err := s.DB.Query(ctx, `
    SELECT grade, min_score, max_score
    FROM period_grade_bands
    WHERE period_id::text = $1
    ORDER BY position
  `, periodID)
	if err != nil {
		return Period{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var band GradeBand
		if err := rows.Scan(&band.Grade, &band.MinScore, &band.MaxScore); err != nil {
			return Period{}, err
		}
		period.GradeBands = append(period.GradeBands, band)
	}
	return period, rows.Err()
}

func (s *Store) ReplaceGradeBands(ctx context.Context, periodID string, bands []GradeBand) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx, `
      SELECT id::text FROM evaluation_periods WHERE id::text = $1 FOR UPDATE
    `, periodID).Scan(&id); err != nil {
			return notFound(err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM period_grade_bands WHERE period_id = $1", id); err != nil {
			return err
		}
		for i, band := range bands {
			if _, err := tx.Exec(ctx, `
        INSERT INTO period_grade_bands (period_id, position, grade, min_score, max_score)
        VALUES ($1,$2,$3,$4,$5)
      `, id, i, band.Grade, band.MinScore, band.MaxScore); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) IsPeriodMember(ctx context.Context, periodID, employeeID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM period_members
    WHERE period_id::text = $1 AND employee_id = $2 AND is_active
  `, periodID, employeeID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) ListPeriodMembers(ctx context.Context, periodID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id
    FROM period_members
    WHERE period_id::text = $1 AND is_active
    ORDER BY employee_id
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListAssignments(ctx context.Context, periodID, employeeID string) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, employee_id, period_id::text, work_item_id, weight
    FROM work_item_assignments
    WHERE period_id::text = $1 AND employee_id = $2 AND is_active
    ORDER BY position, created_at
  `, periodID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.PeriodID, &a.WorkItemID, &a.Weight); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *Store) ListBindings(ctx context.Context, periodID, employeeID string) ([]EvaluatorBinding, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT period_id::text, employee_id, evaluator_id, tier, work_item_id
    FROM evaluator_bindings
    WHERE period_id::text = $1 AND employee_id = $2 AND is_active
    ORDER BY created_at, evaluator_id
  `, periodID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []EvaluatorBinding
	for rows.Next() {
		var b EvaluatorBinding
		var tier string
		if err := rows.Scan(&b.PeriodID, &b.EmployeeID, &b.EvaluatorID, &tier, &b.WorkItemID); err != nil {
			return nil, err
		}
		b.Tier = Tier(tier)
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func (s *Store) ListRecords(ctx context.Context, filter RecordFilter) ([]EvaluationRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+recordColumns+`
    FROM evaluation_records
    WHERE is_active
      AND ($1 = '' OR period_id::text = $1)
      AND ($2 = '' OR employee_id = $2)
      AND ($3 = '' OR evaluator_id = $3)
      AND ($4 = '' OR stage = $4)
    ORDER BY created_at, id
  `, filter.PeriodID, filter.EmployeeID, filter.EvaluatorID, string(filter.Stage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EvaluationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) GetRecord(ctx context.Context, recordID string) (EvaluationRecord, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, `
    SELECT`+recordColumns+`
    FROM evaluation_records
    WHERE id::text = $1 AND is_active
  `, recordID))
	if err != nil {
		return EvaluationRecord{}, notFound(err)
	}
	return rec, nil
}

func (s *Store) UpsertRecord(ctx context.Context, in RecordInput, now time.Time) (EvaluationRecord, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, `
    INSERT INTO evaluation_records (period_id, employee_id, evaluator_id, work_item_id, stage, raw_score, content, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
    ON CONFLICT (period_id, employee_id, evaluator_id, work_item_id, stage) WHERE is_active
    DO UPDATE SET raw_score = EXCLUDED.raw_score,
                  content = EXCLUDED.content,
                  version = evaluation_records.version + 1,
                  updated_at = EXCLUDED.updated_at
    WHERE NOT (evaluation_records.is_completed
               OR evaluation_records.submitted_to_evaluator
               OR evaluation_records.submitted_to_manager)
    RETURNING`+recordColumns,
		in.PeriodID, in.EmployeeID, in.EvaluatorID, in.WorkItemID, string(in.Stage), in.RawScore, in.Content, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return EvaluationRecord{}, ErrAlreadySubmitted
	}
	if err != nil {
		return EvaluationRecord{}, err
	}
	return rec, nil
}

func (s *Store) SaveMarkers(ctx context.Context, rec EvaluationRecord, now time.Time) (EvaluationRecord, error) {
	saved, err := scanRecord(s.DB.QueryRow(ctx, `
    UPDATE evaluation_records
    SET submitted_to_evaluator = $1, submitted_to_evaluator_at = $2,
        submitted_to_manager = $3, submitted_to_manager_at = $4,
        is_completed = $5, completed_at = $6,
        version = version + 1, updated_at = $7
    WHERE id::text = $8 AND version = $9 AND is_active
    RETURNING`+recordColumns,
		rec.SubmittedToEvaluator, rec.SubmittedToEvaluatorAt,
		rec.SubmittedToManager, rec.SubmittedToManagerAt,
		rec.IsCompleted, rec.CompletedAt,
		now, rec.ID, rec.Version))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return EvaluationRecord{}, err
	}

	var active bool
	if err := s.DB.QueryRow(ctx, "SELECT is_active FROM evaluation_records WHERE id::text = $1", rec.ID).Scan(&active); err != nil {
		return EvaluationRecord{}, notFound(err)
	}
	if !active {
		return EvaluationRecord{}, ErrNotFound
	}
	return EvaluationRecord{}, ErrConflict
}

func (s *Store) DeactivateRecord(ctx context.Context, recordID string, now time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE evaluation_records
    SET is_active = false, version = version + 1, updated_at = $1
    WHERE id::text = $2 AND is_active
  `, now, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
