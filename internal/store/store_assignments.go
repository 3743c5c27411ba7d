package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
)

// CreateAssignment links a specialist to an experiment, freezing the
// specialist's expertise profile into the snapshot columns.
func (s *Store) CreateAssignment(ctx context.Context, experimentID int64, specialist *User) (*Assignment, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (
            experiment_id, specialist_id, status,
            expertise_level_snapshot, years_experience_snapshot, training_date_snapshot,
            created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		experimentID,
		specialist.ID,
		string(AssignmentAssigned),
		nullableString(specialist.ExpertiseLevel),
		nullableInt(specialist.YearsExperience),
		nullableString(specialist.TrainingDate),
		nowTimestamp(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("specialist %d already assigned to experiment %d: %w",
				specialist.ID, experimentID, ErrConflict)
		}
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAssignmentByID(ctx, id)
}

// GetAssignmentByID returns an assignment by primary key.
func (s *Store) GetAssignmentByID(ctx context.Context, id int64) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx, assignmentSelect+" WHERE id = ?", id)
	return scanAssignment(row)
}

// GetAssignment returns the assignment of a specialist within an experiment.
func (s *Store) GetAssignment(ctx context.Context, experimentID, specialistID int64) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		assignmentSelect+" WHERE experiment_id = ? AND specialist_id = ?",
		experimentID, specialistID,
	)
	return scanAssignment(row)
}

// ListSpecialistAssignments returns a specialist's assignments for active or
// paused experiments, newest first, with experiment details joined.
func (s *Store) ListSpecialistAssignments(ctx context.Context, specialistID int64) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.experiment_id, a.specialist_id, a.status, a.randomization_seed,
            a.expertise_level_snapshot, a.years_experience_snapshot, a.training_date_snapshot,
            a.started_at, a.created_at,
            e.name, e.status
         FROM assignments a
         JOIN experiments e ON a.experiment_id = e.id
         WHERE a.specialist_id = ? AND e.status IN (?, ?)
         ORDER BY a.created_at DESC`,
		specialistID, string(ExperimentActive), string(ExperimentPaused),
	)
	if err != nil {
		return nil, fmt.Errorf("list specialist assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		assignment, err := scanAssignmentWithExperiment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}

// ListExperimentAssignments returns all assignments of an experiment with
// specialist details, ordered by specialist name.
func (s *Store) ListExperimentAssignments(ctx context.Context, experimentID int64) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.experiment_id, a.specialist_id, a.status, a.randomization_seed,
            a.expertise_level_snapshot, a.years_experience_snapshot, a.training_date_snapshot,
            a.started_at, a.created_at,
            u.name, u.email
         FROM assignments a
         JOIN users u ON a.specialist_id = u.id
         WHERE a.experiment_id = ?
         ORDER BY u.name`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list experiment assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		assignment, err := scanAssignmentWithSpecialist(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}

// DeleteAssignment removes an assignment and its generated order/sessions.
func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("assignment %d: %w", id, ErrNotFound)
	}
	return nil
}

// StartAssignment marks an assignment in progress, records the randomization
// seed, and generates the specialist's shuffled sample order from it. The
// seed persists so the sequence is reproducible. The supplied rng must be
// seeded by the caller; the store never touches global randomness.
func (s *Store) StartAssignment(ctx context.Context, assignmentID, seed int64, rng *rand.Rand) error {
	assignment, err := s.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return err
	}

	entries, err := s.ExperimentSamples(ctx, assignment.ExperimentID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("experiment %d has no samples selected", assignment.ExperimentID)
	}

	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status = ?, randomization_seed = ?, started_at = ? WHERE id = ?`,
		string(AssignmentInProgress), seed, nowTimestamp(), assignmentID,
	); err != nil {
		return fmt.Errorf("start assignment: %w", err)
	}

	for order, experimentSampleID := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO specialist_sample_order (assignment_id, experiment_sample_id, specialist_order)
             VALUES (?, ?, ?)`,
			assignmentID, experimentSampleID, order+1,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("assignment %d already started: %w", assignmentID, ErrConflict)
			}
			return fmt.Errorf("insert sample order: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit start assignment: %w", err)
	}
	return nil
}

// SpecialistSampleOrder returns the randomized working sequence of an assignment.
func (s *Store) SpecialistSampleOrder(ctx context.Context, assignmentID int64) ([]*OrderedSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sso.specialist_order, sso.experiment_sample_id,
            s.id, s.drug_name, s.drug_name_display, s.card_id, s.filename,
            s.image_path, s.quantity, s.image_type, s.created_at
         FROM specialist_sample_order sso
         JOIN experiment_samples es ON sso.experiment_sample_id = es.id
         JOIN samples s ON es.sample_id = s.id
         WHERE sso.assignment_id = ?
         ORDER BY sso.specialist_order`,
		assignmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("read sample order: %w", err)
	}
	defer rows.Close()

	var ordered []*OrderedSample
	for rows.Next() {
		var (
			entry     OrderedSample
			quantity  sql.NullInt64
			imageType sql.NullString
			createdAt string
		)
		err := rows.Scan(
			&entry.SpecialistOrder, &entry.ExperimentSampleID,
			&entry.Sample.ID, &entry.Sample.DrugName, &entry.Sample.DrugNameDisplay,
			&entry.Sample.CardID, &entry.Sample.Filename, &entry.Sample.ImagePath,
			&quantity, &imageType, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ordered sample: %w", err)
		}
		entry.Sample.Quantity = intPointer(quantity)
		entry.Sample.ImageType = imageType.String
		if entry.Sample.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		ordered = append(ordered, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample order: %w", err)
	}
	return ordered, nil
}

// AssignmentProgress reports completion counts for an assignment.
func (s *Store) AssignmentProgress(ctx context.Context, assignmentID int64) (*AssignmentProgress, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM specialist_sample_order WHERE assignment_id = ?",
		assignmentID,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}

	var completed int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM annotation_sessions WHERE assignment_id = ? AND status = ?",
		assignmentID, string(SessionCompleted),
	).Scan(&completed)
	if err != nil {
		return nil, fmt.Errorf("count completed: %w", err)
	}

	progress := &AssignmentProgress{
		Total:     total,
		Completed: completed,
		Remaining: total - completed,
	}
	if total > 0 {
		progress.Percentage = roundPercent(completed, total)
	}
	return progress, nil
}

// ExperimentProgress aggregates specialist completion across an experiment.
// Specialists who have not started yet are measured against the experiment's
// sample count.
func (s *Store) ExperimentProgress(ctx context.Context, experimentID int64) (*ExperimentProgress, error) {
	var sampleCount int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM experiment_samples WHERE experiment_id = ?",
		experimentID,
	).Scan(&sampleCount)
	if err != nil {
		return nil, fmt.Errorf("count experiment samples: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, u.name, a.status, a.started_at,
            (SELECT COUNT(*) FROM specialist_sample_order WHERE assignment_id = a.id),
            (SELECT COUNT(*) FROM annotation_sessions WHERE assignment_id = a.id AND status = ?)
         FROM assignments a
         JOIN users u ON a.specialist_id = u.id
         WHERE a.experiment_id = ?
         ORDER BY u.name`,
		string(SessionCompleted), experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("read experiment progress: %w", err)
	}
	defer rows.Close()

	progress := &ExperimentProgress{}
	for rows.Next() {
		var (
			entry     SpecialistProgress
			status    string
			startedAt sql.NullString
			started   int
		)
		if err := rows.Scan(&entry.AssignmentID, &entry.SpecialistName, &status,
			&startedAt, &started, &entry.CompletedSamples); err != nil {
			return nil, fmt.Errorf("scan specialist progress: %w", err)
		}
		entry.Status = AssignmentStatus(status)
		if entry.StartedAt, err = parseOptionalTimestamp(startedAt); err != nil {
			return nil, err
		}
		entry.TotalSamples = started
		if started == 0 {
			entry.TotalSamples = sampleCount
		}
		if entry.TotalSamples > 0 {
			entry.Percentage = roundPercent(entry.CompletedSamples, entry.TotalSamples)
		}
		progress.Specialists = append(progress.Specialists, entry)
		progress.TotalAnnotations += entry.TotalSamples
		progress.CompletedAnnotations += entry.CompletedSamples
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiment progress: %w", err)
	}
	if progress.TotalAnnotations > 0 {
		progress.OverallPercentage = roundPercent(progress.CompletedAnnotations, progress.TotalAnnotations)
	}
	return progress, nil
}

const assignmentSelect = `SELECT id, experiment_id, specialist_id, status,
    randomization_seed, expertise_level_snapshot, years_experience_snapshot,
    training_date_snapshot, started_at, created_at FROM assignments`

func scanAssignment(row rowScanner) (*Assignment, error) {
	var (
		assignment      Assignment
		status          string
		seed            sql.NullInt64
		expertise       sql.NullString
		yearsExperience sql.NullInt64
		trainingDate    sql.NullString
		startedAt       sql.NullString
		createdAt       string
	)
	err := row.Scan(
		&assignment.ID, &assignment.ExperimentID, &assignment.SpecialistID, &status,
		&seed, &expertise, &yearsExperience, &trainingDate, &startedAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	assignment.Status = AssignmentStatus(status)
	assignment.RandomizationSeed = int64Pointer(seed)
	assignment.ExpertiseLevelSnapshot = expertise.String
	assignment.YearsExperienceSnapshot = intPointer(yearsExperience)
	assignment.TrainingDateSnapshot = trainingDate.String
	if assignment.StartedAt, err = parseOptionalTimestamp(startedAt); err != nil {
		return nil, err
	}
	if assignment.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func scanAssignmentWithExperiment(row rowScanner) (*Assignment, error) {
	var (
		assignment      Assignment
		status          string
		seed            sql.NullInt64
		expertise       sql.NullString
		yearsExperience sql.NullInt64
		trainingDate    sql.NullString
		startedAt       sql.NullString
		createdAt       string
		expStatus       string
	)
	err := row.Scan(
		&assignment.ID, &assignment.ExperimentID, &assignment.SpecialistID, &status,
		&seed, &expertise, &yearsExperience, &trainingDate, &startedAt, &createdAt,
		&assignment.ExperimentName, &expStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	assignment.Status = AssignmentStatus(status)
	assignment.RandomizationSeed = int64Pointer(seed)
	assignment.ExpertiseLevelSnapshot = expertise.String
	assignment.YearsExperienceSnapshot = intPointer(yearsExperience)
	assignment.TrainingDateSnapshot = trainingDate.String
	assignment.ExperimentStatus = ExperimentStatus(expStatus)
	if assignment.StartedAt, err = parseOptionalTimestamp(startedAt); err != nil {
		return nil, err
	}
	if assignment.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func scanAssignmentWithSpecialist(row rowScanner) (*Assignment, error) {
	var (
		assignment      Assignment
		status          string
		seed            sql.NullInt64
		expertise       sql.NullString
		yearsExperience sql.NullInt64
		trainingDate    sql.NullString
		startedAt       sql.NullString
		createdAt       string
	)
	err := row.Scan(
		&assignment.ID, &assignment.ExperimentID, &assignment.SpecialistID, &status,
		&seed, &expertise, &yearsExperience, &trainingDate, &startedAt, &createdAt,
		&assignment.SpecialistName, &assignment.SpecialistEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	assignment.Status = AssignmentStatus(status)
	assignment.RandomizationSeed = int64Pointer(seed)
	assignment.ExpertiseLevelSnapshot = expertise.String
	assignment.YearsExperienceSnapshot = intPointer(yearsExperience)
	assignment.TrainingDateSnapshot = trainingDate.String
	if assignment.StartedAt, err = parseOptionalTimestamp(startedAt); err != nil {
		return nil, err
	}
	if assignment.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func roundPercent(completed, total int) float64 {
	return float64(int(float64(completed)/float64(total)*1000+0.5)) / 10
}
