package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NewExperiment carries the fields to create an experiment.
type NewExperiment struct {
	Name         string
	Description  string
	Instructions string
	CreatedBy    int64
}

// ExperimentUpdate carries optional field updates; nil fields are left untouched.
type ExperimentUpdate struct {
	Name         *string
	Description  *string
	Instructions *string
}

// CreateExperiment inserts a new experiment in draft status.
func (s *Store) CreateExperiment(ctx context.Context, exp NewExperiment) (*Experiment, error) {
	timestamp := nowTimestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, description, instructions, status, created_by, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exp.Name,
		nullableString(exp.Description),
		nullableString(exp.Instructions),
		string(ExperimentDraft),
		exp.CreatedBy,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert experiment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetExperiment(ctx, id)
}

// GetExperiment returns an experiment by ID.
func (s *Store) GetExperiment(ctx context.Context, id int64) (*Experiment, error) {
	row := s.db.QueryRowContext(ctx, experimentSelect+" WHERE id = ?", id)
	return scanExperiment(row)
}

// ListExperiments returns all experiments, newest first.
func (s *Store) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	rows, err := s.db.QueryContext(ctx, experimentSelect+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return experiments, nil
}

// UpdateExperiment applies the non-nil fields of update.
func (s *Store) UpdateExperiment(ctx context.Context, id int64, update ExperimentUpdate) (*Experiment, error) {
	assignments := make([]string, 0, 3)
	params := make([]any, 0, 4)

	if update.Name != nil {
		assignments = append(assignments, "name = ?")
		params = append(params, *update.Name)
	}
	if update.Description != nil {
		assignments = append(assignments, "description = ?")
		params = append(params, nullableString(*update.Description))
	}
	if update.Instructions != nil {
		assignments = append(assignments, "instructions = ?")
		params = append(params, nullableString(*update.Instructions))
	}
	if len(assignments) == 0 {
		return s.GetExperiment(ctx, id)
	}

	assignments = append(assignments, "updated_at = ?")
	params = append(params, nowTimestamp(), id)

	query := "UPDATE experiments SET " + strings.Join(assignments, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("update experiment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	return s.GetExperiment(ctx, id)
}

// UpdateExperimentStatus transitions an experiment's lifecycle status.
func (s *Store) UpdateExperimentStatus(ctx context.Context, id int64, status ExperimentStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE experiments SET status = ?, updated_at = ? WHERE id = ?",
		string(status), nowTimestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("update experiment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteExperiment removes an experiment and, via cascades, its sample
// selection, assignments, orders, and sessions.
func (s *Store) DeleteExperiment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM experiments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetExperimentSamples replaces an experiment's sample selection, assigning
// display order by position in sampleIDs.
func (s *Store) SetExperimentSamples(ctx context.Context, experimentID int64, sampleIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM experiment_samples WHERE experiment_id = ?", experimentID,
	); err != nil {
		return fmt.Errorf("clear experiment samples: %w", err)
	}

	for order, sampleID := range sampleIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO experiment_samples (experiment_id, sample_id, display_order) VALUES (?, ?, ?)",
			experimentID, sampleID, order+1,
		); err != nil {
			return fmt.Errorf("insert experiment sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit experiment samples: %w", err)
	}
	return nil
}

// ExperimentSamples returns an experiment's samples in display order.
func (s *Store) ExperimentSamples(ctx context.Context, experimentID int64) ([]*ExperimentSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT es.id, es.experiment_id, es.display_order,
            s.id, s.drug_name, s.drug_name_display, s.card_id, s.filename,
            s.image_path, s.quantity, s.image_type, s.created_at
         FROM experiment_samples es
         JOIN samples s ON es.sample_id = s.id
         WHERE es.experiment_id = ?
         ORDER BY es.display_order`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list experiment samples: %w", err)
	}
	defer rows.Close()

	var samples []*ExperimentSample
	for rows.Next() {
		entry, err := scanExperimentSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiment samples: %w", err)
	}
	return samples, nil
}

const experimentSelect = `SELECT id, name, description, instructions, status,
    created_by, created_at, updated_at FROM experiments`

func scanExperiment(row rowScanner) (*Experiment, error) {
	var (
		exp          Experiment
		description  sql.NullString
		instructions sql.NullString
		status       string
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(
		&exp.ID, &exp.Name, &description, &instructions, &status,
		&exp.CreatedBy, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("experiment: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan experiment: %w", err)
	}
	exp.Description = description.String
	exp.Instructions = instructions.String
	exp.Status = ExperimentStatus(status)
	if exp.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if exp.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &exp, nil
}

func scanExperimentSample(row rowScanner) (*ExperimentSample, error) {
	var (
		entry     ExperimentSample
		quantity  sql.NullInt64
		imageType sql.NullString
		createdAt string
	)
	err := row.Scan(
		&entry.ID, &entry.ExperimentID, &entry.DisplayOrder,
		&entry.Sample.ID, &entry.Sample.DrugName, &entry.Sample.DrugNameDisplay,
		&entry.Sample.CardID, &entry.Sample.Filename, &entry.Sample.ImagePath,
		&quantity, &imageType, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan experiment sample: %w", err)
	}
	entry.Sample.Quantity = intPointer(quantity)
	entry.Sample.ImageType = imageType.String
	if entry.Sample.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &entry, nil
}
