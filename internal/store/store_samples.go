package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NewSample carries the fields of an imported sample card image.
type NewSample struct {
	DrugName        string
	DrugNameDisplay string
	CardID          int64
	Filename        string
	ImagePath       string
	Quantity        *int
	ImageType       string
}

// InsertSample adds a sample if it is not already present. It returns the
// sample ID and whether a new row was created; re-importing an existing
// manifest entry is a no-op.
func (s *Store) InsertSample(ctx context.Context, sample NewSample) (int64, bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO samples
            (drug_name, drug_name_display, card_id, filename, image_path, quantity, image_type, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.DrugName,
		sample.DrugNameDisplay,
		sample.CardID,
		sample.Filename,
		sample.ImagePath,
		nullableInt(sample.Quantity),
		nullableString(sample.ImageType),
		nowTimestamp(),
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert sample: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("last insert id: %w", err)
		}
		return id, true, nil
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM samples WHERE drug_name = ? AND card_id = ? AND filename = ?",
		sample.DrugName, sample.CardID, sample.Filename,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("lookup existing sample: %w", err)
	}
	return id, false, nil
}

// GetSample returns a sample by ID.
func (s *Store) GetSample(ctx context.Context, id int64) (*Sample, error) {
	row := s.db.QueryRowContext(ctx, sampleSelect+" WHERE id = ?", id)
	sample, err := scanSample(row)
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// ListSamples returns all samples ordered by display name then card number.
func (s *Store) ListSamples(ctx context.Context) ([]*Sample, error) {
	rows, err := s.db.QueryContext(ctx, sampleSelect+" ORDER BY drug_name_display, card_id")
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

const sampleSelect = `SELECT id, drug_name, drug_name_display, card_id, filename,
    image_path, quantity, image_type, created_at FROM samples`

func scanSample(row rowScanner) (*Sample, error) {
	var (
		sample    Sample
		quantity  sql.NullInt64
		imageType sql.NullString
		createdAt string
	)
	err := row.Scan(
		&sample.ID, &sample.DrugName, &sample.DrugNameDisplay, &sample.CardID,
		&sample.Filename, &sample.ImagePath, &quantity, &imageType, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sample: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan sample: %w", err)
	}
	sample.Quantity = intPointer(quantity)
	sample.ImageType = imageType.String
	if sample.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &sample, nil
}
