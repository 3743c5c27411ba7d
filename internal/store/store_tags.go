package store

import (
	"context"
	"fmt"
	"sort"

	"salience/internal/apriltag"
)

// Allocations returns the full sample → tag-set relation as a snapshot for
// the allocator and identifier. Tag IDs are sorted ascending per sample.
func (s *Store) Allocations(ctx context.Context) (map[int64][]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT sample_id, tag_id FROM sample_tags ORDER BY sample_id, tag_id")
	if err != nil {
		return nil, fmt.Errorf("read allocations: %w", err)
	}
	defer rows.Close()

	allocations := make(map[int64][]int)
	for rows.Next() {
		var sampleID int64
		var tagID int
		if err := rows.Scan(&sampleID, &tagID); err != nil {
			return nil, fmt.Errorf("scan allocation row: %w", err)
		}
		allocations[sampleID] = append(allocations[sampleID], tagID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return allocations, nil
}

// SampleTags returns a sample's tag rows in canonical position order.
func (s *Store) SampleTags(ctx context.Context, sampleID int64) ([]SampleTag, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT sample_id, tag_id, position FROM sample_tags WHERE sample_id = ?",
		sampleID,
	)
	if err != nil {
		return nil, fmt.Errorf("read sample tags: %w", err)
	}
	defer rows.Close()

	var tags []SampleTag
	for rows.Next() {
		var tag SampleTag
		if err := rows.Scan(&tag.SampleID, &tag.TagID, &tag.Position); err != nil {
			return nil, fmt.Errorf("scan sample tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample tags: %w", err)
	}

	order := make(map[string]int, 4)
	for i, position := range apriltag.Positions() {
		order[string(position)] = i
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return order[tags[i].Position] < order[tags[j].Position]
	})
	return tags, nil
}

// SaveAllocation writes a sample's tag quadruple, binding sorted tag IDs to
// corner positions in canonical order. The write is transactional: either
// all four rows land or none do.
func (s *Store) SaveAllocation(ctx context.Context, sampleID int64, tags []int) error {
	positions := apriltag.Positions()
	if len(tags) != len(positions) {
		return fmt.Errorf("allocation for sample %d has %d tags, want %d", sampleID, len(tags), len(positions))
	}

	sorted := make([]int, len(tags))
	copy(sorted, tags)
	sort.Ints(sorted)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, position := range positions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sample_tags (sample_id, tag_id, position) VALUES (?, ?, ?)",
			sampleID, sorted[i], string(position),
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("sample %d already has tags: %w", sampleID, ErrConflict)
			}
			return fmt.Errorf("insert sample tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allocation: %w", err)
	}
	return nil
}

// DeleteAllocation removes a sample's tag rows. Deleting and re-creating is
// the only supported re-allocation path.
func (s *Store) DeleteAllocation(ctx context.Context, sampleID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sample_tags WHERE sample_id = ?", sampleID,
	); err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return nil
}

// DeleteAllAllocations clears the entire tag relation.
func (s *Store) DeleteAllAllocations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sample_tags"); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	return nil
}

// SamplesWithoutTags returns samples lacking an allocation, ascending by ID
// so bulk allocation runs are stable.
func (s *Store) SamplesWithoutTags(ctx context.Context) ([]*Sample, error) {
	rows, err := s.db.QueryContext(ctx, sampleSelect+` s
        WHERE NOT EXISTS (SELECT 1 FROM sample_tags st WHERE st.sample_id = s.id)
        ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("list samples without tags: %w", err)
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
