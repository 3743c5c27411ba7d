// Package tagging orchestrates marker allocation and sample identification
// over the persisted tag relation.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"salience/internal/apriltag"
	"salience/internal/logging"
	"salience/internal/store"
)

// ErrAlreadyAllocated rejects single-sample allocation when the sample
// already owns a tag quadruple. Delete first to re-allocate.
var ErrAlreadyAllocated = errors.New("sample already has tags")

// Store abstracts the persistence interactions the service needs.
type Store interface {
	Allocations(ctx context.Context) (map[int64][]int, error)
	SamplesWithoutTags(ctx context.Context) ([]*store.Sample, error)
	ListSamples(ctx context.Context) ([]*store.Sample, error)
	GetSample(ctx context.Context, id int64) (*store.Sample, error)
	SampleTags(ctx context.Context, sampleID int64) ([]store.SampleTag, error)
	SaveAllocation(ctx context.Context, sampleID int64, tags []int) error
	DeleteAllAllocations(ctx context.Context) error
}

// Allocation is one planned or persisted sample → quadruple binding.
type Allocation struct {
	SampleID int64  `json:"sample_id"`
	DrugName string `json:"drug_name"`
	CardID   int64  `json:"card_id"`
	Tags     []int  `json:"tags"`
}

// Plan is the outcome of an allocation run.
type Plan struct {
	Allocations []Allocation `json:"allocations"`
	DryRun      bool         `json:"dry_run"`
}

// Service wires the allocator to the store.
type Service struct {
	store     Store
	allocator *apriltag.Allocator
	cfg       apriltag.Config
	logger    *slog.Logger
}

// NewService constructs the tagging service.
func NewService(st Store, cfg apriltag.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		allocator: apriltag.NewAllocator(cfg),
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "tagging"),
	}
}

// AllocateMissing assigns quadruples to every sample that lacks one, in
// ascending sample ID order so repeated runs are reproducible. Nothing is
// written when dryRun is set. On capacity exhaustion no partial writes land.
func (s *Service) AllocateMissing(ctx context.Context, dryRun bool) (*Plan, error) {
	missing, err := s.store.SamplesWithoutTags(ctx)
	if err != nil {
		return nil, err
	}
	plan := &Plan{DryRun: dryRun}
	if len(missing) == 0 {
		return plan, nil
	}

	existing, err := s.existingSets(ctx)
	if err != nil {
		return nil, err
	}
	quadruples, err := s.allocator.Allocate(existing, len(missing))
	if err != nil {
		return nil, err
	}

	for i, sample := range missing {
		plan.Allocations = append(plan.Allocations, Allocation{
			SampleID: sample.ID,
			DrugName: sample.DrugNameDisplay,
			CardID:   sample.CardID,
			Tags:     quadruples[i],
		})
	}
	if dryRun {
		return plan, nil
	}

	for _, allocation := range plan.Allocations {
		if err := s.store.SaveAllocation(ctx, allocation.SampleID, allocation.Tags); err != nil {
			return nil, fmt.Errorf("persist allocation for sample %d: %w", allocation.SampleID, err)
		}
	}
	s.logger.Info("allocated tags",
		slog.Int("samples", len(plan.Allocations)),
		slog.Int("pool_size", len(existing)+len(plan.Allocations)))
	return plan, nil
}

// AllocateSample assigns a quadruple to one sample. A sample that already
// has tags is rejected with ErrAlreadyAllocated.
func (s *Service) AllocateSample(ctx context.Context, sampleID int64, dryRun bool) (*Allocation, error) {
	sample, err := s.store.GetSample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	tags, err := s.store.SampleTags(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		return nil, fmt.Errorf("sample %d: %w", sampleID, ErrAlreadyAllocated)
	}

	existing, err := s.existingSets(ctx)
	if err != nil {
		return nil, err
	}
	quadruples, err := s.allocator.Allocate(existing, 1)
	if err != nil {
		return nil, err
	}

	allocation := &Allocation{
		SampleID: sample.ID,
		DrugName: sample.DrugNameDisplay,
		CardID:   sample.CardID,
		Tags:     quadruples[0],
	}
	if dryRun {
		return allocation, nil
	}
	if err := s.store.SaveAllocation(ctx, sampleID, allocation.Tags); err != nil {
		return nil, fmt.Errorf("persist allocation for sample %d: %w", sampleID, err)
	}
	s.logger.Info("allocated tags", slog.Int64(logging.FieldSampleID, sampleID))
	return allocation, nil
}

// ReallocateAll drops the entire relation and rebuilds it from scratch.
// Dry runs compute the fresh plan without touching existing rows.
func (s *Service) ReallocateAll(ctx context.Context, dryRun bool) (*Plan, error) {
	samples, err := s.store.ListSamples(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })

	plan := &Plan{DryRun: dryRun}
	if len(samples) == 0 {
		return plan, nil
	}

	quadruples, err := s.allocator.Allocate(nil, len(samples))
	if err != nil {
		return nil, err
	}
	for i, sample := range samples {
		plan.Allocations = append(plan.Allocations, Allocation{
			SampleID: sample.ID,
			DrugName: sample.DrugNameDisplay,
			CardID:   sample.CardID,
			Tags:     quadruples[i],
		})
	}
	if dryRun {
		return plan, nil
	}

	if err := s.store.DeleteAllAllocations(ctx); err != nil {
		return nil, err
	}
	for _, allocation := range plan.Allocations {
		if err := s.store.SaveAllocation(ctx, allocation.SampleID, allocation.Tags); err != nil {
			return nil, fmt.Errorf("persist allocation for sample %d: %w", allocation.SampleID, err)
		}
	}
	s.logger.Info("reallocated all tags", slog.Int("samples", len(plan.Allocations)))
	return plan, nil
}

// List returns the persisted allocations joined with sample details,
// ascending by sample ID.
func (s *Service) List(ctx context.Context) ([]Allocation, error) {
	allocations, err := s.store.Allocations(ctx)
	if err != nil {
		return nil, err
	}
	samples, err := s.store.ListSamples(ctx)
	if err != nil {
		return nil, err
	}

	var listed []Allocation
	for _, sample := range samples {
		tags, ok := allocations[sample.ID]
		if !ok {
			continue
		}
		listed = append(listed, Allocation{
			SampleID: sample.ID,
			DrugName: sample.DrugNameDisplay,
			CardID:   sample.CardID,
			Tags:     tags,
		})
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].SampleID < listed[j].SampleID })
	return listed, nil
}

// Identify resolves a detection set to a sample. The boolean is false when
// no sample can be claimed with confidence; the caller falls back to manual
// selection.
func (s *Service) Identify(ctx context.Context, detected []int) (*store.Sample, bool, error) {
	allocations, err := s.store.Allocations(ctx)
	if err != nil {
		return nil, false, err
	}
	sampleID, ok := apriltag.Identify(detected, allocations, s.cfg.MinMatch)
	if !ok {
		return nil, false, nil
	}
	sample, err := s.store.GetSample(ctx, sampleID)
	if err != nil {
		return nil, false, err
	}
	return sample, true, nil
}

func (s *Service) existingSets(ctx context.Context) ([][]int, error) {
	allocations, err := s.store.Allocations(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(allocations))
	for id := range allocations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sets := make([][]int, 0, len(ids))
	for _, id := range ids {
		sets = append(sets, allocations[id])
	}
	return sets, nil
}
