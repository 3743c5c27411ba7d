package store_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"salience/internal/store"
	"salience/internal/testsupport"
)

// seedExperiment creates an admin, an experiment with n samples, and a
// specialist assigned to it.
func seedExperiment(t *testing.T, st *store.Store, n int) (*store.Experiment, *store.Assignment) {
	t.Helper()
	ctx := context.Background()

	admin := testsupport.MustCreateUser(t, st, "admin@lab.test", "Admin", store.RoleAdmin)
	specialist := testsupport.MustCreateUser(t, st, "spec@lab.test", "Specialist", store.RoleSpecialist)
	exp := testsupport.MustCreateExperiment(t, st, "lane comparison", admin.ID)

	sampleIDs := make([]int64, n)
	for i := range sampleIDs {
		sampleIDs[i] = testsupport.MustCreateSample(t, st, "aspirin", int64(i+1)).ID
	}
	if err := st.SetExperimentSamples(ctx, exp.ID, sampleIDs); err != nil {
		t.Fatalf("SetExperimentSamples: %v", err)
	}

	assignment, err := st.CreateAssignment(ctx, exp.ID, specialist)
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	return exp, assignment
}

func TestCreateAssignmentSnapshotsProfile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	admin := testsupport.MustCreateUser(t, st, "admin@lab.test", "Admin", store.RoleAdmin)
	exp := testsupport.MustCreateExperiment(t, st, "baseline", admin.ID)

	years := 12
	specialist, err := st.CreateUser(ctx, store.NewUser{
		Email:           "senior@lab.test",
		Name:            "Senior",
		PasswordHash:    "hash",
		Role:            store.RoleSpecialist,
		ExpertiseLevel:  "expert",
		YearsExperience: &years,
		TrainingDate:    "2024-03-01",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	assignment, err := st.CreateAssignment(ctx, exp.ID, specialist)
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if assignment.ExpertiseLevelSnapshot != "expert" {
		t.Errorf("expertise snapshot = %q", assignment.ExpertiseLevelSnapshot)
	}
	if assignment.YearsExperienceSnapshot == nil || *assignment.YearsExperienceSnapshot != 12 {
		t.Errorf("years snapshot = %v", assignment.YearsExperienceSnapshot)
	}
	if assignment.TrainingDateSnapshot != "2024-03-01" {
		t.Errorf("training date snapshot = %q", assignment.TrainingDateSnapshot)
	}
	if assignment.Status != store.AssignmentAssigned {
		t.Errorf("status = %s", assignment.Status)
	}

	if _, err := st.CreateAssignment(ctx, exp.ID, specialist); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate assignment, got %v", err)
	}
}

func TestStartAssignmentGeneratesReproducibleOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, assignment := seedExperiment(t, st, 8)

	const seed = 1234
	if err := st.StartAssignment(ctx, assignment.ID, seed, rand.New(rand.NewSource(seed))); err != nil {
		t.Fatalf("StartAssignment: %v", err)
	}

	started, err := st.GetAssignmentByID(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignmentByID: %v", err)
	}
	if started.Status != store.AssignmentInProgress {
		t.Errorf("status = %s, want %s", started.Status, store.AssignmentInProgress)
	}
	if started.RandomizationSeed == nil || *started.RandomizationSeed != seed {
		t.Errorf("seed = %v, want %d", started.RandomizationSeed, seed)
	}
	if started.StartedAt == nil {
		t.Error("started_at not recorded")
	}

	ordered, err := st.SpecialistSampleOrder(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("SpecialistSampleOrder: %v", err)
	}
	if len(ordered) != 8 {
		t.Fatalf("order has %d entries, want 8", len(ordered))
	}
	seen := make(map[int64]bool, len(ordered))
	for i, entry := range ordered {
		if entry.SpecialistOrder != i+1 {
			t.Errorf("order[%d].SpecialistOrder = %d", i, entry.SpecialistOrder)
		}
		if seen[entry.ExperimentSampleID] {
			t.Errorf("experiment sample %d appears twice", entry.ExperimentSampleID)
		}
		seen[entry.ExperimentSampleID] = true
	}

	// Same seed, fresh rng: the shuffle must reproduce exactly.
	ids := make([]int64, len(ordered))
	for i, entry := range ordered {
		ids[i] = entry.ExperimentSampleID
	}
	replay := make([]int64, len(ids))
	copy(replay, ids)
	// Recover the pre-shuffle order by sorting, then reshuffle.
	for i := 1; i < len(replay); i++ {
		for j := i; j > 0 && replay[j-1] > replay[j]; j-- {
			replay[j-1], replay[j] = replay[j], replay[j-1]
		}
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(replay), func(i, j int) {
		replay[i], replay[j] = replay[j], replay[i]
	})
	for i := range ids {
		if replay[i] != ids[i] {
			t.Fatalf("shuffle not reproducible at %d: %v vs %v", i, replay, ids)
		}
	}
}

func TestStartAssignmentTwiceConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, assignment := seedExperiment(t, st, 3)
	if err := st.StartAssignment(ctx, assignment.ID, 1, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("StartAssignment: %v", err)
	}
	err := st.StartAssignment(ctx, assignment.ID, 2, rand.New(rand.NewSource(2)))
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAssignmentProgressCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, assignment := seedExperiment(t, st, 4)
	if err := st.StartAssignment(ctx, assignment.ID, 9, rand.New(rand.NewSource(9))); err != nil {
		t.Fatalf("StartAssignment: %v", err)
	}

	ordered, err := st.SpecialistSampleOrder(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("SpecialistSampleOrder: %v", err)
	}
	session, err := st.CreateSession(ctx, assignment.ID, ordered[0].ExperimentSampleID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := st.CompleteSession(ctx, session.ID, store.SessionCompletion{}, nil); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}

	progress, err := st.AssignmentProgress(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("AssignmentProgress: %v", err)
	}
	if progress.Total != 4 || progress.Completed != 1 || progress.Remaining != 3 {
		t.Fatalf("progress = %+v", progress)
	}
	if progress.Percentage != 25.0 {
		t.Errorf("percentage = %v, want 25.0", progress.Percentage)
	}
}

func TestExperimentProgressCountsUnstartedAgainstSampleTotal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	exp, assignment := seedExperiment(t, st, 5)

	// A second specialist who never starts.
	other := testsupport.MustCreateUser(t, st, "other@lab.test", "Other", store.RoleSpecialist)
	if _, err := st.CreateAssignment(ctx, exp.ID, other); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	if err := st.StartAssignment(ctx, assignment.ID, 3, rand.New(rand.NewSource(3))); err != nil {
		t.Fatalf("StartAssignment: %v", err)
	}

	progress, err := st.ExperimentProgress(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ExperimentProgress: %v", err)
	}
	if len(progress.Specialists) != 2 {
		t.Fatalf("got %d specialists, want 2", len(progress.Specialists))
	}
	for _, entry := range progress.Specialists {
		if entry.TotalSamples != 5 {
			t.Errorf("specialist %s total = %d, want 5", entry.SpecialistName, entry.TotalSamples)
		}
	}
	if progress.TotalAnnotations != 10 || progress.CompletedAnnotations != 0 {
		t.Fatalf("experiment totals = %+v", progress)
	}
}

func TestListSpecialistAssignmentsFiltersByExperimentStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, assignment := seedExperiment(t, st, 2)

	// Draft experiments stay hidden from the specialist's list.
	listed, err := st.ListSpecialistAssignments(ctx, assignment.SpecialistID)
	if err != nil {
		t.Fatalf("ListSpecialistAssignments: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("draft experiment visible: %+v", listed)
	}

	if err := st.UpdateExperimentStatus(ctx, assignment.ExperimentID, store.ExperimentActive); err != nil {
		t.Fatalf("UpdateExperimentStatus: %v", err)
	}
	listed, err = st.ListSpecialistAssignments(ctx, assignment.SpecialistID)
	if err != nil {
		t.Fatalf("ListSpecialistAssignments: %v", err)
	}
	if len(listed) != 1 || listed[0].ExperimentName != "lane comparison" {
		t.Fatalf("unexpected assignments: %+v", listed)
	}
}

func TestDeleteAssignmentCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, assignment := seedExperiment(t, st, 3)
	if err := st.StartAssignment(ctx, assignment.ID, 5, rand.New(rand.NewSource(5))); err != nil {
		t.Fatalf("StartAssignment: %v", err)
	}
	if err := st.DeleteAssignment(ctx, assignment.ID); err != nil {
		t.Fatalf("DeleteAssignment: %v", err)
	}

	ordered, err := st.SpecialistSampleOrder(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("SpecialistSampleOrder: %v", err)
	}
	if len(ordered) != 0 {
		t.Fatalf("sample order survived delete: %+v", ordered)
	}
	if err := st.DeleteAssignment(ctx, assignment.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
