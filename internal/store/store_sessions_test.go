package store_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"salience/internal/store"
	"salience/internal/testsupport"
)

func startedAssignment(t *testing.T, st *store.Store, samples int) *store.Assignment {
	t.Helper()
	_, assignment := seedExperiment(t, st, samples)
	if err := st.StartAssignment(context.Background(), assignment.ID, 77, rand.New(rand.NewSource(77))); err != nil {
		t.Fatalf("StartAssignment: %v", err)
	}
	return assignment
}

func TestCurrentSessionSampleWalksTheOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	assignment := startedAssignment(t, st, 3)
	ordered, err := st.SpecialistSampleOrder(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("SpecialistSampleOrder: %v", err)
	}

	for i, want := range ordered {
		current, err := st.CurrentSessionSample(ctx, assignment.ID)
		if err != nil {
			t.Fatalf("CurrentSessionSample #%d: %v", i+1, err)
		}
		if current.OrderEntry.ExperimentSampleID != want.ExperimentSampleID {
			t.Fatalf("step %d: current sample %d, want %d",
				i+1, current.OrderEntry.ExperimentSampleID, want.ExperimentSampleID)
		}
		if current.SessionID != nil {
			t.Fatalf("step %d: unexpected open session %d", i+1, *current.SessionID)
		}

		session, err := st.CreateSession(ctx, assignment.ID, current.OrderEntry.ExperimentSampleID)
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if session.Status != store.SessionInProgress {
			t.Fatalf("new session status = %s", session.Status)
		}

		// While the session is open, the same sample stays current with the
		// session joined in.
		current, err = st.CurrentSessionSample(ctx, assignment.ID)
		if err != nil {
			t.Fatalf("CurrentSessionSample mid-session: %v", err)
		}
		if current.SessionID == nil || *current.SessionID != session.ID {
			t.Fatalf("open session not joined: %+v", current)
		}
		if current.SessionUUID != session.SessionUUID {
			t.Fatalf("session uuid mismatch: %s vs %s", current.SessionUUID, session.SessionUUID)
		}

		if err := st.CompleteSession(ctx, session.ID, store.SessionCompletion{}, nil); err != nil {
			t.Fatalf("CompleteSession: %v", err)
		}
	}

	if _, err := st.CurrentSessionSample(ctx, assignment.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after all samples done, got %v", err)
	}
}

func TestCompleteSessionStoresAnnotations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	assignment := startedAssignment(t, st, 1)
	current, err := st.CurrentSessionSample(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("CurrentSessionSample: %v", err)
	}
	session, err := st.CreateSession(ctx, assignment.ID, current.OrderEntry.ExperimentSampleID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	duration := int64(42_000)
	startMS := int64(1_500)
	completion := store.SessionCompletion{
		AudioFilename:       "session-audio.webm",
		AudioDurationMS:     &duration,
		ImageDimensionsJSON: `{"width":1920,"height":1080}`,
		LayoutSettingsJSON:  `{"zoom":1.5}`,
	}
	annotations := []store.NewAnnotation{
		{
			Type:               "rectangle",
			Color:              "#ff0000",
			LanesJSON:          `[2,3]`,
			BBoxNormalizedJSON: `{"x":0.1,"y":0.2,"w":0.3,"h":0.1}`,
			TimestampStartMS:   &startMS,
		},
		{
			Type:                 "freehand",
			PointsNormalizedJSON: `[[0.5,0.5],[0.6,0.55]]`,
		},
	}
	if err := st.CompleteSession(ctx, session.ID, completion, annotations); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}

	completed, err := st.GetSessionByUUID(ctx, session.SessionUUID)
	if err != nil {
		t.Fatalf("GetSessionByUUID: %v", err)
	}
	if completed.Status != store.SessionCompleted {
		t.Errorf("status = %s", completed.Status)
	}
	if completed.AudioFilename != "session-audio.webm" {
		t.Errorf("audio filename = %q", completed.AudioFilename)
	}
	if completed.AudioDurationMS == nil || *completed.AudioDurationMS != duration {
		t.Errorf("audio duration = %v", completed.AudioDurationMS)
	}
	if completed.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	stored, err := st.SessionAnnotations(ctx, session.ID)
	if err != nil {
		t.Fatalf("SessionAnnotations: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d annotations, want 2", len(stored))
	}
	if stored[0].Type != "rectangle" || stored[0].Color != "#ff0000" {
		t.Errorf("first annotation = %+v", stored[0])
	}
	if stored[0].TimestampStartMS == nil || *stored[0].TimestampStartMS != startMS {
		t.Errorf("timestamp start = %v", stored[0].TimestampStartMS)
	}
	if stored[1].Type != "freehand" || stored[1].PointsNormalizedJSON == "" {
		t.Errorf("second annotation = %+v", stored[1])
	}
}

func TestCompleteSessionTwiceConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	assignment := startedAssignment(t, st, 1)
	current, err := st.CurrentSessionSample(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("CurrentSessionSample: %v", err)
	}
	session, err := st.CreateSession(ctx, assignment.ID, current.OrderEntry.ExperimentSampleID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := st.CompleteSession(ctx, session.ID, store.SessionCompletion{}, nil); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	err = st.CompleteSession(ctx, session.ID, store.SessionCompletion{}, nil)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on re-completion, got %v", err)
	}
	if err := st.CompleteSession(ctx, session.ID+100, store.SessionCompletion{}, nil); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for unknown session, got %v", err)
	}
}
