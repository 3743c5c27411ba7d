package testsupport

import (
	"context"
	"fmt"
	"testing"

	"salience/internal/config"
	"salience/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustCreateUser inserts a user with a throwaway password hash.
func MustCreateUser(t testing.TB, st *store.Store, email, name string, role store.Role) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), store.NewUser{
		Email:        email,
		Name:         name,
		PasswordHash: "$2a$10$testsupporthashtestsupporthashtestsupportha",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// MustCreateSample inserts a sample card row.
func MustCreateSample(t testing.TB, st *store.Store, drugName string, cardID int64) *store.Sample {
	t.Helper()

	id, _, err := st.InsertSample(context.Background(), store.NewSample{
		DrugName:        drugName,
		DrugNameDisplay: drugName,
		CardID:          cardID,
		Filename:        fmt.Sprintf("%s-%d.png", drugName, cardID),
		ImagePath:       fmt.Sprintf("cards/%s-%d.png", drugName, cardID),
	})
	if err != nil {
		t.Fatalf("store.InsertSample: %v", err)
	}
	sample, err := st.GetSample(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetSample: %v", err)
	}
	return sample
}

// MustCreateExperiment inserts an experiment owned by the given admin.
func MustCreateExperiment(t testing.TB, st *store.Store, name string, createdBy int64) *store.Experiment {
	t.Helper()

	exp, err := st.CreateExperiment(context.Background(), store.NewExperiment{
		Name:      name,
		CreatedBy: createdBy,
	})
	if err != nil {
		t.Fatalf("store.CreateExperiment: %v", err)
	}
	return exp
}
