package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrainerRepo is an in-memory domain.TrainerRepository that counts reads
type fakeTrainerRepo struct {
	mu          sync.Mutex
	trainers    map[string]*domain.TrainerProfile
	branchReads int
	idReads     int
}

func newFakeTrainerRepo(trainers ...*domain.TrainerProfile) *fakeTrainerRepo {
	repo := &fakeTrainerRepo{trainers: make(map[string]*domain.TrainerProfile)}
	for _, tr := range trainers {
		repo.trainers[tr.ID] = tr
	}
	return repo
}

func (f *fakeTrainerRepo) Create(_ context.Context, trainer *domain.TrainerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trainers[trainer.ID] = trainer
	return nil
}

func (f *fakeTrainerRepo) GetByID(_ context.Context, id string) (*domain.TrainerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idReads++
	tr, ok := f.trainers[id]
	if !ok {
		return nil, domain.ErrTrainerNotFound
	}
	cp := *tr
	return &cp, nil
}

func (f *fakeTrainerRepo) GetByBranch(_ context.Context, tenantID, branchID string) ([]*domain.TrainerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branchReads++
	out := []*domain.TrainerProfile{}
	for _, tr := range f.trainers {
		if tr.BranchID == branchID && (tenantID == "" || tr.TenantID == tenantID) {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTrainerRepo) Update(_ context.Context, trainer *domain.TrainerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trainers[trainer.ID]; !ok {
		return domain.ErrTrainerNotFound
	}
	cp := *trainer
	f.trainers[trainer.ID] = &cp
	return nil
}

func sampleTrainer(id, branchID string) *domain.TrainerProfile {
	return &domain.TrainerProfile{
		ID:          id,
		TenantID:    "tenant-1",
		BranchID:    branchID,
		Name:        "Coach " + id,
		IsActive:    true,
		Status:      domain.TrainerStatusActive,
		Specialties: []string{"yoga"},
		HourlyRate:  40,
		Rating:      4.5,
		Availability: []domain.AvailabilityWindow{
			{Weekday: time.Monday, Start: "09:00", End: "17:00"},
		},
	}
}

func TestCachedTrainerRepository_RosterIsCached(t *testing.T) {
	cache, _ := newTestCache(t)
	inner := newFakeTrainerRepo(sampleTrainer("t1", "b1"), sampleTrainer("t2", "b1"))
	repo := NewCachedTrainerRepository(inner, cache, time.Minute)
	ctx := context.Background()

	first, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	second, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)

	assert.Len(t, second, 2)
	assert.ElementsMatch(t, []string{first[0].ID, first[1].ID}, []string{second[0].ID, second[1].ID})
	assert.Equal(t, "09:00", second[0].Availability[0].Start)
	assert.Equal(t, 1, inner.branchReads)
}

func TestCachedTrainerRepository_TTL(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := newFakeTrainerRepo(sampleTrainer("t1", "b1"))
	repo := NewCachedTrainerRepository(inner, cache, time.Minute)
	ctx := context.Background()

	_, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.branchReads)
}

func TestCachedTrainerRepository_UpdateInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	inner := newFakeTrainerRepo(sampleTrainer("t1", "b1"))
	repo := NewCachedTrainerRepository(inner, cache, time.Minute)
	ctx := context.Background()

	_, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	_, err = repo.GetByBranch(ctx, "", "b1")
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, "t1")
	require.NoError(t, err)

	updated := sampleTrainer("t1", "b1")
	updated.IsActive = false
	require.NoError(t, repo.Update(ctx, updated))

	roster, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.False(t, roster[0].IsActive)

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.Equal(t, 3, inner.branchReads)
}

func TestCachedTrainerRepository_TransferClearsOldBranch(t *testing.T) {
	cache, _ := newTestCache(t)
	inner := newFakeTrainerRepo(sampleTrainer("t1", "b1"))
	repo := NewCachedTrainerRepository(inner, cache, time.Minute)
	ctx := context.Background()

	roster, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	require.Len(t, roster, 1)

	require.NoError(t, repo.Update(ctx, sampleTrainer("t1", "b2")))

	roster, err = repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestCachedTrainerRepository_CreateInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	inner := newFakeTrainerRepo(sampleTrainer("t1", "b1"))
	repo := NewCachedTrainerRepository(inner, cache, time.Minute)
	ctx := context.Background()

	_, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, sampleTrainer("t2", "b1")))

	roster, err := repo.GetByBranch(ctx, "tenant-1", "b1")
	require.NoError(t, err)
	assert.Len(t, roster, 2)
}

func TestCachedTrainerRepository_ErrorsAreNotCached(t *testing.T) {
	cache, mr := newTestCache(t)
	repo := NewCachedTrainerRepository(newFakeTrainerRepo(), cache, time.Minute)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTrainerNotFound)
	assert.False(t, mr.Exists(trainerByIDKeyPrefix+"missing"))
}
