package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/domain"
)

const (
	trainerByIDKeyPrefix   = "trainer:id:"
	trainerRosterKeyPrefix = "trainer:roster:"
	defaultTrainerCacheTTL = 5 * time.Minute
)

// CachedTrainerRepository wraps a trainer repository with Redis caching.
// The branch roster is read on every auto-assignment, so it is the main thing cached here.
type CachedTrainerRepository struct {
	repo  domain.TrainerRepository
	cache *RedisCacheRepository
	ttl   time.Duration
}

// NewCachedTrainerRepository creates a new cached trainer repository. A zero ttl uses the default.
func NewCachedTrainerRepository(repo domain.TrainerRepository, cache *RedisCacheRepository, ttl time.Duration) *CachedTrainerRepository {
	if ttl <= 0 {
		ttl = defaultTrainerCacheTTL
	}
	return &CachedTrainerRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

func rosterKey(tenantID, branchID string) string {
	return fmt.Sprintf("%s%s:%s", trainerRosterKeyPrefix, tenantID, branchID)
}

// GetByBranch retrieves the branch roster with caching
func (r *CachedTrainerRepository) GetByBranch(ctx context.Context, tenantID, branchID string) ([]*domain.TrainerProfile, error) {
	key := rosterKey(tenantID, branchID)

	var trainers []*domain.TrainerProfile
	if err := r.cache.Get(ctx, key, &trainers); err == nil {
		return trainers, nil
	}

	result, err := r.repo.GetByBranch(ctx, tenantID, branchID)
	if err != nil {
		return nil, err
	}

	// Store in cache (ignore cache errors)
	_ = r.cache.Set(ctx, key, result, r.ttl)

	return result, nil
}

// GetByID retrieves a trainer with caching
func (r *CachedTrainerRepository) GetByID(ctx context.Context, id string) (*domain.TrainerProfile, error) {
	key := trainerByIDKeyPrefix + id

	var trainer domain.TrainerProfile
	if err := r.cache.Get(ctx, key, &trainer); err == nil {
		return &trainer, nil
	}

	result, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, key, result, r.ttl)

	return result, nil
}

// Create creates a trainer and invalidates the rosters of its branch
func (r *CachedTrainerRepository) Create(ctx context.Context, trainer *domain.TrainerProfile) error {
	if err := r.repo.Create(ctx, trainer); err != nil {
		return err
	}

	r.invalidateRosters(ctx, trainer.BranchID)
	return nil
}

// Update updates a trainer and invalidates its cached profile and rosters
func (r *CachedTrainerRepository) Update(ctx context.Context, trainer *domain.TrainerProfile) error {
	// A branch transfer must clear the old roster too
	previous, _ := r.repo.GetByID(ctx, trainer.ID)

	if err := r.repo.Update(ctx, trainer); err != nil {
		return err
	}

	_ = r.cache.Delete(ctx, trainerByIDKeyPrefix+trainer.ID)
	r.invalidateRosters(ctx, trainer.BranchID)
	if previous != nil && previous.BranchID != trainer.BranchID {
		r.invalidateRosters(ctx, previous.BranchID)
	}
	return nil
}

// invalidateRosters drops every cached roster of the branch, whatever tenant scope it was read with
func (r *CachedTrainerRepository) invalidateRosters(ctx context.Context, branchID string) {
	_ = r.cache.DeleteByPattern(ctx, fmt.Sprintf("%s*:%s", trainerRosterKeyPrefix, branchID))
}
