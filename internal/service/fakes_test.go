package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/domain"
)

type fakeBranchRepo struct {
	branches map[string]*domain.Branch
}

func newFakeBranchRepo(branches ...*domain.Branch) *fakeBranchRepo {
	repo := &fakeBranchRepo{branches: make(map[string]*domain.Branch)}
	for _, b := range branches {
		repo.branches[b.ID] = b
	}
	return repo
}

func (f *fakeBranchRepo) Create(_ context.Context, branch *domain.Branch) error {
	f.branches[branch.ID] = branch
	return nil
}

func (f *fakeBranchRepo) GetByID(_ context.Context, id string) (*domain.Branch, error) {
	b, ok := f.branches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBranchRepo) GetByTenantID(_ context.Context, tenantID string) ([]*domain.Branch, error) {
	var out []*domain.Branch
	for _, b := range f.branches {
		if b.TenantID == tenantID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeTrainerRepo struct {
	trainers []*domain.TrainerProfile
	err      error
}

func (f *fakeTrainerRepo) Create(_ context.Context, trainer *domain.TrainerProfile) error {
	f.trainers = append(f.trainers, trainer)
	return nil
}

func (f *fakeTrainerRepo) GetByID(_ context.Context, id string) (*domain.TrainerProfile, error) {
	for _, t := range f.trainers {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.ErrTrainerNotFound
}

func (f *fakeTrainerRepo) GetByBranch(_ context.Context, tenantID, branchID string) ([]*domain.TrainerProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []*domain.TrainerProfile{}
	for _, t := range f.trainers {
		if t.BranchID == branchID && (tenantID == "" || t.TenantID == tenantID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTrainerRepo) Update(_ context.Context, trainer *domain.TrainerProfile) error {
	return nil
}

// fakeAssignmentRepo is an in-memory domain.TrainerAssignmentRepository
type fakeAssignmentRepo struct {
	mu          sync.Mutex
	assignments []*domain.TrainerAssignment
	branchReads int
	err         error
}

func (f *fakeAssignmentRepo) Create(_ context.Context, a *domain.TrainerAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	a.ID = fmt.Sprintf("a%d", len(f.assignments)+1)
	a.CreatedAt = time.Now()
	f.assignments = append(f.assignments, a)
	return nil
}

func (f *fakeAssignmentRepo) GetByID(_ context.Context, id string) (*domain.TrainerAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAssignmentNotFound
}

func (f *fakeAssignmentRepo) GetByClientID(_ context.Context, clientID string) (*domain.TrainerAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.ClientID == clientID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAssignmentNotFound
}

func (f *fakeAssignmentRepo) GetByBranch(_ context.Context, branchID string, from, to time.Time) ([]*domain.TrainerAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branchReads++
	if f.err != nil {
		return nil, f.err
	}
	return f.filter(func(a *domain.TrainerAssignment) bool {
		return a.BranchID == branchID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
	}), nil
}

func (f *fakeAssignmentRepo) GetByTrainer(_ context.Context, trainerID string, from, to time.Time) ([]*domain.TrainerAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(func(a *domain.TrainerAssignment) bool {
		return a.TrainerID == trainerID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
	}), nil
}

func (f *fakeAssignmentRepo) UpdateStatus(_ context.Context, id string, status domain.AssignmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.ID == id {
			a.Status = status
			return nil
		}
	}
	return domain.ErrAssignmentNotFound
}

func (f *fakeAssignmentRepo) HasConflict(_ context.Context, trainerID string, start, end time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments {
		if a.TrainerID == trainerID && a.BlocksSlot() && domain.Overlaps(a.ScheduledAt, a.End(), start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignmentRepo) filter(keep func(*domain.TrainerAssignment) bool) []*domain.TrainerAssignment {
	out := []*domain.TrainerAssignment{}
	for _, a := range f.assignments {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (f *fakeAssignmentRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assignments)
}
