package database

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/benvon/soonish/internal/models"
)

// MemoryPlanStore is an in-process PlanStore. Plans are cloned on the way
// in and out so callers never share state with the store.
type MemoryPlanStore struct {
	mu       sync.RWMutex
	plans    map[uuid.UUID]*models.Plan
	watchers map[chan PlanChange]struct{}
}

// NewMemoryPlanStore creates an empty store
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{
		plans:    make(map[uuid.UUID]*models.Plan),
		watchers: make(map[chan PlanChange]struct{}),
	}
}

func (s *MemoryPlanStore) Insert(ctx context.Context, plan *models.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan.Clone()
	s.broadcastLocked(PlanChange{Op: ChangeInsert, PlanID: plan.ID})
	return nil
}

func (s *MemoryPlanStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return plan.Clone(), nil
}

func (s *MemoryPlanStore) Update(ctx context.Context, id uuid.UUID, mutate func(*models.Plan) error) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	plan := stored.Clone()
	if err := mutate(plan); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	s.plans[id] = plan
	s.broadcastLocked(PlanChange{Op: ChangeUpdate, PlanID: id})
	return plan.Clone(), nil
}

func (s *MemoryPlanStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return ErrPlanNotFound
	}
	delete(s.plans, id)
	s.broadcastLocked(PlanChange{Op: ChangeDelete, PlanID: id})
	return nil
}

func (s *MemoryPlanStore) ListActive(ctx context.Context) ([]*models.Plan, error) {
	return s.list(func(p *models.Plan) bool { return p.IsActive() }), nil
}

func (s *MemoryPlanStore) ListAll(ctx context.Context) ([]*models.Plan, error) {
	return s.list(func(*models.Plan) bool { return true }), nil
}

// Watch registers a subscriber. Notifications are dropped for a subscriber
// whose buffer is full.
func (s *MemoryPlanStore) Watch(ctx context.Context) (<-chan PlanChange, error) {
	ch := make(chan PlanChange, 16)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *MemoryPlanStore) list(keep func(*models.Plan) bool) []*models.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryPlanStore) broadcastLocked(change PlanChange) {
	for ch := range s.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}
