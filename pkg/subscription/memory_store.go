package subscription

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryPlanStore struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]Plan
}

// NewMemoryPlanStore returns an in-memory PlanStore seeded with the given
// plans. Panics if no plans are provided so the service always has at
// least one purchasable tier.
func NewMemoryPlanStore(plans ...Plan) PlanStore {
	if len(plans) == 0 {
		panic("subscription: at least one plan is required")
	}
	byID := make(map[uuid.UUID]Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}
	return &memoryPlanStore{plans: byID}
}

func (s *memoryPlanStore) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return &plan, nil
}

func (s *memoryPlanStore) List(ctx context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Price.Amount < out[j].Price.Amount
	})
	return out, nil
}

type memorySubscriptionStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]Subscription
}

// NewMemorySubscriptionStore returns an empty in-memory SubscriptionStore.
// Suitable for tests and examples; data does not survive the process.
func NewMemorySubscriptionStore() SubscriptionStore {
	return &memorySubscriptionStore{byID: make(map[uuid.UUID]Subscription)}
}

func (s *memorySubscriptionStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	out := sub
	return &out, nil
}

func (s *memorySubscriptionStore) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.byID {
		if sub.OwnerID == ownerID {
			out := sub
			return &out, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *memorySubscriptionStore) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[id]
	if !ok || sub.OwnerID != ownerID {
		return nil, ErrSubscriptionNotFound
	}
	out := sub
	return &out, nil
}

func (s *memorySubscriptionStore) Save(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[sub.ID]; ok {
		if existing.OwnerID != sub.OwnerID {
			return ErrImmutableOwner
		}
		s.byID[sub.ID] = *sub
		return nil
	}

	for _, other := range s.byID {
		if other.OwnerID == sub.OwnerID {
			return ErrSubscriptionExists
		}
	}
	s.byID[sub.ID] = *sub
	return nil
}
