package ledger

import (
	"context"
	"sync"

	"github.com/dukerupert/reciclamt/internal/model"
)

// memStore is an in-memory Store that applies each operation under one lock.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*model.User
	rewards     map[string]*model.Reward
	activities  []model.RecyclingActivity
	redemptions []model.RewardRedemption
	entries     []model.PointEntry
	failCredit  error
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*model.User),
		rewards: make(map[string]*model.Reward),
	}
}

func (m *memStore) addUser(id string, points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &model.User{ID: id, Name: id, Points: points, Role: model.RoleUser}
}

func (m *memStore) addReward(id string, cost int, a model.Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards[id] = &model.Reward{ID: id, Name: id, PointsRequired: cost, Availability: a}
}

func (m *memStore) points(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Points
}

func (m *memStore) journalSum(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, e := range m.entries {
		if e.UserID == id {
			sum += e.Delta
		}
	}
	return sum
}

func (m *memStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rewards[id]
	if !ok {
		return nil, ErrRewardNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) apply(userID string, delta int, reason string, ref *string) (Balance, error) {
	u, ok := m.users[userID]
	if !ok {
		return Balance{}, ErrUserNotFound
	}
	if u.Points+delta < 0 {
		return Balance{}, ErrInsufficientPoints
	}
	if u.Points+delta > model.MaxPoints {
		return Balance{}, ErrBalanceLimit
	}
	u.Points += delta
	u.BalanceVersion++
	m.entries = append(m.entries, model.PointEntry{UserID: userID, Delta: delta, Reason: reason, ReferenceID: ref})
	return Balance{Points: u.Points, Version: u.BalanceVersion}, nil
}

func (m *memStore) CreditActivity(ctx context.Context, a *model.RecyclingActivity) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCredit != nil {
		return Balance{}, m.failCredit
	}
	balance, err := m.apply(a.UserID, a.PointsEarned, model.EntryRecycling, &a.ID)
	if err != nil {
		return Balance{}, err
	}
	m.activities = append(m.activities, *a)
	return balance, nil
}

func (m *memStore) DebitRedemption(ctx context.Context, r *model.RewardRedemption) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.apply(r.UserID, -r.PointsUsed, model.EntryRedemption, &r.ID)
	if err != nil {
		return Balance{}, err
	}
	m.redemptions = append(m.redemptions, *r)
	return balance, nil
}

func (m *memStore) AdjustPoints(ctx context.Context, userID string, delta int, note string) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(userID, delta, model.EntryAdjustment, nil)
}

// mapCache is a BalanceCache backed by a plain map.
type mapCache struct {
	mu sync.Mutex
	m  map[string]Balance
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string]Balance)}
}

func (c *mapCache) Get(ctx context.Context, userID string) (Balance, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[userID]
	return b, ok, nil
}

func (c *mapCache) Set(ctx context.Context, userID string, b Balance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[userID]; ok && cur.Version > b.Version {
		return nil
	}
	c.m[userID] = b
	return nil
}

func (c *mapCache) Delete(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
	return nil
}
