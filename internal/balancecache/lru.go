// Package balancecache holds the last committed balance of recently active
// users, in process or in Redis.
package balancecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukerupert/reciclamt/internal/ledger"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultSize = 1024
	DefaultTTL  = 5 * time.Minute
)

type entry struct {
	balance   ledger.Balance
	expiresAt time.Time
}

// LRU is an in-process balance cache with per-entry expiry.
type LRU struct {
	mu    sync.Mutex // serializes Set's version check with its write
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	now   func() time.Time
}

// NewLRU returns a cache holding at most size balances for ttl each.
// Non-positive arguments fall back to DefaultSize and DefaultTTL.
func NewLRU(size int, ttl time.Duration) (*LRU, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{cache: c, ttl: ttl, now: time.Now}, nil
}

func (c *LRU) Get(_ context.Context, userID string) (ledger.Balance, bool, error) {
	e, ok := c.cache.Get(userID)
	if !ok {
		return ledger.Balance{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.cache.Remove(userID)
		return ledger.Balance{}, false, nil
	}
	return e.balance, true, nil
}

// Set stores b unless a live entry already holds a newer version.
func (c *LRU) Set(_ context.Context, userID string, b ledger.Balance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if cur, ok := c.cache.Peek(userID); ok && !now.After(cur.expiresAt) && cur.balance.Version > b.Version {
		return nil
	}
	c.cache.Add(userID, entry{balance: b, expiresAt: now.Add(c.ttl)})
	return nil
}

func (c *LRU) Delete(_ context.Context, userID string) error {
	c.cache.Remove(userID)
	return nil
}

// Len reports the number of cached balances, including expired ones not yet evicted.
func (c *LRU) Len() int {
	return c.cache.Len()
}
