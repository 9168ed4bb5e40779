package ratecard

import (
	"context"
	"fmt"
	"sync"
)

// Repository loads rate cards by pricing set ID. Unknown IDs yield an error
// wrapping ErrNotFound.
type Repository interface {
	Load(ctx context.Context, pricingSetID string) (*RateCard, error)
}

// RequestCache memoises Load for one request scope. Create a new cache per
// request; it must not outlive it.
type RequestCache struct {
	repo Repository

	mu    sync.Mutex
	cards map[string]*RateCard
}

// NewRequestCache wraps repo for the duration of a single request.
func NewRequestCache(repo Repository) *RequestCache {
	return &RequestCache{repo: repo, cards: make(map[string]*RateCard)}
}

// Load returns the cached card or loads it from the underlying repository.
func (c *RequestCache) Load(ctx context.Context, pricingSetID string) (*RateCard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if card, ok := c.cards[pricingSetID]; ok {
		return card, nil
	}
	card, err := c.repo.Load(ctx, pricingSetID)
	if err != nil {
		return nil, err
	}
	c.cards[pricingSetID] = card
	return card, nil
}

// MemoryRepository serves rate cards held in memory, keyed by Meta().ID.
type MemoryRepository struct {
	cards map[string]*RateCard
}

// NewMemoryRepository indexes cards by their pricing set ID.
func NewMemoryRepository(cards ...*RateCard) *MemoryRepository {
	r := &MemoryRepository{cards: make(map[string]*RateCard, len(cards))}
	for _, c := range cards {
		r.cards[c.Meta().ID] = c
	}
	return r
}

// Load returns the card stored under pricingSetID.
func (r *MemoryRepository) Load(_ context.Context, pricingSetID string) (*RateCard, error) {
	card, ok := r.cards[pricingSetID]
	if !ok {
		return nil, fmt.Errorf("load pricing set %q: %w", pricingSetID, ErrNotFound)
	}
	return card, nil
}
