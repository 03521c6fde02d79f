// Package cache memoizes the three read queries (prompts, ratings, notes)
// for a bounded staleness window. Any write invalidates all three entries;
// simplicity over precision.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/yogeshchauhan3103-code/prompt-manager/internal/recordstore"
)

type reads interface {
	Prompts() recordstore.Prompts
	Ratings() recordstore.Ratings
	Notes() recordstore.Notes
}

type ReadCache struct {
	store reads
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	prompts   []recordstore.Prompt
	ratings   []recordstore.Rating
	notes     []recordstore.Note
	fetchedAt [3]time.Time
}

const (
	slotPrompts = iota
	slotRatings
	slotNotes
)

func New(store reads, ttl time.Duration) *ReadCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &ReadCache{store: store, ttl: ttl, now: time.Now}
}

// SetClock overrides the staleness clock. Test hook.
func (c *ReadCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *ReadCache) fresh(slot int) bool {
	fetched := c.fetchedAt[slot]
	return !fetched.IsZero() && c.now().Sub(fetched) < c.ttl
}

func (c *ReadCache) Prompts(ctx context.Context) ([]recordstore.Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh(slotPrompts) {
		return c.prompts, nil
	}
	prompts, err := c.store.Prompts().List(ctx)
	if err != nil {
		return nil, err
	}
	c.prompts = prompts
	c.fetchedAt[slotPrompts] = c.now()
	return prompts, nil
}

func (c *ReadCache) Ratings(ctx context.Context) ([]recordstore.Rating, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh(slotRatings) {
		return c.ratings, nil
	}
	ratings, err := c.store.Ratings().List(ctx)
	if err != nil {
		return nil, err
	}
	c.ratings = ratings
	c.fetchedAt[slotRatings] = c.now()
	return ratings, nil
}

func (c *ReadCache) Notes(ctx context.Context) ([]recordstore.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh(slotNotes) {
		return c.notes, nil
	}
	notes, err := c.store.Notes().List(ctx)
	if err != nil {
		return nil, err
	}
	c.notes = notes
	c.fetchedAt[slotNotes] = c.now()
	return notes, nil
}

// Invalidate drops all three entries unconditionally. Called after every
// successful write and by the manual refresh action.
func (c *ReadCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = nil
	c.ratings = nil
	c.notes = nil
	c.fetchedAt = [3]time.Time{}
}
