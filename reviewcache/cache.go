// Package reviewcache keeps the latest known review list per record.
//
// The cache is the only writer of its entries. At most one fetch per record id is in
// flight; concurrent Refresh calls for the same id share that fetch's result. Slices
// handed out are copies and may be kept by the caller.
package reviewcache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"attraction-map/metrics"
	"attraction-map/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrSubmitFailed is returned by Submit when the service did not confirm the review.
var ErrSubmitFailed = errors.New("review was not accepted")

type Fetcher interface {
	FetchReviews(ctx context.Context, id string) ([]models.Review, error)
}

type Submitter interface {
	SubmitReview(ctx context.Context, id string, input models.ReviewInput) *models.Review
}

type Remote interface {
	Fetcher
	Submitter
}

type entry struct {
	reviews []models.Review
	seq     uint64
}

type Cache struct {
	remote Remote
	logger *zap.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
	// floor[id] is the newest fetch sequence started before id was last invalidated.
	floor map[string]uint64
	seq   uint64
}

func New(remote Remote, logger *zap.Logger) *Cache {
	return &Cache{
		remote:  remote,
		logger:  logger,
		entries: make(map[string]entry),
		floor:   make(map[string]uint64),
	}
}

// Get returns the cached reviews for id and whether anything is cached.
func (c *Cache) Get(id string) ([]models.Review, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return clone(e.reviews), true
}

// Invalidate drops the entry for id. Fetches already in flight still return to their
// callers but no longer write to the cache.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.floor[id] = c.seq
}

// Refresh fetches the reviews for id and replaces the cached entry. A caller that
// arrives while a fetch for id is running waits for that fetch instead of starting one.
// The fetch outlives a cancelled caller so the others still get a result.
func (c *Cache) Refresh(ctx context.Context, id string) ([]models.Review, error) {
	ch := c.group.DoChan(id, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		metrics.ReviewFetchesTotal.WithLabelValues(strconv.FormatBool(res.Shared)).Inc()
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]models.Review)), nil
	}
}

// Post submits a review and invalidates id. The next Refresh for id starts a new
// fetch rather than joining one that began before the write.
func (c *Cache) Post(ctx context.Context, id string, input models.ReviewInput) (*models.Review, error) {
	rv := c.remote.SubmitReview(ctx, id, input)
	if rv == nil {
		return nil, ErrSubmitFailed
	}
	c.Invalidate(id)
	c.group.Forget(id)
	return rv, nil
}

// Submit is Post followed by the mandatory Refresh.
func (c *Cache) Submit(ctx context.Context, id string, input models.ReviewInput) (*models.Review, []models.Review, error) {
	rv, err := c.Post(ctx, id, input)
	if err != nil {
		return nil, nil, err
	}
	reviews, err := c.Refresh(ctx, id)
	if err != nil {
		return rv, nil, err
	}
	return rv, reviews, nil
}

func (c *Cache) fetch(ctx context.Context, id string) ([]models.Review, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	reviews, err := c.remote.FetchReviews(ctx, id)
	if err != nil {
		c.logger.Warn("review fetch failed", zap.String("record_id", id), zap.Error(err))
		return nil, err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.floor[id] {
		c.logger.Debug("review fetch predates invalidation, not cached", zap.String("record_id", id))
		return reviews, nil
	}
	if cur, ok := c.entries[id]; ok && cur.seq > seq {
		c.logger.Debug("discarding older review fetch", zap.String("record_id", id))
		return clone(cur.reviews), nil
	}
	c.entries[id] = entry{reviews: reviews, seq: seq}
	return reviews, nil
}

func clone(in []models.Review) []models.Review {
	out := make([]models.Review, len(in))
	copy(out, in)
	return out
}
