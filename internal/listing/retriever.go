// Package listing serves paginated upstream collections from a per-user cache.
//
// A collection is fetched page by page, kept globally ordered by descending
// display number and persisted in a kv.Store under "<resource>Cache_<user>"
// (plus "_timestamp", "_page" and "_hasMore" companions) for one TTL. Each (resource, user)
// pair has a view holding what the user currently sees: the loaded items, the
// page cursor and an optional search filter.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/kv"
	"github.com/TemirB/freight-portal/internal/observability"
	"github.com/TemirB/freight-portal/internal/upstream"
)

const (
	DefaultTTL      = time.Hour
	DefaultPageSize = 15
)

var (
	ErrNoUser    = errors.New("user is required")
	ErrBusy      = errors.New("a request for this list is already in progress")
	ErrNotLoaded = errors.New("list is not loaded")
	ErrNoMore    = errors.New("no more pages")
)

// Page is one page returned by a Fetcher.
type Page[T domain.ListItem] struct {
	Items []T
	// Total is the upstream's total count. Zero or negative means unknown.
	Total int
	// More is the upstream's explicit "more pages" flag, nil when not provided.
	More *bool
}

type Fetcher[T domain.ListItem] interface {
	Resource() string
	Fetch(ctx context.Context, user string, page, size int) (Page[T], error)
}

type Params struct {
	PageSize int
}

type Options struct {
	TTL      time.Duration
	PageSize int
	// Views bounds how many (user) views are kept in memory.
	Views int
	Now   func() time.Time
}

type Retriever[T domain.ListItem] struct {
	fetcher  Fetcher[T]
	cache    cacheStore[T]
	views    *lru.Cache[string, *view[T]]
	ttl      time.Duration
	pageSize int
	now      func() time.Time
	logger   *zap.Logger
	metrics  observability.Metrics
}

func New[T domain.ListItem](fetcher Fetcher[T], store kv.Store, opts Options, logger *zap.Logger, metrics observability.Metrics) (*Retriever[T], error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Views <= 0 {
		opts.Views = 1024
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if metrics == nil {
		metrics = observability.Noop{}
	}
	views, err := lru.New[string, *view[T]](opts.Views)
	if err != nil {
		return nil, err
	}
	return &Retriever[T]{
		fetcher:  fetcher,
		cache:    cacheStore[T]{store: store},
		views:    views,
		ttl:      opts.TTL,
		pageSize: opts.PageSize,
		now:      opts.Now,
		logger:   logger.With(zap.String("resource", fetcher.Resource())),
		metrics:  metrics,
	}, nil
}

func (r *Retriever[T]) Resource() string { return r.fetcher.Resource() }

// LoadInitial mounts the user's view. A cache entry younger than the TTL is
// served without touching the network; otherwise page 1 is fetched and stored.
func (r *Retriever[T]) LoadInitial(ctx context.Context, user string, p Params) (Snapshot[T], error) {
	if strings.TrimSpace(user) == "" {
		return Snapshot[T]{}, ErrNoUser
	}
	v := r.view(user)
	if _, err := v.begin(); err != nil {
		return v.snapshot(), err
	}

	size := r.size(p)
	key := CacheKey(r.Resource(), user)

	start := r.now()
	entry, ok, err := r.cache.read(ctx, key)
	if err != nil {
		r.logger.Warn("cache read failed", zap.String("username", user), zap.Error(err))
	}
	cacheMs := sinceMs(r.now, start)

	if ok {
		if age := r.now().Sub(entry.FetchedAt); age >= 0 && age < r.ttl {
			cursor := PageCursor{CurrentPage: entry.Page}
			if entry.HasMore != nil {
				cursor.HasMore = *entry.HasMore
			} else {
				cursor.HasMore = len(entry.Payload) > 0 && len(entry.Payload) >= entry.Page*size
			}
			v.commit(entry.Payload, cursor, size, SourceCache, entry.FetchedAt, true)

			r.metrics.IncCacheHit()
			r.metrics.ObserveLookup(string(SourceCache), cacheMs, 0)
			r.logger.Debug("list served from cache",
				zap.String("username", user),
				zap.Int("items", len(entry.Payload)),
				zap.Duration("age", age),
			)
			return v.snapshot(), nil
		}
		if err := r.cache.remove(ctx, key); err != nil {
			r.logger.Warn("stale cache entry not removed", zap.String("username", user), zap.Error(err))
		}
	}
	r.metrics.IncCacheMiss()

	return r.fetchFirst(ctx, v, user, key, size, cacheMs)
}

// LoadMore fetches the next page, merges it into the loaded collection and
// re-sorts everything. On failure the view and the cache entry are unchanged.
func (r *Retriever[T]) LoadMore(ctx context.Context, user string, p Params) (Snapshot[T], error) {
	if strings.TrimSpace(user) == "" {
		return Snapshot[T]{}, ErrNoUser
	}
	v, ok := r.views.Get(user)
	if !ok {
		return Snapshot[T]{Resource: r.Resource()}, ErrNotLoaded
	}
	prev, err := v.begin()
	if err != nil {
		return v.snapshot(), err
	}

	cur := v.loaded()
	if cur.state == Uninitialized || cur.cursor.CurrentPage == 0 {
		v.release(prev)
		return v.snapshot(), ErrNotLoaded
	}
	if !cur.cursor.HasMore {
		v.release(prev)
		return v.snapshot(), ErrNoMore
	}
	size := cur.pageSize
	if p.PageSize > 0 {
		size = p.PageSize
	}

	next := cur.cursor.CurrentPage + 1
	start := r.now()
	page, err := r.fetcher.Fetch(ctx, user, next, size)
	netMs := sinceMs(r.now, start)
	if err != nil {
		return r.failed(v, user, "load more", err)
	}

	merged := merge(cur.items, page.Items)
	newCursor := PageCursor{
		CurrentPage: next,
		HasMore:     hasMore(page, size, len(merged)),
	}
	// Extending a collection does not make the older pages any fresher.
	fetchedAt := cur.fetchedAt
	r.store(ctx, v, user, CacheEntry[T]{
		Key:       CacheKey(r.Resource(), user),
		Payload:   merged,
		FetchedAt: fetchedAt,
		Page:      next,
		HasMore:   &newCursor.HasMore,
	})
	v.commit(merged, newCursor, size, SourceNetwork, fetchedAt, false)

	r.metrics.ObserveLookup(string(SourceNetwork), 0, netMs)
	r.logger.Info("list extended",
		zap.String("username", user),
		zap.Int("page", next),
		zap.Int("fetched", len(page.Items)),
		zap.Int("items", len(merged)),
		zap.Bool("has_more", newCursor.HasMore),
	)
	return v.snapshot(), nil
}

// Refresh drops the user's cache entry and reloads page 1 from the network.
// If the reload fails, the previous entry is put back byte for byte.
func (r *Retriever[T]) Refresh(ctx context.Context, user string, p Params) (Snapshot[T], error) {
	if strings.TrimSpace(user) == "" {
		return Snapshot[T]{}, ErrNoUser
	}
	v := r.view(user)
	prevReq, err := v.begin()
	if err != nil {
		return v.snapshot(), err
	}

	key := CacheKey(r.Resource(), user)
	prev, err := r.cache.snapshot(ctx, key)
	if err != nil {
		v.release(prevReq)
		return v.snapshot(), fmt.Errorf("refresh %s: %w", r.Resource(), err)
	}
	if err := r.cache.remove(ctx, key); err != nil {
		r.logger.Warn("cache entry not removed", zap.String("username", user), zap.Error(err))
	}

	snap, err := r.fetchFirst(ctx, v, user, key, r.size(p), 0)
	if err != nil {
		if rerr := r.cache.restore(ctx, prev); rerr != nil {
			r.logger.Error("cache entry not restored after failed refresh",
				zap.String("username", user),
				zap.Error(rerr),
			)
		}
		return snap, err
	}
	return snap, nil
}

// Search filters the loaded collection of the user's view. It never fetches
// and never touches the cache, so results only cover pages loaded so far.
func (r *Retriever[T]) Search(user string, f Filter) (Snapshot[T], error) {
	if err := f.Validate(); err != nil {
		return Snapshot[T]{Resource: r.Resource()}, err
	}
	v, ok := r.views.Get(user)
	if !ok {
		return Snapshot[T]{Resource: r.Resource()}, ErrNotLoaded
	}
	if err := v.search(f); err != nil {
		return v.snapshot(), err
	}
	return v.snapshot(), nil
}

func (r *Retriever[T]) ClearSearch(user string) (Snapshot[T], error) {
	return r.Search(user, Filter{})
}

// Snapshot returns the current state of the user's view without loading anything.
func (r *Retriever[T]) Snapshot(user string) Snapshot[T] {
	if v, ok := r.views.Get(user); ok {
		return v.snapshot()
	}
	return Snapshot[T]{Resource: r.Resource(), Items: []T{}}
}

// Invalidate deletes the user's cache entry and forgets the view, so the next
// LoadInitial goes to the network. A load still in flight for the forgotten
// view does not write its result back.
func (r *Retriever[T]) Invalidate(ctx context.Context, user string) error {
	if v, ok := r.views.Peek(user); ok {
		unlock := v.drop()
		defer unlock()
	}
	r.views.Remove(user)
	if err := r.cache.remove(ctx, CacheKey(r.Resource(), user)); err != nil {
		return fmt.Errorf("invalidate %s for %s: %w", r.Resource(), user, err)
	}
	return nil
}

func (r *Retriever[T]) fetchFirst(ctx context.Context, v *view[T], user, key string, size int, cacheMs float64) (Snapshot[T], error) {
	start := r.now()
	page, err := r.fetcher.Fetch(ctx, user, 1, size)
	netMs := sinceMs(r.now, start)
	if err != nil {
		return r.failed(v, user, "load", err)
	}

	items := merge(nil, page.Items)
	cursor := PageCursor{CurrentPage: 1, HasMore: hasMore(page, size, len(items))}
	fetchedAt := r.now()

	r.store(ctx, v, user, CacheEntry[T]{Key: key, Payload: items, FetchedAt: fetchedAt, Page: 1, HasMore: &cursor.HasMore})
	v.commit(items, cursor, size, SourceNetwork, fetchedAt, true)

	r.metrics.ObserveLookup(string(SourceNetwork), cacheMs, netMs)
	r.logger.Info("list fetched",
		zap.String("username", user),
		zap.Int("items", len(items)),
		zap.Bool("has_more", cursor.HasMore),
		zap.Float64("network_ms", netMs),
	)
	return v.snapshot(), nil
}

// store writes e unless v was invalidated while its request was in flight.
func (r *Retriever[T]) store(ctx context.Context, v *view[T], user string, e CacheEntry[T]) {
	written, err := v.persist(func() error { return r.cache.write(ctx, e) })
	switch {
	case err != nil:
		r.logger.Warn("cache write failed", zap.String("username", user), zap.Error(err))
	case !written:
		r.logger.Debug("list invalidated during load, not cached", zap.String("username", user))
	}
}

func (r *Retriever[T]) failed(v *view[T], user, op string, err error) (Snapshot[T], error) {
	msg := upstream.MessageOf(err, upstream.MsgConnection)
	v.fail(msg)
	r.logger.Error("list "+op+" failed",
		zap.String("username", user),
		zap.String("kind", upstream.KindOf(err).String()),
		zap.Error(err),
	)
	return v.snapshot(), fmt.Errorf("%s %s: %w", op, r.Resource(), err)
}

func (r *Retriever[T]) view(user string) *view[T] {
	if v, ok := r.views.Get(user); ok {
		return v
	}
	v := newView[T](r.Resource())
	if prev, ok, _ := r.views.PeekOrAdd(user, v); ok {
		return prev
	}
	return v
}

func (r *Retriever[T]) size(p Params) int {
	if p.PageSize > 0 {
		return p.PageSize
	}
	return r.pageSize
}

// hasMore follows the upstream's explicit flag when there is one. Otherwise a
// full page means there may be more, unless the known total is already loaded.
func hasMore[T domain.ListItem](page Page[T], size, loaded int) bool {
	if page.More != nil {
		return *page.More
	}
	if len(page.Items) < size {
		return false
	}
	if page.Total > 0 {
		return loaded < page.Total
	}
	return true
}

func sinceMs(now func() time.Time, t time.Time) float64 {
	return float64(now().Sub(t).Microseconds()) / 1000.0
}
