package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/kv"
)

const (
	timestampSuffix = "_timestamp"
	pageSuffix      = "_page"
	moreSuffix      = "_hasMore"
)

// CacheEntry is a user-scoped snapshot of a fetched collection.
type CacheEntry[T domain.ListItem] struct {
	Key       string
	Payload   []T
	FetchedAt time.Time
	Page      int
	// HasMore is the cursor decided when the entry was written, nil for
	// entries stored without it.
	HasMore *bool
}

// CacheKey returns "<resource>Cache_<user>". The user part is escaped so that no
// username can produce another user's key or one of the suffixed keys.
func CacheKey(resource, user string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(user), "_", "%5F")
	return resource + "Cache_" + escaped
}

type cacheStore[T domain.ListItem] struct {
	store kv.Store
}

// rawEntry is the stored form of an entry, kept verbatim so it can be put back.
type rawEntry struct {
	key     string
	values  [4]string
	present [4]bool
}

func entryKeys(key string) [4]string {
	return [4]string{key, key + timestampSuffix, key + pageSuffix, key + moreSuffix}
}

// read returns ok=false when the entry is absent or unreadable.
func (c cacheStore[T]) read(ctx context.Context, key string) (CacheEntry[T], bool, error) {
	raw, err := c.snapshot(ctx, key)
	if err != nil {
		return CacheEntry[T]{}, false, err
	}
	if !raw.present[0] || !raw.present[1] {
		return CacheEntry[T]{}, false, nil
	}

	var payload []T
	if err := json.Unmarshal([]byte(raw.values[0]), &payload); err != nil {
		return CacheEntry[T]{}, false, nil
	}
	ms, err := strconv.ParseInt(raw.values[1], 10, 64)
	if err != nil {
		return CacheEntry[T]{}, false, nil
	}
	page := 1
	if raw.present[2] {
		if p, err := strconv.Atoi(raw.values[2]); err == nil && p > 0 {
			page = p
		}
	}
	var more *bool
	if raw.present[3] {
		if b, err := strconv.ParseBool(raw.values[3]); err == nil {
			more = &b
		}
	}
	return CacheEntry[T]{
		Key:       key,
		Payload:   payload,
		FetchedAt: time.UnixMilli(ms),
		Page:      page,
		HasMore:   more,
	}, true, nil
}

func (c cacheStore[T]) write(ctx context.Context, e CacheEntry[T]) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	keys := entryKeys(e.Key)
	values := [4]string{
		string(payload),
		strconv.FormatInt(e.FetchedAt.UnixMilli(), 10),
		strconv.Itoa(e.Page),
	}
	n := 3
	if e.HasMore != nil {
		values[3] = strconv.FormatBool(*e.HasMore)
		n = 4
	} else if err := c.store.Remove(ctx, keys[3]); err != nil {
		return fmt.Errorf("remove %s: %w", keys[3], err)
	}
	for i := range keys[:n] {
		if err := c.store.Set(ctx, keys[i], values[i]); err != nil {
			return fmt.Errorf("store %s: %w", keys[i], err)
		}
	}
	return nil
}

func (c cacheStore[T]) remove(ctx context.Context, key string) error {
	var errs []error
	for _, k := range entryKeys(key) {
		if err := c.store.Remove(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func (c cacheStore[T]) snapshot(ctx context.Context, key string) (rawEntry, error) {
	raw := rawEntry{key: key}
	for i, k := range entryKeys(key) {
		v, err := c.store.Get(ctx, k)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return raw, fmt.Errorf("load %s: %w", k, err)
		}
		raw.values[i] = v
		raw.present[i] = true
	}
	return raw, nil
}

// restore puts a snapshot back exactly as it was read.
func (c cacheStore[T]) restore(ctx context.Context, raw rawEntry) error {
	var errs []error
	for i, k := range entryKeys(raw.key) {
		var err error
		if raw.present[i] {
			err = c.store.Set(ctx, k, raw.values[i])
		} else {
			err = c.store.Remove(ctx, k)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
