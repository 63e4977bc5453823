package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-loop-client/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const preferenceCacheKeyPrefix = "go-loop-client::pref::v1"

// CachedPreferenceStore serves reads from a cache and drops the cached entry
// on every write to the base store.
type CachedPreferenceStore struct {
	base  core.PreferenceStore
	cache repositorycache.CacheService
}

type cachedPreference struct {
	Value string
	Found bool
}

func NewCachedPreferenceStore(base core.PreferenceStore, cacheService repositorycache.CacheService) (*CachedPreferenceStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base preference store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: preference cache service is required")
	}
	return &CachedPreferenceStore{base: base, cache: cacheService}, nil
}

// PreferenceCacheKey returns go-loop-client::pref::v1::<escaped key>.
func PreferenceCacheKey(key string) string {
	return preferenceCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(key))
}

func (s *CachedPreferenceStore) GetCharPref(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", false, fmt.Errorf("sqlstore: cached preference store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, core.MissingParameterError("get_pref", "key")
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, PreferenceCacheKey(key), func(ctx context.Context) (cachedPreference, error) {
		value, found, fetchErr := s.base.GetCharPref(ctx, key)
		if fetchErr != nil {
			return cachedPreference{}, fetchErr
		}
		return cachedPreference{Value: value, Found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	return entry.Value, entry.Found, nil
}

func (s *CachedPreferenceStore) SetCharPref(ctx context.Context, key string, value string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached preference store is not configured")
	}
	if err := s.base.SetCharPref(ctx, key, value); err != nil {
		return err
	}
	return s.cache.Delete(ctx, PreferenceCacheKey(key))
}

func (s *CachedPreferenceStore) ClearPref(ctx context.Context, key string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached preference store is not configured")
	}
	if err := s.base.ClearPref(ctx, key); err != nil {
		return err
	}
	return s.cache.Delete(ctx, PreferenceCacheKey(key))
}
