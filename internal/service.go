package internal

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const sideEffectTimeout = 5 * time.Second

// ServiceOptions configures a Service. Zero values get sensible defaults.
type ServiceOptions struct {
	// CacheTTL is the lifetime of cache entries written on resolution.
	// Defaults to one hour.
	CacheTTL time.Duration
	// CountCachedHits makes cache-served resolutions re-check expiration
	// and bump the hit counter. Off by default: a cached entry is served
	// as-is until its TTL elapses, uncounted and unvalidated.
	CountCachedHits bool
	Logger          *slog.Logger
}

// Service orchestrates short URL creation and resolution against the
// injected store and cache collaborators.
type Service struct {
	store           URLStore
	cache           Cache
	ttl             time.Duration
	countCachedHits bool
	log             *slog.Logger
}

func NewService(store URLStore, cache Cache, opts ServiceOptions) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		store:           store,
		cache:           cache,
		ttl:             ttl,
		countCachedHits: opts.CountCachedHits,
		log:             log,
	}
}

// CreateShortURL returns the record for longURL, creating it if absent.
// Creation is idempotent per long URL: a second call returns the existing
// record unchanged and its expiresAt argument is ignored. When two
// concurrent calls race past the lookup, the store's unique index decides
// the winner and the loser re-fetches the winning record.
func (s *Service) CreateShortURL(ctx context.Context, longURL string, expiresAt *time.Time) (*URL, error) {
	existing, err := s.store.FindByLongURL(ctx, longURL)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	u := &URL{
		LongURL:   longURL,
		ShortCode: code,
		ExpiresAt: expiresAt,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) {
			winner, ferr := s.store.FindByLongURL(ctx, longURL)
			if ferr == nil {
				return winner, nil
			}
			// Duplicate on short_code rather than long_url.
			return nil, err
		}
		return nil, err
	}
	return u, nil
}

// ResolveShortCode returns the long URL for code. Cache-aside: a cache hit
// is returned immediately; on a miss the store record is checked for
// expiration, then the cache write and the hit-count increment run as
// detached side effects the caller never waits on.
func (s *Service) ResolveShortCode(ctx context.Context, code string) (string, error) {
	longURL, err := s.cache.Get(ctx, cacheKey(code))
	if err == nil {
		return s.serveCachedHit(ctx, code, longURL)
	}
	if !errors.Is(err, ErrCacheMiss) {
		// An unreachable cache degrades to the store path.
		s.log.Warn("cache read failed, falling back to store", "code", code, "err", err)
	}

	u, err := s.store.FindByShortCode(ctx, code)
	if err != nil {
		return "", err
	}
	if u.Expired(time.Now()) {
		return "", ErrExpired
	}

	s.populateCache(code, u.LongURL)
	s.bumpHitCount(u.ID, code)
	return u.LongURL, nil
}

func (s *Service) serveCachedHit(ctx context.Context, code, longURL string) (string, error) {
	if !s.countCachedHits {
		return longURL, nil
	}
	u, err := s.store.FindByShortCode(ctx, code)
	if err != nil {
		// The cache outlived the record; serve the cached value anyway.
		return longURL, nil
	}
	if u.Expired(time.Now()) {
		return "", ErrExpired
	}
	s.bumpHitCount(u.ID, code)
	return longURL, nil
}

// ListURLs returns every record, most recently created first.
func (s *Service) ListURLs(ctx context.Context) ([]URL, error) {
	return s.store.List(ctx)
}

// ClickStats returns the aggregate click count for code. A code with a URL
// record but no analytics row yet reports zero clicks.
func (s *Service) ClickStats(ctx context.Context, code string) (*URLAnalytics, error) {
	stats, err := s.store.FindAnalytics(ctx, code)
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.FindByShortCode(ctx, code); err != nil {
		return nil, err
	}
	return &URLAnalytics{ShortCode: code}, nil
}

// populateCache writes the resolved mapping to the cache without blocking
// the caller. Failures are logged, never surfaced.
func (s *Service) populateCache(code, longURL string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.cache.Set(ctx, cacheKey(code), longURL, s.ttl); err != nil {
			s.log.Error("failed to populate cache", "code", code, "err", err)
		}
	}()
}

// bumpHitCount increments the record's hit counter without blocking the
// caller. Failures are logged, never surfaced.
func (s *Service) bumpHitCount(id int64, code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.store.IncrementHitCount(ctx, id); err != nil {
			s.log.Error("failed to increment hit count", "code", code, "err", err)
		}
	}()
}

func cacheKey(code string) string {
	return "url:" + code
}
