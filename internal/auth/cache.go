package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/services"
	"github.com/spotik/spotik/internal/shared"
	"golang.org/x/sync/singleflight"
)

// Refresher is the slice of [services.Service] the cache needs to renew
// access tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*services.TokenResponse, error)
}

var _ Refresher = (services.Service)(nil)

// Cache owns the per-user credential records.
//
// Records are created by [Cache.Set] after an authorization exchange and
// renewed transparently by [Cache.Get] once expiry comes within the skew
// window. The full record set is flushed to the [Store] after every
// mutation and reloaded on construction.
type Cache struct {
	mu      sync.Mutex
	records map[string]models.Credential

	store  Store
	remote Refresher
	flight singleflight.Group
	skew   time.Duration
	logger *log.Logger
	now    func() time.Time
}

// CacheOpts contains construction options for [Cache].
type CacheOpts struct {
	Store  Store
	Remote Refresher
	Skew   time.Duration // defaults to 5 minutes
	Logger *log.Logger
	Clock  func() time.Time // overridden in tests
}

// NewCache loads the persisted snapshot and returns a ready cache.
func NewCache(opts CacheOpts) (*Cache, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Remote == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if opts.Skew <= 0 {
		opts.Skew = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	records, err := opts.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credential snapshot: %w", err)
	}

	return &Cache{
		records: records,
		store:   opts.Store,
		remote:  opts.Remote,
		skew:    opts.Skew,
		logger:  opts.Logger,
		now:     opts.Clock,
	}, nil
}

// Get returns a credential for userID whose access token is valid for at
// least the skew window.
//
// A record expiring inside the window is refreshed synchronously before
// returning. Concurrent calls for the same stale user share one refresh
// via single-flight, so the remote never sees competing refresh grants
// for one refresh token. A failed refresh keeps the stale record so a
// later call can retry.
func (c *Cache) Get(ctx context.Context, userID string) (models.Credential, error) {
	if userID == "" {
		return models.Credential{}, fmt.Errorf("%w: empty user id", shared.ErrInvalidInput)
	}

	c.mu.Lock()
	rec, ok := c.records[userID]
	if !ok {
		c.mu.Unlock()
		return models.Credential{}, fmt.Errorf("%w: %s", shared.ErrNotAuthorized, userID)
	}
	if rec.Fresh(c.now(), c.skew) {
		c.mu.Unlock()
		return rec, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(userID, func() (any, error) {
		return c.refresh(ctx, userID)
	})
	if err != nil {
		return models.Credential{}, err
	}

	return v.(models.Credential), nil
}

// Set creates or overwrites the record for userID and persists the snapshot.
func (c *Cache) Set(userID, accessToken, refreshToken string, expiresIn int) error {
	if userID == "" || accessToken == "" || refreshToken == "" {
		return fmt.Errorf("%w: user id, access token and refresh token are required", shared.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[userID] = models.Credential{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    c.now().Add(time.Duration(expiresIn) * time.Second),
	}

	return c.persistLocked()
}

// Len returns the number of stored records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// refresh renews the record for userID against the remote token endpoint.
//
// Runs inside the single-flight group; re-checks freshness first because
// a caller may arrive just after a previous flight finished.
func (c *Cache) refresh(ctx context.Context, userID string) (models.Credential, error) {
	c.mu.Lock()
	rec, ok := c.records[userID]
	if !ok {
		c.mu.Unlock()
		return models.Credential{}, fmt.Errorf("%w: %s", shared.ErrNotAuthorized, userID)
	}
	if rec.Fresh(c.now(), c.skew) {
		c.mu.Unlock()
		return rec, nil
	}
	refreshToken := rec.RefreshToken
	c.mu.Unlock()

	token, err := c.remote.Refresh(ctx, refreshToken)
	if err != nil {
		// Keep the stale record: a later call retries the refresh
		// instead of locking the user out permanently.
		c.logger.Error("credential refresh failed", "user", userID, "err", err)
		return models.Credential{}, fmt.Errorf("%w: %s: %v", shared.ErrRefreshFailed, userID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec = c.records[userID]
	rec.AccessToken = token.AccessToken
	rec.ExpiresAt = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	if token.RefreshToken != "" {
		rec.RefreshToken = token.RefreshToken
	}
	c.records[userID] = rec

	if err := c.persistLocked(); err != nil {
		// The in-memory record is already current; losing one snapshot
		// write costs a re-auth after restart at worst.
		c.logger.Error("failed to persist credential snapshot", "user", userID, "err", err)
	}

	c.logger.Debug("credential refreshed", "user", userID, "expires_at", rec.ExpiresAt)
	return rec, nil
}

// persistLocked flushes the full record set to the store. Callers hold c.mu,
// which also serializes snapshot writes against refreshes.
func (c *Cache) persistLocked() error {
	snapshot := make(map[string]models.Credential, len(c.records))
	for id, rec := range c.records {
		snapshot[id] = rec
	}

	if err := c.store.Save(snapshot); err != nil {
		return fmt.Errorf("failed to save credential snapshot: %w", err)
	}
	return nil
}
