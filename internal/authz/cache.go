package authz

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"schoolcore.org/internal/obs"
)

const defaultRefreshInterval = 30 * time.Second

// CachedRoleStore serves RoleStore reads from a periodically reloaded
// snapshot. Staleness is bounded by the refresh interval: a grant change
// becomes visible no later than one interval after the store committed it.
// Reads never block on a reload; the loader result is swapped in atomically.
// Until the first successful load the cache fails closed by returning
// ErrStoreUnavailable.
type CachedRoleStore struct {
	loader   SnapshotLoader
	interval time.Duration
	snap     atomic.Pointer[Snapshot]
}

var _ RoleStore = (*CachedRoleStore)(nil)

// NewCachedRoleStore builds the cache. interval <= 0 uses the default.
func NewCachedRoleStore(loader SnapshotLoader, interval time.Duration) *CachedRoleStore {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &CachedRoleStore{loader: loader, interval: interval}
}

// Refresh loads a fresh snapshot and swaps it in. On loader failure the
// previous snapshot stays in place and keeps serving.
func (c *CachedRoleStore) Refresh(ctx context.Context) error {
	snap, err := c.loader.LoadRoleSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("refresh role snapshot: %w", err)
	}
	if snap == nil {
		snap = NewSnapshot()
	}
	c.snap.Store(snap)
	return nil
}

// Start refreshes once, then keeps the snapshot fresh until ctx ends. The
// initial refresh error is returned so callers can fail startup loudly.
func (c *CachedRoleStore) Start(ctx context.Context) error {
	err := c.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					obs.LogRequest(map[string]any{
						"level": "warn",
						"msg":   "role snapshot refresh failed",
						"error": err.Error(),
					})
				}
			}
		}
	}()
	return err
}

// StalenessBound reports the documented upper bound on snapshot age.
func (c *CachedRoleStore) StalenessBound() time.Duration { return c.interval }

func (c *CachedRoleStore) current() (*Snapshot, error) {
	snap := c.snap.Load()
	if snap == nil {
		return nil, ErrStoreUnavailable
	}
	return snap, nil
}

// RolesForUser implements RoleStore.
func (c *CachedRoleStore) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := c.current()
	if err != nil {
		return nil, err
	}
	return snap.rolesForUser(userID), nil
}

// Grants implements RoleStore.
func (c *CachedRoleStore) Grants(ctx context.Context, roleID string) ([]Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := c.current()
	if err != nil {
		return nil, err
	}
	return snap.grants(roleID), nil
}

// RoleActive implements RoleStore.
func (c *CachedRoleStore) RoleActive(ctx context.Context, roleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	snap, err := c.current()
	if err != nil {
		return false, err
	}
	return snap.roleActive(roleID), nil
}
