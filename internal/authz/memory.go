package authz

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryStore is the in-memory reference RoleStore. Reads are lock-free off
// an atomically-swapped snapshot; writers serialize on a mutex, rebuild the
// snapshot and swap it whole, so a concurrent reader sees either the old or
// the new state, never a torn mix.
type MemoryStore struct {
	writeMu sync.Mutex
	snap    atomic.Pointer[Snapshot]
}

var _ RoleStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.snap.Store(NewSnapshot())
	return s
}

// RolesForUser implements RoleStore.
func (s *MemoryStore) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.snap.Load().rolesForUser(userID), nil
}

// Grants implements RoleStore.
func (s *MemoryStore) Grants(ctx context.Context, roleID string) ([]Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.snap.Load().grants(roleID), nil
}

// RoleActive implements RoleStore.
func (s *MemoryStore) RoleActive(ctx context.Context, roleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.snap.Load().roleActive(roleID), nil
}

// LoadRoleSnapshot implements SnapshotLoader, so a MemoryStore can also back
// a cache in tests.
func (s *MemoryStore) LoadRoleSnapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.snap.Load(), nil
}

// AddRole registers a role with the given liveness.
func (s *MemoryStore) AddRole(roleID string, active bool) {
	s.mutate(func(next *Snapshot) {
		next.ActiveRoles[roleID] = active
	})
}

// SetRoleActive flips role liveness; registering it if unknown.
func (s *MemoryStore) SetRoleActive(roleID string, active bool) {
	s.AddRole(roleID, active)
}

// SetGrants replaces the role's grants.
func (s *MemoryStore) SetGrants(roleID string, grants ...Grant) {
	s.mutate(func(next *Snapshot) {
		if _, ok := next.ActiveRoles[roleID]; !ok {
			next.ActiveRoles[roleID] = true
		}
		next.GrantsByRole[roleID] = append([]Grant(nil), grants...)
	})
}

// AssignRole links a user to a role. Assigning twice is a no-op.
func (s *MemoryStore) AssignRole(userID, roleID string) {
	s.mutate(func(next *Snapshot) {
		for _, id := range next.RolesByUser[userID] {
			if id == roleID {
				return
			}
		}
		next.RolesByUser[userID] = append(next.RolesByUser[userID], roleID)
	})
}

// RemoveUser drops all of the user's assignments.
func (s *MemoryStore) RemoveUser(userID string) {
	s.mutate(func(next *Snapshot) {
		delete(next.RolesByUser, userID)
	})
}

// Replace swaps in a complete snapshot.
func (s *MemoryStore) Replace(snap *Snapshot) {
	if snap == nil {
		snap = NewSnapshot()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.snap.Store(snap)
}

func (s *MemoryStore) mutate(fn func(next *Snapshot)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := s.snap.Load().clone()
	fn(next)
	s.snap.Store(next)
}
