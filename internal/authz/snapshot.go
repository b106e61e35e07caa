package authz

import (
	"context"
	"time"
)

// Snapshot is an immutable view of role assignments, grants and role
// liveness. Readers share one snapshot without locking; replacing state means
// building a new snapshot and swapping the pointer, never mutating in place.
type Snapshot struct {
	RolesByUser  map[string][]string
	GrantsByRole map[string][]Grant
	// ActiveRoles maps role id to liveness. A missing role is treated as
	// deleted and grants nothing.
	ActiveRoles map[string]bool
	LoadedAt    time.Time
}

// NewSnapshot allocates an empty snapshot stamped with now.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		RolesByUser:  map[string][]string{},
		GrantsByRole: map[string][]Grant{},
		ActiveRoles:  map[string]bool{},
		LoadedAt:     time.Now().UTC(),
	}
}

func (s *Snapshot) rolesForUser(userID string) []string {
	src := s.RolesByUser[userID]
	if len(src) == 0 {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func (s *Snapshot) grants(roleID string) []Grant {
	src := s.GrantsByRole[roleID]
	if len(src) == 0 {
		return nil
	}
	out := make([]Grant, len(src))
	copy(out, src)
	return out
}

func (s *Snapshot) roleActive(roleID string) bool {
	return s.ActiveRoles[roleID]
}

func (s *Snapshot) clone() *Snapshot {
	next := NewSnapshot()
	for k, v := range s.RolesByUser {
		roles := make([]string, len(v))
		copy(roles, v)
		next.RolesByUser[k] = roles
	}
	for k, v := range s.GrantsByRole {
		grants := make([]Grant, len(v))
		copy(grants, v)
		next.GrantsByRole[k] = grants
	}
	for k, v := range s.ActiveRoles {
		next.ActiveRoles[k] = v
	}
	return next
}

// SnapshotLoader produces a full snapshot from the backing store. The cache
// calls it on every refresh tick.
type SnapshotLoader interface {
	LoadRoleSnapshot(ctx context.Context) (*Snapshot, error)
}
