// Package roster is the students data-access collaborator. It does not make
// authorization decisions; it is contractually required to honor the scope
// filter the decision engine resolved for the request.
package roster

import (
	"context"
	"errors"
	"time"

	"schoolcore.org/internal/authz"
)

var (
	ErrNotFound     = errors.New("roster: not found")
	ErrInvalidInput = errors.New("roster: invalid input")
)

// Student is one roster row. CreatedBy identifies the owning user for
// own-scoped access.
type Student struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Grade     string    `json:"grade,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Service exposes roster reads and writes. Every read takes the resolved
// scope filter; an own filter restricts results to rows the owner created.
type Service interface {
	Create(ctx context.Context, student Student) (Student, error)
	List(ctx context.Context, tenantID string, filter authz.ScopeFilter) ([]Student, error)
	Get(ctx context.Context, tenantID, studentID string, filter authz.ScopeFilter) (Student, error)
}

// Visible reports whether the row passes the filter. Shared by every Service
// implementation so the ownership rule lives in one place.
func Visible(s Student, filter authz.ScopeFilter) bool {
	switch filter.Scope {
	case authz.ScopeFull:
		return true
	case authz.ScopeOwn:
		return s.CreatedBy == filter.OwnerID
	default:
		// No filter means no allowing decision was made; show nothing.
		return false
	}
}
