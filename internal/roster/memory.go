package roster

import (
	"context"
	"strings"
	"sync"
	"time"

	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/ids"
)

// MemoryService is the in-memory Service used in tests and DSN-less runs.
type MemoryService struct {
	mu       sync.RWMutex
	students []Student
}

var _ Service = (*MemoryService)(nil)

func NewMemoryService() *MemoryService {
	return &MemoryService{}
}

func (m *MemoryService) Create(ctx context.Context, student Student) (Student, error) {
	if err := ctx.Err(); err != nil {
		return Student{}, err
	}
	student.Name = strings.TrimSpace(student.Name)
	if student.TenantID == "" || student.Name == "" || student.CreatedBy == "" {
		return Student{}, ErrInvalidInput
	}
	student.ID = ids.New()
	student.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = append(m.students, student)
	return student, nil
}

func (m *MemoryService) List(ctx context.Context, tenantID string, filter authz.ScopeFilter) ([]Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Student
	for _, s := range m.students {
		if s.TenantID != tenantID {
			continue
		}
		if !Visible(s, filter) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryService) Get(ctx context.Context, tenantID, studentID string, filter authz.ScopeFilter) (Student, error) {
	if err := ctx.Err(); err != nil {
		return Student{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.students {
		if s.TenantID != tenantID || s.ID != studentID {
			continue
		}
		if !Visible(s, filter) {
			// Hidden rows and missing rows look the same to the caller.
			return Student{}, ErrNotFound
		}
		return s, nil
	}
	return Student{}, ErrNotFound
}
