package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"schoolcore.org/internal/auth"
	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/roster"
)

type createStudentRequest struct {
	Name  string `json:"name"`
	Grade string `json:"grade"`
}

func (a *API) handleStudents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.requireOperation(authz.ModuleStudents, authz.ActionRead, a.listStudents)(w, r)
	case http.MethodPost:
		a.requireOperation(authz.ModuleStudents, authz.ActionCreate, a.createStudent)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// listStudents applies the caller's scope filter: own-scoped callers only see
// records they created, full-scoped callers see the whole tenant.
func (a *API) listStudents(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := auth.TenantIDFromContext(r.Context())
	filter, _ := authz.FilterFromContext(r.Context())
	students, err := a.roster.List(r.Context(), tenantID, filter)
	if err != nil {
		handleRosterError(w, r, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

func (a *API) createStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenantID, _ := auth.TenantIDFromContext(r.Context())
	userID, _ := auth.UserIDFromContext(r.Context())
	student, err := a.roster.Create(r.Context(), roster.Student{
		TenantID:  tenantID,
		Name:      req.Name,
		Grade:     req.Grade,
		CreatedBy: userID,
	})
	if err != nil {
		handleRosterError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/students/%s", student.ID))
	writeJSON(w, http.StatusCreated, student)
}

func (a *API) handleStudentResource(w http.ResponseWriter, r *http.Request) {
	parts := resourceParts(r.URL.Path, "/v1/students/")
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	studentID := parts[0]
	a.requireOperation(authz.ModuleStudents, authz.ActionRead, func(w http.ResponseWriter, r *http.Request) {
		tenantID, _ := auth.TenantIDFromContext(r.Context())
		filter, _ := authz.FilterFromContext(r.Context())
		student, err := a.roster.Get(r.Context(), tenantID, studentID, filter)
		if err != nil {
			handleRosterError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, student)
	})(w, r)
}

func handleRosterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, roster.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, roster.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "operation failed")
	}
}
