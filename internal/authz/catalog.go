package authz

// ModuleActions is one catalog entry: a resource domain and the actions the
// platform understands for it.
type ModuleActions struct {
	Module  string   `json:"module"`
	Actions []string `json:"actions"`
}

// Catalog is the static registry of valid (module, action) pairs. It is built
// once at process start and never changes at runtime; an operation outside
// the catalog can never match a grant.
type Catalog struct {
	ordered []ModuleActions
	index   map[string]map[string]struct{}
}

// NewCatalog builds a catalog preserving declaration order. Duplicate modules
// or actions collapse into one entry.
func NewCatalog(entries []ModuleActions) *Catalog {
	c := &Catalog{index: make(map[string]map[string]struct{}, len(entries))}
	for _, e := range entries {
		actions, ok := c.index[e.Module]
		if !ok {
			actions = make(map[string]struct{}, len(e.Actions))
			c.index[e.Module] = actions
			c.ordered = append(c.ordered, ModuleActions{Module: e.Module})
		}
		idx := c.position(e.Module)
		for _, a := range e.Actions {
			if _, dup := actions[a]; dup {
				continue
			}
			actions[a] = struct{}{}
			c.ordered[idx].Actions = append(c.ordered[idx].Actions, a)
		}
	}
	return c
}

func (c *Catalog) position(module string) int {
	for i, e := range c.ordered {
		if e.Module == module {
			return i
		}
	}
	return -1
}

// IsValidOperation reports whether (module, action) is a known operation.
func (c *Catalog) IsValidOperation(module, action string) bool {
	actions, ok := c.index[module]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Modules returns the catalog in declaration order. Callers receive a copy;
// the catalog itself stays immutable.
func (c *Catalog) Modules() []ModuleActions {
	out := make([]ModuleActions, len(c.ordered))
	for i, e := range c.ordered {
		actions := make([]string, len(e.Actions))
		copy(actions, e.Actions)
		out[i] = ModuleActions{Module: e.Module, Actions: actions}
	}
	return out
}

const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
)

// Catalog modules.
const (
	ModuleStudents       = "students"
	ModuleTeachers       = "teachers"
	ModuleClasses        = "classes"
	ModuleGrades         = "grades"
	ModuleAttendance     = "attendance"
	ModuleReports        = "reports"
	ModuleUserManagement = "user_management"
	ModuleRoleManagement = "role_management"
	ModuleTenantSettings = "tenant_settings"
)

var crud = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// Default is the platform catalog. Changing it requires a deployment.
var Default = NewCatalog([]ModuleActions{
	{Module: ModuleStudents, Actions: append(crud, ActionExport)},
	{Module: ModuleTeachers, Actions: crud},
	{Module: ModuleClasses, Actions: crud},
	{Module: ModuleGrades, Actions: append(crud, ActionExport)},
	{Module: ModuleAttendance, Actions: []string{ActionRead, ActionCreate, ActionUpdate, ActionExport}},
	{Module: ModuleReports, Actions: []string{ActionRead, ActionExport}},
	{Module: ModuleUserManagement, Actions: crud},
	{Module: ModuleRoleManagement, Actions: crud},
	{Module: ModuleTenantSettings, Actions: []string{ActionRead, ActionUpdate}},
})
