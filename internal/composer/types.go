// Package composer implements the Context Composer (C5): it assembles the
// Stage 1/Stage 3 system prompt from company, department, role, project,
// playbook, and knowledge-base fragments under a total character budget.
package composer

import "context"

// Company is free-text company context plus its display name.
type Company struct {
	ID      string
	Name    string
	Context string
}

// Project is free-text project context plus its display name.
type Project struct {
	ID      string
	Name    string
	Context string
}

// Department describes one department: its own context plus, for the
// active-departments summary, just name/description.
type Department struct {
	ID          string
	Name        string
	Description string
	Context     string
	Roles       []Role
}

// Role is a persona within a department, used for role-header selection
// and per-role guidance in the response-guidance trailer.
type Role struct {
	ID          string
	Name        string
	Description string
}

// KnowledgeEntry is one recent decision/pattern captured from a prior
// council discussion.
type KnowledgeEntry struct {
	Category string
	Title    string
	Summary  string
}

// Playbook is an SOP/framework/policy document eligible for auto-injection
// or explicit selection.
type Playbook struct {
	ID      string
	Title   string
	Content string
	Auto    bool
}

// Decision is a recent decision not yet promoted into the knowledge base.
type Decision struct {
	Title   string
	Summary string
}

// Source is the external data surface (§6) the composer resolves
// identifiers against. Implementations are out of the core's scope; a
// production caller backs this with its own storage layer.
type Source interface {
	Company(ctx context.Context, id string) (Company, bool, error)
	Project(ctx context.Context, id string) (Project, bool, error)
	Departments(ctx context.Context, ids []string) ([]Department, error)
	ActiveDepartments(ctx context.Context, companyID string) ([]Department, error)
	Roles(ctx context.Context, ids []string) ([]Role, error)
	TechnicalDocumentation(ctx context.Context) (string, bool, error)
	KnowledgeEntries(ctx context.Context, companyID string, departmentIDs []string, limit int) ([]KnowledgeEntry, error)
	Playbooks(ctx context.Context, companyID string, departmentIDs []string, explicitIDs []string) ([]Playbook, error)
	RecentDecisions(ctx context.Context, companyID string, departmentIDs []string, limit int) ([]Decision, error)
}

// Input is one Compose request.
type Input struct {
	CompanyID     string
	ProjectID     string
	DepartmentIDs []string
	RoleIDs       []string
	PlaybookIDs   []string
	MaxTokens     int
}

// OverflowEntry records one section truncated by the budget.
type OverflowEntry struct {
	Section      string
	OriginalLen  int
	TruncatedLen int
}

// Result is the composer's output.
type Result struct {
	Prompt         string
	OverflowReport []OverflowEntry
}
