package composer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	company        Company
	companyFound   bool
	project        Project
	departments    []Department
	active         []Department
	roles          []Role
	techDocs       string
	knowledge      []KnowledgeEntry
	playbooks      []Playbook
	decisions      []Decision
}

func (f *fakeSource) Company(ctx context.Context, id string) (Company, bool, error) {
	return f.company, f.companyFound, nil
}
func (f *fakeSource) Project(ctx context.Context, id string) (Project, bool, error) {
	return f.project, f.project.ID == id, nil
}
func (f *fakeSource) Departments(ctx context.Context, ids []string) ([]Department, error) {
	return f.departments, nil
}
func (f *fakeSource) ActiveDepartments(ctx context.Context, companyID string) ([]Department, error) {
	return f.active, nil
}
func (f *fakeSource) Roles(ctx context.Context, ids []string) ([]Role, error) {
	return f.roles, nil
}
func (f *fakeSource) TechnicalDocumentation(ctx context.Context) (string, bool, error) {
	return f.techDocs, f.techDocs != "", nil
}
func (f *fakeSource) KnowledgeEntries(ctx context.Context, companyID string, departmentIDs []string, limit int) ([]KnowledgeEntry, error) {
	return f.knowledge, nil
}
func (f *fakeSource) Playbooks(ctx context.Context, companyID string, departmentIDs []string, explicitIDs []string) ([]Playbook, error) {
	return f.playbooks, nil
}
func (f *fakeSource) RecentDecisions(ctx context.Context, companyID string, departmentIDs []string, limit int) ([]Decision, error) {
	return f.decisions, nil
}

func TestCompose_NoCompany_ZeroRoleHeader(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	res, err := Compose(context.Background(), src, Input{MaxTokens: 2000})
	require.NoError(t, err)
	assert.Contains(t, res.Prompt, "AI Council")
	assert.Contains(t, res.Prompt, "[GAP: ...]")
}

func TestCompose_CompanyNotFound(t *testing.T) {
	t.Parallel()

	src := &fakeSource{companyFound: false}
	_, err := Compose(context.Background(), src, Input{CompanyID: "acme", MaxTokens: 2000})
	require.Error(t, err)
}

func TestCompose_SingleRole(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		company:      Company{ID: "acme", Name: "Acme", Context: "Acme sells widgets."},
		companyFound: true,
		roles:        []Role{{ID: "cfo", Name: "CFO", Description: "Financial oversight"}},
	}
	res, err := Compose(context.Background(), src, Input{CompanyID: "acme", RoleIDs: []string{"cfo"}, MaxTokens: 4000})
	require.NoError(t, err)
	assert.Contains(t, res.Prompt, "You are the CFO")
	assert.Contains(t, res.Prompt, "=== COMPANY CONTEXT ===")
	assert.Contains(t, res.Prompt, "Respond AS the CFO")
}

func TestCompose_TruncatesOverBudgetSection(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		company:      Company{ID: "acme", Context: strings.Repeat("long context. ", 5000)},
		companyFound: true,
	}
	res, err := Compose(context.Background(), src, Input{CompanyID: "acme", MaxTokens: 50})
	require.NoError(t, err)
	require.NotEmpty(t, res.OverflowReport)
	assert.Contains(t, res.OverflowReport[0].Section, "company_context")
}

func TestSectionMarkers_CoversKnownMarkers(t *testing.T) {
	t.Parallel()

	markers := SectionMarkers()
	assert.Contains(t, markers, "=== COMPANY CONTEXT ===")
	assert.Contains(t, markers, "=== KNOWLEDGE BASE (Recent Decisions & Patterns) ===")
}
