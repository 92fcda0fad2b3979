package composer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"council/internal/safety"
)

// charsPerToken approximates a token's size in characters for the purpose
// of converting Input.MaxTokens into a character budget; the core has no
// tokenizer dependency of its own, and the rough 4:1 ratio is the same
// approximation the teacher's own context-window guards use.
const charsPerToken = 4

// categoryDisplayNames renders KnowledgeEntry.Category the way the
// original composer's Python did for the handful of known categories,
// falling back to a title-cased, underscore-to-space rendering.
var categoryDisplayNames = map[string]string{
	"technical_decision": "Technical Decisions",
	"ux_pattern":          "UX Patterns",
	"feature":             "Features",
	"policy":              "Policies",
	"process":             "Processes",
}

// SectionMarkers returns every "=== ... ===" style marker this composer
// can emit, so internal/safety can redact a leaked marker from model
// output (§4.4.5/§4.4.6).
func SectionMarkers() []string {
	return []string{
		"=== COMPANY CONTEXT ===", "=== END COMPANY CONTEXT ===",
		"=== ACTIVE DEPARTMENTS ===", "=== END ACTIVE DEPARTMENTS ===",
		"=== TECHNICAL DOCUMENTATION ===", "=== END TECHNICAL DOCUMENTATION ===",
		"=== KNOWLEDGE BASE (Recent Decisions & Patterns) ===", "=== END KNOWLEDGE BASE ===",
	}
}

type section struct {
	name     string
	body     string
	required bool // required sections are never dropped, only truncated
}

// Compose builds the system prompt per §4.5's ten-step composition order
// and per-section budget. Failed resolution of any optional identifier is
// logged by the caller (Compose returns the error only for the company
// lookup, which is the one non-optional resolution) and elided here.
func Compose(ctx context.Context, src Source, in Input) (Result, error) {
	var company Company
	var companyFound bool
	var project Project
	var departments []Department
	var active []Department
	var roles []Role
	var techDocs string
	var knowledge []KnowledgeEntry
	var playbooks []Playbook
	var decisions []Decision

	g, gctx := errgroup.WithContext(ctx)

	if in.CompanyID != "" {
		g.Go(func() error {
			var err error
			company, companyFound, err = src.Company(gctx, in.CompanyID)
			return err
		})
	}
	if in.ProjectID != "" {
		g.Go(func() error {
			p, found, err := src.Project(gctx, in.ProjectID)
			if err != nil || !found {
				return nil // optional: elide on failure, never fatal
			}
			project = p
			return nil
		})
	}
	if len(in.DepartmentIDs) > 0 {
		g.Go(func() error {
			depts, err := src.Departments(gctx, in.DepartmentIDs)
			if err != nil {
				return nil
			}
			departments = depts
			return nil
		})
	}
	if in.CompanyID != "" {
		g.Go(func() error {
			depts, err := src.ActiveDepartments(gctx, in.CompanyID)
			if err != nil {
				return nil
			}
			active = depts
			return nil
		})
	}
	if len(in.RoleIDs) > 0 {
		g.Go(func() error {
			rs, err := src.Roles(gctx, in.RoleIDs)
			if err != nil {
				return nil
			}
			roles = rs
			return nil
		})
	}
	for _, dept := range in.DepartmentIDs {
		if dept == "technology" {
			g.Go(func() error {
				docs, found, err := src.TechnicalDocumentation(gctx)
				if err != nil || !found {
					return nil
				}
				techDocs = docs
				return nil
			})
			break
		}
	}
	if in.CompanyID != "" {
		g.Go(func() error {
			entries, err := src.KnowledgeEntries(gctx, in.CompanyID, in.DepartmentIDs, 20)
			if err != nil {
				return nil
			}
			knowledge = entries
			return nil
		})
		g.Go(func() error {
			pbs, err := src.Playbooks(gctx, in.CompanyID, in.DepartmentIDs, in.PlaybookIDs)
			if err != nil {
				return nil
			}
			playbooks = pbs
			return nil
		})
		g.Go(func() error {
			ds, err := src.RecentDecisions(gctx, in.CompanyID, in.DepartmentIDs, 10)
			if err != nil {
				return nil
			}
			decisions = ds
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("composer: resolving company context: %w", err)
	}
	if in.CompanyID != "" && !companyFound {
		return Result{}, fmt.Errorf("composer: company %q not found", in.CompanyID)
	}

	sections := buildSections(roleHeader(roles, departments), company, project, active, departments, techDocs, knowledge, playbooks, decisions)

	budgetChars := in.MaxTokens * charsPerToken
	prompt, overflow := render(sections, budgetChars)
	prompt += responseGuidance(roles, in.DepartmentIDs)

	return Result{Prompt: prompt, OverflowReport: overflow}, nil
}

func roleHeader(roles []Role, departments []Department) section {
	var body string
	switch len(roles) {
	case 0:
		body = "You are an AI advisor participating in an AI Council. Read the business context carefully and ensure all your advice is relevant and appropriate for this company's situation, priorities, and constraints."
	case 1:
		r := roles[0]
		body = fmt.Sprintf(
			"You are the %s for this company, participating in an AI Council as one of several perspectives on the same question.\n\nYour role: %s\n\nRespond from the perspective of a %s. Focus on the aspects of this question most relevant to your role and expertise.",
			r.Name, r.Description, r.Name,
		)
	default:
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = r.Name
		}
		body = fmt.Sprintf(
			"You are part of an AI Council responding from multiple perspectives: %s. Integrate these perspectives into a single coherent response rather than addressing them separately.",
			strings.Join(names, ", "),
		)
	}
	return section{name: "role_header", body: body, required: true}
}

func buildSections(header section, company Company, project Project, active, departments []Department, techDocs string, knowledge []KnowledgeEntry, playbooks []Playbook, decisions []Decision) []section {
	sections := []section{header}

	if company.Context != "" {
		sections = append(sections, section{
			name:     "company_context",
			required: true,
			body:     "=== COMPANY CONTEXT ===\n\n" + company.Context + "\n\n=== END COMPANY CONTEXT ===",
		})
	}

	if project.Context != "" {
		name := project.Name
		if name == "" {
			name = "Current Project"
		}
		sections = append(sections, section{
			name: "project_context",
			body: fmt.Sprintf("=== PROJECT: %s ===\n\nThe user is currently working on this specific project/client. Ensure your advice is relevant to this project's context.\n\n%s\n\n=== END PROJECT CONTEXT ===", strings.ToUpper(name), project.Context),
		})
	}

	if len(active) > 0 {
		var b strings.Builder
		b.WriteString("=== ACTIVE DEPARTMENTS ===\n\nThis company currently has the following active departments with populated knowledge bases:\n\n")
		b.WriteString("| Department | Description |\n|------------|-------------|\n")
		for _, d := range active {
			desc := d.Description
			if desc == "" {
				desc = "No description"
			}
			fmt.Fprintf(&b, "| %s | %s |\n", d.Name, desc)
		}
		b.WriteString("\n=== END ACTIVE DEPARTMENTS ===")
		sections = append(sections, section{name: "active_departments", body: b.String()})
	}

	for _, d := range departments {
		var b strings.Builder
		fmt.Fprintf(&b, "=== DEPARTMENT: %s ===\n", strings.ToUpper(d.Name))
		if d.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", d.Description)
		}
		if len(d.Roles) > 0 {
			b.WriteString("\nAvailable Roles:\n")
			for _, r := range d.Roles {
				fmt.Fprintf(&b, "- %s: %s\n", r.Name, r.Description)
			}
		}
		if d.Context != "" {
			fmt.Fprintf(&b, "\n%s\n", d.Context)
		}
		fmt.Fprintf(&b, "\n=== END %s DEPARTMENT ===", strings.ToUpper(d.Name))
		sections = append(sections, section{name: "department:" + d.ID, body: b.String()})
	}

	if techDocs != "" {
		sections = append(sections, section{
			name: "technical_documentation",
			body: "=== TECHNICAL DOCUMENTATION ===\n\nThis documentation reflects the current technical architecture and implementation details.\n\n" + techDocs + "\n\n=== END TECHNICAL DOCUMENTATION ===",
		})
	}

	if len(knowledge) > 0 {
		sections = append(sections, section{name: "knowledge_base", body: renderKnowledgeBase(knowledge)})
	}

	if len(playbooks) > 0 {
		sections = append(sections, section{name: "playbooks", body: renderPlaybooks(playbooks)})
	}

	if len(decisions) > 0 {
		sections = append(sections, section{name: "recent_decisions", body: renderDecisions(decisions)})
	}

	return sections
}

func renderKnowledgeBase(entries []KnowledgeEntry) string {
	byCategory := map[string][]KnowledgeEntry{}
	var order []string
	for _, e := range entries {
		cat := e.Category
		if cat == "" {
			cat = "general"
		}
		if _, seen := byCategory[cat]; !seen {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], e)
	}
	sort.Strings(order)

	var b strings.Builder
	b.WriteString("=== KNOWLEDGE BASE (Recent Decisions & Patterns) ===\n\nThe following knowledge has been captured from previous council discussions and decisions:\n\n")
	for _, cat := range order {
		name, ok := categoryDisplayNames[cat]
		if !ok {
			name = strings.Title(strings.ReplaceAll(cat, "_", " "))
		}
		fmt.Fprintf(&b, "### %s\n\n", name)
		for _, e := range byCategory[cat] {
			title := e.Title
			if title == "" {
				title = "Untitled"
			}
			fmt.Fprintf(&b, "**%s**\n%s\n\n", title, e.Summary)
		}
	}
	b.WriteString("=== END KNOWLEDGE BASE ===")
	return b.String()
}

func renderPlaybooks(playbooks []Playbook) string {
	var b strings.Builder
	b.WriteString("=== PLAYBOOKS ===\n\n")
	for _, p := range playbooks {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", p.Title, p.Content)
	}
	b.WriteString("=== END PLAYBOOKS ===")
	return b.String()
}

func renderDecisions(decisions []Decision) string {
	var b strings.Builder
	b.WriteString("=== RECENT DECISIONS ===\n\n")
	for _, d := range decisions {
		fmt.Fprintf(&b, "- **%s**: %s\n", d.Title, d.Summary)
	}
	b.WriteString("\n=== END RECENT DECISIONS ===")
	return b.String()
}

// render concatenates sections in order, capping each at budget/len(sections)
// characters and truncating at a paragraph boundary when a section
// exceeds its cap (§4.5 budgeting rule).
func render(sections []section, budgetChars int) (string, []OverflowEntry) {
	var overflow []OverflowEntry
	var out strings.Builder

	cap := 0
	if len(sections) > 0 && budgetChars > 0 {
		cap = budgetChars / len(sections)
	}

	for i, s := range sections {
		body := s.body
		if cap > 0 && len(body) > cap {
			truncated := safety.SanitizeUserContentWithCap(body, cap)
			overflow = append(overflow, OverflowEntry{Section: s.name, OriginalLen: len(body), TruncatedLen: len(truncated)})
			body = truncated
		}
		out.WriteString(body)
		if i < len(sections)-1 {
			out.WriteString("\n\n")
		}
	}
	return out.String(), overflow
}

// responseGuidance is the fixed trailer (§4.5 step 10), with conditional
// role/department-specific items appended as 5/6.
func responseGuidance(roles []Role, departmentIDs []string) string {
	trailer := `

When responding:
1. Consider the business's stated priorities and constraints.
2. Be practical given their current stage and resources.
3. Provide complete recommendations; do not end with closing questions.
4. Report knowledge gaps via [GAP: ...] markers rather than guessing.
`
	switch {
	case len(roles) == 1:
		trailer += fmt.Sprintf("5. Respond AS the %s - stay in character and focus on your role's responsibilities.\n", roles[0].Name)
		trailer += fmt.Sprintf("6. Bring your unique perspective as %s to this question.\n", roles[0].Name)
	case len(departmentIDs) > 0:
		trailer += fmt.Sprintf("5. Focus your advice from the perspective of the %s department.\n", strings.Title(strings.ReplaceAll(departmentIDs[0], "-", " ")))
	}
	return trailer
}
