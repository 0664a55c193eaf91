// Package view assembles screen projections from already fetched
// collections. Every function is pure: no network access, no mutation of
// its inputs.
package view

import (
	"sort"

	"numa/internal/domain"
	"numa/internal/resolve"
	"numa/internal/workflow"
)

// Placeholders are shown for null references.
type Placeholders struct {
	Unassigned  string
	Unspecified string
}

var DefaultPlaceholders = Placeholders{Unassigned: "unassigned", Unspecified: "unspecified"}

// Assembler composes resolver, guard and clarification engine per screen.
type Assembler struct {
	Placeholders Placeholders
}

func New(p Placeholders) Assembler {
	if p.Unassigned == "" {
		p.Unassigned = DefaultPlaceholders.Unassigned
	}
	if p.Unspecified == "" {
		p.Unspecified = DefaultPlaceholders.Unspecified
	}
	return Assembler{Placeholders: p}
}

// Lookup builders.

func Users(items []domain.User) resolve.Lookup {
	return resolve.Index(items, func(u domain.User) int64 { return u.ID }, func(u domain.User) string { return u.Name })
}

func Applications(items []domain.Application) resolve.Lookup {
	return resolve.Index(items, func(a domain.Application) int64 { return a.ID }, func(a domain.Application) string { return a.Name })
}

func Requirements(items []domain.Requirement) resolve.Lookup {
	return resolve.Index(items, func(r domain.Requirement) int64 { return r.ID }, func(r domain.Requirement) string { return r.Title })
}

func Solutions(items []domain.Solution) resolve.Lookup {
	return resolve.Index(items, func(s domain.Solution) int64 { return s.ID }, func(s domain.Solution) string { return s.Title })
}

func Tasks(items []domain.DevelopmentTask) resolve.Lookup {
	return resolve.Index(items, func(t domain.DevelopmentTask) int64 { return t.ID }, func(t domain.DevelopmentTask) string { return t.Title })
}

type TaskRow struct {
	Task     domain.DevelopmentTask `json:"task"`
	Solution resolve.Ref            `json:"solution"`
	Assignee resolve.Ref            `json:"assignee"`
	Branch   string                 `json:"branch"`
}

// TaskList joins tasks with solution titles and assignee names.
func (a Assembler) TaskList(tasks []domain.DevelopmentTask, solutions []domain.Solution, users []domain.User) []TaskRow {
	fields := []resolve.Field[domain.DevelopmentTask]{
		{Name: "solution_id", Key: resolve.Key(func(t domain.DevelopmentTask) int64 { return t.SolutionID })},
		{Name: "assigned_to", Key: func(t domain.DevelopmentTask) *int64 { return t.AssignedTo }, Placeholder: a.Placeholders.Unassigned},
	}
	rows := resolve.Resolve(tasks, fields, resolve.Lookups{
		"solution_id": Solutions(solutions),
		"assigned_to": Users(users),
	})
	out := make([]TaskRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, TaskRow{
			Task:     r.Item,
			Solution: r.Ref("solution_id"),
			Assignee: r.Ref("assigned_to"),
			Branch:   a.orUnspecified(r.Item.CodeBranch),
		})
	}
	return out
}

type RequirementRow struct {
	Requirement domain.Requirement `json:"requirement"`
	Assignee    resolve.Ref        `json:"assignee"`
	Application resolve.Ref        `json:"application"`
	Actions     []workflow.Action  `json:"actions"`
}

func (a Assembler) RequirementList(reqs []domain.Requirement, users []domain.User, apps []domain.Application, actingUserID int64) []RequirementRow {
	fields := []resolve.Field[domain.Requirement]{
		{Name: "assigned_to", Key: func(r domain.Requirement) *int64 { return r.AssignedTo }, Placeholder: a.Placeholders.Unassigned},
		{Name: "application_id", Key: func(r domain.Requirement) *int64 { return r.ApplicationID }, Placeholder: a.Placeholders.Unspecified},
	}
	rows := resolve.Resolve(reqs, fields, resolve.Lookups{
		"assigned_to":    Users(users),
		"application_id": Applications(apps),
	})
	out := make([]RequirementRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, RequirementRow{
			Requirement: r.Item,
			Assignee:    r.Ref("assigned_to"),
			Application: r.Ref("application_id"),
			Actions:     workflow.PermittedActions(r.Item, actingUserID),
		})
	}
	return out
}

type SolutionRow struct {
	Solution    domain.Solution   `json:"solution"`
	Requirement resolve.Ref       `json:"requirement"`
	Author      resolve.Ref       `json:"author"`
	Actions     []workflow.Action `json:"actions"`
}

func (a Assembler) SolutionList(sols []domain.Solution, reqs []domain.Requirement, users []domain.User, actingUserID int64) []SolutionRow {
	fields := []resolve.Field[domain.Solution]{
		{Name: "requirement_id", Key: resolve.Key(func(s domain.Solution) int64 { return s.RequirementID })},
		{Name: "created_by", Key: resolve.Key(func(s domain.Solution) int64 { return s.CreatedBy })},
	}
	rows := resolve.Resolve(sols, fields, resolve.Lookups{
		"requirement_id": Requirements(reqs),
		"created_by":     Users(users),
	})
	out := make([]SolutionRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, SolutionRow{
			Solution:    r.Item,
			Requirement: r.Ref("requirement_id"),
			Author:      r.Ref("created_by"),
			Actions:     workflow.PermittedActions(r.Item, actingUserID),
		})
	}
	return out
}

type DeploymentRow struct {
	Deployment domain.Deployment `json:"deployment"`
	Task       resolve.Ref       `json:"task"`
	DeployedBy resolve.Ref       `json:"deployed_by"`
}

func (a Assembler) DeploymentList(deps []domain.Deployment, tasks []domain.DevelopmentTask, users []domain.User) []DeploymentRow {
	fields := []resolve.Field[domain.Deployment]{
		{Name: "development_task_id", Key: resolve.Key(func(d domain.Deployment) int64 { return d.DevelopmentTaskID })},
		{Name: "deployed_by", Key: func(d domain.Deployment) *int64 { return d.DeployedBy }, Placeholder: a.Placeholders.Unspecified},
	}
	rows := resolve.Resolve(deps, fields, resolve.Lookups{
		"development_task_id": Tasks(tasks),
		"deployed_by":         Users(users),
	})
	out := make([]DeploymentRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, DeploymentRow{
			Deployment: r.Item,
			Task:       r.Ref("development_task_id"),
			DeployedBy: r.Ref("deployed_by"),
		})
	}
	return out
}

type ApplicationRow struct {
	Application domain.Application `json:"application"`
	Creator     resolve.Ref        `json:"creator"`
}

func (a Assembler) ApplicationList(apps []domain.Application, users []domain.User) []ApplicationRow {
	fields := []resolve.Field[domain.Application]{
		{Name: "created_by", Key: func(ap domain.Application) *int64 { return ap.CreatedBy }, Placeholder: a.Placeholders.Unspecified},
	}
	rows := resolve.Resolve(apps, fields, resolve.Lookups{"created_by": Users(users)})
	out := make([]ApplicationRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ApplicationRow{Application: r.Item, Creator: r.Ref("created_by")})
	}
	return out
}

func (a Assembler) orUnspecified(s *string) string {
	if s == nil || *s == "" {
		return a.Placeholders.Unspecified
	}
	return *s
}

// StageSummary counts one pipeline stage by status.
type StageSummary struct {
	Kind     domain.EntityKind `json:"kind"`
	Total    int               `json:"total"`
	ByStatus map[string]int    `json:"by_status"`
}

// Home summarizes the pipeline from requirement to deployment.
type Home struct {
	Stages []StageSummary `json:"stages"`
}

func (a Assembler) Home(reqs []domain.Requirement, sols []domain.Solution, tasks []domain.DevelopmentTask, deps []domain.Deployment) Home {
	return Home{Stages: []StageSummary{
		summarize(domain.KindRequirement, reqs),
		summarize(domain.KindSolution, sols),
		summarize(domain.KindDevelopmentTask, tasks),
		summarize(domain.KindDeployment, deps),
	}}
}

func summarize[T workflow.Entity](kind domain.EntityKind, items []T) StageSummary {
	s := StageSummary{Kind: kind, Total: len(items), ByStatus: map[string]int{}}
	for _, it := range items {
		s.ByStatus[it.EntityStatus()]++
	}
	return s
}

// Statuses returns the status keys of a summary in stable order.
func (s StageSummary) Statuses() []string {
	keys := make([]string, 0, len(s.ByStatus))
	for k := range s.ByStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
