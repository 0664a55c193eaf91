package view

import (
	"numa/internal/clarify"
	"numa/internal/domain"
	"numa/internal/resolve"
	"numa/internal/workflow"
)

type RequirementDetail struct {
	Requirement domain.Requirement    `json:"requirement"`
	Assignee    resolve.Ref           `json:"assignee"`
	Application resolve.Ref           `json:"application"`
	Actions     []workflow.ActionSpec `json:"actions"`
	Questions   clarify.Panel         `json:"questions"`
	Solutions   []SolutionRow         `json:"solutions"`
}

// RequirementDetail bundles the requirement with its permitted actions, its
// Q&A panel and the solutions proposed for it.
func (a Assembler) RequirementDetail(req domain.Requirement, questions []domain.Question, solutions []domain.Solution, users []domain.User, apps []domain.Application, actingUserID int64) RequirementDetail {
	userLookup := Users(users)
	owner := clarify.Owner(req)
	return RequirementDetail{
		Requirement: req,
		Assignee:    resolve.One(req.AssignedTo, userLookup, a.Placeholders.Unassigned),
		Application: resolve.One(req.ApplicationID, Applications(apps), a.Placeholders.Unspecified),
		Actions:     nonNilSpecs(workflow.Permitted(req, actingUserID)),
		Questions:   clarify.BuildPanel(domain.ParentRequirement, req.ID, owner, questions, actingUserID),
		Solutions:   a.SolutionList(solutions, []domain.Requirement{req}, users, actingUserID),
	}
}

// SolutionDetail.ConfirmReady is false while any question is still
// unclarified; the backend refuses confirmation in that case.
type SolutionDetail struct {
	Solution     domain.Solution       `json:"solution"`
	Requirement  resolve.Ref           `json:"requirement"`
	Author       resolve.Ref           `json:"author"`
	Actions      []workflow.ActionSpec `json:"actions"`
	Questions    clarify.Panel         `json:"questions"`
	ConfirmReady bool                  `json:"confirm_ready"`
	Tasks        []TaskRow             `json:"tasks"`
}

func (a Assembler) SolutionDetail(sol domain.Solution, questions []domain.Question, reqs []domain.Requirement, tasks []domain.DevelopmentTask, users []domain.User, actingUserID int64) SolutionDetail {
	userLookup := Users(users)
	panel := clarify.BuildPanel(domain.ParentSolution, sol.ID, clarify.Owner(sol), questions, actingUserID)
	actions := nonNilSpecs(workflow.Permitted(sol, actingUserID))
	return SolutionDetail{
		Solution:     sol,
		Requirement:  resolve.One(domain.Int64(sol.RequirementID), Requirements(reqs), ""),
		Author:       resolve.One(domain.Int64(sol.CreatedBy), userLookup, ""),
		Actions:      actions,
		Questions:    panel,
		ConfirmReady: workflow.Permits(sol, workflow.ActionConfirm) && panel.AllClarified,
		Tasks:        a.TaskList(tasks, []domain.Solution{sol}, users),
	}
}

type TaskDetail struct {
	Task        domain.DevelopmentTask `json:"task"`
	Solution    resolve.Ref            `json:"solution"`
	Requirement resolve.Ref            `json:"requirement"`
	Assignee    resolve.Ref            `json:"assignee"`
	Branch      string                 `json:"branch"`
	Deployments []DeploymentRow        `json:"deployments"`
}

// TaskDetail walks task -> solution -> requirement. Missing links resolve to
// raw ids or placeholders.
func (a Assembler) TaskDetail(task domain.DevelopmentTask, solutions []domain.Solution, reqs []domain.Requirement, deps []domain.Deployment, users []domain.User) TaskDetail {
	out := TaskDetail{
		Task:        task,
		Solution:    resolve.One(domain.Int64(task.SolutionID), Solutions(solutions), ""),
		Requirement: resolve.Ref{Label: a.Placeholders.Unspecified},
		Assignee:    resolve.One(task.AssignedTo, Users(users), a.Placeholders.Unassigned),
		Branch:      a.orUnspecified(task.CodeBranch),
		Deployments: a.DeploymentList(deps, []domain.DevelopmentTask{task}, users),
	}
	for _, s := range solutions {
		if s.ID == task.SolutionID {
			out.Requirement = resolve.One(domain.Int64(s.RequirementID), Requirements(reqs), "")
			break
		}
	}
	return out
}

type DeploymentDetail struct {
	Deployment domain.Deployment `json:"deployment"`
	Task       resolve.Ref       `json:"task"`
	Solution   resolve.Ref       `json:"solution"`
	DeployedBy resolve.Ref       `json:"deployed_by"`
}

func (a Assembler) DeploymentDetail(dep domain.Deployment, tasks []domain.DevelopmentTask, solutions []domain.Solution, users []domain.User) DeploymentDetail {
	out := DeploymentDetail{
		Deployment: dep,
		Task:       resolve.One(domain.Int64(dep.DevelopmentTaskID), Tasks(tasks), ""),
		Solution:   resolve.Ref{Label: a.Placeholders.Unspecified},
		DeployedBy: resolve.One(dep.DeployedBy, Users(users), a.Placeholders.Unspecified),
	}
	for _, t := range tasks {
		if t.ID == dep.DevelopmentTaskID {
			out.Solution = resolve.One(domain.Int64(t.SolutionID), Solutions(solutions), "")
			break
		}
	}
	return out
}

type ApplicationDetail struct {
	Application  domain.Application `json:"application"`
	Creator      resolve.Ref        `json:"creator"`
	Requirements []RequirementRow   `json:"requirements"`
}

// ApplicationDetail lists the requirements raised against the application.
func (a Assembler) ApplicationDetail(app domain.Application, reqs []domain.Requirement, users []domain.User, actingUserID int64) ApplicationDetail {
	var own []domain.Requirement
	for _, r := range reqs {
		if r.ApplicationID != nil && *r.ApplicationID == app.ID {
			own = append(own, r)
		}
	}
	return ApplicationDetail{
		Application:  app,
		Creator:      resolve.One(app.CreatedBy, Users(users), a.Placeholders.Unspecified),
		Requirements: a.RequirementList(own, users, []domain.Application{app}, actingUserID),
	}
}

func nonNilSpecs(s []workflow.ActionSpec) []workflow.ActionSpec {
	if s == nil {
		return []workflow.ActionSpec{}
	}
	return s
}
