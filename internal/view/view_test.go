package view_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numa/internal/clarify"
	"numa/internal/domain"
	"numa/internal/view"
	"numa/internal/workflow"
)

var (
	users = []domain.User{{ID: 3, Name: "carol"}, {ID: 7, Name: "grace"}}
	apps  = []domain.Application{{ID: 1, Name: "billing"}}
)

func TestTaskList(t *testing.T) {
	a := view.New(view.Placeholders{})
	tasks := []domain.DevelopmentTask{
		{ID: 1, Title: "impl", SolutionID: 10, AssignedTo: domain.Int64(7), CodeBranch: domain.String("feature/x")},
		{ID: 2, Title: "docs", SolutionID: 99},
	}
	sols := []domain.Solution{{ID: 10, Title: "Cache"}}
	rows := a.TaskList(tasks, sols, users)
	require.Len(t, rows, 2)
	assert.Equal(t, "10: Cache", rows[0].Solution.Label)
	assert.Equal(t, "7: grace", rows[0].Assignee.Label)
	assert.Equal(t, "feature/x", rows[0].Branch)
	assert.Equal(t, "99", rows[1].Solution.Label)
	assert.Equal(t, "unassigned", rows[1].Assignee.Label)
	assert.Equal(t, "unspecified", rows[1].Branch)
}

func TestTaskListWithEmptyLookups(t *testing.T) {
	a := view.New(view.DefaultPlaceholders)
	rows := a.TaskList([]domain.DevelopmentTask{{ID: 1, SolutionID: 99, AssignedTo: domain.Int64(3)}}, nil, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "99", rows[0].Solution.Label)
	assert.Equal(t, "3", rows[0].Assignee.Label)
}

func TestRequirementListCarriesActions(t *testing.T) {
	a := view.New(view.DefaultPlaceholders)
	reqs := []domain.Requirement{
		{ID: 1, Status: domain.RequirementPending, ApplicationID: domain.Int64(1)},
		{ID: 2, Status: domain.RequirementClarifying, AssignedTo: domain.Int64(7)},
		{ID: 3, Status: domain.RequirementConfirmed},
	}
	rows := a.RequirementList(reqs, users, apps, 7)
	require.Len(t, rows, 3)
	assert.Equal(t, []workflow.Action{workflow.ActionAssign}, rows[0].Actions)
	assert.Equal(t, "1: billing", rows[0].Application.Label)
	assert.Equal(t, "unspecified", rows[1].Application.Label)
	assert.Equal(t, "7: grace", rows[1].Assignee.Label)
	assert.Empty(t, rows[2].Actions)
}

func TestRequirementDetail(t *testing.T) {
	a := view.New(view.DefaultPlaceholders)
	req := domain.Requirement{ID: 4, Status: domain.RequirementClarifying, AssignedTo: domain.Int64(7)}
	qs := []domain.Question{
		{ID: 1, RequirementID: domain.Int64(4), Answer: domain.String("yes")},
		{ID: 2, RequirementID: domain.Int64(4)},
	}
	sols := []domain.Solution{{ID: 8, Title: "s", RequirementID: 4, CreatedBy: 3, Status: domain.SolutionClarifying}}

	d := a.RequirementDetail(req, qs, sols, users, apps, 7)
	assert.ElementsMatch(t, []workflow.Action{workflow.ActionConfirm, workflow.ActionClarify}, actionsOf(d.Actions))
	assert.True(t, d.Questions.IsOwner)
	assert.Equal(t, clarify.StateAnswered, d.Questions.Items[0].State)
	assert.True(t, d.Questions.Items[0].CanClarify)
	assert.False(t, d.Questions.AllClarified)
	require.Len(t, d.Solutions, 1)
	assert.Equal(t, "3: carol", d.Solutions[0].Author.Label)

	asOther := a.RequirementDetail(req, qs, sols, users, apps, 3)
	assert.False(t, asOther.Questions.Items[0].CanClarify)
}

func TestSolutionDetailConfirmReady(t *testing.T) {
	a := view.New(view.DefaultPlaceholders)
	sol := domain.Solution{ID: 5, Status: domain.SolutionClarifying, RequirementID: 4, CreatedBy: 7}
	reqs := []domain.Requirement{{ID: 4, Title: "Export"}}

	pending := a.SolutionDetail(sol, []domain.Question{{ID: 1, SolutionID: domain.Int64(5)}}, reqs, nil, users, 7)
	assert.False(t, pending.ConfirmReady)
	assert.Equal(t, "4: Export", pending.Requirement.Label)

	ready := a.SolutionDetail(sol, []domain.Question{{ID: 1, SolutionID: domain.Int64(5), Answer: domain.String("ok"), Clarified: true}}, reqs, nil, users, 7)
	assert.True(t, ready.ConfirmReady)

	confirmed := sol
	confirmed.Status = domain.SolutionConfirmed
	d := a.SolutionDetail(confirmed, nil, reqs, nil, users, 7)
	assert.Empty(t, d.Actions)
	assert.False(t, d.ConfirmReady)
}

func TestTaskAndDeploymentDetailChains(t *testing.T) {
	a := view.New(view.DefaultPlaceholders)
	task := domain.DevelopmentTask{ID: 2, SolutionID: 5}
	sols := []domain.Solution{{ID: 5, Title: "Cache", RequirementID: 4}}
	reqs := []domain.Requirement{{ID: 4, Title: "Export"}}
	deps := []domain.Deployment{{ID: 9, DevelopmentTaskID: 2, DeployedBy: domain.Int64(3)}}

	td := a.TaskDetail(task, sols, reqs, deps, users)
	assert.Equal(t, "5: Cache", td.Solution.Label)
	assert.Equal(t, "4: Export", td.Requirement.Label)
	require.Len(t, td.Deployments, 1)
	assert.Equal(t, "3: carol", td.Deployments[0].DeployedBy.Label)

	dd := a.DeploymentDetail(deps[0], []domain.DevelopmentTask{task}, sols, users)
	assert.Equal(t, "2", dd.Task.Label)
	assert.Equal(t, "5: Cache", dd.Solution.Label)

	orphan := a.DeploymentDetail(domain.Deployment{ID: 1, DevelopmentTaskID: 77}, nil, nil, nil)
	assert.Equal(t, "77", orphan.Task.Label)
	assert.Equal(t, "unspecified", orphan.Solution.Label)
	assert.Equal(t, "unspecified", orphan.DeployedBy.Label)
}

func TestApplicationDetail(t *testing.T) {
	a := view.New(view.DefaultPlaceholders)
	reqs := []domain.Requirement{
		{ID: 1, ApplicationID: domain.Int64(1), Status: domain.RequirementPending},
		{ID: 2, ApplicationID: domain.Int64(2)},
		{ID: 3},
	}
	d := a.ApplicationDetail(domain.Application{ID: 1, Name: "billing", CreatedBy: domain.Int64(3)}, reqs, users, 3)
	assert.Equal(t, "3: carol", d.Creator.Label)
	require.Len(t, d.Requirements, 1)
	assert.Equal(t, int64(1), d.Requirements[0].Requirement.ID)
}

func TestHome(t *testing.T) {
	a := view.New(view.DefaultPlaceholders)
	h := a.Home(
		[]domain.Requirement{{Status: "pending"}, {Status: "pending"}, {Status: "confirmed"}},
		[]domain.Solution{{Status: "clarifying"}},
		nil,
		[]domain.Deployment{{Status: "pending"}},
	)
	require.Len(t, h.Stages, 4)
	assert.Equal(t, 3, h.Stages[0].Total)
	assert.Equal(t, 2, h.Stages[0].ByStatus["pending"])
	assert.Equal(t, []string{"confirmed", "pending"}, h.Stages[0].Statuses())
	assert.Equal(t, 0, h.Stages[2].Total)
}

func actionsOf(specs []workflow.ActionSpec) []workflow.Action {
	out := make([]workflow.Action, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Action)
	}
	return out
}
