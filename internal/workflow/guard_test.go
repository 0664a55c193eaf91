package workflow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numa/internal/domain"
	"numa/internal/workflow"
)

func TestPendingRequirementOffersAssignOnly(t *testing.T) {
	req := domain.Requirement{ID: 1, Status: domain.RequirementPending}
	assert.Equal(t, []workflow.Action{workflow.ActionAssign}, workflow.PermittedActions(req, 1))

	_, err := workflow.Validate(req, workflow.ActionConfirm, workflow.Payload{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrNotPermittedInCurrentStatus))
	var rej *workflow.Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, domain.KindRequirement, rej.Kind)
	assert.Equal(t, "pending", rej.Status)
}

func TestAssignNeverOfferedOutsidePending(t *testing.T) {
	for _, status := range []string{"clarifying", "confirmed", "implemented", ""} {
		req := domain.Requirement{Status: status}
		assert.NotContains(t, workflow.PermittedActions(req, 1), workflow.ActionAssign, status)
		_, err := workflow.Validate(req, workflow.ActionAssign, workflow.Payload{AssignedTo: "3"})
		assert.ErrorIs(t, err, workflow.ErrNotPermittedInCurrentStatus, status)
	}
}

func TestAssignPayload(t *testing.T) {
	req := domain.Requirement{ID: 4, Status: domain.RequirementPending}
	cases := []struct {
		name    string
		input   string
		want    int64
		wantErr error
	}{
		{name: "numeric", input: "7", want: 7},
		{name: "trimmed", input: " 12 ", want: 12},
		{name: "empty", input: "", wantErr: workflow.ErrMissingRequiredField},
		{name: "blank", input: "   ", wantErr: workflow.ErrMissingRequiredField},
		{name: "non numeric", input: "alice", wantErr: workflow.ErrMissingRequiredField},
		{name: "zero", input: "0", wantErr: workflow.ErrMissingRequiredField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := workflow.Validate(req, workflow.ActionAssign, workflow.Payload{AssignedTo: tc.input})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, cmd.AssignedTo)
			assert.Equal(t, int64(4), cmd.EntityID)
		})
	}
}

func TestClarifyingRequirement(t *testing.T) {
	req := domain.Requirement{ID: 2, Status: domain.RequirementClarifying}
	assert.ElementsMatch(t, []workflow.Action{workflow.ActionConfirm, workflow.ActionClarify}, workflow.PermittedActions(req, 1))

	cmd, err := workflow.Validate(req, workflow.ActionClarify, workflow.Payload{})
	require.NoError(t, err)
	assert.True(t, cmd.Flag, "clarified defaults to true")

	no := false
	cmd, err = workflow.Validate(req, workflow.ActionClarify, workflow.Payload{Clarified: &no})
	require.NoError(t, err)
	assert.False(t, cmd.Flag)

	_, err = workflow.Validate(req, workflow.ActionConfirm, workflow.Payload{})
	assert.NoError(t, err)
}

func TestConfirmedRequirementIsTerminal(t *testing.T) {
	req := domain.Requirement{Status: domain.RequirementConfirmed}
	assert.Empty(t, workflow.PermittedActions(req, 1))
}

func TestSolutionConfirm(t *testing.T) {
	sol := domain.Solution{ID: 9, Status: domain.SolutionClarifying}
	assert.Equal(t, []workflow.Action{workflow.ActionConfirm}, workflow.PermittedActions(sol, 1))
	cmd, err := workflow.Validate(sol, workflow.ActionConfirm, workflow.Payload{})
	require.NoError(t, err)
	assert.True(t, cmd.Flag)
	assert.Equal(t, domain.KindSolution, cmd.Kind)

	confirmed := domain.Solution{Status: domain.SolutionConfirmed}
	assert.Empty(t, workflow.PermittedActions(confirmed, 1))
	_, err = workflow.Validate(confirmed, workflow.ActionConfirm, workflow.Payload{})
	assert.ErrorIs(t, err, workflow.ErrNotPermittedInCurrentStatus)
}

func TestTasksAndDeploymentsAreReadOnly(t *testing.T) {
	for _, e := range []workflow.Entity{
		domain.DevelopmentTask{Status: "todo"},
		domain.DevelopmentTask{Status: "in_progress"},
		domain.Deployment{Status: "pending"},
	} {
		assert.Empty(t, workflow.Permitted(e, 1))
		_, err := workflow.Validate(e, workflow.ActionConfirm, workflow.Payload{})
		assert.ErrorIs(t, err, workflow.ErrNotPermittedInCurrentStatus)
	}
}

func TestPermittedDescribesPayload(t *testing.T) {
	specs := workflow.Permitted(domain.Requirement{Status: domain.RequirementPending}, 1)
	require.Len(t, specs, 1)
	require.Len(t, specs[0].Fields, 1)
	assert.Equal(t, "assigned_to", specs[0].Fields[0].Name)
	assert.True(t, specs[0].Fields[0].Required)
}

func TestPermittedIgnoresActingUser(t *testing.T) {
	for _, e := range []workflow.Entity{
		domain.Requirement{Status: domain.RequirementPending, AssignedTo: domain.Int64(2)},
		domain.Requirement{Status: domain.RequirementClarifying, AssignedTo: domain.Int64(2)},
	} {
		assert.Equal(t, workflow.PermittedActions(e, 2), workflow.PermittedActions(e, 7))
		assert.Equal(t, workflow.PermittedActions(e, 2), workflow.PermittedActions(e, 0))
	}
}
