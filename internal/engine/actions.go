package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"numa/internal/clarify"
	"numa/internal/domain"
	"numa/internal/events"
	"numa/internal/workflow"
	numasdk "numa/sdk/go"
)

// ErrUnknownParent is returned for question operations on anything other than
// a requirement or a solution.
var ErrUnknownParent = errors.New("questions belong to a requirement or a solution")

// Apply runs one guarded status transition. The entity is re-read first so the
// guard sees its current status; a rejected action never reaches the backend.
func (e Engine) Apply(ctx context.Context, kind domain.EntityKind, id int64, action workflow.Action, p workflow.Payload) (workflow.Entity, error) {
	typ := string(kind) + "." + string(action)
	payload := events.EventPayload{"action": string(action)}
	actor, err := actingUser(ctx, kind, action)
	if err != nil {
		e.record(ctx, typ, kind, id, 0, payload, err)
		return nil, err
	}
	current, err := e.load(ctx, kind, id)
	if err != nil {
		e.record(ctx, typ, kind, id, actor, payload, err)
		return nil, err
	}
	cmd, err := workflow.Validate(current, action, p)
	if err != nil {
		e.record(ctx, typ, kind, id, actor, payload, err)
		return nil, err
	}
	cmd.EntityID = id
	payload["from_status"] = current.EntityStatus()
	switch action {
	case workflow.ActionAssign:
		payload["assigned_to"] = cmd.AssignedTo
	case workflow.ActionClarify:
		payload["clarified"] = cmd.Flag
	case workflow.ActionConfirm:
		if kind == domain.KindSolution {
			payload["confirmed"] = cmd.Flag
		}
	}
	out, err := e.dispatch(ctx, cmd)
	if err == nil {
		payload["to_status"] = out.EntityStatus()
	}
	e.record(ctx, typ, kind, id, actor, payload, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e Engine) load(ctx context.Context, kind domain.EntityKind, id int64) (workflow.Entity, error) {
	var (
		ent workflow.Entity
		err error
	)
	switch kind {
	case domain.KindRequirement:
		ent, err = e.Client.GetRequirement(ctx, id)
	case domain.KindSolution:
		ent, err = e.Client.GetSolution(ctx, id)
	case domain.KindDevelopmentTask:
		ent, err = e.Client.GetTask(ctx, id)
	case domain.KindDeployment:
		ent, err = e.Client.GetDeployment(ctx, id)
	default:
		return nil, &workflow.Rejection{Reason: workflow.ReasonNotPermitted, Kind: kind}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	return ent, nil
}

func (e Engine) dispatch(ctx context.Context, cmd workflow.Command) (workflow.Entity, error) {
	switch {
	case cmd.Kind == domain.KindRequirement && cmd.Action == workflow.ActionAssign:
		return e.Client.AssignRequirement(ctx, cmd.EntityID, cmd.AssignedTo)
	case cmd.Kind == domain.KindRequirement && cmd.Action == workflow.ActionConfirm:
		return e.Client.ConfirmRequirement(ctx, cmd.EntityID)
	case cmd.Kind == domain.KindRequirement && cmd.Action == workflow.ActionClarify:
		return e.Client.ClarifyRequirement(ctx, cmd.EntityID, cmd.Flag)
	case cmd.Kind == domain.KindSolution && cmd.Action == workflow.ActionConfirm:
		return e.Client.ConfirmSolution(ctx, cmd.EntityID, cmd.Flag)
	}
	return nil, &workflow.Rejection{Reason: workflow.ReasonNotPermitted, Kind: cmd.Kind, Action: cmd.Action}
}

// AssignRequirement moves a pending requirement to clarifying. assignedTo is
// the raw user input and must parse as a user id.
func (e Engine) AssignRequirement(ctx context.Context, id int64, assignedTo string) (domain.Requirement, error) {
	out, err := e.Apply(ctx, domain.KindRequirement, id, workflow.ActionAssign, workflow.Payload{AssignedTo: assignedTo})
	return asRequirement(out), err
}

func (e Engine) ConfirmRequirement(ctx context.Context, id int64) (domain.Requirement, error) {
	out, err := e.Apply(ctx, domain.KindRequirement, id, workflow.ActionConfirm, workflow.Payload{})
	return asRequirement(out), err
}

// ClarifyRequirement sets the clarified flag; nil means true.
func (e Engine) ClarifyRequirement(ctx context.Context, id int64, clarified *bool) (domain.Requirement, error) {
	out, err := e.Apply(ctx, domain.KindRequirement, id, workflow.ActionClarify, workflow.Payload{Clarified: clarified})
	return asRequirement(out), err
}

// ConfirmSolution confirms a solution, or sends it back to clarifying when
// confirmed is false. nil means true.
func (e Engine) ConfirmSolution(ctx context.Context, id int64, confirmed *bool) (domain.Solution, error) {
	out, err := e.Apply(ctx, domain.KindSolution, id, workflow.ActionConfirm, workflow.Payload{Confirmed: confirmed})
	sol, _ := out.(domain.Solution)
	return sol, err
}

func asRequirement(ent workflow.Entity) domain.Requirement {
	req, _ := ent.(domain.Requirement)
	return req
}

// AskQuestion raises a question against a requirement or a solution on behalf
// of the acting user.
func (e Engine) AskQuestion(ctx context.Context, kind domain.ParentKind, parentID int64, content string) (domain.Question, error) {
	const typ = "question.create"
	payload := events.EventPayload{"parent_kind": string(kind), "parent_id": parentID}
	if !kind.Valid() {
		e.record(ctx, typ, domain.KindQuestion, 0, viewer(ctx), payload, ErrUnknownParent)
		return domain.Question{}, ErrUnknownParent
	}
	actor, err := actingUser(ctx, domain.KindQuestion, clarify.ActionAsk)
	if err != nil {
		e.record(ctx, typ, domain.KindQuestion, 0, 0, payload, err)
		return domain.Question{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		err := &workflow.Rejection{Reason: workflow.ReasonMissingField, Kind: domain.KindQuestion, Action: clarify.ActionAsk, Field: "content"}
		e.record(ctx, typ, domain.KindQuestion, 0, actor, payload, err)
		return domain.Question{}, err
	}
	q := clarify.CreateQuestion(kind, parentID, content, actor)
	out, err := e.Client.CreateQuestion(ctx, kind, numasdk.QuestionInput{
		Content:       q.Content,
		RequirementID: q.RequirementID,
		SolutionID:    q.SolutionID,
		CreatedBy:     q.CreatedBy,
	}, actor)
	e.record(ctx, typ, domain.KindQuestion, out.ID, actor, payload, err)
	return out, err
}

// AnswerQuestion records the acting user's answer to an open question.
func (e Engine) AnswerQuestion(ctx context.Context, kind domain.ParentKind, questionID int64, answer string) (domain.Question, error) {
	const typ = "question.answer"
	payload := events.EventPayload{"parent_kind": string(kind)}
	if !kind.Valid() {
		e.record(ctx, typ, domain.KindQuestion, questionID, viewer(ctx), payload, ErrUnknownParent)
		return domain.Question{}, ErrUnknownParent
	}
	actor, err := actingUser(ctx, domain.KindQuestion, clarify.ActionAnswer)
	if err != nil {
		e.record(ctx, typ, domain.KindQuestion, questionID, 0, payload, err)
		return domain.Question{}, err
	}
	q, err := e.Client.GetQuestion(ctx, kind, questionID)
	if err != nil {
		err = fmt.Errorf("load question %d: %w", questionID, err)
		e.record(ctx, typ, domain.KindQuestion, questionID, actor, payload, err)
		return domain.Question{}, err
	}
	next, err := clarify.Answer(q, answer, actor, actor)
	if err != nil {
		e.record(ctx, typ, domain.KindQuestion, questionID, actor, payload, err)
		return domain.Question{}, err
	}
	out, err := e.Client.AnswerQuestion(ctx, kind, questionID, *next.Answer, *next.AnsweredBy, actor)
	e.record(ctx, typ, domain.KindQuestion, questionID, actor, payload, err)
	return out, err
}

// ClarifyQuestion marks an answered question clarified. Only the owner of the
// parent (requirement assignee or solution author) may do this.
func (e Engine) ClarifyQuestion(ctx context.Context, kind domain.ParentKind, questionID int64) (domain.Question, error) {
	const typ = "question.clarify"
	payload := events.EventPayload{"parent_kind": string(kind)}
	if !kind.Valid() {
		e.record(ctx, typ, domain.KindQuestion, questionID, viewer(ctx), payload, ErrUnknownParent)
		return domain.Question{}, ErrUnknownParent
	}
	actor, err := actingUser(ctx, domain.KindQuestion, clarify.ActionClarify)
	if err != nil {
		e.record(ctx, typ, domain.KindQuestion, questionID, 0, payload, err)
		return domain.Question{}, err
	}
	q, err := e.Client.GetQuestion(ctx, kind, questionID)
	if err != nil {
		err = fmt.Errorf("load question %d: %w", questionID, err)
		e.record(ctx, typ, domain.KindQuestion, questionID, actor, payload, err)
		return domain.Question{}, err
	}
	parentKind, parentID := q.Parent()
	if parentKind == "" {
		parentKind = kind
	}
	payload["parent_id"] = parentID
	owner, err := e.parentOwner(ctx, parentKind, parentID)
	if err != nil {
		err = fmt.Errorf("load %s %d: %w", parentKind, parentID, err)
		e.record(ctx, typ, domain.KindQuestion, questionID, actor, payload, err)
		return domain.Question{}, err
	}
	if _, err := clarify.MarkClarified(q, owner, actor); err != nil {
		e.record(ctx, typ, domain.KindQuestion, questionID, actor, payload, err)
		return domain.Question{}, err
	}
	out, err := e.Client.ClarifyQuestion(ctx, kind, questionID, actor, actor)
	e.record(ctx, typ, domain.KindQuestion, questionID, actor, payload, err)
	return out, err
}
