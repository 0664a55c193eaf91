// Package workflow decides which status transitions a console user may
// request for an entity and normalizes the payload each one needs. The
// backend stays the authority; this guard only keeps invalid requests from
// being sent.
package workflow

import (
	"strconv"
	"strings"

	"numa/internal/domain"
)

// Action tags a state transition request.
type Action string

const (
	ActionAssign  Action = "assign"
	ActionConfirm Action = "confirm"
	ActionClarify Action = "clarify"
)

// Entity is anything carrying a kind and a status.
type Entity interface {
	EntityKind() domain.EntityKind
	EntityStatus() string
}

// FieldSpec describes one payload field of an action.
type FieldSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type" enum:"user_id,bool"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// ActionSpec is a permitted action and the payload it takes.
type ActionSpec struct {
	Action Action      `json:"action"`
	Fields []FieldSpec `json:"fields"`
}

// Payload carries raw user input for an action.
type Payload struct {
	AssignedTo string
	Clarified  *bool
	Confirmed  *bool
}

// Command is a validated, normalized action ready to be dispatched.
type Command struct {
	Kind       domain.EntityKind
	EntityID   int64
	Action     Action
	AssignedTo int64
	Flag       bool
}

var (
	assignSpec = ActionSpec{Action: ActionAssign, Fields: []FieldSpec{
		{Name: "assigned_to", Type: "user_id", Required: true},
	}}
	confirmRequirementSpec = ActionSpec{Action: ActionConfirm, Fields: []FieldSpec{}}
	clarifySpec            = ActionSpec{Action: ActionClarify, Fields: []FieldSpec{
		{Name: "clarified", Type: "bool", Default: true},
	}}
	confirmSolutionSpec = ActionSpec{Action: ActionConfirm, Fields: []FieldSpec{
		{Name: "confirmed", Type: "bool", Default: true},
	}}
)

// Permitted returns the actions available for the entity in its current
// status. Development tasks and deployments never have any. The acting user
// does not narrow entity actions; ownership only gates question actions.
func Permitted(e Entity, _ int64) []ActionSpec {
	if e == nil {
		return nil
	}
	switch e.EntityKind() {
	case domain.KindRequirement:
		switch e.EntityStatus() {
		case domain.RequirementPending:
			return []ActionSpec{assignSpec}
		case domain.RequirementClarifying:
			return []ActionSpec{confirmRequirementSpec, clarifySpec}
		}
	case domain.KindSolution:
		if e.EntityStatus() == domain.SolutionClarifying {
			return []ActionSpec{confirmSolutionSpec}
		}
	}
	return nil
}

// PermittedActions returns only the action tags of Permitted.
func PermittedActions(e Entity, actingUserID int64) []Action {
	specs := Permitted(e, actingUserID)
	out := make([]Action, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Action)
	}
	return out
}

// Permits reports whether action is currently offered for e.
func Permits(e Entity, action Action) bool {
	for _, a := range PermittedActions(e, 0) {
		if a == action {
			return true
		}
	}
	return false
}

// Validate checks the action against the entity's status and the payload
// against the action's shape.
func Validate(e Entity, action Action, p Payload) (Command, error) {
	if e == nil {
		return Command{}, ErrNotPermittedInCurrentStatus
	}
	kind := e.EntityKind()
	if !Permits(e, action) {
		return Command{}, notPermitted(kind, action, e.EntityStatus())
	}
	cmd := Command{Kind: kind, EntityID: entityID(e), Action: action}
	switch {
	case kind == domain.KindRequirement && action == ActionAssign:
		raw := strings.TrimSpace(p.AssignedTo)
		if raw == "" {
			return Command{}, missingField(kind, action, "assigned_to")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Command{}, missingField(kind, action, "assigned_to")
		}
		cmd.AssignedTo = id
	case kind == domain.KindRequirement && action == ActionClarify:
		cmd.Flag = boolOr(p.Clarified, true)
	case kind == domain.KindSolution && action == ActionConfirm:
		cmd.Flag = boolOr(p.Confirmed, true)
	}
	return cmd, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func entityID(e Entity) int64 {
	switch v := e.(type) {
	case domain.Requirement:
		return v.ID
	case *domain.Requirement:
		return v.ID
	case domain.Solution:
		return v.ID
	case *domain.Solution:
		return v.ID
	case domain.DevelopmentTask:
		return v.ID
	case domain.Deployment:
		return v.ID
	}
	return 0
}
