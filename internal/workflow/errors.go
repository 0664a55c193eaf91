package workflow

import (
	"fmt"

	"numa/internal/domain"
)

// Reason classifies a locally rejected action.
type Reason string

const (
	ReasonNotPermitted   Reason = "not_permitted_in_current_status"
	ReasonMissingField   Reason = "missing_required_field"
	ReasonNotOwner       Reason = "not_owner"
	ReasonNotYetAnswered Reason = "not_yet_answered"
)

// Rejection is returned by the guard and the clarification engine before any
// network call is made.
type Rejection struct {
	Reason Reason
	Kind   domain.EntityKind
	Action Action
	Status string
	Field  string
}

var (
	ErrNotPermittedInCurrentStatus = &Rejection{Reason: ReasonNotPermitted}
	ErrMissingRequiredField        = &Rejection{Reason: ReasonMissingField}
	ErrNotOwner                    = &Rejection{Reason: ReasonNotOwner}
	ErrNotYetAnswered              = &Rejection{Reason: ReasonNotYetAnswered}
)

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonNotPermitted:
		if r.Kind == "" {
			return "action not permitted in current status"
		}
		return fmt.Sprintf("%s not permitted for %s in status %q", r.Action, r.Kind, r.Status)
	case ReasonMissingField:
		if r.Field == "" {
			return "missing required field"
		}
		return fmt.Sprintf("%s requires %s", r.Action, r.Field)
	case ReasonNotOwner:
		return "only the parent owner may mark a question clarified"
	case ReasonNotYetAnswered:
		return "question has not been answered yet"
	default:
		return string(r.Reason)
	}
}

// Is matches any Rejection with the same reason.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Reason == r.Reason
}

func notPermitted(kind domain.EntityKind, action Action, status string) error {
	return &Rejection{Reason: ReasonNotPermitted, Kind: kind, Action: action, Status: status}
}

func missingField(kind domain.EntityKind, action Action, field string) error {
	return &Rejection{Reason: ReasonMissingField, Kind: kind, Action: action, Field: field}
}
