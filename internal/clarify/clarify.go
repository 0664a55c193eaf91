// Package clarify implements the question lifecycle attached to requirements
// and solutions: Open -> Answered -> Clarified. It holds no state; every call
// works on the question it is handed and returns the next state.
package clarify

import (
	"strings"

	"numa/internal/domain"
	"numa/internal/workflow"
)

// State of a single question.
type State string

const (
	StateOpen      State = "open"
	StateAnswered  State = "answered"
	StateClarified State = "clarified"
)

const (
	ActionAsk     workflow.Action = "ask"
	ActionAnswer  workflow.Action = "answer"
	ActionClarify workflow.Action = "clarify"
)

// StateOf derives the state from the question's fields.
func StateOf(q domain.Question) State {
	switch {
	case q.Answer == nil:
		return StateOpen
	case !q.Clarified:
		return StateAnswered
	default:
		return StateClarified
	}
}

// Owner returns the user allowed to mark the parent's questions clarified:
// the requirement's assignee or the solution's author.
func Owner(parent any) *int64 {
	switch p := parent.(type) {
	case domain.Requirement:
		return p.AssignedTo
	case *domain.Requirement:
		if p == nil {
			return nil
		}
		return p.AssignedTo
	case domain.Solution:
		return domain.Int64(p.CreatedBy)
	case *domain.Solution:
		if p == nil {
			return nil
		}
		return domain.Int64(p.CreatedBy)
	}
	return nil
}

// CreateQuestion returns a new question in the Open state.
func CreateQuestion(kind domain.ParentKind, parentID int64, content string, createdBy int64) domain.Question {
	q := domain.Question{
		Content:   content,
		CreatedBy: createdBy,
	}
	q.SetParent(kind, parentID)
	return q
}

// Answer moves an Open question to Answered. Any user may answer.
func Answer(q domain.Question, text string, answeredBy, actingUserID int64) (domain.Question, error) {
	if StateOf(q) != StateOpen {
		return q, &workflow.Rejection{Reason: workflow.ReasonNotPermitted, Kind: domain.KindQuestion, Action: ActionAnswer, Status: string(StateOf(q))}
	}
	if strings.TrimSpace(text) == "" {
		return q, &workflow.Rejection{Reason: workflow.ReasonMissingField, Kind: domain.KindQuestion, Action: ActionAnswer, Field: "answer"}
	}
	if answeredBy == 0 {
		answeredBy = actingUserID
	}
	next := q
	next.Answer = domain.String(text)
	next.AnsweredBy = domain.Int64(answeredBy)
	return next, nil
}

// MarkClarified moves an Answered question to Clarified. Only the parent
// owner may do so.
func MarkClarified(q domain.Question, parentOwnerID *int64, actingUserID int64) (domain.Question, error) {
	switch StateOf(q) {
	case StateOpen:
		return q, &workflow.Rejection{Reason: workflow.ReasonNotYetAnswered, Kind: domain.KindQuestion, Action: ActionClarify, Status: string(StateOpen)}
	case StateClarified:
		return q, &workflow.Rejection{Reason: workflow.ReasonNotPermitted, Kind: domain.KindQuestion, Action: ActionClarify, Status: string(StateClarified)}
	}
	if parentOwnerID == nil || *parentOwnerID != actingUserID {
		return q, &workflow.Rejection{Reason: workflow.ReasonNotOwner, Kind: domain.KindQuestion, Action: ActionClarify, Status: string(StateAnswered)}
	}
	next := q
	next.Clarified = true
	next.ClarifiedBy = domain.Int64(actingUserID)
	return next, nil
}

// Item is one question as shown on a Q&A panel.
type Item struct {
	Question   domain.Question `json:"question"`
	State      State           `json:"state"`
	CanAnswer  bool            `json:"can_answer"`
	CanClarify bool            `json:"can_clarify"`
}

// Panel is the Q&A state for one parent entity.
type Panel struct {
	ParentKind   domain.ParentKind `json:"parent_kind"`
	ParentID     int64             `json:"parent_id"`
	OwnerID      *int64            `json:"owner_id"`
	IsOwner      bool              `json:"is_owner"`
	Items        []Item            `json:"items"`
	Open         int               `json:"open"`
	Answered     int               `json:"answered"`
	Clarified    int               `json:"clarified"`
	AllClarified bool              `json:"all_clarified"`
}

// BuildPanel computes the panel for the questions of one parent. A parent
// with no questions counts as fully clarified.
func BuildPanel(kind domain.ParentKind, parentID int64, ownerID *int64, questions []domain.Question, actingUserID int64) Panel {
	p := Panel{
		ParentKind: kind,
		ParentID:   parentID,
		OwnerID:    ownerID,
		IsOwner:    ownerID != nil && *ownerID == actingUserID,
		Items:      make([]Item, 0, len(questions)),
	}
	for _, q := range questions {
		st := StateOf(q)
		switch st {
		case StateOpen:
			p.Open++
		case StateAnswered:
			p.Answered++
		case StateClarified:
			p.Clarified++
		}
		p.Items = append(p.Items, Item{
			Question:   q,
			State:      st,
			CanAnswer:  st == StateOpen,
			CanClarify: st == StateAnswered && p.IsOwner,
		})
	}
	p.AllClarified = p.Open == 0 && p.Answered == 0
	return p
}
