// Package mockbackend serves the Numa backend REST surface from memory. It
// applies the backend's own rules so the console can be exercised without
// the real service.
package mockbackend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"numa/internal/domain"
)

// ErrRule is a request the backend refuses; it maps to 400.
type ErrRule struct{ Detail string }

func (e *ErrRule) Error() string { return e.Detail }

// ErrMissing is an unknown record; it maps to 404.
type ErrMissing struct{ Detail string }

func (e *ErrMissing) Error() string { return e.Detail }

func rule(format string, args ...any) error { return &ErrRule{Detail: fmt.Sprintf(format, args...)} }

func missing(what string) error { return &ErrMissing{Detail: what + " not found"} }

// Store holds every collection behind one lock.
type Store struct {
	mu  sync.Mutex
	Now func() time.Time

	seq          map[string]int64
	users        map[int64]domain.User
	apps         map[int64]domain.Application
	requirements map[int64]domain.Requirement
	solutions    map[int64]domain.Solution
	tasks        map[int64]domain.DevelopmentTask
	deployments  map[int64]domain.Deployment
	questions    map[domain.ParentKind]map[int64]domain.Question
	eventLogs    []domain.EventLog
}

func NewStore() *Store {
	return &Store{
		Now:          time.Now,
		seq:          map[string]int64{},
		users:        map[int64]domain.User{},
		apps:         map[int64]domain.Application{},
		requirements: map[int64]domain.Requirement{},
		solutions:    map[int64]domain.Solution{},
		tasks:        map[int64]domain.DevelopmentTask{},
		deployments:  map[int64]domain.Deployment{},
		questions: map[domain.ParentKind]map[int64]domain.Question{
			domain.ParentRequirement: {},
			domain.ParentSolution:    {},
		},
	}
}

func (s *Store) next(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

func (s *Store) now() string {
	return s.Now().UTC().Format("2006-01-02T15:04:05")
}

func sorted[T any](m map[int64]T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) logEvent(eventType, desc string, userID int64, requirementID, questionID *int64) {
	s.eventLogs = append(s.eventLogs, domain.EventLog{
		ID:            s.next("event_log"),
		EventType:     eventType,
		Description:   desc,
		UserID:        userID,
		RequirementID: requirementID,
		QuestionID:    questionID,
		CreatedAt:     s.now(),
	})
}

// Users

func (s *Store) CreateUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.next("user")
	u.CreatedAt, u.UpdatedAt = s.now(), s.now()
	s.users[u.ID] = u
	return u
}

func (s *Store) Users() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.users)
}

// Applications

func (s *Store) CreateApplication(a domain.Application) (domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Name == "" {
		return a, rule("name is required")
	}
	if a.AppID != "" {
		for _, existing := range s.apps {
			if existing.AppID == a.AppID {
				return a, rule("app_id %s already registered", a.AppID)
			}
		}
	}
	a.ID = s.next("application")
	if a.Status == "" {
		a.Status = "active"
	}
	a.CreatedAt, a.UpdatedAt = s.now(), s.now()
	s.apps[a.ID] = a
	return a, nil
}

func (s *Store) ApplicationByAppID(appID string) (domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.AppID == appID {
			return a, nil
		}
	}
	return domain.Application{}, missing("Application")
}

func (s *Store) SetApplicationStatus(id int64, status string) (domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return a, missing("Application")
	}
	if status == "" {
		return a, rule("status is required")
	}
	a.Status = status
	a.UpdatedAt = s.now()
	s.apps[id] = a
	return a, nil
}

// Requirements

func (s *Store) CreateRequirement(r domain.Requirement) (domain.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.UserID == nil {
		return r, rule("User not found")
	}
	if _, ok := s.users[*r.UserID]; !ok {
		return r, rule("User not found")
	}
	if r.ApplicationID != nil {
		if _, ok := s.apps[*r.ApplicationID]; !ok {
			return r, rule("Application not found")
		}
	}
	r.ID = s.next("requirement")
	if r.Status == "" {
		r.Status = domain.RequirementPending
	}
	r.CreatedAt, r.UpdatedAt = s.now(), s.now()
	s.requirements[r.ID] = r
	return r, nil
}

// AssignRequirement hands a pending requirement to a user and opens
// clarification.
func (s *Store) AssignRequirement(id, assignedTo int64) (domain.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[id]
	if !ok {
		return r, missing("Requirement")
	}
	if r.Status != domain.RequirementPending {
		return r, rule("requirement is %s; only pending requirements can be assigned", r.Status)
	}
	if _, ok := s.users[assignedTo]; !ok {
		return r, rule("User not found")
	}
	r.AssignedTo = domain.Int64(assignedTo)
	r.Status = domain.RequirementClarifying
	r.UpdatedAt = s.now()
	s.requirements[id] = r
	s.logEvent("requirement_assigned", fmt.Sprintf("requirement %d assigned to user %d", id, assignedTo), assignedTo, domain.Int64(id), nil)
	return r, nil
}

func (s *Store) ConfirmRequirement(id int64) (domain.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[id]
	if !ok {
		return r, missing("Requirement")
	}
	if r.Status != domain.RequirementClarifying {
		return r, rule("requirement is %s; only clarifying requirements can be confirmed", r.Status)
	}
	if !s.allClarified(domain.ParentRequirement, id) {
		return r, rule("unclarified questions remain; clarify all questions first")
	}
	r.Status = domain.RequirementConfirmed
	r.Clarified = true
	r.UpdatedAt = s.now()
	s.requirements[id] = r
	var actor int64
	if r.AssignedTo != nil {
		actor = *r.AssignedTo
	}
	s.logEvent("requirement_confirmed", fmt.Sprintf("requirement %d confirmed", id), actor, domain.Int64(id), nil)
	return r, nil
}

func (s *Store) ClarifyRequirement(id int64, clarified bool) (domain.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[id]
	if !ok {
		return r, missing("Requirement")
	}
	if clarified && !s.allClarified(domain.ParentRequirement, id) {
		return r, rule("unclarified questions remain; clarify all questions first")
	}
	r.Clarified = clarified
	r.UpdatedAt = s.now()
	s.requirements[id] = r
	return r, nil
}

// Solutions

func (s *Store) CreateSolution(sol domain.Solution) (domain.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requirements[sol.RequirementID]; !ok {
		return sol, rule("Requirement not found")
	}
	if sol.ApplicationID != nil {
		if _, ok := s.apps[*sol.ApplicationID]; !ok {
			return sol, rule("Application not found")
		}
	}
	u, ok := s.users[sol.CreatedBy]
	if !ok {
		return sol, rule("User not found")
	}
	sol.ID = s.next("solution")
	if sol.Status == "" {
		sol.Status = domain.SolutionClarifying
	}
	sol.CreatedAt, sol.UpdatedAt = s.now(), s.now()
	s.solutions[sol.ID] = sol
	s.logEvent("solution_created", fmt.Sprintf("user %s created solution: %s", u.Name, sol.Title), sol.CreatedBy, domain.Int64(sol.RequirementID), nil)
	return sol, nil
}

// ConfirmSolution confirms a solution once all its questions are clarified
// and spawns its development task. confirmed=false reopens clarification.
func (s *Store) ConfirmSolution(id int64, confirmed bool) (domain.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sol, ok := s.solutions[id]
	if !ok {
		return sol, missing("Solution")
	}
	if confirmed && !s.allClarified(domain.ParentSolution, id) {
		return sol, rule("unclarified questions remain; clarify all questions first")
	}
	if confirmed {
		sol.Status = domain.SolutionConfirmed
	} else {
		sol.Status = domain.SolutionClarifying
	}
	sol.Clarified = confirmed
	sol.UpdatedAt = s.now()
	s.solutions[id] = sol
	if confirmed {
		t := domain.DevelopmentTask{
			ID:          s.next("task"),
			Title:       "Implement " + sol.Title,
			Description: sol.Description,
			Status:      "pending",
			SolutionID:  sol.ID,
			CreatedAt:   s.now(),
			UpdatedAt:   s.now(),
		}
		s.tasks[t.ID] = t
	}
	return sol, nil
}

func (s *Store) SolutionsByRequirement(requirementID int64) []domain.Solution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Solution
	for _, sol := range sorted(s.solutions) {
		if sol.RequirementID == requirementID {
			out = append(out, sol)
		}
	}
	if out == nil {
		out = []domain.Solution{}
	}
	return out
}

// Questions

func (s *Store) parentOwner(kind domain.ParentKind, parentID int64) (*int64, int64, error) {
	switch kind {
	case domain.ParentRequirement:
		r, ok := s.requirements[parentID]
		if !ok {
			return nil, 0, rule("Requirement not found")
		}
		return r.AssignedTo, r.ID, nil
	case domain.ParentSolution:
		sol, ok := s.solutions[parentID]
		if !ok {
			return nil, 0, rule("Solution not found")
		}
		return domain.Int64(sol.CreatedBy), sol.RequirementID, nil
	}
	return nil, 0, rule("unknown question parent %q", kind)
}

func eventPrefix(kind domain.ParentKind) string {
	if kind == domain.ParentSolution {
		return "solution_question"
	}
	return "question"
}

func (s *Store) CreateQuestion(kind domain.ParentKind, q domain.Question, currentUserID int64) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qk, parentID := q.Parent()
	if qk != kind {
		return q, rule("%s_id is required", kind)
	}
	_, reqID, err := s.parentOwner(kind, parentID)
	if err != nil {
		return q, err
	}
	u, ok := s.users[q.CreatedBy]
	if !ok {
		return q, rule("User not found")
	}
	q.ID = s.next(string(kind) + "_question")
	q.Answer, q.AnsweredBy, q.ClarifiedBy = nil, nil, nil
	q.Clarified = false
	q.CreatedAt, q.UpdatedAt = s.now(), s.now()
	s.questions[kind][q.ID] = q
	s.logEvent(eventPrefix(kind)+"_created", fmt.Sprintf("user %s asked: %s", u.Name, q.Content), currentUserID, domain.Int64(reqID), domain.Int64(q.ID))
	if kind == domain.ParentRequirement {
		s.syncRequirementClarified(parentID)
	}
	return q, nil
}

func (s *Store) Question(kind domain.ParentKind, id int64) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[kind][id]
	if !ok {
		return q, missing("Question")
	}
	return q, nil
}

func (s *Store) QuestionsFor(kind domain.ParentKind, parentID int64) []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionsFor(kind, parentID)
}

func (s *Store) questionsFor(kind domain.ParentKind, parentID int64) []domain.Question {
	out := []domain.Question{}
	for _, q := range sorted(s.questions[kind]) {
		if k, id := q.Parent(); k == kind && id == parentID {
			out = append(out, q)
		}
	}
	return out
}

func (s *Store) allClarified(kind domain.ParentKind, parentID int64) bool {
	for _, q := range s.questionsFor(kind, parentID) {
		if !q.Clarified {
			return false
		}
	}
	return true
}

func (s *Store) syncRequirementClarified(requirementID int64) {
	r, ok := s.requirements[requirementID]
	if !ok {
		return
	}
	r.Clarified = s.allClarified(domain.ParentRequirement, requirementID)
	s.requirements[requirementID] = r
}

func (s *Store) AnswerQuestion(kind domain.ParentKind, id int64, answer string, answeredBy, currentUserID int64) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[kind][id]
	if !ok {
		return q, rule("Question not found")
	}
	u, ok := s.users[answeredBy]
	if !ok {
		return q, rule("answering user not found")
	}
	q.Answer = domain.String(answer)
	q.AnsweredBy = domain.Int64(answeredBy)
	q.UpdatedAt = s.now()
	s.questions[kind][id] = q
	_, parentID := q.Parent()
	_, reqID, _ := s.parentOwner(kind, parentID)
	s.logEvent(eventPrefix(kind)+"_answered", fmt.Sprintf("user %s answered: %s", u.Name, answer), currentUserID, domain.Int64(reqID), domain.Int64(id))
	return q, nil
}

func (s *Store) ClarifyQuestion(kind domain.ParentKind, id int64, clarifiedBy, currentUserID int64) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[kind][id]
	if !ok {
		return q, rule("Question not found")
	}
	u, ok := s.users[clarifiedBy]
	if !ok {
		return q, rule("clarifying user not found")
	}
	_, parentID := q.Parent()
	owner, reqID, err := s.parentOwner(kind, parentID)
	if err != nil || owner == nil || *owner != clarifiedBy {
		if kind == domain.ParentSolution {
			return q, rule("only the solution owner may mark questions clarified")
		}
		return q, rule("only the requirement assignee may mark questions clarified")
	}
	q.Clarified = true
	q.ClarifiedBy = domain.Int64(clarifiedBy)
	q.UpdatedAt = s.now()
	s.questions[kind][id] = q
	if kind == domain.ParentRequirement {
		s.syncRequirementClarified(parentID)
	}
	s.logEvent(eventPrefix(kind)+"_clarified", fmt.Sprintf("user %s marked a question clarified", u.Name), currentUserID, domain.Int64(reqID), domain.Int64(id))
	return q, nil
}

// Tasks and deployments

func (s *Store) CreateTask(t domain.DevelopmentTask) (domain.DevelopmentTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.solutions[t.SolutionID]; !ok {
		return t, rule("Solution not found")
	}
	t.ID = s.next("task")
	if t.Status == "" {
		t.Status = "pending"
	}
	t.CreatedAt, t.UpdatedAt = s.now(), s.now()
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) CreateDeployment(d domain.Deployment) (domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[d.DevelopmentTaskID]; !ok {
		return d, rule("Development task not found")
	}
	d.ID = s.next("deployment")
	if d.Status == "" {
		d.Status = "pending"
	}
	d.CreatedAt, d.UpdatedAt = s.now(), s.now()
	s.deployments[d.ID] = d
	return d, nil
}

// EventLogs returns the audit trail filtered by requirement or question.
func (s *Store) EventLogs(requirementID, questionID int64) []domain.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.EventLog{}
	for _, e := range s.eventLogs {
		if requirementID > 0 && (e.RequirementID == nil || *e.RequirementID != requirementID) {
			continue
		}
		if questionID > 0 && (e.QuestionID == nil || *e.QuestionID != questionID) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsMissing reports whether err is a 404-class store error.
func IsMissing(err error) bool {
	var m *ErrMissing
	return errors.As(err, &m)
}
