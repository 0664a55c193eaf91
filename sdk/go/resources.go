package numasdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"numa/internal/domain"
)

// RequirementInput is the create/update body of a requirement.
type RequirementInput struct {
	Title         string  `json:"title,omitempty"`
	Description   string  `json:"description,omitempty"`
	Status        string  `json:"status,omitempty"`
	UserID        *int64  `json:"user_id,omitempty"`
	AssignedTo    *int64  `json:"assigned_to,omitempty"`
	ApplicationID *int64  `json:"application_id,omitempty"`
	BranchName    *string `json:"branch_name,omitempty"`
	SpecDocument  *string `json:"spec_document,omitempty"`
}

// SolutionInput is the create/update body of a solution.
type SolutionInput struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status,omitempty"`
	RequirementID int64  `json:"requirement_id,omitempty"`
	ApplicationID *int64 `json:"application_id,omitempty"`
	CreatedBy     int64  `json:"created_by,omitempty"`
}

// QuestionInput is the create body of a question; exactly one parent id is set.
type QuestionInput struct {
	Content       string `json:"content"`
	RequirementID *int64 `json:"requirement_id,omitempty"`
	SolutionID    *int64 `json:"solution_id,omitempty"`
	CreatedBy     int64  `json:"created_by"`
}

// TaskInput is the create/update body of a development task.
type TaskInput struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	SolutionID  int64   `json:"solution_id,omitempty"`
	AssignedTo  *int64  `json:"assigned_to,omitempty"`
	CodeBranch  *string `json:"code_branch,omitempty"`
}

// DeploymentInput is the create/update body of a deployment.
type DeploymentInput struct {
	Name              string `json:"name,omitempty"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status,omitempty"`
	DevelopmentTaskID int64  `json:"development_task_id,omitempty"`
	DeployedBy        *int64 `json:"deployed_by,omitempty"`
}

// ApplicationInput is the create body of an application.
type ApplicationInput struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Owner         string `json:"owner,omitempty"`
	RepositoryURL string `json:"repository_url,omitempty"`
	AppID         string `json:"app_id,omitempty"`
	CreatedBy     *int64 `json:"created_by,omitempty"`
}

// UserInput is the create/update body of a user.
type UserInput struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Requirements

func (c *Client) ListRequirements(ctx context.Context, opts ListOptions) ([]domain.Requirement, error) {
	var resp []domain.Requirement
	err := c.do(ctx, http.MethodGet, v1("requirements/"), opts.values(), nil, &resp)
	return resp, err
}

func (c *Client) GetRequirement(ctx context.Context, id int64) (domain.Requirement, error) {
	var resp domain.Requirement
	err := c.do(ctx, http.MethodGet, v1("requirements/%d", id), nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateRequirement(ctx context.Context, in RequirementInput) (domain.Requirement, error) {
	var resp domain.Requirement
	err := c.do(ctx, http.MethodPost, v1("requirements/"), nil, in, &resp)
	return resp, err
}

func (c *Client) UpdateRequirement(ctx context.Context, id int64, in RequirementInput) (domain.Requirement, error) {
	var resp domain.Requirement
	err := c.do(ctx, http.MethodPut, v1("requirements/%d", id), nil, in, &resp)
	return resp, err
}

func (c *Client) DeleteRequirement(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, v1("requirements/%d", id), nil, nil, nil)
}

// AssignRequirement assigns a pending requirement to a user.
func (c *Client) AssignRequirement(ctx context.Context, id, assignedTo int64) (domain.Requirement, error) {
	var resp domain.Requirement
	err := c.do(ctx, http.MethodPost, v1("requirements/%d/assign", id), idParam("assigned_to", assignedTo), nil, &resp)
	return resp, err
}

func (c *Client) ConfirmRequirement(ctx context.Context, id int64) (domain.Requirement, error) {
	var resp domain.Requirement
	err := c.do(ctx, http.MethodPost, v1("requirements/%d/confirm", id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ClarifyRequirement(ctx context.Context, id int64, clarified bool) (domain.Requirement, error) {
	var resp domain.Requirement
	q := url.Values{"clarified": []string{strconv.FormatBool(clarified)}}
	err := c.do(ctx, http.MethodPatch, v1("requirements/%d/clarify", id), q, nil, &resp)
	return resp, err
}

// Solutions

func (c *Client) ListSolutions(ctx context.Context, opts ListOptions) ([]domain.Solution, error) {
	var resp []domain.Solution
	err := c.do(ctx, http.MethodGet, v1("solutions/"), opts.values(), nil, &resp)
	return resp, err
}

func (c *Client) GetSolution(ctx context.Context, id int64) (domain.Solution, error) {
	var resp domain.Solution
	err := c.do(ctx, http.MethodGet, v1("solutions/%d", id), nil, nil, &resp)
	return resp, err
}

func (c *Client) SolutionsByRequirement(ctx context.Context, requirementID int64) ([]domain.Solution, error) {
	var resp []domain.Solution
	err := c.do(ctx, http.MethodGet, v1("solutions/requirement/%d", requirementID), nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateSolution(ctx context.Context, in SolutionInput) (domain.Solution, error) {
	var resp domain.Solution
	err := c.do(ctx, http.MethodPost, v1("solutions/"), nil, in, &resp)
	return resp, err
}

func (c *Client) UpdateSolution(ctx context.Context, id int64, in SolutionInput) (domain.Solution, error) {
	var resp domain.Solution
	err := c.do(ctx, http.MethodPut, v1("solutions/%d", id), nil, in, &resp)
	return resp, err
}

func (c *Client) DeleteSolution(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, v1("solutions/%d", id), nil, nil, nil)
}

func (c *Client) ConfirmSolution(ctx context.Context, id int64, confirmed bool) (domain.Solution, error) {
	var resp domain.Solution
	q := url.Values{"confirmed": []string{strconv.FormatBool(confirmed)}}
	err := c.do(ctx, http.MethodPatch, v1("solutions/%d/confirm", id), q, nil, &resp)
	return resp, err
}

// Questions. Requirement questions live under /questions, solution questions
// under /solutions/questions; the parent kind picks the tree.

func questionRoot(kind domain.ParentKind) string {
	if kind == domain.ParentSolution {
		return "solutions/questions"
	}
	return "questions"
}

func (c *Client) CreateQuestion(ctx context.Context, kind domain.ParentKind, in QuestionInput, currentUserID int64) (domain.Question, error) {
	var resp domain.Question
	err := c.do(ctx, http.MethodPost, v1("%s/", questionRoot(kind)), idParam("current_user_id", currentUserID), in, &resp)
	return resp, err
}

func (c *Client) GetQuestion(ctx context.Context, kind domain.ParentKind, id int64) (domain.Question, error) {
	var resp domain.Question
	err := c.do(ctx, http.MethodGet, v1("%s/%d", questionRoot(kind), id), nil, nil, &resp)
	return resp, err
}

// QuestionsFor lists the questions raised against one parent.
func (c *Client) QuestionsFor(ctx context.Context, kind domain.ParentKind, parentID int64) ([]domain.Question, error) {
	var resp []domain.Question
	err := c.do(ctx, http.MethodGet, v1("%s/%s/%d", questionRoot(kind), kind, parentID), nil, nil, &resp)
	return resp, err
}

func (c *Client) AnswerQuestion(ctx context.Context, kind domain.ParentKind, id int64, answer string, answeredBy, currentUserID int64) (domain.Question, error) {
	var resp domain.Question
	q := url.Values{
		"answer":          []string{answer},
		"answered_by":     []string{strconv.FormatInt(answeredBy, 10)},
		"current_user_id": []string{strconv.FormatInt(currentUserID, 10)},
	}
	err := c.do(ctx, http.MethodPatch, v1("%s/%d/answer", questionRoot(kind), id), q, nil, &resp)
	return resp, err
}

func (c *Client) ClarifyQuestion(ctx context.Context, kind domain.ParentKind, id int64, clarifiedBy, currentUserID int64) (domain.Question, error) {
	var resp domain.Question
	q := url.Values{
		"clarified_by":    []string{strconv.FormatInt(clarifiedBy, 10)},
		"current_user_id": []string{strconv.FormatInt(currentUserID, 10)},
	}
	err := c.do(ctx, http.MethodPatch, v1("%s/%d/clarify", questionRoot(kind), id), q, nil, &resp)
	return resp, err
}

// Development tasks

func (c *Client) ListTasks(ctx context.Context, opts ListOptions) ([]domain.DevelopmentTask, error) {
	var resp []domain.DevelopmentTask
	err := c.do(ctx, http.MethodGet, v1("development/"), opts.values(), nil, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id int64) (domain.DevelopmentTask, error) {
	var resp domain.DevelopmentTask
	err := c.do(ctx, http.MethodGet, v1("development/%d", id), nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (domain.DevelopmentTask, error) {
	var resp domain.DevelopmentTask
	err := c.do(ctx, http.MethodPost, v1("development/"), nil, in, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in TaskInput) (domain.DevelopmentTask, error) {
	var resp domain.DevelopmentTask
	err := c.do(ctx, http.MethodPut, v1("development/%d", id), nil, in, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, v1("development/%d", id), nil, nil, nil)
}

// Deployments

func (c *Client) ListDeployments(ctx context.Context, opts ListOptions) ([]domain.Deployment, error) {
	var resp []domain.Deployment
	err := c.do(ctx, http.MethodGet, v1("deployment/"), opts.values(), nil, &resp)
	return resp, err
}

func (c *Client) GetDeployment(ctx context.Context, id int64) (domain.Deployment, error) {
	var resp domain.Deployment
	err := c.do(ctx, http.MethodGet, v1("deployment/%d", id), nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateDeployment(ctx context.Context, in DeploymentInput) (domain.Deployment, error) {
	var resp domain.Deployment
	err := c.do(ctx, http.MethodPost, v1("deployment/"), nil, in, &resp)
	return resp, err
}

func (c *Client) UpdateDeployment(ctx context.Context, id int64, in DeploymentInput) (domain.Deployment, error) {
	var resp domain.Deployment
	err := c.do(ctx, http.MethodPut, v1("deployment/%d", id), nil, in, &resp)
	return resp, err
}

func (c *Client) DeleteDeployment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, v1("deployment/%d", id), nil, nil, nil)
}

// Applications

func (c *Client) ListApplications(ctx context.Context, opts ListOptions) ([]domain.Application, error) {
	var resp []domain.Application
	err := c.do(ctx, http.MethodGet, v1("applications/"), opts.values(), nil, &resp)
	return resp, err
}

func (c *Client) GetApplication(ctx context.Context, id int64) (domain.Application, error) {
	var resp domain.Application
	err := c.do(ctx, http.MethodGet, v1("applications/%d", id), nil, nil, &resp)
	return resp, err
}

// ApplicationByAppID looks an application up by its external app id.
func (c *Client) ApplicationByAppID(ctx context.Context, appID string) (domain.Application, error) {
	var resp domain.Application
	err := c.do(ctx, http.MethodGet, v1("applications/by_app_id/%s", url.PathEscape(appID)), nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateApplication(ctx context.Context, in ApplicationInput) (domain.Application, error) {
	var resp domain.Application
	err := c.do(ctx, http.MethodPost, v1("applications/"), nil, in, &resp)
	return resp, err
}

func (c *Client) UpdateApplicationStatus(ctx context.Context, id int64, status string) (domain.Application, error) {
	var resp domain.Application
	err := c.do(ctx, http.MethodPatch, v1("applications/%d/status", id), nil, map[string]string{"status": status}, &resp)
	return resp, err
}

// Users

func (c *Client) ListUsers(ctx context.Context, opts ListOptions) ([]domain.User, error) {
	var resp []domain.User
	err := c.do(ctx, http.MethodGet, v1("users/"), opts.values(), nil, &resp)
	return resp, err
}

func (c *Client) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var resp domain.User
	err := c.do(ctx, http.MethodGet, v1("users/%d", id), nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateUser(ctx context.Context, in UserInput) (domain.User, error) {
	var resp domain.User
	err := c.do(ctx, http.MethodPost, v1("users/"), nil, in, &resp)
	return resp, err
}

func (c *Client) UpdateUser(ctx context.Context, id int64, in UserInput) (domain.User, error) {
	var resp domain.User
	err := c.do(ctx, http.MethodPut, v1("users/%d", id), nil, in, &resp)
	return resp, err
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, v1("users/%d", id), nil, nil, nil)
}

// Event logs are the backend's read-only audit trail.

func (c *Client) EventLogs(ctx context.Context, opts ListOptions) ([]domain.EventLog, error) {
	var resp []domain.EventLog
	err := c.do(ctx, http.MethodGet, v1("event_logs/"), opts.values(), nil, &resp)
	return resp, err
}

func (c *Client) EventLogsForRequirement(ctx context.Context, requirementID int64) ([]domain.EventLog, error) {
	var resp []domain.EventLog
	err := c.do(ctx, http.MethodGet, v1("event_logs/requirement/%d", requirementID), nil, nil, &resp)
	return resp, err
}

func (c *Client) EventLogsForQuestion(ctx context.Context, questionID int64) ([]domain.EventLog, error) {
	var resp []domain.EventLog
	err := c.do(ctx, http.MethodGet, v1("event_logs/question/%d", questionID), nil, nil, &resp)
	return resp, err
}
