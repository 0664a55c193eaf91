package server

import (
	"numa/internal/domain"
	numasdk "numa/sdk/go"
)

// Request payloads

type AssignRequest struct {
	// Raw user input; the guard parses it as a user id.
	AssignedTo string `json:"assigned_to" example:"2"`
}

type ClarifyRequest struct {
	Clarified *bool `json:"clarified,omitempty"`
}

type ConfirmSolutionRequest struct {
	Confirmed *bool `json:"confirmed,omitempty"`
}

type AskQuestionRequest struct {
	Content string `json:"content"`
}

type AnswerQuestionRequest struct {
	Answer string `json:"answer"`
}

type CreateRequirementRequest struct {
	Title         string  `json:"title" minLength:"1"`
	Description   string  `json:"description,omitempty"`
	UserID        *int64  `json:"user_id,omitempty"`
	ApplicationID *int64  `json:"application_id,omitempty"`
	BranchName    *string `json:"branch_name,omitempty"`
	SpecDocument  *string `json:"spec_document,omitempty"`
}

func (r CreateRequirementRequest) input() numasdk.RequirementInput {
	return numasdk.RequirementInput{
		Title:         r.Title,
		Description:   r.Description,
		UserID:        r.UserID,
		ApplicationID: r.ApplicationID,
		BranchName:    r.BranchName,
		SpecDocument:  r.SpecDocument,
	}
}

type UpdateRequirementRequest struct {
	Title         string  `json:"title,omitempty"`
	Description   string  `json:"description,omitempty"`
	ApplicationID *int64  `json:"application_id,omitempty"`
	BranchName    *string `json:"branch_name,omitempty"`
	SpecDocument  *string `json:"spec_document,omitempty"`
}

func (r UpdateRequirementRequest) input() numasdk.RequirementInput {
	return numasdk.RequirementInput{
		Title:         r.Title,
		Description:   r.Description,
		ApplicationID: r.ApplicationID,
		BranchName:    r.BranchName,
		SpecDocument:  r.SpecDocument,
	}
}

type CreateSolutionRequest struct {
	Title         string `json:"title" minLength:"1"`
	Description   string `json:"description,omitempty"`
	RequirementID int64  `json:"requirement_id"`
	ApplicationID *int64 `json:"application_id,omitempty"`
	CreatedBy     int64  `json:"created_by,omitempty"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title" minLength:"1"`
	Description string  `json:"description,omitempty"`
	SolutionID  int64   `json:"solution_id"`
	AssignedTo  *int64  `json:"assigned_to,omitempty"`
	CodeBranch  *string `json:"code_branch,omitempty"`
}

type UpdateTaskRequest struct {
	Status     string  `json:"status,omitempty"`
	AssignedTo *int64  `json:"assigned_to,omitempty"`
	CodeBranch *string `json:"code_branch,omitempty"`
}

type CreateDeploymentRequest struct {
	Name              string `json:"name" minLength:"1"`
	Description       string `json:"description,omitempty"`
	DevelopmentTaskID int64  `json:"development_task_id"`
	DeployedBy        *int64 `json:"deployed_by,omitempty"`
}

type UpdateDeploymentRequest struct {
	Status string `json:"status"`
}

type CreateApplicationRequest struct {
	Name          string `json:"name" minLength:"1"`
	Description   string `json:"description,omitempty"`
	Owner         string `json:"owner,omitempty"`
	RepositoryURL string `json:"repository_url,omitempty"`
	AppID         string `json:"app_id,omitempty"`
}

type ApplicationStatusRequest struct {
	Status string `json:"status" minLength:"1"`
}

type CreateUserRequest struct {
	Name  string `json:"name" minLength:"1"`
	Email string `json:"email,omitempty"`
}

type DevTokenRequest struct {
	UserID int64  `json:"user_id" minimum:"1"`
	Name   string `json:"name,omitempty"`
	TTL    string `json:"ttl,omitempty" example:"12h"`
}

// Response payloads

type DevTokenResponse struct {
	Token string `json:"token"`
}

type SessionResponse struct {
	UserID int64  `json:"user_id"`
	Source string `json:"source"`
}

type JournalPage struct {
	Items      []domain.JournalEntry `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type DeletedResponse struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}
