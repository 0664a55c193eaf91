package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"numa/internal/domain"
	"numa/internal/engine"
	numasdk "numa/sdk/go"
)

var actionErrors = []int{
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusBadGateway,
}

func respond[T any](v T, err error) (*output[T], error) {
	if err != nil {
		return nil, handleError(err)
	}
	return &output[T]{Body: v}, nil
}

func registerActions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "assign-requirement",
		Method:      http.MethodPost,
		Path:        "/requirements/{id}/assign",
		Summary:     "Assign a pending requirement",
		Errors:      actionErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body AssignRequest
	}) (*output[domain.Requirement], error) {
		return respond(e.AssignRequirement(ctx, input.ID, input.Body.AssignedTo))
	})
	huma.Register(api, huma.Operation{
		OperationID: "confirm-requirement",
		Method:      http.MethodPost,
		Path:        "/requirements/{id}/confirm",
		Summary:     "Confirm a clarifying requirement",
		Errors:      actionErrors,
	}, func(ctx context.Context, input *idPath) (*output[domain.Requirement], error) {
		return respond(e.ConfirmRequirement(ctx, input.ID))
	})
	huma.Register(api, huma.Operation{
		OperationID: "clarify-requirement",
		Method:      http.MethodPost,
		Path:        "/requirements/{id}/clarify",
		Summary:     "Set the clarified flag of a clarifying requirement",
		Errors:      actionErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body *ClarifyRequest
	}) (*output[domain.Requirement], error) {
		var flag *bool
		if input.Body != nil {
			flag = input.Body.Clarified
		}
		return respond(e.ClarifyRequirement(ctx, input.ID, flag))
	})
	huma.Register(api, huma.Operation{
		OperationID: "confirm-solution",
		Method:      http.MethodPost,
		Path:        "/solutions/{id}/confirm",
		Summary:     "Confirm a solution, or reopen it with confirmed=false",
		Errors:      actionErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body *ConfirmSolutionRequest
	}) (*output[domain.Solution], error) {
		var flag *bool
		if input.Body != nil {
			flag = input.Body.Confirmed
		}
		return respond(e.ConfirmSolution(ctx, input.ID, flag))
	})
}

func registerQuestions(api huma.API, e engine.Engine) {
	registerQuestionPanels(api, e)
	huma.Register(api, huma.Operation{
		OperationID: "ask-question",
		Method:      http.MethodPost,
		Path:        "/questions/{kind}/{id}",
		Summary:     "Ask a question on a requirement or solution",
		Errors:      actionErrors,
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"requirement,solution"`
		ID   int64  `path:"id" doc:"requirement or solution id"`
		Body AskQuestionRequest
	}) (*output[domain.Question], error) {
		return respond(e.AskQuestion(ctx, domain.ParentKind(input.Kind), input.ID, input.Body.Content))
	})
	huma.Register(api, huma.Operation{
		OperationID: "answer-question",
		Method:      http.MethodPost,
		Path:        "/questions/{kind}/{id}/answer",
		Summary:     "Answer an open question",
		Errors:      actionErrors,
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"requirement,solution"`
		ID   int64  `path:"id" doc:"question id"`
		Body AnswerQuestionRequest
	}) (*output[domain.Question], error) {
		return respond(e.AnswerQuestion(ctx, domain.ParentKind(input.Kind), input.ID, input.Body.Answer))
	})
	huma.Register(api, huma.Operation{
		OperationID: "clarify-question",
		Method:      http.MethodPost,
		Path:        "/questions/{kind}/{id}/clarify",
		Summary:     "Mark an answered question clarified (parent owner only)",
		Errors:      append([]int{http.StatusForbidden}, actionErrors...),
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"requirement,solution"`
		ID   int64  `path:"id" doc:"question id"`
	}) (*output[domain.Question], error) {
		return respond(e.ClarifyQuestion(ctx, domain.ParentKind(input.Kind), input.ID))
	})
}

func registerRecords(api huma.API, e engine.Engine) {
	recordErrors := []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusBadGateway}

	huma.Register(api, huma.Operation{
		OperationID: "create-requirement",
		Method:      http.MethodPost,
		Path:        "/requirements",
		Summary:     "File a requirement",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateRequirementRequest
	}) (*output[domain.Requirement], error) {
		return respond(e.CreateRequirement(ctx, input.Body.input()))
	})
	huma.Register(api, huma.Operation{
		OperationID: "update-requirement",
		Method:      http.MethodPut,
		Path:        "/requirements/{id}",
		Summary:     "Edit requirement fields",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateRequirementRequest
	}) (*output[domain.Requirement], error) {
		return respond(e.UpdateRequirement(ctx, input.ID, input.Body.input()))
	})
	registerDelete(api, "requirement", "/requirements/{id}", e.DeleteRequirement)

	huma.Register(api, huma.Operation{
		OperationID: "create-solution",
		Method:      http.MethodPost,
		Path:        "/solutions",
		Summary:     "Propose a solution",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateSolutionRequest
	}) (*output[domain.Solution], error) {
		b := input.Body
		return respond(e.CreateSolution(ctx, numasdk.SolutionInput{
			Title:         b.Title,
			Description:   b.Description,
			RequirementID: b.RequirementID,
			ApplicationID: b.ApplicationID,
			CreatedBy:     b.CreatedBy,
		}))
	})
	registerDelete(api, "solution", "/solutions/{id}", e.DeleteSolution)

	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a development task",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*output[domain.DevelopmentTask], error) {
		b := input.Body
		return respond(e.CreateTask(ctx, numasdk.TaskInput{
			Title:       b.Title,
			Description: b.Description,
			SolutionID:  b.SolutionID,
			AssignedTo:  b.AssignedTo,
			CodeBranch:  b.CodeBranch,
		}))
	})
	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task status, assignee or branch",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateTaskRequest
	}) (*output[domain.DevelopmentTask], error) {
		b := input.Body
		return respond(e.UpdateTask(ctx, input.ID, numasdk.TaskInput{
			Status:     b.Status,
			AssignedTo: b.AssignedTo,
			CodeBranch: b.CodeBranch,
		}))
	})
	registerDelete(api, "task", "/tasks/{id}", e.DeleteTask)

	huma.Register(api, huma.Operation{
		OperationID: "create-deployment",
		Method:      http.MethodPost,
		Path:        "/deployments",
		Summary:     "Record a deployment of a task",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDeploymentRequest
	}) (*output[domain.Deployment], error) {
		b := input.Body
		return respond(e.CreateDeployment(ctx, numasdk.DeploymentInput{
			Name:              b.Name,
			Description:       b.Description,
			DevelopmentTaskID: b.DevelopmentTaskID,
			DeployedBy:        b.DeployedBy,
		}))
	})
	huma.Register(api, huma.Operation{
		OperationID: "update-deployment",
		Method:      http.MethodPatch,
		Path:        "/deployments/{id}",
		Summary:     "Update deployment status",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateDeploymentRequest
	}) (*output[domain.Deployment], error) {
		return respond(e.UpdateDeployment(ctx, input.ID, numasdk.DeploymentInput{Status: input.Body.Status}))
	})
	registerDelete(api, "deployment", "/deployments/{id}", e.DeleteDeployment)

	huma.Register(api, huma.Operation{
		OperationID: "create-application",
		Method:      http.MethodPost,
		Path:        "/applications",
		Summary:     "Register an application",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateApplicationRequest
	}) (*output[domain.Application], error) {
		b := input.Body
		return respond(e.CreateApplication(ctx, numasdk.ApplicationInput{
			Name:          b.Name,
			Description:   b.Description,
			Owner:         b.Owner,
			RepositoryURL: b.RepositoryURL,
			AppID:         b.AppID,
		}))
	})
	huma.Register(api, huma.Operation{
		OperationID: "set-application-status",
		Method:      http.MethodPatch,
		Path:        "/applications/{id}/status",
		Summary:     "Change application status",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body ApplicationStatusRequest
	}) (*output[domain.Application], error) {
		return respond(e.SetApplicationStatus(ctx, input.ID, input.Body.Status))
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-user",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Create a user",
		Errors:      recordErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest
	}) (*output[domain.User], error) {
		return respond(e.CreateUser(ctx, numasdk.UserInput{Name: input.Body.Name, Email: input.Body.Email}))
	})
	registerDelete(api, "user", "/users/{id}", e.DeleteUser)
}

func registerDelete(api huma.API, what, route string, fn func(context.Context, int64) error) {
	huma.Register(api, huma.Operation{
		OperationID: "delete-" + what,
		Method:      http.MethodDelete,
		Path:        route,
		Summary:     "Delete a " + what,
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *idPath) (*output[DeletedResponse], error) {
		if err := fn(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &output[DeletedResponse]{Body: DeletedResponse{ID: input.ID, Deleted: true}}, nil
	})
}
