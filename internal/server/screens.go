package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"numa/internal/clarify"
	"numa/internal/domain"
	"numa/internal/engine"
	"numa/internal/engine/auth"
	"numa/internal/repo"
	"numa/internal/view"
	numasdk "numa/sdk/go"
)

type output[T any] struct {
	Body T `json:"body"`
}

type idPath struct {
	ID int64 `path:"id"`
}

type listQuery struct {
	Skip   int    `query:"skip" minimum:"0"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000"`
	Status string `query:"status"`
}

func (q listQuery) options() numasdk.ListOptions {
	return numasdk.ListOptions{Skip: q.Skip, Limit: q.Limit, Status: q.Status}
}

// load runs fn in a scope bound to the request, so a client that goes away
// never receives a late result.
func load[T any](ctx context.Context, fn func(context.Context) (T, error)) (*output[T], error) {
	scope := engine.NewScope(ctx)
	defer scope.Close()
	v, err := engine.Load(scope, fn)
	if err != nil {
		return nil, handleError(err)
	}
	return &output[T]{Body: v}, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return &output[map[string]string]{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Acting user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[SessionResponse], error) {
		s, authErr := sessionFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &output[SessionResponse]{Body: SessionResponse{UserID: s.UserID, Source: s.Source}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-token",
		Method:      http.MethodPost,
		Path:        "/auth/dev/token",
		Summary:     "DEV ONLY: mint a token for a user id",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body DevTokenRequest
	}) (*output[DevTokenResponse], error) {
		if strings.TrimSpace(authCfg.JWTSecret) == "" {
			return nil, newAPIError(http.StatusNotFound, "not_found", "token issuing disabled", nil)
		}
		ttl := 12 * time.Hour
		if input.Body.TTL != "" {
			parsed, err := time.ParseDuration(input.Body.TTL)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid ttl", map[string]any{"ttl": input.Body.TTL})
			}
			ttl = parsed
		}
		token, err := auth.IssueToken(authCfg.JWTSecret, input.Body.UserID, input.Body.Name, ttl, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		return &output[DevTokenResponse]{Body: DevTokenResponse{Token: token}}, nil
	})
}

func registerScreens(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "home",
		Method:      http.MethodGet,
		Path:        "/home",
		Summary:     "Pipeline status counts",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*output[view.Home], error) {
		return load(ctx, e.Home)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requirements",
		Method:      http.MethodGet,
		Path:        "/requirements",
		Summary:     "Requirement list with assignee and application names",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*output[[]view.RequirementRow], error) {
		return load(ctx, func(ctx context.Context) ([]view.RequirementRow, error) {
			return e.Requirements(ctx, input.options())
		})
	})
	huma.Register(api, huma.Operation{
		OperationID: "get-requirement",
		Method:      http.MethodGet,
		Path:        "/requirements/{id}",
		Summary:     "Requirement detail with actions, questions and solutions",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *idPath) (*output[view.RequirementDetail], error) {
		return load(ctx, func(ctx context.Context) (view.RequirementDetail, error) {
			return e.RequirementDetail(ctx, input.ID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-solutions",
		Method:      http.MethodGet,
		Path:        "/solutions",
		Summary:     "Solution list",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*output[[]view.SolutionRow], error) {
		return load(ctx, func(ctx context.Context) ([]view.SolutionRow, error) {
			return e.Solutions(ctx, input.options())
		})
	})
	huma.Register(api, huma.Operation{
		OperationID: "get-solution",
		Method:      http.MethodGet,
		Path:        "/solutions/{id}",
		Summary:     "Solution detail with questions and tasks",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *idPath) (*output[view.SolutionDetail], error) {
		return load(ctx, func(ctx context.Context) (view.SolutionDetail, error) {
			return e.SolutionDetail(ctx, input.ID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "Development task list",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*output[[]view.TaskRow], error) {
		return load(ctx, func(ctx context.Context) ([]view.TaskRow, error) {
			return e.Tasks(ctx, input.options())
		})
	})
	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Development task detail",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *idPath) (*output[view.TaskDetail], error) {
		return load(ctx, func(ctx context.Context) (view.TaskDetail, error) {
			return e.TaskDetail(ctx, input.ID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-deployments",
		Method:      http.MethodGet,
		Path:        "/deployments",
		Summary:     "Deployment list",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*output[[]view.DeploymentRow], error) {
		return load(ctx, func(ctx context.Context) ([]view.DeploymentRow, error) {
			return e.Deployments(ctx, input.options())
		})
	})
	huma.Register(api, huma.Operation{
		OperationID: "get-deployment",
		Method:      http.MethodGet,
		Path:        "/deployments/{id}",
		Summary:     "Deployment detail",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *idPath) (*output[view.DeploymentDetail], error) {
		return load(ctx, func(ctx context.Context) (view.DeploymentDetail, error) {
			return e.DeploymentDetail(ctx, input.ID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "Application list",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*output[[]view.ApplicationRow], error) {
		return load(ctx, func(ctx context.Context) ([]view.ApplicationRow, error) {
			return e.Applications(ctx, input.options())
		})
	})
	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{id}",
		Summary:     "Application detail with its requirements",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *idPath) (*output[view.ApplicationDetail], error) {
		return load(ctx, func(ctx context.Context) (view.ApplicationDetail, error) {
			return e.ApplicationDetail(ctx, input.ID, "")
		})
	})
	huma.Register(api, huma.Operation{
		OperationID: "get-application-by-app-id",
		Method:      http.MethodGet,
		Path:        "/applications/by-app-id/{app_id}",
		Summary:     "Application detail by external app id",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		AppID string `path:"app_id"`
	}) (*output[view.ApplicationDetail], error) {
		return load(ctx, func(ctx context.Context) (view.ApplicationDetail, error) {
			return e.ApplicationDetail(ctx, 0, input.AppID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "User list",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *listQuery) (*output[[]domain.User], error) {
		return load(ctx, func(ctx context.Context) ([]domain.User, error) {
			return e.Users(ctx, input.options())
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-event-logs",
		Method:      http.MethodGet,
		Path:        "/event-logs",
		Summary:     "Backend audit trail",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Skip          int   `query:"skip" minimum:"0"`
		Limit         int   `query:"limit" minimum:"0" maximum:"1000"`
		RequirementID int64 `query:"requirement_id"`
		QuestionID    int64 `query:"question_id"`
	}) (*output[[]domain.EventLog], error) {
		opts := numasdk.ListOptions{Skip: input.Skip, Limit: input.Limit}
		return load(ctx, func(ctx context.Context) ([]domain.EventLog, error) {
			return e.EventLogs(ctx, input.RequirementID, input.QuestionID, opts)
		})
	})
}

func registerQuestionPanels(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-question-panel",
		Method:      http.MethodGet,
		Path:        "/questions/{kind}/{id}",
		Summary:     "Q&A panel of a requirement or solution",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"requirement,solution"`
		ID   int64  `path:"id" doc:"requirement or solution id"`
	}) (*output[clarify.Panel], error) {
		return load(ctx, func(ctx context.Context) (clarify.Panel, error) {
			return e.QuestionPanel(ctx, domain.ParentKind(input.Kind), input.ID)
		})
	})
}

func registerJournal(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-journal",
		Method:      http.MethodGet,
		Path:        "/journal",
		Summary:     "Locally journaled actions, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"application,requirement,solution,development_task,deployment,user,question"`
		EntityID   string `query:"entity_id"`
		ActorID    int64  `query:"actor_id"`
		Outcome    string `query:"outcome" enum:"ok,rejected,failed"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*output[JournalPage], error) {
		limit := normalizeLimit(input.Limit)
		var cursor int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursor = parsed
		}
		items, err := e.Journal(ctx, repo.JournalFilter{
			Limit:      limit + 1,
			Cursor:     cursor,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			ActorID:    input.ActorID,
			Outcome:    input.Outcome,
		})
		if err != nil {
			return nil, handleError(err)
		}
		page := JournalPage{Items: []domain.JournalEntry{}}
		if len(items) > limit {
			page.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		page.Items = append(page.Items, items...)
		return &output[JournalPage]{Body: page}, nil
	})
}
