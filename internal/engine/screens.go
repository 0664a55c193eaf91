package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"numa/internal/clarify"
	"numa/internal/domain"
	"numa/internal/engine/auth"
	"numa/internal/view"
	numasdk "numa/sdk/go"
)

// DefaultLookupPage is the page size used to read whole reference
// collections when Engine.LookupPage is unset.
const DefaultLookupPage = 500

func (e Engine) lookupPage() int {
	if e.LookupPage > 0 {
		return e.LookupPage
	}
	return DefaultLookupPage
}

// listAll reads every page of a collection, stopping at the first short page.
func listAll[T any](ctx context.Context, size int, fn func(context.Context, numasdk.ListOptions) ([]T, error)) ([]T, error) {
	var out []T
	for skip := 0; ; skip += size {
		batch, err := fn(ctx, numasdk.ListOptions{Skip: skip, Limit: size})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < size {
			return out, nil
		}
	}
}

// fetch schedules one backend read on g and stores its result in dst.
func fetch[T any](ctx context.Context, g *errgroup.Group, m *Metrics, resource string, dst *T, fn func(context.Context) (T, error)) {
	g.Go(func() error {
		v, err := fn(ctx)
		m.observeFetch(resource, err)
		if err != nil {
			return fmt.Errorf("load %s: %w", resource, err)
		}
		*dst = v
		return nil
	})
}

// fanOut runs the scheduled fetches and waits for all of them. Any failure
// fails the whole screen.
func (e Engine) fanOut(ctx context.Context, screen string, schedule func(ctx context.Context, g *errgroup.Group)) error {
	started := e.now()
	g, gctx := errgroup.WithContext(ctx)
	schedule(gctx, g)
	err := g.Wait()
	e.Metrics.observeScreen(screen, started)
	if err != nil {
		e.logger().Error("screen load failed", "op", screen, "status", statusOf(err), "detail", UserMessage(err))
	}
	return err
}

func viewer(ctx context.Context) int64 {
	if s, ok := auth.FromContext(ctx); ok {
		return s.UserID
	}
	return 0
}

// Home loads the pipeline dashboard.
func (e Engine) Home(ctx context.Context) (view.Home, error) {
	var (
		reqs  []domain.Requirement
		sols  []domain.Solution
		tasks []domain.DevelopmentTask
		deps  []domain.Deployment
	)
	err := e.fanOut(ctx, "home", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "requirements", &reqs, e.listRequirements)
		fetch(ctx, g, e.Metrics, "solutions", &sols, e.listSolutions)
		fetch(ctx, g, e.Metrics, "development", &tasks, e.listTasks)
		fetch(ctx, g, e.Metrics, "deployment", &deps, e.listDeployments)
	})
	if err != nil {
		return view.Home{}, err
	}
	return e.Views.Home(reqs, sols, tasks, deps), nil
}

func (e Engine) Requirements(ctx context.Context, opts numasdk.ListOptions) ([]view.RequirementRow, error) {
	var (
		reqs  []domain.Requirement
		users []domain.User
		apps  []domain.Application
	)
	err := e.fanOut(ctx, "requirements", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "requirements", &reqs, func(ctx context.Context) ([]domain.Requirement, error) { return e.Client.ListRequirements(ctx, opts) })
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
		fetch(ctx, g, e.Metrics, "applications", &apps, e.listApps)
	})
	if err != nil {
		return nil, err
	}
	return e.Views.RequirementList(reqs, users, apps, viewer(ctx)), nil
}

func (e Engine) RequirementDetail(ctx context.Context, id int64) (view.RequirementDetail, error) {
	var (
		req   domain.Requirement
		qs    []domain.Question
		sols  []domain.Solution
		users []domain.User
		apps  []domain.Application
	)
	err := e.fanOut(ctx, "requirement_detail", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "requirement", &req, func(ctx context.Context) (domain.Requirement, error) { return e.Client.GetRequirement(ctx, id) })
		fetch(ctx, g, e.Metrics, "questions", &qs, func(ctx context.Context) ([]domain.Question, error) {
			return e.Client.QuestionsFor(ctx, domain.ParentRequirement, id)
		})
		fetch(ctx, g, e.Metrics, "solutions", &sols, func(ctx context.Context) ([]domain.Solution, error) { return e.Client.SolutionsByRequirement(ctx, id) })
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
		fetch(ctx, g, e.Metrics, "applications", &apps, e.listApps)
	})
	if err != nil {
		return view.RequirementDetail{}, err
	}
	return e.Views.RequirementDetail(req, qs, sols, users, apps, viewer(ctx)), nil
}

func (e Engine) Solutions(ctx context.Context, opts numasdk.ListOptions) ([]view.SolutionRow, error) {
	var (
		sols  []domain.Solution
		reqs  []domain.Requirement
		users []domain.User
	)
	err := e.fanOut(ctx, "solutions", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "solutions", &sols, func(ctx context.Context) ([]domain.Solution, error) { return e.Client.ListSolutions(ctx, opts) })
		fetch(ctx, g, e.Metrics, "requirements", &reqs, e.listRequirements)
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return nil, err
	}
	return e.Views.SolutionList(sols, reqs, users, viewer(ctx)), nil
}

func (e Engine) SolutionDetail(ctx context.Context, id int64) (view.SolutionDetail, error) {
	var (
		sol   domain.Solution
		qs    []domain.Question
		reqs  []domain.Requirement
		tasks []domain.DevelopmentTask
		users []domain.User
	)
	err := e.fanOut(ctx, "solution_detail", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "solution", &sol, func(ctx context.Context) (domain.Solution, error) { return e.Client.GetSolution(ctx, id) })
		fetch(ctx, g, e.Metrics, "questions", &qs, func(ctx context.Context) ([]domain.Question, error) {
			return e.Client.QuestionsFor(ctx, domain.ParentSolution, id)
		})
		fetch(ctx, g, e.Metrics, "requirements", &reqs, e.listRequirements)
		fetch(ctx, g, e.Metrics, "development", &tasks, e.listTasks)
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return view.SolutionDetail{}, err
	}
	var own []domain.DevelopmentTask
	for _, t := range tasks {
		if t.SolutionID == id {
			own = append(own, t)
		}
	}
	return e.Views.SolutionDetail(sol, qs, reqs, own, users, viewer(ctx)), nil
}

func (e Engine) Tasks(ctx context.Context, opts numasdk.ListOptions) ([]view.TaskRow, error) {
	var (
		tasks []domain.DevelopmentTask
		sols  []domain.Solution
		users []domain.User
	)
	err := e.fanOut(ctx, "tasks", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "development", &tasks, func(ctx context.Context) ([]domain.DevelopmentTask, error) { return e.Client.ListTasks(ctx, opts) })
		fetch(ctx, g, e.Metrics, "solutions", &sols, e.listSolutions)
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return nil, err
	}
	return e.Views.TaskList(tasks, sols, users), nil
}

func (e Engine) TaskDetail(ctx context.Context, id int64) (view.TaskDetail, error) {
	var (
		task  domain.DevelopmentTask
		sols  []domain.Solution
		reqs  []domain.Requirement
		deps  []domain.Deployment
		users []domain.User
	)
	err := e.fanOut(ctx, "task_detail", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "task", &task, func(ctx context.Context) (domain.DevelopmentTask, error) { return e.Client.GetTask(ctx, id) })
		fetch(ctx, g, e.Metrics, "solutions", &sols, e.listSolutions)
		fetch(ctx, g, e.Metrics, "requirements", &reqs, e.listRequirements)
		fetch(ctx, g, e.Metrics, "deployment", &deps, e.listDeployments)
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return view.TaskDetail{}, err
	}
	var own []domain.Deployment
	for _, d := range deps {
		if d.DevelopmentTaskID == id {
			own = append(own, d)
		}
	}
	return e.Views.TaskDetail(task, sols, reqs, own, users), nil
}

func (e Engine) Deployments(ctx context.Context, opts numasdk.ListOptions) ([]view.DeploymentRow, error) {
	var (
		deps  []domain.Deployment
		tasks []domain.DevelopmentTask
		users []domain.User
	)
	err := e.fanOut(ctx, "deployments", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "deployment", &deps, func(ctx context.Context) ([]domain.Deployment, error) { return e.Client.ListDeployments(ctx, opts) })
		fetch(ctx, g, e.Metrics, "development", &tasks, e.listTasks)
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return nil, err
	}
	return e.Views.DeploymentList(deps, tasks, users), nil
}

func (e Engine) DeploymentDetail(ctx context.Context, id int64) (view.DeploymentDetail, error) {
	var (
		dep   domain.Deployment
		tasks []domain.DevelopmentTask
		sols  []domain.Solution
		users []domain.User
	)
	err := e.fanOut(ctx, "deployment_detail", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "deployment", &dep, func(ctx context.Context) (domain.Deployment, error) { return e.Client.GetDeployment(ctx, id) })
		fetch(ctx, g, e.Metrics, "development", &tasks, e.listTasks)
		fetch(ctx, g, e.Metrics, "solutions", &sols, e.listSolutions)
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return view.DeploymentDetail{}, err
	}
	return e.Views.DeploymentDetail(dep, tasks, sols, users), nil
}

func (e Engine) Applications(ctx context.Context, opts numasdk.ListOptions) ([]view.ApplicationRow, error) {
	var (
		apps  []domain.Application
		users []domain.User
	)
	err := e.fanOut(ctx, "applications", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "applications", &apps, func(ctx context.Context) ([]domain.Application, error) { return e.Client.ListApplications(ctx, opts) })
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return nil, err
	}
	return e.Views.ApplicationList(apps, users), nil
}

// ApplicationDetail loads by numeric id, or by external app id when appID is set.
func (e Engine) ApplicationDetail(ctx context.Context, id int64, appID string) (view.ApplicationDetail, error) {
	var (
		app   domain.Application
		reqs  []domain.Requirement
		users []domain.User
	)
	err := e.fanOut(ctx, "application_detail", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, "application", &app, func(ctx context.Context) (domain.Application, error) {
			if appID != "" {
				return e.Client.ApplicationByAppID(ctx, appID)
			}
			return e.Client.GetApplication(ctx, id)
		})
		fetch(ctx, g, e.Metrics, "requirements", &reqs, e.listRequirements)
		fetch(ctx, g, e.Metrics, "users", &users, e.listUsers)
	})
	if err != nil {
		return view.ApplicationDetail{}, err
	}
	return e.Views.ApplicationDetail(app, reqs, users, viewer(ctx)), nil
}

func (e Engine) Users(ctx context.Context, opts numasdk.ListOptions) ([]domain.User, error) {
	started := e.now()
	users, err := e.Client.ListUsers(ctx, opts)
	e.Metrics.observeFetch("users", err)
	e.Metrics.observeScreen("users", started)
	if err != nil {
		e.logger().Error("screen load failed", "op", "users", "status", statusOf(err), "detail", UserMessage(err))
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

// QuestionPanel loads the Q&A panel of one parent.
func (e Engine) QuestionPanel(ctx context.Context, kind domain.ParentKind, parentID int64) (clarify.Panel, error) {
	var (
		owner *int64
		qs    []domain.Question
	)
	err := e.fanOut(ctx, "questions", func(ctx context.Context, g *errgroup.Group) {
		fetch(ctx, g, e.Metrics, string(kind), &owner, func(ctx context.Context) (*int64, error) { return e.parentOwner(ctx, kind, parentID) })
		fetch(ctx, g, e.Metrics, "questions", &qs, func(ctx context.Context) ([]domain.Question, error) {
			return e.Client.QuestionsFor(ctx, kind, parentID)
		})
	})
	if err != nil {
		return clarify.Panel{}, err
	}
	return clarify.BuildPanel(kind, parentID, owner, qs, viewer(ctx)), nil
}

// EventLogs reads the backend's audit trail, optionally narrowed to one
// requirement or question.
func (e Engine) EventLogs(ctx context.Context, requirementID, questionID int64, opts numasdk.ListOptions) ([]domain.EventLog, error) {
	var (
		logs []domain.EventLog
		err  error
	)
	switch {
	case questionID > 0:
		logs, err = e.Client.EventLogsForQuestion(ctx, questionID)
	case requirementID > 0:
		logs, err = e.Client.EventLogsForRequirement(ctx, requirementID)
	default:
		logs, err = e.Client.EventLogs(ctx, opts)
	}
	e.Metrics.observeFetch("event_logs", err)
	if err != nil {
		return nil, fmt.Errorf("load event logs: %w", err)
	}
	return logs, nil
}

func (e Engine) parentOwner(ctx context.Context, kind domain.ParentKind, parentID int64) (*int64, error) {
	switch kind {
	case domain.ParentRequirement:
		req, err := e.Client.GetRequirement(ctx, parentID)
		if err != nil {
			return nil, err
		}
		return clarify.Owner(req), nil
	case domain.ParentSolution:
		sol, err := e.Client.GetSolution(ctx, parentID)
		if err != nil {
			return nil, err
		}
		return clarify.Owner(sol), nil
	}
	return nil, fmt.Errorf("unknown question parent %q", kind)
}

func (e Engine) listUsers(ctx context.Context) ([]domain.User, error) {
	return listAll(ctx, e.lookupPage(), e.Client.ListUsers)
}

func (e Engine) listApps(ctx context.Context) ([]domain.Application, error) {
	return listAll(ctx, e.lookupPage(), e.Client.ListApplications)
}

func (e Engine) listRequirements(ctx context.Context) ([]domain.Requirement, error) {
	return listAll(ctx, e.lookupPage(), e.Client.ListRequirements)
}

func (e Engine) listSolutions(ctx context.Context) ([]domain.Solution, error) {
	return listAll(ctx, e.lookupPage(), e.Client.ListSolutions)
}

func (e Engine) listTasks(ctx context.Context) ([]domain.DevelopmentTask, error) {
	return listAll(ctx, e.lookupPage(), e.Client.ListTasks)
}

func (e Engine) listDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return listAll(ctx, e.lookupPage(), e.Client.ListDeployments)
}
