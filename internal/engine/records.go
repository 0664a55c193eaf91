package engine

import (
	"context"

	"numa/internal/domain"
	"numa/internal/events"
	numasdk "numa/sdk/go"
)

// write dispatches one unguarded record change and journals it.
func write[T any](ctx context.Context, e Engine, typ string, kind domain.EntityKind, id int64, payload events.EventPayload, fn func(context.Context) (T, error), idOf func(T) int64) (T, error) {
	out, err := fn(ctx)
	if err == nil && id == 0 && idOf != nil {
		id = idOf(out)
	}
	e.record(ctx, typ, kind, id, viewer(ctx), payload, err)
	return out, err
}

func remove(ctx context.Context, e Engine, typ string, kind domain.EntityKind, id int64, fn func(context.Context, int64) error) error {
	_, err := write(ctx, e, typ, kind, id, nil, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx, id)
	}, nil)
	return err
}

// CreateRequirement files a new requirement. The reporter defaults to the
// acting user.
func (e Engine) CreateRequirement(ctx context.Context, in numasdk.RequirementInput) (domain.Requirement, error) {
	if in.UserID == nil {
		if id := viewer(ctx); id > 0 {
			in.UserID = domain.Int64(id)
		}
	}
	return write(ctx, e, "requirement.create", domain.KindRequirement, 0, events.EventPayload{"title": in.Title},
		func(ctx context.Context) (domain.Requirement, error) { return e.Client.CreateRequirement(ctx, in) },
		func(r domain.Requirement) int64 { return r.ID })
}

func (e Engine) UpdateRequirement(ctx context.Context, id int64, in numasdk.RequirementInput) (domain.Requirement, error) {
	return write(ctx, e, "requirement.update", domain.KindRequirement, id, nil,
		func(ctx context.Context) (domain.Requirement, error) { return e.Client.UpdateRequirement(ctx, id, in) }, nil)
}

func (e Engine) DeleteRequirement(ctx context.Context, id int64) error {
	return remove(ctx, e, "requirement.delete", domain.KindRequirement, id, e.Client.DeleteRequirement)
}

// CreateSolution proposes a solution for a requirement. The author defaults
// to the acting user.
func (e Engine) CreateSolution(ctx context.Context, in numasdk.SolutionInput) (domain.Solution, error) {
	if in.CreatedBy == 0 {
		in.CreatedBy = viewer(ctx)
	}
	return write(ctx, e, "solution.create", domain.KindSolution, 0, events.EventPayload{"requirement_id": in.RequirementID},
		func(ctx context.Context) (domain.Solution, error) { return e.Client.CreateSolution(ctx, in) },
		func(s domain.Solution) int64 { return s.ID })
}

func (e Engine) UpdateSolution(ctx context.Context, id int64, in numasdk.SolutionInput) (domain.Solution, error) {
	return write(ctx, e, "solution.update", domain.KindSolution, id, nil,
		func(ctx context.Context) (domain.Solution, error) { return e.Client.UpdateSolution(ctx, id, in) }, nil)
}

func (e Engine) DeleteSolution(ctx context.Context, id int64) error {
	return remove(ctx, e, "solution.delete", domain.KindSolution, id, e.Client.DeleteSolution)
}

func (e Engine) CreateTask(ctx context.Context, in numasdk.TaskInput) (domain.DevelopmentTask, error) {
	return write(ctx, e, "development_task.create", domain.KindDevelopmentTask, 0, events.EventPayload{"solution_id": in.SolutionID},
		func(ctx context.Context) (domain.DevelopmentTask, error) { return e.Client.CreateTask(ctx, in) },
		func(t domain.DevelopmentTask) int64 { return t.ID })
}

func (e Engine) UpdateTask(ctx context.Context, id int64, in numasdk.TaskInput) (domain.DevelopmentTask, error) {
	return write(ctx, e, "development_task.update", domain.KindDevelopmentTask, id, events.EventPayload{"status": in.Status},
		func(ctx context.Context) (domain.DevelopmentTask, error) { return e.Client.UpdateTask(ctx, id, in) }, nil)
}

func (e Engine) DeleteTask(ctx context.Context, id int64) error {
	return remove(ctx, e, "development_task.delete", domain.KindDevelopmentTask, id, e.Client.DeleteTask)
}

// CreateDeployment records a rollout of a task. The deployer defaults to the
// acting user.
func (e Engine) CreateDeployment(ctx context.Context, in numasdk.DeploymentInput) (domain.Deployment, error) {
	if in.DeployedBy == nil {
		if id := viewer(ctx); id > 0 {
			in.DeployedBy = domain.Int64(id)
		}
	}
	return write(ctx, e, "deployment.create", domain.KindDeployment, 0, events.EventPayload{"development_task_id": in.DevelopmentTaskID},
		func(ctx context.Context) (domain.Deployment, error) { return e.Client.CreateDeployment(ctx, in) },
		func(d domain.Deployment) int64 { return d.ID })
}

func (e Engine) UpdateDeployment(ctx context.Context, id int64, in numasdk.DeploymentInput) (domain.Deployment, error) {
	return write(ctx, e, "deployment.update", domain.KindDeployment, id, events.EventPayload{"status": in.Status},
		func(ctx context.Context) (domain.Deployment, error) { return e.Client.UpdateDeployment(ctx, id, in) }, nil)
}

func (e Engine) DeleteDeployment(ctx context.Context, id int64) error {
	return remove(ctx, e, "deployment.delete", domain.KindDeployment, id, e.Client.DeleteDeployment)
}

func (e Engine) CreateApplication(ctx context.Context, in numasdk.ApplicationInput) (domain.Application, error) {
	if in.CreatedBy == nil {
		if id := viewer(ctx); id > 0 {
			in.CreatedBy = domain.Int64(id)
		}
	}
	return write(ctx, e, "application.create", domain.KindApplication, 0, events.EventPayload{"app_id": in.AppID},
		func(ctx context.Context) (domain.Application, error) { return e.Client.CreateApplication(ctx, in) },
		func(a domain.Application) int64 { return a.ID })
}

func (e Engine) SetApplicationStatus(ctx context.Context, id int64, status string) (domain.Application, error) {
	return write(ctx, e, "application.status", domain.KindApplication, id, events.EventPayload{"status": status},
		func(ctx context.Context) (domain.Application, error) { return e.Client.UpdateApplicationStatus(ctx, id, status) }, nil)
}

func (e Engine) CreateUser(ctx context.Context, in numasdk.UserInput) (domain.User, error) {
	return write(ctx, e, "user.create", domain.KindUser, 0, events.EventPayload{"name": in.Name},
		func(ctx context.Context) (domain.User, error) { return e.Client.CreateUser(ctx, in) },
		func(u domain.User) int64 { return u.ID })
}

func (e Engine) UpdateUser(ctx context.Context, id int64, in numasdk.UserInput) (domain.User, error) {
	return write(ctx, e, "user.update", domain.KindUser, id, nil,
		func(ctx context.Context) (domain.User, error) { return e.Client.UpdateUser(ctx, id, in) }, nil)
}

func (e Engine) DeleteUser(ctx context.Context, id int64) error {
	return remove(ctx, e, "user.delete", domain.KindUser, id, e.Client.DeleteUser)
}
