package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"numa/internal/domain"
	"numa/internal/engine"
	"numa/internal/view"
	numasdk "numa/sdk/go"
)

func listFlags(cmd *cobra.Command, opts *numasdk.ListOptions) {
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "records to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum records")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status filter")
}

func homeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Pipeline dashboard: status counts per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				home, err := load(ctx, e.Home)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(home.Stages))
				for _, s := range home.Stages {
					rows = append(rows, table.Row{s.Kind, s.Total, countsLine(s)})
				}
				return printTable(home, table.Row{"Stage", "Total", "By status"}, rows)
			})
		},
	}
}

func countsLine(s view.StageSummary) string {
	statuses := s.Statuses()
	parts := make([]string, 0, len(statuses))
	for _, st := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", st, s.ByStatus[st]))
	}
	return strings.Join(parts, " ")
}

func actionsLine[T ~string](actions []T) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, ",")
}

func requirementListCmd() *cobra.Command {
	var opts numasdk.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requirements with assignee, application and permitted actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := load(ctx, func(ctx context.Context) ([]view.RequirementRow, error) {
					return e.Requirements(ctx, opts)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, r := range items {
					rows = append(rows, table.Row{r.Requirement.ID, r.Requirement.Title, r.Requirement.Status, r.Assignee.Label, r.Application.Label, r.Requirement.Clarified, actionsLine(r.Actions)})
				}
				return printTable(items, table.Row{"ID", "Title", "Status", "Assignee", "Application", "Clarified", "Actions"}, rows)
			})
		},
	}
	listFlags(cmd, &opts)
	return cmd
}

func requirementShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a requirement with its questions and solutions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := load(ctx, func(ctx context.Context) (view.RequirementDetail, error) {
					return e.RequirementDetail(ctx, id)
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
}

func solutionListCmd() *cobra.Command {
	var opts numasdk.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List solutions with their requirement and author",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := load(ctx, func(ctx context.Context) ([]view.SolutionRow, error) {
					return e.Solutions(ctx, opts)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, s := range items {
					rows = append(rows, table.Row{s.Solution.ID, s.Solution.Title, s.Solution.Status, s.Requirement.Label, s.Author.Label, actionsLine(s.Actions)})
				}
				return printTable(items, table.Row{"ID", "Title", "Status", "Requirement", "Author", "Actions"}, rows)
			})
		},
	}
	listFlags(cmd, &opts)
	return cmd
}

func solutionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a solution with its questions and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := load(ctx, func(ctx context.Context) (view.SolutionDetail, error) {
					return e.SolutionDetail(ctx, id)
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
}

func taskListCmd() *cobra.Command {
	var opts numasdk.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List development tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := load(ctx, func(ctx context.Context) ([]view.TaskRow, error) {
					return e.Tasks(ctx, opts)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, t := range items {
					rows = append(rows, table.Row{t.Task.ID, t.Task.Title, t.Task.Status, t.Solution.Label, t.Assignee.Label, t.Branch})
				}
				return printTable(items, table.Row{"ID", "Title", "Status", "Solution", "Assignee", "Branch"}, rows)
			})
		},
	}
	listFlags(cmd, &opts)
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its solution chain and deployments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := load(ctx, func(ctx context.Context) (view.TaskDetail, error) {
					return e.TaskDetail(ctx, id)
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
}

func deploymentListCmd() *cobra.Command {
	var opts numasdk.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := load(ctx, func(ctx context.Context) ([]view.DeploymentRow, error) {
					return e.Deployments(ctx, opts)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, d := range items {
					rows = append(rows, table.Row{d.Deployment.ID, d.Deployment.Name, d.Deployment.Status, d.Task.Label, d.DeployedBy.Label, deref(d.Deployment.DeployedAt)})
				}
				return printTable(items, table.Row{"ID", "Name", "Status", "Task", "Deployed by", "Deployed at"}, rows)
			})
		},
	}
	listFlags(cmd, &opts)
	return cmd
}

func deploymentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a deployment with its task, solution and requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := load(ctx, func(ctx context.Context) (view.DeploymentDetail, error) {
					return e.DeploymentDetail(ctx, id)
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
}

func applicationListCmd() *cobra.Command {
	var opts numasdk.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := load(ctx, func(ctx context.Context) ([]view.ApplicationRow, error) {
					return e.Applications(ctx, opts)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, a := range items {
					rows = append(rows, table.Row{a.Application.ID, a.Application.Name, a.Application.AppID, a.Application.Status, a.Application.Owner, a.Creator.Label})
				}
				return printTable(items, table.Row{"ID", "Name", "App ID", "Status", "Owner", "Created by"}, rows)
			})
		},
	}
	listFlags(cmd, &opts)
	return cmd
}

func applicationShowCmd() *cobra.Command {
	var appID string
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show an application and its requirements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				parsed, err := parseID(args[0])
				if err != nil {
					return err
				}
				id = parsed
			}
			if id == 0 && appID == "" {
				return fmt.Errorf("an id or --app-id is required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := load(ctx, func(ctx context.Context) (view.ApplicationDetail, error) {
					return e.ApplicationDetail(ctx, id, appID)
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
	cmd.Flags().StringVar(&appID, "app-id", "", "look up by external app id")
	return cmd
}

func userListCmd() *cobra.Command {
	var opts numasdk.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := load(ctx, func(ctx context.Context) ([]domain.User, error) {
					return e.Users(ctx, opts)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, u := range items {
					rows = append(rows, table.Row{u.ID, u.Name, u.Email})
				}
				return printTable(items, table.Row{"ID", "Name", "Email"}, rows)
			})
		},
	}
	listFlags(cmd, &opts)
	return cmd
}

func eventsCmd() *cobra.Command {
	var opts numasdk.ListOptions
	var requirementID, questionID int64
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Backend event log, optionally for one requirement or question",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := load(ctx, func(ctx context.Context) ([]domain.EventLog, error) {
					return e.EventLogs(ctx, requirementID, questionID, opts)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, ev := range items {
					rows = append(rows, table.Row{ev.ID, ev.CreatedAt, ev.EventType, ev.UserID, ev.Description})
				}
				return printTable(items, table.Row{"ID", "At", "Type", "User", "Description"}, rows)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "records to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum records")
	cmd.Flags().Int64Var(&requirementID, "requirement", 0, "requirement id")
	cmd.Flags().Int64Var(&questionID, "question", 0, "question id")
	return cmd
}
