package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"numa/internal/clarify"
	"numa/internal/domain"
	"numa/internal/engine"
	numasdk "numa/sdk/go"
)

func requirementCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "requirement", Aliases: []string{"req"}, Short: "Requirements: list, inspect, assign, clarify, confirm"}
	cmd.AddCommand(requirementListCmd())
	cmd.AddCommand(requirementShowCmd())
	cmd.AddCommand(requirementCreateCmd())
	cmd.AddCommand(requirementUpdateCmd())
	cmd.AddCommand(deleteCmd("requirement", func(e engine.Engine) func(context.Context, int64) error { return e.DeleteRequirement }))
	cmd.AddCommand(requirementAssignCmd())
	cmd.AddCommand(requirementClarifyCmd())
	cmd.AddCommand(requirementConfirmCmd())
	return cmd
}

func requirementCreateCmd() *cobra.Command {
	var title, description, branch, specDoc string
	var appID, reporter int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a requirement (reporter defaults to the acting user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.CreateRequirement(ctx, numasdk.RequirementInput{
					Title:         title,
					Description:   description,
					UserID:        optionalID(reporter),
					ApplicationID: optionalID(appID),
					BranchName:    optionalString(branch),
					SpecDocument:  optionalString(specDoc),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Int64Var(&appID, "application", 0, "application id")
	cmd.Flags().Int64Var(&reporter, "reporter", 0, "reporting user id")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name")
	cmd.Flags().StringVar(&specDoc, "spec-document", "", "link to a specification document")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func requirementUpdateCmd() *cobra.Command {
	var title, description, branch, specDoc string
	var appID int64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit requirement fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := numasdk.RequirementInput{Title: title, Description: description, ApplicationID: optionalID(appID)}
			if cmd.Flags().Changed("branch") {
				in.BranchName = &branch
			}
			if cmd.Flags().Changed("spec-document") {
				in.SpecDocument = &specDoc
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.UpdateRequirement(ctx, id, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Int64Var(&appID, "application", 0, "application id")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name")
	cmd.Flags().StringVar(&specDoc, "spec-document", "", "link to a specification document")
	return cmd
}

func requirementAssignCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a pending requirement; it moves to clarifying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.AssignRequirement(ctx, id, to)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "user id of the new owner")
	return cmd
}

func requirementClarifyCmd() *cobra.Command {
	var clarified bool
	cmd := &cobra.Command{
		Use:   "clarify <id>",
		Short: "Mark a clarifying requirement clarified (or not, with --clarified=false)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var flag *bool
			if cmd.Flags().Changed("clarified") {
				flag = &clarified
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.ClarifyRequirement(ctx, id, flag)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().BoolVar(&clarified, "clarified", true, "clarified flag to set")
	return cmd
}

func requirementConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a clarifying requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.ConfirmRequirement(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
}

func solutionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "solution", Aliases: []string{"sol"}, Short: "Solutions: propose, inspect, confirm"}
	cmd.AddCommand(solutionListCmd())
	cmd.AddCommand(solutionShowCmd())
	cmd.AddCommand(solutionCreateCmd())
	cmd.AddCommand(deleteCmd("solution", func(e engine.Engine) func(context.Context, int64) error { return e.DeleteSolution }))
	cmd.AddCommand(solutionConfirmCmd())
	return cmd
}

func solutionCreateCmd() *cobra.Command {
	var title, description string
	var requirementID, appID int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Propose a solution for a requirement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSolution(ctx, numasdk.SolutionInput{
					Title:         title,
					Description:   description,
					RequirementID: requirementID,
					ApplicationID: optionalID(appID),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Int64Var(&requirementID, "requirement", 0, "requirement id")
	cmd.Flags().Int64Var(&appID, "application", 0, "application id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("requirement")
	return cmd
}

func solutionConfirmCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a clarifying solution; the backend creates its development task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var flag *bool
			if cmd.Flags().Changed("confirmed") {
				flag = &confirmed
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.ConfirmSolution(ctx, id, flag)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "confirmed", true, "false sends the solution back to clarifying")
	return cmd
}

func questionCmd() *cobra.Command {
	var onSolution bool
	cmd := &cobra.Command{Use: "question", Aliases: []string{"q"}, Short: "Clarification questions on requirements (or solutions with --solution)"}
	cmd.PersistentFlags().BoolVar(&onSolution, "solution", false, "questions belong to a solution instead of a requirement")
	kind := func() domain.ParentKind {
		if onSolution {
			return domain.ParentSolution
		}
		return domain.ParentRequirement
	}
	cmd.AddCommand(questionListCmd(kind))
	cmd.AddCommand(questionAskCmd(kind))
	cmd.AddCommand(questionAnswerCmd(kind))
	cmd.AddCommand(questionClarifyCmd(kind))
	return cmd
}

func questionListCmd(kind func() domain.ParentKind) *cobra.Command {
	return &cobra.Command{
		Use:   "list <parent-id>",
		Short: "Show the question panel of a requirement or solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				panel, err := load(ctx, func(ctx context.Context) (clarify.Panel, error) {
					return e.QuestionPanel(ctx, kind(), parentID)
				})
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(panel.Items))
				for _, it := range panel.Items {
					rows = append(rows, table.Row{it.Question.ID, it.State, it.Question.Content, deref(it.Question.Answer), it.CanAnswer, it.CanClarify})
				}
				if err := printTable(panel, table.Row{"ID", "State", "Question", "Answer", "Can answer", "Can clarify"}, rows); err != nil {
					return err
				}
				if !isJSON() {
					fmt.Printf("open=%d answered=%d clarified=%d all_clarified=%t\n", panel.Open, panel.Answered, panel.Clarified, panel.AllClarified)
				}
				return nil
			})
		},
	}
}

func questionAskCmd(kind func() domain.ParentKind) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <parent-id> <content...>",
		Short: "Ask a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}
			content := strings.Join(args[1:], " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.AskQuestion(ctx, kind(), parentID, content)
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
}

func questionAnswerCmd(kind func() domain.ParentKind) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <question-id> <answer...>",
		Short: "Answer a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			answer := strings.Join(args[1:], " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.AnswerQuestion(ctx, kind(), id, answer)
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
}

func questionClarifyCmd(kind func() domain.ParentKind) *cobra.Command {
	return &cobra.Command{
		Use:   "clarify <question-id>",
		Short: "Mark an answered question clarified (owner of the parent only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.ClarifyQuestion(ctx, kind(), id)
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Development tasks"}
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskUpdateCmd())
	cmd.AddCommand(deleteCmd("task", func(e engine.Engine) func(context.Context, int64) error { return e.DeleteTask }))
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var title, description, branch string
	var solutionID, assignee int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a development task for a solution",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, numasdk.TaskInput{
					Title:       title,
					Description: description,
					SolutionID:  solutionID,
					AssignedTo:  optionalID(assignee),
					CodeBranch:  optionalString(branch),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Int64Var(&solutionID, "solution", 0, "solution id")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "assigned user id")
	cmd.Flags().StringVar(&branch, "branch", "", "code branch")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("solution")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var status, branch string
	var assignee int64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task status, assignee or branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := numasdk.TaskInput{Status: status, AssignedTo: optionalID(assignee)}
			if cmd.Flags().Changed("branch") {
				in.CodeBranch = &branch
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, id, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "assigned user id")
	cmd.Flags().StringVar(&branch, "branch", "", "code branch")
	return cmd
}

func deploymentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "deployment", Aliases: []string{"deploy"}, Short: "Deployments"}
	cmd.AddCommand(deploymentListCmd())
	cmd.AddCommand(deploymentShowCmd())
	cmd.AddCommand(deploymentCreateCmd())
	cmd.AddCommand(deploymentStatusCmd())
	cmd.AddCommand(deleteCmd("deployment", func(e engine.Engine) func(context.Context, int64) error { return e.DeleteDeployment }))
	return cmd
}

func deploymentCreateCmd() *cobra.Command {
	var name, description string
	var taskID int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a deployment of a task (deployer defaults to the acting user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDeployment(ctx, numasdk.DeploymentInput{Name: name, Description: description, DevelopmentTaskID: taskID})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Int64Var(&taskID, "task", 0, "development task id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func deploymentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set deployment status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.UpdateDeployment(ctx, id, numasdk.DeploymentInput{Status: args[1]})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func applicationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "application", Aliases: []string{"app"}, Short: "Applications"}
	cmd.AddCommand(applicationListCmd())
	cmd.AddCommand(applicationShowCmd())
	cmd.AddCommand(applicationCreateCmd())
	cmd.AddCommand(applicationStatusCmd())
	return cmd
}

func applicationCreateCmd() *cobra.Command {
	var in numasdk.ApplicationInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateApplication(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "name")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Owner, "owner", "", "owning team")
	cmd.Flags().StringVar(&in.RepositoryURL, "repo", "", "repository url")
	cmd.Flags().StringVar(&in.AppID, "app-id", "", "external app id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func applicationStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change application status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.SetApplicationStatus(ctx, id, args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Users"}
	cmd.AddCommand(userListCmd())
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(deleteCmd("user", func(e engine.Engine) func(context.Context, int64) error { return e.DeleteUser }))
	return cmd
}

func userCreateCmd() *cobra.Command {
	var in numasdk.UserInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func deleteCmd(what string, op func(engine.Engine) func(context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + what,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := op(e)(ctx, id); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": id, "deleted": true})
			})
		},
	}
}
