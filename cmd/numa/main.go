package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"numa/internal/app"
	"numa/internal/config"
	"numa/internal/engine"
	"numa/internal/engine/auth"
)

var rootCmd = &cobra.Command{
	Use:   "numa",
	Short: "Numa workflow console",
	Long: `Numa moves work from requirement to deployment.
- Requirements start pending, get assigned to an owner and are clarified through questions before being confirmed.
- Solutions are proposed against a requirement and confirmed once every question on them is clarified; confirming one creates a development task.
- Tasks are implemented on a branch and shipped through deployments.
Every action is checked locally before anything is sent to the backend, and every dispatched action is recorded in the workspace journal (see 'numa log tail').`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", engine.UserMessage(err))
		os.Exit(1)
	}
}

func initConfig() {
	env := filepath.Join(viper.GetString("workspace"), ".env")
	if err := godotenv.Load(env); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: read", env+":", err)
	}
	viper.SetEnvPrefix("NUMA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory (numa.yml, .env, .numa/)")
	flags.Bool("json", false, "output JSON")
	flags.String("base-url", "", "backend API root (overrides backend.base_url)")
	flags.Duration("timeout", 0, "backend request timeout (overrides backend.timeout)")
	flags.Int64("user-id", 0, "acting user id (overrides session.user_id)")
	flags.BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"workspace", "json", "base-url", "timeout", "user-id", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(homeCmd())
	rootCmd.AddCommand(requirementCmd())
	rootCmd.AddCommand(solutionCmd())
	rootCmd.AddCommand(questionCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(deploymentCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mockBackendCmd())
}

// --- helpers ---

func overrides() app.Overrides {
	o := app.Overrides{
		BaseURL: viper.GetString("base-url"),
		Timeout: viper.GetDuration("timeout"),
	}
	if viper.IsSet("user-id") {
		if id := viper.GetInt64("user-id"); id > 0 {
			o.UserID = &id
		}
	}
	return o
}

func newLogger(level slog.Level) *slog.Logger {
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withEngine resolves the workspace config and session, opens the journal
// and runs fn with the acting user bound to ctx.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	o := overrides()
	cfg, err := app.ResolveConfig(workspace, o)
	if err != nil {
		return err
	}
	journal, err := app.OpenJournal(ctx, workspace, cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}
	e := engine.New(cfg, journal, newLogger(slog.LevelWarn))
	ctx = auth.WithSession(ctx, app.ResolveSession(cfg, o))
	return fn(ctx, e)
}

// load runs a screen fetch inside a scope bound to the command's lifetime.
func load[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	scope := engine.NewScope(ctx)
	defer scope.Close()
	return engine.Load(scope, fn)
}

func loadConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"), overrides())
}

func isJSON() bool { return viper.GetBool("json") }

func printJSONOrTable(v any) error {
	if isJSON() {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows as a table, or v as JSON with --json.
func printTable(v any, header table.Row, rows []table.Row) error {
	if isJSON() {
		return printJSON(v)
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
