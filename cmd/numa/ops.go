package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"numa/internal/app"
	"numa/internal/config"
	"numa/internal/db"
	"numa/internal/domain"
	"numa/internal/engine"
	"numa/internal/engine/auth"
	"numa/internal/mockbackend"
	"numa/internal/repo"
	"numa/internal/server"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Local action journal"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var follow bool
	var interval time.Duration
	var f repo.JournalFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest journaled actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.Limit = n
				entries, err := e.Journal(ctx, f)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(entries))
				for _, en := range entries {
					rows = append(rows, journalRow(en))
				}
				if err := printTable(entries, table.Row{"ID", "TS", "Type", "Entity", "Actor", "Outcome", "Detail"}, rows); err != nil {
					return err
				}
				if !follow {
					return nil
				}
				var cursor int64
				if len(entries) > 0 {
					cursor = entries[0].ID
				}
				return followJournal(ctx, e.Repo, f, cursor, interval)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&f.Type, "type", "", "action type filter, e.g. requirement.assign")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&f.Outcome, "outcome", "", "ok, rejected or failed")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new entries")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval with --follow")
	return cmd
}

func followJournal(ctx context.Context, r repo.Repo, f repo.JournalFilter, cursor int64, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		entries, err := r.EntriesAfter(ctx, cursor, 100)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, en := range entries {
			cursor = en.ID
			if !matches(f, en) {
				continue
			}
			if isJSON() {
				if err := printJSON(en); err != nil {
					return err
				}
				continue
			}
			row := journalRow(en)
			fmt.Println(row...)
		}
	}
}

func matches(f repo.JournalFilter, en domain.JournalEntry) bool {
	return (f.Type == "" || f.Type == en.Type) &&
		(f.EntityKind == "" || f.EntityKind == en.EntityKind) &&
		(f.EntityID == "" || f.EntityID == en.EntityID) &&
		(f.Outcome == "" || f.Outcome == en.Outcome)
}

func journalRow(en domain.JournalEntry) table.Row {
	entity := en.EntityKind
	if en.EntityID != "" {
		entity += "/" + en.EntityID
	}
	return table.Row{en.ID, en.TS, en.Type, entity, en.ActorID, en.Outcome, en.Detail}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configEnvCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default numa.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			content := config.GenerateDefault(viper.GetInt64("user-id"))
			if _, err := config.FromYAML([]byte(content)); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing numa.yml")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration (file, env and flags applied)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cfg)
			}
			b, err := cfg.Marshal()
			if err != nil {
				return err
			}
			fmt.Print(string(b))
			if cfg.JournalEnabled() {
				fmt.Println("# journal:", db.Path(viper.GetString("workspace")))
			}
			return nil
		},
	}
}

func configEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env <KEY> <value>",
		Short: "Set a variable in the workspace .env (e.g. NUMA_JWT_SECRET)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(viper.GetString("workspace"), ".env")
			values, err := godotenv.Read(path)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				values = map[string]string{}
			}
			values[args[0]] = args[1]
			if err := godotenv.Write(values, path); err != nil {
				return err
			}
			fmt.Printf("set %s in %s\n", args[0], path)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var name string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the acting user (NUMA_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("NUMA_JWT_SECRET is required to sign tokens")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session := app.ResolveSession(cfg, overrides())
			if session.Anonymous() {
				return fmt.Errorf("no acting user: set session.user_id or pass --user-id")
			}
			token, err := auth.IssueToken(secret, session.UserID, name, ttl, time.Now())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var legacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the console HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
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
			logger := newLogger(slog.LevelInfo)

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			e := engine.New(cfg, journal, logger)
			e.Metrics = engine.NewMetrics(reg)

			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") {
				basePath = cfg.Server.BasePath
			}
			authCfg := server.AuthConfig{
				JWTSecret:             viper.GetString("jwt-secret"),
				AllowLegacyUserHeader: legacyHeader,
				Fallback:              app.ResolveSession(cfg, o),
				Logger:                logger,
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Gatherer: reg, Logger: logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.Info("serving console API", "addr", addr, "base_path", basePath, "backend", cfg.Backend.BaseURL, "auth", authCfg.JWTSecret != "")
			fmt.Printf("Serving Numa console API on http://%s%s (OpenAPI at %s/openapi.json, docs at %s, metrics at /metrics)\n", addr, basePath, basePath, server.DocsPath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", config.DefaultBasePath, "API base path (overrides server.base_path)")
	cmd.Flags().BoolVar(&legacyHeader, "allow-user-header", false, "accept X-User-Id without a token (development only)")
	return cmd
}

func mockBackendCmd() *cobra.Command {
	var addr string
	var seed bool
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve an in-memory Numa backend under /api/v1 for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(slog.LevelInfo)
			store := mockbackend.NewStore()
			if seed {
				store.Seed()
			}
			srv := &http.Server{Addr: addr, Handler: mockbackend.Handler(store, logger), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving mock backend on http://%s/api (seeded: %t)\n", addr, seed)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", true, "load demo users, requirements and a solution")
	return cmd
}
