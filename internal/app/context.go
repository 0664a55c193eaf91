package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"numa/internal/config"
	"numa/internal/db"
	"numa/internal/engine/auth"
	"numa/internal/migrate"
)

// Overrides are flag/env values that win over numa.yml.
type Overrides struct {
	BaseURL string
	Timeout time.Duration
	UserID  *int64
}

// ResolveConfig loads the workspace config (defaults when absent), applies
// overrides and validates the result.
func ResolveConfig(workspace string, o Overrides) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.BaseURL != "" {
		cfg.Backend.BaseURL = o.BaseURL
	}
	if o.Timeout > 0 {
		cfg.Backend.Timeout = o.Timeout
	}
	if o.UserID != nil {
		cfg.Session.UserID = *o.UserID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveSession picks the acting user: an explicit override first, then the
// config value.
func ResolveSession(cfg *config.Config, o Overrides) auth.Session {
	if o.UserID != nil {
		return auth.Session{UserID: *o.UserID, Source: auth.SourceFlag}
	}
	return auth.Session{UserID: cfg.Session.UserID, Source: auth.SourceConfig}
}

// OpenJournal opens and migrates the workspace journal. It returns nil when
// the journal is disabled.
func OpenJournal(ctx context.Context, workspace string, cfg *config.Config) (*sql.DB, error) {
	if !cfg.JournalEnabled() {
		return nil, nil
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return conn, nil
}
