package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"numa/internal/config"
	"numa/internal/domain"
	"numa/internal/engine/auth"
	"numa/internal/events"
	"numa/internal/repo"
	"numa/internal/view"
	"numa/internal/workflow"
	numasdk "numa/sdk/go"
)

// Engine is the console core: it loads screens from the backend, runs
// guarded actions against it and journals what it dispatched.
type Engine struct {
	Client  *numasdk.Client
	Repo    repo.Repo
	Events  events.Writer
	Views   view.Assembler
	Logger  *slog.Logger
	Metrics *Metrics
	Now     func() time.Time
	// LookupPage is the page size for reference collections; zero means
	// DefaultLookupPage.
	LookupPage int
}

// New wires an engine for cfg. journal may be nil when the journal is
// disabled.
func New(cfg *config.Config, journal *sql.DB, logger *slog.Logger) Engine {
	client := numasdk.NewWithTimeout(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	if logger == nil {
		logger = slog.Default()
	}
	return Engine{
		Client: client,
		Repo:   repo.Repo{DB: journal},
		Events: events.Writer{DB: journal},
		Views: view.New(view.Placeholders{
			Unassigned:  cfg.Display.Unassigned,
			Unspecified: cfg.Display.Unspecified,
		}),
		Logger: logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// ErrJournalDisabled is returned by journal reads when no journal is open.
var ErrJournalDisabled = errors.New("journal disabled")

// Journal lists recorded actions, newest first.
func (e Engine) Journal(ctx context.Context, f repo.JournalFilter) ([]domain.JournalEntry, error) {
	if e.Repo.DB == nil {
		return nil, ErrJournalDisabled
	}
	return e.Repo.LatestEntries(ctx, f)
}

type requestIDKey struct{}

// WithRequestID tags ctx so journal entries share the caller's request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// actingUser returns the session user or rejects the action locally.
func actingUser(ctx context.Context, kind domain.EntityKind, action workflow.Action) (int64, error) {
	id, err := auth.UserID(ctx)
	if err != nil {
		return 0, &workflow.Rejection{Reason: workflow.ReasonMissingField, Kind: kind, Action: action, Field: "acting_user_id"}
	}
	return id, nil
}

// record journals and logs the outcome of one dispatched or rejected action.
func (e Engine) record(ctx context.Context, typ string, kind domain.EntityKind, entityID int64, actor int64, payload events.EventPayload, err error) {
	entry := events.Entry{
		Type:       typ,
		EntityKind: string(kind),
		ActorID:    actor,
		RequestID:  requestID(ctx),
		Payload:    payload,
		Outcome:    outcomeOf(err),
	}
	if entityID > 0 {
		entry.EntityID = strconv.FormatInt(entityID, 10)
	}
	attrs := []any{"op", typ, "entity_kind", kind, "entity_id", entry.EntityID, "actor_id", actor}
	switch entry.Outcome {
	case events.OutcomeRejected:
		entry.Detail = err.Error()
		e.logger().Debug("action rejected", append(attrs, "detail", entry.Detail)...)
	case events.OutcomeFailed:
		entry.Detail = UserMessage(err)
		e.logger().Error("action failed", append(attrs, "status", statusOf(err), "detail", entry.Detail)...)
	default:
		e.logger().Info("action dispatched", attrs...)
	}
	e.Metrics.observeAction(typ, entry.Outcome)
	if !e.Events.Enabled() {
		return
	}
	// journal outcome on a fresh context so a cancelled request still records
	if _, jerr := e.Events.Append(context.WithoutCancel(ctx), entry); jerr != nil {
		e.logger().Warn("journal append failed", "op", typ, "error", jerr)
	}
}

func outcomeOf(err error) string {
	var rej *workflow.Rejection
	switch {
	case err == nil:
		return events.OutcomeOK
	case errors.As(err, &rej):
		return events.OutcomeRejected
	default:
		return events.OutcomeFailed
	}
}

func statusOf(err error) int {
	var apiErr *numasdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
