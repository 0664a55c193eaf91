package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Writer appends console actions to the local journal. A Writer without a DB
// drops entries, which is how a disabled journal behaves.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Entry is one journaled action.
type Entry struct {
	Type       string
	EntityKind string
	EntityID   string
	ActorID    int64
	Outcome    string
	Detail     string
	RequestID  string
	Payload    EventPayload
}

// Enabled reports whether entries are persisted.
func (w Writer) Enabled() bool { return w.DB != nil }

// Append stores the entry and returns its id. Missing request ids are
// generated.
func (w Writer) Append(ctx context.Context, e Entry) (int64, error) {
	if w.DB == nil {
		return 0, nil
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	if e.RequestID == "" {
		e.RequestID = uuid.NewString()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if e.Payload == nil {
		e.Payload = EventPayload{}
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal journal payload: %w", err)
	}
	res, err := w.DB.ExecContext(ctx, `INSERT INTO journal(ts,type,entity_kind,entity_id,actor_id,outcome,detail,request_id,payload_json) VALUES (?,?,?,?,?,?,?,?,?)`,
		ts, e.Type, e.EntityKind, nullable(e.EntityID), e.ActorID, e.Outcome, nullable(e.Detail), e.RequestID, string(data))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
