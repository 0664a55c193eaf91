package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"numa/internal/db"
	"numa/internal/events"
	"numa/internal/migrate"
)

func newJournal(t *testing.T) (Repo, events.Writer) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return Repo{DB: conn}, events.Writer{DB: conn, Now: func() time.Time { return fixed }}
}

func TestJournalAppendAndFilter(t *testing.T) {
	ctx := context.Background()
	r, w := newJournal(t)
	entries := []events.Entry{
		{Type: "requirement.assign", EntityKind: "requirement", EntityID: "4", ActorID: 7, Payload: events.EventPayload{"assigned_to": 7}},
		{Type: "requirement.confirm", EntityKind: "requirement", EntityID: "4", ActorID: 7, Outcome: events.OutcomeRejected, Detail: "confirm not permitted"},
		{Type: "solution.confirm", EntityKind: "solution", EntityID: "5", ActorID: 3, Outcome: events.OutcomeFailed, Detail: "Solution not found"},
	}
	for _, e := range entries {
		if _, err := w.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := r.LatestEntries(ctx, JournalFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Type != "solution.confirm" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[2].Outcome != events.OutcomeOK || all[2].RequestID == "" || all[2].TS != "2026-01-02T03:04:05Z" {
		t.Fatalf("defaults not applied: %+v", all[2])
	}
	if all[2].Payload != `{"assigned_to":7}` {
		t.Fatalf("payload=%s", all[2].Payload)
	}

	byEntity, err := r.LatestEntries(ctx, JournalFilter{EntityKind: "requirement", EntityID: "4"})
	if err != nil || len(byEntity) != 2 {
		t.Fatalf("entity filter: %v %d", err, len(byEntity))
	}
	rejected, err := r.LatestEntries(ctx, JournalFilter{Outcome: events.OutcomeRejected})
	if err != nil || len(rejected) != 1 || rejected[0].Detail != "confirm not permitted" {
		t.Fatalf("outcome filter: %v %+v", err, rejected)
	}
	page, err := r.LatestEntries(ctx, JournalFilter{Cursor: all[0].ID, Limit: 1})
	if err != nil || len(page) != 1 || page[0].ID != all[1].ID {
		t.Fatalf("cursor page: %v %+v", err, page)
	}

	after, err := r.EntriesAfter(ctx, all[2].ID, 10)
	if err != nil || len(after) != 2 || after[0].ID != all[1].ID {
		t.Fatalf("entries after: %v %+v", err, after)
	}
	counts, err := r.CountByOutcome(ctx)
	if err != nil || counts[events.OutcomeFailed] != 1 || counts[events.OutcomeOK] != 1 {
		t.Fatalf("counts: %v %v", err, counts)
	}
	latest, err := r.LatestEntryID(ctx)
	if err != nil || latest != all[0].ID {
		t.Fatalf("latest id: %v %d", err, latest)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	r, _ := newJournal(t)
	if _, err := r.GetEntry(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	r, _ := newJournal(t)
	ctx := context.Background()
	if err := migrate.Migrate(ctx, r.DB); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	cur, err := migrate.Current(ctx, r.DB)
	if err != nil {
		t.Fatal(err)
	}
	latest, _ := migrate.Latest()
	if cur != latest {
		t.Fatalf("current=%d latest=%d", cur, latest)
	}
}

func TestDisabledWriterDropsEntries(t *testing.T) {
	id, err := events.Writer{}.Append(context.Background(), events.Entry{Type: "x"})
	if err != nil || id != 0 {
		t.Fatalf("expected no-op, got %d %v", id, err)
	}
}
