package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"numa/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// JournalFilter narrows a journal listing. Zero values match everything.
type JournalFilter struct {
	Limit      int
	Cursor     int64
	Type       string
	EntityKind string
	EntityID   string
	ActorID    int64
	Outcome    string
}

const journalColumns = `id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,outcome,COALESCE(detail,''),request_id,payload_json`

// LatestEntries returns journal entries newest first. A cursor returns
// entries older than that id.
func (r Repo) LatestEntries(ctx context.Context, f JournalFilter) ([]domain.JournalEntry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.ActorID > 0 {
		clauses = append(clauses, "actor_id=?")
		args = append(args, f.ActorID)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome=?")
		args = append(args, f.Outcome)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT %s FROM journal %s ORDER BY id DESC LIMIT ?`, journalColumns, where)
	args = append(args, f.Limit)
	return r.queryEntries(ctx, query, args...)
}

// EntriesAfter returns entries with ids greater than the cursor in ascending
// order, for following the journal.
func (r Repo) EntriesAfter(ctx context.Context, cursor int64, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM journal WHERE id>? ORDER BY id ASC LIMIT ?`, journalColumns)
	return r.queryEntries(ctx, query, cursor, limit)
}

// GetEntry fetches one journal entry.
func (r Repo) GetEntry(ctx context.Context, id int64) (domain.JournalEntry, error) {
	entries, err := r.queryEntries(ctx, fmt.Sprintf(`SELECT %s FROM journal WHERE id=?`, journalColumns), id)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if len(entries) == 0 {
		return domain.JournalEntry{}, ErrNotFound
	}
	return entries[0], nil
}

// LatestEntryID returns the most recent journal id, 0 when empty.
func (r Repo) LatestEntryID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM journal`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// CountByOutcome tallies journal entries per outcome.
func (r Repo) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM journal GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		res[outcome] = n
	}
	return res, rows.Err()
}

func (r Repo) queryEntries(ctx context.Context, query string, args ...any) ([]domain.JournalEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Outcome, &e.Detail, &e.RequestID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
