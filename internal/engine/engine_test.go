package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"numa/internal/app"
	"numa/internal/config"
	"numa/internal/domain"
	"numa/internal/engine"
	"numa/internal/engine/auth"
	"numa/internal/events"
	"numa/internal/mockbackend"
	"numa/internal/repo"
	"numa/internal/workflow"
	numasdk "numa/sdk/go"
)

// Seeded ids, see mockbackend.Store.Seed.
const (
	alice          int64 = 1
	bob            int64 = 2
	pendingReq     int64 = 1
	clarifyingReq  int64 = 2
	seededQuestion int64 = 1
	seededSolution int64 = 1
)

type testEnv struct {
	Engine engine.Engine
	Store  *mockbackend.Store
	Ctx    context.Context
}

func (env testEnv) as(userID int64) context.Context {
	return auth.WithSession(env.Ctx, auth.Session{UserID: userID, Source: auth.SourceFlag})
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store := mockbackend.NewStore()
	store.Seed()
	srv := httptest.NewServer(mockbackend.Handler(store, nil))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Backend.BaseURL = srv.URL + "/api"
	ctx := context.Background()
	journal, err := app.OpenJournal(ctx, dir, cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	eng := engine.New(cfg, journal, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return fixed }
	eng.Events.Now = eng.Now
	return testEnv{Engine: eng, Store: store, Ctx: ctx}
}

func latestEntry(t *testing.T, env testEnv) domain.JournalEntry {
	t.Helper()
	entries, err := env.Engine.Journal(env.Ctx, repo.JournalFilter{Limit: 1})
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a journal entry, got %d", len(entries))
	}
	return entries[0]
}

func TestAssignRequirement(t *testing.T) {
	env := newTestEnv(t)
	req, err := env.Engine.AssignRequirement(env.as(alice), pendingReq, " 2 ")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if req.Status != domain.RequirementClarifying || req.AssignedTo == nil || *req.AssignedTo != bob {
		t.Fatalf("unexpected requirement %+v", req)
	}
	entry := latestEntry(t, env)
	if entry.Type != "requirement.assign" || entry.Outcome != events.OutcomeOK || entry.EntityID != "1" || entry.ActorID != alice {
		t.Fatalf("unexpected journal entry %+v", entry)
	}
}

func TestRejectedActionsNeverReachBackend(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.as(alice)

	_, err := env.Engine.ConfirmRequirement(ctx, pendingReq)
	if !errors.Is(err, workflow.ErrNotPermittedInCurrentStatus) {
		t.Fatalf("expected not permitted, got %v", err)
	}
	_, err = env.Engine.AssignRequirement(ctx, pendingReq, "bob")
	var rej *workflow.Rejection
	if !errors.As(err, &rej) || rej.Reason != workflow.ReasonMissingField || rej.Field != "assigned_to" {
		t.Fatalf("expected missing assigned_to, got %v", err)
	}
	task, err := env.Engine.CreateTask(ctx, numasdk.TaskInput{Title: "Wire rates", SolutionID: seededSolution})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	_, err = env.Engine.Apply(ctx, domain.KindDevelopmentTask, task.ID, workflow.ActionConfirm, workflow.Payload{})
	if !errors.Is(err, workflow.ErrNotPermittedInCurrentStatus) {
		t.Fatalf("tasks carry no actions, got %v", err)
	}

	req, err := env.Engine.Client.GetRequirement(env.Ctx, pendingReq)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if req.Status != domain.RequirementPending || req.AssignedTo != nil {
		t.Fatalf("backend state changed: %+v", req)
	}
	entry := latestEntry(t, env)
	if entry.Type != "development_task.confirm" || entry.Outcome != events.OutcomeRejected {
		t.Fatalf("unexpected journal entry %+v", entry)
	}
	counts, err := env.Engine.Repo.CountByOutcome(env.Ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[events.OutcomeOK] != 1 || counts[events.OutcomeRejected] != 3 {
		t.Fatalf("unexpected outcome counts %v", counts)
	}
}

func TestMutationsRequireActingUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AssignRequirement(env.Ctx, pendingReq, "2")
	var rej *workflow.Rejection
	if !errors.As(err, &rej) || rej.Field != "acting_user_id" {
		t.Fatalf("expected acting_user_id rejection, got %v", err)
	}
	if _, err := env.Engine.AskQuestion(env.Ctx, domain.ParentRequirement, clarifyingReq, "why?"); !errors.Is(err, workflow.ErrMissingRequiredField) {
		t.Fatalf("expected missing field, got %v", err)
	}
}

func TestQuestionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.Engine.AskQuestion(env.as(alice), domain.ParentRequirement, clarifyingReq, "   "); !errors.Is(err, workflow.ErrMissingRequiredField) {
		t.Fatalf("blank question must be rejected, got %v", err)
	}
	if _, err := env.Engine.AskQuestion(env.as(alice), "deployment", 1, "?"); !errors.Is(err, engine.ErrUnknownParent) {
		t.Fatalf("expected unknown parent, got %v", err)
	}

	q, err := env.Engine.AskQuestion(env.as(alice), domain.ParentRequirement, clarifyingReq, "Rounding rules?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if q.CreatedBy != alice || q.RequirementID == nil || *q.RequirementID != clarifyingReq {
		t.Fatalf("unexpected question %+v", q)
	}
	if _, err := env.Engine.ClarifyQuestion(env.as(bob), domain.ParentRequirement, q.ID); !errors.Is(err, workflow.ErrNotYetAnswered) {
		t.Fatalf("open question clarify: %v", err)
	}
	if _, err := env.Engine.AnswerQuestion(env.as(alice), domain.ParentRequirement, q.ID, "Banker's"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := env.Engine.AnswerQuestion(env.as(alice), domain.ParentRequirement, q.ID, "again"); !errors.Is(err, workflow.ErrNotPermittedInCurrentStatus) {
		t.Fatalf("second answer: %v", err)
	}
	if _, err := env.Engine.ClarifyQuestion(env.as(alice), domain.ParentRequirement, q.ID); !errors.Is(err, workflow.ErrNotOwner) {
		t.Fatalf("non-assignee clarify: %v", err)
	}
	out, err := env.Engine.ClarifyQuestion(env.as(bob), domain.ParentRequirement, q.ID)
	if err != nil {
		t.Fatalf("clarify: %v", err)
	}
	if !out.Clarified {
		t.Fatalf("question not clarified: %+v", out)
	}
	entry := latestEntry(t, env)
	if entry.Type != "question.clarify" || entry.Outcome != events.OutcomeOK || entry.ActorID != bob {
		t.Fatalf("unexpected journal entry %+v", entry)
	}

	panel, err := env.Engine.QuestionPanel(env.as(bob), domain.ParentRequirement, clarifyingReq)
	if err != nil {
		t.Fatalf("panel: %v", err)
	}
	if !panel.IsOwner || panel.Open != 1 || panel.Clarified != 1 || panel.AllClarified {
		t.Fatalf("unexpected panel %+v", panel)
	}
}

func TestConfirmRequirementBlockedByBackend(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.as(bob)

	_, err := env.Engine.ConfirmRequirement(ctx, clarifyingReq)
	var apiErr *numasdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Fatalf("expected backend rejection, got %v", err)
	}
	if entry := latestEntry(t, env); entry.Outcome != events.OutcomeFailed || entry.Detail == "" {
		t.Fatalf("unexpected journal entry %+v", entry)
	}

	if _, err := env.Engine.AnswerQuestion(env.as(alice), domain.ParentRequirement, seededQuestion, "ECB"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := env.Engine.ClarifyQuestion(ctx, domain.ParentRequirement, seededQuestion); err != nil {
		t.Fatalf("clarify: %v", err)
	}
	req, err := env.Engine.ConfirmRequirement(ctx, clarifyingReq)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if req.Status != domain.RequirementConfirmed {
		t.Fatalf("status=%s", req.Status)
	}
}

func TestConfirmSolutionCreatesTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.as(bob)

	detail, err := env.Engine.SolutionDetail(ctx, seededSolution)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if !detail.ConfirmReady || len(detail.Actions) != 1 || detail.Author.Label != "2: bob" {
		t.Fatalf("unexpected detail %+v", detail)
	}

	sol, err := env.Engine.ConfirmSolution(ctx, seededSolution, nil)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if sol.Status != domain.SolutionConfirmed {
		t.Fatalf("status=%s", sol.Status)
	}
	if _, err := env.Engine.ConfirmSolution(ctx, seededSolution, nil); !errors.Is(err, workflow.ErrNotPermittedInCurrentStatus) {
		t.Fatalf("confirmed solution offers no actions, got %v", err)
	}

	detail, err = env.Engine.SolutionDetail(ctx, seededSolution)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Tasks) != 1 || detail.Tasks[0].Task.Title != "Implement Rates table" {
		t.Fatalf("unexpected tasks %+v", detail.Tasks)
	}
	if detail.Tasks[0].Assignee.Label != "unassigned" {
		t.Fatalf("assignee label=%q", detail.Tasks[0].Assignee.Label)
	}

	task, err := env.Engine.TaskDetail(ctx, detail.Tasks[0].Task.ID)
	if err != nil {
		t.Fatalf("task detail: %v", err)
	}
	if task.Requirement.Label != "2: Multi-currency" {
		t.Fatalf("requirement label=%q", task.Requirement.Label)
	}
}

func TestScreensResolveReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.as(bob)

	rows, err := env.Engine.Requirements(ctx, numasdk.ListOptions{})
	if err != nil {
		t.Fatalf("requirements: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Assignee.Label != "unassigned" || rows[0].Application.Label != "1: billing" {
		t.Fatalf("unexpected pending row %+v", rows[0])
	}
	if rows[1].Assignee.Label != "2: bob" {
		t.Fatalf("unexpected clarifying row %+v", rows[1])
	}

	home, err := env.Engine.Home(ctx)
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if home.Stages[0].Total != 2 || home.Stages[1].Total != 1 {
		t.Fatalf("unexpected home %+v", home)
	}

	appDetail, err := env.Engine.ApplicationDetail(ctx, 0, "billing-svc")
	if err != nil {
		t.Fatalf("application: %v", err)
	}
	if len(appDetail.Requirements) != 2 || appDetail.Creator.Label != "1: alice" {
		t.Fatalf("unexpected application detail %+v", appDetail)
	}
}

func TestScreensShareOneClientConcurrently(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.as(alice)

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for i := 0; i < 4; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := env.Engine.Home(ctx)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := env.Engine.Tasks(ctx, numasdk.ListOptions{})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := env.Engine.RequirementDetail(ctx, clarifyingReq)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent screen load: %v", err)
		}
	}
}

func TestLookupsReadEveryPage(t *testing.T) {
	env := newTestEnv(t)
	eng := env.Engine
	eng.LookupPage = 1

	rows, err := eng.Requirements(env.as(bob), numasdk.ListOptions{})
	if err != nil {
		t.Fatalf("requirements: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Assignee.Label != "2: bob" {
		t.Fatalf("assignee beyond the first page not resolved: %+v", rows[1])
	}

	home, err := eng.Home(env.as(bob))
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if home.Stages[0].Total != 2 {
		t.Fatalf("expected every requirement counted, got %+v", home.Stages[0])
	}
}

func TestScreenFailsWhenAnyFetchFails(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.RequirementDetail(env.as(bob), 999)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !numasdk.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if msg := engine.UserMessage(err); msg != "Requirement not found" {
		t.Fatalf("message=%q", msg)
	}
}

func TestRecordsDefaultToActingUser(t *testing.T) {
	env := newTestEnv(t)
	req, err := env.Engine.CreateRequirement(env.as(bob), numasdk.RequirementInput{Title: "Audit trail"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.UserID == nil || *req.UserID != bob {
		t.Fatalf("reporter not defaulted: %+v", req)
	}
	entry := latestEntry(t, env)
	if entry.Type != "requirement.create" || entry.EntityID != fmt.Sprint(req.ID) {
		t.Fatalf("unexpected journal entry %+v", entry)
	}
	if err := env.Engine.DeleteRequirement(env.as(bob), req.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Client.GetRequirement(env.Ctx, req.ID); !numasdk.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestJournalDisabled(t *testing.T) {
	env := newTestEnv(t)
	eng := env.Engine
	eng.Repo = repo.Repo{}
	eng.Events = events.Writer{}
	if !env.Engine.Events.Enabled() || eng.Events.Enabled() {
		t.Fatalf("writer enabled state does not follow the journal handle")
	}
	if _, err := eng.AssignRequirement(env.as(alice), pendingReq, "2"); err != nil {
		t.Fatalf("assign without journal: %v", err)
	}
	if _, err := eng.Journal(env.Ctx, repo.JournalFilter{}); !errors.Is(err, engine.ErrJournalDisabled) {
		t.Fatalf("expected journal disabled, got %v", err)
	}
}

func TestScopeDropsLateResults(t *testing.T) {
	scope := engine.NewScope(context.Background())
	_, err := engine.Load(scope, func(ctx context.Context) (int, error) {
		scope.Close()
		return 42, nil
	})
	if !errors.Is(err, engine.ErrScopeClosed) {
		t.Fatalf("expected scope closed, got %v", err)
	}
	if _, err := engine.Load(scope, func(context.Context) (int, error) {
		t.Fatalf("load must not run on a closed scope")
		return 0, nil
	}); !errors.Is(err, engine.ErrScopeClosed) {
		t.Fatalf("expected scope closed, got %v", err)
	}

	open := engine.NewScope(context.Background())
	defer open.Close()
	v, err := engine.Load(open, func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&numasdk.APIError{StatusCode: 400, Detail: "Requirement is not pending"}, "Requirement is not pending"},
		{fmt.Errorf("load: %w", &numasdk.APIError{StatusCode: 500}), "backend returned status 500"},
		{&numasdk.NetworkError{Op: "GET", URL: "http://x", Err: errors.New("connection refused")}, "backend unreachable: connection refused"},
		{engine.ErrScopeClosed, engine.ErrScopeClosed.Error()},
		{&workflow.Rejection{Reason: workflow.ReasonNotOwner}, "only the parent owner may mark a question clarified"},
	}
	for _, tc := range cases {
		if got := engine.UserMessage(tc.err); got != tc.want {
			t.Errorf("UserMessage(%v)=%q want %q", tc.err, got, tc.want)
		}
	}
}

func TestMetricsCountOutcomes(t *testing.T) {
	env := newTestEnv(t)
	reg := prometheus.NewRegistry()
	env.Engine.Metrics = engine.NewMetrics(reg)

	if _, err := env.Engine.ConfirmRequirement(env.as(alice), pendingReq); err == nil {
		t.Fatalf("expected rejection")
	}
	if _, err := env.Engine.Tasks(env.as(alice), numasdk.ListOptions{}); err != nil {
		t.Fatalf("tasks: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				found[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	if found["numa_console_actions_total"] != 1 {
		t.Fatalf("actions=%v", found["numa_console_actions_total"])
	}
	if found["numa_console_backend_fetches_total"] != 3 {
		t.Fatalf("fetches=%v", found["numa_console_backend_fetches_total"])
	}
}
