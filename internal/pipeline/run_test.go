package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/report"
	"github.com/FranksOps/signlead/internal/serp"
	"github.com/FranksOps/signlead/internal/storage"
	"github.com/FranksOps/signlead/internal/storage/jsonbackend"
)

type fakePublisher struct {
	mu     sync.Mutex
	paths  []string
	msgs   []string
	failOn map[string]error
}

func (p *fakePublisher) Publish(_ context.Context, path string, content []byte, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failOn[path]; err != nil {
		return err
	}
	if len(content) == 0 {
		return errors.New("empty page")
	}
	p.paths = append(p.paths, path)
	p.msgs = append(p.msgs, message)
	return nil
}

func mustState(t *testing.T, code string) lead.State {
	t.Helper()
	st, ok := lead.LookupState(code)
	if !ok {
		t.Fatalf("unknown state %s", code)
	}
	return st
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	tx, oh, ny := mustState(t, "TX"), mustState(t, "OH"), mustState(t, "NY")

	p := &funcProvider{fn: func(_ int, q serp.Query) ([]serp.Result, error) {
		switch q.State {
		case "Texas":
			return []serp.Result{leadResult("https://tx.example.com/a"), leadResult("https://tx.example.com/b")}, nil
		case "Ohio":
			return []serp.Result{leadResult("https://oh.example.com/a"), junkResult("https://oh.example.com/j")}, nil
		default:
			return []serp.Result{leadResult("https://ny.example.com/a"), leadResult("https://ny.example.com/b")}, nil
		}
	}}
	pub := &fakePublisher{failOn: map[string]error{
		report.PublishPath(ny): errors.New("publish: put: http 409: conflict"),
	}}
	store, err := jsonbackend.New(filepath.Join(dir, "leads.ndjson"))
	if err != nil {
		t.Fatalf("jsonbackend.New: %v", err)
	}
	defer store.Close()

	events := report.NewEventLog(nil, nil)
	schedulePath := filepath.Join(dir, "next-run.json")
	r, err := NewRunner(Config{
		States:       []lead.State{tx, oh, ny},
		Runner:       newTestStateRunner(t, p, "restaurant opening"),
		Store:        store,
		Publisher:    pub,
		OutputDir:    dir,
		ScheduleFile: schedulePath,
		Interval:     96 * time.Hour,
		MinLeads:     2,
		Engine:       "func",
		Events:       events,
		Now:          fixedNow,
		Logger:       slog.New(events),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TotalLeads != 5 || summary.StatesProcessed != 3 || summary.StatesPublished != 1 || summary.StatesSkipped != 0 {
		t.Errorf("unexpected totals %+v", summary)
	}
	if len(summary.States) != 3 {
		t.Fatalf("expected 3 state lines, got %d", len(summary.States))
	}

	texas, ohio, newYork := summary.States[0], summary.States[1], summary.States[2]
	if !texas.PageWritten || !texas.Published || texas.LeadCount != 2 || texas.Error != "" {
		t.Errorf("unexpected Texas line %+v", texas)
	}
	if ohio.PageWritten || ohio.Published || ohio.LeadCount != 1 {
		t.Errorf("Ohio is under the threshold, got %+v", ohio)
	}
	if ohio.Rejected["no_relevance"] != 1 {
		t.Errorf("expected Ohio's rejection to be recorded, got %v", ohio.Rejected)
	}
	if !newYork.PageWritten || newYork.Published || newYork.Error == "" {
		t.Errorf("New York publish should fail but keep its page, got %+v", newYork)
	}

	if len(pub.paths) != 1 || pub.paths[0] != "state-pages/texas-sign-leads.html" {
		t.Errorf("unexpected published paths %v", pub.paths)
	}
	if pub.msgs[0] != "Update Texas sign leads (2 leads)" {
		t.Errorf("unexpected commit message %q", pub.msgs[0])
	}

	for _, name := range []string{"texas-sign-leads.html", "new-york-sign-leads.html", report.SummaryFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "ohio-sign-leads.html")); !os.IsNotExist(err) {
		t.Errorf("Ohio page should not exist, stat err = %v", err)
	}

	saved, err := report.LoadSummary(dir)
	if err != nil {
		t.Fatalf("LoadSummary: %v", err)
	}
	if saved.TotalLeads != 5 || len(saved.States) != 3 {
		t.Errorf("saved summary differs: %+v", saved)
	}
	if len(saved.Events) == 0 {
		t.Errorf("expected run log events in the summary")
	}

	sched, err := report.LoadSchedule(schedulePath)
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if want := fixedNow().Add(96 * time.Hour); !sched.NextRun.Equal(want) {
		t.Errorf("expected next run %v, got %v", want, sched.NextRun)
	}

	stored, err := store.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(stored) != 5 {
		t.Errorf("expected every lead stored, got %d", len(stored))
	}
}

func TestRunner_PageAndScheduleAgreeOnNextRun(t *testing.T) {
	dir := t.TempDir()
	var (
		mu    sync.Mutex
		clock = fixedNow()
	)
	// Every reading of the clock moves it forward an hour, so the run
	// finishes well after it started.
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Hour)
		return clock
	}
	p := &funcProvider{fn: func(int, serp.Query) ([]serp.Result, error) {
		return []serp.Result{leadResult("https://tx.example.com/a")}, nil
	}}
	schedulePath := filepath.Join(dir, "next-run.json")
	r, err := NewRunner(Config{
		States:       []lead.State{mustState(t, "TX")},
		Runner:       newTestStateRunner(t, p, "restaurant opening"),
		OutputDir:    dir,
		ScheduleFile: schedulePath,
		Interval:     96 * time.Hour,
		Now:          tick,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.FinishedAt.After(summary.StartedAt) {
		t.Fatalf("clock did not advance: %v -> %v", summary.StartedAt, summary.FinishedAt)
	}
	if want := summary.StartedAt.Add(96 * time.Hour); !summary.NextRun.Equal(want) {
		t.Errorf("summary next run = %v; want %v", summary.NextRun, want)
	}

	sched, err := report.LoadSchedule(schedulePath)
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if !sched.NextRun.Equal(summary.NextRun) || !sched.LastRun.Equal(summary.FinishedAt) {
		t.Errorf("schedule %+v disagrees with summary next run %v", sched, summary.NextRun)
	}

	page, err := os.ReadFile(filepath.Join(dir, "texas-sign-leads.html"))
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if want := "Next update " + summary.NextRun.Format("Jan 2, 2006 15:04 MST"); !strings.Contains(string(page), want) {
		t.Errorf("page does not advertise %q", want)
	}
}

func TestRunner_ExhaustionSkipsRemaining(t *testing.T) {
	dir := t.TempDir()
	p := &funcProvider{fn: func(n int, q serp.Query) ([]serp.Result, error) {
		if n >= 1 {
			return nil, serp.ErrExhausted
		}
		return []serp.Result{leadResult("https://tx.example.com/a")}, nil
	}}
	r, err := NewRunner(Config{
		States:       []lead.State{mustState(t, "TX"), mustState(t, "OH"), mustState(t, "NY")},
		Runner:       newTestStateRunner(t, p, "restaurant opening"),
		OutputDir:    dir,
		ScheduleFile: filepath.Join(dir, "next-run.json"),
		Now:          fixedNow,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Exhausted {
		t.Error("expected the run to be marked exhausted")
	}
	if len(p.calls) != 2 {
		t.Errorf("expected no queries after exhaustion, got %d", len(p.calls))
	}
	if summary.StatesProcessed != 2 || summary.StatesSkipped != 1 {
		t.Errorf("unexpected counts %+v", summary)
	}
	if !summary.States[1].Exhausted || summary.States[1].Skipped {
		t.Errorf("Ohio should be processed and exhausted, got %+v", summary.States[1])
	}
	if !summary.States[2].Skipped || summary.States[2].State != "New York" {
		t.Errorf("New York should be skipped, got %+v", summary.States[2])
	}
	if !summary.States[0].PageWritten {
		t.Errorf("Texas should still get its page, got %+v", summary.States[0])
	}
	if _, err := os.Stat(filepath.Join(dir, report.SummaryFile)); err != nil {
		t.Errorf("summary not written: %v", err)
	}
}

func TestRunner_CanceledStillWritesSummary(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &funcProvider{fn: func(int, serp.Query) ([]serp.Result, error) {
		return nil, context.Canceled
	}}
	r, err := NewRunner(Config{
		States:       []lead.State{mustState(t, "TX"), mustState(t, "OH")},
		Runner:       newTestStateRunner(t, p, "restaurant opening"),
		OutputDir:    dir,
		ScheduleFile: filepath.Join(dir, "next-run.json"),
		Now:          fixedNow,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	summary, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.States[0].Error == "" || !summary.States[1].Skipped {
		t.Errorf("unexpected state lines %+v", summary.States)
	}
	if _, err := report.LoadSummary(dir); err != nil {
		t.Errorf("summary should still be written: %v", err)
	}
}

func TestNewRunner_Defaults(t *testing.T) {
	if _, err := NewRunner(Config{}); err == nil {
		t.Fatal("expected error without a state runner")
	}
	r, err := NewRunner(Config{Runner: &StateRunner{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.cfg.States) != 50 || r.cfg.MinLeads != DefaultMinLeads || r.cfg.ScheduleFile != DefaultScheduleFile {
		t.Errorf("defaults not applied: %+v", r.cfg)
	}
	if r.cfg.Interval != report.DefaultInterval {
		t.Errorf("expected default interval, got %v", r.cfg.Interval)
	}
}
