package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/publish"
	"github.com/FranksOps/signlead/internal/report"
	"github.com/FranksOps/signlead/internal/serp"
	"github.com/FranksOps/signlead/internal/storage"
	"github.com/FranksOps/signlead/pkg/ratelimit"
)

const (
	DefaultMinLeads     = 1
	DefaultScheduleFile = "next-run.json"
)

// Config configures a Runner. Runner is required; States defaults to all
// 50.
type Config struct {
	States []lead.State
	Runner *StateRunner
	// Store receives every lead, published or not. Optional.
	Store storage.Backend
	// Publisher uploads pages that meet MinLeads. Optional.
	Publisher publish.Publisher
	// Pacer is waited on between states.
	Pacer     *ratelimit.Pacer
	OutputDir string
	// ScheduleFile defaults to DefaultScheduleFile.
	ScheduleFile string
	Interval     time.Duration
	// MinLeads is the smallest lead count that gets a page; zero means
	// DefaultMinLeads.
	MinLeads int
	Engine   string
	// Rotor, when set, contributes credential usage to the summary.
	Rotor *serp.Rotor
	// Events, when set, contributes the run's log records to the summary.
	Events *report.EventLog
	Now    func() time.Time
	Logger *slog.Logger
}

// Runner processes states one after another.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// NewRunner validates cfg and fills defaults.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Runner == nil {
		return nil, errors.New("pipeline: state runner is required")
	}
	if cfg.States == nil {
		cfg.States = lead.States
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.ScheduleFile == "" {
		cfg.ScheduleFile = DefaultScheduleFile
	}
	if cfg.Interval <= 0 {
		cfg.Interval = report.DefaultInterval
	}
	if cfg.MinLeads <= 0 {
		cfg.MinLeads = DefaultMinLeads
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: cfg.Logger}, nil
}

// Run harvests every configured state and writes the run summary and
// schedule. Per-state storage, page and publish failures are logged and
// recorded in the summary; they never stop the run. Once credentials run out
// the remaining states are skipped. The returned error reports context
// cancellation or a failure to write the summary or schedule.
func (r *Runner) Run(ctx context.Context) (report.Summary, error) {
	started := r.cfg.Now()
	nextRun := report.NextRun(started, r.cfg.Interval)
	summary := report.Summary{StartedAt: started.UTC(), Engine: r.cfg.Engine}
	r.logger.Info("run started", "states", len(r.cfg.States), "engine", r.cfg.Engine)

	var runErr error
	for i, st := range r.cfg.States {
		if summary.Exhausted || runErr != nil {
			summary.States = append(summary.States, report.StateSummary{State: st.Name, StateCode: st.Code, Skipped: true})
			summary.StatesSkipped++
			continue
		}
		if i > 0 {
			if err := r.cfg.Pacer.Wait(ctx); err != nil {
				runErr = err
				summary.States = append(summary.States, report.StateSummary{State: st.Name, StateCode: st.Code, Skipped: true})
				summary.StatesSkipped++
				continue
			}
		}

		res, err := r.cfg.Runner.Run(ctx, st)
		var ss report.StateSummary
		if err != nil {
			runErr = err
			ss = stateSummary(res)
			ss.Error = err.Error()
		} else {
			ss = r.finishState(ctx, res, nextRun)
		}
		summary.States = append(summary.States, ss)
		summary.StatesProcessed++
		summary.TotalLeads += ss.LeadCount
		if ss.Published {
			summary.StatesPublished++
		}
		if res.Exhausted {
			summary.Exhausted = true
			if i+1 < len(r.cfg.States) {
				r.logger.Warn("search credentials exhausted, skipping remaining states", "after", st.Name, "remaining", len(r.cfg.States)-i-1)
			}
		}
	}

	finished := r.cfg.Now()
	schedule := report.NewSchedule(started, finished, r.cfg.Interval)
	summary.FinishedAt = finished.UTC()
	summary.Duration = finished.Sub(started)
	summary.NextRun = schedule.NextRun
	if r.cfg.Rotor != nil {
		stats := r.cfg.Rotor.Stats()
		summary.Credentials = &stats
	}

	r.logger.Info("run finished",
		"leads", summary.TotalLeads,
		"processed", summary.StatesProcessed,
		"published", summary.StatesPublished,
		"skipped", summary.StatesSkipped,
		"took", summary.Duration,
	)
	if r.cfg.Events != nil {
		summary.Events = r.cfg.Events.Events()
	}

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if _, err := report.SaveSummary(r.cfg.OutputDir, summary); err != nil {
		errs = append(errs, err)
	}
	if err := report.SaveSchedule(r.cfg.ScheduleFile, schedule); err != nil {
		errs = append(errs, err)
	}
	return summary, errors.Join(errs...)
}

// finishState stores, renders and publishes one state's leads.
func (r *Runner) finishState(ctx context.Context, res StateResult, nextRun time.Time) report.StateSummary {
	st := res.State
	ss := stateSummary(res)
	logger := r.logger.With("state", st.Name)

	if r.cfg.Store != nil {
		for i := range res.Leads {
			if err := r.cfg.Store.Save(ctx, &res.Leads[i]); err != nil {
				logger.Error("failed to store lead", "id", res.Leads[i].ID, "err", err)
				ss.Error = err.Error()
				break
			}
		}
	}

	if len(res.Leads) < r.cfg.MinLeads {
		logger.Info("not enough leads for a page", "leads", len(res.Leads), "min", r.cfg.MinLeads)
		return ss
	}

	var page bytes.Buffer
	data := report.PageData{
		State:     st,
		Leads:     res.Leads,
		Generated: r.cfg.Now(),
		NextRun:   nextRun,
	}
	if err := report.WritePage(&page, data); err != nil {
		logger.Error("failed to render page", "err", err)
		ss.Error = err.Error()
		return ss
	}

	path := filepath.Join(r.cfg.OutputDir, report.PageFileName(st))
	if err := report.WriteFile(path, page.Bytes()); err != nil {
		logger.Error("failed to write page", "path", path, "err", err)
		ss.Error = err.Error()
	} else {
		ss.PageWritten = true
		logger.Info("page written", "path", path)
	}

	if r.cfg.Publisher != nil {
		msg := fmt.Sprintf("Update %s sign leads (%d leads)", st.Name, len(res.Leads))
		if err := r.cfg.Publisher.Publish(ctx, report.PublishPath(st), page.Bytes(), msg); err != nil {
			logger.Error("failed to publish page", "err", err)
			ss.Error = err.Error()
		} else {
			ss.Published = true
		}
	}
	return ss
}

func stateSummary(res StateResult) report.StateSummary {
	hot, warm := lead.Counts(res.Leads)
	return report.StateSummary{
		State:         res.State.Name,
		StateCode:     res.State.Code,
		LeadCount:     len(res.Leads),
		Hot:           hot,
		Warm:          warm,
		Queries:       res.Queries,
		RawResults:    res.RawResults,
		UniqueResults: res.UniqueResults,
		Rejected:      res.Rejected,
		Exhausted:     res.Exhausted,
	}
}
