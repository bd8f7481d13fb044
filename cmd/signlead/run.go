package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/signlead/internal/metrics"
	"github.com/FranksOps/signlead/internal/pipeline"
	"github.com/FranksOps/signlead/internal/report"
	"github.com/FranksOps/signlead/pkg/ratelimit"
)

const lockFile = ".signlead.lock"

func newRunCmd(a *app) *cobra.Command {
	var (
		ifDue     bool
		noPublish bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest every configured state, write pages and publish them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), ifDue, noPublish)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&ifDue, "if-due", false, "exit quietly unless the schedule file says a run is due")
	f.BoolVar(&noPublish, "no-publish", false, "write pages locally but do not publish them")
	f.Int("min-leads", 1, "smallest lead count that gets a page")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run, e.g. :9090")
	bind(a.v, f.Lookup("min-leads"), "output.min_leads")
	bind(a.v, f.Lookup("metrics-addr"), "metrics.addr")
	return cmd
}

func (a *app) run(ctx context.Context, ifDue, noPublish bool) error {
	cfg, err := a.validated()
	if err != nil {
		return err
	}
	logger := a.logger

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	if ifDue {
		sched, err := report.LoadSchedule(schedulePath(cfg))
		if err != nil {
			return err
		}
		if !sched.Due(time.Now()) {
			logger.Info("run not due yet", "nextRun", sched.NextRun)
			return nil
		}
	}

	lock := flock.New(filepath.Join(cfg.Output.Dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	if !locked {
		return errors.New("another signlead run holds the lock on " + cfg.Output.Dir)
	}
	defer lock.Unlock()

	states, err := selectedStates(cfg.States)
	if err != nil {
		return err
	}
	search, err := buildSearch(cfg, logger)
	if err != nil {
		return err
	}
	stateRunner, err := buildStateRunner(cfg, search.provider, logger)
	if err != nil {
		return err
	}

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	runCfg := pipeline.Config{
		States:       states,
		Runner:       stateRunner,
		Store:        store,
		Pacer:        ratelimit.NewPacer(cfg.Delays.StateMin, cfg.Delays.StateMax),
		OutputDir:    cfg.Output.Dir,
		ScheduleFile: schedulePath(cfg),
		Interval:     cfg.Output.Interval,
		MinLeads:     cfg.Output.MinLeads,
		Engine:       cfg.Engine,
		Rotor:        search.rotor,
		Events:       a.events,
		Logger:       logger,
	}
	if !noPublish {
		pub, err := buildPublisher(cfg, logger)
		if err != nil {
			return err
		}
		runCfg.Publisher = pub
	}
	runner, err := pipeline.NewRunner(runCfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cfg.Metrics != "" {
		srv := metrics.NewServer(cfg.Metrics, logger)
		g.Go(func() error { return srv.Serve(runCtx) })
	}

	var summary report.Summary
	g.Go(func() error {
		defer cancel()
		var err error
		summary, err = runner.Run(runCtx)
		return err
	})
	err = g.Wait()

	if summary.FinishedAt.IsZero() {
		return err
	}
	if werr := report.WriteText(a.stdout, summary); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}
