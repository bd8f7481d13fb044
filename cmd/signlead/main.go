// Command signlead harvests business-opening news into per-state sign
// leads, renders a page per state and publishes the pages to GitHub.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/signlead/internal/config"
	"github.com/FranksOps/signlead/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// app is the state shared by every subcommand, filled in by the root
// command's PersistentPreRunE.
type app struct {
	v          *viper.Viper
	configFile string
	stdout     io.Writer
	stderr     io.Writer

	cfg    config.Config
	events *report.EventLog
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "signlead",
		Short:         "Harvest business-opening news into per-state sign leads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./signlead.yaml if present)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("output", "output", "output directory for pages, summary and snapshot")
	pf.String("engine", config.EngineGoogle, "search engine: google, bing or duckduckgo")
	pf.String("states", "", "comma separated states to process (default all 50)")
	pf.String("store", config.StoreJSON, "raw snapshot backend: none, json, csv, sqlite or postgres")
	pf.String("store-path", "", "snapshot file for json, csv and sqlite")
	pf.String("store-dsn", "", "postgres connection string")
	pf.String("plan", "", "YAML query plan file")

	bind(a.v, pf.Lookup("log-level"), "log.level")
	bind(a.v, pf.Lookup("log-format"), "log.format")
	bind(a.v, pf.Lookup("output"), "output.dir")
	bind(a.v, pf.Lookup("engine"), "engine")
	bind(a.v, pf.Lookup("states"), "states")
	bind(a.v, pf.Lookup("store"), "store.backend")
	bind(a.v, pf.Lookup("store-path"), "store.path")
	bind(a.v, pf.Lookup("store-dsn"), "store.dsn")
	bind(a.v, pf.Lookup("plan"), "plan_file")

	root.AddCommand(
		newRunCmd(a),
		newStateCmd(a),
		newDiagnoseCmd(a),
		newSummaryCmd(a),
		newLeadsCmd(a),
		newTokenCmd(a),
	)
	return root
}

// init loads the configuration and installs the logger. Validation is left
// to the commands that search, since summary and leads need no credentials.
func (a *app) init() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("config: log level %q: %w", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		h = slog.NewJSONHandler(a.stderr, opts)
	case "text", "":
		h = slog.NewTextHandler(a.stderr, opts)
	default:
		return fmt.Errorf("config: log format %q must be text or json", cfg.LogFormat)
	}

	a.events = report.NewEventLog(h, level)
	a.logger = slog.New(a.events)
	slog.SetDefault(a.logger)
	return nil
}

// validated normalizes the config and fails on errors; warnings are logged.
func (a *app) validated() (config.Config, error) {
	cfg, res := config.NormalizeAndValidate(a.cfg)
	for _, w := range res.Warnings {
		a.logger.Warn("config", "warning", w)
	}
	if err := res.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// bind panics on a misspelled flag name, which is a programming error.
func bind(v *viper.Viper, f *pflag.Flag, key string) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}
