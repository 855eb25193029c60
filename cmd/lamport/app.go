package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/daviddao/lamportpair/pkg/config"
	"github.com/daviddao/lamportpair/pkg/model"
	"github.com/daviddao/lamportpair/pkg/store"
)

// app holds shared state for all subcommands. It is filled in by the root
// command's PersistentPreRunE, after flags are parsed.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

var validFormats = []string{"text", "json", "yaml"}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	var (
		db        string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "lamport",
		Short: "Two processes, one causal order",
		Long: `lamport runs two processes that exchange events stamped by Lamport
logical clocks, journals every send and receive to SQLite, and audits
past runs.

Environment:
  LAMPORT_DB          SQLite journal path (default: lamport.db)
  LAMPORT_ACTORS      concurrent senders (default: 2)
  LAMPORT_ITERATIONS  sends per actor (default: 10)
  LAMPORT_MAX_DELAY   max pause before each send (default: 5s)
  LAMPORT_LOG_LEVEL   debug|info|warn|error (default: info)
  LAMPORT_LOG_FORMAT  text|json (default: text)

Flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("db") {
				cfg.DB = db
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger, err = cfg.NewLogger(a.stderr)
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&db, "db", "", "SQLite journal path (env LAMPORT_DB)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (env LAMPORT_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text|json (env LAMPORT_LOG_FORMAT)")

	cmd.AddCommand(a.newRunCommand())
	cmd.AddCommand(a.newRunsCommand())
	cmd.AddCommand(a.newLogCommand())
	cmd.AddCommand(a.newAuditCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, "lamport", version)
		},
	})
	return cmd
}

// openStore opens the journal, creating its parent directory if needed.
func (a *app) openStore() (*store.Store, error) {
	if dir := filepath.Dir(a.cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	s, err := store.New(a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("cannot open journal %q: %w", a.cfg.DB, err)
	}
	return s, nil
}

// resolveRun returns the run named by id, or the latest run if id is empty.
func resolveRun(j store.Journaler, id string) (*model.Run, error) {
	if id != "" {
		return j.GetRun(id)
	}
	r, err := j.LatestRun()
	if err != nil {
		return nil, fmt.Errorf("no runs journaled yet: %w", err)
	}
	return r, nil
}

func checkFormat(format string) error {
	for _, f := range validFormats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %v", format, validFormats)
}

// printStructured writes v to w as indented JSON or as YAML.
func printStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("no structured encoding for format %q", format)
	}
}
