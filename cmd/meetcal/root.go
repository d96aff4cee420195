package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"meetcal/internal/config"
	"meetcal/internal/grid"
	"meetcal/internal/ics"
	appLog "meetcal/internal/log"
	"meetcal/internal/metrics"
	"meetcal/internal/store"
)

// app carries the global flags and the loaded config into every command.
type app struct {
	configPath string
	serverURL  string
	logLevel   string
	actor      string

	cfg *config.Config
}

func newRootCmd(version string) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "meetcal",
		Short: "Meeting calendar: month/week grids, paged lists and ICS feed mirroring",
		Long: `meetcal keeps meetings in a local store (SQLite or memory) or talks to a
running meetcal server, and renders month and week grids or a paged list.

It can run as:
  - A CLI printing calendar views (month, week, list)
  - An HTTP API server with scheduled ICS feed imports (serve)`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.SetVersionTemplate(`{{printf "meetcal version %s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "./meetcal.yaml", "Path to config file (created with defaults if missing)")
	pf.StringVar(&a.serverURL, "server", "", "Base URL of a running meetcal server; overrides server_url")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log_level")
	pf.StringVar(&a.actor, "actor", "", "Acting user sent to the server for ownership checks")

	root.AddCommand(
		newServeCmd(a),
		newViewCmd(a, grid.ModeMonth),
		newViewCmd(a, grid.ModeWeek),
		newListCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newVersionCmd(version),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", a.configPath)
		return err
	}
	if a.serverURL != "" {
		cfg.ServerURL = a.serverURL
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	a.cfg = cfg

	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"store", cfg.Store.Driver,
		"server_url", cfg.ServerURL,
		"refresh", cfg.RefreshCron,
		"feeds", len(cfg.Feeds),
	)
	return nil
}

// backend is the opened store pair plus its release func.
type backend struct {
	meetings store.MeetingStore
	notes    store.NoteStore
	close    func() error
}

func (b *backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// open returns the remote store when a server URL is configured, otherwise
// the local driver wrapped with metrics. m may be nil.
func (a *app) open(m *metrics.Metrics) (*backend, error) {
	if a.cfg.ServerURL != "" {
		var opts []store.HTTPOption
		if ba := a.cfg.BasicAuth; ba != nil {
			opts = append(opts, store.WithBasicAuth(ba.Username, ba.Password))
		}
		if a.actor != "" {
			opts = append(opts, store.WithActor(a.actor))
		}
		h, err := store.NewHTTP(a.cfg.ServerURL, opts...)
		if err != nil {
			return nil, err
		}
		return &backend{meetings: h, notes: store.NewMemoryNotes()}, nil
	}

	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		return &backend{meetings: store.Instrument(store.NewMemory(), m), notes: store.NewMemoryNotes()}, nil
	default:
		if err := os.MkdirAll(filepath.Dir(a.cfg.Store.Path), 0o700); err != nil {
			return nil, err
		}
		db, err := store.OpenSQLite(a.cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		return &backend{meetings: store.Instrument(db, m), notes: db, close: db.Close}, nil
	}
}

func (a *app) feeds() []ics.Feed {
	out := make([]ics.Feed, 0, len(a.cfg.Feeds))
	for _, f := range a.cfg.Feeds {
		out = append(out, ics.Feed{ID: f.ID, URL: f.URL})
	}
	return out
}

func (a *app) importer(s store.MeetingStore, m *metrics.Metrics) *ics.Importer {
	return ics.NewImporter(s, ics.NewFetcher(a.cfg.CacheDir, nil), ics.ImportOptions{
		BackfillDays: a.cfg.BackfillDays,
		HorizonDays:  a.cfg.HorizonDays,
		Metrics:      m,
	})
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meetcal version %s\n", version)
		},
	}
}
