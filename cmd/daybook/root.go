// Root command and shared state for the daybook CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/daybook/internal/logger"
	"github.com/mesh-intelligence/daybook/internal/paths"
	"github.com/mesh-intelligence/daybook/internal/sqlite"
	"github.com/mesh-intelligence/daybook/pkg/journal"
	"github.com/mesh-intelligence/daybook/pkg/streak"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app carries flag values and resources for one invocation.
type app struct {
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
	flagDebug     bool

	configDir string
	cfg       *viper.Viper

	stdout io.Writer
	stderr io.Writer

	store *sqlite.Store
	svc   *journal.Service
	loc   *time.Location
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "daybook",
		Short:         "daybook is a local daily journal",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flagDataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flagJSON, "json", false, "output as JSON")
	root.PersistentFlags().BoolVar(&a.flagDebug, "debug", false, "log debug output to stderr")

	root.AddCommand(
		newVersionCmd(a),
		newInitCmd(a),
		newColumnsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newShowCmd(a),
		newLogCmd(a),
		newDeleteCmd(a),
		newStreakCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
	)
	return root
}

// setup resolves the config directory, loads config.yaml and starts the
// logger.
func (a *app) setup() error {
	configDir, err := paths.ResolveConfigDir(a.flagConfigDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	a.configDir = configDir
	a.cfg = cfg

	if err := logger.Init(logger.Config{
		Debug:     a.flagDebug,
		ConfigDir: configDir,
		Level:     cfg.GetString(cfgKeyLogLevel),
	}); err != nil {
		return userError("config: %v", err)
	}
	return nil
}

// storeConfig builds the store configuration from flags and config.yaml.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flagDataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg := types.Config{
		Backend:  a.cfg.GetString(cfgKeyBackend),
		DataDir:  dataDir,
		Timezone: a.cfg.GetString(cfgKeyTimezone),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, userError("config: %v", err)
	}
	return cfg, nil
}

// open opens the store and builds the journal service. run releases them
// with close once the command returns.
func (a *app) open(ctx context.Context) error {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return userError("config: %v", err)
	}

	store, err := sqlite.OpenStore(ctx, cfg)
	if err != nil {
		return sysError(fmt.Errorf("open store: %w", err))
	}
	a.store = store
	a.loc = loc
	a.svc = journal.New(store,
		journal.WithTracker(streak.NewTracker(store)),
		journal.WithLocation(loc),
	)
	logger.Debug("store opened", "path", store.Path(), "timezone", loc.String())
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	if err != nil {
		return sysError(err)
	}
	return nil
}

// exitError carries the exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(err error) error {
	return &exitError{code: exitSysError, err: err}
}

// exitCode maps an error to an exit code. Errors raised by cobra itself
// (unknown flags, wrong argument counts) are user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}
