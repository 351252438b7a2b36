// Package main provides the CLI entrypoint for temporal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/temporal/internal/cache"
	"github.com/verte-zerg/temporal/internal/config"
	"github.com/verte-zerg/temporal/internal/i18n"
	"github.com/verte-zerg/temporal/internal/logging"
	"github.com/verte-zerg/temporal/internal/realtime"
	"github.com/verte-zerg/temporal/internal/rpc"
	"github.com/verte-zerg/temporal/internal/tui"
	"github.com/verte-zerg/temporal/internal/weekdlg"
)

const (
	defaultServer    = "http://127.0.0.1:8000"
	defaultTimeout   = "30s"
	defaultRedisAddr = "127.0.0.1:6379"
	defaultListen    = "127.0.0.1:8000"
	defaultStartYear = 2020
	defaultEndYear   = 2050
)

// settings holds the merged flag and config-file values.
type settings struct {
	server   string
	user     string
	onResult string
	prefill  bool
	timeout  string
	locale   string

	redisAddr     string
	redisPassword string
	redisDB       int
	redisChannel  string

	listen    string
	offline   bool
	startYear int
	endYear   int
	dbPath    string

	logLevel string
	logFile  string
	verbose  bool
}

var opts = settings{
	server:       defaultServer,
	onResult:     string(weekdlg.ModeDisplay),
	prefill:      true,
	timeout:      defaultTimeout,
	redisAddr:    defaultRedisAddr,
	redisChannel: realtime.DefaultChannel,
	listen:       defaultListen,
	startYear:    defaultStartYear,
	endYear:      defaultEndYear,
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "temporal",
		Short:         "Week range dialog and calendar procedures",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTUICmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.server, "server", opts.server, "procedure server base URL")
	pf.StringVar(&opts.user, "user", opts.user, "session user for procedure calls and realtime events")
	pf.StringVar(&opts.locale, "locale", opts.locale, "message locale (default: from environment)")
	pf.StringVar(&opts.timeout, "timeout", opts.timeout, "procedure call timeout")
	pf.StringVar(&opts.redisAddr, "redis-addr", opts.redisAddr, "Redis address")
	pf.IntVar(&opts.redisDB, "redis-db", opts.redisDB, "Redis database")
	pf.StringVar(&opts.redisChannel, "redis-channel", opts.redisChannel, "Redis channel for realtime events")
	pf.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	pf.StringVar(&opts.onResult, "on-result", opts.onResult, "what to do with a result: display or parse-only")
	pf.BoolVar(&opts.prefill, "prefill", opts.prefill, "prefill the dialog with the current year and weeks 1 to 52")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newWeeksCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newDatesCmd())

	return rootCmd
}

// loadSettings merges the config file into opts. Flags set on the command
// line win over file values.
func loadSettings(cmd *cobra.Command) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server", &opts.server, fileCfg.Client.Server)
	applyStringConfig(cmd, "user", &opts.user, fileCfg.Client.User)
	applyStringConfig(cmd, "on-result", &opts.onResult, fileCfg.Client.OnResult)
	applyBoolConfig(cmd, "prefill", &opts.prefill, fileCfg.Client.Prefill)
	applyStringConfig(cmd, "timeout", &opts.timeout, fileCfg.Client.Timeout)
	applyStringConfig(cmd, "locale", &opts.locale, fileCfg.Client.Locale)

	applyStringConfig(cmd, "redis-addr", &opts.redisAddr, fileCfg.Redis.Addr)
	applyStringConfig(cmd, "redis-password", &opts.redisPassword, fileCfg.Redis.Password)
	applyIntConfig(cmd, "redis-db", &opts.redisDB, fileCfg.Redis.DB)
	applyStringConfig(cmd, "redis-channel", &opts.redisChannel, fileCfg.Redis.Channel)

	applyStringConfig(cmd, "listen", &opts.listen, fileCfg.Server.Listen)
	applyIntConfig(cmd, "start-year", &opts.startYear, fileCfg.Server.StartYear)
	applyIntConfig(cmd, "end-year", &opts.endYear, fileCfg.Server.EndYear)
	applyStringConfig(cmd, "db", &opts.dbPath, fileCfg.Server.DB)

	applyStringConfig(cmd, "log-level", &opts.logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &opts.logFile, fileCfg.Log.File)

	if opts.dbPath == "" {
		opts.dbPath = config.DefaultDBPath()
	}
	return nil
}

func runTUICmd(cmd *cobra.Command, _ []string) error {
	if err := loadSettings(cmd); err != nil {
		return err
	}
	logFile := opts.logFile
	if logFile == "" {
		logFile = config.DefaultLogPath()
	}
	logger, err := logging.New(logging.Options{Level: opts.logLevel, Verbose: opts.verbose, File: logFile})
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	loc, err := newLocalizer()
	if err != nil {
		return err
	}
	dlgOpts, err := dialogOptions(logger)
	if err != nil {
		return err
	}

	var program *tea.Program
	host := tui.NewHost(func(msg tea.Msg) { program.Send(msg) })
	caller := rpc.NewClient(opts.server, opts.user, logger.Named("rpc"))
	dlg := weekdlg.New(host, loc, caller, dlgOpts)

	reg := realtime.NewRegistry()
	dlg.RegisterRealtime(reg)

	model := tui.NewModel(tui.Options{
		Localizer: loc,
		Open:      func() error { return dlg.Open(nil) },
		Refresh:   func() { dlg.RegisterRealtime(reg) },
		Logger:    logger.Named("tui"),
	})
	program = tea.NewProgram(model, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rdb := cache.Dial(opts.redisAddr, opts.redisPassword, opts.redisDB)
	defer func() {
		if cerr := rdb.Close(); cerr != nil {
			logger.Warn("failed to close redis client", zap.Error(cerr))
		}
	}()
	bus := realtime.NewBus(rdb, opts.redisChannel, logger.Named("realtime"))
	go func() {
		if err := bus.Listen(ctx, opts.user, reg); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("realtime listener stopped", zap.Error(err))
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func dialogOptions(logger *zap.Logger) (weekdlg.Options, error) {
	mode, err := weekdlg.ParseMode(opts.onResult)
	if err != nil {
		return weekdlg.Options{}, err
	}
	timeout, err := config.ParseTimeout(opts.timeout)
	if err != nil {
		return weekdlg.Options{}, err
	}
	return weekdlg.Options{
		Mode:    mode,
		Prefill: opts.prefill,
		Timeout: timeout,
		Logger:  logger.Named("weekdlg"),
	}, nil
}

func newLocalizer() (*i18n.Localizer, error) {
	requested := []string{opts.locale}
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		requested = append(requested, os.Getenv(name))
	}
	loc, err := i18n.New(requested...)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return loc, nil
}

// newStderrLogger builds the logger for non-interactive commands.
func newStderrLogger() (*zap.Logger, error) {
	return logging.New(logging.Options{Level: opts.logLevel, Verbose: opts.verbose, File: opts.logFile})
}

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		// Syncing stderr fails on some terminals.
		_ = err
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# temporal configuration
# Uncomment a value to enable it. CLI flags override config values.

[client]
# server = %q    # Procedure server base URL
# user = ""                            # Session user
# on-result = "display"                # display or parse-only
# prefill = true                       # Prefill the current year and weeks 1 to 52
# timeout = %q                      # Procedure call timeout
# locale = "en"                        # Message locale (en, de)

[redis]
# addr = %q
# password = ""
# db = 0
# channel = %q

[server]
# listen = %q
# start-year = %d
# end-year = %d
# db = %q

[log]
# level = "info"
# file = ""
`,
		defaultServer,
		defaultTimeout,
		defaultRedisAddr,
		realtime.DefaultChannel,
		defaultListen,
		defaultStartYear,
		defaultEndYear,
		config.DefaultDBPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
