// Package cli is the watcher command line: flags, configuration layering and
// process lifecycle.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Alwanly/resource-watcher/internal/config"
	"github.com/Alwanly/resource-watcher/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

const (
	ExitOK    = 0
	ExitError = 1
)

type runFunc func(ctx context.Context, cfg *config.WatchConfig, stdout, stderr io.Writer) error

type flags struct {
	configPath     string
	uri            string
	delay          int
	initTrigger    bool
	cwd            string
	isScript       bool
	scriptRunner   string
	verbose        bool
	command        string
	accessToken    string
	basicUser      string
	basicPassword  string
	loginURL       string
	loginUser      string
	loginPassword  string
	tokenField     string
	requestTimeout int
	authRetryDelay int
	logFormat      string
	statusAddr     string
	historyDB      string
	lockFile       string
	redisHost      string
	redisPort      int
	notifyChannel  string
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(run)
	cmd.SetArgs(os.Args[1:])
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, watcher.ErrFatalPipeline):
		return watcher.ExitFatalPipeline
	}
	return ExitError
}

func newRootCommand(runner runFunc) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "watcher [flags] [--] [command...]",
		Short: "Run a command whenever a remote resource changes",
		Long: `Poll a URL on a fixed interval and run a command when the response body
changes.

The command may reference the latest body as ${response}; it is also exported
to the command as WATCHER_RESPONSE. Options are read from --config, then
WATCHER_OPTIONS, then WATCHER_* variables, then flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f, args)
			if err != nil {
				return err
			}
			return runner(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fl.StringVarP(&f.uri, "uri", "u", "", "URL of the resource to watch")
	fl.IntVarP(&f.delay, "delay", "d", config.DefaultDelayMs, "Poll interval in milliseconds")
	fl.BoolVarP(&f.initTrigger, "init-trigger", "i", false, "Run the command on the first successful fetch")
	fl.StringVar(&f.cwd, "cwd", "", "Working directory for the command")
	fl.BoolVarP(&f.isScript, "script", "s", false, "Treat the command as a package.json script name")
	fl.StringVar(&f.scriptRunner, "script-runner", config.DefaultScriptRunner, "Script runner; yarn.lock selects \"yarn run\" when unset")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Log debug output")
	fl.StringVar(&f.command, "command", "", "Command template to run on change")
	fl.StringVar(&f.accessToken, "access-token", "", "Static bearer token")
	fl.StringVar(&f.basicUser, "basic-user", "", "Basic auth username")
	fl.StringVar(&f.basicPassword, "basic-password", "", "Basic auth password")
	fl.StringVar(&f.loginURL, "login-url", "", "Login endpoint that issues bearer tokens")
	fl.StringVar(&f.loginUser, "login-user", "", "Login username")
	fl.StringVar(&f.loginPassword, "login-password", "", "Login password")
	fl.StringVar(&f.tokenField, "token-field", config.DefaultTokenField, "JSON path of the token in the login response")
	fl.IntVar(&f.requestTimeout, "request-timeout", 0, "Per-request timeout in milliseconds (0 = none)")
	fl.IntVar(&f.authRetryDelay, "auth-retry-delay", 0, "Delay between failed login attempts in milliseconds (0 = poll delay)")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: console or json")
	fl.StringVar(&f.statusAddr, "status-addr", "", "Listen address of the status API (disabled when empty)")
	fl.StringVar(&f.historyDB, "history-db", "", "SQLite file for command run history (disabled when empty)")
	fl.StringVar(&f.lockFile, "lock-file", "", "Refuse to start when another watcher holds this file")
	fl.StringVar(&f.redisHost, "redis-host", "", "Redis host for change notifications")
	fl.IntVar(&f.redisPort, "redis-port", 6379, "Redis port")
	fl.StringVar(&f.notifyChannel, "notify-channel", config.DefaultNotifyChannel, "Redis channel for change notifications")

	return cmd
}

// buildConfig layers explicitly set flags over config.Load and validates.
func buildConfig(cmd *cobra.Command, f *flags, args []string) (*config.WatchConfig, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	set := func(name string, apply func()) {
		if fl.Changed(name) {
			apply()
		}
	}

	set("uri", func() { cfg.URI = f.uri })
	set("delay", func() { cfg.DelayMs = f.delay })
	set("init-trigger", func() { cfg.InitTrigger = f.initTrigger })
	set("cwd", func() { cfg.WorkingDirectory = f.cwd })
	set("script", func() { cfg.IsScript = f.isScript })
	set("script-runner", func() { cfg.ScriptRunner = f.scriptRunner })
	set("verbose", func() { cfg.Verbose = f.verbose })
	set("command", func() { cfg.Command = f.command })
	set("access-token", func() { cfg.AccessToken = f.accessToken })
	set("request-timeout", func() { cfg.RequestTimeoutMs = f.requestTimeout })
	set("auth-retry-delay", func() { cfg.AuthRetryDelayMs = f.authRetryDelay })
	set("log-format", func() { cfg.LogFormat = f.logFormat })
	set("status-addr", func() { cfg.StatusAddr = f.statusAddr })
	set("history-db", func() { cfg.HistoryDB = f.historyDB })
	set("lock-file", func() { cfg.LockFile = f.lockFile })
	set("notify-channel", func() { cfg.NotifyChannel = f.notifyChannel })

	if err := mergeBasicAuth(cfg, f, fl); err != nil {
		return nil, err
	}
	if err := mergeLogin(cfg, f, fl); err != nil {
		return nil, err
	}
	if err := mergeRedis(cfg, f, fl); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Command = strings.Join(args, " ")
	}

	if cfg.IsScript && !fl.Changed("script-runner") && cfg.ScriptRunner == config.DefaultScriptRunner {
		cfg.ScriptRunner = detectScriptRunner(cfg.WorkingDirectory)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeBasicAuth sets the basic auth fields whose flags were given. A
// password alone needs a username from the config file.
func mergeBasicAuth(cfg *config.WatchConfig, f *flags, fl *pflag.FlagSet) error {
	if !fl.Changed("basic-user") && !fl.Changed("basic-password") {
		return nil
	}
	if cfg.BasicAuth == nil {
		if !fl.Changed("basic-user") {
			return fmt.Errorf("%w: --basic-password requires --basic-user", config.ErrInvalidConfig)
		}
		cfg.BasicAuth = &config.BasicAuth{}
	}
	if fl.Changed("basic-user") {
		cfg.BasicAuth.Username = f.basicUser
	}
	if fl.Changed("basic-password") {
		cfg.BasicAuth.Password = f.basicPassword
	}
	return nil
}

// mergeLogin sets the login fields whose flags were given. Without a login
// block in the config file the URL must come from --login-url.
func mergeLogin(cfg *config.WatchConfig, f *flags, fl *pflag.FlagSet) error {
	names := []string{"login-url", "login-user", "login-password", "token-field"}
	given := false
	for _, name := range names {
		given = given || fl.Changed(name)
	}
	if !given {
		return nil
	}
	if cfg.Login == nil {
		if !fl.Changed("login-url") {
			return fmt.Errorf("%w: login flags require --login-url", config.ErrInvalidConfig)
		}
		cfg.Login = &config.LoginDescriptor{}
	}
	if fl.Changed("login-url") {
		cfg.Login.URL = f.loginURL
	}
	if fl.Changed("login-user") {
		cfg.Login.Username = f.loginUser
	}
	if fl.Changed("login-password") {
		cfg.Login.Password = f.loginPassword
	}
	if fl.Changed("token-field") {
		cfg.Login.TokenField = f.tokenField
	}
	return nil
}

func mergeRedis(cfg *config.WatchConfig, f *flags, fl *pflag.FlagSet) error {
	if !fl.Changed("redis-host") && !fl.Changed("redis-port") {
		return nil
	}
	if cfg.Redis == nil {
		if !fl.Changed("redis-host") {
			return fmt.Errorf("%w: --redis-port requires --redis-host", config.ErrInvalidConfig)
		}
		cfg.Redis = &config.RedisConfig{Port: f.redisPort}
	}
	if fl.Changed("redis-host") {
		cfg.Redis.Host = f.redisHost
	}
	if fl.Changed("redis-port") {
		cfg.Redis.Port = f.redisPort
	}
	return nil
}

// detectScriptRunner picks yarn when the project has a yarn.lock.
func detectScriptRunner(dir string) string {
	if dir == "" {
		dir = "."
	}
	if _, err := os.Stat(filepath.Join(dir, "yarn.lock")); err == nil {
		return "yarn run"
	}
	return config.DefaultScriptRunner
}
