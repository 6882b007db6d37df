package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/MrEthical07/nextcrm/gateway"
	"github.com/MrEthical07/nextcrm/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	envFile      string
	baseURL      string
	stateDir     string
	redisAddr    string
	sessionID    string
	outputFormat string
	printMetrics bool
	timeout      time.Duration

	logger *zap.Logger
	app    *session
)

// session is the per-invocation client and the state it persists.
type session struct {
	cfg    fileConfig
	client *nextcrm.Client
	jar    *fileJar
	redis  redis.UniversalClient
}

var rootCmd = &cobra.Command{
	Use:   "nextcrm",
	Short: "NextCRM command line client",
	Long: `nextcrm talks to a NextCRM backend with a cookie session.

Run 'nextcrm login' once; later commands reuse the stored cookies and
refresh the access token on their own. When the refresh token is gone
the command fails and asks for a new login.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, _ []string) error {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = l

	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	s := &session{cfg: cfg}
	s.jar, err = openJar(cfg.CLI.StateDir, cfg.Gateway.BaseURL)
	if err != nil {
		return err
	}

	var persister nextcrm.Persister = nextcrm.NewFilePersister(cfg.CLI.StateDir)
	if cfg.CLI.RedisAddr != "" {
		s.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.CLI.RedisAddr}})
		persister = nextcrm.NewRedisPersister(s.redis, cfg.Session, cfg.CLI.SessionID)
	}

	client, err := nextcrm.New().
		WithConfig(cfg.Config).
		WithLogger(logger).
		WithJar(s.jar).
		WithPersister(persister).
		WithNavigator(gateway.NavigatorFunc(func(_ context.Context, reason gateway.Reason) error {
			fmt.Fprintf(os.Stderr, "session ended (%s): run 'nextcrm login'\n", reason)
			return nil
		})).
		WithMetricsEnabled(printMetrics).
		WithLatencyHistograms(printMetrics).
		Build()
	if err != nil {
		return err
	}
	s.client = client
	app = s
	return nil
}

func teardown() error {
	if app == nil {
		return nil
	}
	defer func() { _ = logger.Sync() }()

	if printMetrics {
		fmt.Fprint(os.Stderr, prometheus.NewExporter(app.client).Render())
	}
	app.client.Close()
	if app.redis != nil {
		_ = app.redis.Close()
	}
	return app.jar.Save()
}

// commandContext bounds a command by --timeout and cancels on Ctrl-C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (or NEXTCRM_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend base URL (or NEXTCRM_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Directory for cookies and the session snapshot (or NEXTCRM_STATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Keep the session snapshot in Redis (or NEXTCRM_REDIS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session-id", "", "Redis snapshot id (or NEXTCRM_SESSION_ID)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&printMetrics, "print-metrics", false, "Print client metrics to stderr on exit")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Command timeout")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, statusCmd)
	rootCmd.AddCommand(contractsCmd, dashboardCmd, searchCmd, referenceCmd)

	err := rootCmd.Execute()
	// Cookies rotated by a refresh are saved even when the command failed.
	if terr := teardown(); terr != nil && err == nil {
		err = terr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", nextcrm.ErrorMessage(err))
		os.Exit(1)
	}
}
