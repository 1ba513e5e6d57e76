package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orchestrator/cli/api"
	"orchestrator/cli/config"
	"orchestrator/cli/logger"
	"orchestrator/cli/session"
	"orchestrator/cli/telemetry"
)

var (
	flags struct {
		apiURL   string
		token    string
		logLevel string
		logFile  string
	}

	cfg      *config.Config
	sess     *session.Session
	client   *api.Client
	log      *zap.Logger
	shutdown telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:   "orch",
	Short: "Follow and control tenant deployments",
	Long: `orch watches deployment runs of the orchestrator: live step progress,
the event log with level filters, resume of failed runs, and log export.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		applyFlags(cmd)

		if log, err = logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile); err != nil {
			return err
		}
		if shutdown, err = telemetry.Init(cmd.Context(), cfg.OTELEndpoint, "orch", Version); err != nil {
			log.Warn("tracing disabled", zap.Error(err))
			shutdown = nil
		}

		sess = loadSession()
		client = api.New(cfg.APIURL, api.WithSession(sess), api.WithTimeout(cfg.RequestTimeout))
		log.Debug("client ready", zap.String("api", cfg.APIURL), zap.Bool("authenticated", sess != nil))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}
		if log != nil {
			_ = log.Sync()
		}
	},
	SilenceUsage: true,
}

// ExecuteContext runs the CLI; commands stop when ctx is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api", "", "orchestrator API URL (default from ORCH_API_URL or config)")
	pf.StringVar(&flags.token, "token", "", "bearer token; overrides the saved session")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFile, "log-file", "", `log destination ("-" for stderr)`)
}

func applyFlags(cmd *cobra.Command) {
	pf := cmd.Flags()
	if pf.Changed("api") {
		cfg.APIURL = flags.apiURL
	}
	if pf.Changed("token") {
		cfg.Token = flags.token
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if pf.Changed("log-file") {
		cfg.LogFile = flags.logFile
	}
}

// loadSession prefers an explicit token over the saved session file. A
// missing file means an anonymous client.
func loadSession() *session.Session {
	if cfg.Token != "" {
		return session.FromToken(cfg.Token)
	}
	s, err := session.Load(cfg.SessionFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("ignoring session file", zap.String("path", cfg.SessionFile), zap.Error(err))
		}
		return nil
	}
	if s.Expired(time.Now()) {
		log.Warn("session token expired; run orch login", zap.String("path", cfg.SessionFile))
	}
	return s
}

// describe turns client errors into operator-facing text.
func describe(err error) error {
	switch {
	case api.IsUnauthorized(err):
		return fmt.Errorf("not authorized (run orch login or set ORCH_TOKEN): %w", err)
	case api.IsNotFound(err):
		return fmt.Errorf("deployment not found: %w", err)
	}
	return err
}
