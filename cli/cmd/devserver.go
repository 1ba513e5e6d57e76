package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orchestrator/cli/devserver"
	"orchestrator/cli/style"
)

var devFlags struct {
	addr     string
	seed     int
	interval time.Duration
	failOn   string
	token    string
	secret   string
}

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run an in-memory deployment backend for local testing",
	Long: `Serve the deployment endpoints from memory and step seeded runs
through clone, build, test, migrate and deploy. With --fail-on a run fails
the first time it reaches that step so resume can be tried.`,
	Args: cobra.NoArgs,
	RunE: runDevServer,
}

func init() {
	f := devServerCmd.Flags()
	f.StringVar(&devFlags.addr, "addr", "127.0.0.1:8000", "listen address")
	f.IntVar(&devFlags.seed, "seed", 3, "deployments to create at start")
	f.DurationVar(&devFlags.interval, "step-every", 3*time.Second, "time between pipeline steps")
	f.StringVar(&devFlags.failOn, "fail-on", "test", "step that fails once (empty for none)")
	f.StringVar(&devFlags.token, "require-token", "", "static bearer token clients must send")
	f.StringVar(&devFlags.secret, "jwt-secret", os.Getenv("ORCH_DEV_JWT_SECRET"), "HS256 secret for signed tokens")
	rootCmd.AddCommand(devServerCmd)
}

func runDevServer(cmd *cobra.Command, args []string) error {
	srv := devserver.New(devserver.NewStore(), devserver.Options{
		Token:     devFlags.token,
		JWTSecret: []byte(devFlags.secret),
		Logger:    log,
	})
	for _, d := range srv.Seed(devFlags.seed) {
		fmt.Printf("  %s %s\n", style.Key.Render("seeded"), style.Val.Render(d.ID))
	}
	if devFlags.secret != "" {
		tok, err := devserver.IssueToken([]byte(devFlags.secret), "1", "admin", 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Printf("  %s %s\n", style.Key.Render("token"), style.Val.Render(tok))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go srv.Run(ctx, devFlags.interval, devFlags.failOn)

	hs := &http.Server{Addr: devFlags.addr, Handler: srv}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = hs.Shutdown(shutdownCtx)
	}()

	fmt.Println(style.DimText.Render("  listening on http://" + devFlags.addr))
	log.Info("dev server listening", zap.String("addr", devFlags.addr))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
