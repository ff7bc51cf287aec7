package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/cli/config"
	httpctrl "github.com/secmon-lab/compliflow/pkg/controller/http"
	"github.com/secmon-lab/compliflow/pkg/service/notify"
	"github.com/secmon-lab/compliflow/pkg/service/worker"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/secmon-lab/compliflow/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var slaInterval time.Duration
	var authBurst int64
	var authRate float64
	var repoCfg config.Repository
	var authCfg config.Auth
	var workflowCfg config.Workflow
	var geminiCfg config.Gemini
	var slackCfg config.Slack
	var storageCfg config.Storage

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("COMPLIFLOW_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "sla-scan-interval",
			Usage:       "Interval between SLA scans (0 disables the in-process scanner)",
			Category:    "SLA",
			Value:       worker.DefaultSLAScanInterval,
			Sources:     cli.EnvVars("COMPLIFLOW_SLA_SCAN_INTERVAL"),
			Destination: &slaInterval,
		},
		&cli.Int64Flag{
			Name:        "auth-rate-burst",
			Usage:       "Login and registration attempts allowed in a burst per client IP",
			Category:    "Authentication",
			Value:       10,
			Sources:     cli.EnvVars("COMPLIFLOW_AUTH_RATE_BURST"),
			Destination: &authBurst,
		},
		&cli.FloatFlag{
			Name:        "auth-rate-per-second",
			Usage:       "Sustained login and registration attempts per second per client IP",
			Category:    "Authentication",
			Value:       1,
			Sources:     cli.EnvVars("COMPLIFLOW_AUTH_RATE_PER_SECOND"),
			Destination: &authRate,
		},
	}

	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, workflowCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			ucOpts, err := authCfg.Configure()
			if err != nil {
				return err
			}
			wfOpts, err := workflowCfg.Configure(repoCfg.Backend())
			if err != nil {
				return err
			}
			ucOpts = append(ucOpts, wfOpts...)

			summarizer, err := geminiCfg.Configure(ctx)
			if err != nil {
				return err
			}
			ucOpts = append(ucOpts, usecase.WithSummarizer(summarizer))

			store, closeStore, err := storageCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			ucOpts = append(ucOpts, usecase.WithBlobStore(store))

			hub := notify.NewHub()
			notifiers := notify.Multi{hub}
			slackNotifier, err := slackCfg.Configure()
			if err != nil {
				return err
			}
			if slackNotifier != nil {
				channel, err := slackNotifier.Verify(ctx)
				if err != nil {
					return err
				}
				notifiers = append(notifiers, slackNotifier)
				logging.From(ctx).Info("Slack notification enabled", "slack", slackCfg, "channel_name", channel)
			}
			ucOpts = append(ucOpts, usecase.WithNotifier(notifiers))

			uc := usecase.New(repo, ucOpts...)

			var slaWorker *worker.SLAScanWorker
			if slaInterval > 0 {
				slaWorker = worker.NewSLAScanWorker(uc.SLA, slaInterval)
				if err := slaWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start SLA scan worker")
				}
			}

			httpHandler := httpctrl.New(uc,
				httpctrl.WithHub(hub),
				httpctrl.WithAuthRateLimit(int(authBurst), authRate),
				httpctrl.WithMaxUploadBytes(storageCfg.MaxSize()),
			)
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("Starting HTTP server",
					"addr", addr,
					"auth", authCfg,
					"workflow", workflowCfg,
					"sla_scan_interval", slaInterval)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.From(ctx).Info("Received shutdown signal", "signal", sig)

				if slaWorker != nil {
					slaWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.From(ctx).Info("Server shutdown completed")
				return nil
			}
		},
	}
}
