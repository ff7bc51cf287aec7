package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/cli/config"
	"github.com/secmon-lab/compliflow/pkg/service/notify"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/secmon-lab/compliflow/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// cmdScan runs a single SLA pass, e.g. from Cloud Scheduler or cron
func cmdScan() *cli.Command {
	var repoCfg config.Repository
	var workflowCfg config.Workflow
	var slackCfg config.Slack

	flags := append(repoCfg.Flags(), workflowCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:  "scan",
		Usage: "Run one SLA scan and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			ucOpts, err := workflowCfg.Configure(repoCfg.Backend())
			if err != nil {
				return err
			}

			slackNotifier, err := slackCfg.Configure()
			if err != nil {
				return err
			}
			if slackNotifier != nil {
				ucOpts = append(ucOpts, usecase.WithNotifier(notify.Multi{slackNotifier}))
			}

			uc := usecase.New(repo, ucOpts...)
			result, err := uc.SLA.Scan(ctx)
			if err != nil {
				return goerr.Wrap(err, "SLA scan failed")
			}

			logging.From(ctx).Info("SLA scan done",
				"skipped", result.Skipped,
				"candidates", result.Candidates,
				"breached", result.Breached,
				"skipped_final", result.SkippedFinal,
				"failed", result.Failed,
				"duration", result.Duration)

			if result.Failed > 0 {
				return goerr.New("some issues could not be checked", goerr.V("failed", result.Failed))
			}
			return nil
		},
	}
}
