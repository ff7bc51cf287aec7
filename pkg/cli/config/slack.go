package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/service/notify"
	"github.com/secmon-lab/compliflow/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack configures the channel SLA breaches and workflow transitions are posted to
type Slack struct {
	botToken  string
	channelID string
	baseURL   string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (chat:write, channels:read)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("COMPLIFLOW_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel-id",
			Usage:       "Slack channel ID notifications are posted to",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("COMPLIFLOW_SLACK_CHANNEL_ID"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Base URL of the web UI, used for links in notifications (e.g., https://your-domain.com)",
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("COMPLIFLOW_BASE_URL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel-id", x.channelID),
		slog.String("base-url", x.baseURL),
	)
}

// IsConfigured reports whether Slack notification is enabled
func (x *Slack) IsConfigured() bool {
	return x.botToken != ""
}

// Configure returns the Slack notifier, or nil when no bot token is set
func (x *Slack) Configure() (*notify.Slack, error) {
	if !x.IsConfigured() {
		return nil, nil
	}
	if x.channelID == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "--slack-channel-id is required with --slack-bot-token")
	}

	svc, err := slack.New(x.botToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack service")
	}
	return notify.NewSlack(svc, x.channelID, notify.WithBaseURL(x.baseURL)), nil
}
