package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/service/summary"
	"github.com/urfave/cli/v3"
)

// Gemini holds configuration for the Gemini backed summary generator
type Gemini struct {
	projectID string
	location  string
	timeout   time.Duration
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API. AI summaries use the built-in fallback when unset",
			Category:    "AI",
			Sources:     cli.EnvVars("COMPLIFLOW_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("COMPLIFLOW_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.DurationFlag{
			Name:        "summary-timeout",
			Usage:       "Upper bound of one AI summary generation",
			Category:    "AI",
			Value:       summary.DefaultTimeout,
			Sources:     cli.EnvVars("COMPLIFLOW_SUMMARY_TIMEOUT"),
			Destination: &g.timeout,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.Duration("timeout", g.timeout),
	}
}

// Configure creates the summary generator. Without a project it generates
// fallback summaries only.
func (g *Gemini) Configure(ctx context.Context) (interfaces.Summarizer, error) {
	opts := []summary.Option{summary.WithTimeout(g.timeout)}
	if g.projectID == "" {
		return summary.New(nil, opts...), nil
	}

	client, err := gemini.New(ctx, g.projectID, g.location)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	return summary.New(client, append(opts, summary.WithModelName("gemini"))...), nil
}
