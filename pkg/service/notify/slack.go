package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/service/slack"
	"github.com/secmon-lab/compliflow/pkg/utils/async"
	goslack "github.com/slack-go/slack"
)

// Slack posts SLA breaches and workflow transitions to one channel. Other events
// are ignored. Posting happens in the background.
type Slack struct {
	svc       slack.Service
	channelID string
	baseURL   string
}

var _ interfaces.Notifier = (*Slack)(nil)

// SlackOption is a functional option for Slack
type SlackOption func(*Slack)

// WithBaseURL makes issue titles link to the web UI
func WithBaseURL(url string) SlackOption {
	return func(s *Slack) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

func NewSlack(svc slack.Service, channelID string, opts ...SlackOption) *Slack {
	s := &Slack{
		svc:       svc,
		channelID: channelID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Slack) Publish(ctx context.Context, ev model.Event) {
	blocks, text, ok := s.render(ev)
	if !ok {
		return
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		if _, err := s.svc.PostMessage(ctx, s.channelID, blocks, text); err != nil {
			return goerr.Wrap(err, "failed to post notification to Slack",
				goerr.V("event", ev.Name),
				goerr.V("organization_id", ev.OrganizationID))
		}
		return nil
	})
}

// Verify checks that the bot can see the configured channel and returns its name
func (s *Slack) Verify(ctx context.Context) (string, error) {
	name, err := s.svc.GetChannelName(ctx, s.channelID)
	if err != nil {
		return "", goerr.Wrap(err, "Slack channel is not accessible", goerr.V("channel_id", s.channelID))
	}
	return name, nil
}

func (s *Slack) issueRef(id model.IssueID, label string) string {
	if s.baseURL == "" {
		return label
	}
	return fmt.Sprintf("<%s/issues/%s|%s>", s.baseURL, id, label)
}

func (s *Slack) render(ev model.Event) ([]goslack.Block, string, bool) {
	var header, body string

	switch p := ev.Payload.(type) {
	case model.SLABreachPayload:
		if ev.Name != types.EventSLABreach {
			return nil, "", false
		}
		header = ":rotating_light: SLA breached"
		body = fmt.Sprintf("*%s*\nDue %s, flagged %s",
			s.issueRef(p.IssueID, p.Title),
			p.DueDate.UTC().Format("2006-01-02 15:04 MST"),
			p.BreachedAt.UTC().Format("2006-01-02 15:04 MST"))
	case model.IssueTransitionedPayload:
		if ev.Name != types.EventIssueTransitioned {
			return nil, "", false
		}
		header = ":arrows_counterclockwise: Issue transitioned"
		body = fmt.Sprintf("*%s*\n%s → %s by %s",
			s.issueRef(p.IssueID, string(p.IssueID)),
			p.PreviousStatus, p.NewStatus, p.PerformedBy)
	default:
		return nil, "", false
	}

	blocks := []goslack.Block{
		goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, header, true, false)),
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, body, false, false), nil, nil),
		goslack.NewContextBlock("",
			goslack.NewTextBlockObject(goslack.MarkdownType, "organization `"+string(ev.OrganizationID)+"`", false, false)),
	}
	return blocks, header + ": " + body, true
}
