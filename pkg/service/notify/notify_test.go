package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/service/notify"
	goslack "github.com/slack-go/slack"
)

func event(orgID model.OrganizationID, name types.EventName, payload any) model.Event {
	return model.Event{
		OrganizationID: orgID,
		Name:           name,
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
	}
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	hub := notify.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orgA, orgB := model.NewOrganizationID(), model.NewOrganizationID()
	chA := hub.Subscribe(ctx, orgA)
	chB := hub.Subscribe(ctx, orgB)

	hub.Publish(ctx, event(orgA, types.EventIssueCreated, nil))

	select {
	case ev := <-chA:
		gt.Value(t, ev.OrganizationID).Equal(orgA)
		gt.Value(t, ev.Name).Equal(types.EventIssueCreated)
	case <-time.After(time.Second):
		t.Fatal("subscriber of orgA did not receive the event")
	}

	select {
	case ev := <-chB:
		t.Fatalf("orgB received an event of another tenant: %v", ev)
	default:
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := notify.NewHub(notify.WithSubscriberBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orgID := model.NewOrganizationID()
	ch := hub.Subscribe(ctx, orgID)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(ctx, event(orgID, types.EventIssueUpdated, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	ev := <-ch
	gt.Value(t, ev.Payload).Equal(0)
}

func TestHub_UnsubscribeOnCancel(t *testing.T) {
	hub := notify.NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	orgID := model.NewOrganizationID()
	ch := hub.Subscribe(ctx, orgID)
	gt.Number(t, hub.Subscribers(orgID)).Equal(1)

	cancel()
	_, open := <-ch
	gt.Bool(t, open).False()
	gt.Number(t, hub.Subscribers(orgID)).Equal(0)

	// publishing to an empty room is a no-op
	hub.Publish(context.Background(), event(orgID, types.EventIssueCreated, nil))
}

type fakeSlack struct {
	mu     sync.Mutex
	posts  []string
	blocks [][]goslack.Block
	posted chan struct{}
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{posted: make(chan struct{}, 16)}
}

func (f *fakeSlack) PostMessage(ctx context.Context, channelID string, blocks []goslack.Block, text string) (string, error) {
	f.mu.Lock()
	f.posts = append(f.posts, channelID+"|"+text)
	f.blocks = append(f.blocks, blocks)
	f.mu.Unlock()
	f.posted <- struct{}{}
	return "1700000000.000100", nil
}

func (f *fakeSlack) GetChannelName(ctx context.Context, channelID string) (string, error) {
	return "alerts", nil
}

func TestSlack_PostsSelectedEvents(t *testing.T) {
	svc := newFakeSlack()
	n := notify.NewSlack(svc, "C123", notify.WithBaseURL("https://compliflow.example.com/"))
	ctx := context.Background()
	orgID := model.NewOrganizationID()
	issueID := model.NewIssueID()

	n.Publish(ctx, event(orgID, types.EventIssueCreated, &model.Issue{ID: issueID}))
	n.Publish(ctx, event(orgID, types.EventSLABreach, model.SLABreachPayload{
		IssueID:    issueID,
		Title:      "Cold chain excursion",
		DueDate:    time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
		BreachedAt: time.Date(2026, 1, 3, 3, 4, 0, 0, time.UTC),
	}))
	n.Publish(ctx, event(orgID, types.EventIssueTransitioned, model.IssueTransitionedPayload{
		IssueID:        issueID,
		PreviousStatus: "Draft",
		NewStatus:      "Submitted",
		PerformedBy:    "Alice",
	}))

	for i := 0; i < 2; i++ {
		select {
		case <-svc.posted:
		case <-time.After(2 * time.Second):
			t.Fatal("Slack post was not dispatched")
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	gt.Array(t, svc.posts).Length(2)

	var joined string
	for _, p := range svc.posts {
		joined += p + "\n"
	}
	gt.String(t, joined).Contains("C123|")
	gt.String(t, joined).Contains("SLA breached")
	gt.String(t, joined).Contains("https://compliflow.example.com/issues/" + string(issueID))
	gt.String(t, joined).Contains("Draft → Submitted by Alice")
}

func TestSlack_Verify(t *testing.T) {
	n := notify.NewSlack(newFakeSlack(), "C123")
	name, err := n.Verify(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, name).Equal("alerts")
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ctx context.Context, ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := notify.Multi{a, nil, b}

	m.Publish(context.Background(), event(model.NewOrganizationID(), types.EventIssueDeleted, nil))
	gt.Array(t, a.events).Length(1)
	gt.Array(t, b.events).Length(1)
}
