package slack_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/service/slack"
	goslack "github.com/slack-go/slack"
)

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates service when token is provided", func(t *testing.T) {
		svc, err := slack.New("test-token")
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
	})
}

func newFakeSlack(t *testing.T, infoCalls *int32, posted *[]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		gt.NoError(t, r.ParseForm()).Required()
		*posted = append(*posted, r.PostForm.Get("channel"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"channel": r.PostForm.Get("channel"),
			"ts":      "1700000000.000100",
		})
	})
	mux.HandleFunc("/conversations.info", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(infoCalls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"channel": map[string]any{
				"id":   "C123",
				"name": "compliance-alerts",
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_PostMessageAndChannelName(t *testing.T) {
	var infoCalls int32
	var posted []string
	srv := newFakeSlack(t, &infoCalls, &posted)

	svc, err := slack.New("xoxb-test", slack.WithAPIURL(srv.URL+"/"))
	gt.NoError(t, err).Required()

	ctx := context.Background()
	ts, err := svc.PostMessage(ctx, "C123", []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, "*hello*", false, false), nil, nil),
	}, "hello")
	gt.NoError(t, err).Required()
	gt.Value(t, ts).Equal("1700000000.000100")
	gt.Array(t, posted).Length(1)

	for i := 0; i < 3; i++ {
		name, err := svc.GetChannelName(ctx, "C123")
		gt.NoError(t, err).Required()
		gt.Value(t, name).Equal("compliance-alerts")
	}
	gt.Number(t, atomic.LoadInt32(&infoCalls)).Equal(1)
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	if token == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN is not set")
	}
	channelID := os.Getenv("TEST_SLACK_CHANNEL_ID")
	if channelID == "" {
		t.Skip("TEST_SLACK_CHANNEL_ID is not set")
	}

	svc, err := slack.New(token)
	gt.NoError(t, err).Required()

	name, err := svc.GetChannelName(context.Background(), channelID)
	gt.NoError(t, err).Required()
	gt.String(t, name).NotEqual("")
}
