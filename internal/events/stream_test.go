package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/testutil"
)

func TestStreamHandler_PushesSessionEvents(t *testing.T) {
	hub := NewHub(8, nil)
	handler := NewStreamHandler(hub, zap.NewNop(), WithPingInterval(0))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Serve(w, r, r.URL.Query().Get("sid"))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?sid=s1", nil)
	require.NoError(t, err)

	testutil.AssertEventuallyTrue(t, func() bool { return hub.Subscribers("s1") == 1 }, 2*time.Second)

	hub.Publish(Event{SessionID: "s2", Stage: "generate", Status: StatusStarted})
	hub.Publish(Event{SessionID: "s1", Stage: "extrude", Status: StatusCompleted, Message: "1024 triangles"})

	var got Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "extrude", got.Stage)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "1024 triangles", got.Message)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	testutil.AssertEventuallyTrue(t, func() bool { return hub.Subscribers("s1") == 0 }, 2*time.Second)
}
