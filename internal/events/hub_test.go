package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shalynjjj/prompt2CAD/testutil"
)

func TestHub_DeliversToSessionSubscribers(t *testing.T) {
	h := NewHub(4, nil)
	a, cancelA := h.Subscribe("s1")
	defer cancelA()
	b, cancelB := h.Subscribe("s2")
	defer cancelB()

	h.Publish(Event{SessionID: "s1", Stage: "extrude", Status: StatusStarted})

	e, ok := testutil.WaitForChannel(a, time.Second)
	require.True(t, ok)
	assert.Equal(t, "extrude", e.Stage)
	assert.Equal(t, StatusStarted, e.Status)
	assert.False(t, e.Timestamp.IsZero())

	select {
	case e := <-b:
		t.Fatalf("unexpected event for other session: %+v", e)
	default:
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := NewHub(1, nil)
	ch, cancel := h.Subscribe("s1")
	defer cancel()

	for i := 0; i < 3; i++ {
		h.Publish(Event{SessionID: "s1", Stage: "generate", Status: StatusStarted})
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, int64(2), h.Dropped())
}

func TestHub_CancelClosesAndUnregisters(t *testing.T) {
	h := NewHub(0, nil)
	ch, cancel := h.Subscribe("s1")
	assert.Equal(t, 1, h.Subscribers("s1"))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("s1"))

	h.Publish(Event{SessionID: "s1", Stage: "edit"})
}

func TestHub_ConcurrentPublishAndCancel(t *testing.T) {
	h := NewHub(2, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		_, cancel := h.Subscribe("s1")
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(Event{SessionID: "s1", Stage: "extrude", Status: StatusCompleted})
			}
		}()
		go func() {
			defer wg.Done()
			cancel()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Subscribers("s1"))
}
