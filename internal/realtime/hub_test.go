package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func status(id, s string) SSEMessage {
	return SSEMessage{Channel: id, Event: SSEEventStatusChanged, Data: StatusChanged{ContentID: id, Status: s}}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(status(channel, "planning"))
	hub.Broadcast(status(channel, "researching"))

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Data.(StatusChanged).Status != "planning" {
		t.Fatalf("first event: got %+v", gotFirst.Data)
	}
	if gotSecond.Data.(StatusChanged).Status != "researching" {
		t.Fatalf("second event: got %+v", gotSecond.Data)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("expected no subscribers after close, got %d", n)
	}

	// Events are not replayed: a reconnecting client only sees later messages.
	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(status(channel, "draft"))
	got := recvMessage(t, clientB.Outbound, time.Second)
	if got.Data.(StatusChanged).Status != "draft" {
		t.Fatalf("reconnect event: got %+v", got.Data)
	}
}

func TestSSEHubDeliversRepeatedStatus(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	hub.Broadcast(status(channel, "writing"))
	hub.Broadcast(status(channel, "writing"))

	one := recvMessage(t, client.Outbound, time.Second)
	two := recvMessage(t, client.Outbound, time.Second)
	if one.Event != SSEEventStatusChanged || two.Event != SSEEventStatusChanged {
		t.Fatalf("expected both status events to be delivered, got %s and %s", one.Event, two.Event)
	}
}

func TestSSEHubIgnoresOtherChannels(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "c1")
	hub.Broadcast(status("c2", "planning"))
	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
