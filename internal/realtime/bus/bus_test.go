package bus

import (
	"context"
	"testing"

	"github.com/yungbote/agentwriter-backend/internal/realtime"
)

func TestMemoryBusForwardsToEveryForwarder(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	var a, c []realtime.SSEMessage
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { a = append(a, m) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { c = append(c, m) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	msg := realtime.SSEMessage{Channel: "c1", Event: realtime.SSEEventStatusChanged, Data: realtime.StatusChanged{ContentID: "c1", Status: "planning"}}
	if err := b.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(a) != 1 || len(c) != 1 || a[0].Channel != "c1" {
		t.Fatalf("expected one message per forwarder, got %v %v", a, c)
	}

	_ = b.Close()
	if err := b.Publish(ctx, msg); err == nil {
		t.Fatalf("expected publish after close to fail")
	}
}
