package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(ApprovalRequired, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	event := Event{Type: ApprovalRequired, Data: "req-1"}
	bus.Publish(event)

	// Wait for async delivery
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Type != ApprovalRequired {
			t.Errorf("Expected ApprovalRequired, got %v", received.Type)
		}
		if received.Data != "req-1" {
			t.Errorf("Expected 'req-1', got %v", received.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	// Publish different event types
	bus.Publish(Event{Type: ApprovalRequired, Data: nil})
	bus.Publish(Event{Type: ApprovalReplied, Data: nil})
	bus.Publish(Event{Type: TranscriptAppended, Data: nil})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("Expected 3 events, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for events")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int32
	unsub := bus.Subscribe(ApprovalRequired, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: ApprovalRequired, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected 1 event before unsub, got %d", count)
	}

	unsub()

	// Publish again - should not be received
	bus.PublishSync(Event{Type: ApprovalRequired, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected still 1 event after unsub, got %d", count)
	}
}

func TestBus_CloseDropsSubscribers(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Subscribe(ApprovalReplied, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	bus.PublishSync(Event{Type: ApprovalReplied, Data: nil})
	if atomic.LoadInt32(&count) != 0 {
		t.Errorf("Expected 0 events after close, got %d", count)
	}
}

func TestWorkerEvent_Terminal(t *testing.T) {
	tests := []struct {
		name string
		ev   WorkerEvent
		want bool
	}{
		{"done", WorkerEvent{Kind: Done}, true},
		{"cancelled", WorkerEvent{Kind: Cancelled}, true},
		{"run error", WorkerEvent{Kind: Error}, true},
		{"provider error", WorkerEvent{Kind: Error, Provider: "claude"}, false},
		{"chunk", WorkerEvent{Kind: AgentChunk, Provider: "claude", Text: "hi"}, false},
		{"promotion", WorkerEvent{Kind: PromotePrimary, To: "codex"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
