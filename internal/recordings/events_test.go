package recordings

import (
	"fmt"
	"testing"
)

func TestEventBusAssignsSequenceAndTimestamp(t *testing.T) {
	bus := NewEventBus(10)

	first := bus.Publish(Event{Type: EventTypeRecordings})
	second := bus.Publish(Event{Type: EventTypeStatus})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seqs = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if first.Timestamp.IsZero() || second.Timestamp.IsZero() {
		t.Fatalf("timestamps not assigned")
	}
}

func TestEventBusSinceFiltersBySequence(t *testing.T) {
	bus := NewEventBus(10)
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventTypeStatus, RecordingID: fmt.Sprintf("r%d", i)})
	}

	got := bus.Since(3)
	if len(got) != 2 {
		t.Fatalf("Since(3) = %d events, want 2", len(got))
	}
	if got[0].Seq != 4 || got[1].Seq != 5 {
		t.Fatalf("seqs = %d, %d, want 4, 5", got[0].Seq, got[1].Seq)
	}
}

func TestEventBusTrimsToCapacity(t *testing.T) {
	bus := NewEventBus(3)
	for i := 0; i < 6; i++ {
		bus.Publish(Event{Type: EventTypeStatus})
	}

	got := bus.Since(0)
	if len(got) != 3 {
		t.Fatalf("history = %d events, want 3", len(got))
	}
	if got[0].Seq != 4 {
		t.Fatalf("oldest kept seq = %d, want 4", got[0].Seq)
	}
}
