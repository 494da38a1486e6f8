package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rankforge/rankforge/internal/store"
	"github.com/rankforge/rankforge/internal/store/memory"
)

func TestEmitPersistsAndBroadcasts(t *testing.T) {
	st := memory.New()
	broker := NewBroker()
	publisher := NewPublisher(st, broker, "test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := broker.Subscribe(ctx, "sess-1")

	publisher.Emit(context.Background(), "sess-1", " Generation.Progress ", map[string]any{"index": 0})

	stored, err := st.ListEvents(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, int64(1), stored[0].Seq)
	require.Equal(t, "generation.progress", stored[0].Type)
	require.Equal(t, "test", stored[0].Source)

	select {
	case event := <-ch:
		require.Equal(t, int64(1), event.Seq)
		require.Equal(t, "generation.progress", event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast")
	}
}

func TestFromRecordNormalizesType(t *testing.T) {
	record := store.SessionEvent{
		SessionID: "sess-1",
		Seq:       7,
		Type:      " Plan.Updated ",
		Timestamp: "2026-09-01T00:00:00Z",
		Source:    "api",
		TraceID:   "trace-1",
		Payload:   map[string]any{"items": 5},
	}

	event := FromRecord(record)
	require.Equal(t, TypePlanUpdated, event.Type)
	require.Equal(t, record.Seq, event.Seq)
	require.Equal(t, record.Timestamp, event.Ts)
	require.Equal(t, record.TraceID, event.TraceID)
	require.Equal(t, record.Payload, event.Payload)
}

func TestEmitSequencesPerSession(t *testing.T) {
	st := memory.New()
	publisher := NewPublisher(st, NewBroker(), "test")

	publisher.Emit(context.Background(), "sess-1", TypeMessageAdded, nil)
	publisher.Emit(context.Background(), "sess-1", TypeMessageAdded, nil)
	publisher.Emit(context.Background(), "sess-2", TypeMessageAdded, nil)

	one, err := st.ListEvents(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, one, 2)
	require.Equal(t, int64(1), one[0].Seq)
	require.Equal(t, int64(2), one[1].Seq)

	two, err := st.ListEvents(context.Background(), "sess-2", 0)
	require.NoError(t, err)
	require.Len(t, two, 1)
	require.Equal(t, int64(1), two[0].Seq)
}
