package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qredence/skill-fleet/internal/types"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 10)
	defer cleanup()

	jobID := types.NewID()
	event := Event{Type: EventPhaseStart, JobID: jobID, Phase: "understanding", Timestamp: time.Now()}
	require.NoError(t, bus.Publish(ctx, event))

	select {
	case received := <-ch:
		assert.Equal(t, EventPhaseStart, received.Type)
		assert.Equal(t, jobID, received.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusFilterByType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{Types: []EventType{EventComplete}}, 10)
	defer cleanup()

	require.NoError(t, bus.Publish(ctx, Event{Type: EventPhaseStart}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventTokenChunk}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventComplete}))

	select {
	case received := <-ch:
		assert.Equal(t, EventComplete, received.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event: %v", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusFilterByJob(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	wanted := types.NewID()
	other := types.NewID()

	ch, cleanup := bus.Subscribe(ctx, Filter{JobID: wanted}, 10)
	defer cleanup()

	require.NoError(t, bus.Publish(ctx, Event{Type: EventPhaseStart, JobID: other}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventPhaseStart, JobID: wanted}))

	select {
	case received := <-ch:
		assert.Equal(t, wanted, received.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	var mu sync.Mutex
	dropped := 0

	bus := NewBus(WithErrorHandler(func(err error, _ map[string]any) {
		mu.Lock()
		dropped++
		mu.Unlock()
	}))
	defer bus.Close()

	ctx := context.Background()
	_, cleanup := bus.Subscribe(ctx, Filter{}, 1)
	defer cleanup()

	// Nobody reads the channel, so only the first event fits.
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, Event{Type: EventTokenChunk, Seq: uint64(i)}))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, dropped)
}

func TestBusClose(t *testing.T) {
	bus := NewBus()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 1)
	defer cleanup()

	require.NoError(t, bus.Close())

	_, open := <-ch
	assert.False(t, open, "subscriber channel should be closed")

	err := bus.Publish(ctx, Event{Type: EventComplete})
	assert.Error(t, err)
}

func TestBusSubscriberCount(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, cleanup1 := bus.Subscribe(ctx, Filter{}, 1)
	_, cleanup2 := bus.Subscribe(ctx, Filter{}, 1)
	assert.Equal(t, 2, bus.SubscriberCount())

	cleanup1()
	cleanup2()
	assert.Equal(t, 0, bus.SubscriberCount())
}
