package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkEvent(action string) types.Event {
	return types.Event{EntityUUID: uuid.New(), EntityType: types.EntityTypeIssue, Action: action}
}

func TestPublishDispatchesToMatchingHandlerOnly(t *testing.T) {
	b := New()
	var gotCreated, gotUpdated int

	b.Register(NewHandlerFunc("created-watcher", 0, []string{"created"}, func(_ context.Context, _ types.Event) error {
		gotCreated++
		return nil
	}))
	b.Register(NewHandlerFunc("updated-watcher", 0, []string{"updated"}, func(_ context.Context, _ types.Event) error {
		gotUpdated++
		return nil
	}))

	b.Publish(context.Background(), mkEvent("created"))
	assert.Equal(t, 1, gotCreated)
	assert.Equal(t, 0, gotUpdated)
}

func TestPublishDispatchesInPriorityOrder(t *testing.T) {
	b := New()
	var order []string

	b.Register(NewHandlerFunc("second", 10, nil, func(_ context.Context, _ types.Event) error {
		order = append(order, "second")
		return nil
	}))
	b.Register(NewHandlerFunc("first", 0, nil, func(_ context.Context, _ types.Event) error {
		order = append(order, "first")
		return nil
	}))

	b.Publish(context.Background(), mkEvent("created"))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestWildcardHandlerReceivesEveryAction(t *testing.T) {
	b := New()
	var count int
	b.Register(NewHandlerFunc("watch-all", 0, nil, func(_ context.Context, _ types.Event) error {
		count++
		return nil
	}))

	b.Publish(context.Background(), mkEvent("created"))
	b.Publish(context.Background(), mkEvent("updated"))
	assert.Equal(t, 2, count)
}

func TestUnregisterRemovesHandler(t *testing.T) {
	b := New()
	var count int
	b.Register(NewHandlerFunc("temp", 0, nil, func(_ context.Context, _ types.Event) error {
		count++
		return nil
	}))

	require.True(t, b.Unregister("temp"))
	assert.False(t, b.Unregister("temp"), "second unregister of the same id must report no-op")

	b.Publish(context.Background(), mkEvent("created"))
	assert.Equal(t, 0, count)
}

func TestPublishAndCollectReturnsHandlerErrors(t *testing.T) {
	b := New()
	b.Register(NewHandlerFunc("failing", 0, nil, func(_ context.Context, _ types.Event) error {
		return errors.New("boom")
	}))

	errs := b.PublishAndCollect(context.Background(), mkEvent("created"))
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "boom")
}

func TestPublishToleratesHandlerErrorAndContinues(t *testing.T) {
	b := New()
	var secondRan bool
	b.Register(NewHandlerFunc("failing", 0, nil, func(_ context.Context, _ types.Event) error {
		return errors.New("boom")
	}))
	b.Register(NewHandlerFunc("ok", 1, nil, func(_ context.Context, _ types.Event) error {
		secondRan = true
		return nil
	}))

	b.Publish(context.Background(), mkEvent("created"))
	assert.True(t, secondRan)
}
