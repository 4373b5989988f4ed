package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStoreLifecycle(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewTaskStore(client, time.Hour)
	ctx := context.Background()

	created, err := store.Create(ctx, "task-1", "system_export", "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, TaskPending, created.Status)
	assert.Equal(t, time.Hour, mr.TTL(taskKey("task-1")))

	require.NoError(t, store.SetStatus(ctx, "task-1", TaskRunning, nil))
	require.NoError(t, store.SetStatus(ctx, "task-1", TaskFailed, errors.New("smtp down")))

	got, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, got.Status)
	assert.Equal(t, "smtp down", got.Error)
	assert.Equal(t, "admin@example.com", got.RequestedBy)
}

func TestTaskStoreUnknownTask(t *testing.T) {
	_, client := newTestClient(t)
	store := NewTaskStore(client, time.Hour)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	err = store.SetStatus(context.Background(), "missing", TaskDone, nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStoreExpires(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewTaskStore(client, time.Minute)
	ctx := context.Background()

	_, err := store.Create(ctx, "task-2", "system_export", "")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "task-2")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
