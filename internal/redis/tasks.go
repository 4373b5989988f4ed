package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

var ErrTaskNotFound = errors.New("task not found")

// Task is the externally visible record of an asynchronous export.
type Task struct {
	ID          string     `json:"task_id"`
	Kind        string     `json:"kind"`
	Status      TaskStatus `json:"status"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskStore keeps task records in Redis so any instance can answer status polls.
type TaskStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewTaskStore(client *redis.Client, ttl time.Duration) *TaskStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TaskStore{client: client, ttl: ttl, now: time.Now}
}

func taskKey(id string) string {
	return "task:export:" + id
}

// Create stores a new pending task.
func (s *TaskStore) Create(ctx context.Context, id, kind, requestedBy string) (*Task, error) {
	now := s.now().UTC()
	task := &Task{
		ID:          id,
		Kind:        kind,
		Status:      TaskPending,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.put(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// SetStatus moves a task to status, recording cause when the task failed.
func (s *TaskStore) SetStatus(ctx context.Context, id string, status TaskStatus, cause error) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	task.Status = status
	task.UpdatedAt = s.now().UTC()
	task.Error = ""
	if cause != nil {
		task.Error = cause.Error()
	}
	return s.put(ctx, task)
}

func (s *TaskStore) Get(ctx context.Context, id string) (*Task, error) {
	raw, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &task, nil
}

func (s *TaskStore) put(ctx context.Context, task *Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	if err := s.client.Set(ctx, taskKey(task.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store task %s: %w", task.ID, err)
	}
	return nil
}
