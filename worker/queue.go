package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"meetsync/config"
	"meetsync/services"
)

// Task types handled by the contact worker.
const (
	TaskContactImport  = "contact_import"
	TaskContactMerge   = "contact_merge"
	TaskSyncStats      = "sync_contact_stats"
	TaskSyncAllStats   = "sync_all_stats"
	TaskBookingCreated = "booking_created"
)

// Task is one unit of background work. Payload is the JSON-encoded,
// type-specific payload struct below.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type ImportPayload struct {
	OrganizerID uint                  `json:"organizer_id"`
	Rows        []service.ImportRow   `json:"rows"`
	Options     service.ImportOptions `json:"options"`
}

type MergePayload struct {
	PrimaryID    uint   `json:"primary_id"`
	DuplicateIDs []uint `json:"duplicate_ids"`
}

type SyncStatsPayload struct {
	ContactID uint `json:"contact_id"`
}

type BookingCreatedPayload struct {
	BookingID uint `json:"booking_id"`
}

// NewTask wraps a payload into a queueable task.
func NewTask(taskType string, payload interface{}) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("failed to encode %s payload: %w", taskType, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Queue is the task transport between the API and the workers.
// Dequeue blocks until a task arrives or ctx is cancelled.
type Queue interface {
	Enqueue(task Task) error
	Dequeue(ctx context.Context) (*Task, error)
	Close() error
}

// RedisQueue is the production queue: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(cfg config.RedisConfig, key string) *RedisQueue {
	return &RedisQueue{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		key: key,
	}
}

func (q *RedisQueue) Enqueue(task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.LPush(context.Background(), q.key, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if err == redis.Nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		// BRPOP returns [key, value]
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return nil, fmt.Errorf("malformed task on %s: %w", q.key, err)
		}
		return &task, nil
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// MemoryQueue is the in-process fallback used when Redis is disabled
// (development, tests). Enqueue fails once the buffer is full rather than
// blocking a request handler.
type MemoryQueue struct {
	tasks chan Task
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{tasks: make(chan Task, capacity)}
}

func (q *MemoryQueue) Enqueue(task Task) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return errors.New("task queue is full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case task := <-q.tasks:
		return &task, nil
	}
}

func (q *MemoryQueue) Close() error {
	return nil
}
