package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"jellyneo/idb/internal/domain/task"
)

const DefaultStreamPrefix = "idb:stream:"

// Message is one task read from a stream and not yet acknowledged.
type Message struct {
	ID       string
	Stream   string
	TaskType string
	Data     []byte
}

type Queue interface {
	AddTask(ctx context.Context, task task.Task) (string, error) // Returns message ID
	GetTask(ctx context.Context, consumer, taskType string) (*Message, error)
	AckTask(ctx context.Context, msg *Message) error
	AutoClaim(ctx context.Context, consumer, taskType string, minIdleTime time.Duration) ([]Message, error)
	EnsureStreamsExist(ctx context.Context) error
	Close() error
}

type Options struct {
	StreamPrefix string
	Group        string
	// Block bounds how long GetTask waits for a new message.
	Block time.Duration
}

type RedisQueue struct {
	redisClient  *redis.Client
	streamPrefix string
	groupName    string
	block        time.Duration
}

func NewRedisQueue(ctx context.Context, redisClient *redis.Client, opts Options) (Queue, error) {
	if opts.StreamPrefix == "" {
		opts.StreamPrefix = DefaultStreamPrefix
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}

	q := &RedisQueue{
		redisClient:  redisClient,
		streamPrefix: opts.StreamPrefix,
		groupName:    opts.Group,
		block:        opts.Block,
	}

	// Ensure all streams and consumer groups exist before workers start
	if err := q.EnsureStreamsExist(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure streams exist: %w", err)
	}

	return q, nil
}

func (q *RedisQueue) StreamName(taskType string) string {
	return q.streamPrefix + taskType
}

func (q *RedisQueue) createGroup(ctx context.Context, stream string) error {
	err := q.redisClient.XGroupCreateMkStream(ctx, stream, q.groupName, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Debugf("Group %s already exists for stream %s", q.groupName, stream)
		return nil
	}
	return err
}

func (q *RedisQueue) AddTask(ctx context.Context, t task.Task) (string, error) {
	taskType := t.TaskType()
	streamName := q.StreamName(taskType)

	taskValue, err := t.TaskValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}

	messageID, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"task_type": taskType,
			"task_data": string(taskValue),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add task to Redis stream %s: %w", streamName, err)
	}

	log.Debugf("Added task %s to stream %s with message ID: %s", taskType, streamName, messageID)
	return messageID, nil
}

// GetTask blocks for up to the configured duration and returns nil when no
// new message arrived.
func (q *RedisQueue) GetTask(ctx context.Context, consumer, taskType string) (*Message, error) {
	stream := q.StreamName(taskType)

	result, err := q.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.groupName,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    q.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No new messages
		}
		return nil, fmt.Errorf("failed to read from Redis stream %s: %w", stream, err)
	}

	if len(result) == 0 || len(result[0].Messages) == 0 {
		return nil, nil
	}

	msg := toMessage(stream, result[0].Messages[0])
	return &msg, nil
}

func (q *RedisQueue) AckTask(ctx context.Context, msg *Message) error {
	if err := q.redisClient.XAck(ctx, msg.Stream, q.groupName, msg.ID).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s on %s: %w", msg.ID, msg.Stream, err)
	}
	return nil
}

// AutoClaim takes over one message that another consumer read but did not
// acknowledge within minIdleTime.
func (q *RedisQueue) AutoClaim(ctx context.Context, consumer, taskType string, minIdleTime time.Duration) ([]Message, error) {
	stream := q.StreamName(taskType)

	result, _, err := q.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    q.groupName,
		Consumer: consumer,
		MinIdle:  minIdleTime,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim messages from Redis stream %s: %w", stream, err)
	}

	messages := make([]Message, 0, len(result))
	for _, m := range result {
		messages = append(messages, toMessage(stream, m))
	}
	return messages, nil
}

func (q *RedisQueue) Close() error {
	if q.redisClient != nil {
		return q.redisClient.Close()
	}
	return nil
}

// EnsureStreamsExist creates every task stream and its consumer group upfront.
func (q *RedisQueue) EnsureStreamsExist(ctx context.Context) error {
	log.Debug("🔧 Creating Redis streams and consumer groups...")

	for _, taskType := range task.Types {
		streamName := q.StreamName(taskType)
		if err := q.createGroup(ctx, streamName); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", taskType, err)
		}
		log.Debugf("✅ Stream %s and consumer group %s ready", streamName, q.groupName)
	}

	return nil
}

func toMessage(stream string, m redis.XMessage) Message {
	taskType, _ := m.Values["task_type"].(string)
	data, _ := m.Values["task_data"].(string)
	return Message{
		ID:       m.ID,
		Stream:   stream,
		TaskType: taskType,
		Data:     []byte(data),
	}
}
