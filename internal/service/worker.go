package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"jellyneo/idb/internal/domain"
	"jellyneo/idb/internal/domain/task"
	"jellyneo/idb/internal/queue"
)

var errNoQueue = errors.New("queue mode requires a Redis queue")

// Enqueue validates ids and adds one ItemTask per id.
func (s *Service) Enqueue(ctx context.Context, ids []domain.ItemID) (int, error) {
	if s.queue == nil {
		return 0, errNoQueue
	}

	for i, id := range ids {
		if err := id.Validate(); err != nil {
			return i, err
		}
		if _, err := s.queue.AddTask(ctx, &task.ItemTask{ItemID: id}); err != nil {
			return i, fmt.Errorf("failed to enqueue item %d: %w", id, err)
		}
	}

	log.Infof("📥 Enqueued %d items", len(ids))
	return len(ids), nil
}

// RunWorkers consumes item tasks until ctx is done. Retry tasks get half as
// many workers as fresh ones. Every stream also gets an auto-claimer that
// picks up messages left pending by crashed consumers.
func (s *Service) RunWorkers(ctx context.Context, numWorkers int, sink Sink) error {
	if s.queue == nil {
		return errNoQueue
	}

	var mu sync.Mutex
	emit := func(o Outcome) error {
		mu.Lock()
		defer mu.Unlock()
		return sink(o)
	}

	var wg sync.WaitGroup

	s.runWorkersForStream(ctx, &wg, max(numWorkers, 1), task.ItemTaskType, "main", emit)
	s.runWorkersForStream(ctx, &wg, max(numWorkers/2, 1), task.ItemRetryTaskType, "retry", emit)

	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, taskType, workerType string, sink Sink) {
	// Auto-claimer for this stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer := fmt.Sprintf("autoclaimer-%s-%s", workerType, uuid.NewString())
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				claimedMessages, err := s.queue.AutoClaim(ctx, consumer, taskType, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", taskType, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
				}
				for _, msg := range claimedMessages {
					if err := s.processMessage(ctx, &msg, sink); err != nil {
						log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
					}
				}
			}
		}
	}()

	for i := 1; i <= numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d-%s", workerType, workerID, uuid.NewString())
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
				}

				msg, err := s.queue.GetTask(ctx, consumer, taskType)
				if err != nil {
					if ctx.Err() != nil {
						continue
					}
					log.Errorf("❌ Failed to get task from %s: %v", taskType, err)
					sleep(ctx, time.Second)
					continue
				}

				if msg != nil {
					if err := s.processMessage(ctx, msg, sink); err != nil {
						log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
					}
				}
			}
		}(i)
	}
}

// processMessage handles one task and acknowledges it. A message is left
// pending only when ctx ended mid-lookup, so the auto-claimer retries it later.
// Undecodable messages are acknowledged and dropped.
func (s *Service) processMessage(ctx context.Context, msg *queue.Message, sink Sink) error {
	lookup, err := task.Decode(msg.TaskType, msg.Data)
	if err != nil {
		return s.drop(ctx, msg, err)
	}
	if lookup.RetryCount > 0 {
		log.Infof("🔄 Retrying item %d (attempt %d)", lookup.ItemID, lookup.RetryCount)
	}

	if err := s.handleItem(ctx, lookup.ItemID, lookup.RetryCount, sink); err != nil {
		return err
	}

	return s.queue.AckTask(ctx, msg)
}

func (s *Service) handleItem(ctx context.Context, id domain.ItemID, retryCount int, sink Sink) error {
	s.limiter.Take()

	record, err := s.GetItemRecord(ctx, id)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("lookup of item %d interrupted: %w", id, ctx.Err())
	}

	var unreachable *domain.UnreachableError
	if errors.As(err, &unreachable) && retryCount < s.maxRequeues {
		retryTask := &task.ItemRetryTask{
			ItemID:     id,
			RetryCount: retryCount + 1,
			Error:      err.Error(),
		}
		if _, addErr := s.queue.AddTask(ctx, retryTask); addErr != nil {
			return fmt.Errorf("failed to add retry task for item %d: %w", id, addErr)
		}
		log.Warnf("🔄 Added item %d to retry queue due to error: %v", id, err)
		return nil
	}

	return sink(NewOutcome(id, record, err))
}

func (s *Service) drop(ctx context.Context, msg *queue.Message, cause error) error {
	if err := s.queue.AckTask(ctx, msg); err != nil {
		return fmt.Errorf("%v; failed to ack message %s: %w", cause, msg.ID, err)
	}
	return cause
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
