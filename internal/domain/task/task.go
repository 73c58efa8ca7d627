package task

import (
	"encoding/json"
	"fmt"

	"jellyneo/idb/internal/domain"
)

// Task is a payload that can travel through a queue stream named after TaskType.
type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
}

// Types lists every task type that has a stream.
var Types = []string{
	ItemTaskType,
	ItemRetryTaskType,
}

// Lookup is the work a queued task asks for: one item record, and how many
// times that lookup has already been put back on the queue.
type Lookup struct {
	ItemID     domain.ItemID
	RetryCount int
}

// Decode reads a stream payload of the given type back into a Lookup.
func Decode(taskType string, data []byte) (Lookup, error) {
	switch taskType {
	case ItemTaskType:
		t, err := unmarshal[ItemTask](data)
		if err != nil {
			return Lookup{}, fmt.Errorf("failed to unmarshal item task data: %w", err)
		}
		return Lookup{ItemID: t.ItemID}, nil

	case ItemRetryTaskType:
		t, err := unmarshal[ItemRetryTask](data)
		if err != nil {
			return Lookup{}, fmt.Errorf("failed to unmarshal retry task data: %w", err)
		}
		return Lookup{ItemID: t.ItemID, RetryCount: t.RetryCount}, nil

	default:
		return Lookup{}, fmt.Errorf("unknown task type: %q", taskType)
	}
}

func unmarshal[T any](data []byte) (*T, error) {
	var t T
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
