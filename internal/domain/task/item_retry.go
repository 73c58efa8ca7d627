package task

import (
	"encoding/json"

	"jellyneo/idb/internal/domain"
)

const ItemRetryTaskType = "ItemRetryTask"

type ItemRetryTask struct {
	ItemID     domain.ItemID `json:"item_id"`
	RetryCount int           `json:"retry_count"` // Number of times the whole record fetch was re-queued
	Error      string        `json:"error"`       // Error message from the last failure
}

func (t *ItemRetryTask) TaskType() string {
	return ItemRetryTaskType
}

func (t *ItemRetryTask) TaskValue() ([]byte, error) {
	return json.Marshal(t)
}
