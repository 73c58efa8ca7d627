package task

import (
	"encoding/json"

	"jellyneo/idb/internal/domain"
)

const ItemTaskType = "ItemTask"

type ItemTask struct {
	ItemID domain.ItemID `json:"item_id"`
}

func (t *ItemTask) TaskType() string {
	return ItemTaskType
}

func (t *ItemTask) TaskValue() ([]byte, error) {
	return json.Marshal(t)
}
