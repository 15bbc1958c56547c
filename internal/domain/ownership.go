package domain

type TimelineEntry struct {
	OwnerID        int64   `json:"ownerID"`
	TransitionTime *string `json:"transitionTime"` // 为空表示该负责人一直负责到活动结束
}

type OwnershipResult struct {
	ShiftBlocks  []ShiftBlock    `json:"shiftBlocks"`
	Owners       []int64         `json:"owners"`
	HandOffTimes []string        `json:"handOffTimes"`
	Timeline     []TimelineEntry `json:"timeline"`
}

func NewEmptyOwnershipResult() *OwnershipResult {
	return &OwnershipResult{
		ShiftBlocks:  make([]ShiftBlock, 0),
		Owners:       make([]int64, 0),
		HandOffTimes: make([]string, 0),
		Timeline:     make([]TimelineEntry, 0),
	}
}

// EventOwnership 用于一次性返回某天所有活动的归属情况
type EventOwnership struct {
	Event       *Event           `json:"event"`
	Ownership   *OwnershipResult `json:"ownership"`
	HandOffTime *string          `json:"handOffTime"`
}
