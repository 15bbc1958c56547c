package domain

import "time"

type EventType string

const (
	EventTypeCourseSeries EventType = "系列课程" // 例行课程由任课老师自行操作设备，不安排值班人员
	EventTypeLecture      EventType = "讲座"
	EventTypeMeeting      EventType = "会议"
	EventTypeExam         EventType = "考试"
	EventTypeOther        EventType = "其他"
)

var EventTypes = []EventType{
	EventTypeCourseSeries,
	EventTypeLecture,
	EventTypeMeeting,
	EventTypeExam,
	EventTypeOther,
}

// IsOwnershipExempt 表示该类型的活动不参与归属计算，永远没有负责人
func (t EventType) IsOwnershipExempt() bool {
	return t == EventTypeCourseSeries
}

type Event struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Date        string    `json:"date"`      // 2006-01-02
	StartTime   string    `json:"startTime"` // 15:04:05
	EndTime     string    `json:"endTime"`   // 15:04:05
	Room        string    `json:"room"`
	ManualOwner *int64    `json:"manualOwner"` // 为空时表示没有人工指定负责人
	Type        EventType `json:"type"`
	Source      string    `json:"source"`    // 手动创建的活动为空
	SourceUID   string    `json:"sourceUID"` // ICS 中的 UID
	CreatedAt   time.Time `json:"createdAt"`
	Version     int32     `json:"-"`
}
