package domain

import (
	"fmt"
	"time"
)

type ShiftBlockAssignment struct {
	UserID int64    `json:"userID"`
	Rooms  []string `json:"rooms"`
}

// ShiftBlock 表示某一天中的一段连续时间，在这段时间内值班员与教室的对应关系保持不变
type ShiftBlock struct {
	ID          int64                  `json:"id"`
	Date        string                 `json:"date"`
	StartTime   string                 `json:"startTime"`
	EndTime     string                 `json:"endTime"`
	Assignments []ShiftBlockAssignment `json:"assignments"`
	CreatedAt   time.Time              `json:"createdAt"`
	Version     int32                  `json:"-"`
}

// WeeklyShiftBlock 是按周排布的班次，DayOfWeek 取值 1~7（周一为 1）
type WeeklyShiftBlock struct {
	ID          int64                  `json:"id"`
	WeekStart   string                 `json:"weekStart"` // 该周周一的日期
	DayOfWeek   int32                  `json:"dayOfWeek"`
	StartTime   string                 `json:"startTime"`
	EndTime     string                 `json:"endTime"`
	Assignments []ShiftBlockAssignment `json:"assignments"`
	CreatedAt   time.Time              `json:"createdAt"`
	Version     int32                  `json:"-"`
}

// Date 返回该班次所在的具体日期
func (b *WeeklyShiftBlock) Date() (string, error) {
	weekStart, err := time.Parse(time.DateOnly, b.WeekStart)
	if err != nil {
		return "", err
	}
	if b.DayOfWeek < 1 || b.DayOfWeek > 7 {
		return "", fmt.Errorf("无效的星期 %d", b.DayOfWeek)
	}
	return weekStart.AddDate(0, 0, int(b.DayOfWeek-1)).Format(time.DateOnly), nil
}

func (b *WeeklyShiftBlock) ToShiftBlock() ShiftBlock {
	date, _ := b.Date()
	return ShiftBlock{
		ID:          b.ID,
		Date:        date,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Assignments: b.Assignments,
		CreatedAt:   b.CreatedAt,
		Version:     b.Version,
	}
}
