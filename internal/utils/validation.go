package utils

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

// normalizeInterval 检查开始时间和结束时间的格式，并将它们统一为 15:04:05
func normalizeInterval(startTime, endTime *string) error {
	start, err := ParseClock(*startTime)
	if err != nil {
		return errors.New("开始时间格式错误")
	}
	end, err := ParseClock(*endTime)
	if err != nil {
		return errors.New("结束时间格式错误")
	}
	if end <= start {
		return errors.New("结束时间必须晚于开始时间")
	}

	*startTime = FormatClock(start)
	*endTime = FormatClock(end)
	return nil
}

func validateAssignments(assignments []domain.ShiftBlockAssignment) error {
	seen := make(map[int64]bool)
	for i, assignment := range assignments {
		if seen[assignment.UserID] {
			return fmt.Errorf("第 %d 项分配中的值班员重复", i+1)
		}
		seen[assignment.UserID] = true

		if len(assignment.Rooms) == 0 {
			return fmt.Errorf("第 %d 项分配没有负责的教室", i+1)
		}
		for _, room := range assignment.Rooms {
			if room == "" {
				return fmt.Errorf("第 %d 项分配中存在空的教室编号", i+1)
			}
		}
	}
	return nil
}

// ValidateShiftBlock 检查班次本身是否合法，并统一时间格式
func ValidateShiftBlock(block *domain.ShiftBlock) error {
	if _, err := ParseDate(block.Date); err != nil {
		return errors.New("日期格式错误")
	}
	if err := normalizeInterval(&block.StartTime, &block.EndTime); err != nil {
		return err
	}
	return validateAssignments(block.Assignments)
}

// ValidateWeeklyShiftBlock 检查按周排布的班次是否合法，并统一时间格式
func ValidateWeeklyShiftBlock(block *domain.WeeklyShiftBlock) error {
	weekStart, err := ParseDate(block.WeekStart)
	if err != nil {
		return errors.New("周起始日期格式错误")
	}
	if weekStart.Weekday() != time.Monday {
		return errors.New("周起始日期必须是周一")
	}
	if block.DayOfWeek < 1 || block.DayOfWeek > 7 {
		return errors.New("星期必须在 1 到 7 之间")
	}
	if err := normalizeInterval(&block.StartTime, &block.EndTime); err != nil {
		return err
	}
	return validateAssignments(block.Assignments)
}

// ValidateShiftBlockConflict 检查新的班次是否与同一天已有的班次时间冲突，
// 首尾相接的班次不算冲突。existing 中与 block 具有相同 ID 的班次会被忽略（用于更新）
func ValidateShiftBlockConflict(block *domain.ShiftBlock, existing []*domain.ShiftBlock) error {
	start, _ := ParseClock(block.StartTime)
	end, _ := ParseClock(block.EndTime)

	for _, other := range existing {
		if other.ID == block.ID || other.Date != block.Date {
			continue
		}

		otherStart, err := ParseClock(other.StartTime)
		if err != nil {
			continue
		}
		otherEnd, err := ParseClock(other.EndTime)
		if err != nil {
			continue
		}

		if start < otherEnd && end > otherStart {
			return fmt.Errorf("与 %s-%s 的班次时间冲突", other.StartTime, other.EndTime)
		}
	}

	return nil
}

// ValidateWeeklyShiftBlockConflict 与 ValidateShiftBlockConflict 相同，只是比较的是同一周同一天的班次
func ValidateWeeklyShiftBlockConflict(block *domain.WeeklyShiftBlock, existing []*domain.WeeklyShiftBlock) error {
	start, _ := ParseClock(block.StartTime)
	end, _ := ParseClock(block.EndTime)

	for _, other := range existing {
		if other.ID == block.ID || other.WeekStart != block.WeekStart || other.DayOfWeek != block.DayOfWeek {
			continue
		}

		otherStart, err := ParseClock(other.StartTime)
		if err != nil {
			continue
		}
		otherEnd, err := ParseClock(other.EndTime)
		if err != nil {
			continue
		}

		if start < otherEnd && end > otherStart {
			return fmt.Errorf("与 %s-%s 的班次时间冲突", other.StartTime, other.EndTime)
		}
	}

	return nil
}

// ValidateEvent 检查活动的必填字段并统一时间格式
func ValidateEvent(event *domain.Event) error {
	if _, err := ParseDate(event.Date); err != nil {
		return errors.New("日期格式错误")
	}
	if err := normalizeInterval(&event.StartTime, &event.EndTime); err != nil {
		return err
	}
	if event.Room == "" {
		return errors.New("教室不能为空")
	}
	if !slices.Contains(domain.EventTypes, event.Type) {
		return fmt.Errorf("不支持的活动类型 %s", event.Type)
	}
	return nil
}
