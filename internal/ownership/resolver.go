package ownership

import (
	"cmp"
	"slices"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

// candidateBlock 是与活动时间相交的班次，以及其中负责活动所在教室的值班员
type candidateBlock struct {
	block    *domain.ShiftBlock
	span     interval
	ownerSet *OrderedSet[int64]
}

// ResolveOwnership 根据活动当天的班次计算活动的负责人、交接时间以及负责人时间线。
// 该函数没有副作用，任何缺失或不合法的输入都只会得到空结果
func ResolveOwnership(event *domain.Event, shiftBlocks []*domain.ShiftBlock) *domain.OwnershipResult {
	result := domain.NewEmptyOwnershipResult()

	if event == nil || event.Date == "" || event.Room == "" {
		return result
	}
	eventSpan, ok := parseInterval(event.StartTime, event.EndTime)
	if !ok {
		return result
	}

	// 例行课程不安排值班员
	if event.Type.IsOwnershipExempt() {
		return result
	}

	candidates := intersectingBlocks(event, eventSpan, shiftBlocks)

	owners := NewOrderedSet[int64]()
	for i, candidate := range candidates {
		result.ShiftBlocks = append(result.ShiftBlocks, *candidate.block)
		owners.AddAll(candidate.ownerSet)

		// 与下一个班次的负责人集合不同时，当前班次的结束时间就是一次交接
		if i+1 < len(candidates) && !candidate.ownerSet.Equal(candidates[i+1].ownerSet) {
			result.HandOffTimes = append(result.HandOffTimes, utils.FormatClock(candidate.span.end))
		}
	}
	result.Owners = owners.Items()

	// 人工指定的负责人优先级最高，不与计算出的时间线混合
	if event.ManualOwner != nil {
		result.HandOffTimes = make([]string, 0)
		result.Timeline = []domain.TimelineEntry{{OwnerID: *event.ManualOwner}}
		return result
	}

	result.Timeline = buildTimeline(result.Owners, result.HandOffTimes)
	return result
}

// intersectingBlocks 筛选出与活动同一天且时间相交的班次，并按开始时间排序（开始时间相同时按 ID 排序）
func intersectingBlocks(event *domain.Event, eventSpan interval, shiftBlocks []*domain.ShiftBlock) []candidateBlock {
	candidates := make([]candidateBlock, 0)

	for _, block := range shiftBlocks {
		if block == nil || block.Date != event.Date {
			continue
		}
		// 时长为 0 或格式错误的班次不应该存在，直接忽略
		span, ok := parseInterval(block.StartTime, block.EndTime)
		if !ok || !eventSpan.overlaps(span) {
			continue
		}

		candidates = append(candidates, candidateBlock{
			block:    block,
			span:     span,
			ownerSet: roomOwners(block, event.Room),
		})
	}

	slices.SortStableFunc(candidates, func(a, b candidateBlock) int {
		if c := cmp.Compare(a.span.start, b.span.start); c != 0 {
			return c
		}
		return cmp.Compare(a.block.ID, b.block.ID)
	})

	return candidates
}

// roomOwners 返回班次中负责某个教室的所有值班员，可能为空也可能有多个
func roomOwners(block *domain.ShiftBlock, room string) *OrderedSet[int64] {
	owners := NewOrderedSet[int64]()
	for _, assignment := range block.Assignments {
		if slices.Contains(assignment.Rooms, room) {
			owners.Add(assignment.UserID)
		}
	}
	return owners
}

// buildTimeline 将负责人与相同下标的交接时间配对，最后一位负责人一直负责到活动结束
func buildTimeline(owners []int64, handOffTimes []string) []domain.TimelineEntry {
	timeline := make([]domain.TimelineEntry, 0, len(owners))
	for i, owner := range owners {
		entry := domain.TimelineEntry{OwnerID: owner}
		if i < len(owners)-1 && i < len(handOffTimes) {
			transition := handOffTimes[i]
			entry.TransitionTime = &transition
		}
		timeline = append(timeline, entry)
	}
	return timeline
}
