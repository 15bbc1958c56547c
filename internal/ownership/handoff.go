package ownership

import (
	"cmp"
	"slices"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

// ResolveHandOffTime 找到活动结束时刻所在、但活动开始时刻不在的班次，
// 返回该班次的开始时间（精确到分钟），表示需要由下一班的值班员接手。
// shiftBlocks 是按周排布的、与活动同一星期几的班次。找不到时返回 nil
func ResolveHandOffTime(event *domain.Event, shiftBlocks []*domain.ShiftBlock) *string {
	if event == nil || event.Date == "" || len(shiftBlocks) == 0 {
		return nil
	}
	eventSpan, ok := parseInterval(event.StartTime, event.EndTime)
	if !ok {
		return nil
	}

	type span struct {
		id int64
		interval
	}
	spans := make([]span, 0, len(shiftBlocks))
	for _, block := range shiftBlocks {
		if block == nil {
			continue
		}
		s, ok := parseInterval(block.StartTime, block.EndTime)
		if !ok {
			continue
		}
		spans = append(spans, span{id: block.ID, interval: s})
	}

	slices.SortStableFunc(spans, func(a, b span) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	for _, s := range spans {
		if s.contains(eventSpan.end) && !s.contains(eventSpan.start) {
			handOff := utils.FormatShortClock(s.start)
			return &handOff
		}
	}

	return nil
}
