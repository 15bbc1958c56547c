package importer

import (
	"log/slog"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
	"github.com/teambition/rrule-go"
)

// 单个重复活动最多展开的次数
const maxOccurrences = 1000

// Expand 将解析出的日历条目展开为 [from, to) 内的具体活动。
// 全天活动和跨越午夜的活动没有明确的值班时段，会被跳过
func Expand(src Source, events []ParsedEvent, from, to time.Time, loc *time.Location) []domain.Event {
	out := make([]domain.Event, 0)

	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if len(src.Rooms) > 0 && !slices.Contains(src.Rooms, ev.Location) {
			continue
		}

		duration := ev.End.Sub(ev.Start)
		if duration <= 0 {
			continue
		}

		for _, start := range occurrences(ev, from, to) {
			event, ok := toEvent(src, ev, start.In(loc), start.Add(duration).In(loc))
			if ok {
				out = append(out, event)
			}
		}
	}

	return out
}

func occurrences(ev ParsedEvent, from, to time.Time) []time.Time {
	if ev.RawRRule == "" {
		if !ev.Start.Before(from) && ev.Start.Before(to) {
			return []time.Time{ev.Start}
		}
		return nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		slog.Warn("无法解析重复规则", "uid", ev.UID, "rrule", ev.RawRRule, "error", err)
		return nil
	}
	r.DTStart(ev.Start)

	set := rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(from.In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	// Between 包含右端点，这里统一成左闭右开
	times = slices.DeleteFunc(times, func(t time.Time) bool { return !t.Before(to) })
	if len(times) > maxOccurrences {
		slog.Warn("重复活动展开次数过多，已截断", "uid", ev.UID, "count", len(times))
		times = times[:maxOccurrences]
	}
	return times
}

func toEvent(src Source, ev ParsedEvent, start, end time.Time) (domain.Event, bool) {
	if start.Format(time.DateOnly) != end.Format(time.DateOnly) {
		return domain.Event{}, false
	}

	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	name := ev.Summary
	if name == "" {
		name = "未命名活动"
	}

	return domain.Event{
		Name:      name,
		Date:      start.Format(time.DateOnly),
		StartTime: utils.FormatClock(start.Sub(midnight)),
		EndTime:   utils.FormatClock(end.Sub(midnight)),
		Room:      ev.Location,
		Type:      eventType(src, ev.Categories),
		Source:    src.ID,
		SourceUID: ev.UID,
	}, true
}

func eventType(src Source, categories []string) domain.EventType {
	for _, c := range categories {
		if t := domain.EventType(c); slices.Contains(domain.EventTypes, t) {
			return t
		}
	}
	return src.DefaultType
}
