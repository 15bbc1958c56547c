package importer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

type EventStore interface {
	UpsertImportedEvent(event *domain.Event) (bool, error)
	DeleteStaleImportedEvents(source, from, to string, keepIDs []int64) (int64, error)
}

// Invalidator 在导入改变了某天的活动后让归属缓存失效
type Invalidator interface {
	InvalidateDate(ctx context.Context, date string) error
}

type CalendarFetcher interface {
	Fetch(ctx context.Context, src Source) ([]byte, error)
}

type Importer struct {
	sources     []Source
	fetcher     CalendarFetcher
	store       EventStore
	invalidator Invalidator
	horizonDays int
	loc         *time.Location
	now         func() time.Time
}

func NewImporter(sources []Source, fetcher CalendarFetcher, store EventStore, invalidator Invalidator, horizonDays int, loc *time.Location) *Importer {
	return &Importer{
		sources:     sources,
		fetcher:     fetcher,
		store:       store,
		invalidator: invalidator,
		horizonDays: horizonDays,
		loc:         loc,
		now:         time.Now,
	}
}

type Summary struct {
	Sources  int
	Failed   int
	Imported int
	Removed  int64
}

// Run 依次导入所有订阅源，单个订阅源失败不影响其他订阅源
func (im *Importer) Run(ctx context.Context) Summary {
	now := im.now().In(im.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, im.loc)
	to := from.AddDate(0, 0, im.horizonDays)

	summary := Summary{Sources: len(im.sources)}
	for _, src := range im.sources {
		imported, removed, err := im.importSource(ctx, src, from, to)
		if err != nil {
			summary.Failed++
			slog.Error("导入订阅源失败", "source", src.ID, "error", err)
			continue
		}
		summary.Imported += imported
		summary.Removed += removed
	}

	slog.Info("导入完成", "sources", summary.Sources, "failed", summary.Failed, "imported", summary.Imported, "removed", summary.Removed)
	return summary
}

func (im *Importer) importSource(ctx context.Context, src Source, from, to time.Time) (int, int64, error) {
	body, err := im.fetcher.Fetch(ctx, src)
	if err != nil {
		return 0, 0, err
	}

	parsed, err := ParseCalendar(src, body)
	if err != nil {
		return 0, 0, err
	}

	events := Expand(src, parsed, from, to, im.loc)

	keepIDs := make([]int64, 0, len(events))
	dates := make([]string, 0)
	for i := range events {
		event := &events[i]
		changed, err := im.store.UpsertImportedEvent(event)
		if err != nil {
			return 0, 0, err
		}
		keepIDs = append(keepIDs, event.ID)
		if changed && !slices.Contains(dates, event.Date) {
			dates = append(dates, event.Date)
		}
	}

	removed, err := im.store.DeleteStaleImportedEvents(src.ID, from.Format(time.DateOnly), to.Format(time.DateOnly), keepIDs)
	if err != nil {
		return 0, 0, err
	}

	// 被删除的活动的日期无法得知，有删除时让整个范围都失效
	if removed > 0 {
		dates = dates[:0]
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d.Format(time.DateOnly))
		}
	}

	if im.invalidator != nil {
		for _, date := range dates {
			if err := im.invalidator.InvalidateDate(ctx, date); err != nil {
				slog.Warn("无法清除归属缓存", "date", date, "error", err)
			}
		}
	}

	return len(events), removed, nil
}
