package dispatch

import (
	"context"
	"log/slog"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/ownership"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

// ShiftBlockStore 提供某天（或某周某天）的班次，返回的顺序不做保证
type ShiftBlockStore interface {
	GetShiftBlocksForDate(date string) ([]*domain.ShiftBlock, error)
	GetShiftBlocksForDayOfWeekAndWeek(dayOfWeek int32, weekStart string) ([]*domain.ShiftBlock, error)
}

type EventStore interface {
	GetEventsByDate(date string) ([]*domain.Event, error)
}

type UserStore interface {
	GetUsersByIDs(ids []int64) (map[int64]*domain.User, error)
}

// OwnershipCache 按日期代数缓存归属结果，InvalidateDate 会让该日期进入新的代数
type OwnershipCache interface {
	Generation(ctx context.Context, date string) (int64, error)
	Get(ctx context.Context, generation int64, event *domain.Event) (*domain.OwnershipResult, bool, error)
	Set(ctx context.Context, generation int64, event *domain.Event, result *domain.OwnershipResult) error
	InvalidateDate(ctx context.Context, date string) error
}

type MailPublisher interface {
	Publish(ctx context.Context, msg domain.MailMessage) error
}

type AlertDeduper interface {
	MarkAlerted(ctx context.Context, eventID int64, date, handOffTime string) (bool, error)
	Forget(ctx context.Context, eventID int64, date, handOffTime string) error
}

type Service struct {
	blocks    ShiftBlockStore
	events    EventStore
	users     UserStore
	cache     OwnershipCache
	publisher MailPublisher
	alerts    AlertDeduper
}

type Option func(*Service)

// WithCache 为归属计算启用缓存
func WithCache(cache OwnershipCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithHandOffAlerts 启用交接提醒邮件
func WithHandOffAlerts(users UserStore, publisher MailPublisher, alerts AlertDeduper) Option {
	return func(s *Service) {
		s.users = users
		s.publisher = publisher
		s.alerts = alerts
	}
}

func NewService(blocks ShiftBlockStore, events EventStore, opts ...Option) *Service {
	s := &Service{
		blocks: blocks,
		events: events,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ownership 计算单个活动的归属情况，优先使用缓存
func (s *Service) Ownership(ctx context.Context, event *domain.Event) (*domain.OwnershipResult, error) {
	gen := s.generationFor(ctx, event.Date)
	if result, ok := s.cachedOwnership(ctx, gen, event); ok {
		return result, nil
	}

	blocks, err := s.blocks.GetShiftBlocksForDate(event.Date)
	if err != nil {
		return nil, err
	}

	return s.resolve(ctx, gen, event, blocks), nil
}

// cacheGeneration 记录读取班次之前的缓存代数，缓存不可用时返回的代数无效
type cacheGeneration struct {
	value int64
	valid bool
}

func (s *Service) generationFor(ctx context.Context, date string) cacheGeneration {
	if s.cache == nil {
		return cacheGeneration{}
	}

	gen, err := s.cache.Generation(ctx, date)
	if err != nil {
		// 缓存不可用时直接重新计算
		slog.Warn("读取归属缓存代数失败", "date", date, "error", err)
		return cacheGeneration{}
	}
	return cacheGeneration{value: gen, valid: true}
}

func (s *Service) cachedOwnership(ctx context.Context, gen cacheGeneration, event *domain.Event) (*domain.OwnershipResult, bool) {
	if !gen.valid {
		return nil, false
	}

	result, ok, err := s.cache.Get(ctx, gen.value, event)
	if err != nil {
		slog.Warn("读取归属缓存失败", "event", event.ID, "error", err)
		return nil, false
	}
	return result, ok
}

func (s *Service) resolve(ctx context.Context, gen cacheGeneration, event *domain.Event, blocks []*domain.ShiftBlock) *domain.OwnershipResult {
	result := ownership.ResolveOwnership(event, blocks)
	if gen.valid {
		if err := s.cache.Set(ctx, gen.value, event, result); err != nil {
			slog.Warn("写入归属缓存失败", "event", event.ID, "error", err)
		}
	}
	return result
}

// HandOffTime 根据活动所在周的班次计算交接时间
func (s *Service) HandOffTime(ctx context.Context, event *domain.Event) (*string, error) {
	blocks, err := s.weeklyBlocksForDate(event.Date)
	if err != nil {
		return nil, err
	}
	return ownership.ResolveHandOffTime(event, blocks), nil
}

func (s *Service) weeklyBlocksForDate(date string) ([]*domain.ShiftBlock, error) {
	dayOfWeek, weekStart, err := utils.WeekOf(date)
	if err != nil {
		// 日期无效时按没有班次处理，由解析器给出空结果
		return nil, nil
	}
	return s.blocks.GetShiftBlocksForDayOfWeekAndWeek(dayOfWeek, weekStart)
}

// OwnershipForDate 计算某天所有活动的归属，同一天的活动共用同一份班次数据
func (s *Service) OwnershipForDate(ctx context.Context, date string) ([]*domain.EventOwnership, error) {
	gen := s.generationFor(ctx, date)

	events, err := s.events.GetEventsByDate(date)
	if err != nil {
		return nil, err
	}

	dailyBlocks, err := s.blocks.GetShiftBlocksForDate(date)
	if err != nil {
		return nil, err
	}

	weeklyBlocks, err := s.weeklyBlocksForDate(date)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.EventOwnership, 0, len(events))
	for _, event := range events {
		result, ok := s.cachedOwnership(ctx, gen, event)
		if !ok {
			result = s.resolve(ctx, gen, event, dailyBlocks)
		}

		results = append(results, &domain.EventOwnership{
			Event:       event,
			Ownership:   result,
			HandOffTime: ownership.ResolveHandOffTime(event, weeklyBlocks),
		})
	}

	return results, nil
}

// EventsOwnedBy 返回某天中 userID 在时间线上负责过的活动
func (s *Service) EventsOwnedBy(ctx context.Context, date string, userID int64) ([]*domain.EventOwnership, error) {
	all, err := s.OwnershipForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	owned := make([]*domain.EventOwnership, 0)
	for _, eo := range all {
		for _, entry := range eo.Ownership.Timeline {
			if entry.OwnerID == userID {
				owned = append(owned, eo)
				break
			}
		}
	}

	return owned, nil
}

// InvalidateDate 使某天的归属缓存失效，班次或活动发生变化后调用
func (s *Service) InvalidateDate(ctx context.Context, date string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateDate(ctx, date)
}
