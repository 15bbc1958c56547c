package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/ownership"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

var ErrAlertsDisabled = errors.New("未启用交接提醒")

// roomOwnersAt 返回 clock 所在班次中负责 room 的值班员
func roomOwnersAt(blocks []*domain.ShiftBlock, room, clock string) []int64 {
	t, err := utils.ParseClock(clock)
	if err != nil {
		return nil
	}

	for _, block := range blocks {
		start, err := utils.ParseClock(block.StartTime)
		if err != nil {
			continue
		}
		end, err := utils.ParseClock(block.EndTime)
		if err != nil {
			continue
		}
		if t < start || t >= end {
			continue
		}

		owners := make([]int64, 0)
		for _, assignment := range block.Assignments {
			if slices.Contains(assignment.Rooms, room) && !slices.Contains(owners, assignment.UserID) {
				owners = append(owners, assignment.UserID)
			}
		}
		return owners
	}

	return nil
}

type handOff struct {
	event    *domain.Event
	time     string
	outgoing []int64
	incoming []int64
}

func (s *Service) pendingHandOffs(date string) ([]handOff, error) {
	events, err := s.events.GetEventsByDate(date)
	if err != nil {
		return nil, err
	}

	blocks, err := s.weeklyBlocksForDate(date)
	if err != nil {
		return nil, err
	}

	handOffs := make([]handOff, 0)
	for _, event := range events {
		// 人工指定负责人或不需要值班的活动不存在交接
		if event.ManualOwner != nil || event.Type.IsOwnershipExempt() {
			continue
		}

		t := ownership.ResolveHandOffTime(event, blocks)
		if t == nil {
			continue
		}

		outgoing := roomOwnersAt(blocks, event.Room, event.StartTime)
		incoming := roomOwnersAt(blocks, event.Room, *t)

		// 前后两个班次都是同一个人时不需要提醒
		stayed := make([]int64, 0)
		for _, id := range outgoing {
			if slices.Contains(incoming, id) {
				stayed = append(stayed, id)
			}
		}
		outgoing = slices.DeleteFunc(outgoing, func(id int64) bool { return slices.Contains(stayed, id) })
		incoming = slices.DeleteFunc(incoming, func(id int64) bool { return slices.Contains(stayed, id) })

		if len(outgoing) == 0 && len(incoming) == 0 {
			continue
		}

		handOffs = append(handOffs, handOff{
			event:    event,
			time:     *t,
			outgoing: outgoing,
			incoming: incoming,
		})
	}

	return handOffs, nil
}

// NotifyHandOffs 给某天所有需要交接的值班员发送提醒邮件，返回发送的邮件数量。
// 同一个活动的同一次交接只会提醒一次
func (s *Service) NotifyHandOffs(ctx context.Context, date string) (int, error) {
	if s.users == nil || s.publisher == nil || s.alerts == nil {
		return 0, ErrAlertsDisabled
	}

	handOffs, err := s.pendingHandOffs(date)
	if err != nil {
		return 0, err
	}

	ids := make([]int64, 0)
	for _, h := range handOffs {
		ids = append(ids, h.outgoing...)
		ids = append(ids, h.incoming...)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	users, err := s.users.GetUsersByIDs(ids)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, h := range handOffs {
		first, err := s.alerts.MarkAlerted(ctx, h.event.ID, date, h.time)
		if err != nil {
			return sent, err
		}
		if !first {
			continue
		}

		n, err := s.sendHandOffMails(ctx, h, users)
		sent += n
		if err != nil {
			// 允许下次重新提醒
			if ferr := s.alerts.Forget(ctx, h.event.ID, date, h.time); ferr != nil {
				slog.Warn("无法清除交接提醒标记", "event", h.event.ID, "error", ferr)
			}
			return sent, err
		}
	}

	slog.Info("交接提醒已发送", "date", date, "handOffs", len(handOffs), "mails", sent)
	return sent, nil
}

func (s *Service) sendHandOffMails(ctx context.Context, h handOff, users map[int64]*domain.User) (int, error) {
	sent := 0
	send := func(userID int64, incoming bool) error {
		user, ok := users[userID]
		if !ok || !user.IsActive {
			return nil
		}

		msg := domain.MailMessage{
			Type: domain.MailTypeHandOff,
			To:   user.Email,
			Data: domain.HandOffMailData{
				FullName:    user.FullName,
				Incoming:    incoming,
				EventName:   h.event.Name,
				Room:        h.event.Room,
				Date:        h.event.Date,
				StartTime:   h.event.StartTime,
				EndTime:     h.event.EndTime,
				HandOffTime: h.time,
			},
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			return err
		}
		sent++
		return nil
	}

	for _, id := range h.outgoing {
		if err := send(id, false); err != nil {
			return sent, err
		}
	}
	for _, id := range h.incoming {
		if err := send(id, true); err != nil {
			return sent, err
		}
	}

	return sent, nil
}
