package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

// eventConstraintError 把数据库约束错误转换为用户能看懂的提示，无法识别时返回 nil
func eventConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.ConstraintName {
	case "events_manual_owner_fkey":
		return errors.New("负责人不存在")
	case "events_source_uid_date_key":
		return errors.New("同一来源的活动已存在")
	}
	return nil
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, "date")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	events, err := h.repository.GetEventsByDate(date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取活动列表成功", events)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name" validate:"required"`
		Date        string `json:"date" validate:"required"`
		StartTime   string `json:"startTime" validate:"required"`
		EndTime     string `json:"endTime" validate:"required"`
		Room        string `json:"room" validate:"required"`
		Type        string `json:"type" validate:"required"`
		ManualOwner *int64 `json:"manualOwner"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	event := &domain.Event{
		Name:        req.Name,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Room:        req.Room,
		Type:        domain.EventType(req.Type),
		ManualOwner: req.ManualOwner,
	}
	if err := utils.ValidateEvent(event); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateEvent(event); err != nil {
		if cErr := eventConstraintError(err); cErr != nil {
			h.badRequest(w, r, cErr)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建活动成功", event)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event := r.Context().Value(EventCtx).(*domain.Event)
	h.successResponse(w, r, "获取活动成功", event)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	event := r.Context().Value(EventCtx).(*domain.Event)

	// 导入的活动会在下一次同步时被覆盖，只允许修改负责人
	if event.Source != "" {
		h.errorResponse(w, r, "导入的活动只能修改负责人")
		return
	}

	var req struct {
		Name      *string `json:"name" validate:"omitempty,min=1"`
		Date      *string `json:"date"`
		StartTime *string `json:"startTime"`
		EndTime   *string `json:"endTime"`
		Room      *string `json:"room" validate:"omitempty,min=1"`
		Type      *string `json:"type"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		event.Name = *req.Name
	}
	if req.Date != nil {
		event.Date = *req.Date
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		event.EndTime = *req.EndTime
	}
	if req.Room != nil {
		event.Room = *req.Room
	}
	if req.Type != nil {
		event.Type = domain.EventType(*req.Type)
	}

	if err := utils.ValidateEvent(event); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdateEvent(event); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "活动已被其他人修改，请刷新后重试")
		case eventConstraintError(err) != nil:
			h.badRequest(w, r, eventConstraintError(err))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新活动成功", event)
}

// UpdateEventManualOwner 设置或清除活动的人工指定负责人，userID 为 null 时清除
func (h *Handler) UpdateEventManualOwner(w http.ResponseWriter, r *http.Request) {
	event := r.Context().Value(EventCtx).(*domain.Event)

	var req struct {
		UserID *int64 `json:"userID" validate:"omitempty,gt=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.UserID != nil {
		user, err := h.repository.GetUserByID(*req.UserID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "负责人不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}
		if !user.IsActive {
			h.errorResponse(w, r, "该用户已停用")
			return
		}
	}

	event.ManualOwner = req.UserID
	if err := h.repository.UpdateEvent(event); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "活动已被其他人修改，请刷新后重试")
		case eventConstraintError(err) != nil:
			h.badRequest(w, r, eventConstraintError(err))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if req.UserID == nil {
		h.successResponse(w, r, "已清除人工指定的负责人", event)
		return
	}
	h.successResponse(w, r, "已设置人工指定的负责人", event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	event := r.Context().Value(EventCtx).(*domain.Event)

	if err := h.repository.DeleteEvent(event.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除活动成功", nil)
}

func (h *Handler) GetEventOwnership(w http.ResponseWriter, r *http.Request) {
	event := r.Context().Value(EventCtx).(*domain.Event)

	result, err := h.dispatch.Ownership(r.Context(), event)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取活动归属成功", result)
}

func (h *Handler) GetEventHandOffTime(w http.ResponseWriter, r *http.Request) {
	event := r.Context().Value(EventCtx).(*domain.Event)

	handOffTime, err := h.dispatch.HandOffTime(r.Context(), event)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取交接时间成功", map[string]any{
		"handOffTime": handOffTime,
	})
}
