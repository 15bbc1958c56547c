package handler

import (
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

func (h *Handler) GetWeeklyShiftBlocks(w http.ResponseWriter, r *http.Request) {
	weekStart, err := dateQuery(r, "weekStart")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	blocks, err := h.repository.GetWeeklyShiftBlocks(weekStart)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取按周排布的班次成功", blocks)
}

func (h *Handler) CreateWeeklyShiftBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WeekStart   string                        `json:"weekStart" validate:"required"`
		DayOfWeek   int32                         `json:"dayOfWeek" validate:"required,min=1,max=7"`
		StartTime   string                        `json:"startTime" validate:"required"`
		EndTime     string                        `json:"endTime" validate:"required"`
		Assignments []shiftBlockAssignmentRequest `json:"assignments" validate:"dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	block := &domain.WeeklyShiftBlock{
		WeekStart:   req.WeekStart,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Assignments: toAssignments(req.Assignments),
	}
	if err := utils.ValidateWeeklyShiftBlock(block); err != nil {
		h.badRequest(w, r, err)
		return
	}

	existing, err := h.repository.GetWeeklyShiftBlocks(block.WeekStart)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if err := utils.ValidateWeeklyShiftBlockConflict(block, existing); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateWeeklyShiftBlock(block); err != nil {
		switch {
		case isAssignedUserMissing(err):
			h.badRequest(w, r, errors.New("值班员不存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 按周排布的班次只用于计算交接时间，交接时间不进入归属缓存，因此这里无需清除缓存
	h.successResponse(w, r, "创建按周排布的班次成功", block)
}

func (h *Handler) GetWeeklyShiftBlock(w http.ResponseWriter, r *http.Request) {
	block := r.Context().Value(WeeklyShiftBlockCtx).(*domain.WeeklyShiftBlock)
	h.successResponse(w, r, "获取按周排布的班次成功", block)
}

func (h *Handler) DeleteWeeklyShiftBlock(w http.ResponseWriter, r *http.Request) {
	block := r.Context().Value(WeeklyShiftBlockCtx).(*domain.WeeklyShiftBlock)

	if err := h.repository.DeleteWeeklyShiftBlock(block.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除按周排布的班次成功", nil)
}
