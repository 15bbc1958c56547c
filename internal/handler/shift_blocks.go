package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

type shiftBlockAssignmentRequest struct {
	UserID int64    `json:"userID" validate:"required,gt=0"`
	Rooms  []string `json:"rooms" validate:"required,min=1,dive,required"`
}

func toAssignments(reqs []shiftBlockAssignmentRequest) []domain.ShiftBlockAssignment {
	assignments := make([]domain.ShiftBlockAssignment, 0, len(reqs))
	for _, req := range reqs {
		assignments = append(assignments, domain.ShiftBlockAssignment{
			UserID: req.UserID,
			Rooms:  req.Rooms,
		})
	}
	return assignments
}

func isAssignedUserMissing(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.ConstraintName == "shift_block_assignments_user_id_fkey" ||
		pgErr.ConstraintName == "weekly_shift_block_assignments_user_id_fkey"
}

// invalidateOwnership 让这些日期的归属缓存失效，失败时只记录日志
func (h *Handler) invalidateOwnership(r *http.Request, dates ...string) {
	for _, date := range dates {
		if err := h.dispatch.InvalidateDate(r.Context(), date); err != nil {
			slog.Warn("无法清除归属缓存", "requestID", requestIDFrom(r), "date", date, "error", err)
		}
	}
}

func (h *Handler) GetShiftBlocks(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, "date")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	blocks, err := h.repository.GetShiftBlocksForDate(date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次成功", blocks)
}

func (h *Handler) CreateShiftBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string                        `json:"date" validate:"required"`
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

	block := &domain.ShiftBlock{
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Assignments: toAssignments(req.Assignments),
	}
	if err := utils.ValidateShiftBlock(block); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 同一天的班次不能重叠
	existing, err := h.repository.GetShiftBlocksForDate(block.Date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if err := utils.ValidateShiftBlockConflict(block, existing); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateShiftBlock(block); err != nil {
		switch {
		case isAssignedUserMissing(err):
			h.badRequest(w, r, errors.New("值班员不存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.invalidateOwnership(r, block.Date)

	h.successResponse(w, r, "创建班次成功", block)
}

func (h *Handler) GetShiftBlock(w http.ResponseWriter, r *http.Request) {
	block := r.Context().Value(ShiftBlockCtx).(*domain.ShiftBlock)
	h.successResponse(w, r, "获取班次成功", block)
}

func (h *Handler) UpdateShiftBlock(w http.ResponseWriter, r *http.Request) {
	block := r.Context().Value(ShiftBlockCtx).(*domain.ShiftBlock)
	oldDate := block.Date

	var req struct {
		Date        *string                       `json:"date"`
		StartTime   *string                       `json:"startTime"`
		EndTime     *string                       `json:"endTime"`
		Assignments []shiftBlockAssignmentRequest `json:"assignments" validate:"omitempty,dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Date != nil {
		block.Date = *req.Date
	}
	if req.StartTime != nil {
		block.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		block.EndTime = *req.EndTime
	}
	// 分配为 null 时保持不变，为空数组时清空
	if req.Assignments != nil {
		block.Assignments = toAssignments(req.Assignments)
	}

	if err := utils.ValidateShiftBlock(block); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 同一天的班次不能重叠
	existing, err := h.repository.GetShiftBlocksForDate(block.Date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if err := utils.ValidateShiftBlockConflict(block, existing); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdateShiftBlock(block); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "班次已被其他人修改，请刷新后重试")
		case isAssignedUserMissing(err):
			h.badRequest(w, r, errors.New("值班员不存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if oldDate != block.Date {
		h.invalidateOwnership(r, oldDate, block.Date)
	} else {
		h.invalidateOwnership(r, block.Date)
	}

	h.successResponse(w, r, "更新班次成功", block)
}

func (h *Handler) DeleteShiftBlock(w http.ResponseWriter, r *http.Request) {
	block := r.Context().Value(ShiftBlockCtx).(*domain.ShiftBlock)

	if err := h.repository.DeleteShiftBlock(block.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.invalidateOwnership(r, block.Date)

	h.successResponse(w, r, "删除班次成功", nil)
}
