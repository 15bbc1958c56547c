package handler

import (
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/dispatch"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) GetOwnershipForDate(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, "date")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	rows, err := h.dispatch.OwnershipForDate(r.Context(), date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取当天活动归属成功", rows)
}

// ExportOwnership 把某天的活动归属导出为 Excel 表格
func (h *Handler) ExportOwnership(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, "date")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	rows, err := h.dispatch.OwnershipForDate(r.Context(), date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 收集表格中需要显示姓名的所有用户
	ids := make([]int64, 0)
	for _, row := range rows {
		if row.Event.ManualOwner != nil {
			ids = append(ids, *row.Event.ManualOwner)
		}
		ids = append(ids, row.Ownership.Owners...)
		for _, entry := range row.Ownership.Timeline {
			ids = append(ids, entry.OwnerID)
		}
	}

	users, err := h.repository.GetUsersByIDs(ids)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	buf, filename, err := report.OwnershipWorkbook(date, rows, users)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeFile(w, r, xlsxContentType, filename, buf)
}

// NotifyHandOffs 手动触发某天的交接提醒，已经提醒过的交接不会重复发送
func (h *Handler) NotifyHandOffs(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, "date")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	sent, err := h.dispatch.NotifyHandOffs(r.Context(), date)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrAlertsDisabled):
			h.errorResponse(w, r, "交接提醒未启用")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "交接提醒已发送", map[string]int{
		"sent": sent,
	})
}
