package report

import (
	"testing"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

func TestOwnershipWorkbook(t *testing.T) {
	handOff := "10:00:00"
	owner := int64(3)
	rows := []*domain.EventOwnership{
		{
			Event: &domain.Event{ID: 1, Name: "学术报告", Date: "2024-03-01", StartTime: "09:00:00", EndTime: "11:00:00", Room: "201", Type: domain.EventTypeLecture},
			Ownership: &domain.OwnershipResult{
				Owners:       []int64{1, 2},
				HandOffTimes: []string{"10:00:00"},
				Timeline: []domain.TimelineEntry{
					{OwnerID: 1, TransitionTime: &handOff},
					{OwnerID: 2},
				},
			},
		},
		{
			Event:     &domain.Event{ID: 2, Name: "期中考试", Date: "2024-03-01", StartTime: "14:00:00", EndTime: "16:00:00", Room: "305", Type: domain.EventTypeExam, ManualOwner: &owner},
			Ownership: &domain.OwnershipResult{Timeline: []domain.TimelineEntry{{OwnerID: 3}}},
		},
	}
	users := map[int64]*domain.User{
		1: {ID: 1, FullName: "王伟"},
		2: {ID: 2, FullName: "李娜"},
	}

	buf, filename, err := OwnershipWorkbook("2024-03-01", rows, users)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filename != "活动归属_2024-03-01.xlsx" {
		t.Errorf("unexpected filename %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("generated file cannot be opened: %v", err)
	}
	defer f.Close()

	tt := []struct {
		cell     string
		expected string
	}{
		{"A1", "2024-03-01 活动归属"},
		{"A2", "开始"},
		{"D3", "学术报告"},
		{"F3", "王伟、李娜"},
		{"G3", "10:00:00"},
		{"H3", "王伟 → 10:00:00；李娜 → 结束"},
		{"I3", "否"},
		{"F4", ""},
		{"H4", "#3 → 结束"},
		{"I4", "是"},
	}

	for _, tc := range tt {
		t.Run(tc.cell, func(t *testing.T) {
			got, err := f.GetCellValue(sheetName, tc.cell)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
