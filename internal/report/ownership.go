package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "活动归属"

var headers = []string{"开始", "结束", "教室", "活动", "类型", "负责人", "交接时间", "时间线", "人工指定", "班次交接"}

// OwnershipWorkbook 生成某天所有活动归属情况的 Excel 文件，返回文件内容和建议的文件名
func OwnershipWorkbook(date string, rows []*domain.EventOwnership, users map[int64]*domain.User) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", err
	}

	widths := []float64{10, 10, 10, 28, 10, 20, 14, 40, 12, 10}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, "", err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", err
	}

	// 标题行
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 活动归属", date)); err != nil {
		return nil, "", err
	}
	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return nil, "", err
	}

	// 表头
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, "", err
		}
	}
	if err := f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle); err != nil {
		return nil, "", err
	}

	// 数据行
	for i, row := range rows {
		values := rowValues(row, users)
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+3)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, "", err
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", err
	}

	return buf, fmt.Sprintf("活动归属_%s.xlsx", date), nil
}

func rowValues(row *domain.EventOwnership, users map[int64]*domain.User) []string {
	event := row.Event
	result := row.Ownership
	if result == nil {
		result = domain.NewEmptyOwnershipResult()
	}

	owners := make([]string, 0, len(result.Owners))
	for _, id := range result.Owners {
		owners = append(owners, displayName(id, users))
	}

	timeline := make([]string, 0, len(result.Timeline))
	for _, entry := range result.Timeline {
		until := "结束"
		if entry.TransitionTime != nil {
			until = *entry.TransitionTime
		}
		timeline = append(timeline, fmt.Sprintf("%s → %s", displayName(entry.OwnerID, users), until))
	}

	manual := "否"
	if event.ManualOwner != nil {
		manual = "是"
	}

	handOff := "-"
	if row.HandOffTime != nil {
		handOff = *row.HandOffTime
	}

	return []string{
		event.StartTime,
		event.EndTime,
		event.Room,
		event.Name,
		string(event.Type),
		strings.Join(owners, "、"),
		strings.Join(result.HandOffTimes, "、"),
		strings.Join(timeline, "；"),
		manual,
		handOff,
	}
}

func displayName(id int64, users map[int64]*domain.User) string {
	if user, ok := users[id]; ok {
		return user.FullName
	}
	return "#" + strconv.FormatInt(id, 10)
}
