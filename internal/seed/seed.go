package seed

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/utils"
)

var rosterHeaders = []string{"日期", "开始", "结束", "NetID", "姓名", "邮箱", "角色", "教室"}

// RosterRow 对应值班表中的一行：某个值班员在某个班次负责的教室
type RosterRow struct {
	Date      string
	StartTime string
	EndTime   string
	NetID     string
	FullName  string
	Email     string
	Role      domain.Role
	Rooms     []string
}

type RosterStore interface {
	GetUserByUsername(username string) (*domain.User, error)
	CreateUser(user *domain.User) error
	GetShiftBlocksForDate(date string) ([]*domain.ShiftBlock, error)
	CreateShiftBlock(block *domain.ShiftBlock) error
}

// splitRooms 支持用顿号、逗号或空格分隔的教室列表
func splitRooms(s string) []string {
	rooms := strings.FieldsFunc(s, func(r rune) bool {
		return r == '、' || r == ',' || r == '，' || r == ' '
	})
	return slices.Compact(rooms)
}

// ParseRoster 读取值班表 CSV，第一行必须是表头
func ParseRoster(r io.Reader) ([]RosterRow, error) {
	reader := csv.NewReader(r)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	index := make(map[string]int)
	for i, header := range headers {
		index[strings.TrimSpace(header)] = i
	}
	for _, header := range rosterHeaders {
		if _, ok := index[header]; !ok {
			return nil, fmt.Errorf("没有找到列 %s", header)
		}
	}

	rows := make([]RosterRow, 0)
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		line++

		get := func(header string) string {
			return strings.TrimSpace(record[index[header]])
		}

		row := RosterRow{
			Date:      get("日期"),
			StartTime: get("开始"),
			EndTime:   get("结束"),
			NetID:     get("NetID"),
			FullName:  get("姓名"),
			Email:     get("邮箱"),
			Role:      domain.Role(get("角色")),
			Rooms:     splitRooms(get("教室")),
		}
		if row.Role == "" {
			row.Role = domain.RoleStaff
		}
		if row.NetID == "" {
			return nil, fmt.Errorf("第 %d 行缺少 NetID", line)
		}
		if len(row.Rooms) == 0 {
			return nil, fmt.Errorf("第 %d 行没有负责的教室", line)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// BuildShiftBlocks 把同一日期、同一时间段的行合并为一个班次，保持在表中首次出现的顺序
func BuildShiftBlocks(rows []RosterRow, userIDs map[string]int64) ([]*domain.ShiftBlock, error) {
	blocks := make([]*domain.ShiftBlock, 0)
	byKey := make(map[string]*domain.ShiftBlock)

	for _, row := range rows {
		userID, ok := userIDs[row.NetID]
		if !ok {
			return nil, fmt.Errorf("值班员 %s 不存在", row.NetID)
		}

		start, err := utils.NormalizeClock(row.StartTime)
		if err != nil {
			return nil, fmt.Errorf("值班员 %s 的开始时间格式错误", row.NetID)
		}
		end, err := utils.NormalizeClock(row.EndTime)
		if err != nil {
			return nil, fmt.Errorf("值班员 %s 的结束时间格式错误", row.NetID)
		}

		key := row.Date + " " + start + " " + end
		block, ok := byKey[key]
		if !ok {
			block = &domain.ShiftBlock{
				Date:        row.Date,
				StartTime:   start,
				EndTime:     end,
				Assignments: make([]domain.ShiftBlockAssignment, 0),
			}
			byKey[key] = block
			blocks = append(blocks, block)
		}

		// 同一个值班员在同一班次出现多行时合并教室
		merged := false
		for i := range block.Assignments {
			if block.Assignments[i].UserID == userID {
				block.Assignments[i].Rooms = append(block.Assignments[i].Rooms, row.Rooms...)
				merged = true
				break
			}
		}
		if !merged {
			block.Assignments = append(block.Assignments, domain.ShiftBlockAssignment{
				UserID: userID,
				Rooms:  append([]string{}, row.Rooms...),
			})
		}
	}

	for _, block := range blocks {
		if err := utils.ValidateShiftBlock(block); err != nil {
			return nil, fmt.Errorf("%s %s-%s 的班次无效: %w", block.Date, block.StartTime, block.EndTime, err)
		}
	}

	return blocks, nil
}

// ensureUsers 保证值班表中出现的所有值班员都存在，不存在的用 passwordHash 新建
func ensureUsers(store RosterStore, rows []RosterRow, passwordHash string) (map[string]int64, error) {
	userIDs := make(map[string]int64)
	for _, row := range rows {
		if _, ok := userIDs[row.NetID]; ok {
			continue
		}

		user, err := store.GetUserByUsername(row.NetID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}

			// 表示该值班员不在数据库中，需要新建并插入
			user = &domain.User{
				Username:     row.NetID,
				PasswordHash: passwordHash,
				FullName:     row.FullName,
				Email:        row.Email,
				Role:         row.Role,
			}
			if err := store.CreateUser(user); err != nil {
				return nil, fmt.Errorf("插入值班员 %s 失败: %w", row.NetID, err)
			}
		}

		userIDs[row.NetID] = user.ID
	}
	return userIDs, nil
}

// SeedRoster 把值班表导入为班次，与已有班次冲突的会被跳过，返回成功插入的班次数量
func SeedRoster(store RosterStore, path string, passwordHash string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	rows, err := ParseRoster(file)
	if err != nil {
		return 0, err
	}

	userIDs, err := ensureUsers(store, rows, passwordHash)
	if err != nil {
		return 0, err
	}

	blocks, err := BuildShiftBlocks(rows, userIDs)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, block := range blocks {
		existing, err := store.GetShiftBlocksForDate(block.Date)
		if err != nil {
			return inserted, err
		}
		if err := utils.ValidateShiftBlockConflict(block, existing); err != nil {
			slog.Warn("跳过冲突的班次", "date", block.Date, "start", block.StartTime, "end", block.EndTime, "error", err)
			continue
		}

		if err := store.CreateShiftBlock(block); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}
