package seed

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

const rosterCSV = `日期,开始,结束,NetID,姓名,邮箱,角色,教室
2025-03-03,08:00,10:00,zhangwei,张伟,zhangwei@example.com,值班员,A101、A102
2025-03-03,08:00,10:00,lina,李娜,lina@example.com,,B201
2025-03-03,08:00,10:00,zhangwei,张伟,zhangwei@example.com,值班员,A103
2025-03-03,10:00,12:00,wangfang,王芳,wangfang@example.com,调度员,"A101, A102"
`

func TestParseRoster(t *testing.T) {
	rows, err := ParseRoster(strings.NewReader(rosterCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if !slices.Equal(rows[0].Rooms, []string{"A101", "A102"}) {
		t.Errorf("unexpected rooms: %v", rows[0].Rooms)
	}
	if rows[1].Role != domain.RoleStaff {
		t.Errorf("empty role should default to staff, got %s", rows[1].Role)
	}
	if !slices.Equal(rows[3].Rooms, []string{"A101", "A102"}) {
		t.Errorf("comma separated rooms not split: %v", rows[3].Rooms)
	}
}

func TestParseRosterErrors(t *testing.T) {
	tt := []struct {
		name string
		csv  string
	}{
		{"missing column", "日期,开始,结束,NetID\n"},
		{"missing netid", "日期,开始,结束,NetID,姓名,邮箱,角色,教室\n2025-03-03,08:00,10:00,,张伟,a@b.c,,A101\n"},
		{"missing rooms", "日期,开始,结束,NetID,姓名,邮箱,角色,教室\n2025-03-03,08:00,10:00,zw,张伟,a@b.c,,\n"},
		{"empty file", ""},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseRoster(strings.NewReader(tc.csv)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildShiftBlocks(t *testing.T) {
	rows, err := ParseRoster(strings.NewReader(rosterCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userIDs := map[string]int64{"zhangwei": 1, "lina": 2, "wangfang": 3}
	blocks, err := BuildShiftBlocks(rows, userIDs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}

	first := blocks[0]
	if first.StartTime != "08:00:00" || first.EndTime != "10:00:00" {
		t.Errorf("times should be normalized, got %s-%s", first.StartTime, first.EndTime)
	}
	if len(first.Assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(first.Assignments))
	}
	if first.Assignments[0].UserID != 1 || !slices.Equal(first.Assignments[0].Rooms, []string{"A101", "A102", "A103"}) {
		t.Errorf("rows of the same user should be merged, got %+v", first.Assignments[0])
	}

	if _, err := BuildShiftBlocks(rows, map[string]int64{"zhangwei": 1}); err == nil {
		t.Error("unknown user should be rejected")
	}
}

type fakeRosterStore struct {
	users  map[string]*domain.User
	blocks []*domain.ShiftBlock
	nextID int64
}

func (f *fakeRosterStore) GetUserByUsername(username string) (*domain.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeRosterStore) CreateUser(user *domain.User) error {
	f.nextID++
	user.ID = f.nextID
	f.users[user.Username] = user
	return nil
}

func (f *fakeRosterStore) GetShiftBlocksForDate(date string) ([]*domain.ShiftBlock, error) {
	blocks := make([]*domain.ShiftBlock, 0)
	for _, block := range f.blocks {
		if block.Date == date {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func (f *fakeRosterStore) CreateShiftBlock(block *domain.ShiftBlock) error {
	f.nextID++
	block.ID = f.nextID
	f.blocks = append(f.blocks, block)
	return nil
}

func TestSeedRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	if err := os.WriteFile(path, []byte(rosterCSV), 0o600); err != nil {
		t.Fatalf("failed to write roster: %v", err)
	}

	store := &fakeRosterStore{
		users: map[string]*domain.User{
			"lina": {ID: 100, Username: "lina"},
		},
		// 与 10:00-12:00 的班次冲突
		blocks: []*domain.ShiftBlock{{ID: 200, Date: "2025-03-03", StartTime: "11:00:00", EndTime: "13:00:00"}},
	}

	inserted, err := SeedRoster(store, path, "hash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 1 {
		t.Errorf("expected 1 inserted block, got %d", inserted)
	}
	if len(store.users) != 3 {
		t.Errorf("expected 2 new users, got %d users", len(store.users))
	}
	if store.users["zhangwei"].PasswordHash != "hash" {
		t.Error("new users should use the given password hash")
	}
	if store.blocks[1].Assignments[1].UserID != 100 {
		t.Errorf("existing user should be reused, got %+v", store.blocks[1].Assignments)
	}
}
