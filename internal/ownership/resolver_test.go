package ownership

import (
	"reflect"
	"slices"
	"testing"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
)

func newEvent(start, end string) *domain.Event {
	return &domain.Event{
		ID:        42,
		Name:      "学术报告",
		Date:      "2024-03-01",
		StartTime: start,
		EndTime:   end,
		Room:      "201",
		Type:      domain.EventTypeLecture,
	}
}

func newBlock(id int64, start, end string, assignments ...domain.ShiftBlockAssignment) *domain.ShiftBlock {
	return &domain.ShiftBlock{
		ID:          id,
		Date:        "2024-03-01",
		StartTime:   start,
		EndTime:     end,
		Assignments: assignments,
	}
}

func assign(userID int64, rooms ...string) domain.ShiftBlockAssignment {
	return domain.ShiftBlockAssignment{UserID: userID, Rooms: rooms}
}

func strPtr(s string) *string {
	return &s
}

func assertEmpty(t *testing.T, result *domain.OwnershipResult) {
	t.Helper()
	if result == nil {
		t.Fatal("result should never be nil")
	}
	if result.Owners == nil || result.HandOffTimes == nil || result.Timeline == nil || result.ShiftBlocks == nil {
		t.Fatal("empty result should use empty slices, not nil")
	}
	if len(result.Owners) != 0 || len(result.HandOffTimes) != 0 || len(result.Timeline) != 0 || len(result.ShiftBlocks) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestResolveOwnershipScenario(t *testing.T) {
	event := newEvent("09:00:00", "11:00:00")
	blocks := []*domain.ShiftBlock{
		newBlock(2, "10:00:00", "12:00:00", assign(bob, "201")),
		newBlock(1, "08:00:00", "10:00:00", assign(alice, "201")),
	}

	result := ResolveOwnership(event, blocks)

	if len(result.ShiftBlocks) != 2 || result.ShiftBlocks[0].ID != 1 || result.ShiftBlocks[1].ID != 2 {
		t.Fatalf("expected blocks sorted by start time, got %+v", result.ShiftBlocks)
	}
	if !slices.Equal(result.Owners, []int64{alice, bob}) {
		t.Errorf("expected owners [alice bob], got %v", result.Owners)
	}
	if !slices.Equal(result.HandOffTimes, []string{"10:00:00"}) {
		t.Errorf("expected one hand-off at 10:00:00, got %v", result.HandOffTimes)
	}
	expected := []domain.TimelineEntry{
		{OwnerID: alice, TransitionTime: strPtr("10:00:00")},
		{OwnerID: bob, TransitionTime: nil},
	}
	if !reflect.DeepEqual(result.Timeline, expected) {
		t.Errorf("unexpected timeline %+v", result.Timeline)
	}
}

func TestResolveOwnershipEmptyCases(t *testing.T) {
	blocks := []*domain.ShiftBlock{
		newBlock(1, "08:00:00", "10:00:00", assign(alice, "201")),
		newBlock(2, "10:00:00", "12:00:00", assign(bob, "201")),
	}

	tt := []struct {
		name   string
		mutate func(e *domain.Event)
		blocks []*domain.ShiftBlock
	}{
		{"no overlap after", func(e *domain.Event) { e.StartTime, e.EndTime = "12:00:00", "13:00:00" }, blocks},
		{"no overlap before", func(e *domain.Event) { e.StartTime, e.EndTime = "06:00:00", "08:00:00" }, blocks},
		{"no blocks", func(e *domain.Event) {}, nil},
		{"other date", func(e *domain.Event) { e.Date = "2024-03-02" }, blocks},
		{"missing date", func(e *domain.Event) { e.Date = "" }, blocks},
		{"missing start", func(e *domain.Event) { e.StartTime = "" }, blocks},
		{"missing end", func(e *domain.Event) { e.EndTime = "" }, blocks},
		{"missing room", func(e *domain.Event) { e.Room = "" }, blocks},
		{"end before start", func(e *domain.Event) { e.StartTime, e.EndTime = "11:00:00", "09:00:00" }, blocks},
		{"exempt type", func(e *domain.Event) { e.Type = domain.EventTypeCourseSeries }, blocks},
		{"exempt type with manual owner", func(e *domain.Event) {
			e.Type = domain.EventTypeCourseSeries
			owner := carol
			e.ManualOwner = &owner
		}, blocks},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			event := newEvent("09:00:00", "11:00:00")
			tc.mutate(event)
			assertEmpty(t, ResolveOwnership(event, tc.blocks))
		})
	}

	assertEmpty(t, ResolveOwnership(nil, blocks))
}

func TestResolveOwnershipRoomWithoutOwner(t *testing.T) {
	event := newEvent("09:00:00", "11:00:00")
	blocks := []*domain.ShiftBlock{
		newBlock(1, "08:00:00", "12:00:00", assign(alice, "305")),
	}

	result := ResolveOwnership(event, blocks)
	if len(result.ShiftBlocks) != 1 {
		t.Errorf("block should still be reported as intersecting, got %d", len(result.ShiftBlocks))
	}
	if len(result.Owners) != 0 || len(result.Timeline) != 0 || len(result.HandOffTimes) != 0 {
		t.Errorf("room without assignment should have no owners, got %+v", result)
	}
}

func TestResolveOwnershipManualOverride(t *testing.T) {
	tt := []struct {
		name   string
		blocks []*domain.ShiftBlock
	}{
		{"with hand-offs", []*domain.ShiftBlock{
			newBlock(1, "08:00:00", "10:00:00", assign(alice, "201")),
			newBlock(2, "10:00:00", "12:00:00", assign(bob, "201")),
		}},
		{"without blocks", nil},
		{"without room owners", []*domain.ShiftBlock{
			newBlock(1, "08:00:00", "12:00:00", assign(alice, "305")),
		}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			event := newEvent("09:00:00", "11:00:00")
			owner := carol
			event.ManualOwner = &owner

			result := ResolveOwnership(event, tc.blocks)
			expected := []domain.TimelineEntry{{OwnerID: carol, TransitionTime: nil}}
			if !reflect.DeepEqual(result.Timeline, expected) {
				t.Errorf("manual owner should win, got %+v", result.Timeline)
			}
			if len(result.HandOffTimes) != 0 {
				t.Errorf("no hand-off should be computed with a manual owner, got %v", result.HandOffTimes)
			}
		})
	}
}

func TestResolveOwnershipHandOffDetection(t *testing.T) {
	tt := []struct {
		name             string
		blocks           []*domain.ShiftBlock
		expectedOwners   []int64
		expectedHandOffs []string
	}{
		{
			name: "same owner across blocks",
			blocks: []*domain.ShiftBlock{
				newBlock(1, "08:00:00", "10:00:00", assign(alice, "201")),
				newBlock(2, "10:00:00", "12:00:00", assign(alice, "201", "202")),
			},
			expectedOwners:   []int64{alice},
			expectedHandOffs: []string{},
		},
		{
			name: "owner set grows",
			blocks: []*domain.ShiftBlock{
				newBlock(1, "08:00:00", "10:00:00", assign(alice, "201")),
				newBlock(2, "10:00:00", "12:00:00", assign(alice, "201"), assign(bob, "201")),
			},
			expectedOwners:   []int64{alice, bob},
			expectedHandOffs: []string{"10:00:00"},
		},
		{
			name: "simultaneous swap of several owners is one hand-off",
			blocks: []*domain.ShiftBlock{
				newBlock(1, "08:00:00", "10:00:00", assign(alice, "201"), assign(bob, "201")),
				newBlock(2, "10:00:00", "12:00:00", assign(carol, "201"), assign(4, "201")),
			},
			expectedOwners:   []int64{alice, bob, carol, 4},
			expectedHandOffs: []string{"10:00:00"},
		},
		{
			name: "same members different order is not a hand-off",
			blocks: []*domain.ShiftBlock{
				newBlock(1, "08:00:00", "10:00:00", assign(alice, "201"), assign(bob, "201")),
				newBlock(2, "10:00:00", "12:00:00", assign(bob, "201"), assign(alice, "201")),
			},
			expectedOwners:   []int64{alice, bob},
			expectedHandOffs: []string{},
		},
		{
			name: "owner returns later",
			blocks: []*domain.ShiftBlock{
				newBlock(1, "08:00:00", "09:30:00", assign(alice, "201")),
				newBlock(2, "09:30:00", "10:00:00", assign(bob, "201")),
				newBlock(3, "10:00:00", "12:00:00", assign(alice, "201")),
			},
			expectedOwners:   []int64{alice, bob},
			expectedHandOffs: []string{"09:30:00", "10:00:00"},
		},
		{
			name: "uncovered block in the middle",
			blocks: []*domain.ShiftBlock{
				newBlock(1, "08:00:00", "09:30:00", assign(alice, "201")),
				newBlock(2, "09:30:00", "10:30:00"),
				newBlock(3, "10:30:00", "12:00:00", assign(alice, "201")),
			},
			expectedOwners:   []int64{alice},
			expectedHandOffs: []string{"09:30:00", "10:30:00"},
		},
		{
			name: "invalid blocks are skipped",
			blocks: []*domain.ShiftBlock{
				newBlock(1, "08:00:00", "12:00:00", assign(alice, "201")),
				newBlock(2, "10:00:00", "10:00:00", assign(bob, "201")),
				newBlock(3, "bad", "12:00:00", assign(carol, "201")),
				nil,
			},
			expectedOwners:   []int64{alice},
			expectedHandOffs: []string{},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result := ResolveOwnership(newEvent("09:00:00", "11:00:00"), tc.blocks)
			if !slices.Equal(result.Owners, tc.expectedOwners) {
				t.Errorf("expected owners %v, got %v", tc.expectedOwners, result.Owners)
			}
			if !slices.Equal(result.HandOffTimes, tc.expectedHandOffs) {
				t.Errorf("expected hand-offs %v, got %v", tc.expectedHandOffs, result.HandOffTimes)
			}
			if len(result.HandOffTimes) > max(len(result.ShiftBlocks)-1, 0) {
				t.Errorf("hand-off count %d exceeds block count %d - 1", len(result.HandOffTimes), len(result.ShiftBlocks))
			}
			if len(result.Timeline) != len(result.Owners) {
				t.Errorf("timeline should have one entry per owner, got %d", len(result.Timeline))
			}
			if n := len(result.Timeline); n > 0 && result.Timeline[n-1].TransitionTime != nil {
				t.Error("last owner should hold the event until its end")
			}
		})
	}
}

func TestResolveOwnershipTieBreakByID(t *testing.T) {
	event := newEvent("09:00:00", "11:00:00")
	blocks := []*domain.ShiftBlock{
		newBlock(7, "08:00:00", "12:00:00", assign(bob, "201")),
		newBlock(3, "08:00:00", "12:00:00", assign(alice, "201")),
	}

	result := ResolveOwnership(event, blocks)
	if result.ShiftBlocks[0].ID != 3 || result.ShiftBlocks[1].ID != 7 {
		t.Errorf("blocks with the same start should be ordered by id, got %d, %d", result.ShiftBlocks[0].ID, result.ShiftBlocks[1].ID)
	}
	if !slices.Equal(result.Owners, []int64{alice, bob}) {
		t.Errorf("expected owners [alice bob], got %v", result.Owners)
	}
}

func TestResolveOwnershipDeterministic(t *testing.T) {
	event := newEvent("09:00:00", "11:00:00")
	blocks := []*domain.ShiftBlock{
		newBlock(3, "10:30:00", "12:00:00", assign(carol, "201"), assign(alice, "201")),
		newBlock(1, "08:00:00", "10:00:00", assign(alice, "201"), assign(bob, "201")),
		newBlock(2, "10:00:00", "10:30:00", assign(bob, "201")),
	}

	first := ResolveOwnership(event, blocks)
	for i := 0; i < 10; i++ {
		if next := ResolveOwnership(event, blocks); !reflect.DeepEqual(first, next) {
			t.Fatalf("results differ between calls: %+v vs %+v", first, next)
		}
	}
}

func TestResolveOwnershipAddingCoveringBlock(t *testing.T) {
	event := newEvent("09:00:00", "11:00:00")
	blocks := []*domain.ShiftBlock{
		newBlock(1, "13:00:00", "15:00:00", assign(alice, "201")),
	}
	assertEmpty(t, ResolveOwnership(event, blocks))

	blocks = append(blocks, newBlock(2, "08:00:00", "12:00:00", assign(bob, "201")))
	result := ResolveOwnership(event, blocks)

	if !slices.Equal(result.Owners, []int64{bob}) {
		t.Errorf("expected owners [bob], got %v", result.Owners)
	}
	if len(result.HandOffTimes) != 0 {
		t.Errorf("expected no hand-offs, got %v", result.HandOffTimes)
	}
	expected := []domain.TimelineEntry{{OwnerID: bob, TransitionTime: nil}}
	if !reflect.DeepEqual(result.Timeline, expected) {
		t.Errorf("unexpected timeline %+v", result.Timeline)
	}
}

func TestBuildTimeline(t *testing.T) {
	tt := []struct {
		name     string
		owners   []int64
		handOffs []string
		expected []domain.TimelineEntry
	}{
		{"no owners", nil, []string{"10:00:00"}, []domain.TimelineEntry{}},
		{"more hand-offs than owners", []int64{alice, bob}, []string{"09:30:00", "10:00:00"}, []domain.TimelineEntry{
			{OwnerID: alice, TransitionTime: strPtr("09:30:00")},
			{OwnerID: bob},
		}},
		{"fewer hand-offs than owners", []int64{alice, bob, carol}, []string{"10:00:00"}, []domain.TimelineEntry{
			{OwnerID: alice, TransitionTime: strPtr("10:00:00")},
			{OwnerID: bob},
			{OwnerID: carol},
		}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := buildTimeline(tc.owners, tc.handOffs); !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("expected %+v, got %+v", tc.expected, got)
			}
		})
	}
}
