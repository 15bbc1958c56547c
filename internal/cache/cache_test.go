package cache

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestOwnershipKey(t *testing.T) {
	owner := int64(7)

	tt := []struct {
		name       string
		generation int64
		event      domain.Event
		expected   string
	}{
		{
			name:       "without manual owner",
			generation: 0,
			event:      domain.Event{ID: 42, Date: "2024-03-01", Version: 1},
			expected:   "ownership_0_42_v1_2024-03-01_none",
		},
		{
			name:       "with manual owner",
			generation: 3,
			event:      domain.Event{ID: 42, Date: "2024-03-01", Version: 2, ManualOwner: &owner},
			expected:   "ownership_3_42_v2_2024-03-01_7",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := ownershipKey(tc.generation, &tc.event); got != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestGenerationChangesKey(t *testing.T) {
	event := &domain.Event{ID: 1, Date: "2024-03-01", Version: 1}
	if ownershipKey(1, event) == ownershipKey(2, event) {
		t.Error("keys of different generations must differ")
	}
	if generationKey("2024-03-01") != "ownership_gen_2024-03-01" {
		t.Errorf("unexpected generation key %s", generationKey("2024-03-01"))
	}
}

func TestAlertKey(t *testing.T) {
	if got := alertKey(42, "2024-03-01", "10:15"); got != "handoff_alert_42_2024-03-01_10:15" {
		t.Errorf("unexpected alert key %s", got)
	}
}

func TestOwnershipCacheRoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	c := NewOwnershipCache(rdb, time.Hour)
	ctx := context.Background()

	handOff := "10:15:00"
	tt := []struct {
		name   string
		event  domain.Event
		result *domain.OwnershipResult
	}{
		{
			name:   "empty result keeps empty arrays",
			event:  domain.Event{ID: 1, Date: "2024-03-01", Version: 1},
			result: domain.NewEmptyOwnershipResult(),
		},
		{
			name:  "hand-off timeline",
			event: domain.Event{ID: 2, Date: "2024-03-01", Version: 3},
			result: &domain.OwnershipResult{
				ShiftBlocks:  []domain.ShiftBlock{{ID: 5, Date: "2024-03-01", StartTime: "09:00:00", EndTime: "10:15:00"}},
				Owners:       []int64{1, 2},
				HandOffTimes: []string{handOff},
				Timeline: []domain.TimelineEntry{
					{OwnerID: 1, TransitionTime: &handOff},
					{OwnerID: 2},
				},
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			gen, err := c.Generation(ctx, tc.event.Date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok, err := c.Get(ctx, gen, &tc.event); err != nil || ok {
				t.Fatalf("expected a miss before Set, got ok=%v err=%v", ok, err)
			}
			if err := c.Set(ctx, gen, &tc.event, tc.result); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got, ok, err := c.Get(ctx, gen, &tc.event)
			if err != nil || !ok {
				t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
			}
			if got.Owners == nil || got.HandOffTimes == nil || got.Timeline == nil || got.ShiftBlocks == nil {
				t.Errorf("arrays must survive the round trip as non-nil, got %+v", got)
			}
			if !slices.Equal(got.Owners, tc.result.Owners) {
				t.Errorf("expected owners %v, got %v", tc.result.Owners, got.Owners)
			}
			if !slices.Equal(got.HandOffTimes, tc.result.HandOffTimes) {
				t.Errorf("expected hand-off times %v, got %v", tc.result.HandOffTimes, got.HandOffTimes)
			}
			if len(got.Timeline) != len(tc.result.Timeline) {
				t.Fatalf("expected %d timeline entries, got %d", len(tc.result.Timeline), len(got.Timeline))
			}
			for i, entry := range got.Timeline {
				want := tc.result.Timeline[i]
				if entry.OwnerID != want.OwnerID {
					t.Errorf("entry %d: expected owner %d, got %d", i, want.OwnerID, entry.OwnerID)
				}
				if (entry.TransitionTime == nil) != (want.TransitionTime == nil) {
					t.Errorf("entry %d: transition time nil-ness changed", i)
				} else if entry.TransitionTime != nil && *entry.TransitionTime != *want.TransitionTime {
					t.Errorf("entry %d: expected transition %s, got %s", i, *want.TransitionTime, *entry.TransitionTime)
				}
			}
		})
	}
}

func TestOwnershipCacheInvalidateDate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	c := NewOwnershipCache(rdb, time.Hour)
	ctx := context.Background()

	event := &domain.Event{ID: 1, Date: "2024-03-01", Version: 1}
	other := &domain.Event{ID: 2, Date: "2024-03-02", Version: 1}
	result := &domain.OwnershipResult{Owners: []int64{1}}

	tt := []struct {
		name     string
		mutate   func(t *testing.T, staleGen int64)
		event    *domain.Event
		expected bool
	}{
		{
			name: "invalidation hides earlier entries",
			mutate: func(t *testing.T, staleGen int64) {
				if err := c.InvalidateDate(ctx, event.Date); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
			event:    event,
			expected: false,
		},
		{
			name: "write under a stale generation stays hidden",
			mutate: func(t *testing.T, staleGen int64) {
				if err := c.InvalidateDate(ctx, event.Date); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if err := c.Set(ctx, staleGen, event, result); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
			event:    event,
			expected: false,
		},
		{
			name: "other dates are untouched",
			mutate: func(t *testing.T, staleGen int64) {
				if err := c.InvalidateDate(ctx, event.Date); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
			event:    other,
			expected: true,
		},
		{
			name: "entries expire",
			mutate: func(t *testing.T, staleGen int64) {
				mr.FastForward(2 * time.Hour)
			},
			event:    event,
			expected: false,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mr.FlushAll()

			for _, e := range []*domain.Event{event, other} {
				gen, err := c.Generation(ctx, e.Date)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if err := c.Set(ctx, gen, e, result); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}

			staleGen, err := c.Generation(ctx, event.Date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.mutate(t, staleGen)

			gen, err := c.Generation(ctx, tc.event.Date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, ok, err := c.Get(ctx, gen, tc.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tc.expected {
				t.Errorf("expected hit=%v, got %v", tc.expected, ok)
			}
		})
	}
}

func TestAlertDeduper(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := NewAlertDeduper(rdb, time.Hour)
	ctx := context.Background()

	mark := func(t *testing.T, eventID int64, handOff string) bool {
		t.Helper()
		ok, err := d.MarkAlerted(ctx, eventID, "2024-03-01", handOff)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return ok
	}

	tt := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "second mark is rejected",
			run: func(t *testing.T) {
				if !mark(t, 1, "10:15") {
					t.Error("first mark should succeed")
				}
				if mark(t, 1, "10:15") {
					t.Error("second mark should be rejected")
				}
			},
		},
		{
			name: "different hand-off times are independent",
			run: func(t *testing.T) {
				if !mark(t, 1, "10:15") || !mark(t, 1, "11:00") || !mark(t, 2, "10:15") {
					t.Error("distinct hand-offs should each be marked once")
				}
			},
		},
		{
			name: "forget allows a retry",
			run: func(t *testing.T) {
				mark(t, 1, "10:15")
				if err := d.Forget(ctx, 1, "2024-03-01", "10:15"); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !mark(t, 1, "10:15") {
					t.Error("mark after forget should succeed")
				}
			},
		},
		{
			name: "marks expire",
			run: func(t *testing.T) {
				mark(t, 1, "10:15")
				mr.FastForward(2 * time.Hour)
				if !mark(t, 1, "10:15") {
					t.Error("mark after expiry should succeed")
				}
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mr.FlushAll()
			tc.run(t)
		})
	}
}
