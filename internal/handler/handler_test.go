package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/cache"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/config"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/dispatch"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

const testSecret = "test-secret"

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.Expiration = 1

	h, err := NewHandler(cfg, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return h
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func signToken(t *testing.T, secret, role string, method jwt.SigningMethod) string {
	t.Helper()

	token := jwt.NewWithClaims(method, AuthClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Subject:   "7",
		},
	})
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return ss
}

func TestRequestID(t *testing.T) {
	h := newTestHandler(t)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r)
	})

	tt := []struct {
		name     string
		header   string
		wantKeep bool
	}{
		{"generated when missing", "", false},
		{"kept when provided", "abc-123", true},
		{"regenerated when too long", strings.Repeat("x", requestIDMaxLen+1), false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(requestIDHeader, tc.header)
			}
			rec := httptest.NewRecorder()

			h.requestID(next).ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("request id should be set in context")
			}
			if got := rec.Header().Get(requestIDHeader); got != seen {
				t.Errorf("response header %q differs from context %q", got, seen)
			}
			if tc.wantKeep != (seen == tc.header) {
				t.Errorf("wantKeep=%v, got id %q for header %q", tc.wantKeep, seen, tc.header)
			}
		})
	}
}

func TestRequiredRole(t *testing.T) {
	h := newTestHandler(t)

	tt := []struct {
		name    string
		role    string
		allowed bool
	}{
		{"admin", string(domain.RoleAdmin), true},
		{"dispatcher", string(domain.RoleDispatcher), true},
		{"staff", string(domain.RoleStaff), false},
		{"no role", "", false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.role != "" {
				req = req.WithContext(context.WithValue(req.Context(), RoleCtxKey, tc.role))
			}
			rec := httptest.NewRecorder()

			h.RequiredRole(schedulers)(next).ServeHTTP(rec, req)

			if called != tc.allowed {
				t.Errorf("expected allowed=%v, got %v", tc.allowed, called)
			}
			if !tc.allowed {
				if resp := decodeResponse(t, rec); resp.Success || resp.Message != "权限不足" {
					t.Errorf("unexpected response: %+v", resp)
				}
			}
		})
	}
}

func TestAuth(t *testing.T) {
	h := newTestHandler(t)

	tt := []struct {
		name   string
		cookie string
		wantOK bool
	}{
		{"valid token", signToken(t, testSecret, string(domain.RoleDispatcher), jwt.SigningMethodHS256), true},
		{"wrong secret", signToken(t, "other", string(domain.RoleDispatcher), jwt.SigningMethodHS256), false},
		{"wrong method", signToken(t, testSecret, string(domain.RoleDispatcher), jwt.SigningMethodHS512), false},
		{"garbage", "not-a-token", false},
		{"no cookie", "", false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var role, sub string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				role, _ = r.Context().Value(RoleCtxKey).(string)
				sub, _ = r.Context().Value(SubCtxKey).(string)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()

			h.auth(next).ServeHTTP(rec, req)

			if tc.wantOK {
				if role != string(domain.RoleDispatcher) || sub != "7" {
					t.Errorf("unexpected claims: role=%q sub=%q", role, sub)
				}
				return
			}
			if role != "" {
				t.Error("next handler should not be called")
			}
			if resp := decodeResponse(t, rec); resp.Success {
				t.Errorf("expected failure, got %+v", resp)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	h := newTestHandler(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.recoverer(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Success || resp.Message != "服务器内部错误" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestDateQuery(t *testing.T) {
	tt := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"valid", "/?date=2024-03-01", "2024-03-01", false},
		{"missing", "/", "", true},
		{"bad format", "/?date=2024/03/01", "", true},
		{"impossible date", "/?date=2024-02-30", "", true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			got, err := dateQuery(req, "date")
			if tc.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestBadRequestTranslatesValidationErrors(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"name":""}`))
	rec := httptest.NewRecorder()

	h.CreateEvent(rec, req)

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(resp.Message, "Name") && !strings.Contains(resp.Message, "为必填字段") {
		t.Errorf("expected translated validation message, got %q", resp.Message)
	}
}

func TestEventValidationBeforeStore(t *testing.T) {
	h := newTestHandler(t)

	tt := []struct {
		name string
		body string
		want string
	}{
		{
			name: "inverted interval",
			body: `{"name":"讲座","date":"2024-03-01","startTime":"11:00","endTime":"10:00","room":"201","type":"讲座"}`,
			want: "结束时间必须晚于开始时间",
		},
		{
			name: "unknown type",
			body: `{"name":"讲座","date":"2024-03-01","startTime":"09:00","endTime":"10:00","room":"201","type":"派对"}`,
			want: "不支持的活动类型 派对",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			h.CreateEvent(rec, req)

			if resp := decodeResponse(t, rec); resp.Success || resp.Message != tc.want {
				t.Errorf("expected %q, got %+v", tc.want, resp)
			}
		})
	}
}

func TestUpdateImportedEventRejected(t *testing.T) {
	h := newTestHandler(t)

	event := &domain.Event{ID: 1, Source: "calendar", Date: "2024-03-01", StartTime: "09:00:00", EndTime: "10:00:00", Room: "201", Type: domain.EventTypeLecture}
	req := httptest.NewRequest(http.MethodPatch, "/events/1", strings.NewReader(`{"name":"新名字"}`))
	req = req.WithContext(context.WithValue(req.Context(), EventCtx, event))
	rec := httptest.NewRecorder()

	h.UpdateEvent(rec, req)

	if resp := decodeResponse(t, rec); resp.Success || resp.Message != "导入的活动只能修改负责人" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if event.Name != "" {
		t.Error("imported event should not be modified")
	}
}

func TestInvalidateOwnershipAfterUserRemoval(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ownershipCache := cache.NewOwnershipCache(rdb, time.Hour)
	h := newTestHandler(t)
	h.dispatch = dispatch.NewService(nil, nil, dispatch.WithCache(ownershipCache))

	tt := []struct {
		name     string
		dates    []string
		expected map[string]int64
	}{
		{
			name:     "no cascaded assignments",
			dates:    []string{},
			expected: map[string]int64{"2024-03-01": 0},
		},
		{
			name:     "every affected date moves on",
			dates:    []string{"2024-03-01", "2024-03-04"},
			expected: map[string]int64{"2024-03-01": 1, "2024-03-04": 1, "2024-03-02": 0},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mr.FlushAll()
			req := httptest.NewRequest(http.MethodDelete, "/users/7", nil)

			h.invalidateOwnership(req, tc.dates...)

			for date, want := range tc.expected {
				got, err := ownershipCache.Generation(req.Context(), date)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != want {
					t.Errorf("date %s: expected generation %d, got %d", date, want, got)
				}
			}
		})
	}
}
