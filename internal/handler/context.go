package handler

type ContextKey string

var (
	RequestIDCtxKey     ContextKey = "requestID"
	RoleCtxKey          ContextKey = "role"
	SubCtxKey           ContextKey = "sub"
	MyInfoCtx           ContextKey = "myInfo"
	UserInfoCtx         ContextKey = "userInfo"
	EventCtx            ContextKey = "event"
	ShiftBlockCtx       ContextKey = "shiftBlock"
	WeeklyShiftBlockCtx ContextKey = "weeklyShiftBlock"
)
