package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/config"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/dispatch"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/repository"
)

type Handler struct {
	validate      *validator.Validate
	config        *config.Config
	repository    *repository.Repository
	translator    ut.Translator
	mailPublisher dispatch.MailPublisher
	redisClient   *redis.Client
	dispatch      *dispatch.Service

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, publisher dispatch.MailPublisher, rdb *redis.Client, svc *dispatch.Service) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:      validate,
		config:        cfg,
		repository:    repo,
		translator:    trans,
		mailPublisher: publisher,
		redisClient:   rdb,
		dispatch:      svc,

		Mux: chi.NewRouter(),
	}, nil
}

var (
	schedulers = []domain.Role{domain.RoleDispatcher, domain.RoleAdmin}
	admins     = []domain.Role{domain.RoleAdmin}
)

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.requestID)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Get("/events", h.GetMyEvents)
			r.Patch("/password", h.UpdateMyPassword)
			r.Route("/update-email", func(r chi.Router) {
				r.Post("/require", h.RequireUpdateEmail)
				r.Post("/confirm", h.ConfirmUpdateEmail)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredRole(admins)).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo) // 排班时需要看到所有人
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole(admins)).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole(admins)).Delete("/", h.DeleteUser)
				r.With(h.RequiredRole(admins)).Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.GetEvents)
			r.With(h.RequiredRole(schedulers)).Post("/", h.CreateEvent)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.event)
				r.Get("/", h.GetEvent)
				r.Get("/ownership", h.GetEventOwnership)
				r.Get("/hand-off-time", h.GetEventHandOffTime)
				r.With(h.RequiredRole(schedulers)).Patch("/", h.UpdateEvent)
				r.With(h.RequiredRole(schedulers)).Patch("/manual-owner", h.UpdateEventManualOwner)
				r.With(h.RequiredRole(schedulers)).Delete("/", h.DeleteEvent)
			})
		})

		r.Route("/ownership", func(r chi.Router) {
			r.Get("/", h.GetOwnershipForDate)
			r.Get("/export", h.ExportOwnership)
			r.With(h.RequiredRole(schedulers)).Post("/notify", h.NotifyHandOffs)
		})

		r.Route("/shift-blocks", func(r chi.Router) {
			r.Get("/", h.GetShiftBlocks)
			r.With(h.RequiredRole(schedulers)).Post("/", h.CreateShiftBlock)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.shiftBlock)
				r.Get("/", h.GetShiftBlock)
				r.With(h.RequiredRole(schedulers)).Patch("/", h.UpdateShiftBlock)
				r.With(h.RequiredRole(schedulers)).Delete("/", h.DeleteShiftBlock)
			})
		})

		r.Route("/weekly-shift-blocks", func(r chi.Router) {
			r.Get("/", h.GetWeeklyShiftBlocks)
			r.With(h.RequiredRole(schedulers)).Post("/", h.CreateWeeklyShiftBlock)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.weeklyShiftBlock)
				r.Get("/", h.GetWeeklyShiftBlock)
				r.With(h.RequiredRole(schedulers)).Delete("/", h.DeleteWeeklyShiftBlock)
			})
		})
	})
}
