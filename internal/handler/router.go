package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/loan-coach/backend/internal/handler/conversation"
	"github.com/zhouzirui/loan-coach/backend/internal/handler/scenario"
	middlewarePkg "github.com/zhouzirui/loan-coach/backend/internal/middleware"
	scenarioModel "github.com/zhouzirui/loan-coach/backend/internal/model/scenario"
	chatService "github.com/zhouzirui/loan-coach/backend/internal/service/chat"
	feedbackService "github.com/zhouzirui/loan-coach/backend/internal/service/feedback"
	"github.com/zhouzirui/loan-coach/backend/pkg/utils"
)

// Deps 汇总路由需要的服务。
type Deps struct {
	Scenarios     scenarioModel.Store
	Chat          *chatService.Service
	Feedback      *feedbackService.Service
	Auth          *middlewarePkg.Authenticator
	AllowedOrigin string
	ExposeErrors  bool
	Log           zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	scenarioHandler := scenario.New(deps.Scenarios)
	conversationHandler := conversation.New(deps.Chat, deps.Feedback, deps.Scenarios, deps.ExposeErrors, deps.Log)

	r.Route("/api", func(api chi.Router) {
		scenarioHandler.RegisterRoutes(api)

		// 对话接口全部需要身份
		api.Route("/conversations", func(conv chi.Router) {
			conv.Use(deps.Auth.Require)
			conversationHandler.RegisterRoutes(conv)
		})
	})

	return r
}
