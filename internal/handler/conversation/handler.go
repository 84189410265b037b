package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/loan-coach/backend/internal/middleware"
	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/loan-coach/backend/internal/model/scenario"
	chatService "github.com/zhouzirui/loan-coach/backend/internal/service/chat"
	feedbackService "github.com/zhouzirui/loan-coach/backend/internal/service/feedback"
	"github.com/zhouzirui/loan-coach/backend/pkg/utils"
)

// Handler 对话训练服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	feedbackSvc  *feedbackService.Service
	scenarios    scenario.Store
	exposeErrors bool
	log          zerolog.Logger
}

// New 创建对话处理器。exposeErrors 为 true 时 500 响应附带错误细节。
func New(chatSvc *chatService.Service, feedbackSvc *feedbackService.Service, scenarios scenario.Store, exposeErrors bool, log zerolog.Logger) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		feedbackSvc:  feedbackSvc,
		scenarios:    scenarios,
		exposeErrors: exposeErrors,
		log:          log.With().Str("component", "conversation_handler").Logger(),
	}
}

// RegisterRoutes 注册对话相关的路由，调用方负责挂载鉴权中间件
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/start", h.handleStart)
	r.Get("/history", h.handleHistory)
	r.Post("/{id}/message", h.handleMessage)
	r.Post("/{id}/end", h.handleEnd)
	r.Post("/{id}/analyze", h.handleAnalyze)
}

// handleStart 创建对话
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Scenario        string `json:"scenario"`
		DifficultyLevel string `json:"difficultyLevel"`
		AdditionalInfo  string `json:"additionalInfo"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	h.log.Debug().
		Str("scenario", payload.Scenario).
		Str("difficulty", payload.DifficultyLevel).
		Msg("start conversation requested")

	res, err := h.chatSvc.Start(r.Context(), middleware.UserIDFromContext(r.Context()), payload.Scenario)
	if err != nil {
		h.respondServiceError(w, err, "Server error")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, res)
}

// handleMessage 处理坐席发言
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content         string `json:"content"`
		Difficulty      string `json:"difficulty"`
		DifficultyLevel string `json:"difficultyLevel"`
		AdditionalInfo  string `json:"additionalInfo"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	// 兼容开始对话时使用的 difficultyLevel 字段
	difficulty := payload.Difficulty
	if difficulty == "" {
		difficulty = payload.DifficultyLevel
	}

	res, err := h.chatSvc.SubmitTurn(r.Context(), chi.URLParam(r, "id"), chatService.TurnRequest{
		Content:        payload.Content,
		Difficulty:     difficulty,
		AdditionalInfo: payload.AdditionalInfo,
	})
	if err != nil {
		h.respondServiceError(w, err, "Failed to process message")
		return
	}
	utils.RespondJSON(w, http.StatusOK, res)
}

// handleEnd 结束对话
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	res, err := h.chatSvc.End(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err, "Server error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, res)
}

// handleAnalyze 为对话评分，请求体可选
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Messages []conversation.Message `json:"messages"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	res, err := h.feedbackSvc.Analyze(r.Context(), chi.URLParam(r, "id"), payload.Messages)
	if err != nil {
		h.respondServiceError(w, err, "Failed to analyze conversation")
		return
	}
	utils.RespondJSON(w, http.StatusOK, res)
}

// handleHistory 分页列出已完成的对话
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parsePositive(query.Get("page"))
	limit := parsePositive(query.Get("limit"))

	res, err := h.chatSvc.History(r.Context(), middleware.UserIDFromContext(r.Context()), page, limit)
	if err != nil {
		h.respondServiceError(w, err, "Server error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, res)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondServiceError 把服务层错误映射为HTTP状态码
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, serverMessage string) {
	switch {
	case errors.Is(err, chatService.ErrInvalidScenario):
		ids := h.scenarios.IDs()
		utils.RespondJSON(w, http.StatusBadRequest, utils.ErrorBody{
			Message:        "Invalid scenario. Must be one of: " + strings.Join(ids, ", "),
			ValidScenarios: ids,
		})
	case errors.Is(err, chatService.ErrUnauthenticated):
		utils.RespondError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, chatService.ErrEmptyContent):
		utils.RespondError(w, http.StatusBadRequest, "Message content is required")
	case errors.Is(err, chatService.ErrConversationEnded):
		utils.RespondError(w, http.StatusBadRequest, "Conversation has already ended")
	case errors.Is(err, feedbackService.ErrInsufficientData):
		utils.RespondError(w, http.StatusBadRequest, "Not enough conversation data for analysis")
	case errors.Is(err, conversation.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, conversation.ErrInvalidRecord):
		utils.RespondJSON(w, http.StatusBadRequest, utils.ErrorBody{Message: "Invalid conversation data", Error: err.Error()})
	default:
		h.log.Error().Err(err).Msg(serverMessage)
		utils.RespondServerError(w, serverMessage, err, h.exposeErrors)
	}
}

// parsePositive 解析分页参数，非法值返回 0 交由服务层使用默认值
func parsePositive(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
