package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middlewarePkg "github.com/zhouzirui/loan-coach/backend/internal/middleware"
	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
	scenarioModel "github.com/zhouzirui/loan-coach/backend/internal/model/scenario"
	"github.com/zhouzirui/loan-coach/backend/internal/service/ai"
	chatService "github.com/zhouzirui/loan-coach/backend/internal/service/chat"
	feedbackService "github.com/zhouzirui/loan-coach/backend/internal/service/feedback"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	store := conversation.NewMemoryStore()
	scenarios := scenarioModel.NewMemoryStore(scenarioModel.Seed())
	prompts := ai.NewPromptBuilder(ai.PromptTemplates{}, zerolog.Nop())

	chatSvc, err := chatService.NewService(ctx, store, scenarios, prompts, nil, chatService.Config{}, zerolog.Nop())
	require.NoError(t, err)
	feedbackSvc, err := feedbackService.NewService(ctx, store, nil, zerolog.Nop())
	require.NoError(t, err)

	return NewRouter(Deps{
		Scenarios:     scenarios,
		Chat:          chatSvc,
		Feedback:      feedbackSvc,
		Auth:          middlewarePkg.NewAuthenticator("", "", true, zerolog.Nop()),
		AllowedOrigin: "*",
		Log:           zerolog.Nop(),
	})
}

func TestRouterPublicRoutes(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/healthz", "/metrics", "/api/scenarios"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestRouterConversationsRequireIdentity(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/start", strings.NewReader(`{"scenario":"demat"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/conversations/start", bytes.NewBufferString(`{"scenario":"demat"}`))
	req.Header.Set(middlewarePkg.GatewayUserHeader, "u1")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/conversations/start", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	// 预检在鉴权之前应答
	assert.Less(t, resp.Code, 300)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
