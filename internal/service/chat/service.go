package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/loan-coach/backend/internal/metrics"
	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/loan-coach/backend/internal/model/scenario"
	"github.com/zhouzirui/loan-coach/backend/internal/service/ai"
)

var (
	ErrInvalidScenario   = errors.New("invalid scenario")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrEmptyContent      = errors.New("message content is required")
	ErrConversationEnded = errors.New("conversation has already ended")
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Config tunes customer reply generation.
type Config struct {
	Temperature float32
	MaxTokens   int
}

// Service manages conversation lifecycle and turn taking.
type Service struct {
	store     conversation.Store
	scenarios scenario.Store
	prompts   *ai.PromptBuilder
	chain     *ai.Chain
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the chat service. llm may be nil, in which case every
// turn receives the technical difficulties reply.
func NewService(ctx context.Context, store conversation.Store, scenarios scenario.Store, prompts *ai.PromptBuilder, llm ai.Generator, cfg Config, log zerolog.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain, err := ai.NewChain(ctx, promptTemplate, llm)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     store,
		scenarios: scenarios,
		prompts:   prompts,
		chain:     chain,
		cfg:       cfg,
		log:       log.With().Str("component", "chat").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// SessionInfo summarizes a conversation for the client.
type SessionInfo struct {
	Scenario     string `json:"scenario"`
	MessageCount int    `json:"messageCount"`
}

// StartResult is returned when a conversation is created.
type StartResult struct {
	ConversationID string                 `json:"conversationId"`
	Messages       []conversation.Message `json:"messages"`
	SessionInfo    SessionInfo            `json:"sessionInfo"`
}

// Start opens a conversation with the scenario's scripted customer line.
func (s *Service) Start(ctx context.Context, userID, scenarioID string) (*StartResult, error) {
	item, ok := s.scenarios.FindByID(scenarioID)
	if scenarioID == "" || !ok {
		return nil, ErrInvalidScenario
	}
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	now := s.now()
	opening := conversation.Message{
		Sender:    conversation.SenderAI,
		Content:   item.Greeting(),
		Timestamp: now,
	}
	conv := &conversation.Conversation{
		UserID:      userID,
		Scenario:    item.ID,
		Messages:    []conversation.Message{opening},
		IsCompleted: false,
		IsTemporary: true,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	metrics.ConversationsStartedTotal.WithLabelValues(item.ID).Inc()
	s.log.Info().Str("conversation_id", conv.ID).Str("user_id", userID).Str("scenario", item.ID).Msg("conversation started")

	return &StartResult{
		ConversationID: conv.ID,
		Messages:       []conversation.Message{opening},
		SessionInfo:    SessionInfo{Scenario: item.ID, MessageCount: 0},
	}, nil
}

// EndResult is returned when a conversation is closed.
type EndResult struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	CanAnalyze     bool   `json:"canAnalyze"`
}

// End marks the conversation completed and prunes the owner's other temporary conversations.
// Ending twice refreshes completedAt.
func (s *Service) End(ctx context.Context, conversationID string) (*EndResult, error) {
	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	conv.IsCompleted = true
	conv.IsTemporary = false
	conv.CompletedAt = &now
	if err := s.store.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}

	// not transactional with the save above
	if conv.UserID != conversation.AnonymousUser {
		pruned, err := s.store.DeleteTemporary(ctx, conv.UserID, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("prune temporary conversations: %w", err)
		}
		if pruned > 0 {
			metrics.PrunedConversationsTotal.Add(float64(pruned))
			s.log.Info().Str("user_id", conv.UserID).Int64("pruned", pruned).Msg("pruned abandoned conversations")
		}
	}

	return &EndResult{
		Message:        "Conversation ended successfully",
		ConversationID: conv.ID,
		CanAnalyze:     len(conv.Messages) > 2,
	}, nil
}

// Pagination describes a history page.
type Pagination struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	HasMore bool  `json:"hasMore"`
}

// HistoryResult is one page of finished conversations.
type HistoryResult struct {
	Conversations []conversation.Summary `json:"conversations"`
	Pagination    Pagination             `json:"pagination"`
}

// History pages over the caller's completed, non-temporary conversations, newest first.
func (s *Service) History(ctx context.Context, userID string, page, limit int) (*HistoryResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	skip := (page - 1) * limit

	total, err := s.store.CountHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}
	items, err := s.store.ListHistory(ctx, userID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return &HistoryResult{
		Conversations: items,
		Pagination: Pagination{
			Total:   total,
			Page:    page,
			Pages:   int(math.Ceil(float64(total) / float64(limit))),
			HasMore: int64(skip+len(items)) < total,
		},
	}, nil
}
