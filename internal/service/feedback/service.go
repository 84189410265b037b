package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/loan-coach/backend/internal/metrics"
	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/loan-coach/backend/internal/service/ai"
)

// ErrInsufficientData 表示对话太短，不足以评分。
var ErrInsufficientData = errors.New("not enough conversation data for analysis")

const (
	MinMessages = 3

	analysisTemperature float32 = 0.3
	analysisMaxTokens           = 1000
)

// SessionStats 描述被分析会话的基本统计，duration 单位为毫秒。
type SessionStats struct {
	Duration     int64  `json:"duration"`
	MessageCount int    `json:"messageCount"`
	Scenario     string `json:"scenario"`
}

// Result 是一次分析的输出。模型不可用时 Feedback 为空，Analysis 为兜底文案。
type Result struct {
	Analysis     string                 `json:"analysis"`
	Feedback     *conversation.Feedback `json:"feedback,omitempty"`
	SessionStats SessionStats           `json:"sessionStats"`
}

// Service 调用大模型为坐席表现评分，解析失败时保留原有反馈。
type Service struct {
	store conversation.Store
	chain *ai.Chain
	log   zerolog.Logger
	now   func() time.Time
}

// NewService 创建评分服务。llm 为空时每次分析都返回兜底文案。
func NewService(ctx context.Context, store conversation.Store, llm ai.Generator, log zerolog.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coachSystemPrompt),
		schema.UserMessage(rubricPrompt),
	)

	chain, err := ai.NewChain(ctx, promptTemplate, llm)
	if err != nil {
		return nil, err
	}

	return &Service{
		store: store,
		chain: chain,
		log:   log.With().Str("component", "feedback").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Analyze 为会话评分。override 非空时替换存储中的消息记录，替换会随评分一起保存。
func (s *Service) Analyze(ctx context.Context, conversationID string, override []conversation.Message) (*Result, error) {
	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	// 以存储中的记录判断长度，替换在之后进行
	if len(conv.Messages) < MinMessages {
		return nil, ErrInsufficientData
	}

	if len(override) > 0 {
		if err := conversation.ValidateMessages(override); err != nil {
			return nil, err
		}
		conv.Messages = s.fillTimestamps(override)
	}

	s.log.Info().
		Str("conversation_id", conv.ID).
		Int("messages", len(conv.Messages)).
		Bool("override", len(override) > 0).
		Msg("analyzing conversation")

	raw, err := s.chain.Run(ctx, map[string]any{
		"conversation": RenderTranscript(conv.Messages),
		"scenario":     conv.Scenario,
	}, analysisTemperature, analysisMaxTokens)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(metrics.AnalysisFallback).Inc()
		s.log.Error().Err(err).Str("conversation_id", conv.ID).Msg("analysis generation failed, returning fallback summary")

		stats := s.stats(conv, nil)
		return &Result{
			Analysis:     FallbackSummary(stats),
			SessionStats: stats,
		}, nil
	}

	analysis := ai.StripThinking(raw)
	s.log.Debug().Str("conversation_id", conv.ID).Str("analysis", analysis).Msg("analysis received")

	if verdict, err := ParseVerdict(analysis); err != nil {
		metrics.AnalysesTotal.WithLabelValues(metrics.AnalysisUnparsed).Inc()
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("analysis is not valid json, feedback unchanged")
	} else {
		metrics.AnalysesTotal.WithLabelValues(metrics.AnalysisParsed).Inc()
		conv.Feedback = verdict.Apply(conv.Feedback, s.now())
	}

	if err := s.store.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}

	return &Result{
		Analysis:     analysis,
		Feedback:     conv.Feedback,
		SessionStats: s.stats(conv, conv.CompletedAt),
	}, nil
}

// stats 计算会话时长；end 为空时以当前时间为止。
func (s *Service) stats(conv *conversation.Conversation, end *time.Time) SessionStats {
	until := s.now()
	if end != nil {
		until = *end
	}
	return SessionStats{
		Duration:     until.Sub(conv.CreatedAt).Milliseconds(),
		MessageCount: len(conv.Messages) - 1,
		Scenario:     conv.Scenario,
	}
}

func (s *Service) fillTimestamps(msgs []conversation.Message) []conversation.Message {
	out := make([]conversation.Message, len(msgs))
	now := s.now()
	for i, msg := range msgs {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		out[i] = msg
	}
	return out
}

// RenderTranscript 把消息渲染为评分用的文本，system 消息不参与评分。
func RenderTranscript(messages []conversation.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Sender == conversation.SenderSystem {
			continue
		}
		role := "Customer"
		if msg.Sender == conversation.SenderAgent {
			role = "Loan Agent"
		}
		lines = append(lines, role+": "+msg.Content)
	}
	return strings.Join(lines, "\n\n")
}

// FallbackSummary 生成模型不可用时的说明文本。
func FallbackSummary(stats SessionStats) string {
	minutes := int(math.Round(float64(stats.Duration) / 60000))
	return fmt.Sprintf(fallbackTemplate, stats.Scenario, stats.MessageCount, minutes)
}
