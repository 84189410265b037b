package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/loan-coach/backend/internal/metrics"
	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/loan-coach/backend/internal/service/ai"
)

// HistoryWindow 是每轮发送给模型的历史消息条数上限（不含本轮新消息）。
const HistoryWindow = 8

const (
	customerInstruction = "[INSTRUCTION: You are the CUSTOMER. The above message is from the loan agent. Respond as a customer would - with questions, concerns, requests for clarification, or reactions. Do NOT act as an agent.]"

	UnreachableReply   = "I'm sorry, I'm having some technical difficulties right now. Could you please repeat that or try again in a moment?"
	MisunderstoodReply = "I'm not sure I understand. Could you please explain that in a different way?"
)

var errEmptyReply = errors.New("llm returned an empty reply")

// TurnRequest 是坐席提交的一轮发言。
type TurnRequest struct {
	Content        string
	Difficulty     string
	AdditionalInfo string
}

// TurnResult 包含本轮坐席消息与客户回复。
type TurnResult struct {
	Messages    []conversation.Message `json:"messages"`
	SessionInfo SessionInfo            `json:"sessionInfo"`
}

// SubmitTurn 追加坐席消息，生成客户回复并保存。模型失败时回复固定文案，不返回错误。
func (s *Service) SubmitTurn(ctx context.Context, conversationID string, req TurnRequest) (*TurnResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.IsCompleted {
		return nil, ErrConversationEnded
	}

	prior := conv.Messages
	agentMsg := conversation.Message{
		Sender:    conversation.SenderAgent,
		Content:   content,
		Timestamp: s.now(),
	}

	reply := s.generateReply(ctx, conv.ID, s.turnVars(conv.Scenario, prior, req, content))
	customerMsg := conversation.Message{
		Sender:    conversation.SenderAI,
		Content:   reply,
		Timestamp: s.now(),
	}

	conv.Messages = append(append(make([]conversation.Message, 0, len(prior)+2), prior...), agentMsg, customerMsg)
	if err := s.store.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}

	// 返回前再次清理，保证客户端看不到推理片段
	agentMsg.Content = ai.StripThinking(agentMsg.Content)
	customerMsg.Content = ai.StripThinking(customerMsg.Content)

	return &TurnResult{
		Messages: []conversation.Message{agentMsg, customerMsg},
		SessionInfo: SessionInfo{
			Scenario:     conv.Scenario,
			MessageCount: len(conv.Messages) - 1,
		},
	}, nil
}

// turnVars 组装系统提示、最近历史与带角色说明的坐席消息。
func (s *Service) turnVars(scenarioID string, prior []conversation.Message, req TurnRequest, content string) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(scenarioID, req.Difficulty, req.AdditionalInfo),
		"history": WindowHistory(prior),
		"query":   FrameAgentTurn(content),
	}
}

func (s *Service) generateReply(ctx context.Context, conversationID string, vars map[string]any) string {
	s.log.Debug().
		Str("conversation_id", conversationID).
		Bool("llm", s.chain.Available()).
		Msg("requesting customer reply")

	raw, err := s.chain.Run(ctx, vars, s.cfg.Temperature, s.cfg.MaxTokens)
	if err == nil {
		if reply := ai.StripThinking(raw); reply != "" {
			metrics.TurnsTotal.WithLabelValues(metrics.TurnOK).Inc()
			return reply
		}
		err = errEmptyReply
	}

	if ai.IsUnreachable(err) {
		metrics.TurnsTotal.WithLabelValues(metrics.TurnFallbackUnreachable).Inc()
		s.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("llm unreachable, using stock reply")
		return UnreachableReply
	}

	metrics.TurnsTotal.WithLabelValues(metrics.TurnFallbackError).Inc()
	s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("customer reply generation failed")
	return MisunderstoodReply
}

// WindowHistory 取最近 HistoryWindow 条消息并映射为模型角色，system 消息不发送。
func WindowHistory(prior []conversation.Message) []*schema.Message {
	if len(prior) > HistoryWindow {
		prior = prior[len(prior)-HistoryWindow:]
	}

	out := make([]*schema.Message, 0, len(prior))
	for _, msg := range prior {
		switch msg.Sender {
		case conversation.SenderAI:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		case conversation.SenderAgent:
			out = append(out, schema.UserMessage(msg.Content))
		}
	}
	return out
}

// FrameAgentTurn 包装坐席发言，提醒模型保持客户身份。
func FrameAgentTurn(content string) string {
	return "Agent: " + content + "\n\n" + customerInstruction
}
