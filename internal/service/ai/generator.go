package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/loan-coach/backend/internal/config"
)

// ErrUnavailable is returned when no LLM backend is configured.
var ErrUnavailable = errors.New("llm backend unavailable")

// Generator is the eino chat model surface a Chain compiles against.
type Generator interface {
	model.BaseChatModel
}

// NewGenerator builds the backend selected by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create ark chat model: %w", err)
		}
		return chatModel, nil
	case config.ProviderOpenAI, "":
		if !cfg.Enabled() {
			return nil, errors.New("LLM_API_KEY (or GROQ_API_KEY) and LLM_MODEL are required")
		}
		return NewOpenAIChatModel(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// IsUnreachable reports whether err means the backend could not be contacted at all.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}
