package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Chain 把提示模板和聊天模型编译成一条 eino 链。
type Chain struct {
	runnable compose.Runnable[map[string]any, *schema.Message]
}

// NewChain compiles tpl -> gen. A nil gen yields a chain whose Run always
// returns ErrUnavailable.
func NewChain(ctx context.Context, tpl prompt.ChatTemplate, gen Generator) (*Chain, error) {
	if gen == nil {
		return &Chain{}, nil
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl)
	chain.AppendChatModel(gen)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &Chain{runnable: runnable}, nil
}

// Available reports whether a model is bound to the chain.
func (c *Chain) Available() bool {
	return c != nil && c.runnable != nil
}

// Run formats vars through the template, invokes the model and returns the raw text.
func (c *Chain) Run(ctx context.Context, vars map[string]any, temperature float32, maxTokens int) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	resp, err := c.runnable.Invoke(ctx, vars, compose.WithChatModelOption(
		model.WithTemperature(temperature),
		model.WithMaxTokens(maxTokens),
	))
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("llm returned no message")
	}
	return resp.Content, nil
}
