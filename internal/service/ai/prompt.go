package ai

import (
	"strings"

	"github.com/rs/zerolog"
)

const (
	ScenarioPlaceholder = "{scenario}"
	ContextPlaceholder  = "{additionalInfo}"

	// DifficultyEasy selects the easy template; every other value selects the hard one.
	DifficultyEasy = "easy"

	FallbackSystemPrompt = "You are a customer. Please respond naturally."

	defaultScenario = "general scenario"
	defaultContext  = "No additional context provided."
	unfilledContext = "No additional context."
)

// PromptTemplates holds the customer persona templates per difficulty.
type PromptTemplates struct {
	Easy string
	Hard string
}

// PromptBuilder renders the simulated customer's system prompt.
type PromptBuilder struct {
	templates PromptTemplates
	log       zerolog.Logger
}

// NewPromptBuilder creates a builder over the configured templates.
func NewPromptBuilder(templates PromptTemplates, log zerolog.Logger) *PromptBuilder {
	return &PromptBuilder{
		templates: templates,
		log:       log.With().Str("component", "prompt").Logger(),
	}
}

// Template returns the template selected for difficulty.
func (b *PromptBuilder) Template(difficulty string) string {
	if difficulty == DifficultyEasy {
		return b.templates.Easy
	}
	return b.templates.Hard
}

// BuildSystemPrompt fills the difficulty template with the scenario and free text context.
// No placeholder token survives in the result.
func (b *PromptBuilder) BuildSystemPrompt(scenario, difficulty, additionalInfo string) string {
	tpl := b.Template(difficulty)
	if tpl == "" {
		b.log.Warn().
			Str("difficulty", difficulty).
			Str("scenario", scenario).
			Msg("prompt template missing, set PROMPT1/PROMPT2 or PROMPTS_FILE")
		return FallbackSystemPrompt
	}

	out := tpl
	if scenario != "" {
		out = strings.ReplaceAll(out, ScenarioPlaceholder, scenario)
	}
	if additionalInfo != "" {
		out = strings.ReplaceAll(out, ContextPlaceholder, additionalInfo)
	} else {
		out = strings.ReplaceAll(out, ContextPlaceholder, defaultContext)
	}

	// values may themselves carry placeholder tokens
	out = strings.ReplaceAll(out, ScenarioPlaceholder, defaultScenario)
	out = strings.ReplaceAll(out, ContextPlaceholder, unfilledContext)
	return out
}
