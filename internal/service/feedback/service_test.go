package feedback_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/loan-coach/backend/internal/service/ai"
	"github.com/zhouzirui/loan-coach/backend/internal/service/feedback"
)

type stubGenerator struct {
	reply string
	err   error
	input []*schema.Message
	opts  *model.Options
}

func (g *stubGenerator) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	g.input = input
	g.opts = model.GetCommonOptions(&model.Options{}, opts...)
	if g.err != nil {
		return nil, g.err
	}
	return schema.AssistantMessage(g.reply, nil), nil
}

func (g *stubGenerator) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func newService(t *testing.T, store conversation.Store, gen ai.Generator) *feedback.Service {
	t.Helper()
	svc, err := feedback.NewService(context.Background(), store, gen, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

const verdictJSON = `<think>scoring</think>{
  "overallScore": 78,
  "comments": "Solid discovery.",
  "suggestions": ["Quote the APR"],
  "areasForImprovement": ["Disclosure"],
  "performanceMetrics": {
    "salesEffectiveness": {"score": 80, "strengths": ["Needs analysis"]},
    "technicalProficiency": {"score": "72.6", "strengths": "Clear terms"},
    "complianceEthics": {"score": "Not enough data", "strengths": []},
    "detailedSuggestions": {
      "conversationFlow": ["Summarize before closing"],
      "productKnowledge": [],
      "communicationStyle": ["Slow down"]
    }
  }
}`

func seedConversation(t *testing.T, store conversation.Store, n int) *conversation.Conversation {
	t.Helper()
	created := time.Now().UTC().Add(-5 * time.Minute)
	c := &conversation.Conversation{
		UserID:    "u1",
		Scenario:  "personal-loan",
		CreatedAt: created,
	}
	for i := 0; i < n; i++ {
		sender := conversation.SenderAI
		if i%2 == 1 {
			sender = conversation.SenderAgent
		}
		c.Messages = append(c.Messages, conversation.Message{Sender: sender, Content: "m", Timestamp: created})
	}
	require.NoError(t, store.Create(context.Background(), c))
	return c
}

func TestAnalyzeMergesVerdict(t *testing.T) {
	store := conversation.NewMemoryStore()
	gen := &stubGenerator{reply: verdictJSON}
	svc := newService(t, store, gen)
	ctx := context.Background()

	c := seedConversation(t, store, 3)

	res, err := svc.Analyze(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.False(t, strings.Contains(res.Analysis, "<think>"))
	require.NotNil(t, res.Feedback)
	assert.Equal(t, conversation.Scores{78, 80, 73, 0}, res.Feedback.Score)
	assert.Equal(t, 78, res.Feedback.Score.Overall())
	assert.Equal(t, 80, res.Feedback.Score.SalesEffectiveness())
	assert.Equal(t, 73, res.Feedback.Score.TechnicalProficiency())
	assert.Equal(t, 0, res.Feedback.Score.ComplianceEthics())
	assert.Equal(t, []string{"Clear terms"}, res.Feedback.Strengths.TechnicalProficiency)
	assert.Equal(t, []string{}, res.Feedback.DetailedSuggestions.ProductKnowledge)
	assert.False(t, res.Feedback.AnalyzedAt.IsZero())
	assert.Equal(t, 2, res.SessionStats.MessageCount)
	assert.Equal(t, "personal-loan", res.SessionStats.Scenario)
	assert.GreaterOrEqual(t, res.SessionStats.Duration, int64(5*time.Minute/time.Millisecond))

	require.Len(t, gen.input, 2)
	assert.Equal(t, schema.System, gen.input[0].Role)
	assert.Contains(t, gen.input[1].Content, "Customer: m\n\nLoan Agent: m\n\nCustomer: m")
	assert.Contains(t, gen.input[1].Content, "- Scenario: personal-loan")
	require.NotNil(t, gen.opts.Temperature)
	assert.InDelta(t, 0.3, *gen.opts.Temperature, 0.0001)
	require.NotNil(t, gen.opts.MaxTokens)
	assert.Equal(t, 1000, *gen.opts.MaxTokens)

	stored, err := store.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Feedback)
	assert.Equal(t, "Solid discovery.", stored.Feedback.Comments)
}

func TestAnalyzeSectionsWithoutData(t *testing.T) {
	store := conversation.NewMemoryStore()
	gen := &stubGenerator{reply: `{"overallScore":70,"comments":"Short call.","suggestions":["Ask about income"],"areasForImprovement":"Not enough data",` +
		`"performanceMetrics":{"salesEffectiveness":{"score":80},"technicalProficiency":{"score":65},` +
		`"complianceEthics":"Not enough data","detailedSuggestions":"Not enough data"}}`}
	svc := newService(t, store, gen)
	ctx := context.Background()

	c := seedConversation(t, store, 3)
	res, err := svc.Analyze(ctx, c.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Feedback)

	assert.Equal(t, 70, res.Feedback.Score.Overall())
	assert.Equal(t, 80, res.Feedback.Score.SalesEffectiveness())
	assert.Equal(t, 65, res.Feedback.Score.TechnicalProficiency())
	assert.Equal(t, 0, res.Feedback.Score.ComplianceEthics())
	assert.Equal(t, "Short call.", res.Feedback.Comments)
	assert.Equal(t, []string{"Not enough data"}, res.Feedback.AreasForImprovement)
	assert.Equal(t, []string{}, res.Feedback.Strengths.ComplianceEthics)
	assert.Equal(t, []string{}, res.Feedback.DetailedSuggestions.ConversationFlow)
	assert.Equal(t, []string{}, res.Feedback.DetailedSuggestions.CommunicationStyle)

	stored, err := store.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Feedback)
	assert.Equal(t, conversation.Scores{70, 80, 65, 0}, stored.Feedback.Score)
}

func TestParseVerdictNonObjectMetrics(t *testing.T) {
	v, err := feedback.ParseVerdict(`Here you go: {"overallScore":"55","performanceMetrics":"Not enough data"} thanks`)
	require.NoError(t, err)
	assert.Equal(t, conversation.Scores{55, 0, 0, 0}, v.Scores)
	assert.Equal(t, []string{}, v.Strengths.SalesEffectiveness)
	assert.Equal(t, []string{}, v.DetailedSuggestions.ProductKnowledge)

	_, err = feedback.ParseVerdict(`{"overallScore":70,`)
	assert.Error(t, err)
}

func TestAnalyzeOverrideReplacesTranscript(t *testing.T) {
	store := conversation.NewMemoryStore()
	gen := &stubGenerator{reply: "not json at all"}
	svc := newService(t, store, gen)
	ctx := context.Background()

	c := seedConversation(t, store, 3)
	c.Feedback = &conversation.Feedback{Comments: "earlier"}
	require.NoError(t, store.Save(ctx, c))

	override := []conversation.Message{
		{Sender: conversation.SenderAI, Content: "Hi"},
		{Sender: conversation.SenderSystem, Content: "hidden"},
		{Sender: conversation.SenderAgent, Content: "Hello"},
		{Sender: conversation.SenderAI, Content: "Rates?"},
		{Sender: conversation.SenderAgent, Content: "12%"},
	}
	res, err := svc.Analyze(ctx, c.ID, override)
	require.NoError(t, err)
	assert.Equal(t, "not json at all", res.Analysis)
	require.NotNil(t, res.Feedback)
	assert.Equal(t, "earlier", res.Feedback.Comments)
	assert.Equal(t, 4, res.SessionStats.MessageCount)
	assert.NotContains(t, gen.input[1].Content, "hidden")

	stored, err := store.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 5)
	assert.False(t, stored.Messages[0].Timestamp.IsZero())
}

func TestAnalyzeInsufficientData(t *testing.T) {
	store := conversation.NewMemoryStore()
	gen := &stubGenerator{reply: verdictJSON}
	svc := newService(t, store, gen)

	c := seedConversation(t, store, 2)
	long := make([]conversation.Message, 6)
	for i := range long {
		long[i] = conversation.Message{Sender: conversation.SenderAgent, Content: "x"}
	}

	_, err := svc.Analyze(context.Background(), c.ID, long)
	assert.ErrorIs(t, err, feedback.ErrInsufficientData)
	assert.Nil(t, gen.input)
}

func TestAnalyzeRejectsInvalidOverride(t *testing.T) {
	store := conversation.NewMemoryStore()
	svc := newService(t, store, &stubGenerator{reply: verdictJSON})

	c := seedConversation(t, store, 3)
	_, err := svc.Analyze(context.Background(), c.ID, []conversation.Message{{Sender: "bot", Content: "x"}})
	assert.ErrorIs(t, err, conversation.ErrInvalidRecord)
}

func TestAnalyzeFallback(t *testing.T) {
	store := conversation.NewMemoryStore()
	svc := newService(t, store, &stubGenerator{err: errors.New("upstream 503")})
	ctx := context.Background()

	c := seedConversation(t, store, 4)
	res, err := svc.Analyze(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Feedback)
	assert.True(t, strings.HasPrefix(res.Analysis, "Analysis temporarily unavailable due to technical issues."))
	assert.Contains(t, res.Analysis, "- Scenario: personal-loan")
	assert.Contains(t, res.Analysis, "- Messages exchanged: 3")
	assert.Contains(t, res.Analysis, "- Duration: 5 minutes")

	stored, err := store.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Feedback)
}

func TestAnalyzeNotFound(t *testing.T) {
	svc := newService(t, conversation.NewMemoryStore(), nil)
	_, err := svc.Analyze(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}
