package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Sender identifies who authored a message.
type Sender string

const (
	// SenderAgent is the human trainee playing the loan agent.
	SenderAgent Sender = "agent"
	// SenderAI is the simulated customer.
	SenderAI Sender = "ai"
	// SenderSystem is accepted in client supplied transcripts but never sent to the model.
	SenderSystem Sender = "system"
)

// AnonymousUser owns conversations started without a resolved identity.
const AnonymousUser = "anonymous"

var (
	ErrNotFound      = errors.New("conversation not found")
	ErrInvalidRecord = errors.New("invalid conversation record")
)

// Message is one entry of a transcript.
type Message struct {
	Sender    Sender    `json:"sender" bson:"sender" validate:"oneof=agent ai system"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Scores holds [overall, salesEffectiveness, technicalProficiency, complianceEthics].
type Scores [4]int

func (s Scores) Overall() int              { return s[0] }
func (s Scores) SalesEffectiveness() int   { return s[1] }
func (s Scores) TechnicalProficiency() int { return s[2] }
func (s Scores) ComplianceEthics() int     { return s[3] }

// DetailedSuggestions groups coaching advice by theme.
type DetailedSuggestions struct {
	ConversationFlow   []string `json:"conversationFlow" bson:"conversationFlow"`
	ProductKnowledge   []string `json:"productKnowledge" bson:"productKnowledge"`
	CommunicationStyle []string `json:"communicationStyle" bson:"communicationStyle"`
}

// MetricStrengths lists what the agent did well per scored metric.
type MetricStrengths struct {
	SalesEffectiveness   []string `json:"salesEffectiveness" bson:"salesEffectiveness"`
	TechnicalProficiency []string `json:"technicalProficiency" bson:"technicalProficiency"`
	ComplianceEthics     []string `json:"complianceEthics" bson:"complianceEthics"`
}

// Feedback is the structured verdict produced by analysis.
type Feedback struct {
	Score               Scores              `json:"score" bson:"score" validate:"dive,min=0,max=100"`
	Comments            string              `json:"comments" bson:"comments"`
	Suggestions         []string            `json:"suggestions" bson:"suggestions"`
	AreasForImprovement []string            `json:"areasForImprovement" bson:"areasForImprovement"`
	DetailedSuggestions DetailedSuggestions `json:"detailedSuggestions" bson:"detailedSuggestions"`
	Strengths           MetricStrengths     `json:"strengths" bson:"strengths"`
	AnalyzedAt          time.Time           `json:"analyzedAt,omitempty" bson:"analyzedAt,omitempty"`
}

// Conversation is a single training session between an agent and the simulated customer.
type Conversation struct {
	ID          string     `json:"id" bson:"-"`
	UserID      string     `json:"userId" bson:"userId" validate:"required"`
	Scenario    string     `json:"scenario" bson:"scenario" validate:"required"`
	Messages    []Message  `json:"messages" bson:"messages" validate:"min=1,dive"`
	IsCompleted bool       `json:"isCompleted" bson:"isCompleted"`
	IsTemporary bool       `json:"isTemporary" bson:"isTemporary"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt" validate:"required"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	Feedback    *Feedback  `json:"feedback,omitempty" bson:"feedback,omitempty"`
}

// Summary is the projection served by history queries.
type Summary struct {
	ID          string     `json:"id"`
	Scenario    string     `json:"scenario"`
	IsCompleted bool       `json:"isCompleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Summarize projects the history fields of c.
func (c *Conversation) Summarize() Summary {
	return Summary{
		ID:          c.ID,
		Scenario:    c.Scenario,
		IsCompleted: c.IsCompleted,
		CreatedAt:   c.CreatedAt,
		CompletedAt: c.CompletedAt,
	}
}

// Clone returns a deep copy so stores never share slices with callers.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	if c.Feedback != nil {
		fb := *c.Feedback
		fb.Suggestions = cloneStrings(fb.Suggestions)
		fb.AreasForImprovement = cloneStrings(fb.AreasForImprovement)
		fb.DetailedSuggestions = DetailedSuggestions{
			ConversationFlow:   cloneStrings(fb.DetailedSuggestions.ConversationFlow),
			ProductKnowledge:   cloneStrings(fb.DetailedSuggestions.ProductKnowledge),
			CommunicationStyle: cloneStrings(fb.DetailedSuggestions.CommunicationStyle),
		}
		fb.Strengths = MetricStrengths{
			SalesEffectiveness:   cloneStrings(fb.Strengths.SalesEffectiveness),
			TechnicalProficiency: cloneStrings(fb.Strengths.TechnicalProficiency),
			ComplianceEthics:     cloneStrings(fb.Strengths.ComplianceEthics),
		}
		out.Feedback = &fb
	}
	return &out
}

// cloneStrings keeps nil and empty distinct.
func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a record before it is persisted.
func Validate(c *Conversation) error {
	if c == nil {
		return fmt.Errorf("%w: nil conversation", ErrInvalidRecord)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// ValidateMessages checks a client supplied transcript.
func ValidateMessages(messages []Message) error {
	for i := range messages {
		if err := validate.Struct(&messages[i]); err != nil {
			return fmt.Errorf("%w: message %d: %v", ErrInvalidRecord, i, err)
		}
	}
	return nil
}
