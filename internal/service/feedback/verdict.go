package feedback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
)

// Verdict 是从模型回复中解析出的结构化评分。
type Verdict struct {
	Scores              conversation.Scores
	Comments            string
	Suggestions         []string
	AreasForImprovement []string
	DetailedSuggestions conversation.DetailedSuggestions
	Strengths           conversation.MetricStrengths
}

type metricPayload struct {
	Score     flexScore `json:"score"`
	Strengths flexList  `json:"strengths"`
}

// UnmarshalJSON 非对象值（如 "Not enough data"）视为空指标。
func (m *metricPayload) UnmarshalJSON(b []byte) error {
	type plain metricPayload
	return lenientObject(b, (*plain)(m))
}

type suggestionsPayload struct {
	ConversationFlow   flexList `json:"conversationFlow"`
	ProductKnowledge   flexList `json:"productKnowledge"`
	CommunicationStyle flexList `json:"communicationStyle"`
}

func (d *suggestionsPayload) UnmarshalJSON(b []byte) error {
	type plain suggestionsPayload
	return lenientObject(b, (*plain)(d))
}

type metricsPayload struct {
	SalesEffectiveness   metricPayload      `json:"salesEffectiveness"`
	TechnicalProficiency metricPayload      `json:"technicalProficiency"`
	ComplianceEthics     metricPayload      `json:"complianceEthics"`
	DetailedSuggestions  suggestionsPayload `json:"detailedSuggestions"`
}

func (p *metricsPayload) UnmarshalJSON(b []byte) error {
	type plain metricsPayload
	return lenientObject(b, (*plain)(p))
}

type verdictPayload struct {
	OverallScore        flexScore      `json:"overallScore"`
	Comments            flexText       `json:"comments"`
	Suggestions         flexList       `json:"suggestions"`
	AreasForImprovement flexList       `json:"areasForImprovement"`
	PerformanceMetrics  metricsPayload `json:"performanceMetrics"`
}

// lenientObject 只解码 JSON 对象，其他类型保持零值且不报错。
func lenientObject(b []byte, v any) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	return json.Unmarshal(b, v)
}

// ParseVerdict 从回复文本中截取第一个 "{" 到最后一个 "}" 之间的 JSON 并解析。
// 字段缺失时使用零值，分数取整并限制在 0 到 100。
func ParseVerdict(text string) (Verdict, error) {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return Verdict{}, fmt.Errorf("missing json object")
	}

	var p verdictPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &p); err != nil {
		return Verdict{}, err
	}

	pm := p.PerformanceMetrics
	return Verdict{
		Scores: conversation.Scores{
			int(p.OverallScore),
			int(pm.SalesEffectiveness.Score),
			int(pm.TechnicalProficiency.Score),
			int(pm.ComplianceEthics.Score),
		},
		Comments:            string(p.Comments),
		Suggestions:         p.Suggestions.values(),
		AreasForImprovement: p.AreasForImprovement.values(),
		DetailedSuggestions: conversation.DetailedSuggestions{
			ConversationFlow:   pm.DetailedSuggestions.ConversationFlow.values(),
			ProductKnowledge:   pm.DetailedSuggestions.ProductKnowledge.values(),
			CommunicationStyle: pm.DetailedSuggestions.CommunicationStyle.values(),
		},
		Strengths: conversation.MetricStrengths{
			SalesEffectiveness:   pm.SalesEffectiveness.Strengths.values(),
			TechnicalProficiency: pm.TechnicalProficiency.Strengths.values(),
			ComplianceEthics:     pm.ComplianceEthics.Strengths.values(),
		},
	}, nil
}

// Apply 把评分写入已有反馈。已有反馈中与评分无关的内容保留。
func (v Verdict) Apply(existing *conversation.Feedback, at time.Time) *conversation.Feedback {
	fb := conversation.Feedback{}
	if existing != nil {
		fb = *existing
	}
	fb.Score = v.Scores
	fb.Comments = v.Comments
	fb.Suggestions = v.Suggestions
	fb.AreasForImprovement = v.AreasForImprovement
	fb.DetailedSuggestions = v.DetailedSuggestions
	fb.Strengths = v.Strengths
	fb.AnalyzedAt = at
	return &fb
}

// flexScore 接受数字或数字字符串，其余值视为 0。
type flexScore int

func (s *flexScore) UnmarshalJSON(b []byte) error {
	*s = 0
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	*s = flexScore(math.Max(0, math.Min(100, math.Round(f))))
	return nil
}

// flexList 接受字符串数组或单个字符串。
type flexList []string

func (l *flexList) UnmarshalJSON(b []byte) error {
	*l = nil
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			*l = flexList{s}
		}
	case []any:
		for _, item := range v {
			switch x := item.(type) {
			case string:
				if s := strings.TrimSpace(x); s != "" {
					*l = append(*l, s)
				}
			case float64:
				*l = append(*l, strconv.FormatFloat(x, 'f', -1, 64))
			}
		}
	}
	return nil
}

func (l flexList) values() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

// flexText 只接受字符串，其余值视为空。
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	*t = ""
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = flexText(strings.TrimSpace(s))
	}
	return nil
}
