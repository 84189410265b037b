package feedback

const coachSystemPrompt = "You are an expert sales coach providing detailed feedback on loan agent training conversations."

// rubricPrompt 使用 Go 模板语法，变量为 conversation 与 scenario。
const rubricPrompt = `You are an expert sales coach specializing in banking and financial services. Analyze the following *loan agent training conversation* and provide your feedback strictly in the JSON format below.

Use this scoring guide:
- 90–100 = Excellent
- 75–89 = Good
- 60–74 = Average
- 40–59 = Below Average
- 0–39 = Poor

Mark each metric (Sales Effectiveness, Technical Proficiency, Compliance & Ethics) using the following criteria:
- Sales Effectiveness = [25% Needs Analysis, 25% Product Match, 25% Objection Handling, 25% Deal Progress]
- Technical Proficiency = [40% Terminology Accuracy, 30% Process Accuracy, 30% System Navigation (if any)]
- Compliance & Ethics = [40% T&C Disclosure, 30% Honesty/Fair Selling, 30% Data Sensitivity]

If a section is not addressed in the conversation, indicate "Not enough data" in that field.

Return only a valid JSON object in this format:

{
  "overallScore": [0-100, integer],
  "comments": "Short summary of performance",
  "suggestions": ["One-liner suggestion", "..."],
  "areasForImprovement": ["Shortcoming 1", "..."],
  "performanceMetrics": {
    "salesEffectiveness": {
      "score": [0-100, integer],
      "strengths": ["..."]
    },
    "technicalProficiency": {
      "score": [0-100, integer],
      "strengths": ["..."]
    },
    "complianceEthics": {
      "score": [0-100, integer],
      "strengths": ["..."]
    },
    "detailedSuggestions": {
      "conversationFlow": ["Specific suggestion for improving conversation flow", "..."],
      "productKnowledge": ["Specific suggestion for improving product knowledge", "..."],
      "communicationStyle": ["Specific suggestion for improving communication style", "..."]
    }
  }
}

CONVERSATION:
{{.conversation}}

CONTEXT:
- Scenario: {{.scenario}}

Instructions:
- Carefully review the conversation and context.
- Fill in each field in the JSON with specific, relevant, and concise content.
- "overallScore" is a number from 0-100 reflecting the agent's overall performance.
- "comments" is a 1-2 sentence summary of the agent's performance.
- "suggestions" is a list of actionable, one-line suggestions for improvement.
- "areasForImprovement" is a list of specific shortcomings or areas to work on.
- For each section in "performanceMetrics", provide a score (0-100) and a list of strengths demonstrated in that area.
- Respond ONLY with a valid JSON object in the format above. Do not include any extra text, explanation, or commentary.`

const fallbackTemplate = `Analysis temporarily unavailable due to technical issues.

*Conversation Summary:*
- Scenario: %s
- Messages exchanged: %d
- Duration: %d minutes

*General Feedback:*
Based on the conversation length and scenario, you've engaged in a meaningful practice session. Continue practicing to improve your loan agent skills.

Please try the analysis feature again when the AI service is available.`
