package api

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SummaryChoice is one candidate of a non-streamed completion.
type SummaryChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason *string     `json:"finish_reason"`
}

// CompletionSummary is the decoded body of a non-streamed chat completion.
type CompletionSummary struct {
	ID      string          `json:"id"`
	Object  string          `json:"object,omitempty"`
	Created int64           `json:"created,omitempty"`
	Model   string          `json:"model"`
	Choices []SummaryChoice `json:"choices"`
	Usage   *Usage          `json:"usage,omitempty"`
}

// Content returns the text of the first choice, or an empty string when the
// summary has no choices.
func (s *CompletionSummary) Content() string {
	if s == nil || len(s.Choices) == 0 {
		return ""
	}
	return s.Choices[0].Message.Content
}

// Add accumulates the token counts of other into u. A nil other is ignored.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
