package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSONMode asks the backend for a single JSON object.
	JSONMode bool
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// Cost is the estimated USD cost of the response, 0 for unpriced models.
func (r *CompletionResponse) Cost() float64 {
	if r == nil {
		return 0
	}
	return EstimateCost(r.Model, r.InputTokens, r.OutputTokens)
}

// FillUsage estimates token counts the backend left at zero. Some
// OpenAI-compatible servers omit usage.
func (r *CompletionResponse) FillUsage(req CompletionRequest) {
	if r.InputTokens == 0 {
		for _, m := range req.Messages {
			r.InputTokens += EstimateTokens(m.Content)
		}
	}
	if r.OutputTokens == 0 {
		r.OutputTokens = EstimateTokens(r.Content)
	}
}
