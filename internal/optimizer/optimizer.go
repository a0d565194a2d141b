// Package optimizer asks an LLM for consent-UX improvements and renders the
// Markdown answer to HTML.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/ziadkadry99/privacypilot/internal/llm"
)

// ErrMissingFields is returned when the request lacks consent data or a
// website type.
var ErrMissingFields = errors.New("missing required fields: consentData and websiteType")

const (
	fallbackSuggestions = "## Test Suggestions\n\n" +
		"1. **Simplify Wording**: Replace legalistic terms with user-friendly language\n\n" +
		"2. **Clear Benefits**: Explain exactly how data helps users\n\n" +
		"3. **Better Visual Hierarchy**: Make \"Accept\" more prominent"
	fallbackRationale = "## Test Rationale\n\n" +
		"These suggestions focus on building user trust through transparency and clear value propositions."
)

const systemPrompt = `You are a consent optimization assistant. Analyze the provided consent data and website type and suggest improvements to the consent requests.

Provide clear and actionable suggestions for optimizing consent requests to improve user trust and balance data collection with user preferences. Explain the rationale behind each suggestion.

Respond with a single JSON object with two string fields, "suggestions" and "rationale", each formatted as Markdown.`

// Request is the optimizer input.
type Request struct {
	ConsentData string `json:"consentData"`
	WebsiteType string `json:"websiteType"`
}

// Response carries Markdown and its rendered HTML. Fallback is set when the
// canned answer was returned instead of a model answer.
type Response struct {
	Suggestions     string `json:"suggestions"`
	Rationale       string `json:"rationale"`
	SuggestionsHTML string `json:"suggestionsHtml"`
	RationaleHTML   string `json:"rationaleHtml"`
	Fallback        bool   `json:"fallback"`
}

type modelAnswer struct {
	Suggestions string `json:"suggestions"`
	Rationale   string `json:"rationale"`
}

// Optimizer generates suggestions. A nil provider always falls back.
type Optimizer struct {
	provider llm.Provider
	md       goldmark.Markdown
}

// New creates an Optimizer around provider, which may be nil.
func New(provider llm.Provider) *Optimizer {
	return &Optimizer{
		provider: provider,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// Optimize validates req and returns model suggestions, or the canned
// fallback when the provider is absent or fails.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.ConsentData) == "" || strings.TrimSpace(req.WebsiteType) == "" {
		return nil, ErrMissingFields
	}

	answer, err := o.ask(ctx, req)
	fallback := false
	if err != nil {
		log.Printf("optimizer: falling back: %v", err)
		answer = &modelAnswer{Suggestions: fallbackSuggestions, Rationale: fallbackRationale}
		fallback = true
	}

	resp := &Response{
		Suggestions: answer.Suggestions,
		Rationale:   answer.Rationale,
		Fallback:    fallback,
	}
	if resp.SuggestionsHTML, err = o.render(answer.Suggestions); err != nil {
		return nil, err
	}
	if resp.RationaleHTML, err = o.render(answer.Rationale); err != nil {
		return nil, err
	}
	return resp, nil
}

func (o *Optimizer) ask(ctx context.Context, req Request) (*modelAnswer, error) {
	if o.provider == nil {
		return nil, errors.New("no LLM provider configured")
	}

	creq := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Consent Data: %s\nWebsite Type: %s", req.ConsentData, req.WebsiteType)},
		},
		Temperature: 0.4,
		JSONMode:    true,
	}
	resp, err := o.provider.Complete(ctx, creq)
	if err != nil {
		return nil, err
	}
	resp.FillUsage(creq)
	log.Printf("optimizer: %s answered with %d/%d tokens (~$%.4f)",
		o.provider.Name(), resp.InputTokens, resp.OutputTokens, resp.Cost())

	var answer modelAnswer
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &answer); err != nil {
		return nil, fmt.Errorf("parsing model answer: %w", err)
	}
	if answer.Suggestions == "" || answer.Rationale == "" {
		return nil, errors.New("model answer missing suggestions or rationale")
	}
	return &answer, nil
}

func (o *Optimizer) render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := o.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

// stripFences removes a surrounding ```json code fence some models add even
// in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
