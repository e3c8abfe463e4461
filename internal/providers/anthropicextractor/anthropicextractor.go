// Package anthropicextractor adapts the Anthropic Messages API to the
// engine's ExtractorCapability, selected when EXTRACTION_PROVIDER=anthropic.
// It lives outside internal/engine because choice of extraction vendor is
// explicitly out of scope for the core.
package anthropicextractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/ledger"
	"github.com/codexfi/memory/internal/retry"
)

const defaultModel = anthropic.Model("claude-3-5-haiku-20241022")

const maxInputChars = 30000

// Extractor calls the Anthropic Messages API, asking the model to return a
// JSON array of typed facts, and defensively parses the response.
type Extractor struct {
	client anthropic.Client
	model  anthropic.Model
	ledger *ledger.Ledger
}

// New builds an Extractor authenticated with apiKey. led may be nil.
func New(apiKey string, led *ledger.Ledger) *Extractor {
	return &Extractor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
		ledger: led,
	}
}

func (e *Extractor) Extract(ctx context.Context, messages []capability.Message, mode capability.Mode) ([]capability.Fact, error) {
	prompt := buildPrompt(messages, mode)
	if len(prompt) > maxInputChars {
		prompt = prompt[:maxInputChars]
	}

	var text string
	err := retry.Do(ctx, func(ctx context.Context) error {
		resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     e.model,
			MaxTokens: 1024,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return classifyAnthropicErr(err)
		}
		if len(resp.Content) == 0 {
			return nil
		}
		text = resp.Content[0].Text
		return nil
	})
	if e.ledger != nil {
		e.ledger.Record("anthropic", 1, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("anthropicextractor: extract: %w", err)
	}

	return parseFacts(text)
}

// classifyAnthropicErr maps the SDK's error into retry's HTTPStatusError so
// the shared Retryable predicate can classify it.
func classifyAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return &retry.HTTPStatusError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return err
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	ae, ok := err.(*anthropic.Error)
	if !ok {
		return false
	}
	*target = ae
	return true
}

func buildPrompt(messages []capability.Message, mode capability.Mode) string {
	var sb strings.Builder
	switch mode {
	case capability.ModeSummary:
		sb.WriteString("Compress the following transcript into one concise learned-pattern fact.\n")
	case capability.ModeInit:
		sb.WriteString("Bootstrap project memory facts from this project brief.\n")
	default:
		sb.WriteString("Extract durable memory facts from this conversation.\n")
	}
	sb.WriteString("Respond with a JSON array of objects shaped {\"memory\": string, \"type\": string, \"chunk\": string}.\n\n")
	for _, m := range messages {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseFacts strips a markdown code fence if present, then decodes a JSON
// array of facts. A malformed response yields zero facts, not an error —
// the extractor is treated as best-effort (spec §4.4).
func parseFacts(raw string) ([]capability.Fact, error) {
	cleaned := stripFences(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil, nil
	}

	var decoded []struct {
		Memory string `json:"memory"`
		Type   string `json:"type"`
		Chunk  string `json:"chunk"`
	}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, nil
	}

	facts := make([]capability.Fact, 0, len(decoded))
	for _, d := range decoded {
		if strings.TrimSpace(d.Memory) == "" {
			continue
		}
		facts = append(facts, capability.Fact{Memory: d.Memory, Type: d.Type, Chunk: d.Chunk})
	}
	return facts, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
