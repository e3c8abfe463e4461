// Package voyageembedder adapts the Voyage AI embeddings endpoint to the
// engine's EmbedderCapability. There is no Voyage SDK among the retrieval
// pack's dependencies, so this talks to the HTTP API directly with the
// standard library's net/http and retries through internal/retry, same as
// the Anthropic adapter.
package voyageembedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/ledger"
	"github.com/codexfi/memory/internal/retry"
)

const (
	endpoint     = "https://api.voyageai.com/v1/embeddings"
	defaultModel = "voyage-3-lite"

	maxInputChars = 30000
)

// Embedder calls Voyage's embeddings endpoint and L2-normalizes the result,
// since the engine's cosine-similarity search assumes unit vectors.
type Embedder struct {
	apiKey string
	model  string
	dim    int
	client *http.Client
	ledger *ledger.Ledger
}

// New builds an Embedder for the given fixed output dimension. led may be
// nil.
func New(apiKey string, dim int, led *ledger.Ledger) *Embedder {
	return &Embedder{
		apiKey: apiKey,
		model:  defaultModel,
		dim:    dim,
		client: &http.Client{},
		ledger: led,
	}
}

func (e *Embedder) Dimension() int { return e.dim }

type embedRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (e *Embedder) Embed(ctx context.Context, text string, role capability.Role) ([]float32, error) {
	inputType := "document"
	if role == capability.RoleQuery {
		inputType = "query"
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	body, err := json.Marshal(embedRequest{
		Input:           []string{text},
		Model:           e.model,
		InputType:       inputType,
		OutputDimension: e.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("voyageembedder: encode request: %w", err)
	}

	var vec []float32
	err = retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &retry.HTTPStatusError{StatusCode: resp.StatusCode, Err: fmt.Errorf("voyage: status %d", resp.StatusCode)}
		}

		var decoded embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return err
		}
		if len(decoded.Data) == 0 {
			return fmt.Errorf("voyage: empty embedding response")
		}
		vec = decoded.Data[0].Embedding
		if e.ledger != nil {
			e.ledger.Record("voyage", 1, estimateCostUSD(decoded.Usage.TotalTokens))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("voyageembedder: embed: %w", err)
	}

	return normalize(vec), nil
}

// estimateCostUSD prices voyage-3-lite at $0.02 per 1M tokens.
func estimateCostUSD(tokens int) float64 {
	return float64(tokens) / 1_000_000 * 0.02
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
