package ollama

import (
	"context"
	"strings"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

type Generator struct {
	client *Client
}

var _ ports.Generator = (*Generator)(nil)

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.client.genTimeout)
	defer cancel()
	return g.client.generateText(callCtx, prompt)
}

// Judge scores how relevant a passage is to a query by asking the
// generation model for a bare number. Parsing the reply is the caller's
// concern; this adapter only moves text.
type Judge struct {
	client *Client
}

var _ ports.RelevanceJudge = (*Judge)(nil)

func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

func (j *Judge) Judge(ctx context.Context, query, passage string) (string, error) {
	return j.client.generateText(ctx, buildRelevancePrompt(query, passage))
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		if isConnectionFailure(err) {
			return "", domain.WrapError(domain.ErrProviderUnavailable, "generate", err)
		}
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
