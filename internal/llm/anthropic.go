package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements the gateway contract on the Anthropic
// Messages API. Delivery is buffered; the SDK handles transport.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a client authenticated with the given
// API key.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Complete issues the request and concatenates the text blocks of the
// response into a single completion string.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return Response{}, classifyAnthropic(err, req.Model)
	}

	var content strings.Builder
	for _, block := range message.Content {
		content.WriteString(block.Text)
	}

	text := content.String()
	return Response{Content: text, Raw: text}, nil
}

// classifyAnthropic maps SDK errors onto the gateway taxonomy.
func classifyAnthropic(err error, model string) *RequestError {
	const endpoint = "https://api.anthropic.com"

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		reqErr := &RequestError{
			Status:   apiErr.StatusCode,
			Message:  apiErr.Error(),
			Endpoint: endpoint,
		}
		switch {
		case apiErr.StatusCode >= 500:
			reqErr.Kind = KindServer
		case apiErr.StatusCode == 404 && strings.Contains(apiErr.Error(), model):
			reqErr.Kind = KindClient
			reqErr.ModelName = model
		default:
			reqErr.Kind = KindClient
		}
		return reqErr
	}

	return classifyTransport(err, endpoint)
}
