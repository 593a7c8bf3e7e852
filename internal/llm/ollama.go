package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// OllamaClient talks to an Ollama-compatible /api/chat endpoint. The
// endpoint may deliver its response as one buffered JSON body or as a
// sequence of newline-delimited JSON fragments; both delivery modes
// are assembled into a single completion string.
type OllamaClient struct {
	baseURL string
	http    *http.Client
}

// NewOllamaClient creates a client for the given base URL
// (e.g. "http://localhost:11434"). A scheme is added when missing and
// any trailing slash is trimmed.
func NewOllamaClient(baseURL string) *OllamaClient {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		trimmed = "http://localhost:11434"
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")

	return &OllamaClient{
		baseURL: trimmed,
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// chatMessage is one message in the chat request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the generation request wire format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// chatFragment is one response object: the whole body in buffered
// mode, or one newline-delimited partial in streamed mode. The
// message.content field is optional on any given fragment.
type chatFragment struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Complete issues the chat request and assembles the response. The
// delivery mode is selected at call time by inspecting the response
// Content-Type: application/x-ndjson selects the incremental adapter,
// anything else the buffered one.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (Response, error) {
	endpoint := c.baseURL + "/api/chat"

	body := chatRequest{
		Model:  req.Model,
		Stream: req.Stream,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		body.Options = &chatOptions{NumPredict: req.MaxTokens}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, classifyTransport(err, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, classifyStatus(resp, req.Model, endpoint)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/x-ndjson") {
		return assembleStream(resp.Body, endpoint)
	}
	return assembleBuffered(resp.Body, endpoint)
}

// assembleStream concatenates the content of every newline-delimited
// fragment in arrival order.
func assembleStream(body io.Reader, endpoint string) (Response, error) {
	var raw strings.Builder
	var content strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		raw.WriteString(line)
		raw.WriteByte('\n')

		if strings.TrimSpace(line) == "" {
			continue
		}

		var frag chatFragment
		if err := json.Unmarshal([]byte(line), &frag); err != nil {
			// Malformed fragment: keep what arrived so far and let the
			// downstream fallback ladder cope with the text.
			continue
		}
		if frag.Error != "" {
			return Response{}, &RequestError{
				Kind:     KindServer,
				Message:  frag.Error,
				Endpoint: endpoint,
			}
		}
		content.WriteString(frag.Message.Content)
	}
	if err := scanner.Err(); err != nil {
		return Response{}, classifyTransport(err, endpoint)
	}

	return Response{Content: content.String(), Raw: raw.String()}, nil
}

// assembleBuffered decodes a single JSON body.
func assembleBuffered(body io.Reader, endpoint string) (Response, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return Response{}, classifyTransport(err, endpoint)
	}

	var frag chatFragment
	if err := json.Unmarshal(data, &frag); err != nil {
		return Response{}, &RequestError{
			Kind:     KindServer,
			Message:  fmt.Sprintf("unparseable response body: %v", err),
			Endpoint: endpoint,
		}
	}
	if frag.Error != "" {
		return Response{}, &RequestError{
			Kind:     KindServer,
			Message:  frag.Error,
			Endpoint: endpoint,
		}
	}

	return Response{Content: frag.Message.Content, Raw: string(data)}, nil
}

// classifyTransport maps a transport-level failure to its kind:
// deadline and net timeouts are TimeoutError, everything else at this
// layer is ConnectivityError.
func classifyTransport(err error, endpoint string) *RequestError {
	kind := KindConnectivity
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	}

	return &RequestError{
		Kind:     kind,
		Message:  err.Error(),
		Endpoint: endpoint,
	}
}

// classifyStatus maps a non-success HTTP response to its kind. A 404
// whose body names the requested model is the missing-model sub-case
// and carries a remediation hint.
func classifyStatus(resp *http.Response, model, endpoint string) *RequestError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	message := strings.TrimSpace(string(data))
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil {
		if apiErr.Error != "" {
			message = apiErr.Error
		} else if apiErr.Message != "" {
			message = apiErr.Message
		}
	}

	reqErr := &RequestError{
		Status:   resp.StatusCode,
		Message:  message,
		Endpoint: endpoint,
	}

	switch {
	case resp.StatusCode >= 500:
		reqErr.Kind = KindServer
	default:
		reqErr.Kind = KindClient
		if resp.StatusCode == http.StatusNotFound && model != "" && strings.Contains(message, model) {
			reqErr.ModelName = model
		}
	}
	return reqErr
}
