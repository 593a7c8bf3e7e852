// Package llm issues completion requests to a remote text-generation
// endpoint and assembles streamed or buffered responses into a single
// completion string behind one call contract.
package llm

import (
	"context"
	"log"
	"os"
	"time"
)

// Request describes one completion request.
type Request struct {
	// System is the system prompt.
	System string
	// Prompt is the user prompt.
	Prompt string
	// Model is the model identifier to use.
	Model string
	// MaxTokens caps the completion length (0 = endpoint default).
	MaxTokens int
	// Stream requests incremental fragment delivery when the endpoint
	// supports it. Either delivery mode yields the same Response.
	Stream bool
}

// Response is the fully assembled completion.
type Response struct {
	// Content is the completion text, with streamed fragments
	// concatenated in arrival order.
	Content string
	// Raw is the unprocessed response body, kept for debug dumps.
	Raw string
}

// Client is the gateway contract. Implementations must return either
// the fully assembled completion or a *RequestError classifying the
// failure.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Default retry budget: 3 attempts total with fixed backoff.
var defaultBackoff = []time.Duration{5 * time.Second, 10 * time.Second}

// RetryClient wraps a Client with the standard retry policy:
// connectivity and timeout failures are retried up to len(Backoff)
// additional times with fixed backoff; client and server failures
// surface immediately without consuming retry budget.
type RetryClient struct {
	// Inner is the wrapped gateway client.
	Inner Client
	// Backoff holds the waits between attempts (default 5s, 10s).
	Backoff []time.Duration
	// Sleep performs the backoff wait; injectable for tests.
	Sleep func(time.Duration)
	// Logger receives retry notices.
	Logger *log.Logger
}

// NewRetryClient wraps inner with the default retry policy.
func NewRetryClient(inner Client) *RetryClient {
	return &RetryClient{
		Inner:   inner,
		Backoff: defaultBackoff,
		Sleep:   time.Sleep,
		Logger:  log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Complete issues the request, retrying transient failures per the
// fixed backoff schedule.
func (c *RetryClient) Complete(ctx context.Context, req Request) (Response, error) {
	backoff := c.Backoff
	if backoff == nil {
		backoff = defaultBackoff
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.Inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		if !IsRetryable(err) || attempt >= len(backoff) {
			return Response{}, err
		}

		wait := backoff[attempt]
		if c.Logger != nil {
			c.Logger.Printf("warning: %v; retrying in %s (attempt %d of %d)", err, wait, attempt+2, len(backoff)+1)
		}
		sleep(wait)
	}
}
