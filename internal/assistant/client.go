// Package assistant talks to the AI chat service that drafts document
// content. Replies are plain text; callers feed them to the reconciler.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"frameline/api/internal/workspace"
)

type Mode string

const (
	ModeChat  Mode = "chat"
	ModeDraft Mode = "draft"
)

func (m Mode) Valid() bool {
	return m == ModeChat || m == ModeDraft
}

var ErrNotConfigured = errors.New("assistant not configured")

type Request struct {
	Phase        workspace.Phase         `json:"phase"`
	ToolType     string                  `json:"toolType"`
	LockedPhases []workspace.Phase       `json:"lockedPhases"`
	PhaseData    map[string]string       `json:"phaseData"`
	Messages     []workspace.ChatMessage `json:"messages"`
	Mode         Mode                    `json:"mode"`
}

type response struct {
	Message string `json:"message"`
}

// APIError wraps non-2xx responses from the chat service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant: status=%d body=%s", e.StatusCode, e.Body)
}

type Client struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{URL: url, Timeout: timeout, HTTPClient: &http.Client{}}
}

func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.URL) != ""
}

// Send posts one request and returns the reply text. The client timeout
// bounds the call even when ctx has no deadline.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if req.Mode == "" {
		req.Mode = ModeChat
	}
	if req.LockedPhases == nil {
		req.LockedPhases = []workspace.Phase{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return "", fmt.Errorf("encode assistant request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("build assistant request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call assistant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode assistant response: %w", err)
	}
	return out.Message, nil
}
