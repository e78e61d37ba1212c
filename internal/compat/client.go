// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package compat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/persona-tui/internal/model"
)

// DefaultBaseURL is Ollama's OpenAI-compatible endpoint.
const DefaultBaseURL = "http://127.0.0.1:11434/v1"

// Config configures the compat client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client completes transcripts through /chat/completions.
type Client struct {
	client *openai.Client
	model  string
	base   string
}

// NewClient creates a client. Local servers ignore the API key, so an
// empty one is allowed.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = base

	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	config.HTTPClient = httpClient

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		base:   base,
	}
}

// Model returns the model name sent with each request.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the endpoint root.
func (c *Client) BaseURL() string {
	return c.base
}

// Complete sends the transcript and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, transcript []model.Turn) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toMessages(transcript),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion", model.ErrServiceResponse)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty completion", model.ErrServiceResponse)
	}
	return content, nil
}

// ListModels returns the model IDs the endpoint advertises.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, classify(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// CheckRunning probes the endpoint by listing models.
func (c *Client) CheckRunning(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func toMessages(turns []model.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		msgs[i] = openai.ChatCompletionMessage{Role: roleName(t.Role), Content: t.Content}
	}
	return msgs
}

func roleName(r model.Role) string {
	switch r {
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// classify maps go-openai failures onto the model service sentinels.
// Only transport failures count as unavailable. An HTTP error status or a
// body the SDK could not decode is a response error.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s (status %d)", model.ErrServiceResponse, apiErr.Message, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: status %d: %v", model.ErrServiceResponse, reqErr.HTTPStatusCode, reqErr.Err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("%w: %v", model.ErrServiceResponse, err)
}
