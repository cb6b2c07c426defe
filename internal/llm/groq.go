package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// GroqProvider talks to an OpenAI-compatible chat-completions backend.
type GroqProvider struct {
	cfg    ProviderConfig
	client *http.Client
	logger *log.Logger
}

// NewGroqProvider creates a chat-completions adapter.
func NewGroqProvider(cfg ProviderConfig, logger *log.Logger) *GroqProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	return &GroqProvider{cfg: cfg, client: cfg.httpClient(), logger: logger}
}

func (p *GroqProvider) Name() string { return ProviderGroq }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Stream         bool          `json:"stream,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

func (p *GroqProvider) buildRequest(system, user string, opts Options, stream bool) chatRequest {
	req := chatRequest{
		Model:       p.cfg.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: user})
	if opts.JSONMode {
		req.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}
	return req
}

func (p *GroqProvider) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelErr(ctx)
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseAPIError(ProviderGroq, resp)
	}
	return resp, nil
}

// Complete issues a non-streaming chat completion.
func (p *GroqProvider) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	var out string
	err := withRetry(ctx, p.logger, "groq complete", func() error {
		resp, err := p.post(ctx, p.buildRequest(system, user, opts, false))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		var envelope struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
					Refusal string `json:"refusal"`
				} `json:"message"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(envelope.Choices) == 0 {
			return ErrEmptyReply
		}
		choice := envelope.Choices[0]
		if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
			return ErrSafetyBlocked
		}
		if strings.TrimSpace(choice.Message.Content) == "" {
			return ErrEmptyReply
		}
		out = choice.Message.Content
		return nil
	})
	if err != nil && opts.JSONMode && isJSONModeRejection(err) {
		p.logger.Printf("groq rejected json mode, retrying without it")
		opts.JSONMode = false
		return p.Complete(ctx, system, user, opts)
	}
	return out, err
}

// Stream issues a streaming chat completion and invokes onToken per delta.
func (p *GroqProvider) Stream(ctx context.Context, system, user string, opts Options, onToken func(string)) (string, error) {
	var full strings.Builder
	err := withRetry(ctx, p.logger, "groq stream", func() error {
		full.Reset()
		resp, err := p.post(ctx, p.buildRequest(system, user, opts, true))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		decodeErr := DecodeSSE(resp.Body, func(f Frame) error {
			if ctx.Err() != nil {
				return cancelErr(ctx)
			}
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(f.Data), &chunk); err != nil {
				return nil // heartbeat or partial frame
			}
			if len(chunk.Choices) == 0 {
				return nil
			}
			choice := chunk.Choices[0]
			if choice.FinishReason == "content_filter" {
				return ErrSafetyBlocked
			}
			if choice.Delta.Content != "" {
				full.WriteString(choice.Delta.Content)
				onToken(choice.Delta.Content)
			}
			return nil
		})
		if decodeErr != nil {
			if ctx.Err() != nil {
				return cancelErr(ctx)
			}
			if full.Len() > 0 {
				// tokens already went out; a replay would duplicate them
				return noRetry(decodeErr)
			}
			return decodeErr
		}
		if full.Len() == 0 {
			return ErrEmptyReply
		}
		return nil
	})
	if err != nil && opts.JSONMode && isJSONModeRejection(err) {
		p.logger.Printf("groq rejected json mode, retrying without it")
		opts.JSONMode = false
		return p.Stream(ctx, system, user, opts, onToken)
	}
	return full.String(), err
}
