package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// OpenAIProvider talks to the OpenAI Responses API.
type OpenAIProvider struct {
	cfg    ProviderConfig
	client *http.Client
	logger *log.Logger
}

// NewOpenAIProvider creates an adapter for the Responses API.
func NewOpenAIProvider(cfg ProviderConfig, logger *log.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{cfg: cfg, client: cfg.httpClient(), logger: logger}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

type openaiRequest struct {
	Model           string  `json:"model"`
	Input           string  `json:"input"`
	Instructions    string  `json:"instructions,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
	Stream          bool    `json:"stream,omitempty"`
	Text            *struct {
		Format struct {
			Type string `json:"type"`
		} `json:"format"`
	} `json:"text,omitempty"`
}

func (p *OpenAIProvider) buildRequest(system, user string, opts Options, stream bool) openaiRequest {
	req := openaiRequest{
		Model:           p.cfg.Model,
		Input:           user,
		Instructions:    system,
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.MaxTokens,
		Stream:          stream,
	}
	if opts.JSONMode {
		req.Text = &struct {
			Format struct {
				Type string `json:"type"`
			} `json:"format"`
		}{}
		req.Text.Format.Type = "json_object"
	}
	return req
}

func (p *OpenAIProvider) post(ctx context.Context, body openaiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelErr(ctx)
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseAPIError(ProviderOpenAI, resp)
	}
	return resp, nil
}

// Complete issues a non-streaming call and extracts the reply text.
func (p *OpenAIProvider) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	var out string
	err := withRetry(ctx, p.logger, "openai complete", func() error {
		resp, err := p.post(ctx, p.buildRequest(system, user, opts, false))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		var envelope struct {
			OutputText string `json:"output_text"`
			Output     []struct {
				Type    string `json:"type"`
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"output"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		text := envelope.OutputText
		if text == "" {
			var b strings.Builder
			for _, item := range envelope.Output {
				if item.Type != "message" {
					continue
				}
				for _, c := range item.Content {
					if c.Type == "output_text" {
						b.WriteString(c.Text)
					}
				}
			}
			text = b.String()
		}
		if strings.TrimSpace(text) == "" {
			return ErrEmptyReply
		}
		out = text
		return nil
	})
	if err != nil && opts.JSONMode && isJSONModeRejection(err) {
		p.logger.Printf("openai rejected json mode, retrying without it")
		opts.JSONMode = false
		return p.Complete(ctx, system, user, opts)
	}
	return out, err
}

// Stream issues a streaming call, invoking onToken per delta, and returns
// the assembled reply.
func (p *OpenAIProvider) Stream(ctx context.Context, system, user string, opts Options, onToken func(string)) (string, error) {
	var full strings.Builder
	err := withRetry(ctx, p.logger, "openai stream", func() error {
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
			var ev struct {
				Type  string `json:"type"`
				Delta string `json:"delta"`
				Text  string `json:"text"`
			}
			if err := json.Unmarshal([]byte(f.Data), &ev); err != nil {
				return nil // partial frame, skip
			}
			kind := ev.Type
			if kind == "" {
				kind = f.Event
			}
			switch kind {
			case "response.output_text.delta":
				if ev.Delta != "" {
					full.WriteString(ev.Delta)
					onToken(ev.Delta)
				}
			case "response.refusal.delta", "response.refusal.done":
				return ErrSafetyBlocked
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
		p.logger.Printf("openai rejected json mode, retrying without it")
		opts.JSONMode = false
		return p.Stream(ctx, system, user, opts, onToken)
	}
	return full.String(), err
}

// parseAPIError extracts a human message from a non-2xx backend response.
func parseAPIError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	msg := strings.TrimSpace(string(body))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	return &APIError{Provider: provider, Status: resp.StatusCode, Message: msg}
}

// isJSONModeRejection detects backends that refuse the strict-JSON
// response-format feature for the selected model.
func isJSONModeRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "response_format") || strings.Contains(msg, "json_object") ||
		strings.Contains(msg, "json mode") || strings.Contains(msg, "response format")
}
