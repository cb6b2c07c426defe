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

// GeminiProvider talks to the Google native generateContent API.
type GeminiProvider struct {
	cfg    ProviderConfig
	client *http.Client
	logger *log.Logger
}

// NewGeminiProvider creates an adapter for the native generation API.
func NewGeminiProvider(cfg ProviderConfig, logger *log.Logger) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiProvider{cfg: cfg, client: cfg.httpClient(), logger: logger}
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature      float64 `json:"temperature,omitempty"`
		MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
		ResponseMimeType string  `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func textPart(text string) geminiContent {
	var c geminiContent
	c.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}
	return c
}

func (p *GeminiProvider) buildRequest(system, user string, opts Options) geminiRequest {
	var req geminiRequest
	if system != "" {
		sys := textPart(system)
		req.SystemInstruction = &sys
	}
	userContent := textPart(user)
	userContent.Role = "user"
	req.Contents = []geminiContent{userContent}
	req.GenerationConfig.Temperature = opts.Temperature
	req.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	if opts.JSONMode {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}
	return req
}

func (p *GeminiProvider) post(ctx context.Context, method string, body geminiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:%s?key=%s", p.cfg.BaseURL, p.cfg.Model, method, p.cfg.APIKey)
	if method == "streamGenerateContent" {
		url += "&alt=sse"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelErr(ctx)
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseAPIError(ProviderGemini, resp)
	}
	return resp, nil
}

func (r *geminiResponse) text() (string, error) {
	if r.PromptFeedback.BlockReason != "" {
		return "", ErrSafetyBlocked
	}
	if len(r.Candidates) == 0 {
		return "", ErrEmptyReply
	}
	cand := r.Candidates[0]
	if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" {
		return "", ErrSafetyBlocked
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// Complete issues a non-streaming generation call. Some finish conditions
// return a successful envelope with no text at all; that is retried like a
// transport error up to the attempt cap.
func (p *GeminiProvider) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	var out string
	err := withRetry(ctx, p.logger, "gemini complete", func() error {
		resp, err := p.post(ctx, "generateContent", p.buildRequest(system, user, opts))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		var envelope geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		text, err := envelope.text()
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return ErrEmptyReply
		}
		out = text
		return nil
	})
	return out, err
}

// Stream issues a streaming generation call. Some deployments emit
// cumulative rather than incremental text per chunk; deltas are
// reconstructed by diffing against the text seen so far.
func (p *GeminiProvider) Stream(ctx context.Context, system, user string, opts Options, onToken func(string)) (string, error) {
	var full strings.Builder
	err := withRetry(ctx, p.logger, "gemini stream", func() error {
		full.Reset()
		resp, err := p.post(ctx, "streamGenerateContent", p.buildRequest(system, user, opts))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		seen := ""
		cumulative := false
		decodeErr := DecodeNDJSON(resp.Body, func(raw json.RawMessage) error {
			if ctx.Err() != nil {
				return cancelErr(ctx)
			}
			var chunk geminiResponse
			if err := json.Unmarshal(raw, &chunk); err != nil {
				return nil
			}
			text, terr := chunk.text()
			if terr != nil {
				if terr == ErrSafetyBlocked {
					return terr
				}
				return nil // empty interim chunk
			}
			delta := text
			switch {
			case cumulative:
				if strings.HasPrefix(text, seen) {
					delta = suffixDiff(seen, text)
					seen = text
				} else {
					seen += text
				}
			case len(seen) > 0 && len(text) > len(seen) && strings.HasPrefix(text, seen):
				// a chunk strictly extending everything seen so far
				// means the stream is cumulative; latch that for the
				// rest of the response so an incremental stream
				// repeating earlier text is never misread
				cumulative = true
				delta = suffixDiff(seen, text)
				seen = text
			default:
				seen += text
			}
			if delta != "" {
				full.WriteString(delta)
				onToken(delta)
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
	return full.String(), err
}
