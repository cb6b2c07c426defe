package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Provider names form a closed enum; exactly one is effective per turn.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// ProviderNames lists supported backends in stable fallback order.
var ProviderNames = []string{ProviderGemini, ProviderGroq, ProviderOpenAI}

// Options are the per-call knobs every adapter understands.
type Options struct {
	Temperature float64
	MaxTokens   int
	// JSONMode asks the backend for strict-JSON output where supported.
	// Adapters retry once without it if the backend rejects the feature.
	JSONMode bool
}

// Provider abstracts one LLM backend behind two operations. Stream invokes
// onToken for each incremental token and returns the full reply text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
	Stream(ctx context.Context, system, user string, opts Options, onToken func(string)) (string, error)
}

// ProviderConfig holds one backend's connection settings. Read-only after
// startup.
type ProviderConfig struct {
	BaseURL  string
	Model    string
	APIKey   string
	ProxyURL string
	Timeout  time.Duration
}

// Configured reports whether the credential is present and not a
// placeholder left over from a config template.
func (c ProviderConfig) Configured() bool {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	for _, ph := range []string{"your-", "your_", "changeme", "placeholder", "xxxx"} {
		if strings.Contains(lower, ph) {
			return false
		}
	}
	return true
}

func (c ProviderConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if c.ProxyURL != "" {
		if proxy, err := url.Parse(c.ProxyURL); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
		}
	}
	return client
}

// Registry holds one adapter per configured backend. Built once at startup.
type Registry struct {
	providers map[string]Provider
	configs   map[string]ProviderConfig
	logger    *log.Logger
}

// NewRegistry builds adapters for every backend present in configs,
// configured or not; calls through an unconfigured one fail with
// ErrNotConfigured rather than silently vanishing.
func NewRegistry(configs map[string]ProviderConfig, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.Writer(), "[LLM] ", log.LstdFlags)
	}
	r := &Registry{
		providers: make(map[string]Provider),
		configs:   make(map[string]ProviderConfig),
		logger:    logger,
	}
	for name, cfg := range configs {
		switch name {
		case ProviderOpenAI:
			r.providers[name] = NewOpenAIProvider(cfg, logger)
		case ProviderGroq:
			r.providers[name] = NewGroqProvider(cfg, logger)
		case ProviderGemini:
			r.providers[name] = NewGeminiProvider(cfg, logger)
		default:
			logger.Printf("ignoring unknown provider %q", name)
			continue
		}
		r.configs[name] = cfg
	}
	return r
}

// Provider returns the adapter for name, or an error for unknown or
// unconfigured backends.
func (r *Registry) Provider(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if !r.configs[name].Configured() {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	return p, nil
}

// ConfiguredSet returns which backends have usable credentials.
func (r *Registry) ConfiguredSet() map[string]bool {
	out := make(map[string]bool, len(r.configs))
	for name, cfg := range r.configs {
		out[name] = cfg.Configured()
	}
	return out
}

const maxAttempts = 3

// withRetry runs fn up to maxAttempts times with linearly increasing
// backoff (attempt x 1s). Only transient failures are retried; see
// retryable.
func withRetry(ctx context.Context, logger *log.Logger, label string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		logger.Printf("%s attempt %d failed: %v (retrying)", label, attempt, err)
		delay := time.Duration(attempt) * time.Second
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return cancelErr(ctx)
		}
	}
	return err
}

// suffixDiff returns the new suffix of full relative to prev. Backends that
// emit cumulative text per chunk get diffed so callers only ever see
// incremental tokens.
func suffixDiff(prev, full string) string {
	if strings.HasPrefix(full, prev) {
		return full[len(prev):]
	}
	// backend restarted the text; treat the whole chunk as new
	return full
}

// sortedConfigured returns configured provider names in stable order.
func sortedConfigured(configured map[string]bool) []string {
	var names []string
	for name, ok := range configured {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
