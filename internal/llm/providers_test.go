package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *log.Logger { return log.New(log.Writer(), "[LLM-TEST] ", 0) }

func TestGroqCompleteExtractsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Fatalf("unexpected message shape: %+v", req.Messages)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewGroqProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	got, err := p.Complete(context.Background(), "sys", "user", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestGroqJSONModeRejectionFallsBack(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat != nil {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"response_format is not supported for this model"}}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := NewGroqProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	got, err := p.Complete(context.Background(), "", "user", Options{JSONMode: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("got %q", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one rejected json-mode call, got %d", calls)
	}
}

func TestGroqStreamEmitsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewGroqProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	var tokens []string
	got, err := p.Stream(context.Background(), "", "hi", Options{}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "Hello" || len(tokens) != 2 {
		t.Fatalf("got %q, tokens %v", got, tokens)
	}
}

func TestGroqSafetyBlockSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":""},"finish_reason":"content_filter"}]}`)
	}))
	defer srv.Close()

	p := NewGroqProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	_, err := p.Complete(context.Background(), "", "x", Options{})
	if !errors.Is(err, ErrSafetyBlocked) {
		t.Fatalf("expected ErrSafetyBlocked, got %v", err)
	}
}

func TestGeminiEmptyReplyRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// known quirk: successful envelope with no candidates
			fmt.Fprint(w, `{"candidates":[]}`)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"second try"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	got, err := p.Complete(context.Background(), "", "x", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "second try" {
		t.Fatalf("got %q", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestGeminiSafetyBlockNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	_, err := p.Complete(context.Background(), "", "x", Options{})
	if !errors.Is(err, ErrSafetyBlocked) {
		t.Fatalf("expected ErrSafetyBlocked, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("safety blocks must not be retried, got %d calls", calls)
	}
}

func TestGeminiStreamDiffsCumulativeChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// cumulative text per chunk, not incremental deltas
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Good\"}]}}]}\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Good morning\"}]}}]}\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Good morning!\"}]}}]}\n")
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	var tokens []string
	got, err := p.Stream(context.Background(), "", "hi", Options{}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "Good morning!" {
		t.Fatalf("got %q", got)
	}
	if len(tokens) != 3 || tokens[1] != " morning" || tokens[2] != "!" {
		t.Fatalf("expected suffix deltas, got %v", tokens)
	}
}

func TestGeminiStreamKeepsRepeatedIncrementalTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// incremental deltas where a chunk repeats already-seen text
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"ha\"}]}}]}\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"ha\"}]}}]}\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"!\"}]}}]}\n")
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	var tokens []string
	got, err := p.Stream(context.Background(), "", "hi", Options{}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "haha!" {
		t.Fatalf("repeated delta dropped, got %q", got)
	}
	if len(tokens) != 3 || tokens[1] != "ha" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
}

func TestStreamCancellationStopsPromptly(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"tok\"}}]}\n\n")
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewGroqProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := p.Stream(ctx, "", "hi", Options{}, func(string) { cancel() })
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not stop after cancellation")
	}
}

func TestStreamNotRetriedAfterTokensDelivered(t *testing.T) {
	tokenSeen := make(chan struct{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-tokenSeen
		// reset the connection so the client sees a mid-stream
		// network error rather than a clean end of stream
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetLinger(0)
		}
		conn.Close()
	}))
	defer srv.Close()

	p := NewGroqProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, testLogger())
	var tokens []string
	var once sync.Once
	_, err := p.Stream(context.Background(), "", "hi", Options{}, func(tok string) {
		tokens = append(tokens, tok)
		once.Do(func() { close(tokenSeen) })
	})
	if err == nil {
		t.Fatalf("expected a mid-stream error")
	}
	if len(tokens) != 1 || tokens[0] != "par" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("stream must not be replayed after tokens went out, got %d calls", calls)
	}
}

func TestAPIErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	p := NewGroqProvider(ProviderConfig{BaseURL: srv.URL, Model: "m", APIKey: "bad"}, testLogger())
	_, err := p.Complete(context.Background(), "", "x", Options{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("api errors must not be retried, got %d calls", calls)
	}
}

func TestProviderConfigured(t *testing.T) {
	if (ProviderConfig{APIKey: ""}).Configured() {
		t.Fatalf("empty key must not count as configured")
	}
	if (ProviderConfig{APIKey: "YOUR_API_KEY_HERE"}).Configured() {
		t.Fatalf("placeholder key must not count as configured")
	}
	if !(ProviderConfig{APIKey: "sk-live-abc123"}).Configured() {
		t.Fatalf("real key should count as configured")
	}
}
