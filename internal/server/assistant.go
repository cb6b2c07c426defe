package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/daybreak-hq/daybreak/internal/agent"
	"github.com/daybreak-hq/daybreak/internal/llm"
	"github.com/daybreak-hq/daybreak/internal/store"
)

// prepareTurn loads the user, resolves the provider and builds the agent
// request. The returned record carries the snapshot the turn will mutate.
func (s *Server) prepareTurn(c echo.Context, req ChatRequest) (*store.UserRecord, agent.Request, error) {
	userID := c.Get("user_id").(string)
	rec, err := s.store.User(userID)
	if err != nil {
		return nil, agent.Request{}, echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	name := llm.Resolve(req.Provider, rec.Provider, s.cfg.LLM.Default, s.registry.ConfiguredSet())
	provider, err := s.registry.Provider(name)
	if err != nil {
		return nil, agent.Request{}, echo.NewHTTPError(http.StatusBadGateway, agent.UserMessage(err))
	}
	turn := agent.Request{
		UserID:   userID,
		Message:  req.Message,
		Provider: provider,
		Snapshot: rec.Data,
		Calendar: s.calendarService(),
	}
	return rec, turn, nil
}

func (s *Server) persistIfDirty(userID string, outcome *agent.Outcome) {
	if outcome == nil || !outcome.Dirty {
		return
	}
	if err := s.store.SaveUserData(userID, outcome.Snapshot); err != nil {
		s.logger.Printf("persist user %s failed: %v", userID, err)
	}
}

// chat runs one turn and returns the outcome as a single JSON document.
func (s *Server) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	rec, turn, err := s.prepareTurn(c, req)
	if err != nil {
		return err
	}
	outcome, err := s.orch.Run(c.Request().Context(), turn, nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, agent.UserMessage(err))
	}
	s.persistIfDirty(rec.ID, outcome)
	return c.JSON(http.StatusOK, outcome)
}

// chatStream runs one turn, relaying every frame as a server-sent event.
// Event names are restricted to meta, status, token, result, error, done.
func (s *Server) chatStream(c echo.Context) error {
	var req ChatRequest
	if c.Request().Method == http.MethodGet {
		req.Message = c.QueryParam("message")
		req.Provider = c.QueryParam("provider")
	} else if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	rec, turn, err := s.prepareTurn(c, req)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	emit := func(e agent.StreamEvent) {
		payload, err := json.Marshal(e.Data)
		if err != nil {
			s.logger.Printf("marshal %s frame: %v", e.Kind, err)
			return
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", e.Kind, payload); err != nil {
			return
		}
		flusher.Flush()
	}

	outcome, err := s.orch.Run(c.Request().Context(), turn, emit)
	if err != nil {
		// the error frame already went out; nothing more to send
		return nil
	}
	s.persistIfDirty(rec.ID, outcome)
	return nil
}
