package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/tools"
)

// calendarTokens resolves feed tokens back to user ids. Backed by the file
// store; split out so handlers stay testable.
type storeCalendar struct {
	server *Server
}

func (s *Server) calendarService() tools.CalendarService {
	return storeCalendar{server: s}
}

func (sc storeCalendar) Links(ctx context.Context, userID string) (tools.CalendarLinks, error) {
	token, err := sc.server.store.EnsureCalendarToken(userID)
	if err != nil {
		return tools.CalendarLinks{}, err
	}
	base := strings.TrimRight(sc.server.cfg.General.BaseURL, "/")
	subscribe := fmt.Sprintf("%s/calendar/%s.ics", base, token)
	webcal := subscribe
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(webcal, scheme) {
			webcal = "webcal://" + strings.TrimPrefix(webcal, scheme)
			break
		}
	}
	return tools.CalendarLinks{Token: token, SubscribeURL: subscribe, WebcalURL: webcal}, nil
}

func (s *Server) calendarLinks(c echo.Context) error {
	userID := c.Get("user_id").(string)
	links, err := s.calendarService().Links(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, links)
}

// calendarFeed serves the user's schedule as an iCalendar document. The
// token is the only credential; it is unguessable and revocable by rotating
// the stored value.
func (s *Server) calendarFeed(c echo.Context) error {
	token := strings.TrimSuffix(c.Param("token"), ".ics")
	rec, err := s.store.UserByCalendarToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown calendar")
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/calendar; charset=utf-8")
	return c.String(http.StatusOK, renderICS(rec.Data, token))
}

// renderICS emits a minimal VCALENDAR with one VEVENT per schedule block.
func renderICS(snap *planner.Snapshot, token string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//Daybreak//Schedule//EN\r\n")
	for i, block := range snap.Schedule {
		start, err1 := icsTime(block.Date, block.Start)
		end, err2 := icsTime(block.Date, block.End)
		if err1 != nil || err2 != nil {
			continue
		}
		name := "Focus block"
		if t := snap.FindTask(block.TaskID); t != nil {
			name = t.Name
		}
		b.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&b, "UID:%s-%d@daybreak\r\n", token, i)
		fmt.Fprintf(&b, "DTSTART:%s\r\n", start)
		fmt.Fprintf(&b, "DTEND:%s\r\n", end)
		fmt.Fprintf(&b, "SUMMARY:%s\r\n", icsEscape(name))
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func icsTime(date, hhmm string) (string, error) {
	t, err := time.Parse("2006-01-02 15:04", date+" "+hhmm)
	if err != nil {
		return "", err
	}
	return t.Format("20060102T150400"), nil
}

func icsEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}
