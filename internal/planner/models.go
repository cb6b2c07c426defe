package planner

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Task statuses recognized across tools and snapshot filtering.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is a single planner task.
type Task struct {
	ID            string  `json:"id"`
	Name          string  `json:"task_name"`
	Category      string  `json:"task_category,omitempty"`
	Deadline      string  `json:"task_deadline,omitempty"`      // YYYY-MM-DD
	DeadlineTime  string  `json:"task_deadline_time,omitempty"` // HH:MM, 24h
	DurationHours float64 `json:"task_duration_hours,omitempty"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// Goal is a longer-horizon objective tasks may reference by category.
type Goal struct {
	ID          string `json:"id"`
	Name        string `json:"goal_name"`
	Description string `json:"goal_description,omitempty"`
	Category    string `json:"goal_category,omitempty"`
	TargetDate  string `json:"goal_target_date,omitempty"`
	Status      string `json:"status"`
}

// Habit is a recurring routine entry.
type Habit struct {
	ID        string `json:"id"`
	Name      string `json:"habit_name"`
	Frequency string `json:"habit_frequency,omitempty"` // daily|weekly
	TimeOfDay string `json:"habit_time,omitempty"`      // HH:MM
}

// ScheduleBlock is one generated block of work on a task.
type ScheduleBlock struct {
	TaskID string `json:"task_id"`
	Date   string `json:"date"`  // YYYY-MM-DD
	Start  string `json:"start"` // HH:MM
	End    string `json:"end"`   // HH:MM
}

// FixedBlock is an immovable commitment the scheduler must plan around.
type FixedBlock struct {
	Name  string `json:"name"`
	Date  string `json:"date,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Profile carries the few user fields the assistant may see.
type Profile struct {
	Name     string `json:"name,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	DayStart string `json:"day_start,omitempty"`
	DayEnd   string `json:"day_end,omitempty"`
}

// Snapshot is the field-whitelisted projection of a user's planner state
// handed to the model as context. Tools mutate it in place; the model only
// ever reads it.
type Snapshot struct {
	Tasks       []Task          `json:"tasks"`
	Goals       []Goal          `json:"goals"`
	Habits      []Habit         `json:"habits"`
	Schedule    []ScheduleBlock `json:"schedule"`
	FixedBlocks []FixedBlock    `json:"fixed_blocks"`
	Profile     Profile         `json:"profile"`
}

// FindTask returns a pointer into the snapshot's task slice, or nil.
func (s *Snapshot) FindTask(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// FindGoal returns a pointer into the snapshot's goal slice, or nil.
func (s *Snapshot) FindGoal(id string) *Goal {
	for i := range s.Goals {
		if s.Goals[i].ID == id {
			return &s.Goals[i]
		}
	}
	return nil
}

// FindHabit returns a pointer into the snapshot's habit slice, or nil.
func (s *Snapshot) FindHabit(id string) *Habit {
	for i := range s.Habits {
		if s.Habits[i].ID == id {
			return &s.Habits[i]
		}
	}
	return nil
}

// NormalizeDate coerces common model output into YYYY-MM-DD. Empty input is
// returned as-is; callers decide whether a date is required.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	for _, layout := range []string{"2006-01-02", "2006/01/02", "01/02/2006", "Jan 2, 2006", "January 2, 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

// NormalizeTime coerces "6pm", "6:30 PM" or "18:00" into 24h HH:MM.
func NormalizeTime(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	for _, layout := range []string{"15:04", "15.04", "3pm", "3:04pm", "3 pm", "3:04 pm"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04"), nil
		}
	}
	// bare hour like "18"
	if h, err := strconv.Atoi(raw); err == nil && h >= 0 && h <= 23 {
		return fmt.Sprintf("%02d:00", h), nil
	}
	return "", fmt.Errorf("unrecognized time %q", raw)
}

// TimeToMinutes converts HH:MM to minutes since midnight.
func TimeToMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad time %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", hhmm)
	}
	return h*60 + m, nil
}

// BlocksOverlap reports whether two same-day intervals overlap. Malformed
// times count as overlapping so invalid blocks never pass validation.
func BlocksOverlap(aStart, aEnd, bStart, bEnd string) bool {
	as, err1 := TimeToMinutes(aStart)
	ae, err2 := TimeToMinutes(aEnd)
	bs, err3 := TimeToMinutes(bStart)
	be, err4 := TimeToMinutes(bEnd)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return true
	}
	return as < be && bs < ae
}

// ClampDurationHours bounds a task duration to something schedulable.
func ClampDurationHours(h float64) float64 {
	if h < 0 {
		return 0
	}
	if h > 16 {
		return 16
	}
	return h
}
