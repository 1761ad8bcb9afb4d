package facility

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ScheduleItem is one appointment on a resident's personal schedule.
type ScheduleItem struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
	Location string `json:"location,omitempty"`
}

// Schedules maps a resident key to their per-date schedule. Dates are
// "2006-01-02". The "default_resident" key serves residents without their
// own entry.
type Schedules map[string]map[string][]ScheduleItem

// LoadSchedules reads the schedules document from a JSON file.
func LoadSchedules(path string) (Schedules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}
	var s Schedules
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}
	return s, nil
}

// ResidentSchedule describes the resident's appointments for today.
func (s *Service) ResidentSchedule(residentName string) string {
	key := "default_resident"
	if name := strings.TrimSpace(residentName); name != "" {
		key = strings.ReplaceAll(strings.ToLower(name), " ", "_")
	}

	today := s.now().Format("2006-01-02")
	items := s.schedules[key][today]
	if len(items) == 0 {
		// Fall back to the shared schedule for named residents without
		// their own entry.
		items = s.schedules["default_resident"][today]
	}

	if len(items) == 0 {
		return "You don't have any scheduled appointments today. Feel free to join any of the group activities or relax as you like."
	}

	var b strings.Builder
	b.WriteString("Here's your schedule for today:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s: %s", item.Time, item.Activity)
		if item.Location != "" {
			fmt.Fprintf(&b, " at %s", item.Location)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Reminder is one noted reminder request.
type Reminder struct {
	Text string
	When string
	At   time.Time
}

// SetReminder notes a reminder and confirms it back to the resident. Staff
// follow up on reminders out of band.
func (s *Service) SetReminder(text, when string) string {
	s.reminders = append(s.reminders, Reminder{Text: text, When: when, At: s.now()})
	s.logger.Info("reminder set",
		"text", text,
		"when", when,
	)

	var response string
	if when != "" {
		response = fmt.Sprintf("I'll remind you about '%s' %s. ", text, when)
	} else {
		response = fmt.Sprintf("I've noted your reminder about '%s'. ", text)
	}
	return response + "I'll also let the staff know so they can help remind you."
}

// Reminders returns the reminders noted so far.
func (s *Service) Reminders() []Reminder {
	out := make([]Reminder, len(s.reminders))
	copy(out, s.reminders)
	return out
}
