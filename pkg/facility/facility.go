// Package facility answers questions about the care facility: dining,
// activities, locations, visiting hours, the resident's personal schedule,
// and staff assistance.
//
// Every answer is a short spoken string. Lookups that fail fall back to a
// reassuring generic answer rather than an error the resident would hear.
package facility

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// Info is the facility document.
type Info struct {
	General       GeneralInfo              `json:"general_info"`
	Dining        Dining                   `json:"dining"`
	Activities    ActivityCalendar         `json:"activities"`
	Locations     map[string]Location      `json:"locations"`
	Staff         map[string][]StaffMember `json:"staff"`
	VisitingHours map[string]string        `json:"visiting_hours"`
}

// GeneralInfo names the facility.
type GeneralInfo struct {
	Name string `json:"name"`
}

// Dining holds meal times and dining-room details.
type Dining struct {
	Schedule    map[string]string `json:"schedule"`
	Location    string            `json:"location,omitempty"`
	SpecialDiet string            `json:"special_diet,omitempty"`
}

// Activity is one scheduled group activity.
type Activity struct {
	Time     string `json:"time"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// ActivityCalendar maps weekday names to that day's activities.
type ActivityCalendar struct {
	DailySchedule map[string][]Activity `json:"daily_schedule"`
}

// Location describes how to find a place in the facility.
type Location struct {
	Floor      string `json:"floor,omitempty"`
	Directions string `json:"directions"`
}

// StaffMember is one person on a shift roster.
type StaffMember struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// LoadInfo reads the facility document from a JSON file.
func LoadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facility info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse facility info: %w", err)
	}
	return &info, nil
}

// Service answers facility questions.
type Service struct {
	info      *Info
	schedules Schedules
	logger    *slog.Logger

	now func() time.Time

	reminders []Reminder
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNow overrides the wall clock. For tests.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a facility service over the given documents. Either
// may be nil; answers then use the generic fallbacks.
func NewService(info *Info, schedules Schedules, opts ...ServiceOption) *Service {
	s := &Service{
		info:      info,
		schedules: schedules,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "facility")
	return s
}

// Answer routes a free-form facility question to the matching lookup.
func (s *Service) Answer(query string) string {
	q := strings.ToLower(query)

	switch {
	case containsAny(q, "meal", "dining", "eat", "food", "breakfast", "lunch", "dinner"):
		return s.DiningSchedule()

	case containsAny(q, "activity", "activities", "event", "program"):
		return s.ActivitiesFor("today")

	case containsAny(q, "location", "where", "find", "room", "place"):
		if s.info != nil {
			for name := range s.info.Locations {
				if strings.Contains(q, strings.ToLower(name)) {
					return s.FindLocation(name)
				}
			}
		}
		return "I can help you find locations in the facility. Which room or area are you looking for?"

	case containsAny(q, "staff", "nurse", "caregiver", "doctor", "who"):
		return "Our care team includes nurses, caregivers, and support staff available 24/7. Would you like to know who is currently on duty?"

	case containsAny(q, "visit", "visitor", "guest", "family"):
		hours := "daily from 9am-8pm"
		if s.info != nil && s.info.VisitingHours["general"] != "" {
			hours = s.info.VisitingHours["general"]
		}
		return fmt.Sprintf("Visiting hours are %s. Family members can visit anytime with prior arrangement.", hours)

	default:
		name := "Our facility"
		if s.info != nil && s.info.General.Name != "" {
			name = s.info.General.Name
		}
		return fmt.Sprintf("%s is here to support you. I can help you with dining schedules, activities, finding locations, or calling staff. What would you like to know?", name)
	}
}

// DiningSchedule describes today's meal times.
func (s *Service) DiningSchedule() string {
	schedule := map[string]string{}
	var dining Dining
	if s.info != nil {
		dining = s.info.Dining
		schedule = dining.Schedule
	}

	pick := func(meal, fallback string) string {
		if v := schedule[meal]; v != "" {
			return v
		}
		return fallback
	}

	var b strings.Builder
	b.WriteString("Today's meal times:\n")
	fmt.Fprintf(&b, "Breakfast: %s\n", pick("breakfast", "7:30 AM - 9:00 AM"))
	fmt.Fprintf(&b, "Lunch: %s\n", pick("lunch", "12:00 PM - 1:30 PM"))
	fmt.Fprintf(&b, "Dinner: %s\n", pick("dinner", "5:30 PM - 7:00 PM"))

	if dining.Location != "" {
		fmt.Fprintf(&b, "\nMeals are served in the %s.", dining.Location)
	}
	if dining.SpecialDiet != "" {
		b.WriteString(" We accommodate special dietary needs - just let the staff know.")
	}
	return b.String()
}

// ActivitiesFor describes the activity calendar for "today" or "week".
func (s *Service) ActivitiesFor(when string) string {
	var calendar map[string][]Activity
	if s.info != nil {
		calendar = s.info.Activities.DailySchedule
	}

	switch strings.ToLower(strings.TrimSpace(when)) {
	case "today", "":
		day := s.now().Weekday().String()
		today := calendar[day]
		if len(today) == 0 {
			return "There are no scheduled group activities for today, but you can always enjoy the common areas, library, or garden."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Today's activities (%s):\n", day)
		for _, a := range today {
			fmt.Fprintf(&b, "- %s: %s - %s\n", a.Time, a.Name, a.Location)
		}
		return b.String()

	case "week":
		var b strings.Builder
		b.WriteString("This week's recurring activities:\n")
		for _, day := range weekdayOrder(calendar) {
			acts := calendar[day]
			if len(acts) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s:\n", day)
			for i, a := range acts {
				if i >= 2 {
					break
				}
				fmt.Fprintf(&b, "  - %s: %s\n", a.Time, a.Name)
			}
		}
		return b.String()

	default:
		return "I can tell you about activities today or this week. Which would you like to know?"
	}
}

// FindLocation gives directions to a place in the facility.
func (s *Service) FindLocation(place string) string {
	var locations map[string]Location
	if s.info != nil {
		locations = s.info.Locations
	}

	needle := strings.ToLower(strings.TrimSpace(place))
	for name, loc := range locations {
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "The %s is located ", name)
		if loc.Floor != "" {
			fmt.Fprintf(&b, "on the %s. ", loc.Floor)
		}
		b.WriteString(loc.Directions)
		return b.String()
	}

	names := make([]string, 0, len(locations))
	for name := range locations {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "Let me call a staff member to help you find that location."
	}
	return fmt.Sprintf("I can help you find: %s. Which one are you looking for?", strings.Join(names, ", "))
}

// weekdayOrder returns the calendar's days in Monday-first order.
func weekdayOrder(calendar map[string][]Activity) []string {
	week := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	var out []string
	for _, day := range week {
		if _, ok := calendar[day]; ok {
			out = append(out, day)
		}
	}
	return out
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
