package facility

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// monday is 2025-06-02 at 10:00, during the day shift.
var monday = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, at time.Time) *Service {
	t.Helper()
	info, err := LoadInfo(filepath.Join("testdata", "facility.json"))
	if err != nil {
		t.Fatalf("load facility info: %v", err)
	}
	schedules, err := LoadSchedules(filepath.Join("testdata", "schedules.json"))
	if err != nil {
		t.Fatalf("load schedules: %v", err)
	}
	return NewService(info, schedules, WithNow(func() time.Time { return at }))
}

func TestAnswer(t *testing.T) {
	s := newTestService(t, monday)

	cases := []struct {
		query string
		want  string
	}{
		{"what time is dinner", "Dinner: 5:30 PM - 7:00 PM"},
		{"what activities are there today", "Chair Yoga"},
		{"where is the library", "second floor"},
		{"who is the nurse here", "care team"},
		{"when can my family visit", "9:00 AM to 8:00 PM"},
		{"tell me something", "Sunrise Senior Living"},
	}
	for _, tc := range cases {
		got := s.Answer(tc.query)
		if !strings.Contains(got, tc.want) {
			t.Errorf("Answer(%q) missing %q:\n%s", tc.query, tc.want, got)
		}
	}
}

func TestDiningSchedule(t *testing.T) {
	s := newTestService(t, monday)

	got := s.DiningSchedule()
	for _, want := range []string{"Breakfast: 7:30 AM", "Garden Dining Room", "special dietary needs"} {
		if !strings.Contains(got, want) {
			t.Errorf("dining schedule missing %q:\n%s", want, got)
		}
	}

	t.Run("no document falls back to defaults", func(t *testing.T) {
		bare := NewService(nil, nil)
		if got := bare.DiningSchedule(); !strings.Contains(got, "Breakfast: 7:30 AM - 9:00 AM") {
			t.Errorf("expected default meal times:\n%s", got)
		}
	})
}

func TestActivitiesFor(t *testing.T) {
	s := newTestService(t, monday)

	t.Run("today", func(t *testing.T) {
		got := s.ActivitiesFor("today")
		if !strings.Contains(got, "Monday") || !strings.Contains(got, "Book Club") {
			t.Errorf("unexpected today answer:\n%s", got)
		}
	})

	t.Run("day without activities", func(t *testing.T) {
		tuesday := newTestService(t, monday.Add(24*time.Hour))
		got := tuesday.ActivitiesFor("today")
		if !strings.Contains(got, "no scheduled group activities") {
			t.Errorf("expected empty-day fallback:\n%s", got)
		}
	})

	t.Run("week caps at two per day", func(t *testing.T) {
		got := s.ActivitiesFor("week")
		if !strings.Contains(got, "Monday") || !strings.Contains(got, "Wednesday") || !strings.Contains(got, "Friday") {
			t.Errorf("expected all scheduled days:\n%s", got)
		}
		if strings.Contains(got, "Garden Walk") {
			t.Errorf("week view should cap at two activities per day:\n%s", got)
		}
	})

	t.Run("unknown range", func(t *testing.T) {
		got := s.ActivitiesFor("next month")
		if !strings.Contains(got, "today or this week") {
			t.Errorf("expected prompt:\n%s", got)
		}
	})
}

func TestFindLocation(t *testing.T) {
	s := newTestService(t, monday)

	t.Run("known place", func(t *testing.T) {
		got := s.FindLocation("library")
		if !strings.Contains(got, "second floor") || !strings.Contains(got, "turn left") {
			t.Errorf("unexpected directions:\n%s", got)
		}
	})

	t.Run("unknown place lists options", func(t *testing.T) {
		got := s.FindLocation("swimming pool")
		if !strings.Contains(got, "Activity Room, Garden Dining Room, Library") {
			t.Errorf("expected sorted location list:\n%s", got)
		}
	})
}

func TestResidentSchedule(t *testing.T) {
	s := newTestService(t, monday)

	t.Run("named resident", func(t *testing.T) {
		got := s.ResidentSchedule("Maggie Thompson")
		if !strings.Contains(got, "Dr. Stevens") || !strings.Contains(got, "Video call with Susan") {
			t.Errorf("unexpected schedule:\n%s", got)
		}
	})

	t.Run("unknown resident gets shared schedule", func(t *testing.T) {
		got := s.ResidentSchedule("Somebody Else")
		if !strings.Contains(got, "Physical therapy") {
			t.Errorf("expected default schedule:\n%s", got)
		}
	})

	t.Run("day with nothing scheduled", func(t *testing.T) {
		later := newTestService(t, monday.Add(48*time.Hour))
		got := later.ResidentSchedule("")
		if !strings.Contains(got, "don't have any scheduled appointments") {
			t.Errorf("expected empty-day answer:\n%s", got)
		}
	})
}

func TestSetReminder(t *testing.T) {
	s := newTestService(t, monday)

	got := s.SetReminder("take my heart medication", "at 2 PM")
	if !strings.Contains(got, "take my heart medication") || !strings.Contains(got, "at 2 PM") {
		t.Errorf("unexpected confirmation:\n%s", got)
	}

	s.SetReminder("water the plants", "")
	reminders := s.Reminders()
	if len(reminders) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(reminders))
	}
	if reminders[0].Text != "take my heart medication" || reminders[0].When != "at 2 PM" {
		t.Errorf("unexpected reminder: %+v", reminders[0])
	}
}

func TestCallStaff(t *testing.T) {
	s := newTestService(t, monday)

	t.Run("distress takes the urgent path", func(t *testing.T) {
		got := s.CallStaff("I fell and my chest hurts")
		if !strings.Contains(got, "alerting staff immediately") {
			t.Errorf("expected urgent response:\n%s", got)
		}
	})

	t.Run("routine requests route by reason", func(t *testing.T) {
		cases := []struct {
			reason string
			want   string
		}{
			{"I need my medication", "nurse will come"},
			{"I need to use the bathroom", "caregiver will be with you"},
			{"I have a question about lunch", "answer your questions"},
			{"just want some company", "care team will be with you"},
		}
		for _, tc := range cases {
			got := s.CallStaff(tc.reason)
			if !strings.Contains(got, tc.want) {
				t.Errorf("CallStaff(%q) missing %q:\n%s", tc.reason, tc.want, got)
			}
		}
	})
}

func TestStaffOnDuty(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{10, "Nurse Patricia"},
		{18, "Nurse James"},
		{2, "Nurse Dana"},
	}
	for _, tc := range cases {
		at := time.Date(2025, 6, 2, tc.hour, 0, 0, 0, time.UTC)
		s := newTestService(t, at)
		got := s.StaffOnDuty()
		if !strings.Contains(got, tc.want) {
			t.Errorf("hour %d: expected %s on duty:\n%s", tc.hour, tc.want, got)
		}
	}

	t.Run("empty roster", func(t *testing.T) {
		bare := NewService(nil, nil, WithNow(func() time.Time { return monday }))
		if got := bare.StaffOnDuty(); !strings.Contains(got, "available 24/7") {
			t.Errorf("expected fallback:\n%s", got)
		}
	})
}

func TestStaffAlert(t *testing.T) {
	s := newTestService(t, monday)
	got := s.StaffAlert("resident unresponsive in room 204")
	if !strings.Contains(got, "EMERGENCY ALERT ACTIVATED") {
		t.Errorf("unexpected alert response:\n%s", got)
	}
}
