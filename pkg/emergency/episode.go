// Package emergency implements the emergency escalation coordinator: one
// tracked incident from detection to report dispatch.
//
// The lifecycle of an incident is a small state machine:
//
//	idle -> gathering -> completed
//
// An episode opens when an emergency utterance is detected, immediately
// requests an outbound call to the highest-priority contact, and collects
// conversation turns for a bounded window. The episode closes when the
// deferred timer fires, when a narrative is supplied, or when completion
// is requested explicitly. The report email is dispatched exactly once.
package emergency

import (
	"time"
)

// Type tags the kind of emergency being reported.
type Type string

// Recognized emergency types. Unknown values are treated as TypeGeneral.
const (
	TypeGeneral Type = "general"
	TypeMedical Type = "medical"
	TypeFall    Type = "fall"
	TypeUrgent  Type = "urgent"
)

// ParseType normalizes a free-form emergency type string.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeMedical, TypeFall, TypeUrgent:
		return Type(s)
	default:
		return TypeGeneral
	}
}

// Status is the lifecycle state of an episode.
type Status int

const (
	// StatusGathering indicates the collection window is open.
	StatusGathering Status = iota
	// StatusCompleted indicates the report has been dispatched (or the
	// dispatch attempt was made) and the episode is terminal.
	StatusCompleted
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case StatusGathering:
		return "gathering"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// TranscriptEntry is one recorded conversation turn.
type TranscriptEntry struct {
	Speaker string    `json:"speaker"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Details holds the named report slots gathered during the collection
// window. Each slot starts empty; later writes overwrite.
type Details struct {
	PainLevel      string `json:"pain_level,omitempty"`
	InjuredArea    string `json:"injured_area,omitempty"`
	Consciousness  string `json:"consciousness,omitempty"`
	Breathing      string `json:"breathing,omitempty"`
	Location       string `json:"location,omitempty"`
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// Slot names a Details field for SetDetail.
type Slot string

// Valid detail slots.
const (
	SlotPainLevel      Slot = "pain_level"
	SlotInjuredArea    Slot = "injured_area"
	SlotConsciousness  Slot = "consciousness"
	SlotBreathing      Slot = "breathing"
	SlotLocation       Slot = "location"
	SlotAdditionalInfo Slot = "additional_info"
)

// set writes a slot value. Returns false for an unknown slot.
func (d *Details) set(slot Slot, value string) bool {
	switch slot {
	case SlotPainLevel:
		d.PainLevel = value
	case SlotInjuredArea:
		d.InjuredArea = value
	case SlotConsciousness:
		d.Consciousness = value
	case SlotBreathing:
		d.Breathing = value
	case SlotLocation:
		d.Location = value
	case SlotAdditionalInfo:
		d.AdditionalInfo = value
	default:
		return false
	}
	return true
}

// Episode is one tracked emergency incident. It is owned exclusively by the
// Aggregator; all mutation goes through Aggregator operations.
type Episode struct {
	ID               string            `json:"id"`
	Type             Type              `json:"type"`
	InitialMessage   string            `json:"initial_message"`
	OpenedAt         time.Time         `json:"opened_at"`
	ClosedAt         time.Time         `json:"closed_at,omitempty"`
	Status           Status            `json:"status"`
	Transcript       []TranscriptEntry `json:"transcript"`
	Narrative        string            `json:"narrative,omitempty"`
	Details          Details           `json:"details"`
	QuestionsSkipped bool              `json:"questions_skipped"`
}

// snapshot returns a deep copy safe to hand out after unlocking.
func (e *Episode) snapshot() Episode {
	cp := *e
	cp.Transcript = make([]TranscriptEntry, len(e.Transcript))
	copy(cp.Transcript, e.Transcript)
	return cp
}
