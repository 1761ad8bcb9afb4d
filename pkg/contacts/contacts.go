// Package contacts holds the resident's phone directory: general contacts
// the resident may ask to call, and prioritized emergency contacts.
package contacts

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the contacts package.
var (
	// ErrInvalidNumber is returned when a phone number is not in
	// international format.
	ErrInvalidNumber = errors.New("contacts: phone number must be in international format (+...)")

	// ErrUnknownContact is returned when a lookup finds no match.
	ErrUnknownContact = errors.New("contacts: unknown contact")

	// ErrEmptyName is returned when a contact has no name.
	ErrEmptyName = errors.New("contacts: contact name required")
)

// Priority orders emergency contacts. Lower sorts first.
type Priority int

const (
	// PriorityNone marks a general contact, outside the emergency chain.
	PriorityNone Priority = 0

	// PriorityPrimary is called first in an emergency.
	PriorityPrimary Priority = 1

	// PrioritySecondary is the fallback family contact.
	PrioritySecondary Priority = 2

	// PriorityDoctor is the medical contact.
	PriorityDoctor Priority = 3
)

// String returns the priority label.
func (p Priority) String() string {
	switch p {
	case PriorityPrimary:
		return "primary"
	case PrioritySecondary:
		return "secondary"
	case PriorityDoctor:
		return "doctor"
	default:
		return "none"
	}
}

// ParsePriority converts a label to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary":
		return PriorityPrimary, nil
	case "secondary":
		return PrioritySecondary, nil
	case "doctor":
		return PriorityDoctor, nil
	case "", "none":
		return PriorityNone, nil
	default:
		return PriorityNone, fmt.Errorf("contacts: unknown priority %q", s)
	}
}

// Entry is one contact.
type Entry struct {
	// Name is the lookup key, matched case-insensitively.
	Name string

	// Number is the phone number in international format.
	Number string

	// Relationship describes who this is to the resident ("daughter",
	// "family doctor"). Spoken back to the resident.
	Relationship string

	// RequiresConsent gates outbound calls behind an explicit yes from
	// the resident.
	RequiresConsent bool

	// Priority places the contact in the emergency chain. PriorityNone
	// for general contacts.
	Priority Priority
}

// Validate checks the entry fields.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	return ValidateNumber(e.Number)
}

// ValidateNumber checks international phone format: a leading "+" followed
// by digits only.
func ValidateNumber(number string) error {
	if len(number) < 2 || number[0] != '+' {
		return ErrInvalidNumber
	}
	for _, r := range number[1:] {
		if r < '0' || r > '9' {
			return ErrInvalidNumber
		}
	}
	return nil
}

// MaskNumber hides the middle of a phone number for spoken or listed
// output. Short numbers are fully masked.
func MaskNumber(number string) string {
	if len(number) > 7 {
		return number[:3] + "***" + number[len(number)-4:]
	}
	return "***"
}
