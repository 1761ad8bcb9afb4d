// Package memory holds the resident's biographical memory: a curated life
// story document the assistant draws on for reminiscence conversations,
// plus a semantic index for free-text recall.
//
// Every lookup returns a short first-person snippet ready to be spoken.
package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Moment is one remembered event in the life story.
type Moment struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	// Age the resident was when it happened. Zero means unknown.
	Age int `json:"age,omitempty"`

	// Child or Grandchild names the family member a milestone is about.
	Child      string `json:"child,omitempty"`
	Grandchild string `json:"grandchild,omitempty"`
}

// Person is the biographical header of the life story document.
type Person struct {
	Name           string   `json:"name"`
	Nickname       string   `json:"nickname"`
	BirthDate      string   `json:"birth_date"`
	BirthPlace     string   `json:"birth_place"`
	YearsTeaching  int      `json:"years_teaching"`
	FavoriteFlower string   `json:"favorite_flower"`
	Hobbies        []string `json:"hobbies"`
}

// Biography is the loaded life story: the person header plus named
// categories of moments ("childhood_memories", "teaching_memories", ...).
type Biography struct {
	logger *slog.Logger

	mu         sync.RWMutex
	person     Person
	categories map[string][]Moment
}

// NewBiography creates an empty biography.
func NewBiography(logger *slog.Logger) *Biography {
	if logger == nil {
		logger = slog.Default()
	}
	return &Biography{
		logger:     logger.With("component", "memory"),
		categories: make(map[string][]Moment),
	}
}

// LoadBiography reads the life story document from a store.
func LoadBiography(store Store, logger *slog.Logger) (*Biography, error) {
	b := NewBiography(logger)
	data, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load biography: %w", err)
	}
	if len(data) == 0 {
		return b, nil
	}
	if err := b.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("parse biography: %w", err)
	}
	b.logger.Info("biography loaded",
		"person", b.person.Nickname,
		"categories", len(b.categories),
	)
	return b, nil
}

// UnmarshalJSON decodes the document format: a "person" object alongside
// category keys that each hold a list of moments.
func (b *Biography) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.categories = make(map[string][]Moment)

	for key, msg := range raw {
		if key == "person" {
			if err := json.Unmarshal(msg, &b.person); err != nil {
				return fmt.Errorf("person: %w", err)
			}
			continue
		}
		var moments []Moment
		if err := json.Unmarshal(msg, &moments); err != nil {
			// Skip non-list keys rather than failing the whole load.
			continue
		}
		b.categories[key] = moments
	}
	return nil
}

// MarshalJSON encodes the document format written by Save.
func (b *Biography) MarshalJSON() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	doc := make(map[string]any, len(b.categories)+1)
	doc["person"] = b.person
	for name, moments := range b.categories {
		doc[name] = moments
	}
	return json.Marshal(doc)
}

// AddMoment records a new moment under a category, creating the category if
// needed. Used when the resident shares something worth keeping.
func (b *Biography) AddMoment(category string, m Moment) error {
	category = strings.TrimSpace(strings.ToLower(category))
	if category == "" || category == "person" {
		category = "recent_memories"
	}
	if strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.Description) == "" {
		return fmt.Errorf("memory: moment needs a title or description")
	}

	b.mu.Lock()
	b.categories[category] = append(b.categories[category], m)
	b.mu.Unlock()

	b.logger.Info("moment recorded", "category", category, "title", m.Title)
	return nil
}

// Save writes the document back to a store.
func (b *Biography) Save(store Store) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode biography: %w", err)
	}
	if err := store.Save(data); err != nil {
		return fmt.Errorf("save biography: %w", err)
	}
	return nil
}

// Person returns the biographical header.
func (b *Biography) Person() Person {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.person
}

// SearchMemories finds moments mentioning a topic in their title or
// description and phrases the best two as a spoken answer.
func (b *Biography) SearchMemories(topic string) string {
	needle := strings.ToLower(strings.TrimSpace(topic))
	if needle == "" {
		return "What would you like me to remember? Ask me about a person, a place, or a time in my life."
	}

	b.mu.RLock()
	var found []string
	for _, category := range b.sortedCategories() {
		for _, m := range b.categories[category] {
			haystack := strings.ToLower(m.Title + " " + m.Description)
			if !strings.Contains(haystack, needle) {
				continue
			}
			snippet := m.Title
			if m.Age > 0 {
				snippet += fmt.Sprintf(" when I was %d", m.Age)
			}
			snippet += ": " + truncate(m.Description, 250)
			found = append(found, snippet)
		}
	}
	b.mu.RUnlock()

	if len(found) == 0 {
		return fmt.Sprintf("I don't recall specific memories about %s right now, but I'm happy to talk about my life.", topic)
	}
	return fmt.Sprintf("I remember %d things about %s. %s", len(found), topic, strings.Join(found[:min(2, len(found))], " "))
}

// SearchByAge finds moments from a specific age.
func (b *Biography) SearchByAge(age string) string {
	target, err := strconv.Atoi(strings.TrimSpace(age))
	if err != nil {
		return "Please tell me a specific age number."
	}

	b.mu.RLock()
	var found []string
	for _, category := range b.sortedCategories() {
		for _, m := range b.categories[category] {
			if m.Age == target {
				found = append(found, m.Title+": "+truncate(m.Description, 200))
			}
		}
	}
	b.mu.RUnlock()

	if len(found) == 0 {
		return fmt.Sprintf("I don't have specific memories written down from age %d, but those were good years.", target)
	}
	return fmt.Sprintf("When I was %d, %s", target, strings.Join(found[:min(2, len(found))], " Also, "))
}

// PersonalInfo describes who the resident is.
func (b *Biography) PersonalInfo() string {
	b.mu.RLock()
	p := b.person
	b.mu.RUnlock()

	if p.Name == "" {
		return "I'm still getting my story together. Ask me again in a little while."
	}
	info := fmt.Sprintf("My name is %s, but everyone calls me %s. ", p.Name, p.Nickname)
	info += fmt.Sprintf("I was born on %s in %s. ", p.BirthDate, p.BirthPlace)
	if p.YearsTeaching > 0 {
		info += fmt.Sprintf("I was an elementary school teacher for %d wonderful years. ", p.YearsTeaching)
	}
	if p.FavoriteFlower != "" || len(p.Hobbies) > 0 {
		info += fmt.Sprintf("I love %s and %s.", p.FavoriteFlower, strings.Join(p.Hobbies, ", "))
	}
	return strings.TrimSpace(info)
}

// FamilyInfo summarizes spouse, children, and grandchildren from the family
// categories of the document.
func (b *Biography) FamilyInfo() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var parts []string

	for _, m := range b.categories["young_adult_memories"] {
		if strings.Contains(m.Title, "Robert") && strings.Contains(m.Title, "Meeting") {
			parts = append(parts, "I was married to Robert James Thompson for 52 wonderful years until he passed in 2007.")
			break
		}
	}

	var children []string
	seen := make(map[string]bool)
	for _, m := range b.categories["motherhood_memories"] {
		if m.Child != "" && !seen[m.Child] {
			seen[m.Child] = true
			children = append(children, m.Child)
		}
	}
	if len(children) > 0 {
		parts = append(parts, fmt.Sprintf("I have %d children: %s.", len(children), strings.Join(children, ", ")))
	}

	grandchildren := make(map[string]bool)
	for _, m := range b.categories["family_milestones"] {
		if m.Grandchild != "" {
			grandchildren[m.Grandchild] = true
		}
	}
	if len(grandchildren) > 0 {
		parts = append(parts, fmt.Sprintf("I'm blessed with %d grandchildren.", len(grandchildren)))
	}

	for _, m := range b.categories["family_milestones"] {
		if strings.Contains(m.Title, "Great-Grandchild") {
			parts = append(parts, "I even have great-grandchildren now!")
			break
		}
	}

	if len(parts) == 0 {
		return "I have a wonderful family - children, grandchildren, and great-grandchildren who mean the world to me."
	}
	return strings.Join(parts, " ")
}

// CategoryHighlights phrases the first two moments of a category, for
// prompts like "tell me about your teaching days".
func (b *Biography) CategoryHighlights(category, lead string) string {
	b.mu.RLock()
	moments := b.categories[category]
	b.mu.RUnlock()

	if len(moments) == 0 {
		return lead
	}
	var stories []string
	for _, m := range moments[:min(2, len(moments))] {
		stories = append(stories, m.Title+": "+truncate(m.Description, 200))
	}
	return lead + " " + strings.Join(stories, " Another memory: ")
}

// LifeStory returns a short spoken summary of the whole biography.
func (b *Biography) LifeStory() string {
	b.mu.RLock()
	p := b.person
	b.mu.RUnlock()

	if p.Name == "" {
		return "I've lived a long life full of love, teaching, and family. It's been a beautiful life."
	}
	summary := fmt.Sprintf("I'm %s, born in %s. ", p.Name, p.BirthPlace)
	summary += "I grew up during the Depression, became a teacher"
	if p.YearsTeaching > 0 {
		summary += fmt.Sprintf(", and taught for %d years", p.YearsTeaching)
	}
	summary += ". I married my wonderful husband Robert and we had three children together. "
	summary += "Now I have grandchildren and great-grandchildren. "
	summary += "I've lived a full life filled with love, teaching, and family."
	return summary
}

// sortedCategories returns category names in stable order. Callers hold the
// read lock.
func (b *Biography) sortedCategories() []string {
	names := make([]string, 0, len(b.categories))
	for name := range b.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
