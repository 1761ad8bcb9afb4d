package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carewell-ai/go-companion/internal/metrics"
	"github.com/carewell-ai/go-companion/pkg/consent"
	"github.com/carewell-ai/go-companion/pkg/contacts"
	"github.com/carewell-ai/go-companion/pkg/dispatch"
	"github.com/carewell-ai/go-companion/pkg/emergency"
	"github.com/carewell-ai/go-companion/pkg/facility"
	"github.com/carewell-ai/go-companion/pkg/memory"
	"github.com/carewell-ai/go-companion/pkg/session"
)

// ToolsConfig holds dependencies for the conversation tool surface.
type ToolsConfig struct {
	Aggregator *emergency.Aggregator
	Dispatcher *dispatch.Dispatcher
	Consent    *consent.Gate
	Contacts   *contacts.Directory

	Biography      *memory.Biography
	BiographyStore memory.Store  // persists remember_memory; optional
	Semantic       *memory.Index // optional

	Facility *facility.Service // optional

	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger

	ResidentName  string
	AssistantName string
}

// Tools returns every tool the voice agent can invoke. Handlers validate
// their inputs, answer bad input with a clarifying question, and always
// return a speakable string.
func Tools(cfg ToolsConfig) []session.Tool {
	agg := cfg.Aggregator
	resident := cfg.ResidentName

	tools := []session.Tool{
		{
			Name:        "start_emergency",
			Description: "Open an emergency report and call for help. Use immediately when the resident says they fell, are hurt, or need help.",
			Parameters: map[string]any{
				"emergency_type": map[string]any{
					"type":        "string",
					"enum":        []string{"general", "medical", "fall", "urgent"},
					"description": "Kind of emergency",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "What the resident said when asking for help",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				message, _ := args["message"].(string)
				typeArg, _ := args["emergency_type"].(string)

				res := agg.StartEpisode(emergency.ParseType(typeArg), message)
				if cfg.Metrics != nil && !res.Reused {
					cfg.Metrics.EpisodesOpened.WithLabelValues(string(res.Episode.Type)).Inc()
				}

				if res.Reused {
					return "I'm already getting help for you. Stay with me and tell me what's happening.", nil
				}

				switch {
				case errors.Is(res.CallErr, dispatch.ErrCooldownActive):
					return "I called for help just a few minutes ago and they're on their way. Can you tell me more about what happened?", nil
				case res.CallErr != nil:
					return "I'm having trouble reaching your family right now, but I've started your emergency report and I'm staying right here with you. What happened?", nil
				}
				return "Help is on the way. I've called your emergency contact. Now, can you tell me what happened? Are you hurt?", nil
			},
		},
		{
			Name:        "call_911",
			Description: "Call 911 emergency services directly. Use only for life-threatening situations: chest pain, trouble breathing, unresponsiveness, serious injury.",
			Parameters: map[string]any{
				"situation": map[string]any{
					"type":        "string",
					"description": "Brief description of the life-threatening situation",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				situation, _ := args["situation"].(string)
				script := fmt.Sprintf(
					"This is an automated emergency call on behalf of %s, an elderly resident who needs immediate assistance. %s",
					resident, situation,
				)

				ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
				defer cancel()
				if _, err := cfg.Dispatcher.Call911(ctx, script); err != nil {
					return "I couldn't reach 911 from here. Please shout for help or press your call button now.", nil
				}
				if cfg.Metrics != nil {
					cfg.Metrics.CallsPlaced.WithLabelValues("escalation").Inc()
				}
				return "I've called 911. Emergency services are on their way. Stay where you are and keep talking to me.", nil
			},
		},
		{
			Name:        "record_emergency_turn",
			Description: "Record what was said during an open emergency so it goes into the report. Call after every exchange while an emergency is open.",
			Parameters: map[string]any{
				"speaker": map[string]any{
					"type":        "string",
					"enum":        []string{"user", "assistant"},
					"description": "Who said it",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "What was said",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				speaker, _ := args["speaker"].(string)
				message, _ := args["message"].(string)
				if message == "" {
					return "What would you like me to note down?", nil
				}
				if speaker == "" {
					speaker = "user"
				}

				res, err := agg.RecordTurn(speaker, message)
				if errors.Is(err, emergency.ErrNoActiveEpisode) {
					return "There's no emergency report open right now.", nil
				}
				if err != nil {
					return "", err
				}
				if res.Completed {
					return "I've noted that and sent the full report to your family.", nil
				}
				return "I've noted that.", nil
			},
		},
		{
			Name:        "set_emergency_detail",
			Description: "Record a specific answer in the emergency report: pain level, injured area, consciousness, breathing, location, or additional info.",
			Parameters: map[string]any{
				"slot": map[string]any{
					"type":        "string",
					"enum":        []string{"pain_level", "injured_area", "consciousness", "breathing", "location", "additional_info"},
					"description": "Which report field to fill",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The resident's answer",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				slot, _ := args["slot"].(string)
				value, _ := args["value"].(string)
				if value == "" {
					return "What should I put down for that?", nil
				}

				err := agg.SetDetail(emergency.Slot(slot), value)
				switch {
				case errors.Is(err, emergency.ErrNoActiveEpisode):
					return "There's no emergency report open right now.", nil
				case errors.Is(err, emergency.ErrUnknownSlot):
					return "I can note pain level, injured area, consciousness, breathing, location, or additional info. Which is it?", nil
				case err != nil:
					return "", err
				}
				return "Got it, I've added that to the report.", nil
			},
		},
		{
			Name:        "skip_emergency_questions",
			Description: "Close the emergency report immediately because the resident cannot answer follow-up questions. Sends the report right away.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				closed, err := agg.SkipRemaining()
				if errors.Is(err, emergency.ErrNoActiveEpisode) {
					return "There's no emergency report open right now.", nil
				}
				if err != nil {
					return "", err
				}
				if !closed {
					return "The report has already been sent. Help is on the way.", nil
				}
				return "That's all right, don't worry about the questions. I've sent everything to your family. Help is coming.", nil
			},
		},
		{
			Name:        "supply_emergency_narrative",
			Description: "Set the what-happened summary for the emergency report when you have already pieced it together from conversation, then send the report.",
			Parameters: map[string]any{
				"narrative": map[string]any{
					"type":        "string",
					"description": "Summary of what happened",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				narrative, _ := args["narrative"].(string)
				if strings.TrimSpace(narrative) == "" {
					return "Tell me briefly what happened and I'll put it in the report.", nil
				}

				closed, err := agg.SupplyNarrative(narrative)
				if errors.Is(err, emergency.ErrNoActiveEpisode) {
					return "There's no emergency report open right now.", nil
				}
				if err != nil {
					return "", err
				}
				if !closed {
					return "The report has already been sent. Help is on the way.", nil
				}
				return "Thank you. I've sent the full report to your family.", nil
			},
		},
		{
			Name:        "send_emergency_report_now",
			Description: "Close the open emergency report and send it immediately without waiting.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				closed, err := agg.CompleteNow()
				if errors.Is(err, emergency.ErrNoActiveEpisode) {
					return "There's no emergency report open right now.", nil
				}
				if err != nil {
					return "", err
				}
				if !closed {
					return "The report has already been sent.", nil
				}
				return "Done. I've sent the emergency report to your family.", nil
			},
		},
		{
			Name:        "emergency_status",
			Description: "Check whether an emergency report is open and what it contains so far.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				ep, ok := agg.Status()
				if !ok {
					return "There's no emergency report right now. Everything is calm.", nil
				}
				if ep.Status == emergency.StatusCompleted {
					return fmt.Sprintf("The %s emergency report has been sent. Help has been notified.", ep.Type), nil
				}
				return fmt.Sprintf(
					"A %s emergency is open. I've recorded %d things so far and I'm still gathering details.",
					ep.Type, len(ep.Transcript),
				), nil
			},
		},
	}

	tools = append(tools, callTools(cfg)...)
	tools = append(tools, contactTools(cfg)...)
	tools = append(tools, memoryTools(cfg)...)
	if cfg.Facility != nil {
		tools = append(tools, facilityTools(cfg)...)
	}
	return tools
}

// callTools covers outbound calls to the contact book, behind the consent
// gate.
func callTools(cfg ToolsConfig) []session.Tool {
	return []session.Tool{
		{
			Name:        "request_call",
			Description: "Call a person from the contact book for the resident. Some contacts require the resident's spoken consent first.",
			Parameters: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name of the person to call",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				name, _ := args["name"].(string)
				if strings.TrimSpace(name) == "" {
					return "Who would you like me to call?", nil
				}

				entry, err := cfg.Contacts.Lookup(name)
				if err != nil {
					return fmt.Sprintf("I don't have %s in the contact book. Would you like me to add them?", name), nil
				}

				script := fmt.Sprintf(
					"Hello %s, this is %s, %s's care assistant. %s asked me to give you a call. Please call back when you have a moment.",
					entry.Name, cfg.AssistantName, cfg.ResidentName, cfg.ResidentName,
				)

				ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
				defer cancel()
				outcome, err := cfg.Consent.RequestCall(ctx, entry, script)
				if err != nil {
					return fmt.Sprintf("I couldn't reach %s just now. Shall I try again in a little while?", entry.Name), nil
				}
				if outcome.NeedsConsent {
					if cfg.Metrics != nil {
						cfg.Metrics.ConsentHeld.Inc()
					}
					return outcome.Question, nil
				}
				if cfg.Metrics != nil {
					cfg.Metrics.CallsPlaced.WithLabelValues("contact").Inc()
				}
				return fmt.Sprintf("I'm calling %s for you now.", entry.Name), nil
			},
		},
		{
			Name:        "confirm_call_consent",
			Description: "Resolve a pending call that is waiting for the resident's yes or no.",
			Parameters: map[string]any{
				"answer": map[string]any{
					"type":        "string",
					"enum":        []string{"yes", "no"},
					"description": "The resident's answer",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				answer, _ := args["answer"].(string)
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "yes", "no":
				default:
					return "Should I make that call? Please say yes or no.", nil
				}
				given := strings.EqualFold(answer, "yes")

				ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
				defer cancel()
				decision, err := cfg.Consent.Confirm(ctx, given)
				if errors.Is(err, consent.ErrNoPending) {
					return "There's no call waiting for your answer right now.", nil
				}
				if err != nil {
					return fmt.Sprintf("I couldn't reach %s just now. Shall I try again in a little while?", decision.Contact.Name), nil
				}
				if !decision.Placed {
					return fmt.Sprintf("All right, I won't call %s.", decision.Contact.Name), nil
				}
				if cfg.Metrics != nil {
					cfg.Metrics.CallsPlaced.WithLabelValues("contact").Inc()
				}
				return fmt.Sprintf("I'm calling %s for you now.", decision.Contact.Name), nil
			},
		},
	}
}

// contactTools covers contact book management.
func contactTools(cfg ToolsConfig) []session.Tool {
	return []session.Tool{
		{
			Name:        "add_contact",
			Description: "Add or update a person in the contact book.",
			Parameters: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The person's name",
				},
				"number": map[string]any{
					"type":        "string",
					"description": "Phone number in +15551234567 form",
				},
				"relationship": map[string]any{
					"type":        "string",
					"description": "How they relate to the resident, like son or friend",
				},
				"requires_consent": map[string]any{
					"type":        "boolean",
					"description": "Whether the resident must approve calls to this person",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				entry := contacts.Entry{}
				entry.Name, _ = args["name"].(string)
				entry.Number, _ = args["number"].(string)
				entry.Relationship, _ = args["relationship"].(string)
				entry.RequiresConsent, _ = args["requires_consent"].(bool)

				if strings.TrimSpace(entry.Name) == "" {
					return "What's the name of the person you'd like me to add?", nil
				}
				if err := contacts.ValidateNumber(entry.Number); err != nil {
					return fmt.Sprintf("I need a full phone number for %s, starting with a plus sign and country code.", entry.Name), nil
				}

				ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
				defer cancel()
				if err := cfg.Contacts.Add(ctx, entry); err != nil {
					return "", err
				}
				return fmt.Sprintf("I've saved %s's number at %s.", entry.Name, contacts.MaskNumber(entry.Number)), nil
			},
		},
		{
			Name:        "list_contacts",
			Description: "List everyone in the contact book.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				entries := cfg.Contacts.List()
				if len(entries) == 0 {
					return "The contact book is empty. Tell me a name and number and I'll add them.", nil
				}
				var parts []string
				for _, e := range entries {
					part := e.Name
					if e.Relationship != "" {
						part += ", your " + e.Relationship
					}
					part += ", at " + e.Number
					parts = append(parts, part)
				}
				return fmt.Sprintf("You have %d contacts: %s.", len(entries), strings.Join(parts, "; ")), nil
			},
		},
		{
			Name:        "add_emergency_contact",
			Description: "Add an emergency contact with a priority so they can be called when something happens.",
			Parameters: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The person's name",
				},
				"number": map[string]any{
					"type":        "string",
					"description": "Phone number in +15551234567 form",
				},
				"relationship": map[string]any{
					"type":        "string",
					"description": "How they relate to the resident",
				},
				"priority": map[string]any{
					"type":        "string",
					"enum":        []string{"primary", "secondary", "doctor"},
					"description": "Who gets called first",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				name, _ := args["name"].(string)
				number, _ := args["number"].(string)
				relationship, _ := args["relationship"].(string)
				priorityArg, _ := args["priority"].(string)

				if strings.TrimSpace(name) == "" {
					return "What's the name of the emergency contact?", nil
				}
				if err := contacts.ValidateNumber(number); err != nil {
					return fmt.Sprintf("I need a full phone number for %s, starting with a plus sign and country code.", name), nil
				}
				priority, err := contacts.ParsePriority(priorityArg)
				if err != nil {
					return "Should they be the primary contact, secondary, or the doctor?", nil
				}

				ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
				defer cancel()
				err = cfg.Contacts.Add(ctx, contacts.Entry{
					Name:         name,
					Number:       number,
					Relationship: relationship,
					Priority:     priority,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("I've added %s as your %s emergency contact.", name, priority), nil
			},
		},
		{
			Name:        "list_emergency_contacts",
			Description: "List the emergency contacts in the order they would be called.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				chain := cfg.Contacts.EmergencyChain()
				if len(chain) == 0 {
					return "There are no emergency contacts set up yet. Who should I call if something happens?", nil
				}
				var parts []string
				for _, e := range chain {
					parts = append(parts, fmt.Sprintf("%s, %s, at %s", e.Name, e.Priority, contacts.MaskNumber(e.Number)))
				}
				return "In an emergency I would call: " + strings.Join(parts, "; then ") + ".", nil
			},
		},
	}
}

// memoryTools covers reminiscence lookups over the biography document.
func memoryTools(cfg ToolsConfig) []session.Tool {
	bio := cfg.Biography
	return []session.Tool{
		{
			Name:        "search_memories",
			Description: "Search the resident's life story for memories about a topic, like the wedding, teaching, or the garden.",
			Parameters: map[string]any{
				"topic": map[string]any{
					"type":        "string",
					"description": "What to look for",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				topic, _ := args["topic"].(string)
				answer := bio.SearchMemories(topic)

				// Fall back to the semantic index when plain matching
				// finds nothing.
				if cfg.Semantic != nil && strings.Contains(answer, "don't recall") {
					ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
					defer cancel()
					results, err := cfg.Semantic.Search(ctx, topic, 1)
					if err == nil && len(results) > 0 {
						return "That reminds me of something. " + results[0].Text, nil
					}
				}
				return answer, nil
			},
		},
		{
			Name:        "search_memories_by_age",
			Description: "Recall what the resident's life was like at a specific age.",
			Parameters: map[string]any{
				"age": map[string]any{
					"type":        "string",
					"description": "The age to recall, as a number",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				age, _ := args["age"].(string)
				return bio.SearchByAge(age), nil
			},
		},
		{
			Name:        "get_personal_info",
			Description: "Recall the resident's basic biography: name, birthplace, career, hobbies.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				return bio.PersonalInfo(), nil
			},
		},
		{
			Name:        "get_family_info",
			Description: "Recall the resident's family: spouse, children, grandchildren.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				return bio.FamilyInfo(), nil
			},
		},
		{
			Name:        "get_life_story_summary",
			Description: "Tell the short version of the resident's whole life story.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				return bio.LifeStory(), nil
			},
		},
		{
			Name:        "remember_memory",
			Description: "Save something the resident shared so it becomes part of their life story.",
			Parameters: map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short title for the memory",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "The memory in the resident's words",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Optional grouping like recent_memories or family_milestones",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				title, _ := args["title"].(string)
				description, _ := args["description"].(string)
				category, _ := args["category"].(string)

				moment := memory.Moment{Title: title, Description: description}
				if err := bio.AddMoment(category, moment); err != nil {
					return "Tell me a little more about it and I'll write it down.", nil
				}
				if cfg.BiographyStore != nil {
					if err := bio.Save(cfg.BiographyStore); err != nil {
						return "", err
					}
				}
				if cfg.Semantic != nil {
					ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
					defer cancel()
					_ = cfg.Semantic.Add(ctx, title+". "+description, memory.Metadata{
						Category: category,
						Title:    title,
					})
				}
				return fmt.Sprintf("That's a lovely memory. I've written down %q so we can talk about it again.", title), nil
			},
		},
	}
}

// facilityTools covers facility info, schedules and staff.
func facilityTools(cfg ToolsConfig) []session.Tool {
	svc := cfg.Facility
	return []session.Tool{
		{
			Name:        "get_facility_info",
			Description: "Answer questions about the facility: visiting hours, dining, activities, places.",
			Parameters: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What the resident asked about",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				query, _ := args["query"].(string)
				return svc.Answer(query), nil
			},
		},
		{
			Name:        "get_dining_schedule",
			Description: "Tell the resident today's meal times.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				return svc.DiningSchedule(), nil
			},
		},
		{
			Name:        "get_activities",
			Description: "Tell the resident what activities are on today or this week.",
			Parameters: map[string]any{
				"when": map[string]any{
					"type":        "string",
					"enum":        []string{"today", "week"},
					"description": "Time range to describe",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				when, _ := args["when"].(string)
				if when == "" {
					when = "today"
				}
				return svc.ActivitiesFor(when), nil
			},
		},
		{
			Name:        "find_location",
			Description: "Help the resident find a place inside the facility, like the dining room or library.",
			Parameters: map[string]any{
				"place": map[string]any{
					"type":        "string",
					"description": "The place to find",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				place, _ := args["place"].(string)
				if strings.TrimSpace(place) == "" {
					return "Which room are you looking for?", nil
				}
				return svc.FindLocation(place), nil
			},
		},
		{
			Name:        "get_resident_schedule",
			Description: "Tell the resident their personal schedule for today: appointments, visits, activities.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				return svc.ResidentSchedule(cfg.ResidentName), nil
			},
		},
		{
			Name:        "set_reminder",
			Description: "Set a spoken reminder for the resident.",
			Parameters: map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "What to remind them about",
				},
				"when": map[string]any{
					"type":        "string",
					"description": "When to remind them, in their words",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				text, _ := args["text"].(string)
				when, _ := args["when"].(string)
				if strings.TrimSpace(text) == "" {
					return "What would you like me to remind you about?", nil
				}
				return svc.SetReminder(text, when), nil
			},
		},
		{
			Name:        "call_staff",
			Description: "Alert facility staff that the resident needs a hand. Use for non-emergency help like the bathroom or medication questions.",
			Parameters: map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Why the resident needs staff",
				},
			},
			Handler: func(args map[string]any) (string, error) {
				reason, _ := args["reason"].(string)
				return svc.CallStaff(reason), nil
			},
		},
		{
			Name:        "get_staff_on_duty",
			Description: "Tell the resident which staff members are on duty right now.",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) (string, error) {
				return svc.StaffOnDuty(), nil
			},
		},
	}
}
