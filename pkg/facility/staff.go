package facility

import (
	"fmt"
	"strings"

	"github.com/carewell-ai/go-companion/pkg/emergency"
)

// CallStaff requests staff assistance. Reasons carrying distress keywords
// take the urgent path immediately.
func (s *Service) CallStaff(reason string) string {
	if emergency.ContainsDistress(reason) {
		s.logger.Error("urgent staff request", "reason", reason)
		return "I'm alerting staff immediately for urgent assistance. Help is on the way. Please stay where you are and stay calm."
	}

	s.logger.Info("staff assistance requested", "reason", reason)

	lower := strings.ToLower(reason)
	response := "I've notified the staff. "
	switch {
	case containsAny(lower, "bathroom", "restroom", "toilet"):
		response += "A caregiver will be with you shortly to assist."
	case containsAny(lower, "medication", "medicine", "pill"):
		response += "A nurse will come to help you with your medication."
	case containsAny(lower, "question", "ask", "information"):
		response += "A staff member will be here soon to answer your questions."
	default:
		response += "Someone from the care team will be with you shortly."
	}
	return response
}

// StaffOnDuty lists who is on the current shift. Shifts: day 7-15,
// evening 15-23, night otherwise.
func (s *Service) StaffOnDuty() string {
	hour := s.now().Hour()
	var shift string
	switch {
	case hour >= 7 && hour < 15:
		shift = "day"
	case hour >= 15 && hour < 23:
		shift = "evening"
	default:
		shift = "night"
	}

	var roster []StaffMember
	if s.info != nil {
		roster = s.info.Staff[shift+"_shift"]
	}
	if len(roster) == 0 {
		return "We have nurses and caregivers available 24/7. Would you like me to call someone for you?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Currently on duty (%s shift):\n", shift)
	for _, member := range roster {
		fmt.Fprintf(&b, "- %s - %s\n", member.Name, member.Role)
	}
	b.WriteString("\nYou can ask any of them for help, or I can call them for you.")
	return b.String()
}

// StaffAlert triggers a facility-wide staff alert for urgent medical
// situations.
func (s *Service) StaffAlert(situation string) string {
	s.logger.Error("facility staff alert", "situation", situation)
	return "EMERGENCY ALERT ACTIVATED. Medical staff have been notified and are responding immediately. Stay calm, help is coming right now."
}
