package emergency

import (
	"fmt"
	"html"
	"strings"
)

// Report is the formatted alert handed to the notification dispatcher.
type Report struct {
	Subject string
	Text    string
	HTML    string
}

// timeLayout matches the human-readable timestamps used in alert emails.
const timeLayout = "Monday, January 2, 2006 at 3:04 PM MST"

// BuildReport formats the full episode report: header, timestamps, structured
// detail slots, the complete transcript, and a notice when the collection
// window was abandoned early.
func BuildReport(ep Episode, residentName string) Report {
	upperName := strings.ToUpper(residentName)
	subject := fmt.Sprintf("EMERGENCY ALERT - %s - %s", residentName, strings.ToUpper(string(ep.Type)))

	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY ALERT - %s\n", upperName)
	b.WriteString(strings.Repeat("=", 16+len(upperName)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "OPENED: %s\n", ep.OpenedAt.Format(timeLayout))
	if !ep.ClosedAt.IsZero() {
		fmt.Fprintf(&b, "REPORT SENT: %s\n", ep.ClosedAt.Format(timeLayout))
	}
	fmt.Fprintf(&b, "EMERGENCY TYPE: %s\n", strings.ToUpper(string(ep.Type)))
	fmt.Fprintf(&b, "INCIDENT ID: %s\n\n", ep.ID)

	b.WriteString("WHAT HAPPENED:\n")
	if ep.Narrative != "" {
		b.WriteString(ep.Narrative)
	} else if ep.InitialMessage != "" {
		b.WriteString(ep.InitialMessage)
	} else {
		b.WriteString("No details could be gathered.")
	}
	b.WriteString("\n\n")

	if details := formatDetails(ep.Details); details != "" {
		b.WriteString("DETAILS:\n")
		b.WriteString(details)
		b.WriteString("\n")
	}

	if ep.QuestionsSkipped {
		fmt.Fprintf(&b, "NOTE: %s could not answer follow-up questions; this is a basic alert.\n\n", residentName)
	}

	if len(ep.Transcript) > 0 {
		b.WriteString("CONVERSATION:\n")
		for _, entry := range ep.Transcript {
			fmt.Fprintf(&b, "[%s] %s: %s\n", entry.At.Format("15:04:05"), entry.Speaker, entry.Message)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "This is an automated emergency notification. Please check on %s immediately.\n", residentName)

	return Report{
		Subject: subject,
		Text:    strings.TrimRight(b.String(), "\n") + "\n",
		HTML:    buildReportHTML(ep, residentName),
	}
}

func formatDetails(d Details) string {
	var b strings.Builder
	write := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %s: %s\n", label, value)
		}
	}
	write("Pain level", d.PainLevel)
	write("Injured area", d.InjuredArea)
	write("Consciousness", d.Consciousness)
	write("Breathing", d.Breathing)
	write("Location", d.Location)
	write("Additional info", d.AdditionalInfo)
	return b.String()
}

func buildReportHTML(ep Episode, residentName string) string {
	esc := html.EscapeString

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Emergency Alert</title></head>\n")
	b.WriteString("<body style=\"font-family: Arial, sans-serif; margin: 20px;\">\n")
	fmt.Fprintf(&b, "<div style=\"background-color: #ff4444; color: white; padding: 15px; border-radius: 5px;\"><h1>EMERGENCY ALERT - %s</h1></div>\n", esc(strings.ToUpper(residentName)))
	fmt.Fprintf(&b, "<p><strong>OPENED:</strong> %s</p>\n", esc(ep.OpenedAt.Format(timeLayout)))
	if !ep.ClosedAt.IsZero() {
		fmt.Fprintf(&b, "<p><strong>REPORT SENT:</strong> %s</p>\n", esc(ep.ClosedAt.Format(timeLayout)))
	}
	fmt.Fprintf(&b, "<p><strong>EMERGENCY TYPE:</strong> %s</p>\n", esc(strings.ToUpper(string(ep.Type))))

	narrative := ep.Narrative
	if narrative == "" {
		narrative = ep.InitialMessage
	}
	if narrative == "" {
		narrative = "No details could be gathered."
	}
	fmt.Fprintf(&b, "<div style=\"background-color: #f5f5f5; padding: 15px; border-left: 4px solid #ff4444;\"><h3>WHAT HAPPENED:</h3><p>%s</p></div>\n", esc(narrative))

	if details := formatDetails(ep.Details); details != "" {
		b.WriteString("<h3>DETAILS:</h3><pre>")
		b.WriteString(esc(details))
		b.WriteString("</pre>\n")
	}

	if ep.QuestionsSkipped {
		fmt.Fprintf(&b, "<p><em>%s could not answer follow-up questions; this is a basic alert.</em></p>\n", esc(residentName))
	}

	if len(ep.Transcript) > 0 {
		b.WriteString("<h3>CONVERSATION:</h3>\n<ul>\n")
		for _, entry := range ep.Transcript {
			fmt.Fprintf(&b, "<li>[%s] <strong>%s</strong>: %s</li>\n", esc(entry.At.Format("15:04:05")), esc(entry.Speaker), esc(entry.Message))
		}
		b.WriteString("</ul>\n")
	}

	fmt.Fprintf(&b, "<p><strong>Action Required:</strong> Please check on %s immediately.</p>\n", esc(residentName))
	b.WriteString("<p style=\"font-size: 12px; color: #666;\">This is an automated emergency notification.</p>\n")
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
