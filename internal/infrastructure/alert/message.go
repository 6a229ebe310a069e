package alert

import (
	"fmt"
	"strings"

	"ThreatScanner/internal/domain"
)

const previewLength = 200

// Subject renders the one-line alert title.
func Subject(a domain.Alert) string {
	return fmt.Sprintf("[ALERT] %s threat detected", strings.ToUpper(string(a.ThreatClass)))
}

// Body renders the plain-text alert used by email and chat channels.
func Body(a domain.Alert) string {
	return fmt.Sprintf("THREAT DETECTED\n\nSource: %s\nConfidence: %.2f\nThreat Type: %s\nContent Preview: %s\n\nView full details: %s",
		a.Source,
		a.Confidence,
		strings.ToUpper(string(a.ThreatClass)),
		preview(a.Text),
		a.URL,
	)
}

func preview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= previewLength {
		return string(runes)
	}
	return string(runes[:previewLength]) + "..."
}
