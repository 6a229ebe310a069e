package classify

import "ThreatScanner/internal/domain"

// BootstrapExamples is the embedded sample set used when no trained model exists.
// It is only good enough to keep the service answering until a real dataset is trained.
func BootstrapExamples() []domain.TrainingExample {
	return []domain.TrainingExample{
		{Text: "New phishing campaign targeting bank customers", Label: true},
		{Text: "Critical zero-day in Apache Log4j library", Label: true},
		{Text: "Ransomware group demands 5 million in Bitcoin", Label: true},
		{Text: "Detecting malicious emails with advanced machine learning", Label: true},
		{Text: "Vulnerability found in popular web server software", Label: true},
		{Text: "Major data breach exposes customer credentials", Label: true},
		{Text: "Attackers exploit remote code execution vulnerability", Label: true},
		{Text: "Security conference starts next week in Vegas", Label: false},
		{Text: "New firewall version released with security patches", Label: false},
		{Text: "Upcoming webinar on cloud security best practices", Label: false},
		{Text: "Discussion on quantum computing trends", Label: false},
		{Text: "Team building event next friday", Label: false},
		{Text: "Weekly newsletter about office snacks", Label: false},
		{Text: "Invitation for an online webinar on AI", Label: false},
	}
}
