package domain

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"
)

// Document is a raw item collected from a feed, forum or intel platform.
type Document struct {
	ID        string
	Text      string
	Source    string
	URL       string
	Timestamp string
}

// DocumentID derives a stable identifier used for deduplication.
func DocumentID(source, url, text string) string {
	combined := strings.ToLower(source + "|" + url + "|" + text)
	hash := md5.Sum([]byte(combined))
	return fmt.Sprintf("%x", hash)[:16]
}

// WithID fills ID when the collector did not set one.
func (d Document) WithID() Document {
	if d.ID == "" {
		d.ID = DocumentID(d.Source, d.URL, d.Text)
	}
	return d
}

// Entities are lightweight indicators pulled from cleaned text.
type Entities struct {
	Threats []string `json:"threats"`
	CVEs    []string `json:"cves"`
	IPs     []string `json:"ips"`
}

// AnalyzedDocument is what gets persisted after classification.
type AnalyzedDocument struct {
	Document    Document
	CleanText   string
	Entities    Entities
	Verdict     Verdict
	ProcessedAt time.Time
}

// Alert is the payload handed to alert channels.
type Alert struct {
	Source      string      `json:"source"`
	Confidence  float64     `json:"confidence"`
	ThreatClass ThreatClass `json:"threat_class"`
	Text        string      `json:"text"`
	URL         string      `json:"url"`
}

// NewAlert projects an analyzed document into an alert.
func NewAlert(doc AnalyzedDocument) Alert {
	return Alert{
		Source:      doc.Document.Source,
		Confidence:  doc.Verdict.Confidence,
		ThreatClass: doc.Verdict.ThreatClass,
		Text:        doc.Document.Text,
		URL:         doc.Document.URL,
	}
}

// StoredThreat is a row read back for listing and review.
type StoredThreat struct {
	ID          int64
	ExternalID  string
	Source      string
	URL         string
	CleanText   string
	Verdict     Verdict
	Feedback    string
	CollectedAt time.Time
}
