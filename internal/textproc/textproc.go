// Package textproc normalizes collected text and pulls simple indicators out of it.
package textproc

import (
	"regexp"
	"strings"

	"ThreatScanner/internal/domain"
)

var (
	noiseExpr = regexp.MustCompile(`http\S+|@\S+|[^A-Za-z0-9\s]+`)
	cveExpr   = regexp.MustCompile(`(?i)\bcve[\s-]?(\d{4})[\s-]?(\d{4,7})\b`)
	ipv4Expr  = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)
)

// threatKeywords are matched as prefixes so "phishing" counts as "phish".
var threatKeywords = []string{"phish", "ransom", "malware", "exploit", "breach"}

// Clean strips URLs, mentions and punctuation, then lowercases and trims.
func Clean(text string) string {
	text = noiseExpr.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.ToLower(text))
}

// ExtractEntities looks for threat keywords in clean text and CVE ids and
// IPv4 addresses in the raw text, which still carries the punctuation they need.
func ExtractEntities(raw, clean string) domain.Entities {
	var entities domain.Entities

	seen := map[string]struct{}{}
	for _, word := range strings.Fields(clean) {
		for _, kw := range threatKeywords {
			if !strings.HasPrefix(word, kw) {
				continue
			}
			if _, ok := seen[kw]; !ok {
				seen[kw] = struct{}{}
				entities.Threats = append(entities.Threats, kw)
			}
		}
	}

	entities.CVEs = uniqueMatches(cveExpr, raw, func(m []string) string {
		return "CVE-" + m[1] + "-" + m[2]
	})
	entities.IPs = uniqueMatches(ipv4Expr, raw, func(m []string) string { return m[0] })

	return entities
}

func uniqueMatches(expr *regexp.Regexp, text string, format func([]string) string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range expr.FindAllStringSubmatch(text, -1) {
		v := format(m)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
