package router

import "regexp"

// Freshness and risk run independently over the raw message; neither
// depends on the intent classification.

var freshnessPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(latest|newest|most recent|recent(ly)?)\b`),
	regexp.MustCompile(`(?i)\b(current|currently|right now|as of (today|now))\b`),
	regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|this (week|month))\b`),
	regexp.MustCompile(`(?i)\b(news|update[sd]?|price|forecast|schedule)\b`),
}

// needsFreshData reports whether the message likely depends on data newer
// than the model's training cutoff.
func needsFreshData(message string) bool {
	for _, p := range freshnessPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

var highRiskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(medical|medication|dosage|diagnos(is|e)|symptom)\b`),
	regexp.MustCompile(`(?i)\b(legal advice|lawsuit|contract|liability)\b`),
	regexp.MustCompile(`(?i)\b(invest(ment)?|tax(es)?|retirement|mortgage|loan)\b`),
	regexp.MustCompile(`(?i)\b(transfer|wire|send) (money|funds|\$)`),
	regexp.MustCompile(`(?i)\b(delete|wipe|erase) (all|everything|my account)\b`),
}

var mediumRiskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(deadline|due date|appointment|booking|reservation)\b`),
	regexp.MustCompile(`(?i)\b(payment|invoice|bill|subscription)\b`),
	regexp.MustCompile(`(?i)\b(important|urgent|critical|asap)\b`),
	regexp.MustCompile(`(?i)\b(password|account|login|security)\b`),
}

// assessRisk grades how costly a wrong answer would be.
func assessRisk(message string) Risk {
	for _, p := range highRiskPatterns {
		if p.MatchString(message) {
			return RiskHigh
		}
	}
	for _, p := range mediumRiskPatterns {
		if p.MatchString(message) {
			return RiskMedium
		}
	}
	return RiskLow
}
