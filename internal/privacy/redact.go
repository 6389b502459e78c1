package privacy

import (
	"regexp"
)

const maxLogLength = 200

var (
	// Email pattern
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Phone patterns (US, international, 7-digit local)
	// Matches: 555-123-4567, (555) 123-4567, 555.123.4567, +1-555-123-4567, 555-1234
	phoneRegex = regexp.MustCompile(`(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]\d{4}|\b\d{3}[-.\s]\d{4}\b`)

	// SSN pattern (US)
	ssnRegex = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	// Credit card pattern (basic) - must have 4 groups
	creditCardRegex = regexp.MustCompile(`\b\d{4}[-\s]\d{4}[-\s]\d{4}[-\s]\d{4}\b`)

	// Insurance policy numbers, kept with their label:
	// "policy 12345", "policy number: 12345", "Policy #12345", "policy no. 12345"
	policyRegex = regexp.MustCompile(`(?i)\b(policy(?:\s+(?:number|no\.?|#))?(?:\s+is)?[\s:#]*)\d{4,}\b`)
)

// RedactSensitiveData removes PII from text
func RedactSensitiveData(text string) string {
	text = policyRegex.ReplaceAllString(text, "${1}[POLICY]")
	text = emailRegex.ReplaceAllString(text, "[EMAIL]")
	text = ssnRegex.ReplaceAllString(text, "[SSN]")
	text = creditCardRegex.ReplaceAllString(text, "[CARD]")
	text = phoneRegex.ReplaceAllString(text, "[PHONE]")
	return text
}

// SanitizeForLogging prepares text for safe logging
func SanitizeForLogging(text string) string {
	redacted := []rune(RedactSensitiveData(text))

	if len(redacted) > maxLogLength {
		return string(redacted[:maxLogLength-3]) + "..."
	}
	return string(redacted)
}

// ContainsPII checks if text contains potential PII
func ContainsPII(text string) bool {
	return emailRegex.MatchString(text) ||
		phoneRegex.MatchString(text) ||
		ssnRegex.MatchString(text) ||
		creditCardRegex.MatchString(text) ||
		policyRegex.MatchString(text)
}
