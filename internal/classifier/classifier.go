package classifier

import (
	"regexp"
	"strings"
)

// Demo names one of the chat experiences a message can be routed to
type Demo string

const (
	DemoChat            Demo = "chat"
	DemoDocuments       Demo = "documents"
	DemoApplicants      Demo = "applicants"
	DemoCustomerService Demo = "customer_service"
)

// Valid reports whether d names a known demo
func (d Demo) Valid() bool {
	switch d {
	case DemoChat, DemoDocuments, DemoApplicants, DemoCustomerService:
		return true
	}
	return false
}

// ClassifierResult contains the classification result
type ClassifierResult struct {
	Demo       Demo    `json:"demo"`
	Confidence float64 `json:"confidence"`
}

type rule struct {
	demo     Demo
	base     float64
	patterns []*regexp.Regexp
}

// Classifier performs rule-based routing of free-form messages
type Classifier struct {
	rules           []rule // in priority order for ties
	spaceNormalizer *regexp.Regexp
}

// NewClassifier creates a new demo classifier
func NewClassifier() *Classifier {
	return &Classifier{
		spaceNormalizer: regexp.MustCompile(`\s+`),
		rules: []rule{
			{
				demo: DemoCustomerService,
				base: 0.75,
				patterns: compilePatterns([]string{
					`\bpolicy (number|no|#)`,
					`\b(policy|policies|insurance|insured|coverage|premium)\b`,
					`\b(claim|claims)\b`,
					`\b(beneficiary|beneficiaries)\b`,
					`\b(change|update|new) (my )?address\b`,
					`\bmoved\b`,
				}),
			},
			{
				demo: DemoApplicants,
				base: 0.75,
				patterns: compilePatterns([]string{
					`\b(applicant|applicants|candidate|candidates)\b`,
					`\b(resume|cv|hire|hiring|recruit|recruiting)\b`,
					`\b(interview|interviews|interviewing)\b`,
					`\b(salary|salaries|years of experience)\b`,
					`\bapplied for\b`,
					`\bwho (is|are) applying\b`,
				}),
			},
			{
				demo: DemoDocuments,
				base: 0.7,
				patterns: compilePatterns([]string{
					`\b(document|documents|memo|letter|invoice|contract|report)\b`,
					`\b(route|routing|forward|send) (this|it|to)\b`,
					`\b(department|departments)\b`,
					`\b(accounting|legal|human resources|it support|sales|executive office)\b`,
					`\bwhere should (this|it) go\b`,
				}),
			},
		},
	}
}

// Classify determines which demo should answer the input message.
// Anything that matches no rule belongs to the general chat demo.
func (c *Classifier) Classify(input string) ClassifierResult {
	normalized := c.normalizeText(input)

	if normalized == "" {
		return ClassifierResult{
			Demo:       DemoChat,
			Confidence: 0.1,
		}
	}

	best := ClassifierResult{Demo: DemoChat, Confidence: 0.3}
	bestMatches := 0
	for _, r := range c.rules {
		matches := c.countMatches(normalized, r.patterns)
		if matches > bestMatches {
			confidence := r.base + float64(matches)*0.05
			if confidence > 0.95 {
				confidence = 0.95
			}
			best = ClassifierResult{Demo: r.demo, Confidence: confidence}
			bestMatches = matches
		}
	}

	return best
}

// normalizeText preprocesses input text for classification
func (c *Classifier) normalizeText(input string) string {
	text := strings.ToLower(input)
	text = strings.TrimSpace(text)
	text = c.spaceNormalizer.ReplaceAllString(text, " ")
	text = strings.TrimRight(text, "!?.,;:")
	return text
}

// countMatches counts how many patterns match
func (c *Classifier) countMatches(text string, patterns []*regexp.Regexp) int {
	count := 0
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			count++
		}
	}
	return count
}

// compilePatterns compiles a slice of regex patterns
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}
