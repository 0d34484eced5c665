package mining

import (
	"strings"

	"LookTrainer/internal/domain"
)

// ContentKeywords flags negative vocabulary terms found in the item url or description.
type ContentKeywords struct {
	Vocabulary []string
	Confidence float64
}

func (c ContentKeywords) Name() string {
	return string(domain.PatternContentKeyword)
}

func (c ContentKeywords) Extract(src Source) []domain.Pattern {
	var patterns []domain.Pattern
	for _, term := range c.Vocabulary {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || !strings.Contains(src.Text, term) {
			continue
		}
		patterns = append(patterns, domain.Pattern{
			Type:            domain.PatternContentKeyword,
			Value:           term,
			FeedbackType:    domain.ReviewRejected,
			ConfidenceScore: c.Confidence,
		})
	}
	return patterns
}

// RejectionReason turns the reviewer's free-text reason into a single pattern.
type RejectionReason struct {
	Confidence float64
}

func (r RejectionReason) Name() string {
	return string(domain.PatternRejectionReason)
}

func (r RejectionReason) Extract(src Source) []domain.Pattern {
	value := Normalize(src.Reason)
	if value == "" {
		return nil
	}
	return []domain.Pattern{{
		Type:            domain.PatternRejectionReason,
		Value:           value,
		FeedbackType:    domain.ReviewRejected,
		ConfidenceScore: r.Confidence,
	}}
}

// Normalize lowercases and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
