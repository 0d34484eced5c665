package domain

import "time"

// PatternType names the extraction rule that produced a pattern.
type PatternType string

const (
	PatternRejectionReason PatternType = "rejection_reason_keyword"
	PatternContentKeyword  PatternType = "content_keyword"
)

// Pattern is a keyword signal mined from reviewer feedback.
type Pattern struct {
	ID              string       `json:"id,omitempty"`
	Type            PatternType  `json:"pattern_type"`
	Value           string       `json:"pattern_value"`
	FeedbackType    ReviewStatus `json:"feedback_type"`
	ConfidenceScore float64      `json:"confidence_score"`
	SourceItemID    string       `json:"image_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// MiningJob asks the miner to extract patterns for one rejected item.
type MiningJob struct {
	ItemID     string    `json:"item_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
