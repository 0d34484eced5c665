package domain

import "time"

// ReviewStatus tracks where an item is in the human review loop.
type ReviewStatus string

const (
	ReviewUnset    ReviewStatus = ""
	ReviewPending  ReviewStatus = "pending"
	ReviewQueued   ReviewStatus = "queued"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Eligible reports whether an item in this state may be offered in a new review batch.
func (s ReviewStatus) Eligible() bool {
	return s == ReviewUnset || s == ReviewPending
}

// Decided reports whether a reviewer has already approved or rejected the item.
func (s ReviewStatus) Decided() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// Item is a crawled candidate image awaiting or having received review.
type Item struct {
	ID              string       `json:"id"`
	SourceURL       string       `json:"original_url"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Score           *float64     `json:"score,omitempty"`
	NeedsTraining   bool         `json:"needs_training"`
	ReviewStatus    ReviewStatus `json:"training_status"`
	ReviewFeedback  string       `json:"training_feedback,omitempty"`
	ReviewSessionID string       `json:"review_session_id,omitempty"`
	QueuedAt        *time.Time   `json:"queued_at,omitempty"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Decision is the reviewer verdict applied to a single item.
type Decision struct {
	Approved   bool
	Reason     string
	ReviewedAt time.Time
}

// Status maps the verdict onto the item review state.
func (d Decision) Status() ReviewStatus {
	if d.Approved {
		return ReviewApproved
	}
	return ReviewRejected
}

// Feedback is the text persisted on the item; approvals always read "approved".
func (d Decision) Feedback() string {
	if d.Approved {
		return string(ReviewApproved)
	}
	return d.Reason
}

// QueuePatch marks items as offered in a review session.
type QueuePatch struct {
	SessionID string
	QueuedAt  time.Time
}
