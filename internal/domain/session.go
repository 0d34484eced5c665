package domain

import "time"

// SessionStatus enumerates review batch lifecycle milestones.
type SessionStatus string

const (
	SessionProvisioning SessionStatus = "provisioning"
	SessionActive       SessionStatus = "active"
	SessionExpired      SessionStatus = "expired"
	SessionCompleted    SessionStatus = "completed"
)

// ReviewSession is a time-bounded batch of items offered to a reviewer.
//
// TotalItems is the number of items offered when the batch was opened and is
// an upper bound; ItemsQueued is the count the store confirmed afterwards.
type ReviewSession struct {
	ID            string        `json:"session_id"`
	ReviewType    string        `json:"review_type"`
	SyncTimestamp string        `json:"sync_timestamp,omitempty"`
	TotalItems    int           `json:"total_images"`
	ItemsQueued   int           `json:"images_queued"`
	ItemsReviewed int           `json:"images_reviewed"`
	ItemsApproved int           `json:"images_approved"`
	ItemsRejected int           `json:"images_rejected"`
	Status        SessionStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// Expired compares the deadline against now; the stored status may lag behind.
func (s ReviewSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Reviewed reports whether every confirmed item received a decision.
func (s ReviewSession) Reviewed() bool {
	return s.ItemsQueued > 0 && s.ItemsReviewed >= s.ItemsQueued
}

// EffectiveStatus resolves the status a caller should act on at time now.
func (s ReviewSession) EffectiveStatus(now time.Time) SessionStatus {
	switch {
	case s.Status == SessionCompleted:
		return SessionCompleted
	case s.Reviewed():
		return SessionCompleted
	case s.Expired(now):
		return SessionExpired
	default:
		return s.Status
	}
}

// AcceptsAssignments reports whether new decisions may be routed into this batch.
func (s ReviewSession) AcceptsAssignments(now time.Time) bool {
	return s.EffectiveStatus(now) == SessionActive
}

// CompletionPercent rounds reviewed/queued to a whole percentage.
func (s ReviewSession) CompletionPercent() int {
	if s.ItemsQueued <= 0 {
		return 0
	}
	return (s.ItemsReviewed*100 + s.ItemsQueued/2) / s.ItemsQueued
}
