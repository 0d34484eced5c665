package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/usecase"
)

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func ToErrorResponse(kind domain.ErrorKind, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Kind: string(kind), Message: message}}
}

type OpenSessionRequest struct {
	ReviewType    string `json:"review_type"`
	SyncTimestamp string `json:"sync_timestamp"`
}

type ReviewSession struct {
	SessionID  string    `json:"session_id"`
	TotalItems int       `json:"total_images"`
	ReviewURL  string    `json:"review_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type OpenSessionResponse struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	ReviewSession  ReviewSession `json:"review_session"`
	ItemsQueued    int           `json:"images_queued"`
	Warning        *ErrorBody    `json:"warning,omitempty"`
	SetupTimestamp time.Time     `json:"setup_timestamp"`
}

func ToOpenSessionResponse(res usecase.OpenResult, at time.Time) OpenSessionResponse {
	out := OpenSessionResponse{
		Success: true,
		Message: "Manual review setup completed successfully",
		ReviewSession: ReviewSession{
			SessionID:  res.SessionID,
			TotalItems: res.TotalItems,
			ReviewURL:  res.ReviewURL,
			ExpiresAt:  res.ExpiresAt,
		},
		ItemsQueued:    res.ItemsQueued,
		SetupTimestamp: at,
	}
	if res.Warning != nil {
		out.Warning = &ErrorBody{Kind: string(res.Warning.Kind), Message: res.Warning.Msg}
	}
	return out
}

// ItemID accepts both string and numeric JSON ids.
type ItemID string

func (id *ItemID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		*id = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("imageId must be a string or number: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

type FeedbackRequest struct {
	ImageID  ItemID `json:"imageId"`
	Approved *bool  `json:"approved"`
	Reason   string `json:"reason"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ReviewProgress struct {
	TotalItems           int `json:"total_images"`
	ItemsQueued          int `json:"images_queued"`
	ItemsReviewed        int `json:"images_reviewed"`
	ItemsApproved        int `json:"images_approved"`
	ItemsRejected        int `json:"images_rejected"`
	CompletionPercentage int `json:"completion_percentage"`
}

type SessionInfo struct {
	ReviewType  string     `json:"review_type"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ReviewURL   string     `json:"review_url"`
}

type StatusResponse struct {
	Success         bool           `json:"success"`
	ReviewCompleted bool           `json:"review_completed"`
	SessionExpired  bool           `json:"session_expired"`
	SessionID       string         `json:"session_id"`
	Status          string         `json:"status"`
	ReviewProgress  ReviewProgress `json:"review_progress"`
	SessionInfo     SessionInfo    `json:"session_info"`
}

func ToStatusResponse(res usecase.StatusResult) StatusResponse {
	s := res.Session
	return StatusResponse{
		Success:         true,
		ReviewCompleted: res.Completed,
		SessionExpired:  res.Expired,
		SessionID:       s.ID,
		Status:          string(res.Status),
		ReviewProgress: ReviewProgress{
			TotalItems:           s.TotalItems,
			ItemsQueued:          s.ItemsQueued,
			ItemsReviewed:        s.ItemsReviewed,
			ItemsApproved:        s.ItemsApproved,
			ItemsRejected:        s.ItemsRejected,
			CompletionPercentage: res.CompletionPercent,
		},
		SessionInfo: SessionInfo{
			ReviewType:  s.ReviewType,
			CreatedAt:   s.CreatedAt,
			ExpiresAt:   s.ExpiresAt,
			CompletedAt: s.CompletedAt,
			ReviewURL:   res.ReviewURL,
		},
	}
}

type QueueResponse struct {
	Success bool          `json:"success"`
	Images  []domain.Item `json:"images"`
}

type RulesResponse struct {
	Success bool                   `json:"success"`
	Rules   domain.CompiledRuleset `json:"rules"`
}
