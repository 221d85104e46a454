package models

import "time"

// Generation steps, in pipeline order.
const (
	StepText  = "text"
	StepImage = "image"
	StepVideo = "video"
)

// Generation states reported to the client.
const (
	GenerationIdle      = "idle"
	GenerationRunning   = "running"
	GenerationCompleted = "completed"
	GenerationFailed    = "failed"
)

// GenerationProgress is the client-visible state of a generation run.
type GenerationProgress struct {
	CampaignID string    `json:"campaignId"`
	JobID      string    `json:"jobId,omitempty"`
	State      string    `json:"state"`
	Step       string    `json:"step,omitempty"`
	Percent    int       `json:"percent"`
	Error      string    `json:"error,omitempty"`
	CanRetry   bool      `json:"canRetry"`
	CanGoBack  bool      `json:"canGoBack"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// GenerationJob is the unit of work handed to a dispatcher.
type GenerationJob struct {
	JobID       string    `json:"jobId"`
	UserID      string    `json:"userId"`
	CampaignID  string    `json:"campaignId"`
	RequestedAt time.Time `json:"requestedAt"`
}
