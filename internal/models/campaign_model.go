package models

import "time"

// Campaign statuses.
const (
	StatusDraft      = "draft"
	StatusProcessing = "processing"
	StatusPublished  = "published"
	StatusFailed     = "failed"
)

// Content types a creator can upload.
const (
	ContentMusic = "music"
	ContentVideo = "video"
	ContentBook  = "book"
)

// Caption variants.
const (
	CaptionA = "A"
	CaptionB = "B"
)

// ContentTypeInfo describes an uploadable content type and its accepted file extensions.
type ContentTypeInfo struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Extensions  []string `json:"extensions"`
}

// Campaign is one piece of uploaded media plus its generated marketing package.
// Stored at users/{ownerId}/campaigns/{id}.
type Campaign struct {
	ID              string            `json:"id" firestore:"-"`
	OwnerID         string            `json:"ownerId" firestore:"ownerId"`
	Title           string            `json:"title" firestore:"title"`
	Status          string            `json:"status" firestore:"status"`
	ContentType     string            `json:"type" firestore:"type"`
	Theme           string            `json:"theme" firestore:"theme"`
	SourceFile      string            `json:"sourceFile" firestore:"sourceFile"`
	SourceFileKey   string            `json:"-" firestore:"sourceFileKey"`
	SourceFileSize  int64             `json:"sourceFileSize" firestore:"sourceFileSize"`
	SourceMimeType  string            `json:"sourceMimeType,omitempty" firestore:"sourceMimeType,omitempty"`
	Bundle          *GenerationBundle `json:"bundle,omitempty" firestore:"bundle"`
	SelectedCaption string            `json:"selectedCaption,omitempty" firestore:"selectedCaption,omitempty"`
	Engagement      int               `json:"engagement" firestore:"engagement"`
	Paid            bool              `json:"paid" firestore:"paid"`
	FailureReason   string            `json:"failureReason,omitempty" firestore:"failureReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt       time.Time         `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
	PublishedAt     *time.Time        `json:"publishedAt,omitempty" firestore:"publishedAt,omitempty"`
}

// DisplayedCaption returns the caption text for the selected variant.
// The bundle itself is never modified by variant selection.
func (c *Campaign) DisplayedCaption() string {
	if c == nil || c.Bundle == nil {
		return ""
	}
	if c.SelectedCaption == CaptionB && c.Bundle.CaptionB != "" {
		return c.Bundle.CaptionB
	}
	return c.Bundle.Caption
}

// GenerationBundle is the complete output of one successful generation run.
type GenerationBundle struct {
	Caption     string    `json:"caption" firestore:"caption"`
	CaptionB    string    `json:"captionB" firestore:"captionB"`
	Hashtags    []string  `json:"hashtags" firestore:"hashtags"`
	Email       EmailCopy `json:"email" firestore:"email"`
	ImagePrompt string    `json:"imagePrompt" firestore:"imagePrompt"`
	VideoScript string    `json:"videoScript" firestore:"videoScript"`
	Image       *AssetRef `json:"image,omitempty" firestore:"image,omitempty"`
	Thumbnail   *AssetRef `json:"thumbnail,omitempty" firestore:"thumbnail,omitempty"`
	Video       *AssetRef `json:"video,omitempty" firestore:"video,omitempty"`
	GeneratedAt time.Time `json:"generatedAt" firestore:"generatedAt"`
}

// EmailCopy is the generated email announcement.
type EmailCopy struct {
	Subject string `json:"subject" firestore:"subject"`
	Body    string `json:"body" firestore:"body"`
	CTAText string `json:"ctaText" firestore:"ctaText"`
}

// AssetRef points at a generated binary in the asset store.
type AssetRef struct {
	Key        string `json:"key" firestore:"key"`
	MimeType   string `json:"mimeType" firestore:"mimeType"`
	Prompt     string `json:"prompt,omitempty" firestore:"prompt,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty" firestore:"durationMs,omitempty"`
	Format     string `json:"format,omitempty" firestore:"format,omitempty"`
	Width      int    `json:"width,omitempty" firestore:"width,omitempty"`
	Height     int    `json:"height,omitempty" firestore:"height,omitempty"`
	URL        string `json:"url,omitempty" firestore:"-"`
}

// DashboardStats summarises a creator's campaigns.
type DashboardStats struct {
	TotalCampaigns  int         `json:"totalCampaigns"`
	Published       int         `json:"published"`
	Drafts          int         `json:"drafts"`
	Processing      int         `json:"processing"`
	Failed          int         `json:"failed"`
	TotalLikes      int         `json:"totalLikes"`
	RecentCampaigns []*Campaign `json:"recentCampaigns"`
}
