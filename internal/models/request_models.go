package models

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName,omitempty" binding:"omitempty,max=80"`
}

// PasswordResetRequest is the body of POST /auth/password-reset.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// UpdateProfileRequest represents a partial profile update.
// Pointers distinguish "clear this field" from "not provided".
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName,omitempty" binding:"omitempty,max=80"`
	Bio         *string `json:"bio,omitempty" binding:"omitempty,max=500"`
	Website     *string `json:"website,omitempty" binding:"omitempty,max=200"`
	PhotoURL    *string `json:"photoURL,omitempty" binding:"omitempty,max=2048"`
}

// UpdateNotificationsRequest replaces the notification preferences.
type UpdateNotificationsRequest struct {
	CampaignUpdates *bool `json:"campaignUpdates" binding:"required"`
	MarketingTips   *bool `json:"marketingTips" binding:"required"`
	ProductUpdates  *bool `json:"productUpdates" binding:"required"`
}

// UploadRequest is the wizard's first step: content type, theme and a source file.
type UploadRequest struct {
	ContentType string
	Theme       string
	FileName    string
	Size        int64
	Data        []byte
}

// UpdateCampaignRequest renames a campaign.
type UpdateCampaignRequest struct {
	Title string `json:"title" binding:"required,max=120"`
}

// SelectCaptionRequest chooses which caption variant is displayed.
type SelectCaptionRequest struct {
	Variant string `json:"variant" binding:"required,captionvariant"`
}

// CheckoutRequest starts a checkout for a plan. CampaignID is required for per-campaign plans.
type CheckoutRequest struct {
	PlanID     string `json:"planId" binding:"required"`
	CampaignID string `json:"campaignId,omitempty"`
}
