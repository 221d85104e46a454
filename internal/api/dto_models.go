package api

import (
	"time"

	"artomate-backend/internal/config"
	"artomate-backend/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message or code
	Details string `json:"details,omitempty"` // More specific details about the error, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PaymentRequiredResponse routes a free creator to the plan selector.
type PaymentRequiredResponse struct {
	Error           string        `json:"error"`
	RequiresPayment bool          `json:"requiresPayment"`
	CampaignID      string        `json:"campaignId"`
	Plans           []config.Plan `json:"plans"`
}

// SessionResponse is the server half of the client's session observer.
type SessionResponse struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ContentTypesResponse lists the selectable content types and the extensions the picker accepts.
type ContentTypesResponse struct {
	ContentTypes []models.ContentTypeInfo `json:"contentTypes"`
	Accepted     []string                 `json:"accepted"`
}

// ContentTypesQuery narrows the accepted extensions to one content type.
type ContentTypesQuery struct {
	Type string `form:"type" binding:"omitempty,contenttype"`
}

// UploadForm is the multipart form for wizard step one. The file part is read separately.
type UploadForm struct {
	ContentType string `form:"contentType" binding:"omitempty,contenttype"`
	Theme       string `form:"theme" binding:"omitempty,max=200"`
}

// CampaignListQuery filters the campaign list.
type CampaignListQuery struct {
	Status string `form:"status"`
}

// PortalResponse carries the billing portal URL.
type PortalResponse struct {
	URL string `json:"url"`
}
