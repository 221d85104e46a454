package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artomate-backend/internal/core"
	"artomate-backend/internal/models"
)

// multipartOverhead is allowed on top of the file size limit for form fields and boundaries.
const multipartOverhead = 1 << 20

// UploadHandler serves wizard step one.
type UploadHandler struct {
	uploadService core.UploadService
	maxBytes      int64
	logger        *zap.Logger
}

// NewUploadHandler creates a new UploadHandler. maxBytes bounds the uploaded file.
func NewUploadHandler(us core.UploadService, maxBytes int64, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{uploadService: us, maxBytes: maxBytes, logger: logger}
}

// ContentTypes handles GET /content-types?type=music
func (h *UploadHandler) ContentTypes(c *gin.Context) {
	var q ContentTypesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Details: bindingErrorDetails(err)})
		return
	}
	c.JSON(http.StatusOK, ContentTypesResponse{
		ContentTypes: h.uploadService.ContentTypes(),
		Accepted:     h.uploadService.AcceptedExtensions(q.Type),
	})
}

// CreateCampaign handles POST /campaigns (multipart: contentType, theme, file).
func (h *UploadHandler) CreateCampaign(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	var form UploadForm
	if err := c.ShouldBind(&form); err != nil {
		if isTooLarge(err) {
			mapCampaignErrorToStatus(c, h.logger, core.ErrUploadTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: bindingErrorDetails(err)})
		return
	}

	req := models.UploadRequest{ContentType: form.ContentType, Theme: form.Theme}
	fileHeader, err := c.FormFile("file")
	switch {
	case err == nil:
		req.FileName = fileHeader.Filename
		req.Size = fileHeader.Size
	case isTooLarge(err):
		mapCampaignErrorToStatus(c, h.logger, core.ErrUploadTooLarge)
		return
	case !errors.Is(err, http.ErrMissingFile):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid multipart form", Details: err.Error()})
		return
	}

	// Reject before reading the file when the form is already incomplete or mismatched.
	if err := h.uploadService.Validate(&req); err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.String("userID", userID), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Could not read uploaded file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Could not read uploaded file", Details: err.Error()})
		return
	}
	req.Data = data

	campaign, err := h.uploadService.Upload(c.Request.Context(), userID, req)
	if err != nil {
		mapCampaignErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
