package core

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"artomate-backend/internal/db"
	"artomate-backend/internal/models"
	"artomate-backend/pkg/storage"
)

var (
	// ErrInvalidUpload is returned when the upload step is incomplete or the file does not match the content type.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrUploadTooLarge is returned when the source file exceeds the configured limit.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

var contentTypes = []models.ContentTypeInfo{
	{
		ID:          models.ContentMusic,
		Label:       "Music",
		Description: "Songs, beats and audio tracks",
		Extensions:  []string{".mp3", ".wav", ".m4a", ".flac"},
	},
	{
		ID:          models.ContentVideo,
		Label:       "Video",
		Description: "Films, clips and visual pieces",
		Extensions:  []string{".mp4", ".mov", ".avi", ".mkv"},
	},
	{
		ID:          models.ContentBook,
		Label:       "Book",
		Description: "Manuscripts, stories and poetry",
		Extensions:  []string{".txt", ".doc", ".pdf", ".md"},
	},
}

type uploadService struct {
	campaignRepo db.CampaignRepository
	store        storage.AssetStore
	audit        AuditService
	maxBytes     int64
	logger       *zap.Logger
	now          func() time.Time
}

// NewUploadService creates the upload step service. maxBytes <= 0 disables the size check.
func NewUploadService(campaignRepo db.CampaignRepository, store storage.AssetStore, audit AuditService, maxBytes int64, logger *zap.Logger) UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &uploadService{
		campaignRepo: campaignRepo,
		store:        store,
		audit:        audit,
		maxBytes:     maxBytes,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *uploadService) ContentTypes() []models.ContentTypeInfo {
	out := make([]models.ContentTypeInfo, len(contentTypes))
	for i, ct := range contentTypes {
		ct.Extensions = append([]string(nil), ct.Extensions...)
		out[i] = ct
	}
	return out
}

// AcceptedExtensions returns the extensions for contentType, or the union of all types when it is empty.
// An unknown content type accepts nothing.
func (s *uploadService) AcceptedExtensions(contentType string) []string {
	return AcceptedExtensions(contentType)
}

// AcceptedExtensions is the package-level form used by the upload handler before a service call.
func AcceptedExtensions(contentType string) []string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		var all []string
		for _, ct := range contentTypes {
			all = append(all, ct.Extensions...)
		}
		sort.Strings(all)
		return all
	}
	for _, ct := range contentTypes {
		if ct.ID == contentType {
			return append([]string(nil), ct.Extensions...)
		}
	}
	return nil
}

// IsContentType reports whether id names a supported content type.
func IsContentType(id string) bool {
	for _, ct := range contentTypes {
		if ct.ID == id {
			return true
		}
	}
	return false
}

func (s *uploadService) Validate(req *models.UploadRequest) error {
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))
	req.Theme = strings.TrimSpace(req.Theme)
	req.FileName = filepath.Base(strings.TrimSpace(req.FileName))
	if req.FileName == "." || req.FileName == string(filepath.Separator) {
		req.FileName = ""
	}
	if req.Size == 0 {
		req.Size = int64(len(req.Data))
	}

	if req.ContentType == "" {
		return fmt.Errorf("%w: content type is required", ErrInvalidUpload)
	}
	if !IsContentType(req.ContentType) {
		return fmt.Errorf("%w: unsupported content type %q", ErrInvalidUpload, req.ContentType)
	}
	if req.FileName == "" || req.Size == 0 {
		return fmt.Errorf("%w: source file is required", ErrInvalidUpload)
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	accepted := AcceptedExtensions(req.ContentType)
	if !slices.Contains(accepted, ext) {
		return fmt.Errorf("%w: %s files are not accepted for %s (accepted: %s)",
			ErrInvalidUpload, displayExt(ext), req.ContentType, strings.Join(accepted, ", "))
	}

	if req.Theme == "" {
		req.Theme = ThemeFromFilename(req.FileName)
	}
	if req.Theme == "" {
		return fmt.Errorf("%w: theme is required", ErrInvalidUpload)
	}

	if s.maxBytes > 0 && req.Size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d MB)", ErrUploadTooLarge, req.Size, s.maxBytes>>20)
	}
	return nil
}

// ThemeFromFilename derives a default theme: extension stripped, '-' and '_'
// become spaces and each word is capitalised.
func ThemeFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	words := strings.Fields(base)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func (s *uploadService) Upload(ctx context.Context, userID string, req models.UploadRequest) (*models.Campaign, error) {
	if err := s.Validate(&req); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	key := fmt.Sprintf("sources/%s/%s%s", userID, uuid.NewString(), ext)
	mimeType := sourceMimeType(ext, req.Data)
	if err := s.store.Put(ctx, key, req.Data, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store source file: %w", err)
	}

	now := s.now()
	campaign := &models.Campaign{
		OwnerID:         userID,
		Title:           req.Theme,
		Status:          models.StatusDraft,
		ContentType:     req.ContentType,
		Theme:           req.Theme,
		SourceFile:      req.FileName,
		SourceFileKey:   key,
		SourceFileSize:  req.Size,
		SourceMimeType:  mimeType,
		SelectedCaption: models.CaptionA,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	id, err := s.campaignRepo.Create(ctx, campaign)
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned source file", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	campaign.ID = id

	s.logger.Info("Campaign created from upload",
		zap.String("userID", userID),
		zap.String("campaignID", id),
		zap.String("contentType", req.ContentType),
		zap.Int64("size", req.Size))
	if s.audit != nil {
		s.audit.Record(ctx, userID, models.AuditCampaignCreated, models.TargetCampaign, id,
			map[string]interface{}{"type": req.ContentType, "sourceFile": req.FileName})
	}
	return campaign, nil
}

func sourceMimeType(ext string, data []byte) string {
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func displayExt(ext string) string {
	if ext == "" {
		return "extensionless"
	}
	return ext
}
