package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"artomate-backend/internal/config"
	"artomate-backend/internal/db"
	"artomate-backend/internal/models"
	"artomate-backend/pkg/storage"
)

// Custom errors for the CampaignService
var (
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrBundleMissing         = errors.New("campaign has no generated content")
	ErrInvalidStatusFilter   = errors.New("invalid campaign status filter")
	ErrInvalidCaptionVariant = errors.New("caption variant must be A or B")
	ErrPaymentRequired       = errors.New("payment required to publish")
	ErrInvalidTitle          = errors.New("campaign title cannot be empty")
)

const recentCampaignCount = 3

// PaymentRequiredError carries the plans offered when publishing needs payment.
type PaymentRequiredError struct {
	CampaignID string
	Plans      []config.Plan
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("%v: campaign %s", ErrPaymentRequired, e.CampaignID)
}

func (e *PaymentRequiredError) Unwrap() error { return ErrPaymentRequired }

// CampaignPreview is the review screen: the bundle, the caption currently shown and links to the assets.
type CampaignPreview struct {
	Campaign         *models.Campaign `json:"campaign"`
	DisplayedCaption string           `json:"displayedCaption"`
	SelectedCaption  string           `json:"selectedCaption"`
	Image            *models.AssetRef `json:"image,omitempty"`
	Thumbnail        *models.AssetRef `json:"thumbnail,omitempty"`
	Video            *models.AssetRef `json:"video,omitempty"`
	Email            models.EmailCopy `json:"email"`
	Hashtags         []string         `json:"hashtags"`
}

type campaignService struct {
	campaignRepo db.CampaignRepository
	users        UserService
	store        storage.AssetStore
	plans        *config.PlanCatalog
	notifier     Notifier
	audit        AuditService
	urlTTL       time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewCampaignService creates a new CampaignService instance.
func NewCampaignService(
	campaignRepo db.CampaignRepository,
	users UserService,
	store storage.AssetStore,
	plans *config.PlanCatalog,
	notifier Notifier,
	audit AuditService,
	urlTTL time.Duration,
	logger *zap.Logger,
) CampaignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if plans == nil {
		plans = config.DefaultPlans()
	}
	return &campaignService{
		campaignRepo: campaignRepo,
		users:        users,
		store:        store,
		plans:        plans,
		notifier:     notifier,
		audit:        audit,
		urlTTL:       urlTTL,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func getOwnedCampaign(ctx context.Context, repo db.CampaignRepository, userID, campaignID string) (*models.Campaign, error) {
	campaign, err := repo.GetByID(ctx, userID, campaignID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, campaignID)
		}
		return nil, fmt.Errorf("failed to get campaign '%s': %w", campaignID, err)
	}
	if campaign.OwnerID != "" && campaign.OwnerID != userID {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, campaignID)
	}
	return campaign, nil
}

// List returns the caller's campaigns, newest first. status is "all", empty, or a campaign status.
func (s *campaignService) List(ctx context.Context, userID, status string) ([]*models.Campaign, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", "all":
		status = ""
	case models.StatusPublished, models.StatusDraft, models.StatusProcessing, models.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusFilter, status)
	}

	campaigns, err := s.campaignRepo.ListByOwner(ctx, userID, db.CampaignListOptions{Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns for user '%s': %w", userID, err)
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, nil
}

func (s *campaignService) Get(ctx context.Context, userID, campaignID string) (*models.Campaign, error) {
	return getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
}

func (s *campaignService) UpdateTitle(ctx context.Context, userID, campaignID string, req models.UpdateCampaignRequest) (*models.Campaign, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return nil, err
	}
	campaign.Title = title
	campaign.UpdatedAt = s.now()
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to update campaign '%s': %w", campaignID, err)
	}
	return campaign, nil
}

// Delete removes the campaign document, then its stored files on a best-effort basis.
func (s *campaignService) Delete(ctx context.Context, userID, campaignID string) error {
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return err
	}
	if err := s.campaignRepo.Delete(ctx, userID, campaignID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCampaignNotFound, campaignID)
		}
		return fmt.Errorf("failed to delete campaign '%s': %w", campaignID, err)
	}

	keys := bundleKeys(campaign.Bundle)
	if campaign.SourceFileKey != "" {
		keys = append(keys, campaign.SourceFileKey)
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("Failed to delete campaign asset", zap.String("campaignID", campaignID), zap.String("key", key), zap.Error(err))
		}
	}

	if s.audit != nil {
		s.audit.Record(ctx, userID, models.AuditCampaignDeleted, models.TargetCampaign, campaignID,
			map[string]interface{}{"title": campaign.Title})
	}
	return nil
}

func (s *campaignService) Preview(ctx context.Context, userID, campaignID string) (*CampaignPreview, error) {
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Bundle == nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleMissing, campaignID)
	}
	return s.buildPreview(ctx, campaign), nil
}

func (s *campaignService) buildPreview(ctx context.Context, campaign *models.Campaign) *CampaignPreview {
	selected := campaign.SelectedCaption
	if selected != models.CaptionB {
		selected = models.CaptionA
	}
	b := campaign.Bundle
	return &CampaignPreview{
		Campaign:         campaign,
		DisplayedCaption: campaign.DisplayedCaption(),
		SelectedCaption:  selected,
		Image:            s.signedRef(ctx, b.Image),
		Thumbnail:        s.signedRef(ctx, b.Thumbnail),
		Video:            s.signedRef(ctx, b.Video),
		Email:            b.Email,
		Hashtags:         b.Hashtags,
	}
}

// signedRef returns a copy of ref with a time-limited download URL.
func (s *campaignService) signedRef(ctx context.Context, ref *models.AssetRef) *models.AssetRef {
	if ref == nil {
		return nil
	}
	out := *ref
	u, err := s.store.URL(ctx, ref.Key, s.urlTTL)
	if err != nil {
		s.logger.Warn("Failed to sign asset URL", zap.String("key", ref.Key), zap.Error(err))
		return &out
	}
	out.URL = u
	return &out
}

// SelectCaption changes which variant is displayed. The generated captions themselves are never rewritten.
func (s *campaignService) SelectCaption(ctx context.Context, userID, campaignID, variant string) (*CampaignPreview, error) {
	variant = strings.ToUpper(strings.TrimSpace(variant))
	if variant != models.CaptionA && variant != models.CaptionB {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidCaptionVariant, variant)
	}
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Bundle == nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleMissing, campaignID)
	}

	if campaign.SelectedCaption != variant {
		campaign.SelectedCaption = variant
		campaign.UpdatedAt = s.now()
		if err := s.campaignRepo.Update(ctx, campaign); err != nil {
			return nil, fmt.Errorf("failed to save caption selection for campaign '%s': %w", campaignID, err)
		}
	}
	return s.buildPreview(ctx, campaign), nil
}

func (s *campaignService) SaveDraft(ctx context.Context, userID, campaignID string) (*models.Campaign, error) {
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.StatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrGenerationInProgress, campaignID)
	}
	if campaign.Bundle == nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleMissing, campaignID)
	}

	campaign.Status = models.StatusDraft
	campaign.UpdatedAt = s.now()
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to save draft '%s': %w", campaignID, err)
	}
	if s.audit != nil {
		s.audit.Record(ctx, userID, models.AuditCampaignDraftSaved, models.TargetCampaign, campaignID, nil)
	}
	return campaign, nil
}

// Publish publishes directly for pro profiles and paid campaigns. Free profiles
// get a *PaymentRequiredError listing the plans to choose from.
func (s *campaignService) Publish(ctx context.Context, userID, campaignID string) (*models.Campaign, error) {
	campaign, err := s.publishable(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.StatusPublished {
		return campaign, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsPro() && !campaign.Paid {
		return nil, &PaymentRequiredError{CampaignID: campaignID, Plans: s.plans.Plans}
	}
	return s.publish(ctx, campaign, "direct")
}

func (s *campaignService) MarkPaidAndPublish(ctx context.Context, userID, campaignID string) (*models.Campaign, error) {
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return nil, err
	}
	campaign.Paid = true
	if campaign.Bundle == nil || campaign.Status == models.StatusProcessing || campaign.Status == models.StatusPublished {
		campaign.UpdatedAt = s.now()
		if err := s.campaignRepo.Update(ctx, campaign); err != nil {
			return nil, fmt.Errorf("failed to mark campaign '%s' as paid: %w", campaignID, err)
		}
		s.logger.Info("Campaign marked paid without publishing",
			zap.String("campaignID", campaignID), zap.String("status", campaign.Status))
		return campaign, nil
	}
	return s.publish(ctx, campaign, "payment")
}

func (s *campaignService) publishable(ctx context.Context, userID, campaignID string) (*models.Campaign, error) {
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.StatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrGenerationInProgress, campaignID)
	}
	if campaign.Bundle == nil {
		return nil, fmt.Errorf("%w: %s", ErrBundleMissing, campaignID)
	}
	return campaign, nil
}

func (s *campaignService) publish(ctx context.Context, campaign *models.Campaign, via string) (*models.Campaign, error) {
	now := s.now()
	campaign.Status = models.StatusPublished
	campaign.PublishedAt = &now
	campaign.UpdatedAt = now
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to publish campaign '%s': %w", campaign.ID, err)
	}
	s.logger.Info("Campaign published", zap.String("campaignID", campaign.ID), zap.String("via", via))
	if s.audit != nil {
		s.audit.Record(ctx, campaign.OwnerID, models.AuditCampaignPublished, models.TargetCampaign, campaign.ID,
			map[string]interface{}{"via": via})
	}
	return campaign, nil
}

func (s *campaignService) Dashboard(ctx context.Context, userID string) (*models.DashboardStats, error) {
	campaigns, err := s.campaignRepo.ListByOwner(ctx, userID, db.CampaignListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard for user '%s': %w", userID, err)
	}

	stats := &models.DashboardStats{TotalCampaigns: len(campaigns), RecentCampaigns: []*models.Campaign{}}
	for _, c := range campaigns {
		switch c.Status {
		case models.StatusPublished:
			stats.Published++
		case models.StatusDraft:
			stats.Drafts++
		case models.StatusProcessing:
			stats.Processing++
		case models.StatusFailed:
			stats.Failed++
		}
		stats.TotalLikes += c.Engagement
	}
	for i := 0; i < len(campaigns) && i < recentCampaignCount; i++ {
		stats.RecentCampaigns = append(stats.RecentCampaigns, campaigns[i])
	}
	return stats, nil
}

// SendTestEmail mails the generated announcement to the creator's own address.
func (s *campaignService) SendTestEmail(ctx context.Context, userID, campaignID string) error {
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return err
	}
	if campaign.Bundle == nil {
		return fmt.Errorf("%w: %s", ErrBundleMissing, campaignID)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return fmt.Errorf("%w: profile has no email address", ErrInvalidProfile)
	}
	return s.notifier.SendCampaignEmail(ctx, user.Email, campaign.Bundle.Email, campaign.Title)
}
