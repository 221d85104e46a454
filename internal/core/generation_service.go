package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"artomate-backend/internal/aigen"
	"artomate-backend/internal/db"
	"artomate-backend/internal/media"
	"artomate-backend/internal/models"
	"artomate-backend/pkg/cache"
	"artomate-backend/pkg/storage"
)

var (
	// ErrGenerationInProgress is returned when a campaign is already being generated.
	ErrGenerationInProgress = errors.New("generation already in progress")
	// ErrCampaignPublished is returned when a published campaign would be regenerated.
	ErrCampaignPublished = errors.New("campaign is already published")
	// ErrDispatchFailed is returned when a job could not be handed to a runner.
	ErrDispatchFailed = errors.New("failed to start generation")

	errStaleJob = errors.New("generation job is no longer current")
)

const thumbnailWidth = 512

// VideoAssembler renders the campaign video from the generated image and script.
type VideoAssembler interface {
	Assemble(ctx context.Context, imageData []byte, script string) (*media.Video, error)
}

type generationService struct {
	campaignRepo db.CampaignRepository
	text         aigen.TextGenerator
	images       aigen.ImageGenerator
	video        VideoAssembler
	store        storage.AssetStore
	progress     *progressStore
	dispatcher   JobDispatcher
	audit        AuditService
	logger       *zap.Logger
	now          func() time.Time
}

// NewGenerationService creates the generation pipeline. A nil dispatcher runs
// jobs in-process, each bounded by timeout.
func NewGenerationService(
	campaignRepo db.CampaignRepository,
	generator aigen.Generator,
	video VideoAssembler,
	store storage.AssetStore,
	progressCache cache.Cache,
	dispatcher JobDispatcher,
	audit AuditService,
	timeout time.Duration,
	logger *zap.Logger,
) GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &generationService{
		campaignRepo: campaignRepo,
		text:         generator,
		images:       generator,
		video:        video,
		store:        store,
		progress:     &progressStore{cache: progressCache, logger: logger},
		dispatcher:   dispatcher,
		audit:        audit,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if s.dispatcher == nil {
		s.dispatcher = NewInlineDispatcher(s, timeout, logger)
	}
	return s
}

func (s *generationService) Start(ctx context.Context, userID, campaignID string) (*models.GenerationProgress, error) {
	// The status guard and the switch to processing are one transaction, so
	// concurrent starts cannot both dispatch.
	campaign, err := s.campaignRepo.Transition(ctx, userID, campaignID, func(c *models.Campaign) error {
		switch c.Status {
		case models.StatusPublished:
			return fmt.Errorf("%w: %s", ErrCampaignPublished, campaignID)
		case models.StatusProcessing:
			return fmt.Errorf("%w: %s", ErrGenerationInProgress, campaignID)
		}
		c.Status = models.StatusProcessing
		c.FailureReason = ""
		c.UpdatedAt = s.now()
		return nil
	})
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, campaignID)
	case errors.Is(err, ErrCampaignPublished), errors.Is(err, ErrGenerationInProgress):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to mark campaign '%s' as processing: %w", campaignID, err)
	}

	job := models.GenerationJob{
		JobID:       uuid.NewString(),
		UserID:      userID,
		CampaignID:  campaignID,
		RequestedAt: s.now(),
	}
	progress := &models.GenerationProgress{
		CampaignID: campaignID,
		JobID:      job.JobID,
		State:      models.GenerationRunning,
		Step:       models.StepText,
		UpdatedAt:  s.now(),
	}
	s.progress.save(ctx, progress)

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.Error("Failed to dispatch generation job", zap.String("campaignID", campaignID), zap.Error(err))
		s.fail(ctx, campaign, job, models.StepText, 0, err, nil)
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	s.logger.Info("Generation started",
		zap.String("userID", userID),
		zap.String("campaignID", campaignID),
		zap.String("jobID", job.JobID))
	return progress, nil
}

// Retry restarts generation for a failed or completed draft campaign.
func (s *generationService) Retry(ctx context.Context, userID, campaignID string) (*models.GenerationProgress, error) {
	return s.Start(ctx, userID, campaignID)
}

func (s *generationService) Progress(ctx context.Context, userID, campaignID string) (*models.GenerationProgress, error) {
	campaign, err := getOwnedCampaign(ctx, s.campaignRepo, userID, campaignID)
	if err != nil {
		return nil, err
	}

	cached, err := s.progress.load(ctx, campaignID)
	if err != nil {
		s.logger.Warn("Falling back to campaign status for progress", zap.String("campaignID", campaignID), zap.Error(err))
	}
	// A cached running state outlived its job if the campaign moved on.
	if cached != nil && !(cached.State == models.GenerationRunning && campaign.Status != models.StatusProcessing) {
		return cached, nil
	}
	return progressFromCampaign(campaign, s.now()), nil
}

// Run executes the pipeline: copy, image, video. Any failure discards everything
// produced so far, including the bundle from an earlier run.
func (s *generationService) Run(ctx context.Context, job models.GenerationJob) error {
	campaign, err := s.campaignRepo.GetByID(ctx, job.UserID, job.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign '%s' for job %s: %w", job.CampaignID, job.JobID, err)
	}
	if campaign.Status != models.StatusProcessing {
		s.logger.Warn("Skipping stale generation job",
			zap.String("jobID", job.JobID),
			zap.String("campaignID", job.CampaignID),
			zap.String("status", campaign.Status))
		return nil
	}

	r := &pipelineRun{svc: s, job: job, campaign: campaign}
	bundle, err := r.execute(ctx)
	if err != nil {
		s.fail(ctx, campaign, job, r.step, r.percent, err, r.keys)
		return err
	}

	var previous *models.GenerationBundle
	_, err = s.campaignRepo.Transition(ctx, job.UserID, job.CampaignID, func(c *models.Campaign) error {
		if c.Status != models.StatusProcessing {
			return fmt.Errorf("%w: campaign is %s", errStaleJob, c.Status)
		}
		previous = c.Bundle
		c.Bundle = bundle
		c.Status = models.StatusDraft
		c.SelectedCaption = models.CaptionA
		c.FailureReason = ""
		c.UpdatedAt = s.now()
		return nil
	})
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, errStaleJob):
		// Deleted or taken over while the job ran: keep nothing this run produced.
		s.deleteAssets(context.WithoutCancel(ctx), r.keys)
		s.logger.Warn("Discarding generation result",
			zap.String("jobID", job.JobID),
			zap.String("campaignID", job.CampaignID),
			zap.Error(err))
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s was deleted during generation", ErrCampaignNotFound, job.CampaignID)
		}
		return err
	case err != nil:
		err = fmt.Errorf("failed to save generated content: %w", err)
		s.fail(ctx, campaign, job, models.StepVideo, 100, err, r.keys)
		return err
	}

	s.progress.save(ctx, &models.GenerationProgress{
		CampaignID: job.CampaignID,
		JobID:      job.JobID,
		State:      models.GenerationCompleted,
		Step:       models.StepVideo,
		Percent:    100,
		CanGoBack:  true,
		UpdatedAt:  s.now(),
	})
	s.deleteAssets(ctx, bundleKeys(previous))

	s.logger.Info("Generation completed", zap.String("campaignID", job.CampaignID), zap.String("jobID", job.JobID))
	if s.audit != nil {
		s.audit.Record(ctx, job.UserID, models.AuditCampaignGenerated, models.TargetCampaign, job.CampaignID,
			map[string]interface{}{"jobId": job.JobID})
	}
	return nil
}

func (s *generationService) Shutdown(ctx context.Context) error {
	if d, ok := s.dispatcher.(interface{ Shutdown(context.Context) error }); ok {
		return d.Shutdown(ctx)
	}
	return nil
}

// fail records a failed run. It uses a detached context so a timed-out job can still be marked.
func (s *generationService) fail(ctx context.Context, campaign *models.Campaign, job models.GenerationJob, step string, percent int, cause error, newKeys []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	stale := append(bundleKeys(campaign.Bundle), newKeys...)
	campaign.Bundle = nil
	campaign.Status = models.StatusFailed
	campaign.FailureReason = cause.Error()
	campaign.UpdatedAt = s.now()
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Info("Campaign deleted before its generation failure was recorded", zap.String("campaignID", campaign.ID))
		} else {
			s.logger.Error("Failed to record generation failure", zap.String("campaignID", campaign.ID), zap.Error(err))
		}
	}

	s.progress.save(ctx, &models.GenerationProgress{
		CampaignID: campaign.ID,
		JobID:      job.JobID,
		State:      models.GenerationFailed,
		Step:       step,
		Percent:    percent,
		Error:      cause.Error(),
		CanRetry:   true,
		CanGoBack:  true,
		UpdatedAt:  s.now(),
	})
	s.deleteAssets(ctx, stale)

	s.logger.Warn("Generation failed",
		zap.String("campaignID", campaign.ID),
		zap.String("jobID", job.JobID),
		zap.String("step", step),
		zap.Error(cause))
	if s.audit != nil {
		s.audit.Record(ctx, job.UserID, models.AuditCampaignGenerationFailed, models.TargetCampaign, campaign.ID,
			map[string]interface{}{"step": step, "error": cause.Error()})
	}
}

func (s *generationService) deleteAssets(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("Failed to delete generated asset", zap.String("key", key), zap.Error(err))
		}
	}
}

func bundleKeys(b *models.GenerationBundle) []string {
	if b == nil {
		return nil
	}
	var keys []string
	for _, ref := range []*models.AssetRef{b.Image, b.Thumbnail, b.Video} {
		if ref != nil && ref.Key != "" {
			keys = append(keys, ref.Key)
		}
	}
	return keys
}

// pipelineRun tracks one execution so a failure can report where it stopped
// and which assets it already stored.
type pipelineRun struct {
	svc      *generationService
	job      models.GenerationJob
	campaign *models.Campaign
	step     string
	percent  int
	keys     []string
}

func (r *pipelineRun) report(ctx context.Context, step string, percent int) {
	r.step, r.percent = step, percent
	r.svc.progress.save(ctx, &models.GenerationProgress{
		CampaignID: r.job.CampaignID,
		JobID:      r.job.JobID,
		State:      models.GenerationRunning,
		Step:       step,
		Percent:    percent,
		UpdatedAt:  r.svc.now(),
	})
}

func (r *pipelineRun) put(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	key := fmt.Sprintf("campaigns/%s/%s/%s/%s", r.job.UserID, r.job.CampaignID, r.job.JobID, name)
	if err := r.svc.store.Put(ctx, key, data, mimeType); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}
	r.keys = append(r.keys, key)
	return key, nil
}

func (r *pipelineRun) execute(ctx context.Context) (*models.GenerationBundle, error) {
	s := r.svc

	r.report(ctx, models.StepText, stepMarkers[models.StepText][0])
	bundle, err := s.text.GenerateBundle(ctx, aigen.Request{
		ContentType: r.campaign.ContentType,
		Theme:       r.campaign.Theme,
		FileName:    r.campaign.SourceFile,
	})
	if err != nil {
		return nil, err
	}
	if err := aigen.NormalizeBundle(bundle); err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}
	r.report(ctx, models.StepText, stepMarkers[models.StepText][1])

	r.report(ctx, models.StepImage, stepMarkers[models.StepImage][0])
	img, err := s.images.GenerateImage(ctx, bundle.ImagePrompt)
	if err != nil {
		return nil, err
	}
	imageKey, err := r.put(ctx, "image"+imageExtension(img.MIMEType), img.Data, img.MIMEType)
	if err != nil {
		return nil, err
	}
	bundle.Image = &models.AssetRef{Key: imageKey, MimeType: img.MIMEType, Prompt: bundle.ImagePrompt}

	if thumb, thumbErr := media.Thumbnail(img.Data, thumbnailWidth); thumbErr != nil {
		s.logger.Warn("Failed to create thumbnail", zap.String("campaignID", r.job.CampaignID), zap.Error(thumbErr))
	} else {
		thumbKey, putErr := r.put(ctx, "thumbnail.png", thumb, "image/png")
		if putErr != nil {
			return nil, putErr
		}
		bundle.Thumbnail = &models.AssetRef{Key: thumbKey, MimeType: "image/png", Width: thumbnailWidth}
	}
	r.report(ctx, models.StepImage, stepMarkers[models.StepImage][1])

	r.report(ctx, models.StepVideo, stepMarkers[models.StepVideo][0])
	video, err := s.video.Assemble(ctx, img.Data, bundle.VideoScript)
	if err != nil {
		return nil, fmt.Errorf("video generation failed: %w", err)
	}
	videoKey, err := r.put(ctx, "video."+video.Format, video.Data, video.MIMEType)
	if err != nil {
		return nil, err
	}
	bundle.Video = &models.AssetRef{
		Key:        videoKey,
		MimeType:   video.MIMEType,
		DurationMs: video.Duration.Milliseconds(),
		Format:     video.Format,
		Width:      video.Width,
		Height:     video.Height,
	}
	r.report(ctx, models.StepVideo, stepMarkers[models.StepVideo][1])

	bundle.GeneratedAt = s.now()
	return bundle, nil
}

func imageExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
