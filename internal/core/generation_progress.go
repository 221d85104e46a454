package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"artomate-backend/internal/models"
	"artomate-backend/pkg/cache"
)

const progressTTL = 24 * time.Hour

// Progress markers for each pipeline step.
var stepMarkers = map[string][2]int{
	models.StepText:  {20, 40},
	models.StepImage: {60, 80},
	models.StepVideo: {90, 100},
}

// progressStore keeps the live state of generation runs in the cache.
type progressStore struct {
	cache  cache.Cache
	logger *zap.Logger
}

func progressKey(campaignID string) string {
	return "generation:progress:" + campaignID
}

// save is best-effort; the campaign document remains the source of truth.
func (p *progressStore) save(ctx context.Context, progress *models.GenerationProgress) {
	data, err := json.Marshal(progress)
	if err != nil {
		p.logger.Error("Failed to encode generation progress", zap.String("campaignID", progress.CampaignID), zap.Error(err))
		return
	}
	if err := p.cache.Set(ctx, progressKey(progress.CampaignID), string(data), progressTTL); err != nil {
		p.logger.Warn("Failed to cache generation progress", zap.String("campaignID", progress.CampaignID), zap.Error(err))
	}
}

func (p *progressStore) load(ctx context.Context, campaignID string) (*models.GenerationProgress, error) {
	raw, err := p.cache.Get(ctx, progressKey(campaignID))
	if err != nil {
		return nil, fmt.Errorf("failed to read generation progress: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var progress models.GenerationProgress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		return nil, fmt.Errorf("failed to decode generation progress: %w", err)
	}
	return &progress, nil
}

// progressFromCampaign derives a progress report when nothing is cached,
// for example after the cache entry expired or on another replica without redis.
func progressFromCampaign(c *models.Campaign, now time.Time) *models.GenerationProgress {
	p := &models.GenerationProgress{CampaignID: c.ID, UpdatedAt: now}
	switch {
	case c.Status == models.StatusProcessing:
		p.State = models.GenerationRunning
		p.Step = models.StepText
	case c.Status == models.StatusFailed:
		p.State = models.GenerationFailed
		p.Error = c.FailureReason
		p.CanRetry = true
		p.CanGoBack = true
	case c.Bundle != nil:
		p.State = models.GenerationCompleted
		p.Step = models.StepVideo
		p.Percent = 100
	default:
		p.State = models.GenerationIdle
		p.CanGoBack = true
	}
	return p
}
