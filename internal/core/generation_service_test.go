package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artomate-backend/internal/aigen"
	"artomate-backend/internal/db"
	"artomate-backend/internal/models"
	"artomate-backend/pkg/messagequeue"
)

// brokenImageGenerator returns copy from the mock but an image nothing can decode.
type brokenImageGenerator struct {
	aigen.MockGenerator
}

func (g *brokenImageGenerator) GenerateImage(_ context.Context, prompt string) (*aigen.Image, error) {
	return &aigen.Image{Data: []byte("not an image"), MIMEType: "image/png", Prompt: prompt}, nil
}

// gatedGenerator parks inside GenerateBundle until released.
type gatedGenerator struct {
	aigen.MockGenerator
	entered chan struct{}
	release chan struct{}
}

func (g *gatedGenerator) GenerateBundle(ctx context.Context, req aigen.Request) (*models.GenerationBundle, error) {
	close(g.entered)
	<-g.release
	return g.MockGenerator.GenerateBundle(ctx, req)
}

func newGenerationService(env *testEnv, gen aigen.Generator, d JobDispatcher) GenerationService {
	return NewGenerationService(env.campaigns, gen, env.assembler, env.store, env.cache, d, env.audit, time.Minute, nil)
}

func TestGenerationService_RunSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, nil, time.Now())
	d := &recordingDispatcher{}
	svc := newGenerationService(env, &aigen.MockGenerator{}, d)
	ctx := context.Background()

	progress, err := svc.Start(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationRunning, progress.State)
	assert.Equal(t, models.StatusProcessing, env.campaigns.get("c1").Status)

	require.NoError(t, svc.Run(ctx, d.last(t)))

	c := env.campaigns.get("c1")
	assert.Equal(t, models.StatusDraft, c.Status)
	assert.Equal(t, models.CaptionA, c.SelectedCaption)
	require.NotNil(t, c.Bundle)
	assert.Len(t, c.Bundle.Hashtags, 5)
	require.NotNil(t, c.Bundle.Image)
	require.NotNil(t, c.Bundle.Thumbnail)
	require.NotNil(t, c.Bundle.Video)
	assert.Equal(t, "image/gif", c.Bundle.Video.MimeType)
	assert.Equal(t, "gif", c.Bundle.Video.Format)
	assert.Equal(t, int64(1000), c.Bundle.Video.DurationMs)
	assert.Equal(t, 3, env.store.Len())

	progress, err = svc.Progress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationCompleted, progress.State)
	assert.Equal(t, 100, progress.Percent)
	assert.Contains(t, env.audits.actions(), models.AuditCampaignGenerated)
}

func TestGenerationService_FailureDiscardsEverything(t *testing.T) {
	tests := []struct {
		name     string
		gen      aigen.Generator
		wantStep string
		wantMsg  string
	}{
		{"text", &aigen.MockGenerator{FailText: errors.New("quota exceeded")}, models.StepText, "content generation failed"},
		{"image", &aigen.MockGenerator{FailImage: errors.New("blocked prompt")}, models.StepImage, "image generation failed"},
		{"video", &brokenImageGenerator{}, models.StepVideo, "failed to load background image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			// A bundle from an earlier successful run must not survive a failed regeneration.
			old := testBundle()
			env.addCampaign("c1", "u1", models.StatusDraft, old, time.Now())
			require.NoError(t, env.store.Put(context.Background(), old.Image.Key, []byte("old"), "image/png"))

			d := &recordingDispatcher{}
			svc := newGenerationService(env, tt.gen, d)
			ctx := context.Background()

			_, err := svc.Start(ctx, "u1", "c1")
			require.NoError(t, err)
			err = svc.Run(ctx, d.last(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			c := env.campaigns.get("c1")
			assert.Equal(t, models.StatusFailed, c.Status)
			assert.Nil(t, c.Bundle)
			assert.Contains(t, c.FailureReason, tt.wantMsg)
			assert.Equal(t, 0, env.store.Len())

			progress, err := svc.Progress(ctx, "u1", "c1")
			require.NoError(t, err)
			assert.Equal(t, models.GenerationFailed, progress.State)
			assert.Equal(t, tt.wantStep, progress.Step)
			assert.True(t, progress.CanRetry)
			assert.True(t, progress.CanGoBack)
			assert.Contains(t, progress.Error, tt.wantMsg)
			assert.Contains(t, env.audits.actions(), models.AuditCampaignGenerationFailed)
		})
	}
}

func TestGenerationService_RetryAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, nil, time.Now())
	gen := &aigen.MockGenerator{FailText: errors.New("timeout")}
	d := &recordingDispatcher{}
	svc := newGenerationService(env, gen, d)
	ctx := context.Background()

	_, err := svc.Start(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Error(t, svc.Run(ctx, d.last(t)))

	gen.FailText = nil
	_, err = svc.Retry(ctx, "u1", "c1")
	require.NoError(t, err)
	require.NoError(t, svc.Run(ctx, d.last(t)))

	c := env.campaigns.get("c1")
	assert.Equal(t, models.StatusDraft, c.Status)
	assert.Empty(t, c.FailureReason)
	assert.NotNil(t, c.Bundle)
}

func TestGenerationService_StartGuards(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("busy", "u1", models.StatusProcessing, nil, time.Now())
	env.addCampaign("live", "u1", models.StatusPublished, testBundle(), time.Now())
	env.addCampaign("mine", "u1", models.StatusDraft, nil, time.Now())
	svc := newGenerationService(env, &aigen.MockGenerator{}, &recordingDispatcher{})
	ctx := context.Background()

	_, err := svc.Start(ctx, "u1", "busy")
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	_, err = svc.Start(ctx, "u1", "live")
	assert.ErrorIs(t, err, ErrCampaignPublished)

	_, err = svc.Start(ctx, "u2", "mine")
	assert.ErrorIs(t, err, ErrCampaignNotFound)

	_, err = svc.Progress(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestGenerationService_ConcurrentStartsDispatchOnce(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, nil, time.Now())
	d := &recordingDispatcher{}
	svc := newGenerationService(env, &aigen.MockGenerator{}, d)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Start(context.Background(), "u1", "c1")
		}(i)
	}
	wg.Wait()

	started := 0
	for _, err := range errs {
		if err == nil {
			started++
			continue
		}
		assert.ErrorIs(t, err, ErrGenerationInProgress)
	}
	assert.Equal(t, 1, started)
	assert.Len(t, d.jobs, 1)
}

func TestGenerationService_DeletedDuringRun(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, nil, time.Now())
	gen := &gatedGenerator{entered: make(chan struct{}), release: make(chan struct{})}
	d := &recordingDispatcher{}
	svc := newGenerationService(env, gen, d)
	ctx := context.Background()

	_, err := svc.Start(ctx, "u1", "c1")
	require.NoError(t, err)

	job := d.last(t)
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, job) }()

	<-gen.entered
	require.NoError(t, env.campaigns.Delete(ctx, "u1", "c1"))
	close(gen.release)

	err = <-done
	assert.ErrorIs(t, err, ErrCampaignNotFound)

	_, err = env.campaigns.GetByID(ctx, "u1", "c1")
	assert.ErrorIs(t, err, db.ErrNotFound, "a deleted campaign stays deleted")
	assert.Equal(t, 0, env.store.Len(), "assets from the abandoned run are removed")
	assert.NotContains(t, env.audits.actions(), models.AuditCampaignGenerated)
}

func TestGenerationService_DispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, nil, time.Now())
	svc := newGenerationService(env, &aigen.MockGenerator{}, &recordingDispatcher{err: errors.New("broker down")})

	_, err := svc.Start(context.Background(), "u1", "c1")
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, models.StatusFailed, env.campaigns.get("c1").Status)
}

func TestGenerationService_StaleJobIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, testBundle(), time.Now())
	svc := newGenerationService(env, &aigen.MockGenerator{FailText: errors.New("should not run")}, &recordingDispatcher{})

	err := svc.Run(context.Background(), models.GenerationJob{JobID: "j1", UserID: "u1", CampaignID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, env.campaigns.get("c1").Status)
	assert.NotNil(t, env.campaigns.get("c1").Bundle)
}

func TestGenerationService_ProgressWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("idle", "u1", models.StatusDraft, nil, time.Now())
	env.addCampaign("done", "u1", models.StatusDraft, testBundle(), time.Now())
	failed := env.addCampaign("bad", "u1", models.StatusFailed, nil, time.Now())
	failed.FailureReason = "image generation failed: blocked"
	env.campaigns.put(failed)
	svc := newGenerationService(env, &aigen.MockGenerator{}, &recordingDispatcher{})
	ctx := context.Background()

	p, err := svc.Progress(ctx, "u1", "idle")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationIdle, p.State)

	p, err = svc.Progress(ctx, "u1", "done")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationCompleted, p.State)
	assert.Equal(t, 100, p.Percent)

	p, err = svc.Progress(ctx, "u1", "bad")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationFailed, p.State)
	assert.Equal(t, "image generation failed: blocked", p.Error)
	assert.True(t, p.CanRetry)
}

func TestGenerationService_InlineDispatcher(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, nil, time.Now())
	svc := newGenerationService(env, &aigen.MockGenerator{}, nil)

	_, err := svc.Start(context.Background(), "u1", "c1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	c := env.campaigns.get("c1")
	assert.Equal(t, models.StatusDraft, c.Status)
	assert.NotNil(t, c.Bundle)

	env.addCampaign("c2", "u1", models.StatusDraft, nil, time.Now())
	_, err = svc.Start(context.Background(), "u1", "c2")
	assert.ErrorIs(t, err, ErrDispatchFailed)
}

type fakeQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
	results   []error
}

func (q *fakeQueue) Publish(_ context.Context, queue string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.published == nil {
		q.published = make(map[string][][]byte)
	}
	q.published[queue] = append(q.published[queue], body)
	return nil
}

// Consume delivers everything published so far, then returns.
func (q *fakeQueue) Consume(ctx context.Context, queue string, handler messagequeue.Handler) error {
	q.mu.Lock()
	bodies := q.published[queue]
	q.mu.Unlock()
	for _, body := range bodies {
		q.results = append(q.results, handler(ctx, body))
	}
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func TestQueueDispatcher_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.addCampaign("c1", "u1", models.StatusDraft, nil, time.Now())
	env.addCampaign("c2", "u1", models.StatusDraft, nil, time.Now())
	q := &fakeQueue{}
	svc := newGenerationService(env, &aigen.MockGenerator{}, NewQueueDispatcher(q, "artomate.generation"))
	ctx := context.Background()

	_, err := svc.Start(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, q.published["artomate.generation"], 1)

	var job models.GenerationJob
	require.NoError(t, json.Unmarshal(q.published["artomate.generation"][0], &job))
	assert.Equal(t, "c1", job.CampaignID)
	assert.NotEmpty(t, job.JobID)

	q.published["artomate.generation"] = append(q.published["artomate.generation"], []byte("{garbage"))
	require.NoError(t, ConsumeGenerationJobs(ctx, q, "artomate.generation", svc, time.Minute, nil))
	require.Len(t, q.results, 2)
	assert.NoError(t, q.results[0])
	assert.Error(t, q.results[1])

	assert.NotNil(t, env.campaigns.get("c1").Bundle)
	assert.Nil(t, env.campaigns.get("c2").Bundle)
	require.NoError(t, svc.Shutdown(ctx))
}
