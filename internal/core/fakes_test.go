package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"artomate-backend/internal/db"
	"artomate-backend/internal/media"
	"artomate-backend/internal/models"
	"artomate-backend/pkg/cache"
	"artomate-backend/pkg/storage"
)

// --- repositories ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]models.User)}
	for _, u := range users {
		r.users[u.ID] = *u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, db.ErrNotFound)
	}
	return &u, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return db.ErrAlreadyExists
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StripeCustomerID == customerID {
			return &u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeUserRepo) get(id string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	seq       int
	campaigns map[string]models.Campaign
	updateErr error
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[string]models.Campaign)}
}

func cloneCampaign(c models.Campaign) models.Campaign {
	if c.Bundle != nil {
		b := *c.Bundle
		b.Hashtags = append([]string(nil), c.Bundle.Hashtags...)
		c.Bundle = &b
	}
	return c
}

func (r *fakeCampaignRepo) Create(_ context.Context, c *models.Campaign) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("c%d", r.seq)
	stored := cloneCampaign(*c)
	stored.ID = id
	r.campaigns[id] = stored
	return id, nil
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, ownerID, id string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return nil, fmt.Errorf("campaign with ID '%s' not found: %w", id, db.ErrNotFound)
	}
	c = cloneCampaign(c)
	return &c, nil
}

func (r *fakeCampaignRepo) ListByOwner(_ context.Context, ownerID string, opts db.CampaignListOptions) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.OwnerID != ownerID || (opts.Status != "" && c.Status != opts.Status) {
			continue
		}
		c := cloneCampaign(c)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Update(_ context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.campaigns[c.ID]; !ok {
		return fmt.Errorf("campaign with ID '%s' not found: %w", c.ID, db.ErrNotFound)
	}
	r.campaigns[c.ID] = cloneCampaign(*c)
	return nil
}

func (r *fakeCampaignRepo) Transition(_ context.Context, ownerID, id string, fn func(*models.Campaign) error) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, fmt.Errorf("campaign with ID '%s' not found: %w", id, db.ErrNotFound)
	}
	c := cloneCampaign(stored)
	if err := fn(&c); err != nil {
		return nil, err
	}
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.campaigns[id] = cloneCampaign(c)
	return &c, nil
}

func (r *fakeCampaignRepo) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return db.ErrNotFound
	}
	delete(r.campaigns, id)
	return nil
}

func (r *fakeCampaignRepo) get(id string) models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneCampaign(r.campaigns[id])
}

// put seeds a campaign under a fixed ID.
func (r *fakeCampaignRepo) put(c models.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = cloneCampaign(c)
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]models.Payment)}
}

func (r *fakePaymentRepo) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.SessionID]; ok {
		return fmt.Errorf("payment for session '%s': %w", p.SessionID, db.ErrAlreadyExists)
	}
	r.payments[p.SessionID] = *p
	return nil
}

func (r *fakePaymentRepo) Get(_ context.Context, sessionID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[sessionID]
	if !ok {
		return nil, fmt.Errorf("payment for session '%s': %w", sessionID, db.ErrNotFound)
	}
	return &p, nil
}

func (r *fakePaymentRepo) ListByUser(_ context.Context, userID string, limit int) ([]*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, &p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

// --- collaborators ---

type sentEmail struct {
	to      string
	subject string
	link    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentEmail{to: email, subject: "reset", link: link})
	return nil
}

func (n *fakeNotifier) SendCampaignEmail(_ context.Context, to string, email models.EmailCopy, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentEmail{to: to, subject: email.Subject})
	return nil
}

type fakeIdentity struct {
	createErr error
	linkErr   error
	created   []string
	revoked   []string
}

func (f *fakeIdentity) CreateUser(_ context.Context, email, _, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, email)
	return "uid-" + email, nil
}

func (f *fakeIdentity) PasswordResetLink(_ context.Context, email string) (string, error) {
	if f.linkErr != nil {
		return "", f.linkErr
	}
	return "https://auth.example.com/reset?email=" + email, nil
}

func (f *fakeIdentity) RevokeSessions(_ context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return nil
}

var _ IdentityProvider = (*fakeIdentity)(nil)

// recordingDispatcher captures jobs so tests can run them synchronously.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []models.GenerationJob
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job models.GenerationJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) last(t *testing.T) models.GenerationJob {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.jobs)
	return d.jobs[len(d.jobs)-1]
}

// --- fixtures ---

type testEnv struct {
	users     *fakeUserRepo
	campaigns *fakeCampaignRepo
	payments  *fakePaymentRepo
	audits    *fakeAuditRepo
	store     *storage.MemoryStore
	cache     *cache.MemoryCache
	notifier  *fakeNotifier
	audit     AuditService
	userSvc   UserService
	assembler *media.Assembler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	assembler, err := media.NewAssembler(media.VideoOptions{Width: 54, Height: 96, FPS: 2, Duration: time.Second})
	require.NoError(t, err)

	env := &testEnv{
		users:     newFakeUserRepo(),
		campaigns: newFakeCampaignRepo(),
		payments:  newFakePaymentRepo(),
		audits:    &fakeAuditRepo{},
		store:     storage.NewMemoryStore(),
		cache:     cache.NewMemoryCache(),
		notifier:  &fakeNotifier{},
		assembler: assembler,
	}
	env.audit = NewAuditService(env.audits, nil)
	env.userSvc = NewUserService(env.users, env.audit, nil)
	return env
}

func (e *testEnv) addUser(id, tier string) *models.User {
	u := &models.User{
		ID:                 id,
		Email:              id + "@example.com",
		DisplayName:        id,
		SubscriptionStatus: tier,
		Notifications:      models.DefaultNotificationPreferences(),
	}
	e.users.users[id] = *u
	return u
}

func testBundle() *models.GenerationBundle {
	return &models.GenerationBundle{
		Caption:     "Caption A text",
		CaptionB:    "Caption B text",
		Hashtags:    []string{"#one", "#two", "#three", "#four", "#five"},
		Email:       models.EmailCopy{Subject: "Subject", Body: "Body", CTAText: "Listen Now"},
		ImagePrompt: "prompt",
		VideoScript: "Scene 1\nScene 2",
		Image:       &models.AssetRef{Key: "campaigns/u1/c1/j0/image.png", MimeType: "image/png"},
		Video:       &models.AssetRef{Key: "campaigns/u1/c1/j0/video.gif", MimeType: "image/gif"},
	}
}

func (e *testEnv) addCampaign(id, owner, status string, bundle *models.GenerationBundle, createdAt time.Time) models.Campaign {
	c := models.Campaign{
		ID:              id,
		OwnerID:         owner,
		Title:           "Midnight Dreams",
		Status:          status,
		ContentType:     models.ContentMusic,
		Theme:           "Midnight Dreams",
		SourceFile:      "midnight-dreams.mp3",
		Bundle:          bundle,
		SelectedCaption: models.CaptionA,
		CreatedAt:       createdAt,
	}
	e.campaigns.put(c)
	return c
}
