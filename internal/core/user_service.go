package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"artomate-backend/internal/db"
	"artomate-backend/internal/models"
)

// ErrUserNotFound is returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidProfile is returned when a profile update fails validation.
var ErrInvalidProfile = errors.New("invalid profile update")

const avatarURLFormat = "https://api.dicebear.com/7.x/initials/svg?seed=%s&backgroundColor=8B5CF6&textColor=ffffff"

// userService implements the UserService interface.
type userService struct {
	userRepo db.UserRepository
	audit    AuditService
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository, audit AuditService, logger *zap.Logger) UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userService{
		userRepo: userRepo,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates a new one.
// Returns the user, a boolean indicating if the user was created, and an error if any.
func (s *userService) GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}

	newUser := NewProfile(userID, email, displayName, photoURL, s.now())
	if createErr := s.userRepo.Create(ctx, newUser); createErr != nil {
		// Two concurrent initialize calls can race; the loser reads the winner's document.
		if errors.Is(createErr, db.ErrAlreadyExists) {
			existing, getErr := s.userRepo.GetByID(ctx, userID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to get user by ID '%s' after create conflict: %w", userID, getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create user (id: %s) after not found: %w", userID, createErr)
	}

	s.logger.Info("User profile created", zap.String("userID", userID))
	if s.audit != nil {
		s.audit.Record(ctx, userID, models.AuditUserCreated, models.TargetUser, userID, nil)
	}
	return newUser, true, nil
}

// NewProfile builds the bootstrap profile for a first sign-in.
func NewProfile(userID, email, displayName, photoURL string, now time.Time) *models.User {
	if strings.TrimSpace(displayName) == "" {
		displayName = emailLocalPart(email)
	}
	if strings.TrimSpace(photoURL) == "" {
		photoURL = AvatarURL(displayName)
	}
	return &models.User{
		ID:                 userID,
		Email:              email,
		DisplayName:        displayName,
		PhotoURL:           photoURL,
		SubscriptionStatus: models.TierFree,
		Notifications:      models.DefaultNotificationPreferences(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// AvatarURL returns the generated initials avatar for a display name.
func AvatarURL(displayName string) string {
	return fmt.Sprintf(avatarURLFormat, url.QueryEscape(Initials(displayName)))
}

// Initials takes the first letter of each word, upper-cased, at most two.
func Initials(name string) string {
	var letters []rune
	for _, word := range strings.Fields(name) {
		letters = append(letters, []rune(word)[0])
		if len(letters) == 2 {
			break
		}
	}
	return strings.ToUpper(string(letters))
}

func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}
	return user, nil
}

// UpdateProfile applies the provided fields. Email is owned by the identity provider and never changes here.
func (s *userService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name cannot be empty", ErrInvalidProfile)
		}
		user.DisplayName = name
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Website != nil {
		website := strings.TrimSpace(*req.Website)
		if website != "" {
			u, parseErr := url.Parse(website)
			if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("%w: website must be an http(s) URL", ErrInvalidProfile)
			}
		}
		user.Website = website
	}
	if req.PhotoURL != nil {
		user.PhotoURL = strings.TrimSpace(*req.PhotoURL)
		if user.PhotoURL == "" {
			user.PhotoURL = AvatarURL(user.DisplayName)
		}
	}

	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile for user '%s': %w", userID, err)
	}
	return user, nil
}

func (s *userService) UpdateNotifications(ctx context.Context, userID string, req models.UpdateNotificationsRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.CampaignUpdates != nil {
		user.Notifications.CampaignUpdates = *req.CampaignUpdates
	}
	if req.MarketingTips != nil {
		user.Notifications.MarketingTips = *req.MarketingTips
	}
	if req.ProductUpdates != nil {
		user.Notifications.ProductUpdates = *req.ProductUpdates
	}
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update notifications for user '%s': %w", userID, err)
	}
	return user, nil
}

func (s *userService) SetSubscription(ctx context.Context, userID, tier, customerID, subscriptionID string) (*models.User, error) {
	if tier != models.TierFree && tier != models.TierPro {
		return nil, fmt.Errorf("unknown subscription tier %q", tier)
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	previous := user.SubscriptionStatus
	user.SubscriptionStatus = tier
	if customerID != "" {
		user.StripeCustomerID = customerID
	}
	if subscriptionID != "" {
		user.StripeSubscriptionID = subscriptionID
	}
	if tier == models.TierFree {
		user.StripeSubscriptionID = ""
	}
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update subscription for user '%s': %w", userID, err)
	}
	if previous != tier && s.audit != nil {
		s.audit.Record(ctx, userID, models.AuditSubscriptionChanged, models.TargetUser, userID,
			map[string]interface{}{"from": previous, "to": tier})
	}
	return user, nil
}
