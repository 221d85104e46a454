package core

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"artomate-backend/internal/identity"
	"artomate-backend/internal/models"
)

// MinPasswordLength mirrors the identity provider's own minimum.
const MinPasswordLength = 6

// ErrNotificationUnavailable is returned when an email cannot be sent because no relay is configured.
var ErrNotificationUnavailable = errors.New("email delivery is not configured")

type authService struct {
	identity IdentityProvider
	users    UserService
	notifier Notifier
	logger   *zap.Logger
}

// NewAuthService creates the account service.
func NewAuthService(idp IdentityProvider, users UserService, notifier Notifier, logger *zap.Logger) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authService{identity: idp, users: users, notifier: notifier, logger: logger}
}

// ValidateCredentials applies the same checks the identity provider does,
// so the client gets the mapped message without a round trip.
func ValidateCredentials(email, password string) error {
	// ParseAddress also accepts display-name forms such as "Bob <bob@x.io>".
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return identity.NewError(identity.CodeInvalidEmail, err)
	}
	if addr.Address != email {
		return identity.NewError(identity.CodeInvalidEmail, fmt.Errorf("%q is not a bare address", email))
	}
	if len(password) < MinPasswordLength {
		return identity.NewError(identity.CodeWeakPassword, nil)
	}
	return nil
}

func (s *authService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error) {
	email := strings.TrimSpace(req.Email)
	if err := ValidateCredentials(email, req.Password); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(req.DisplayName)

	uid, err := s.identity.CreateUser(ctx, email, req.Password, displayName)
	if err != nil {
		s.logger.Warn("Sign-up rejected by identity provider",
			zap.String("code", identity.Classify(err)), zap.Error(err))
		return nil, err
	}

	user, _, err := s.users.GetOrCreate(ctx, uid, email, displayName, "")
	if err != nil {
		return nil, fmt.Errorf("account %s created but profile bootstrap failed: %w", uid, err)
	}
	return user, nil
}

func (s *authService) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return identity.NewError(identity.CodeInvalidEmail, err)
	}

	link, err := s.identity.PasswordResetLink(ctx, email)
	if err != nil {
		return err
	}
	if err := s.notifier.SendPasswordReset(ctx, email, link); err != nil {
		if errors.Is(err, ErrNotificationUnavailable) {
			s.logger.Warn("Password reset link generated but email delivery is not configured", zap.String("email", email))
		}
		return err
	}
	return nil
}

func (s *authService) SignOut(ctx context.Context, userID string) error {
	if err := s.identity.RevokeSessions(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions for user '%s': %w", userID, err)
	}
	return nil
}
