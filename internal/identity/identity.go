// Package identity adapts the Firebase Admin Auth client for account
// management and maps its failures onto the user-facing auth error codes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
)

// Error codes surfaced to clients.
const (
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeEmailAlreadyInUse = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUnknown           = "auth/unknown"
)

const genericMessage = "An error occurred. Please try again."

var messages = map[string]string{
	CodeUserNotFound:      "No account found with this email address.",
	CodeWrongPassword:     "Incorrect password.",
	CodeEmailAlreadyInUse: "An account with this email already exists.",
	CodeWeakPassword:      "Password should be at least 6 characters.",
	CodeInvalidEmail:      "Please enter a valid email address.",
}

// Message returns the display text for an auth error code.
func Message(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return genericMessage
}

// Error is an identity failure tagged with its auth error code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the display text for the error's code.
func (e *Error) Message() string { return Message(e.Code) }

// NewError tags err with code.
func NewError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Classify returns the auth error code for err. Errors that are not
// recognised map to CodeUnknown.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	switch {
	case auth.IsEmailAlreadyExists(err):
		return CodeEmailAlreadyInUse
	case auth.IsUserNotFound(err), auth.IsEmailNotFound(err):
		return CodeUserNotFound
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "malformed email"), strings.Contains(msg, "invalid_email"):
		return CodeInvalidEmail
	case strings.Contains(msg, "password must be"), strings.Contains(msg, "weak_password"):
		return CodeWeakPassword
	case strings.Contains(msg, "email_exists"):
		return CodeEmailAlreadyInUse
	case strings.Contains(msg, "email_not_found"), strings.Contains(msg, "user_not_found"):
		return CodeUserNotFound
	}
	return CodeUnknown
}

// authClient is the subset of *auth.Client used here.
type authClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseProvider manages accounts through the Firebase Admin SDK.
type FirebaseProvider struct {
	client authClient
}

// NewFirebaseProvider wraps an initialised Firebase Auth client.
func NewFirebaseProvider(client *auth.Client) (*FirebaseProvider, error) {
	if client == nil {
		return nil, errors.New("firebase auth client is nil")
	}
	return &FirebaseProvider{client: client}, nil
}

// CreateUser creates an email/password account and returns its UID.
func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	record, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return "", NewError(Classify(err), err)
	}
	return record.UID, nil
}

// PasswordResetLink generates an out-of-band password reset link.
func (p *FirebaseProvider) PasswordResetLink(ctx context.Context, email string) (string, error) {
	link, err := p.client.PasswordResetLink(ctx, email)
	if err != nil {
		return "", NewError(Classify(err), err)
	}
	return link, nil
}

// RevokeSessions invalidates every refresh token issued to uid.
func (p *FirebaseProvider) RevokeSessions(ctx context.Context, uid string) error {
	if err := p.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return NewError(Classify(err), err)
	}
	return nil
}
