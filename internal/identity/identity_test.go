package identity

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthClient struct {
	created   *auth.UserToCreate
	createErr error
	link      string
	linkErr   error
	revoked   string
	revokeErr error
}

func (f *fakeAuthClient) CreateUser(_ context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
	f.created = user
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "uid-123"}}, nil
}

func (f *fakeAuthClient) PasswordResetLink(_ context.Context, _ string) (string, error) {
	return f.link, f.linkErr
}

func (f *fakeAuthClient) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.revoked = uid
	return f.revokeErr
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "No account found with this email address.", Message(CodeUserNotFound))
	assert.Equal(t, "Incorrect password.", Message(CodeWrongPassword))
	assert.Equal(t, "An account with this email already exists.", Message(CodeEmailAlreadyInUse))
	assert.Equal(t, "Password should be at least 6 characters.", Message(CodeWeakPassword))
	assert.Equal(t, "Please enter a valid email address.", Message(CodeInvalidEmail))
	assert.Equal(t, "An error occurred. Please try again.", Message("auth/too-many-requests"))
	assert.Equal(t, "An error occurred. Please try again.", Message(CodeUnknown))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NewError(CodeWeakPassword, nil), CodeWeakPassword},
		{errors.New(`malformed email string: "nope"`), CodeInvalidEmail},
		{errors.New("password must be a string at least 6 characters long"), CodeWeakPassword},
		{errors.New("EMAIL_EXISTS"), CodeEmailAlreadyInUse},
		{errors.New("EMAIL_NOT_FOUND"), CodeUserNotFound},
		{errors.New("connection reset"), CodeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestFirebaseProvider_CreateUser(t *testing.T) {
	fake := &fakeAuthClient{}
	p := &FirebaseProvider{client: fake}

	uid, err := p.CreateUser(context.Background(), "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "uid-123", uid)
	assert.NotNil(t, fake.created)

	fake.createErr = errors.New("password must be a string at least 6 characters long")
	_, err = p.CreateUser(context.Background(), "ada@example.com", "123", "")
	require.Error(t, err)
	var idErr *Error
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, CodeWeakPassword, idErr.Code)
	assert.Equal(t, "Password should be at least 6 characters.", idErr.Message())
}

func TestFirebaseProvider_ResetAndRevoke(t *testing.T) {
	fake := &fakeAuthClient{link: "https://example.com/reset?oob=1"}
	p := &FirebaseProvider{client: fake}

	link, err := p.PasswordResetLink(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/reset?oob=1", link)

	fake.linkErr = errors.New("EMAIL_NOT_FOUND")
	_, err = p.PasswordResetLink(context.Background(), "ghost@example.com")
	assert.Equal(t, CodeUserNotFound, Classify(err))

	require.NoError(t, p.RevokeSessions(context.Background(), "uid-1"))
	assert.Equal(t, "uid-1", fake.revoked)
}

func TestNewFirebaseProvider_Nil(t *testing.T) {
	_, err := NewFirebaseProvider(nil)
	assert.Error(t, err)
}
