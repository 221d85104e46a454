package db

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artomate-backend/internal/config"
)

func TestCredentialsOption(t *testing.T) {
	opt, source, err := credentialsOption(&config.Config{GoogleApplicationCredentials: "/tmp/sa.json"})
	require.NoError(t, err)
	assert.NotNil(t, opt)
	assert.Equal(t, credentialsFile, source)

	encoded := base64.StdEncoding.EncodeToString([]byte(`{"type":"service_account"}`))
	opt, source, err = credentialsOption(&config.Config{FirebaseServiceAccountJSONBase64: encoded})
	require.NoError(t, err)
	assert.NotNil(t, opt)
	assert.Equal(t, credentialsBase64, source)

	_, _, err = credentialsOption(&config.Config{FirebaseServiceAccountJSONBase64: "%%%not-base64"})
	require.Error(t, err)

	opt, source, err = credentialsOption(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, opt)
	assert.Equal(t, credentialsADC, source)
}
