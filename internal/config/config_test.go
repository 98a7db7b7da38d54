package config_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moopoint/chat-api/internal/config"
)

func validSecret() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SECRET_KEY", validSecret())

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "chat-api", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.False(t, cfg.AuthEnabled)
	assert.Positive(t, cfg.ToolCallTimeout)
	assert.Positive(t, cfg.ToolListTimeout)

	key, err := cfg.CipherKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestLoad_MissingSecretKey(t *testing.T) {
	t.Setenv("SECRET_KEY", "")

	_, err := config.Load()

	assert.ErrorContains(t, err, "SECRET_KEY")
}

func TestLoad_SecretKeyWrongLength(t *testing.T) {
	t.Setenv("SECRET_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	_, err := config.Load()

	assert.ErrorContains(t, err, "32 bytes")
}

func TestLoad_SecretKeyNotBase64(t *testing.T) {
	t.Setenv("SECRET_KEY", "not base64 at all!!!")

	_, err := config.Load()

	assert.ErrorContains(t, err, "base64")
}

func TestLoad_AuthRequiresIssuerAudienceJWKS(t *testing.T) {
	t.Setenv("SECRET_KEY", validSecret())
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("AUTH_ISSUER", "https://issuer.example.com")

	_, err := config.Load()
	assert.ErrorContains(t, err, "AUTH_AUDIENCE")

	t.Setenv("AUTH_AUDIENCE", "chat-api")
	_, err = config.Load()
	assert.ErrorContains(t, err, "AUTH_JWKS_URL")

	t.Setenv("AUTH_JWKS_URL", "https://issuer.example.com/jwks")
	_, err = config.Load()
	assert.NoError(t, err)
}

func TestLoad_CompatProviderRequiresBaseURL(t *testing.T) {
	t.Setenv("SECRET_KEY", validSecret())
	t.Setenv("COMPAT_PROVIDER_NAME", "groq")

	_, err := config.Load()
	assert.ErrorContains(t, err, "COMPAT_PROVIDER_BASE_URL")

	t.Setenv("COMPAT_PROVIDER_BASE_URL", "https://api.groq.com/openai")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.CompatName)
}
