package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("PORT", "4000")
	t.Setenv("STRIPE_MODE", "")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")

	cfg := Load()
	assert.Equal(t, ":4000", cfg.ServerAddr)
	assert.Equal(t, ModeTest, cfg.StripeMode)
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
}

func TestStripeKeysFallBackPerField(t *testing.T) {
	cfg := Config{
		StripeLive:     StripeKeys{SecretKey: "sk_live_1"},
		StripeFallback: StripeKeys{SecretKey: "sk_any", WebhookSecret: "whsec_any", PublishableKey: "pk_any"},
	}

	live := cfg.Stripe(ModeLive)
	assert.Equal(t, "sk_live_1", live.SecretKey)
	assert.Equal(t, "whsec_any", live.WebhookSecret)

	test := cfg.Stripe(ModeTest)
	assert.Equal(t, "sk_any", test.SecretKey)
	assert.Equal(t, "pk_any", test.PublishableKey)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		StripeMode:  ModeTest,
		StripeTest:  StripeKeys{SecretKey: "sk_test_1", WebhookSecret: "whsec_1"},
		StoreDriver: StoreMemory,
	}
	require.NoError(t, cfg.Validate())

	cfg.StripeMode = "staging"
	cfg.StoreDriver = "redis"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_MODE")
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}
