package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ORDER_NUMBER_PREFIX", "QUOTE_LINK_TTL", "NOTIFY_ATTEMPTS", "LEGAL_TERMS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "Q", cfg.Business.OrderNumberPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.LinkTTL)
	assert.Equal(t, 3, cfg.Business.NotifyAttempts)
	assert.Nil(t, cfg.Business.LegalTerms)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ORDER_NUMBER_PREFIX", "OF")
	t.Setenv("DOCUMENT_TIMEOUT", "45")
	t.Setenv("NOTIFY_TIMEOUT", "1m30s")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LEGAL_TERMS", "Prices exclude VAT.| |Valid 30 days.")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, "OF", cfg.Business.OrderNumberPrefix)
	assert.Equal(t, 45*time.Second, cfg.Business.DocumentTimeout)
	assert.Equal(t, 90*time.Second, cfg.Business.NotifyTimeout)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"Prices exclude VAT.", "Valid 30 days."}, cfg.Business.LegalTerms)
	assert.Equal(t, 0, cfg.Redis.DB)
}
