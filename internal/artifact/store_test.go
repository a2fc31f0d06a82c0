package artifact

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	s, err := NewStore(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio-secret",
		Bucket:    "quotes",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return s
}

func TestQuoteKey(t *testing.T) {
	assert.Equal(t, "quotes/Q-2024-000042.pdf", QuoteKey("Q-2024-000042"))
	assert.Equal(t, "quotes/a-b.pdf", QuoteKey("a/b"))
}

func TestSignedURL(t *testing.T) {
	s := testStore(t)

	link, err := s.SignedURL(context.Background(), QuoteKey("Q-2024-000042"), time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/quotes/quotes/Q-2024-000042.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestSignedURL_DefaultTTL(t *testing.T) {
	s := testStore(t)

	link, err := s.SignedURL(context.Background(), "quotes/x.pdf", 0)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "604800", u.Query().Get("X-Amz-Expires"))
}

func TestNewStore_InvalidEndpoint(t *testing.T) {
	_, err := NewStore(Config{Endpoint: "http://bad endpoint"})
	assert.Error(t, err)
}
