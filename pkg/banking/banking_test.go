package banking

import (
	"QRScanner/pkg/redis"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newCache(t *testing.T) (redis.IRedis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redis.NewWithClient(client), mr
}

func bankingServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Query().Get("text") == "unknown" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bankCode":"014","accountNo":"1234567890","accountName":"PT Contoh","amount":150000,"memo":"`+r.URL.Query().Get("text")+`"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup_NotConfigured(t *testing.T) {
	c := New(Config{}, nil, quietLogger())

	assert.False(t, c.Enabled())
	_, err := c.Lookup(context.Background(), "abc")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestLookup_FetchesAndCaches(t *testing.T) {
	var hits int32
	srv := bankingServer(t, &hits)
	cache, mr := newCache(t)
	c := New(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, cache, quietLogger())

	info, err := c.Lookup(context.Background(), "QR PAYLOAD")
	require.NoError(t, err)
	assert.Equal(t, "014", info.BankCode)
	assert.Equal(t, "1234567890", info.AccountNo)
	assert.Equal(t, "PT Contoh", info.AccountName)
	assert.Equal(t, 150000.0, info.Amount)
	assert.Equal(t, "QR PAYLOAD", info.Memo)
	assert.True(t, mr.Exists(cacheKey("QR PAYLOAD")))

	again, err := c.Lookup(context.Background(), "QR PAYLOAD")
	require.NoError(t, err)
	assert.Equal(t, info, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestLookup_CacheExpires(t *testing.T) {
	var hits int32
	srv := bankingServer(t, &hits)
	cache, mr := newCache(t)
	c := New(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, cache, quietLogger())

	_, err := c.Lookup(context.Background(), "x")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.Lookup(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestLookup_UpstreamError(t *testing.T) {
	var hits int32
	srv := bankingServer(t, &hits)
	cache, mr := newCache(t)
	c := New(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, cache, quietLogger())

	_, err := c.Lookup(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrLookupFailed)
	assert.False(t, mr.Exists(cacheKey("unknown")))
}

func TestLookup_WithoutCache(t *testing.T) {
	var hits int32
	srv := bankingServer(t, &hits)
	c := New(Config{BaseURL: srv.URL}, nil, quietLogger())

	_, err := c.Lookup(context.Background(), "a")
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCacheKey_IsStable(t *testing.T) {
	assert.Equal(t, cacheKey("abc"), cacheKey("abc"))
	assert.NotEqual(t, cacheKey("abc"), cacheKey("abd"))
	assert.Len(t, cacheKey("abc"), len(cachePrefix)+64)
}
