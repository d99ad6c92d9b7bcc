package poloniex

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arbi-bot/internal/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string, rateLimit int64) *Client {
	return NewClient(ClientConfig{
		BaseURL:   serverURL,
		APIKey:    "test-key",
		APISecret: "test-secret",
		RateLimit: rateLimit,
	})
}

func TestSignKnownValues(t *testing.T) {
	c := newTestClient("http://localhost", 10)

	// fixed inputs with signatures computed independently for the
	// "test-secret" key; any change to the signing string breaks these
	tests := []struct {
		name     string
		method   string
		endpoint string
		payload  string
		want     string
	}{
		{
			name:     "get with query",
			method:   http.MethodGet,
			endpoint: "/orders",
			payload:  "limit=20&signTimestamp=1700000000000",
			want:     "pF4BjzvbliXjJ/QPSxDDR96FVuzZIokhqMkIR6vkkJg=",
		},
		{
			name:     "post with body",
			method:   http.MethodPost,
			endpoint: "/orders",
			payload:  `{"symbol":"BTC_USDT"}`,
			want:     "NKHCJSrNqGVmkC2muWPRyJBvf8K41+xUIzNl60HTAm0=",
		},
		{
			name:     "empty payload",
			method:   http.MethodGet,
			endpoint: "/accounts/balances",
			payload:  "",
			want:     "7vrId03Sh/WM6JRjgaVvkwQIs0yAE1ECa8MFkfkHHb4=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.sign(tt.method, tt.endpoint, 1700000000000, tt.payload)
			assert.Equal(t, tt.want, got)

			raw, err := base64.StdEncoding.DecodeString(got)
			require.NoError(t, err)
			assert.Len(t, raw, 32, "HMAC-SHA256 digest should be 32 bytes")
		})
	}
}

func TestSignVariesWithInput(t *testing.T) {
	c := newTestClient("http://localhost", 10)

	base := c.sign(http.MethodGet, "/orders", 1700000000000, "limit=20&signTimestamp=1700000000000")

	assert.NotEqual(t, base, c.sign(http.MethodDelete, "/orders", 1700000000000, "limit=20&signTimestamp=1700000000000"))
	assert.NotEqual(t, base, c.sign(http.MethodGet, "/trades", 1700000000000, "limit=20&signTimestamp=1700000000000"))
	assert.NotEqual(t, base, c.sign(http.MethodGet, "/orders", 1700000000000, "limit=10&signTimestamp=1700000000000"))

	other := NewClient(ClientConfig{BaseURL: "http://localhost", APISecret: "other-secret"})
	assert.NotEqual(t, base, other.sign(http.MethodGet, "/orders", 1700000000000, "limit=20&signTimestamp=1700000000000"))
}

func TestSignEmptyPayload(t *testing.T) {
	c := newTestClient("http://localhost", 10)

	sig := c.sign(http.MethodGet, "/accounts/balances", 1700000000000, "")
	withTimestamp := c.sign(http.MethodGet, "/accounts/balances", 1700000000000, "signTimestamp=1700000000000")
	assert.Equal(t, withTimestamp, sig, "empty payload should sign as signTimestamp only")
}

func TestEncodeQuerySorted(t *testing.T) {
	query := encodeQuery(map[string]string{
		"symbol":        "BTC_USDT",
		"limit":         "20",
		"signTimestamp": "1700000000000",
	})
	assert.Equal(t, "limit=20&signTimestamp=1700000000000&symbol=BTC_USDT", query)
}

func TestRequestSignedHeaders(t *testing.T) {
	var captured http.Header
	var capturedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		capturedQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 10)
	_, err := c.Request(context.Background(), http.MethodGet, "/orders", map[string]string{"limit": "20"}, true)
	require.NoError(t, err)

	assert.Equal(t, "test-key", captured.Get("key"))
	assert.Equal(t, "hmacSHA256", captured.Get("signatureMethod"))
	assert.NotEmpty(t, captured.Get("signature"))
	assert.NotEmpty(t, captured.Get("signTimestamp"))
	assert.Equal(t, "5000", captured.Get("recvWindow"))
	assert.Contains(t, capturedQuery, "signTimestamp=")
	assert.Contains(t, capturedQuery, "limit=20")
}

func TestRequestUnsignedHasNoAuthHeaders(t *testing.T) {
	var captured http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 10)
	_, err := c.Request(context.Background(), http.MethodGet, "/markets/BTC_USDT/orderBook", nil, false)
	require.NoError(t, err)

	assert.Empty(t, captured.Get("key"))
	assert.Empty(t, captured.Get("signature"))
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	const limit = 3
	c := newTestClient(server.URL, limit)

	for i := 0; i < limit; i++ {
		_, err := c.Request(context.Background(), http.MethodGet, "/markets", nil, false)
		require.NoError(t, err)
	}

	_, err := c.Request(context.Background(), http.MethodGet, "/markets", nil, false)
	var rateErr *exchange.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, int64(limit), rateErr.Current)
	assert.Equal(t, int64(limit), rateErr.Limit)
}

func TestRateLimitWindowResets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		BaseURL:    server.URL,
		RateLimit:  1,
		RateWindow: 50 * time.Millisecond,
	})

	_, err := c.Request(context.Background(), http.MethodGet, "/markets", nil, false)
	require.NoError(t, err)

	_, err = c.Request(context.Background(), http.MethodGet, "/markets", nil, false)
	var rateErr *exchange.RateLimitError
	require.ErrorAs(t, err, &rateErr)

	time.Sleep(60 * time.Millisecond)

	_, err = c.Request(context.Background(), http.MethodGet, "/markets", nil, false)
	assert.NoError(t, err)
}

func TestRequestParsesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21603,"message":"Insufficient balance"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 10)
	_, err := c.Request(context.Background(), http.MethodPost, "/orders", map[string]string{"symbol": "BTC_USDT"}, true)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 21603, apiErr.Code)
	assert.Equal(t, "Insufficient balance", apiErr.Message)
}

func TestRequestMalformedErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`gateway timeout`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 10)
	_, err := c.Request(context.Background(), http.MethodGet, "/markets", nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestRequestConnectionRefused(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", 10)
	_, err := c.Request(context.Background(), http.MethodGet, "/markets", nil, false)
	require.Error(t, err)

	var apiErr *apiError
	assert.False(t, errors.As(err, &apiErr), "transport failures should not classify as API errors")
}

func TestGetServerTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/timestamp", r.URL.Path)
		w.Write([]byte(`{"serverTime":1700000000000}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 10)
	serverTime, err := c.GetServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000), serverTime)
}
