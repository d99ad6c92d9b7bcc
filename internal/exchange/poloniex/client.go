package poloniex

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arbi-bot/internal/exchange"
)

const (
	// baseHTTPURL is the production Poloniex HTTP API endpoint
	baseHTTPURL = "https://api.poloniex.com"

	// defaultRateLimit is the default number of requests per window
	defaultRateLimit = 200
	// defaultRateWindow is the length of the rate-limit counting window
	defaultRateWindow = time.Minute

	// defaultRecvWindow is the receive window for signed requests in ms
	defaultRecvWindow = 5000

	// requestTimeout bounds every HTTP request
	requestTimeout = 10 * time.Second
)

// apiError is a Poloniex error response. It never crosses the adapter
// boundary; mapClientError translates it into the exchange taxonomy.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("poloniex api error %d: %s", e.Code, e.Message)
}

// ClientConfig holds the settings for creating a Client
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	RateLimit  int64
	RateWindow time.Duration
	RecvWindow int64
}

// Client is an HTTP client for the Poloniex Spot API. It handles request
// signing, rate limiting and error classification.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client

	rateMu       sync.Mutex
	windowStart  time.Time
	requestCount int64
}

// NewClient creates a Poloniex API client
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseHTTPURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = defaultRecvWindow
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		windowStart: time.Now(),
	}
}

// sign computes the HMAC-SHA256 signature for a request.
//
// Signing string:
//
//	GET/DELETE: METHOD\n/endpoint\nsignTimestamp=ts&param=value (sorted by key)
//	POST:       METHOD\n/endpoint\nrequestBody=<json>&signTimestamp=ts
func (c *Client) sign(method, endpoint string, timestamp int64, payload string) string {
	var signPayload string
	switch {
	case payload == "":
		signPayload = fmt.Sprintf("%s\n%s\nsignTimestamp=%d", method, endpoint, timestamp)
	case method == http.MethodGet || method == http.MethodDelete:
		signPayload = fmt.Sprintf("%s\n%s\n%s", method, endpoint, payload)
	default:
		signPayload = fmt.Sprintf("%s\n%s\nrequestBody=%s&signTimestamp=%d", method, endpoint, payload, timestamp)
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(signPayload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// encodeQuery sorts params by key and joins them as key=value&key=value
func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(parts, "&")
}

// Request sends an HTTP request to the Poloniex API. When signed is true
// the request carries authentication headers. The raw response body is
// returned for the caller to decode.
func (c *Client) Request(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	if params == nil {
		params = map[string]string{}
	}
	timestamp := time.Now().UnixMilli()

	var (
		reqURL  string
		reqBody io.Reader
		payload string
	)

	if method == http.MethodGet || method == http.MethodDelete {
		if signed {
			params["signTimestamp"] = strconv.FormatInt(timestamp, 10)
		}
		payload = encodeQuery(params)
		reqURL = c.cfg.BaseURL + endpoint
		if payload != "" {
			reqURL += "?" + payload
		}
	} else {
		body, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = string(body)
		reqURL = c.cfg.BaseURL + endpoint
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		signature := c.sign(method, endpoint, timestamp, payload)
		req.Header.Set("key", c.cfg.APIKey)
		req.Header.Set("signTimestamp", strconv.FormatInt(timestamp, 10))
		req.Header.Set("signature", signature)
		req.Header.Set("signatureMethod", "hmacSHA256")
		req.Header.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	c.incrementRequestCount()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	return body, nil
}

// checkRateLimit verifies the request budget for the current window.
// The counter resets when the window has elapsed; requests over the limit
// are rejected immediately, never queued.
func (c *Client) checkRateLimit() error {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	if time.Since(c.windowStart) >= c.cfg.RateWindow {
		c.requestCount = 0
		c.windowStart = time.Now()
	}

	if c.requestCount >= c.cfg.RateLimit {
		return &exchange.RateLimitError{Current: c.requestCount, Limit: c.cfg.RateLimit}
	}

	return nil
}

func (c *Client) incrementRequestCount() {
	c.rateMu.Lock()
	c.requestCount++
	c.rateMu.Unlock()
}

// parseErrorResponse classifies a non-2xx response. Poloniex errors carry a
// {code, message} JSON body; anything else falls back to the raw body text
// with the HTTP status as the code.
func parseErrorResponse(status int, body []byte) error {
	var resp struct {
		Code    *int    `json:"code"`
		Message *string `json:"message"`
	}

	apiErr := &apiError{Code: status, Message: string(body)}
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Code != nil {
			apiErr.Code = *resp.Code
		}
		if resp.Message != nil {
			apiErr.Message = *resp.Message
		}
	}

	log.Printf("[Poloniex] API error %d: %s", apiErr.Code, apiErr.Message)
	return apiErr
}

// GetServerTime fetches the current server time
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	body, err := c.Request(ctx, http.MethodGet, "/timestamp", nil, false)
	if err != nil {
		return time.Time{}, err
	}

	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.ServerTime != 0 {
		return time.UnixMilli(resp.ServerTime), nil
	}

	// Some deployments return a bare millisecond timestamp
	var ms int64
	if err := json.Unmarshal(body, &ms); err != nil {
		return time.Time{}, fmt.Errorf("parse server time: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// Ping checks connectivity by fetching the server time
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetServerTime(ctx)
	return err
}

// RequestCount returns the number of requests made in the current window
func (c *Client) RequestCount() int64 {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	return c.requestCount
}

// RateLimit returns the maximum requests per window
func (c *Client) RateLimit() int64 {
	return c.cfg.RateLimit
}
