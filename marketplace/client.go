// Package marketplace implements the HTTP client for the marketplace
// stock API. Every failure is classified into a typed error so callers
// can tell transient faults from terminal ones.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/ratelimit"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 8 << 20 // 8 MiB

	stocksPath = "/v1/stocks"
	itemsPath  = "/v1/items"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gate is the pre-flight hook invoked before every outbound request.
// The rate limiter implements it; a nil gate means no limiting.
type Gate interface {
	Reserve(ctx context.Context) error
}

// ThrottlePolicy wraps each request with provider-learned throttle
// state: BeforeCall rejects while a backoff window is open, AfterCall
// folds the response's status and rate-limit headers back into it.
// ratelimit.AdaptivePolicy implements it; nil skips both hooks.
type ThrottlePolicy interface {
	BeforeCall(ctx context.Context, key core.RateLimitKey) error
	AfterCall(ctx context.Context, key core.RateLimitKey, res ratelimit.ResponseMeta) error
}

type Config struct {
	BaseURL        string
	APIKey         string
	SourceTag      string
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	Gate           Gate
	Throttle       ThrottlePolicy
	Metrics        *Metrics
	Logger         core.Logger
	Now            func() time.Time
}

// Client talks to the marketplace stock API.
type Client struct {
	baseURL        string
	apiKey         string
	sourceTag      string
	httpClient     HTTPDoer
	requestTimeout time.Duration
	gate           Gate
	throttle       ThrottlePolicy
	metrics        *Metrics
	logger         core.Logger
	now            func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("marketplace: parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("marketplace: base url must include a host")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	now := cfg.Now
	if now == nil {
		now = core.SystemClock
	}

	return &Client{
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		sourceTag:      strings.TrimSpace(cfg.SourceTag),
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		gate:           cfg.Gate,
		throttle:       cfg.Throttle,
		metrics:        cfg.Metrics,
		logger:         glog.Ensure(cfg.Logger),
		now:            now,
	}, nil
}

type stockItemPayload struct {
	ExternalID    any     `json:"external_id"`
	WarehouseName string  `json:"warehouse_name"`
	Available     int64   `json:"available"`
	Reserved      int64   `json:"reserved"`
	Total         int64   `json:"total"`
	Price         float64 `json:"price"`
	ProductName   string  `json:"product_name"`
	ObservedAt    string  `json:"observed_at"`
}

type stocksPagePayload struct {
	Items   []stockItemPayload `json:"items"`
	HasMore bool               `json:"has_more"`
}

type itemPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brand string `json:"brand"`
}

// FetchPage pulls one offset/limit slice of stock records. Filters are
// forwarded as query parameters verbatim.
func (c *Client) FetchPage(ctx context.Context, offset int, limit int, filters map[string]string) (core.Page, error) {
	if limit <= 0 {
		return core.Page{}, ErrBadResponse{Err: fmt.Errorf("marketplace: page limit must be positive")}
	}

	values := url.Values{}
	values.Set("offset", strconv.Itoa(offset))
	values.Set("limit", strconv.Itoa(limit))
	for key, value := range filters {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values.Set(key, value)
	}

	var payload stocksPagePayload
	if err := c.getJSON(ctx, "fetch_page", stocksPath+"?"+values.Encode(), &payload); err != nil {
		return core.Page{}, err
	}

	page := core.Page{
		Records: make([]core.SourceRecord, 0, len(payload.Items)),
		HasMore: payload.HasMore,
	}
	now := c.now().UTC()
	for _, item := range payload.Items {
		observedAt := now
		if trimmed := strings.TrimSpace(item.ObservedAt); trimmed != "" {
			parsed, err := time.Parse(time.RFC3339, trimmed)
			if err != nil {
				return core.Page{}, ErrBadResponse{
					Err: fmt.Errorf("marketplace: parse observed_at %q: %w", trimmed, err),
				}
			}
			observedAt = parsed.UTC()
		}
		page.Records = append(page.Records, core.SourceRecord{
			ExternalID:       item.ExternalID,
			WarehouseNameRaw: item.WarehouseName,
			AvailableQty:     item.Available,
			ReservedQty:      item.Reserved,
			TotalQty:         item.Total,
			Price:            item.Price,
			ProductName:      item.ProductName,
			SourceTag:        c.sourceTag,
			ObservedAt:       observedAt,
		})
	}
	c.metrics.AddRecords(len(page.Records))
	return page, nil
}

// FetchItem resolves the catalog detail for one canonical id.
func (c *Client) FetchItem(ctx context.Context, canonicalID string) (core.ItemDetail, error) {
	canonicalID = strings.TrimSpace(canonicalID)
	if canonicalID == "" {
		return core.ItemDetail{}, ErrBadResponse{Err: fmt.Errorf("marketplace: canonical id is required")}
	}

	var payload itemPayload
	if err := c.getJSON(ctx, "fetch_item", itemsPath+"/"+url.PathEscape(canonicalID), &payload); err != nil {
		return core.ItemDetail{}, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return core.ItemDetail{}, ErrBadResponse{
			Err: fmt.Errorf("marketplace: item response missing id"),
		}
	}
	return core.ItemDetail{
		CanonicalID: strings.TrimSpace(payload.ID),
		DisplayName: strings.TrimSpace(payload.Name),
		Brand:       strings.TrimSpace(payload.Brand),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, operation string, path string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.gate != nil {
		if err := c.gate.Reserve(ctx); err != nil {
			return err
		}
	}

	throttleKey := core.RateLimitKey{ProviderID: c.sourceTag, BucketKey: operation}
	if c.throttle != nil {
		if err := c.throttle.BeforeCall(ctx, throttleKey); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				classified := ErrRateLimited{Err: err}
				c.metrics.IncError(classified)
				return classified
			}
			return err
		}
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return ErrBadResponse{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.metrics.IncRequest(operation)
	start := c.now()
	res, err := c.httpClient.Do(req)
	c.metrics.ObserveDuration(c.now().Sub(start))
	if err != nil {
		classified := classifyTransportError(err)
		c.metrics.IncError(classified)
		return classified
	}
	defer res.Body.Close()

	c.recordThrottleSignals(ctx, throttleKey, res)

	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if readErr != nil {
		classified := classifyTransportError(readErr)
		c.metrics.IncError(classified)
		return classified
	}
	if int64(len(body)) > maxResponseBytes {
		classified := ErrBadResponse{
			Err: fmt.Errorf("marketplace: response exceeds %d bytes", maxResponseBytes),
		}
		c.metrics.IncError(classified)
		return classified
	}

	if res.StatusCode != http.StatusOK {
		classified := classifyStatus(res.StatusCode)
		c.metrics.IncError(classified)
		c.logger.Warn("marketplace request failed",
			"operation", operation,
			"status", res.StatusCode,
			"error_type", errorTypeLabel(classified),
		)
		return classified
	}

	if err := json.Unmarshal(body, out); err != nil {
		classified := ErrBadResponse{Err: fmt.Errorf("marketplace: decode response: %w", err)}
		c.metrics.IncError(classified)
		return classified
	}
	return nil
}

// recordThrottleSignals feeds the response back to the adaptive policy.
// A failed state write must not fail the request that produced it.
func (c *Client) recordThrottleSignals(ctx context.Context, key core.RateLimitKey, res *http.Response) {
	if c.throttle == nil {
		return
	}
	meta := ratelimit.ResponseMeta{
		StatusCode: res.StatusCode,
		Headers:    flattenHeaders(res.Header),
	}
	if err := c.throttle.AfterCall(ctx, key, meta); err != nil {
		c.logger.Warn("throttle state update failed",
			"provider", key.ProviderID,
			"bucket", key.BucketKey,
			"error", err,
		)
	}
}

func flattenHeaders(header http.Header) map[string]string {
	if len(header) == 0 {
		return nil
	}
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		out[key] = values[0]
	}
	return out
}

func classifyStatus(status int) error {
	base := fmt.Errorf("marketplace: unexpected status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited{Err: base}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth{Err: base}
	case status == http.StatusNotFound:
		return ErrNotFound{Err: base}
	case status >= 500:
		return ErrServer{Err: base}
	}
	return ErrBadResponse{Err: base}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	return ErrConnection{Err: err}
}

var (
	_ core.MarketplaceClient = (*Client)(nil)
	_ core.MetricsRecorder   = (*Recorder)(nil)
)
