package shakesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/shakesearch/internal/domain"
)

const (
	searchPath     = "/search"
	maxBodyBytes   = 8 << 20
	maxErrorBytes  = 512
	defaultAgent   = "shakesearch-go"
	offsetParam    = "offset"
	operationFetch = "fetch"
)

// Page is one batch of results; HasMore reports whether another page exists.
type Page = domain.Page

// Client is the shakesearch HTTP API client. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	obs       *observer
}

// New creates a Client for the server at baseURL (scheme and host, optional path prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout:   defaultTimeout,
		userAgent: defaultAgent,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("shakesearch: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("shakesearch: base url must be http or https, got %q", baseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("shakesearch: base url has no host: %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:      base,
		http:      hc,
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// Fetch requests the page of results for query starting at offset.
// Every query field is sent as a URL parameter; offset is sent when non-zero.
func (c *Client) Fetch(ctx context.Context, query url.Values, offset int) (page Page, err error) {
	start := time.Now()
	defer func() { c.obs.observe(operationFetch, offset, start, page, err) }()

	if offset < 0 {
		return Page{}, fmt.Errorf("%w: %d", domain.ErrInvalidOffset, offset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(query, offset), http.NoBody)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	items, err := decodeItems(body)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Items:   items,
		HasMore: domain.HasMoreFromHeader(resp.Header.Get(domain.HasMoreHeader)),
	}, nil
}

func (c *Client) searchURL(query url.Values, offset int) string {
	params := make(url.Values, len(query)+1)
	for k, vs := range query {
		if k == offsetParam {
			continue
		}
		params[k] = append([]string(nil), vs...)
	}
	if offset > 0 {
		params.Set(offsetParam, strconv.Itoa(offset))
	}

	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + searchPath
	u.RawQuery = params.Encode()
	return u.String()
}

// decodeItems accepts only a JSON array of strings.
func decodeItems(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: body is not a JSON array", ErrMalformedResponse)
	}

	items := []string{}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: array element is %s, want string", ErrMalformedResponse, typeErr.Value)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return items, nil
}

// errorMessage extracts "message" from a JSON error body, or returns the
// trimmed text body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBytes {
		msg = msg[:maxErrorBytes]
	}
	return msg
}
