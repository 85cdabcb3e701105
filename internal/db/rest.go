package db

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	restPathPrefix = "/rest/v1"

	// maxResponseBytes bounds how much of an upstream body is read
	maxResponseBytes = 32 << 20
)

// UpstreamError is a non-2xx answer from the REST interface
type UpstreamError struct {
	Status  int
	Code    string
	Message string
}

// Error formats the upstream status, code and message
func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// RESTClient talks to the auto-generated REST interface of a hosted database service
type RESTClient struct {
	baseURL    string
	apiKey     string
	schemaName string
	httpClient *http.Client
}

// NewRESTClient creates a new REST client. baseURL is the project URL, with or
// without the /rest/v1 suffix. A nil httpClient uses a client with a 30s timeout.
func NewRESTClient(baseURL, apiKey, schemaName string, httpClient *http.Client) (*RESTClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REST base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("REST base URL must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("REST base URL has no host")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	base := strings.TrimSuffix(strings.TrimRight(baseURL, "/"), restPathPrefix)

	return &RESTClient{
		baseURL:    base + restPathPrefix,
		apiKey:     apiKey,
		schemaName: schemaName,
		httpClient: httpClient,
	}, nil
}

// Ping checks that the REST interface answers
func (c *RESTClient) Ping(ctx context.Context) error {
	_, _, err := c.get(ctx, "/", nil, nil)
	return err
}

// FetchOpenAPI returns the raw OpenAPI description of the exposed schema
func (c *RESTClient) FetchOpenAPI(ctx context.Context) ([]byte, error) {
	body, _, err := c.get(ctx, "/", nil, http.Header{"Accept": []string{"application/openapi+json, application/json"}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI description: %w", err)
	}
	return body, nil
}

// get performs a GET request relative to the REST base URL
func (c *RESTClient) get(ctx context.Context, path string, query url.Values, headers http.Header) ([]byte, http.Header, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.schemaName != "" && c.schemaName != "public" {
		req.Header.Set("Accept-Profile", c.schemaName)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, parseUpstreamError(resp.StatusCode, body)
	}

	return body, resp.Header, nil
}

// parseUpstreamError reads the {"code","message"} error body the REST layer returns
func parseUpstreamError(status int, body []byte) *UpstreamError {
	upstream := &UpstreamError{Status: status}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		upstream.Code = parsed.Get("code").String()
		upstream.Message = parsed.Get("message").String()
	}
	if upstream.Message == "" {
		upstream.Message = strings.TrimSpace(string(body))
	}
	if upstream.Message == "" {
		upstream.Message = http.StatusText(status)
	}
	return upstream
}
