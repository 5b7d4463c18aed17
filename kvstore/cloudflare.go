package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"

type CloudflareOptions struct {
	HTTPClient  *http.Client
	BaseURL     string
	AccountID   string
	NamespaceID string
	APIToken    string
}

// Cloudflare talks to the Workers KV REST API.
type Cloudflare struct {
	http      *http.Client
	valuesURL string
	token     string
}

type cloudflareAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cloudflareResponse struct {
	Success bool                 `json:"success"`
	Errors  []cloudflareAPIError `json:"errors,omitempty"`
}

type CloudflareRequestError struct {
	Method     string
	StatusCode int
	Messages   []string
	Body       string
}

func (e *CloudflareRequestError) Error() string {
	if e == nil {
		return "cloudflare kv request failed"
	}
	if len(e.Messages) > 0 {
		return fmt.Sprintf("cloudflare kv %s http %d: %s", e.Method, e.StatusCode, strings.Join(e.Messages, "; "))
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return fmt.Sprintf("cloudflare kv %s http %d: %s", e.Method, e.StatusCode, body)
	}
	return fmt.Sprintf("cloudflare kv %s http %d", e.Method, e.StatusCode)
}

func NewCloudflare(opts CloudflareOptions) (*Cloudflare, error) {
	accountID := strings.TrimSpace(opts.AccountID)
	namespaceID := strings.TrimSpace(opts.NamespaceID)
	token := strings.TrimSpace(opts.APIToken)
	if accountID == "" || namespaceID == "" || token == "" {
		return nil, fmt.Errorf("missing cloudflare kv configuration (account_id, namespace_id and api_token are required)")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultCloudflareBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Cloudflare{
		http: httpClient,
		valuesURL: fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s/values",
			baseURL, url.PathEscape(accountID), url.PathEscape(namespaceID)),
		token: token,
	}, nil
}

func (c *Cloudflare) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newCloudflareRequestError(http.MethodGet, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Cloudflare) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPut, key, bytes.NewReader(value))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", sniffContentType(value))
	return c.doWrite(req)
}

func (c *Cloudflare) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}
	return c.doWrite(req)
}

func (c *Cloudflare) doWrite(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newCloudflareRequestError(req.Method, resp.StatusCode, raw)
	}
	var out cloudflareResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// Some proxies strip the envelope; a 2xx without a body is still a write.
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		return fmt.Errorf("cloudflare kv %s: decode response: %w", req.Method, err)
	}
	if !out.Success {
		return newCloudflareRequestError(req.Method, resp.StatusCode, raw)
	}
	return nil
}

func (c *Cloudflare) newRequest(ctx context.Context, method, key string, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.valuesURL+"/"+url.PathEscape(key), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func newCloudflareRequestError(method string, status int, raw []byte) error {
	out := &CloudflareRequestError{
		Method:     method,
		StatusCode: status,
		Body:       strings.TrimSpace(string(raw)),
	}
	var env cloudflareResponse
	if err := json.Unmarshal(raw, &env); err == nil {
		for _, e := range env.Errors {
			msg := strings.TrimSpace(e.Message)
			if msg == "" {
				continue
			}
			out.Messages = append(out.Messages, fmt.Sprintf("%d %s", e.Code, msg))
		}
	}
	return out
}

func sniffContentType(value []byte) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return "application/json"
	}
	return "text/plain"
}
