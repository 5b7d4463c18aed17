// Package telegramapi is a small client for the Telegram Bot HTTP API,
// covering long polling, text replies with inline keyboards, and callback
// acknowledgements.
package telegramapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	defaultPollTimeout = 30 * time.Second
	maxMessageRunes    = 3500
)

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	// SendRate limits outbound calls per second; zero disables limiting.
	SendRate  float64
	SendBurst int
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	var limiter *rate.Limiter
	if opts.SendRate > 0 {
		burst := opts.SendBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.SendRate), burst)
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   strings.TrimSpace(opts.Token),
		limiter: limiter,
	}
}

type getMeResponse struct {
	okResponse
	Result User `json:"result"`
}

type getUpdatesResponse struct {
	okResponse
	Result []Update `json:"result"`
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var out getMeResponse
	if err := c.call(ctx, "getMe", nil, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// GetUpdates long-polls for messages and callback queries after offset and
// returns the offset to use for the next call.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var out getUpdatesResponse
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        secs,
		AllowedUpdates: []string{"message", "callback_query"},
	}
	if err := c.call(reqCtx, "getUpdates", req, &out); err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

type SendOptions struct {
	ReplyToMessageID int64
	Keyboard         *InlineKeyboardMarkup
}

// SendMessage sends plain text. Long texts are split into chunks; the reply
// target goes on the first chunk and the keyboard on the last.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) error {
	chunks := splitMessage(text, maxMessageRunes)
	for i, chunk := range chunks {
		req := sendMessageRequest{
			ChatID:                chatID,
			Text:                  chunk,
			DisableWebPagePreview: true,
		}
		if i == 0 {
			req.ReplyToMessageID = opts.ReplyToMessageID
		}
		if i == len(chunks)-1 {
			req.ReplyMarkup = opts.Keyboard
		}
		if err := c.wait(ctx); err != nil {
			return err
		}
		if err := c.call(ctx, "sendMessage", req, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string, text string) error {
	callbackID = strings.TrimSpace(callbackID)
	if callbackID == "" {
		return nil
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{CallbackQueryID: callbackID, Text: text}, nil)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	if c.token == "" {
		return fmt.Errorf("telegram %s: missing bot token", method)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpMethod := http.MethodGet
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		httpMethod = http.MethodPost
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var status okResponse
	_ = json.Unmarshal(raw, &status)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !status.OK {
		reqErr := &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   status.ErrorCode,
			Description: status.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
		if status.Parameters != nil && status.Parameters.RetryAfter > 0 {
			reqErr.RetryAfter = time.Duration(status.Parameters.RetryAfter) * time.Second
		}
		return reqErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	return nil
}

type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
	RetryAfter  time.Duration
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = strings.TrimSpace(e.Body)
	}
	if desc == "" {
		return fmt.Sprintf("telegram %s: http %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, desc)
}

// IsPollTimeoutError reports errors that only mean the long poll ran out.
func IsPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}

func splitMessage(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{"(empty)"}
	}
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := len(runes)
		if n > max {
			n = max
			if cut := lastNewline(runes[:max]); cut > max/2 {
				n = cut + 1
			}
		}
		chunk := strings.TrimSpace(string(runes[:n]))
		if chunk != "" {
			out = append(out, chunk)
		}
		runes = runes[n:]
	}
	return out
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
