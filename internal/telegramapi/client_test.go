package telegramapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	t.Parallel()

	var got getUpdatesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/botTOKEN/getUpdates" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":7,"message":{"message_id":1,"chat":{"id":5,"type":"private"},"from":{"id":5},"photo":[{"file_id":"s"},{"file_id":"l"}]}},
			{"update_id":9,"callback_query":{"id":"cb1","from":{"id":5},"data":"cat:0","message":{"message_id":2,"chat":{"id":5}}}}
		]}`))
	}))
	defer srv.Close()

	c := New(Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Token: "TOKEN"})
	updates, next, err := c.GetUpdates(context.Background(), 3, 2*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if next != 10 {
		t.Fatalf("GetUpdates() next = %d, want 10", next)
	}
	if len(updates) != 2 {
		t.Fatalf("GetUpdates() len = %d, want 2", len(updates))
	}
	if p := updates[0].Message.Photo; len(p) != 2 || p[1].FileID != "l" {
		t.Fatalf("photo sizes = %+v", p)
	}
	if cb := updates[1].CallbackQuery; cb == nil || cb.Data != "cat:0" || cb.Message.Chat.ID != 5 {
		t.Fatalf("callback = %+v", cb)
	}
	if got.Offset != 3 || got.Timeout != 2 {
		t.Fatalf("request = %+v, want offset 3 timeout 2", got)
	}
	if len(got.AllowedUpdates) != 2 || got.AllowedUpdates[1] != "callback_query" {
		t.Fatalf("allowed_updates = %v", got.AllowedUpdates)
	}
}

func TestSendMessageWithKeyboard(t *testing.T) {
	t.Parallel()

	var reqs []sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req sendMessageRequest
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		reqs = append(reqs, req)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := New(Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Token: "TOKEN", SendRate: 100, SendBurst: 2})
	kb := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "travel", CallbackData: "cat:0"}}}}
	long := strings.Repeat("x", maxMessageRunes) + "\n" + "tail"
	if err := c.SendMessage(context.Background(), 5, long, SendOptions{ReplyToMessageID: 9, Keyboard: kb}); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2 chunks", len(reqs))
	}
	if reqs[0].ReplyToMessageID != 9 || reqs[1].ReplyToMessageID != 0 {
		t.Fatalf("reply_to = %d/%d, want 9/0", reqs[0].ReplyToMessageID, reqs[1].ReplyToMessageID)
	}
	if reqs[0].ReplyMarkup != nil || reqs[1].ReplyMarkup == nil {
		t.Fatalf("keyboard should only be on the last chunk")
	}
	if reqs[1].Text != "tail" {
		t.Fatalf("last chunk = %q, want tail", reqs[1].Text)
	}
}

func TestRequestErrorCarriesDescription(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`))
	}))
	defer srv.Close()

	c := New(Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Token: "TOKEN"})
	err := c.AnswerCallbackQuery(context.Background(), "cb", "")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("AnswerCallbackQuery() error = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusTooManyRequests || reqErr.RetryAfter != 3*time.Second {
		t.Fatalf("RequestError = %+v", reqErr)
	}
	if !strings.Contains(err.Error(), "Too Many Requests") {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestGetMeAndMissingToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"album_bot"}}`))
	}))
	defer srv.Close()

	me, err := New(Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Token: "T"}).GetMe(context.Background())
	if err != nil || me.Username != "album_bot" {
		t.Fatalf("GetMe() = %+v, %v", me, err)
	}
	if _, err := New(Options{BaseURL: srv.URL}).GetMe(context.Background()); err == nil {
		t.Fatalf("GetMe() without token error = nil")
	}
}

func TestIsPollTimeoutError(t *testing.T) {
	t.Parallel()

	if !IsPollTimeoutError(context.DeadlineExceeded) {
		t.Fatalf("IsPollTimeoutError(deadline) = false")
	}
	if IsPollTimeoutError(errors.New("connection refused")) {
		t.Fatalf("IsPollTimeoutError(refused) = true")
	}
	if IsPollTimeoutError(nil) {
		t.Fatalf("IsPollTimeoutError(nil) = true")
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		u    *User
		want string
	}{
		{nil, ""},
		{&User{FirstName: "Ada", LastName: "L"}, "Ada L"},
		{&User{Username: "ada"}, "@ada"},
	}
	for _, tc := range cases {
		if got := tc.u.DisplayName(); got != tc.want {
			t.Fatalf("DisplayName() = %q, want %q", got, tc.want)
		}
	}
}
