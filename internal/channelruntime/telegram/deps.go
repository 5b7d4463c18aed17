package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quailyquaily/albumbot/album"
	"github.com/quailyquaily/albumbot/internal/outputfmt"
)

type Dependencies struct {
	Logger     func() (*slog.Logger, error)
	Publisher  *album.Publisher
	HTTPClient *http.Client
}

func loggerFromDeps(d Dependencies) (*slog.Logger, error) {
	if d.Logger == nil {
		return nil, fmt.Errorf("Logger dependency missing")
	}
	return d.Logger()
}

type ErrorStage string

const (
	ErrorStageHandleEvent    ErrorStage = "handle_event"
	ErrorStageSendReply      ErrorStage = "send_reply"
	ErrorStageAnswerCallback ErrorStage = "answer_callback"
	ErrorStageEnqueue        ErrorStage = "enqueue"
)

type InboundEvent struct {
	ChatID    int64
	UserID    int64
	MessageID int64
	Kind      string
	Text      string
}

type ErrorEvent struct {
	Stage  ErrorStage
	ChatID int64
	UserID int64
	Err    error
}

// Hooks observe the runtime. They run on worker goroutines and must not block.
type Hooks struct {
	OnInbound func(ctx context.Context, ev InboundEvent)
	OnError   func(ctx context.Context, ev ErrorEvent)
}

func callInboundHook(ctx context.Context, logger *slog.Logger, hooks Hooks, ev InboundEvent) {
	if hooks.OnInbound == nil {
		return
	}
	defer recoverHook(logger, "inbound")
	hooks.OnInbound(ctx, ev)
}

func callErrorHook(ctx context.Context, logger *slog.Logger, hooks Hooks, ev ErrorEvent) {
	if hooks.OnError == nil {
		return
	}
	defer recoverHook(logger, "error")
	hooks.OnError(ctx, ev)
}

func recoverHook(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("telegram_hook_panic", "hook", name, "panic", fmt.Sprint(r))
	}
}

func formatRuntimeError(err error, secrets ...string) string {
	s := strings.TrimSpace(outputfmt.FormatErrorForDisplay(err, secrets...))
	if s == "" {
		return "unknown error"
	}
	return s
}
