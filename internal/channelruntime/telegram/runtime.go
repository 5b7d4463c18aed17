package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/albumbot/album"
	runtimeworker "github.com/quailyquaily/albumbot/internal/channelruntime/worker"
	"github.com/quailyquaily/albumbot/internal/healthcheck"
	"github.com/quailyquaily/albumbot/internal/telegramapi"
)

const unauthorizedText = "⛔ You are not allowed to use this bot."

type telegramRuntime struct {
	api     *telegramapi.Client
	machine *album.Machine
	admit   *admission
	logger  *slog.Logger
	opts    runtimeLoopOptions
}

func Run(ctx context.Context, d Dependencies, opts RunOptions) error {
	return runTelegramLoop(ctx, d, resolveRuntimeLoopOptionsFromRunOptions(opts))
}

func runTelegramLoop(ctx context.Context, d Dependencies, opts runtimeLoopOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.BotToken == "" {
		return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or ALBUMBOT_TELEGRAM_BOT_TOKEN)")
	}
	if d.Publisher == nil {
		return fmt.Errorf("Publisher dependency missing")
	}
	logger, err := loggerFromDeps(d)
	if err != nil {
		return err
	}

	rt := newRuntime(d, opts, logger)

	me, err := rt.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %s", formatRuntimeError(err, opts.BotToken))
	}
	logger.Info("telegram_start",
		"bot_id", me.ID,
		"bot_username", me.Username,
		"allowed_users", len(opts.AllowedUserIDs),
		"max_concurrency", opts.MaxConcurrency,
		"idle_timeout", opts.SessionIdleTimeout.String(),
	)

	pool := runtimeworker.NewPool[int64, telegramJob](ctx, runtimeworker.PoolOptions[telegramJob]{
		MaxConcurrency: opts.MaxConcurrency,
		QueueSize:      opts.UserQueueSize,
		Handle:         rt.handleJob,
	})
	defer pool.Stop()

	if healthListen := healthcheck.NormalizeListen(opts.HealthListen); healthListen != "" {
		healthServer, err := healthcheck.StartServer(ctx, logger, healthListen, "telegram", rt.healthProbe(pool))
		if err != nil {
			logger.Warn("telegram_health_server_start_error", "addr", healthListen, "error", err.Error())
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = healthServer.Shutdown(shutdownCtx)
				cancel()
			}()
		}
	}

	if opts.SessionIdleTimeout > 0 {
		go rt.sweepIdle(ctx)
	}

	var offset int64
	for {
		updates, nextOffset, err := rt.api.GetUpdates(ctx, offset, opts.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			if telegramapi.IsPollTimeoutError(err) {
				logger.Debug("telegram_get_updates_timeout", "error", formatRuntimeError(err, opts.BotToken))
			} else {
				logger.Warn("telegram_get_updates_error", "error", formatRuntimeError(err, opts.BotToken))
			}
			select {
			case <-ctx.Done():
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		offset = nextOffset

		for _, u := range updates {
			rt.dispatch(ctx, pool, u)
		}
	}
}

func newRuntime(d Dependencies, opts runtimeLoopOptions, logger *slog.Logger) *telegramRuntime {
	rt := &telegramRuntime{
		api: telegramapi.New(telegramapi.Options{
			HTTPClient: d.HTTPClient,
			BaseURL:    opts.BaseURL,
			Token:      opts.BotToken,
			SendRate:   opts.SendRate,
			SendBurst:  opts.SendBurst,
		}),
		admit:  newAdmission(opts.AllowedUserIDs, opts.DedupeCapacity),
		logger: logger,
		opts:   opts,
	}
	machineOpts := opts.Album
	machineOpts.Logger = logger
	machineOpts.Progress = rt.sendProgress
	if machineOpts.ErrorText == nil {
		machineOpts.ErrorText = func(err error) string {
			return formatRuntimeError(err, opts.BotToken)
		}
	}
	rt.machine = album.NewMachine(album.NewRegistry(), d.Publisher, machineOpts)
	return rt
}

func (rt *telegramRuntime) dispatch(ctx context.Context, pool *runtimeworker.Pool[int64, telegramJob], u telegramapi.Update) {
	job, decision := rt.admit.admit(u)
	switch decision {
	case admitSkip:
		return
	case admitDuplicate:
		rt.logger.Debug("telegram_update_deduped", "update_id", u.UpdateID, "idempotency_key", job.Key)
		return
	case admitUnauthorized:
		rt.logger.Warn("telegram_unauthorized_user", "user_id", job.Event.UserID, "chat_id", job.Event.ChatID)
		if rt.admit.firstRefusal(job.Event.UserID) {
			if err := rt.api.SendMessage(ctx, job.Event.ChatID, unauthorizedText, telegramapi.SendOptions{}); err != nil {
				rt.logger.Warn("telegram_send_error", "chat_id", job.Event.ChatID, "error", formatRuntimeError(err, rt.opts.BotToken))
			}
		}
		if job.Event.CallbackID != "" {
			_ = rt.api.AnswerCallbackQuery(ctx, job.Event.CallbackID, "")
		}
		return
	}
	// Enqueue never blocks the poll loop; events past a user's queue are dropped.
	if err := pool.Enqueue(job.Event.UserID, job); err != nil {
		if errors.Is(err, runtimeworker.ErrStopped) && ctx.Err() != nil {
			return
		}
		rt.logger.Warn("telegram_enqueue_dropped",
			"user_id", job.Event.UserID,
			"chat_id", job.Event.ChatID,
			"update_id", u.UpdateID,
			"error", err.Error(),
		)
		callErrorHook(ctx, rt.logger, rt.opts.Hooks, ErrorEvent{Stage: ErrorStageEnqueue, ChatID: job.Event.ChatID, UserID: job.Event.UserID, Err: err})
	}
}

func (rt *telegramRuntime) handleJob(workerCtx context.Context, job telegramJob) {
	ev := job.Event
	runCtx, cancel := context.WithTimeout(workerCtx, rt.opts.TaskTimeout)
	defer cancel()

	eventID := uuid.NewString()
	logger := rt.logger.With("event_id", eventID, "user_id", ev.UserID, "chat_id", ev.ChatID)
	kind := inboundKind(ev)
	logger.Debug("telegram_inbound", "kind", kind, "message_id", ev.MessageID)
	callInboundHook(runCtx, logger, rt.opts.Hooks, InboundEvent{
		ChatID:    ev.ChatID,
		UserID:    ev.UserID,
		MessageID: ev.MessageID,
		Kind:      kind,
		Text:      redactCommandText(ev.Text),
	})

	if ev.CallbackID != "" {
		if err := rt.api.AnswerCallbackQuery(runCtx, ev.CallbackID, ""); err != nil {
			logger.Warn("telegram_answer_callback_error", "error", formatRuntimeError(err, rt.opts.BotToken))
			callErrorHook(runCtx, logger, rt.opts.Hooks, ErrorEvent{Stage: ErrorStageAnswerCallback, ChatID: ev.ChatID, UserID: ev.UserID, Err: err})
		}
	}

	replies := rt.machine.Handle(runCtx, ev)
	if err := runCtx.Err(); err != nil && workerCtx.Err() == nil {
		logger.Warn("telegram_task_timeout", "timeout", rt.opts.TaskTimeout.String())
		callErrorHook(workerCtx, logger, rt.opts.Hooks, ErrorEvent{Stage: ErrorStageHandleEvent, ChatID: ev.ChatID, UserID: ev.UserID, Err: err})
	}

	// Replies still go out after a task timeout so the user learns the outcome.
	sendCtx := workerCtx
	for _, r := range replies {
		if err := rt.send(sendCtx, ev.ChatID, r); err != nil {
			if workerCtx.Err() != nil {
				return
			}
			logger.Warn("telegram_send_error", "error", formatRuntimeError(err, rt.opts.BotToken))
			callErrorHook(workerCtx, logger, rt.opts.Hooks, ErrorEvent{Stage: ErrorStageSendReply, ChatID: ev.ChatID, UserID: ev.UserID, Err: err})
		}
	}
}

func (rt *telegramRuntime) send(ctx context.Context, chatID int64, r album.Reply) error {
	return rt.api.SendMessage(ctx, chatID, r.Text, telegramapi.SendOptions{Keyboard: keyboardMarkup(r.Keyboard)})
}

func (rt *telegramRuntime) sendProgress(ctx context.Context, ev album.Event, r album.Reply) {
	if err := rt.send(ctx, ev.ChatID, r); err != nil {
		rt.logger.Warn("telegram_send_error", "chat_id", ev.ChatID, "kind", "progress", "error", formatRuntimeError(err, rt.opts.BotToken))
	}
}

func (rt *telegramRuntime) sweepIdle(ctx context.Context) {
	ticker := time.NewTicker(rt.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions, pending := rt.machine.Registry().EvictIdle(rt.opts.SessionIdleTimeout)
			if sessions > 0 || pending > 0 {
				rt.logger.Info("album_idle_evicted", "sessions", sessions, "pending", pending)
			}
		}
	}
}

func (rt *telegramRuntime) healthProbe(pool *runtimeworker.Pool[int64, telegramJob]) healthcheck.Probe {
	return func() map[string]any {
		sessions, pending := rt.machine.Registry().Counts()
		return map[string]any{
			"sessions":          sessions,
			"pending_deletions": pending,
			"user_workers":      pool.Keys(),
		}
	}
}
