package telegram

import (
	"sort"
	"strings"
	"time"

	"github.com/quailyquaily/albumbot/album"
	runtimeworker "github.com/quailyquaily/albumbot/internal/channelruntime/worker"
)

type RunOptions struct {
	BotToken           string
	BaseURL            string
	AllowedUserIDs     []int64
	PollTimeout        time.Duration
	TaskTimeout        time.Duration
	MaxConcurrency     int
	UserQueueSize      int
	SendRate           float64
	SendBurst          int
	HealthListen       string
	SessionIdleTimeout time.Duration
	DedupeCapacity     int
	Album              album.MachineOptions
	Hooks              Hooks
}

type runtimeLoopOptions struct {
	BotToken           string
	BaseURL            string
	AllowedUserIDs     []int64
	PollTimeout        time.Duration
	TaskTimeout        time.Duration
	MaxConcurrency     int
	UserQueueSize      int
	SendRate           float64
	SendBurst          int
	HealthListen       string
	SessionIdleTimeout time.Duration
	SweepInterval      time.Duration
	DedupeCapacity     int
	Album              album.MachineOptions
	Hooks              Hooks
}

func resolveRuntimeLoopOptionsFromRunOptions(opts RunOptions) runtimeLoopOptions {
	out := runtimeLoopOptions{
		BotToken:           opts.BotToken,
		BaseURL:            opts.BaseURL,
		AllowedUserIDs:     opts.AllowedUserIDs,
		PollTimeout:        opts.PollTimeout,
		TaskTimeout:        opts.TaskTimeout,
		MaxConcurrency:     opts.MaxConcurrency,
		UserQueueSize:      opts.UserQueueSize,
		SendRate:           opts.SendRate,
		SendBurst:          opts.SendBurst,
		HealthListen:       opts.HealthListen,
		SessionIdleTimeout: opts.SessionIdleTimeout,
		DedupeCapacity:     opts.DedupeCapacity,
		Album:              opts.Album,
		Hooks:              opts.Hooks,
	}
	return normalizeRuntimeLoopOptions(out)
}

func normalizeRuntimeLoopOptions(opts runtimeLoopOptions) runtimeLoopOptions {
	opts.BotToken = strings.TrimSpace(opts.BotToken)
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	opts.AllowedUserIDs = normalizeAllowedUserIDs(opts.AllowedUserIDs)
	opts.HealthListen = strings.TrimSpace(opts.HealthListen)

	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.telegram.org"
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 60 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 3
	}
	if opts.UserQueueSize <= 0 {
		opts.UserQueueSize = runtimeworker.DefaultQueueSize
	}
	if opts.SendRate < 0 {
		opts.SendRate = 0
	}
	if opts.SendRate > 0 && opts.SendBurst <= 0 {
		opts.SendBurst = 1
	}
	if opts.SessionIdleTimeout < 0 {
		opts.SessionIdleTimeout = 0
	}
	if opts.SessionIdleTimeout > 0 && opts.SweepInterval <= 0 {
		opts.SweepInterval = sweepIntervalFor(opts.SessionIdleTimeout)
	}
	if opts.DedupeCapacity <= 0 {
		opts.DedupeCapacity = 4096
	}
	return opts
}

func sweepIntervalFor(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval < time.Second {
		return time.Second
	}
	if interval > 5*time.Minute {
		return 5 * time.Minute
	}
	return interval
}

func normalizeAllowedUserIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) == 0 {
		return nil
	}
	return out
}
