package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quailyquaily/albumbot/internal/channelruntime/telegram"
	"github.com/quailyquaily/albumbot/internal/configutil"
	"github.com/quailyquaily/albumbot/internal/logutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the album bot against the Telegram Bot API",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(configutil.FlagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or ALBUMBOT_TELEGRAM_BOT_TOKEN)")
			}
			allowed, err := configutil.ParseInt64List("telegram.allowed_user_ids",
				configutil.FlagOrViperStringArray(cmd, "telegram-allowed-user-id", "telegram.allowed_user_ids"))
			if err != nil {
				return err
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stack, err := openAlbumStack(ctx, logger)
			if err != nil {
				return err
			}
			defer func() { _ = stack.Close() }()

			albumOpts := machineOptionsFromViper()
			albumOpts.EchoPassword = configutil.FlagOrViperBool(cmd, "album-echo-password", "album.echo_password")

			return telegram.Run(ctx, telegram.Dependencies{
				Logger:    logutil.LoggerFromViper,
				Publisher: stack.Publisher,
			}, telegram.RunOptions{
				BotToken:           token,
				BaseURL:            viper.GetString("telegram.base_url"),
				AllowedUserIDs:     allowed,
				PollTimeout:        configutil.FlagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
				TaskTimeout:        configutil.FlagOrViperDuration(cmd, "telegram-task-timeout", "telegram.task_timeout"),
				MaxConcurrency:     configutil.FlagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency"),
				SendRate:           configutil.FlagOrViperFloat64(cmd, "telegram-send-rate", "telegram.send_rate"),
				SendBurst:          viper.GetInt("telegram.send_burst"),
				HealthListen:       configutil.FlagOrViperString(cmd, "health-listen", "health.listen"),
				SessionIdleTimeout: configutil.FlagOrViperDuration(cmd, "session-idle-timeout", "album.session_idle_timeout"),
				Album:              albumOpts,
			})
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("telegram-allowed-user-id", nil, "Allowed user id(s). If empty, allows all.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Duration("telegram-task-timeout", 60*time.Second, "Per-event handling timeout.")
	cmd.Flags().Int("telegram-max-concurrency", 3, "Max number of users processed concurrently.")
	cmd.Flags().Float64("telegram-send-rate", 20, "Outbound messages per second.")
	cmd.Flags().Bool("album-echo-password", false, "Show album passwords in confirmations instead of masking them.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address, e.g. 127.0.0.1:8080 (empty disables).")
	cmd.Flags().Duration("session-idle-timeout", 0, "Discard drafts idle for this long (0 keeps them until /end_album or /cancel).")

	return cmd
}
