package main

import (
	"time"

	"github.com/quailyquaily/albumbot/album"
	"github.com/quailyquaily/albumbot/kvstore"
	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("env_file", ".env")

	// Logging
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)

	// Telegram
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.allowed_user_ids", []string{})
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.task_timeout", 60*time.Second)
	viper.SetDefault("telegram.max_concurrency", 3)
	viper.SetDefault("telegram.send_rate", 20.0)
	viper.SetDefault("telegram.send_burst", 5)

	// Store
	viper.SetDefault("store.backend", kvstore.BackendCloudflare)
	viper.SetDefault("store.timeout", kvstore.DefaultTimeout)
	viper.SetDefault("store.counter_key", album.DefaultCounterKey)
	viper.SetDefault("cloudflare.base_url", kvstore.DefaultCloudflareBaseURL)
	viper.SetDefault("s3.path_style", false)
	viper.SetDefault("file.dir", "./data/albums")

	// Album workflow
	viper.SetDefault("album.title_mode", string(album.TitleModeMarker))
	viper.SetDefault("album.title_marker", album.DefaultTitleMarker)
	viper.SetDefault("album.allow_retitle", false)
	viper.SetDefault("album.require_title_before_media", true)
	viper.SetDefault("album.categories", []string{})
	viper.SetDefault("album.default_category", "")
	viper.SetDefault("album.choose_category", false)
	viper.SetDefault("album.allocate_attempts", album.DefaultAllocateAttempts)
	viper.SetDefault("album.share_base_url", "")
	viper.SetDefault("album.echo_password", false)
	viper.SetDefault("album.session_idle_timeout", time.Duration(0))

	viper.SetDefault("publish.audit_path", "")
	viper.SetDefault("health.listen", "")
}
