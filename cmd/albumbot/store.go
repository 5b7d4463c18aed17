package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/albumbot/album"
	"github.com/quailyquaily/albumbot/kvstore"
	"github.com/spf13/viper"
)

func storeConfigFromViper() kvstore.Config {
	return kvstore.Config{
		Backend: viper.GetString("store.backend"),
		Timeout: viper.GetDuration("store.timeout"),
		Cloudflare: kvstore.CloudflareOptions{
			BaseURL:     viper.GetString("cloudflare.base_url"),
			AccountID:   viper.GetString("cloudflare.account_id"),
			NamespaceID: viper.GetString("cloudflare.namespace_id"),
			APIToken:    viper.GetString("cloudflare.api_token"),
		},
		S3: kvstore.S3Options{
			Bucket:          viper.GetString("s3.bucket"),
			Prefix:          viper.GetString("s3.prefix"),
			Region:          viper.GetString("s3.region"),
			Endpoint:        viper.GetString("s3.endpoint"),
			AccessKeyID:     viper.GetString("s3.access_key_id"),
			SecretAccessKey: viper.GetString("s3.secret_access_key"),
			PathStyle:       viper.GetBool("s3.path_style"),
		},
		FileDir: viper.GetString("file.dir"),
	}
}

// albumStack is everything the commands need to read or write albums.
type albumStack struct {
	Store     kvstore.Store
	Allocator *album.Allocator
	Publisher *album.Publisher
	audit     *album.JSONLAudit
}

func (s *albumStack) Close() error {
	if s == nil || s.audit == nil {
		return nil
	}
	return s.audit.Close()
}

func openAlbumStack(ctx context.Context, logger *slog.Logger) (*albumStack, error) {
	store, err := kvstore.Open(ctx, storeConfigFromViper())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	alloc, err := album.NewAllocator(store, album.AllocatorOptions{
		CounterKey:  viper.GetString("store.counter_key"),
		MaxAttempts: viper.GetInt("album.allocate_attempts"),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	stack := &albumStack{Store: store, Allocator: alloc}
	pubOpts := album.PublisherOptions{Logger: logger}
	if path := strings.TrimSpace(viper.GetString("publish.audit_path")); path != "" {
		audit, err := album.NewJSONLAudit(path, logger)
		if err != nil {
			return nil, fmt.Errorf("open publish audit: %w", err)
		}
		stack.audit = audit
		pubOpts.Audit = audit
	}
	stack.Publisher = album.NewPublisher(store, alloc, pubOpts)
	return stack, nil
}

func machineOptionsFromViper() album.MachineOptions {
	return album.MachineOptions{
		Classifier: album.Classifier{
			TitleMode:   album.TitleMode(strings.ToLower(strings.TrimSpace(viper.GetString("album.title_mode")))),
			TitleMarker: viper.GetString("album.title_marker"),
		},
		Categories:              trimmedList(viper.GetStringSlice("album.categories")),
		DefaultCategory:         strings.TrimSpace(viper.GetString("album.default_category")),
		ChooseCategory:          viper.GetBool("album.choose_category"),
		AllowRetitle:            viper.GetBool("album.allow_retitle"),
		RequireTitleBeforeMedia: viper.GetBool("album.require_title_before_media"),
		ShareBaseURL:            viper.GetString("album.share_base_url"),
		EchoPassword:            viper.GetBool("album.echo_password"),
	}
}

func trimmedList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
