package kvstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	BackendCloudflare = "cloudflare"
	BackendS3         = "s3"
	BackendFile       = "file"
	BackendMemory     = "memory"
)

type Config struct {
	Backend    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Cloudflare CloudflareOptions
	S3         S3Options
	FileDir    string
}

// Open builds the configured backend wrapped with the per-call timeout.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendCloudflare:
		opts := cfg.Cloudflare
		if opts.HTTPClient == nil {
			opts.HTTPClient = cfg.HTTPClient
		}
		store, err = NewCloudflare(opts)
	case BackendS3:
		store, err = NewS3(ctx, cfg.S3)
	case BackendFile:
		store, err = NewFile(cfg.FileDir)
	case BackendMemory:
		store = NewMemory()
	default:
		return nil, fmt.Errorf("unknown store.backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(store, cfg.Timeout), nil
}
