package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/quailyquaily/albumbot/album"
	"github.com/spf13/viper"
)

func useFileStore(t *testing.T) string {
	t.Helper()
	initViperDefaults()
	dir := t.TempDir()
	prevBackend := viper.GetString("store.backend")
	prevDir := viper.GetString("file.dir")
	prevAudit := viper.GetString("publish.audit_path")
	viper.Set("store.backend", "file")
	viper.Set("file.dir", dir)
	viper.Set("publish.audit_path", filepath.Join(dir, "audit", "publish.jsonl"))
	t.Cleanup(func() {
		viper.Set("store.backend", prevBackend)
		viper.Set("file.dir", prevDir)
		viper.Set("publish.audit_path", prevAudit)
	})
	return dir
}

func publishForTest(t *testing.T, sessions ...album.Session) {
	t.Helper()
	stack, err := openAlbumStack(context.Background(), nil)
	if err != nil {
		t.Fatalf("openAlbumStack() error = %v", err)
	}
	defer func() { _ = stack.Close() }()
	for _, s := range sessions {
		if _, err := stack.Publisher.Publish(context.Background(), s); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
}

func TestAlbumGetAndDelete(t *testing.T) {
	useFileStore(t)
	publishForTest(t, album.Session{Title: "Trip", Files: []string{"p1", "p2"}, Category: "travel"})

	var out bytes.Buffer
	cmd := newAlbumCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"get", "a01", "--format", "json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("album get --format json error = %v", err)
	}
	for _, want := range []string{`"title": "Trip"`, `"category": "travel"`, `"p2"`} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("album get json = %q, want %s", out.String(), want)
		}
	}

	out.Reset()
	cmd = newAlbumCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"get", "a01"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("album get error = %v", err)
	}
	if !strings.Contains(out.String(), "title: Trip") {
		t.Fatalf("album get yaml = %q, want title: Trip", out.String())
	}

	out.Reset()
	cmd = newAlbumCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"delete", "a01"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("album delete error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "deleted a01" {
		t.Fatalf("album delete output = %q, want deleted a01", got)
	}

	cmd = newAlbumCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"get", "a01"})
	if err := cmd.Execute(); !errors.Is(err, album.ErrNotFound) {
		t.Fatalf("album get after delete error = %v, want ErrNotFound", err)
	}
}

func TestAlbumGetRejectsUnknownFormat(t *testing.T) {
	useFileStore(t)

	cmd := newAlbumCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"get", "a01", "--format", "xml"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid --format") {
		t.Fatalf("album get --format xml error = %v, want invalid --format", err)
	}
}

func TestAlbumDeleteUnknownCode(t *testing.T) {
	useFileStore(t)

	for _, code := range []string{"a05", album.DefaultCounterKey} {
		cmd := newAlbumCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"delete", code})
		if err := cmd.Execute(); !errors.Is(err, album.ErrNotFound) {
			t.Fatalf("album delete %s error = %v, want ErrNotFound", code, err)
		}
	}
}

func TestCounterShow(t *testing.T) {
	dir := useFileStore(t)
	publishForTest(t,
		album.Session{Title: "one", Files: []string{"p"}},
		album.Session{Title: "two", Files: []string{"p"}},
	)

	var out bytes.Buffer
	cmd := newCounterCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"show"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("counter show error = %v", err)
	}
	for _, want := range []string{"key: _album_sequence", "value: 2", "last: a02", "next: a03"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("counter show = %q, want %s", out.String(), want)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "audit", "publish.jsonl"))
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if got := strings.Count(string(data), `"event":"published"`); got != 2 {
		t.Fatalf("audit published lines = %d, want 2", got)
	}
}

func TestCounterShowEmptyStore(t *testing.T) {
	useFileStore(t)

	var out bytes.Buffer
	cmd := newCounterCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"show"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("counter show error = %v", err)
	}
	if strings.Contains(out.String(), "last:") || !strings.Contains(out.String(), "next: a01") {
		t.Fatalf("counter show = %q, want next: a01 without last", out.String())
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !strings.HasPrefix(lines[0], "albumbot ") {
		t.Fatalf("version first line = %q, want albumbot <version>", lines[0])
	}
	if last := lines[len(lines)-1]; last != "go: "+runtime.Version() {
		t.Fatalf("version last line = %q, want go: %s", last, runtime.Version())
	}
}

func TestVersionCmdShortAndJSON(t *testing.T) {
	want := currentBuildInfo()

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version --short error = %v", err)
	}
	if got := out.String(); got != want.Version+"\n" {
		t.Fatalf("version --short = %q, want %q", got, want.Version+"\n")
	}

	out.Reset()
	cmd = newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version --json error = %v", err)
	}
	var got buildInfo
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("version --json output %q: %v", out.String(), err)
	}
	if got != want {
		t.Fatalf("version --json = %+v, want %+v", got, want)
	}
	if got.Version == "" || got.GoVersion == "" {
		t.Fatalf("version --json = %+v, want version and go_version", got)
	}
}

func TestTelegramCmdRequiresToken(t *testing.T) {
	initViperDefaults()
	prev := viper.GetString("telegram.bot_token")
	viper.Set("telegram.bot_token", "")
	t.Cleanup(func() { viper.Set("telegram.bot_token", prev) })

	cmd := newTelegramCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "telegram.bot_token") {
		t.Fatalf("telegram error = %v, want missing telegram.bot_token", err)
	}
}

func TestTelegramCmdRejectsBadUserID(t *testing.T) {
	initViperDefaults()

	cmd := newTelegramCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--telegram-bot-token", "123:abc", "--telegram-allowed-user-id", "12,x"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "telegram.allowed_user_ids") {
		t.Fatalf("telegram error = %v, want invalid telegram.allowed_user_ids", err)
	}
}
