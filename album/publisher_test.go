package album

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/albumbot/internal/fsstore"
	"github.com/quailyquaily/albumbot/kvstore"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, e AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAudit) events() []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEvent, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Event)
	}
	return out
}

func newTestPublisher(t *testing.T, store kvstore.Store, audit AuditSink) *Publisher {
	t.Helper()
	return NewPublisher(store, newTestAllocator(t, store), PublisherOptions{Audit: audit, Logger: discardLogger()})
}

func TestPublishWritesSnapshot(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemory()
	audit := &recordingAudit{}
	p := newTestPublisher(t, store, audit)

	s := Session{ID: "s1", UserID: 9, Title: "Sample", Files: []string{"p1", "p2"}}
	code, err := p.Publish(context.Background(), s)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if code != "a01" {
		t.Fatalf("Publish() code = %q, want a01", code)
	}
	raw, err := store.Get(context.Background(), code)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := `{"title":"Sample","files":["p1","p2"],"attachments":[]}`
	if string(raw) != want {
		t.Fatalf("stored record = %s, want %s", raw, want)
	}
	if got := audit.events(); len(got) != 2 || got[0] != AuditAllocated || got[1] != AuditPublished {
		t.Fatalf("audit events = %v, want [allocated published]", got)
	}
}

func TestPublishRejectsInvalidSession(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemory()
	p := newTestPublisher(t, store, nil)

	_, err := p.Publish(context.Background(), Session{})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Missing != MissingTitle {
		t.Fatalf("Publish() error = %v, want missing title", err)
	}
	_, err = p.Publish(context.Background(), Session{Title: "t"})
	if !errors.As(err, &verr) || verr.Missing != MissingFiles {
		t.Fatalf("Publish() error = %v, want missing files", err)
	}
	if store.Len() != 0 {
		t.Fatalf("store keys = %d, want 0 (no allocation on invalid drafts)", store.Len())
	}
}

func TestPublishBurnsCodeOnWriteFailure(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemory()
	failNext := true
	store.BeforePut = func(key string, _ []byte) error {
		if key != DefaultCounterKey && failNext {
			failNext = false
			return errors.New("503 service unavailable")
		}
		return nil
	}
	audit := &recordingAudit{}
	p := newTestPublisher(t, store, audit)
	s := Session{Title: "t", Files: []string{"p"}}

	_, err := p.Publish(context.Background(), s)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Publish() error = %v, want ErrStoreUnavailable", err)
	}
	code, err := p.Publish(context.Background(), s)
	if err != nil {
		t.Fatalf("Publish() retry error = %v", err)
	}
	if code != "a02" {
		t.Fatalf("Publish() retry code = %q, want a02 (a01 burned)", code)
	}
	if _, err := store.Get(context.Background(), "a01"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("burned code a01 holds a record, err = %v", err)
	}
	got := audit.events()
	want := []AuditEvent{AuditAllocated, AuditBurned, AuditAllocated, AuditPublished}
	if len(got) != len(want) {
		t.Fatalf("audit events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("audit events = %v, want %v", got, want)
		}
	}
}

func TestLookupAndDelete(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemory()
	audit := &recordingAudit{}
	p := newTestPublisher(t, store, audit)
	ctx := context.Background()

	code, err := p.Publish(ctx, Session{Title: "t", Files: []string{"p"}, Password: "pw"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	rec, err := p.Lookup(ctx, code)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Password == nil || *rec.Password != "pw" {
		t.Fatalf("Lookup() password = %v, want pw", rec.Password)
	}

	store.Set("a50", []byte("{broken"))
	if _, err := p.Lookup(ctx, "a50"); !errors.Is(err, ErrInvalidRecord) || errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Lookup(a50) error = %v, want ErrInvalidRecord only", err)
	}

	for _, bad := range []string{"a99", DefaultCounterKey, "a7"} {
		if _, err := p.Lookup(ctx, bad); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Lookup(%q) error = %v, want ErrNotFound", bad, err)
		}
	}

	if err := p.Delete(ctx, 1, code); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := p.Lookup(ctx, code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup() after delete error = %v, want ErrNotFound", err)
	}
	next, _ := p.Publish(ctx, Session{Title: "t", Files: []string{"p"}})
	if next != "a02" {
		t.Fatalf("Publish() after delete = %q, want a02 (codes are not recycled)", next)
	}
}

func TestJSONLAuditWritesLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit", "publish.jsonl")
	audit, err := NewJSONLAudit(path, discardLogger())
	if err != nil {
		t.Fatalf("NewJSONLAudit() error = %v", err)
	}
	store := kvstore.NewMemory()
	p := NewPublisher(store, newTestAllocator(t, store), PublisherOptions{
		Audit:  audit,
		Logger: discardLogger(),
		Now:    func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) },
	})
	if _, err := p.Publish(context.Background(), Session{ID: "s1", Title: "t", Files: []string{"p"}}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := audit.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, ok, err := fsstore.ReadFile(path)
	if err != nil || !ok {
		t.Fatalf("ReadFile() = %v, %v", ok, err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2 (allocated, published)", len(lines))
	}
	line := lines[1]
	for _, want := range []string{`"event":"published"`, `"code":"a01"`, `"session_id":"s1"`, `"time":"2026-02-03T04:05:06Z"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("audit line %s missing %s", line, want)
		}
	}
}
