package album

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quailyquaily/albumbot/kvstore"
)

type AuditEvent string

const (
	AuditAllocated AuditEvent = "allocated"
	AuditPublished AuditEvent = "published"
	AuditBurned    AuditEvent = "burned"
	AuditDeleted   AuditEvent = "deleted"
)

type AuditEntry struct {
	Time      time.Time  `json:"time"`
	Event     AuditEvent `json:"event"`
	Code      string     `json:"code"`
	SessionID string     `json:"session_id,omitempty"`
	UserID    int64      `json:"user_id,omitempty"`
	Photos    int        `json:"photos,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

type PublisherOptions struct {
	Audit  AuditSink
	Logger *slog.Logger
	Now    func() time.Time
}

// Publisher writes finished drafts under freshly allocated codes. A code whose
// write failed is burned: the next attempt allocates a new one, so two albums
// can never share a code.
type Publisher struct {
	store  kvstore.Store
	alloc  *Allocator
	audit  AuditSink
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(store kvstore.Store, alloc *Allocator, opts PublisherOptions) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		store:  store,
		alloc:  alloc,
		audit:  opts.Audit,
		logger: logger,
		now:    now,
	}
}

func (p *Publisher) Publish(ctx context.Context, s Session) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	data, err := EncodeRecord(Snapshot(s))
	if err != nil {
		return "", err
	}
	code, err := p.alloc.Allocate(ctx)
	if err != nil {
		return "", err
	}
	p.record(ctx, AuditEntry{Event: AuditAllocated, Code: code, SessionID: s.ID, UserID: s.UserID})
	if err := p.store.Put(ctx, code, data); err != nil {
		p.logger.Warn("album_code_burned", "code", code, "session_id", s.ID, "error", err.Error())
		p.record(ctx, AuditEntry{Event: AuditBurned, Code: code, SessionID: s.ID, UserID: s.UserID, Error: err.Error()})
		return "", storeError("write album "+code, err)
	}
	p.logger.Info("album_published",
		"code", code,
		"session_id", s.ID,
		"user_id", s.UserID,
		"photos", len(s.Files),
		"attachments", len(s.Attachments),
	)
	p.record(ctx, AuditEntry{Event: AuditPublished, Code: code, SessionID: s.ID, UserID: s.UserID, Photos: len(s.Files)})
	return code, nil
}

// Lookup returns ErrNotFound for unknown codes, malformed codes and the
// counter key alike.
func (p *Publisher) Lookup(ctx context.Context, code string) (Record, error) {
	if _, ok := ParseCode(code); !ok {
		return Record{}, fmt.Errorf("lookup %q: %w", code, ErrNotFound)
	}
	data, err := p.store.Get(ctx, code)
	if err != nil {
		return Record{}, storeError("lookup "+code, err)
	}
	return DecodeRecord(data)
}

// Delete removes the record under code. The counter is left untouched, so
// deleted codes are never handed out again.
func (p *Publisher) Delete(ctx context.Context, userID int64, code string) error {
	if _, ok := ParseCode(code); !ok {
		return fmt.Errorf("delete %q: %w", code, ErrNotFound)
	}
	if err := p.store.Delete(ctx, code); err != nil {
		return storeError("delete "+code, err)
	}
	p.logger.Info("album_deleted", "code", code, "user_id", userID)
	p.record(ctx, AuditEntry{Event: AuditDeleted, Code: code, UserID: userID})
	return nil
}

func (p *Publisher) record(ctx context.Context, entry AuditEntry) {
	if p.audit == nil {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = p.now().UTC()
	}
	p.audit.Record(ctx, entry)
}
