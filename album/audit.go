package album

import (
	"context"
	"log/slog"

	"github.com/quailyquaily/albumbot/internal/fsstore"
)

// JSONLAudit appends audit entries to a rotating JSONL file.
type JSONLAudit struct {
	w      *fsstore.JSONLWriter
	logger *slog.Logger
}

func NewJSONLAudit(path string, logger *slog.Logger) (*JSONLAudit, error) {
	w, err := fsstore.NewJSONLWriter(path, fsstore.JSONLOptions{SyncEachWrite: true})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONLAudit{w: w, logger: logger}, nil
}

func (a *JSONLAudit) Record(_ context.Context, entry AuditEntry) {
	if err := a.w.AppendJSON(entry); err != nil {
		a.logger.Warn("album_audit_write_error", "path", a.w.Path(), "event", entry.Event, "code", entry.Code, "error", err.Error())
	}
}

func (a *JSONLAudit) Close() error {
	return a.w.Close()
}
