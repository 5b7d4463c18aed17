package telegram

import (
	"strings"
	"time"
	"unicode"

	"github.com/quailyquaily/albumbot/album"
	"github.com/quailyquaily/albumbot/internal/idempotency"
	"github.com/quailyquaily/albumbot/internal/telegramapi"
)

type admitDecision int

const (
	admitAccept admitDecision = iota
	admitSkip
	admitDuplicate
	admitUnauthorized
)

func (d admitDecision) String() string {
	switch d {
	case admitAccept:
		return "accept"
	case admitDuplicate:
		return "duplicate"
	case admitUnauthorized:
		return "unauthorized"
	default:
		return "skip"
	}
}

type telegramJob struct {
	Event album.Event
	Key   string
}

// admission decides whether an update reaches the album machine. Updates
// from bots or without a sender are skipped; redeliveries are dropped; users
// outside a non-empty allowlist are refused.
type admission struct {
	allowed map[int64]bool
	seen    *idempotency.Seen
	now     func() time.Time
}

func newAdmission(allowedUserIDs []int64, dedupeCapacity int) *admission {
	allowed := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	return &admission{
		allowed: allowed,
		seen:    idempotency.NewSeen(dedupeCapacity),
		now:     time.Now,
	}
}

func (a *admission) admit(u telegramapi.Update) (telegramJob, admitDecision) {
	job, ok := jobFromUpdate(u, a.now())
	if !ok {
		return telegramJob{}, admitSkip
	}
	if len(a.allowed) > 0 && !a.allowed[job.Event.UserID] {
		return job, admitUnauthorized
	}
	if !a.seen.Mark(job.Key) {
		return job, admitDuplicate
	}
	return job, admitAccept
}

// firstRefusal reports whether user has not been told yet that they are
// not allowed.
func (a *admission) firstRefusal(user int64) bool {
	return a.seen.Mark(idempotency.NoticeKey("unauthorized", user))
}

func jobFromUpdate(u telegramapi.Update, now time.Time) (telegramJob, bool) {
	if cb := u.CallbackQuery; cb != nil {
		if cb.From == nil || cb.From.IsBot || cb.Message == nil || cb.Message.Chat == nil {
			return telegramJob{}, false
		}
		ev := album.Event{
			UserID:       cb.From.ID,
			ChatID:       cb.Message.Chat.ID,
			MessageID:    cb.Message.MessageID,
			CallbackID:   strings.TrimSpace(cb.ID),
			CallbackData: cb.Data,
			ReceivedAt:   now,
		}
		return telegramJob{Event: ev, Key: idempotency.CallbackKey(cb.ID)}, true
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return telegramJob{}, false
	}
	ev := album.Event{
		UserID:     msg.From.ID,
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		Text:       msg.Text,
		ReceivedAt: now,
	}
	if msg.Date > 0 {
		ev.ReceivedAt = time.Unix(msg.Date, 0).UTC()
	}
	for _, p := range msg.Photo {
		if strings.TrimSpace(p.FileID) == "" {
			continue
		}
		ev.Photos = append(ev.Photos, album.PhotoSize{
			FileID:   p.FileID,
			Width:    p.Width,
			Height:   p.Height,
			FileSize: p.FileSize,
		})
	}
	if d := msg.Document; d != nil && strings.TrimSpace(d.FileID) != "" {
		ev.Document = &album.Document{
			FileID:   d.FileID,
			FileName: strings.TrimSpace(d.FileName),
			MimeType: strings.TrimSpace(d.MimeType),
		}
	}
	return telegramJob{Event: ev, Key: idempotency.MessageKey(msg.Chat.ID, msg.MessageID)}, true
}

func inboundKind(ev album.Event) string {
	switch {
	case ev.CallbackData != "" || ev.CallbackID != "":
		return "callback"
	case len(ev.Photos) > 0:
		return "photo"
	case ev.Document != nil:
		return "document"
	case strings.HasPrefix(strings.TrimSpace(ev.Text), "/"):
		return "command"
	case ev.Text != "":
		return "text"
	default:
		return "other"
	}
}

func keyboardMarkup(rows [][]album.Button) *telegramapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := &telegramapi.InlineKeyboardMarkup{InlineKeyboard: make([][]telegramapi.InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]telegramapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telegramapi.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		out.InlineKeyboard = append(out.InlineKeyboard, buttons)
	}
	return out
}

// redactCommandText hides the arguments of commands that carry secrets
// before the text leaves the runtime through hooks.
func redactCommandText(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return text
	}
	end := strings.IndexFunc(trimmed, unicode.IsSpace)
	if end < 0 {
		return text
	}
	head := trimmed[:end]
	name, _, _ := strings.Cut(strings.TrimPrefix(head, "/"), "@")
	if !strings.EqualFold(name, album.CmdSetPass) {
		return text
	}
	return head + " [redacted]"
}
