package album

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CmdStart      = "start"
	CmdHelp       = "help"
	CmdStartAlbum = "start_album"
	CmdEndAlbum   = "end_album"
	CmdSetPass    = "set_pass"
	CmdDelete     = "delete"
	CmdNav        = "nav"
	CmdStatus     = "status"
	CmdCancel     = "cancel"
)

type Button struct {
	Text string
	Data string
}

// Reply is one outbound chat message. Keyboard rows become inline buttons.
type Reply struct {
	Text     string
	Keyboard [][]Button
}

type MachineOptions struct {
	Classifier              Classifier
	Categories              []string
	DefaultCategory         string
	ChooseCategory          bool
	AllowRetitle            bool
	RequireTitleBeforeMedia bool
	ShareBaseURL            string
	EchoPassword            bool
	Logger                  *slog.Logger
	// Progress, when set, receives interim replies (such as "saving") while
	// Handle is still running.
	Progress func(ctx context.Context, ev Event, r Reply)
	// ErrorText renders a failure cause for a chat reply. Nil keeps
	// failure replies generic.
	ErrorText func(error) string
	Now       func() time.Time
	NewID     func() string
}

// Machine is the only place that changes drafts. Handle holds the sender's
// registry lock for the whole event, including any store calls it makes.
type Machine struct {
	reg    *Registry
	pub    *Publisher
	opts   MachineOptions
	logger *slog.Logger
}

func NewMachine(reg *Registry, pub *Publisher, opts MachineOptions) *Machine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newSessionID
	}
	if opts.Classifier.TitleMode == "" {
		opts.Classifier.TitleMode = TitleModeMarker
	}
	opts.ShareBaseURL = strings.TrimRight(strings.TrimSpace(opts.ShareBaseURL), "/")
	return &Machine{reg: reg, pub: pub, opts: opts, logger: opts.Logger}
}

func (m *Machine) Registry() *Registry {
	return m.reg
}

func (m *Machine) Handle(ctx context.Context, ev Event) []Reply {
	if ev.UserID == 0 {
		return nil
	}
	unlock := m.reg.Lock(ev.UserID)
	defer unlock()

	view := m.reg.View(ev.UserID)
	intent := m.opts.Classifier.Classify(ev, view)
	m.logger.Debug("album_event_classified",
		"user_id", ev.UserID,
		"message_id", ev.MessageID,
		"intent", intent.Kind.String(),
		"state", view.State.String(),
		"pending", view.HasPending,
	)

	switch intent.Kind {
	case IntentConfirmYes:
		return m.confirmDelete(ctx, ev.UserID)
	case IntentConfirmNo:
		return m.cancelDelete(ev.UserID)
	case IntentConfirmUnclear:
		p, _ := m.reg.Pending(ev.UserID)
		return text(replyConfirmPrompt(p.Code))
	case IntentCommand:
		return m.command(ctx, ev, intent)
	case IntentCategoryChoice:
		return m.chooseCategory(ev.UserID, intent.Category)
	case IntentPhotoAdded:
		return m.addPhoto(ev.UserID, intent.Photo)
	case IntentDocumentAdded:
		return m.addDocument(ev.UserID, intent.Document)
	case IntentTitleText:
		return m.setTitle(ev.UserID, intent.Text)
	default:
		if intent.Reason == IgnoreNoSession {
			return text(msgStartFirst)
		}
		return nil
	}
}

func (m *Machine) command(ctx context.Context, ev Event, in Intent) []Reply {
	switch in.Command {
	case CmdStart, CmdHelp:
		return text(m.helpText())
	case CmdStartAlbum:
		return m.startAlbum(ev.UserID)
	case CmdEndAlbum:
		return m.endAlbum(ctx, ev)
	case CmdSetPass:
		return m.setPassword(ev.UserID, in.Args)
	case CmdDelete:
		return m.requestDelete(ctx, ev.UserID, in.Args)
	case CmdNav:
		return m.categoryPrompt(ev.UserID)
	case CmdStatus:
		return m.status(ev.UserID)
	case CmdCancel:
		return m.cancel(ev.UserID)
	default:
		return text(replyUnknownCommand(in.Command))
	}
}

func (m *Machine) startAlbum(user int64) []Reply {
	s := Session{
		ID:       m.opts.NewID(),
		State:    StateAwaitingTitle,
		Category: m.opts.DefaultCategory,
	}
	if err := m.reg.Create(user, s); err != nil {
		if errors.Is(err, ErrAlreadyActive) {
			return text(msgAlreadyActive)
		}
		return text(msgInternalError)
	}
	m.logger.Info("album_session_started", "user_id", user, "session_id", s.ID)
	return text(m.startedText())
}

func (m *Machine) setTitle(user int64, title string) []Reply {
	if title == "" {
		return text(m.emptyTitleText())
	}
	var (
		out     []Reply
		retitle bool
	)
	err := m.reg.Mutate(user, func(s *Session) error {
		if s.Title != "" {
			if !m.opts.AllowRetitle || s.HasMedia() {
				out = text(replyTitleAlreadySet(s.Title))
				return nil
			}
			retitle = true
		}
		s.Title = title
		if s.State != StateAwaitingTitle {
			out = text(replyTitleChanged(title))
			return nil
		}
		if m.opts.ChooseCategory && len(m.opts.Categories) > 0 {
			s.State = StateAwaitingCategory
			out = []Reply{{Text: replyTitleSet(title, true), Keyboard: m.categoryKeyboard()}}
			return nil
		}
		s.State = StateCollecting
		out = text(replyTitleSet(title, false))
		return nil
	})
	if err != nil {
		return m.sessionError(err)
	}
	if retitle {
		m.logger.Info("album_title_changed", "user_id", user)
	}
	return out
}

func (m *Machine) chooseCategory(user int64, idx int) []Reply {
	if idx < 0 || idx >= len(m.opts.Categories) {
		return text(msgUnknownCategory)
	}
	category := m.opts.Categories[idx]
	err := m.reg.Mutate(user, func(s *Session) error {
		s.Category = category
		if s.State == StateAwaitingCategory {
			s.State = StateCollecting
		}
		return nil
	})
	if err != nil {
		return m.sessionError(err)
	}
	return text(replyCategorySet(category))
}

func (m *Machine) categoryPrompt(user int64) []Reply {
	if _, ok := m.reg.Get(user); !ok {
		return text(msgNoActiveAlbum)
	}
	if len(m.opts.Categories) == 0 {
		return text(msgNoCategories)
	}
	return []Reply{{Text: msgChooseCategory, Keyboard: m.categoryKeyboard()}}
}

func (m *Machine) categoryKeyboard() [][]Button {
	rows := make([][]Button, 0, (len(m.opts.Categories)+1)/2)
	for i, name := range m.opts.Categories {
		b := Button{Text: name, Data: CategoryCallbackData(i)}
		if i%2 == 0 {
			rows = append(rows, []Button{b})
			continue
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], b)
	}
	return rows
}

func (m *Machine) addPhoto(user int64, ref string) []Reply {
	var count int
	var out []Reply
	err := m.reg.Mutate(user, func(s *Session) error {
		if m.opts.RequireTitleBeforeMedia && s.Title == "" {
			out = text(m.titleFirstText())
			return nil
		}
		s.AddPhoto(ref)
		count = len(s.Files)
		return nil
	})
	if err != nil {
		return m.sessionError(err)
	}
	if out != nil {
		return out
	}
	return text(replyPhotoAdded(count))
}

func (m *Machine) addDocument(user int64, a Attachment) []Reply {
	var (
		out       []Reply
		becameZip bool
	)
	err := m.reg.Mutate(user, func(s *Session) error {
		if m.opts.RequireTitleBeforeMedia && s.Title == "" {
			out = text(m.titleFirstText())
			return nil
		}
		becameZip = s.AddAttachment(a)
		return nil
	})
	if err != nil {
		return m.sessionError(err)
	}
	if out != nil {
		return out
	}
	return text(replyAttachmentAdded(a.FileName, becameZip))
}

func (m *Machine) setPassword(user int64, password string) []Reply {
	password = strings.TrimSpace(password)
	if _, ok := m.reg.Get(user); !ok {
		return text(msgNoActiveAlbum)
	}
	if password == "" {
		return text(msgSetPassUsage)
	}
	err := m.reg.Mutate(user, func(s *Session) error {
		s.Password = password
		return nil
	})
	if err != nil {
		return m.sessionError(err)
	}
	return text(replyPasswordSet(password, m.opts.EchoPassword))
}

func (m *Machine) endAlbum(ctx context.Context, ev Event) []Reply {
	s, ok := m.reg.Get(ev.UserID)
	if !ok {
		return text(msgNoActiveAlbum)
	}
	if err := s.Validate(); err != nil {
		return m.validationReply(err)
	}
	if m.opts.Progress != nil {
		m.opts.Progress(ctx, ev, Reply{Text: msgSaving})
	}
	code, err := m.pub.Publish(ctx, s)
	if err != nil {
		m.logger.Warn("album_publish_error", "user_id", ev.UserID, "session_id", s.ID, "error", err.Error())
		if errors.Is(err, ErrValidationFailed) {
			return m.validationReply(err)
		}
		return text(m.withCause(msgSaveFailed, err))
	}
	m.reg.Remove(ev.UserID)
	return text(replyPublished(code, s, m.opts.ShareBaseURL))
}

func (m *Machine) validationReply(err error) []Reply {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Missing == MissingTitle {
		return text(m.missingTitleText())
	}
	return text(msgMissingFiles)
}

func (m *Machine) requestDelete(ctx context.Context, user int64, args string) []Reply {
	code := strings.TrimSpace(args)
	if code == "" {
		return text(msgDeleteUsage)
	}
	if fields := strings.Fields(code); len(fields) > 0 {
		code = fields[0]
	}
	if _, ok := ParseCode(code); !ok {
		return text(replyNotFound(code))
	}
	rec, err := m.pub.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return text(replyNotFound(code))
		}
		if errors.Is(err, ErrInvalidRecord) {
			m.logger.Warn("album_record_invalid", "user_id", user, "code", code, "error", err.Error())
			return text(replyInvalidRecord(code))
		}
		m.logger.Warn("album_lookup_error", "user_id", user, "code", code, "error", err.Error())
		return text(m.withCause(msgStoreUnavailable, err))
	}
	m.reg.SetPending(PendingDeletion{
		UserID:    user,
		Code:      code,
		Title:     rec.Title,
		Photos:    len(rec.Files),
		CreatedAt: m.opts.Now(),
	})
	return text(replyConfirmDelete(code, rec))
}

func (m *Machine) confirmDelete(ctx context.Context, user int64) []Reply {
	p, ok := m.reg.TakePending(user)
	if !ok {
		return nil
	}
	if err := m.pub.Delete(ctx, user, p.Code); err != nil {
		m.logger.Warn("album_delete_error", "user_id", user, "code", p.Code, "error", err.Error())
		return text(m.withCause(replyDeleteFailed(p.Code), err))
	}
	return text(replyDeleted(p.Code))
}

func (m *Machine) cancelDelete(user int64) []Reply {
	p, ok := m.reg.TakePending(user)
	if !ok {
		return nil
	}
	return text(replyDeleteCancelled(p.Code))
}

func (m *Machine) status(user int64) []Reply {
	s, ok := m.reg.Get(user)
	p, pending := m.reg.Pending(user)
	if !ok && !pending {
		return text(msgNoActiveAlbum)
	}
	var b strings.Builder
	if ok {
		b.WriteString(replyStatus(s))
	}
	if pending {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(replyConfirmPrompt(p.Code))
	}
	return text(b.String())
}

func (m *Machine) cancel(user int64) []Reply {
	s, hadSession := m.reg.Get(user)
	m.reg.Remove(user)
	_, hadPending := m.reg.TakePending(user)
	if !hadSession && !hadPending {
		return text(msgNothingToCancel)
	}
	if hadSession {
		m.logger.Info("album_session_cancelled", "user_id", user, "session_id", s.ID, "photos", len(s.Files))
	}
	return text(msgCancelled)
}

func (m *Machine) sessionError(err error) []Reply {
	if errors.Is(err, ErrNoActiveSession) {
		return text(msgNoActiveAlbum)
	}
	m.logger.Error("album_session_error", "error", err.Error())
	return text(msgInternalError)
}

func (m *Machine) withCause(msg string, err error) string {
	if m.opts.ErrorText == nil || err == nil {
		return msg
	}
	cause := strings.TrimSpace(m.opts.ErrorText(err))
	if cause == "" {
		return msg
	}
	return msg + "\n" + cause
}

func text(s string) []Reply {
	return []Reply{{Text: s}}
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
