package album

import (
	"path"
	"strings"
	"time"
)

type State int

const (
	StateAwaitingTitle State = iota + 1
	StateAwaitingCategory
	StateCollecting
)

func (s State) String() string {
	switch s {
	case StateAwaitingTitle:
		return "awaiting_title"
	case StateAwaitingCategory:
		return "awaiting_category"
	case StateCollecting:
		return "collecting"
	default:
		return "absent"
	}
}

type Attachment struct {
	FileID   string `json:"file_id" yaml:"file_id"`
	FileName string `json:"file_name" yaml:"file_name"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
}

// Session is one user's in-progress draft. It only lives in process memory.
type Session struct {
	ID          string
	UserID      int64
	State       State
	Title       string
	Category    string
	Files       []string
	Attachments []Attachment
	Zip         *Attachment
	Password    string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// PendingDeletion waits for a yes/no reply before Code is removed.
type PendingDeletion struct {
	UserID    int64
	Code      string
	Title     string
	Photos    int
	CreatedAt time.Time
}

func (s *Session) AddPhoto(ref string) {
	s.Files = append(s.Files, ref)
}

// AddAttachment appends a and claims the zip slot when a is the first archive.
func (s *Session) AddAttachment(a Attachment) (becameZip bool) {
	s.Attachments = append(s.Attachments, a)
	if s.Zip == nil && IsArchiveName(a.FileName) {
		zip := a
		s.Zip = &zip
		return true
	}
	return false
}

func (s *Session) HasMedia() bool {
	return len(s.Files) > 0 || len(s.Attachments) > 0
}

// Validate reports the first unmet finalize precondition, title before files.
func (s *Session) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return &ValidationError{Missing: MissingTitle}
	}
	if len(s.Files) == 0 {
		return &ValidationError{Missing: MissingFiles}
	}
	return nil
}

func (s Session) clone() Session {
	out := s
	out.Files = append([]string(nil), s.Files...)
	out.Attachments = append([]Attachment(nil), s.Attachments...)
	if s.Zip != nil {
		zip := *s.Zip
		out.Zip = &zip
	}
	return out
}

var archiveExts = map[string]bool{
	".zip": true,
	".rar": true,
	".7z":  true,
}

func IsArchiveName(name string) bool {
	return archiveExts[strings.ToLower(path.Ext(strings.TrimSpace(name)))]
}
