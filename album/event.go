package album

import "time"

// Event is one inbound chat event, already stripped of transport details.
type Event struct {
	UserID    int64
	ChatID    int64
	MessageID int64
	Text      string
	// Photos holds every size of one photo in ascending resolution.
	Photos       []PhotoSize
	Document     *Document
	CallbackID   string
	CallbackData string
	ReceivedAt   time.Time
}

type PhotoSize struct {
	FileID   string
	Width    int
	Height   int
	FileSize int64
}

type Document struct {
	FileID   string
	FileName string
	MimeType string
}

type IntentKind int

const (
	IntentIgnore IntentKind = iota
	IntentTitleText
	IntentCategoryChoice
	IntentConfirmYes
	IntentConfirmNo
	IntentConfirmUnclear
	IntentPhotoAdded
	IntentDocumentAdded
	IntentCommand
)

func (k IntentKind) String() string {
	switch k {
	case IntentTitleText:
		return "title_text"
	case IntentCategoryChoice:
		return "category_choice"
	case IntentConfirmYes:
		return "confirm_yes"
	case IntentConfirmNo:
		return "confirm_no"
	case IntentConfirmUnclear:
		return "confirm_unclear"
	case IntentPhotoAdded:
		return "photo_added"
	case IntentDocumentAdded:
		return "document_added"
	case IntentCommand:
		return "command"
	default:
		return "ignore"
	}
}

type IgnoreReason string

const (
	IgnoreUnmatched IgnoreReason = ""
	// IgnoreNoSession marks media sent without a live draft; the user is
	// told to start one.
	IgnoreNoSession IgnoreReason = "no_session"
)

type Intent struct {
	Kind     IntentKind
	Text     string
	Category int
	Photo    string
	Document Attachment
	Command  string
	Args     string
	Reason   IgnoreReason
}

// SessionView is what the classifier may know about the sender.
type SessionView struct {
	HasSession bool
	State      State
	HasPending bool
}
