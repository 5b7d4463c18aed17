package album

import (
	"regexp"
	"strconv"
	"strings"
)

type TitleMode string

const (
	// TitleModeMarker only treats text starting with the marker as a title.
	TitleModeMarker TitleMode = "marker"
	TitleModeAny    TitleMode = "any"

	DefaultTitleMarker = "#"

	categoryCallbackPrefix = "cat:"
)

var commandRE = regexp.MustCompile(`^/([A-Za-z0-9_]+)(?:@[A-Za-z0-9_]+)?(?:\s+([\s\S]*))?$`)

type Classifier struct {
	TitleMode   TitleMode
	TitleMarker string
}

func CategoryCallbackData(index int) string {
	return categoryCallbackPrefix + strconv.Itoa(index)
}

// Classify maps ev to exactly one Intent. Rules are checked in a fixed order
// and the first match wins: a pending yes/no beats commands, commands beat
// button taps and media, and title text is tried last.
func (c Classifier) Classify(ev Event, view SessionView) Intent {
	text := strings.TrimSpace(ev.Text)

	if view.HasPending && text != "" {
		switch strings.ToLower(text) {
		case "yes":
			return Intent{Kind: IntentConfirmYes}
		case "no":
			return Intent{Kind: IntentConfirmNo}
		}
	}

	if name, args, ok := parseCommand(text); ok {
		return Intent{Kind: IntentCommand, Command: name, Args: args}
	}

	if view.HasPending && text != "" {
		return Intent{Kind: IntentConfirmUnclear, Text: text}
	}

	if ev.CallbackData != "" {
		if idx, ok := parseCategoryCallback(ev.CallbackData); ok {
			return Intent{Kind: IntentCategoryChoice, Category: idx}
		}
		return Intent{Kind: IntentIgnore}
	}

	if len(ev.Photos) > 0 {
		if !view.HasSession {
			return Intent{Kind: IntentIgnore, Reason: IgnoreNoSession}
		}
		// Sizes arrive ascending; the last one is the full resolution.
		return Intent{Kind: IntentPhotoAdded, Photo: ev.Photos[len(ev.Photos)-1].FileID}
	}

	if ev.Document != nil {
		if !view.HasSession {
			return Intent{Kind: IntentIgnore, Reason: IgnoreNoSession}
		}
		return Intent{Kind: IntentDocumentAdded, Document: Attachment{
			FileID:   ev.Document.FileID,
			FileName: ev.Document.FileName,
			MimeType: ev.Document.MimeType,
		}}
	}

	if text != "" && view.HasSession {
		if title, ok := c.titleFrom(text); ok {
			return Intent{Kind: IntentTitleText, Text: title}
		}
	}
	return Intent{Kind: IntentIgnore}
}

func (c Classifier) titleFrom(text string) (string, bool) {
	if c.TitleMode == TitleModeAny {
		return text, true
	}
	marker := c.TitleMarker
	if marker == "" {
		marker = DefaultTitleMarker
	}
	if !strings.HasPrefix(text, marker) {
		return "", false
	}
	for strings.HasPrefix(text, marker) {
		text = strings.TrimPrefix(text, marker)
	}
	return strings.TrimSpace(text), true
}

func parseCommand(text string) (string, string, bool) {
	m := commandRE.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2]), true
}

func parseCategoryCallback(data string) (int, bool) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(data), categoryCallbackPrefix)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
