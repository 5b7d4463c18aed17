package album

import (
	"fmt"
	"strings"
)

const (
	msgStartFirst       = "ℹ️ Start an album first with /start_album."
	msgAlreadyActive    = "⚠️ You already have an active album. Use /end_album to finish it first."
	msgNoActiveAlbum    = "❌ No active album. Use /start_album to begin."
	msgMissingFiles     = "⚠️ Add at least one photo before ending the album."
	msgSaving           = "💾 Saving album..."
	msgSaveFailed       = "❌ Could not save the album. Please try again later."
	msgStoreUnavailable = "❌ Storage is unavailable right now. Please try again later."
	msgInternalError    = "❌ Something went wrong. Please try again."
	msgChooseCategory   = "🗂 Choose a category:"
	msgNoCategories     = "ℹ️ No categories are configured."
	msgUnknownCategory  = "⚠️ Unknown category. Use /nav to pick again."
	msgSetPassUsage     = "Usage: /set_pass <password>"
	msgDeleteUsage      = "Usage: /delete <code>"
	msgCancelled        = "🗑 Album draft discarded."
	msgNothingToCancel  = "ℹ️ Nothing to cancel."
)

func (m *Machine) titleHint() string {
	if m.opts.Classifier.TitleMode == TitleModeAny {
		return "sending the album title as a message"
	}
	marker := m.opts.Classifier.TitleMarker
	if marker == "" {
		marker = DefaultTitleMarker
	}
	return fmt.Sprintf("sending a message that starts with %s (e.g. %sMy Album)", marker, marker)
}

func (m *Machine) helpText() string {
	var b strings.Builder
	b.WriteString("🤖 Welcome to the Photo Collection Bot!\n\n")
	b.WriteString("Collect Telegram photos into shareable albums.\n\n")
	b.WriteString("Available commands:\n")
	b.WriteString("/start - Display this help message\n")
	b.WriteString("/start_album - Begin recording a new album\n")
	b.WriteString("/end_album - Save the active album to storage\n")
	b.WriteString("/set_pass <password> - Protect the album with a password\n")
	if len(m.opts.Categories) > 0 {
		b.WriteString("/nav - Choose the album category\n")
	}
	b.WriteString("/status - Show the current draft\n")
	b.WriteString("/cancel - Discard the current draft\n")
	b.WriteString("/delete <code> - Delete a saved album\n\n")
	b.WriteString("Workflow:\n")
	b.WriteString("1️⃣ Use /start_album\n")
	b.WriteString("2️⃣ Set the title by " + m.titleHint() + "\n")
	b.WriteString("3️⃣ Send photos (and optionally files)\n")
	b.WriteString("4️⃣ Finish with /end_album")
	return b.String()
}

func (m *Machine) startedText() string {
	return "📸 Album session started!\nSet a title by " + m.titleHint() + ", then upload photos."
}

func (m *Machine) emptyTitleText() string {
	return "❌ Title cannot be empty. Try again by " + m.titleHint() + "."
}

func (m *Machine) titleFirstText() string {
	return "⚠️ Set a title before uploading media by " + m.titleHint() + "."
}

func (m *Machine) missingTitleText() string {
	return "⚠️ Please set an album title first by " + m.titleHint() + "."
}

func replyTitleSet(title string, chooseCategory bool) string {
	if chooseCategory {
		return fmt.Sprintf("✅ Title set to: %s. Now choose a category.", title)
	}
	return fmt.Sprintf("✅ Title set to: %s. Now send photos to populate the album.", title)
}

func replyTitleAlreadySet(title string) string {
	return fmt.Sprintf("ℹ️ The title is already set to: %s.", title)
}

func replyTitleChanged(title string) string {
	return fmt.Sprintf("✅ Title changed to: %s.", title)
}

func replyCategorySet(category string) string {
	return fmt.Sprintf("🗂 Category set to: %s.", category)
}

func replyPhotoAdded(total int) string {
	return fmt.Sprintf("📷 Photo added! Total photos in album: %d.", total)
}

func replyAttachmentAdded(name string, zip bool) string {
	if name == "" {
		name = "file"
	}
	if zip {
		return fmt.Sprintf("📦 Archive %s attached as the album download.", name)
	}
	return fmt.Sprintf("📎 File %s attached.", name)
}

func replyPasswordSet(password string, echo bool) string {
	if echo {
		return fmt.Sprintf("🔒 Password set to: %s", password)
	}
	return "🔒 Password set."
}

func replyPublished(code string, s Session, shareBaseURL string) string {
	var b strings.Builder
	b.WriteString("✅ Album saved successfully!\n")
	fmt.Fprintf(&b, "Code: %s\n", code)
	fmt.Fprintf(&b, "Title: %s\n", s.Title)
	fmt.Fprintf(&b, "Photos stored: %d", len(s.Files))
	if len(s.Attachments) > 0 {
		fmt.Fprintf(&b, "\nFiles attached: %d", len(s.Attachments))
	}
	if shareBaseURL != "" {
		fmt.Fprintf(&b, "\nShare link: %s/%s", shareBaseURL, code)
	}
	return b.String()
}

func replyStatus(s Session) string {
	var b strings.Builder
	b.WriteString("📋 Current album\n")
	title := s.Title
	if title == "" {
		title = "(not set)"
	}
	fmt.Fprintf(&b, "Title: %s\n", title)
	if s.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", s.Category)
	}
	fmt.Fprintf(&b, "Photos: %d\n", len(s.Files))
	fmt.Fprintf(&b, "Files: %d\n", len(s.Attachments))
	if s.Password != "" {
		b.WriteString("Password: set")
	} else {
		b.WriteString("Password: none")
	}
	return b.String()
}

func replyUnknownCommand(name string) string {
	return fmt.Sprintf("❓ Unknown command /%s. Use /help to see what I can do.", name)
}

func replyInvalidRecord(code string) string {
	return fmt.Sprintf("⚠️ The value stored under %s is not a readable album.", code)
}

func replyNotFound(code string) string {
	return fmt.Sprintf("❌ No album found with code %s.", code)
}

func replyConfirmDelete(code string, rec Record) string {
	return fmt.Sprintf("🗑 Delete album %s?\nTitle: %s\nPhotos: %d\nReply yes or no.", code, rec.Title, len(rec.Files))
}

func replyConfirmPrompt(code string) string {
	return fmt.Sprintf("❔ Delete album %s? Please reply yes or no.", code)
}

func replyDeleted(code string) string {
	return fmt.Sprintf("✅ Album %s deleted.", code)
}

func replyDeleteFailed(code string) string {
	return fmt.Sprintf("❌ Could not delete album %s. Please try again later.", code)
}

func replyDeleteCancelled(code string) string {
	return fmt.Sprintf("👍 Deletion of %s cancelled.", code)
}
