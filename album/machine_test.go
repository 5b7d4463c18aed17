package album

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quailyquaily/albumbot/kvstore"
)

const testUser int64 = 42

func newTestMachine(t *testing.T, opts MachineOptions) (*Machine, *kvstore.Memory) {
	t.Helper()
	store := kvstore.NewMemory()
	opts.Logger = discardLogger()
	m := NewMachine(NewRegistry(), newTestPublisher(t, store, nil), opts)
	return m, store
}

func say(m *Machine, text string) []Reply {
	return m.Handle(context.Background(), Event{UserID: testUser, ChatID: testUser, Text: text})
}

func sendPhoto(m *Machine, ref string) []Reply {
	return m.Handle(context.Background(), Event{UserID: testUser, Photos: []PhotoSize{{FileID: ref + "-thumb"}, {FileID: ref}}})
}

func sendDocument(m *Machine, ref, name string) []Reply {
	return m.Handle(context.Background(), Event{UserID: testUser, Document: &Document{FileID: ref, FileName: name, MimeType: "application/zip"}})
}

func replyText(replies []Reply) string {
	parts := make([]string, 0, len(replies))
	for _, r := range replies {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n")
}

func mustContain(t *testing.T, replies []Reply, want string) {
	t.Helper()
	if got := replyText(replies); !strings.Contains(got, want) {
		t.Fatalf("reply = %q, want it to contain %q", got, want)
	}
}

func TestMachineEndToEnd(t *testing.T) {
	t.Parallel()

	var progress []string
	m, store := newTestMachine(t, MachineOptions{
		ShareBaseURL: "https://albums.example.com/",
		Progress: func(_ context.Context, _ Event, r Reply) {
			progress = append(progress, r.Text)
		},
	})

	mustContain(t, say(m, "/start_album"), "Album session started")
	mustContain(t, say(m, "#Sample"), "Title set to: Sample")
	mustContain(t, sendPhoto(m, "p1"), "Total photos in album: 1")
	mustContain(t, sendPhoto(m, "p2"), "Total photos in album: 2")
	mustContain(t, sendDocument(m, "d1", "bundle.zip"), "bundle.zip")

	out := say(m, "/end_album")
	mustContain(t, out, "Code: a01")
	mustContain(t, out, "Share link: https://albums.example.com/a01")
	if len(progress) != 1 || progress[0] != msgSaving {
		t.Fatalf("progress = %v, want saving notice", progress)
	}
	if _, ok := m.Registry().Get(testUser); ok {
		t.Fatalf("session still live after publish")
	}

	raw, err := store.Get(context.Background(), "a01")
	if err != nil {
		t.Fatalf("Get(a01) error = %v", err)
	}
	rec, err := DecodeRecord(raw)
	if err != nil {
		t.Fatalf("DecodeRecord() error = %v", err)
	}
	bundle := Attachment{FileID: "d1", FileName: "bundle.zip", MimeType: "application/zip"}
	if rec.Title != "Sample" {
		t.Fatalf("record title = %q, want Sample", rec.Title)
	}
	if len(rec.Files) != 2 || rec.Files[0] != "p1" || rec.Files[1] != "p2" {
		t.Fatalf("record files = %v, want [p1 p2]", rec.Files)
	}
	if len(rec.Attachments) != 1 || rec.Attachments[0] != bundle {
		t.Fatalf("record attachments = %+v, want [%+v]", rec.Attachments, bundle)
	}
	if rec.Zip == nil || *rec.Zip != bundle {
		t.Fatalf("record zip = %+v, want %+v", rec.Zip, bundle)
	}
	if rec.Password != nil || rec.Category != nil {
		t.Fatalf("record password/category = %v/%v, want absent", rec.Password, rec.Category)
	}
}

func TestMachineEndAlbumValidation(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t, MachineOptions{})

	mustContain(t, say(m, "/end_album"), "No active album")
	say(m, "/start_album")
	mustContain(t, say(m, "/end_album"), "set an album title first")
	say(m, "#Title")
	mustContain(t, say(m, "/end_album"), "Add at least one photo")
	if _, ok := m.Registry().Get(testUser); !ok {
		t.Fatalf("failed finalize removed the session")
	}
	if store.Len() != 0 {
		t.Fatalf("store keys = %d, want 0", store.Len())
	}
}

func TestMachineSessionRules(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t, MachineOptions{RequireTitleBeforeMedia: true})

	mustContain(t, sendPhoto(m, "p0"), "Start an album first")
	say(m, "/start_album")
	mustContain(t, say(m, "/start_album"), "already have an active album")
	mustContain(t, sendPhoto(m, "p0"), "Set a title before uploading")
	mustContain(t, say(m, "#"), "Title cannot be empty")
	say(m, "#First")
	mustContain(t, say(m, "#Second"), "already set to: First")
	if out := say(m, "just chatting"); len(out) != 0 {
		t.Fatalf("plain text reply = %v, want none", out)
	}

	sendDocument(m, "z1", "first.ZIP")
	sendDocument(m, "z2", "second.7z")
	sendDocument(m, "n1", "notes.txt")
	s, _ := m.Registry().Get(testUser)
	if s.Zip == nil || s.Zip.FileID != "z1" {
		t.Fatalf("zip = %+v, want z1", s.Zip)
	}
	if len(s.Attachments) != 3 {
		t.Fatalf("attachments = %d, want 3", len(s.Attachments))
	}
	if s.Title != "First" {
		t.Fatalf("title = %q, want First", s.Title)
	}
}

func TestMachineRetitleBeforeMedia(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t, MachineOptions{AllowRetitle: true})
	say(m, "/start_album")
	say(m, "#Draft")
	mustContain(t, say(m, "#Final"), "Title changed to: Final")
	sendPhoto(m, "p1")
	mustContain(t, say(m, "#Later"), "already set to: Final")
}

func TestMachinePasswordReply(t *testing.T) {
	t.Parallel()

	masked, _ := newTestMachine(t, MachineOptions{})
	mustContain(t, say(masked, "/set_pass hunter2"), "No active album")
	say(masked, "/start_album")
	mustContain(t, say(masked, "/set_pass"), "Usage: /set_pass")
	out := say(masked, "/set_pass hunter2")
	if strings.Contains(replyText(out), "hunter2") {
		t.Fatalf("reply %q echoes the password", replyText(out))
	}
	say(masked, "/set_pass final")
	s, _ := masked.Registry().Get(testUser)
	if s.Password != "final" {
		t.Fatalf("password = %q, want last write", s.Password)
	}

	echo, _ := newTestMachine(t, MachineOptions{EchoPassword: true})
	say(echo, "/start_album")
	mustContain(t, say(echo, "/set_pass hunter2"), "hunter2")
}

func TestMachineCategoryFlow(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t, MachineOptions{
		Categories:      []string{"travel", "family", "work"},
		DefaultCategory: "misc",
		ChooseCategory:  true,
	})
	say(m, "/start_album")
	out := say(m, "#Trip")
	if len(out) != 1 || len(out[0].Keyboard) != 2 {
		t.Fatalf("title reply keyboard = %+v, want 2 rows", out)
	}
	if got := out[0].Keyboard[0][1].Data; got != "cat:1" {
		t.Fatalf("button data = %q, want cat:1", got)
	}
	if s, _ := m.Registry().Get(testUser); s.State != StateAwaitingCategory || s.Category != "misc" {
		t.Fatalf("session = %v/%q, want awaiting_category/misc", s.State, s.Category)
	}

	tap := func(data string) []Reply {
		return m.Handle(context.Background(), Event{UserID: testUser, CallbackID: "cb", CallbackData: data})
	}
	mustContain(t, tap("cat:9"), "Unknown category")
	mustContain(t, tap("cat:0"), "Category set to: travel")
	if s, _ := m.Registry().Get(testUser); s.State != StateCollecting {
		t.Fatalf("state = %v, want collecting", s.State)
	}
	mustContain(t, say(m, "/nav"), "Choose a category")
	tap("cat:2")
	sendPhoto(m, "p1")
	say(m, "/end_album")

	raw, _ := store.Get(context.Background(), "a01")
	rec, _ := DecodeRecord(raw)
	if rec.Category == nil || *rec.Category != "work" {
		t.Fatalf("record category = %v, want work", rec.Category)
	}
}

func TestMachineDeleteFlow(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t, MachineOptions{})
	store.Set("a03", []byte(`{"title":"Old","files":["x","y"]}`))

	mustContain(t, say(m, "/delete a99"), "No album found with code a99")
	if _, ok := m.Registry().Pending(testUser); ok {
		t.Fatalf("unknown code created a pending deletion")
	}
	mustContain(t, say(m, "/delete _album_sequence"), "No album found")
	mustContain(t, say(m, "/delete"), "Usage: /delete")

	store.Set("a04", []byte("not json"))
	out := say(m, "/delete a04")
	mustContain(t, out, "a04 is not a readable album")
	if strings.Contains(replyText(out), "unavailable") {
		t.Fatalf("reply = %q, want no storage-unavailable text for a bad record", replyText(out))
	}
	if _, ok := m.Registry().Pending(testUser); ok {
		t.Fatalf("unreadable record created a pending deletion")
	}

	out = say(m, "/delete a03")
	mustContain(t, out, "Title: Old")
	mustContain(t, out, "Photos: 2")
	mustContain(t, say(m, "maybe later"), "reply yes or no")
	if _, ok := m.Registry().Pending(testUser); !ok {
		t.Fatalf("unclear reply cleared the pending deletion")
	}
	mustContain(t, say(m, "No"), "cancelled")
	if _, ok := m.Registry().Pending(testUser); ok {
		t.Fatalf("pending deletion left after no")
	}
	if _, err := store.Get(context.Background(), "a03"); err != nil {
		t.Fatalf("record removed after no, err = %v", err)
	}

	say(m, "/delete a03")
	mustContain(t, say(m, " yes "), "Album a03 deleted")
	if _, ok := m.Registry().Pending(testUser); ok {
		t.Fatalf("pending deletion left after yes")
	}
	if _, err := store.Get(context.Background(), "a03"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("record still present after yes, err = %v", err)
	}
}

func TestMachineDeleteFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	store := kvstore.NewMemory()
	store.Set("a01", []byte(`{"title":"t","files":["p"]}`))
	m := NewMachine(NewRegistry(), newTestPublisher(t, store, nil), MachineOptions{
		Logger:    discardLogger(),
		ErrorText: func(err error) string { return "cause: " + err.Error() },
	})
	say(m, "/delete a01")
	m.pub.store = &failingDeleteStore{Memory: store}

	out := say(m, "yes")
	mustContain(t, out, "Could not delete album a01")
	mustContain(t, out, "cause:")
	if _, err := store.Get(context.Background(), "a01"); err != nil {
		t.Fatalf("record missing after failed delete, err = %v", err)
	}
}

type failingDeleteStore struct {
	*kvstore.Memory
}

func (f *failingDeleteStore) Delete(context.Context, string) error {
	return errors.New("timeout")
}

func TestMachineStatusAndCancel(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t, MachineOptions{})
	store.Set("a01", []byte(`{"title":"t","files":["p"]}`))

	mustContain(t, say(m, "/status"), "No active album")
	mustContain(t, say(m, "/cancel"), "Nothing to cancel")

	say(m, "/start_album")
	say(m, "#Holiday")
	sendPhoto(m, "p1")
	out := say(m, "/status")
	mustContain(t, out, "Title: Holiday")
	mustContain(t, out, "Photos: 1")
	mustContain(t, out, "Password: none")

	say(m, "/delete a01")
	mustContain(t, say(m, "/cancel"), "discarded")
	if v := m.Registry().View(testUser); v.HasSession || v.HasPending {
		t.Fatalf("View() after cancel = %+v, want empty", v)
	}
	mustContain(t, say(m, "/start_album"), "Album session started")
}

func TestMachineHelpAndUnknown(t *testing.T) {
	t.Parallel()

	m, _ := newTestMachine(t, MachineOptions{})
	mustContain(t, say(m, "/start"), "/start_album")
	mustContain(t, say(m, "/help"), "/end_album")
	mustContain(t, say(m, "/bogus"), "Unknown command /bogus")
	if out := m.Handle(context.Background(), Event{Text: "/start"}); out != nil {
		t.Fatalf("Handle() without user = %v, want nil", out)
	}
}

func TestMachinePublishFailureKeepsSession(t *testing.T) {
	t.Parallel()

	m, store := newTestMachine(t, MachineOptions{})
	say(m, "/start_album")
	say(m, "#T")
	sendPhoto(m, "p1")

	store.BeforePut = func(key string, _ []byte) error {
		if key != DefaultCounterKey {
			return errors.New("unavailable")
		}
		return nil
	}
	mustContain(t, say(m, "/end_album"), "Could not save the album")
	if _, ok := m.Registry().Get(testUser); !ok {
		t.Fatalf("session removed after failed publish")
	}

	store.BeforePut = nil
	mustContain(t, say(m, "/end_album"), "Code: a02")
}
