package album

import (
	"encoding/json"
	"fmt"
)

// Record is the persisted album format consumed by the web renderer. Optional
// scalars are pointers so that an absent field never reads back as "".
// A nil Attachments slice means the field was absent (older records).
type Record struct {
	Title       string       `json:"title" yaml:"title"`
	Category    *string      `json:"category,omitempty" yaml:"category,omitempty"`
	Files       []string     `json:"files" yaml:"files"`
	Attachments []Attachment `json:"attachments" yaml:"attachments,omitempty"`
	Zip         *Attachment  `json:"zip,omitempty" yaml:"zip,omitempty"`
	Password    *string      `json:"password,omitempty" yaml:"password,omitempty"`
}

// Snapshot copies the content fields of s at finalize time.
func Snapshot(s Session) Record {
	rec := Record{
		Title:       s.Title,
		Files:       append([]string{}, s.Files...),
		Attachments: append([]Attachment{}, s.Attachments...),
	}
	if s.Category != "" {
		category := s.Category
		rec.Category = &category
	}
	if s.Zip != nil {
		zip := *s.Zip
		rec.Zip = &zip
	}
	if s.Password != "" {
		password := s.Password
		rec.Password = &password
	}
	return rec
}

func EncodeRecord(rec Record) ([]byte, error) {
	if rec.Files == nil {
		rec.Files = []string{}
	}
	return json.Marshal(rec)
}

func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}
