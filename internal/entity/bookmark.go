package entity

import (
	"encoding/json"
	"fmt"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// BookmarkFields are the persisted bookmark attributes.
type BookmarkFields struct {
	Site           Site      `json:"site"`
	IsFolder       bool      `json:"isFolder"`
	ParentFolderID syncid.ID `json:"parentFolderObjectId,omitempty"`
}

// Bookmark is a saved page or folder.
type Bookmark struct {
	model.Row
	BookmarkFields
}

func (b *Bookmark) Title() string {
	if b.Site.CustomTitle != "" {
		return b.Site.CustomTitle
	}
	return b.Site.Title
}

func (b *Bookmark) URL() string { return b.Site.Location }

func (b *Bookmark) Payload() (json.RawMessage, error) {
	return json.Marshal(b.BookmarkFields)
}

func (b *Bookmark) LoadPayload(raw json.RawMessage) error {
	b.BookmarkFields = BookmarkFields{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &b.BookmarkFields); err != nil {
		return fmt.Errorf("decode bookmark: %w", err)
	}
	return nil
}

func (b *Bookmark) ToChangeRecord(deviceID syncid.ID, action model.Action) (model.ChangeRecord, error) {
	return changeRecord(&b.Row, model.RecordTypeBookmark, deviceID, action, b.BookmarkFields)
}

// ApplyIncoming copies the fields present in c's payload. Absent fields
// keep their current values.
func (b *Bookmark) ApplyIncoming(c model.ChangeRecord) error {
	if len(c.Payload) == 0 {
		return nil
	}
	var in struct {
		Site           *sitePatch `json:"site"`
		IsFolder       *bool      `json:"isFolder"`
		ParentFolderID *syncid.ID `json:"parentFolderObjectId"`
	}
	if err := json.Unmarshal(c.Payload, &in); err != nil {
		return fmt.Errorf("decode bookmark change: %w", err)
	}
	in.Site.apply(&b.Site)
	if in.IsFolder != nil {
		b.IsFolder = *in.IsFolder
	}
	if in.ParentFolderID != nil {
		b.ParentFolderID = in.ParentFolderID.Clone()
	}
	return nil
}
