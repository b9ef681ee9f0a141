// Package entity defines the concrete record kinds that take part in sync.
package entity

import (
	"encoding/json"
	"fmt"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/syncable"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// Website is implemented by records that present a page.
type Website interface {
	Title() string
	URL() string
}

// Site is the page description shared by bookmarks and history entries.
type Site struct {
	Location         string `json:"location"`
	Title            string `json:"title,omitempty"`
	CustomTitle      string `json:"customTitle,omitempty"`
	LastAccessedTime int64  `json:"lastAccessedTime,omitempty"`
	CreationTime     int64  `json:"creationTime,omitempty"`
}

// sitePatch carries only the site fields present in an inbound change.
type sitePatch struct {
	Location         *string `json:"location"`
	Title            *string `json:"title"`
	CustomTitle      *string `json:"customTitle"`
	LastAccessedTime *int64  `json:"lastAccessedTime"`
	CreationTime     *int64  `json:"creationTime"`
}

func (p *sitePatch) apply(s *Site) {
	if p == nil {
		return
	}
	if p.Location != nil {
		s.Location = *p.Location
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.CustomTitle != nil {
		s.CustomTitle = *p.CustomTitle
	}
	if p.LastAccessedTime != nil {
		s.LastAccessedTime = *p.LastAccessedTime
	}
	if p.CreationTime != nil {
		s.CreationTime = *p.CreationTime
	}
}

func changeRecord(r *model.Row, rt model.RecordType, deviceID syncid.ID, action model.Action, fields any) (model.ChangeRecord, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return model.ChangeRecord{}, fmt.Errorf("encode %s: %w", rt, err)
	}
	return model.ChangeRecord{
		ObjectID:   r.SyncID(),
		RecordType: rt,
		Action:     action,
		DeviceID:   deviceID.Clone(),
		Payload:    payload,
	}, nil
}

// Kinds

var BookmarkKind = syncable.Kind[*Bookmark]{
	Name:       "bookmark",
	RecordType: model.RecordTypeBookmark,
	New:        func() *Bookmark { return &Bookmark{} },
}

var HistoryKind = syncable.Kind[*HistorySite]{
	Name:       "history",
	RecordType: model.RecordTypeHistorySite,
	New:        func() *HistorySite { return &HistorySite{} },
}

// KindNames returns the entity names to register with the store.
func KindNames() []string {
	return []string{BookmarkKind.Name, HistoryKind.Name}
}
