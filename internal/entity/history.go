package entity

import (
	"encoding/json"
	"fmt"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// HistoryFields are the persisted history attributes.
type HistoryFields struct {
	Site Site `json:"site"`
}

// HistorySite is a visited page.
type HistorySite struct {
	model.Row
	HistoryFields
}

func (h *HistorySite) Title() string { return h.Site.Title }

func (h *HistorySite) URL() string { return h.Site.Location }

func (h *HistorySite) Payload() (json.RawMessage, error) {
	return json.Marshal(h.HistoryFields)
}

func (h *HistorySite) LoadPayload(raw json.RawMessage) error {
	h.HistoryFields = HistoryFields{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &h.HistoryFields); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	return nil
}

func (h *HistorySite) ToChangeRecord(deviceID syncid.ID, action model.Action) (model.ChangeRecord, error) {
	return changeRecord(&h.Row, model.RecordTypeHistorySite, deviceID, action, h.HistoryFields)
}

func (h *HistorySite) ApplyIncoming(c model.ChangeRecord) error {
	if len(c.Payload) == 0 {
		return nil
	}
	var in struct {
		Site *sitePatch `json:"site"`
	}
	if err := json.Unmarshal(c.Payload, &in); err != nil {
		return fmt.Errorf("decode history change: %w", err)
	}
	in.Site.apply(&h.Site)
	return nil
}
