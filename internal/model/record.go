// Package model defines the persisted row and sync change-record types.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/syncbridge/internal/syncid"
)

// Row is one persisted record as the store sees it. Entity kinds keep their
// own fields in Payload; only EncodedID and CreatedAt are indexed.
type Row struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	EncodedID string          `json:"sync_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"-"`
}

// Record returns r. Entity types embed Row and expose it through this method.
func (r *Row) Record() *Row { return r }

// SyncID returns the decoded identifier, or nil if the row was never synced.
func (r *Row) SyncID() syncid.ID {
	if r.EncodedID == "" {
		return nil
	}
	return syncid.DecodeLossy(r.EncodedID)
}

// SetSyncID stores id in its encoded form. A nil or empty id clears it.
func (r *Row) SetSyncID(id syncid.ID) {
	r.EncodedID = syncid.Encode(id)
}

// Action is the operation a change record describes. Values match the
// numeric codes used on the wire.
type Action int

const (
	ActionAdd Action = iota
	ActionUpdate
	ActionDelete
)

var actionNames = [...]string{"add", "update", "delete"}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a >= ActionAdd && a <= ActionDelete
}

// ParseAction accepts the action name ("create" is an alias for "add").
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "create":
		return ActionAdd, nil
	case "update":
		return ActionUpdate, nil
	case "delete":
		return ActionDelete, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// RecordType tags which sync category a change belongs to.
type RecordType string

const (
	RecordTypeBookmark    RecordType = "bookmark"
	RecordTypeHistorySite RecordType = "historySite"
	RecordTypePreference  RecordType = "preference"
)

// ChangeRecord describes one create/update/delete event exchanged with the
// remote sync log. It is built, dispatched once, and discarded.
type ChangeRecord struct {
	ObjectID   syncid.ID
	RecordType RecordType
	Action     Action
	DeviceID   syncid.ID
	// Payload holds the kind-specific fields. On the wire it is nested under
	// a key named after RecordType.
	Payload json.RawMessage
}

// MarshalJSON writes the wire shape:
//
//	{"objectId":[..],"objectData":"bookmark","action":0,"deviceId":[..],"bookmark":{..}}
func (c ChangeRecord) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"objectId":   c.ObjectID,
		"objectData": c.RecordType,
		"action":     int(c.Action),
	}
	if c.DeviceID != nil {
		m["deviceId"] = c.DeviceID
	}
	if len(c.Payload) > 0 && c.RecordType != "" {
		m[string(c.RecordType)] = c.Payload
	}
	return json.Marshal(m)
}
