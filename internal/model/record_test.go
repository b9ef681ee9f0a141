package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/syncbridge/internal/syncid"
)

func TestRowSyncID(t *testing.T) {
	var r Row
	assert.Nil(t, r.SyncID())

	r.SetSyncID(syncid.ID{42, 7})
	assert.Equal(t, "42,7", r.EncodedID)
	assert.Equal(t, syncid.ID{42, 7}, r.SyncID())

	r.SetSyncID(nil)
	assert.Empty(t, r.EncodedID)
	assert.Nil(t, r.SyncID())
}

func TestParseAction(t *testing.T) {
	for name, want := range map[string]Action{
		"add": ActionAdd, "create": ActionAdd, "Update": ActionUpdate, " delete ": ActionDelete,
	} {
		got, err := ParseAction(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseAction("merge")
	assert.Error(t, err)

	assert.Equal(t, "delete", ActionDelete.String())
	assert.Equal(t, "action(9)", Action(9).String())
	assert.False(t, Action(3).Valid())
}

func TestChangeRecordMarshal(t *testing.T) {
	c := ChangeRecord{
		ObjectID:   syncid.ID{1, 2},
		RecordType: RecordTypeBookmark,
		Action:     ActionDelete,
		DeviceID:   syncid.ID{0},
		Payload:    json.RawMessage(`{"title":"x"}`),
	}
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"objectId":[1,2],"objectData":"bookmark","action":2,"deviceId":[0],"bookmark":{"title":"x"}}`, string(b))
}
