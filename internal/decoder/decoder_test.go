package decoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/syncid"
)

func TestParseChangeRecord(t *testing.T) {
	c, err := ParseChangeRecord([]byte(`{
		"objectId": [42, 7],
		"objectData": "bookmark",
		"action": 1,
		"deviceId": [3],
		"bookmark": {"site": {"title": "Go"}, "isFolder": false}
	}`))
	require.NoError(t, err)
	assert.Equal(t, syncid.ID{42, 7}, c.ObjectID)
	assert.Equal(t, model.RecordTypeBookmark, c.RecordType)
	assert.Equal(t, model.ActionUpdate, c.Action)
	assert.Equal(t, syncid.ID{3}, c.DeviceID)
	assert.JSONEq(t, `{"site":{"title":"Go"},"isFolder":false}`, string(c.Payload))
}

func TestParseChangeRecordActions(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Action
	}{
		{`"delete"`, model.ActionDelete},
		{`"create"`, model.ActionAdd},
		{`2`, model.ActionDelete},
		{`null`, model.ActionAdd},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, err := ParseChangeRecord([]byte(`{"objectId":[1],"action":` + tt.raw + `}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Action)
		})
	}

	for _, bad := range []string{`7`, `"purge"`, `{}`} {
		_, err := ParseChangeRecord([]byte(`{"objectId":[1],"action":` + bad + `}`))
		assert.ErrorIs(t, err, ErrUnknownAction, bad)
	}
}

func TestParseChangeRecordLenientIdentifier(t *testing.T) {
	c, err := ParseChangeRecord([]byte(`{"objectId":[5,"x",-1,6],"objectData":"historySite"}`))
	require.NoError(t, err)
	assert.Equal(t, syncid.ID{5, 6}, c.ObjectID)
	assert.Nil(t, c.DeviceID)
	assert.Nil(t, c.Payload)

	for _, raw := range []string{`{}`, `{"objectId":[]}`, `{"objectId":"1,2"}`, `{"objectId":["a"]}`} {
		_, err := ParseChangeRecord([]byte(raw))
		assert.ErrorIs(t, err, ErrMissingObjectID, raw)
	}

	_, err = ParseChangeRecord([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseStreamArray(t *testing.T) {
	recs, err := ParseStream(strings.NewReader(`
	[
		{"objectId":[1],"objectData":"bookmark","action":0,"bookmark":{"site":{"title":"a"}}},
		{"objectId":[2],"objectData":"bookmark","action":"delete"}
	]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.ActionDelete, recs[1].Action)
}

func TestParseStreamLines(t *testing.T) {
	in := `{"objectId":[1],"objectData":"bookmark"}

{"objectId":[2],"objectData":"bookmark"}
{"objectId":[],"objectData":"bookmark"}
`
	recs, err := ParseStream(strings.NewReader(in))
	require.Error(t, err)
	assert.Len(t, recs, 2)

	var re *RecordError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Index)
	assert.ErrorIs(t, err, ErrMissingObjectID)

	recs, err = ParseStream(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}
