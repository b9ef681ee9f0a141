package synclog

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/syncid"
)

func deleteRecord(id ...int) model.ChangeRecord {
	return model.ChangeRecord{
		ObjectID: syncid.ID(id),
		DeviceID: syncid.ID{0},
		Payload:  json.RawMessage(`{"site":{"location":"https://go.dev","title":"Go"},"isFolder":false}`),
	}
}

func TestOutboxSendPendingAck(t *testing.T) {
	ctx := context.Background()
	o, err := OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"), nil)
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.Send(ctx, model.RecordTypeBookmark, model.ActionDelete, []model.ChangeRecord{deleteRecord(42, 7), deleteRecord(3)}))
	require.NoError(t, o.Send(ctx, model.RecordTypeHistorySite, model.ActionAdd, []model.ChangeRecord{deleteRecord(9)}))
	require.NoError(t, o.Send(ctx, model.RecordTypeBookmark, model.ActionAdd, nil))

	pending, err := o.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	first := pending[0]
	assert.Equal(t, syncid.ID{42, 7}, first.ObjectID)
	assert.Equal(t, "delete", first.Action)
	assert.Equal(t, model.RecordTypeBookmark, first.RecordType)
	assert.Equal(t, first.BatchID, pending[1].BatchID)
	assert.NotEqual(t, first.BatchID, pending[2].BatchID)

	parsed, err := uuid.Parse(first.BatchID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	var wire map[string]any
	require.NoError(t, json.Unmarshal(first.Record, &wire))
	assert.Equal(t, float64(2), wire["action"])
	assert.Equal(t, "bookmark", wire["objectData"])

	limited, err := o.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := o.Ack(ctx, pending[1].Seq)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = o.AckBatches(ctx, pending[2].BatchID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err = o.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outbox.db")

	o, err := OpenOutbox(path, nil)
	require.NoError(t, err)
	require.NoError(t, o.Send(ctx, model.RecordTypeBookmark, model.ActionDelete, []model.ChangeRecord{deleteRecord(1)}))
	require.NoError(t, o.Close())

	o, err = OpenOutbox(path, nil)
	require.NoError(t, err)
	defer o.Close()
	pending, err := o.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestWriterLogGolden(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLog(&buf)
	require.NoError(t, l.Send(context.Background(), model.RecordTypeBookmark, model.ActionDelete,
		[]model.ChangeRecord{deleteRecord(42, 7)}))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "bookmark_delete", buf.Bytes())
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestRecorderFailNext(t *testing.T) {
	ctx := context.Background()
	var r Recorder
	var seen []syncid.ID
	r.OnSend = func(m Message) { seen = append(seen, m.Record.ObjectID) }

	r.FailNext(1)
	assert.ErrorIs(t, r.Send(ctx, model.RecordTypeBookmark, model.ActionDelete, []model.ChangeRecord{deleteRecord(1)}), ErrInjected)
	assert.Empty(t, r.Messages())

	require.NoError(t, r.Send(ctx, model.RecordTypeBookmark, model.ActionDelete, []model.ChangeRecord{deleteRecord(2)}))
	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ActionDelete, msgs[0].Action)
	assert.Equal(t, []syncid.ID{{2}}, seen)
}
