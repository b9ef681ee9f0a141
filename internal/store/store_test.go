package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/syncbridge/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithKinds("note", "tag"))
	require.NoError(t, err, "create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestContext(t *testing.T, s *Store) *Context {
	t.Helper()
	c := s.NewContext("test")
	t.Cleanup(func() { c.Close() })
	return c
}

func note(encoded, title string) *model.Row {
	payload, _ := json.Marshal(map[string]string{"title": title})
	return &model.Row{Kind: "note", EncodedID: encoded, Payload: payload}
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestEntityDescriptor(t *testing.T) {
	s := newTestStore(t)

	desc, err := s.EntityDescriptor("note")
	require.NoError(t, err)
	assert.Equal(t, "note", desc.Name)

	_, err = s.EntityDescriptor("widget")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	s.RegisterKind("widget")
	_, err = s.EntityDescriptor("widget")
	assert.NoError(t, err)
	assert.Equal(t, []string{"note", "tag", "widget"}, s.Kinds())
}

func TestInsertFetchCommit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := newTestContext(t, s)
	desc, _ := s.EntityDescriptor("note")

	r := note("1,2", "first")
	err := c.Perform(ctx, func(tx Tx) error {
		if err := tx.Insert(r); err != nil {
			return err
		}
		assert.True(t, tx.HasChanges())

		rows, err := tx.Fetch(desc, Eq(FieldEncodedID, "1,2"))
		require.NoError(t, err)
		require.Len(t, rows, 1, "pending insert visible inside the context")
		return tx.Commit()
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	other := newTestContext(t, s)
	var rows []model.Row
	require.NoError(t, other.Perform(ctx, func(tx Tx) error {
		var err error
		rows, err = tx.Fetch(desc, nil)
		return err
	}))
	require.Len(t, rows, 1)
	assert.Equal(t, r.ID, rows[0].ID)
	assert.Equal(t, "1,2", rows[0].EncodedID)
	assert.JSONEq(t, `{"title":"first"}`, string(rows[0].Payload))
	assert.True(t, r.CreatedAt.Equal(rows[0].CreatedAt))
}

func TestUncommittedRolledBackOnClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	desc, _ := s.EntityDescriptor("note")

	c := s.NewContext("scratch")
	require.NoError(t, c.Perform(ctx, func(tx Tx) error { return tx.Insert(note("5", "gone")) }))
	require.NoError(t, c.Close())

	reader := newTestContext(t, s)
	require.NoError(t, reader.Perform(ctx, func(tx Tx) error {
		rows, err := tx.Fetch(desc, nil)
		assert.Empty(t, rows)
		return err
	}))
}

func TestFetchScopedToKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := newTestContext(t, s)

	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		require.NoError(t, tx.Insert(note("7", "n")))
		require.NoError(t, tx.Insert(&model.Row{Kind: "tag", EncodedID: "7"}))
		return tx.Commit()
	}))

	tags, _ := s.EntityDescriptor("tag")
	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		rows, err := tx.Fetch(tags, Eq(FieldEncodedID, "7"))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "tag", rows[0].Kind)
		return nil
	}))
}

func TestInsertUnknownKind(t *testing.T) {
	s := newTestStore(t)
	c := newTestContext(t, s)
	err := c.Perform(context.Background(), func(tx Tx) error {
		return tx.Insert(&model.Row{Kind: "widget"})
	})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestUpdateIdentifierImmutable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := newTestContext(t, s)

	local := note("", "local only")
	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		require.NoError(t, tx.Insert(local))
		return tx.Commit()
	}))

	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		local.EncodedID = "3,4"
		return tx.Update(local)
	}), "first assignment is allowed")

	err := c.Perform(ctx, func(tx Tx) error {
		local.EncodedID = "9,9"
		return tx.Update(local)
	})
	assert.ErrorIs(t, err, ErrIdentifierImmutable)

	err = c.Perform(ctx, func(tx Tx) error {
		return tx.Update(&model.Row{ID: "missing", Kind: "note"})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := newTestContext(t, s)
	desc, _ := s.EntityDescriptor("note")

	r := note("8", "doomed")
	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		require.NoError(t, tx.Insert(r))
		return tx.Commit()
	}))
	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		require.NoError(t, tx.Delete(r))
		return tx.Commit()
	}))
	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		rows, err := tx.Fetch(desc, nil)
		assert.Empty(t, rows)
		return err
	}))

	err := c.Perform(ctx, func(tx Tx) error { return tx.Delete(r) })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := newTestContext(t, s)

	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		require.NoError(t, tx.Insert(note("1", "a")))
		require.NoError(t, tx.Insert(note("", "b")))
		require.NoError(t, tx.Insert(&model.Row{Kind: "tag"}))
		return tx.Commit()
	}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalRecords)
	require.Len(t, st.Kinds, 2)
	assert.Equal(t, KindStats{Kind: "note", Count: 2, Synced: 1, Unsynced: 1}, st.Kinds[0])
	assert.Equal(t, KindStats{Kind: "tag", Count: 1, Synced: 0, Unsynced: 1}, st.Kinds[1])
}
