package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/syncbridge/internal/model"
)

func TestPredicateSQL(t *testing.T) {
	tests := []struct {
		name string
		p    Predicate
		sql  string
		args []any
	}{
		{"eq", Eq(FieldEncodedID, "1,2"), "sync_display_uuid = ?", []any{"1,2"}},
		{"in", In(FieldEncodedID, []string{"1", "2"}), "sync_display_uuid IN (?, ?)", []any{"1", "2"}},
		{"empty in", In(FieldEncodedID, []string{}), "0", nil},
		{"payload", Eq("payload.title", "x"), "json_extract(payload, '$.title') = ?", []any{"x"}},
		{"null", IsNull(FieldEncodedID), "sync_display_uuid IS NULL", nil},
		{"not null", NotNull(FieldID), "id IS NOT NULL", nil},
		{"and", And(Eq(FieldID, "a"), IsNull(FieldEncodedID)), "(id = ?) AND (sync_display_uuid IS NULL)", []any{"a"}},
		{"nested", Eq("payload.site.title", "x"), "json_extract(payload, '$.site.title') = ?", []any{"x"}},
		{"like", Like("payload.url", "50%"), `json_extract(payload, '$.url') LIKE ? ESCAPE '\'`, []any{`%50\%%`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.p.where()
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestPredicateMalformed(t *testing.T) {
	for _, p := range []Predicate{
		Eq("title", "x"),
		Eq("payload.bad key", "x"),
		Eq("payload.site..title", "x"),
		And(Eq(FieldID, "a"), nil),
		Compound{Op: "XOR", Terms: []Predicate{Eq(FieldID, "a")}},
	} {
		_, _, err := p.where()
		assert.ErrorIs(t, err, ErrMalformedPredicate, p.String())
	}
}

func TestFetchWithPredicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := newTestContext(t, s)
	desc, _ := s.EntityDescriptor("note")

	require.NoError(t, c.Perform(ctx, func(tx Tx) error {
		require.NoError(t, tx.Insert(note("1", "Go Blog")))
		require.NoError(t, tx.Insert(note("2", "Rust Book")))
		require.NoError(t, tx.Insert(note("", "go unsynced")))
		return tx.Commit()
	}))

	fetch := func(p Predicate) []model.Row {
		var rows []model.Row
		require.NoError(t, c.Perform(ctx, func(tx Tx) error {
			var err error
			rows, err = tx.Fetch(desc, p)
			return err
		}))
		return rows
	}

	assert.Len(t, fetch(nil), 3)
	assert.Len(t, fetch(In(FieldEncodedID, []string{"1", "2", "3"})), 2)
	assert.Len(t, fetch(Like("payload.title", "go")), 2)
	assert.Len(t, fetch(And(Like("payload.title", "go"), NotNull(FieldEncodedID))), 1)
	assert.Len(t, fetch(Or(Eq(FieldEncodedID, "2"), IsNull(FieldEncodedID))), 2)

	err := c.Perform(ctx, func(tx Tx) error {
		_, err := tx.Fetch(desc, Eq("bogus", 1))
		return err
	})
	assert.ErrorIs(t, err, ErrMalformedPredicate)
}
