package syncable

import (
	"context"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// Locator finds records of one kind by identifier or predicate.
type Locator[E Entity] struct {
	kind Kind[E]
}

// NewLocator returns a locator for kind.
func NewLocator[E Entity](kind Kind[E]) Locator[E] {
	return Locator[E]{kind: kind}
}

// Kind returns the kind the locator is scoped to.
func (l Locator[E]) Kind() Kind[E] { return l.kind }

// FindByIdentifiers resolves ids with a single fetch. Duplicate and empty
// identifiers are ignored. If any identifier matches more than one record
// the whole lookup fails with an integrity fault.
func (l Locator[E]) FindByIdentifiers(ctx context.Context, sc Performer, ids []syncid.ID) ([]E, error) {
	desc, err := l.kind.descriptor(sc, "find")
	if err != nil {
		return nil, err
	}
	var out []E
	err = sc.Perform(ctx, func(tx store.Tx) error {
		var err error
		out, err = l.findByIdentifiers(tx, desc, ids)
		return err
	})
	if err != nil {
		return nil, asFault("find", l.kind.Name, err)
	}
	return out, nil
}

// FindOne resolves a single identifier. The boolean is false when no record
// has it.
func (l Locator[E]) FindOne(ctx context.Context, sc Performer, id syncid.ID) (E, bool, error) {
	var zero E
	found, err := l.FindByIdentifiers(ctx, sc, []syncid.ID{id})
	if err != nil || len(found) == 0 {
		return zero, false, err
	}
	return found[0], true, nil
}

// FindByPredicate fetches records of the locator's kind matching p. A nil
// predicate matches all of them.
func (l Locator[E]) FindByPredicate(ctx context.Context, sc Performer, p store.Predicate) ([]E, error) {
	desc, err := l.kind.descriptor(sc, "query")
	if err != nil {
		return nil, err
	}
	var out []E
	err = sc.Perform(ctx, func(tx store.Tx) error {
		var err error
		out, err = l.findByPredicate(tx, desc, p)
		return err
	})
	if err != nil {
		return nil, asFault("query", l.kind.Name, err)
	}
	return out, nil
}

func (l Locator[E]) findByIdentifiers(tx store.Tx, desc store.EntityDescriptor, ids []syncid.ID) ([]E, error) {
	unique := syncid.Unique(ids)
	if len(unique) == 0 {
		return nil, nil
	}
	encoded := make([]string, len(unique))
	for i, id := range unique {
		encoded[i] = syncid.Encode(id)
	}

	rows, err := tx.Fetch(desc, store.In(store.FieldEncodedID, encoded))
	if err != nil {
		return nil, storeFault("find", l.kind.Name, err)
	}

	matches := make(map[string]int, len(rows))
	for _, r := range rows {
		matches[r.EncodedID]++
	}
	for i, key := range encoded {
		if n := matches[key]; n > 1 {
			return nil, &Fault{Code: CodeIntegrity, Op: "find", Kind: l.kind.Name, ID: unique[i], Matches: n}
		}
	}
	return l.decodeRows(rows)
}

func (l Locator[E]) findByPredicate(tx store.Tx, desc store.EntityDescriptor, p store.Predicate) ([]E, error) {
	rows, err := tx.Fetch(desc, p)
	if err != nil {
		return nil, storeFault("query", l.kind.Name, err)
	}
	return l.decodeRows(rows)
}

func (l Locator[E]) decodeRows(rows []model.Row) ([]E, error) {
	out := make([]E, 0, len(rows))
	for _, r := range rows {
		e, err := l.kind.fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
