package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcliao/syncbridge/internal/entity"
	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncable"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// siteFields are the values a user can give when adding a record.
type siteFields struct {
	Site     entity.Site
	IsFolder bool
	Parent   syncid.ID
}

// kindOps adapts one entity kind to the untyped command layer.
type kindOps struct {
	name       string
	recordType model.RecordType

	create func(ctx context.Context, e *env, f siteFields) (syncable.Entity, error)
	find   func(ctx context.Context, e *env, ids []syncid.ID) ([]syncable.Entity, error)
	query  func(ctx context.Context, e *env, p store.Predicate) ([]syncable.Entity, error)
	remove func(ctx context.Context, e *env, rec syncable.Entity) error
	assign func(ctx context.Context, e *env, rec syncable.Entity, id syncid.ID) error
	// apply reports false when the change was a delete of a missing record.
	apply  func(ctx context.Context, e *env, c model.ChangeRecord) (bool, error)
}

func opsFor[E syncable.Entity](kind syncable.Kind[E], fill func(E, siteFields)) kindOps {
	loc := syncable.NewLocator(kind)
	widen := func(in []E) []syncable.Entity {
		out := make([]syncable.Entity, len(in))
		for i, v := range in {
			out[i] = v
		}
		return out
	}
	return kindOps{
		name:       kind.Name,
		recordType: kind.RecordType,
		create: func(ctx context.Context, e *env, f siteFields) (syncable.Entity, error) {
			rec := kind.New()
			fill(rec, f)
			if err := syncable.Create(ctx, e.sc, kind, rec); err != nil {
				return nil, err
			}
			return rec, nil
		},
		find: func(ctx context.Context, e *env, ids []syncid.ID) ([]syncable.Entity, error) {
			found, err := loc.FindByIdentifiers(ctx, e.sc, ids)
			return widen(found), err
		},
		query: func(ctx context.Context, e *env, p store.Predicate) ([]syncable.Entity, error) {
			found, err := loc.FindByPredicate(ctx, e.sc, p)
			return widen(found), err
		},
		remove: func(ctx context.Context, e *env, rec syncable.Entity) error {
			return syncable.Remove(ctx, e.propagator, e.sc, kind, rec.(E), true)
		},
		assign: func(ctx context.Context, e *env, rec syncable.Entity, id syncid.ID) error {
			return syncable.AssignIdentifier(ctx, e.propagator, e.sc, kind, rec.(E), id)
		},
		apply: func(ctx context.Context, e *env, c model.ChangeRecord) (bool, error) {
			var zero E
			rec, err := syncable.ApplyChange(ctx, e.sc, kind, c)
			if err != nil {
				return false, err
			}
			return any(rec) != any(zero), nil
		},
	}
}

var kinds = map[string]kindOps{
	entity.BookmarkKind.Name: opsFor(entity.BookmarkKind, func(b *entity.Bookmark, f siteFields) {
		b.Site = f.Site
		b.IsFolder = f.IsFolder
		b.ParentFolderID = f.Parent
	}),
	entity.HistoryKind.Name: opsFor(entity.HistoryKind, func(h *entity.HistorySite, f siteFields) {
		h.Site = f.Site
	}),
}

func kindNames() []string {
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupKind(name string) (kindOps, error) {
	ops, ok := kinds[name]
	if !ok {
		return kindOps{}, fmt.Errorf("unknown kind %q (want one of %v)", name, kindNames())
	}
	return ops, nil
}

func kindForRecordType(rt model.RecordType) (kindOps, error) {
	for _, ops := range kinds {
		if ops.recordType == rt {
			return ops, nil
		}
	}
	return kindOps{}, fmt.Errorf("unsupported record type %q", rt)
}

// selectedKinds returns the named kind, or every kind when name is empty.
func selectedKinds(name string) ([]kindOps, error) {
	if name != "" {
		ops, err := lookupKind(name)
		if err != nil {
			return nil, err
		}
		return []kindOps{ops}, nil
	}
	out := make([]kindOps, 0, len(kinds))
	for _, n := range kindNames() {
		out = append(out, kinds[n])
	}
	return out, nil
}

// parseIDs decodes identifiers given on the command line.
func parseIDs(raw []string) ([]syncid.ID, error) {
	ids := make([]syncid.ID, 0, len(raw))
	for _, s := range raw {
		id, err := syncid.DecodeStrict(s, 0)
		if err != nil {
			return nil, fmt.Errorf("identifier %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
