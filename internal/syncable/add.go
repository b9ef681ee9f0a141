package syncable

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncid"
)

var (
	errNoPropagator  = errors.New("propagation requested without a propagator")
	errMissingID     = errors.New("change has no object identifier")
	errDeleteViaAdd  = errors.New("delete change passed to add")
	errAlreadyExists = errors.New("identifier already in use")
)

// AddOptions are independent switches: Persist=false never touches the
// store and Propagate=false never touches the propagator.
type AddOptions struct {
	Persist   bool
	Propagate bool
}

// Add creates or updates the local record named by root.ObjectID from an
// inbound change. A nil root returns the zero entity and no error.
//
// With Persist the existing record (if any) is looked up and the result is
// committed; otherwise a fresh, unsaved entity is returned. With Propagate
// the resulting record is sent to the remote log before the store write.
func Add[E Entity](ctx context.Context, sc Performer, p *Propagator, kind Kind[E], root *model.ChangeRecord, opts AddOptions) (E, error) {
	var zero E
	if root == nil {
		return zero, nil
	}
	if err := kind.checkChange("add", root); err != nil {
		return zero, err
	}
	if root.Action == model.ActionDelete {
		return zero, decodeFault("add", kind.Name, root.ObjectID, errDeleteViaAdd)
	}
	if opts.Propagate && p == nil {
		return zero, &Fault{Code: CodePropagation, Op: "add", Kind: kind.Name, ID: root.ObjectID, Err: errNoPropagator}
	}

	if !opts.Persist {
		e := kind.New()
		e.SetSyncID(root.ObjectID)
		if err := e.ApplyIncoming(*root); err != nil {
			return zero, decodeFault("add", kind.Name, root.ObjectID, err)
		}
		if opts.Propagate {
			if err := propagate(ctx, p, kind, e, model.ActionAdd); err != nil {
				return zero, err
			}
		}
		return e, nil
	}

	desc, err := kind.descriptor(sc, "add")
	if err != nil {
		return zero, err
	}
	var out E
	err = sc.Perform(ctx, func(tx store.Tx) error {
		found, err := NewLocator(kind).findByIdentifiers(tx, desc, []syncid.ID{root.ObjectID})
		if err != nil {
			return err
		}

		action := model.ActionAdd
		var e E
		if len(found) == 1 {
			e = found[0]
			action = model.ActionUpdate
		} else {
			e = kind.New()
			e.SetSyncID(root.ObjectID)
		}
		if err := e.ApplyIncoming(*root); err != nil {
			return decodeFault("add", kind.Name, root.ObjectID, err)
		}
		row, err := kind.row(e)
		if err != nil {
			return err
		}

		if opts.Propagate {
			if err := propagate(ctx, p, kind, e, action); err != nil {
				return err
			}
		}

		if action == model.ActionAdd {
			err = tx.Insert(row)
		} else {
			err = tx.Update(row)
		}
		if err != nil {
			return storeFault("add", kind.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return storeFault("add", kind.Name, err)
		}
		out = e
		return nil
	})
	if err != nil {
		return zero, asFault("add", kind.Name, err)
	}
	return out, nil
}

// ApplyChange dispatches one inbound change: add and update go through Add
// without re-propagation, delete removes the local record if present.
// Deleting a record that is already gone is not an error, so redelivered
// deletes are harmless.
func ApplyChange[E Entity](ctx context.Context, sc Performer, kind Kind[E], change model.ChangeRecord) (E, error) {
	var zero E
	if change.Action != model.ActionDelete {
		return Add(ctx, sc, nil, kind, &change, AddOptions{Persist: true})
	}
	if err := kind.checkChange("apply", &change); err != nil {
		return zero, err
	}

	desc, err := kind.descriptor(sc, "apply")
	if err != nil {
		return zero, err
	}
	var out E
	err = sc.Perform(ctx, func(tx store.Tx) error {
		found, err := NewLocator(kind).findByIdentifiers(tx, desc, []syncid.ID{change.ObjectID})
		if err != nil || len(found) == 0 {
			return err
		}
		if err := tx.Delete(found[0].Record()); err != nil {
			return storeFault("apply", kind.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return storeFault("apply", kind.Name, err)
		}
		out = found[0]
		return nil
	})
	if err != nil {
		return zero, asFault("apply", kind.Name, err)
	}
	return out, nil
}

// Create persists a new local record without notifying the remote log.
// Records are normally created without an identifier and receive one
// later through AssignIdentifier.
func Create[E Entity](ctx context.Context, sc Performer, kind Kind[E], e E) error {
	if err := checkStoredID("create", kind.Name, e.Record()); err != nil {
		return err
	}
	desc, err := kind.descriptor(sc, "create")
	if err != nil {
		return err
	}
	err = sc.Perform(ctx, func(tx store.Tx) error {
		if id := e.SyncID(); !id.IsZero() {
			found, err := NewLocator(kind).findByIdentifiers(tx, desc, []syncid.ID{id})
			if err != nil {
				return err
			}
			if len(found) > 0 {
				return &Fault{Code: CodeIntegrity, Op: "create", Kind: kind.Name, ID: id, Matches: len(found) + 1, Err: errAlreadyExists}
			}
		}
		row, err := kind.row(e)
		if err != nil {
			return err
		}
		if err := tx.Insert(row); err != nil {
			return storeFault("create", kind.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return storeFault("create", kind.Name, err)
		}
		return nil
	})
	return asFault("create", kind.Name, err)
}

// AssignIdentifier gives a local-only record its first sync identifier,
// announces it to the remote log as an add, and commits. Under PolicyStrict
// a failed send leaves the record unsynced.
func AssignIdentifier[E Entity](ctx context.Context, p *Propagator, sc Performer, kind Kind[E], e E, id syncid.ID) error {
	if id.IsZero() {
		return decodeFault("assign", kind.Name, id, errMissingID)
	}
	if err := syncid.Validate(id); err != nil {
		return decodeFault("assign", kind.Name, id, err)
	}
	if p == nil {
		return &Fault{Code: CodePropagation, Op: "assign", Kind: kind.Name, ID: id, Err: errNoPropagator}
	}
	if current := e.SyncID(); !current.IsZero() && !current.Equal(id) {
		return storeFault("assign", kind.Name, fmt.Errorf("%w: %s", store.ErrIdentifierImmutable, syncid.Encode(current)))
	}
	desc, err := kind.descriptor(sc, "assign")
	if err != nil {
		return err
	}

	err = sc.Perform(ctx, func(tx store.Tx) error {
		if err := requireRow(tx, desc, "assign", e.Record().ID); err != nil {
			return err
		}
		found, err := NewLocator(kind).findByIdentifiers(tx, desc, []syncid.ID{id})
		if err != nil {
			return err
		}
		for _, other := range found {
			if other.Record().ID != e.Record().ID {
				return &Fault{Code: CodeIntegrity, Op: "assign", Kind: kind.Name, ID: id, Matches: len(found) + 1, Err: errAlreadyExists}
			}
		}

		previous := e.SyncID()
		e.SetSyncID(id)
		restore := func() { e.SetSyncID(previous) }

		row, err := kind.row(e)
		if err != nil {
			restore()
			return err
		}
		if err := propagate(ctx, p, kind, e, model.ActionAdd); err != nil {
			restore()
			return err
		}
		if err := tx.Update(row); err != nil {
			restore()
			return storeFault("assign", kind.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return storeFault("assign", kind.Name, err)
		}
		return nil
	})
	return asFault("assign", kind.Name, err)
}

func propagate[E Entity](ctx context.Context, p *Propagator, kind Kind[E], e E, action model.Action) error {
	change, err := e.ToChangeRecord(p.deviceID, action)
	if err != nil {
		return decodeFault(action.String(), kind.Name, e.SyncID(), err)
	}
	change.RecordType = kind.RecordType
	return p.Notify(ctx, kind.RecordType, action, []model.ChangeRecord{change})
}

func (k Kind[E]) checkChange(op string, c *model.ChangeRecord) error {
	if c.ObjectID.IsZero() {
		return decodeFault(op, k.Name, nil, errMissingID)
	}
	if err := syncid.Validate(c.ObjectID); err != nil {
		return decodeFault(op, k.Name, c.ObjectID, err)
	}
	if !c.Action.Valid() {
		return decodeFault(op, k.Name, c.ObjectID, fmt.Errorf("invalid action %d", int(c.Action)))
	}
	if c.RecordType != "" && c.RecordType != k.RecordType {
		return decodeFault(op, k.Name, c.ObjectID, fmt.Errorf("record type %q does not match %q", c.RecordType, k.RecordType))
	}
	return nil
}
