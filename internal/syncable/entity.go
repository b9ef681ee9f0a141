// Package syncable mirrors local record mutations to the remote sync log.
//
// An entity type takes part in sync by implementing Entity and describing
// itself with a Kind. Locator finds records by sync identifier with one bulk
// fetch, and Propagator notifies the remote log before local deletes are
// committed. Every store access runs inside the target context's Perform
// block.
package syncable

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// Entity is a persisted record type that participates in sync.
//
// Implementations embed model.Row, which supplies Record, SyncID and
// SetSyncID. Those accessors are the only per-record users of the
// identifier codec.
type Entity interface {
	// Record returns the persisted row backing the entity.
	Record() *model.Row
	SyncID() syncid.ID
	SetSyncID(syncid.ID)

	// Payload encodes the kind-specific fields for storage.
	Payload() (json.RawMessage, error)
	// LoadPayload decodes fields previously produced by Payload.
	LoadPayload(json.RawMessage) error

	// ToChangeRecord describes the entity plus an intended action in the
	// outbound shape.
	ToChangeRecord(deviceID syncid.ID, action model.Action) (model.ChangeRecord, error)
	// ApplyIncoming copies fields from an inbound change. Applying the same
	// change more than once leaves the same state as applying it once.
	ApplyIncoming(change model.ChangeRecord) error
}

// Kind binds an entity type to its store entity name and sync record type.
type Kind[E Entity] struct {
	Name       string
	RecordType model.RecordType
	New        func() E
}

// Performer is a serialized store execution context. *store.Context
// satisfies it.
type Performer interface {
	Perform(ctx context.Context, fn func(store.Tx) error) error
	EntityDescriptor(name string) (store.EntityDescriptor, error)
}

var errNilEntity = errors.New("nil entity")

func (k Kind[E]) fromRow(row model.Row) (E, error) {
	e := k.New()
	*e.Record() = row
	if err := e.LoadPayload(row.Payload); err != nil {
		var zero E
		return zero, decodeFault("load", k.Name, row.SyncID(), err)
	}
	return e, nil
}

// row refreshes the entity's persisted row from its current fields.
func (k Kind[E]) row(e E) (*model.Row, error) {
	r := e.Record()
	if r == nil {
		return nil, decodeFault("encode", k.Name, nil, errNilEntity)
	}
	payload, err := e.Payload()
	if err != nil {
		return nil, decodeFault("encode", k.Name, e.SyncID(), err)
	}
	r.Kind = k.Name
	r.Payload = payload
	return r, nil
}

func (k Kind[E]) descriptor(sc Performer, op string) (store.EntityDescriptor, error) {
	desc, err := sc.EntityDescriptor(k.Name)
	if err != nil {
		return desc, storeFault(op, k.Name, err)
	}
	return desc, nil
}
