package syncable

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// Log is the remote sync log the propagator notifies.
type Log interface {
	Send(ctx context.Context, recordType model.RecordType, action model.Action, records []model.ChangeRecord) error
}

// Policy decides what happens to a local mutation when its notification
// cannot be sent.
type Policy int

const (
	// PolicyStrict reports PROPAGATION_FAILED and skips the local mutation.
	PolicyStrict Policy = iota
	// PolicyTolerant logs the failure and performs the local mutation anyway,
	// accepting that the remote log may never learn about it.
	PolicyTolerant
)

func (p Policy) String() string {
	if p == PolicyTolerant {
		return "tolerant"
	}
	return "strict"
}

// ParsePolicy accepts "strict" or "tolerant". The empty string is strict.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "strict":
		return PolicyStrict, nil
	case "tolerant":
		return PolicyTolerant, nil
	}
	return PolicyStrict, fmt.Errorf("unknown propagation policy %q", s)
}

// Propagator sends outbound change records for local mutations. It is
// passed explicitly to the operations that need it.
type Propagator struct {
	log      Log
	deviceID syncid.ID
	policy   Policy
	logger   *slog.Logger
}

// PropagatorOption configures a Propagator.
type PropagatorOption func(*Propagator)

// WithDeviceID sets the device identifier stamped on outbound records.
func WithDeviceID(id syncid.ID) PropagatorOption {
	return func(p *Propagator) { p.deviceID = id.Clone() }
}

// WithPolicy sets the failure policy. The default is PolicyStrict.
func WithPolicy(policy Policy) PropagatorOption {
	return func(p *Propagator) { p.policy = policy }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PropagatorOption {
	return func(p *Propagator) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPropagator returns a propagator that sends to log.
func NewPropagator(log Log, opts ...PropagatorOption) *Propagator {
	p := &Propagator{
		log:    log,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DeviceID returns the device identifier stamped on outbound records.
func (p *Propagator) DeviceID() syncid.ID { return p.deviceID }

// Policy returns the failure policy.
func (p *Propagator) Policy() Policy { return p.policy }

// Notify sends records to the remote log. Under PolicyTolerant a send
// failure is logged and Notify returns nil.
func (p *Propagator) Notify(ctx context.Context, recordType model.RecordType, action model.Action, records []model.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := p.log.Send(ctx, recordType, action, records)
	if err == nil {
		p.logger.Debug("propagated", "record_type", recordType, "action", action, "records", len(records))
		return nil
	}
	id := records[0].ObjectID
	if p.policy == PolicyTolerant {
		p.logger.Warn("propagation failed, continuing with local mutation",
			"record_type", recordType, "action", action, "id", syncid.Encode(id), "error", err)
		return nil
	}
	p.logger.Error("propagation failed", "record_type", recordType, "action", action, "id", syncid.Encode(id), "error", err)
	return &Fault{Code: CodePropagation, Op: action.String(), Kind: string(recordType), ID: id, Err: err}
}

// Remove deletes e from the store after notifying the remote log.
//
// Within one Perform block it checks that e still exists, sends a delete
// change record built from e, deletes the row, and commits when persist is
// true. Under PolicyStrict a failed send leaves the row in place. Records
// that were never synced are deleted without a notification.
func Remove[E Entity](ctx context.Context, p *Propagator, sc Performer, kind Kind[E], e E, persist bool) error {
	desc, err := kind.descriptor(sc, "remove")
	if err != nil {
		return err
	}
	row := e.Record()
	if row == nil || row.ID == "" {
		return storeFault("remove", kind.Name, fmt.Errorf("%w: entity is not persisted", store.ErrNotFound))
	}
	if err := checkStoredID("remove", kind.Name, row); err != nil {
		return err
	}

	err = sc.Perform(ctx, func(tx store.Tx) error {
		if err := requireRow(tx, desc, "remove", row.ID); err != nil {
			return err
		}

		id := e.SyncID()
		if !id.IsZero() {
			if err := propagate(ctx, p, kind, e, model.ActionDelete); err != nil {
				return err
			}
		}

		if err := tx.Delete(row); err != nil {
			p.logger.Error("local delete failed after propagation", "kind", kind.Name, "id", syncid.Encode(id), "error", err)
			return storeFault("remove", kind.Name, err)
		}
		if persist {
			if err := tx.Commit(); err != nil {
				return storeFault("remove", kind.Name, err)
			}
		}
		return nil
	})
	return asFault("remove", kind.Name, err)
}

// requireRow fails with a store fault unless the row with the given local
// ID is present in the context.
func requireRow(tx store.Tx, desc store.EntityDescriptor, op, localID string) error {
	rows, err := tx.Fetch(desc, store.Eq(store.FieldID, localID))
	if err != nil {
		return storeFault(op, desc.Name, err)
	}
	if len(rows) == 0 {
		return storeFault(op, desc.Name, fmt.Errorf("%w: %s", store.ErrNotFound, localID))
	}
	return nil
}

// checkStoredID fails with a decode fault unless the row's encoded
// identifier decodes back to itself. Anything else would be announced under
// a different identifier, or not announced at all.
func checkStoredID(op, kind string, row *model.Row) error {
	if row == nil || row.EncodedID == "" {
		return nil
	}
	if syncid.Encode(row.SyncID()) != row.EncodedID {
		return decodeFault(op, kind, row.SyncID(), fmt.Errorf("%w: stored identifier %q", syncid.ErrMalformed, row.EncodedID))
	}
	return nil
}
