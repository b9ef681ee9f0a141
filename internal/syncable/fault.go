package syncable

import (
	"errors"
	"fmt"

	"github.com/rcliao/syncbridge/internal/syncid"
)

// Code categorizes a Fault.
type Code string

const (
	// CodeDecode indicates a malformed inbound change or payload.
	CodeDecode Code = "DECODE_FAULT"

	// CodeStore indicates the store was unavailable or rejected a query.
	CodeStore Code = "STORE_FAULT"

	// CodePropagation indicates the remote sync log could not be notified.
	// The paired local mutation was not performed.
	CodePropagation Code = "PROPAGATION_FAILED"

	// CodeIntegrity indicates more than one local record matched an
	// identifier that must be unique within its kind.
	CodeIntegrity Code = "INTEGRITY_FAULT"
)

// Fault is the error type returned by every operation in this package.
// Collaborator errors are wrapped, never retried.
type Fault struct {
	Code Code
	// Op names the operation that failed, e.g. "find", "remove".
	Op string
	// Kind is the entity kind name, when known.
	Kind string
	// ID is the identifier involved, when known.
	ID syncid.ID
	// Matches is the number of records found, for integrity faults.
	Matches int
	Err     error
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s: %s", f.Code, f.Op)
	if f.Kind != "" {
		msg += " " + f.Kind
	}
	if !f.ID.IsZero() {
		msg += " [" + syncid.Encode(f.ID) + "]"
	}
	if f.Code == CodeIntegrity {
		msg += fmt.Sprintf(": %d records share one identifier", f.Matches)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error { return f.Err }

// IsCode reports whether err is a Fault with the given code.
func IsCode(err error, code Code) bool {
	var f *Fault
	return errors.As(err, &f) && f.Code == code
}

func storeFault(op, kind string, err error) *Fault {
	return &Fault{Code: CodeStore, Op: op, Kind: kind, Err: err}
}

func decodeFault(op, kind string, id syncid.ID, err error) *Fault {
	return &Fault{Code: CodeDecode, Op: op, Kind: kind, ID: id, Err: err}
}

// asFault returns err unchanged if it is already a Fault, and otherwise
// wraps it as a store fault.
func asFault(op, kind string, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	return storeFault(op, kind, err)
}
