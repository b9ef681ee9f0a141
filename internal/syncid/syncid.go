// Package syncid converts sync identifiers between their structured form
// (an ordered sequence of non-negative integers) and the comma-delimited
// string form persisted by the store.
package syncid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates components in the encoded form.
const Delimiter = ","

// ErrMalformed is returned by DecodeStrict for input that does not decode cleanly.
var ErrMalformed = errors.New("malformed sync identifier")

// ID is a position-significant composite key assigned by the sync protocol.
// A nil or empty ID means the record has never been synced.
type ID []int

// Encode renders id as decimal components joined by Delimiter.
// The empty ID encodes to the empty string.
func Encode(id ID) string {
	if len(id) == 0 {
		return ""
	}
	var b strings.Builder
	for i, n := range id {
		if i > 0 {
			b.WriteString(Delimiter)
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// DecodeLossy splits s on Delimiter and keeps every component that parses as
// a non-negative integer. Components that fail to parse are dropped, so
// "3,x,5" decodes to [3 5] and "abc" decodes to an empty ID.
//
// Callers that need validation should use DecodeStrict instead.
func DecodeLossy(s string) ID {
	if s == "" {
		return ID{}
	}
	parts := strings.Split(s, Delimiter)
	id := make(ID, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			continue
		}
		id = append(id, n)
	}
	return id
}

// DecodeStrict decodes s and fails on any component that is not a
// non-negative integer in canonical decimal form, so Encode of the result
// always equals s. When want > 0 the decoded length must equal want.
func DecodeStrict(s string, want int) (ID, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	parts := strings.Split(s, Delimiter)
	id := make(ID, 0, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d %q", ErrMalformed, i, p)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: component %d is negative", ErrMalformed, i)
		}
		if strconv.Itoa(n) != p {
			return nil, fmt.Errorf("%w: component %d %q is not in canonical form", ErrMalformed, i, p)
		}
		id = append(id, n)
	}
	if want > 0 && len(id) != want {
		return nil, fmt.Errorf("%w: got %d components, want %d", ErrMalformed, len(id), want)
	}
	return id, nil
}

// FromJSON decodes a JSON array of numbers, dropping elements that are not
// non-negative integers. Anything other than an array yields an empty ID.
func FromJSON(raw []byte) ID {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return ID{}
	}
	id := make(ID, 0, len(elems))
	for _, e := range elems {
		var n int
		if err := json.Unmarshal(e, &n); err != nil || n < 0 {
			continue
		}
		id = append(id, n)
	}
	return id
}

// Unique returns ids with duplicates removed, keeping first occurrences in
// order. Empty IDs are dropped.
func Unique(ids []ID) []ID {
	seen := make(map[string]bool, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		key := Encode(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, id)
	}
	return out
}

// Validate fails with ErrMalformed if any component is negative. Only valid
// identifiers survive an Encode and DecodeLossy round trip.
func Validate(id ID) error {
	for i, n := range id {
		if n < 0 {
			return fmt.Errorf("%w: component %d is negative", ErrMalformed, i)
		}
	}
	return nil
}

// IsZero reports whether id is absent.
func (id ID) IsZero() bool { return len(id) == 0 }

// Equal reports whether id and other have the same components in order.
func (id ID) Equal(other ID) bool {
	if len(id) != len(other) {
		return false
	}
	for i := range id {
		if id[i] != other[i] {
			return false
		}
	}
	return true
}

func (id ID) String() string { return Encode(id) }

// Clone returns a copy that does not share the backing array.
func (id ID) Clone() ID {
	if id == nil {
		return nil
	}
	return append(ID{}, id...)
}

// MarshalJSON encodes id as a JSON array; an absent id encodes as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]int(id))
}

// UnmarshalJSON decodes a JSON array leniently, as FromJSON does.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = nil
		return nil
	}
	*id = FromJSON(b)
	return nil
}
