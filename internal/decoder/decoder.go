// Package decoder parses inbound change records from their JSON wire form.
package decoder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/syncid"
)

var (
	// ErrMissingObjectID is returned for records with no usable objectId.
	ErrMissingObjectID = errors.New("missing objectId")
	// ErrUnknownAction is returned for an action that is neither a known
	// code nor a known name.
	ErrUnknownAction = errors.New("unknown action")
)

// maxLine bounds one newline-delimited record.
const maxLine = 4 << 20

type wire struct {
	ObjectID   json.RawMessage `json:"objectId"`
	ObjectData string          `json:"objectData"`
	Action     json.RawMessage `json:"action"`
	DeviceID   json.RawMessage `json:"deviceId"`
}

// ParseChangeRecord decodes one change record. The identifier arrays are
// decoded leniently; a record whose objectId decodes to nothing is rejected.
// The object named by objectData is kept raw as the payload.
func ParseChangeRecord(data []byte) (model.ChangeRecord, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return model.ChangeRecord{}, fmt.Errorf("decode change record: %w", err)
	}

	c := model.ChangeRecord{
		ObjectID:   syncid.FromJSON(w.ObjectID),
		RecordType: model.RecordType(w.ObjectData),
	}
	if c.ObjectID.IsZero() {
		return c, ErrMissingObjectID
	}
	if len(w.DeviceID) > 0 && string(w.DeviceID) != "null" {
		c.DeviceID = syncid.FromJSON(w.DeviceID)
	}

	action, err := parseAction(w.Action)
	if err != nil {
		return c, err
	}
	c.Action = action

	if c.RecordType != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return c, fmt.Errorf("decode change record: %w", err)
		}
		if raw, ok := fields[string(c.RecordType)]; ok && string(raw) != "null" {
			c.Payload = raw
		}
	}
	return c, nil
}

// parseAction accepts the numeric wire code or the action name. A missing
// action means add.
func parseAction(raw json.RawMessage) (model.Action, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return model.ActionAdd, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		a := model.Action(n)
		if !a.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnknownAction, n)
		}
		return a, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAction, raw)
	}
	a, err := model.ParseAction(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// RecordError reports which record of a stream failed to parse.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %d: %v", e.Index, e.Err) }

func (e *RecordError) Unwrap() error { return e.Err }

// ParseStream reads either a JSON array of change records or one record per
// line. Blank lines are skipped. The first malformed record stops parsing.
func ParseStream(r io.Reader) ([]model.ChangeRecord, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if first == '[' {
		return parseArray(br)
	}
	return parseLines(br)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\r\n", rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

func parseArray(r io.Reader) ([]model.ChangeRecord, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode change records: %w", err)
	}
	out := make([]model.ChangeRecord, 0, len(raw))
	for i, item := range raw {
		c, err := ParseChangeRecord(item)
		if err != nil {
			return out, &RecordError{Index: i, Err: err}
		}
		out = append(out, c)
	}
	return out, nil
}

func parseLines(r io.Reader) ([]model.ChangeRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	var out []model.ChangeRecord
	i := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		c, err := ParseChangeRecord(line)
		if err != nil {
			return out, &RecordError{Index: i, Err: err}
		}
		out = append(out, c)
		i++
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read change records: %w", err)
	}
	return out, nil
}
