package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/syncbridge/internal/model"
)

// Tx is the handle a Perform block receives. It is only valid until the
// block returns.
type Tx interface {
	// Fetch returns the records of desc's kind matching p, oldest first.
	Fetch(desc EntityDescriptor, p Predicate) ([]model.Row, error)
	// Insert adds r, assigning ID and CreatedAt when unset.
	Insert(r *model.Row) error
	// Update rewrites r's identifier and payload. An identifier that is
	// already assigned cannot be changed.
	Update(r *model.Row) error
	// Delete removes r.
	Delete(r *model.Row) error
	// Commit makes pending changes durable.
	Commit() error
	// Rollback discards pending changes.
	Rollback() error
	// HasChanges reports whether there are uncommitted changes.
	HasChanges() bool
}

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txn struct {
	c        *Context
	ctx      context.Context
	finished bool
}

func (t *txn) check() error {
	if t.finished {
		return fmt.Errorf("%w: tx used outside its perform block", ErrClosed)
	}
	return nil
}

func (t *txn) reader() querier {
	if t.c.tx != nil {
		return t.c.tx
	}
	return t.c.store.db
}

func (t *txn) writer() (querier, error) {
	if t.c.tx == nil {
		tx, err := t.c.store.db.BeginTx(context.Background(), nil)
		if err != nil {
			return nil, fmt.Errorf("begin: %w", err)
		}
		t.c.tx = tx
	}
	return t.c.tx, nil
}

func (t *txn) Fetch(desc EntityDescriptor, p Predicate) ([]model.Row, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("%w: empty descriptor", ErrUnknownEntity)
	}

	where := "kind = ?"
	args := []any{desc.Name}
	if p != nil {
		clause, a, err := p.where()
		if err != nil {
			return nil, err
		}
		where += " AND (" + clause + ")"
		args = append(args, a...)
	}

	query := `SELECT id, kind, sync_display_uuid, created_at, payload
	          FROM records WHERE ` + where + ` ORDER BY ` + defaultOrderExpr

	rows, err := t.reader().QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", desc.Name, err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", desc.Name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", desc.Name, err)
	}

	t.c.store.logger.Debug("fetch", "context", t.c.name, "kind", desc.Name, "predicate", predicateString(p), "rows", len(out))
	return out, nil
}

func (t *txn) Insert(r *model.Row) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.c.store.EntityDescriptor(r.Kind); err != nil {
		return err
	}
	w, err := t.writer()
	if err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = t.c.store.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err = w.ExecContext(t.ctx,
		`INSERT INTO records (id, kind, sync_display_uuid, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Kind, nullString(r.EncodedID), r.CreatedAt.UTC().Format(timeLayout), nullPayload(r.Payload))
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.Kind, err)
	}
	return nil
}

func (t *txn) Update(r *model.Row) error {
	if err := t.check(); err != nil {
		return err
	}
	w, err := t.writer()
	if err != nil {
		return err
	}

	var current sql.NullString
	err = w.QueryRowContext(t.ctx, `SELECT sync_display_uuid FROM records WHERE id = ?`, r.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", r.Kind, err)
	}
	if current.Valid && current.String != r.EncodedID {
		return fmt.Errorf("%w: %s has %q", ErrIdentifierImmutable, r.ID, current.String)
	}

	_, err = w.ExecContext(t.ctx,
		`UPDATE records SET sync_display_uuid = ?, payload = ? WHERE id = ?`,
		nullString(r.EncodedID), nullPayload(r.Payload), r.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.Kind, err)
	}
	return nil
}

func (t *txn) Delete(r *model.Row) error {
	if err := t.check(); err != nil {
		return err
	}
	w, err := t.writer()
	if err != nil {
		return err
	}
	res, err := w.ExecContext(t.ctx, `DELETE FROM records WHERE id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.Kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	return nil
}

func (t *txn) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	if t.c.tx == nil {
		return nil
	}
	err := t.c.tx.Commit()
	t.c.tx = nil
	if err != nil {
		return fmt.Errorf("commit %s: %w", t.c.name, err)
	}
	t.c.store.logger.Debug("commit", "context", t.c.name)
	return nil
}

func (t *txn) Rollback() error {
	if err := t.check(); err != nil {
		return err
	}
	if t.c.tx == nil {
		return nil
	}
	err := t.c.tx.Rollback()
	t.c.tx = nil
	return err
}

func (t *txn) HasChanges() bool {
	return t.c.tx != nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(row scanner) (model.Row, error) {
	var r model.Row
	var encoded, payload sql.NullString
	var createdAt string

	if err := row.Scan(&r.ID, &r.Kind, &encoded, &createdAt, &payload); err != nil {
		return r, err
	}
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if encoded.Valid {
		r.EncodedID = encoded.String
	}
	if payload.Valid {
		r.Payload = json.RawMessage(payload.String)
	}
	return r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullPayload(p json.RawMessage) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}

func predicateString(p Predicate) string {
	if p == nil {
		return "TRUE"
	}
	return p.String()
}
