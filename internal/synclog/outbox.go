package synclog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/syncid"
)

// Outbox is a durable queue of outbound change records.
type Outbox struct {
	db     *sql.DB
	logger *slog.Logger
}

// Entry is one queued record.
type Entry struct {
	Seq        int64            `json:"seq"`
	BatchID    string           `json:"batch_id"`
	RecordType model.RecordType `json:"record_type"`
	Action     string           `json:"action"`
	ObjectID   syncid.ID        `json:"object_id"`
	Record     json.RawMessage  `json:"record"`
	CreatedAt  time.Time        `json:"created_at"`
}

// OpenOutbox opens or creates the outbox database at path.
func OpenOutbox(path string, logger *slog.Logger) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create outbox dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o := &Outbox{db: db, logger: logger}
	if err := o.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate outbox: %w", err)
	}
	return o, nil
}

func (o *Outbox) migrate() error {
	_, err := o.db.Exec(`
	CREATE TABLE IF NOT EXISTS outbox (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id    TEXT NOT NULL,
		record_type TEXT NOT NULL,
		action      TEXT NOT NULL,
		object_id   TEXT NOT NULL,
		record      TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outbox_batch ON outbox(batch_id);
	`)
	return err
}

// Send queues records as one batch. Either every record is queued or none.
func (o *Outbox) Send(ctx context.Context, recordType model.RecordType, action model.Action, records []model.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		r.RecordType = recordType
		r.Action = action
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox (batch_id, record_type, action, object_id, record, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			batch, string(recordType), action.String(), syncid.Encode(r.ObjectID), string(b), now)
		if err != nil {
			return fmt.Errorf("queue record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox: %w", err)
	}
	o.logger.Debug("queued", "batch", batch, "record_type", recordType, "action", action, "records", len(records))
	return nil
}

// Pending returns queued entries in send order. limit <= 0 means all.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT seq, batch_id, record_type, action, object_id, record, created_at
	          FROM outbox ORDER BY seq`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var objectID, record, createdAt string
		if err := rows.Scan(&e.Seq, &e.BatchID, &e.RecordType, &e.Action, &objectID, &record, &createdAt); err != nil {
			return nil, err
		}
		e.ObjectID = syncid.DecodeLossy(objectID)
		e.Record = json.RawMessage(record)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ack removes entries up to and including seq, once the transport has
// delivered them. It returns the number removed.
func (o *Outbox) Ack(ctx context.Context, seq int64) (int, error) {
	res, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE seq <= ?`, seq)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AckBatches removes every entry belonging to the given batches.
func (o *Outbox) AckBatches(ctx context.Context, batchIDs ...string) (int, error) {
	if len(batchIDs) == 0 {
		return 0, nil
	}
	args := make([]any, len(batchIDs))
	for i, b := range batchIDs {
		args[i] = b
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(batchIDs)), ", ")
	res, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE batch_id IN (`+marks+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the outbox database.
func (o *Outbox) Close() error {
	return o.db.Close()
}
