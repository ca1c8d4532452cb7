// Package postgres materializes committed records into a ledger_records table.
// Rows are keyed by (epoch, seq): redelivered batches are harmless, and records
// from a restarted log sit beside earlier epochs instead of colliding with them.
// Payloads are stored as JSON rather than JSONB to keep the hashed bytes intact.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustledger/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_records (
	epoch       UUID NOT NULL,
	seq         BIGINT NOT NULL,
	id          UUID NOT NULL,
	ledger      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	category    TEXT NOT NULL,
	payload     JSON NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	prev_hash   TEXT NOT NULL,
	hash        TEXT NOT NULL,
	PRIMARY KEY (epoch, seq)
);
CREATE INDEX IF NOT EXISTS ledger_records_ledger_kind ON ledger_records (ledger, kind);
`

const insertRecord = `
	INSERT INTO ledger_records (epoch, seq, id, ledger, kind, category, payload, recorded_at, prev_hash, hash)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (epoch, seq) DO NOTHING
`

type Sink struct {
	db *sql.DB
}

// Open connects with the lib/pq driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func New(db *sql.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Name() string { return "postgres" }

// Migrate creates the table and index when missing.
func (s *Sink) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger_records: %w", err)
	}
	return nil
}

// Deliver inserts the batch in one transaction.
func (s *Sink) Deliver(ctx context.Context, records []events.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err = stmt.ExecContext(ctx,
			rec.Epoch,
			int64(rec.Seq),
			rec.ID,
			string(rec.Ledger),
			string(rec.Kind),
			string(rec.Category),
			string(rec.Payload),
			rec.RecordedAt,
			rec.PrevHash,
			rec.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", rec.Seq, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LastSeq returns the highest sequence number stored for epoch, or 0 when the
// epoch has no rows.
func (s *Sink) LastSeq(ctx context.Context, epoch uuid.UUID) (uint64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM ledger_records WHERE epoch = $1`, epoch).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return uint64(seq), nil
}

// Records reads the records of one epoch with seq > after in order. Used to
// audit the materialized copy against the live log.
func (s *Sink) Records(ctx context.Context, epoch uuid.UUID, after uint64) ([]events.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, seq, id, ledger, kind, category, payload, recorded_at, prev_hash, hash
		FROM ledger_records WHERE epoch = $1 AND seq > $2 ORDER BY seq`, epoch, int64(after))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []events.Record
	for rows.Next() {
		var (
			rec     events.Record
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&rec.Epoch, &seq, &rec.ID, &rec.Ledger, &rec.Kind, &rec.Category,
			&payload, &rec.RecordedAt, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Seq = uint64(seq)
		rec.Payload = payload
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}
