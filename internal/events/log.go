package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustledger/pkg/requestcontext"
)

// Emitter appends encoded entries to the emitted-record log.
type Emitter interface {
	Append(ctx context.Context, e Entry) Record
}

// Log is the in-memory, append-only, hash-chained record log. Sequence numbers
// start at 1 and have no gaps. Records are never modified once appended.
// Every Log has a fresh epoch, so records from different process lifetimes
// never share an identity even though their sequence numbers overlap.
type Log struct {
	epoch    uuid.UUID
	mu       sync.RWMutex
	records  []Record
	lastHash string
	changed  chan struct{}

	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Log)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Log) {
		l.metrics = m
	}
}

func NewLog(opts ...Option) *Log {
	l := &Log{
		epoch:    uuid.New(),
		lastHash: GenesisHash,
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Epoch identifies this log instance.
func (l *Log) Epoch() uuid.UUID {
	return l.epoch
}

// Append commits an entry and wakes every Changed waiter.
func (l *Log) Append(ctx context.Context, e Entry) Record {
	l.mu.Lock()
	seq := uint64(len(l.records)) + 1
	rec := Record{
		ID:         uuid.New(),
		Epoch:      l.epoch,
		Seq:        seq,
		Ledger:     e.ledger,
		Kind:       e.kind,
		Category:   e.kind.Category(),
		Payload:    e.payload,
		// Postgres keeps microseconds; a stored copy must hash the same.
		RecordedAt: requestcontext.Now(ctx).UTC().Truncate(time.Microsecond),
		PrevHash:   l.lastHash,
	}
	rec.Hash = chainHash(rec)
	l.records = append(l.records, rec)
	l.lastHash = rec.Hash
	notify := l.changed
	l.changed = make(chan struct{})
	l.mu.Unlock()

	close(notify)

	if l.metrics != nil {
		l.metrics.IncAppended(rec.Ledger, rec.Kind)
		l.metrics.SetHead(rec.Seq)
	}
	if l.logger != nil {
		l.logger.DebugContext(ctx, "record appended",
			"seq", rec.Seq,
			"ledger", rec.Ledger,
			"kind", rec.Kind,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return rec
}

// Since returns up to limit records with Seq greater than after, in order.
// A non-positive limit returns everything after the cursor.
func (l *Log) Since(after uint64, limit int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if after >= uint64(len(l.records)) {
		return nil
	}
	tail := l.records[after:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}
	out := make([]Record, len(tail))
	copy(out, tail)
	return out
}

// Head returns the sequence number of the last record, or 0 for an empty log.
func (l *Log) Head() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records))
}

// Changed returns a channel that is closed on the next Append.
func (l *Log) Changed() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changed
}

// Verify walks the chain and reports the first record whose links do not hold.
func (l *Log) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyChain(l.records)
}

// VerifyChain checks sequence continuity and hash links for a contiguous slice
// of one epoch starting at the genesis record.
func VerifyChain(records []Record) error {
	prev := GenesisHash
	for i, rec := range records {
		if rec.Epoch != records[0].Epoch {
			return fmt.Errorf("record %d: epoch mismatch", rec.Seq)
		}
		if want := uint64(i) + 1; rec.Seq != want {
			return fmt.Errorf("record %d: sequence gap, want %d", rec.Seq, want)
		}
		if rec.PrevHash != prev {
			return fmt.Errorf("record %d: prev hash mismatch", rec.Seq)
		}
		if got := chainHash(rec); got != rec.Hash {
			return fmt.Errorf("record %d: hash mismatch", rec.Seq)
		}
		prev = rec.Hash
	}
	return nil
}
