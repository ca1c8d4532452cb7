// Package dispatcher tails the emitted-record log and delivers records to
// observer sinks in sequence order.
//
// Each sink has its own cursor, goroutine and circuit breaker, so a slow or
// failing sink never holds back the others. Delivery is at-least-once: a batch
// that fails is retried from the same cursor, and sinks must treat (Epoch, Seq)
// as an idempotency key.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trustledger/internal/events"
	"trustledger/pkg/platform/circuit"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks Sink

// Sink receives committed records.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, records []events.Record) error
}

// Resumer is implemented by sinks that remember what they already hold, so a
// restarted dispatcher can skip records the sink has acknowledged. LastSeq
// reports the highest seq held for epoch, and 0 when the sink holds nothing
// from that epoch.
type Resumer interface {
	LastSeq(ctx context.Context, epoch uuid.UUID) (uint64, error)
}

// Source is the read side of the record log.
type Source interface {
	Epoch() uuid.UUID
	Since(after uint64, limit int) []events.Record
	Head() uint64
	Changed() <-chan struct{}
}

type Dispatcher struct {
	source       Source
	sinks        []Sink
	batchSize    int
	pollInterval time.Duration
	breakerOpts  []circuit.Option
	logger       *slog.Logger
	metrics      *events.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *events.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithBatchSize caps the number of records handed to a sink per Deliver call.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithPollInterval sets how long a sink waits before retrying after a failure,
// and the fallback wake-up when no append notification arrives.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithBreakerOptions configures the per-sink circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(d *Dispatcher) {
		d.breakerOpts = append(d.breakerOpts, opts...)
	}
}

func New(source Source, sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:       source,
		sinks:        sinks,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Run delivers records until ctx is cancelled. It returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range d.sinks {
		g.Go(func() error {
			return d.runSink(gctx, sink)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) runSink(ctx context.Context, sink Sink) error {
	name := sink.Name()
	breaker := circuit.New(name, d.breakerOpts...)
	cursor := d.resume(ctx, sink)

	d.logger.InfoContext(ctx, "sink started", "sink", name, "cursor", cursor)
	for {
		changed := d.source.Changed()
		batch := d.source.Since(cursor, d.batchSize)
		if len(batch) == 0 {
			if err := d.wait(ctx, changed); err != nil {
				return err
			}
			continue
		}
		if !breaker.Allow() {
			if err := d.wait(ctx, nil); err != nil {
				return err
			}
			continue
		}

		if err := sink.Deliver(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_, change := breaker.RecordFailure()
			d.onFailure(ctx, name, batch, err, change)
			if err := d.wait(ctx, nil); err != nil {
				return err
			}
			continue
		}

		_, change := breaker.RecordSuccess()
		if change.Closed {
			d.logger.InfoContext(ctx, "sink recovered", "sink", name)
			d.setBreaker(name, false)
		}
		cursor = batch[len(batch)-1].Seq
		if d.metrics != nil {
			d.metrics.AddDelivered(name, len(batch))
			d.metrics.SetSinkCursor(name, cursor)
		}
	}
}

func (d *Dispatcher) resume(ctx context.Context, sink Sink) uint64 {
	r, ok := sink.(Resumer)
	if !ok {
		return 0
	}
	epoch := d.source.Epoch()
	seq, err := r.LastSeq(ctx, epoch)
	if err != nil {
		d.logger.WarnContext(ctx, "sink resume failed, replaying from start",
			"sink", sink.Name(),
			"epoch", epoch,
			"error", err,
		)
		return 0
	}
	if head := d.source.Head(); seq > head {
		d.logger.WarnContext(ctx, "sink cursor ahead of log, replaying from start",
			"sink", sink.Name(),
			"epoch", epoch,
			"sink_seq", seq,
			"head", head,
		)
		return 0
	}
	return seq
}

func (d *Dispatcher) onFailure(ctx context.Context, name string, batch []events.Record, err error, change circuit.StateChange) {
	if d.metrics != nil {
		d.metrics.IncDeliverErrors(name)
	}
	d.logger.WarnContext(ctx, "sink delivery failed",
		"sink", name,
		"first_seq", batch[0].Seq,
		"count", len(batch),
		"error", err,
	)
	if change.Opened {
		d.logger.ErrorContext(ctx, "sink circuit opened", "sink", name)
		d.setBreaker(name, true)
	}
}

func (d *Dispatcher) setBreaker(name string, open bool) {
	if d.metrics != nil {
		d.metrics.SetBreakerState(name, open)
	}
}

// wait blocks until changed fires, the poll interval passes or ctx ends.
// A nil changed channel waits for the interval only.
func (d *Dispatcher) wait(ctx context.Context, changed <-chan struct{}) error {
	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
		return nil
	case <-timer.C:
		return nil
	}
}
