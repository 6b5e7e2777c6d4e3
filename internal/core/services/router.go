package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driving"
	"github.com/custodia-labs/optiply-target/internal/logger"
	"github.com/custodia-labs/optiply-target/internal/streams"
)

// Ensure SinkRouter implements the interface.
var _ driving.TargetRunner = (*SinkRouter)(nil)

// defaultStateEvery is how many records a stream processes between
// incremental state emissions.
const defaultStateEvery = 50

// streamBuffer is the per-stream channel depth between the reader and a
// stream worker.
const streamBuffer = 64

// SinkRouter pulls records from the upstream source and drives each one
// through mapper, dispatcher and ledger. One worker per stream keeps
// records in arrival order within a stream while streams run concurrently.
type SinkRouter struct {
	registry   *streams.Registry
	mapper     *FieldMapper
	dispatcher driven.Dispatcher
	ledger     *Ledger
	source     driven.RecordSource
	states     driven.StateWriter
	stateEvery int

	mu        sync.Mutex
	processed int
	failed    int
	running   bool

	fatalOnce sync.Once
	fatalErr  error
	cancel    context.CancelFunc
}

// NewSinkRouter wires the pipeline together. stateEvery <= 0 selects the
// default emission interval.
func NewSinkRouter(
	registry *streams.Registry,
	mapper *FieldMapper,
	dispatcher driven.Dispatcher,
	ledger *Ledger,
	source driven.RecordSource,
	states driven.StateWriter,
	stateEvery int,
) *SinkRouter {
	if stateEvery <= 0 {
		stateEvery = defaultStateEvery
	}
	return &SinkRouter{
		registry:   registry,
		mapper:     mapper,
		dispatcher: dispatcher,
		ledger:     ledger,
		source:     source,
		states:     states,
		stateEvery: stateEvery,
	}
}

// Run consumes records until end of input. Each stream gets its own worker;
// the reader demultiplexes records into per-stream channels in arrival
// order. Per-record failures are bookmarked and skipped; an authentication
// failure aborts the run after bookkeeping for in-flight records completes.
func (r *SinkRouter) Run(ctx context.Context) (*domain.StateSnapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	r.setRunning(true)
	defer r.setRunning(false)

	chans := make(map[string]chan *domain.Record)
	var wg sync.WaitGroup

	for {
		rec, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				// Cancelled: either the caller gave up or a worker hit a
				// fatal error. Drain and report below.
				break
			}
			logger.Error("reading input: %v", err)
			break
		}

		ch, ok := chans[rec.Stream]
		if !ok {
			ch = make(chan *domain.Record, streamBuffer)
			chans[rec.Stream] = ch
			wg.Add(1)
			go r.streamWorker(ctx, rec.Stream, ch, &wg)
		}

		select {
		case ch <- rec:
		case <-ctx.Done():
		}
		if ctx.Err() != nil && r.loadFatal() != nil {
			break
		}
	}

	for _, ch := range chans {
		close(ch)
	}
	wg.Wait()

	snap := r.ledger.Flush(ctx)
	// Emit the final state regardless of how the run ended, so partial
	// progress survives an aborted run.
	flushCtx := context.WithoutCancel(ctx)
	if err := r.states.WriteState(flushCtx, snap); err != nil {
		logger.Error("emitting final state: %v", err)
	}
	if err := r.states.WriteFinal(flushCtx, snap); err != nil {
		logger.Error("writing final artifact: %v", err)
	}

	if err := r.loadFatal(); err != nil {
		return &snap, err
	}
	return &snap, nil
}

// Status returns progress of the current run.
func (r *SinkRouter) Status() driving.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return driving.RunStatus{
		RecordsProcessed: r.processed,
		ErrorCount:       r.failed,
		Running:          r.running,
	}
}

// streamWorker processes one stream's records strictly in arrival order.
func (r *SinkRouter) streamWorker(ctx context.Context, stream string, ch <-chan *domain.Record, wg *sync.WaitGroup) {
	defer wg.Done()

	def := r.registry.Lookup(stream)
	if !r.registry.Known(stream) {
		logger.Warn("no catalog entry for stream %q, passing fields through to /%s", stream, def.Endpoint)
	}

	count := 0
	for rec := range ch {
		r.process(ctx, def, rec)
		count++
		if count%r.stateEvery == 0 {
			if err := r.states.WriteState(ctx, r.ledger.Snapshot()); err != nil {
				logger.Warn("emitting state for %s: %v", stream, err)
			}
		}
	}
}

// process drives one record through the pipeline. Exactly one bookmark entry
// and one counter bump result, whatever the outcome.
func (r *SinkRouter) process(ctx context.Context, def *domain.StreamDefinition, rec *domain.Record) {
	hash := HashRecord(rec.Data)
	localID := rec.LocalID()

	if r.ledger.SeenSuccess(def.Name, hash) {
		logger.Debug("%s: duplicate content hash %s, skipping", def.Name, hash[:12])
		r.finish(ctx, def.Name, domain.BookmarkEntry{
			Hash:    hash,
			Success: true,
			ID:      localID,
		}, OutcomeExisting)
		return
	}

	payload, err := r.mapper.Transform(def, rec)
	if err != nil {
		logger.Error("%s: record skipped: %v", def.Name, err)
		r.finish(ctx, def.Name, domain.BookmarkEntry{
			Hash:  hash,
			ID:    localID,
			Error: err.Error(),
		}, OutcomeFailed)
		return
	}

	op := rec.Operation()
	res, err := r.dispatcher.Send(ctx, def, op, localID, payload)
	if err != nil {
		entry := domain.BookmarkEntry{Hash: hash, ID: localID, Error: err.Error()}
		switch {
		case domain.IsAuthFailure(err):
			logger.Error("%s: authentication failure, aborting run: %v", def.Name, err)
			r.finish(ctx, def.Name, entry, OutcomeFailed)
			r.abort(err)
		case domain.IsNotFound(err):
			logger.Warn("%s: entity not found: %v", def.Name, err)
			r.finish(ctx, def.Name, entry, OutcomeFailed)
		default:
			logger.Error("%s: delivery failed: %v", def.Name, err)
			r.finish(ctx, def.Name, entry, OutcomeFailed)
		}
		return
	}

	entry := domain.BookmarkEntry{
		Hash:       hash,
		Success:    true,
		ID:         localID,
		ExternalID: res.ExternalID,
	}
	outcome := OutcomeUpdated
	if op == domain.OperationCreate {
		outcome = OutcomeCreated
	}
	logger.Debug("%s: %s ok (externalId=%s)", def.Name, op, res.ExternalID)
	r.finish(ctx, def.Name, entry, outcome)
}

// finish records the outcome and updates run counters.
func (r *SinkRouter) finish(ctx context.Context, stream string, entry domain.BookmarkEntry, outcome Outcome) {
	r.ledger.Record(ctx, stream, entry, outcome)

	r.mu.Lock()
	r.processed++
	if outcome == OutcomeFailed {
		r.failed++
	}
	r.mu.Unlock()
}

// abort marks the run fatally failed and stops the reader. The first error
// wins; later failures from other streams are per-record bookkeeping only.
func (r *SinkRouter) abort(err error) {
	r.fatalOnce.Do(func() {
		r.mu.Lock()
		r.fatalErr = err
		r.mu.Unlock()
		if r.cancel != nil {
			r.cancel()
		}
	})
}

func (r *SinkRouter) loadFatal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatalErr
}

func (r *SinkRouter) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}
