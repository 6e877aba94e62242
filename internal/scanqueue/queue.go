package scanqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/types"
)

const (
	DefaultBufferSize    = 256
	DefaultDrainDelay    = 25 * time.Millisecond
	DefaultLookupTimeout = 5 * time.Second
)

var (
	ErrEmptyCode      = pkgerrors.New(pkgerrors.CodeValidation, "scan code is empty")
	ErrBufferFull     = pkgerrors.New(pkgerrors.CodeRateLimit, "scan buffer is full")
	ErrQueueClosed    = pkgerrors.New(pkgerrors.CodeStateConflict, "scan queue is closed")
	ErrAlreadyRunning = errors.New("scan queue drain worker already running")
)

// Lookuper resolves a scanned code into a product record. Implementations
// report a missing product with a pkg/errors CodeNotFound error; any other
// failure is treated as a transport error.
type Lookuper interface {
	LookupByCode(ctx context.Context, code string) (types.ProductRecord, error)
}

// CartSink receives the cart mutations produced by the queue. Reset is the
// replace-all-with-empty operation issued by Clear. Both are called while
// the queue holds its lock, so they must not call back into the queue.
type CartSink interface {
	Merge(record types.ProductRecord)
	Reset()
}

// Notifier surfaces transient messages to the operator. Called with the
// queue lock held.
type Notifier interface {
	Notify(ctx context.Context, code string, severity enums.NotificationSeverity, text string)
}

// Options tunes a Queue. Zero values fall back to the package defaults,
// except DrainDelay and LookupTimeout which may be disabled with a negative value.
type Options struct {
	BufferSize      int
	DrainDelay      time.Duration
	LookupTimeout   time.Duration
	DuplicatePolicy DuplicatePolicy
	Logger          *logger.Logger
	Metrics         *metrics.ScanMetrics
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.DrainDelay == 0 {
		o.DrainDelay = DefaultDrainDelay
	}
	if o.LookupTimeout == 0 {
		o.LookupTimeout = DefaultLookupTimeout
	}
	if o.DuplicatePolicy == "" {
		o.DuplicatePolicy = DuplicatePolicyDrop
	}
	return o
}

type item struct {
	code       string
	generation uint64
}

// Queue turns a burst of scanned codes into sequential product lookups.
// Codes are looked up one at a time in submission order by the single
// goroutine running Run; results are merged into the CartSink in that
// same order.
type Queue struct {
	lookup   Lookuper
	sink     CartSink
	notifier Notifier
	opts     Options

	items   chan item
	running atomic.Bool

	mu             sync.Mutex
	pending        map[string]int
	generation     uint64
	inflight       string
	cancelInflight context.CancelFunc
	closed         bool
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Buffered   int      `json:"buffered"`
	Pending    []string `json:"pending"`
	InFlight   string   `json:"in_flight,omitempty"`
	Generation uint64   `json:"generation"`
}

func New(lookup Lookuper, sink CartSink, notifier Notifier, opts Options) (*Queue, error) {
	if lookup == nil {
		return nil, errors.New("lookup is required")
	}
	if sink == nil {
		return nil, errors.New("cart sink is required")
	}
	opts = opts.withDefaults()
	if !opts.DuplicatePolicy.IsValid() {
		return nil, fmt.Errorf("invalid duplicate policy %q", opts.DuplicatePolicy)
	}
	return &Queue{
		lookup:   lookup,
		sink:     sink,
		notifier: notifier,
		opts:     opts,
		items:    make(chan item, opts.BufferSize),
		pending:  make(map[string]int),
	}, nil
}

// Submit appends a scanned code to the buffer. Surrounding whitespace is
// trimmed and blank codes are rejected with ErrEmptyCode. Under the drop
// policy a code that is already pending is discarded and Submit returns nil.
func (q *Queue) Submit(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		q.opts.Metrics.IncRejected("empty")
		return ErrEmptyCode
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.opts.Metrics.IncRejected("closed")
		return ErrQueueClosed
	}

	if q.pending[code] > 0 && q.opts.DuplicatePolicy == DuplicatePolicyDrop {
		q.opts.Metrics.IncDropped()
		q.debug(code, "scan.duplicate_dropped")
		return nil
	}

	select {
	case q.items <- item{code: code, generation: q.generation}:
		q.pending[code]++
		q.opts.Metrics.IncSubmitted()
		return nil
	default:
		q.opts.Metrics.IncRejected("buffer_full")
		return ErrBufferFull
	}
}

// Run drains the buffer until ctx is done. Only one Run may be active per
// Queue; once it returns the queue rejects further submissions.
func (q *Queue) Run(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case it := <-q.items:
			if !q.process(ctx, it) {
				continue
			}
			if !q.pause(ctx) {
				return nil
			}
		}
	}
}

// Clear starts a new generation: the buffer and pending set are emptied,
// the in-flight lookup is cancelled, and the sink is reset. A lookup from
// the previous generation that completes later is discarded.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.generation++
	if q.cancelInflight != nil {
		q.cancelInflight()
		q.cancelInflight = nil
	}
	q.inflight = ""
	q.pending = make(map[string]int)

drain:
	for {
		select {
		case <-q.items:
		default:
			break drain
		}
	}

	q.sink.Reset()
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]string, 0, len(q.pending))
	for code := range q.pending {
		pending = append(pending, code)
	}
	sort.Strings(pending)

	return Stats{
		Buffered:   len(q.items),
		Pending:    pending,
		InFlight:   q.inflight,
		Generation: q.generation,
	}
}

// process looks up one code and applies the outcome. It reports whether a
// lookup was actually issued.
func (q *Queue) process(ctx context.Context, it item) bool {
	q.mu.Lock()
	if it.generation != q.generation {
		q.mu.Unlock()
		return false
	}
	lookupCtx, cancel := q.lookupContext(ctx)
	q.inflight = it.code
	q.cancelInflight = cancel
	q.mu.Unlock()

	start := time.Now()
	record, err := q.lookup.LookupByCode(lookupCtx, it.code)
	timedOut := errors.Is(lookupCtx.Err(), context.DeadlineExceeded)
	cancel()

	q.mu.Lock()
	defer q.mu.Unlock()

	if it.generation != q.generation {
		q.opts.Metrics.ObserveLookup(outcomeStale, time.Since(start))
		return true
	}
	q.inflight = ""
	q.cancelInflight = nil
	q.release(it.code)

	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		outcome, severity, text := describeFailure(it.code, err, timedOut, q.opts.LookupTimeout)
		q.opts.Metrics.ObserveLookup(outcome, time.Since(start))
		q.warn(it.code, "scan.lookup_failed", err)
		if q.notifier != nil {
			q.notifier.Notify(ctx, it.code, severity, text)
		}
		return true
	}

	if strings.TrimSpace(record.Code) == "" {
		record.Code = it.code
	}
	q.opts.Metrics.ObserveLookup(outcomeFound, time.Since(start))
	q.sink.Merge(record)
	return true
}

func (q *Queue) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.opts.LookupTimeout > 0 {
		return context.WithTimeout(ctx, q.opts.LookupTimeout)
	}
	return context.WithCancel(ctx)
}

func (q *Queue) release(code string) {
	if n := q.pending[code]; n > 1 {
		q.pending[code] = n - 1
		return
	}
	delete(q.pending, code)
}

func (q *Queue) pause(ctx context.Context) bool {
	if q.opts.DrainDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(q.opts.DrainDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (q *Queue) debug(code, msg string) {
	if q.opts.Logger == nil {
		return
	}
	ctx := q.opts.Logger.WithScanCode(context.Background(), code)
	q.opts.Logger.Debug(ctx, msg)
}

func (q *Queue) warn(code, msg string, err error) {
	if q.opts.Logger == nil {
		return
	}
	ctx := q.opts.Logger.WithFields(context.Background(), map[string]any{
		"scan_code": code,
		"error":     err.Error(),
	})
	q.opts.Logger.Warn(ctx, msg)
}
