package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/backoffice-backend/internal/cart"
	"github.com/angelmondragon/backoffice-backend/internal/cron"
	"github.com/angelmondragon/backoffice-backend/internal/movements"
	"github.com/angelmondragon/backoffice-backend/internal/notifications"
	"github.com/angelmondragon/backoffice-backend/internal/scanqueue"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
)

const (
	SweepJobName       = "session_sweep"
	defaultIdleTTL     = 30 * time.Minute
	defaultStopTimeout = 5 * time.Second
)

var ErrManagerClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "session manager is shut down")

func errStopTimeout(id uuid.UUID) error {
	return fmt.Errorf("session %s: drain worker did not stop in time", id)
}

// MovementSubmitter records a finished cart as a stock movement.
type MovementSubmitter interface {
	Submit(ctx context.Context, input movements.SubmitInput) (*models.StockMovement, error)
}

type ManagerParams struct {
	Lookup      scanqueue.Lookuper
	Movements   MovementSubmitter
	Scan        config.ScanConfig
	Sessions    config.SessionsConfig
	Logger      *logger.Logger
	ScanMetrics *metrics.ScanMetrics
	JobMetrics  *metrics.JobMetrics
	Now         func() time.Time
}

// SubmitInput carries the movement header for a session submit; lines come
// from the session cart.
type SubmitInput struct {
	Reference *string `json:"reference"`
	Notes     *string `json:"notes"`
}

// Manager owns the live scan sessions of this process.
type Manager struct {
	lookup      scanqueue.Lookuper
	movements   MovementSubmitter
	queueOpts   scanqueue.Options
	idleTTL     time.Duration
	sweepEvery  time.Duration
	inboxSize   int
	logg        *logger.Logger
	scanMetrics *metrics.ScanMetrics
	jobMetrics  *metrics.JobMetrics
	now         func() time.Time
	stopTimeout time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	closed   bool
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Lookup == nil {
		return nil, fmt.Errorf("lookup required")
	}
	if params.Movements == nil {
		return nil, fmt.Errorf("movement submitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	policy, err := scanqueue.ParseDuplicatePolicy(params.Scan.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	idleTTL := params.Sessions.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		lookup:    params.Lookup,
		movements: params.Movements,
		queueOpts: scanqueue.Options{
			BufferSize:      params.Scan.BufferSize,
			DrainDelay:      params.Scan.DrainDelay,
			LookupTimeout:   params.Scan.LookupTimeout,
			DuplicatePolicy: policy,
			Logger:          params.Logger,
			Metrics:         params.ScanMetrics,
		},
		idleTTL:     idleTTL,
		sweepEvery:  params.Sessions.SweepInterval,
		inboxSize:   params.Sessions.InboxSize,
		logg:        params.Logger,
		scanMetrics: params.ScanMetrics,
		jobMetrics:  params.JobMetrics,
		now:         now,
		stopTimeout: defaultStopTimeout,
		sessions:    make(map[uuid.UUID]*Session),
	}, nil
}

// Create opens a session and starts its drain worker. The worker is bound to
// the session, not to ctx, so it outlives the request that created it.
func (m *Manager) Create(ctx context.Context, movementType enums.MovementType) (*Session, error) {
	if !movementType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement type must be entry or exit")
	}

	id := uuid.New()
	c := cart.New(movementType)
	inbox := notifications.NewInbox(m.inboxSize, m.logg)
	queue, err := scanqueue.New(m.lookup, c, inbox, m.queueOpts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build scan queue")
	}

	runCtx, cancel := context.WithCancel(m.logg.WithSessionID(context.Background(), id.String()))
	session := &Session{
		ID:           id,
		MovementType: movementType,
		CreatedAt:    m.now().UTC(),
		Cart:         c,
		Inbox:        inbox,
		queue:        queue,
		now:          m.now,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	session.touch(m.now())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, ErrManagerClosed
	}
	m.sessions[id] = session
	active := len(m.sessions)
	m.mu.Unlock()

	go func() {
		defer close(session.done)
		if err := queue.Run(runCtx); err != nil {
			m.logg.Error(runCtx, "scan queue stopped", err)
		}
	}()

	m.scanMetrics.SetActiveSessions(active)
	logCtx := m.logg.WithSessionID(ctx, id.String())
	m.logg.Info(m.logg.WithField(logCtx, "movement_type", movementType.String()), "session.created")
	return session, nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scan session not found")
	}
	return session, nil
}

// Close stops a session. Codes still buffered in its queue are discarded.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	active := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "scan session not found")
	}

	m.scanMetrics.SetActiveSessions(active)
	return session.stop(m.stopTimeout)
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Submit turns the session cart into a stock movement. The cart must be
// non-empty and every scan must have settled. On success the submitted
// lines are taken out of the cart; scans that arrived while the movement was
// being written stay queued or in the cart for the next movement. Submits of
// one session are serialized.
func (m *Manager) Submit(ctx context.Context, id uuid.UUID, input SubmitInput) (*models.StockMovement, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	session.touch(m.now())
	session.submitMu.Lock()
	defer session.submitMu.Unlock()

	if stats := session.QueueStats(); len(stats.Pending) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "scans are still being resolved").
			WithDetails(map[string]any{"pending": stats.Pending})
	}
	lines := session.Cart.Lines()
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	movementLines := make([]movements.LineInput, len(lines))
	for i, line := range lines {
		movementLines[i] = movements.LineInput{Code: line.Code, Quantity: line.Quantity}
	}
	sessionID := session.ID
	movement, err := m.movements.Submit(ctx, movements.SubmitInput{
		SessionID: &sessionID,
		Type:      session.MovementType,
		Reference: input.Reference,
		Notes:     input.Notes,
		Lines:     movementLines,
	})
	if err != nil {
		return nil, err
	}

	session.Cart.Subtract(lines)
	return movement, nil
}

// Sweep closes sessions idle for longer than the idle TTL and reports how
// many were closed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.RLock()
	var idle []uuid.UUID
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	var errs error
	closed := 0
	for _, id := range idle {
		err := m.Close(id)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		closed++
		m.logg.Info(m.logg.WithSessionID(ctx, id.String()), "session.reaped")
	}
	return closed, errs
}

// Run is the idle-session janitor. It returns when ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	svc, err := cron.NewService(cron.ServiceParams{
		Name:     "session-janitor",
		Logger:   m.logg,
		Registry: cron.NewRegistry(cron.JobFunc{JobName: SweepJobName, Fn: func(ctx context.Context) error {
			_, err := m.Sweep(ctx)
			return err
		}}),
		Metrics:  m.jobMetrics,
		Interval: m.sweepEvery,
	})
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

// Shutdown closes every session and refuses new ones. Errors from sessions
// whose workers fail to stop are combined.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	m.scanMetrics.SetActiveSessions(0)
	var errs error
	for _, s := range sessions {
		errs = multierr.Append(errs, s.stop(m.stopTimeout))
	}
	return errs
}

