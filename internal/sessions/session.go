package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/backoffice-backend/internal/cart"
	"github.com/angelmondragon/backoffice-backend/internal/notifications"
	"github.com/angelmondragon/backoffice-backend/internal/scanqueue"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

// Session is one operator's scanning workspace: a cart being filled by a
// dedicated scan queue, and an inbox of transient notifications.
type Session struct {
	ID           uuid.UUID
	MovementType enums.MovementType
	CreatedAt    time.Time

	Cart  *cart.Cart
	Inbox *notifications.Inbox

	submitMu   sync.Mutex
	queue      *scanqueue.Queue
	now        func() time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	lastActive atomic.Int64
}

// View is the JSON shape of a session.
type View struct {
	ID           uuid.UUID          `json:"id"`
	MovementType enums.MovementType `json:"movement_type"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActiveAt time.Time          `json:"last_active_at"`
	Lines        []cart.Line        `json:"lines"`
	TotalUnits   int                `json:"total_units"`
	BelowMinimum []cart.Line        `json:"below_minimum,omitempty"`
	Queue        scanqueue.Stats    `json:"queue"`
}

// Scan hands a raw scanned code to the session queue.
func (s *Session) Scan(code string) error {
	s.touch(s.now())
	return s.queue.Submit(code)
}

// Clear drops queued scans, discards in-flight results and empties the cart.
func (s *Session) Clear() {
	s.touch(s.now())
	s.queue.Clear()
}

func (s *Session) QueueStats() scanqueue.Stats {
	return s.queue.Stats()
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load()).UTC()
}

func (s *Session) View() View {
	return View{
		ID:           s.ID,
		MovementType: s.MovementType,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActive(),
		Lines:        s.Cart.Lines(),
		TotalUnits:   s.Cart.TotalUnits(),
		BelowMinimum: s.Cart.BelowMinimum(),
		Queue:        s.queue.Stats(),
	}
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// stop cancels the drain worker and waits up to timeout for it to exit.
func (s *Session) stop(timeout time.Duration) error {
	s.cancel()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return nil
	case <-timer.C:
		return errStopTimeout(s.ID)
	}
}
