package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

const DefaultInboxSize = 50

// Notification is a transient message raised to the operator of a scan session.
type Notification struct {
	ID        uuid.UUID                  `json:"id"`
	Code      string                     `json:"code,omitempty"`
	Text      string                     `json:"text"`
	Severity  enums.NotificationSeverity `json:"severity"`
	CreatedAt time.Time                  `json:"created_at"`
}

// Inbox keeps the most recent notifications in a fixed-size ring. When full,
// the oldest notification is evicted.
type Inbox struct {
	logg *logger.Logger
	now  func() time.Time

	mu    sync.Mutex
	items []Notification
	start int
	count int
}

func NewInbox(size int, logg *logger.Logger) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{
		logg:  logg,
		now:   time.Now,
		items: make([]Notification, size),
	}
}

// Notify records a message and logs it at the level matching severity.
func (i *Inbox) Notify(ctx context.Context, code string, severity enums.NotificationSeverity, text string) {
	if !severity.IsValid() {
		severity = enums.NotificationSeverityInfo
	}
	n := Notification{
		ID:        uuid.New(),
		Code:      code,
		Text:      text,
		Severity:  severity,
		CreatedAt: i.now().UTC(),
	}

	i.mu.Lock()
	size := len(i.items)
	if i.count < size {
		i.items[(i.start+i.count)%size] = n
		i.count++
	} else {
		i.items[i.start] = n
		i.start = (i.start + 1) % size
	}
	i.mu.Unlock()

	i.log(ctx, n)
}

// Drain returns the buffered notifications oldest first and empties the inbox.
func (i *Inbox) Drain() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := i.snapshot()
	i.start = 0
	i.count = 0
	clear(i.items)
	return out
}

// Peek returns the buffered notifications without removing them.
func (i *Inbox) Peek() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshot()
}

func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.count
}

func (i *Inbox) snapshot() []Notification {
	out := make([]Notification, 0, i.count)
	for n := 0; n < i.count; n++ {
		out = append(out, i.items[(i.start+n)%len(i.items)])
	}
	return out
}

func (i *Inbox) log(ctx context.Context, n Notification) {
	if i.logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logCtx := i.logg.WithFields(ctx, map[string]any{
		"scan_code": n.Code,
		"severity":  n.Severity.String(),
	})
	switch n.Severity {
	case enums.NotificationSeverityError:
		i.logg.Error(logCtx, "notification raised", errors.New(n.Text))
	case enums.NotificationSeverityWarning:
		i.logg.Warn(logCtx, n.Text)
	default:
		i.logg.Info(logCtx, n.Text)
	}
}
