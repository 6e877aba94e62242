package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/backoffice-backend/internal/cart"
	"github.com/angelmondragon/backoffice-backend/internal/scanqueue"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

const settlePoll = 10 * time.Millisecond

// station reads scanned codes line by line and feeds them through a scan
// queue into a local cart. Lines starting with ':' are commands.
type station struct {
	cart  *cart.Cart
	queue *scanqueue.Queue
	out   *lockedWriter
}

type stationOptions struct {
	MovementType enums.MovementType
	Queue        scanqueue.Options
	Logger       *logger.Logger
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, format, args...)
}

// printNotifier writes notifications to the terminal.
type printNotifier struct {
	out *lockedWriter
}

func (p printNotifier) Notify(_ context.Context, code string, severity enums.NotificationSeverity, text string) {
	p.out.printf("[%s] %s\n", severity, text)
}

func newStation(lookup scanqueue.Lookuper, out io.Writer, opts stationOptions) (*station, error) {
	w := &lockedWriter{w: out}
	c := cart.New(opts.MovementType)
	qOpts := opts.Queue
	qOpts.Logger = opts.Logger
	q, err := scanqueue.New(lookup, c, printNotifier{out: w}, qOpts)
	if err != nil {
		return nil, err
	}
	return &station{cart: c, queue: q, out: w}, nil
}

// run consumes in until EOF or ":quit", then waits for pending lookups to
// settle and prints the final cart.
func (s *station) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.queue.Run(ctx) }()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			if err := s.queue.Submit(line); err != nil {
				s.out.printf("[error] %v\n", err)
			}
			continue
		}
		switch line {
		case ":cart":
			s.settle(ctx)
			s.printCart()
		case ":clear":
			s.queue.Clear()
			s.out.printf("cart cleared\n")
		case ":quit":
			return s.finish(ctx, cancel, done)
		default:
			s.out.printf("unknown command %q (use :cart, :clear or :quit)\n", line)
		}
	}
	if err := scanner.Err(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("read scans: %w", err)
	}
	return s.finish(ctx, cancel, done)
}

func (s *station) finish(ctx context.Context, cancel context.CancelFunc, done <-chan error) error {
	s.settle(ctx)
	cancel()
	err := <-done
	s.printCart()
	return err
}

// settle blocks until the queue has no buffered, pending or in-flight code.
func (s *station) settle(ctx context.Context) {
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()
	for {
		stats := s.queue.Stats()
		if stats.Buffered == 0 && len(stats.Pending) == 0 && stats.InFlight == "" {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *station) printCart() {
	lines := s.cart.Lines()
	s.out.printf("cart (%s): %d lines, %d units\n", s.cart.MovementType(), len(lines), s.cart.TotalUnits())
	for _, line := range lines {
		if line.MinQuantity != nil {
			s.out.printf("  %s  %-30s x%d (min %d)\n", line.Code, line.Name, line.Quantity, *line.MinQuantity)
			continue
		}
		s.out.printf("  %s  %-30s x%d\n", line.Code, line.Name, line.Quantity)
	}
}
