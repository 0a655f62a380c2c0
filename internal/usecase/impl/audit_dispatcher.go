package impl

import (
	"context"
	"log/slog"
	"sync"

	"warden/internal/domain/entity"
	"warden/internal/domain/repository"
	"warden/internal/domain/service"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// auditDispatcher persists audit events off the request path with a fixed pool of workers
// reading from a bounded queue. Failed writes are logged and dropped.
type auditDispatcher struct {
	repo      repository.AuditRepository
	publisher service.AuditEventPublisher
	logger    *slog.Logger
	workers   int
	queue     chan *entity.AuditEvent

	mu      sync.RWMutex
	started bool
	closed  bool
	group   *errgroup.Group
	cancel  context.CancelFunc
}

func newAuditDispatcher(
	repo repository.AuditRepository,
	publisher service.AuditEventPublisher,
	logger *slog.Logger,
	workers, queueSize int,
) *auditDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	return &auditDispatcher{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		workers:   workers,
		queue:     make(chan *entity.AuditEvent, queueSize),
	}
}

func (d *auditDispatcher) start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	for range d.workers {
		group.Go(func() error {
			d.work(groupCtx)

			return nil
		})
	}

	d.group = group
	d.cancel = cancel
	d.started = true
}

func (d *auditDispatcher) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.closed
}

// enqueue never blocks. It reports false when the event was dropped.
func (d *auditDispatcher) enqueue(event *entity.AuditEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.logger.Warn("Audit queue full, dropping event",
			slog.String("action", string(event.Action)),
			slog.String("event_id", event.ID.String()),
			slog.Int("capacity", cap(d.queue)))

		return false
	}
}

// close stops accepting events and drains the queue. Once ctx expires the remaining
// events are abandoned and in-flight writes are cancelled.
func (d *auditDispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()

		return nil
	}
	d.closed = true
	close(d.queue)
	started, group, cancel := d.started, d.group, d.cancel
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()

		return nil
	case <-ctx.Done():
		cancel()
		<-done

		return errors.Wrap(ctx.Err(), "audit queue abandoned during shutdown")
	}
}

func (d *auditDispatcher) work(ctx context.Context) {
	for event := range d.queue {
		if ctx.Err() != nil {
			continue
		}
		d.deliver(ctx, event)
	}
}

func (d *auditDispatcher) deliver(ctx context.Context, event *entity.AuditEvent) {
	if err := d.repo.Create(ctx, event); err != nil {
		if ctx.Err() == nil {
			d.logger.Warn("Failed to persist audit event",
				slog.String("action", string(event.Action)),
				slog.String("event_id", event.ID.String()),
				slog.Any("error", err))
		}

		return
	}

	if d.publisher == nil {
		return
	}

	if err := d.publisher.PublishAuditEvent(ctx, service.NewAuditEventMessage(event)); err != nil && ctx.Err() == nil {
		d.logger.Warn("Failed to publish audit event",
			slog.String("event_id", event.ID.String()),
			slog.Any("error", err))
	}
}
