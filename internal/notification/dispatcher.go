package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"spotter_portal_backend/internal/notification/templates"
	"spotter_portal_backend/internal/notification/updates"
	"spotter_portal_backend/platform/apperr"
	"spotter_portal_backend/platform/logger"
)

const (
	defaultMaxAttempts = 5
	defaultTimeout     = 10 * time.Second
	defaultBackoff     = 2 * time.Second
	guardKeyPrefix     = "notification:delivery:"
)

var (
	// ErrAttemptsExhausted is returned by Deliver once an update has used
	// all of its delivery attempts.
	ErrAttemptsExhausted = errors.New("delivery attempts exhausted")
	// ErrDeliveryInFlight is returned when another worker holds the update.
	ErrDeliveryInFlight = errors.New("delivery already in flight")
)

// SendParams asks for one templated update.
type SendParams struct {
	RecipientID  int64
	LeadID       *int64
	TemplateName string
	Variables    map[string]interface{}
}

// Enqueuer hands an update id to the asynchronous delivery queue.
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, updateID int64) error
}

// Guard serialises delivery of one update across workers.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Dispatcher renders and stores updates and drives their delivery over the
// configured channels.
type Dispatcher struct {
	store       updates.Store
	templates   *templates.Registry
	channels    []Channel
	enqueuer    Enqueuer
	guard       Guard
	maxAttempts int
	timeout     time.Duration
	backoff     time.Duration
	log         *logger.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

// DispatcherDeps are the collaborators of the dispatcher. Only Store is
// required; without an Enqueuer delivery runs in-process.
type DispatcherDeps struct {
	Store     updates.Store
	Templates *templates.Registry
	Channels  []Channel
	Enqueuer  Enqueuer
	Guard     Guard
	Log       *logger.Logger
}

// DispatcherConfig is the subset of configuration the dispatcher reads.
type DispatcherConfig interface {
	GetDeliveryMaxAttempts() int
	GetDeliveryTimeout() time.Duration
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithBackoff sets the base delay between in-process retries. The delay
// doubles after every failed attempt.
func WithBackoff(base time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.backoff = base }
}

// WithLimits overrides the attempt cap and per-attempt timeout.
func WithLimits(maxAttempts int, timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithConfig reads the attempt cap and timeout from configuration.
func WithConfig(cfg DispatcherConfig) DispatcherOption {
	return WithLimits(cfg.GetDeliveryMaxAttempts(), cfg.GetDeliveryTimeout())
}

func NewDispatcher(deps DispatcherDeps, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:       deps.Store,
		templates:   deps.Templates,
		channels:    deps.Channels,
		enqueuer:    deps.Enqueuer,
		guard:       deps.Guard,
		maxAttempts: defaultMaxAttempts,
		timeout:     defaultTimeout,
		backoff:     defaultBackoff,
		log:         deps.Log,
		now:         time.Now,
	}
	if d.templates == nil {
		d.templates = templates.Default()
	}
	if d.log == nil {
		d.log = logger.Nop()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxAttempts is the delivery attempt cap.
func (d *Dispatcher) MaxAttempts() int {
	return d.maxAttempts
}

// Send renders the template, stores the update as pending and hands it to
// delivery. It returns once the update is stored; delivery outcome never
// reaches the caller.
func (d *Dispatcher) Send(ctx context.Context, p SendParams) (updates.Update, error) {
	if p.RecipientID <= 0 {
		return updates.Update{}, apperr.FieldValidation("recipient_id", "recipient is required")
	}

	rendered, err := d.templates.Render(p.TemplateName, p.Variables)
	if err != nil {
		return updates.Update{}, err
	}

	u, err := d.store.Create(ctx, updates.CreateParams{
		RecipientID:  p.RecipientID,
		LeadID:       p.LeadID,
		UpdateType:   rendered.UpdateType,
		TemplateName: p.TemplateName,
		Title:        rendered.Title,
		Message:      rendered.Message,
	})
	if err != nil {
		return updates.Update{}, err
	}

	d.dispatch(ctx, u.ID)
	return u, nil
}

// dispatch queues the update, falling back to in-process delivery when
// there is no queue or it is unreachable.
func (d *Dispatcher) dispatch(ctx context.Context, updateID int64) {
	if d.enqueuer != nil {
		err := d.enqueuer.EnqueueDelivery(ctx, updateID)
		if err == nil {
			return
		}
		d.log.WithContext(ctx).Warn("enqueue delivery failed, delivering in-process",
			"update_id", updateID, "error", err)
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliverWithRetry(detached, updateID)
	}()
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, updateID int64) {
	delay := d.backoff
	for {
		err := d.Deliver(ctx, updateID)
		if err == nil || errors.Is(err, ErrAttemptsExhausted) || apperr.Is(err, apperr.KindNotFound) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Wait blocks until in-process deliveries started by Send have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Deliver makes one delivery attempt for the update and records it.
// Delivered updates are left alone. A failed attempt returns the channel
// error, or ErrAttemptsExhausted when it was the last one allowed.
func (d *Dispatcher) Deliver(ctx context.Context, updateID int64) error {
	key := guardKeyPrefix + strconv.FormatInt(updateID, 10)
	if d.guard != nil {
		ok, err := d.guard.Acquire(ctx, key, 2*d.timeout)
		if err != nil {
			return fmt.Errorf("acquire delivery guard: %w", err)
		}
		if !ok {
			return ErrDeliveryInFlight
		}
		defer func() {
			if err := d.guard.Release(context.WithoutCancel(ctx), key); err != nil {
				d.log.Warn("release delivery guard failed", "update_id", updateID, "error", err)
			}
		}()
	}

	u, err := d.store.GetByID(ctx, updateID)
	if err != nil {
		return err
	}
	if u.DeliveryStatus == updates.StatusDelivered {
		return nil
	}
	if u.DeliveryAttempts >= d.maxAttempts {
		return ErrAttemptsExhausted
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	deliveryErr := d.deliverChannels(attemptCtx, u)
	cancel()

	recorded, err := d.store.RecordAttempt(ctx, updateID, d.now().UTC(), deliveryErr)
	if err != nil {
		return fmt.Errorf("record delivery attempt: %w", err)
	}
	d.log.DeliveryAttempt(updateID, recorded.DeliveryAttempts, deliveryErr)

	if deliveryErr == nil {
		return nil
	}
	if recorded.DeliveryAttempts >= d.maxAttempts {
		return fmt.Errorf("%w: %w", ErrAttemptsExhausted, deliveryErr)
	}
	return deliveryErr
}

func (d *Dispatcher) deliverChannels(ctx context.Context, u updates.Update) error {
	var errs []error
	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, u); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Redeliver re-dispatches failed updates that still have attempts left and
// pending updates older than staleAfter. It returns how many were
// dispatched.
func (d *Dispatcher) Redeliver(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	ids, err := d.store.ListRedeliverable(ctx, d.maxAttempts, d.now().Add(-staleAfter), limit)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		d.dispatch(ctx, id)
	}
	return len(ids), nil
}
