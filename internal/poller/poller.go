// Package poller reconciles pending payments against their gateways.
// Webhooks are the primary notification path; polling is the safety net for
// lost or delayed deliveries. Each watched payment gets its own goroutine,
// bounded by an attempt count and a wall-clock budget.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

// resultApplier is the slice of the payment service the poller needs
type resultApplier interface {
	ApplyVerifyResult(ctx context.Context, reference string, res *gateway.VerifyResult, source payment.Source) (*payment.Payment, error)
}

// Poller watches pending payments and feeds gateway verify results into the
// guarded state machine.
type Poller struct {
	applier     resultApplier
	gateways    gateway.Provider
	payments    payment.Repository
	interval    time.Duration
	maxAttempts int
	budget      time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[uuid.UUID]context.CancelFunc
}

// New creates a poller. Interval is the gap between verify attempts,
// maxAttempts and budget bound each payment's watch independently.
func New(applier resultApplier, gateways gateway.Provider, payments payment.Repository, interval time.Duration, maxAttempts int, budget time.Duration, logger *slog.Logger) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		applier:     applier,
		gateways:    gateways,
		payments:    payments,
		interval:    interval,
		maxAttempts: maxAttempts,
		budget:      budget,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		tasks:       make(map[uuid.UUID]context.CancelFunc),
	}
}

// Watch starts polling a payment. Watching the same payment twice is a no-op.
func (w *Poller) Watch(p *payment.Payment) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.tasks[p.ID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(w.ctx)
	w.tasks[p.ID] = cancel
	w.wg.Add(1)

	go w.run(ctx, p)
}

// Cancel stops the watch for a payment, typically because a webhook already
// settled it. Unknown ids are ignored.
func (w *Poller) Cancel(paymentID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cancel, ok := w.tasks[paymentID]; ok {
		cancel()
	}
}

// Resume restarts watches for every payment still marked polling-active.
// Called once at startup so pending payments survive process restarts.
func (w *Poller) Resume(ctx context.Context) error {
	pending, err := w.payments.ListPollingActive(ctx)
	if err != nil {
		return err
	}

	for _, p := range pending {
		w.Watch(p)
	}

	if len(pending) > 0 {
		w.logger.Info("resumed polling for pending payments", "count", len(pending))
	}
	return nil
}

// Shutdown cancels all watches and waits for their goroutines to exit
func (w *Poller) Shutdown() {
	w.cancel()
	w.wg.Wait()
}

func (w *Poller) run(ctx context.Context, p *payment.Payment) {
	defer w.wg.Done()
	defer w.remove(p.ID)

	adapter, err := w.gateways.Adapter(p.Gateway)
	if err != nil {
		w.logger.Error("cannot poll payment, gateway not configured",
			"payment_id", p.ID,
			"gateway", p.Gateway,
			"error", err,
		)
		return
	}

	deadline := time.Now().Add(w.budget)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			// Budget exhaustion is not evidence of failure. The payment
			// stays pending for webhooks or an operator requery to settle.
			w.logger.Warn("polling budget exhausted, payment left pending",
				"payment_id", p.ID,
				"reference", p.Reference,
				"attempts", attempt-1,
			)
			return
		}

		current, err := w.payments.GetByID(ctx, p.ID)
		if err == nil && (!current.IsPending() || !current.PollingActive) {
			// Settled elsewhere, usually by a webhook on another instance.
			return
		}

		res, err := adapter.Verify(ctx, p.Reference)
		if err != nil {
			// Transient provider or network trouble; the next tick retries.
			w.logger.Warn("poll verify failed",
				"payment_id", p.ID,
				"gateway", p.Gateway,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		if res.State == gateway.StatePending {
			continue
		}

		updated, err := w.applier.ApplyVerifyResult(ctx, p.Reference, res, payment.SourcePoll)
		if err != nil {
			w.logger.Error("applying poll result failed",
				"payment_id", p.ID,
				"error", err,
			)
			continue
		}
		if updated == nil || !updated.IsPending() {
			return
		}
	}

	w.logger.Warn("polling attempts exhausted, payment left pending",
		"payment_id", p.ID,
		"reference", p.Reference,
		"attempts", w.maxAttempts,
	)
}

func (w *Poller) remove(paymentID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.tasks, paymentID)
}
