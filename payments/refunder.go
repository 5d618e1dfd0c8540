package payments

import (
	"context"
	"log"
	"time"

	"parkhive-bend/apperr"
)

// RefundExecutor issues a refund against the external capability with
// bounded retries. Transient processor failures are retried with
// exponential backoff; request rejections surface immediately.
type RefundExecutor interface {
	ExecuteRefund(ctx context.Context, paymentRef string, amount float64, currency, idempotencyKey string) (string, error)
}

// Executor is the production RefundExecutor.
type Executor struct {
	proc        Processor
	maxAttempts int
	backoff     time.Duration
	callTimeout time.Duration
}

// NewExecutor returns an Executor with the given retry bounds.
func NewExecutor(proc Processor, maxAttempts int, backoff, callTimeout time.Duration) *Executor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Executor{
		proc:        proc,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		callTimeout: callTimeout,
	}
}

// ExecuteRefund calls the processor until it succeeds, fails permanently,
// or the attempt budget runs out. Every attempt carries the same
// idempotency key, so the external effect happens at most once even when a
// timed-out call actually went through.
func (e *Executor) ExecuteRefund(ctx context.Context, paymentRef string, amount float64, currency, idempotencyKey string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		refundID, err := e.proc.CreateRefund(callCtx, paymentRef, amount, currency, idempotencyKey)
		cancel()

		if err == nil {
			return refundID, nil
		}
		if !apperr.Is(err, apperr.PaymentProcessor) {
			// non-retryable rejection
			return "", err
		}

		lastErr = err
		log.Printf("refund_executor: attempt %d/%d for %s failed: %v", attempt, e.maxAttempts, idempotencyKey, err)

		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-time.After(e.backoff << uint(attempt-1)):
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.PaymentProcessor, ctx.Err(), "refund %s interrupted", idempotencyKey)
		}
	}

	return "", apperr.Wrap(apperr.PaymentProcessor, lastErr, "refund %s exhausted %d attempts", idempotencyKey, e.maxAttempts)
}
