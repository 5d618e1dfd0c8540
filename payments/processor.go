// Package payments wraps the external payment capability behind a narrow
// contract and provides the retrying refund executor.
package payments

import (
	"context"
	"fmt"
	"strconv"

	"parkhive-bend/apperr"

	"github.com/plutov/paypal/v4"
)

// Processor is the external payment capability contract. Both calls accept
// an idempotency key: retries with the same key have at most one effect.
type Processor interface {
	// Authorize captures the amount against the payer's approved payment
	// and returns the payment reference refunds are issued against.
	Authorize(ctx context.Context, amount float64, currency, payerRef, idempotencyKey string) (string, error)
	// CreateRefund refunds the amount against a payment reference and
	// returns the external refund id.
	CreateRefund(ctx context.Context, paymentRef string, amount float64, currency, idempotencyKey string) (string, error)
}

// PayPalProcessor implements Processor on the PayPal orders v2 API.
type PayPalProcessor struct {
	client *paypal.Client
}

// NewPayPalProcessor builds a processor from API credentials. The sandbox
// base is used outside of production.
func NewPayPalProcessor(clientID, clientSecret, env string) (*PayPalProcessor, error) {
	base := paypal.APIBaseSandBox
	if env != "dev" {
		base = paypal.APIBaseLive
	}

	c, err := paypal.NewClient(clientID, clientSecret, base)
	if err != nil {
		return nil, err
	}

	if _, err := c.GetAccessToken(context.Background()); err != nil {
		return nil, err
	}

	return &PayPalProcessor{client: c}, nil
}

// Authorize captures the payer's approved PayPal order (payerRef) and
// returns the capture id.
func (p *PayPalProcessor) Authorize(ctx context.Context, amount float64, currency, payerRef, idempotencyKey string) (string, error) {
	resp, err := p.client.CaptureOrder(ctx, payerRef, paypal.CaptureOrderRequest{})
	if err != nil {
		return "", classify(err, "capture order")
	}

	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID, nil
			}
		}
	}

	return "", apperr.New(apperr.PaymentProcessor, "capture response for order %s carries no capture id", payerRef)
}

// CreateRefund issues a refund against a capture. The idempotency key rides
// as the refund's invoice id so processor-side retries collapse.
func (p *PayPalProcessor) CreateRefund(ctx context.Context, paymentRef string, amount float64, currency, idempotencyKey string) (string, error) {
	resp, err := p.client.RefundCapture(ctx, paymentRef, paypal.RefundCaptureRequest{
		Amount: &paypal.Money{
			Currency: currency,
			Value:    strconv.FormatFloat(amount, 'f', 2, 64),
		},
		InvoiceID: idempotencyKey,
	})
	if err != nil {
		return "", classify(err, "refund capture")
	}

	if resp.Status != "" && resp.Status != "COMPLETED" && resp.Status != "PENDING" {
		return "", apperr.New(apperr.PaymentProcessor, "refund %s returned status %s", resp.ID, resp.Status)
	}

	return resp.ID, nil
}

// classify maps a PayPal error onto the engine taxonomy: processor-side
// rejections of the request itself (bad amount, unknown capture) are not
// retryable, everything else is treated as transient.
func classify(err error, op string) error {
	if pErr, ok := err.(*paypal.ErrorResponse); ok {
		switch pErr.Response.StatusCode {
		case 400, 404, 422:
			return apperr.Wrap(apperr.Validation, err, "%s rejected", op)
		}
	}
	return apperr.Wrap(apperr.PaymentProcessor, err, "%s failed", op)
}

// DeriveKey builds the deterministic idempotency key for a refund attempt.
func DeriveKey(opKey string, attempt int) string {
	return fmt.Sprintf("%s:%d", opKey, attempt)
}
