package escrow

import (
	"context"
	"fmt"

	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
	"github.com/atelierworks/atelier-backend/pkg/square"
)

type squareProcessor struct {
	client *square.Client
}

// NewSquareProcessor adapts the Square client to the PaymentProcessor port.
func NewSquareProcessor(client *square.Client) (PaymentProcessor, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &squareProcessor{client: client}, nil
}

func (p *squareProcessor) Authorize(ctx context.Context, input AuthorizeInput) (string, error) {
	payment, err := p.client.AuthorizePayment(ctx, square.PaymentAuthorizeParams{
		AmountCents: input.AmountCents,
		CustomerID:  input.CustomerID,
		SourceID:    input.SourceID,
		ReferenceID: input.OrderID.String(),
		// One key per order keeps retried requests from double-holding.
		IdempotencyKey: fmt.Sprintf("hold-%s", input.OrderID),
	})
	if err != nil {
		return "", err
	}
	id := payment.GetID()
	if id == nil || *id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "square returned payment without id")
	}
	return *id, nil
}

func (p *squareProcessor) Settle(ctx context.Context, input SettleInput) (string, error) {
	if input.AmountCents == input.AuthorizedCents {
		if _, err := p.client.CapturePayment(ctx, input.HoldToken); err != nil {
			return "", err
		}
		return input.HoldToken, nil
	}

	// Square completes an authorization only at its full amount. Settling
	// short means voiding the hold and charging the final figure instead.
	if _, err := p.client.CancelAuthorization(ctx, input.HoldToken); err != nil {
		return "", err
	}
	payment, err := p.client.ChargePayment(ctx, square.PaymentAuthorizeParams{
		AmountCents:    input.AmountCents,
		CustomerID:     input.CustomerID,
		SourceID:       input.SourceID,
		ReferenceID:    input.OrderID.String(),
		Note:           "final settlement after price adjustment",
		IdempotencyKey: fmt.Sprintf("settle-%s", input.OrderID),
	})
	if err != nil {
		return "", err
	}
	id := payment.GetID()
	if id == nil || *id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "square returned payment without id")
	}
	return *id, nil
}

func (p *squareProcessor) ChargeAdditional(ctx context.Context, input ChargeInput) (string, error) {
	payment, err := p.client.ChargePayment(ctx, square.PaymentAuthorizeParams{
		AmountCents:    input.AmountCents,
		CustomerID:     input.CustomerID,
		SourceID:       input.SourceID,
		ReferenceID:    input.OrderID.String(),
		Note:           input.Note,
		IdempotencyKey: fmt.Sprintf("topup-%s", input.OrderID),
	})
	if err != nil {
		return "", err
	}
	id := payment.GetID()
	if id == nil || *id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "square returned payment without id")
	}
	return *id, nil
}

func (p *squareProcessor) CancelAuthorization(ctx context.Context, holdToken string) error {
	_, err := p.client.CancelAuthorization(ctx, holdToken)
	return err
}

func (p *squareProcessor) RefundPayment(ctx context.Context, paymentID string, amountCents int64, reason string) error {
	_, err := p.client.RefundPayment(ctx, square.RefundParams{
		PaymentID:      paymentID,
		AmountCents:    amountCents,
		Reason:         reason,
		IdempotencyKey: fmt.Sprintf("refund-%s", paymentID),
	})
	return err
}
